// Package session owns the per-session mutable context record and the
// cached store that mirrors it to an external repository. A session is
// processed strictly sequentially; the store serializes access, but two
// concurrent turns for the same session are a caller error.
package session

import (
	"time"

	"mindshift/internal/protocol"
)

// Response is one recorded answer, keyed by the step it answered.
type Response struct {
	Step protocol.StepID `json:"step"`
	Text string          `json:"text"`
}

// Derived holds durable state computed from accepted answers. It is a cache
// of the recorded responses, never a second source of truth: undo re-derives
// these fields from the responses that survive the rollback.
type Derived struct {
	SelectedMethod   string `json:"selectedMethod,omitempty"`
	CurrentGoal      string `json:"currentGoal,omitempty"`
	GoalDeadline     string `json:"goalDeadline,omitempty"`
	GoalWithDeadline string `json:"goalWithDeadline,omitempty"`
	NewProblem       string `json:"newProblem,omitempty"`
	CurrentIdentity  string `json:"currentIdentity,omitempty"`
	CurrentBelief    string `json:"currentBelief,omitempty"`
	CommittedAction  string `json:"committedAction,omitempty"`
}

// Pending holds short-lived clarification state that must be cleared as
// soon as the clarification resolves, in either direction. Keeping it
// separate from Derived means cleanup cannot be skipped by accident.
type Pending struct {
	Emotion                string `json:"emotion,omitempty"`
	EmotionContext         string `json:"emotionContext,omitempty"`
	AwaitingEmotionConfirm bool   `json:"awaitingEmotionConfirm,omitempty"`

	// ProblemChoices holds the enumerated split of a multi-problem answer
	// so a bare "2" on the next turn can pick from the same list.
	ProblemChoices []string `json:"problemChoices,omitempty"`

	// BypassAIValidation grants exactly one classifier pass without AI
	// deferral, set when a validation round-trip re-enters the engine.
	BypassAIValidation bool `json:"bypassAIValidation,omitempty"`
}

// Clear drops all pending clarification state.
func (p *Pending) Clear() {
	*p = Pending{}
}

// Context is the engine's per-session record. It is owned exclusively by
// the engine while in memory and mirrored to the external repository.
type Context struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`

	CurrentPhase protocol.PhaseID `json:"currentPhase"`
	CurrentStep  protocol.StepID  `json:"currentStep"`

	// ProblemStatement holds the user's own words for the issue being
	// worked. Once set it is only replaced through an explicit
	// re-statement flow, never silently overwritten.
	ProblemStatement string `json:"problemStatement,omitempty"`

	// Responses is the ordered step→answer record. Insertion order is
	// chronological; a revisited step overwrites its earlier answer in
	// place (last write wins).
	Responses []Response `json:"userResponses"`

	Derived Derived `json:"derived"`
	Pending Pending `json:"pending"`

	StartTime    time.Time `json:"startTime"`
	LastActivity time.Time `json:"lastActivity"`
}

// NewContext returns a fresh context positioned at the protocol entry.
func NewContext(sessionID, userID string, phase protocol.PhaseID, step protocol.StepID) *Context {
	now := time.Now()
	return &Context{
		SessionID:    sessionID,
		UserID:       userID,
		CurrentPhase: phase,
		CurrentStep:  step,
		StartTime:    now,
		LastActivity: now,
	}
}

// SetResponse records an answer for a step, overwriting in place when the
// step is revisited.
func (c *Context) SetResponse(step protocol.StepID, text string) {
	for i := range c.Responses {
		if c.Responses[i].Step == step {
			c.Responses[i].Text = text
			return
		}
	}
	c.Responses = append(c.Responses, Response{Step: step, Text: text})
}

// ResponseFor returns the recorded answer for a step, if any.
func (c *Context) ResponseFor(step protocol.StepID) (string, bool) {
	for i := range c.Responses {
		if c.Responses[i].Step == step {
			return c.Responses[i].Text, true
		}
	}
	return "", false
}

// LastResponse returns the most recently recorded answer, if any.
func (c *Context) LastResponse() (string, bool) {
	if len(c.Responses) == 0 {
		return "", false
	}
	return c.Responses[len(c.Responses)-1].Text, true
}

// Touch updates the activity timestamp; called on every accepted turn.
func (c *Context) Touch() {
	c.LastActivity = time.Now()
}

// Clone returns a deep copy, used when handing the context to the
// repository so an in-flight save never races a mutating turn.
func (c *Context) Clone() *Context {
	out := *c
	out.Responses = make([]Response, len(c.Responses))
	copy(out.Responses, c.Responses)
	if len(c.Pending.ProblemChoices) > 0 {
		out.Pending.ProblemChoices = make([]string, len(c.Pending.ProblemChoices))
		copy(out.Pending.ProblemChoices, c.Pending.ProblemChoices)
	}
	return &out
}
