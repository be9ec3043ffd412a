package engine

import (
	"time"

	"mindshift/internal/assist"
	"mindshift/internal/metrics"
	"mindshift/internal/protocol"
)

// ResponseKind tags what the engine produced for a turn. An explicit tag
// (rather than sentinel strings) means callers cannot mistake an internal
// control value for real scripted content.
type ResponseKind string

const (
	// KindScripted is protocol-mandated wording, possibly with
	// placeholder substitution.
	KindScripted ResponseKind = "scripted"
	// KindAutoContinue marks an internal hop the engine consumed itself;
	// it never reaches callers.
	KindAutoContinue ResponseKind = "auto_continue"
	// KindNeedsAI is scripted text that was shaped by a linguistic
	// rewrite before being fixed.
	KindNeedsAI ResponseKind = "ai_assisted"
	// KindNeedsValidation keeps the user on the step pending an
	// AI-deferred validation round.
	KindNeedsValidation ResponseKind = "needs_validation"
	// KindRejected keeps the user on the step with a scripted correction.
	KindRejected ResponseKind = "rejected"
)

// AIDescriptor names the validation kind a turn was deferred on.
type AIDescriptor struct {
	Kind protocol.ValidationKind `json:"kind"`
}

// ProcessingResult is the engine's output for one turn.
type ProcessingResult struct {
	// CanContinue is false when the turn did not advance the step:
	// rejections, clarification rounds, and completed sessions.
	CanContinue bool         `json:"canContinue"`
	Kind        ResponseKind `json:"kind"`
	Message     string       `json:"message"`

	NextStep protocol.StepID  `json:"nextStep"`
	Phase    protocol.PhaseID `json:"phase"`

	NeedsAIAssistance *AIDescriptor `json:"needsAIAssistance,omitempty"`
	NeedsLinguistic   bool          `json:"needsLinguisticProcessing,omitempty"`

	// Reason is a machine-readable code: a validation-failure tag or an
	// AI_VALIDATION_NEEDED:<kind> tag. Empty on accepted turns.
	Reason string `json:"reason,omitempty"`

	UsedAI bool              `json:"usedAI"`
	Tokens assist.TokenUsage `json:"-"`

	SessionComplete bool `json:"sessionComplete"`

	// Metrics is a read-only snapshot attached for observability.
	Metrics metrics.Snapshot `json:"metrics"`
}

// StartResult is the payload of the start operation.
type StartResult struct {
	Message string           `json:"message"`
	Step    protocol.StepID  `json:"step"`
	Phase   protocol.PhaseID `json:"phase"`
}

// Turn is one transcript entry in the interaction log.
type Turn struct {
	ID        string          `json:"id"`
	Step      protocol.StepID `json:"step"`
	UserInput string          `json:"userInput"`
	Response  string          `json:"response"`
	UsedAI    bool            `json:"usedAI"`
	Timestamp time.Time       `json:"timestamp"`
}

// InteractionLog is the external transcript collaborator. Appends are best
// effort; the log exists so resume can rebuild a transcript without
// re-running protocol logic.
type InteractionLog interface {
	Append(sessionID string, turn Turn) error
	List(sessionID string) ([]Turn, error)
}

// ResumeResult reconstructs a session for a returning client.
type ResumeResult struct {
	Transcript []Turn           `json:"transcript"`
	Step       protocol.StepID  `json:"step"`
	Phase      protocol.PhaseID `json:"phase"`
	Message    string           `json:"message"`
}

// StatusResult is the read-only session/usage summary.
type StatusResult struct {
	SessionID        string           `json:"sessionId"`
	UserID           string           `json:"userId"`
	Step             protocol.StepID  `json:"step"`
	Phase            protocol.PhaseID `json:"phase"`
	ProblemStatement string           `json:"problemStatement,omitempty"`
	ResponseCount    int              `json:"responseCount"`
	StartTime        time.Time        `json:"startTime"`
	LastActivity     time.Time        `json:"lastActivity"`
	SessionComplete  bool             `json:"sessionComplete"`

	TokensUsed int64   `json:"tokensUsed"`
	CostUSD    float64 `json:"costUsd"`

	Metrics metrics.Snapshot `json:"metrics"`
}

// UndoResult reports a rollback.
type UndoResult struct {
	Step             protocol.StepID  `json:"step"`
	Phase            protocol.PhaseID `json:"phase"`
	ClearedResponses int              `json:"clearedResponses"`
	Message          string           `json:"message"`
}
