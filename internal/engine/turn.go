package engine

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"mindshift/internal/assist"
	"mindshift/internal/classify"
	"mindshift/internal/logging"
	"mindshift/internal/protocol"
	"mindshift/internal/session"
)

// Continue processes one user turn: pending clarifications first, then
// classification, capture, transition, auto-advance, and response
// rendering. All rejections keep the session on its current step.
func (e *Engine) Continue(ctx context.Context, sessionID, userID, userInput string) (*ProcessingResult, error) {
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}
	if userID == "" {
		return nil, ErrMissingUserID
	}
	input := strings.TrimSpace(userInput)
	if input == "" {
		return nil, ErrMissingInput
	}

	sctx, err := e.store.GetOrCreate(sessionID, userID)
	if err != nil {
		return nil, err
	}

	// A persisted context can reference a step id that no longer exists
	// after a protocol revision. Reset rather than fail.
	if !e.reg.Known(sctx.CurrentStep) {
		logging.Get(logging.CategoryEngine).Warn("Unknown step %q for session %s, resetting to start", sctx.CurrentStep, sessionID)
		sctx.CurrentStep = e.reg.InitialStep()
		sctx.CurrentPhase = e.reg.InitialPhase()
		sctx.Pending.Clear()
	}

	if e.reg.IsTerminal(sctx.CurrentStep) {
		return e.finish(sctx, e.scriptedResult(sctx, e.renderStep(sctx, sctx.CurrentStep, input), input, "")), nil
	}

	if sctx.Pending.AwaitingEmotionConfirm {
		return e.finish(sctx, e.handleEmotionConfirm(sctx, input)), nil
	}
	if sctx.Pending.Emotion != "" {
		return e.finish(sctx, e.handleEmotionContext(ctx, sctx, input)), nil
	}

	// A bare number after a multi-problem enumeration picks from the list.
	if len(sctx.Pending.ProblemChoices) > 0 {
		if picked, ok := pickProblem(sctx.Pending.ProblemChoices, input); ok {
			input = picked
		}
		sctx.Pending.ProblemChoices = nil
	}

	step := e.reg.Step(sctx.CurrentStep)
	verdict := classify.Classify(step, input, e.limits)
	logging.ClassifyDebug("session=%s step=%s outcome=%s reason=%s", sessionID, step.ID, verdict.Outcome, verdict.Reason)

	switch verdict.Outcome {
	case classify.RejectScripted:
		if verdict.Reason == "multiple_problems" {
			sctx.Pending.ProblemChoices = classify.SplitProblems(input)
		}
		e.collector.RecordScripted()
		r := &ProcessingResult{
			CanContinue: false,
			Kind:        KindRejected,
			Message:     verdict.Correction,
			NextStep:    sctx.CurrentStep,
			Phase:       sctx.CurrentPhase,
			Reason:      verdict.Reason,
			Metrics:     e.collector.Snapshot(),
		}
		e.appendTranscript(sessionID, Turn{
			ID: uuid.NewString(), Step: step.ID, UserInput: input,
			Response: r.Message, Timestamp: time.Now(),
		})
		return e.finish(sctx, r), nil

	case classify.NeedsAIValidation:
		if sctx.Pending.BypassAIValidation {
			// One granted pass: the clarification loop already ran for
			// this statement, accept it as-is.
			sctx.Pending.BypassAIValidation = false
			break
		}
		return e.finish(sctx, e.handleValidation(ctx, sctx, verdict, input)), nil
	}
	sctx.Pending.BypassAIValidation = false

	return e.finish(sctx, e.acceptTurn(ctx, sctx, step, input)), nil
}

// acceptTurn records the answer, applies its capture, resolves the
// transition (including auto-advance hops) and renders the next step.
func (e *Engine) acceptTurn(ctx context.Context, sctx *session.Context, step *protocol.Step, input string) *ProcessingResult {
	sctx.SetResponse(step.ID, input)
	e.applyCapture(sctx, step, input)

	next := e.transitionFrom(step, input)
	next = e.autoAdvance(next)

	sctx.CurrentStep = next
	sctx.CurrentPhase = e.reg.PhaseOf(next)
	sctx.Touch()

	message := e.renderStep(sctx, next, input)

	kind := KindScripted
	usedAI := false
	var tokens assist.TokenUsage
	nextStep := e.reg.Step(next)
	if nextStep != nil && nextStep.NeedsLinguistic && e.gateway.Enabled() {
		rewritten, tok, used := e.gateway.Linguistic(ctx, sctx.SessionID, next, message, e.problemText(sctx, input))
		if used {
			message = rewritten
			kind = KindNeedsAI
			usedAI = true
			tokens = tok
		}
	}

	if usedAI {
		e.collector.RecordAIAssisted()
	} else {
		e.collector.RecordScripted()
	}

	r := &ProcessingResult{
		CanContinue:     true,
		Kind:            kind,
		Message:         message,
		NextStep:        next,
		Phase:           sctx.CurrentPhase,
		NeedsLinguistic: nextStep != nil && nextStep.NeedsLinguistic,
		UsedAI:          usedAI,
		Tokens:          tokens,
		SessionComplete: e.reg.IsTerminal(next),
		Metrics:         e.collector.Snapshot(),
	}
	e.appendTranscript(sctx.SessionID, Turn{
		ID: uuid.NewString(), Step: step.ID, UserInput: input,
		Response: message, UsedAI: usedAI, Timestamp: time.Now(),
	})
	logging.EngineDebug("Transition: session=%s %s -> %s", sctx.SessionID, step.ID, next)
	return r
}

// handleValidation runs an AI-deferred validation round. The turn always
// produces a response; provider failures degrade to deterministic wording.
func (e *Engine) handleValidation(ctx context.Context, sctx *session.Context, verdict classify.Result, input string) *ProcessingResult {
	v, tokens, usedAI := e.gateway.ValidateEmotion(ctx, sctx.SessionID, verdict.Kind, input, sctx.Pending.Emotion)

	if v.Emotion != "" {
		sctx.Pending.Emotion = v.Emotion
	}
	if usedAI {
		e.collector.RecordAIAssisted()
	} else {
		e.collector.RecordScripted()
	}

	r := &ProcessingResult{
		CanContinue:       false,
		Kind:              KindNeedsValidation,
		Message:           v.Correction,
		NextStep:          sctx.CurrentStep,
		Phase:             sctx.CurrentPhase,
		NeedsAIAssistance: &AIDescriptor{Kind: verdict.Kind},
		Reason:            verdict.Reason,
		UsedAI:            usedAI,
		Tokens:            tokens,
		Metrics:           e.collector.Snapshot(),
	}
	e.appendTranscript(sctx.SessionID, Turn{
		ID: uuid.NewString(), Step: sctx.CurrentStep, UserInput: input,
		Response: r.Message, UsedAI: usedAI, Timestamp: time.Now(),
	})
	return r
}

// handleEmotionContext pairs the stored emotion with the user's follow-up
// and asks for confirmation of the synthesized pair.
func (e *Engine) handleEmotionContext(ctx context.Context, sctx *session.Context, input string) *ProcessingResult {
	v, tokens, usedAI := e.gateway.ValidateEmotion(ctx, sctx.SessionID, protocol.KindIncompleteEmotionContext, input, sctx.Pending.Emotion)

	var message string
	if v.NeedsCorrection {
		message = v.Correction
	} else {
		sctx.Pending.EmotionContext = v.Context
		sctx.Pending.AwaitingEmotionConfirm = true
		message = protocol.Render(protocol.EmotionConfirmTemplate, protocol.Vars{
			Emotion: sctx.Pending.Emotion,
			Context: sctx.Pending.EmotionContext,
		})
	}

	if usedAI {
		e.collector.RecordAIAssisted()
	} else {
		e.collector.RecordScripted()
	}

	r := &ProcessingResult{
		CanContinue:       false,
		Kind:              KindNeedsValidation,
		Message:           message,
		NextStep:          sctx.CurrentStep,
		Phase:             sctx.CurrentPhase,
		NeedsAIAssistance: &AIDescriptor{Kind: protocol.KindIncompleteEmotionContext},
		Reason:            "AI_VALIDATION_NEEDED:" + string(protocol.KindIncompleteEmotionContext),
		UsedAI:            usedAI,
		Tokens:            tokens,
		Metrics:           e.collector.Snapshot(),
	}
	e.appendTranscript(sctx.SessionID, Turn{
		ID: uuid.NewString(), Step: sctx.CurrentStep, UserInput: input,
		Response: message, UsedAI: usedAI, Timestamp: time.Now(),
	})
	return r
}

// handleEmotionConfirm resolves the yes/no on a synthesized emotion pair.
// Yes turns the pair into the problem statement and advances the step; no
// clears the clarification and asks for a plain restatement.
func (e *Engine) handleEmotionConfirm(sctx *session.Context, input string) *ProcessingResult {
	answer, ok := classify.NormalizeYesNo(input)
	if !ok {
		e.collector.RecordScripted()
		return &ProcessingResult{
			CanContinue: false,
			Kind:        KindRejected,
			Message:     protocol.CorrectionYesNo,
			NextStep:    sctx.CurrentStep,
			Phase:       sctx.CurrentPhase,
			Reason:      "unclear_yes_no",
			Metrics:     e.collector.Snapshot(),
		}
	}

	if answer == "no" {
		sctx.Pending.Clear()
		// The restated answer may still read like a bare emotion; it has
		// already been clarified once, so the next pass accepts it.
		sctx.Pending.BypassAIValidation = true
		e.collector.RecordScripted()
		return &ProcessingResult{
			CanContinue: false,
			Kind:        KindRejected,
			Message:     protocol.CorrectionRestateProblem,
			NextStep:    sctx.CurrentStep,
			Phase:       sctx.CurrentPhase,
			Reason:      "emotion_pair_rejected",
			Metrics:     e.collector.Snapshot(),
		}
	}

	synthesized := protocol.Render(protocol.SynthesizedProblemTemplate, protocol.Vars{
		Emotion: sctx.Pending.Emotion,
		Context: sctx.Pending.EmotionContext,
	})
	sctx.Pending.Clear()
	logging.Engine("Synthesized problem statement: session=%s %q", sctx.SessionID, synthesized)

	step := e.reg.Step(sctx.CurrentStep)
	return e.acceptTurn(context.Background(), sctx, step, synthesized)
}

// applyCapture stores an accepted answer into the derived metadata. The
// problem statement is only captured once; later changes go through the
// explicit restate flow.
func (e *Engine) applyCapture(sctx *session.Context, step *protocol.Step, input string) {
	switch step.Capture {
	case protocol.CaptureProblem:
		if sctx.ProblemStatement == "" {
			sctx.ProblemStatement = classify.ExtractProblem(input)
		}
	case protocol.CaptureMethod:
		if m, ok := e.reg.ResolveMethod(input); ok {
			sctx.Derived.SelectedMethod = m.Name
		} else {
			sctx.Derived.SelectedMethod = "problem shifting"
		}
	case protocol.CaptureGoal:
		sctx.Derived.CurrentGoal = strings.TrimRight(input, ".!? ")
		sctx.Derived.GoalWithDeadline = sctx.Derived.CurrentGoal
	case protocol.CaptureDeadlineDate:
		sctx.Derived.GoalDeadline = strings.TrimRight(input, ".!? ")
		sctx.Derived.GoalWithDeadline = sctx.Derived.CurrentGoal + " by " + sctx.Derived.GoalDeadline
	case protocol.CaptureNewProblem:
		sctx.Derived.NewProblem = classify.ExtractProblem(input)
	case protocol.CaptureIdentity:
		sctx.Derived.CurrentIdentity = strings.TrimRight(input, ".!? ")
	case protocol.CaptureBelief:
		sctx.Derived.CurrentBelief = strings.TrimRight(input, ".!? ")
	case protocol.CaptureAction:
		sctx.Derived.CommittedAction = strings.TrimRight(input, ".!? ")
	}
}

// transitionFrom resolves the next step for an accepted answer: first
// branch match on the normalized answer wins, otherwise the default edge.
func (e *Engine) transitionFrom(step *protocol.Step, input string) protocol.StepID {
	answer := strings.ToLower(strings.Trim(strings.TrimSpace(input), ".!"))
	if normalized, ok := classify.NormalizeYesNo(input); ok {
		answer = normalized
	}
	if step.Expect == protocol.ExpectSelection {
		if m, ok := e.reg.ResolveMethod(input); ok {
			answer = m.Name
		}
	}

	for _, b := range step.Transition.Branches {
		if b.WhenAnswer == answer {
			return b.To
		}
	}
	if step.Transition.Next != "" {
		return step.Transition.Next
	}
	return step.ID
}

// autoAdvance consumes sentinel steps until a user-visible one is reached.
// The hop budget guards against a miswired cycle of sentinels.
func (e *Engine) autoAdvance(id protocol.StepID) protocol.StepID {
	for hops := 0; hops < e.maxHops; hops++ {
		step := e.reg.Step(id)
		if step == nil || !step.AutoAdvance {
			return id
		}
		logging.EngineDebug("Internal hop (%s): %s -> %s", KindAutoContinue, id, step.Transition.Next)
		id = step.Transition.Next
	}
	logging.Get(logging.CategoryEngine).Warn("Auto-advance budget exhausted at %s", id)
	return id
}

// renderStep produces the response text for a step, serving placeholder-free
// steps from the preload cache.
func (e *Engine) renderStep(sctx *session.Context, id protocol.StepID, lastAnswer string) string {
	if text, ok := e.pre.Resolve(id); ok {
		e.collector.RecordCacheHit()
		return text
	}
	e.collector.RecordCacheMiss()

	template := e.pre.Template(id)
	if template == "" {
		return ""
	}

	last := lastAnswer
	if last == "" {
		if recorded, ok := sctx.LastResponse(); ok {
			last = recorded
		}
	}

	return protocol.Render(template, protocol.Vars{
		Problem:      e.problemText(sctx, last),
		Goal:         e.goalText(sctx),
		LastResponse: last,
		Identity:     sctx.Derived.CurrentIdentity,
		Belief:       sctx.Derived.CurrentBelief,
		Emotion:      sctx.Pending.Emotion,
		Context:      sctx.Pending.EmotionContext,
	})
}

// problemText resolves the {problem} fallback chain: a restated problem
// wins over the original statement, which wins over the latest answer.
func (e *Engine) problemText(sctx *session.Context, lastAnswer string) string {
	if sctx.Derived.NewProblem != "" {
		return sctx.Derived.NewProblem
	}
	if sctx.ProblemStatement != "" {
		return sctx.ProblemStatement
	}
	return lastAnswer
}

// goalText resolves the {goal} fallback chain: the deadline-qualified goal
// wins over the bare goal.
func (e *Engine) goalText(sctx *session.Context) string {
	if sctx.Derived.GoalWithDeadline != "" {
		return sctx.Derived.GoalWithDeadline
	}
	return sctx.Derived.CurrentGoal
}

// scriptedResult wraps a plain scripted message for the current step,
// used for terminal-step re-entry.
func (e *Engine) scriptedResult(sctx *session.Context, message, input, reason string) *ProcessingResult {
	e.collector.RecordScripted()
	return &ProcessingResult{
		CanContinue:     false,
		Kind:            KindScripted,
		Message:         message,
		NextStep:        sctx.CurrentStep,
		Phase:           sctx.CurrentPhase,
		Reason:          reason,
		SessionComplete: e.reg.IsTerminal(sctx.CurrentStep),
		Metrics:         e.collector.Snapshot(),
	}
}

// finish persists the context asynchronously and returns the result.
func (e *Engine) finish(sctx *session.Context, r *ProcessingResult) *ProcessingResult {
	e.store.Persist(sctx.SessionID)
	return r
}

// pickProblem resolves a bare numeric answer against the enumerated split
// of the previous multi-problem input.
func pickProblem(choices []string, input string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimRight(strings.TrimSpace(input), "."))
	if err != nil || n < 1 || n > len(choices) {
		return "", false
	}
	return choices[n-1], true
}
