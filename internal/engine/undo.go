package engine

import (
	"mindshift/internal/logging"
	"mindshift/internal/protocol"
	"mindshift/internal/session"
)

// Undo rolls a session back to a target step. The recorded responses are
// the source of truth: everything from the target's own answer onward is
// dropped, and the derived metadata is rebuilt by replaying the captures
// of the answers that survive. An unknown target resets the session to the
// protocol start.
func (e *Engine) Undo(sessionID, userID string, target protocol.StepID) (*UndoResult, error) {
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if target == "" {
		return nil, ErrMissingTarget
	}

	sctx, err := e.store.GetOrCreate(sessionID, userID)
	if err != nil {
		return nil, err
	}

	if !e.reg.Known(target) {
		cleared := len(sctx.Responses)
		logging.Undo("Unknown undo target %q for session %s, resetting", target, sessionID)

		fresh, err := e.store.CreateFresh(sessionID, userID)
		if err != nil {
			return nil, err
		}
		e.store.Persist(sessionID)
		return &UndoResult{
			Step:             fresh.CurrentStep,
			Phase:            fresh.CurrentPhase,
			ClearedResponses: cleared,
			Message:          e.renderStep(fresh, fresh.CurrentStep, ""),
		}, nil
	}

	before := len(sctx.Responses)
	sctx.Responses = retainedResponses(sctx.Responses, target, sctx.CurrentStep)
	cleared := before - len(sctx.Responses)

	e.rederive(sctx)
	sctx.Pending.Clear()
	sctx.CurrentStep = target
	sctx.CurrentPhase = e.reg.PhaseOf(target)
	sctx.Touch()

	e.store.Persist(sessionID)
	logging.Undo("Rolled back: session=%s target=%s cleared=%d", sessionID, target, cleared)

	return &UndoResult{
		Step:             target,
		Phase:            sctx.CurrentPhase,
		ClearedResponses: cleared,
		Message:          e.renderStep(sctx, target, ""),
	}, nil
}

// retainedResponses drops the target's own answer and everything recorded
// after it. A target with no recorded answer was never completed on this
// pass; except for the current step, whose prompt postdates every recorded
// answer, there is no safe cut point in that case and all responses are
// cleared rather than guessed at.
func retainedResponses(responses []session.Response, target, current protocol.StepID) []session.Response {
	for i, r := range responses {
		if r.Step == target {
			out := make([]session.Response, i)
			copy(out, responses[:i])
			return out
		}
	}
	if target == current {
		return responses
	}
	return nil
}

// rederive rebuilds the derived metadata from the retained responses.
// Derived state is a cache of the answers; after pruning, replaying the
// captures in recording order reproduces exactly the state the retained
// answers imply.
func (e *Engine) rederive(sctx *session.Context) {
	sctx.ProblemStatement = ""
	sctx.Derived = session.Derived{}

	for _, r := range sctx.Responses {
		step := e.reg.Step(r.Step)
		if step == nil {
			continue
		}
		e.applyCapture(sctx, step, r.Text)
	}
}
