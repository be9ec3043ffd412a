// Package engine is the FSM core of the treatment protocol: it classifies
// input, computes step transitions, renders scripted responses, consults
// the AI gateway where a step declares it, and exposes the five external
// operations (start, continue, resume, status, undo). The engine itself is
// stateless; all per-session state lives in the injected context store.
package engine

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"mindshift/internal/assist"
	"mindshift/internal/classify"
	"mindshift/internal/logging"
	"mindshift/internal/metrics"
	"mindshift/internal/protocol"
	"mindshift/internal/session"
	"mindshift/internal/usage"
)

// Contract violations: the only fatal errors the engine produces. They are
// rejected before any state mutation.
var (
	ErrMissingSessionID = errors.New("engine: sessionId is required")
	ErrMissingUserID    = errors.New("engine: userId is required")
	ErrMissingInput     = errors.New("engine: userInput is required")
	ErrMissingTarget    = errors.New("engine: target step is required")
)

// Params tunes the engine.
type Params struct {
	// MaxWords is the classifier word-count threshold.
	MaxWords int
	// MaxAutoAdvance bounds internal auto-continuation hops per turn.
	MaxAutoAdvance int
}

// Engine drives structured Mind Shifting sessions.
type Engine struct {
	reg       *protocol.Registry
	pre       *protocol.Preloader
	store     *session.Store
	gateway   *assist.Gateway
	log       InteractionLog // may be nil
	collector *metrics.Collector
	tracker   *usage.Tracker // may be nil
	limits    classify.Limits
	maxHops   int
}

// New wires an engine from its collaborators. gateway, ilog and tracker
// may each be nil; the engine then runs scripted-only, without transcript
// persistence, or without cost reporting respectively.
func New(reg *protocol.Registry, pre *protocol.Preloader, store *session.Store, gateway *assist.Gateway, ilog InteractionLog, tracker *usage.Tracker, p Params) *Engine {
	if p.MaxWords <= 0 {
		p.MaxWords = classify.DefaultLimits().MaxWords
	}
	if p.MaxAutoAdvance <= 0 {
		p.MaxAutoAdvance = 5
	}
	return &Engine{
		reg:       reg,
		pre:       pre,
		store:     store,
		gateway:   gateway,
		log:       ilog,
		collector: metrics.NewCollector(),
		tracker:   tracker,
		limits:    classify.Limits{MaxWords: p.MaxWords},
		maxHops:   p.MaxAutoAdvance,
	}
}

// Metrics exposes the collector snapshot.
func (e *Engine) Metrics() metrics.Snapshot { return e.collector.Snapshot() }

// Start wipes any prior context for the session and returns the
// introduction step's scripted response. Calling start twice in a row is
// idempotent: same response, empty response record.
func (e *Engine) Start(sessionID, userID string) (*StartResult, error) {
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}
	if userID == "" {
		return nil, ErrMissingUserID
	}

	sctx, err := e.store.CreateFresh(sessionID, userID)
	if err != nil {
		return nil, err
	}

	message := e.renderStep(sctx, sctx.CurrentStep, "")
	e.store.Persist(sessionID)

	logging.Engine("Session started: session=%s user=%s step=%s", sessionID, userID, sctx.CurrentStep)
	return &StartResult{
		Message: message,
		Step:    sctx.CurrentStep,
		Phase:   sctx.CurrentPhase,
	}, nil
}

// Status returns a read-only session/usage summary with no protocol side
// effects.
func (e *Engine) Status(sessionID, userID string) (*StatusResult, error) {
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}
	if userID == "" {
		return nil, ErrMissingUserID
	}

	sctx, err := e.store.GetOrCreate(sessionID, userID)
	if err != nil {
		return nil, err
	}

	st := &StatusResult{
		SessionID:        sctx.SessionID,
		UserID:           sctx.UserID,
		Step:             sctx.CurrentStep,
		Phase:            sctx.CurrentPhase,
		ProblemStatement: sctx.ProblemStatement,
		ResponseCount:    len(sctx.Responses),
		StartTime:        sctx.StartTime,
		LastActivity:     sctx.LastActivity,
		SessionComplete:  e.reg.IsTerminal(sctx.CurrentStep),
		Metrics:          e.collector.Snapshot(),
	}
	if e.tracker != nil {
		counts := e.tracker.SessionCounts(sessionID)
		st.TokensUsed = counts.Total
		st.CostUSD = counts.Cost
	}
	return st, nil
}

// Resume loads the persisted context and the interaction history in
// parallel and reconstructs the transcript without re-running any protocol
// logic.
func (e *Engine) Resume(ctx context.Context, sessionID, userID string) (*ResumeResult, error) {
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}
	if userID == "" {
		return nil, ErrMissingUserID
	}

	var (
		sctx       *session.Context
		transcript []Turn
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		loaded, err := e.store.GetOrCreate(sessionID, userID)
		if err != nil {
			return err
		}
		sctx = loaded
		return nil
	})
	g.Go(func() error {
		if e.log == nil {
			return nil
		}
		turns, err := e.log.List(sessionID)
		if err != nil {
			// Transcript loss degrades resume, it does not fail it.
			logging.Get(logging.CategoryEngine).Warn("Resume: could not load transcript for %s: %v", sessionID, err)
			return nil
		}
		transcript = turns
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &ResumeResult{
		Transcript: transcript,
		Step:       sctx.CurrentStep,
		Phase:      sctx.CurrentPhase,
		Message:    e.renderStep(sctx, sctx.CurrentStep, ""),
	}, nil
}

// appendTranscript records a turn in the interaction log, best effort.
func (e *Engine) appendTranscript(sessionID string, turn Turn) {
	if e.log == nil {
		return
	}
	if err := e.log.Append(sessionID, turn); err != nil {
		logging.Get(logging.CategoryEngine).Warn("Could not append transcript turn for %s: %v", sessionID, err)
	}
}
