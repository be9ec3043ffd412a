package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"mindshift/internal/assist"
	"mindshift/internal/protocol"
	"mindshift/internal/session"
)

// memLog is an in-memory InteractionLog.
type memLog struct {
	turns map[string][]Turn
	fail  bool
}

func newMemLog() *memLog { return &memLog{turns: make(map[string][]Turn)} }

func (m *memLog) Append(sessionID string, turn Turn) error {
	if m.fail {
		return fmt.Errorf("log down")
	}
	m.turns[sessionID] = append(m.turns[sessionID], turn)
	return nil
}

func (m *memLog) List(sessionID string) ([]Turn, error) {
	if m.fail {
		return nil, fmt.Errorf("log down")
	}
	return m.turns[sessionID], nil
}

func newLoggedEngine(t *testing.T, log InteractionLog) (*Engine, *session.Store) {
	t.Helper()
	reg := protocol.NewRegistry()
	pre := protocol.NewPreloader(reg, "")
	store := session.NewStore(reg, nil)
	gateway := assist.NewGateway(nil, nil, "", time.Second)
	return New(reg, pre, store, gateway, log, nil, Params{}), store
}

func TestResumeReplaysTranscript(t *testing.T) {
	log := newMemLog()
	e, _ := newLoggedEngine(t, log)

	e.Start("s1", "u1")
	turn(t, e, "s1", "my anger")
	turn(t, e, "s1", "1")

	res, err := e.Resume(context.Background(), "s1", "u1")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if len(res.Transcript) != 2 {
		t.Fatalf("transcript = %d turns, want 2", len(res.Transcript))
	}
	if res.Transcript[0].UserInput != "my anger" {
		t.Fatalf("first turn = %+v", res.Transcript[0])
	}
	if res.Step != protocol.StepProblemShiftingIntro {
		t.Fatalf("resume step = %s", res.Step)
	}
	if !strings.Contains(res.Message, "'my anger'") {
		t.Fatalf("resume message should re-render the current step:\n%s", res.Message)
	}
}

func TestResumeRecordsRejectionsToo(t *testing.T) {
	log := newMemLog()
	e, _ := newLoggedEngine(t, log)

	e.Start("s1", "u1")
	turn(t, e, "s1", "my job and my relationship") // rejected, enumerated
	turn(t, e, "s1", "1")

	res, err := e.Resume(context.Background(), "s1", "u1")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if len(res.Transcript) != 2 {
		t.Fatalf("transcript = %d turns, want 2 (corrections are turns)", len(res.Transcript))
	}
}

func TestResumeSurvivesTranscriptLoss(t *testing.T) {
	log := newMemLog()
	e, _ := newLoggedEngine(t, log)

	e.Start("s1", "u1")
	turn(t, e, "s1", "my anger")
	log.fail = true

	res, err := e.Resume(context.Background(), "s1", "u1")
	if err != nil {
		t.Fatalf("transcript loss must degrade resume, not fail it: %v", err)
	}
	if len(res.Transcript) != 0 {
		t.Fatalf("transcript = %+v", res.Transcript)
	}
	if res.Step != protocol.StepChooseMethod {
		t.Fatalf("resume step = %s", res.Step)
	}
}

func TestResumeWithoutLog(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Start("s1", "u1")
	turn(t, e, "s1", "my anger")

	res, err := e.Resume(context.Background(), "s1", "u1")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if res.Step != protocol.StepChooseMethod {
		t.Fatalf("resume step = %s", res.Step)
	}
}

func TestTurnsKeepWorkingWhenLogFails(t *testing.T) {
	log := newMemLog()
	log.fail = true
	e, _ := newLoggedEngine(t, log)

	e.Start("s1", "u1")
	res := turn(t, e, "s1", "my anger")
	if res.NextStep != protocol.StepChooseMethod {
		t.Fatalf("a failing transcript log must not block turns, got %s", res.NextStep)
	}
}
