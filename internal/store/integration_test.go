package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"mindshift/internal/assist"
	"mindshift/internal/engine"
	"mindshift/internal/protocol"
	"mindshift/internal/session"
)

// TestSessionSurvivesProcessRestart drives a few turns against one engine,
// then rebuilds the whole stack on the same database file and resumes.
func TestSessionSurvivesProcessRestart(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "mindshift.db")
	reg := protocol.NewRegistry()
	pre := protocol.NewPreloader(reg, "")
	gateway := assist.NewGateway(nil, nil, "", time.Second)

	build := func() (*engine.Engine, *session.Store, *LocalStore) {
		db, err := NewLocalStore(dbPath)
		if err != nil {
			t.Fatalf("NewLocalStore: %v", err)
		}
		sessions := session.NewStore(reg, db.Sessions())
		eng := engine.New(reg, pre, sessions, gateway, db.Transcripts(), nil, engine.Params{})
		return eng, sessions, db
	}

	e1, sessions1, db1 := build()
	if _, err := e1.Start("s1", "u1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := e1.Continue(context.Background(), "s1", "u1", "my fear of public speaking"); err != nil {
		t.Fatalf("Continue: %v", err)
	}
	if _, err := e1.Continue(context.Background(), "s1", "u1", "2"); err != nil {
		t.Fatalf("Continue: %v", err)
	}
	// Turn persistence is asynchronous; flush before simulating the
	// process restart.
	if err := sessions1.PersistSync("s1"); err != nil {
		t.Fatalf("PersistSync: %v", err)
	}
	db1.Close()

	e2, _, db2 := build()
	defer db2.Close()

	res, err := e2.Resume(context.Background(), "s1", "u1")
	if err != nil {
		t.Fatalf("Resume after restart: %v", err)
	}
	if res.Step != "identity_shifting_intro" {
		t.Fatalf("resumed at %s, want identity_shifting_intro", res.Step)
	}
	if len(res.Transcript) != 2 {
		t.Fatalf("transcript = %d turns, want 2", len(res.Transcript))
	}

	// The resumed engine keeps working from where the first one stopped,
	// including the problem statement loaded from disk.
	r, err := e2.Continue(context.Background(), "s1", "u1", "a small scared person")
	if err != nil {
		t.Fatalf("Continue after resume: %v", err)
	}
	if r.NextStep != "identity_shifting_dissolve_a" {
		t.Fatalf("post-resume turn landed at %s", r.NextStep)
	}
}
