package usage

import (
	"os"
	"testing"
)

func TestTrackAccumulates(t *testing.T) {
	tr, err := NewTracker(t.TempDir())
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}

	tr.Track("s1", "gemini-2.5-flash", "linguistic", 100, 50)
	tr.Track("s1", "gemini-2.5-flash", "validation", 200, 20)
	tr.Track("s2", "gemini-2.5-flash", "linguistic", 10, 5)

	stats := tr.Stats()
	if stats.Total.Total != 385 {
		t.Fatalf("total tokens = %d, want 385", stats.Total.Total)
	}
	if got := stats.BySession["s1"].Total; got != 370 {
		t.Fatalf("s1 tokens = %d, want 370", got)
	}
	if got := stats.ByOperation["validation"].Input; got != 200 {
		t.Fatalf("validation input = %d, want 200", got)
	}
}

func TestTrackReturnsCost(t *testing.T) {
	tr, err := NewTracker(t.TempDir())
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}

	cost := tr.Track("s1", "gemini-2.5-flash", "linguistic", 1_000_000, 1_000_000)
	want := 0.30 + 2.50
	if cost != want {
		t.Fatalf("cost = %f, want %f", cost, want)
	}
}

func TestUnknownModelUsesFlashRates(t *testing.T) {
	if got, want := estimateCost("mystery-model", 1_000_000, 0), 0.30; got != want {
		t.Fatalf("cost = %f, want %f", got, want)
	}
}

func TestSessionCounts(t *testing.T) {
	tr, _ := NewTracker(t.TempDir())
	tr.Track("s1", "gemini-2.5-flash", "linguistic", 100, 50)

	counts := tr.SessionCounts("s1")
	if counts.Input != 100 || counts.Output != 50 || counts.Total != 150 {
		t.Fatalf("counts = %+v", counts)
	}
	if other := tr.SessionCounts("never-seen"); other.Total != 0 {
		t.Fatalf("unknown session counts = %+v", other)
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()

	tr, _ := NewTracker(dir)
	tr.Track("s1", "gemini-2.5-flash", "linguistic", 100, 50)
	if err := tr.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := NewTracker(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := reloaded.SessionCounts("s1").Total; got != 150 {
		t.Fatalf("reloaded s1 tokens = %d, want 150", got)
	}
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	tr, _ := NewTracker(dir)
	if err := os.WriteFile(tr.filePath, []byte("{not json"), 0644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	tr2, err := NewTracker(dir)
	if err != nil {
		t.Fatalf("NewTracker with corrupt file: %v", err)
	}
	if tr2.Stats().Total.Total != 0 {
		t.Fatal("corrupt file should start the tracker empty")
	}
}
