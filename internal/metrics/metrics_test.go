package metrics

import (
	"sync"
	"testing"
)

func TestSnapshotRates(t *testing.T) {
	c := NewCollector()

	for i := 0; i < 18; i++ {
		c.RecordScripted()
	}
	c.RecordAIAssisted()
	c.RecordAIAssisted()
	for i := 0; i < 3; i++ {
		c.RecordCacheHit()
	}
	c.RecordCacheMiss()

	s := c.Snapshot()
	if s.ScriptedResponses != 18 || s.AIAssistedResponses != 2 {
		t.Fatalf("counters = %+v", s)
	}
	if s.AIUsageRate != 10 {
		t.Fatalf("AI usage rate = %.2f, want 10", s.AIUsageRate)
	}
	if s.CacheHitRate != 75 {
		t.Fatalf("cache hit rate = %.2f, want 75", s.CacheHitRate)
	}
}

func TestEmptySnapshot(t *testing.T) {
	s := NewCollector().Snapshot()
	if s.AIUsageRate != 0 || s.CacheHitRate != 0 {
		t.Fatalf("empty collector rates = %+v", s)
	}
}

func TestConcurrentRecording(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordScripted()
			c.RecordCacheHit()
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	if s.ScriptedResponses != 50 || s.CacheHits != 50 {
		t.Fatalf("counters = %+v", s)
	}
}
