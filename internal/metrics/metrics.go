// Package metrics keeps process-local performance counters for the engine:
// scripted vs AI-assisted responses and preload cache effectiveness. Not a
// correctness-critical component; counters reset on process restart.
package metrics

import "sync"

// Collector maintains the per-process counters.
type Collector struct {
	mu          sync.Mutex
	scripted    uint64
	aiAssisted  uint64
	cacheHits   uint64
	cacheMisses uint64
}

// NewCollector returns a zeroed collector.
func NewCollector() *Collector { return &Collector{} }

// RecordScripted counts a turn answered purely from scripted templates.
func (c *Collector) RecordScripted() {
	c.mu.Lock()
	c.scripted++
	c.mu.Unlock()
}

// RecordAIAssisted counts a turn where the AI gateway shaped the response.
func (c *Collector) RecordAIAssisted() {
	c.mu.Lock()
	c.aiAssisted++
	c.mu.Unlock()
}

// RecordCacheHit counts a response served from the preload cache.
func (c *Collector) RecordCacheHit() {
	c.mu.Lock()
	c.cacheHits++
	c.mu.Unlock()
}

// RecordCacheMiss counts a response that needed template substitution.
func (c *Collector) RecordCacheMiss() {
	c.mu.Lock()
	c.cacheMisses++
	c.mu.Unlock()
}

// Snapshot is a read-only view exposed alongside every processing result.
type Snapshot struct {
	ScriptedResponses   uint64  `json:"scriptedResponses"`
	AIAssistedResponses uint64  `json:"aiAssistedResponses"`
	CacheHits           uint64  `json:"cacheHits"`
	CacheMisses         uint64  `json:"cacheMisses"`
	CacheHitRate        float64 `json:"cacheHitRate"` // percent
	AIUsageRate         float64 `json:"aiUsageRate"`  // percent of responses
}

// Snapshot returns the current counter values with derived rates.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		ScriptedResponses:   c.scripted,
		AIAssistedResponses: c.aiAssisted,
		CacheHits:           c.cacheHits,
		CacheMisses:         c.cacheMisses,
	}
	if lookups := c.cacheHits + c.cacheMisses; lookups > 0 {
		s.CacheHitRate = float64(c.cacheHits) / float64(lookups) * 100
	}
	if responses := c.scripted + c.aiAssisted; responses > 0 {
		s.AIUsageRate = float64(c.aiAssisted) / float64(responses) * 100
	}
	return s
}
