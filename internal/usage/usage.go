// Package usage records AI token consumption and estimated cost per
// session, persisted as JSON under the data directory.
package usage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TokenCounts holds input/output sums plus an estimated cost.
type TokenCounts struct {
	Input  int64   `json:"input"`
	Output int64   `json:"output"`
	Total  int64   `json:"total"`
	Cost   float64 `json:"cost_est_usd"`
}

func (tc *TokenCounts) add(input, output int, cost float64) {
	tc.Input += int64(input)
	tc.Output += int64(output)
	tc.Total += int64(input + output)
	tc.Cost += cost
}

// Stats holds counters broken down by dimension.
type Stats struct {
	Total       TokenCounts            `json:"total"`
	BySession   map[string]TokenCounts `json:"by_session"`
	ByOperation map[string]TokenCounts `json:"by_operation"` // linguistic, validation
	ByModel     map[string]TokenCounts `json:"by_model"`
}

// usageData is the persisted root structure.
type usageData struct {
	Version   string `json:"version"`
	Aggregate Stats  `json:"aggregate"`
}

// costPerMTok estimates USD cost per million tokens (input, output).
// Unknown models fall back to the flash rate.
var costPerMTok = map[string][2]float64{
	"gemini-2.5-flash": {0.30, 2.50},
	"gemini-2.5-pro":   {1.25, 10.00},
}

func estimateCost(model string, input, output int) float64 {
	rates, ok := costPerMTok[model]
	if !ok {
		rates = costPerMTok["gemini-2.5-flash"]
	}
	return float64(input)/1e6*rates[0] + float64(output)/1e6*rates[1]
}

// Tracker manages token usage recording and persistence.
type Tracker struct {
	mu       sync.Mutex
	data     usageData
	filePath string
	dirty    bool
}

// NewTracker creates a tracker persisting to <dataDir>/usage.json.
func NewTracker(dataDir string) (*Tracker, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	t := &Tracker{
		filePath: filepath.Join(dataDir, "usage.json"),
		data: usageData{
			Version: "1.0",
			Aggregate: Stats{
				BySession:   make(map[string]TokenCounts),
				ByOperation: make(map[string]TokenCounts),
				ByModel:     make(map[string]TokenCounts),
			},
		},
	}

	// Corrupt or missing files start the tracker empty; usage data is
	// reporting, never correctness.
	_ = t.load()

	return t, nil
}

func (t *Tracker) load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &t.data); err != nil {
		return err
	}

	if t.data.Aggregate.BySession == nil {
		t.data.Aggregate.BySession = make(map[string]TokenCounts)
	}
	if t.data.Aggregate.ByOperation == nil {
		t.data.Aggregate.ByOperation = make(map[string]TokenCounts)
	}
	if t.data.Aggregate.ByModel == nil {
		t.data.Aggregate.ByModel = make(map[string]TokenCounts)
	}
	return nil
}

// Save writes the usage data to disk.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.saveLocked()
}

func (t *Tracker) saveLocked() error {
	data, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(t.filePath, data, 0644)
}

// Track records one AI call against a session. Returns the estimated cost
// of the call so callers can report it on the turn result.
func (t *Tracker) Track(sessionID, model, operation string, input, output int) float64 {
	cost := estimateCost(model, input, output)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.Aggregate.Total.add(input, output, cost)
	addToMap(t.data.Aggregate.BySession, sessionID, input, output, cost)
	addToMap(t.data.Aggregate.ByOperation, operation, input, output, cost)
	addToMap(t.data.Aggregate.ByModel, model, input, output, cost)

	// Debounced auto-save.
	if !t.dirty {
		t.dirty = true
		time.AfterFunc(5*time.Second, func() {
			_ = t.Save()
			t.mu.Lock()
			t.dirty = false
			t.mu.Unlock()
		})
	}

	return cost
}

// Stats returns a copy of the aggregated stats.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := t.data.Aggregate
	stats.BySession = copyMap(stats.BySession)
	stats.ByOperation = copyMap(stats.ByOperation)
	stats.ByModel = copyMap(stats.ByModel)
	return stats
}

// SessionCounts returns the totals recorded for one session.
func (t *Tracker) SessionCounts(sessionID string) TokenCounts {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data.Aggregate.BySession[sessionID]
}

func addToMap(m map[string]TokenCounts, key string, input, output int, cost float64) {
	entry := m[key]
	entry.add(input, output, cost)
	m[key] = entry
}

func copyMap(src map[string]TokenCounts) map[string]TokenCounts {
	dst := make(map[string]TokenCounts, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
