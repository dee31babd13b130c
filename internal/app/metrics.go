package app

import (
	"sync/atomic"
	"time"

	"github.com/dshills/sketchpad/internal/history"
)

// Metrics counts history and document operations.
type Metrics struct {
	records   atomic.Uint64
	undos     atomic.Uint64
	redos     atomic.Uint64
	clears    atomic.Uint64
	resets    atomic.Uint64
	exhausted atomic.Uint64
	saves     atomic.Uint64
	reloads   atomic.Uint64

	// Deepest history seen.
	maxDepth atomic.Int64

	startTime time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordStatus counts one history operation.
func (m *Metrics) RecordStatus(st history.Status) {
	if !st.OK() {
		m.exhausted.Add(1)
		return
	}
	switch st.Action {
	case history.ActionRecord:
		m.records.Add(1)
	case history.ActionUndo:
		m.undos.Add(1)
	case history.ActionRedo:
		m.redos.Add(1)
	case history.ActionClear:
		m.clears.Add(1)
	case history.ActionReset:
		m.resets.Add(1)
	}

	depth := int64(st.HistoryLen)
	for {
		old := m.maxDepth.Load()
		if depth <= old || m.maxDepth.CompareAndSwap(old, depth) {
			break
		}
	}
}

// RecordSave counts a saved document.
func (m *Metrics) RecordSave() {
	m.saves.Add(1)
}

// RecordReload counts an applied configuration reload.
func (m *Metrics) RecordReload() {
	m.reloads.Add(1)
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Records   uint64
	Undos     uint64
	Redos     uint64
	Clears    uint64
	Resets    uint64
	Exhausted uint64
	Saves     uint64
	Reloads   uint64
	MaxDepth  int
	Uptime    time.Duration
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Records:   m.records.Load(),
		Undos:     m.undos.Load(),
		Redos:     m.redos.Load(),
		Clears:    m.clears.Load(),
		Resets:    m.resets.Load(),
		Exhausted: m.exhausted.Load(),
		Saves:     m.saves.Load(),
		Reloads:   m.reloads.Load(),
		MaxDepth:  int(m.maxDepth.Load()),
		Uptime:    time.Since(m.startTime),
	}
}

// Attrs renders the counters as slog key-value pairs.
func (s MetricsSnapshot) Attrs() []any {
	return []any{
		"records", s.Records,
		"undos", s.Undos,
		"redos", s.Redos,
		"clears", s.Clears,
		"exhausted", s.Exhausted,
		"saves", s.Saves,
		"max_depth", s.MaxDepth,
		"uptime", s.Uptime.Round(time.Millisecond),
	}
}
