// Package runlog persists one record per planning run so sweeps can be
// compared after the fact. Records are stored as JSON lines, in a rotating
// JSON lines file or in SQLite.
package runlog

import (
	"context"
	"time"

	"github.com/kilianp07/depotcharge/core/model"
)

// Record describes one scenario run.
type Record struct {
	RunID        string         `json:"run_id"`
	Timestamp    time.Time      `json:"timestamp"`
	Scenario     string         `json:"scenario"`
	Category     model.Category `json:"category"`
	SlowKW       float64        `json:"slow_kw"`
	FastKW       float64        `json:"fast_kw"`
	FastChargers int            `json:"fast_chargers"`
	CapacityKW   float64        `json:"capacity_kw"`
	Days         int            `json:"days"`
	Levels       map[string]int `json:"levels"`
	EnergyKWh    float64        `json:"energy_kwh"`
	Cost         float64        `json:"cost"`
	BadDays      string         `json:"bad_days,omitempty"`
	DurationMS   int64          `json:"duration_ms"`
	Error        string         `json:"error,omitempty"`
}

// Query filters records. Zero fields match everything.
type Query struct {
	Start    time.Time
	End      time.Time
	RunID    string
	Scenario string
}

// Match reports whether r satisfies q.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.RunID != "" && r.RunID != q.RunID {
		return false
	}
	return q.Scenario == "" || r.Scenario == q.Scenario
}

// Store persists run records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
