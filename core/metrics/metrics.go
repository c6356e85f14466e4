package metrics

import (
	"time"

	"github.com/kilianp07/depotcharge/core/model"
)

// DayRecord is the outcome of one charging day.
type DayRecord struct {
	RunID     string
	Category  model.Category
	Date      time.Time
	Level     model.Level
	EnergyKWh float64
	Cost      float64
	Vehicles  int
	// Attempts is the number of formulations tried, Magic included.
	Attempts int
	Duration time.Duration
	Time     time.Time
}

// RangeRecord summarises a rolling range run.
type RangeRecord struct {
	RunID     string
	Category  model.Category
	Days      int
	Levels    map[model.Level]int
	EnergyKWh float64
	Cost      float64
	Duration  time.Duration
	Time      time.Time
}

// MetricsSink records planning results for observability purposes.
type MetricsSink interface {
	RecordDay(rec DayRecord) error
}

// RangeRecorder is implemented by sinks able to record range summaries.
type RangeRecorder interface {
	RecordRange(rec RangeRecord) error
}

// AttemptRecord describes one formulation attempt of the fallback ladder.
type AttemptRecord struct {
	Category model.Category
	Date     time.Time
	Level    model.Level
	Failed   bool
	Duration time.Duration
}

// AttemptRecorder is implemented by sinks tracking individual solver attempts.
type AttemptRecorder interface {
	RecordAttempt(rec AttemptRecord) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordDay(DayRecord) error         { return nil }
func (NopSink) RecordRange(RangeRecord) error     { return nil }
func (NopSink) RecordAttempt(AttemptRecord) error { return nil }
