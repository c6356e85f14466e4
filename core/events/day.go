package events

import (
	"time"

	"github.com/kilianp07/depotcharge/core/model"
)

// DayEvent is published once a charging day has been settled.
type DayEvent struct {
	RunID    string
	Category model.Category
	Date     time.Time
	Level    model.Level
	// EnergyKWh is the grid energy planned for the day.
	EnergyKWh float64
	Cost      float64
	Note      string
}

// RangeEvent is published at the end of a rolling range run.
type RangeEvent struct {
	RunID    string
	Category model.Category
	Days     int
	Levels   map[model.Level]int
	Duration time.Duration
	Err      error
}
