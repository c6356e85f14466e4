package events

import (
	"time"

	"github.com/kilianp07/depotcharge/core/model"
)

// AttemptEvent is published after each formulation tried for a day. Err is
// nil when the attempt produced the plan kept for the day.
type AttemptEvent struct {
	Category model.Category
	Date     time.Time
	Level    model.Level
	Err      error
	Duration time.Duration
}
