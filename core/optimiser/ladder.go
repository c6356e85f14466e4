package optimiser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/depotcharge/core/events"
	"github.com/kilianp07/depotcharge/core/logger"
	"github.com/kilianp07/depotcharge/core/lpmodel"
	"github.com/kilianp07/depotcharge/core/model"
	"github.com/kilianp07/depotcharge/internal/eventbus"
)

// Attempt is one rung of the ladder tried for a day.
type Attempt struct {
	Level    model.Level
	Result   *DayResult
	Problem  *lpmodel.Model
	Err      error
	Duration time.Duration
}

// Ladder tries formulations in order until one solves, then falls back to
// Magic charging.
type Ladder struct {
	engine       *Engine
	formulations []Formulation
	logger       logger.Logger
	bus          eventbus.EventBus
}

// NewLadder returns a ladder over formulations. A nil slice selects
// DefaultLadder.
func NewLadder(engine *Engine, formulations []Formulation, log logger.Logger, bus eventbus.EventBus) *Ladder {
	if formulations == nil {
		formulations = DefaultLadder
	}
	return &Ladder{engine: engine, formulations: formulations, logger: logger.OrNop(log), bus: bus}
}

// Run settles one day. The returned result always carries a level; an error
// is only returned for unknown vehicles or a cancelled context.
func (l *Ladder) Run(ctx context.Context, in DayInput) (*DayResult, []Attempt, error) {
	var (
		attempts []Attempt
		notes    []string
	)
	date := in.Date.Format(time.DateOnly)
	for _, f := range l.formulations {
		start := time.Now()
		res, err := l.engine.SolveDay(ctx, in, f)
		a := Attempt{Level: f.Level(), Result: res, Err: err, Duration: time.Since(start)}
		var se *SolveError
		if errors.As(err, &se) {
			a.Problem = se.Problem
		} else if res != nil {
			a.Problem = res.Problem
		}
		attempts = append(attempts, a)
		l.publish(in, a)
		if err == nil {
			res.Note = strings.Join(notes, "\n")
			return res, attempts, nil
		}
		if errors.Is(err, ErrUnknownVehicle) {
			return nil, attempts, err
		}
		if ctx.Err() != nil {
			return nil, attempts, ctx.Err()
		}
		l.logger.Infof("%s %s: %s infeasible: %v", date, in.Scenario.Category, f, err)
		notes = append(notes, fmt.Sprintf("%s %s: %s infeasible (%v)", date, in.Scenario.Category, f, cause(err)))
	}

	start := time.Now()
	res, err := l.engine.Magic(in)
	if err != nil {
		return nil, attempts, err
	}
	a := Attempt{Level: model.LevelMagic, Result: res, Duration: time.Since(start)}
	attempts = append(attempts, a)
	l.publish(in, a)
	l.logger.Warnf("%s %s: falling back to magic charging", date, in.Scenario.Category)
	res.Note = strings.Join(append(notes, res.Note), "\n")
	return res, attempts, nil
}

func (l *Ladder) publish(in DayInput, a Attempt) {
	if l.bus == nil {
		return
	}
	l.bus.Publish(events.AttemptEvent{
		Category: in.Scenario.Category,
		Date:     in.Date,
		Level:    a.Level,
		Err:      a.Err,
		Duration: a.Duration,
	})
}

// cause strips the formulation prefix of a SolveError.
func cause(err error) error {
	var se *SolveError
	if errors.As(err, &se) {
		return se.Err
	}
	return err
}
