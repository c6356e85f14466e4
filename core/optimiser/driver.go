package optimiser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/depotcharge/core/events"
	"github.com/kilianp07/depotcharge/core/logger"
	"github.com/kilianp07/depotcharge/core/lpmodel"
	"github.com/kilianp07/depotcharge/core/metrics"
	"github.com/kilianp07/depotcharge/core/model"
	"github.com/kilianp07/depotcharge/core/schedule"
	"github.com/kilianp07/depotcharge/internal/eventbus"
)

// DayLevel is the level a charging day was settled at.
type DayLevel struct {
	Date  time.Time   `json:"date"`
	Level model.Level `json:"level"`
}

// RangeInput is a multi-day planning request for one scenario.
type RangeInput struct {
	Rows     []model.Row
	Fleet    model.Fleet
	Scenario Scenario
	// Initial is the relative charge at the start of the range. Nil means
	// every vehicle starts full.
	Initial State
}

// RangeResult is the outcome of a rolling range run.
type RangeResult struct {
	Category model.Category
	Rows     []model.OutputRow
	Days     []*DayResult
	// BadDays lists one line per fallback taken.
	BadDays     string
	Levels      []DayLevel
	LastProblem *lpmodel.Model
	State       State
}

// LevelCounts returns how many days were settled at each level.
func (r *RangeResult) LevelCounts() map[model.Level]int {
	out := make(map[model.Level]int, len(model.Levels))
	for _, l := range model.Levels {
		out[l] = 0
	}
	for _, d := range r.Levels {
		out[d.Level]++
	}
	return out
}

// Driver runs the ladder day by day over a horizon.
type Driver struct {
	engine  *Engine
	ladder  *Ladder
	logger  logger.Logger
	bus     eventbus.EventBus
	sink    metrics.MetricsSink
	runID   string
	ladders []Formulation
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(d *Driver) { d.logger = logger.OrNop(l) } }

// WithBus publishes attempt, day and range events on bus.
func WithBus(bus eventbus.EventBus) Option { return func(d *Driver) { d.bus = bus } }

// WithMetrics records every settled day on sink.
func WithMetrics(sink metrics.MetricsSink) Option { return func(d *Driver) { d.sink = sink } }

// WithRunID tags events and records with id.
func WithRunID(id string) Option { return func(d *Driver) { d.runID = id } }

// WithFormulations overrides the ladder order.
func WithFormulations(fs ...Formulation) Option { return func(d *Driver) { d.ladders = fs } }

// NewDriver returns a driver using engine for every day.
func NewDriver(engine *Engine, opts ...Option) *Driver {
	d := &Driver{engine: engine, logger: logger.Nop{}, sink: metrics.NopSink{}}
	for _, o := range opts {
		o(d)
	}
	d.ladder = NewLadder(engine, d.ladders, d.logger, d.bus)
	return d
}

// OptimiseRange plans every charging-window date from the first to the last
// one present in the rows, strictly in order. Dates without rows are
// labelled Empty and not solved. The state of each vehicle after a day is
// the entering state of the next one. When ctx is cancelled between days the
// partial result is returned with the context error.
func (d *Driver) OptimiseRange(ctx context.Context, in RangeInput) (*RangeResult, error) {
	start := time.Now()
	p := d.engine.Params()
	res := &RangeResult{Category: in.Scenario.Category, State: in.Initial.Clone()}
	if in.Initial == nil {
		res.State = NewState(in.Fleet)
	}
	for _, r := range in.Rows {
		if _, ok := in.Fleet[r.VehicleID]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownVehicle, r.VehicleID)
		}
	}
	if len(in.Rows) == 0 {
		return res, nil
	}

	byDay := schedule.GroupByDay(in.Rows, p.WindowStart)
	dates := schedule.Dates(in.Rows, p.WindowStart)
	var notes []string
	var err error
	for _, date := range schedule.DateRange(dates[0], dates[len(dates)-1]) {
		if err = ctx.Err(); err != nil {
			break
		}
		rows := byDay[date]
		if len(rows) == 0 {
			d.settle(res, &DayResult{Date: date, Category: in.Scenario.Category, Level: model.LevelEmpty}, 0)
			continue
		}
		day := d.dayInput(byDay, date, in, res.State)
		out, attempts, lerr := d.ladder.Run(ctx, day)
		if lerr != nil {
			err = lerr
			break
		}
		for i := len(attempts) - 1; i >= 0; i-- {
			if attempts[i].Problem != nil {
				res.LastProblem = attempts[i].Problem
				break
			}
		}
		out.Problem = nil
		if out.Note != "" {
			notes = append(notes, out.Note)
		}
		res.Rows = append(res.Rows, out.Rows...)
		res.State = res.State.Advance(out)
		d.settle(res, out, len(attempts))
	}
	res.BadDays = strings.Join(notes, "\n")
	d.finish(res, time.Since(start), err)
	return res, err
}

func (d *Driver) dayInput(byDay map[time.Time][]model.Row, date time.Time, in RangeInput, entering State) DayInput {
	return DayInput{
		Date:     date,
		Rows:     byDay[date],
		Fleet:    in.Fleet,
		Scenario: in.Scenario,
		Entering: entering,
		Required: d.requirement(byDay[date.AddDate(0, 0, 1)], in.Fleet),
	}
}

// PrepareDay returns the input solved for date when the day is entered with
// the given state. The rows of in may span the whole horizon.
func (d *Driver) PrepareDay(in RangeInput, date time.Time, entering State) DayInput {
	byDay := schedule.GroupByDay(in.Rows, d.engine.Params().WindowStart)
	return d.dayInput(byDay, date, in, entering)
}

// requirement returns the end-of-day relative charge each vehicle needs to
// cover the journeys of the following day.
func (d *Driver) requirement(next []model.Row, fleet model.Fleet) map[model.VehicleID]float64 {
	need := make(map[model.VehicleID]float64)
	for _, r := range next {
		need[r.VehicleID] -= r.BatteryUseKWh
	}
	margin := 1 + d.engine.Params().NextDayMargin
	req := make(map[model.VehicleID]float64, len(need))
	for id, n := range need {
		r := margin*n - fleet[id].BatteryKWh
		if r > 0 {
			r = 0
		}
		req[id] = r
	}
	return req
}

func (d *Driver) settle(res *RangeResult, day *DayResult, attempts int) {
	res.Days = append(res.Days, day)
	res.Levels = append(res.Levels, DayLevel{Date: day.Date, Level: day.Level})
	dayLevels.WithLabelValues(day.Category.String(), day.Level.String()).Inc()
	if err := d.sink.RecordDay(metrics.DayRecord{
		RunID:     d.runID,
		Category:  day.Category,
		Date:      day.Date,
		Level:     day.Level,
		EnergyKWh: day.EnergyKWh,
		Cost:      day.Cost,
		Vehicles:  len(day.EndState),
		Attempts:  attempts,
		Duration:  day.Duration,
		Time:      time.Now(),
	}); err != nil {
		d.logger.Warnf("record day %s: %v", day.Date.Format(time.DateOnly), err)
	}
	if d.bus != nil {
		d.bus.Publish(events.DayEvent{
			RunID:     d.runID,
			Category:  day.Category,
			Date:      day.Date,
			Level:     day.Level,
			EnergyKWh: day.EnergyKWh,
			Cost:      day.Cost,
			Note:      day.Note,
		})
	}
}

func (d *Driver) finish(res *RangeResult, elapsed time.Duration, err error) {
	counts := res.LevelCounts()
	var energy, cost float64
	for _, day := range res.Days {
		energy += day.EnergyKWh
		cost += day.Cost
	}
	d.logger.Infof("%s range done: %d days, levels %v, %.1f kWh in %s", res.Category, len(res.Days), counts, energy, elapsed)
	if rr, ok := d.sink.(metrics.RangeRecorder); ok {
		if rerr := rr.RecordRange(metrics.RangeRecord{
			RunID:     d.runID,
			Category:  res.Category,
			Days:      len(res.Days),
			Levels:    counts,
			EnergyKWh: energy,
			Cost:      cost,
			Duration:  elapsed,
			Time:      time.Now(),
		}); rerr != nil {
			d.logger.Warnf("record range: %v", rerr)
		}
	}
	if d.bus != nil {
		d.bus.Publish(events.RangeEvent{
			RunID:    d.runID,
			Category: res.Category,
			Days:     len(res.Days),
			Levels:   counts,
			Duration: elapsed,
			Err:      err,
		})
	}
}
