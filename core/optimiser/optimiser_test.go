package optimiser

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/depotcharge/core/events"
	"github.com/kilianp07/depotcharge/core/lpmodel"
	"github.com/kilianp07/depotcharge/core/metrics"
	"github.com/kilianp07/depotcharge/core/model"
	"github.com/kilianp07/depotcharge/core/schedule"
	"github.com/kilianp07/depotcharge/internal/eventbus"
)

func ts(day, hour, min int) time.Time {
	return time.Date(2021, 3, day, hour, min, 0, 0, time.UTC)
}

// testPrices is 0.10 per kWh except a cheap 02:00-05:00 band at 0.05.
func testPrices() []model.PricePoint {
	var out []model.PricePoint
	for t := ts(1, 0, 0); t.Before(ts(8, 0, 0)); t = t.Add(30 * time.Minute) {
		p := 0.1
		if h := t.Hour(); h >= 2 && h < 5 {
			p = 0.05
		}
		out = append(out, model.PricePoint{From: t, Price: p})
	}
	return out
}

func testFleet(t *testing.T, ids ...model.VehicleID) model.Fleet {
	t.Helper()
	vs := make([]model.Vehicle, len(ids))
	for i, id := range ids {
		vs[i] = model.Vehicle{ID: id, Model: "van"}
	}
	f, err := model.NewFleet(vs, map[string]model.VehicleSpec{"van": {BatteryKWh: 75, Efficiency: 0.9}})
	require.NoError(t, err)
	return f
}

func buildRows(t *testing.T, journeys ...model.Journey) []model.Row {
	t.Helper()
	rows, err := schedule.Build(journeys, testPrices(), schedule.DefaultConfig())
	require.NoError(t, err)
	return rows
}

func newDriver(t *testing.T, p Params, opts ...Option) *Driver {
	t.Helper()
	ResetMetrics(nil)
	e, err := NewEngine(p, nil)
	require.NoError(t, err)
	return NewDriver(e, opts...)
}

func energyOf(rows []model.OutputRow, id model.VehicleID) float64 {
	var sum float64
	for _, r := range rows {
		if r.VehicleID == id {
			sum += r.EnergyKWh
		}
	}
	return sum
}

// assertSOC replays the plan and checks the battery never exceeds full nor
// drops below empty.
func assertSOC(t *testing.T, in []model.Row, out []model.OutputRow, fleet model.Fleet, eps float64) {
	t.Helper()
	rel := make(map[model.VehicleID]float64)
	for i, r := range in {
		v := fleet[r.VehicleID]
		arrive := rel[r.VehicleID] + r.BatteryUseKWh
		assert.GreaterOrEqual(t, arrive, -v.BatteryKWh-1e-6, "empty battery at %s", r.Slot)
		rel[r.VehicleID] = arrive + v.Efficiency*out[i].EnergyKWh
		assert.LessOrEqual(t, rel[r.VehicleID], eps+1e-6, "overfull battery at %s", r.Slot)
	}
}

func TestOptimiseRange_SingleVehicle(t *testing.T) {
	fleet := testFleet(t, "v1")
	rows := buildRows(t, model.Journey{VehicleID: "v1", Start: ts(1, 13, 0), End: ts(1, 17, 0), EnergyKWh: 30})
	d := newDriver(t, DefaultParams())

	res, err := d.OptimiseRange(context.Background(), RangeInput{
		Rows: rows, Fleet: fleet, Scenario: NewScenario(model.CategoryOpt, model.ConstantCapacity(100)),
	})
	require.NoError(t, err)
	require.Len(t, res.Levels, 1)
	assert.Equal(t, model.LevelMain, res.Levels[0].Level)
	assert.Empty(t, res.BadDays)
	require.Len(t, res.Rows, len(rows))

	assert.InDelta(t, 30/0.9, energyOf(res.Rows, "v1"), 1e-4)
	assert.InDelta(t, 0, res.State["v1"], 1e-4)
	// cheap band first: six slots at 3.5 kWh, the rest at full price
	assert.InDelta(t, 21*0.05+(30/0.9-21)*0.1, res.Days[0].Cost, 1e-4)
	for _, r := range res.Rows {
		assert.LessOrEqual(t, r.PowerKW, 7+1e-6)
		assert.InDelta(t, r.EnergyKWh/0.5, r.PowerKW, 1e-9)
	}
	assertSOC(t, rows, res.Rows, fleet, DefaultParams().Epsilon)
	require.NotNil(t, res.LastProblem)
	assert.Nil(t, res.Days[0].Problem)
}

func TestOptimiseRange_SharedCapacity(t *testing.T) {
	fleet := testFleet(t, "v1", "v2")
	rows := buildRows(t,
		model.Journey{VehicleID: "v1", Start: ts(1, 13, 0), End: ts(1, 17, 0), EnergyKWh: 30},
		model.Journey{VehicleID: "v2", Start: ts(1, 14, 0), End: ts(1, 18, 0), EnergyKWh: 30},
	)
	d := newDriver(t, DefaultParams())
	res, err := d.OptimiseRange(context.Background(), RangeInput{
		Rows: rows, Fleet: fleet, Scenario: NewScenario(model.CategoryOpt, model.ConstantCapacity(10)),
	})
	require.NoError(t, err)
	assert.Equal(t, model.LevelMain, res.Levels[0].Level)

	perSlot := make(map[int64]float64)
	for _, r := range res.Rows {
		perSlot[r.Slot.Unix()] += r.EnergyKWh
	}
	for slot, e := range perSlot {
		assert.LessOrEqual(t, e, 10*0.5+1e-6, "slot %s", time.Unix(slot, 0).UTC())
	}
	assert.InDelta(t, 30/0.9, energyOf(res.Rows, "v1"), 1e-4)
	assert.InDelta(t, 30/0.9, energyOf(res.Rows, "v2"), 1e-4)
	assertSOC(t, rows, res.Rows, fleet, DefaultParams().Epsilon)
}

func TestOptimiseRange_BAUIgnoresCapacity(t *testing.T) {
	fleet := testFleet(t, "v1")
	rows := buildRows(t, model.Journey{VehicleID: "v1", Start: ts(1, 13, 0), End: ts(1, 17, 0), EnergyKWh: 30})
	d := newDriver(t, DefaultParams())
	res, err := d.OptimiseRange(context.Background(), RangeInput{
		Rows: rows, Fleet: fleet, Scenario: NewScenario(model.CategoryBAU, model.ConstantCapacity(1)),
	})
	require.NoError(t, err)
	assert.Equal(t, model.LevelMain, res.Levels[0].Level)
	// BAU prices rise through the day so charging starts on return
	var first model.OutputRow
	for _, r := range res.Rows {
		if r.EnergyKWh > 1e-3 {
			first = r
			break
		}
	}
	assert.Equal(t, ts(1, 17, 0), first.Slot)
	assert.InDelta(t, 3.5, first.EnergyKWh, 1e-6)
}

func TestOptimiseRange_EscalatesToMagic(t *testing.T) {
	fleet := testFleet(t, "v1")
	rows := buildRows(t,
		model.Journey{VehicleID: "v1", Start: ts(1, 12, 0), End: ts(2, 10, 0), EnergyKWh: 70},
		model.Journey{VehicleID: "v1", Start: ts(2, 13, 0), End: ts(2, 17, 0), EnergyKWh: 60},
	)
	bus := eventbus.New()
	sub := bus.Subscribe()
	d := newDriver(t, DefaultParams(), WithBus(bus))

	res, err := d.OptimiseRange(context.Background(), RangeInput{
		Rows: rows, Fleet: fleet, Scenario: NewScenario(model.CategoryOpt, model.ConstantCapacity(100)),
	})
	require.NoError(t, err)
	require.Len(t, res.Levels, 2)
	assert.Equal(t, model.LevelMagic, res.Levels[0].Level)
	assert.Equal(t, model.LevelMain, res.Levels[1].Level)
	assert.Contains(t, res.BadDays, "Magic!")
	assert.Contains(t, res.BadDays, "Main infeasible")
	assert.Contains(t, res.BadDays, "Tonext infeasible")
	assert.Contains(t, res.BadDays, "Breach infeasible")
	assert.Equal(t, 1, res.LevelCounts()[model.LevelMagic])
	// magic tops the battery up so the second day starts full
	assert.InDelta(t, 0, res.Days[0].EndState["v1"], 1e-9)
	assert.InDelta(t, 0, res.State["v1"], 1e-4)
	require.NotNil(t, res.LastProblem)

	bus.Close()
	var levels []model.Level
	for ev := range sub {
		if a, ok := ev.(events.AttemptEvent); ok && a.Date.Equal(ts(1, 0, 0)) {
			levels = append(levels, a.Level)
		}
	}
	assert.Equal(t, []model.Level{model.LevelMain, model.LevelTonext, model.LevelBreach, model.LevelMagic}, levels)
}

func TestOptimiseRange_EmptyDayAndPropagation(t *testing.T) {
	fleet := testFleet(t, "v1")
	rows := buildRows(t,
		model.Journey{VehicleID: "v1", Start: ts(1, 13, 0), End: ts(1, 17, 0), EnergyKWh: 20},
		model.Journey{VehicleID: "v1", Start: ts(3, 13, 0), End: ts(3, 17, 0), EnergyKWh: 20},
	)
	sink := &recordingSink{}
	d := newDriver(t, DefaultParams(), WithMetrics(sink), WithRunID("run-1"))
	res, err := d.OptimiseRange(context.Background(), RangeInput{
		Rows:     rows,
		Fleet:    fleet,
		Scenario: NewScenario(model.CategoryOpt, model.ConstantCapacity(100)),
		Initial:  State{"v1": -10},
	})
	require.NoError(t, err)
	require.Len(t, res.Levels, 3)
	assert.Equal(t, model.LevelEmpty, res.Levels[1].Level)
	assert.Equal(t, ts(2, 0, 0), res.Levels[1].Date)
	assert.Empty(t, res.Days[1].Rows)

	// entering deficit is made up on the first day
	assert.InDelta(t, 30/0.9, energyOf(res.Rows[:len(rows)/2], "v1"), 1e-4)
	assert.Len(t, sink.days, 3)
	assert.Equal(t, "run-1", sink.days[0].RunID)
	require.Len(t, sink.ranges, 1)
	assert.Equal(t, 1, sink.ranges[0].Levels[model.LevelEmpty])
}

func TestOptimiseRange_TwoTier(t *testing.T) {
	fleet := testFleet(t, "v1")
	rows := buildRows(t, model.Journey{VehicleID: "v1", Start: ts(1, 13, 0), End: ts(2, 8, 0), EnergyKWh: 30})
	p := DefaultParams()
	p.FastKW = 22
	p.FastChargers = 1

	res, err := newDriver(t, p).OptimiseRange(context.Background(), RangeInput{
		Rows: rows, Fleet: fleet, Scenario: NewScenario(model.CategoryOpt, model.Capacity{}),
	})
	require.NoError(t, err)
	assert.Equal(t, model.LevelMain, res.Levels[0].Level)
	assert.InDelta(t, 30/0.9, energyOf(res.Rows, "v1"), 1e-4)
	fast := false
	for _, r := range res.Rows {
		fast = fast || r.FastTier
		assert.LessOrEqual(t, r.PowerKW, 22+1e-6)
	}
	assert.True(t, fast)

	// without a fast charger the vehicle cannot be topped up in time
	p.FastChargers = 0
	res, err = newDriver(t, p).OptimiseRange(context.Background(), RangeInput{
		Rows: rows, Fleet: fleet, Scenario: NewScenario(model.CategoryOpt, model.Capacity{}),
	})
	require.NoError(t, err)
	assert.Equal(t, model.LevelTonext, res.Levels[0].Level)
	assert.InDelta(t, -30+6*3.5*0.9, res.State["v1"], 1e-4)
	for _, r := range res.Rows {
		assert.False(t, r.FastTier)
	}
}

// siteEnergy sums the planned energy of every slot.
func siteEnergy(rows []model.OutputRow) map[int64]float64 {
	out := make(map[int64]float64)
	for _, r := range rows {
		out[r.Slot.Unix()] += r.EnergyKWh
	}
	return out
}

// assertBreaches checks that every slot over limit kWh belongs to a Breach
// day and is one of the slots that day flagged. Magic days ignore the site.
func assertBreaches(t *testing.T, res *RangeResult, limit float64) {
	t.Helper()
	for _, day := range res.Days {
		if day.Level == model.LevelMagic {
			continue
		}
		flagged := make(map[int64]bool, len(day.Breached))
		for _, at := range day.Breached {
			flagged[at.Unix()] = true
		}
		if day.Level != model.LevelBreach {
			assert.Empty(t, day.Breached, "day %s", day.Date)
		}
		for slot, e := range siteEnergy(day.Rows) {
			if e > limit+1e-6 {
				assert.Equal(t, model.LevelBreach, day.Level, "slot %s", time.Unix(slot, 0).UTC())
				assert.True(t, flagged[slot], "unflagged breach at %s", time.Unix(slot, 0).UTC())
			}
		}
	}
}

func TestOptimiseRange_Breach(t *testing.T) {
	fleet := testFleet(t, "v1")
	rows := buildRows(t,
		model.Journey{VehicleID: "v1", Start: ts(1, 13, 0), End: ts(1, 17, 0), EnergyKWh: 60},
		model.Journey{VehicleID: "v1", Start: ts(2, 13, 0), End: ts(2, 17, 0), EnergyKWh: 60},
	)
	start := time.Now()
	res, err := newDriver(t, DefaultParams()).OptimiseRange(context.Background(), RangeInput{
		Rows: rows, Fleet: fleet, Scenario: NewScenario(model.CategoryOpt, model.ConstantCapacity(2)),
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 20*time.Second)
	require.Len(t, res.Levels, 2)
	assert.Equal(t, model.LevelBreach, res.Levels[0].Level)
	assert.Equal(t, model.LevelTonext, res.Levels[1].Level)
	assert.Contains(t, res.BadDays, "Main infeasible")
	assert.Contains(t, res.BadDays, "Tonext infeasible")

	// 51 kWh must be delivered for the next day: 36 slots at 1 kWh fall short
	// by 20.7 kWh and each breached slot adds 2.5 kWh, so nine are needed
	day := res.Days[0]
	assert.Equal(t, lpmodel.Optimal, day.Status)
	assert.Len(t, day.Breached, 9)
	assert.InDelta(t, 9*3.5+27, day.EnergyKWh, 1e-4)
	assert.GreaterOrEqual(t, day.EndState["v1"], -9-1e-6)
	assertBreaches(t, res, 1)
	assertSOC(t, rows, res.Rows, fleet, DefaultParams().Epsilon)
}

func TestOptimiseRange_TwoVehicleBreach(t *testing.T) {
	fleet := testFleet(t, "v1", "v2")
	var journeys []model.Journey
	for _, id := range []model.VehicleID{"v1", "v2"} {
		journeys = append(journeys,
			model.Journey{VehicleID: id, Start: ts(1, 13, 0), End: ts(1, 17, 0), EnergyKWh: 60},
			model.Journey{VehicleID: id, Start: ts(2, 13, 0), End: ts(2, 17, 0), EnergyKWh: 60},
		)
	}
	rows := buildRows(t, journeys...)
	e, err := NewEngine(DefaultParams(), nil)
	require.NoError(t, err)
	d := NewDriver(e)
	in := d.PrepareDay(RangeInput{Rows: rows, Fleet: fleet, Scenario: NewScenario(model.CategoryOpt, model.ConstantCapacity(2))},
		ts(1, 0, 0), NewState(fleet))

	start := time.Now()
	_, err = e.SolveDay(context.Background(), in, Main)
	require.ErrorIs(t, err, lpmodel.ErrInfeasible)
	_, err = e.SolveDay(context.Background(), in, Tonext)
	require.ErrorIs(t, err, lpmodel.ErrInfeasible)
	res, err := e.SolveDay(context.Background(), in, Breach)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 20*time.Second)

	// 113.3 kWh against 36 kWh of site energy: each breached slot adds 6 kWh
	assert.Len(t, res.Breached, 13)
	assert.Equal(t, model.LevelBreach, res.Level)
	for _, id := range []model.VehicleID{"v1", "v2"} {
		assert.GreaterOrEqual(t, res.EndState[id], -9-1e-6, "vehicle %s", id)
	}
	flagged := make(map[int64]bool)
	for _, at := range res.Breached {
		flagged[at.Unix()] = true
	}
	for slot, en := range siteEnergy(res.Rows) {
		if en > 1+1e-6 {
			assert.True(t, flagged[slot], "unflagged breach at %s", time.Unix(slot, 0).UTC())
		}
	}
}

func TestOptimiseRange_TwoVehiclesEscalateToMagic(t *testing.T) {
	fleet := testFleet(t, "v1", "v2")
	var journeys []model.Journey
	for _, id := range []model.VehicleID{"v1", "v2"} {
		journeys = append(journeys,
			model.Journey{VehicleID: id, Start: ts(1, 12, 0), End: ts(2, 10, 0), EnergyKWh: 70},
			model.Journey{VehicleID: id, Start: ts(2, 13, 0), End: ts(2, 17, 0), EnergyKWh: 60},
		)
	}
	rows := buildRows(t, journeys...)
	bus := eventbus.New()
	sub := bus.Subscribe()
	start := time.Now()
	res, err := newDriver(t, DefaultParams(), WithBus(bus)).OptimiseRange(context.Background(), RangeInput{
		Rows: rows, Fleet: fleet, Scenario: NewScenario(model.CategoryOpt, model.ConstantCapacity(5)),
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 20*time.Second)
	require.Len(t, res.Levels, 2)
	assert.Equal(t, model.LevelMagic, res.Levels[0].Level)
	assert.Equal(t, model.LevelTonext, res.Levels[1].Level)
	for _, id := range []model.VehicleID{"v1", "v2"} {
		assert.InDelta(t, 0, res.Days[0].EndState[id], 1e-9)
	}
	assertBreaches(t, res, 2.5)

	bus.Close()
	var levels []model.Level
	for ev := range sub {
		if a, ok := ev.(events.AttemptEvent); ok && a.Date.Equal(ts(1, 0, 0)) {
			levels = append(levels, a.Level)
		}
	}
	assert.Equal(t, []model.Level{model.LevelMain, model.LevelTonext, model.LevelBreach, model.LevelMagic}, levels)
}

func TestOptimiseRange_TwoTierFleet(t *testing.T) {
	fleet := testFleet(t, "v1", "v2", "v3", "v4")
	rows := buildRows(t,
		// back at 08:00: six slow slots give 21 kWh, short of 33.3
		model.Journey{VehicleID: "v1", Start: ts(1, 13, 0), End: ts(2, 8, 0), EnergyKWh: 30},
		model.Journey{VehicleID: "v2", Start: ts(1, 13, 0), End: ts(2, 8, 0), EnergyKWh: 30},
		model.Journey{VehicleID: "v3", Start: ts(1, 13, 0), End: ts(1, 17, 0), EnergyKWh: 30},
		model.Journey{VehicleID: "v4", Start: ts(1, 13, 0), End: ts(1, 17, 0), EnergyKWh: 30},
	)
	p := DefaultParams()
	p.FastKW = 22
	p.FastChargers = 2
	p.SolveTimeout = 2 * time.Second

	start := time.Now()
	res, err := newDriver(t, p).OptimiseRange(context.Background(), RangeInput{
		Rows: rows, Fleet: fleet, Scenario: NewScenario(model.CategoryOpt, model.ConstantCapacity(40)),
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 3*p.SolveTimeout)
	require.Len(t, res.Levels, 1)
	assert.Equal(t, model.LevelMain, res.Levels[0].Level)

	fastBySlot := make(map[int64]int)
	fastVehicles := make(map[model.VehicleID]bool)
	for _, r := range res.Rows {
		assert.LessOrEqual(t, r.PowerKW, 22+1e-6)
		if !r.FastTier {
			assert.LessOrEqual(t, r.PowerKW, 7+1e-6, "%s at %s", r.VehicleID, r.Slot)
			continue
		}
		fastBySlot[r.Slot.Unix()]++
		if r.EnergyKWh > 3.5+1e-6 {
			fastVehicles[r.VehicleID] = true
		}
	}
	for slot, n := range fastBySlot {
		assert.LessOrEqual(t, n, 2, "fast sessions at %s", time.Unix(slot, 0).UTC())
	}
	assert.Equal(t, map[model.VehicleID]bool{"v1": true, "v2": true}, fastVehicles)
	for slot, e := range siteEnergy(res.Rows) {
		assert.LessOrEqual(t, e, 20+1e-6, "slot %s", time.Unix(slot, 0).UTC())
	}
	for _, id := range fleet.IDs() {
		assert.InDelta(t, 30/0.9, energyOf(res.Rows, id), 1e-4, "vehicle %s", id)
	}
	assertSOC(t, rows, res.Rows, fleet, p.Epsilon)
}

func TestOptimiseRange_Errors(t *testing.T) {
	rows := buildRows(t, model.Journey{VehicleID: "v1", Start: ts(1, 13, 0), End: ts(1, 17, 0), EnergyKWh: 30})
	d := newDriver(t, DefaultParams())
	_, err := d.OptimiseRange(context.Background(), RangeInput{Rows: rows, Fleet: testFleet(t, "other")})
	require.ErrorIs(t, err, ErrUnknownVehicle)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := d.OptimiseRange(ctx, RangeInput{Rows: rows, Fleet: testFleet(t, "v1")})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Empty(t, res.Levels)

	res, err = d.OptimiseRange(context.Background(), RangeInput{Fleet: testFleet(t, "v1")})
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
}

func TestMagic_Idempotent(t *testing.T) {
	fleet := testFleet(t, "v1", "v2")
	rows := buildRows(t,
		model.Journey{VehicleID: "v1", Start: ts(1, 13, 0), End: ts(1, 17, 0), EnergyKWh: 30},
		model.Journey{VehicleID: "v2", Start: ts(1, 12, 0), End: ts(2, 10, 45), EnergyKWh: 74},
	)
	e, err := NewEngine(DefaultParams(), nil)
	require.NoError(t, err)
	in := DayInput{
		Date: ts(1, 0, 0), Rows: rows, Fleet: fleet,
		Scenario: NewScenario(model.CategoryOpt, model.ConstantCapacity(1)),
		Entering: State{"v1": -5},
	}
	a, err := e.Magic(in)
	require.NoError(t, err)
	b, err := e.Magic(in)
	require.NoError(t, err)
	assert.Equal(t, a.Rows, b.Rows)
	assert.Equal(t, a.EndState, b.EndState)
	assert.Equal(t, a.Note, b.Note)
	assert.True(t, strings.Contains(a.Note, "Magic!"))

	assert.InDelta(t, 35/0.9, energyOf(a.Rows, "v1"), 1e-9)
	for id, end := range a.EndState {
		assert.InDelta(t, 0, end, 1e-9, "vehicle %s", id)
	}
	for _, r := range a.Rows {
		assert.Equal(t, model.LevelMagic, r.Level)
	}
}

func TestSolveDay_InfeasibleReturnsProblem(t *testing.T) {
	fleet := testFleet(t, "v1")
	rows := buildRows(t, model.Journey{VehicleID: "v1", Start: ts(1, 12, 0), End: ts(2, 10, 0), EnergyKWh: 70})
	e, err := NewEngine(DefaultParams(), nil)
	require.NoError(t, err)
	_, err = e.SolveDay(context.Background(), DayInput{
		Date: ts(1, 0, 0), Rows: rows, Fleet: fleet,
		Scenario: NewScenario(model.CategoryOpt, model.Capacity{}), Entering: State{},
	}, Main)
	var se *SolveError
	require.True(t, errors.As(err, &se))
	assert.ErrorIs(t, err, lpmodel.ErrInfeasible)
	assert.Equal(t, Main, se.Formulation)
	assert.NotNil(t, se.Problem)
}

func TestStateAdvance(t *testing.T) {
	s := State{"v1": -10, "v2": -3}
	next := s.Advance(&DayResult{EndState: map[model.VehicleID]float64{"v1": 0.2, "v2": -4}})
	assert.Equal(t, -10.0, s["v1"])
	assert.Equal(t, 0.0, next["v1"])
	assert.Equal(t, -4.0, next["v2"])
	assert.Equal(t, s, s.Clone())
	assert.Equal(t, 0.0, State(nil).Of("missing"))
}

func TestParamsValidate(t *testing.T) {
	p := DefaultParams()
	require.NoError(t, p.Validate())
	assert.False(t, p.TwoTier())
	p.SlowKW = 0
	assert.Error(t, p.Validate())
	_, err := NewEngine(p, nil)
	assert.Error(t, err)
	assert.True(t, math.Abs(DefaultParams().SlotHours()-0.5) < 1e-12)
}

type recordingSink struct {
	days   []metrics.DayRecord
	ranges []metrics.RangeRecord
}

func (r *recordingSink) RecordDay(rec metrics.DayRecord) error {
	r.days = append(r.days, rec)
	return nil
}

func (r *recordingSink) RecordRange(rec metrics.RangeRecord) error {
	r.ranges = append(r.ranges, rec)
	return nil
}

func TestFormulate(t *testing.T) {
	fleet := testFleet(t, "v1")
	rows := buildRows(t, model.Journey{VehicleID: "v1", Start: ts(1, 12, 0), End: ts(1, 16, 0), EnergyKWh: 30})
	e, err := NewEngine(DefaultParams(), nil)
	require.NoError(t, err)
	in := DayInput{
		Date: ts(1, 0, 0), Rows: rows, Fleet: fleet,
		Scenario: NewScenario(model.CategoryOpt, model.ConstantCapacity(5)), Entering: State{},
	}
	main, err := e.Formulate(in, Main)
	require.NoError(t, err)
	breach, err := e.Formulate(in, Breach)
	require.NoError(t, err)
	assert.Zero(t, main.NumBinaries())
	assert.Greater(t, breach.NumBinaries(), 0)

	f, err := ParseFormulation("tonext")
	require.NoError(t, err)
	assert.Equal(t, Tonext, f)
	_, err = ParseFormulation("Magic")
	assert.Error(t, err)
}
