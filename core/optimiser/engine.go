package optimiser

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kilianp07/depotcharge/core/logger"
	"github.com/kilianp07/depotcharge/core/lpmodel"
	"github.com/kilianp07/depotcharge/core/model"
)

// ErrUnknownVehicle is returned when a row refers to a vehicle missing from
// the fleet.
var ErrUnknownVehicle = errors.New("optimiser: vehicle not in fleet")

// SolveError reports a formulation that could not be solved. Problem is the
// model that failed so it can be written out for inspection.
type SolveError struct {
	Formulation Formulation
	Problem     *lpmodel.Model
	Err         error
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("%s: %v", e.Formulation, e.Err)
}

func (e *SolveError) Unwrap() error { return e.Err }

// zeroEnergy is the level under which solved energies are reported as zero.
const zeroEnergy = 1e-9

// DayInput is everything needed to plan one charging day.
type DayInput struct {
	Date     time.Time
	Rows     []model.Row
	Fleet    model.Fleet
	Scenario Scenario
	// Entering is the relative charge of each vehicle at the start of the day.
	Entering State
	// Required is the minimum relative charge at the end of the day used by
	// relaxed formulations. Vehicles absent from the map may end empty.
	Required map[model.VehicleID]float64
}

// DayResult is the settled plan of one day.
type DayResult struct {
	Date     time.Time
	Category model.Category
	Level    model.Level
	// Rows holds one output row per input row, in input order.
	Rows []model.OutputRow
	// EndState is the relative charge of each vehicle after the day, before
	// clamping.
	EndState map[model.VehicleID]float64
	Note     string
	// Breached lists the slots allowed over the site limit by a Breach plan.
	Breached  []time.Time
	Problem   *lpmodel.Model
	Cost      float64
	EnergyKWh float64
	Status    lpmodel.Status
	Nodes     int
	Duration  time.Duration
}

// Engine solves single charging days.
type Engine struct {
	params Params
	logger logger.Logger
}

// NewEngine validates the parameters and returns an engine.
func NewEngine(p Params, log logger.Logger) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Engine{params: p, logger: logger.OrNop(log)}, nil
}

// Params returns the engine parameters.
func (e *Engine) Params() Params { return e.params }

// vehicleDay is the slice of a day belonging to one vehicle.
type vehicleDay struct {
	vehicle model.Vehicle
	idx     []int // row indices in slot order
	slowE   float64
	maxE    float64
}

// fastTier reports whether the vehicle can benefit from a fast charger.
func (vd *vehicleDay) fastTier() bool { return vd.maxE > vd.slowE+zeroEnergy }

type sessionKey struct {
	vehicle model.VehicleID
	session int
}

type slotGroup struct {
	at   time.Time
	rows []int
	maxE float64
}

// dayProblem is a built model with the handles needed to read a solution.
type dayProblem struct {
	model    *lpmodel.Model
	vehicles []*vehicleDay
	energy   []lpmodel.Var
	hasE     []bool
	tier     map[sessionKey]lpmodel.Var
	breach   map[int64]lpmodel.Var
}

func (e *Engine) layout(in DayInput) ([]*vehicleDay, error) {
	h := e.params.SlotHours()
	byID := make(map[model.VehicleID]*vehicleDay)
	var order []*vehicleDay
	for i, r := range in.Rows {
		vd, ok := byID[r.VehicleID]
		if !ok {
			v, known := in.Fleet[r.VehicleID]
			if !known {
				return nil, fmt.Errorf("%w: %s", ErrUnknownVehicle, r.VehicleID)
			}
			slow, top := e.params.SlowKW, e.params.SlowKW
			if e.params.TwoTier() {
				top = e.params.FastKW
			}
			if v.MaxPowerKW > 0 {
				slow, top = math.Min(slow, v.MaxPowerKW), math.Min(top, v.MaxPowerKW)
			}
			vd = &vehicleDay{vehicle: v, slowE: slow * h, maxE: top * h}
			byID[r.VehicleID] = vd
			order = append(order, vd)
		}
		vd.idx = append(vd.idx, i)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].vehicle.ID < order[j].vehicle.ID })
	for _, vd := range order {
		sort.SliceStable(vd.idx, func(a, b int) bool {
			return in.Rows[vd.idx[a]].Slot.Before(in.Rows[vd.idx[b]].Slot)
		})
	}
	return order, nil
}

// build assembles the linear program of the day for formulation f.
func (e *Engine) build(in DayInput, f Formulation) (*dayProblem, error) {
	vehicles, err := e.layout(in)
	if err != nil {
		return nil, err
	}
	p := e.params
	m := lpmodel.New(fmt.Sprintf("%s_%s_%s", in.Scenario.Category, in.Date.Format("20060102"), f))
	dp := &dayProblem{
		model:    m,
		vehicles: vehicles,
		energy:   make([]lpmodel.Var, len(in.Rows)),
		hasE:     make([]bool, len(in.Rows)),
		tier:     make(map[sessionKey]lpmodel.Var),
		breach:   make(map[int64]lpmodel.Var),
	}
	reward := 0.0
	if f.relaxed() {
		reward = p.ThroughputReward
	}

	for _, vd := range vehicles {
		id := vd.vehicle.ID
		for _, i := range vd.idx {
			r := in.Rows[i]
			if !r.Available {
				continue
			}
			v := m.AddVar(fmt.Sprintf("e_%s_%s", id, r.Slot.Format("0102T1504")), 0, vd.maxE, lpmodel.Continuous)
			m.SetObjective(v, in.Scenario.Price(r)-reward)
			dp.energy[i], dp.hasE[i] = v, true
			if !vd.fastTier() {
				continue
			}
			key := sessionKey{vehicle: id, session: r.Session}
			y, ok := dp.tier[key]
			if !ok {
				y = m.AddVar(fmt.Sprintf("y_%s_%d", id, r.Session), 0, 1, lpmodel.Binary)
				dp.tier[key] = y
			}
			m.AddConstraint(fmt.Sprintf("tier_%s_%s", id, r.Slot.Format("0102T1504")),
				[]lpmodel.Term{{Var: v, Coef: 1}, {Var: y, Coef: -(vd.maxE - vd.slowE)}}, lpmodel.LE, vd.slowE)
		}
		e.addSOC(dp, in, vd, f)
	}

	groups := slotGroups(in.Rows, dp, vehicles)
	e.addCapacity(dp, in, groups, f)
	e.addFastCount(dp, in, groups)
	return dp, nil
}

// addSOC adds the state of charge rows of one vehicle. The relative charge
// only drops on consumption slots, so the upper bound is checked at the end
// of each charging segment and the lower bound on each arrival.
func (e *Engine) addSOC(dp *dayProblem, in DayInput, vd *vehicleDay, f Formulation) {
	m := dp.model
	id := vd.vehicle.ID
	eff := vd.vehicle.Efficiency
	capKWh := vd.vehicle.BatteryKWh
	base := in.Entering.Of(id)
	var terms []lpmodel.Term
	for k, i := range vd.idx {
		r := in.Rows[i]
		if r.BatteryUseKWh < 0 {
			m.AddConstraint(fmt.Sprintf("arrive_%s_%s", id, r.Slot.Format("0102T1504")),
				terms, lpmodel.GE, -capKWh-base-r.BatteryUseKWh)
		}
		base += r.BatteryUseKWh
		if dp.hasE[i] {
			terms = append(terms, lpmodel.Term{Var: dp.energy[i], Coef: eff})
		}
		last := k == len(vd.idx)-1
		if last || in.Rows[vd.idx[k+1]].BatteryUseKWh < 0 {
			m.AddConstraint(fmt.Sprintf("full_%s_%s", id, r.Slot.Format("0102T1504")),
				terms, lpmodel.LE, e.params.Epsilon-base)
		}
	}
	if f.relaxed() {
		req := -capKWh
		if v, ok := in.Required[id]; ok {
			req = v
		}
		m.AddConstraint("next_"+string(id), terms, lpmodel.GE, req-base)
		return
	}
	m.AddConstraint("final_"+string(id), terms, lpmodel.EQ, -base)
}

func slotGroups(rows []model.Row, dp *dayProblem, vehicles []*vehicleDay) []*slotGroup {
	maxE := make(map[model.VehicleID]float64, len(vehicles))
	for _, vd := range vehicles {
		maxE[vd.vehicle.ID] = vd.maxE
	}
	bySlot := make(map[int64]*slotGroup)
	var out []*slotGroup
	for i, r := range rows {
		if !dp.hasE[i] {
			continue
		}
		g, ok := bySlot[r.Slot.Unix()]
		if !ok {
			g = &slotGroup{at: r.Slot}
			bySlot[r.Slot.Unix()] = g
			out = append(out, g)
		}
		g.rows = append(g.rows, i)
		g.maxE += maxE[r.VehicleID]
	}
	sort.Slice(out, func(i, j int) bool { return out[i].at.Before(out[j].at) })
	return out
}

// addCapacity limits the site draw of each slot where the limit can bind.
// Under Breach a slot may exceed its limit only when its flag is raised.
func (e *Engine) addCapacity(dp *dayProblem, in DayInput, groups []*slotGroup, f Formulation) {
	capacity := in.Scenario.Capacity
	if capacity.Unlimited() {
		return
	}
	h := e.params.SlotHours()
	penalty := 10 * math.Max(e.params.ThroughputReward, 1)
	for _, g := range groups {
		kw, limited := capacity.Limit(g.at)
		limit := kw * h
		if !limited || g.maxE <= limit+zeroEnergy {
			continue
		}
		terms := make([]lpmodel.Term, 0, len(g.rows)+1)
		for _, i := range g.rows {
			terms = append(terms, lpmodel.Term{Var: dp.energy[i], Coef: 1})
		}
		name := "cap_" + g.at.Format("0102T1504")
		if f == Breach {
			b := dp.model.AddVar("breach_"+g.at.Format("0102T1504"), 0, 1, lpmodel.Binary)
			dp.model.SetObjective(b, penalty*g.maxE)
			terms = append(terms, lpmodel.Term{Var: b, Coef: -(g.maxE - limit)})
			dp.breach[g.at.Unix()] = b
		}
		dp.model.AddConstraint(name, terms, lpmodel.LE, limit)
	}
}

// addFastCount limits the number of sessions on a fast charger at once.
func (e *Engine) addFastCount(dp *dayProblem, in DayInput, groups []*slotGroup) {
	if len(dp.tier) == 0 {
		return
	}
	for _, g := range groups {
		var terms []lpmodel.Term
		for _, i := range g.rows {
			r := in.Rows[i]
			if y, ok := dp.tier[sessionKey{vehicle: r.VehicleID, session: r.Session}]; ok {
				terms = append(terms, lpmodel.Term{Var: y, Coef: 1})
			}
		}
		if len(terms) <= e.params.FastChargers {
			continue
		}
		dp.model.AddConstraint("fast_"+g.at.Format("0102T1504"), terms, lpmodel.LE, float64(e.params.FastChargers))
	}
}

// Formulate builds the linear program of the day under f without solving it.
func (e *Engine) Formulate(in DayInput, f Formulation) (*lpmodel.Model, error) {
	dp, err := e.build(in, f)
	if err != nil {
		return nil, err
	}
	return dp.model, nil
}

// SolveDay builds and solves the day under formulation f. Solver failures,
// infeasibility included, are returned as a *SolveError.
func (e *Engine) SolveDay(ctx context.Context, in DayInput, f Formulation) (*DayResult, error) {
	start := time.Now()
	dp, err := e.build(in, f)
	if err != nil {
		return nil, err
	}
	if e.params.SolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.params.SolveTimeout)
		defer cancel()
	}
	e.logger.Debugw("solving day", map[string]any{
		"date":        in.Date.Format(time.DateOnly),
		"category":    in.Scenario.Category.String(),
		"formulation": f.String(),
		"vars":        dp.model.NumVars(),
		"rows":        dp.model.NumRows(),
		"binaries":    dp.model.NumBinaries(),
	})
	sol, err := e.solve(ctx, in, dp, f)
	elapsed := time.Since(start)
	solveDuration.WithLabelValues(f.String()).Observe(elapsed.Seconds())
	if err != nil {
		return nil, &SolveError{Formulation: f, Problem: dp.model, Err: err}
	}
	bnbNodes.Observe(float64(sol.Nodes))
	if sol.Status != lpmodel.Optimal {
		e.logger.Warnf("%s %s: %s plan is the best found, not proven optimal", in.Date.Format(time.DateOnly), in.Scenario.Category, f)
	}
	res := e.extract(in, dp, sol, f.Level())
	if len(res.Breached) > 0 {
		e.logger.Warnf("%s %s: site limit exceeded in %d slots", in.Date.Format(time.DateOnly), in.Scenario.Category, len(res.Breached))
	}
	res.Problem = dp.model
	res.Status = sol.Status
	res.Nodes = sol.Nodes
	res.Duration = elapsed
	return res, nil
}

// solve runs the solver on a built day. A Breach day is solved in two
// passes: the first finds the fewest breached slots, the second the cheapest
// plan with exactly that many, seeded with the first plan. A breach flag
// costs more than the throughput it unlocks, so this is the optimum of the
// single Breach objective.
func (e *Engine) solve(ctx context.Context, in DayInput, dp *dayProblem, f Formulation) (*lpmodel.Solution, error) {
	opts := lpmodel.Options{MaxNodes: e.params.MaxNodes}
	if f != Breach || len(dp.breach) == 0 {
		return dp.model.Solve(ctx, opts)
	}
	count, err := e.build(in, Breach)
	if err != nil {
		return nil, err
	}
	count.model.ResetObjective()
	for _, b := range count.breach {
		count.model.SetObjective(b, 1)
	}
	first, err := count.model.Solve(ctx, opts)
	if err != nil {
		return nil, err
	}
	terms := make([]lpmodel.Term, 0, len(dp.breach))
	flagged := 0
	for at, b := range dp.breach {
		terms = append(terms, lpmodel.Term{Var: b, Coef: 1})
		if first.Value(count.breach[at]) > 0.5 {
			flagged++
		}
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].Var.Index() < terms[j].Var.Index() })
	dp.model.AddConstraint("breaches", terms, lpmodel.EQ, float64(flagged))
	opts.Start = first.Values()
	sol, err := dp.model.Solve(ctx, opts)
	if err != nil {
		return nil, err
	}
	sol.Nodes += first.Nodes
	if first.Status != lpmodel.Optimal {
		sol.Status = lpmodel.Feasible
	}
	return sol, nil
}

// extract turns a solution into output rows and end state.
func (e *Engine) extract(in DayInput, dp *dayProblem, sol *lpmodel.Solution, level model.Level) *DayResult {
	h := e.params.SlotHours()
	res := &DayResult{
		Date:     in.Date,
		Category: in.Scenario.Category,
		Level:    level,
		Rows:     make([]model.OutputRow, len(in.Rows)),
		EndState: make(map[model.VehicleID]float64, len(dp.vehicles)),
	}
	energies := make([]float64, len(in.Rows))
	for i, r := range in.Rows {
		out := model.OutputRow{Slot: r.Slot, VehicleID: r.VehicleID, Category: in.Scenario.Category, Level: level}
		if dp.hasE[i] {
			if v := sol.Value(dp.energy[i]); v > zeroEnergy {
				out.EnergyKWh = v
			}
			if y, ok := dp.tier[sessionKey{vehicle: r.VehicleID, session: r.Session}]; ok {
				out.FastTier = sol.Value(y) > 0.5
			}
		}
		out.PowerKW = out.EnergyKWh / h
		energies[i] = out.EnergyKWh
		res.Rows[i] = out
	}
	res.fill(in, energies, dp.vehicles)
	for at, b := range dp.breach {
		if sol.Value(b) > 0.5 {
			res.Breached = append(res.Breached, time.Unix(at, 0).In(in.Date.Location()))
		}
	}
	sort.Slice(res.Breached, func(i, j int) bool { return res.Breached[i].Before(res.Breached[j]) })
	return res
}

// fill computes end state, cost and energy from per-row energies.
func (r *DayResult) fill(in DayInput, energies []float64, vehicles []*vehicleDay) {
	for _, vd := range vehicles {
		id := vd.vehicle.ID
		end := in.Entering.Of(id)
		for _, i := range vd.idx {
			end += vd.vehicle.Efficiency*energies[i] + in.Rows[i].BatteryUseKWh
		}
		r.EndState[id] = end
	}
	for i, row := range in.Rows {
		r.EnergyKWh += energies[i]
		r.Cost += energies[i] * in.Scenario.Price(row)
	}
}
