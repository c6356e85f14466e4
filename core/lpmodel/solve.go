package lpmodel

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInfeasible indicates the problem has no feasible solution.
	ErrInfeasible = errors.New("lpmodel: problem is infeasible")
	// ErrUnbounded indicates the objective can decrease without limit.
	ErrUnbounded = errors.New("lpmodel: problem is unbounded")
	// ErrNodeLimit indicates branch and bound stopped before finding any
	// integer solution.
	ErrNodeLimit = errors.New("lpmodel: node limit reached without integer solution")
	// ErrTimeLimit indicates the context expired before any integer
	// solution was found.
	ErrTimeLimit = errors.New("lpmodel: time limit reached without integer solution")
)

// Status qualifies a returned solution.
type Status int

const (
	// Optimal means the search completed.
	Optimal Status = iota
	// Feasible means a limit interrupted the search or the simplex stopped on
	// a numerical issue; the best solution found so far is returned.
	Feasible
)

func (s Status) String() string {
	if s == Optimal {
		return "optimal"
	}
	return "feasible"
}

const (
	defaultTolerance = 1e-6
	defaultMaxNodes  = 5000
	integralityTol   = 1e-6
)

// Options tunes the solver.
type Options struct {
	// MaxNodes bounds the number of branch and bound nodes explored.
	MaxNodes int
	// Tolerance is the feasibility tolerance applied to rows and bounds.
	Tolerance float64
	// Start is an optional point that seeds the branch and bound incumbent.
	// It is ignored unless it satisfies every bound, row and integrality.
	Start []float64
}

func (o Options) withDefaults() Options {
	if o.MaxNodes <= 0 {
		o.MaxNodes = defaultMaxNodes
	}
	if o.Tolerance <= 0 {
		o.Tolerance = defaultTolerance
	}
	return o
}

// Solution holds the variable values of a solved model.
type Solution struct {
	Status    Status
	Objective float64
	Nodes     int
	x         []float64
}

// Value returns the solved value of v.
func (s *Solution) Value(v Var) float64 {
	if s == nil || v.idx >= len(s.x) {
		return 0
	}
	return s.x[v.idx]
}

// Values returns a copy of every variable value in column order.
func (s *Solution) Values() []float64 {
	return append([]float64(nil), s.x...)
}

// simplexSolve points to the LP routine. It can be overridden in tests to
// simulate solver failures.
var simplexSolve = solveBounded

// Solve minimises the model. Binary variables are resolved by branch and
// bound. The context is polled inside every simplex run, so a deadline
// returns the best integer solution found so far, or ErrTimeLimit when there
// is none.
func (m *Model) Solve(ctx context.Context, opts Options) (*Solution, error) {
	opts = opts.withDefaults()
	lb := make([]float64, len(m.vars))
	ub := make([]float64, len(m.vars))
	var bins []int
	for j, v := range m.vars {
		lb[j], ub[j] = v.lb, v.ub
		if v.kind == Binary {
			bins = append(bins, j)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, ErrTimeLimit
	}
	if len(bins) == 0 {
		x, err := m.relax(ctx, lb, ub, opts.Tolerance)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrTimeLimit
			}
			return nil, err
		}
		return &Solution{Status: Optimal, Objective: m.Objective(x), Nodes: 1, x: x}, nil
	}
	return m.branchAndBound(ctx, lb, ub, bins, opts)
}

type node struct {
	lb, ub []float64
	// bound is the relaxation objective of the parent.
	bound float64
}

func (nd node) child(j int, v, bound float64) node {
	c := node{lb: append([]float64(nil), nd.lb...), ub: append([]float64(nil), nd.ub...), bound: bound}
	c.lb[j], c.ub[j] = v, v
	return c
}

// branchAndBound is a depth-first search that takes the zero branch first.
// Options.Start and a rounded root relaxation seed the incumbent.
func (m *Model) branchAndBound(ctx context.Context, lb, ub []float64, bins []int, opts Options) (*Solution, error) {
	var (
		best    []float64
		bestObj = math.Inf(1)
		nodes   int
		failed  error
	)
	incumbent := func(limit error) (*Solution, error) {
		if best == nil {
			return nil, limit
		}
		return &Solution{Status: Feasible, Objective: bestObj, Nodes: nodes, x: best}, nil
	}
	accept := func(x []float64) {
		for _, b := range bins {
			x[b] = math.Round(x[b])
		}
		if obj := m.Objective(x); obj < bestObj {
			best, bestObj = x, obj
		}
	}
	integral := m.integralObjective()
	pruned := func(bound float64) bool {
		if best == nil {
			return false
		}
		if integral {
			bound = math.Ceil(bound - integralityTol)
		}
		return bound >= bestObj-1e-9*math.Max(1, math.Abs(bestObj))
	}
	if m.admissible(opts.Start, bins, opts.Tolerance) {
		accept(append([]float64(nil), opts.Start...))
	}

	stack := []node{{lb: lb, ub: ub, bound: math.Inf(-1)}}
	for len(stack) > 0 {
		if ctx.Err() != nil {
			return incumbent(ErrTimeLimit)
		}
		if nodes >= opts.MaxNodes {
			return incumbent(ErrNodeLimit)
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if pruned(nd.bound) {
			continue
		}
		nodes++

		x, err := m.relax(ctx, nd.lb, nd.ub, opts.Tolerance)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return incumbent(ErrTimeLimit)
			case errors.Is(err, ErrUnbounded):
				return nil, err
			case !errors.Is(err, ErrInfeasible):
				failed = err
			}
			continue
		}
		obj := m.Objective(x)
		if pruned(obj) {
			continue
		}
		j := mostFractional(x, bins)
		if j < 0 {
			accept(x)
			continue
		}
		if nodes == 1 {
			if y := m.roundUp(ctx, nd, x, bins, opts.Tolerance); y != nil {
				accept(y)
			}
		}
		stack = append(stack, nd.child(j, 1, obj), nd.child(j, 0, obj))
	}
	switch {
	case best == nil && failed != nil:
		return nil, failed
	case best == nil:
		return nil, ErrInfeasible
	}
	st := Optimal
	if failed != nil {
		st = Feasible
	}
	return &Solution{Status: st, Objective: bestObj, Nodes: nodes, x: best}, nil
}

// roundUp fixes every binary that is positive in x to one and every other
// binary to zero, then solves the remaining LP. Raising a breach or tier flag
// only loosens its row, so this usually yields a first incumbent.
func (m *Model) roundUp(ctx context.Context, nd node, x []float64, bins []int, tol float64) []float64 {
	lb := append([]float64(nil), nd.lb...)
	ub := append([]float64(nil), nd.ub...)
	for _, b := range bins {
		v := 0.0
		if x[b] > integralityTol {
			v = 1
		}
		if v < nd.lb[b] || v > nd.ub[b] {
			return nil
		}
		lb[b], ub[b] = v, v
	}
	y, err := m.relax(ctx, lb, ub, tol)
	if err != nil {
		return nil
	}
	return y
}

// integralObjective reports whether every objective term is an integer
// multiple of a binary, so any integer solution has an integral objective.
func (m *Model) integralObjective() bool {
	for _, v := range m.vars {
		if v.obj == 0 {
			continue
		}
		if v.kind != Binary || v.obj != math.Trunc(v.obj) {
			return false
		}
	}
	return true
}

func (m *Model) admissible(x []float64, bins []int, tol float64) bool {
	if len(x) != len(m.vars) || m.Check(x, 100*tol) != nil {
		return false
	}
	for _, b := range bins {
		if math.Abs(x[b]-math.Round(x[b])) > integralityTol {
			return false
		}
	}
	return true
}

func mostFractional(x []float64, bins []int) int {
	idx, worst := -1, integralityTol
	for _, j := range bins {
		if f := math.Abs(x[j] - math.Round(x[j])); f > worst {
			idx, worst = j, f
		}
	}
	return idx
}

type sparseRow struct {
	cols  []int
	coefs []float64
	sense Sense
	rhs   float64
}

// relax solves the LP relaxation under the given bounds. Fixed variables are
// folded into the right hand sides and columns that appear in no row settle
// on the bound their cost prefers.
func (m *Model) relax(ctx context.Context, lb, ub []float64, tol float64) ([]float64, error) {
	n := len(m.vars)
	x := make([]float64, n)
	copy(x, lb)
	col := make([]int, n)
	var free []int
	for j := range m.vars {
		width := ub[j] - lb[j]
		if width < -tol {
			return nil, ErrInfeasible
		}
		col[j] = -1
		if width > tol {
			col[j] = len(free)
			free = append(free, j)
		}
	}

	var rows []sparseRow
	used := make([]bool, len(free))
	for _, r := range m.rows {
		sr := sparseRow{sense: r.sense, rhs: r.rhs}
		for _, t := range r.terms {
			c := col[t.Var.idx]
			if c < 0 {
				sr.rhs -= t.Coef * lb[t.Var.idx]
				continue
			}
			sr.cols = append(sr.cols, c)
			sr.coefs = append(sr.coefs, t.Coef)
			used[c] = true
		}
		if len(sr.cols) == 0 {
			if !constantHolds(sr.sense, sr.rhs, tol) {
				return nil, ErrInfeasible
			}
			continue
		}
		rows = append(rows, sr)
	}

	scale := 1.0
	for _, v := range m.vars {
		scale = math.Max(scale, math.Abs(v.obj))
	}
	// Compact the free columns to those some row mentions.
	dense := make([]int, len(free))
	var active []int
	for c, j := range free {
		dense[c] = -1
		if used[c] {
			dense[c] = len(active)
			active = append(active, j)
			continue
		}
		if m.vars[j].obj < 0 {
			if math.IsInf(ub[j], 1) {
				return nil, ErrUnbounded
			}
			x[j] = ub[j]
		}
	}
	if len(rows) == 0 {
		return x, nil
	}

	p := &boundedLP{
		a:     mat.NewDense(len(rows), len(active), nil),
		sense: make([]Sense, len(rows)),
		b:     make([]float64, len(rows)),
		c:     make([]float64, len(active)),
		lo:    make([]float64, len(active)),
		hi:    make([]float64, len(active)),
		tol:   tol,
	}
	for i, r := range rows {
		p.sense[i], p.b[i] = r.sense, r.rhs
		for k, c := range r.cols {
			d := dense[c]
			p.a.Set(i, d, p.a.At(i, d)+r.coefs[k])
		}
	}
	for d, j := range active {
		p.c[d] = m.vars[j].obj / scale
		p.lo[d], p.hi[d] = lb[j], ub[j]
	}

	xs, err := simplexSolve(ctx, p)
	if err != nil {
		if errors.Is(err, ErrInfeasible) || errors.Is(err, ErrUnbounded) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("lpmodel: simplex: %w", err)
	}
	for d, j := range active {
		x[j] = math.Min(math.Max(xs[d], lb[j]), ub[j])
	}
	if err := m.Check(x, 100*tol); err != nil {
		return nil, fmt.Errorf("lpmodel: simplex: %w", err)
	}
	return x, nil
}

func constantHolds(s Sense, rhs, tol float64) bool {
	switch s {
	case LE:
		return rhs >= -tol
	case GE:
		return rhs <= tol
	default:
		return math.Abs(rhs) <= tol
	}
}
