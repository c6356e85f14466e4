package lpmodel

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrIterationLimit is returned when the simplex pivots past its iteration
// budget without proving optimality.
var ErrIterationLimit = errors.New("lpmodel: simplex iteration limit reached")

const (
	pivotTol = 1e-9
	optTol   = 1e-9
	// blandAfter is the run of degenerate pivots after which pricing switches
	// from the steepest reduced cost to Bland's smallest index rule.
	blandAfter = 50
	// ctxEvery is the number of pivots between context checks.
	ctxEvery = 16
)

// boundedLP is min cᵀx subject to A·x <sense> b and lo <= x <= hi. Every lower
// bound is finite.
type boundedLP struct {
	a      *mat.Dense
	sense  []Sense
	b      []float64
	c      []float64
	lo, hi []float64
	tol    float64
}

// tableau is a dense bounded-variable simplex. Columns are the structural
// variables, then one slack per inequality, then one artificial per row whose
// slack could not start feasible. t holds B⁻¹ times the column matrix.
type tableau struct {
	t        *mat.Dense
	d        []float64
	x        []float64
	lo, hi   []float64
	upper    []bool
	basis    []int
	inBasis  []int
	firstArt int
	cols     int

	iter, maxIter int
	degenerate    int
}

func newTableau(p *boundedLP) *tableau {
	m, n := p.a.Dims()
	nslack := 0
	for _, s := range p.sense {
		if s != EQ {
			nslack++
		}
	}
	res := make([]float64, m)
	slackCol := make([]int, m)
	useArt := make([]bool, m)
	nart := 0
	next := n
	for i := 0; i < m; i++ {
		res[i] = p.b[i] - floats.Dot(p.a.RawRowView(i), p.lo)
		slackCol[i] = -1
		if p.sense[i] != EQ {
			slackCol[i] = next
			next++
		}
		switch {
		case p.sense[i] == LE && res[i] >= 0, p.sense[i] == GE && res[i] <= 0:
		default:
			useArt[i] = true
			nart++
		}
	}
	cols := n + nslack + nart
	tb := &tableau{
		t:        mat.NewDense(m, cols, nil),
		d:        make([]float64, cols),
		x:        make([]float64, cols),
		lo:       make([]float64, cols),
		hi:       make([]float64, cols),
		upper:    make([]bool, cols),
		basis:    make([]int, m),
		inBasis:  make([]int, cols),
		firstArt: n + nslack,
		cols:     cols,
		maxIter:  50*(m+cols) + 1000,
	}
	copy(tb.lo, p.lo)
	copy(tb.hi, p.hi)
	copy(tb.x, p.lo)
	for j := n; j < cols; j++ {
		tb.hi[j] = math.Inf(1)
	}
	for j := range tb.inBasis {
		tb.inBasis[j] = -1
	}
	art := tb.firstArt
	for i := 0; i < m; i++ {
		row := tb.t.RawRowView(i)
		copy(row, p.a.RawRowView(i))
		slackCoef := 1.0
		if p.sense[i] == GE {
			slackCoef = -1
		}
		if slackCol[i] >= 0 {
			row[slackCol[i]] = slackCoef
		}
		basic, coef := slackCol[i], slackCoef
		if useArt[i] {
			coef = 1
			if res[i] < 0 {
				coef = -1
			}
			basic = art
			row[basic] = coef
			art++
		}
		if coef < 0 {
			floats.Scale(-1, row)
		}
		tb.basis[i] = basic
		tb.inBasis[basic] = i
		tb.x[basic] = res[i] * coef
	}
	return tb
}

// setCost recomputes the reduced costs for objective c.
func (tb *tableau) setCost(c []float64) {
	copy(tb.d, c)
	for i, k := range tb.basis {
		if c[k] != 0 {
			floats.AddScaled(tb.d, -c[k], tb.t.RawRowView(i))
		}
	}
	for _, k := range tb.basis {
		tb.d[k] = 0
	}
}

// entering picks the column to enter among the first limit ones, and the
// direction it moves in. It returns -1 at optimality.
func (tb *tableau) entering(limit int, bland bool) (int, float64) {
	q, dir, best := -1, 0.0, optTol
	for j := 0; j < limit; j++ {
		if tb.inBasis[j] >= 0 || tb.hi[j]-tb.lo[j] <= pivotTol {
			continue
		}
		gain, dj := -tb.d[j], 1.0
		if tb.upper[j] {
			gain, dj = tb.d[j], -1
		}
		if gain <= best {
			continue
		}
		if bland {
			return j, dj
		}
		q, dir, best = j, dj, gain
	}
	return q, dir
}

// ratio returns the step length along column q, the row leaving the basis (-1
// for a bound flip of q) and whether the leaving variable stops at its upper
// bound.
func (tb *tableau) ratio(q int, dir float64, bland bool) (float64, int, bool) {
	raw := tb.t.RawMatrix()
	step := tb.hi[q] - tb.lo[q]
	leave, toUpper := -1, false
	var bestAlpha float64
	for i, k := range tb.basis {
		alpha := dir * raw.Data[i*raw.Stride+q]
		var (
			lim float64
			up  bool
		)
		switch {
		case alpha > pivotTol:
			lim = (tb.x[k] - tb.lo[k]) / alpha
		case alpha < -pivotTol && !math.IsInf(tb.hi[k], 1):
			lim, up = (tb.hi[k]-tb.x[k])/-alpha, true
		default:
			continue
		}
		lim = math.Max(lim, 0)
		better := false
		switch {
		case leave < 0:
			better = lim < step
		case lim < step-1e-12:
			better = true
		case lim <= step+1e-12:
			if bland {
				better = k < tb.basis[leave]
			} else {
				better = math.Abs(alpha) > bestAlpha
			}
		}
		if better {
			step, leave, toUpper, bestAlpha = lim, i, up, math.Abs(alpha)
		}
	}
	return step, leave, toUpper
}

func (tb *tableau) step(q int, dir, length float64, leave int, toUpper bool) {
	raw := tb.t.RawMatrix()
	if length > 0 {
		for i, k := range tb.basis {
			tb.x[k] -= dir * length * raw.Data[i*raw.Stride+q]
		}
	}
	if leave < 0 {
		tb.upper[q] = dir > 0
		if tb.upper[q] {
			tb.x[q] = tb.hi[q]
		} else {
			tb.x[q] = tb.lo[q]
		}
		return
	}
	tb.x[q] += dir * length
	k := tb.basis[leave]
	if toUpper {
		tb.x[k] = tb.hi[k]
	} else {
		tb.x[k] = tb.lo[k]
	}
	tb.upper[k] = toUpper
	tb.inBasis[k] = -1
	tb.pivot(leave, q)
	tb.basis[leave] = q
	tb.inBasis[q] = leave
	tb.upper[q] = false
}

func (tb *tableau) pivot(r, q int) {
	pr := tb.t.RawRowView(r)
	floats.Scale(1/pr[q], pr)
	pr[q] = 1
	m, _ := tb.t.Dims()
	for i := 0; i < m; i++ {
		if i == r {
			continue
		}
		row := tb.t.RawRowView(i)
		if f := row[q]; f != 0 {
			floats.AddScaled(row, -f, pr)
			row[q] = 0
		}
	}
	if f := tb.d[q]; f != 0 {
		floats.AddScaled(tb.d, -f, pr)
		tb.d[q] = 0
	}
}

// optimise pivots until no column among the first limit ones improves the
// objective. The context is polled every few pivots.
func (tb *tableau) optimise(ctx context.Context, limit int) error {
	for {
		tb.iter++
		if tb.iter%ctxEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if tb.iter > tb.maxIter {
			return ErrIterationLimit
		}
		bland := tb.degenerate >= blandAfter
		q, dir := tb.entering(limit, bland)
		if q < 0 {
			return nil
		}
		length, leave, toUpper := tb.ratio(q, dir, bland)
		if math.IsInf(length, 1) {
			return ErrUnbounded
		}
		if length <= pivotTol {
			tb.degenerate++
		} else {
			tb.degenerate = 0
		}
		tb.step(q, dir, length, leave, toUpper)
	}
}

// solveBounded runs phase one on the artificial columns, then phase two on
// the objective, and returns the structural values.
func solveBounded(ctx context.Context, p *boundedLP) ([]float64, error) {
	_, n := p.a.Dims()
	tb := newTableau(p)
	if tb.firstArt < tb.cols {
		cost := make([]float64, tb.cols)
		for j := tb.firstArt; j < tb.cols; j++ {
			cost[j] = 1
		}
		tb.setCost(cost)
		if err := tb.optimise(ctx, tb.cols); err != nil {
			return nil, err
		}
		var infeas float64
		for j := tb.firstArt; j < tb.cols; j++ {
			infeas += tb.x[j]
		}
		if infeas > p.tol {
			return nil, ErrInfeasible
		}
		for j := tb.firstArt; j < tb.cols; j++ {
			tb.x[j], tb.hi[j] = 0, 0
		}
		tb.degenerate = 0
	}
	cost := make([]float64, tb.cols)
	copy(cost, p.c)
	tb.setCost(cost)
	if err := tb.optimise(ctx, tb.firstArt); err != nil {
		return nil, err
	}
	return append([]float64(nil), tb.x[:n]...), nil
}
