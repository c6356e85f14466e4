package lpmodel

import (
	"fmt"
	"math"
)

// Sense is the relation between the left and right hand side of a row.
type Sense int

const (
	LE Sense = iota // <=
	GE              // >=
	EQ              // =
)

func (s Sense) String() string {
	switch s {
	case LE:
		return "<="
	case GE:
		return ">="
	default:
		return "="
	}
}

// Kind distinguishes continuous and binary variables.
type Kind int

const (
	Continuous Kind = iota
	Binary
)

// Var is a handle on a model variable.
type Var struct{ idx int }

// Index returns the column position of the variable in its model.
func (v Var) Index() int { return v.idx }

// Term is a coefficient applied to a variable.
type Term struct {
	Var  Var
	Coef float64
}

type variable struct {
	name string
	lb   float64
	ub   float64
	kind Kind
	obj  float64
}

type row struct {
	name  string
	terms []Term
	sense Sense
	rhs   float64
}

// Model is a minimisation problem under construction. A Model is not safe for
// concurrent mutation.
type Model struct {
	Name string
	vars []variable
	rows []row
}

// New returns an empty model.
func New(name string) *Model { return &Model{Name: name} }

// AddVar adds a variable with the given bounds. Binary variables are clamped
// to [0,1]. The lower bound must be finite; use math.Inf(1) for an unbounded
// upper limit.
func (m *Model) AddVar(name string, lb, ub float64, kind Kind) Var {
	if kind == Binary {
		lb, ub = math.Max(lb, 0), math.Min(ub, 1)
	}
	m.vars = append(m.vars, variable{name: name, lb: lb, ub: ub, kind: kind})
	return Var{idx: len(m.vars) - 1}
}

// SetObjective sets the objective coefficient of v.
func (m *Model) SetObjective(v Var, c float64) { m.vars[v.idx].obj = c }

// ResetObjective sets every objective coefficient to zero.
func (m *Model) ResetObjective() {
	for j := range m.vars {
		m.vars[j].obj = 0
	}
}

// AddObjective adds c to the objective coefficient of v.
func (m *Model) AddObjective(v Var, c float64) { m.vars[v.idx].obj += c }

// AddConstraint adds the row Σ terms <sense> rhs. Terms referring to the same
// variable are merged.
func (m *Model) AddConstraint(name string, terms []Term, sense Sense, rhs float64) {
	merged := make([]Term, 0, len(terms))
	pos := make(map[int]int, len(terms))
	for _, t := range terms {
		if t.Coef == 0 {
			continue
		}
		if i, ok := pos[t.Var.idx]; ok {
			merged[i].Coef += t.Coef
			continue
		}
		pos[t.Var.idx] = len(merged)
		merged = append(merged, t)
	}
	m.rows = append(m.rows, row{name: name, terms: merged, sense: sense, rhs: rhs})
}

// NumVars returns the number of variables.
func (m *Model) NumVars() int { return len(m.vars) }

// NumRows returns the number of constraints.
func (m *Model) NumRows() int { return len(m.rows) }

// NumBinaries returns the number of binary variables.
func (m *Model) NumBinaries() int {
	n := 0
	for _, v := range m.vars {
		if v.kind == Binary {
			n++
		}
	}
	return n
}

// VarName returns the name of v.
func (m *Model) VarName(v Var) string { return m.vars[v.idx].name }

// Bounds returns the bounds of v.
func (m *Model) Bounds(v Var) (lb, ub float64) { return m.vars[v.idx].lb, m.vars[v.idx].ub }

// Objective evaluates the objective for the given variable values.
func (m *Model) Objective(x []float64) float64 {
	var f float64
	for j, v := range m.vars {
		f += v.obj * x[j]
	}
	return f
}

// Check verifies that x satisfies every bound and row within tol and returns
// the first violation found.
func (m *Model) Check(x []float64, tol float64) error {
	if len(x) != len(m.vars) {
		return fmt.Errorf("lpmodel: %d values for %d variables", len(x), len(m.vars))
	}
	for j, v := range m.vars {
		if x[j] < v.lb-tol || x[j] > v.ub+tol {
			return fmt.Errorf("lpmodel: %s=%g outside [%g,%g]", v.name, x[j], v.lb, v.ub)
		}
	}
	for _, r := range m.rows {
		var lhs float64
		for _, t := range r.terms {
			lhs += t.Coef * x[t.Var.idx]
		}
		ok := true
		switch r.sense {
		case LE:
			ok = lhs <= r.rhs+tol
		case GE:
			ok = lhs >= r.rhs-tol
		case EQ:
			ok = math.Abs(lhs-r.rhs) <= tol
		}
		if !ok {
			return fmt.Errorf("lpmodel: row %s violated: %g %s %g", r.name, lhs, r.sense, r.rhs)
		}
	}
	return nil
}
