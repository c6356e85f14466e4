package lpmodel

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// WriteLP writes the model in CPLEX LP format so a problematic day can be
// replayed in an external solver.
func (m *Model) WriteLP(w io.Writer) error {
	bw := bufio.NewWriter(w)
	name := m.Name
	if name == "" {
		name = "model"
	}
	fmt.Fprintf(bw, "\\* %s *\\\n", name)
	bw.WriteString("Minimize\n obj:")
	var obj []Term
	for j, v := range m.vars {
		if v.obj != 0 {
			obj = append(obj, Term{Var: Var{idx: j}, Coef: v.obj})
		}
	}
	if len(obj) == 0 && len(m.vars) > 0 {
		obj = append(obj, Term{Var: Var{idx: 0}, Coef: 0})
	}
	m.writeTerms(bw, obj)
	bw.WriteString("\nSubject To\n")
	for i, r := range m.rows {
		fmt.Fprintf(bw, " %s:", m.rowName(i))
		if len(r.terms) == 0 {
			bw.WriteString(" 0 " + m.varName(0))
		} else {
			m.writeTerms(bw, r.terms)
		}
		fmt.Fprintf(bw, " %s %s\n", r.sense, formatNum(r.rhs))
	}
	bw.WriteString("Bounds\n")
	for j, v := range m.vars {
		n := m.varName(j)
		switch {
		case v.lb == v.ub:
			fmt.Fprintf(bw, " %s = %s\n", n, formatNum(v.lb))
		case math.IsInf(v.ub, 1):
			fmt.Fprintf(bw, " %s >= %s\n", n, formatNum(v.lb))
		default:
			fmt.Fprintf(bw, " %s <= %s <= %s\n", formatNum(v.lb), n, formatNum(v.ub))
		}
	}
	var bins []string
	for j, v := range m.vars {
		if v.kind == Binary {
			bins = append(bins, m.varName(j))
		}
	}
	if len(bins) > 0 {
		bw.WriteString("Binaries\n")
		for _, b := range bins {
			bw.WriteString(" " + b + "\n")
		}
	}
	bw.WriteString("End\n")
	return bw.Flush()
}

func (m *Model) writeTerms(w *bufio.Writer, terms []Term) {
	for k, t := range terms {
		name := m.varName(t.Var.idx)
		switch {
		case k == 0:
			fmt.Fprintf(w, " %s %s", formatNum(t.Coef), name)
		case t.Coef < 0:
			fmt.Fprintf(w, " - %s %s", formatNum(-t.Coef), name)
		default:
			fmt.Fprintf(w, " + %s %s", formatNum(t.Coef), name)
		}
	}
}

func (m *Model) varName(j int) string {
	if j >= len(m.vars) {
		return "x0"
	}
	if n := sanitize(m.vars[j].name); n != "" {
		return n
	}
	return "x" + strconv.Itoa(j)
}

func (m *Model) rowName(i int) string {
	if n := sanitize(m.rows[i].name); n != "" {
		return n
	}
	return "c" + strconv.Itoa(i)
}

// sanitize maps a name onto the LP identifier alphabet.
func sanitize(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9', r == '.':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func formatNum(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "+inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
