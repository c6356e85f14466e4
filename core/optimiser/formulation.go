package optimiser

import (
	"fmt"
	"strings"

	"github.com/kilianp07/depotcharge/core/model"
)

// Formulation selects the linear program solved for a day.
type Formulation int

const (
	// Main requires every vehicle to end the day full at least cost.
	Main Formulation = iota
	// Tonext only requires enough charge for the next day's journeys and
	// rewards throughput.
	Tonext
	// Breach is Tonext with site capacity allowed to be exceeded at a heavy
	// per-slot penalty.
	Breach
)

// DefaultLadder is the order in which formulations are tried.
var DefaultLadder = []Formulation{Main, Tonext, Breach}

// Level returns the day level recorded when the formulation succeeds.
func (f Formulation) Level() model.Level {
	switch f {
	case Tonext:
		return model.LevelTonext
	case Breach:
		return model.LevelBreach
	default:
		return model.LevelMain
	}
}

func (f Formulation) String() string { return f.Level().String() }

// relaxed reports whether the formulation replaces the full-battery target by
// the next-day requirement.
func (f Formulation) relaxed() bool { return f != Main }

// ParseFormulation converts a formulation name, case insensitive, back to a
// Formulation.
func ParseFormulation(s string) (Formulation, error) {
	for _, f := range DefaultLadder {
		if strings.EqualFold(f.String(), s) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown formulation %q", s)
}
