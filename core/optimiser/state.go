package optimiser

import (
	"math"

	"github.com/kilianp07/depotcharge/core/model"
)

// State is the relative charge of each vehicle: the energy in kWh missing
// from a full battery, zero or negative. Vehicles absent from the map are
// full.
type State map[model.VehicleID]float64

// NewState returns a state where every vehicle of the fleet is full.
func NewState(fleet model.Fleet) State {
	s := make(State, len(fleet))
	for id := range fleet {
		s[id] = 0
	}
	return s
}

// Of returns the relative charge of a vehicle.
func (s State) Of(id model.VehicleID) float64 { return s[id] }

// Advance returns the state after a settled day. The receiver is left
// untouched. Overshoot above full is clamped to zero.
func (s State) Advance(day *DayResult) State {
	next := make(State, len(s))
	for id, r := range s {
		next[id] = r
	}
	if day == nil {
		return next
	}
	for id, r := range day.EndState {
		next[id] = Settle(r)
	}
	return next
}

// Settle is the relative charge carried over a day boundary: overshoot above
// full is dropped.
func Settle(r float64) float64 { return math.Min(r, 0) }

// Clone returns a copy of the state.
func (s State) Clone() State { return s.Advance(nil) }
