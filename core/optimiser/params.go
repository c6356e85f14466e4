package optimiser

import (
	"fmt"
	"time"

	"github.com/kilianp07/depotcharge/core/model"
)

// Params holds the physical and numerical settings of a planning run.
// Params is passed by value and never mutated by the optimiser.
type Params struct {
	// SlowKW is the power of the standard charger.
	SlowKW float64
	// FastKW is the power of the fast charger. A value not above SlowKW
	// disables the second tier.
	FastKW float64
	// FastChargers is the number of fast chargers on site.
	FastChargers int
	SlotDuration time.Duration
	// WindowStart is the offset from midnight at which a charging day starts.
	WindowStart time.Duration
	// Epsilon is the tolerance allowed above a full battery.
	Epsilon float64
	// ThroughputReward is subtracted from prices in relaxed formulations so
	// the solver charges as much as the constraints allow.
	ThroughputReward float64
	// NextDayMargin inflates the next-day energy requirement.
	NextDayMargin float64
	// MaxNodes bounds branch and bound per solve.
	MaxNodes int
	// SolveTimeout bounds a single solve. Zero means no limit.
	SolveTimeout time.Duration
}

// DefaultParams returns the settings of a depot with 7 kW chargers and half
// hour slots.
func DefaultParams() Params {
	return Params{
		SlowKW:           7,
		SlotDuration:     30 * time.Minute,
		WindowStart:      11 * time.Hour,
		Epsilon:          1e-5,
		ThroughputReward: 1000,
		NextDayMargin:    0.1,
		MaxNodes:         5000,
		SolveTimeout:     30 * time.Second,
	}
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if p.SlowKW <= 0 {
		return fmt.Errorf("slow charger power must be positive")
	}
	if p.FastKW < 0 {
		return fmt.Errorf("fast charger power must not be negative")
	}
	if p.FastChargers < 0 {
		return fmt.Errorf("fast charger count must not be negative")
	}
	if p.SlotDuration <= 0 {
		return fmt.Errorf("slot duration must be positive")
	}
	if p.Epsilon < 0 || p.ThroughputReward < 0 || p.NextDayMargin < 0 {
		return fmt.Errorf("epsilon, throughput reward and margin must not be negative")
	}
	return nil
}

// TwoTier reports whether the fast charger tier is modelled.
func (p Params) TwoTier() bool { return p.FastKW > p.SlowKW }

// SlotHours returns the slot length in hours.
func (p Params) SlotHours() float64 { return p.SlotDuration.Hours() }

// Scenario is a category resolved once into the price selector and the site
// capacity it is planned against.
type Scenario struct {
	Category model.Category
	Capacity model.Capacity
}

// NewScenario resolves the scenario of a category. The business-as-usual
// benchmark ignores site capacity.
func NewScenario(c model.Category, capacity model.Capacity) Scenario {
	if c == model.CategoryBAU {
		capacity = model.Capacity{}
	}
	return Scenario{Category: c, Capacity: capacity}
}

// Price returns the price seen by the scenario in row r.
func (s Scenario) Price(r model.Row) float64 { return r.Price(s.Category) }
