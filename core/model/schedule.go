package model

import (
	"math"
	"time"
)

// PricePoint is the electricity price for the slot starting at From.
type PricePoint struct {
	From  time.Time
	Price float64 // price per kWh
}

// Row is one (time slot, vehicle) entry of the planning grid.
type Row struct {
	Slot      time.Time
	VehicleID VehicleID
	// Available is true when the vehicle is plugged in at the depot.
	Available bool
	// BatteryUseKWh is the energy drawn by the journey ending around this
	// slot, applied on return. It is zero or negative.
	BatteryUseKWh float64
	// Prices holds the price per category, indexed by Category.
	Prices [2]float64
	// Session increments every time the vehicle becomes available again.
	// It is zero while the vehicle is away.
	Session int
}

// Price returns the price seen by the given category.
func (r Row) Price(c Category) float64 {
	if int(c) < 0 || int(c) >= len(r.Prices) {
		return 0
	}
	return r.Prices[c]
}

// OutputRow is the solved charge for one (time slot, vehicle) pair.
type OutputRow struct {
	Slot      time.Time `json:"slot"`
	VehicleID VehicleID `json:"vehicle_id"`
	Category  Category  `json:"category"`
	// EnergyKWh is the grid energy drawn during the slot.
	EnergyKWh float64 `json:"energy_kwh"`
	// PowerKW is EnergyKWh normalised by the slot duration.
	PowerKW float64 `json:"power_kw"`
	// FastTier is set when the session was assigned the fast charger.
	FastTier bool  `json:"fast_tier"`
	Level    Level `json:"level"`
}

// Capacity is the maximum simultaneous site draw for charging, either
// constant or given per slot. A DefaultKW of zero or less means no default
// limit: slots without a series entry are unconstrained. A series entry of
// zero forbids charging in its slot.
type Capacity struct {
	DefaultKW float64
	// Series holds per-slot overrides keyed by slot start in Unix seconds.
	Series map[int64]float64
}

// ConstantCapacity returns a capacity that does not vary with time.
func ConstantCapacity(kw float64) Capacity { return Capacity{DefaultKW: kw} }

// Set overrides the capacity of the slot starting at t.
func (c *Capacity) Set(t time.Time, kw float64) {
	if c.Series == nil {
		c.Series = make(map[int64]float64)
	}
	c.Series[t.Unix()] = kw
}

// At returns the capacity in kW for the slot starting at t. Slots missing
// from the series fall back to DefaultKW.
func (c Capacity) At(t time.Time) float64 {
	if v, ok := c.Series[t.Unix()]; ok {
		return v
	}
	return c.DefaultKW
}

// Limit returns the capacity in kW of the slot starting at t, and false when
// that slot is unconstrained.
func (c Capacity) Limit(t time.Time) (float64, bool) {
	if v, ok := c.Series[t.Unix()]; ok {
		return math.Max(v, 0), true
	}
	return c.DefaultKW, c.DefaultKW > 0
}

// Unlimited reports whether no capacity was configured at all.
func (c Capacity) Unlimited() bool {
	return c.DefaultKW <= 0 && len(c.Series) == 0
}
