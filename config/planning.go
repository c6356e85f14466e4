package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/depotcharge/core/model"
	"github.com/kilianp07/depotcharge/core/optimiser"
	"github.com/kilianp07/depotcharge/core/schedule"
)

// InputsConfig locates the CSV inputs of a planning run.
type InputsConfig struct {
	Journeys string `json:"journeys"`
	Prices   string `json:"prices"`
	// Capacity is an optional per-slot site capacity series.
	Capacity string `json:"capacity"`
	// Timezone is used for timestamps without an offset.
	Timezone string `json:"timezone"`
}

// SetDefaults applies sane defaults.
func (c *InputsConfig) SetDefaults() {
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
}

// Validate checks mandatory fields.
func (c InputsConfig) Validate() error {
	if c.Journeys == "" {
		return fmt.Errorf("journeys path is required")
	}
	if c.Prices == "" {
		return fmt.Errorf("prices path is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	return nil
}

// Location returns the configured time zone.
func (c InputsConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ScheduleConfig shapes the slot grid.
type ScheduleConfig struct {
	SlotDuration time.Duration `json:"slot_duration"`
	WindowStart  time.Duration `json:"window_start"`
	Leeway       time.Duration `json:"leeway"`
}

// SetDefaults applies sane defaults.
func (c *ScheduleConfig) SetDefaults() {
	b := c.Builder()
	b.SetDefaults()
	c.SlotDuration, c.WindowStart, c.Leeway = b.SlotDuration, b.WindowStart, b.Leeway
}

// Validate checks the grid parameters.
func (c ScheduleConfig) Validate() error { return c.Builder().Validate() }

// Builder returns the schedule builder settings.
func (c ScheduleConfig) Builder() schedule.Config {
	return schedule.Config{SlotDuration: c.SlotDuration, WindowStart: c.WindowStart, Leeway: c.Leeway}
}

// OptimiserConfig holds the charger sizes and solver settings.
type OptimiserConfig struct {
	SlowKW           float64       `json:"slow_kw"`
	FastKW           float64       `json:"fast_kw"`
	FastChargers     int           `json:"fast_chargers"`
	Epsilon          float64       `json:"epsilon"`
	ThroughputReward float64       `json:"throughput_reward"`
	NextDayMargin    float64       `json:"next_day_margin"`
	MaxNodes         int           `json:"max_nodes"`
	SolveTimeout     time.Duration `json:"solve_timeout"`
	// Categories lists the scenario variants planned by a run.
	Categories []string `json:"categories"`
	// InitialCharge is the relative charge (kWh, zero or negative) of each
	// vehicle when the horizon starts.
	InitialCharge map[string]float64 `json:"initial_charge"`
}

// SetDefaults applies sane defaults.
func (c *OptimiserConfig) SetDefaults() {
	d := optimiser.DefaultParams()
	if c.SlowKW == 0 {
		c.SlowKW = d.SlowKW
	}
	if c.Epsilon == 0 {
		c.Epsilon = d.Epsilon
	}
	if c.ThroughputReward == 0 {
		c.ThroughputReward = d.ThroughputReward
	}
	if c.NextDayMargin == 0 {
		c.NextDayMargin = d.NextDayMargin
	}
	if c.MaxNodes == 0 {
		c.MaxNodes = d.MaxNodes
	}
	if c.SolveTimeout == 0 {
		c.SolveTimeout = d.SolveTimeout
	}
	if len(c.Categories) == 0 {
		for _, cat := range model.Categories {
			c.Categories = append(c.Categories, cat.String())
		}
	}
}

// Validate checks the solver settings and category names.
func (c OptimiserConfig) Validate() error {
	if err := c.Params(ScheduleConfig{}).Validate(); err != nil {
		return err
	}
	if _, err := c.ParsedCategories(); err != nil {
		return err
	}
	for id, rel := range c.InitialCharge {
		if rel > 0 {
			return fmt.Errorf("initial charge of %s must not be positive", id)
		}
	}
	return nil
}

// ParsedCategories resolves the configured category names.
func (c OptimiserConfig) ParsedCategories() ([]model.Category, error) {
	out := make([]model.Category, 0, len(c.Categories))
	for _, s := range c.Categories {
		cat, err := model.ParseCategory(s)
		if err != nil {
			return nil, err
		}
		out = append(out, cat)
	}
	return out, nil
}

// Params returns the optimiser parameters on the grid of s.
func (c OptimiserConfig) Params(s ScheduleConfig) optimiser.Params {
	s.SetDefaults()
	return optimiser.Params{
		SlowKW:           c.SlowKW,
		FastKW:           c.FastKW,
		FastChargers:     c.FastChargers,
		SlotDuration:     s.SlotDuration,
		WindowStart:      s.WindowStart,
		Epsilon:          c.Epsilon,
		ThroughputReward: c.ThroughputReward,
		NextDayMargin:    c.NextDayMargin,
		MaxNodes:         c.MaxNodes,
		SolveTimeout:     c.SolveTimeout,
	}
}

// Initial returns the starting relative charge of the fleet.
func (c OptimiserConfig) Initial(fleet model.Fleet) optimiser.State {
	st := optimiser.NewState(fleet)
	for id, rel := range c.InitialCharge {
		if _, ok := fleet[model.VehicleID(id)]; ok {
			st[model.VehicleID(id)] = rel
		}
	}
	return st
}

// SiteConfig describes the depot.
type SiteConfig struct {
	Name string `json:"name"`
	// CapacityKW is the site limit used when no capacity series is given.
	// Zero leaves the site unconstrained.
	CapacityKW float64 `json:"capacity_kw"`
}

// SetDefaults applies sane defaults.
func (c *SiteConfig) SetDefaults() {
	if c.Name == "" {
		c.Name = "depot"
	}
}

// Validate checks the capacity.
func (c SiteConfig) Validate() error {
	if c.CapacityKW < 0 {
		return fmt.Errorf("capacity must not be negative")
	}
	return nil
}

// VehicleConfig is one fleet entry. Zero physical fields are resolved from
// the vehicle model.
type VehicleConfig struct {
	ID         string  `json:"id"`
	Model      string  `json:"model"`
	BatteryKWh float64 `json:"battery_kwh"`
	Efficiency float64 `json:"efficiency"`
	MaxPowerKW float64 `json:"max_power_kw"`
}

// VehiclesConfig lists the vehicle models and the fleet.
type VehiclesConfig struct {
	Models map[string]model.VehicleSpec `json:"models"`
	Fleet  []VehicleConfig              `json:"fleet"`
	// DefaultModel is assigned to vehicles that appear in the journeys but
	// not in the fleet list.
	DefaultModel string `json:"default_model"`
}

// Validate checks that the fleet resolves.
func (c VehiclesConfig) Validate() error {
	if len(c.Fleet) == 0 && c.DefaultModel == "" {
		return fmt.Errorf("fleet or default_model is required")
	}
	if c.DefaultModel != "" {
		if _, ok := c.Models[c.DefaultModel]; !ok {
			return fmt.Errorf("default model %s is not defined", c.DefaultModel)
		}
	}
	_, err := c.BuildFleet(nil)
	return err
}

// BuildFleet resolves the configured fleet plus a default-model vehicle for
// every extra id.
func (c VehiclesConfig) BuildFleet(extra []model.VehicleID) (model.Fleet, error) {
	vs := make([]model.Vehicle, 0, len(c.Fleet)+len(extra))
	known := make(map[model.VehicleID]bool, len(c.Fleet))
	for _, v := range c.Fleet {
		id := model.VehicleID(v.ID)
		known[id] = true
		vs = append(vs, model.Vehicle{ID: id, Model: v.Model, BatteryKWh: v.BatteryKWh, Efficiency: v.Efficiency, MaxPowerKW: v.MaxPowerKW})
	}
	for _, id := range extra {
		if known[id] {
			continue
		}
		if c.DefaultModel == "" {
			return nil, fmt.Errorf("vehicle %s is not in the fleet", id)
		}
		known[id] = true
		vs = append(vs, model.Vehicle{ID: id, Model: c.DefaultModel})
	}
	return model.NewFleet(vs, c.Models)
}
