package config

import "fmt"

// ScenarioConfig overrides the charger sizes and site capacity for one sweep
// scenario. Zero fields keep the base configuration.
type ScenarioConfig struct {
	Name         string  `json:"name"`
	SlowKW       float64 `json:"slow_kw"`
	FastKW       float64 `json:"fast_kw"`
	FastChargers int     `json:"fast_chargers"`
	CapacityKW   float64 `json:"capacity_kw"`
}

// SweepConfig defines a parameter sweep.
type SweepConfig struct {
	// Parallelism bounds the scenarios planned at once.
	Parallelism int              `json:"parallelism"`
	GridLog     string           `json:"grid_log"`
	Scenarios   []ScenarioConfig `json:"scenarios"`
}

// SetDefaults applies sane defaults.
func (c *SweepConfig) SetDefaults() {
	if c.Parallelism <= 0 {
		c.Parallelism = 4
	}
	if c.GridLog == "" {
		c.GridLog = "grid.csv"
	}
}

// Validate checks scenario names.
func (c SweepConfig) Validate() error {
	seen := make(map[string]bool, len(c.Scenarios))
	for i, s := range c.Scenarios {
		if s.Name == "" {
			return fmt.Errorf("scenario %d has no name", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate scenario %s", s.Name)
		}
		seen[s.Name] = true
		if s.SlowKW < 0 || s.FastKW < 0 || s.FastChargers < 0 || s.CapacityKW < 0 {
			return fmt.Errorf("scenario %s: negative value", s.Name)
		}
	}
	return nil
}

// Apply returns a copy of base with the scenario overrides.
func (s ScenarioConfig) Apply(base Config) Config {
	if s.SlowKW > 0 {
		base.Optimiser.SlowKW = s.SlowKW
	}
	if s.FastKW > 0 {
		base.Optimiser.FastKW = s.FastKW
	}
	if s.FastChargers > 0 {
		base.Optimiser.FastChargers = s.FastChargers
	}
	if s.CapacityKW > 0 {
		base.Site.CapacityKW = s.CapacityKW
	}
	return base
}
