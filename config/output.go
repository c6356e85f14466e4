package config

import "fmt"

// OutputConfig selects where and what a planning run writes.
type OutputConfig struct {
	Dir string `json:"dir"`
	// WriteLP dumps the last formulated day problem in CPLEX LP format.
	WriteLP bool `json:"write_lp"`
	// JSON writes the summaries as JSON next to the CSV files.
	JSON bool `json:"json"`
	// Charts renders the site profile as an HTML chart.
	Charts bool `json:"charts"`
}

// SetDefaults applies sane defaults.
func (c *OutputConfig) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "out"
	}
}

// Validate checks mandatory fields.
func (c OutputConfig) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("dir is required")
	}
	return nil
}
