package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/depotcharge/core/factory"
	"github.com/kilianp07/depotcharge/core/metrics"
	"github.com/kilianp07/depotcharge/infra/logger"
	"github.com/kilianp07/depotcharge/infra/mqtt"
)

type Config struct {
	Inputs    InputsConfig         `json:"inputs"`
	Schedule  ScheduleConfig       `json:"schedule"`
	Optimiser OptimiserConfig      `json:"optimiser"`
	Site      SiteConfig           `json:"site"`
	Vehicles  VehiclesConfig       `json:"vehicles"`
	Sweep     SweepConfig          `json:"sweep"`
	Metrics   metrics.Config       `json:"metrics"`
	MQTT      mqtt.Config          `json:"mqtt"`
	RunLog    factory.ModuleConfig `json:"runlog"`
	Output    OutputConfig         `json:"output"`
	Log       logger.Config        `json:"log"`
}

// Load reads a YAML or JSON file, applies K_ prefixed environment overrides
// (K_SITE__CAPACITY_KW sets site.capacity_kw), then fills defaults and
// validates every section.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Inputs.SetDefaults()
	c.Schedule.SetDefaults()
	c.Optimiser.SetDefaults()
	c.Site.SetDefaults()
	c.Sweep.SetDefaults()
	c.Output.SetDefaults()
	c.Log.SetDefaults()
	if c.MQTT.Enabled() {
		c.MQTT.SetDefaults()
	}
}

// Validate checks every section and prefixes errors with the section name.
func (c Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"inputs", c.Inputs.Validate},
		{"schedule", c.Schedule.Validate},
		{"optimiser", c.Optimiser.Validate},
		{"site", c.Site.Validate},
		{"vehicles", c.Vehicles.Validate},
		{"sweep", c.Sweep.Validate},
		{"output", c.Output.Validate},
		{"log", c.Log.Validate},
	}
	if c.MQTT.Enabled() {
		checks = append(checks, struct {
			name string
			fn   func() error
		}{"mqtt", c.MQTT.Validate})
	}
	for _, ch := range checks {
		if err := ch.fn(); err != nil {
			return fmt.Errorf("%s: %w", ch.name, err)
		}
	}
	return nil
}
