package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/depotcharge/core/model"
)

const sample = `inputs:
  journeys: "journeys.csv"
  prices: "prices.csv"
  timezone: "Europe/Paris"
schedule:
  slot_duration: "30m"
  window_start: "11h"
optimiser:
  slow_kw: 7
  fast_kw: 22
  fast_chargers: 2
  solve_timeout: "10s"
  initial_charge:
    v1: -5
site:
  name: "north"
  capacity_kw: 40
vehicles:
  models:
    van:
      battery_kwh: 75
      efficiency: 0.9
  fleet:
    - id: "v1"
      model: "van"
    - id: "v2"
      model: "van"
      battery_kwh: 60
sweep:
  parallelism: 2
  scenarios:
    - name: "big"
      capacity_kw: 80
metrics:
  sinks:
    - type: "nop"
runlog:
  type: "jsonl"
  conf:
    path: "runs.jsonl"
mqtt:
  broker: "tcp://localhost:1883"
`

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", sample))
	require.NoError(t, err)

	assert.Equal(t, "journeys.csv", cfg.Inputs.Journeys)
	assert.Equal(t, "Europe/Paris", cfg.Inputs.Location().String())
	assert.Equal(t, 30*time.Minute, cfg.Schedule.SlotDuration)
	assert.Equal(t, 30*time.Minute, cfg.Schedule.Leeway)
	assert.Equal(t, 10*time.Second, cfg.Optimiser.SolveTimeout)
	assert.Equal(t, 5000, cfg.Optimiser.MaxNodes)
	assert.Equal(t, []string{"opt", "BAU"}, cfg.Optimiser.Categories)
	assert.Equal(t, "north", cfg.Site.Name)
	assert.Equal(t, 2, cfg.Sweep.Parallelism)
	assert.Equal(t, "grid.csv", cfg.Sweep.GridLog)
	require.Len(t, cfg.Metrics.Sinks, 1)
	assert.Equal(t, "nop", cfg.Metrics.Sinks[0].Type)
	assert.Equal(t, "jsonl", cfg.RunLog.Type)
	assert.Equal(t, "runs.jsonl", cfg.RunLog.Conf["path"])
	assert.Equal(t, "depot", cfg.MQTT.TopicPrefix)
	require.NotNil(t, cfg.MQTT.Retain)
	assert.True(t, *cfg.MQTT.Retain)
	assert.Equal(t, "out", cfg.Output.Dir)

	p := cfg.Optimiser.Params(cfg.Schedule)
	assert.True(t, p.TwoTier())
	assert.Equal(t, 11*time.Hour, p.WindowStart)

	fleet, err := cfg.Vehicles.BuildFleet(nil)
	require.NoError(t, err)
	assert.Equal(t, 75.0, fleet["v1"].BatteryKWh)
	assert.Equal(t, 60.0, fleet["v2"].BatteryKWh)
	assert.Equal(t, -5.0, cfg.Optimiser.Initial(fleet)["v1"])
	assert.Equal(t, 0.0, cfg.Optimiser.Initial(fleet)["v2"])
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("K_SITE__CAPACITY_KW", "25")
	cfg, err := Load(writeConfig(t, "config.yaml", sample))
	require.NoError(t, err)
	assert.Equal(t, 25.0, cfg.Site.CapacityKW)
}

func TestSiteCapacityZeroIsUnconstrained(t *testing.T) {
	t.Setenv("K_SITE__CAPACITY_KW", "0")
	cfg, err := Load(writeConfig(t, "config.yaml", sample))
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Site.CapacityKW)
	_, limited := model.ConstantCapacity(cfg.Site.CapacityKW).Limit(time.Now())
	assert.False(t, limited)

	assert.Error(t, SiteConfig{CapacityKW: -1}.Validate())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(writeConfig(t, "config.toml", sample))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "config.json", `{"inputs":{"journeys":"j.csv"}}`))
	assert.ErrorContains(t, err, "inputs")

	t.Setenv("K_SCHEDULE__SLOT_DURATION", "7m")
	_, err = Load(writeConfig(t, "config.yaml", sample))
	assert.ErrorContains(t, err, "schedule")
}

func TestVehiclesDefaultModel(t *testing.T) {
	c := VehiclesConfig{Models: map[string]model.VehicleSpec{"van": {BatteryKWh: 50, Efficiency: 1}}, DefaultModel: "van"}
	require.NoError(t, c.Validate())
	fleet, err := c.BuildFleet([]model.VehicleID{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []model.VehicleID{"a", "b"}, fleet.IDs())

	c.DefaultModel = ""
	c.Fleet = []VehicleConfig{{ID: "a", Model: "van"}}
	_, err = c.BuildFleet([]model.VehicleID{"a", "b"})
	assert.ErrorContains(t, err, "vehicle b")

	assert.Error(t, VehiclesConfig{}.Validate())
	assert.Error(t, VehiclesConfig{DefaultModel: "bus"}.Validate())
}

func TestSweepConfig(t *testing.T) {
	s := SweepConfig{Scenarios: []ScenarioConfig{{Name: "a"}, {Name: "a"}}}
	assert.ErrorContains(t, s.Validate(), "duplicate")
	assert.Error(t, SweepConfig{Scenarios: []ScenarioConfig{{}}}.Validate())

	base := Config{Optimiser: OptimiserConfig{SlowKW: 7}, Site: SiteConfig{CapacityKW: 20}}
	out := ScenarioConfig{Name: "x", FastKW: 22, CapacityKW: 50}.Apply(base)
	assert.Equal(t, 7.0, out.Optimiser.SlowKW)
	assert.Equal(t, 22.0, out.Optimiser.FastKW)
	assert.Equal(t, 50.0, out.Site.CapacityKW)
	assert.Equal(t, 20.0, base.Site.CapacityKW)
}
