package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/depotcharge/core/factory"
	coremetrics "github.com/kilianp07/depotcharge/core/metrics"
	"github.com/kilianp07/depotcharge/core/model"
)

func TestPromSink_RecordDay(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordDay(coremetrics.DayRecord{Category: model.CategoryOpt, Level: model.LevelMain, EnergyKWh: 10, Cost: 1.5}))
	require.NoError(t, sink.RecordDay(coremetrics.DayRecord{Category: model.CategoryOpt, Level: model.LevelMain, EnergyKWh: 5, Cost: 0.5}))
	require.NoError(t, sink.RecordDay(coremetrics.DayRecord{Category: model.CategoryOpt, Level: model.LevelEmpty}))

	expected := `
# HELP depot_days_planned_total Charging days settled, by category and ladder level
# TYPE depot_days_planned_total counter
depot_days_planned_total{category="opt",level="Empty"} 1
depot_days_planned_total{category="opt",level="Main"} 2
`
	assert.NoError(t, testutil.CollectAndCompare(sink.days, strings.NewReader(expected)))
	assert.InDelta(t, 15, testutil.ToFloat64(sink.energy.WithLabelValues("opt")), 1e-9)
	assert.InDelta(t, 2, testutil.ToFloat64(sink.cost.WithLabelValues("opt")), 1e-9)
}

func TestPromSink_RecordRangeAndAttempt(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordRange(coremetrics.RangeRecord{
		Category: model.CategoryBAU,
		Days:     3,
		Levels:   map[model.Level]int{model.LevelMain: 2, model.LevelMagic: 1},
	}))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.ranges.WithLabelValues("BAU")))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.badDays.WithLabelValues("BAU", "Main")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.badDays.WithLabelValues("BAU", "Magic")))

	require.NoError(t, sink.RecordAttempt(coremetrics.AttemptRecord{Level: model.LevelBreach, Failed: true, Duration: 20 * time.Millisecond}))
	assert.Equal(t, 1, testutil.CollectAndCount(sink.attempts))
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	second, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, first.RecordDay(coremetrics.DayRecord{Category: model.CategoryOpt, Level: model.LevelMain}))
	require.NoError(t, second.RecordDay(coremetrics.DayRecord{Category: model.CategoryOpt, Level: model.LevelMain}))
	assert.Equal(t, 2.0, testutil.ToFloat64(second.days.WithLabelValues("opt", "Main")))
}

func TestFactory_BuildsRegisteredSinks(t *testing.T) {
	old := Registerer
	Registerer = prometheus.NewRegistry()
	defer func() { Registerer = old }()

	assert.Subset(t, coremetrics.SinkTypes(), []string{"influx", "nop", "prometheus"})

	sink, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "prometheus"}})
	require.NoError(t, err)
	assert.IsType(t, &PromSink{}, sink)

	sink, err = coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "prometheus"}, {Type: "nop"}})
	require.NoError(t, err)
	assert.IsType(t, &coremetrics.MultiSink{}, sink)

	_, err = coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "statsd"}})
	assert.Error(t, err)
}
