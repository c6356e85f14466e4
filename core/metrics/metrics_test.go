package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/depotcharge/core/factory"
	"github.com/kilianp07/depotcharge/core/model"
)

type recordSink struct {
	days   int
	ranges int
	err    error
}

func (r *recordSink) RecordDay(DayRecord) error {
	r.days++
	return r.err
}

func (r *recordSink) RecordRange(RangeRecord) error {
	r.ranges++
	return r.err
}

type dayOnly struct{ n int }

func (d *dayOnly) RecordDay(DayRecord) error { d.n++; return nil }

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{err: errors.New("down")}
	s3 := &dayOnly{}
	m := NewMultiSink(s1, s2, s3)

	err := m.RecordDay(DayRecord{Level: model.LevelMain})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
	require.Error(t, m.RecordRange(RangeRecord{}))

	assert.Equal(t, 1, s1.days)
	assert.Equal(t, 1, s2.days)
	assert.Equal(t, 1, s3.n)
	assert.Equal(t, 1, s1.ranges)
}

func TestNewMetricsSink(t *testing.T) {
	reg := "test-record"
	require.NoError(t, RegisterMetricsSink(reg, func(map[string]any) (MetricsSink, error) {
		return &recordSink{}, nil
	}))

	s, err := NewMetricsSink(nil)
	require.NoError(t, err)
	assert.IsType(t, NopSink{}, s)

	s, err = NewMetricsSink([]factory.ModuleConfig{{Type: reg}})
	require.NoError(t, err)
	assert.IsType(t, &recordSink{}, s)

	s, err = NewMetricsSink([]factory.ModuleConfig{{Type: reg}, {Type: reg}})
	require.NoError(t, err)
	multi, ok := s.(*MultiSink)
	require.True(t, ok)
	assert.Len(t, multi.Sinks, 2)

	_, err = NewMetricsSink([]factory.ModuleConfig{{Type: "missing"}})
	assert.Error(t, err)
}
