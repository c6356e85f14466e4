package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/depotcharge/core/metrics"
	"github.com/kilianp07/depotcharge/core/model"
)

type lineServer struct {
	mu     sync.Mutex
	bodies []string
	*httptest.Server
}

func newLineServer(t *testing.T) *lineServer {
	t.Helper()
	ls := &lineServer{}
	ls.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		ls.mu.Lock()
		ls.bodies = append(ls.bodies, strings.TrimSpace(string(data)))
		ls.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(ls.Close)
	return ls
}

func (ls *lineServer) lines() []string {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return append([]string(nil), ls.bodies...)
}

func line(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSink_RecordDay(t *testing.T) {
	srv := newLineServer(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	date := time.Date(2024, 3, 4, 11, 0, 0, 0, time.UTC)
	rec := coremetrics.DayRecord{
		RunID:     "run-1",
		Category:  model.CategoryOpt,
		Date:      date,
		Level:     model.LevelTonext,
		EnergyKWh: 42.12345,
		Cost:      3.3333,
		Vehicles:  3,
		Attempts:  2,
		Duration:  1500 * time.Microsecond,
	}
	require.NoError(t, sink.RecordDay(rec))

	p := write.NewPointWithMeasurement("depot_day").
		AddTag("category", "opt").
		AddTag("level", "Tonext").
		AddTag("run_id", "run-1").
		AddField("energy_kwh", 42.123).
		AddField("cost", 3.333).
		AddField("vehicles", 3).
		AddField("attempts", 2).
		AddField("duration_ms", 1.5).
		SetTime(date)
	assert.Equal(t, []string{line(p)}, srv.lines())
}

func TestInfluxSink_RecordRange(t *testing.T) {
	srv := newLineServer(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	rec := coremetrics.RangeRecord{
		Category: model.CategoryBAU,
		Days:     4,
		Levels:   map[model.Level]int{model.LevelMain: 3, model.LevelMagic: 1},
		Duration: time.Second,
		Time:     now,
	}
	require.NoError(t, sink.RecordRange(rec))

	p := write.NewPointWithMeasurement("depot_range").
		AddTag("category", "BAU").
		AddField("days", 4).
		AddField("days_main", 3).
		AddField("days_tonext", 0).
		AddField("days_breach", 0).
		AddField("days_magic", 1).
		AddField("days_empty", 0).
		AddField("energy_kwh", 0.0).
		AddField("cost", 0.0).
		AddField("duration_ms", 1000.0).
		SetTime(now)
	assert.Equal(t, []string{line(p)}, srv.lines())
}

func TestInfluxSink_RecordAttempt(t *testing.T) {
	srv := newLineServer(t)
	sink := NewInfluxSink(srv.URL+"/api/v2/write", "token", "org", "bucket")
	defer sink.Close()

	date := time.Date(2024, 3, 4, 11, 0, 0, 0, time.UTC)
	require.NoError(t, sink.RecordAttempt(coremetrics.AttemptRecord{
		Category: model.CategoryOpt,
		Date:     date,
		Level:    model.LevelMain,
		Failed:   true,
		Duration: 2 * time.Millisecond,
	}))

	p := write.NewPointWithMeasurement("depot_attempt").
		AddTag("category", "opt").
		AddTag("level", "Main").
		AddTag("failed", "true").
		AddField("duration_ms", 2.0).
		SetTime(date)
	assert.Equal(t, []string{line(p)}, srv.lines())
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	_, isInflux := sink.(*InfluxSink)
	assert.False(t, isInflux, "expected NopSink on failing health check")
	assert.True(t, called, "health endpoint not called")
}
