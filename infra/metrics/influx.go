package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/depotcharge/core/metrics"
	"github.com/kilianp07/depotcharge/core/model"
	"github.com/kilianp07/depotcharge/infra/logger"
)

// InfluxSink writes planning results to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a NopSink
// if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordDay writes one depot_day point, timestamped at the day's window start.
func (s *InfluxSink) RecordDay(rec coremetrics.DayRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("depot_day").
		AddTag("category", rec.Category.String()).
		AddTag("level", rec.Level.String())
	if rec.RunID != "" {
		p = p.AddTag("run_id", rec.RunID)
	}
	p = p.AddField("energy_kwh", round3(rec.EnergyKWh)).
		AddField("cost", round3(rec.Cost)).
		AddField("vehicles", rec.Vehicles).
		AddField("attempts", rec.Attempts).
		AddField("duration_ms", round3(rec.Duration.Seconds()*1000)).
		SetTime(rec.Date)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordRange writes a depot_range point carrying the per-level day counts.
func (s *InfluxSink) RecordRange(rec coremetrics.RangeRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("depot_range").
		AddTag("category", rec.Category.String())
	if rec.RunID != "" {
		p = p.AddTag("run_id", rec.RunID)
	}
	p = p.AddField("days", rec.Days)
	for _, lvl := range model.Levels {
		p = p.AddField("days_"+strings.ToLower(lvl.String()), rec.Levels[lvl])
	}
	p = p.AddField("energy_kwh", round3(rec.EnergyKWh)).
		AddField("cost", round3(rec.Cost)).
		AddField("duration_ms", round3(rec.Duration.Seconds()*1000)).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordAttempt writes a depot_attempt point.
func (s *InfluxSink) RecordAttempt(rec coremetrics.AttemptRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("depot_attempt").
		AddTag("category", rec.Category.String()).
		AddTag("level", rec.Level.String()).
		AddTag("failed", strconv.FormatBool(rec.Failed)).
		AddField("duration_ms", round3(rec.Duration.Seconds()*1000)).
		SetTime(rec.Date)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying HTTP client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
