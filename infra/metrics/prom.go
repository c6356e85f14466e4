package metrics

import (
	"strconv"

	coremetrics "github.com/kilianp07/depotcharge/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records planning results in Prometheus metrics.
type PromSink struct {
	days     *prometheus.CounterVec
	energy   *prometheus.CounterVec
	cost     *prometheus.CounterVec
	attempts *prometheus.HistogramVec
	ranges   *prometheus.CounterVec
	badDays  *prometheus.GaugeVec
}

// NewPromSink registers planning metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately, see StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		days: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "depot_days_planned_total",
			Help: "Charging days settled, by category and ladder level",
		}, []string{"category", "level"}),
		energy: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "depot_planned_energy_kwh_total",
			Help: "Grid energy planned across settled days",
		}, []string{"category"}),
		cost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "depot_planned_cost_total",
			Help: "Energy cost of the planned schedules",
		}, []string{"category"}),
		attempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "depot_attempt_duration_seconds",
			Help:    "Duration of individual formulation attempts",
			Buckets: prometheus.DefBuckets,
		}, []string{"level", "failed"}),
		ranges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "depot_ranges_total",
			Help: "Rolling range runs completed",
		}, []string{"category"}),
		badDays: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "depot_last_range_days",
			Help: "Day count per level for the latest range run",
		}, []string{"category", "level"}),
	}

	var err error
	if s.days, err = register(reg, s.days); err != nil {
		return nil, err
	}
	if s.energy, err = register(reg, s.energy); err != nil {
		return nil, err
	}
	if s.cost, err = register(reg, s.cost); err != nil {
		return nil, err
	}
	if s.attempts, err = register(reg, s.attempts); err != nil {
		return nil, err
	}
	if s.ranges, err = register(reg, s.ranges); err != nil {
		return nil, err
	}
	if s.badDays, err = register(reg, s.badDays); err != nil {
		return nil, err
	}
	return s, nil
}

// register adds c to reg, reusing the existing collector when one with the
// same descriptor is already registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordDay counts the day and adds its energy and cost.
func (s *PromSink) RecordDay(rec coremetrics.DayRecord) error {
	cat := rec.Category.String()
	s.days.WithLabelValues(cat, rec.Level.String()).Inc()
	if rec.EnergyKWh > 0 {
		s.energy.WithLabelValues(cat).Add(rec.EnergyKWh)
	}
	if rec.Cost > 0 {
		s.cost.WithLabelValues(cat).Add(rec.Cost)
	}
	return nil
}

// RecordRange publishes the level distribution of the latest range.
func (s *PromSink) RecordRange(rec coremetrics.RangeRecord) error {
	cat := rec.Category.String()
	s.ranges.WithLabelValues(cat).Inc()
	for lvl, n := range rec.Levels {
		s.badDays.WithLabelValues(cat, lvl.String()).Set(float64(n))
	}
	return nil
}

// RecordAttempt observes the attempt duration.
func (s *PromSink) RecordAttempt(rec coremetrics.AttemptRecord) error {
	s.attempts.WithLabelValues(rec.Level.String(), strconv.FormatBool(rec.Failed)).Observe(rec.Duration.Seconds())
	return nil
}
