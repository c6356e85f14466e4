package optimiser

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	solveDuration *prometheus.HistogramVec
	dayLevels     *prometheus.CounterVec
	bnbNodes      prometheus.Histogram
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, prometheus.Histogram) {
	dur := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "depot_solve_duration_seconds",
			Help:    "Duration of a single day solve per formulation",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"formulation"},
	)
	lvl := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depot_day_level_total",
			Help: "Number of charging days settled per level",
		},
		[]string{"category", "level"},
	)
	nodes := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "depot_bnb_nodes",
			Help:    "Branch and bound nodes explored per successful solve",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		},
	)
	return dur, lvl, nodes
}

func init() {
	solveDuration, dayLevels, bnbNodes = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers optimiser metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(solveDuration, dayLevels, bnbNodes)
}

// ResetMetrics reinitializes the collectors for testing purposes and
// registers them on reg if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	solveDuration, dayLevels, bnbNodes = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
