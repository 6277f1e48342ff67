// Package metrics records engine activity with Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.trai.ch/connres/internal/core/domain"
	"go.trai.ch/zerr"
)

const namespace = "connres"

// Recorder implements ports.Metrics and ports.MetricsExporter on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	resolutions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	expansions  *prometheus.HistogramVec
	backtracks  *prometheus.CounterVec
	lookups     prometheus.Histogram
	fetches     *prometheus.CounterVec
	validations *prometheus.CounterVec
}

// NewRecorder creates a Recorder with every collector registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_total",
				Help:      "Number of resolution calls by strategy and outcome.",
			},
			[]string{"strategy", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "resolution_duration_seconds",
				Help:      "Time taken by a resolution call.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"strategy"},
		),
		expansions: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "resolution_expansions",
				Help:      "Candidate assignments tried per resolution call.",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
			},
			[]string{"strategy"},
		),
		backtracks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolution_backtracks_total",
				Help:      "Number of backtracks performed by resolution calls.",
			},
			[]string{"strategy"},
		),
		lookups: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "resolution_registry_lookups",
				Help:      "Distinct connectors fetched per resolution call.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registry_fetches_total",
				Help:      "Number of catalog lookups by result.",
			},
			[]string{"result"},
		),
		validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lockfile_validations_total",
				Help:      "Number of lockfile validations by verdict.",
			},
			[]string{"valid"},
		),
	}

	r.registry.MustRegister(
		r.resolutions,
		r.duration,
		r.expansions,
		r.backtracks,
		r.lookups,
		r.fetches,
		r.validations,
	)
	return r
}

// Registry returns the registry holding the collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveResolution records one finished resolution call.
func (r *Recorder) ObserveResolution(
	strategy domain.ResolutionStrategy,
	outcome domain.Outcome,
	stats domain.SearchStats,
	elapsed time.Duration,
) {
	s := strategy.String()
	r.resolutions.WithLabelValues(s, outcome.String()).Inc()
	r.duration.WithLabelValues(s).Observe(elapsed.Seconds())
	r.expansions.WithLabelValues(s).Observe(float64(stats.Expansions))
	r.backtracks.WithLabelValues(s).Add(float64(stats.Backtracks))
	r.lookups.Observe(float64(stats.RegistryLookups))
}

// ObserveRegistryFetch records one catalog lookup.
func (r *Recorder) ObserveRegistryFetch(result string) {
	r.fetches.WithLabelValues(result).Inc()
}

// ObserveLockfileValidation records one lockfile validation.
func (r *Recorder) ObserveLockfileValidation(valid bool) {
	r.validations.WithLabelValues(strconv.FormatBool(valid)).Inc()
}

// WriteFile writes the current metrics in the Prometheus text format,
// suitable for the node exporter textfile collector.
func (r *Recorder) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write metrics"), "path", path)
	}
	return nil
}
