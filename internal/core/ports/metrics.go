package ports

import (
	"time"

	"go.trai.ch/connres/internal/core/domain"
)

// Fetch results reported to Metrics.ObserveRegistryFetch.
const (
	FetchHit      = "hit"
	FetchMiss     = "miss"
	FetchRetry    = "retry"
	FetchNotFound = "not_found"
	FetchError    = "error"
)

// Metrics records engine activity.
//
//go:generate mockgen -source=metrics.go -destination=mocks/mock_metrics.go -package=mocks
type Metrics interface {
	// ObserveResolution records one finished resolution call.
	ObserveResolution(strategy domain.ResolutionStrategy, outcome domain.Outcome, stats domain.SearchStats, elapsed time.Duration)
	// ObserveRegistryFetch records one catalog lookup with one of the Fetch* results.
	ObserveRegistryFetch(result string)
	// ObserveLockfileValidation records one lockfile validation.
	ObserveLockfileValidation(valid bool)
}

// MetricsExporter writes collected metrics to a file.
type MetricsExporter interface {
	WriteFile(path string) error
}
