package domain

import "time"

const (
	// DefaultMaxExpansions bounds the number of candidate assignments per resolution.
	DefaultMaxExpansions = 200_000

	// DefaultRetryAttempts is the number of registry attempts per connector lookup.
	DefaultRetryAttempts = 3
	// DefaultRetryInitialInterval is the first backoff delay between registry attempts.
	DefaultRetryInitialInterval = 100 * time.Millisecond
	// DefaultRetryMaxInterval caps the backoff delay between registry attempts.
	DefaultRetryMaxInterval = 2 * time.Second

	// DefaultGeneratedBy is the lockfile author recorded when none is configured.
	DefaultGeneratedBy = "connres"
	// DefaultLockfilePath is the lockfile location relative to the config file.
	DefaultLockfilePath = "connres.lock"
	// DefaultRegistryPath is the registry snapshot location relative to the config file.
	DefaultRegistryPath = "registry.yaml"
)

// SolverLimits bounds a single resolution call.
type SolverLimits struct {
	// MaxExpansions caps candidate assignments. Zero selects DefaultMaxExpansions.
	MaxExpansions int
	// Timeout caps wall-clock time. Zero means no time budget.
	Timeout time.Duration
}

// RetryPolicy configures the bounded exponential backoff around registry lookups.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// EngineConfig is the configuration of the resolution engine and its harness.
type EngineConfig struct {
	// Registry is the path of the registry snapshot.
	Registry string
	// Lockfile is the path of the lockfile.
	Lockfile string
	// GeneratedBy is recorded in generated lockfiles.
	GeneratedBy string

	Strategy ResolutionStrategy
	// Requires are the root requests in declared order.
	Requires []DependencySpec

	Solver   SolverLimits
	Retry    RetryPolicy
	LogLevel LogLevel
}

// DefaultEngineConfig returns the configuration used when nothing is set.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Registry:    DefaultRegistryPath,
		Lockfile:    DefaultLockfilePath,
		GeneratedBy: DefaultGeneratedBy,
		Strategy:    HighestCompatible,
		Solver: SolverLimits{
			MaxExpansions: DefaultMaxExpansions,
		},
		Retry:    DefaultRetryPolicy(),
		LogLevel: LogLevelInfo,
	}
}

// DefaultRetryPolicy returns the registry retry policy used when nothing is set.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     DefaultRetryAttempts,
		InitialInterval: DefaultRetryInitialInterval,
		MaxInterval:     DefaultRetryMaxInterval,
	}
}
