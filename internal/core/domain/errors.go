package domain

import "go.trai.ch/zerr"

var (
	// ErrInvalidVersionSyntax is returned when a version string is not a valid semantic version.
	ErrInvalidVersionSyntax = zerr.New("invalid version syntax")

	// ErrInvalidConstraintSyntax is returned when a version range expression cannot be parsed.
	ErrInvalidConstraintSyntax = zerr.New("invalid constraint syntax")

	// ErrInvalidDependencySpec is returned when a "connector@constraint" request is malformed.
	ErrInvalidDependencySpec = zerr.New("invalid dependency spec")

	// ErrInvalidStrategy is returned when a resolution strategy name is unknown.
	ErrInvalidStrategy = zerr.New("invalid resolution strategy, expected 'highest', 'lowest', 'stable' or 'pinned'")

	// ErrConnectorNotFound is returned when a connector is absent from the manifest registry.
	ErrConnectorNotFound = zerr.New("connector not found")

	// ErrCyclicDependency is returned when connectors require each other with ranges that cannot hold together.
	ErrCyclicDependency = zerr.New("cyclic dependency")

	// ErrUnsatisfiableConstraintSet is returned when the search exhausted every branch.
	ErrUnsatisfiableConstraintSet = zerr.New("unsatisfiable constraint set")

	// ErrResolutionBudgetExceeded is returned when the search hit its node or time budget.
	ErrResolutionBudgetExceeded = zerr.New("resolution budget exceeded")

	// ErrResolutionCancelled is returned when the caller cancelled the resolution.
	ErrResolutionCancelled = zerr.New("resolution cancelled")

	// ErrRegistryUnavailable is returned when the manifest registry kept failing after retries.
	ErrRegistryUnavailable = zerr.New("manifest registry unavailable")

	// ErrCannotLockFailedResolution is returned when a lockfile is requested for a failed resolution.
	ErrCannotLockFailedResolution = zerr.New("cannot lock a failed resolution")

	// ErrUnsupportedLockfileFormat is returned when a lockfile declares an unknown format version.
	ErrUnsupportedLockfileFormat = zerr.New("unsupported lockfile format")

	// ErrLockfileDigestMismatch is returned when the pinned versions do not match the recorded digest.
	ErrLockfileDigestMismatch = zerr.New("lockfile digest mismatch")

	// ErrDuplicateGraphNode is returned when a connector is added to a dependency graph twice.
	ErrDuplicateGraphNode = zerr.New("connector already exists in graph")

	// ErrNilRegistry is returned when an engine is built without a manifest registry.
	ErrNilRegistry = zerr.New("manifest registry is required")

	// ErrConfigNotFound is returned when no config file exists in the directory or its parents.
	ErrConfigNotFound = zerr.New("no connres.yaml found")

	// ErrInvalidConfig is returned when a config value is out of range.
	ErrInvalidConfig = zerr.New("invalid config value")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrUnsupportedConfigVersion is returned when the config file declares an unknown version.
	ErrUnsupportedConfigVersion = zerr.New("unsupported config version")

	// ErrRegistryReadFailed is returned when a registry snapshot cannot be read.
	ErrRegistryReadFailed = zerr.New("failed to read registry snapshot")

	// ErrRegistryParseFailed is returned when a registry snapshot cannot be parsed.
	ErrRegistryParseFailed = zerr.New("failed to parse registry snapshot")

	// ErrDuplicateConnectorVersion is returned when a registry snapshot lists the same version twice.
	ErrDuplicateConnectorVersion = zerr.New("duplicate connector version")

	// ErrLockfileReadFailed is returned when a lockfile cannot be read.
	ErrLockfileReadFailed = zerr.New("failed to read lockfile")

	// ErrLockfileParseFailed is returned when a lockfile cannot be parsed.
	ErrLockfileParseFailed = zerr.New("failed to parse lockfile")

	// ErrLockfileWriteFailed is returned when a lockfile cannot be written.
	ErrLockfileWriteFailed = zerr.New("failed to write lockfile")

	// ErrLockfileMissing is returned when a command needs a lockfile and none exists.
	ErrLockfileMissing = zerr.New("lockfile not found, run 'connres lock' first")

	// ErrLockfileInvalid is returned when lockfile validation reports errors.
	ErrLockfileInvalid = zerr.New("lockfile is invalid")

	// ErrNoRequirements is returned when a command needs root requirements and none were configured.
	ErrNoRequirements = zerr.New("no connector requirements configured")
)
