package domain

import (
	"maps"
	"slices"
	"time"
)

// CurrentLockfileFormat is the lockfile format version this engine writes and reads.
const CurrentLockfileFormat = 1

// Lockfile is a pinned, reproducible snapshot of one resolved version per connector.
// Lockfiles are values: every method returns a new Lockfile and leaves the receiver untouched.
type Lockfile struct {
	// FormatVersion is the lockfile schema version.
	FormatVersion int

	// GeneratedAt is the UTC time the lockfile was produced.
	GeneratedAt time.Time

	// GeneratedBy identifies the caller that produced the lockfile.
	GeneratedBy string

	// ResolvedVersions maps every locked connector to its exact version.
	ResolvedVersions map[ConnectorID]Version

	Metadata LockMetadata
}

// LockMetadata records how a lockfile was produced.
type LockMetadata struct {
	// RootSpecs are the requests the lockfile was resolved from.
	RootSpecs []DependencySpec

	// Strategy is the policy used for the resolution.
	Strategy ResolutionStrategy

	// Digest fingerprints ResolvedVersions, see ComputeDigest.
	Digest string

	// Extensions carries forward-compatible entries this engine does not interpret.
	Extensions map[string]string
}

// Pin returns the version locked for id.
func (l Lockfile) Pin(id ConnectorID) (Version, bool) {
	v, ok := l.ResolvedVersions[id]
	return v, ok
}

// Entries returns the pins sorted by connector id.
func (l Lockfile) Entries() []ResolvedEntry {
	return sortedEntries(l.ResolvedVersions)
}

// Clone returns a deep copy of the lockfile.
func (l Lockfile) Clone() Lockfile {
	out := l
	out.ResolvedVersions = maps.Clone(l.ResolvedVersions)
	out.Metadata.RootSpecs = slices.Clone(l.Metadata.RootSpecs)
	out.Metadata.Extensions = maps.Clone(l.Metadata.Extensions)
	return out
}

// WithExtension returns a copy carrying the extension entry.
func (l Lockfile) WithExtension(key, value string) Lockfile {
	out := l.Clone()
	if out.Metadata.Extensions == nil {
		out.Metadata.Extensions = make(map[string]string, 1)
	}
	out.Metadata.Extensions[key] = value
	return out
}

// IssueKind classifies a lockfile validation finding.
type IssueKind string

const (
	// IssueUnsupportedFormat flags an unknown FormatVersion.
	IssueUnsupportedFormat IssueKind = "unsupported-format"
	// IssueDigestMismatch flags pins that do not match the recorded digest.
	IssueDigestMismatch IssueKind = "digest-mismatch"
	// IssueMissingConnector flags a pinned connector the registry no longer knows.
	IssueMissingConnector IssueKind = "missing-connector"
	// IssueOutdatedVersion flags a pin that is removed, deprecated or out of range.
	IssueOutdatedVersion IssueKind = "outdated-version"
	// IssueMissingPin flags a root spec whose connector has no pin.
	IssueMissingPin IssueKind = "missing-pin"
	// IssueRegistryUnavailable flags a connector that could not be looked up.
	IssueRegistryUnavailable IssueKind = "registry-unavailable"
	// IssueNewerAvailable flags a newer compatible version.
	IssueNewerAvailable IssueKind = "newer-available"
	// IssueCycle flags pinned connectors that depend on each other.
	IssueCycle IssueKind = "cycle"
	// IssueRetained flags a pin kept during update although a newer version exists.
	IssueRetained IssueKind = "retained"
)

// LockfileIssue is one validation or update finding.
type LockfileIssue struct {
	ConnectorID ConnectorID
	Kind        IssueKind
	Message     string
}

// String renders the issue for humans.
func (i LockfileIssue) String() string {
	if i.ConnectorID == "" {
		return i.Message
	}
	return string(i.ConnectorID) + ": " + i.Message
}

// OutdatedVersion describes a pin that must change.
type OutdatedVersion struct {
	ConnectorID ConnectorID
	Pinned      Version
	Reason      string
}

// LockfileValidationResult reports whether a lockfile still holds against the registry.
type LockfileValidationResult struct {
	// IsValid is true iff Errors is empty. Warnings never invalidate.
	IsValid bool

	MissingConnectors []ConnectorID
	OutdatedVersions  []OutdatedVersion

	Errors   []LockfileIssue
	Warnings []LockfileIssue
}

// ChangeKind classifies a VersionChange.
type ChangeKind string

const (
	// ChangeAdded means the connector was not locked before.
	ChangeAdded ChangeKind = "added"
	// ChangeRemoved means the connector is no longer locked.
	ChangeRemoved ChangeKind = "removed"
	// ChangeUpgraded means the new version is higher.
	ChangeUpgraded ChangeKind = "upgraded"
	// ChangeDowngraded means the new version is lower.
	ChangeDowngraded ChangeKind = "downgraded"
)

// VersionChange is one difference between two lockfiles.
type VersionChange struct {
	ConnectorID ConnectorID
	From        Version
	To          Version
}

// Kind classifies the change.
func (c VersionChange) Kind() ChangeKind {
	switch {
	case c.From.IsZero():
		return ChangeAdded
	case c.To.IsZero():
		return ChangeRemoved
	case c.To.Compare(c.From) > 0:
		return ChangeUpgraded
	default:
		return ChangeDowngraded
	}
}

// String renders the change as "id: from -> to".
func (c VersionChange) String() string {
	from, to := c.From.String(), c.To.String()
	if from == "" {
		from = "(none)"
	}
	if to == "" {
		to = "(none)"
	}
	return string(c.ConnectorID) + ": " + from + " -> " + to
}

// DiffLockfiles lists the version changes from prev to next, sorted by connector id.
func DiffLockfiles(prev, next Lockfile) []VersionChange {
	ids := make(map[ConnectorID]struct{}, len(prev.ResolvedVersions)+len(next.ResolvedVersions))
	for id := range prev.ResolvedVersions {
		ids[id] = struct{}{}
	}
	for id := range next.ResolvedVersions {
		ids[id] = struct{}{}
	}
	sorted := slices.Sorted(maps.Keys(ids))

	var changes []VersionChange
	for _, id := range sorted {
		from, to := prev.ResolvedVersions[id], next.ResolvedVersions[id]
		if !from.IsZero() && !to.IsZero() && from.Equal(to) {
			continue
		}
		changes = append(changes, VersionChange{ConnectorID: id, From: from, To: to})
	}
	return changes
}

// LockfileUpdate is the outcome of re-resolving a lockfile.
type LockfileUpdate struct {
	// Lockfile is the new lockfile. It is the zero value when the resolution failed.
	Lockfile Lockfile
	// Previous is the untouched input lockfile.
	Previous Lockfile

	Changes  []VersionChange
	Warnings []LockfileIssue

	// Result is the resolution the update was computed from.
	Result ResolutionResult
}
