package domain

import (
	"slices"
	"strings"
)

// Outcome classifies how a resolution call ended.
type Outcome int

const (
	// OutcomeResolved means every connector received a version.
	OutcomeResolved Outcome = iota
	// OutcomeUnsatisfiable means the search exhausted every branch.
	OutcomeUnsatisfiable
	// OutcomeCyclic means a dependency cycle carried ranges that cannot hold together.
	OutcomeCyclic
	// OutcomeNotFound means a required connector is absent from the registry.
	OutcomeNotFound
	// OutcomeBudgetExceeded means the node or time budget aborted the search.
	OutcomeBudgetExceeded
	// OutcomeRegistryUnavailable means registry lookups kept failing after retries.
	OutcomeRegistryUnavailable
	// OutcomeCancelled means the caller cancelled the call.
	OutcomeCancelled
	// OutcomeInvalidInput means the request was rejected before the search began.
	OutcomeInvalidInput
)

// String returns a short, stable name for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeResolved:
		return "resolved"
	case OutcomeUnsatisfiable:
		return "unsatisfiable"
	case OutcomeCyclic:
		return "cyclic"
	case OutcomeNotFound:
		return "not-found"
	case OutcomeBudgetExceeded:
		return "budget-exceeded"
	case OutcomeRegistryUnavailable:
		return "registry-unavailable"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeInvalidInput:
		return "invalid-input"
	default:
		return "unknown"
	}
}

// Err returns the sentinel error matching the outcome, or nil on success.
func (o Outcome) Err() error {
	switch o {
	case OutcomeResolved:
		return nil
	case OutcomeCyclic:
		return ErrCyclicDependency
	case OutcomeNotFound:
		return ErrConnectorNotFound
	case OutcomeBudgetExceeded:
		return ErrResolutionBudgetExceeded
	case OutcomeRegistryUnavailable:
		return ErrRegistryUnavailable
	case OutcomeCancelled:
		return ErrResolutionCancelled
	case OutcomeInvalidInput:
		return ErrInvalidDependencySpec
	default:
		return ErrUnsatisfiableConstraintSet
	}
}

// SearchStats counts the work a resolution call performed.
type SearchStats struct {
	// Expansions is the number of candidate assignments tried.
	Expansions int
	// Backtracks is the number of times a connector ran out of candidates.
	Backtracks int
	// RegistryLookups is the number of distinct connectors fetched.
	RegistryLookups int
}

// ResolvedEntry is one connector and its assigned version.
type ResolvedEntry struct {
	ConnectorID ConnectorID
	Version     Version
}

// String renders the entry as "connector@version".
func (e ResolvedEntry) String() string {
	return string(e.ConnectorID) + "@" + e.Version.String()
}

// ResolutionResult is the outcome of a resolution call.
//
// A failed result is a value too: Outcome, Conflicts and Unresolved describe
// what went wrong, and ResolvedVersions is empty.
type ResolutionResult struct {
	// Specs are the root requests the result was computed for.
	Specs []DependencySpec
	// Strategy is the policy that was applied.
	Strategy ResolutionStrategy

	ResolvedVersions map[ConnectorID]Version
	Unresolved       []ConnectorID
	Conflicts        []ConflictInfo

	Success bool
	Outcome Outcome
	Stats   SearchStats
}

// Version returns the version assigned to id.
func (r ResolutionResult) Version(id ConnectorID) (Version, bool) {
	v, ok := r.ResolvedVersions[id]
	return v, ok
}

// Entries returns the assignments sorted by connector id.
func (r ResolutionResult) Entries() []ResolvedEntry {
	return sortedEntries(r.ResolvedVersions)
}

// Err returns the error matching the outcome, or nil on success.
func (r ResolutionResult) Err() error {
	return r.Outcome.Err()
}

func sortedEntries(versions map[ConnectorID]Version) []ResolvedEntry {
	entries := make([]ResolvedEntry, 0, len(versions))
	for id, v := range versions {
		entries = append(entries, ResolvedEntry{ConnectorID: id, Version: v})
	}
	slices.SortFunc(entries, func(a, b ResolvedEntry) int {
		return strings.Compare(string(a.ConnectorID), string(b.ConnectorID))
	})
	return entries
}
