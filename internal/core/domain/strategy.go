package domain

import (
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// ResolutionStrategy is the policy that decides which satisfying version is preferred.
type ResolutionStrategy int

const (
	// HighestCompatible prefers the newest version satisfying every constraint.
	HighestCompatible ResolutionStrategy = iota
	// LowestCompatible prefers the oldest version satisfying every constraint.
	LowestCompatible
	// PreferStable prefers stable releases (newest first) over pre-releases.
	PreferStable
	// Pinned prefers the version recorded in the lockfile, then behaves like HighestCompatible.
	Pinned
)

// String returns the configuration name of the strategy.
func (s ResolutionStrategy) String() string {
	switch s {
	case HighestCompatible:
		return "highest"
	case LowestCompatible:
		return "lowest"
	case PreferStable:
		return "stable"
	case Pinned:
		return "pinned"
	default:
		return "unknown"
	}
}

// ParseStrategy converts a configuration name into a ResolutionStrategy.
// An empty name selects HighestCompatible.
func ParseStrategy(s string) (ResolutionStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "highest", "highestcompatible", "highest-compatible":
		return HighestCompatible, nil
	case "lowest", "lowestcompatible", "lowest-compatible":
		return LowestCompatible, nil
	case "stable", "preferstable", "prefer-stable":
		return PreferStable, nil
	case "pinned":
		return Pinned, nil
	default:
		return HighestCompatible, zerr.With(zerr.Wrap(ErrInvalidStrategy, "unknown strategy"), "strategy", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s ResolutionStrategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ResolutionStrategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// HonorsPins reports whether a lockfile pin is tried first under this strategy.
// PreferStable lets stability outrank the previous lock.
func (s ResolutionStrategy) HonorsPins() bool {
	return s != PreferStable
}

// SortCandidates returns the candidates ordered by preference under the strategy.
//
// The input is first put in canonical ascending version order so equal keys
// always tie the same way. Deprecated versions go last, so the head of the
// ordering is the preferred version among the non-deprecated candidates and a
// deprecated version wins only when nothing else is viable. When pin is non-nil
// and present among the candidates, it is moved to the front.
func SortCandidates(strategy ResolutionStrategy, candidates []ConnectorVersion, pin *Version) []ConnectorVersion {
	sorted := slices.Clone(candidates)
	slices.SortStableFunc(sorted, func(a, b ConnectorVersion) int {
		return a.Version.Compare(b.Version)
	})

	switch strategy {
	case LowestCompatible:
		// already ascending
	case PreferStable:
		slices.SortStableFunc(sorted, func(a, b ConnectorVersion) int {
			as, bs := a.Stable(), b.Stable()
			if as != bs {
				if as {
					return -1
				}
				return 1
			}
			return b.Version.Compare(a.Version)
		})
	default:
		slices.Reverse(sorted)
	}

	// Deprecated versions are tried only after every other candidate.
	slices.SortStableFunc(sorted, func(a, b ConnectorVersion) int {
		switch {
		case a.Deprecated == b.Deprecated:
			return 0
		case b.Deprecated:
			return -1
		default:
			return 1
		}
	})

	if pin == nil {
		return sorted
	}
	idx := slices.IndexFunc(sorted, func(cv ConnectorVersion) bool {
		return cv.Version.Equal(*pin)
	})
	if idx > 0 {
		pinned := sorted[idx]
		copy(sorted[1:idx+1], sorted[:idx])
		sorted[0] = pinned
	}
	return sorted
}
