package domain

import (
	"fmt"
	"strings"
)

// ReasonKind names a ConflictReason variant.
type ReasonKind string

const (
	// ReasonIncompatibleRanges means several requesters asked for disjoint ranges.
	ReasonIncompatibleRanges ReasonKind = "incompatible-ranges"
	// ReasonNoMatchingVersion means a single range matches no published version.
	ReasonNoMatchingVersion ReasonKind = "no-matching-version"
	// ReasonMissingConnector means the connector is absent from the registry.
	ReasonMissingConnector ReasonKind = "missing-connector"
	// ReasonCyclicRequirement means the conflict sits on a dependency cycle.
	ReasonCyclicRequirement ReasonKind = "cyclic-requirement"
)

// ConflictReason explains why a connector had no viable version.
// The variant set is closed: IncompatibleRanges, NoMatchingVersion,
// MissingConnector and CyclicRequirement.
type ConflictReason interface {
	Kind() ReasonKind
	String() string
	conflictReason()
}

// IncompatibleRanges is reported when the ranges of several requesters do not intersect.
type IncompatibleRanges struct {
	Requesters []Requester
}

// Kind implements ConflictReason.
func (IncompatibleRanges) Kind() ReasonKind { return ReasonIncompatibleRanges }

func (r IncompatibleRanges) String() string {
	names := make([]string, 0, len(r.Requesters))
	for _, req := range r.Requesters {
		names = append(names, req.String())
	}
	return "incompatible ranges requested by " + strings.Join(names, ", ")
}

func (IncompatibleRanges) conflictReason() {}

// NoMatchingVersion is reported when one range matches no published version.
type NoMatchingVersion struct {
	Constraint Constraint
	Requester  Requester
}

// Kind implements ConflictReason.
func (NoMatchingVersion) Kind() ReasonKind { return ReasonNoMatchingVersion }

func (r NoMatchingVersion) String() string {
	return fmt.Sprintf("no published version matches %q (requested by %s)", r.Constraint.String(), r.Requester)
}

func (NoMatchingVersion) conflictReason() {}

// MissingConnector is reported when the registry does not know the connector.
type MissingConnector struct{}

// Kind implements ConflictReason.
func (MissingConnector) Kind() ReasonKind { return ReasonMissingConnector }

func (MissingConnector) String() string { return "connector not found in registry" }

func (MissingConnector) conflictReason() {}

// CyclicRequirement is reported when a conflicting requirement closes a dependency cycle.
type CyclicRequirement struct {
	// Path starts and ends with the same connector, e.g. a -> b -> a.
	Path []ConnectorID
}

// Kind implements ConflictReason.
func (CyclicRequirement) Kind() ReasonKind { return ReasonCyclicRequirement }

func (r CyclicRequirement) String() string {
	return "dependency cycle " + FormatPath(r.Path)
}

func (CyclicRequirement) conflictReason() {}

// FormatPath renders a connector chain as "a -> b -> c".
func FormatPath(path []ConnectorID) string {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = string(id)
	}
	return strings.Join(parts, " -> ")
}

// Relaxation reports which versions would become viable without one requirement.
type Relaxation struct {
	Dropped  Requirement
	Versions []Version
}

// ConflictInfo records a connector whose accumulated requirements admitted no version.
type ConflictInfo struct {
	ConnectorID ConnectorID

	// ConflictingVersions are the constraints of Requirements, in the order they were added.
	ConflictingVersions []Constraint
	Requirements        []Requirement

	Reason ConflictReason

	// SuggestedVersions are the versions of the first relaxation that admits any.
	SuggestedVersions []Version
	Relaxations       []Relaxation
}

// Constraints returns the raw text of every conflicting constraint.
func (c ConflictInfo) Constraints() []string {
	out := make([]string, len(c.ConflictingVersions))
	for i, cons := range c.ConflictingVersions {
		out[i] = cons.String()
	}
	return out
}

// String renders a one-line description of the conflict.
func (c ConflictInfo) String() string {
	reqs := make([]string, len(c.Requirements))
	for i, r := range c.Requirements {
		reqs[i] = r.String()
	}
	reason := "no viable version"
	if c.Reason != nil {
		reason = c.Reason.String()
	}
	return fmt.Sprintf("%s: %s [%s]", c.ConnectorID, reason, strings.Join(reqs, "; "))
}

// ResolutionDiagnostics explains a failed (or successful) resolution.
type ResolutionDiagnostics struct {
	Outcome   Outcome
	Conflicts []ConflictInfo

	// AvailableVersions lists every registry version of each implicated connector.
	AvailableVersions map[ConnectorID][]Version

	CyclePaths [][]ConnectorID
	Unresolved []ConnectorID
	Stats      SearchStats
}

// Summary renders actionable, multi-line text for the diagnostics.
func (d ResolutionDiagnostics) Summary() string {
	var b strings.Builder
	if d.Outcome == OutcomeResolved {
		b.WriteString("resolution succeeded")
		return b.String()
	}
	fmt.Fprintf(&b, "resolution failed: %s", d.Outcome)

	for _, c := range d.Conflicts {
		fmt.Fprintf(&b, "\n\n%s", c.ConnectorID)
		if c.Reason != nil {
			fmt.Fprintf(&b, ": %s", c.Reason)
		}
		for _, r := range c.Requirements {
			fmt.Fprintf(&b, "\n  requires %s", r)
		}
		for _, rel := range c.Relaxations {
			if len(rel.Versions) == 0 {
				continue
			}
			fmt.Fprintf(&b, "\n  without %s: %s would work", rel.Dropped, joinVersions(rel.Versions))
		}
		if available, ok := d.AvailableVersions[c.ConnectorID]; ok {
			if len(available) == 0 {
				b.WriteString("\n  available: none")
			} else {
				fmt.Fprintf(&b, "\n  available: %s", joinVersions(available))
			}
		}
	}

	for _, path := range d.CyclePaths {
		fmt.Fprintf(&b, "\n\ncycle: %s", FormatPath(path))
	}

	if len(d.Unresolved) > 0 {
		names := make([]string, len(d.Unresolved))
		for i, id := range d.Unresolved {
			names[i] = string(id)
		}
		fmt.Fprintf(&b, "\n\nunresolved: %s", strings.Join(names, ", "))
	}
	return b.String()
}

func joinVersions(versions []Version) string {
	parts := make([]string, len(versions))
	for i, v := range versions {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}
