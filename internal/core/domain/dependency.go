package domain

import (
	"strings"
	"time"

	"go.trai.ch/zerr"
)

// ConnectorID is the opaque, stable identifier of a connector in the manifest registry.
type ConnectorID string

// String returns the identifier as a string.
func (id ConnectorID) String() string {
	return string(id)
}

// DependencySpec represents a request for a connector within a version range.
// It appears both as a root request and as a dependency declared by a manifest.
type DependencySpec struct {
	// ConnectorID is the requested connector.
	ConnectorID ConnectorID

	// Constraint is the accepted version range.
	Constraint Constraint
}

// NewDependencySpec builds a DependencySpec from an id and a raw range expression.
func NewDependencySpec(id ConnectorID, rawConstraint string) (DependencySpec, error) {
	if strings.TrimSpace(string(id)) == "" {
		return DependencySpec{}, zerr.With(zerr.Wrap(ErrInvalidDependencySpec, "connector id is empty"),
			"input", string(id)+"@"+rawConstraint)
	}
	c, err := ParseConstraint(rawConstraint)
	if err != nil {
		return DependencySpec{}, zerr.With(err, "connector", string(id))
	}
	return DependencySpec{ConnectorID: ConnectorID(strings.TrimSpace(string(id))), Constraint: c}, nil
}

// MustDependencySpec is NewDependencySpec for literals known to be valid.
func MustDependencySpec(id ConnectorID, rawConstraint string) DependencySpec {
	spec, err := NewDependencySpec(id, rawConstraint)
	if err != nil {
		panic(err)
	}
	return spec
}

// ParseDependencySpec parses the "connector@constraint" form.
// A spec without "@" requests any version of the connector.
func ParseDependencySpec(raw string) (DependencySpec, error) {
	id, constraint, _ := strings.Cut(strings.TrimSpace(raw), "@")
	if id == "" {
		return DependencySpec{}, zerr.With(zerr.Wrap(ErrInvalidDependencySpec, "connector id is empty"), "input", raw)
	}
	return NewDependencySpec(ConnectorID(id), constraint)
}

// String renders the spec as "connector@constraint".
func (d DependencySpec) String() string {
	return string(d.ConnectorID) + "@" + d.Constraint.String()
}

// ConnectorVersion is the manifest of one published version of a connector.
type ConnectorVersion struct {
	ConnectorID ConnectorID
	Version     Version
	PublishedAt time.Time

	// IsStable is the publisher's stability flag.
	IsStable bool
	// IsLatest marks the version the registry advertises as current.
	IsLatest bool
	// Deprecated versions stay resolvable but fail lockfile validation.
	Deprecated bool

	// Dependencies are the connectors this version requires, in declared order.
	Dependencies []DependencySpec
}

// Stable reports whether the version is flagged stable and carries no pre-release tag.
func (cv ConnectorVersion) Stable() bool {
	return cv.IsStable && !cv.Version.IsPrerelease()
}

// String renders the version as "connector@version".
func (cv ConnectorVersion) String() string {
	return string(cv.ConnectorID) + "@" + cv.Version.String()
}

// Requester identifies who contributed a constraint: the caller's root request
// or a specific connector version through its declared dependencies.
type Requester struct {
	ConnectorID ConnectorID
	Version     Version
}

// RootRequester is the requester of constraints that come from the caller.
var RootRequester = Requester{}

// RequesterOf returns the requester for a dependency declared by cv.
func RequesterOf(cv ConnectorVersion) Requester {
	return Requester{ConnectorID: cv.ConnectorID, Version: cv.Version}
}

// IsRoot reports whether the constraint came from the caller.
func (r Requester) IsRoot() bool {
	return r.ConnectorID == ""
}

// String renders "root" or "connector@version".
func (r Requester) String() string {
	if r.IsRoot() {
		return "root"
	}
	return string(r.ConnectorID) + "@" + r.Version.String()
}

// Requirement is one constraint accumulated against a connector, with its origin.
type Requirement struct {
	Constraint Constraint
	Requester  Requester
}

// String renders the requirement as `"<constraint>" from <requester>`.
func (r Requirement) String() string {
	return `"` + r.Constraint.String() + `" from ` + r.Requester.String()
}
