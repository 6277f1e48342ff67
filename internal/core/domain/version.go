package domain

import (
	"strings"

	mm "github.com/Masterminds/semver/v3"
	"go.trai.ch/zerr"
)

// Version is a semantic version of a connector.
//
// It wraps github.com/Masterminds/semver/v3 and is parsed strictly: partial
// versions such as "1.2" are rejected instead of being padded.
type Version struct {
	v *mm.Version
}

// ParseVersion parses a strict semantic version ("1.2.3", "1.2.3-rc.1").
func ParseVersion(raw string) (Version, error) {
	trimmed := strings.TrimSpace(raw)
	v, err := mm.StrictNewVersion(trimmed)
	if err != nil {
		e := zerr.Wrap(ErrInvalidVersionSyntax, err.Error())
		return Version{}, zerr.With(e, "input", raw)
	}
	return Version{v: v}, nil
}

// MustParseVersion is ParseVersion for literals known to be valid.
func MustParseVersion(raw string) Version {
	v, err := ParseVersion(raw)
	if err != nil {
		panic(err)
	}
	return v
}

// IsZero reports whether v was never parsed.
func (v Version) IsZero() bool {
	return v.v == nil
}

// IsPrerelease reports whether v carries a pre-release tag.
func (v Version) IsPrerelease() bool {
	return v.v != nil && v.v.Prerelease() != ""
}

// String returns the canonical form of the version.
func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.String()
}

// Compare returns -1, 0 or 1. The zero Version sorts before every parsed version.
func (v Version) Compare(o Version) int {
	switch {
	case v.v == nil && o.v == nil:
		return 0
	case v.v == nil:
		return -1
	case o.v == nil:
		return 1
	}
	return v.v.Compare(o.v)
}

// Equal reports whether both versions have the same precedence.
func (v Version) Equal(o Version) bool {
	return v.Compare(o) == 0
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Constraint is a predicate over versions parsed from range syntax.
//
// Pre-release versions are admitted whenever their precedence falls inside the
// range, so "^1.0.0" matches "1.1.0-beta.1" but not "1.0.0-rc.1" or "2.0.0-rc.1".
//
// Examples:
//   - "1.2.3" or "=1.2.3"
//   - ">=1.2.0 <2.0.0"
//   - "^1.0.0" (compatible within major)
//   - "~1.4.0" (compatible within minor)
type Constraint struct {
	raw string
	c   *mm.Constraints
}

// AnyVersion is the raw form of a constraint that admits every release.
const AnyVersion = "*"

// ParseConstraint parses a range expression. An empty expression means AnyVersion.
func ParseConstraint(raw string) (Constraint, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = AnyVersion
	}
	c, err := mm.NewConstraint(trimmed)
	if err != nil {
		e := zerr.With(zerr.Wrap(ErrInvalidConstraintSyntax, err.Error()), "input", raw)
		return Constraint{}, zerr.With(e, "detail", err.Error())
	}
	c.IncludePrerelease = true
	return Constraint{raw: trimmed, c: c}, nil
}

// MustParseConstraint is ParseConstraint for literals known to be valid.
func MustParseConstraint(raw string) Constraint {
	c, err := ParseConstraint(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// IsZero reports whether c was never parsed.
func (c Constraint) IsZero() bool {
	return c.c == nil
}

// String returns the expression as it was written.
func (c Constraint) String() string {
	return c.raw
}

// Check reports whether v satisfies c.
func (c Constraint) Check(v Version) bool {
	if c.c == nil || v.v == nil {
		return false
	}
	return c.c.Check(v.v)
}

// MarshalText implements encoding.TextMarshaler.
func (c Constraint) MarshalText() ([]byte, error) {
	return []byte(c.raw), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Constraint) UnmarshalText(text []byte) error {
	parsed, err := ParseConstraint(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// SatisfiesAll reports whether v satisfies every constraint. An empty list is vacuously true.
func SatisfiesAll(v Version, constraints []Constraint) bool {
	for _, c := range constraints {
		if !c.Check(v) {
			return false
		}
	}
	return true
}
