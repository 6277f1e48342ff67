// Package lockfile generates, validates and updates connector lockfiles.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"go.trai.ch/connres/internal/core/domain"
	"go.trai.ch/connres/internal/engine/solver"
	"go.trai.ch/zerr"
)

// Source is the registry view the manager needs: cached lookups that can be
// refreshed before a lockfile is checked against current registry state.
// *catalog.Catalog implements it.
type Source interface {
	solver.VersionSource
	Forget(ids ...domain.ConnectorID)
}

// Manager turns resolutions into lockfiles and checks lockfiles against the registry.
type Manager struct {
	src         Source
	solver      *solver.Solver
	now         func() time.Time
	generatedBy string
	limits      domain.SolverLimits
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithGeneratedBy sets the identity recorded in generated lockfiles.
func WithGeneratedBy(name string) Option {
	return func(m *Manager) {
		m.generatedBy = name
	}
}

// WithLimits sets the solver budgets used by Update.
func WithLimits(limits domain.SolverLimits) Option {
	return func(m *Manager) {
		m.limits = limits
	}
}

// New creates a Manager.
func New(src Source, opts ...Option) *Manager {
	m := &Manager{
		src:         src,
		now:         time.Now,
		generatedBy: domain.DefaultGeneratedBy,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.solver = solver.New(src)
	return m
}

// Generate converts a successful resolution into a lockfile.
func (m *Manager) Generate(result domain.ResolutionResult) (domain.Lockfile, error) {
	if !result.Success {
		e := zerr.Wrap(domain.ErrCannotLockFailedResolution, "resolution did not succeed")
		return domain.Lockfile{}, zerr.With(e, "outcome", result.Outcome.String())
	}

	versions := maps.Clone(result.ResolvedVersions)
	if versions == nil {
		versions = map[domain.ConnectorID]domain.Version{}
	}
	return domain.Lockfile{
		FormatVersion:    domain.CurrentLockfileFormat,
		GeneratedAt:      m.now().UTC(),
		GeneratedBy:      m.generatedBy,
		ResolvedVersions: versions,
		Metadata: domain.LockMetadata{
			RootSpecs: slices.Clone(result.Specs),
			Strategy:  result.Strategy,
			Digest:    domain.ComputeDigest(versions),
		},
	}, nil
}

// Validate checks every pin against the current registry state.
// Registry failures are reported as issues; only cancellation returns an error.
func (m *Manager) Validate(ctx context.Context, lf domain.Lockfile) (domain.LockfileValidationResult, error) {
	var v validation

	if lf.FormatVersion != domain.CurrentLockfileFormat {
		v.fail("", domain.IssueUnsupportedFormat,
			fmt.Sprintf("format version %d is not supported, expected %d", lf.FormatVersion, domain.CurrentLockfileFormat))
		return v.result(), nil
	}
	if lf.Metadata.Digest != "" && lf.Metadata.Digest != domain.ComputeDigest(lf.ResolvedVersions) {
		v.fail("", domain.IssueDigestMismatch, "pinned versions do not match the recorded digest "+lf.Metadata.Digest)
	}

	ids := involved(lf)
	m.src.Forget(ids...)
	lookups := m.src.Prefetch(ctx, ids)
	if err := ctx.Err(); err != nil {
		return domain.LockfileValidationResult{}, zerr.Wrap(domain.ErrResolutionCancelled, err.Error())
	}

	published := make(map[domain.ConnectorID][]domain.ConnectorVersion, len(lookups))
	for _, l := range lookups {
		if l.Err == nil {
			published[l.ConnectorID] = l.Versions
			continue
		}
		if _, pinned := lf.Pin(l.ConnectorID); !pinned {
			continue
		}
		if errors.Is(l.Err, domain.ErrConnectorNotFound) {
			v.missing = append(v.missing, l.ConnectorID)
			v.fail(l.ConnectorID, domain.IssueMissingConnector, "connector no longer exists in the registry")
		} else {
			v.fail(l.ConnectorID, domain.IssueRegistryUnavailable, "registry lookup failed: "+l.Err.Error())
		}
	}

	// Requirements every pin must satisfy: root specs plus the declared
	// dependencies of the other pinned versions.
	reqs := make(map[domain.ConnectorID][]domain.Requirement)
	for _, spec := range lf.Metadata.RootSpecs {
		reqs[spec.ConnectorID] = append(reqs[spec.ConnectorID],
			domain.Requirement{Constraint: spec.Constraint, Requester: domain.RootRequester})
	}

	graph := domain.NewDependencyGraph()
	for _, entry := range lf.Entries() {
		cv, ok := find(published[entry.ConnectorID], entry.Version)
		var deps []domain.ConnectorID
		if ok {
			for _, dep := range cv.Dependencies {
				deps = append(deps, dep.ConnectorID)
				reqs[dep.ConnectorID] = append(reqs[dep.ConnectorID],
					domain.Requirement{Constraint: dep.Constraint, Requester: domain.RequesterOf(cv)})
			}
		}
		if err := graph.AddConnector(entry.ConnectorID, deps); err != nil {
			return domain.LockfileValidationResult{}, err
		}
	}

	for id := range graph.Walk() {
		pinned, _ := lf.Pin(id)
		versions, ok := published[id]
		if !ok {
			continue
		}
		cv, found := find(versions, pinned)
		switch {
		case !found:
			v.outdated(id, pinned, fmt.Sprintf("version %s is no longer published", pinned))
			continue
		case cv.Deprecated:
			v.outdated(id, pinned, fmt.Sprintf("version %s is deprecated", pinned))
		}
		for _, req := range reqs[id] {
			if !req.Constraint.Check(pinned) {
				v.outdated(id, pinned, fmt.Sprintf("version %s does not satisfy %s", pinned, req))
			}
		}
		for _, dep := range cv.Dependencies {
			if _, ok := lf.Pin(dep.ConnectorID); !ok {
				v.fail(dep.ConnectorID, domain.IssueMissingPin, fmt.Sprintf("required by %s but not pinned", cv))
			}
		}
		if newer, ok := newestCompatible(versions, reqs[id]); ok && newer.Compare(pinned) > 0 {
			v.warn(id, domain.IssueNewerAvailable, fmt.Sprintf("version %s is available, pinned %s", newer, pinned))
		}
	}

	for _, spec := range lf.Metadata.RootSpecs {
		if _, ok := lf.Pin(spec.ConnectorID); !ok {
			v.fail(spec.ConnectorID, domain.IssueMissingPin, fmt.Sprintf("root requirement %s has no pin", spec))
		}
	}
	for _, cycle := range graph.Cycles() {
		v.warn(cycle[0], domain.IssueCycle, "pinned connectors depend on each other: "+domain.FormatPath(cycle))
	}

	return v.result(), nil
}

// Update re-resolves the lockfile's root specs with the lockfile as baseline
// and returns a new lockfile. The input is never modified.
//
// Every pin is unlocked unless strategy is Pinned, so connectors move to the
// version the strategy prefers. A pin that stays put although the registry
// has a newer stable version is reported as a warning.
func (m *Manager) Update(
	ctx context.Context,
	lf domain.Lockfile,
	strategy domain.ResolutionStrategy,
) (domain.LockfileUpdate, error) {
	previous := lf.Clone()
	update := domain.LockfileUpdate{Previous: previous}

	if lf.FormatVersion != domain.CurrentLockfileFormat {
		e := zerr.Wrap(domain.ErrUnsupportedLockfileFormat, "cannot update lockfile")
		return update, zerr.With(e, "format_version", lf.FormatVersion)
	}

	roots := rootSpecs(previous)
	ids := involved(previous)
	m.src.Forget(ids...)

	report := m.solver.Solve(ctx, solver.Request{
		Specs:     roots,
		Strategy:  strategy,
		Lockfile:  &previous,
		UnlockAll: strategy != domain.Pinned,
		Limits:    m.limits,
	})
	update.Result = report.Result
	if report.Err != nil {
		e := zerr.With(zerr.Wrap(domain.ErrCannotLockFailedResolution, report.Err.Error()), "outcome", report.Result.Outcome.String())
		return update, e
	}

	next, err := m.Generate(report.Result)
	if err != nil {
		return update, err
	}
	next.Metadata.Extensions = maps.Clone(previous.Metadata.Extensions)

	update.Lockfile = next
	update.Changes = domain.DiffLockfiles(previous, next)
	for _, entry := range next.Entries() {
		old, ok := previous.Pin(entry.ConnectorID)
		if !ok || !old.Equal(entry.Version) {
			continue
		}
		versions, err := m.src.Versions(ctx, entry.ConnectorID)
		if err != nil {
			continue
		}
		newest, ok := newestStable(versions)
		if !ok || newest.Compare(entry.Version) <= 0 {
			continue
		}
		if strategy == domain.Pinned {
			update.Warnings = append(update.Warnings, domain.LockfileIssue{
				ConnectorID: entry.ConnectorID,
				Kind:        domain.IssueNewerAvailable,
				Message:     fmt.Sprintf("version %s is available, pinned %s kept", newest, entry.Version),
			})
			continue
		}
		update.Warnings = append(update.Warnings, domain.LockfileIssue{
			ConnectorID: entry.ConnectorID,
			Kind:        domain.IssueRetained,
			Message:     fmt.Sprintf("version %s does not satisfy current constraints, keeping %s", newest, entry.Version),
		})
	}
	return update, nil
}

// rootSpecs returns the recorded root specs. A lockfile without them, such as
// a hand-written one, treats every pin as a root requesting any version.
func rootSpecs(lf domain.Lockfile) []domain.DependencySpec {
	if len(lf.Metadata.RootSpecs) > 0 {
		return lf.Metadata.RootSpecs
	}
	specs := make([]domain.DependencySpec, 0, len(lf.ResolvedVersions))
	for _, entry := range lf.Entries() {
		specs = append(specs, domain.DependencySpec{
			ConnectorID: entry.ConnectorID,
			Constraint:  domain.MustParseConstraint(domain.AnyVersion),
		})
	}
	return specs
}

// involved returns the pinned and root connector ids, sorted and unique.
func involved(lf domain.Lockfile) []domain.ConnectorID {
	ids := slices.Collect(maps.Keys(lf.ResolvedVersions))
	for _, spec := range lf.Metadata.RootSpecs {
		ids = append(ids, spec.ConnectorID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

func find(versions []domain.ConnectorVersion, v domain.Version) (domain.ConnectorVersion, bool) {
	i := slices.IndexFunc(versions, func(cv domain.ConnectorVersion) bool {
		return cv.Version.Equal(v)
	})
	if i < 0 {
		return domain.ConnectorVersion{}, false
	}
	return versions[i], true
}

// newestCompatible returns the highest stable, non-deprecated version
// satisfying every requirement.
func newestCompatible(versions []domain.ConnectorVersion, reqs []domain.Requirement) (domain.Version, bool) {
	for i := len(versions) - 1; i >= 0; i-- {
		cv := versions[i]
		if !cv.Stable() || cv.Deprecated {
			continue
		}
		if slices.ContainsFunc(reqs, func(r domain.Requirement) bool { return !r.Constraint.Check(cv.Version) }) {
			continue
		}
		return cv.Version, true
	}
	return domain.Version{}, false
}

func newestStable(versions []domain.ConnectorVersion) (domain.Version, bool) {
	return newestCompatible(versions, nil)
}

type validation struct {
	missing  []domain.ConnectorID
	outdate  []domain.OutdatedVersion
	errs     []domain.LockfileIssue
	warnings []domain.LockfileIssue
}

func (v *validation) fail(id domain.ConnectorID, kind domain.IssueKind, msg string) {
	v.errs = append(v.errs, domain.LockfileIssue{ConnectorID: id, Kind: kind, Message: msg})
}

func (v *validation) warn(id domain.ConnectorID, kind domain.IssueKind, msg string) {
	v.warnings = append(v.warnings, domain.LockfileIssue{ConnectorID: id, Kind: kind, Message: msg})
}

func (v *validation) outdated(id domain.ConnectorID, pinned domain.Version, reason string) {
	v.outdate = append(v.outdate, domain.OutdatedVersion{ConnectorID: id, Pinned: pinned, Reason: reason})
	v.fail(id, domain.IssueOutdatedVersion, reason)
}

func (v *validation) result() domain.LockfileValidationResult {
	return domain.LockfileValidationResult{
		IsValid:           len(v.errs) == 0,
		MissingConnectors: v.missing,
		OutdatedVersions:  v.outdate,
		Errors:            v.errs,
		Warnings:          v.warnings,
	}
}
