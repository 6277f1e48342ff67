// Package resolver exposes the connector dependency resolution engine.
//
// Engine is the entry point for callers: it resolves requests, turns results
// into lockfiles, explains failures, and validates or updates lockfiles
// against the manifest registry. Every operation is traced, measured and logged.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.trai.ch/connres/internal/core/domain"
	"go.trai.ch/connres/internal/core/ports"
	"go.trai.ch/connres/internal/engine/catalog"
	"go.trai.ch/connres/internal/engine/lockfile"
	"go.trai.ch/connres/internal/engine/solver"
	"go.trai.ch/zerr"
)

// Engine resolves connector requests against a manifest registry.
// It is safe for concurrent use; the registry cache is shared between calls.
type Engine struct {
	catalog *catalog.Catalog
	solver  *solver.Solver
	locks   *lockfile.Manager

	tracer  ports.Tracer
	metrics ports.Metrics
	logger  ports.Logger
	limits  domain.SolverLimits
	now     func() time.Time
}

type settings struct {
	tracer      ports.Tracer
	metrics     ports.Metrics
	logger      ports.Logger
	limits      domain.SolverLimits
	retry       domain.RetryPolicy
	ttl         time.Duration
	generatedBy string
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*settings)

// WithTracer traces every operation.
func WithTracer(t ports.Tracer) Option {
	return func(s *settings) { s.tracer = t }
}

// WithMetrics records resolutions, registry lookups and validations.
func WithMetrics(m ports.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithLogger logs operation outcomes.
func WithLogger(l ports.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithLimits sets the default solver budgets.
func WithLimits(limits domain.SolverLimits) Option {
	return func(s *settings) { s.limits = limits }
}

// WithRetryPolicy sets the backoff around registry lookups.
func WithRetryPolicy(policy domain.RetryPolicy) Option {
	return func(s *settings) { s.retry = policy }
}

// WithCacheTTL expires cached registry entries after d.
func WithCacheTTL(d time.Duration) Option {
	return func(s *settings) { s.ttl = d }
}

// WithGeneratedBy sets the identity recorded in lockfiles.
func WithGeneratedBy(name string) Option {
	return func(s *settings) { s.generatedBy = name }
}

// WithClock replaces time.Now for lockfile timestamps and time budgets.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// New creates an Engine in front of registry.
func New(registry ports.ManifestRegistry, opts ...Option) (*Engine, error) {
	s := settings{
		limits:      domain.SolverLimits{MaxExpansions: domain.DefaultMaxExpansions},
		retry:       domain.DefaultRetryPolicy(),
		generatedBy: domain.DefaultGeneratedBy,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}

	catalogOpts := []catalog.Option{
		catalog.WithRetryPolicy(s.retry),
		catalog.WithTTL(s.ttl),
		catalog.WithClock(s.now),
	}
	if s.metrics != nil {
		catalogOpts = append(catalogOpts, catalog.WithMetrics(s.metrics))
	}
	if s.logger != nil {
		catalogOpts = append(catalogOpts, catalog.WithLogger(s.logger))
	}
	c, err := catalog.New(registry, catalogOpts...)
	if err != nil {
		return nil, err
	}

	return &Engine{
		catalog: c,
		solver:  solver.New(c, solver.WithClock(s.now)),
		locks: lockfile.New(c,
			lockfile.WithClock(s.now),
			lockfile.WithGeneratedBy(s.generatedBy),
			lockfile.WithLimits(s.limits)),
		tracer:  s.tracer,
		metrics: s.metrics,
		logger:  s.logger,
		limits:  s.limits,
		now:     s.now,
	}, nil
}

// ResolveOption adjusts a single resolution call.
type ResolveOption func(*solver.Request)

// WithUnlock ignores the lockfile pins of the given connectors.
func WithUnlock(ids ...domain.ConnectorID) ResolveOption {
	return func(r *solver.Request) { r.Unlock = append(r.Unlock, ids...) }
}

// WithUnlockAll ignores every lockfile pin unless the strategy is Pinned.
func WithUnlockAll() ResolveOption {
	return func(r *solver.Request) { r.UnlockAll = true }
}

// WithCallLimits overrides the solver budgets for one call.
func WithCallLimits(limits domain.SolverLimits) ResolveOption {
	return func(r *solver.Request) { r.Limits = limits }
}

// Resolve computes one version per connector reachable from specs.
//
// The result is always populated: on failure it carries the outcome, the
// conflicts and the unresolved connectors, and the returned error wraps the
// matching domain sentinel. lf may be nil; when set, its pins are tried
// first as described by the strategy.
func (e *Engine) Resolve(
	ctx context.Context,
	specs []domain.DependencySpec,
	strategy domain.ResolutionStrategy,
	lf *domain.Lockfile,
	opts ...ResolveOption,
) (domain.ResolutionResult, error) {
	report := e.solve(ctx, "resolve", specs, strategy, lf, opts)
	return report.Result, report.Err
}

// GenerateLockfile converts a successful result into a lockfile.
func (e *Engine) GenerateLockfile(result domain.ResolutionResult) (domain.Lockfile, error) {
	lf, err := e.locks.Generate(result)
	if err != nil {
		return lf, err
	}
	e.debug(fmt.Sprintf("generated lockfile with %d connectors", len(lf.ResolvedVersions)))
	return lf, nil
}

// ExplainFailure resolves specs under HighestCompatible and returns the diagnostics.
// A failed resolution is not an error here: the diagnostics describe it.
// The error is set only when the request itself is invalid.
func (e *Engine) ExplainFailure(
	ctx context.Context,
	specs []domain.DependencySpec,
	opts ...ResolveOption,
) (domain.ResolutionDiagnostics, error) {
	report := e.solve(ctx, "explain", specs, domain.HighestCompatible, nil, opts)
	if report.Result.Outcome == domain.OutcomeInvalidInput {
		return report.Diagnostics, report.Err
	}
	return report.Diagnostics, nil
}

// ValidateLockfile checks a lockfile against the current registry state.
func (e *Engine) ValidateLockfile(ctx context.Context, lf domain.Lockfile) (domain.LockfileValidationResult, error) {
	ctx, span := e.start(ctx, "validate_lockfile", ports.WithAttribute("lockfile.connectors", len(lf.ResolvedVersions)))
	defer span.End()

	res, err := e.locks.Validate(ctx, lf)
	if err != nil {
		span.RecordError(err)
		return res, err
	}
	span.SetAttribute("lockfile.valid", res.IsValid)
	span.SetAttribute("lockfile.errors", len(res.Errors))
	span.SetAttribute("lockfile.warnings", len(res.Warnings))
	if e.metrics != nil {
		e.metrics.ObserveLockfileValidation(res.IsValid)
	}
	for _, w := range res.Warnings {
		e.warn(w.String())
	}
	return res, nil
}

// UpdateLockfile re-resolves the lockfile's root specs and returns the new lockfile
// along with the version changes. The input lockfile is not modified.
func (e *Engine) UpdateLockfile(
	ctx context.Context,
	lf domain.Lockfile,
	strategy domain.ResolutionStrategy,
) (domain.LockfileUpdate, error) {
	ctx, span := e.start(ctx, "update_lockfile",
		ports.WithAttribute("resolution.strategy", strategy.String()),
		ports.WithAttribute("lockfile.connectors", len(lf.ResolvedVersions)))
	defer span.End()

	if err := validateRequest(nil, strategy, &lf); err != nil {
		span.RecordError(err)
		return domain.LockfileUpdate{Previous: lf.Clone()}, err
	}

	start := e.now()
	update, err := e.locks.Update(ctx, lf, strategy)
	e.observe(strategy, update.Result, e.now().Sub(start))
	if err != nil {
		span.RecordError(err)
		return update, err
	}

	span.SetAttribute("lockfile.changes", len(update.Changes))
	for _, change := range update.Changes {
		e.info(fmt.Sprintf("%s (%s)", change, change.Kind()))
	}
	for _, w := range update.Warnings {
		e.warn(w.String())
	}
	return update, nil
}

func (e *Engine) solve(
	ctx context.Context,
	operation string,
	specs []domain.DependencySpec,
	strategy domain.ResolutionStrategy,
	lf *domain.Lockfile,
	opts []ResolveOption,
) solver.Report {
	ctx, span := e.start(ctx, operation,
		ports.WithAttribute("resolution.strategy", strategy.String()),
		ports.WithAttribute("resolution.specs", len(specs)))
	defer span.End()

	if err := validateRequest(specs, strategy, lf); err != nil {
		span.RecordError(err)
		return invalidInput(specs, strategy, err)
	}

	req := solver.Request{
		Specs:    specs,
		Strategy: strategy,
		Lockfile: lf,
		Limits:   e.limits,
	}
	for _, opt := range opts {
		opt(&req)
	}

	start := e.now()
	report := e.solver.Solve(ctx, req)
	elapsed := e.now().Sub(start)

	res := report.Result
	span.SetAttribute("resolution.outcome", res.Outcome.String())
	span.SetAttribute("resolution.connectors", len(res.ResolvedVersions))
	span.SetAttribute("resolution.expansions", res.Stats.Expansions)
	span.SetAttribute("resolution.backtracks", res.Stats.Backtracks)
	e.observe(strategy, res, elapsed)

	if report.Err != nil {
		span.RecordError(report.Err)
		e.debug(fmt.Sprintf("%s failed: %s after %d expansions", operation, res.Outcome, res.Stats.Expansions))
		return report
	}
	e.debug(fmt.Sprintf("%s resolved %d connectors in %d expansions", operation, len(res.ResolvedVersions), res.Stats.Expansions))
	return report
}

// validateRequest rejects malformed input before any registry lookup.
func validateRequest(specs []domain.DependencySpec, strategy domain.ResolutionStrategy, lf *domain.Lockfile) error {
	if !validStrategy(strategy) {
		return invalidStrategy(strategy)
	}
	for i, spec := range specs {
		if strings.TrimSpace(string(spec.ConnectorID)) == "" {
			e := zerr.Wrap(domain.ErrInvalidDependencySpec, "connector id is empty")
			return zerr.With(e, "index", i)
		}
		if spec.Constraint.IsZero() {
			e := zerr.Wrap(domain.ErrInvalidConstraintSyntax, "constraint was not parsed")
			return zerr.With(e, "connector", string(spec.ConnectorID))
		}
	}
	if lf != nil && lf.FormatVersion != domain.CurrentLockfileFormat {
		e := zerr.Wrap(domain.ErrUnsupportedLockfileFormat, "cannot resolve against lockfile")
		return zerr.With(e, "format_version", lf.FormatVersion)
	}
	return nil
}

func validStrategy(s domain.ResolutionStrategy) bool {
	switch s {
	case domain.HighestCompatible, domain.LowestCompatible, domain.PreferStable, domain.Pinned:
		return true
	default:
		return false
	}
}

func invalidStrategy(s domain.ResolutionStrategy) error {
	return zerr.With(zerr.Wrap(domain.ErrInvalidStrategy, "unknown strategy"), "strategy", int(s))
}

func invalidInput(specs []domain.DependencySpec, strategy domain.ResolutionStrategy, err error) solver.Report {
	return solver.Report{
		Result: domain.ResolutionResult{
			Specs:            specs,
			Strategy:         strategy,
			ResolvedVersions: map[domain.ConnectorID]domain.Version{},
			Outcome:          domain.OutcomeInvalidInput,
		},
		Diagnostics: domain.ResolutionDiagnostics{Outcome: domain.OutcomeInvalidInput},
		Err:         err,
	}
}

func (e *Engine) observe(strategy domain.ResolutionStrategy, res domain.ResolutionResult, elapsed time.Duration) {
	if e.metrics != nil {
		e.metrics.ObserveResolution(strategy, res.Outcome, res.Stats, elapsed)
	}
}

func (e *Engine) start(ctx context.Context, name string, opts ...ports.SpanOption) (context.Context, ports.Span) {
	if e.tracer == nil {
		return ctx, noopSpan{}
	}
	return e.tracer.Start(ctx, name, opts...)
}

func (e *Engine) debug(msg string) {
	if e.logger != nil {
		e.logger.Debug(msg)
	}
}

func (e *Engine) info(msg string) {
	if e.logger != nil {
		e.logger.Info(msg)
	}
}

func (e *Engine) warn(msg string) {
	if e.logger != nil {
		e.logger.Warn(msg)
	}
}

type noopSpan struct{}

func (noopSpan) End() {}

func (noopSpan) RecordError(error) {}

func (noopSpan) SetAttribute(string, any) {}
