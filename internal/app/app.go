// Package app implements the application layer for connres.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.trai.ch/connres/internal/adapters/config" //nolint:depguard // config discovery lives with the loader
	"go.trai.ch/connres/internal/core/domain"
	"go.trai.ch/connres/internal/core/ports"
	"go.trai.ch/connres/internal/engine/resolver"
	"go.trai.ch/zerr"
)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	registries   ports.RegistrySource
	store        ports.LockfileStore
	logger       ports.Logger
	tracer       ports.Tracer
	metrics      ports.Metrics
	exporter     ports.MetricsExporter
	out          io.Writer
	engineOpts   []resolver.Option
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	registries ports.RegistrySource,
	store ports.LockfileStore,
	log ports.Logger,
	tracer ports.Tracer,
	metrics ports.Metrics,
	exporter ports.MetricsExporter,
) *App {
	return &App{
		configLoader: loader,
		registries:   registries,
		store:        store,
		logger:       log,
		tracer:       tracer,
		metrics:      metrics,
		exporter:     exporter,
		out:          os.Stdout,
	}
}

// WithOutput redirects command output, which defaults to stdout.
func (a *App) WithOutput(w io.Writer) *App {
	a.out = w
	return a
}

// WithEngineOptions appends options to every engine the App builds.
// This is primarily used for testing to pin the clock.
func (a *App) WithEngineOptions(opts ...resolver.Option) *App {
	a.engineOpts = append(a.engineOpts, opts...)
	return a
}

// Options are the flags shared by every command.
type Options struct {
	// ConfigPath is the configuration file. Empty searches upwards from the working directory.
	ConfigPath string
	// Strategy overrides the configured strategy when set.
	Strategy string
	// Specs override the configured requirements when set, as "connector@range".
	Specs []string
	// MetricsFile receives a Prometheus text dump after the command when set.
	MetricsFile string
	// Verbose lowers the log level to debug.
	Verbose bool
	// JSON switches the logger to JSON lines.
	JSON bool

	// Unlock ignores the lockfile pins of these connectors.
	Unlock []string
	// UnlockAll ignores every lockfile pin.
	UnlockAll bool
	// NoLockfile resolves without reading the lockfile.
	NoLockfile bool
}

type session struct {
	cfg      domain.EngineConfig
	engine   *resolver.Engine
	specs    []domain.DependencySpec
	strategy domain.ResolutionStrategy
}

// Resolve resolves the configured requirements and prints one line per connector.
// The lockfile, when present, seeds the search but is not written.
func (a *App) Resolve(ctx context.Context, opts Options) (res domain.ResolutionResult, err error) {
	defer a.exportMetrics(opts, &err)

	s, err := a.open(opts)
	if err != nil {
		return domain.ResolutionResult{}, err
	}

	var lf *domain.Lockfile
	if !opts.NoLockfile {
		if lf, err = a.store.Load(s.cfg.Lockfile); err != nil {
			return domain.ResolutionResult{}, err
		}
	}

	res, err = s.engine.Resolve(ctx, s.specs, s.strategy, lf, resolveOptions(opts)...)
	if err != nil {
		a.printConflicts(res)
		return res, zerr.Wrap(err, "resolution failed")
	}

	for _, entry := range resolvedEntries(res) {
		a.printf("%s\n", entry)
	}
	return res, nil
}

// Lock resolves the configured requirements and writes the lockfile.
func (a *App) Lock(ctx context.Context, opts Options) (lf domain.Lockfile, err error) {
	defer a.exportMetrics(opts, &err)

	s, err := a.open(opts)
	if err != nil {
		return domain.Lockfile{}, err
	}

	var previous *domain.Lockfile
	if !opts.NoLockfile {
		if previous, err = a.store.Load(s.cfg.Lockfile); err != nil {
			return domain.Lockfile{}, err
		}
	}

	res, err := s.engine.Resolve(ctx, s.specs, s.strategy, previous, resolveOptions(opts)...)
	if err != nil {
		a.printConflicts(res)
		return domain.Lockfile{}, zerr.Wrap(err, "resolution failed")
	}

	lf, err = s.engine.GenerateLockfile(res)
	if err != nil {
		return domain.Lockfile{}, err
	}
	if err := a.store.Save(s.cfg.Lockfile, lf); err != nil {
		return domain.Lockfile{}, err
	}

	if previous != nil {
		for _, change := range domain.DiffLockfiles(*previous, lf) {
			a.printf("%s (%s)\n", change, change.Kind())
		}
	}
	a.printf("locked %d connectors in %s\n", len(lf.ResolvedVersions), s.cfg.Lockfile)
	return lf, nil
}

// Validate checks the lockfile against the registry.
// It returns ErrLockfileInvalid when the validation reports errors.
func (a *App) Validate(ctx context.Context, opts Options) (res domain.LockfileValidationResult, err error) {
	defer a.exportMetrics(opts, &err)

	s, err := a.open(opts)
	if err != nil {
		return domain.LockfileValidationResult{}, err
	}

	lf, err := a.requireLockfile(s.cfg.Lockfile)
	if err != nil {
		return domain.LockfileValidationResult{}, err
	}

	res, err = s.engine.ValidateLockfile(ctx, *lf)
	if err != nil {
		return res, err
	}

	for _, issue := range res.Errors {
		a.printf("error: %s\n", issue)
	}
	if !res.IsValid {
		return res, zerr.With(zerr.With(domain.ErrLockfileInvalid, "path", s.cfg.Lockfile), "errors", len(res.Errors))
	}
	a.printf("%s is valid (%d warnings)\n", s.cfg.Lockfile, len(res.Warnings))
	return res, nil
}

// Update re-resolves the lockfile and writes the new one when anything changed.
// Requirements from the configuration replace the lockfile's root specs.
func (a *App) Update(ctx context.Context, opts Options) (update domain.LockfileUpdate, err error) {
	defer a.exportMetrics(opts, &err)

	s, err := a.open(opts)
	if err != nil {
		return domain.LockfileUpdate{}, err
	}

	lf, err := a.requireLockfile(s.cfg.Lockfile)
	if err != nil {
		return domain.LockfileUpdate{}, err
	}

	current := lf.Clone()
	if len(s.specs) > 0 {
		current.Metadata.RootSpecs = s.specs
	}

	update, err = s.engine.UpdateLockfile(ctx, current, s.strategy)
	if err != nil {
		a.printConflicts(update.Result)
		return update, zerr.Wrap(err, "update failed")
	}

	if len(update.Changes) == 0 {
		a.printf("%s is up to date\n", s.cfg.Lockfile)
		return update, nil
	}
	if err := a.store.Save(s.cfg.Lockfile, update.Lockfile); err != nil {
		return update, err
	}
	a.printf("updated %d connectors in %s\n", len(update.Changes), s.cfg.Lockfile)
	return update, nil
}

// Explain prints the diagnostics of resolving the configured requirements.
func (a *App) Explain(ctx context.Context, opts Options) (diag domain.ResolutionDiagnostics, err error) {
	defer a.exportMetrics(opts, &err)

	s, err := a.open(opts)
	if err != nil {
		return domain.ResolutionDiagnostics{}, err
	}

	diag, err = s.engine.ExplainFailure(ctx, s.specs, resolveOptions(opts)...)
	if err != nil {
		return diag, err
	}
	a.printf("%s\n", diag.Summary())
	return diag, nil
}

func (a *App) open(opts Options) (*session, error) {
	a.applyLogging(opts, domain.LogLevelInfo)

	path, err := configPath(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg, err := a.configLoader.Load(path)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}
	a.applyLogging(opts, cfg.LogLevel)

	s := &session{cfg: cfg, specs: cfg.Requires, strategy: cfg.Strategy}
	if opts.Strategy != "" {
		if s.strategy, err = domain.ParseStrategy(opts.Strategy); err != nil {
			return nil, zerr.With(err, "flag", "strategy")
		}
	}
	if len(opts.Specs) > 0 {
		s.specs = make([]domain.DependencySpec, 0, len(opts.Specs))
		for _, raw := range opts.Specs {
			spec, err := domain.ParseDependencySpec(raw)
			if err != nil {
				return nil, err
			}
			s.specs = append(s.specs, spec)
		}
	}

	registry, err := a.registries.Open(cfg.Registry)
	if err != nil {
		return nil, err
	}

	engineOpts := []resolver.Option{
		resolver.WithTracer(a.tracer),
		resolver.WithMetrics(a.metrics),
		resolver.WithLogger(a.logger),
		resolver.WithLimits(cfg.Solver),
		resolver.WithRetryPolicy(cfg.Retry),
		resolver.WithGeneratedBy(cfg.GeneratedBy),
	}
	s.engine, err = resolver.New(registry, append(engineOpts, a.engineOpts...)...)
	if err != nil {
		return nil, err
	}
	a.logger.Debug(fmt.Sprintf("loaded %s: %d requirements, strategy %s", path, len(s.specs), s.strategy))
	return s, nil
}

func (a *App) requireLockfile(path string) (*domain.Lockfile, error) {
	lf, err := a.store.Load(path)
	if err != nil {
		return nil, err
	}
	if lf == nil {
		return nil, zerr.With(domain.ErrLockfileMissing, "path", path)
	}
	return lf, nil
}

type jsonSwitch interface {
	SetJSON(enabled bool)
}

func (a *App) applyLogging(opts Options, level domain.LogLevel) {
	if opts.Verbose {
		level = domain.LogLevelDebug
	}
	a.logger.SetLevel(level)
	if j, ok := a.logger.(jsonSwitch); ok {
		j.SetJSON(opts.JSON)
	}
}

// exportMetrics writes the metrics file after a command. A write failure is
// reported as the command error only when the command itself succeeded.
func (a *App) exportMetrics(opts Options, cmdErr *error) {
	if opts.MetricsFile == "" || a.exporter == nil {
		return
	}
	if err := a.exporter.WriteFile(opts.MetricsFile); err != nil {
		if *cmdErr == nil {
			*cmdErr = zerr.With(zerr.Wrap(err, "failed to write metrics"), "path", opts.MetricsFile)
			return
		}
		a.logger.Warn("failed to write metrics to " + opts.MetricsFile + ": " + err.Error())
	}
}

func (a *App) printConflicts(res domain.ResolutionResult) {
	for _, c := range res.Conflicts {
		a.printf("conflict: %s\n", c)
	}
	for _, id := range res.Unresolved {
		a.printf("unresolved: %s\n", id)
	}
}

func (a *App) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.out, format, args...)
}

func configPath(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", zerr.Wrap(err, "failed to get working directory")
	}
	path, err := config.Find(cwd)
	if err != nil {
		if errors.Is(err, domain.ErrConfigNotFound) {
			return "", zerr.Wrap(err, "run connres inside a project or pass --config")
		}
		return "", err
	}
	return path, nil
}

func resolveOptions(opts Options) []resolver.ResolveOption {
	var out []resolver.ResolveOption
	if opts.UnlockAll {
		out = append(out, resolver.WithUnlockAll())
	}
	if len(opts.Unlock) > 0 {
		ids := make([]domain.ConnectorID, len(opts.Unlock))
		for i, id := range opts.Unlock {
			ids[i] = domain.ConnectorID(id)
		}
		out = append(out, resolver.WithUnlock(ids...))
	}
	return out
}

func resolvedEntries(res domain.ResolutionResult) []domain.ResolvedEntry {
	lf := domain.Lockfile{ResolvedVersions: res.ResolvedVersions}
	return lf.Entries()
}
