// Package config provides the configuration loader for connres.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/connres/internal/core/domain"
	"go.trai.ch/connres/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file.
const FileName = "connres.yaml"

// SupportedVersion is the only config version this loader understands.
const SupportedVersion = "1"

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Find returns the config file in cwd or the closest parent directory that has one.
func Find(cwd string) (string, error) {
	dir := filepath.Clean(cwd)
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", zerr.With(domain.ErrConfigNotFound, "cwd", cwd)
		}
		dir = parent
	}
}

// Load reads the configuration file at path. Missing fields take their defaults,
// and relative registry and lockfile paths are resolved against the file's directory.
func (l *Loader) Load(path string) (domain.EngineConfig, error) {
	var file Configfile
	if err := readAndUnmarshalYAML(path, &file); err != nil {
		return domain.EngineConfig{}, err
	}

	cfg, err := l.toDomain(file)
	if err != nil {
		return domain.EngineConfig{}, zerr.With(err, "path", path)
	}

	dir := filepath.Dir(path)
	cfg.Registry = resolvePath(dir, cfg.Registry)
	cfg.Lockfile = resolvePath(dir, cfg.Lockfile)
	return cfg, nil
}

func (l *Loader) toDomain(file Configfile) (domain.EngineConfig, error) {
	cfg := domain.DefaultEngineConfig()

	switch strings.TrimSpace(file.Version) {
	case SupportedVersion:
	case "":
		l.warn(fmt.Sprintf("%s has no version, assuming %q", FileName, SupportedVersion))
	default:
		return cfg, zerr.With(domain.ErrUnsupportedConfigVersion, "version", file.Version)
	}

	if file.Registry != "" {
		cfg.Registry = file.Registry
	}
	if file.Lockfile != "" {
		cfg.Lockfile = file.Lockfile
	}
	if file.GeneratedBy != "" {
		cfg.GeneratedBy = file.GeneratedBy
	}

	strategy, err := domain.ParseStrategy(file.Strategy)
	if err != nil {
		return cfg, err
	}
	cfg.Strategy = strategy

	for i, req := range file.Requires {
		spec, err := domain.NewDependencySpec(domain.ConnectorID(req.Connector), req.Version)
		if err != nil {
			return cfg, zerr.With(err, "requires_index", i)
		}
		cfg.Requires = append(cfg.Requires, spec)
	}

	if err := applySolver(&cfg.Solver, file.Solver); err != nil {
		return cfg, err
	}
	if err := applyRetry(&cfg.Retry, file.Retry); err != nil {
		return cfg, err
	}

	if file.LogLevel != "" {
		cfg.LogLevel = domain.ParseLogLevel(file.LogLevel)
		switch strings.ToLower(strings.TrimSpace(file.LogLevel)) {
		case "debug", "info", "warn", "warning", "error":
		default:
			l.warn(fmt.Sprintf("unknown logLevel %q, using %s", file.LogLevel, cfg.LogLevel))
		}
	}
	return cfg, nil
}

func applySolver(limits *domain.SolverLimits, dto SolverDTO) error {
	if dto.MaxExpansions < 0 {
		return invalid("solver.maxExpansions", dto.MaxExpansions)
	}
	if dto.Timeout < 0 {
		return invalid("solver.timeout", dto.Timeout)
	}
	if dto.MaxExpansions > 0 {
		limits.MaxExpansions = dto.MaxExpansions
	}
	limits.Timeout = dto.Timeout
	return nil
}

func applyRetry(policy *domain.RetryPolicy, dto RetryDTO) error {
	switch {
	case dto.MaxAttempts < 0:
		return invalid("retry.maxAttempts", dto.MaxAttempts)
	case dto.InitialInterval < 0:
		return invalid("retry.initialInterval", dto.InitialInterval)
	case dto.MaxInterval < 0:
		return invalid("retry.maxInterval", dto.MaxInterval)
	}
	if dto.MaxAttempts > 0 {
		policy.MaxAttempts = dto.MaxAttempts
	}
	if dto.InitialInterval > 0 {
		policy.InitialInterval = dto.InitialInterval
	}
	if dto.MaxInterval > 0 {
		policy.MaxInterval = dto.MaxInterval
	}
	if policy.MaxInterval < policy.InitialInterval {
		return invalid("retry.maxInterval", policy.MaxInterval)
	}
	return nil
}

func invalid(field string, value any) error {
	err := zerr.Wrap(domain.ErrInvalidConfig, "value out of range")
	err = zerr.With(err, "field", field)
	return zerr.With(err, "value", fmt.Sprint(value))
}

func resolvePath(dir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Clean(filepath.Join(dir, p))
}

// readAndUnmarshalYAML reads a YAML file and decodes it into target, rejecting unknown keys.
func readAndUnmarshalYAML[T any](path string, target *T) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		return zerr.With(zerr.Wrap(domain.ErrConfigReadFailed, err.Error()), "path", path)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return zerr.With(zerr.Wrap(domain.ErrConfigParseFailed, err.Error()), "path", path)
	}
	return nil
}

func (l *Loader) warn(msg string) {
	if l.Logger != nil {
		l.Logger.Warn(msg)
	}
}
