// Package lockstore persists lockfiles as YAML.
package lockstore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"go.trai.ch/connres/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Document is the on-disk structure of a lockfile.
type Document struct {
	FormatVersion int               `yaml:"formatVersion"`
	GeneratedAt   time.Time         `yaml:"generatedAt"`
	GeneratedBy   string            `yaml:"generatedBy,omitempty"`
	Connectors    map[string]string `yaml:"connectors"`
	Metadata      MetadataDTO       `yaml:"metadata"`
}

// MetadataDTO records how the lockfile was produced.
type MetadataDTO struct {
	RootSpecs  []string          `yaml:"rootSpecs,omitempty"`
	Strategy   string            `yaml:"strategy,omitempty"`
	Digest     string            `yaml:"digest,omitempty"`
	Extensions map[string]string `yaml:"extensions,omitempty"`
}

// Store implements ports.LockfileStore on the local file system.
type Store struct {
	mu sync.Mutex
}

// NewStore creates a new Store.
func NewStore() *Store {
	return &Store{}
}

// Load reads the lockfile at path. It returns nil, nil if the file does not exist.
func (s *Store) Load(path string) (*domain.Lockfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(domain.ErrLockfileReadFailed, err.Error()), "path", path)
	}

	lf, err := Decode(data)
	if err != nil {
		return nil, zerr.With(err, "path", path)
	}
	return &lf, nil
}

// Save writes the lockfile to path, replacing any previous file atomically.
func (s *Store) Save(path string, lf domain.Lockfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := Encode(lf)
	if err != nil {
		return zerr.With(err, "path", path)
	}

	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return writeFailed(err, path)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return writeFailed(err, path)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return writeFailed(err, path)
	}
	if err := tmp.Close(); err != nil {
		return writeFailed(err, path)
	}
	//nolint:gosec // lockfiles are meant to be committed and shared
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return writeFailed(err, path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return writeFailed(err, path)
	}
	return nil
}

// Encode renders a lockfile as YAML. Connectors are written in sorted order.
func Encode(lf domain.Lockfile) ([]byte, error) {
	doc := Document{
		FormatVersion: lf.FormatVersion,
		GeneratedAt:   lf.GeneratedAt.UTC(),
		GeneratedBy:   lf.GeneratedBy,
		Connectors:    make(map[string]string, len(lf.ResolvedVersions)),
		Metadata: MetadataDTO{
			Strategy:   lf.Metadata.Strategy.String(),
			Digest:     lf.Metadata.Digest,
			Extensions: lf.Metadata.Extensions,
		},
	}
	for _, entry := range lf.Entries() {
		doc.Connectors[string(entry.ConnectorID)] = entry.Version.String()
	}
	for _, spec := range lf.Metadata.RootSpecs {
		doc.Metadata.RootSpecs = append(doc.Metadata.RootSpecs, spec.String())
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, zerr.Wrap(domain.ErrLockfileWriteFailed, err.Error())
	}
	return data, nil
}

// Decode parses a YAML lockfile. An unknown format version is decoded as far as
// possible and left for validation to report.
func Decode(data []byte) (domain.Lockfile, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return domain.Lockfile{}, zerr.Wrap(domain.ErrLockfileParseFailed, err.Error())
	}
	if doc.FormatVersion == 0 {
		return domain.Lockfile{}, zerr.Wrap(domain.ErrLockfileParseFailed, "formatVersion is missing")
	}

	lf := domain.Lockfile{
		FormatVersion:    doc.FormatVersion,
		GeneratedAt:      doc.GeneratedAt.UTC(),
		GeneratedBy:      doc.GeneratedBy,
		ResolvedVersions: make(map[domain.ConnectorID]domain.Version, len(doc.Connectors)),
		Metadata: domain.LockMetadata{
			Digest:     doc.Metadata.Digest,
			Extensions: doc.Metadata.Extensions,
		},
	}

	ids := make([]string, 0, len(doc.Connectors))
	for id := range doc.Connectors {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return domain.Lockfile{}, zerr.Wrap(domain.ErrLockfileParseFailed, "connector id is empty")
		}
		v, err := domain.ParseVersion(doc.Connectors[id])
		if err != nil {
			return domain.Lockfile{}, parseFailed(err, "connector", id)
		}
		lf.ResolvedVersions[domain.ConnectorID(id)] = v
	}

	for _, raw := range doc.Metadata.RootSpecs {
		spec, err := domain.ParseDependencySpec(raw)
		if err != nil {
			return domain.Lockfile{}, parseFailed(err, "root_spec", raw)
		}
		lf.Metadata.RootSpecs = append(lf.Metadata.RootSpecs, spec)
	}

	strategy, err := domain.ParseStrategy(doc.Metadata.Strategy)
	if err != nil {
		return domain.Lockfile{}, parseFailed(err, "strategy", doc.Metadata.Strategy)
	}
	lf.Metadata.Strategy = strategy
	return lf, nil
}

func parseFailed(cause error, key, value string) error {
	err := zerr.Wrap(domain.ErrLockfileParseFailed, cause.Error())
	return zerr.With(err, key, value)
}

func writeFailed(cause error, path string) error {
	return zerr.With(zerr.Wrap(domain.ErrLockfileWriteFailed, cause.Error()), "path", path)
}
