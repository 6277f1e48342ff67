package manifests

import (
	"os"
	"slices"
	"strings"
	"time"

	"go.trai.ch/connres/internal/core/domain"
	"go.trai.ch/connres/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// SnapshotSource implements ports.RegistrySource over YAML snapshot files.
type SnapshotSource struct{}

// Open loads the snapshot at path.
func (SnapshotSource) Open(path string) (ports.ManifestRegistry, error) {
	return LoadFile(path)
}

// Snapshot is the structure of a registry snapshot file.
type Snapshot struct {
	Connectors map[string][]ManifestDTO `yaml:"connectors"`
}

// ManifestDTO represents one published connector version.
type ManifestDTO struct {
	Version      string          `yaml:"version"`
	PublishedAt  time.Time       `yaml:"publishedAt"`
	Stable       *bool           `yaml:"stable"`
	Latest       bool            `yaml:"latest"`
	Deprecated   bool            `yaml:"deprecated"`
	Dependencies []DependencyDTO `yaml:"dependencies"`
}

// DependencyDTO represents a declared dependency of a connector version.
type DependencyDTO struct {
	Connector string `yaml:"connector"`
	Version   string `yaml:"version"`
}

// LoadFile reads a registry snapshot from path.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrRegistryReadFailed, err.Error()), "path", path)
	}
	reg, err := Parse(data)
	if err != nil {
		return nil, zerr.With(err, "path", path)
	}
	return reg, nil
}

// Parse builds a registry from snapshot YAML.
//
// A version without an explicit stable flag is stable unless it is a pre-release.
// When no version of a connector is flagged latest, the highest stable one is.
func Parse(data []byte) (*Registry, error) {
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, zerr.Wrap(domain.ErrRegistryParseFailed, err.Error())
	}

	reg := NewRegistry()
	ids := make([]string, 0, len(snap.Connectors))
	for id := range snap.Connectors {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return nil, zerr.Wrap(domain.ErrRegistryParseFailed, "connector id is empty")
		}
		versions := make([]domain.ConnectorVersion, 0, len(snap.Connectors[id]))
		for _, dto := range snap.Connectors[id] {
			cv, err := dto.toDomain(domain.ConnectorID(id))
			if err != nil {
				return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrRegistryParseFailed, err.Error()),
					"connector", id), "version", dto.Version)
			}
			versions = append(versions, cv)
		}
		markLatest(versions)
		if err := reg.Publish(versions...); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (dto ManifestDTO) toDomain(id domain.ConnectorID) (domain.ConnectorVersion, error) {
	v, err := domain.ParseVersion(dto.Version)
	if err != nil {
		return domain.ConnectorVersion{}, err
	}
	stable := !v.IsPrerelease()
	if dto.Stable != nil {
		stable = *dto.Stable
	}

	deps := make([]domain.DependencySpec, 0, len(dto.Dependencies))
	for _, d := range dto.Dependencies {
		spec, err := domain.NewDependencySpec(domain.ConnectorID(d.Connector), d.Version)
		if err != nil {
			return domain.ConnectorVersion{}, err
		}
		deps = append(deps, spec)
	}

	return domain.ConnectorVersion{
		ConnectorID:  id,
		Version:      v,
		PublishedAt:  dto.PublishedAt.UTC(),
		IsStable:     stable,
		IsLatest:     dto.Latest,
		Deprecated:   dto.Deprecated,
		Dependencies: deps,
	}, nil
}

func markLatest(versions []domain.ConnectorVersion) {
	if slices.ContainsFunc(versions, func(cv domain.ConnectorVersion) bool { return cv.IsLatest }) {
		return
	}
	latest := -1
	for i, cv := range versions {
		if !cv.Stable() {
			continue
		}
		if latest < 0 || cv.Version.Compare(versions[latest].Version) > 0 {
			latest = i
		}
	}
	if latest >= 0 {
		versions[latest].IsLatest = true
	}
}
