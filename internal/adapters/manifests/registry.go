// Package manifests provides manifest registries backed by memory and by YAML snapshots.
package manifests

import (
	"context"
	"maps"
	"slices"
	"sync"

	"go.trai.ch/connres/internal/core/domain"
	"go.trai.ch/zerr"
)

// Registry is an in-memory ports.ManifestRegistry. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	versions map[domain.ConnectorID][]domain.ConnectorVersion
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{versions: make(map[domain.ConnectorID][]domain.ConnectorVersion)}
}

// Publish adds connector versions. Publishing a version that already exists fails
// and leaves the registry unchanged.
func (r *Registry) Publish(versions ...domain.ConnectorVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, cv := range versions {
		if r.indexOf(cv.ConnectorID, cv.Version) >= 0 || slices.ContainsFunc(versions[:i], func(o domain.ConnectorVersion) bool {
			return o.ConnectorID == cv.ConnectorID && o.Version.Equal(cv.Version)
		}) {
			return zerr.With(zerr.Wrap(domain.ErrDuplicateConnectorVersion, "version already published"),
				"connector", cv.String())
		}
	}
	for _, cv := range versions {
		r.versions[cv.ConnectorID] = append(r.versions[cv.ConnectorID], cv)
	}
	return nil
}

// Yank removes a published version. It reports whether the version existed.
func (r *Registry) Yank(id domain.ConnectorID, v domain.Version) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id, v)
	if i < 0 {
		return false
	}
	r.versions[id] = slices.Delete(r.versions[id], i, i+1)
	if len(r.versions[id]) == 0 {
		delete(r.versions, id)
	}
	return true
}

// Deprecate flags a published version as deprecated.
func (r *Registry) Deprecate(id domain.ConnectorID, v domain.Version) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id, v)
	if i < 0 {
		return false
	}
	r.versions[id][i].Deprecated = true
	return true
}

// Connectors returns the known connector ids in sorted order.
func (r *Registry) Connectors() []domain.ConnectorID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.versions))
}

// GetVersions implements ports.ManifestRegistry.
func (r *Registry) GetVersions(ctx context.Context, id domain.ConnectorID) ([]domain.ConnectorVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, ok := r.versions[id]
	if !ok {
		return nil, zerr.With(zerr.Wrap(domain.ErrConnectorNotFound, "unknown connector"), "connector", string(id))
	}
	return slices.Clone(versions), nil
}

func (r *Registry) indexOf(id domain.ConnectorID, v domain.Version) int {
	return slices.IndexFunc(r.versions[id], func(cv domain.ConnectorVersion) bool {
		return cv.Version.Equal(v)
	})
}
