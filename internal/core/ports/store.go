package ports

import "go.trai.ch/connres/internal/core/domain"

// LockfileStore defines the interface for persisting lockfiles.
//
//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type LockfileStore interface {
	// Load reads the lockfile at path.
	// Returns nil, nil if not found.
	Load(path string) (*domain.Lockfile, error)

	// Save writes the lockfile to path.
	Save(path string, lf domain.Lockfile) error
}
