// Package ports defines the core interfaces for the application.
package ports

import (
	"context"

	"go.trai.ch/connres/internal/core/domain"
)

// ManifestRegistry is the external source of connector manifests.
//
// Implementations must be safe for concurrent use and should be assumed to be
// network-backed. An unknown connector must be reported with an error wrapping
// domain.ErrConnectorNotFound; any other error is treated as transient.
//
//go:generate go run go.uber.org/mock/mockgen -source=registry.go -destination=mocks/mock_registry.go -package=mocks
type ManifestRegistry interface {
	// GetVersions returns every published version of the connector.
	GetVersions(ctx context.Context, id domain.ConnectorID) ([]domain.ConnectorVersion, error)
}

// RegistrySource opens a manifest registry snapshot.
type RegistrySource interface {
	// Open returns the registry stored at path.
	Open(path string) (ManifestRegistry, error)
}
