package manifests

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/connres/internal/core/ports"
)

// NodeID is the graft node providing the registry snapshot source.
const NodeID graft.ID = "adapter.registry_source"

func init() {
	graft.Register(graft.Node[ports.RegistrySource]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.RegistrySource, error) {
			return SnapshotSource{}, nil
		},
	})
}
