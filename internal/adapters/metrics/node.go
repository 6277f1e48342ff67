package metrics

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/connres/internal/core/ports"
)

const (
	// RecorderNodeID is the unique identifier for the shared recorder Graft node.
	RecorderNodeID graft.ID = "adapter.metrics_recorder"
	// NodeID is the unique identifier for the ports.Metrics Graft node.
	NodeID graft.ID = "adapter.metrics"
	// ExporterNodeID is the unique identifier for the ports.MetricsExporter Graft node.
	ExporterNodeID graft.ID = "adapter.metrics_exporter"
)

func init() {
	graft.Register(graft.Node[*Recorder]{
		ID:        RecorderNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Recorder, error) {
			return NewRecorder(), nil
		},
	})

	graft.Register(graft.Node[ports.Metrics]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{RecorderNodeID},
		Run: func(ctx context.Context) (ports.Metrics, error) {
			rec, err := graft.Dep[*Recorder](ctx)
			if err != nil {
				return nil, err
			}
			return rec, nil
		},
	})

	graft.Register(graft.Node[ports.MetricsExporter]{
		ID:        ExporterNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{RecorderNodeID},
		Run: func(ctx context.Context) (ports.MetricsExporter, error) {
			rec, err := graft.Dep[*Recorder](ctx)
			if err != nil {
				return nil, err
			}
			return rec, nil
		},
	})
}
