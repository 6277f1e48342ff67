// Package domain contains the core domain models of connector dependency resolution.
package domain

import (
	"iter"
	"maps"
	"slices"

	"go.trai.ch/zerr"
)

// DependencyGraph represents the dependency edges between locked connectors.
// Cycles are legal in a resolved graph; they are reported, not rejected.
type DependencyGraph struct {
	edges    map[ConnectorID][]ConnectorID
	order    []ConnectorID
	cycles   [][]ConnectorID
	analyzed bool
}

// NewDependencyGraph creates a new empty DependencyGraph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		edges: make(map[ConnectorID][]ConnectorID),
	}
}

// AddConnector adds a connector and the connectors it depends on.
// It returns an error if the connector was already added.
func (g *DependencyGraph) AddConnector(id ConnectorID, deps []ConnectorID) error {
	if _, exists := g.edges[id]; exists {
		return zerr.With(zerr.Wrap(ErrDuplicateGraphNode, "connector added twice"), "connector", string(id))
	}
	g.edges[id] = slices.Clone(deps)
	g.analyzed = false
	return nil
}

// analyze runs a depth-first traversal that records a dependencies-first order
// and every cycle closed by a back edge. Connectors and edges are visited in
// sorted order so the result is deterministic.
func (g *DependencyGraph) analyze() {
	if g.analyzed {
		return
	}
	g.order = make([]ConnectorID, 0, len(g.edges))
	g.cycles = nil
	visited := make(map[ConnectorID]int) // 0: unvisited, 1: visiting, 2: visited
	var path []ConnectorID

	var visit func(u ConnectorID)
	visit = func(u ConnectorID) {
		visited[u] = 1
		path = append(path, u)

		deps := slices.Clone(g.edges[u])
		slices.Sort(deps)
		for _, dep := range deps {
			if _, known := g.edges[dep]; !known {
				continue
			}
			switch visited[dep] {
			case 1:
				g.cycles = append(g.cycles, cyclePath(path, dep))
			case 0:
				visit(dep)
			}
		}

		visited[u] = 2
		path = path[:len(path)-1]
		g.order = append(g.order, u)
	}

	for _, id := range slices.Sorted(maps.Keys(g.edges)) {
		if visited[id] == 0 {
			visit(id)
		}
	}
	g.analyzed = true
}

// cyclePath cuts the visiting path at dep and closes the loop.
func cyclePath(path []ConnectorID, dep ConnectorID) []ConnectorID {
	start := slices.Index(path, dep)
	cycle := slices.Clone(path[start:])
	return append(cycle, dep)
}

// Cycles returns every cycle found, each starting and ending with the same connector.
func (g *DependencyGraph) Cycles() [][]ConnectorID {
	g.analyze()
	return slices.Clone(g.cycles)
}

// Walk returns an iterator that yields connectors with their dependencies first.
// Within a cycle the order is decided by connector id.
func (g *DependencyGraph) Walk() iter.Seq[ConnectorID] {
	g.analyze()
	return func(yield func(ConnectorID) bool) {
		for _, id := range g.order {
			if !yield(id) {
				return
			}
		}
	}
}
