package domain_test

import (
	"slices"
	"testing"

	"go.trai.ch/connres/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestDependencyGraph_AddConnector(t *testing.T) {
	g := domain.NewDependencyGraph()

	if err := g.AddConnector("http", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := g.AddConnector("http", nil)
	if err == nil {
		t.Fatal("expected error when adding duplicate connector, got nil")
	}
	zErr, ok := err.(*zerr.Error)
	if !ok {
		t.Fatalf("expected *zerr.Error, got %T", err)
	}
	if name, ok := zErr.Metadata()["connector"].(string); !ok || name != "http" {
		t.Errorf("expected metadata connector=http, got %v", zErr.Metadata()["connector"])
	}
}

func TestDependencyGraph_Walk(t *testing.T) {
	g := domain.NewDependencyGraph()
	// a -> b -> c, a -> c, d standalone
	mustAdd(t, g, "a", "b", "c")
	mustAdd(t, g, "b", "c")
	mustAdd(t, g, "c")
	mustAdd(t, g, "d")

	got := slices.Collect(g.Walk())
	want := []domain.ConnectorID{"c", "b", "a", "d"}
	if !slices.Equal(got, want) {
		t.Errorf("expected order %v, got %v", want, got)
	}
	if cycles := g.Cycles(); len(cycles) != 0 {
		t.Errorf("expected no cycles, got %v", cycles)
	}
}

func TestDependencyGraph_Cycles(t *testing.T) {
	g := domain.NewDependencyGraph()
	mustAdd(t, g, "a", "b")
	mustAdd(t, g, "b", "a", "unknown")

	cycles := g.Cycles()
	if len(cycles) != 1 {
		t.Fatalf("expected one cycle, got %v", cycles)
	}
	if path := domain.FormatPath(cycles[0]); path != "a -> b -> a" {
		t.Errorf("expected cycle a -> b -> a, got %s", path)
	}

	got := slices.Collect(g.Walk())
	if len(got) != 2 {
		t.Errorf("expected both connectors in walk despite the cycle, got %v", got)
	}
}

func mustAdd(t *testing.T, g *domain.DependencyGraph, id domain.ConnectorID, deps ...domain.ConnectorID) {
	t.Helper()
	if err := g.AddConnector(id, deps); err != nil {
		t.Fatalf("failed to add %s: %v", id, err)
	}
}
