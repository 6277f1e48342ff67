package solver_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/connres/internal/adapters/manifests"
	"go.trai.ch/connres/internal/core/domain"
	"go.trai.ch/connres/internal/engine/catalog"
	"go.trai.ch/connres/internal/engine/solver"
	"go.trai.ch/zerr"
)

// manifest builds a stable connector version. deps use the "id@constraint" form.
func manifest(id domain.ConnectorID, version string, deps ...string) domain.ConnectorVersion {
	cv := domain.ConnectorVersion{ConnectorID: id, Version: domain.MustParseVersion(version), IsStable: true}
	for _, raw := range deps {
		spec, err := domain.ParseDependencySpec(raw)
		if err != nil {
			panic(err)
		}
		cv.Dependencies = append(cv.Dependencies, spec)
	}
	return cv
}

func newSolver(t *testing.T, versions ...domain.ConnectorVersion) *solver.Solver {
	t.Helper()
	reg := manifests.NewRegistry()
	require.NoError(t, reg.Publish(versions...))
	c, err := catalog.New(reg)
	require.NoError(t, err)
	return solver.New(c)
}

func specs(raw ...string) []domain.DependencySpec {
	out := make([]domain.DependencySpec, len(raw))
	for i, r := range raw {
		spec, err := domain.ParseDependencySpec(r)
		if err != nil {
			panic(err)
		}
		out[i] = spec
	}
	return out
}

func resolved(t *testing.T, res domain.ResolutionResult) map[string]string {
	t.Helper()
	out := make(map[string]string, len(res.ResolvedVersions))
	for id, v := range res.ResolvedVersions {
		out[string(id)] = v.String()
	}
	return out
}

func TestSolve_HighestCompatibleWithinRange(t *testing.T) {
	s := newSolver(t,
		manifest("A", "1.0.0"), manifest("A", "1.2.0"), manifest("A", "1.5.0"), manifest("A", "2.0.0"))

	report := s.Solve(context.Background(), solver.Request{
		Specs:    specs("A@>=1.0.0 <2.0.0"),
		Strategy: domain.HighestCompatible,
	})

	require.NoError(t, report.Err)
	assert.True(t, report.Result.Success)
	assert.Equal(t, domain.OutcomeResolved, report.Result.Outcome)
	assert.Equal(t, map[string]string{"A": "1.5.0"}, resolved(t, report.Result))
}

func TestSolve_LowestCompatible(t *testing.T) {
	s := newSolver(t,
		manifest("A", "1.0.0"), manifest("A", "1.2.0"), manifest("A", "1.5.0"), manifest("A", "2.0.0"))

	report := s.Solve(context.Background(), solver.Request{
		Specs:    specs("A@>=1.1.0 <2.0.0"),
		Strategy: domain.LowestCompatible,
	})

	require.NoError(t, report.Err)
	assert.Equal(t, map[string]string{"A": "1.2.0"}, resolved(t, report.Result))
}

func TestSolve_EmptyRequest(t *testing.T) {
	s := newSolver(t)

	report := s.Solve(context.Background(), solver.Request{Strategy: domain.HighestCompatible})

	require.NoError(t, report.Err)
	assert.True(t, report.Result.Success)
	assert.NotNil(t, report.Result.ResolvedVersions)
	assert.Empty(t, report.Result.ResolvedVersions)
}

func TestSolve_TransitiveConflict(t *testing.T) {
	s := newSolver(t,
		manifest("A", "1.0.0"), manifest("A", "2.0.0"),
		manifest("B", "1.0.0", "A@^2.0.0"))

	report := s.Solve(context.Background(), solver.Request{
		Specs:    specs("A@^1.0.0", "B@^1.0.0"),
		Strategy: domain.HighestCompatible,
	})

	require.ErrorIs(t, report.Err, domain.ErrUnsatisfiableConstraintSet)
	res := report.Result
	assert.False(t, res.Success)
	assert.Equal(t, domain.OutcomeUnsatisfiable, res.Outcome)
	assert.Empty(t, res.ResolvedVersions, "failed resolutions carry no partial assignment")

	require.Len(t, res.Conflicts, 1)
	conflict := res.Conflicts[0]
	assert.Equal(t, domain.ConnectorID("A"), conflict.ConnectorID)
	assert.ElementsMatch(t, []string{"^1.0.0", "^2.0.0"}, conflict.Constraints())

	reason, ok := conflict.Reason.(domain.IncompatibleRanges)
	require.True(t, ok, "reason is %T", conflict.Reason)
	require.Len(t, reason.Requesters, 2)
	assert.Equal(t, "root", reason.Requesters[0].String())
	assert.Equal(t, "B@1.0.0", reason.Requesters[1].String())

	require.Len(t, conflict.Relaxations, 2)
	assert.Equal(t, "^2.0.0", conflict.Relaxations[0].Dropped.Constraint.String(), "most recent requirement is relaxed first")
	require.Len(t, conflict.SuggestedVersions, 1)
	assert.Equal(t, "1.0.0", conflict.SuggestedVersions[0].String())

	var zErr *zerr.Error
	require.ErrorAs(t, report.Err, &zErr)
	assert.Equal(t, "A", zErr.Metadata()["connector"])

	diag := report.Diagnostics
	assert.Equal(t, domain.OutcomeUnsatisfiable, diag.Outcome)
	require.Len(t, diag.AvailableVersions["A"], 2)
	assert.Equal(t, "1.0.0", diag.AvailableVersions["A"][0].String())
	assert.Equal(t, "2.0.0", diag.AvailableVersions["A"][1].String())
	assert.Contains(t, diag.Summary(), "A: ")
}

func TestSolve_NoMatchingVersion(t *testing.T) {
	s := newSolver(t, manifest("A", "1.0.0"), manifest("A", "2.0.0"))

	report := s.Solve(context.Background(), solver.Request{Specs: specs("A@^3.0.0")})

	require.ErrorIs(t, report.Err, domain.ErrUnsatisfiableConstraintSet)
	require.Len(t, report.Result.Conflicts, 1)
	reason, ok := report.Result.Conflicts[0].Reason.(domain.NoMatchingVersion)
	require.True(t, ok, "reason is %T", report.Result.Conflicts[0].Reason)
	assert.Equal(t, "^3.0.0", reason.Constraint.String())
	assert.True(t, reason.Requester.IsRoot())
	suggested := report.Result.Conflicts[0].SuggestedVersions
	require.Len(t, suggested, 2, "dropping the only constraint admits every version")
	assert.Equal(t, "2.0.0", suggested[0].String())
	assert.Equal(t, []domain.ConnectorID{"A"}, report.Result.Unresolved)
}

func TestSolve_BacktracksToOlderCandidate(t *testing.T) {
	s := newSolver(t,
		manifest("A", "1.0.0"),
		manifest("A", "2.0.0", "B@^1.0.0"),
		manifest("B", "1.0.0", "C@^2.0.0"),
		manifest("C", "1.0.0"))

	report := s.Solve(context.Background(), solver.Request{Specs: specs("A@*")})

	require.NoError(t, report.Err)
	assert.Equal(t, map[string]string{"A": "1.0.0"}, resolved(t, report.Result),
		"connectors discovered on abandoned branches are not resolved")
	assert.Positive(t, report.Result.Stats.Backtracks)
}

func TestSolve_ForwardCheckSkipsInfeasibleCandidate(t *testing.T) {
	s := newSolver(t,
		manifest("A", "1.0.0", "B@^1.0.0"),
		manifest("A", "1.1.0", "B@^2.0.0"),
		manifest("B", "1.0.0"))

	report := s.Solve(context.Background(), solver.Request{Specs: specs("A@^1.0.0")})

	require.NoError(t, report.Err)
	assert.Equal(t, map[string]string{"A": "1.0.0", "B": "1.0.0"}, resolved(t, report.Result))
}

func TestSolve_SharedDependencyIsMerged(t *testing.T) {
	s := newSolver(t,
		manifest("A", "1.0.0", "C@>=1.0.0"),
		manifest("B", "1.0.0", "C@<1.5.0"),
		manifest("C", "1.0.0"), manifest("C", "1.4.0"), manifest("C", "1.9.0"))

	report := s.Solve(context.Background(), solver.Request{Specs: specs("A@1.0.0", "B@1.0.0")})

	require.NoError(t, report.Err)
	assert.Equal(t, map[string]string{"A": "1.0.0", "B": "1.0.0", "C": "1.4.0"}, resolved(t, report.Result))
	assert.Equal(t, 3, report.Result.Stats.RegistryLookups, "each connector is fetched once")
}

func TestSolve_RepeatedRootSpecsAreAndMerged(t *testing.T) {
	s := newSolver(t, manifest("A", "1.0.0"), manifest("A", "1.5.0"), manifest("A", "2.0.0"))

	report := s.Solve(context.Background(), solver.Request{Specs: specs("A@>=1.0.0", "A@<2.0.0")})

	require.NoError(t, report.Err)
	assert.Equal(t, map[string]string{"A": "1.5.0"}, resolved(t, report.Result))
}

func TestSolve_PreferStable(t *testing.T) {
	unstable := manifest("A", "1.1.0")
	unstable.IsStable = false
	s := newSolver(t, manifest("A", "1.0.0"), unstable)

	stable := s.Solve(context.Background(), solver.Request{Specs: specs("A@^1.0.0"), Strategy: domain.PreferStable})
	require.NoError(t, stable.Err)
	assert.Equal(t, map[string]string{"A": "1.0.0"}, resolved(t, stable.Result))

	highest := s.Solve(context.Background(), solver.Request{Specs: specs("A@^1.0.0"), Strategy: domain.HighestCompatible})
	require.NoError(t, highest.Err)
	assert.Equal(t, map[string]string{"A": "1.1.0"}, resolved(t, highest.Result))
}

func TestSolve_PrereleaseOnlyCandidate(t *testing.T) {
	s := newSolver(t, manifest("A", "1.1.0-beta.1"))

	for _, strategy := range []domain.ResolutionStrategy{domain.PreferStable, domain.HighestCompatible, domain.LowestCompatible} {
		t.Run(strategy.String(), func(t *testing.T) {
			report := s.Solve(context.Background(), solver.Request{Specs: specs("A@^1.0.0"), Strategy: strategy})

			require.NoError(t, report.Err)
			assert.Equal(t, map[string]string{"A": "1.1.0-beta.1"}, resolved(t, report.Result))
		})
	}
}

func TestSolve_PrereleaseOrdering(t *testing.T) {
	s := newSolver(t,
		manifest("A", "1.0.0-rc.1"),
		manifest("A", "1.0.0"),
		manifest("A", "1.2.0"),
		manifest("A", "1.3.0-rc.1"),
		manifest("A", "2.0.0-rc.1"))

	tests := []struct {
		strategy domain.ResolutionStrategy
		want     string
	}{
		{domain.PreferStable, "1.2.0"},
		{domain.HighestCompatible, "1.3.0-rc.1"},
		{domain.LowestCompatible, "1.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.strategy.String(), func(t *testing.T) {
			report := s.Solve(context.Background(), solver.Request{Specs: specs("A@^1.0.0"), Strategy: tt.strategy})

			require.NoError(t, report.Err)
			assert.Equal(t, map[string]string{"A": tt.want}, resolved(t, report.Result))
		})
	}
}

func TestSolve_PrereleaseDependency(t *testing.T) {
	s := newSolver(t,
		manifest("app", "1.0.0", "http@^2.0.0-beta.1"),
		manifest("http", "1.9.0"),
		manifest("http", "2.0.0-beta.1"),
		manifest("http", "2.0.0-beta.2"))

	report := s.Solve(context.Background(), solver.Request{Specs: specs("app@^1.0.0"), Strategy: domain.PreferStable})

	require.NoError(t, report.Err)
	assert.Equal(t, map[string]string{"app": "1.0.0", "http": "2.0.0-beta.2"}, resolved(t, report.Result))
}

func TestSolve_SatisfiedCycle(t *testing.T) {
	s := newSolver(t,
		manifest("A", "1.0.0", "B@^1.0.0"),
		manifest("B", "1.0.0", "A@^1.0.0"))

	report := s.Solve(context.Background(), solver.Request{Specs: specs("A@^1.0.0")})

	require.NoError(t, report.Err)
	assert.Equal(t, map[string]string{"A": "1.0.0", "B": "1.0.0"}, resolved(t, report.Result))
}

func TestSolve_SelfDependency(t *testing.T) {
	s := newSolver(t, manifest("A", "1.0.0", "A@^1.0.0"))

	report := s.Solve(context.Background(), solver.Request{Specs: specs("A")})

	require.NoError(t, report.Err)
	assert.Equal(t, map[string]string{"A": "1.0.0"}, resolved(t, report.Result))
}

func TestSolve_ConflictingCycle(t *testing.T) {
	s := newSolver(t,
		manifest("A", "1.0.0", "B@^1.0.0"),
		manifest("B", "1.0.0", "A@^2.0.0"))

	report := s.Solve(context.Background(), solver.Request{Specs: specs("A@^1.0.0")})

	require.ErrorIs(t, report.Err, domain.ErrCyclicDependency)
	assert.Equal(t, domain.OutcomeCyclic, report.Result.Outcome)

	require.Len(t, report.Result.Conflicts, 1)
	reason, ok := report.Result.Conflicts[0].Reason.(domain.CyclicRequirement)
	require.True(t, ok, "reason is %T", report.Result.Conflicts[0].Reason)
	assert.Equal(t, "A -> B -> A", domain.FormatPath(reason.Path))

	require.Len(t, report.Diagnostics.CyclePaths, 1)
	var zErr *zerr.Error
	require.ErrorAs(t, report.Err, &zErr)
	assert.Equal(t, "A -> B -> A", zErr.Metadata()["cycle"])
}

func TestSolve_ConflictingCycleThroughSibling(t *testing.T) {
	// Z is discovered by X, yet the failing cycle runs Y -> Z -> Y.
	s := newSolver(t,
		manifest("X", "1.0.0", "Y@^1.0.0", "Z@^1.0.0"),
		manifest("Y", "1.0.0", "Z@^1.0.0"),
		manifest("Z", "1.0.0", "Y@^2.0.0"))

	report := s.Solve(context.Background(), solver.Request{Specs: specs("X@^1.0.0")})

	require.ErrorIs(t, report.Err, domain.ErrCyclicDependency)
	assert.Equal(t, domain.OutcomeCyclic, report.Result.Outcome)

	require.Len(t, report.Result.Conflicts, 1)
	reason, ok := report.Result.Conflicts[0].Reason.(domain.CyclicRequirement)
	require.True(t, ok, "reason is %T", report.Result.Conflicts[0].Reason)
	assert.Equal(t, "Y -> Z -> Y", domain.FormatPath(reason.Path))

	require.Len(t, report.Diagnostics.CyclePaths, 1)
	assert.Equal(t, "Y -> Z -> Y", domain.FormatPath(report.Diagnostics.CyclePaths[0]))
}

func TestSolve_SiblingConflictIsNotACycle(t *testing.T) {
	s := newSolver(t,
		manifest("X", "1.0.0", "Y@^1.0.0", "Z@^1.0.0"),
		manifest("Y", "1.0.0", "W@^1.0.0"),
		manifest("Z", "1.0.0", "W@^2.0.0"),
		manifest("W", "1.0.0"),
		manifest("W", "2.0.0"))

	report := s.Solve(context.Background(), solver.Request{Specs: specs("X@^1.0.0")})

	require.Error(t, report.Err)
	assert.NotErrorIs(t, report.Err, domain.ErrCyclicDependency)
	assert.Empty(t, report.Diagnostics.CyclePaths)
}

func TestSolve_MissingRoot(t *testing.T) {
	s := newSolver(t, manifest("A", "1.0.0"))

	report := s.Solve(context.Background(), solver.Request{Specs: specs("A", "ghost@^1.0.0")})

	require.ErrorIs(t, report.Err, domain.ErrConnectorNotFound)
	assert.Equal(t, domain.OutcomeNotFound, report.Result.Outcome)
	require.Len(t, report.Result.Conflicts, 1)
	assert.Equal(t, domain.ConnectorID("ghost"), report.Result.Conflicts[0].ConnectorID)
	assert.IsType(t, domain.MissingConnector{}, report.Result.Conflicts[0].Reason)

	available, ok := report.Diagnostics.AvailableVersions["ghost"]
	assert.True(t, ok)
	assert.Empty(t, available)
}

func TestSolve_MissingTransitiveDependency(t *testing.T) {
	s := newSolver(t, manifest("A", "1.0.0", "ghost@^1.0.0"))

	report := s.Solve(context.Background(), solver.Request{Specs: specs("A")})

	require.ErrorIs(t, report.Err, domain.ErrConnectorNotFound)
	require.Len(t, report.Result.Conflicts, 1)
	assert.Equal(t, domain.ConnectorID("ghost"), report.Result.Conflicts[0].ConnectorID)
	require.Len(t, report.Result.Conflicts[0].Requirements, 1)
	assert.Equal(t, "A@1.0.0", report.Result.Conflicts[0].Requirements[0].Requester.String())
}

func TestSolve_MissingDependencyFallsBackToOtherVersion(t *testing.T) {
	s := newSolver(t,
		manifest("A", "1.0.0"),
		manifest("A", "1.1.0", "ghost@^1.0.0"))

	report := s.Solve(context.Background(), solver.Request{Specs: specs("A")})

	require.NoError(t, report.Err)
	assert.Equal(t, map[string]string{"A": "1.0.0"}, resolved(t, report.Result))
}

func TestSolve_ExpansionBudget(t *testing.T) {
	s := newSolver(t,
		manifest("A", "1.0.0", "B@^1.0.0"),
		manifest("B", "1.0.0"))

	report := s.Solve(context.Background(), solver.Request{
		Specs:  specs("A"),
		Limits: domain.SolverLimits{MaxExpansions: 1},
	})

	require.ErrorIs(t, report.Err, domain.ErrResolutionBudgetExceeded)
	assert.NotErrorIs(t, report.Err, domain.ErrUnsatisfiableConstraintSet)
	assert.Equal(t, domain.OutcomeBudgetExceeded, report.Result.Outcome)
	assert.Empty(t, report.Result.ResolvedVersions)

	var zErr *zerr.Error
	require.ErrorAs(t, report.Err, &zErr)
	assert.Equal(t, 1, zErr.Metadata()["limit"])
}

func TestSolve_TimeBudget(t *testing.T) {
	reg := manifests.NewRegistry()
	require.NoError(t, reg.Publish(manifest("A", "1.0.0", "B@^1.0.0"), manifest("B", "1.0.0")))
	c, err := catalog.New(reg)
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	s := solver.New(c, solver.WithClock(clock))

	report := s.Solve(context.Background(), solver.Request{
		Specs:  specs("A"),
		Limits: domain.SolverLimits{Timeout: 1500 * time.Millisecond},
	})

	require.ErrorIs(t, report.Err, domain.ErrResolutionBudgetExceeded)
	assert.Equal(t, domain.OutcomeBudgetExceeded, report.Result.Outcome)
}

// exponential builds a registry where every connector has many versions that
// all depend on a connector nothing provides a compatible version of.
func exponential(width, depth int) []domain.ConnectorVersion {
	var out []domain.ConnectorVersion
	for d := range depth {
		id := domain.ConnectorID(fmt.Sprintf("c%d", d))
		next := fmt.Sprintf("c%d@*", d+1)
		if d == depth-1 {
			next = "sink@^9.0.0"
		}
		for w := range width {
			out = append(out, manifest(id, fmt.Sprintf("1.%d.0", w), next))
		}
	}
	return append(out, manifest("sink", "1.0.0"))
}

func TestSolve_PathologicalGraphFailsFast(t *testing.T) {
	s := newSolver(t, exponential(10, 8)...)

	start := time.Now()
	report := s.Solve(context.Background(), solver.Request{
		Specs:  specs("c0"),
		Limits: domain.SolverLimits{MaxExpansions: 5_000},
	})

	require.Error(t, report.Err)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.LessOrEqual(t, report.Result.Stats.Expansions, 5_001)
}

func TestSolve_CancelledContext(t *testing.T) {
	s := newSolver(t, manifest("A", "1.0.0"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := s.Solve(ctx, solver.Request{Specs: specs("A")})

	require.ErrorIs(t, report.Err, domain.ErrResolutionCancelled)
	assert.Equal(t, domain.OutcomeCancelled, report.Result.Outcome)
	assert.False(t, report.Result.Success)
	assert.Empty(t, report.Result.ResolvedVersions)
}

// cancellingRegistry cancels the resolution the first time trigger is fetched.
type cancellingRegistry struct {
	*manifests.Registry
	trigger domain.ConnectorID
	cancel  context.CancelFunc
}

func (r *cancellingRegistry) GetVersions(ctx context.Context, id domain.ConnectorID) ([]domain.ConnectorVersion, error) {
	if id == r.trigger {
		r.cancel()
	}
	return r.Registry.GetVersions(ctx, id)
}

func TestSolve_CancelledDuringSearch(t *testing.T) {
	inner := manifests.NewRegistry()
	require.NoError(t, inner.Publish(manifest("A", "1.0.0", "B@^1.0.0"), manifest("B", "1.0.0")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, err := catalog.New(&cancellingRegistry{Registry: inner, trigger: "B", cancel: cancel})
	require.NoError(t, err)

	report := solver.New(c).Solve(ctx, solver.Request{Specs: specs("A")})

	require.ErrorIs(t, report.Err, domain.ErrResolutionCancelled)
	assert.Equal(t, domain.OutcomeCancelled, report.Result.Outcome)
	assert.Empty(t, report.Result.ResolvedVersions)
}

type failingRegistry struct {
	*manifests.Registry
	broken domain.ConnectorID
}

func (r *failingRegistry) GetVersions(ctx context.Context, id domain.ConnectorID) ([]domain.ConnectorVersion, error) {
	if id == r.broken {
		return nil, errors.New("connection refused")
	}
	return r.Registry.GetVersions(ctx, id)
}

func TestSolve_RegistryUnavailable(t *testing.T) {
	inner := manifests.NewRegistry()
	require.NoError(t, inner.Publish(manifest("A", "1.0.0", "B@^1.0.0")))

	c, err := catalog.New(&failingRegistry{Registry: inner, broken: "B"}, catalog.WithRetryPolicy(domain.RetryPolicy{
		MaxAttempts:     2,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
	}))
	require.NoError(t, err)

	report := solver.New(c).Solve(context.Background(), solver.Request{Specs: specs("A")})

	require.ErrorIs(t, report.Err, domain.ErrRegistryUnavailable)
	assert.Equal(t, domain.OutcomeRegistryUnavailable, report.Result.Outcome)
	assert.Empty(t, report.Result.ResolvedVersions)
}

func lockfile(pins map[domain.ConnectorID]string) *domain.Lockfile {
	lf := &domain.Lockfile{FormatVersion: domain.CurrentLockfileFormat, ResolvedVersions: map[domain.ConnectorID]domain.Version{}}
	for id, v := range pins {
		lf.ResolvedVersions[id] = domain.MustParseVersion(v)
	}
	return lf
}

func TestSolve_IncrementalPins(t *testing.T) {
	registry := []domain.ConnectorVersion{
		manifest("A", "1.0.0"), manifest("A", "1.2.0"), manifest("A", "1.6.0"), manifest("A", "2.0.0"),
	}
	lf := lockfile(map[domain.ConnectorID]string{"A": "1.2.0"})

	tests := []struct {
		name     string
		strategy domain.ResolutionStrategy
		lock     *domain.Lockfile
		unlock   []domain.ConnectorID
		all      bool
		want     string
	}{
		{name: "no lockfile", strategy: domain.HighestCompatible, want: "1.6.0"},
		{name: "pin preferred under highest", strategy: domain.HighestCompatible, lock: lf, want: "1.2.0"},
		{name: "pin preferred under lowest", strategy: domain.LowestCompatible, lock: lf, want: "1.2.0"},
		{name: "pinned strategy", strategy: domain.Pinned, lock: lf, want: "1.2.0"},
		{name: "prefer stable ignores pins", strategy: domain.PreferStable, lock: lf, want: "1.6.0"},
		{name: "unlocked connector", strategy: domain.HighestCompatible, lock: lf, unlock: []domain.ConnectorID{"A"}, want: "1.6.0"},
		{name: "unlock all", strategy: domain.HighestCompatible, lock: lf, all: true, want: "1.6.0"},
		{name: "pinned survives unlock all", strategy: domain.Pinned, lock: lf, all: true, want: "1.2.0"},
		{
			name:     "stale pin outside range",
			strategy: domain.HighestCompatible,
			lock:     lockfile(map[domain.ConnectorID]string{"A": "2.0.0"}),
			want:     "1.6.0",
		},
		{
			name:     "pin no longer published",
			strategy: domain.Pinned,
			lock:     lockfile(map[domain.ConnectorID]string{"A": "1.3.0"}),
			want:     "1.6.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSolver(t, registry...)
			report := s.Solve(context.Background(), solver.Request{
				Specs:     specs("A@^1.0.0"),
				Strategy:  tt.strategy,
				Lockfile:  tt.lock,
				Unlock:    tt.unlock,
				UnlockAll: tt.all,
			})
			require.NoError(t, report.Err)
			assert.Equal(t, tt.want, report.Result.ResolvedVersions["A"].String())
		})
	}
}

func TestSolve_PinYieldsToNewConstraints(t *testing.T) {
	s := newSolver(t,
		manifest("A", "1.0.0"), manifest("A", "1.5.0"),
		manifest("B", "1.0.0", "A@>=1.5.0"))

	report := s.Solve(context.Background(), solver.Request{
		Specs:    specs("A@^1.0.0", "B"),
		Strategy: domain.HighestCompatible,
		Lockfile: lockfile(map[domain.ConnectorID]string{"A": "1.0.0"}),
	})

	require.NoError(t, report.Err)
	assert.Equal(t, map[string]string{"A": "1.5.0", "B": "1.0.0"}, resolved(t, report.Result))
}

var constraintPool = []string{"*", "^1.0.0", ">=1.1.0", "<1.2.0", "~1.1.0", ">=1.0.0 <1.3.0", "^2.0.0", "1.0.0 || 1.2.0"}

// randomRegistry builds a deterministic pseudo-random registry of small
// connectors with cross dependencies, cycles included.
func randomRegistry(seed uint64) []domain.ConnectorVersion {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	const connectors = 6
	var out []domain.ConnectorVersion
	for c := range connectors {
		id := domain.ConnectorID(fmt.Sprintf("c%d", c))
		for minor := range 1 + rng.IntN(4) {
			var deps []string
			for range rng.IntN(3) {
				target := rng.IntN(connectors)
				deps = append(deps, fmt.Sprintf("c%d@%s", target, constraintPool[rng.IntN(len(constraintPool))]))
			}
			out = append(out, manifest(id, fmt.Sprintf("1.%d.0", minor), deps...))
		}
	}
	return out
}

func TestSolve_Properties(t *testing.T) {
	strategies := []domain.ResolutionStrategy{
		domain.HighestCompatible, domain.LowestCompatible, domain.PreferStable, domain.Pinned,
	}
	successes := 0

	for seed := range uint64(60) {
		registry := randomRegistry(seed)
		byKey := make(map[string]domain.ConnectorVersion, len(registry))
		for _, cv := range registry {
			byKey[cv.String()] = cv
		}
		roots := specs("c0@"+constraintPool[seed%uint64(len(constraintPool))], "c1")

		for _, strategy := range strategies {
			s := newSolver(t, registry...)
			req := solver.Request{Specs: roots, Strategy: strategy}
			first := s.Solve(context.Background(), req)
			second := newSolver(t, registry...).Solve(context.Background(), req)

			// Determinism.
			require.Equal(t, first.Result, second.Result, "seed %d strategy %s", seed, strategy)
			require.Equal(t, first.Err == nil, first.Result.Success)
			if !first.Result.Success {
				assert.Empty(t, first.Result.ResolvedVersions)
				assert.NotEmpty(t, first.Result.Conflicts, "seed %d strategy %s", seed, strategy)
				continue
			}
			successes++

			// Validity: every root and transitive constraint holds and every
			// version comes from the registry.
			got := first.Result.ResolvedVersions
			for _, spec := range roots {
				v, ok := got[spec.ConnectorID]
				require.True(t, ok)
				assert.True(t, spec.Constraint.Check(v), "root %s -> %s", spec, v)
			}
			for id, v := range got {
				cv, ok := byKey[domain.ResolvedEntry{ConnectorID: id, Version: v}.String()]
				require.True(t, ok, "fabricated version %s@%s", id, v)
				for _, dep := range cv.Dependencies {
					target, ok := got[dep.ConnectorID]
					require.True(t, ok, "%s requires unresolved %s", cv, dep.ConnectorID)
					assert.True(t, dep.Constraint.Check(target), "%s requires %s, got %s", cv, dep, target)
				}
			}
		}
	}
	assert.Positive(t, successes)
}

func TestSolve_MonotonicStrategyOrdering(t *testing.T) {
	for seed := range uint64(40) {
		rng := rand.New(rand.NewPCG(seed, 7))
		var registry []domain.ConnectorVersion
		var versions []domain.Version
		for minor := range 1 + rng.IntN(6) {
			for patch := range 1 + rng.IntN(3) {
				cv := manifest("A", fmt.Sprintf("%d.%d.%d", 1+rng.IntN(2), minor, patch))
				registry = append(registry, cv)
				versions = append(versions, cv.Version)
			}
		}
		c := domain.MustParseConstraint(constraintPool[rng.IntN(len(constraintPool))])

		want, ok := maxSatisfying(versions, c)
		highest := newSolver(t, registry...).Solve(context.Background(), solver.Request{
			Specs:    []domain.DependencySpec{{ConnectorID: "A", Constraint: c}},
			Strategy: domain.HighestCompatible,
		})
		lowest := newSolver(t, registry...).Solve(context.Background(), solver.Request{
			Specs:    []domain.DependencySpec{{ConnectorID: "A", Constraint: c}},
			Strategy: domain.LowestCompatible,
		})
		if !ok {
			assert.False(t, highest.Result.Success)
			assert.False(t, lowest.Result.Success)
			continue
		}
		require.NoError(t, highest.Err)
		require.NoError(t, lowest.Err)
		assert.True(t, want.Equal(highest.Result.ResolvedVersions["A"]), "seed %d", seed)

		for _, v := range versions {
			if c.Check(v) {
				assert.GreaterOrEqual(t, v.Compare(lowest.Result.ResolvedVersions["A"]), 0, "seed %d", seed)
			}
		}
	}
}

func maxSatisfying(versions []domain.Version, c domain.Constraint) (domain.Version, bool) {
	var best domain.Version
	found := false
	for _, v := range versions {
		if c.Check(v) && (!found || v.Compare(best) > 0) {
			best, found = v, true
		}
	}
	return best, found
}
