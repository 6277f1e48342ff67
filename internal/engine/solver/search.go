// Package solver computes one version per connector satisfying every
// accumulated constraint, or explains why none exists.
//
// The search is an iterative depth-first backtracking over an explicit stack
// of frames. Registry lookups are lazy: a connector is fetched only when it
// first gains a requirement.
package solver

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.trai.ch/connres/internal/core/domain"
	"go.trai.ch/zerr"
)

// Request is the input of a resolution call.
type Request struct {
	Specs    []domain.DependencySpec
	Strategy domain.ResolutionStrategy

	// Lockfile enables incremental mode: pinned versions are tried first.
	Lockfile *domain.Lockfile
	// Unlock lists connectors whose pins are ignored.
	Unlock []domain.ConnectorID
	// UnlockAll ignores every pin except under the Pinned strategy.
	UnlockAll bool

	Limits domain.SolverLimits
}

// Report is the outcome of Solve. Err is nil iff Result.Success.
type Report struct {
	Result      domain.ResolutionResult
	Diagnostics domain.ResolutionDiagnostics
	Err         error
}

// Solver resolves requests against a VersionSource.
type Solver struct {
	src VersionSource
	now func() time.Time
}

// Option configures a Solver.
type Option func(*Solver)

// WithClock replaces time.Now for the wall-clock budget.
func WithClock(now func() time.Time) Option {
	return func(s *Solver) {
		s.now = now
	}
}

// New creates a Solver.
func New(src VersionSource, opts ...Option) *Solver {
	s := &Solver{src: src, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// frame is one node of the search arena: a connector, its ordered candidates
// and the trail mark taken before any of them was assigned.
type frame struct {
	id         domain.ConnectorID
	candidates []domain.ConnectorVersion
	cursor     int
	mark       int
}

type search struct {
	ctx      context.Context
	req      Request
	ix       *index
	st       *state
	rec      *recorder
	unlocked map[domain.ConnectorID]bool
	stats    domain.SearchStats

	maxExpansions int
	deadline      time.Time
	now           func() time.Time

	deepest    int
	unresolved []domain.ConnectorID
}

// abort ends the search early with a terminal outcome.
type abort struct {
	outcome domain.Outcome
	err     error
}

func (a *abort) Error() string { return a.err.Error() }

// Solve runs one resolution. It never returns a partial assignment: on
// failure the result carries no resolved versions.
func (s *Solver) Solve(ctx context.Context, req Request) Report {
	sr := &search{
		ctx:           ctx,
		req:           req,
		ix:            newIndex(s.src),
		st:            newState(),
		rec:           newRecorder(),
		unlocked:      make(map[domain.ConnectorID]bool, len(req.Unlock)),
		maxExpansions: req.Limits.MaxExpansions,
		now:           s.now,
	}
	if sr.maxExpansions <= 0 {
		sr.maxExpansions = domain.DefaultMaxExpansions
	}
	if req.Limits.Timeout > 0 {
		sr.deadline = s.now().Add(req.Limits.Timeout)
	}
	for _, id := range req.Unlock {
		sr.unlocked[id] = true
	}

	sr.seedRoots()
	err := sr.run()
	return sr.report(err)
}

// seedRoots discovers the root connectors in request order. Repeated roots
// are AND-merged into one connector with several root requirements.
func (sr *search) seedRoots() {
	var roots []domain.ConnectorID
	for _, spec := range sr.req.Specs {
		if !sr.st.discovered(spec.ConnectorID) {
			sr.st.discover(spec.ConnectorID, "")
			roots = append(roots, spec.ConnectorID)
		}
		sr.st.require(spec.ConnectorID, domain.Requirement{Constraint: spec.Constraint, Requester: domain.RootRequester})
	}
	if len(roots) > 0 {
		sr.ix.seed(sr.ix.src.Prefetch(sr.ctx, roots))
	}
}

func (sr *search) run() error {
	var stack []frame
	for {
		id, ok := sr.st.nextUnassigned()
		if !ok {
			return nil
		}

		f, err := sr.newFrame(id)
		if err != nil {
			return err
		}
		stack = append(stack, f)
		sr.observeDepth(len(stack))

		for {
			if len(stack) == 0 {
				return errExhausted
			}
			top := &stack[len(stack)-1]
			sr.st.rollback(top.mark)
			if top.cursor >= len(top.candidates) {
				stack = stack[:len(stack)-1]
				sr.stats.Backtracks++
				continue
			}
			cv := top.candidates[top.cursor]
			top.cursor++

			if err := sr.expand(); err != nil {
				return err
			}
			ok, err := sr.tryAssign(cv)
			if err != nil {
				return err
			}
			if ok {
				break
			}
		}
	}
}

var errExhausted = errors.New("search space exhausted")

// newFrame orders the viable candidates of id. A connector with no viable
// candidate yields an empty frame, which backtracks immediately.
func (sr *search) newFrame(id domain.ConnectorID) (frame, error) {
	f := frame{id: id, mark: sr.st.mark()}
	versions, found, err := sr.ix.get(sr.ctx, id)
	if err != nil {
		return f, sr.fatal(err)
	}
	reqs := sr.st.reqs[id]
	if !found {
		sr.rec.missing(id, reqs, nil)
		return f, nil
	}
	cands := viable(versions, reqs)
	if len(cands) == 0 {
		sr.rec.conflict(id, reqs, nil)
		return f, nil
	}
	f.candidates = domain.SortCandidates(sr.req.Strategy, cands, sr.pin(id))
	return f, nil
}

// pin returns the lockfile version to try first for id, if any.
func (sr *search) pin(id domain.ConnectorID) *domain.Version {
	lf := sr.req.Lockfile
	if lf == nil || !sr.req.Strategy.HonorsPins() {
		return nil
	}
	if sr.req.Strategy != domain.Pinned && (sr.req.UnlockAll || sr.unlocked[id]) {
		return nil
	}
	v, ok := lf.Pin(id)
	if !ok {
		return nil
	}
	return &v
}

// expand counts one node expansion and enforces cancellation and budgets.
func (sr *search) expand() error {
	if err := sr.ctx.Err(); err != nil {
		return &abort{
			outcome: domain.OutcomeCancelled,
			err:     zerr.Wrap(domain.ErrResolutionCancelled, err.Error()),
		}
	}
	sr.stats.Expansions++
	if sr.stats.Expansions > sr.maxExpansions {
		e := zerr.Wrap(domain.ErrResolutionBudgetExceeded, "node expansion limit reached")
		return &abort{outcome: domain.OutcomeBudgetExceeded, err: zerr.With(e, "limit", sr.maxExpansions)}
	}
	if !sr.deadline.IsZero() && !sr.now().Before(sr.deadline) {
		e := zerr.Wrap(domain.ErrResolutionBudgetExceeded, "time budget reached")
		return &abort{outcome: domain.OutcomeBudgetExceeded, err: zerr.With(e, "timeout", sr.req.Limits.Timeout.String())}
	}
	return nil
}

// tryAssign tentatively assigns cv, adds its dependencies as requirements and
// forward checks every target. The caller rolls back on failure.
func (sr *search) tryAssign(cv domain.ConnectorVersion) (bool, error) {
	sr.st.assign(cv)
	requester := domain.RequesterOf(cv)

	for _, dep := range cv.Dependencies {
		target := dep.ConnectorID
		if !sr.st.discovered(target) {
			sr.st.discover(target, cv.ConnectorID)
		}
		sr.st.require(target, domain.Requirement{Constraint: dep.Constraint, Requester: requester})

		if held, ok := sr.st.assigned[target]; ok {
			if dep.Constraint.Check(held.Version) {
				continue
			}
			// Only an empty full requirement set is a conflict; otherwise
			// another version of target may still work after backtracking.
			versions := sr.ix.known(target)
			reqs := sr.st.reqs[target]
			cycle := sr.st.cycleTo(cv.ConnectorID, target)
			if anyViable(versions, reqs) {
				sr.rec.clash(target, reqs, cycle)
			} else {
				sr.rec.conflict(target, reqs, cycle)
			}
			return false, nil
		}

		versions, found, err := sr.ix.get(sr.ctx, target)
		if err != nil {
			return false, sr.fatal(err)
		}
		reqs := sr.st.reqs[target]
		if !found {
			sr.rec.missing(target, reqs, sr.st.cycleTo(cv.ConnectorID, target))
			return false, nil
		}
		if !anyViable(versions, reqs) {
			sr.rec.conflict(target, reqs, sr.st.cycleTo(cv.ConnectorID, target))
			return false, nil
		}
	}
	return true, nil
}

// observeDepth remembers the unassigned connectors at the deepest point reached.
func (sr *search) observeDepth(depth int) {
	if depth > sr.deepest {
		sr.deepest = depth
		sr.unresolved = sr.st.unassigned()
	}
}

// fatal converts a lookup error into a terminal outcome.
func (sr *search) fatal(err error) error {
	if sr.ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &abort{outcome: domain.OutcomeCancelled, err: zerr.Wrap(domain.ErrResolutionCancelled, err.Error())}
	}
	if errors.Is(err, domain.ErrRegistryUnavailable) {
		return &abort{outcome: domain.OutcomeRegistryUnavailable, err: err}
	}
	return &abort{
		outcome: domain.OutcomeRegistryUnavailable,
		err:     zerr.Wrap(domain.ErrRegistryUnavailable, err.Error()),
	}
}

func (sr *search) report(err error) Report {
	sr.stats.RegistryLookups = sr.ix.lookups()
	result := domain.ResolutionResult{
		Specs:            slices.Clone(sr.req.Specs),
		Strategy:         sr.req.Strategy,
		ResolvedVersions: map[domain.ConnectorID]domain.Version{},
		Stats:            sr.stats,
	}

	if err == nil {
		result.ResolvedVersions = sr.st.resolved()
		result.Success = true
		result.Outcome = domain.OutcomeResolved
		return Report{
			Result:      result,
			Diagnostics: domain.ResolutionDiagnostics{Outcome: domain.OutcomeResolved, Stats: sr.stats},
		}
	}

	conflicts := sr.rec.finalize(sr.req.Strategy, sr.ix)
	result.Conflicts = conflicts
	result.Unresolved = sr.unresolved

	var outcome domain.Outcome
	var resErr error
	var ab *abort
	if errors.As(err, &ab) {
		outcome, resErr = ab.outcome, ab.err
	} else {
		outcome, resErr = sr.rec.verdict(conflicts)
	}
	result.Outcome = outcome

	return Report{
		Result:      result,
		Diagnostics: sr.rec.diagnostics(outcome, conflicts, sr.unresolved, sr.stats, sr.ix),
		Err:         resErr,
	}
}
