package solver

import (
	"slices"
	"strings"

	"go.trai.ch/connres/internal/core/domain"
	"go.trai.ch/zerr"
)

// record is a raw conflict captured during the search.
type record struct {
	id      domain.ConnectorID
	reqs    []domain.Requirement
	missing bool
	cycle   []domain.ConnectorID
}

// recorder collects conflicts in first-seen order, deduplicated by connector
// and constraint set.
//
// A conflict is a requirement set admitting no registry version. A clash is
// weaker: a new requirement rejects the version already assigned to its
// target while other versions remain. Clashes are reported only when the
// search failed without a single conflict.
type recorder struct {
	conflicts []record
	clashes   []record
	seen      map[string]struct{}
}

func newRecorder() *recorder {
	return &recorder{seen: make(map[string]struct{})}
}

func (r *recorder) conflict(id domain.ConnectorID, reqs []domain.Requirement, cycle []domain.ConnectorID) {
	r.add(&r.conflicts, "conflict", record{id: id, reqs: slices.Clone(reqs), cycle: cycle})
}

func (r *recorder) missing(id domain.ConnectorID, reqs []domain.Requirement, cycle []domain.ConnectorID) {
	r.add(&r.conflicts, "missing", record{id: id, reqs: slices.Clone(reqs), missing: true, cycle: cycle})
}

func (r *recorder) clash(id domain.ConnectorID, reqs []domain.Requirement, cycle []domain.ConnectorID) {
	r.add(&r.clashes, "clash", record{id: id, reqs: slices.Clone(reqs), cycle: cycle})
}

func (r *recorder) add(list *[]record, kind string, rec record) {
	key := signature(kind, rec)
	if _, dup := r.seen[key]; dup {
		return
	}
	r.seen[key] = struct{}{}
	*list = append(*list, rec)
}

func signature(kind string, rec record) string {
	if rec.missing {
		return kind + "\x00" + string(rec.id)
	}
	constraints := make([]string, len(rec.reqs))
	for i, req := range rec.reqs {
		constraints[i] = req.Constraint.String()
	}
	slices.Sort(constraints)
	return kind + "\x00" + string(rec.id) + "\x00" + strings.Join(constraints, "\x00")
}

// finalize turns the records into ConflictInfo values with reasons and relaxations.
func (r *recorder) finalize(strategy domain.ResolutionStrategy, ix *index) []domain.ConflictInfo {
	recs := r.conflicts
	if len(recs) == 0 {
		recs = r.clashes
	}
	out := make([]domain.ConflictInfo, 0, len(recs))
	for _, rec := range recs {
		versions := ix.known(rec.id)
		info := domain.ConflictInfo{
			ConnectorID:         rec.id,
			ConflictingVersions: make([]domain.Constraint, len(rec.reqs)),
			Requirements:        rec.reqs,
			Reason:              reason(rec, versions),
		}
		for i, req := range rec.reqs {
			info.ConflictingVersions[i] = req.Constraint
		}
		if !rec.missing {
			info.Relaxations = relax(strategy, versions, rec.reqs)
			for _, rel := range info.Relaxations {
				if len(rel.Versions) > 0 {
					info.SuggestedVersions = rel.Versions
					break
				}
			}
		}
		out = append(out, info)
	}
	return out
}

func reason(rec record, versions []domain.ConnectorVersion) domain.ConflictReason {
	switch {
	case rec.missing:
		return domain.MissingConnector{}
	case rec.cycle != nil:
		return domain.CyclicRequirement{Path: rec.cycle}
	}
	for _, req := range rec.reqs {
		if !anyViable(versions, []domain.Requirement{req}) {
			return domain.NoMatchingVersion{Constraint: req.Constraint, Requester: req.Requester}
		}
	}
	var requesters []domain.Requester
	for _, req := range rec.reqs {
		if !slices.ContainsFunc(requesters, func(seen domain.Requester) bool {
			return seen.String() == req.Requester.String()
		}) {
			requesters = append(requesters, req.Requester)
		}
	}
	return domain.IncompatibleRanges{Requesters: requesters}
}

// relax drops one requirement at a time, most recently added first, and
// records the versions that would then be viable in strategy order.
func relax(strategy domain.ResolutionStrategy, versions []domain.ConnectorVersion, reqs []domain.Requirement) []domain.Relaxation {
	out := make([]domain.Relaxation, 0, len(reqs))
	for i := len(reqs) - 1; i >= 0; i-- {
		rest := slices.Concat(reqs[:i], reqs[i+1:])
		ordered := domain.SortCandidates(strategy, viable(versions, rest), nil)
		rel := domain.Relaxation{Dropped: reqs[i], Versions: make([]domain.Version, 0, len(ordered))}
		for _, cv := range ordered {
			rel.Versions = append(rel.Versions, cv.Version)
		}
		out = append(out, rel)
	}
	return out
}

// verdict picks the outcome of an exhausted search.
func (r *recorder) verdict(conflicts []domain.ConflictInfo) (domain.Outcome, error) {
	if len(conflicts) == 0 {
		return domain.OutcomeUnsatisfiable,
			zerr.Wrap(domain.ErrUnsatisfiableConstraintSet, "no assignment satisfies every constraint")
	}

	for _, c := range conflicts {
		if cyc, ok := c.Reason.(domain.CyclicRequirement); ok {
			e := zerr.With(zerr.Wrap(domain.ErrCyclicDependency, c.String()), "cycle", domain.FormatPath(cyc.Path))
			return domain.OutcomeCyclic, zerr.With(e, "connector", string(c.ConnectorID))
		}
	}

	allMissing := true
	for _, c := range conflicts {
		if c.Reason.Kind() != domain.ReasonMissingConnector {
			allMissing = false
			break
		}
	}
	if allMissing {
		first := conflicts[0]
		e := zerr.Wrap(domain.ErrConnectorNotFound, "connector not found in registry")
		return domain.OutcomeNotFound, zerr.With(e, "connector", string(first.ConnectorID))
	}

	for _, c := range conflicts {
		if c.Reason.Kind() == domain.ReasonMissingConnector {
			continue
		}
		e := zerr.With(zerr.Wrap(domain.ErrUnsatisfiableConstraintSet, c.String()), "connector", string(c.ConnectorID))
		return domain.OutcomeUnsatisfiable, zerr.With(e, "constraints", c.Constraints())
	}
	return domain.OutcomeUnsatisfiable, zerr.Wrap(domain.ErrUnsatisfiableConstraintSet, "no assignment satisfies every constraint")
}

func (r *recorder) diagnostics(
	outcome domain.Outcome,
	conflicts []domain.ConflictInfo,
	unresolved []domain.ConnectorID,
	stats domain.SearchStats,
	ix *index,
) domain.ResolutionDiagnostics {
	diag := domain.ResolutionDiagnostics{
		Outcome:           outcome,
		Conflicts:         conflicts,
		AvailableVersions: make(map[domain.ConnectorID][]domain.Version),
		Unresolved:        unresolved,
		Stats:             stats,
	}
	seenCycles := make(map[string]struct{})
	for _, c := range conflicts {
		if _, ok := diag.AvailableVersions[c.ConnectorID]; !ok {
			known := ix.known(c.ConnectorID)
			versions := make([]domain.Version, 0, len(known))
			for _, cv := range known {
				versions = append(versions, cv.Version)
			}
			diag.AvailableVersions[c.ConnectorID] = versions
		}
		if cyc, ok := c.Reason.(domain.CyclicRequirement); ok {
			key := domain.FormatPath(cyc.Path)
			if _, dup := seenCycles[key]; !dup {
				seenCycles[key] = struct{}{}
				diag.CyclePaths = append(diag.CyclePaths, cyc.Path)
			}
		}
	}
	return diag
}
