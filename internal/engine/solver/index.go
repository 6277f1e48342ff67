package solver

import (
	"context"
	"errors"

	"go.trai.ch/connres/internal/core/domain"
	"go.trai.ch/connres/internal/engine/catalog"
)

// VersionSource supplies connector versions to the solver.
// *catalog.Catalog is the production implementation.
type VersionSource interface {
	Versions(ctx context.Context, id domain.ConnectorID) ([]domain.ConnectorVersion, error)
	Prefetch(ctx context.Context, ids []domain.ConnectorID) []catalog.Lookup
}

// index memoizes lookups for the duration of one resolution call, so each
// connector is fetched at most once however often it is referenced.
type index struct {
	src      VersionSource
	versions map[domain.ConnectorID][]domain.ConnectorVersion
	errs     map[domain.ConnectorID]error
}

func newIndex(src VersionSource) *index {
	return &index{
		src:      src,
		versions: make(map[domain.ConnectorID][]domain.ConnectorVersion),
		errs:     make(map[domain.ConnectorID]error),
	}
}

// seed stores prefetched lookups.
func (ix *index) seed(lookups []catalog.Lookup) {
	for _, l := range lookups {
		ix.store(l.ConnectorID, l.Versions, l.Err)
	}
}

func (ix *index) store(id domain.ConnectorID, versions []domain.ConnectorVersion, err error) {
	if err != nil {
		ix.errs[id] = err
		return
	}
	ix.versions[id] = versions
}

// get returns the ascending versions of id. A missing connector is reported
// with found == false and a nil error; any other error is fatal to the search.
func (ix *index) get(ctx context.Context, id domain.ConnectorID) (versions []domain.ConnectorVersion, found bool, err error) {
	if v, ok := ix.versions[id]; ok {
		return v, true, nil
	}
	if err, ok := ix.errs[id]; ok {
		return ix.classify(err)
	}
	v, err := ix.src.Versions(ctx, id)
	ix.store(id, v, err)
	if err != nil {
		return ix.classify(err)
	}
	return v, true, nil
}

func (ix *index) classify(err error) ([]domain.ConnectorVersion, bool, error) {
	if errors.Is(err, domain.ErrConnectorNotFound) {
		return nil, false, nil
	}
	return nil, false, err
}

// known returns the versions of id if it was fetched successfully.
func (ix *index) known(id domain.ConnectorID) []domain.ConnectorVersion {
	return ix.versions[id]
}

// lookups is the number of distinct connectors fetched.
func (ix *index) lookups() int {
	return len(ix.versions) + len(ix.errs)
}

// viable returns the versions of id satisfying every constraint, in ascending order.
func viable(versions []domain.ConnectorVersion, reqs []domain.Requirement) []domain.ConnectorVersion {
	constraints := constraintsOf(reqs)
	var out []domain.ConnectorVersion
	for _, cv := range versions {
		if domain.SatisfiesAll(cv.Version, constraints) {
			out = append(out, cv)
		}
	}
	return out
}

func anyViable(versions []domain.ConnectorVersion, reqs []domain.Requirement) bool {
	constraints := constraintsOf(reqs)
	for _, cv := range versions {
		if domain.SatisfiesAll(cv.Version, constraints) {
			return true
		}
	}
	return false
}

func constraintsOf(reqs []domain.Requirement) []domain.Constraint {
	out := make([]domain.Constraint, len(reqs))
	for i, r := range reqs {
		out[i] = r.Constraint
	}
	return out
}
