package solver

import (
	"slices"

	"go.trai.ch/connres/internal/core/domain"
)

type opKind uint8

const (
	opDiscover opKind = iota
	opRequire
	opAssign
)

// op is one entry of the undo trail.
type op struct {
	kind opKind
	id   domain.ConnectorID
}

// state is the partial assignment plus the requirements accumulated so far.
// Every mutation is logged on a trail so backtracking restores the exact
// earlier state, discovery order included.
type state struct {
	order    []domain.ConnectorID
	parent   map[domain.ConnectorID]domain.ConnectorID
	reqs     map[domain.ConnectorID][]domain.Requirement
	assigned map[domain.ConnectorID]domain.ConnectorVersion
	trail    []op
}

func newState() *state {
	return &state{
		parent:   make(map[domain.ConnectorID]domain.ConnectorID),
		reqs:     make(map[domain.ConnectorID][]domain.Requirement),
		assigned: make(map[domain.ConnectorID]domain.ConnectorVersion),
	}
}

func (s *state) mark() int {
	return len(s.trail)
}

// rollback undoes every mutation made after mark.
func (s *state) rollback(mark int) {
	for len(s.trail) > mark {
		last := s.trail[len(s.trail)-1]
		s.trail = s.trail[:len(s.trail)-1]
		switch last.kind {
		case opDiscover:
			s.order = s.order[:len(s.order)-1]
			delete(s.parent, last.id)
		case opRequire:
			reqs := s.reqs[last.id]
			if len(reqs) == 1 {
				delete(s.reqs, last.id)
			} else {
				s.reqs[last.id] = reqs[:len(reqs)-1]
			}
		case opAssign:
			delete(s.assigned, last.id)
		}
	}
}

func (s *state) discovered(id domain.ConnectorID) bool {
	_, ok := s.parent[id]
	return ok
}

// discover appends id to the discovery order. Roots have an empty parent.
func (s *state) discover(id, parent domain.ConnectorID) {
	s.order = append(s.order, id)
	s.parent[id] = parent
	s.trail = append(s.trail, op{kind: opDiscover, id: id})
}

func (s *state) require(id domain.ConnectorID, req domain.Requirement) {
	s.reqs[id] = append(s.reqs[id], req)
	s.trail = append(s.trail, op{kind: opRequire, id: id})
}

func (s *state) assign(cv domain.ConnectorVersion) {
	s.assigned[cv.ConnectorID] = cv
	s.trail = append(s.trail, op{kind: opAssign, id: cv.ConnectorID})
}

// requirements returns a copy of the requirements accumulated against id.
func (s *state) requirements(id domain.ConnectorID) []domain.Requirement {
	return slices.Clone(s.reqs[id])
}

// nextUnassigned returns the first discovered connector without a version.
func (s *state) nextUnassigned() (domain.ConnectorID, bool) {
	for _, id := range s.order {
		if _, ok := s.assigned[id]; !ok {
			return id, true
		}
	}
	return "", false
}

// unassigned lists the discovered connectors without a version, in discovery order.
func (s *state) unassigned() []domain.ConnectorID {
	var out []domain.ConnectorID
	for _, id := range s.order {
		if _, ok := s.assigned[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// cycleTo returns the dependency cycle closed when from requires target, or
// nil when target does not reach from. Edges are the requirements declared by
// assigned versions, so the path may run through any active connector, not
// only the one that discovered the next.
func (s *state) cycleTo(from, target domain.ConnectorID) []domain.ConnectorID {
	if from == target {
		return []domain.ConnectorID{target, target}
	}

	edges := make(map[domain.ConnectorID][]domain.ConnectorID)
	for _, id := range s.order {
		for _, req := range s.reqs[id] {
			src := req.Requester.ConnectorID
			if src == "" || slices.Contains(edges[src], id) {
				continue
			}
			edges[src] = append(edges[src], id)
		}
	}

	// Breadth first from target, so the reported cycle is the shortest one.
	prev := map[domain.ConnectorID]domain.ConnectorID{target: ""}
	queue := []domain.ConnectorID{target}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == from {
			var path []domain.ConnectorID
			for n := from; n != ""; n = prev[n] {
				path = append(path, n)
			}
			// path runs from -> ... -> target; the cycle reads target -> ... -> from -> target.
			slices.Reverse(path)
			return append(path, target)
		}
		for _, next := range edges[cur] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = cur
			queue = append(queue, next)
		}
	}
	return nil
}

// resolved returns the version of every assigned connector.
func (s *state) resolved() map[domain.ConnectorID]domain.Version {
	out := make(map[domain.ConnectorID]domain.Version, len(s.assigned))
	for id, cv := range s.assigned {
		out[id] = cv.Version
	}
	return out
}
