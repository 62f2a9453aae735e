package resolve

import "github.com/pkg/errors"

// edge is a single incoming Dependency Requirement, attributed to the
// identity that declared it. A zero Identity as `from` denotes the root
// manifest(s) passed into Solve.
type edge struct {
	from Identity
	req  Requirement
}

// binding is the concrete state chosen for one Identity, once resolved.
type binding struct {
	Kind     RequirementKind
	Version  SemVersion
	Branch   Branch
	Revision Revision
	Path     string
}

// selection is the solver's partial (or, at the end, complete)
// assignment: for every identity touched so far, every incoming edge
// seen and, once decided, its binding. It also tracks the
// package-dependency graph discovered so far so that package-level
// cycles (spec §8: "Cycle A→B→A at package level") can be detected the
// moment a closing edge is added, regardless of which order identities
// are visited in.
//
// selection is cloned wholesale by the solver at each decision point
// (see solver.go) rather than incrementally undone on backtrack; dependency
// graphs in this domain are small enough that this trades a constant
// factor of copying for a much more auditable backtracking
// implementation.
type selection struct {
	edges map[Identity][]edge
	bound map[Identity]binding
	graph map[Identity][]Identity // package-level dependency edges, for cycle detection
}

func newSelection() *selection {
	return &selection{
		edges: make(map[Identity][]edge),
		bound: make(map[Identity]binding),
		graph: make(map[Identity][]Identity),
	}
}

// clone deep-copies the selection so the solver can try a candidate and
// cheaply discard it on failure.
func (s *selection) clone() *selection {
	c := newSelection()
	for id, es := range s.edges {
		c.edges[id] = append([]edge(nil), es...)
	}
	for id, b := range s.bound {
		c.bound[id] = b
	}
	for id, targets := range s.graph {
		c.graph[id] = append([]Identity(nil), targets...)
	}
	return c
}

func (s *selection) isBound(id Identity) bool {
	_, ok := s.bound[id]
	return ok
}

// addEdge records a new incoming requirement from `from` onto `to`,
// updates the package-dependency graph, and fails with
// CyclicDependencyError if doing so closes a cycle.
func (s *selection) addEdge(from, to Identity, req Requirement) error {
	s.edges[to] = append(s.edges[to], edge{from: from, req: req})

	if from.IsZero() {
		return nil // edges from the synthetic root never close a cycle
	}

	s.graph[from] = append(s.graph[from], to)
	if path, cyclic := detectCycle(s.graph, from, to); cyclic {
		return &CyclicDependencyError{Path: path}
	}
	return nil
}

// detectCycle checks whether the edge from->to, just added to graph,
// closes a cycle back to `from`, and if so returns the cycle path in the
// [A, B, ..., A] form spec §4.G's failure modes use.
func detectCycle(graph map[Identity][]Identity, from, to Identity) ([]Identity, bool) {
	visited := make(map[Identity]bool)
	var path []Identity

	var dfs func(cur Identity) bool
	dfs = func(cur Identity) bool {
		if cur.String() == from.String() {
			path = append(path, cur)
			return true
		}
		if visited[cur] {
			return false
		}
		visited[cur] = true
		for _, next := range graph[cur] {
			if dfs(next) {
				path = append(path, cur)
				return true
			}
		}
		return false
	}

	if dfs(to) {
		// path was built leaf-to-root; reverse and prepend `from` to read
		// as `from -> ... -> from`.
		full := make([]Identity, 0, len(path)+1)
		full = append(full, from)
		for i := len(path) - 1; i >= 0; i-- {
			full = append(full, path[i])
		}
		return full, true
	}
	return nil, false
}

// combinedRequirement intersects every edge recorded for id so far,
// failing with VersionConflictError (versioned edges with empty
// intersection) or IncompatibleRequirementsError (a revision/branch edge
// alongside an incompatible sibling).
func (s *selection) combinedRequirement(id Identity) (Requirement, []edge, error) {
	edges := s.edges[id]
	if len(edges) == 0 {
		return Requirement{}, nil, errors.Errorf("no requirements recorded for %s", id)
	}

	combined := edges[0].req
	for _, e := range edges[1:] {
		if err := CheckCompatible(id, combined, e.req); err != nil {
			return Requirement{}, edges, err
		}
		switch {
		case combined.Kind.IsVersioned() && e.req.Kind.IsVersioned():
			next, ok := combined.Intersect(e.req)
			if !ok {
				return Requirement{}, edges, &VersionConflictError{
					Identity:  id,
					RequiredBy: edges,
					Available: nil,
				}
			}
			combined = next
		case !combined.Kind.IsVersioned():
			if !sameRequirement(combined, e.req) {
				return Requirement{}, edges, &VersionConflictError{
					Identity:   id,
					RequiredBy: edges,
					Available:  nil,
				}
			}
		}
	}
	return combined, edges, nil
}

func sameRequirement(a, b Requirement) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case RequirementBranch:
		return a.Branch == b.Branch
	case RequirementRevision:
		return a.Revision == b.Revision
	case RequirementLocal:
		return a.Path == b.Path
	default:
		return true
	}
}
