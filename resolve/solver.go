package resolve

import (
	"sort"

	"github.com/pkg/errors"
)

// SolveParameters bundles everything the resolver needs for a single
// resolution (spec §4.G "Problem statement").
type SolveParameters struct {
	// RootIdentity names the root package for diagnostic scoping; it is
	// never itself a dependency of anything and is exempt from cycle
	// checks (root -> X is never part of a reported cycle through root).
	RootIdentity Identity
	RootManifest Manifest

	SourceManager *SourceManager
	Lock          Lock // may be nil

	// Update lists identities whose pin should be ignored for this
	// resolution (spec §4.G "an optional 'update' set of identities to
	// ignore pins for").
	Update map[Identity]bool
}

// Solution is the resolver's output: a single concrete binding for every
// transitively reachable Identity (spec §4.G "Output").
type Solution struct {
	Bindings map[Identity]binding
}

// Version returns the semantic version bound to id, if its binding is
// version-typed.
func (s *Solution) Version(id Identity) (SemVersion, bool) {
	b, ok := s.Bindings[id]
	if !ok || b.Kind != RequirementExact {
		return SemVersion{}, false
	}
	return b.Version, true
}

// Solve runs the dependency resolution algorithm described in spec §4.G
// and returns a deterministic Solution or one of the failure modes named
// there (VersionConflictError, CyclicDependencyError,
// UnresolvedDependencyError, FetchErrorDetail, MissingVersionError).
//
// The search is a backtracking exploration over a worklist of pending
// identities, always visited in the fixed lexicographic-by-identity
// order spec §4.G's "Determinism" section requires; each decision point
// snapshots the partial assignment (selection.clone) so a failed
// candidate can be discarded cheaply rather than incrementally undone.
// This is a simplification of the teacher's own versionQueue-stack
// backtracking (solver.go/version_queue.go in the teacher corpus), which
// — despite gps's docs describing it as SAT-style — is itself
// chronological backtracking over per-identity candidate queues, not
// literal CDCL clause learning. See DESIGN.md for the rationale.
func Solve(params SolveParameters) (*Solution, error) {
	s := &solver{params: params}

	sel := newSelection()
	for id, req := range params.RootManifest.DependencyConstraints() {
		if err := sel.addEdge(Identity{}, id, req); err != nil {
			return nil, err
		}
	}

	pending := make([]Identity, 0, len(sel.edges))
	for id := range sel.edges {
		pending = append(pending, id)
	}

	final, err := s.resolve(sel, pending)
	if err != nil {
		return nil, err
	}
	return &Solution{Bindings: final.bound}, nil
}

type solver struct {
	params SolveParameters
}

// resolve is the recursive backtracking step. pending holds identities
// with at least one recorded edge that have not yet been fully explored
// (their own dependencies pushed onto some future pending list).
func (s *solver) resolve(sel *selection, pending []Identity) (*selection, error) {
	if len(pending) == 0 {
		return sel, nil
	}

	// Fixed total order: lexicographic by identity (spec §4.G
	// "Determinism"). Re-sorting on every call is O(n log n) in the
	// remaining worklist size, which is fine at the scale this solver
	// targets (a handful to a few hundred packages).
	sort.Slice(pending, func(i, j int) bool { return pending[i].String() < pending[j].String() })
	id := pending[0]
	rest := pending[1:]

	if sel.isBound(id) {
		// Already decided (reached again via another edge); the edge was
		// already checked for compatibility when it was added via
		// combinedRequirement, so there is nothing further to do here.
		return s.resolve(sel, rest)
	}

	combined, edges, err := sel.combinedRequirement(id)
	if err != nil {
		return nil, err
	}

	if !combined.Kind.IsVersioned() {
		return s.resolvePinned(sel, rest, id, combined, edges)
	}
	return s.resolveVersioned(sel, rest, id, combined, edges)
}

// resolvePinned handles branch/revision/local requirements, which bypass
// SAT entirely (spec §4.G "Branch/revision/local dependencies").
func (s *solver) resolvePinned(sel *selection, rest []Identity, id Identity, req Requirement, edges []edge) (*selection, error) {
	var b binding
	var manifest Manifest

	switch req.Kind {
	case RequirementBranch:
		rev, err := s.params.SourceManager.ResolveBranchHead(id, string(req.Branch))
		if err != nil {
			return nil, &UnresolvedDependencyError{Identity: id, Cause: err}
		}
		b = binding{Kind: RequirementBranch, Branch: req.Branch, Revision: rev}
		m, _, err := s.params.SourceManager.GetManifestAndLock(id, State{Revision: rev, Branch: req.Branch})
		if err != nil {
			return nil, &UnresolvedDependencyError{Identity: id, Cause: err}
		}
		manifest = m

	case RequirementRevision:
		repo, err := s.params.SourceManager.OpenRepository(id)
		if err != nil {
			return nil, &UnresolvedDependencyError{Identity: id, Cause: err}
		}
		rev, err := repo.ResolveRevision(string(req.Revision))
		if err != nil {
			return nil, &UnresolvedDependencyError{Identity: id, Cause: err}
		}
		b = binding{Kind: RequirementRevision, Revision: rev}
		m, _, err := s.params.SourceManager.GetManifestAndLock(id, State{Revision: rev})
		if err != nil {
			return nil, &UnresolvedDependencyError{Identity: id, Cause: err}
		}
		manifest = m

	case RequirementLocal:
		b = binding{Kind: RequirementLocal, Path: req.Path}
		m, _, err := s.params.SourceManager.analyzer.DeriveManifestAndLock(req.Path, id)
		if err != nil {
			return nil, &UnresolvedDependencyError{Identity: id, Cause: err}
		}
		manifest = m

	default:
		return nil, errors.Errorf("resolvePinned called with versioned requirement kind %v", req.Kind)
	}

	sel.bound[id] = b
	newPending, err := s.pushDependencies(sel, id, manifest)
	if err != nil {
		return nil, err
	}
	return s.resolve(sel, append(rest, newPending...))
}

// resolveVersioned handles exact/range requirements via backtracking SAT
// (spec §4.G "Incremental exploration" + "Constraint propagation").
func (s *solver) resolveVersioned(sel *selection, rest []Identity, id Identity, req Requirement, edges []edge) (*selection, error) {
	available, err := s.params.SourceManager.ListVersions(id)
	if err != nil {
		return nil, &FetchErrorDetail{Identity: id, Cause: err}
	}

	var pinned *SemVersion
	if s.params.Lock != nil && !s.params.Update[id] {
		if p, ok := s.params.Lock.Pinned(id); ok && p.HasVersion() {
			v := p.Version
			pinned = &v
		}
	}

	candidates := buildCandidateQueue(req, available, pinned)
	if len(candidates) == 0 {
		return nil, &VersionConflictError{Identity: id, RequiredBy: edges, Available: available}
	}

	var lastErr error
	for _, v := range candidates {
		trial := sel.clone()
		trial.bound[id] = binding{Kind: RequirementExact, Version: v}

		state, err := s.params.SourceManager.ResolveTagState(id, v)
		if err != nil {
			lastErr = &FetchErrorDetail{Identity: id, Cause: err}
			continue
		}
		manifest, _, err := s.params.SourceManager.GetManifestAndLock(id, state)
		if err != nil {
			lastErr = &UnresolvedDependencyError{Identity: id, Cause: err}
			continue
		}

		newPending, err := s.pushDependencies(trial, id, manifest)
		if err != nil {
			lastErr = err
			continue
		}

		result, err := s.resolve(trial, append(append([]Identity(nil), rest...), newPending...))
		if err == nil {
			return result, nil
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = &VersionConflictError{Identity: id, RequiredBy: edges, Available: available}
	}
	return nil, lastErr
}

// pushDependencies records edges for every dependency manifest declares
// and returns the set of identities that now have at least one edge and
// should be added to the pending worklist.
func (s *solver) pushDependencies(sel *selection, from Identity, manifest Manifest) ([]Identity, error) {
	var newIDs []Identity
	for depID, req := range manifest.DependencyConstraints() {
		_, alreadyPending := sel.edges[depID]
		if err := sel.addEdge(from, depID, req); err != nil {
			return nil, err
		}
		if !alreadyPending && !sel.isBound(depID) {
			newIDs = append(newIDs, depID)
		} else if alreadyPending && sel.isBound(depID) {
			// Re-validate: does the existing binding still satisfy the
			// newly combined requirement set?
			combined, edges, err := sel.combinedRequirement(depID)
			if err != nil {
				return nil, err
			}
			if combined.Kind.IsVersioned() {
				if b := sel.bound[depID]; !combined.Matches(b.Version) {
					return nil, &VersionConflictError{Identity: depID, RequiredBy: edges}
				}
			}
		}
	}
	return newIDs, nil
}
