package resolve

import (
	"fmt"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"
)

// RequirementKind distinguishes the tagged variants of a Dependency
// Requirement (spec §3): exact version, half-open range, branch,
// revision, or an unversioned local path. Only the version-typed kinds
// (Exact, Range) participate in SAT; the others are pinned as-is and
// excluded from the solver (spec §4.G "Branch/revision/local
// dependencies").
type RequirementKind int

const (
	RequirementExact RequirementKind = iota
	RequirementRange
	RequirementBranch
	RequirementRevision
	RequirementLocal
)

func (k RequirementKind) String() string {
	switch k {
	case RequirementExact:
		return "exact"
	case RequirementRange:
		return "range"
	case RequirementBranch:
		return "branch"
	case RequirementRevision:
		return "revision"
	case RequirementLocal:
		return "local"
	default:
		return "unknown"
	}
}

// IsVersioned reports whether this requirement kind is solved by SAT
// (Exact or Range); branch/revision/local are not.
func (k RequirementKind) IsVersioned() bool {
	return k == RequirementExact || k == RequirementRange
}

// Requirement is the tagged variant from spec §3 "Dependency
// Requirement". Exactly the fields relevant to Kind are populated.
type Requirement struct {
	Kind RequirementKind

	Exact    SemVersion // RequirementExact
	Lo, Hi   SemVersion // RequirementRange (half-open [Lo, Hi))
	Branch   Branch     // RequirementBranch
	Revision Revision   // RequirementRevision
	Path     string     // RequirementLocal: an unversioned filesystem path
}

func (r Requirement) String() string {
	switch r.Kind {
	case RequirementExact:
		return "==" + r.Exact.String()
	case RequirementRange:
		return fmt.Sprintf("[%s,%s)", r.Lo, r.Hi)
	case RequirementBranch:
		return "branch:" + string(r.Branch)
	case RequirementRevision:
		return "revision:" + string(r.Revision)
	case RequirementLocal:
		return "local:" + r.Path
	default:
		return "<invalid requirement>"
	}
}

// Exact constructs an exact-version Requirement.
func Exact(v SemVersion) Requirement {
	return Requirement{Kind: RequirementExact, Exact: v}
}

// Range constructs a half-open [lo, hi) Requirement.
func Range(lo, hi SemVersion) Requirement {
	return Requirement{Kind: RequirementRange, Lo: lo, Hi: hi}
}

// FromBranch constructs a branch Requirement.
func FromBranch(b string) Requirement {
	return Requirement{Kind: RequirementBranch, Branch: Branch(b)}
}

// FromRevision constructs a revision Requirement.
func FromRevision(rev string) Requirement {
	return Requirement{Kind: RequirementRevision, Revision: Revision(rev)}
}

// Local constructs an unversioned local-path Requirement.
func Local(path string) Requirement {
	return Requirement{Kind: RequirementLocal, Path: path}
}

// Matches reports whether v satisfies a versioned Requirement. It panics
// if r is not IsVersioned(); callers must branch on Kind before calling
// it, exactly as gps.Constraint.Matches assumes a homogeneous type
// universe.
func (r Requirement) Matches(v SemVersion) bool {
	switch r.Kind {
	case RequirementExact:
		return r.Exact.Compare(v) == 0
	case RequirementRange:
		return r.Lo.Compare(v) <= 0 && v.Compare(r.Hi) < 0
	default:
		panic("Matches called on a non-versioned Requirement kind")
	}
}

// IsEmpty reports whether a Range requirement's interval is empty
// (spec §8 "Boundary behaviors": `range(v, v)` is legal input but yields
// no admissible version).
func (r Requirement) IsEmpty() bool {
	return r.Kind == RequirementRange && r.Lo.Compare(r.Hi) >= 0
}

// Intersect computes the intersection of two versioned Requirements of
// the same identity. It returns ok=false if the result would admit no
// version at all (a conflict, in solver terms a learned exclusion).
func (r Requirement) Intersect(other Requirement) (Requirement, bool) {
	if !r.Kind.IsVersioned() || !other.Kind.IsVersioned() {
		panic("Intersect called on a non-versioned Requirement kind")
	}

	lo, hi := r.asRange()
	olo, ohi := other.asRange()

	var newLo, newHi SemVersion
	if lo.Compare(olo) > 0 {
		newLo = lo
	} else {
		newLo = olo
	}
	if hi.Compare(ohi) < 0 {
		newHi = hi
	} else {
		newHi = ohi
	}

	if newLo.Compare(newHi) >= 0 {
		return Requirement{}, false
	}
	return Range(newLo, newHi), true
}

func (r Requirement) asRange() (lo, hi SemVersion) {
	if r.Kind == RequirementExact {
		// [v, v+epsilon) represented by bumping the patch; since we only
		// ever use asRange for intersection math and never expose the
		// synthetic upper bound, a patch bump is sufficient to make
		// Compare-based range logic agree with exact-match semantics.
		bumped, _ := semver.NewVersion(fmt.Sprintf("%d.%d.%d", r.Exact.sv.Major(), r.Exact.sv.Minor(), r.Exact.sv.Patch()+1))
		return r.Exact, SemVersion{sv: bumped}
	}
	return r.Lo, r.Hi
}

// IncompatibleRequirementsError is returned when a revision dependency on
// an identity coexists with any other dependency requesting a version
// for the same identity (spec §4.G "Branch/revision/local
// dependencies").
type IncompatibleRequirementsError struct {
	Identity Identity
	First    Requirement
	Second   Requirement
}

func (e *IncompatibleRequirementsError) Error() string {
	return fmt.Sprintf("incompatible requirements on %s: %s and %s", e.Identity, e.First, e.Second)
}

// CheckCompatible enforces that a revision requirement never coexists
// with a version-typed requirement on the same identity.
func CheckCompatible(id Identity, existing, incoming Requirement) error {
	isPin := func(k RequirementKind) bool { return k == RequirementRevision }
	if isPin(existing.Kind) && incoming.Kind.IsVersioned() || isPin(incoming.Kind) && existing.Kind.IsVersioned() {
		return errors.WithStack(&IncompatibleRequirementsError{Identity: id, First: existing, Second: incoming})
	}
	return nil
}
