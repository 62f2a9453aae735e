package resolve

import (
	"fmt"

	"github.com/Masterminds/semver"
)

// Version is implemented by every concrete version representation the
// resolver can reason about: semantic versions, branches, and bare
// revisions (spec §3 "Version"). Like the teacher's gps.Version, it
// carries a private method so that only this package's own types satisfy
// it — callers are meant to type-switch, not implement it themselves.
type Version interface {
	fmt.Stringer
	Type() VersionType
	_sealed()
}

// VersionType distinguishes the concrete kinds of Version without a type
// assertion.
type VersionType int

const (
	VersionSemantic VersionType = iota
	VersionBranch
	VersionRevision
)

// SemVersion wraps github.com/Masterminds/semver, comparing under
// standard precedence rules (build metadata ignored in ordering, per
// spec §3). The zero value is not a valid version: use UnboundedSemVersion
// for an open-ended range endpoint (spec §8 "an unconstrained dependency
// admits any version").
type SemVersion struct {
	sv        *semver.Version
	unbounded bool
}

// NewSemVersion parses s as a semantic version.
func NewSemVersion(s string) (SemVersion, error) {
	sv, err := semver.NewVersion(s)
	if err != nil {
		return SemVersion{}, err
	}
	return SemVersion{sv: sv}, nil
}

// UnboundedSemVersion returns the sentinel version greater than every
// parseable semantic version, used as a Range's upper bound when a
// dependency declares no version constraint at all.
func UnboundedSemVersion() SemVersion {
	return SemVersion{unbounded: true}
}

func (v SemVersion) String() string {
	if v.unbounded {
		return "*"
	}
	if v.sv == nil {
		return ""
	}
	return v.sv.String()
}

// IsZero reports whether v is the unset zero value, as opposed to a
// parsed version or the unbounded sentinel.
func (v SemVersion) IsZero() bool {
	return !v.unbounded && v.sv == nil
}
func (v SemVersion) Type() VersionType { return VersionSemantic }
func (SemVersion) _sealed()            {}

// Compare returns -1, 0 or 1 as v is less than, equal to, or greater than
// other, using semver precedence (build metadata ignored). The unbounded
// sentinel compares greater than every concrete version.
func (v SemVersion) Compare(other SemVersion) int {
	switch {
	case v.unbounded && other.unbounded:
		return 0
	case v.unbounded:
		return 1
	case other.unbounded:
		return -1
	default:
		return v.sv.Compare(other.sv)
	}
}

// IsPrerelease reports whether v carries prerelease identifiers.
func (v SemVersion) IsPrerelease() bool {
	return !v.unbounded && v.sv.Prerelease() != ""
}

// Branch is an unversioned, named ref. Two Dependency Requirements of
// kind `branch` are only ever pinned as-is; the resolver does not
// compare branch names against each other for ordering purposes.
type Branch string

func (b Branch) String() string    { return string(b) }
func (Branch) Type() VersionType   { return VersionBranch }
func (Branch) _sealed()            {}

// Revision is an opaque source-control revision hash (spec §3
// "Dependency Requirement": `revision(hash)`).
type Revision string

func (r Revision) String() string  { return string(r) }
func (Revision) Type() VersionType { return VersionRevision }
func (Revision) _sealed()          {}

// SortVersionsDescending sorts semantic versions from highest to lowest,
// the fixed total order the resolver's tie-breaking relies on (spec
// §4.G "Determinism": "descending by version").
func SortVersionsDescending(vs []SemVersion) {
	// insertion sort is fine; candidate lists per identity are small in
	// practice and this keeps the comparator simple to audit.
	for i := 1; i < len(vs); i++ {
		j := i
		for j > 0 && vs[j-1].Compare(vs[j]) < 0 {
			vs[j-1], vs[j] = vs[j], vs[j-1]
			j--
		}
	}
}
