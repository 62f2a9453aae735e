package resolve

// Manifest is the minimal view of a package manifest the resolver needs:
// its declared dependencies. The full Manifest Model (spec §4.B) lives in
// the top-level forge package; that type implements this interface so
// that resolve never imports forge (which itself imports resolve for
// Identity/Version/Requirement — the Analyzer indirection below is what
// breaks the cycle, mirroring how gps.ProjectAnalyzer decouples the
// teacher's gps engine from its dep-specific Manifest type).
type Manifest interface {
	// DependencyConstraints returns this manifest's declared package
	// dependencies, keyed by Identity.
	DependencyConstraints() map[Identity]Requirement
}

// Lock is the minimal view of a previously-resolved state the resolver
// can consult: the Pin Store's persisted bindings (spec §4.F).
type Lock interface {
	// Pinned returns the exact state bound to id, if any.
	Pinned(id Identity) (PinnedState, bool)
}

// PinnedState is the resolved binding for a single Identity, exactly as
// recorded by the Pin Store (spec §3 "Pin").
type PinnedState struct {
	Version  SemVersion // zero value if unset
	Branch   Branch
	Revision Revision
}

// HasVersion reports whether Version is meaningfully set.
func (p PinnedState) HasVersion() bool {
	return p.Version.sv != nil
}

// Analyzer loads a Manifest and Lock from a package checkout at the
// given path, for a given Identity. It is the seam a concrete tool
// (forge's own manifest loader, in production; a fixture stub, in tests)
// plugs into the resolver, exactly as gps.ProjectAnalyzer does for the
// teacher engine.
type Analyzer interface {
	DeriveManifestAndLock(path string, id Identity) (Manifest, Lock, error)
}
