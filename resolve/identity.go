// Package resolve implements components A, D, E and G of the system: the
// package identity and location model, the pluggable repository provider,
// the content-addressed checkout cache, and the dependency resolver
// itself. It corresponds to the teacher codebase's self-contained `gps`
// engine, generalized to the present spec's identity/version/requirement
// model.
package resolve

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Identity is the stable, opaque handle distinguishing one package from
// another regardless of which mirror URL, local path, or registry
// coordinate was used to first observe it. Aliasing a string here (rather
// than exposing the raw canonical form as part of the exported API) keeps
// call sites honest about when a value is "a package name" versus "some
// path-ish string" (spec §4.A).
type Identity struct {
	canon string // canonical form used for equality/hashing
}

// String returns the canonical form. It is stable for a given Identity
// but is not guaranteed to be a usable URL or path.
func (id Identity) String() string {
	return id.canon
}

// Hash returns a short, content-stable hash of the identity, used to name
// the Checkout Cache's on-disk directories (spec §4.E).
func (id Identity) Hash() string {
	sum := sha256.Sum256([]byte(id.canon))
	return hex.EncodeToString(sum[:])[:16]
}

// IsZero reports whether id is the zero Identity.
func (id Identity) IsZero() bool {
	return id.canon == ""
}

// LocationKind enumerates the four shapes a Package Reference's location
// can take (spec §3 "Package Reference").
type LocationKind int

const (
	// LocationRemoteVCS is a remote source-control URL (git, for now).
	LocationRemoteVCS LocationKind = iota
	// LocationLocalVCS is a local filesystem path that is itself a
	// source-control checkout.
	LocationLocalVCS
	// LocationLocalPath is a plain, unversioned filesystem path.
	LocationLocalPath
	// LocationRegistry is a scope/name coordinate resolved through a
	// registry's client protocol.
	LocationRegistry
)

func (k LocationKind) String() string {
	switch k {
	case LocationRemoteVCS:
		return "remote-vcs"
	case LocationLocalVCS:
		return "local-vcs"
	case LocationLocalPath:
		return "local-path"
	case LocationRegistry:
		return "registry"
	default:
		return "unknown"
	}
}

// Location is a single, concrete place a package's source can be obtained
// from.
type Location struct {
	Kind LocationKind
	// Raw is the original, uncanonicalized string the caller supplied:
	// a URL, a filesystem path, or a "scope/name" registry coordinate.
	Raw string
}

// AmbiguousIdentityError is returned by the Identity registry when two
// different root packages canonicalize identically (spec §4.A).
type AmbiguousIdentityError struct {
	Canonical string
	First     Location
	Second    Location
}

func (e *AmbiguousIdentityError) Error() string {
	return fmt.Sprintf("ambiguous identity %q: %q and %q both canonicalize to it", e.Canonical, e.First.Raw, e.Second.Raw)
}

// AmbiguousLocationError is returned when the same Identity is registered
// through two locations whose raw strings differ (open question 9(ii),
// resolved: fail closed, never silently prefer one). Fetched content is
// not compared; two raw strings for the same content also conflict.
type AmbiguousLocationError struct {
	Identity Identity
	First    Location
	Second   Location
}

func (e *AmbiguousLocationError) Error() string {
	return fmt.Sprintf("identity %s reached via differing locations %q and %q; refusing to silently prefer one", e.Identity, e.First.Raw, e.Second.Raw)
}

// Canonicalize derives an Identity from a raw location string plus its
// kind, following the rules in spec §4.A: strip a trailing ".git",
// lowercase scheme and host, normalize path separators, and for
// filesystem paths resolve to a cleaned form; relative paths are not made
// absolute (that, like symlink resolution,
// is the caller's responsibility via an os-backed FileSystem, since this
// package must also run against purely in-memory fixtures in tests).
func Canonicalize(loc Location) (Identity, error) {
	switch loc.Kind {
	case LocationRemoteVCS, LocationLocalVCS:
		return canonicalizeVCS(loc.Raw)
	case LocationLocalPath:
		return canonicalizePath(loc.Raw)
	case LocationRegistry:
		return canonicalizeRegistry(loc.Raw)
	default:
		return Identity{}, errors.Errorf("unknown location kind %v", loc.Kind)
	}
}

func canonicalizeVCS(raw string) (Identity, error) {
	s := strings.TrimSuffix(raw, ".git")
	s = strings.TrimSuffix(s, "/")

	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		// Treat scheme-less strings (scp-style "git@host:path" or bare
		// "host/path" import-path forms) as opaque but still
		// case-normalize the host-looking prefix up to the first slash.
		parts := strings.SplitN(s, "/", 2)
		parts[0] = strings.ToLower(parts[0])
		return Identity{canon: "vcs:" + strings.Join(parts, "/")}, nil
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = filepath.ToSlash(u.Path)
	return Identity{canon: "vcs:" + u.Scheme + "://" + u.Host + u.Path}, nil
}

func canonicalizePath(raw string) (Identity, error) {
	clean := filepath.Clean(filepath.FromSlash(raw))
	clean = strings.TrimRight(clean, string(filepath.Separator))
	return Identity{canon: "path:" + filepath.ToSlash(clean)}, nil
}

func canonicalizeRegistry(raw string) (Identity, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if !strings.Contains(s, "/") {
		return Identity{}, errors.Errorf("registry identifier %q must be scope/name", raw)
	}
	return Identity{canon: "registry:" + s}, nil
}

// Registry tracks the first-observed Location for every Identity it has
// seen, plus any mirror aliases discovered afterward (spec §4.A: "the
// first-observed location wins and the second is recorded as a mirror
// alias"), and detects the ambiguous-root-package case.
type Registry struct {
	byIdentity map[Identity]Location
	mirrors    map[Identity][]Location
	byCanon    map[string]Identity // for detecting canon collisions from distinct roots
}

// NewRegistry returns an empty identity Registry.
func NewRegistry() *Registry {
	return &Registry{
		byIdentity: make(map[Identity]Location),
		mirrors:    make(map[Identity][]Location),
		byCanon:    make(map[string]Identity),
	}
}

// Observe canonicalizes loc and records it, returning the Identity. If
// the Identity was already known with a different Location, loc is
// recorded as a mirror alias and the original winning Location is
// unchanged.
func (r *Registry) Observe(loc Location) (Identity, error) {
	id, err := Canonicalize(loc)
	if err != nil {
		return Identity{}, err
	}

	first, known := r.byIdentity[id]
	if !known {
		r.byIdentity[id] = loc
		return id, nil
	}
	if first.Raw != loc.Raw {
		r.mirrors[id] = append(r.mirrors[id], loc)
	}
	return id, nil
}

// ObserveRoot behaves like Observe but additionally enforces that no two
// distinct root packages canonicalize to the same Identity, which would
// indicate the caller accidentally declared the same package twice under
// different guises.
func (r *Registry) ObserveRoot(loc Location) (Identity, error) {
	id, err := Canonicalize(loc)
	if err != nil {
		return Identity{}, err
	}
	if prevLoc, ok := r.byIdentity[id]; ok && prevLoc.Raw != loc.Raw {
		return Identity{}, &AmbiguousIdentityError{Canonical: id.canon, First: prevLoc, Second: loc}
	}
	r.byIdentity[id] = loc
	return id, nil
}

// Mirrors returns every alternate location observed for id beyond the
// first-observed winner.
func (r *Registry) Mirrors(id Identity) []Location {
	return r.mirrors[id]
}

// Location returns the winning, first-observed Location for id.
func (r *Registry) Location(id Identity) (Location, bool) {
	l, ok := r.byIdentity[id]
	return l, ok
}

// DisplayName returns a human-friendly rendering of an Identity for
// diagnostics, stripping the internal kind prefix.
func DisplayName(id Identity) string {
	if i := strings.IndexByte(id.canon, ':'); i >= 0 {
		return id.canon[i+1:]
	}
	return id.canon
}
