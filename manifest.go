// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package forge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/forgepm/forge/resolve"
)

// ManifestName is the base filename of a package declaration (spec §3
// "Manifest"). Per-tools-version variants are suffixed "@tools-<version>"
// (spec §4.C).
const ManifestName = "package.json"

// Manifest is the typed in-memory representation of a package declaration
// (spec §4.B "Manifest Model"). It is the root package's own view of its
// dependencies, overrides, and package-tree exclusions.
type Manifest struct {
	Name         string
	ToolsVersion string
	Platforms    []PlatformRequirement
	Products     []Product
	Targets      []Target
	Dependencies map[resolve.Identity]resolve.Requirement
	Overrides    map[resolve.Identity]resolve.Requirement
	Ignores      []string
	Required     []string

	// locations records the raw Location each declared dependency was
	// observed at, keyed by the same Identity used in Dependencies. The
	// Manifest Loader populates this as it canonicalizes each entry's
	// "source" field (spec §4.A).
	locations map[resolve.Identity]resolve.Location
}

// Location returns the raw Location a declared dependency should be
// fetched through, as recorded when the manifest was loaded.
func (m *Manifest) Location(id resolve.Identity) (resolve.Location, bool) {
	loc, ok := m.locations[id]
	return loc, ok
}

// DependencyConstraints implements resolve.Manifest.
func (m *Manifest) DependencyConstraints() map[resolve.Identity]resolve.Requirement {
	return m.Dependencies
}

// rawManifest is the on-disk JSON dialect (spec Open Question (i): JSON is
// the only manifest dialect this implementation parses; the teacher's TOML
// path is preserved only for the user configuration file, see config.go).
type rawManifest struct {
	Name         string                       `json:"name"`
	ToolsVersion string                       `json:"toolsVersion"`
	Platforms    []PlatformRequirement        `json:"platforms,omitempty"`
	Products     []rawProduct                 `json:"products,omitempty"`
	Targets      []rawTarget                  `json:"targets,omitempty"`
	Dependencies map[string]rawDependencyProp `json:"dependencies,omitempty"`
	Overrides    map[string]rawDependencyProp `json:"overrides,omitempty"`
	Ignores      []string                     `json:"ignores,omitempty"`
	Required     []string                     `json:"required,omitempty"`
}

type rawDependencyProp struct {
	Branch   string `json:"branch,omitempty"`
	Revision string `json:"revision,omitempty"`
	Version  string `json:"version,omitempty"`
	Source   string `json:"source"`
}

// ParseManifest decodes the JSON manifest dialect from r. It does not
// canonicalize identities or apply tools-version gating; that is the
// Manifest Loader's job (spec §4.C), layered on top in loader.go.
func ParseManifest(r io.Reader) (*rawManifest, error) {
	rm := &rawManifest{}
	if err := json.NewDecoder(r).Decode(rm); err != nil {
		return nil, errors.Wrap(err, "parse manifest")
	}
	return rm, nil
}

// toRequirement interprets a single dependency's string fields into a
// resolve.Requirement, per spec §3 "Dependency Requirement": at most one of
// branch/revision/version may be set, and none means any version. The
// source field is not read here (resolveSource falls back to the
// dependency name when it is empty).
func toRequirement(name string, p rawDependencyProp) (resolve.Requirement, error) {
	set := 0
	if p.Branch != "" {
		set++
	}
	if p.Revision != "" {
		set++
	}
	if p.Version != "" {
		set++
	}
	if set > 1 {
		return resolve.Requirement{}, errors.Errorf("multiple constraints specified for %s, can only specify one", name)
	}

	switch {
	case p.Branch != "":
		return resolve.FromBranch(p.Branch), nil
	case p.Revision != "":
		return resolve.FromRevision(p.Revision), nil
	case p.Version != "":
		exact, err := resolve.NewSemVersion(p.Version)
		if err != nil {
			return resolve.Requirement{}, errors.Wrapf(err, "invalid version constraint for %s", name)
		}
		return resolve.Exact(exact), nil
	default:
		// An open constraint: any version satisfies. Represented as a
		// maximally wide range anchored at 0.0.0.
		zero, _ := resolve.NewSemVersion("0.0.0")
		return resolve.Range(zero, resolve.UnboundedSemVersion()), nil
	}
}

func (m *Manifest) toPossible(req resolve.Requirement) rawDependencyProp {
	p := rawDependencyProp{}
	switch req.Kind {
	case resolve.RequirementBranch:
		p.Branch = string(req.Branch)
	case resolve.RequirementRevision:
		p.Revision = string(req.Revision)
	case resolve.RequirementExact:
		p.Version = req.Exact.String()
	case resolve.RequirementRange:
		// Only the open range produced by an unconstrained dependency
		// (toRequirement's default case) round-trips through this
		// dialect; leave Version empty rather than emit an unparseable
		// interval string.
	}
	return p
}

// MarshalJSON renders the manifest back into the JSON dialect, with
// indentation matching the teacher's writer convention (4 spaces, no HTML
// escaping so "<"/">" in constraint strings stay legible).
func (m *Manifest) MarshalJSON() ([]byte, error) {
	raw := rawManifest{
		Name:         m.Name,
		ToolsVersion: m.ToolsVersion,
		Platforms:    m.Platforms,
		Dependencies: make(map[string]rawDependencyProp, len(m.Dependencies)),
		Overrides:    make(map[string]rawDependencyProp, len(m.Overrides)),
		Ignores:      m.Ignores,
		Required:     m.Required,
	}

	for _, p := range m.Products {
		raw.Products = append(raw.Products, productToRaw(p))
	}
	for _, t := range m.Targets {
		raw.Targets = append(raw.Targets, targetToRaw(t))
	}

	for id, req := range m.Dependencies {
		raw.Dependencies[id.String()] = m.toPossible(req)
	}
	for id, req := range m.Overrides {
		raw.Overrides[id.String()] = m.toPossible(req)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// IgnoredPackages returns the manifest's ignore list as a set.
func (m *Manifest) IgnoredPackages() map[string]bool {
	if len(m.Ignores) == 0 {
		return nil
	}
	out := make(map[string]bool, len(m.Ignores))
	for _, i := range m.Ignores {
		out[i] = true
	}
	return out
}

// RequiredPackages returns the manifest's required list as a set.
func (m *Manifest) RequiredPackages() map[string]bool {
	if len(m.Required) == 0 {
		return nil
	}
	out := make(map[string]bool, len(m.Required))
	for _, i := range m.Required {
		out[i] = true
	}
	return out
}

var errNoManifest = fmt.Errorf("no %s found", ManifestName)
