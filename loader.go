// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package forge

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/forgepm/forge/resolve"
)

// CurrentToolsVersion is the tools-version this build of forge implements.
// The Manifest Loader rejects manifests declaring a newer version (spec
// §4.C); individual manifest features are not gated by the declared
// tools-version.
const CurrentToolsVersion = "1.4.0"

// Loader errors (spec §4.C "Errors").
var (
	ErrNoManifest = errNoManifest
)

// ToolsVersionTooOldError is returned when a manifest declares a
// tools-version lower than what this build requires to parse it safely.
type ToolsVersionTooOldError struct {
	Declared, Minimum string
}

func (e *ToolsVersionTooOldError) Error() string {
	return fmt.Sprintf("manifest declares tools-version %s, but %s is the minimum supported", e.Declared, e.Minimum)
}

// ToolsVersionTooNewError is returned when a manifest declares a
// tools-version newer than CurrentToolsVersion.
type ToolsVersionTooNewError struct {
	Declared, Current string
}

func (e *ToolsVersionTooNewError) Error() string {
	return fmt.Sprintf("manifest declares tools-version %s, but this build only understands up to %s", e.Declared, e.Current)
}

// RuntimeManifestErrors collects multiple validation failures discovered
// while deriving a Manifest from its raw form (spec §4.C
// "RuntimeManifestErrors(list)").
type RuntimeManifestErrors struct {
	Errors []error
}

func (e *RuntimeManifestErrors) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return "invalid manifest: " + strings.Join(msgs, "; ")
}

// MinimumToolsVersion is the oldest tools-version this loader still knows
// how to parse.
const MinimumToolsVersion = "1.0.0"

// Loader evaluates a declarative manifest file on disk into the Manifest
// Model, applying tools-version selection and the too-old/too-new range
// check (spec §4.C). It
// registers every dependency's declared source with a SourceManager so
// identities are canonicalized exactly once, at load time.
type Loader struct {
	SourceManager *resolve.SourceManager
}

var toolsVariantPattern = regexp.MustCompile(`^(.+)@tools-(\d+\.\d+\.\d+)$`)

// Load implements spec §4.C's public contract:
// load(packagePath, identity, toolsVersion, fileSystem) -> Manifest.
//
// toolsVersion is the tools-version in effect for this load (normally
// CurrentToolsVersion; callers may pin an older value to reproduce a
// historical parse). The fileSystem parameter of the spec's contract is
// folded into ordinary os calls here; forge has no in-memory filesystem
// backend, so there is nothing to inject.
func (l *Loader) Load(packagePath string, id resolve.Identity, toolsVersion string) (*Manifest, error) {
	path, err := l.selectManifestFile(packagePath, toolsVersion)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, errors.Wrapf(ErrNoManifest, "in %s", packagePath)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open manifest")
	}
	defer f.Close()

	raw, err := ParseManifest(f)
	if err != nil {
		return nil, err
	}

	if raw.ToolsVersion == "" {
		raw.ToolsVersion = MinimumToolsVersion
	}
	if cmpVersions(raw.ToolsVersion, MinimumToolsVersion) < 0 {
		return nil, &ToolsVersionTooOldError{Declared: raw.ToolsVersion, Minimum: MinimumToolsVersion}
	}
	if cmpVersions(raw.ToolsVersion, CurrentToolsVersion) > 0 {
		return nil, &ToolsVersionTooNewError{Declared: raw.ToolsVersion, Current: CurrentToolsVersion}
	}

	return l.derive(raw, id)
}

// selectManifestFile implements spec §4.C's "Selection of per-version
// manifest files": pick the file whose @tools-<version> suffix is the
// greatest version <= toolsVersion; absent any suffixed variant, fall back
// to the base ManifestName.
func (l *Loader) selectManifestFile(packagePath, toolsVersion string) (string, error) {
	entries, err := os.ReadDir(packagePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrap(err, "read package directory")
	}

	base := filepath.Join(packagePath, ManifestName)
	baseExists := false
	best := ""
	bestVersion := ""

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if name == ManifestName {
			baseExists = true
			continue
		}
		m := toolsVariantPattern.FindStringSubmatch(name)
		if m == nil || m[1] != ManifestName {
			continue
		}
		variantVersion := m[2]
		if cmpVersions(variantVersion, toolsVersion) > 0 {
			continue // newer than what's in effect; not eligible
		}
		if best == "" || cmpVersions(variantVersion, bestVersion) > 0 {
			best = filepath.Join(packagePath, name)
			bestVersion = variantVersion
		}
	}

	if best != "" {
		return best, nil
	}
	if baseExists {
		return base, nil
	}
	return "", nil
}

// derive canonicalizes each declared dependency's source into an Identity,
// registering it with the Loader's SourceManager, and assembles the final
// Manifest Model.
func (l *Loader) derive(raw *rawManifest, id resolve.Identity) (*Manifest, error) {
	m := &Manifest{
		Name:         raw.Name,
		ToolsVersion: raw.ToolsVersion,
		Platforms:    raw.Platforms,
		Dependencies: make(map[resolve.Identity]resolve.Requirement, len(raw.Dependencies)),
		Overrides:    make(map[resolve.Identity]resolve.Requirement, len(raw.Overrides)),
		Ignores:      raw.Ignores,
		Required:     raw.Required,
		locations:    make(map[resolve.Identity]resolve.Location),
	}

	var runtimeErrs []error

	for _, rp := range raw.Products {
		p, err := productFromRaw(rp)
		if err != nil {
			runtimeErrs = append(runtimeErrs, err)
			continue
		}
		m.Products = append(m.Products, p)
	}
	for _, rt := range raw.Targets {
		t, err := targetFromRaw(rt)
		if err != nil {
			runtimeErrs = append(runtimeErrs, err)
			continue
		}
		m.Targets = append(m.Targets, t)
	}

	for name, prop := range raw.Dependencies {
		req, err := toRequirement(name, prop)
		if err != nil {
			runtimeErrs = append(runtimeErrs, err)
			continue
		}
		depID, loc, err := l.resolveSource(name, prop, req)
		if err != nil {
			runtimeErrs = append(runtimeErrs, err)
			continue
		}
		m.Dependencies[depID] = req
		m.locations[depID] = loc
	}
	for name, prop := range raw.Overrides {
		req, err := toRequirement(name, prop)
		if err != nil {
			runtimeErrs = append(runtimeErrs, err)
			continue
		}
		depID, loc, err := l.resolveSource(name, prop, req)
		if err != nil {
			runtimeErrs = append(runtimeErrs, err)
			continue
		}
		m.Overrides[depID] = req
		m.locations[depID] = loc
	}

	if len(runtimeErrs) > 0 {
		sort.Slice(runtimeErrs, func(i, j int) bool { return runtimeErrs[i].Error() < runtimeErrs[j].Error() })
		return nil, &RuntimeManifestErrors{Errors: runtimeErrs}
	}
	return m, nil
}

func (l *Loader) resolveSource(name string, prop rawDependencyProp, req resolve.Requirement) (resolve.Identity, resolve.Location, error) {
	raw := prop.Source
	if raw == "" {
		raw = name
	}

	kind := resolve.LocationRemoteVCS
	if req.Kind == resolve.RequirementLocal || strings.HasPrefix(raw, ".") || strings.HasPrefix(raw, "/") {
		kind = resolve.LocationLocalPath
	}
	loc := resolve.Location{Kind: kind, Raw: raw}

	if l.SourceManager != nil {
		id, err := l.SourceManager.Observe(loc)
		return id, loc, err
	}
	id, err := resolve.Canonicalize(loc)
	return id, loc, err
}

// cmpVersions compares two dotted major.minor.patch version strings
// numerically, returning -1/0/1. Non-numeric or short inputs compare as
// zero in the missing positions.
func cmpVersions(a, b string) int {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < 3; i++ {
		na, nb := partAt(pa, i), partAt(pb, i)
		if na != nb {
			if na < nb {
				return -1
			}
			return 1
		}
	}
	return 0
}

func partAt(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, _ := strconv.Atoi(parts[i])
	return n
}
