// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package forge

import (
	"fmt"
	"regexp"

	"github.com/pkg/errors"
)

// PlatformRequirement is one entry of a manifest's declared supported
// platforms (spec §3 "Manifest": "declared supported platforms (each a
// platform tag plus minimum version)").
type PlatformRequirement struct {
	Tag        string `json:"tag"`
	MinVersion string `json:"minVersion"`
}

// ProductTypeKind is the tagged-variant discriminant for Product Type
// (spec §3: "executable, library(static|dynamic|automatic), test,
// plugin(capability), snippet").
type ProductTypeKind string

const (
	ProductExecutable ProductTypeKind = "executable"
	ProductLibrary    ProductTypeKind = "library"
	ProductTest       ProductTypeKind = "test"
	ProductPlugin     ProductTypeKind = "plugin"
	ProductSnippet    ProductTypeKind = "snippet"
)

// LibraryLinkage is the payload of a library-typed ProductType.
type LibraryLinkage string

const (
	LinkageStatic    LibraryLinkage = "static"
	LinkageDynamic   LibraryLinkage = "dynamic"
	LinkageAutomatic LibraryLinkage = "automatic"
)

// ProductType is a tagged variant over ProductTypeKind, carrying the
// library-linkage payload when Kind is ProductLibrary and the plugin
// capability string when Kind is ProductPlugin.
type ProductType struct {
	Kind     ProductTypeKind
	Linkage  LibraryLinkage // set only when Kind == ProductLibrary
	Capability string        // set only when Kind == ProductPlugin
}

// Product declares a named build output and the targets that compose it
// (spec §3 "Manifest": "declared products (name + type + member targets)").
type Product struct {
	Name    string
	Type    ProductType
	Targets []string
}

// TargetTypeKind is the tagged-variant discriminant for Target Type (spec
// §3: "regular, executable, test, system-library, binary, plugin").
type TargetTypeKind string

const (
	TargetRegular       TargetTypeKind = "regular"
	TargetExecutable    TargetTypeKind = "executable"
	TargetTest          TargetTypeKind = "test"
	TargetSystemLibrary TargetTypeKind = "system-library"
	TargetBinary        TargetTypeKind = "binary"
	TargetPlugin        TargetTypeKind = "plugin"
)

// TargetDependencyKind discriminates between the two forms spec §4.H
// names: "a bare name first tries sibling targets... an explicit
// product(name, package) form".
type TargetDependencyKind int

const (
	DependencySibling TargetDependencyKind = iota
	DependencyProduct
)

// TargetDependency is one entry of a target's declared dependency list.
type TargetDependency struct {
	Kind    TargetDependencyKind
	Name    string
	Package string // set only when Kind == DependencyProduct
}

// BuildSetting is a single per-tool, platform/configuration-scoped flag
// list (spec §4.I "per-tool extra flags (from target build settings,
// scoped by platform/configuration)").
type BuildSetting struct {
	Tool          string
	Platform      string // empty matches any platform
	Configuration string // empty matches any configuration
	Flags         []string
}

// ResourceRule names a file or glob to be copied into a product's
// resource bundle rather than compiled.
type ResourceRule struct {
	Rule string // "copy" or "process"
	Path string
}

// Target declares a single compilation unit (spec §3 "Manifest":
// "declared targets (name + type + path/sources/exclude/resource rules +
// target-and-product dependencies + build settings by tool)").
type Target struct {
	Name          string
	Type          TargetTypeKind
	Path          string
	Sources       []string
	Exclude       []string
	Resources     []ResourceRule
	Dependencies  []TargetDependency
	BuildSettings []BuildSetting
	Platforms     []string // supported platform tags; empty means every platform (manifest platforms are not consulted)

	// PublicHeadersPath is the target-relative directory exposed as an
	// include search path to dependents (spec §3 "Manifest":
	// "publicHeadersPath"); empty means the "include" convention.
	PublicHeadersPath string

	// URL and Checksum are set only when Type == TargetBinary (spec §3
	// "Manifest": "checksum, url (for binary)") and name the remote
	// archive/framework artifact and its expected SHA-256 digest.
	URL      string
	Checksum string
}

var productDependencyPattern = regexp.MustCompile(`^product\(\s*([^,]+?)\s*,\s*([^)]+?)\s*\)$`)

// ParseTargetDependency interprets a target dependency's string form
// (spec §4.H "a bare name... an explicit product(name, package) form").
func ParseTargetDependency(raw string) TargetDependency {
	if m := productDependencyPattern.FindStringSubmatch(raw); m != nil {
		return TargetDependency{Kind: DependencyProduct, Name: m[1], Package: m[2]}
	}
	return TargetDependency{Kind: DependencySibling, Name: raw}
}

// rawProduct/rawTarget are the JSON dialect's shapes for Product/Target,
// folded into rawManifest below.
type rawProduct struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Linkage string   `json:"linkage,omitempty"`
	Targets []string `json:"targets"`
}

type rawTarget struct {
	Name               string            `json:"name"`
	Type               string            `json:"type"`
	Path               string            `json:"path,omitempty"`
	Sources            []string          `json:"sources,omitempty"`
	Exclude            []string          `json:"exclude,omitempty"`
	Resources          []rawResourceRule `json:"resources,omitempty"`
	Dependencies       []string          `json:"dependencies,omitempty"`
	Settings           []rawBuildSetting `json:"settings,omitempty"`
	Platforms          []string          `json:"platforms,omitempty"`
	PublicHeadersPath  string            `json:"publicHeadersPath,omitempty"`
	URL                string            `json:"url,omitempty"`
	Checksum           string            `json:"checksum,omitempty"`
}

type rawResourceRule struct {
	Rule string `json:"rule"`
	Path string `json:"path"`
}

type rawBuildSetting struct {
	Tool          string   `json:"tool"`
	Platform      string   `json:"platform,omitempty"`
	Configuration string   `json:"configuration,omitempty"`
	Flags         []string `json:"flags"`
}

func productFromRaw(rp rawProduct) (Product, error) {
	pt := ProductType{Kind: ProductTypeKind(rp.Type)}
	switch pt.Kind {
	case ProductExecutable, ProductTest, ProductSnippet:
	case ProductLibrary:
		pt.Linkage = LibraryLinkage(rp.Linkage)
		if pt.Linkage == "" {
			pt.Linkage = LinkageAutomatic
		}
	case ProductPlugin:
		pt.Capability = rp.Linkage
	default:
		return Product{}, errors.Errorf("product %s: unknown type %q", rp.Name, rp.Type)
	}
	return Product{Name: rp.Name, Type: pt, Targets: rp.Targets}, nil
}

func productToRaw(p Product) rawProduct {
	rp := rawProduct{Name: p.Name, Type: string(p.Type.Kind), Targets: p.Targets}
	switch p.Type.Kind {
	case ProductLibrary:
		rp.Linkage = string(p.Type.Linkage)
	case ProductPlugin:
		rp.Linkage = p.Type.Capability
	}
	return rp
}

func targetToRaw(t Target) rawTarget {
	deps := make([]string, len(t.Dependencies))
	for i, d := range t.Dependencies {
		if d.Kind == DependencyProduct {
			deps[i] = fmt.Sprintf("product(%s, %s)", d.Name, d.Package)
		} else {
			deps[i] = d.Name
		}
	}

	res := make([]rawResourceRule, len(t.Resources))
	for i, r := range t.Resources {
		res[i] = rawResourceRule{Rule: r.Rule, Path: r.Path}
	}

	settings := make([]rawBuildSetting, len(t.BuildSettings))
	for i, s := range t.BuildSettings {
		settings[i] = rawBuildSetting{Tool: s.Tool, Platform: s.Platform, Configuration: s.Configuration, Flags: s.Flags}
	}

	return rawTarget{
		Name: t.Name, Type: string(t.Type), Path: t.Path,
		Sources: t.Sources, Exclude: t.Exclude, Resources: res,
		Dependencies: deps, Settings: settings, Platforms: t.Platforms,
		PublicHeadersPath: t.PublicHeadersPath, URL: t.URL, Checksum: t.Checksum,
	}
}

func targetFromRaw(rt rawTarget) (Target, error) {
	switch TargetTypeKind(rt.Type) {
	case TargetRegular, TargetExecutable, TargetTest, TargetSystemLibrary, TargetBinary, TargetPlugin:
	default:
		return Target{}, errors.Errorf("target %s: unknown type %q", rt.Name, rt.Type)
	}

	deps := make([]TargetDependency, len(rt.Dependencies))
	for i, d := range rt.Dependencies {
		deps[i] = ParseTargetDependency(d)
	}

	res := make([]ResourceRule, len(rt.Resources))
	for i, r := range rt.Resources {
		res[i] = ResourceRule{Rule: r.Rule, Path: r.Path}
	}

	settings := make([]BuildSetting, len(rt.Settings))
	for i, s := range rt.Settings {
		settings[i] = BuildSetting{Tool: s.Tool, Platform: s.Platform, Configuration: s.Configuration, Flags: s.Flags}
	}

	return Target{
		Name: rt.Name, Type: TargetTypeKind(rt.Type), Path: rt.Path,
		Sources: rt.Sources, Exclude: rt.Exclude, Resources: res,
		Dependencies: deps, BuildSettings: settings, Platforms: rt.Platforms,
		PublicHeadersPath: rt.PublicHeadersPath, URL: rt.URL, Checksum: rt.Checksum,
	}, nil
}
