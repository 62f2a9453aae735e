// Package graph implements the Package Graph Builder (spec §4.H): it
// turns a set of Resolved Packages with loaded manifests into the
// post-resolution DAG of packages, products, and targets that the build
// plan is constructed from.
package graph

import (
	"fmt"
	"path"
	"sort"

	radix "github.com/armon/go-radix"

	"github.com/forgepm/forge/diag"
	"github.com/forgepm/forge/resolve"
)

// Platform is a supported-triple tag (e.g. "macos", "linux", "ios").
type Platform string

// Configuration is a build configuration tag (e.g. "debug", "release").
type Configuration string

// PlatformRequirement mirrors the top-level Manifest Model's declared
// platform entry; duplicated here (rather than imported from the forge
// package) so graph never imports forge, breaking what would otherwise be
// an import cycle — the same seam resolve.Manifest/resolve.Analyzer use
// to decouple the Dependency Resolver from the concrete Manifest type.
type PlatformRequirement struct {
	Tag        string
	MinVersion string
}

// ProductTypeKind and TargetTypeKind mirror the forge package's tagged
// variants for the same reason.
type ProductTypeKind string

const (
	ProductExecutable ProductTypeKind = "executable"
	ProductLibrary    ProductTypeKind = "library"
	ProductTest       ProductTypeKind = "test"
	ProductPlugin     ProductTypeKind = "plugin"
	ProductSnippet    ProductTypeKind = "snippet"
)

type LibraryLinkage string

const (
	LinkageStatic    LibraryLinkage = "static"
	LinkageDynamic   LibraryLinkage = "dynamic"
	LinkageAutomatic LibraryLinkage = "automatic"
)

type TargetTypeKind string

const (
	TargetRegular       TargetTypeKind = "regular"
	TargetExecutable    TargetTypeKind = "executable"
	TargetTest          TargetTypeKind = "test"
	TargetSystemLibrary TargetTypeKind = "system-library"
	TargetBinary        TargetTypeKind = "binary"
	TargetPlugin        TargetTypeKind = "plugin"
)

type TargetDependencyKind int

const (
	DependencySibling TargetDependencyKind = iota
	DependencyProduct
)

// TargetDependency is one declared edge out of a Target, before
// resolution (spec §4.H step 2).
type TargetDependency struct {
	Kind    TargetDependencyKind
	Name    string
	Package string
}

// BuildSetting mirrors the Manifest Model's per-tool flag entry.
type BuildSetting struct {
	Tool          string
	Platform      string
	Configuration string
	Flags         []string
}

// ResourceRule mirrors the Manifest Model's resource entry.
type ResourceRule struct {
	Rule string
	Path string
}

// ProductDecl is the Package Graph Builder's input view of a declared
// Product.
type ProductDecl struct {
	Name    string
	Type    ProductTypeKind
	Linkage LibraryLinkage
	Targets []string
}

// TargetDecl is the Package Graph Builder's input view of a declared
// Target.
type TargetDecl struct {
	Name          string
	Type          TargetTypeKind
	Path          string
	Sources       []string
	Exclude       []string
	Resources     []ResourceRule
	Dependencies  []TargetDependency
	BuildSettings []BuildSetting
	Platforms     []string

	// PublicHeadersPath is the target-relative include directory exposed
	// to dependents; empty means the "include" convention.
	PublicHeadersPath string

	// URL and Checksum are set only when Type == TargetBinary.
	URL      string
	Checksum string
}

// PackageInput is a Resolved Package's manifest, reduced to what the
// Package Graph Builder needs (spec §3 "Resolved Package": "Identity +
// final location + pinned state + loaded Manifest + on-disk root path").
type PackageInput struct {
	Identity resolve.Identity
	Path     string
	IsRoot   bool
	Name     string
	// Dependencies lists the identities this package's manifest declares
	// a dependency on, in a deterministic order. Step 2's sibling-name
	// fallback to "products reachable through declared package
	// dependencies" (spec §4.H) only searches these, never the whole
	// input set.
	Dependencies []resolve.Identity
	Platforms    []PlatformRequirement
	Products     []ProductDecl
	Targets      []TargetDecl
}

// ResolvedPackage is the Workspace Controller's handle on a checked-out
// dependency before its manifest has been parsed into a PackageInput;
// Build accepts PackageInput directly, so this type exists purely so
// forge's Workspace can pass checkout results through one shared vocabulary
// between itself and the caller that parses manifests (see forge/workspace.go).
type ResolvedPackage struct {
	Identity resolve.Identity
	Path     string
	IsRoot   bool
}

// ResolvedTarget is a Target after dependency resolution and transitive
// closure computation (spec §3 "Resolved Target").
type ResolvedTarget struct {
	Package      resolve.Identity
	Name         string
	Type         TargetTypeKind
	SourceRoot   string
	Sources      []string
	Resources    []ResourceRule
	Dependencies []*ResolvedTarget // transitive closure, in depth-first discovery order
	Settings     []BuildSetting
	Platforms    []string
	Unresolved   []string // dependency names that could not be resolved (diagnostic, not failure)

	// PublicHeadersPath is consulted by the Build Plan's include-search-path
	// computation in place of the bare "include" convention when set.
	PublicHeadersPath string

	// URL and Checksum carry a TargetBinary's declared artifact location
	// through to the Build Plan, which references the extracted artifact
	// directory instead of emitting a Compile Description for this target.
	URL      string
	Checksum string
}

// ResolvedProduct is a Product after its member targets have been
// resolved (spec §3, §4.H step 5).
type ResolvedProduct struct {
	Package resolve.Identity
	Name    string
	Type    ProductTypeKind
	Linkage LibraryLinkage
	Targets []*ResolvedTarget
}

// ResolvedPackageNode is one package's place in the Package Graph: its
// identity, root path, and the Products/Targets resolved from its
// manifest.
type ResolvedPackageNode struct {
	Identity resolve.Identity
	Path     string
	IsRoot   bool
	Products []*ResolvedProduct
	Targets  map[string]*ResolvedTarget
}

// PackageGraph is the DAG of Resolved Packages (spec §3 "Package Graph").
type PackageGraph struct {
	Packages []*ResolvedPackageNode
}

// BuildOptions scopes which targets end up in the resolved graph (spec
// §3 "Build Subset").
type BuildOptions struct {
	Platform      Platform
	Configuration Configuration
	IncludeTests  bool
}

// Build implements the 5-step procedure of spec §4.H.
func Build(inputs []PackageInput, opts BuildOptions) (*PackageGraph, *diag.Bag) {
	bag := diag.NewBag()
	pg := &PackageGraph{}

	// Step 1: per-package product and target maps keyed by name, plus a
	// cross-package name index (package name -> owning package) used by
	// step 2's product(name, package) resolution.
	nodes := make(map[resolve.Identity]*ResolvedPackageNode, len(inputs))
	targetsByPkg := make(map[resolve.Identity]map[string]TargetDecl, len(inputs))
	productsByPkg := make(map[resolve.Identity]map[string]ProductDecl, len(inputs))
	packageNameIndex := radix.New()

	for _, in := range inputs {
		node := &ResolvedPackageNode{Identity: in.Identity, Path: in.Path, IsRoot: in.IsRoot, Targets: make(map[string]*ResolvedTarget)}
		nodes[in.Identity] = node
		pg.Packages = append(pg.Packages, node)

		tm := make(map[string]TargetDecl, len(in.Targets))
		for _, t := range in.Targets {
			tm[t.Name] = t
		}
		targetsByPkg[in.Identity] = tm

		pm := make(map[string]ProductDecl, len(in.Products))
		for _, p := range in.Products {
			pm[p.Name] = p
		}
		productsByPkg[in.Identity] = pm

		if in.Name != "" {
			packageNameIndex.Insert(in.Name, in.Identity)
		}
	}

	// Step 2 + 3: resolve dependencies and compute transitive closures per
	// target, filtered by platform/configuration/subset.
	resolved := make(map[resolve.Identity]map[string]*ResolvedTarget, len(inputs))
	for _, in := range inputs {
		byName := make(map[string]*ResolvedTarget, len(in.Targets))
		resolved[in.Identity] = byName
		for _, t := range in.Targets {
			if t.Type == TargetTest && !opts.IncludeTests {
				continue // test targets only exist in the test build subset
			}
			if !supportsPlatform(t.Platforms, in.Platforms, opts.Platform) {
				if in.IsRoot || reachableFromRoot(in, t, inputs) {
					bag.Add(diag.New(diag.KindValidation, diag.SeverityWarning,
						diag.Scope{Package: in.Identity.String(), Target: t.Name},
						fmt.Sprintf("target %q does not support platform %q", t.Name, opts.Platform)))
				}
				continue
			}
			if t.Type == TargetBinary {
				if err := validateBinaryArtifact(t); err != nil {
					bag.Add(diag.New(diag.KindValidation, diag.SeverityError,
						diag.Scope{Package: in.Identity.String(), Target: t.Name}, err.Error()))
					continue
				}
			}
			byName[t.Name] = &ResolvedTarget{
				Package: in.Identity, Name: t.Name, Type: t.Type,
				SourceRoot: t.Path, Sources: filterSources(t.Sources, t.Exclude),
				Resources: t.Resources, Settings: filterSettings(t.BuildSettings, opts),
				Platforms: t.Platforms, PublicHeadersPath: t.PublicHeadersPath,
				URL: t.URL, Checksum: t.Checksum,
			}
		}
	}

	onStack := make(map[string]bool)
	visited := make(map[string]bool)
	var cyclePath []string

	var closure func(pkgID resolve.Identity, t *ResolvedTarget, decl TargetDecl) []*ResolvedTarget
	closure = func(pkgID resolve.Identity, t *ResolvedTarget, decl TargetDecl) []*ResolvedTarget {
		key := pkgID.String() + "#" + t.Name
		if onStack[key] {
			cyclePath = append(cyclePath, key)
			return nil
		}
		if visited[key] {
			return t.Dependencies
		}
		onStack[key] = true
		defer delete(onStack, key)

		var out []*ResolvedTarget
		seen := make(map[string]bool)
		for _, dep := range decl.Dependencies {
			depTarget, depDecl, depPkg, ok := resolveTargetDependency(pkgID, dep, targetsByPkg, productsByPkg, packageNameIndex, in_(inputs, pkgID))
			if !ok {
				t.Unresolved = append(t.Unresolved, dep.Name)
				bag.Add(diag.New(diag.KindUnresolvedDependency, diag.SeverityWarning,
					diag.Scope{Package: pkgID.String(), Target: t.Name},
					fmt.Sprintf("unresolved dependency %q", dep.Name)))
				continue
			}
			rt, ok := resolved[depPkg][depTarget.Name]
			if !ok {
				continue // filtered out by platform/subset above
			}
			if !seen[key+">"+depPkg.String()+"#"+rt.Name] {
				seen[key+">"+depPkg.String()+"#"+rt.Name] = true
				out = append(out, rt)
			}
			transitively := closure(depPkg, rt, depDecl)
			if len(cyclePath) > 0 {
				cyclePath = append(cyclePath, key)
				return nil
			}
			for _, tt := range transitively {
				id := tt.Package.String() + "#" + tt.Name
				if !seen[key+">"+id] {
					seen[key+">"+id] = true
					out = append(out, tt)
				}
			}
		}
		visited[key] = true
		t.Dependencies = out
		return out
	}

	for _, in := range inputs {
		for _, t := range in.Targets {
			rt, ok := resolved[in.Identity][t.Name]
			if !ok {
				continue
			}
			closure(in.Identity, rt, t)
			if len(cyclePath) > 0 {
				bag.Add(diag.New(diag.KindCyclicDependency, diag.SeverityFatal,
					diag.Scope{Package: in.Identity.String(), Target: t.Name},
					fmt.Sprintf("cyclic target dependency: %v", reverse(cyclePath))))
				return pg, bag
			}
		}
	}

	// Step 5: product-type invariants.
	for _, in := range inputs {
		node := nodes[in.Identity]
		node.Targets = resolved[in.Identity]
		for _, p := range in.Products {
			rp := &ResolvedProduct{Package: in.Identity, Name: p.Name, Type: p.Type, Linkage: p.Linkage}
			for _, tn := range p.Targets {
				if rt, ok := node.Targets[tn]; ok {
					rp.Targets = append(rp.Targets, rt)
				}
			}
			if err := checkProductInvariants(p, rp); err != nil {
				bag.Add(diag.New(diag.KindValidation, diag.SeverityError,
					diag.Scope{Package: in.Identity.String(), Product: p.Name}, err.Error()))
				continue
			}
			node.Products = append(node.Products, rp)
		}
		sort.Slice(node.Products, func(i, j int) bool { return node.Products[i].Name < node.Products[j].Name })
	}

	sort.Slice(pg.Packages, func(i, j int) bool { return pg.Packages[i].Identity.String() < pg.Packages[j].Identity.String() })
	return pg, bag
}

func in_(inputs []PackageInput, id resolve.Identity) PackageInput {
	for _, in := range inputs {
		if in.Identity == id {
			return in
		}
	}
	return PackageInput{}
}

// resolveTargetDependency implements spec §4.H step 2: a bare name first
// tries sibling targets, then products reachable through declared package
// dependencies; an explicit product(name, package) form requires the
// package is declared.
func resolveTargetDependency(
	fromPkg resolve.Identity, dep TargetDependency,
	targetsByPkg map[resolve.Identity]map[string]TargetDecl,
	productsByPkg map[resolve.Identity]map[string]ProductDecl,
	packageNameIndex *radix.Tree,
	fromInput PackageInput,
) (TargetDecl, TargetDecl, resolve.Identity, bool) {
	if dep.Kind == DependencySibling {
		if t, ok := targetsByPkg[fromPkg][dep.Name]; ok {
			return t, t, fromPkg, true
		}
		// Fall through to "products reachable through declared package
		// dependencies" (spec §4.H step 2): search only the packages
		// fromPkg's manifest actually declares a dependency on, in
		// declaration order, never the whole input set.
		for _, pkgID := range fromInput.Dependencies {
			if p, ok := productsByPkg[pkgID][dep.Name]; ok && len(p.Targets) > 0 {
				if t, ok := targetsByPkg[pkgID][p.Targets[0]]; ok {
					return t, t, pkgID, true
				}
			}
		}
		return TargetDecl{}, TargetDecl{}, resolve.Identity{}, false
	}

	// DependencyProduct: product(name, package) requires the package is
	// resolvable by name via the cross-package index and is one of
	// fromPkg's declared dependencies.
	v, ok := packageNameIndex.Get(dep.Package)
	if !ok {
		return TargetDecl{}, TargetDecl{}, resolve.Identity{}, false
	}
	pkgID := v.(resolve.Identity)
	declared := false
	for _, d := range fromInput.Dependencies {
		if d == pkgID {
			declared = true
			break
		}
	}
	if !declared {
		return TargetDecl{}, TargetDecl{}, resolve.Identity{}, false
	}
	p, ok := productsByPkg[pkgID][dep.Name]
	if !ok || len(p.Targets) == 0 {
		return TargetDecl{}, TargetDecl{}, resolve.Identity{}, false
	}
	t, ok := targetsByPkg[pkgID][p.Targets[0]]
	if !ok {
		return TargetDecl{}, TargetDecl{}, resolve.Identity{}, false
	}
	return t, t, pkgID, true
}

func supportsPlatform(targetPlatforms []string, declared []PlatformRequirement, current Platform) bool {
	if current == "" {
		return true
	}
	if len(targetPlatforms) == 0 {
		return true // no restriction declared; declared manifest platforms are not consulted
	}
	for _, p := range targetPlatforms {
		if Platform(p) == current {
			return true
		}
	}
	return false
}

// reachableFromRoot reports whether t's package is the root package; it
// does not follow dependency edges from the root to other packages.
func reachableFromRoot(in PackageInput, t TargetDecl, all []PackageInput) bool {
	return in.IsRoot
}

func filterSources(sources, exclude []string) []string {
	excluded := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		excluded[e] = true
	}
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		if !excluded[s] {
			out = append(out, s)
		}
	}
	return out
}

func filterSettings(settings []BuildSetting, opts BuildOptions) []BuildSetting {
	out := make([]BuildSetting, 0, len(settings))
	for _, s := range settings {
		if s.Platform != "" && Platform(s.Platform) != opts.Platform {
			continue
		}
		if s.Configuration != "" && Configuration(s.Configuration) != opts.Configuration {
			continue
		}
		out = append(out, s)
	}
	return out
}

// recognizedArtifactExtensions are the archive/framework extensions spec §3
// Package Graph invariant (d) requires of a TargetBinary's artifact path:
// "a target marked binary has a resolved artifact path of a recognized
// archive or framework extension."
var recognizedArtifactExtensions = map[string]bool{
	".zip":         true,
	".a":           true,
	".xcframework": true,
	".framework":   true,
}

// validateBinaryArtifact enforces Package Graph invariant (d) (spec §3).
func validateBinaryArtifact(t TargetDecl) error {
	if t.URL == "" {
		return fmt.Errorf("binary target %q declares no url", t.Name)
	}
	ext := path.Ext(t.URL)
	if !recognizedArtifactExtensions[ext] {
		return fmt.Errorf("binary target %q artifact %q has unrecognized extension %q", t.Name, t.URL, ext)
	}
	return nil
}

// checkProductInvariants enforces spec §4.H step 5: "a product of type
// library whose member targets are all binary is valid only if the
// product type is library; an executable product requires exactly one
// executable-typed main target in its closure."
func checkProductInvariants(decl ProductDecl, rp *ResolvedProduct) error {
	switch decl.Type {
	case ProductExecutable:
		count := 0
		for _, t := range rp.Targets {
			if t.Type == TargetExecutable {
				count++
			}
		}
		if count != 1 {
			return fmt.Errorf("product %q of type executable must have exactly one executable-typed target, found %d", decl.Name, count)
		}
	case ProductLibrary:
		for _, t := range rp.Targets {
			if t.Type == TargetExecutable || t.Type == TargetTest {
				return fmt.Errorf("product %q of type library cannot include %s-typed target %q", decl.Name, t.Type, t.Name)
			}
		}
	case ProductTest:
		for _, t := range rp.Targets {
			if t.Type != TargetTest {
				return fmt.Errorf("product %q of type test must only contain test-typed targets, found %q (%s)", decl.Name, t.Name, t.Type)
			}
		}
	}
	return nil
}

func reverse(path []string) []string {
	out := make([]string, len(path))
	for i, s := range path {
		out[len(path)-1-i] = s
	}
	return out
}
