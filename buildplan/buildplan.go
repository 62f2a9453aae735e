// Package buildplan implements the Build Plan (spec §4.I) and Build
// Manifest Emitter (spec §4.J): it turns a resolved Package Graph into a
// flat set of shell-able commands and serializes them to disk.
package buildplan

import (
	"context"
	"fmt"
	urlpath "path"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"github.com/forgepm/forge/diag"
	"github.com/forgepm/forge/graph"
	"github.com/forgepm/forge/workerpool"
)

// ManifestName is the Build Manifest's on-disk filename (spec §4.J).
const ManifestName = "build-manifest.json"

// Tool names the compiler family a Compile Description invokes (spec
// §4.I: "tool (Swift-like, C-like, or passthrough)").
type Tool string

const (
	ToolSwiftLike  Tool = "swiftc"
	ToolCLike      Tool = "clang"
	ToolPassthrough Tool = "passthrough"
)

// Options scopes a Build Plan construction pass.
type Options struct {
	Platform      graph.Platform
	Configuration graph.Configuration
	OutputDir     string

	// DebugEntitlements requests the darwin debugging-entitlements
	// signing chain for executable products (spec §4.I paragraph 2).
	DebugEntitlements bool
}

// CompileDescription is one Resolved Target's build step (spec §4.I
// paragraph 1).
type CompileDescription struct {
	Target            string
	Package           string
	Tool              Tool
	Sources           []string
	ModuleName        string
	ModuleOutputPath  string
	ObjectPaths       []string
	IncludeSearchPaths []string
	ExtraFlags        []string
	DependencyInputs  []string
}

// LinkKind discriminates a Product's Link Description form.
type LinkKind string

const (
	LinkStaticArchive LinkKind = "static-archive"
	LinkDynamicShared LinkKind = "dynamic-shared"
	LinkExecutable    LinkKind = "executable"
	LinkTestBundle    LinkKind = "test-bundle"
)

// Command is one step of a Link Description's chain (spec §4.I paragraph
// 2: the darwin entitlement-signing case is "three commands [that] form a
// linear chain").
type Command struct {
	Name      string
	Tool      string
	Inputs    []string
	Outputs   []string
	Arguments []string
	WorkDir   string
	Env       map[string]string
	DependsOn []string
}

// LinkDescription is one Product's link step(s) (spec §4.I paragraph 2).
type LinkDescription struct {
	Product  string
	Package  string
	Kind     LinkKind
	Commands []Command // linear chain; last entry is the product's terminal node
}

// Plan is the complete Build Plan for one build subset (spec §3 "Build
// Plan").
type Plan struct {
	Compiles []CompileDescription
	Links    []LinkDescription
}

var nonIdentifier = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// moduleName derives a module name by lowercasing and replacing
// non-identifier characters (spec §4.I: "module name (derived by
// lowercasing and replacing non-identifier characters)").
func moduleName(targetName string) string {
	return nonIdentifier.ReplaceAllString(strings.ToLower(targetName), "_")
}

func toolFor(t *graph.ResolvedTarget) Tool {
	switch t.Type {
	case graph.TargetSystemLibrary:
		return ToolPassthrough
	case graph.TargetBinary:
		return ToolPassthrough
	default:
		if hasCLikeSources(t.Sources) {
			return ToolCLike
		}
		return ToolSwiftLike
	}
}

func hasCLikeSources(sources []string) bool {
	for _, s := range sources {
		switch filepath.Ext(s) {
		case ".c", ".cc", ".cpp", ".cxx", ".m", ".mm":
			return true
		}
	}
	return false
}

// Build implements spec §4.I: one Compile Description per Resolved
// Target in the build subset, and one Link Description per Product.
// Per-target compile description construction runs on a bounded worker
// pool (spec §5 "Scheduling model": "bounded worker pool for: ...
// build-plan construction per target").
func Build(pg *graph.PackageGraph, opts Options) (*Plan, *diag.Bag) {
	bag := diag.NewBag()
	plan := &Plan{}

	var targets []*graph.ResolvedTarget
	var owners []string
	for _, node := range pg.Packages {
		for _, t := range node.Targets {
			if t.Type == graph.TargetBinary {
				// spec §8 scenario 6: a binary target skips a compile
				// command; its artifact directory is wired into
				// downstream link arguments instead (linkDescriptionFor).
				continue
			}
			targets = append(targets, t)
			owners = append(owners, node.Identity.String())
		}
	}

	compiles := make([]CompileDescription, len(targets))
	pool := workerpool.New(runtime.GOMAXPROCS(0))
	jobs := make([]workerpool.Job, len(targets))
	for i := range targets {
		i := i
		jobs[i] = func(ctx context.Context) error {
			compiles[i] = compileDescriptionFor(targets[i], owners[i], opts)
			return nil
		}
	}
	_ = pool.Run(context.Background(), jobs)
	plan.Compiles = compiles

	for _, node := range pg.Packages {
		for _, p := range node.Products {
			ld, err := linkDescriptionFor(node.Identity.String(), p, opts)
			if err != nil {
				bag.Add(diag.New(diag.KindValidation, diag.SeverityError,
					diag.Scope{Package: node.Identity.String(), Product: p.Name}, err.Error()))
				continue
			}
			plan.Links = append(plan.Links, ld)
		}
	}

	sort.Slice(plan.Compiles, func(i, j int) bool {
		if plan.Compiles[i].Package != plan.Compiles[j].Package {
			return plan.Compiles[i].Package < plan.Compiles[j].Package
		}
		return plan.Compiles[i].Target < plan.Compiles[j].Target
	})
	sort.Slice(plan.Links, func(i, j int) bool {
		if plan.Links[i].Package != plan.Links[j].Package {
			return plan.Links[i].Package < plan.Links[j].Package
		}
		return plan.Links[i].Product < plan.Links[j].Product
	})

	return plan, bag
}

func compileDescriptionFor(t *graph.ResolvedTarget, pkg string, opts Options) CompileDescription {
	outDir := filepath.Join(opts.OutputDir, ".build", string(opts.Platform), string(opts.Configuration), t.Name)
	mod := moduleName(t.Name)

	objects := make([]string, len(t.Sources))
	for i, s := range t.Sources {
		objects[i] = filepath.Join(outDir, nonIdentifier.ReplaceAllString(filepath.Base(s), "_")+".o")
	}

	var includes, depInputs, flags []string
	for _, dep := range t.Dependencies {
		if dep.Type == graph.TargetSystemLibrary || dep.Type == graph.TargetBinary {
			continue
		}
		headers := dep.PublicHeadersPath
		if headers == "" {
			headers = "include"
		}
		includes = append(includes, filepath.Join(dep.SourceRoot, headers))
		depTool := toolFor(dep)
		depOutDir := filepath.Join(opts.OutputDir, ".build", string(opts.Platform), string(opts.Configuration), dep.Name)
		if depTool == ToolSwiftLike {
			depInputs = append(depInputs, filepath.Join(depOutDir, moduleName(dep.Name)+".swiftmodule"))
		} else {
			for _, s := range dep.Sources {
				depInputs = append(depInputs, filepath.Join(depOutDir, nonIdentifier.ReplaceAllString(filepath.Base(s), "_")+".o"))
			}
		}
	}
	for _, s := range t.Settings {
		if s.Tool == string(toolFor(t)) || s.Tool == "" {
			flags = append(flags, s.Flags...)
		}
	}

	return CompileDescription{
		Target: t.Name, Package: pkg, Tool: toolFor(t),
		Sources: t.Sources, ModuleName: mod,
		ModuleOutputPath: filepath.Join(outDir, mod+".swiftmodule"),
		ObjectPaths:      objects,
		IncludeSearchPaths: includes,
		ExtraFlags:         flags,
		DependencyInputs:   depInputs,
	}
}

func linkDescriptionFor(pkg string, p *graph.ResolvedProduct, opts Options) (LinkDescription, error) {
	outDir := filepath.Join(opts.OutputDir, ".build", string(opts.Platform), string(opts.Configuration))
	var inputs []string
	for _, t := range p.Targets {
		if t.Type == graph.TargetBinary {
			// spec §8 scenario 6: "references the extracted artifact
			// directory in downstream link arguments" instead of object
			// files, since a binary target never produces one.
			inputs = append(inputs, extractedArtifactDir(t, opts))
			continue
		}
		for _, o := range objectOutputsFor(t, opts) {
			inputs = append(inputs, o)
		}
	}

	switch p.Type {
	case graph.ProductLibrary:
		linkage := p.Linkage
		if linkage == graph.LinkageAutomatic {
			linkage = graph.LinkageStatic
		}
		if linkage == graph.LinkageDynamic {
			out := filepath.Join(outDir, "lib"+p.Name+sharedExt())
			return LinkDescription{Product: p.Name, Package: pkg, Kind: LinkDynamicShared, Commands: []Command{
				{Name: p.Name + "-link", Tool: "clang", Inputs: inputs, Outputs: []string{out}, Arguments: []string{"-shared", "-o", out}, DependsOn: inputDepNames(p)},
			}}, nil
		}
		out := filepath.Join(outDir, "lib"+p.Name+".a")
		return LinkDescription{Product: p.Name, Package: pkg, Kind: LinkStaticArchive, Commands: []Command{
			{Name: p.Name + "-archive", Tool: "llvm-ar", Inputs: inputs, Outputs: []string{out}, Arguments: []string{"rcs", out}, DependsOn: inputDepNames(p)},
		}}, nil

	case graph.ProductExecutable:
		out := filepath.Join(outDir, p.Name)
		darwin := opts.Platform == "macos" || opts.Platform == "ios"
		if !opts.DebugEntitlements || !darwin {
			commands := []Command{
				{Name: p.Name + "-link", Tool: "clang", Inputs: inputs, Outputs: []string{out}, Arguments: []string{"-o", out}, DependsOn: inputDepNames(p)},
			}
			return LinkDescription{Product: p.Name, Package: pkg, Kind: LinkExecutable, Commands: commands}, nil
		}

		// Debugging entitlements (spec §4.I paragraph 2): an entitlement
		// plist is generated, the binary is linked to an "-unsigned"
		// sibling path, signed, then moved into place; the product node
		// depends on the final move.
		plist := out + ".entitlements.plist"
		unsigned := out + "-unsigned"
		commands := []Command{
			{Name: p.Name + "-entitlements", Tool: "write-plist", Outputs: []string{plist}, Arguments: []string{"--debugging-entitlements"}},
			{Name: p.Name + "-link", Tool: "clang", Inputs: inputs, Outputs: []string{unsigned}, Arguments: []string{"-o", unsigned}, DependsOn: inputDepNames(p)},
			{Name: p.Name + "-codesign", Tool: "codesign", Inputs: []string{unsigned, plist}, Outputs: []string{unsigned}, Arguments: []string{"--entitlements", plist, "-s", "-", unsigned}, DependsOn: []string{p.Name + "-link", p.Name + "-entitlements"}},
			{Name: p.Name + "-move", Tool: "move", Inputs: []string{unsigned}, Outputs: []string{out}, Arguments: []string{unsigned, out}, DependsOn: []string{p.Name + "-codesign"}},
		}
		return LinkDescription{Product: p.Name, Package: pkg, Kind: LinkExecutable, Commands: commands}, nil

	case graph.ProductTest:
		out := filepath.Join(outDir, p.Name+".xctest")
		commands := []Command{
			{Name: p.Name + "-link", Tool: "clang", Inputs: inputs, Outputs: []string{filepath.Join(outDir, p.Name)}, Arguments: []string{"-o", filepath.Join(outDir, p.Name)}, DependsOn: inputDepNames(p)},
		}
		if opts.Platform == "macos" || opts.Platform == "ios" {
			plist := filepath.Join(out, "Info.plist")
			commands = append(commands, Command{
				Name: p.Name + "-info-plist", Tool: "write-plist", Inputs: nil, Outputs: []string{plist},
				Arguments: []string{"--bundle-executable", p.Name}, DependsOn: []string{p.Name + "-link"},
			})
		}
		return LinkDescription{Product: p.Name, Package: pkg, Kind: LinkTestBundle, Commands: commands}, nil

	default:
		return LinkDescription{}, fmt.Errorf("product %q: no link description for type %q", p.Name, p.Type)
	}
}

func objectOutputsFor(t *graph.ResolvedTarget, opts Options) []string {
	outDir := filepath.Join(opts.OutputDir, ".build", string(opts.Platform), string(opts.Configuration), t.Name)
	out := make([]string, len(t.Sources))
	for i, s := range t.Sources {
		out[i] = filepath.Join(outDir, nonIdentifier.ReplaceAllString(filepath.Base(s), "_")+".o")
	}
	return out
}

func inputDepNames(p *graph.ResolvedProduct) []string {
	var out []string
	for _, t := range p.Targets {
		if t.Type == graph.TargetBinary {
			continue // no compile command exists for a binary target
		}
		out = append(out, t.Name+"-compile")
	}
	return out
}

func sharedExt() string {
	return ".so"
}

// extractedArtifactDir is where a TargetBinary's downloaded archive is
// expected to have been extracted before the build plan runs (spec §8
// scenario 6: "the extracted artifact directory").
func extractedArtifactDir(t *graph.ResolvedTarget, opts Options) string {
	base := strings.TrimSuffix(urlpath.Base(t.URL), urlpath.Ext(t.URL))
	return filepath.Join(opts.OutputDir, "artifacts", t.Name, base)
}
