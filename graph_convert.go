// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package forge

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/forgepm/forge/graph"
	"github.com/forgepm/forge/resolve"
)

// buildPackageInputs loads each Resolved Package's manifest and converts it
// into the Package Graph Builder's input vocabulary. graph cannot import
// forge (forge's Workspace already imports graph), so the two packages meet
// here instead, at the one place that has both a Loader and a checkout list.
func buildPackageInputs(loader *Loader, resolved []graph.ResolvedPackage, root *Manifest, rootID resolve.Identity) ([]graph.PackageInput, error) {
	out := make([]graph.PackageInput, 0, len(resolved))
	for _, rp := range resolved {
		if rp.Identity == rootID {
			out = append(out, manifestToPackageInput(rp, root))
			continue
		}

		m, err := loader.Load(rp.Path, rp.Identity, CurrentToolsVersion)
		if err != nil {
			if errors.Cause(err) == errNoManifest {
				out = append(out, graph.PackageInput{Identity: rp.Identity, Path: rp.Path})
				continue
			}
			return nil, errors.Wrapf(err, "load manifest for %s", rp.Identity)
		}
		out = append(out, manifestToPackageInput(rp, m))
	}
	return out, nil
}

func manifestToPackageInput(rp graph.ResolvedPackage, m *Manifest) graph.PackageInput {
	in := graph.PackageInput{
		Identity:     rp.Identity,
		Path:         rp.Path,
		IsRoot:       rp.IsRoot,
		Name:         m.Name,
		Platforms:    platformsToGraph(m.Platforms),
		Dependencies: declaredDependencyIDs(m),
	}
	for _, p := range m.Products {
		in.Products = append(in.Products, productToGraph(p))
	}
	for _, t := range m.Targets {
		in.Targets = append(in.Targets, targetToGraph(t))
	}
	return in
}

// declaredDependencyIDs returns m's declared package dependencies
// (deterministically ordered, since Go map iteration order is not
// stable) for the Package Graph Builder's "product(name,package)"
// resolution, which must only consider packages this one actually
// depends on (spec §4.H step 2).
func declaredDependencyIDs(m *Manifest) []resolve.Identity {
	out := make([]resolve.Identity, 0, len(m.Dependencies))
	for id := range m.Dependencies {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func platformsToGraph(ps []PlatformRequirement) []graph.PlatformRequirement {
	if ps == nil {
		return nil
	}
	out := make([]graph.PlatformRequirement, len(ps))
	for i, p := range ps {
		out[i] = graph.PlatformRequirement{Tag: p.Tag, MinVersion: p.MinVersion}
	}
	return out
}

func productToGraph(p Product) graph.ProductDecl {
	return graph.ProductDecl{
		Name:    p.Name,
		Type:    graph.ProductTypeKind(p.Type.Kind),
		Linkage: graph.LibraryLinkage(p.Type.Linkage),
		Targets: p.Targets,
	}
}

func targetToGraph(t Target) graph.TargetDecl {
	deps := make([]graph.TargetDependency, len(t.Dependencies))
	for i, d := range t.Dependencies {
		deps[i] = graph.TargetDependency{Kind: graph.TargetDependencyKind(d.Kind), Name: d.Name, Package: d.Package}
	}
	res := make([]graph.ResourceRule, len(t.Resources))
	for i, r := range t.Resources {
		res[i] = graph.ResourceRule{Rule: r.Rule, Path: r.Path}
	}
	settings := make([]graph.BuildSetting, len(t.BuildSettings))
	for i, s := range t.BuildSettings {
		settings[i] = graph.BuildSetting{Tool: s.Tool, Platform: s.Platform, Configuration: s.Configuration, Flags: s.Flags}
	}
	return graph.TargetDecl{
		Name: t.Name, Type: graph.TargetTypeKind(t.Type), Path: t.Path,
		Sources: t.Sources, Exclude: t.Exclude, Resources: res,
		Dependencies: deps, BuildSettings: settings, Platforms: t.Platforms,
		PublicHeadersPath: t.PublicHeadersPath, URL: t.URL, Checksum: t.Checksum,
	}
}
