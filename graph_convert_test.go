// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package forge

import (
	"testing"

	"github.com/forgepm/forge/graph"
	"github.com/forgepm/forge/resolve"
)

func TestDeclaredDependencyIDsIsSortedAndDeterministic(t *testing.T) {
	idA, _ := resolve.Canonicalize(resolve.Location{Kind: resolve.LocationRemoteVCS, Raw: "github.com/a/a"})
	idB, _ := resolve.Canonicalize(resolve.Location{Kind: resolve.LocationRemoteVCS, Raw: "github.com/b/b"})
	idC, _ := resolve.Canonicalize(resolve.Location{Kind: resolve.LocationRemoteVCS, Raw: "github.com/c/c"})

	m := &Manifest{
		Dependencies: map[resolve.Identity]resolve.Requirement{
			idC: {}, idA: {}, idB: {},
		},
	}

	for i := 0; i < 5; i++ {
		ids := declaredDependencyIDs(m)
		if len(ids) != 3 {
			t.Fatalf("got %d ids, want 3", len(ids))
		}
		if !(ids[0].String() < ids[1].String() && ids[1].String() < ids[2].String()) {
			t.Fatalf("declaredDependencyIDs not sorted: %v", ids)
		}
	}
}

func TestManifestToPackageInputConvertsProductsAndTargets(t *testing.T) {
	rootID, _ := resolve.Canonicalize(resolve.Location{Kind: resolve.LocationLocalPath, Raw: "/root"})
	m := &Manifest{
		Name: "Root",
		Products: []Product{
			{Name: "App", Type: ProductType{Kind: ProductExecutable}, Targets: []string{"App"}},
		},
		Targets: []Target{
			{
				Name: "App", Type: TargetExecutable, Sources: []string{"main.swift"},
				Dependencies: []TargetDependency{{Kind: DependencyProduct, Name: "Shared", Package: "github.com/example/shared"}},
			},
		},
	}

	in := manifestToPackageInput(graph.ResolvedPackage{Identity: rootID, Path: "/root", IsRoot: true}, m)
	if in.Name != "Root" || !in.IsRoot {
		t.Errorf("converted PackageInput = %+v", in)
	}
	if len(in.Products) != 1 || in.Products[0].Type != graph.ProductExecutable {
		t.Fatalf("Products = %+v", in.Products)
	}
	if len(in.Targets) != 1 || len(in.Targets[0].Dependencies) != 1 {
		t.Fatalf("Targets = %+v", in.Targets)
	}
	if in.Targets[0].Dependencies[0].Kind != graph.DependencyProduct {
		t.Errorf("target dependency kind = %v, want graph.DependencyProduct", in.Targets[0].Dependencies[0].Kind)
	}
}

func TestBuildPackageInputsPassesThroughPackagesWithNoManifest(t *testing.T) {
	rootDir := t.TempDir()
	writeFile(t, rootDir, ManifestName, minimalManifest)
	rootID, _ := resolve.Canonicalize(resolve.Location{Kind: resolve.LocationLocalPath, Raw: rootDir})

	loader := &Loader{}
	root, err := loader.Load(rootDir, rootID, CurrentToolsVersion)
	if err != nil {
		t.Fatal(err)
	}

	leafDir := t.TempDir() // no manifest
	leafID, _ := resolve.Canonicalize(resolve.Location{Kind: resolve.LocationLocalPath, Raw: leafDir})

	resolved := []graph.ResolvedPackage{
		{Identity: rootID, Path: rootDir, IsRoot: true},
		{Identity: leafID, Path: leafDir},
	}
	inputs, err := buildPackageInputs(loader, resolved, root, rootID)
	if err != nil {
		t.Fatal(err)
	}
	if len(inputs) != 2 {
		t.Fatalf("got %d inputs, want 2", len(inputs))
	}
	var leafInput graph.PackageInput
	for _, in := range inputs {
		if in.Identity == leafID {
			leafInput = in
		}
	}
	if leafInput.Products != nil || leafInput.Targets != nil {
		t.Errorf("a manifest-less package should convert to an empty PackageInput, got %+v", leafInput)
	}
}
