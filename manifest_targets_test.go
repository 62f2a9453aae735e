// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package forge

import "testing"

func TestProductFromRawDefaultsLibraryLinkageToAutomatic(t *testing.T) {
	p, err := productFromRaw(rawProduct{Name: "Lib", Type: "library", Targets: []string{"Lib"}})
	if err != nil {
		t.Fatal(err)
	}
	if p.Type.Linkage != LinkageAutomatic {
		t.Errorf("Linkage = %v, want %v", p.Type.Linkage, LinkageAutomatic)
	}
}

func TestProductFromRawRejectsUnknownType(t *testing.T) {
	if _, err := productFromRaw(rawProduct{Name: "X", Type: "bogus"}); err == nil {
		t.Fatal("expected an error for an unknown product type")
	}
}

func TestProductFromRawPluginCarriesCapabilityInLinkageField(t *testing.T) {
	p, err := productFromRaw(rawProduct{Name: "Plug", Type: "plugin", Linkage: "build-tool"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Type.Capability != "build-tool" {
		t.Errorf("Capability = %q, want %q", p.Type.Capability, "build-tool")
	}
}

func TestTargetFromRawRejectsUnknownType(t *testing.T) {
	if _, err := targetFromRaw(rawTarget{Name: "X", Type: "bogus"}); err == nil {
		t.Fatal("expected an error for an unknown target type")
	}
}

func TestParseTargetDependencyToleratesWhitespaceInProductForm(t *testing.T) {
	d := ParseTargetDependency("product( Utility ,  github.com/example/utility )")
	if d.Kind != DependencyProduct || d.Name != "Utility" || d.Package != "github.com/example/utility" {
		t.Errorf("parsed as %+v", d)
	}
}

func TestProductAndTargetRoundTripThroughRawForm(t *testing.T) {
	p := Product{Name: "Lib", Type: ProductType{Kind: ProductLibrary, Linkage: LinkageDynamic}, Targets: []string{"Core"}}
	rp := productToRaw(p)
	back, err := productFromRaw(rp)
	if err != nil {
		t.Fatal(err)
	}
	if back.Type.Linkage != LinkageDynamic {
		t.Errorf("round-tripped Linkage = %v, want %v", back.Type.Linkage, LinkageDynamic)
	}

	tgt := Target{
		Name: "Core", Type: TargetRegular, Sources: []string{"a.swift"},
		Dependencies: []TargetDependency{
			{Kind: DependencySibling, Name: "Util"},
			{Kind: DependencyProduct, Name: "Shared", Package: "github.com/example/shared"},
		},
	}
	rt := targetToRaw(tgt)
	backT, err := targetFromRaw(rt)
	if err != nil {
		t.Fatal(err)
	}
	if len(backT.Dependencies) != 2 {
		t.Fatalf("round-tripped Dependencies = %+v", backT.Dependencies)
	}
	if backT.Dependencies[1].Kind != DependencyProduct || backT.Dependencies[1].Package != "github.com/example/shared" {
		t.Errorf("round-tripped product dependency = %+v", backT.Dependencies[1])
	}
}

func TestBinaryTargetRoundTripsURLChecksumAndPublicHeadersPath(t *testing.T) {
	tgt := Target{
		Name: "Foo", Type: TargetBinary,
		URL: "https://example.com/Foo.zip", Checksum: "deadbeef",
		PublicHeadersPath: "Sources/Foo/public",
	}
	back, err := targetFromRaw(targetToRaw(tgt))
	if err != nil {
		t.Fatal(err)
	}
	if back.URL != tgt.URL || back.Checksum != tgt.Checksum || back.PublicHeadersPath != tgt.PublicHeadersPath {
		t.Errorf("round-tripped binary target = %+v, want %+v", back, tgt)
	}
}
