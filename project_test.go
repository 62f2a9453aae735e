// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package forge

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindProjectRootFindsManifestInStartingDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ManifestName, minimalManifest)

	root, err := findProjectRoot(dir)
	if err != nil {
		t.Fatal(err)
	}
	if root != dir {
		t.Errorf("root = %q, want %q", root, dir)
	}
}

func TestFindProjectRootSearchesUpward(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ManifestName, minimalManifest)
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := findProjectRoot(nested)
	if err != nil {
		t.Fatal(err)
	}
	if got != root {
		t.Errorf("root = %q, want %q", got, root)
	}
}

func TestLoadProjectLoadsManifestAndEmptyPinStore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ManifestName, minimalManifest)

	l := &Loader{}
	p, err := LoadProject(l, dir)
	if err != nil {
		t.Fatal(err)
	}
	if p.Manifest.Name != "example" {
		t.Errorf("Manifest.Name = %q, want %q", p.Manifest.Name, "example")
	}
	if p.Pins == nil {
		t.Fatal("expected an (empty) pin store when no pin file exists yet")
	}
	if _, ok := p.Pins.Get(p.Identity); ok {
		t.Error("expected no pin for the root package itself")
	}
}

func TestLoadProjectFailsWhenNoManifestFound(t *testing.T) {
	dir := t.TempDir()
	l := &Loader{}
	if _, err := LoadProject(l, dir); err == nil {
		t.Fatal("expected an error when no manifest can be found")
	}
}
