// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package forge

import (
	"testing"

	"github.com/forgepm/forge/resolve"
)

func TestAnalyzerDeriveManifestAndLockTreatsMissingManifestAsEmpty(t *testing.T) {
	a := NewAnalyzer(nil)
	m, lock, err := a.DeriveManifestAndLock(t.TempDir(), resolve.Identity{})
	if err != nil {
		t.Fatalf("unexpected error for a leaf dependency with no manifest: %v", err)
	}
	if lock != nil {
		t.Errorf("Lock = %v, want nil", lock)
	}
	if len(m.DependencyConstraints()) != 0 {
		t.Errorf("DependencyConstraints = %v, want none for an empty manifest", m.DependencyConstraints())
	}
}

func TestAnalyzerDeriveManifestAndLockParsesRealManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ManifestName, minimalManifest)

	a := NewAnalyzer(nil)
	m, _, err := a.DeriveManifestAndLock(dir, resolve.Identity{})
	if err != nil {
		t.Fatal(err)
	}
	manifest, ok := m.(*Manifest)
	if !ok {
		t.Fatalf("got %T, want *Manifest", m)
	}
	if manifest.Name != "example" {
		t.Errorf("Name = %q, want %q", manifest.Name, "example")
	}
}

func TestAnalyzerDeriveManifestAndLockPropagatesOtherErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ManifestName, `{"name": "example", "toolsVersion": "99.0.0"}`)

	a := NewAnalyzer(nil)
	if _, _, err := a.DeriveManifestAndLock(dir, resolve.Identity{}); err == nil {
		t.Fatal("expected the too-new tools-version error to propagate, not be swallowed as a missing manifest")
	}
}
