// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package forge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/forgepm/forge/resolve"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const minimalManifest = `{"name": "example", "toolsVersion": "1.0.0"}`

func TestSelectManifestFileFallsBackToBaseWhenNoVariants(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ManifestName, minimalManifest)

	l := &Loader{}
	path, err := l.selectManifestFile(dir, CurrentToolsVersion)
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, ManifestName) {
		t.Errorf("path = %q, want the base manifest", path)
	}
}

func TestSelectManifestFilePicksGreatestEligibleVariant(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ManifestName, minimalManifest)
	writeFile(t, dir, ManifestName+"@tools-1.1.0", minimalManifest)
	writeFile(t, dir, ManifestName+"@tools-1.3.0", minimalManifest)
	writeFile(t, dir, ManifestName+"@tools-2.0.0", minimalManifest) // newer than toolsVersion in effect

	l := &Loader{}
	path, err := l.selectManifestFile(dir, "1.4.0")
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, ManifestName+"@tools-1.3.0") {
		t.Errorf("path = %q, want the 1.3.0 variant", path)
	}
}

func TestSelectManifestFileReturnsEmptyWhenDirMissing(t *testing.T) {
	l := &Loader{}
	path, err := l.selectManifestFile(filepath.Join(t.TempDir(), "does-not-exist"), CurrentToolsVersion)
	if err != nil {
		t.Fatal(err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty for a missing package directory", path)
	}
}

func TestLoadRejectsToolsVersionNewerThanCurrent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ManifestName, `{"name": "example", "toolsVersion": "99.0.0"}`)

	l := &Loader{}
	_, err := l.Load(dir, resolve.Identity{}, CurrentToolsVersion)
	if err == nil {
		t.Fatal("expected an error for a manifest declaring a too-new tools-version")
	}
	if _, ok := err.(*ToolsVersionTooNewError); !ok {
		t.Errorf("err = %T, want *ToolsVersionTooNewError", err)
	}
}

func TestLoadRejectsToolsVersionOlderThanMinimum(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ManifestName, `{"name": "example", "toolsVersion": "0.1.0"}`)

	l := &Loader{}
	_, err := l.Load(dir, resolve.Identity{}, CurrentToolsVersion)
	if err == nil {
		t.Fatal("expected an error for a manifest declaring a too-old tools-version")
	}
	if _, ok := err.(*ToolsVersionTooOldError); !ok {
		t.Errorf("err = %T, want *ToolsVersionTooOldError", err)
	}
}

func TestLoadReturnsErrNoManifestWhenFileAbsent(t *testing.T) {
	l := &Loader{}
	_, err := l.Load(t.TempDir(), resolve.Identity{}, CurrentToolsVersion)
	if err == nil {
		t.Fatal("expected an error when no manifest file exists")
	}
}

func TestCmpVersions(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.1.0", "1.0.0", 1},
		{"1.0.0", "1.1.0", -1},
		{"2.0.0", "1.9.9", 1},
		{"1.0", "1.0.0", 0},
	}
	for _, c := range cases {
		if got := cmpVersions(c.a, c.b); got != c.want {
			t.Errorf("cmpVersions(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestResolveSourceLocalPathDependency(t *testing.T) {
	l := &Loader{}
	open, err := toRequirement("dep", rawDependencyProp{})
	if err != nil {
		t.Fatal(err)
	}
	_, loc, err := l.resolveSource("dep", rawDependencyProp{Source: "../sibling"}, open)
	if err != nil {
		t.Fatal(err)
	}
	if loc.Kind != resolve.LocationLocalPath {
		t.Errorf("Kind = %v, want LocationLocalPath for a relative-path source", loc.Kind)
	}
}

func TestResolveSourceDefaultsToDependencyNameWhenSourceEmpty(t *testing.T) {
	l := &Loader{}
	req, err := toRequirement("dep", rawDependencyProp{})
	if err != nil {
		t.Fatal(err)
	}
	_, loc, err := l.resolveSource("github.com/example/utility", rawDependencyProp{}, req)
	if err != nil {
		t.Fatal(err)
	}
	if loc.Raw != "github.com/example/utility" {
		t.Errorf("Raw = %q, want the dependency name to be used as the source", loc.Raw)
	}
	if loc.Kind != resolve.LocationRemoteVCS {
		t.Errorf("Kind = %v, want LocationRemoteVCS for a bare host/path name", loc.Kind)
	}
}
