// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package forge

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/forgepm/forge/log"
	"github.com/forgepm/forge/resolve"
)

func TestStateString(t *testing.T) {
	cases := map[State]string{
		Idle: "Idle", Refreshing: "Refreshing", Resolving: "Resolving",
		Graphing: "Graphing", Planning: "Planning", Emitting: "Emitting", Failed: "Failed",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
	if got := State(99).String(); got != "Unknown" {
		t.Errorf("unknown state String() = %q, want %q", got, "Unknown")
	}
}

func TestNewWorkspaceStartsIdle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ManifestName, minimalManifest)
	loader := &Loader{}
	proj, err := LoadProject(loader, dir)
	if err != nil {
		t.Fatal(err)
	}

	sm := resolve.NewSourceManager(resolve.SourceManagerConfig{CacheDir: filepath.Join(dir, ".cache")})
	var buf bytes.Buffer
	w := NewWorkspace(proj, sm, log.New(&buf))
	if w.State() != Idle {
		t.Errorf("initial State() = %v, want Idle", w.State())
	}
}

func TestWorkspaceTransitionUpdatesStateAndLogsWhenVerbose(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ManifestName, minimalManifest)
	loader := &Loader{}
	proj, err := LoadProject(loader, dir)
	if err != nil {
		t.Fatal(err)
	}

	sm := resolve.NewSourceManager(resolve.SourceManagerConfig{CacheDir: filepath.Join(dir, ".cache")})
	var buf bytes.Buffer
	logger := log.New(&buf)
	logger.SetVerbose(true)
	w := NewWorkspace(proj, sm, logger)

	w.transition(Resolving)
	if w.State() != Resolving {
		t.Errorf("State() after transition = %v, want Resolving", w.State())
	}
	if buf.Len() == 0 {
		t.Error("expected a verbose log line for the transition")
	}
}
