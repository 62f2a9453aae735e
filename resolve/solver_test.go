// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resolve

import (
	"testing"
)

// fakeManifest lets a test declare a package's dependency constraints
// without a real checkout, mirroring how the teacher's solve_basic_test.go
// fixtures build dependency graphs entirely in memory.
type fakeManifest struct {
	deps map[Identity]Requirement
}

func (m fakeManifest) DependencyConstraints() map[Identity]Requirement { return m.deps }

// fakeLock is a minimal resolve.Lock backed by a plain map, for scenarios
// that need a previously-pinned binding honored across a re-resolve.
type fakeLock struct {
	pins map[Identity]PinnedState
}

func (l fakeLock) Pinned(id Identity) (PinnedState, bool) {
	p, ok := l.pins[id]
	return p, ok
}

// fakeAnalyzer maps a checkout path (the mock provider's synthetic
// destination, in these tests just the identity's raw registry name) to a
// canned Manifest, so the solver can walk a fixed, hand-built dependency
// graph.
type fakeAnalyzer struct {
	manifestsByIdentity map[Identity]fakeManifest
}

func (a fakeAnalyzer) DeriveManifestAndLock(path string, id Identity) (Manifest, Lock, error) {
	if m, ok := a.manifestsByIdentity[id]; ok {
		return m, nil, nil
	}
	return fakeManifest{}, nil, nil
}

func regID(t *testing.T, coordinate string) Identity {
	t.Helper()
	id, err := Canonicalize(Location{Kind: LocationRegistry, Raw: coordinate})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func newTestSourceManager(t *testing.T, mp *MockProvider) *SourceManager {
	t.Helper()
	return NewSourceManager(SourceManagerConfig{
		CacheDir: t.TempDir(),
		RegistryProviderFor: func(raw string) (Provider, error) {
			return mp, nil
		},
	})
}

func mustSemVer(t *testing.T, s string) SemVersion {
	t.Helper()
	v, err := NewSemVersion(s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestSolveSingleRootOneDependency(t *testing.T) {
	mp := NewMockProvider()
	sm := newTestSourceManager(t, mp)

	utilID := regID(t, "example/utility")
	if _, err := sm.Observe(Location{Kind: LocationRegistry, Raw: "example/utility"}); err != nil {
		t.Fatal(err)
	}
	mp.AddRepository("example/utility", &MockRepository{
		Versions: map[SemVersion]Revision{mustSemVer(t, "1.0.0"): "rev1"},
	})
	sm.SetAnalyzer(fakeAnalyzer{manifestsByIdentity: map[Identity]fakeManifest{
		utilID: {},
	}})

	root := fakeManifest{deps: map[Identity]Requirement{
		utilID: Range(mustSemVer(t, "0.0.0"), UnboundedSemVersion()),
	}}

	sol, err := Solve(SolveParameters{RootManifest: root, SourceManager: sm})
	if err != nil {
		t.Fatal(err)
	}
	b, ok := sol.Bindings[utilID]
	if !ok {
		t.Fatal("expected a binding for the utility dependency")
	}
	if b.Version.String() != "1.0.0" {
		t.Errorf("bound version = %s, want 1.0.0", b.Version)
	}
}

func TestSolveVersionConflictAcrossTwoRequirers(t *testing.T) {
	mp := NewMockProvider()
	sm := newTestSourceManager(t, mp)

	aID := regID(t, "example/a")
	bID := regID(t, "example/b")
	utilID := regID(t, "example/utility")
	for _, raw := range []string{"example/a", "example/b", "example/utility"} {
		if _, err := sm.Observe(Location{Kind: LocationRegistry, Raw: raw}); err != nil {
			t.Fatal(err)
		}
	}

	mp.AddRepository("example/a", &MockRepository{Versions: map[SemVersion]Revision{mustSemVer(t, "1.0.0"): "a1"}})
	mp.AddRepository("example/b", &MockRepository{Versions: map[SemVersion]Revision{mustSemVer(t, "1.0.0"): "b1"}})
	mp.AddRepository("example/utility", &MockRepository{Versions: map[SemVersion]Revision{
		mustSemVer(t, "1.0.0"): "u1",
		mustSemVer(t, "2.0.0"): "u2",
	}})

	sm.SetAnalyzer(fakeAnalyzer{manifestsByIdentity: map[Identity]fakeManifest{
		aID: {deps: map[Identity]Requirement{utilID: Exact(mustSemVer(t, "1.0.0"))}},
		bID: {deps: map[Identity]Requirement{utilID: Exact(mustSemVer(t, "2.0.0"))}},
	}})

	root := fakeManifest{deps: map[Identity]Requirement{
		aID: Range(mustSemVer(t, "0.0.0"), UnboundedSemVersion()),
		bID: Range(mustSemVer(t, "0.0.0"), UnboundedSemVersion()),
	}}

	_, err := Solve(SolveParameters{RootManifest: root, SourceManager: sm})
	if err == nil {
		t.Fatal("expected a version conflict between a's and b's incompatible utility pins")
	}
	if _, ok := err.(*VersionConflictError); !ok {
		t.Errorf("err = %T, want *VersionConflictError", err)
	}
}

func TestSolveHonorsExistingPinWhenNotUpdating(t *testing.T) {
	mp := NewMockProvider()
	sm := newTestSourceManager(t, mp)

	utilID := regID(t, "example/utility")
	if _, err := sm.Observe(Location{Kind: LocationRegistry, Raw: "example/utility"}); err != nil {
		t.Fatal(err)
	}
	mp.AddRepository("example/utility", &MockRepository{Versions: map[SemVersion]Revision{
		mustSemVer(t, "1.0.0"): "u1",
		mustSemVer(t, "1.5.0"): "u2",
	}})
	sm.SetAnalyzer(fakeAnalyzer{manifestsByIdentity: map[Identity]fakeManifest{utilID: {}}})

	root := fakeManifest{deps: map[Identity]Requirement{
		utilID: Range(mustSemVer(t, "0.0.0"), UnboundedSemVersion()),
	}}
	lock := fakeLock{pins: map[Identity]PinnedState{utilID: {Version: mustSemVer(t, "1.0.0")}}}

	sol, err := Solve(SolveParameters{RootManifest: root, SourceManager: sm, Lock: lock})
	if err != nil {
		t.Fatal(err)
	}
	if got := sol.Bindings[utilID].Version.String(); got != "1.0.0" {
		t.Errorf("bound version = %s, want the pinned 1.0.0 even though 1.5.0 is available", got)
	}
}

func TestSolveIgnoresPinWhenIdentityIsInUpdateSet(t *testing.T) {
	mp := NewMockProvider()
	sm := newTestSourceManager(t, mp)

	utilID := regID(t, "example/utility")
	if _, err := sm.Observe(Location{Kind: LocationRegistry, Raw: "example/utility"}); err != nil {
		t.Fatal(err)
	}
	mp.AddRepository("example/utility", &MockRepository{Versions: map[SemVersion]Revision{
		mustSemVer(t, "1.0.0"): "u1",
		mustSemVer(t, "1.5.0"): "u2",
	}})
	sm.SetAnalyzer(fakeAnalyzer{manifestsByIdentity: map[Identity]fakeManifest{utilID: {}}})

	root := fakeManifest{deps: map[Identity]Requirement{
		utilID: Range(mustSemVer(t, "0.0.0"), UnboundedSemVersion()),
	}}
	lock := fakeLock{pins: map[Identity]PinnedState{utilID: {Version: mustSemVer(t, "1.0.0")}}}

	sol, err := Solve(SolveParameters{
		RootManifest: root, SourceManager: sm, Lock: lock,
		Update: map[Identity]bool{utilID: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := sol.Bindings[utilID].Version.String(); got != "1.5.0" {
		t.Errorf("bound version = %s, want the newest 1.5.0 once pin is ignored via Update", got)
	}
}

func TestSolveBranchDependency(t *testing.T) {
	mp := NewMockProvider()
	sm := newTestSourceManager(t, mp)

	utilID := regID(t, "example/utility")
	if _, err := sm.Observe(Location{Kind: LocationRegistry, Raw: "example/utility"}); err != nil {
		t.Fatal(err)
	}
	mp.AddRepository("example/utility", &MockRepository{Branches: map[string]Revision{"main": "deadbeef"}})
	sm.SetAnalyzer(fakeAnalyzer{manifestsByIdentity: map[Identity]fakeManifest{utilID: {}}})

	root := fakeManifest{deps: map[Identity]Requirement{utilID: FromBranch("main")}}

	sol, err := Solve(SolveParameters{RootManifest: root, SourceManager: sm})
	if err != nil {
		t.Fatal(err)
	}
	b := sol.Bindings[utilID]
	if b.Kind != RequirementBranch || string(b.Revision) != "deadbeef" {
		t.Errorf("binding = %+v, want branch main at deadbeef", b)
	}
}

func TestSolveDetectsPackageLevelCycle(t *testing.T) {
	mp := NewMockProvider()
	sm := newTestSourceManager(t, mp)

	aID := regID(t, "example/a")
	bID := regID(t, "example/b")
	for _, raw := range []string{"example/a", "example/b"} {
		if _, err := sm.Observe(Location{Kind: LocationRegistry, Raw: raw}); err != nil {
			t.Fatal(err)
		}
	}
	mp.AddRepository("example/a", &MockRepository{Versions: map[SemVersion]Revision{mustSemVer(t, "1.0.0"): "a1"}})
	mp.AddRepository("example/b", &MockRepository{Versions: map[SemVersion]Revision{mustSemVer(t, "1.0.0"): "b1"}})

	sm.SetAnalyzer(fakeAnalyzer{manifestsByIdentity: map[Identity]fakeManifest{
		aID: {deps: map[Identity]Requirement{bID: Range(mustSemVer(t, "0.0.0"), UnboundedSemVersion())}},
		bID: {deps: map[Identity]Requirement{aID: Range(mustSemVer(t, "0.0.0"), UnboundedSemVersion())}},
	}})

	root := fakeManifest{deps: map[Identity]Requirement{
		aID: Range(mustSemVer(t, "0.0.0"), UnboundedSemVersion()),
	}}

	_, err := Solve(SolveParameters{RootManifest: root, SourceManager: sm})
	if err == nil {
		t.Fatal("expected a cyclic dependency error for a <-> b")
	}
	if _, ok := err.(*CyclicDependencyError); !ok {
		t.Errorf("err = %T, want *CyclicDependencyError", err)
	}
}
