// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/forgepm/forge/log"
)

const fixtureManifest = `{"name": "example", "toolsVersion": "1.0.0"}`

// newTestRunContext builds a runContext rooted at a temp project
// directory, with $HOME redirected to an empty temp dir so
// rc.workspace() picks up built-in config defaults rather than the
// real developer's ~/.forge/configuration.
func newTestRunContext(t *testing.T) (rc *runContext, out, errw *bytes.Buffer) {
	t.Helper()
	projectDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(projectDir, "package.json"), []byte(fixtureManifest), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HOME", t.TempDir())

	out, errw = &bytes.Buffer{}, &bytes.Buffer{}
	rc = &runContext{
		WorkingDir: projectDir,
		Out:        log.New(out),
		Err:        log.New(errw),
	}
	return rc, out, errw
}

func TestDescribeCommandTextOutput(t *testing.T) {
	rc, out, _ := newTestRunContext(t)
	cmd := &describeCommand{typ: "text"}
	if err := cmd.Run(rc, nil); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(out.Bytes(), []byte("name: example")) {
		t.Errorf("output = %q, want it to contain the package name", out.String())
	}
}

func TestDescribeCommandRejectsUnknownType(t *testing.T) {
	rc, _, _ := newTestRunContext(t)
	cmd := &describeCommand{typ: "xml"}
	if err := cmd.Run(rc, nil); err == nil {
		t.Fatal("expected an error for an unsupported --type")
	}
}

func TestDescribeCommandJSONOutput(t *testing.T) {
	rc, out, _ := newTestRunContext(t)
	cmd := &describeCommand{typ: "json"}
	if err := cmd.Run(rc, nil); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(out.Bytes(), []byte(`"name"`)) {
		t.Errorf("json output = %q, want a name field", out.String())
	}
}

func TestDumpPackageCommandReemitsManifestJSON(t *testing.T) {
	rc, out, _ := newTestRunContext(t)
	cmd := &dumpPackageCommand{}
	if err := cmd.Run(rc, nil); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(out.Bytes(), []byte("example")) {
		t.Errorf("dump-package output = %q, want the package name", out.String())
	}
}

func TestToolsVersionCommandPrintsDeclaredVersionWithNoFlags(t *testing.T) {
	rc, out, _ := newTestRunContext(t)
	cmd := &toolsVersionCommand{}
	if err := cmd.Run(rc, nil); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "1.0.0\n" {
		t.Errorf("tools-version output = %q, want 1.0.0", got)
	}
}

func TestToolsVersionCommandSetRewritesManifest(t *testing.T) {
	rc, _, _ := newTestRunContext(t)
	cmd := &toolsVersionCommand{set: "1.2.0"}
	if err := cmd.Run(rc, nil); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(filepath.Join(rc.WorkingDir, "package.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(b, []byte(`"toolsVersion": "1.2.0"`)) {
		t.Errorf("rewritten manifest = %s, want toolsVersion 1.2.0", b)
	}
}

func TestComputeChecksumCommandHashesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.bin")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	rc := &runContext{Out: log.New(&out), Err: log.New(&bytes.Buffer{})}
	cmd := &computeChecksumCommand{}
	if err := cmd.Run(rc, []string{path}); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824\n" {
		t.Errorf("checksum output = %q", got)
	}
}

func TestComputeChecksumCommandRejectsWrongArgCount(t *testing.T) {
	var out bytes.Buffer
	rc := &runContext{Out: log.New(&out), Err: log.New(&bytes.Buffer{})}
	cmd := &computeChecksumCommand{}
	if err := cmd.Run(rc, nil); err == nil {
		t.Fatal("expected an error with zero path arguments")
	}
	if err := cmd.Run(rc, []string{"a", "b"}); err == nil {
		t.Fatal("expected an error with more than one path argument")
	}
}

func TestArchiveSourceCommandWritesTarballExcludingBuildDir(t *testing.T) {
	rc, _, _ := newTestRunContext(t)
	if err := os.MkdirAll(filepath.Join(rc.WorkingDir, ".build"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(rc.WorkingDir, ".build", "stale.o"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "out.tar.gz")
	cmd := &archiveSourceCommand{output: out}
	if err := cmd.Run(rc, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected an archive at %s: %v", out, err)
	}
}
