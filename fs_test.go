// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package forge

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsRegular(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	writeFile(t, dir, "f.txt", "hi")

	ok, err := IsRegular(file)
	if err != nil || !ok {
		t.Errorf("IsRegular(file) = %v, %v, want true, nil", ok, err)
	}

	ok, err = IsRegular(dir)
	if err == nil || ok {
		t.Errorf("IsRegular(dir) = %v, %v, want false, error", ok, err)
	}

	ok, err = IsRegular(filepath.Join(dir, "missing"))
	if err != nil || ok {
		t.Errorf("IsRegular(missing) = %v, %v, want false, nil", ok, err)
	}
}

func TestIsDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	writeFile(t, dir, "f.txt", "hi")

	ok, err := IsDir(dir)
	if err != nil || !ok {
		t.Errorf("IsDir(dir) = %v, %v, want true, nil", ok, err)
	}

	ok, err = IsDir(file)
	if err == nil || ok {
		t.Errorf("IsDir(file) = %v, %v, want false, error", ok, err)
	}
}

func TestWriteFileAtomicCreatesAndOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	if err := writeFileAtomic(path, []byte("first")); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "first" {
		t.Fatalf("content = %q, %v", b, err)
	}

	if err := writeFileAtomic(path, []byte("second")); err != nil {
		t.Fatal(err)
	}
	b, err = os.ReadFile(path)
	if err != nil || string(b) != "second" {
		t.Fatalf("content after overwrite = %q, %v", b, err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, ".*.tmp"))
	if len(matches) != 0 {
		t.Errorf("leftover temp file(s): %v", matches)
	}
}

func TestRenameWithFallbackSameDevice(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dest := filepath.Join(dir, "dest.txt")
	writeFile(t, dir, "src.txt", "payload")

	if err := renameWithFallback(src, dest); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source file should no longer exist after rename")
	}
	b, err := os.ReadFile(dest)
	if err != nil || string(b) != "payload" {
		t.Fatalf("dest content = %q, %v", b, err)
	}
}
