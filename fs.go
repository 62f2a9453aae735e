// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package forge

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
)

// IsRegular is true if name is a regular file.
func IsRegular(name string) (bool, error) {
	fi, err := os.Stat(name)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if fi.IsDir() {
		return false, fmt.Errorf("%q is a directory, should be a file", name)
	}
	return true, nil
}

// IsDir is true if name is a directory.
func IsDir(name string) (bool, error) {
	fi, err := os.Stat(name)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !fi.IsDir() {
		return false, fmt.Errorf("%q is not a directory", name)
	}
	return true, nil
}

// writeFileAtomic writes b to path by writing to a temp file in the same
// directory and renaming it into place, so a crash mid-write never leaves
// a partially-written manifest or build manifest on disk (spec §4.F,
// §4.J).
func writeFileAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return renameWithFallback(tmpPath, path)
}

// renameWithFallback attempts to rename a file, falling back to a copy in
// the event of a cross-device link error (spec is silent on this, but the
// Checkout Cache's staging-rename pattern and the Pin Store's atomic write
// both rely on rename succeeding across the same class of failures the
// teacher's own renameWithFallback guards against).
func renameWithFallback(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	} else if terr, ok := err.(*os.LinkError); !ok {
		return err
	} else if terr.Err != syscall.EXDEV {
		if runtime.GOOS == "windows" {
			if noerr, ok := terr.Err.(syscall.Errno); ok && noerr == 0x11 {
				// ERROR_NOT_SAME_DEVICE; fall through to copy.
			} else {
				return terr
			}
		} else {
			return terr
		}
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	fi, err := srcFile.Stat()
	if err != nil {
		return err
	}

	destFile, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode())
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, srcFile); err != nil {
		return err
	}
	return os.Remove(src)
}
