// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"archive/tar"
	"compress/gzip"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const archiveSourceShortHelp = `Produce a reproducible source tarball`
const archiveSourceLongHelp = `
archive-source writes a tar.gz of every file under the package root,
excluding the top-level build output and VCS metadata directories, for
vendoring or air-gapped installation. Files are not filtered down to the
manifest and declared target sources.
`

var excludedTopLevel = map[string]bool{
	".build": true,
	".git":   true,
	".hg":    true,
	".svn":   true,
}

type archiveSourceCommand struct {
	output string
}

func (cmd *archiveSourceCommand) Name() string      { return "archive-source" }
func (cmd *archiveSourceCommand) Args() string      { return "" }
func (cmd *archiveSourceCommand) ShortHelp() string { return archiveSourceShortHelp }
func (cmd *archiveSourceCommand) LongHelp() string  { return archiveSourceLongHelp }
func (cmd *archiveSourceCommand) Hidden() bool      { return false }

func (cmd *archiveSourceCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.output, "output", "source.tar.gz", "path to write the archive to")
}

// Run writes the archive via a temp file and atomic rename, mirroring
// the teacher's SafeWriter transactional-write discipline (txn_writer.go)
// so a crash mid-archive never leaves a truncated tarball at the final
// path.
func (cmd *archiveSourceCommand) Run(rc *runContext, args []string) error {
	ws, err := rc.workspace()
	if err != nil {
		return err
	}
	root := ws.Project.AbsRoot

	dir := filepath.Dir(cmd.output)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, ".archive-source-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	gz := gzip.NewWriter(tmp)
	tw := tar.NewWriter(gz)

	walkErr := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		top := strings.SplitN(rel, string(filepath.Separator), 2)[0]
		if excludedTopLevel[top] {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		hdr.ModTime = time.Unix(0, 0)
		hdr.Uid, hdr.Gid = 0, 0
		hdr.Uname, hdr.Gname = "", ""
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if walkErr != nil {
		tw.Close()
		gz.Close()
		tmp.Close()
		return walkErr
	}

	if err := tw.Close(); err != nil {
		gz.Close()
		tmp.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, cmd.output); err != nil {
		return err
	}

	rc.Out.Logf("wrote %s\n", cmd.output)
	return nil
}
