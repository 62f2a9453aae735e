// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package forge

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/forgepm/forge/resolve"
)

var errProjectNotFound = errors.Errorf("could not find %s in this directory or any parent", ManifestName)

// findProjectRoot searches from the starting directory upwards looking for
// a manifest file until it reaches the root of the filesystem, mirroring
// the teacher's own upward search (spec is silent on discovery mechanics;
// this preserves the teacher's behavior).
func findProjectRoot(from string) (string, error) {
	for {
		mp := filepath.Join(from, ManifestName)
		if _, err := os.Stat(mp); err == nil {
			return from, nil
		} else if !os.IsNotExist(err) {
			return "", err
		}

		parent := filepath.Dir(from)
		if parent == from {
			return "", errProjectNotFound
		}
		from = parent
	}
}

// Project holds a package's Manifest and Pin Store, rooted at a directory
// on disk. It is the unit the Workspace Controller operates on (spec
// §4.K).
type Project struct {
	AbsRoot  string
	Identity resolve.Identity

	Manifest *Manifest
	Pins     *PinStore
}

// LoadProject searches upward from path (or the working directory, if
// path is empty) for a manifest file and loads the Project rooted there.
func LoadProject(loader *Loader, path string) (*Project, error) {
	var err error
	p := &Project{}

	if path == "" {
		path, err = os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "getwd")
		}
	}
	p.AbsRoot, err = findProjectRoot(path)
	if err != nil {
		return nil, err
	}

	id, err := resolve.Canonicalize(resolve.Location{Kind: resolve.LocationLocalPath, Raw: p.AbsRoot})
	if err != nil {
		return nil, errors.Wrap(err, "canonicalize project root")
	}
	p.Identity = id

	p.Manifest, err = loader.Load(p.AbsRoot, id, CurrentToolsVersion)
	if err != nil {
		return nil, errors.Wrapf(err, "load manifest for %s", p.AbsRoot)
	}

	p.Pins, err = LoadPinStore(filepath.Join(p.AbsRoot, PinName))
	if err != nil {
		return nil, errors.Wrap(err, "load pin store")
	}

	return p, nil
}
