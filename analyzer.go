// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package forge

import (
	"errors"

	"github.com/forgepm/forge/resolve"
)

// projectAnalyzer adapts Loader to resolve.Analyzer, the seam the
// dependency resolver uses to derive a candidate's Manifest and Lock from
// its checkout path without importing this package (see
// resolve/manifest.go's Analyzer doc comment).
type projectAnalyzer struct {
	loader *Loader
}

// NewAnalyzer returns a resolve.Analyzer backed by a manifest Loader
// registered against sm, so identities discovered while walking a
// dependency's own manifest get folded into the same Identity Registry as
// the root project's.
func NewAnalyzer(sm *resolve.SourceManager) resolve.Analyzer {
	return &projectAnalyzer{loader: &Loader{SourceManager: sm}}
}

func (a *projectAnalyzer) DeriveManifestAndLock(path string, id resolve.Identity) (resolve.Manifest, resolve.Lock, error) {
	m, err := a.loader.Load(path, id, CurrentToolsVersion)
	if err != nil {
		if errors.Is(err, ErrNoManifest) {
			// A dependency with no manifest of its own declares no further
			// dependencies; that is not a failure (spec §4.C implicitly:
			// only the root project's manifest is mandatory).
			return emptyManifest{}, nil, nil
		}
		return nil, nil, err
	}
	return m, nil, nil
}

// emptyManifest satisfies resolve.Manifest for leaf dependencies that
// carry no manifest of their own.
type emptyManifest struct{}

func (emptyManifest) DependencyConstraints() map[resolve.Identity]resolve.Requirement { return nil }
