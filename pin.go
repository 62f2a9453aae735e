// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package forge

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/theckman/go-flock"

	"github.com/forgepm/forge/resolve"
)

// PinName is the base filename of the Pin Store (spec §4.F: "Persisted as
// a single file keyed by package root").
const PinName = "package.pins.json"

// currentPinSchema is bumped whenever rawPin's on-disk shape changes in a
// way readPinFile's migration switch needs to handle.
const currentPinSchema = 2

// Pin is a single persisted binding: an Identity pinned to an exact
// resolved state (spec §3 "Pin").
type Pin struct {
	Identity resolve.Identity
	Version  resolve.SemVersion // zero if unset
	Branch   resolve.Branch
	Revision resolve.Revision
	Source   string
	Reason   string
}

func (p Pin) hasVersion() bool { return !p.Version.IsZero() }

// PinStore is the persistent map from package identity to exact resolved
// state (spec §4.F). Save takes an exclusive file lock keyed on the
// store's own path, matching the Checkout Cache's per-resource locking
// discipline (spec §5 "Shared-resource policy"); LoadPinStore reads
// without taking it.
type PinStore struct {
	path string
	lock *flock.Flock

	pins map[resolve.Identity]Pin
}

// LoadPinStore reads the Pin Store at path, or returns an empty store if
// no file exists yet (spec §4.F "load").
func LoadPinStore(path string) (*PinStore, error) {
	ps := &PinStore{
		path: path,
		lock: flock.NewFlock(path + ".lock"),
		pins: make(map[resolve.Identity]Pin),
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ps, nil
		}
		return nil, errors.Wrap(err, "open pin store")
	}
	defer f.Close()

	pins, err := readPinFile(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	for _, p := range pins {
		ps.pins[p.Identity] = p
	}
	return ps, nil
}

// Pinned implements resolve.Lock.
func (ps *PinStore) Pinned(id resolve.Identity) (resolve.PinnedState, bool) {
	p, ok := ps.pins[id]
	if !ok {
		return resolve.PinnedState{}, false
	}
	return resolve.PinnedState{Version: p.Version, Branch: p.Branch, Revision: p.Revision}, true
}

// Get returns the full Pin for id, including its reason annotation.
func (ps *PinStore) Get(id resolve.Identity) (Pin, bool) {
	p, ok := ps.pins[id]
	return p, ok
}

// Pin records a new binding for id (spec §4.F "pin(identity, state,
// reason?)"). It does not persist; call Save to flush.
func (ps *PinStore) Pin(p Pin) {
	ps.pins[p.Identity] = p
}

// Unpin removes id's binding (spec §4.F "unpin(identity)").
func (ps *PinStore) Unpin(id resolve.Identity) {
	delete(ps.pins, id)
}

// Save writes the Pin Store atomically (temp-file + rename), holding an
// exclusive lock on the store for the duration (spec §4.F "Writes are
// atomic... and protected by an exclusive lock").
func (ps *PinStore) Save(timeout time.Duration) error {
	locked, err := ps.lock.TryLockTimeout(timeout)
	if err != nil {
		return errors.Wrap(err, "acquire pin store lock")
	}
	if !locked {
		return &resourceBusyError{resource: ps.path}
	}
	defer ps.lock.Unlock()

	b, err := marshalPinFile(ps.pins)
	if err != nil {
		return err
	}

	dir := filepath.Dir(ps.path)
	tmp, err := os.CreateTemp(dir, ".pin-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp pin file")
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "write temp pin file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "close temp pin file")
	}
	if err := os.Rename(tmpPath, ps.path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "rename temp pin file into place")
	}
	return nil
}

// resourceBusyError is declared in resolve's cache.go for that package's
// own locks; the Pin Store and Workspace lock share the same "ResourceBusy
// diagnostic kind" semantics (spec §7) so they define their own instance
// here to avoid importing resolve purely for an error type.
type resourceBusyError struct{ resource string }

func (e *resourceBusyError) Error() string { return "resource busy: " + e.resource }

// rawPinFile is the versioned on-disk schema (spec §4.F "Pin file format
// is versioned; on read, older versions are migrated in memory").
type rawPinFile struct {
	Schema int         `json:"schema"`
	Pins   []rawPinDep `json:"pins"`
}

type rawPinDep struct {
	Identity string `json:"identity"`
	Version  string `json:"version,omitempty"`
	Branch   string `json:"branch,omitempty"`
	Revision string `json:"revision,omitempty"`
	Source   string `json:"source,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// rawPinFileV1 is the schema-1 shape, before "reason" was added and while
// the field was still named "rev" instead of "revision". readPinFile
// migrates it in memory; the next Save rewrites it as schema 2.
type rawPinFileV1 struct {
	Pins []struct {
		Identity string `json:"identity"`
		Version  string `json:"version,omitempty"`
		Branch   string `json:"branch,omitempty"`
		Rev      string `json:"rev,omitempty"`
		Source   string `json:"source,omitempty"`
	} `json:"pins"`
}

func readPinFile(r io.Reader) ([]Pin, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var probe struct {
		Schema int `json:"schema"`
	}
	if err := json.Unmarshal(buf, &probe); err != nil {
		return nil, err
	}

	switch probe.Schema {
	case 0, 1:
		var v1 rawPinFileV1
		if err := json.Unmarshal(buf, &v1); err != nil {
			return nil, err
		}
		pins := make([]Pin, 0, len(v1.Pins))
		for _, rp := range v1.Pins {
			p, err := pinFromRaw(rawPinDep{
				Identity: rp.Identity, Version: rp.Version, Branch: rp.Branch,
				Revision: rp.Rev, Source: rp.Source,
			})
			if err != nil {
				return nil, err
			}
			pins = append(pins, p)
		}
		return pins, nil

	case currentPinSchema:
		var raw rawPinFile
		if err := json.Unmarshal(buf, &raw); err != nil {
			return nil, err
		}
		pins := make([]Pin, 0, len(raw.Pins))
		for _, rp := range raw.Pins {
			p, err := pinFromRaw(rp)
			if err != nil {
				return nil, err
			}
			pins = append(pins, p)
		}
		return pins, nil

	default:
		return nil, errors.Errorf("pin store schema %d is newer than this build understands (max %d)", probe.Schema, currentPinSchema)
	}
}

func pinFromRaw(rp rawPinDep) (Pin, error) {
	id := resolve.Identity{}
	var err error
	if rp.Source != "" {
		id, err = resolve.Canonicalize(resolve.Location{Kind: resolve.LocationRemoteVCS, Raw: rp.Source})
	} else {
		id, err = resolve.Canonicalize(resolve.Location{Kind: resolve.LocationRemoteVCS, Raw: rp.Identity})
	}
	if err != nil {
		return Pin{}, err
	}

	p := Pin{Identity: id, Branch: resolve.Branch(rp.Branch), Revision: resolve.Revision(rp.Revision), Source: rp.Source, Reason: rp.Reason}
	if rp.Version != "" {
		v, err := resolve.NewSemVersion(rp.Version)
		if err != nil {
			return Pin{}, errors.Wrapf(err, "invalid pinned version for %s", rp.Identity)
		}
		p.Version = v
	}
	return p, nil
}

func marshalPinFile(pins map[resolve.Identity]Pin) ([]byte, error) {
	raw := rawPinFile{Schema: currentPinSchema, Pins: make([]rawPinDep, 0, len(pins))}
	for id, p := range pins {
		rp := rawPinDep{
			Identity: id.String(),
			Branch:   string(p.Branch),
			Revision: string(p.Revision),
			Source:   p.Source,
			Reason:   p.Reason,
		}
		if p.hasVersion() {
			rp.Version = p.Version.String()
		}
		raw.Pins = append(raw.Pins, rp)
	}
	sort.Slice(raw.Pins, func(i, j int) bool { return raw.Pins[i].Identity < raw.Pins[j].Identity })

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
