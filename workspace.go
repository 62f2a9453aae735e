// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package forge

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sdboyer/constext"
	"github.com/theckman/go-flock"

	"github.com/forgepm/forge/buildplan"
	"github.com/forgepm/forge/diag"
	"github.com/forgepm/forge/graph"
	"github.com/forgepm/forge/log"
	"github.com/forgepm/forge/resolve"
)

// State names the Workspace Controller's state machine positions (spec
// §4.K).
type State int

const (
	Idle State = iota
	Refreshing
	Resolving
	Graphing
	Planning
	Emitting
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Refreshing:
		return "Refreshing"
	case Resolving:
		return "Resolving"
	case Graphing:
		return "Graphing"
	case Planning:
		return "Planning"
	case Emitting:
		return "Emitting"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Workspace orchestrates components A-J end to end (spec §4.K): refresh,
// resolve, pin, build plan, emit. It owns a workspace-scoped advisory
// lock so concurrent invocations against the same package root serialize
// rather than race on the Pin Store and Checkout Cache.
type Workspace struct {
	Project       *Project
	SourceManager *resolve.SourceManager
	Loader        *Loader
	Logger        *log.Logger

	mu    sync.Mutex
	state State
	lock  *flock.Flock
}

// NewWorkspace builds a Workspace rooted at project, reusing the
// SourceManager the caller's Loader already registered the project's
// dependency locations against (see LoadProject) — a Workspace that
// stood up its own SourceManager here would resolve against an empty
// location table.
func NewWorkspace(project *Project, sm *resolve.SourceManager, logger *log.Logger) *Workspace {
	return &Workspace{
		Project:       project,
		SourceManager: sm,
		Loader:        &Loader{SourceManager: sm},
		Logger:        logger,
		state:         Idle,
		lock:          flock.NewFlock(filepath.Join(project.AbsRoot, ".forge.workspace.lock")),
	}
}

// State returns the controller's current position.
func (w *Workspace) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Workspace) transition(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
	w.Logger.Verbosef("workspace: -> %s", s)
}

// RunResult bundles the Workspace Controller's terminal output (spec §4.K
// "A successful emit returns to Idle with the Build Manifest path
// exposed").
type RunResult struct {
	Solution          *resolve.Solution
	Graph             *graph.PackageGraph
	BuildManifestPath string
	Diagnostics       *diag.Bag
}

// RunOptions configures a single Refresh->Resolve->Graph->Plan->Emit pass.
type RunOptions struct {
	Update            map[resolve.Identity]bool
	Platform          graph.Platform
	Configuration     graph.Configuration
	IncludeTests      bool
	OutputDir         string
	LockTimeout       time.Duration
	DebugEntitlements bool
}

// SolveOnly runs just the Refresh and Resolve phases, for callers that
// need the resolved Solution without constructing a Package Graph or
// Build Plan (spec §6's show-dependencies and describe commands).
func (w *Workspace) SolveOnly(ctx context.Context) (*resolve.Solution, error) {
	cctx, cancel := constext.Cons(ctx, context.Background())
	defer cancel()

	w.transition(Refreshing)
	if err := w.SourceManager.SyncAll(cctx); err != nil && cctx.Err() != nil {
		w.transition(Failed)
		return nil, errors.Wrap(cctx.Err(), "refresh cancelled")
	}

	w.transition(Resolving)
	solution, err := resolve.Solve(resolve.SolveParameters{
		RootIdentity:  w.Project.Identity,
		RootManifest:  w.Project.Manifest,
		SourceManager: w.SourceManager,
		Lock:          w.Project.Pins,
	})
	if err != nil {
		w.transition(Failed)
		return nil, errors.Wrap(err, "resolve")
	}
	w.transition(Idle)
	return solution, nil
}

// Run drives the full pipeline (spec §4.K), propagating ctx's
// cancellation into every suspension point per spec §5 "Cancellation".
func (w *Workspace) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 30 * time.Second
	}

	locked, err := w.lock.TryLockTimeout(opts.LockTimeout)
	if err != nil {
		w.transition(Failed)
		return nil, errors.Wrap(err, "acquire workspace lock")
	}
	if !locked {
		w.transition(Failed)
		return nil, &resourceBusyError{resource: w.Project.AbsRoot}
	}
	defer w.lock.Unlock()

	// Combine the caller's cancellation with a process-scoped background
	// token the way the teacher combines contexts for long-running
	// operations (spec §5 "Cancellation... propagated into every
	// component"). The background parent never cancels, so only ctx can
	// interrupt mid-phase.
	cctx, cancel := constext.Cons(ctx, context.Background())
	defer cancel()

	bag := diag.NewBag()

	w.transition(Refreshing)
	if err := w.SourceManager.SyncAll(cctx); err != nil {
		if cctx.Err() != nil {
			w.transition(Failed)
			return nil, errors.Wrap(cctx.Err(), "refresh cancelled")
		}
		bag.Add(diag.Wrap(diag.KindFetch, diag.SeverityWarning, diag.Scope{}, "refresh encountered errors", err))
	}

	w.transition(Resolving)
	params := resolve.SolveParameters{
		RootIdentity:  w.Project.Identity,
		RootManifest:  w.Project.Manifest,
		SourceManager: w.SourceManager,
		Lock:          w.Project.Pins,
		Update:        opts.Update,
	}
	solution, err := resolve.Solve(params)
	if err != nil {
		w.transition(Failed)
		return nil, errors.Wrap(err, "resolve")
	}

	if err := w.persistPins(solution, opts); err != nil {
		w.transition(Failed)
		return nil, err
	}

	w.transition(Graphing)
	resolved, err := w.materializePackages(solution)
	if err != nil {
		w.transition(Failed)
		return nil, err
	}
	inputs, err := buildPackageInputs(w.Loader, resolved, w.Project.Manifest, w.Project.Identity)
	if err != nil {
		w.transition(Failed)
		return nil, err
	}
	pg, graphDiags := graph.Build(inputs, graph.BuildOptions{
		Platform:      opts.Platform,
		Configuration: opts.Configuration,
		IncludeTests:  opts.IncludeTests,
	})
	bag.Merge(graphDiags)
	if bag.HasFatal() {
		w.transition(Failed)
		return &RunResult{Diagnostics: bag}, errors.New("package graph construction reported a fatal diagnostic")
	}

	w.transition(Planning)
	plan, planDiags := buildplan.Build(pg, buildplan.Options{
		Platform:          opts.Platform,
		Configuration:     opts.Configuration,
		OutputDir:         opts.OutputDir,
		DebugEntitlements: opts.DebugEntitlements,
	})
	bag.Merge(planDiags)
	if bag.HasFatal() {
		w.transition(Failed)
		return &RunResult{Diagnostics: bag}, errors.New("build plan construction reported a fatal diagnostic")
	}

	w.transition(Emitting)
	manifestPath := filepath.Join(opts.OutputDir, buildplan.ManifestName)
	if err := buildplan.Emit(plan, manifestPath); err != nil {
		w.transition(Failed)
		return nil, errors.Wrap(err, "emit build manifest")
	}

	w.transition(Idle)
	return &RunResult{
		Solution:          solution,
		Graph:             pg,
		BuildManifestPath: manifestPath,
		Diagnostics:       bag,
	}, nil
}

// persistPins writes every newly-resolved binding back to the Pin Store,
// respecting spec §5 ordering guarantee (ii): "Pin store writes happen-
// after all repository checkouts they reference" — by this point Solve
// has already completed every checkout it needed.
func (w *Workspace) persistPins(solution *resolve.Solution, opts RunOptions) error {
	for id, b := range solution.Bindings {
		p := Pin{Identity: id, Branch: b.Branch, Revision: b.Revision}
		if v, ok := solution.Version(id); ok {
			p.Version = v
		}
		w.Project.Pins.Pin(p)
	}
	return w.Project.Pins.Save(30 * time.Second)
}

// materializePackages resolves every bound Identity to a checked-out path
// the Package Graph Builder can read targets from.
func (w *Workspace) materializePackages(solution *resolve.Solution) ([]graph.ResolvedPackage, error) {
	out := make([]graph.ResolvedPackage, 0, len(solution.Bindings)+1)
	out = append(out, graph.ResolvedPackage{Identity: w.Project.Identity, Path: w.Project.AbsRoot, IsRoot: true})

	for id, b := range solution.Bindings {
		path, err := w.SourceManager.Checkout(id, resolve.State{Revision: b.Revision, Branch: b.Branch})
		if err != nil {
			return nil, errors.Wrapf(err, "checkout %s", id)
		}
		out = append(out, graph.ResolvedPackage{Identity: id, Path: path})
	}
	return out, nil
}
