// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/forgepm/forge"
	"github.com/forgepm/forge/resolve"
)

const resolveShortHelp = `Resolve dependencies and emit a build manifest`
const resolveLongHelp = `
Refresh, resolve, build the package graph, construct a build plan and
emit its build manifest for the current package.
`

type resolveCommand struct {
	platform          string
	configuration     string
	tests             bool
	outDir            string
	debugEntitlements bool
}

func (cmd *resolveCommand) Name() string      { return "resolve" }
func (cmd *resolveCommand) Args() string      { return "" }
func (cmd *resolveCommand) ShortHelp() string { return resolveShortHelp }
func (cmd *resolveCommand) LongHelp() string  { return resolveLongHelp }
func (cmd *resolveCommand) Hidden() bool      { return false }

func (cmd *resolveCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.platform, "platform", "", "target platform triple")
	fs.StringVar(&cmd.configuration, "configuration", "debug", "build configuration")
	fs.BoolVar(&cmd.tests, "tests", false, "include test targets in the build subset")
	fs.StringVar(&cmd.outDir, "out", "", "build output directory (default .build)")
	fs.BoolVar(&cmd.debugEntitlements, "debug-entitlements", false, "sign executables with debugging entitlements on darwin")
}

func (cmd *resolveCommand) Run(rc *runContext, args []string) error {
	ws, err := rc.workspace()
	if err != nil {
		return err
	}
	opts := defaultRunOptions(cmd.platform, cmd.configuration, cmd.tests, cmd.outDir)
	opts.DebugEntitlements = cmd.debugEntitlements
	return runAndReport(rc, ws, opts)
}

const updateShortHelp = `Re-resolve ignoring existing pins`
const updateLongHelp = `
Update re-resolves the named packages (or all declared dependencies, if
none are named), ignoring their existing pins, and rewrites the pin
store.
`

type updateCommand struct {
	platform      string
	configuration string
	outDir        string
}

func (cmd *updateCommand) Name() string      { return "update" }
func (cmd *updateCommand) Args() string      { return "[packages...]" }
func (cmd *updateCommand) ShortHelp() string { return updateShortHelp }
func (cmd *updateCommand) LongHelp() string  { return updateLongHelp }
func (cmd *updateCommand) Hidden() bool      { return false }

func (cmd *updateCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.platform, "platform", "", "target platform triple")
	fs.StringVar(&cmd.configuration, "configuration", "debug", "build configuration")
	fs.StringVar(&cmd.outDir, "out", "", "build output directory (default .build)")
}

func (cmd *updateCommand) Run(rc *runContext, args []string) error {
	ws, err := rc.workspace()
	if err != nil {
		return err
	}
	opts := defaultRunOptions(cmd.platform, cmd.configuration, false, cmd.outDir)

	opts.Update = make(map[resolve.Identity]bool, len(ws.Project.Manifest.Dependencies))
	if len(args) == 0 {
		for id := range ws.Project.Manifest.Dependencies {
			opts.Update[id] = true
		}
	} else {
		named := make(map[string]bool, len(args))
		for _, a := range args {
			named[a] = true
		}
		for id := range ws.Project.Manifest.Dependencies {
			if named[id.String()] {
				opts.Update[id] = true
			}
		}
	}

	return runAndReport(rc, ws, opts)
}

// runAndReport drives one Workspace.Run pass and surfaces its
// diagnostics, converting an error-bag result into a CLI error (spec §6
// exit codes: "1 diagnostics error").
func runAndReport(rc *runContext, ws *forge.Workspace, opts forge.RunOptions) error {
	result, err := ws.Run(context.Background(), opts)
	if err != nil {
		return err
	}
	for _, d := range result.Diagnostics.Sorted() {
		rc.Err.Logln(d.Error())
	}
	if result.Diagnostics.HasErrors() {
		return fmt.Errorf("reported errors, see diagnostics above")
	}
	rc.Out.Logf("build manifest written to %s\n", result.BuildManifestPath)
	return nil
}
