// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"testing"

	"github.com/forgepm/forge/graph"
)

func TestParseArgsNoArgsExits(t *testing.T) {
	_, _, exit := parseArgs([]string{"forge"})
	if !exit {
		t.Error("expected exit with no subcommand given")
	}
}

func TestParseArgsPlainCommand(t *testing.T) {
	name, printHelp, exit := parseArgs([]string{"forge", "describe"})
	if exit || printHelp || name != "describe" {
		t.Errorf("parseArgs = %q, %v, %v", name, printHelp, exit)
	}
}

func TestParseArgsHelpAsFirstArgExits(t *testing.T) {
	_, _, exit := parseArgs([]string{"forge", "help"})
	if !exit {
		t.Error("expected bare 'help' to exit with top-level usage")
	}
	_, _, exit = parseArgs([]string{"forge", "-h"})
	if !exit {
		t.Error("expected -h to exit with top-level usage")
	}
}

func TestParseArgsHelpForSpecificCommand(t *testing.T) {
	name, printHelp, exit := parseArgs([]string{"forge", "help", "resolve"})
	if exit || !printHelp || name != "resolve" {
		t.Errorf("parseArgs(help resolve) = %q, %v, %v", name, printHelp, exit)
	}
}

func TestParseArgsWithFlagsAndExtraArgs(t *testing.T) {
	name, printHelp, exit := parseArgs([]string{"forge", "resolve", "-v", "--update"})
	if exit || printHelp || name != "resolve" {
		t.Errorf("parseArgs = %q, %v, %v", name, printHelp, exit)
	}
}

func TestDefaultRunOptionsDefaultsOutputDir(t *testing.T) {
	opts := defaultRunOptions("linux", "debug", true, "")
	if opts.OutputDir != ".build" {
		t.Errorf("OutputDir = %q, want .build", opts.OutputDir)
	}
	if opts.Platform != graph.Platform("linux") || opts.Configuration != graph.Configuration("debug") || !opts.IncludeTests {
		t.Errorf("opts = %+v", opts)
	}
}

func TestDefaultRunOptionsKeepsExplicitOutputDir(t *testing.T) {
	opts := defaultRunOptions("macos", "release", false, "/tmp/out")
	if opts.OutputDir != "/tmp/out" {
		t.Errorf("OutputDir = %q, want /tmp/out", opts.OutputDir)
	}
}
