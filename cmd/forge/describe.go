// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
)

const describeShortHelp = `Describe the current package's manifest`
const describeLongHelp = `
Print the current package's name, platforms, products, and targets, in
the requested type.
`

type describeCommand struct {
	typ string
}

func (cmd *describeCommand) Name() string      { return "describe" }
func (cmd *describeCommand) Args() string      { return "" }
func (cmd *describeCommand) ShortHelp() string { return describeShortHelp }
func (cmd *describeCommand) LongHelp() string  { return describeLongHelp }
func (cmd *describeCommand) Hidden() bool      { return false }

func (cmd *describeCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.typ, "type", "text", "output type: text or json")
}

func (cmd *describeCommand) Run(rc *runContext, args []string) error {
	ws, err := rc.workspace()
	if err != nil {
		return err
	}
	m := ws.Project.Manifest

	switch cmd.typ {
	case "json":
		enc := json.NewEncoder(rc.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	case "text":
		rc.Out.Logf("name: %s\n", m.Name)
		rc.Out.Logf("toolsVersion: %s\n", m.ToolsVersion)
		for _, p := range m.Platforms {
			rc.Out.Logf("platform: %s >= %s\n", p.Tag, p.MinVersion)
		}
		for _, p := range m.Products {
			rc.Out.Logf("product: %s (%s) targets=%v\n", p.Name, p.Type.Kind, p.Targets)
		}
		for _, t := range m.Targets {
			rc.Out.Logf("target: %s (%s) path=%s\n", t.Name, t.Type, t.Path)
		}
		return nil
	default:
		return fmt.Errorf("unknown --type %q", cmd.typ)
	}
}

const dumpPackageShortHelp = `Dump the raw, underived manifest JSON`
const dumpPackageLongHelp = `
Re-serialize the current package's Manifest Model back to its JSON
dialect, useful for verifying round-tripping and tools-version
migrations.
`

type dumpPackageCommand struct{}

func (cmd *dumpPackageCommand) Name() string      { return "dump-package" }
func (cmd *dumpPackageCommand) Args() string      { return "" }
func (cmd *dumpPackageCommand) ShortHelp() string { return dumpPackageShortHelp }
func (cmd *dumpPackageCommand) LongHelp() string  { return dumpPackageLongHelp }
func (cmd *dumpPackageCommand) Hidden() bool      { return false }
func (cmd *dumpPackageCommand) Register(fs *flag.FlagSet) {}

func (cmd *dumpPackageCommand) Run(rc *runContext, args []string) error {
	ws, err := rc.workspace()
	if err != nil {
		return err
	}
	b, err := ws.Project.Manifest.MarshalJSON()
	if err != nil {
		return err
	}
	rc.Out.Logln(string(b))
	return nil
}
