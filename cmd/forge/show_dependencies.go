// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"sort"
)

const showDependenciesShortHelp = `Print the resolved dependency set`
const showDependenciesLongHelp = `
Resolve the current package's dependencies and print the resulting
binding, in the requested format.
`

type showDependenciesCommand struct {
	format string
}

func (cmd *showDependenciesCommand) Name() string      { return "show-dependencies" }
func (cmd *showDependenciesCommand) Args() string      { return "" }
func (cmd *showDependenciesCommand) ShortHelp() string { return showDependenciesShortHelp }
func (cmd *showDependenciesCommand) LongHelp() string  { return showDependenciesLongHelp }
func (cmd *showDependenciesCommand) Hidden() bool      { return false }

func (cmd *showDependenciesCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.format, "format", "text", "output format: text, dot, json, or flatlist")
}

func (cmd *showDependenciesCommand) Run(rc *runContext, args []string) error {
	ws, err := rc.workspace()
	if err != nil {
		return err
	}
	solution, err := ws.SolveOnly(context.Background())
	if err != nil {
		return err
	}

	type entry struct {
		Identity string `json:"identity"`
		Version  string `json:"version,omitempty"`
		Branch   string `json:"branch,omitempty"`
		Revision string `json:"revision,omitempty"`
	}
	var entries []entry
	for id, b := range solution.Bindings {
		e := entry{Identity: id.String(), Branch: string(b.Branch), Revision: string(b.Revision)}
		if v, ok := solution.Version(id); ok {
			e.Version = v.String()
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Identity < entries[j].Identity })

	switch cmd.format {
	case "flatlist":
		for _, e := range entries {
			rc.Out.Logln(e.Identity)
		}
	case "json":
		enc := json.NewEncoder(rc.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "dot":
		rc.Out.Logln("digraph forge {")
		rc.Out.Logf("\t%q;\n", ws.Project.Identity.String())
		for _, e := range entries {
			rc.Out.Logf("\t%q -> %q;\n", ws.Project.Identity.String(), e.Identity)
		}
		rc.Out.Logln("}")
	case "text":
		for _, e := range entries {
			ref := e.Version
			if ref == "" {
				ref = e.Branch
			}
			if ref == "" {
				ref = e.Revision
			}
			rc.Out.Logf("%s@%s\n", e.Identity, ref)
		}
	default:
		return fmt.Errorf("unknown --format %q", cmd.format)
	}
	return nil
}
