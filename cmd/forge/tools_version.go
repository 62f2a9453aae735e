// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"

	"github.com/forgepm/forge"
)

const toolsVersionShortHelp = `Read or rewrite the manifest's declared tools-version`
const toolsVersionLongHelp = `
With no flags, print the current package's declared tools-version.
-set rewrites it to the given value; -set-current rewrites it to this
build's own tools-version.
`

type toolsVersionCommand struct {
	set        string
	setCurrent bool
}

func (cmd *toolsVersionCommand) Name() string      { return "tools-version" }
func (cmd *toolsVersionCommand) Args() string      { return "" }
func (cmd *toolsVersionCommand) ShortHelp() string { return toolsVersionShortHelp }
func (cmd *toolsVersionCommand) LongHelp() string  { return toolsVersionLongHelp }
func (cmd *toolsVersionCommand) Hidden() bool      { return false }

func (cmd *toolsVersionCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.set, "set", "", "rewrite the declared tools-version to this value")
	fs.BoolVar(&cmd.setCurrent, "set-current", false, "rewrite the declared tools-version to this build's own version")
}

func (cmd *toolsVersionCommand) Run(rc *runContext, args []string) error {
	ws, err := rc.workspace()
	if err != nil {
		return err
	}

	newVersion := cmd.set
	if cmd.setCurrent {
		newVersion = forge.CurrentToolsVersion
	}
	if newVersion == "" {
		rc.Out.Logln(ws.Project.Manifest.ToolsVersion)
		return nil
	}

	path := filepath.Join(ws.Project.AbsRoot, forge.ManifestName)
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	raw["toolsVersion"] = newVersion

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(raw); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
