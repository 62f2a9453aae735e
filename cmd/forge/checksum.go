// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
)

const computeChecksumShortHelp = `Print the sha256 checksum of a file`
const computeChecksumLongHelp = `
compute-checksum hashes a file the same way a binary target's declared
checksum is verified, for authoring new binary-target manifest entries.
`

type computeChecksumCommand struct{}

func (cmd *computeChecksumCommand) Name() string      { return "compute-checksum" }
func (cmd *computeChecksumCommand) Args() string      { return "<path>" }
func (cmd *computeChecksumCommand) ShortHelp() string { return computeChecksumShortHelp }
func (cmd *computeChecksumCommand) LongHelp() string  { return computeChecksumLongHelp }
func (cmd *computeChecksumCommand) Hidden() bool      { return false }
func (cmd *computeChecksumCommand) Register(fs *flag.FlagSet) {}

func (cmd *computeChecksumCommand) Run(rc *runContext, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("compute-checksum takes exactly one path argument")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	rc.Out.Logln(hex.EncodeToString(h.Sum(nil)))
	return nil
}
