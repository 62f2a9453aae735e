// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command forge resolves and builds packages described by a manifest
// (spec §6 "External interfaces").
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/forgepm/forge"
	"github.com/forgepm/forge/graph"
	"github.com/forgepm/forge/log"
	"github.com/forgepm/forge/resolve"
)

// command mirrors the teacher's own command-dispatch interface (cmd/dep's
// main.go), generalized to forge's context type.
type command interface {
	Name() string
	Args() string
	ShortHelp() string
	LongHelp() string
	Register(*flag.FlagSet)
	Hidden() bool
	Run(*runContext, []string) error
}

// runContext bundles what every subcommand needs: I/O, the working
// directory, and a lazily-constructed Workspace.
type runContext struct {
	WorkingDir string
	Out, Err   *log.Logger
	Verbose    bool
}

// workspace loads the Project rooted at the current directory and builds
// a Workspace against it, wiring the user Config's registry credentials
// and cache directory (spec §2 ambient configuration).
func (c *runContext) workspace() (*forge.Workspace, error) {
	cfgPath, err := forge.DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := forge.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		cacheDir = filepath.Join(home, forge.ConfigDirName, "cache")
	}

	sm := resolve.NewSourceManager(resolve.SourceManagerConfig{
		CacheDir:    cacheDir,
		Concurrency: cfg.Concurrency,
		RegistryProviderFor: func(raw string) (resolve.Provider, error) {
			auth, _ := cfg.AuthFor(raw)
			return &resolve.RegistryProvider{BaseURL: raw, Token: auth.Token}, nil
		},
	})
	sm.SetAnalyzer(forge.NewAnalyzer(sm))

	loader := &forge.Loader{SourceManager: sm}
	project, err := forge.LoadProject(loader, c.WorkingDir)
	if err != nil {
		return nil, err
	}

	logger := log.New(c.Err)
	logger.SetVerbose(c.Verbose)
	return forge.NewWorkspace(project, sm, logger), nil
}

func main() {
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to get working directory:", err)
		os.Exit(2)
	}
	os.Exit(run(os.Args, wd, os.Stdout, os.Stderr))
}

func run(args []string, wd string, stdout, stderr io.Writer) (exitCode int) {
	commands := []command{
		&resolveCommand{},
		&updateCommand{},
		&showDependenciesCommand{},
		&describeCommand{},
		&dumpPackageCommand{},
		&toolsVersionCommand{},
		&computeChecksumCommand{},
		&archiveSourceCommand{},
	}

	outLogger := stdlog.New(stdout, "", 0)
	errLogger := stdlog.New(stderr, "", 0)

	usage := func() {
		errLogger.Println("forge is a source-package build-graph tool")
		errLogger.Println()
		errLogger.Println("Usage: forge <command>")
		errLogger.Println()
		errLogger.Println("Commands:")
		errLogger.Println()
		w := tabwriter.NewWriter(stderr, 0, 4, 2, ' ', 0)
		for _, cmd := range commands {
			if !cmd.Hidden() {
				fmt.Fprintf(w, "\t%s\t%s\n", cmd.Name(), cmd.ShortHelp())
			}
		}
		w.Flush()
		errLogger.Println()
		errLogger.Println(`Use "forge help <command>" for more information about a command.`)
	}

	cmdName, printCmdHelp, exit := parseArgs(args)
	if exit {
		usage()
		return 2
	}

	for _, cmd := range commands {
		if cmd.Name() != cmdName {
			continue
		}

		fs := flag.NewFlagSet(cmdName, flag.ContinueOnError)
		fs.SetOutput(stderr)
		verbose := fs.Bool("v", false, "enable verbose logging")
		cmd.Register(fs)
		resetUsage(errLogger, fs, cmdName, cmd.Args(), cmd.LongHelp())

		if printCmdHelp {
			fs.Usage()
			return 2
		}
		if err := fs.Parse(args[2:]); err != nil {
			return 2
		}

		rc := &runContext{
			WorkingDir: wd,
			Out:        log.New(stdout),
			Err:        log.New(stderr),
			Verbose:    *verbose,
		}
		if err := cmd.Run(rc, fs.Args()); err != nil {
			errLogger.Printf("forge: %v\n", err)
			return 1
		}
		return 0
	}

	errLogger.Printf("forge: %s: no such command\n", cmdName)
	usage()
	return 2
}

func resetUsage(logger *stdlog.Logger, fs *flag.FlagSet, name, args, longHelp string) {
	var (
		hasFlags   bool
		flagBlock  bytes.Buffer
		flagWriter = tabwriter.NewWriter(&flagBlock, 0, 4, 2, ' ', 0)
	)
	fs.VisitAll(func(f *flag.Flag) {
		hasFlags = true
		def := f.DefValue
		if def == "" {
			def = "<none>"
		}
		fmt.Fprintf(flagWriter, "\t-%s\t%s (default: %s)\n", f.Name, f.Usage, def)
	})
	flagWriter.Flush()
	fs.Usage = func() {
		logger.Printf("Usage: forge %s %s\n", name, args)
		logger.Println()
		logger.Println(strings.TrimSpace(longHelp))
		logger.Println()
		if hasFlags {
			logger.Println("Flags:")
			logger.Println()
			logger.Println(flagBlock.String())
		}
	}
}

// parseArgs determines the subcommand name and whether help was asked
// for (grounded on the teacher's own cmd/dep/main.go parseArgs).
func parseArgs(args []string) (cmdName string, printCmdUsage bool, exit bool) {
	isHelpArg := func() bool {
		return strings.Contains(strings.ToLower(args[1]), "help") || strings.ToLower(args[1]) == "-h"
	}

	switch len(args) {
	case 0, 1:
		exit = true
	case 2:
		if isHelpArg() {
			exit = true
		}
		cmdName = args[1]
	default:
		if isHelpArg() {
			cmdName = args[2]
			printCmdUsage = true
		} else {
			cmdName = args[1]
		}
	}
	return cmdName, printCmdUsage, exit
}

// defaultRunOptions fills in the build-environment flags every pipeline
// command shares.
func defaultRunOptions(platform, configuration string, includeTests bool, outDir string) forge.RunOptions {
	if outDir == "" {
		outDir = ".build"
	}
	return forge.RunOptions{
		Platform:      graph.Platform(platform),
		Configuration: graph.Configuration(configuration),
		IncludeTests:  includeTests,
		OutputDir:     outDir,
	}
}
