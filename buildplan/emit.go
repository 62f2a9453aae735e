package buildplan

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// wireCommand is the on-disk shape of a Command (spec §4.J: "per-command
// tool descriptor, inputs, outputs, arguments, working directory, and
// environment").
type wireCommand struct {
	Tool      string            `json:"tool"`
	Inputs    []string          `json:"inputs,omitempty"`
	Outputs   []string          `json:"outputs,omitempty"`
	Arguments []string          `json:"arguments,omitempty"`
	WorkDir   string            `json:"workingDirectory,omitempty"`
	Env       map[string]string `json:"environment,omitempty"`
	DependsOn []string          `json:"dependsOn,omitempty"`
}

// wireManifest is the Build Manifest's wire format: "serialize the Build
// Plan into a wire format keyed by command name... [with] two top-level
// pseudo-targets... main... and test" (spec §4.J).
type wireManifest struct {
	Commands map[string]wireCommand `json:"commands"`
	Targets  map[string][]string    `json:"targets"`
}

// Emit implements spec §4.J: serialize plan keyed by command name with
// the main/test pseudo-targets, and atomically write a link-file-list
// file per product.
func Emit(plan *Plan, path string) error {
	wm := wireManifest{
		Commands: make(map[string]wireCommand),
		Targets:  map[string][]string{"main": {}, "test": {}},
	}

	for _, c := range plan.Compiles {
		name := c.Target + "-compile"
		wm.Commands[name] = wireCommand{
			Tool:      string(c.Tool),
			Inputs:    c.Sources,
			Outputs:   append(append([]string{}, c.ObjectPaths...), c.ModuleOutputPath),
			Arguments: compileArguments(c),
			DependsOn: c.DependencyInputs,
		}
		wm.Targets["main"] = append(wm.Targets["main"], name)
		wm.Targets["test"] = append(wm.Targets["test"], name)
	}

	for _, l := range plan.Links {
		for _, cmd := range l.Commands {
			wm.Commands[cmd.Name] = wireCommand{
				Tool: cmd.Tool, Inputs: cmd.Inputs, Outputs: cmd.Outputs,
				Arguments: cmd.Arguments, WorkDir: cmd.WorkDir, Env: cmd.Env,
				DependsOn: cmd.DependsOn,
			}
		}
		terminal := l.Commands[len(l.Commands)-1].Name
		if l.Kind == LinkTestBundle {
			wm.Targets["test"] = append(wm.Targets["test"], terminal)
		} else {
			wm.Targets["main"] = append(wm.Targets["main"], terminal)
			wm.Targets["test"] = append(wm.Targets["test"], terminal)
		}

		if err := writeLinkFileList(plan, l, path); err != nil {
			return err
		}
	}

	sort.Strings(wm.Targets["main"])
	sort.Strings(wm.Targets["test"])

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(wm); err != nil {
		return errors.Wrap(err, "encode build manifest")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create build manifest directory")
	}
	return atomicWrite(path, buf.Bytes())
}

// writeLinkFileList writes the newline-delimited object-file list a
// linker reads via @path syntax, one per product, alongside the Build
// Manifest (spec §4.J: "writes a link-file list file per product
// atomically").
func writeLinkFileList(plan *Plan, l LinkDescription, manifestPath string) error {
	dir := filepath.Join(filepath.Dir(manifestPath), "link-file-lists")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create link-file-list directory")
	}

	var buf bytes.Buffer
	if len(l.Commands) > 0 {
		for _, in := range l.Commands[0].Inputs {
			buf.WriteString(in)
			buf.WriteByte('\n')
		}
	}

	return atomicWrite(filepath.Join(dir, l.Product+".txt"), buf.Bytes())
}

func compileArguments(c CompileDescription) []string {
	args := make([]string, 0, len(c.ExtraFlags)+2*len(c.IncludeSearchPaths)+2)
	args = append(args, "-module-name", c.ModuleName)
	for _, inc := range c.IncludeSearchPaths {
		args = append(args, "-I", inc)
	}
	args = append(args, c.ExtraFlags...)
	return args
}

// atomicWrite writes b to path via a temp file in the same directory
// followed by rename, mirroring the Manifest/Pin Store's write discipline
// (forge.writeFileAtomic) so a crash mid-emit never leaves a partially
// written Build Manifest (spec §5 "Partial on-disk state is left
// consistent").
func atomicWrite(path string, b []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "rename into place")
	}
	return nil
}
