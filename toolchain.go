package dyncc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkujhd/goloader"
	"go.uber.org/zap"
)

type (
	// Toolchain compiles source units.
	Toolchain interface {
		// Version of the toolchain as reported by 'go env GOVERSION', fails with ErrToolchainUnavailable.
		Version(ctx context.Context) (string, error)
		// Compile the unit of the task into its Output.
		// A rejected unit returns false with its reasons reported into the Diagnostics,
		// the error is kept for failures to run the toolchain itself.
		Compile(ctx context.Context, t *Task) (bool, error)
	}
	// Task of one compilation.
	Task struct {
		Unit        *SourceUnit
		Output      OutputSink
		Diagnostics *Collector
	}
	// GoToolchain drives the go command.
	GoToolchain struct {
		Go          string   // the go command, defaults to go inside PATH
		ModuleDir   string   // directory whose module resolves imports of units, defaults to working directory
		Env         []string // extra environment of every go command
		KeepScratch bool     // keep the scratch directory for debugging
		Log         *zap.Logger
	}
)

const importcfgFormat = "{{if .Export}}packagefile {{.ImportPath}}={{.Export}}{{end}}"

func (g *GoToolchain) logger() *zap.Logger {
	if g.Log == nil {
		return Logger()
	}
	return g.Log
}

func (g *GoToolchain) lookup() (string, error) {
	name := g.Go
	if name == "" {
		name = "go"
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrToolchainUnavailable, err)
	}
	return p, nil
}

func (g *GoToolchain) command(ctx context.Context, dir string, args ...string) (*exec.Cmd, error) {
	p, err := g.lookup()
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, p, args...)
	cmd.Dir = dir
	if len(g.Env) > 0 {
		cmd.Env = append(os.Environ(), g.Env...)
	}
	g.logger().Debug("execute", zap.Strings("args", cmd.Args), zap.String("dir", dir))
	return cmd, nil
}

func (g *GoToolchain) Version(ctx context.Context) (string, error) {
	cmd, err := g.command(ctx, g.ModuleDir, "env", "GOVERSION")
	if err != nil {
		return "", err
	}
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrToolchainUnavailable, err)
	}
	v := strings.TrimSpace(string(out))
	if v == "" {
		return "", fmt.Errorf("%w: empty GOVERSION", ErrToolchainUnavailable)
	}
	return v, nil
}

// Compile the unit inside a scratch directory removed before return.
func (g *GoToolchain) Compile(ctx context.Context, t *Task) (ok bool, err error) {
	var scratch string
	if scratch, err = os.MkdirTemp("", "dyncc-*"); err != nil {
		return
	}
	if g.KeepScratch {
		g.logger().Info("keep scratch", zap.String("dir", scratch))
	} else {
		defer func() { _ = os.RemoveAll(scratch) }()
	}
	src := filepath.FromSlash(t.Unit.Path())
	if err = os.MkdirAll(filepath.Join(scratch, filepath.Dir(src)), 0o755); err != nil {
		return
	}
	if err = os.WriteFile(filepath.Join(scratch, src), t.Unit.Content(), 0o644); err != nil {
		return
	}
	imports, perr := ImportsOf(t.Unit)
	if perr != nil {
		g.logger().Debug("parse imports", zap.String("name", t.Unit.Name), zap.Error(perr))
	}
	cfg := filepath.Join(scratch, "importcfg")
	var out []byte
	if out, err = g.Imports(ctx, imports); err != nil {
		return g.rejected(err, out, t.Diagnostics)
	}
	if err = os.WriteFile(cfg, out, 0o644); err != nil {
		return
	}
	obj := filepath.Join(scratch, "unit.o")
	var cmd *exec.Cmd
	if cmd, err = g.command(ctx, scratch, "tool", "compile",
		"-p", t.Unit.Package,
		"-importcfg", cfg,
		"-trimpath", scratch,
		"-o", obj,
		src); err != nil {
		return
	}
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err = cmd.Run(); err != nil {
		return g.rejected(err, output.Bytes(), t.Diagnostics)
	}
	if output.Len() > 0 {
		c := NewCollector()
		ParseDiagnostics(output.Bytes(), c)
		for _, d := range c.Diagnostics() {
			d.Severity = SevWarning
			t.Diagnostics.Report(d)
		}
	}
	var lk *goloader.Linker
	if lk, err = goloader.ReadObj(obj, t.Unit.Package); err != nil {
		return false, fmt.Errorf("read object of %s: %w", t.Unit.Name, err)
	}
	if err = goloader.Serialize(lk, t.Output.Output(t.Unit.Name, KindLinkable)); err != nil {
		return false, fmt.Errorf("serialize %s: %w", t.Unit.Name, err)
	}
	return true, nil
}

// rejected turns a failed go command into diagnostics, errors other than a non-zero exit are returned as is.
func (g *GoToolchain) rejected(err error, out []byte, c *Collector) (bool, error) {
	var ee *exec.ExitError
	if !errors.As(err, &ee) {
		return false, err
	}
	if len(out) == 0 {
		out = ee.Stderr
	}
	ParseDiagnostics(out, c)
	if c.Len() == 0 {
		c.Report(Diagnostic{Severity: SevError, Message: err.Error()})
	}
	return false, nil
}

// Imports generate importcfg content for the imports, resolved inside the module directory.
// The output of the go command is returned with the error when it fails.
func (g *GoToolchain) Imports(ctx context.Context, imports []string) ([]byte, error) {
	cmd, err := g.command(ctx, g.ModuleDir, append([]string{"list", "-export", "-deps", "-f", importcfgFormat, "std"}, imports...)...)
	if err != nil {
		return nil, err
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return stderr.Bytes(), err
	}
	return out, nil
}
