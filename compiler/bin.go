package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ZenLiuCN/dyncc"
	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := cli.NewApp()
	app.Usage = "runtime go unit compiler"
	app.Name = "Compiler"
	app.Description = "compile go source units and load them into the running process"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, EnvVars: []string{"DYNCC_DEBUG"}},
		&cli.PathFlag{Name: "config", Aliases: []string{"f"}, EnvVars: []string{"DYNCC_CONFIG"}, Usage: "TOML configuration file"},
		&cli.PathFlag{Name: "module", Aliases: []string{"m"}, EnvVars: []string{"DYNCC_MODULE"}, Usage: "module directory resolving imports of units"},
		&cli.StringFlag{Name: "go", EnvVars: []string{"DYNCC_GO"}, Usage: "go command"},
		&cli.StringFlag{Name: "locale", Aliases: []string{"l"}, EnvVars: []string{"DYNCC_LOCALE"}, Usage: "locale of messages"},
		&cli.StringFlag{Name: "package", Aliases: []string{"p"}, EnvVars: []string{"DYNCC_PACKAGE"}, Usage: "package of units without package clause"},
	}
	app.Commands = []*cli.Command{
		{
			Name:   "compile",
			Action: compile,
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "new", Aliases: []string{"n"}, Usage: "construct an instance and print it"},
				&cli.BoolFlag{Name: "dump", Aliases: []string{"s"}, Usage: "dump the constructed instance"},
				&cli.BoolFlag{Name: "symbols", Aliases: []string{"y"}, Usage: "print the symbols of the class"},
			},
			Args:  true,
			Usage: "compile and load go sources, each one named as <identifier>.go",
		},
		{
			Name:   "check",
			Action: check,
			Args:   true,
			Usage:  "compile go sources without loading them, print diagnostics",
		},
		{
			Name:   "imports",
			Action: imports,
			Args:   true,
			Usage:  "display imports of compiled go sources",
		},
		{
			Name:   "prepare",
			Action: prepare,
			Usage:  "copy internals of go sdk",
		},
		{
			Name:   "clean",
			Action: clean,
			Usage:  "remove copied internals of go sdk",
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("failure %s", err)
	}
}

func newLogger(ctx *cli.Context) *zap.Logger {
	if ctx.Bool("debug") {
		if l, err := zap.NewDevelopment(); err == nil {
			return l
		}
	}
	return zap.NewNop()
}

func newCompiler(ctx *cli.Context) (c *dyncc.Compiler, err error) {
	var cfg dyncc.Config
	if p := ctx.Path("config"); p != "" {
		if cfg, err = dyncc.LoadConfig(p); err != nil {
			return
		}
	}
	if v := ctx.Path("module"); v != "" {
		cfg.Toolchain.ModuleDir = v
	}
	if v := ctx.String("go"); v != "" {
		cfg.Toolchain.Go = v
	}
	if v := ctx.String("locale"); v != "" {
		cfg.Compiler.Locale = v
	}
	if v := ctx.String("package"); v != "" {
		cfg.Compiler.DefaultPackage = v
	}
	l := newLogger(ctx)
	dyncc.SetLogger(l)
	var opts []dyncc.Option
	if opts, err = cfg.Options(l); err != nil {
		return
	}
	return dyncc.NewCompiler(opts...), nil
}

func sources(ctx *cli.Context) ([]string, error) {
	o := ctx.Args().Slice()
	if len(o) == 0 {
		return nil, fmt.Errorf("missing target sources list")
	}
	return o, nil
}

// report prints the diagnostics of a failed compilation in color.
func report(err error) error {
	var e *dyncc.Error
	if !errors.As(err, &e) || len(e.Diagnostics) == 0 {
		return err
	}
	red := color.New(color.FgRed, color.Bold)
	for _, d := range e.Diagnostics {
		_, _ = red.Fprint(os.Stderr, d.Severity.String())
		_, _ = fmt.Fprintf(os.Stderr, " %s\n", d)
	}
	return fmt.Errorf("%s: %w", e.Location, dyncc.ErrCompilationFailed)
}

func compile(ctx *cli.Context) (err error) {
	var o []string
	if o, err = sources(ctx); err != nil {
		return
	}
	var c *dyncc.Compiler
	if c, err = newCompiler(ctx); err != nil {
		return
	}
	green := color.New(color.FgGreen)
	for _, s := range o {
		var cls *dyncc.Class
		if cls, err = c.Compile(ctx.Context, s); err != nil {
			return report(err)
		}
		_, _ = green.Printf("%s", cls.Name())
		fmt.Printf(" <= %s\n", s)
		if ctx.Bool("symbols") {
			for _, sym := range cls.Symbols() {
				if strings.HasPrefix(sym, cls.Package()+".") {
					fmt.Printf("\t%s\n", sym)
				}
			}
		}
		if ctx.Bool("new") || ctx.Bool("dump") {
			var v any
			if v, err = dyncc.New[any](cls); err != nil {
				cls.Free()
				return
			}
			if ctx.Bool("dump") {
				sp := spew.NewDefaultConfig()
				sp.MaxDepth = 5
				sp.Dump(v)
			} else {
				fmt.Printf("\t%+v\n", v)
			}
		}
		cls.Free()
	}
	return
}

func check(ctx *cli.Context) (err error) {
	var o []string
	if o, err = sources(ctx); err != nil {
		return
	}
	var c *dyncc.Compiler
	if c, err = newCompiler(ctx); err != nil {
		return
	}
	yellow := color.New(color.FgYellow)
	for _, s := range o {
		var u *dyncc.Unit
		if u, err = c.Build(ctx.Context, s); err != nil {
			return report(err)
		}
		for _, d := range u.Diagnostics {
			_, _ = yellow.Fprintf(os.Stderr, "%s %s\n", d.Severity, d)
		}
		fmt.Printf("%s ok\n", u.Source.Name)
	}
	return
}

func imports(ctx *cli.Context) (err error) {
	var o []string
	if o, err = sources(ctx); err != nil {
		return
	}
	var c *dyncc.Compiler
	if c, err = newCompiler(ctx); err != nil {
		return
	}
	for _, s := range o {
		var u *dyncc.Unit
		if u, err = c.Build(ctx.Context, s); err != nil {
			return report(err)
		}
		a, ok := u.Manager.Artifact(u.Source.Name)
		if !ok {
			return fmt.Errorf("%s: %w", s, dyncc.ErrClassNotFound)
		}
		var v dyncc.Infos
		if v, err = dyncc.ArtifactImports(a); err != nil {
			return
		}
		fmt.Print(v.String())
	}
	return
}

func clean(ctx *cli.Context) (err error) {
	l := newLogger(ctx)
	dir := os.ExpandEnv("$GOROOT/src/cmd/objfile")
	l.Debug("clean go sdk", zap.String("dir", dir))
	if _, err = os.Stat(dir); err == nil {
		err = os.RemoveAll(dir)
		l.Debug("removed", zap.String("dir", dir), zap.Error(err))
	} else if os.IsNotExist(err) {
		err = nil
		l.Debug("did nothing", zap.String("dir", dir))
	}
	return
}

func prepare(ctx *cli.Context) (err error) {
	l := newLogger(ctx)
	src := os.ExpandEnv("$GOROOT/src/cmd/internal")
	dir := os.ExpandEnv("$GOROOT/src/cmd/objfile")
	l.Debug("prepare go sdk", zap.String("src", src), zap.String("dir", dir))
	if _, err = os.Stat(dir); err != nil && os.IsNotExist(err) {
		err = dyncc.CopyDir(src, dir, nil)
		l.Debug("copied", zap.String("src", src), zap.String("dir", dir), zap.Error(err))
	} else {
		l.Debug("did nothing", zap.String("dir", dir))
	}
	return
}
