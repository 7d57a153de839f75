package dyncc

import (
	"context"
	"errors"
	"fmt"
	"go/version"
	"os"
	"runtime"

	"github.com/ZenLiuCN/dyncc/messages"
	"go.uber.org/zap"
)

// MinGoVersion is the oldest toolchain accepted by default.
const MinGoVersion = "go1.21"

type (
	// Compiler compiles go source files and loads them into the running process.
	//
	// A Compiler keeps no state between calls, Compile may be called from many goroutines.
	Compiler struct {
		toolchain      Toolchain
		linker         Linker
		parent         Loader
		messages       *messages.Store
		log            *zap.Logger
		minVersion     string
		defaultPackage string
		hostMatch      bool
		types          []any
	}
	// Option configures a Compiler.
	Option func(c *Compiler)
	// Unit is a compiled but not yet loaded source unit.
	Unit struct {
		Location    string
		Source      *SourceUnit
		Manager     *Manager
		Diagnostics []Diagnostic
		compiler    *Compiler
	}
)

// WithToolchain replace the go command toolchain.
func WithToolchain(t Toolchain) Option { return func(c *Compiler) { c.toolchain = t } }

// WithLinker replace the goloader linker.
func WithLinker(l Linker) Option { return func(c *Compiler) { c.linker = l } }

// WithParent set the loader of names not compiled by a call, the host symbols by default.
func WithParent(l Loader) Option { return func(c *Compiler) { c.parent = l } }

// WithMessages set the message store used for error details.
func WithMessages(s *messages.Store) Option { return func(c *Compiler) { c.messages = s } }

// WithLogger set the logger, the package logger by default.
func WithLogger(l *zap.Logger) Option { return func(c *Compiler) { c.log = l } }

// WithMinVersion set the oldest accepted toolchain, such as go1.22. Check fails on a value that is not a go version.
func WithMinVersion(v string) Option { return func(c *Compiler) { c.minVersion = v } }

// WithDefaultPackage set the package of units without package clause.
func WithDefaultPackage(p string) Option { return func(c *Compiler) { c.defaultPackage = p } }

// WithHostMatch require the toolchain to be the same go release as the running process.
func WithHostMatch(b bool) Option { return func(c *Compiler) { c.hostMatch = b } }

// WithTypes registers types for the default linker.
func WithTypes(t ...any) Option { return func(c *Compiler) { c.types = append(c.types, t...) } }

// NewCompiler with options.
func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{
		minVersion:     MinGoVersion,
		defaultPackage: DefaultPackage,
		hostMatch:      true,
	}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = Logger()
	}
	if c.toolchain == nil {
		c.toolchain = &GoToolchain{Log: c.log}
	}
	if c.linker == nil {
		c.linker = &GoLinker{Types: c.types, Log: c.log}
	}
	if c.messages == nil {
		c.messages = messages.Default()
	}
	return c
}

func (c *Compiler) fail(kind Kind, location, key string, cause error, args ...any) *Error {
	e := newError(kind, location, c.messages.Get(key, args...), cause)
	c.log.Debug("compile failure", zap.String("kind", string(kind)), zap.String("location", location), zap.Error(cause))
	return e
}

func (c *Compiler) parentLoader() Loader {
	if c.parent != nil {
		return c.parent
	}
	h, err := HostSymbols()
	if err != nil {
		c.log.Debug("host symbols unavailable", zap.Error(err))
		return nil
	}
	return HostLoader(h)
}

// Check the toolchain is usable.
func (c *Compiler) Check(ctx context.Context) error {
	if !version.IsValid(c.minVersion) {
		return c.fail(KindUnsupportedToolchainVersion, "", "toolchain.version", fmt.Errorf("invalid minimum version %q", c.minVersion), "?", c.minVersion)
	}
	v, err := c.toolchain.Version(ctx)
	if err != nil {
		return c.fail(KindToolchainUnavailable, "", "toolchain.unavailable", err, err.Error())
	}
	if !version.IsValid(v) || version.Compare(v, c.minVersion) < 0 {
		return c.fail(KindUnsupportedToolchainVersion, "", "toolchain.version", nil, v, c.minVersion)
	}
	if c.hostMatch {
		host := runtime.Version()
		if version.IsValid(host) && version.Lang(host) != version.Lang(v) {
			return c.fail(KindUnsupportedToolchainVersion, "", "toolchain.mismatch", nil, v, host)
		}
	}
	return nil
}

// Build compiles the source file at location without loading it.
func (c *Compiler) Build(ctx context.Context, location string) (u *Unit, err error) {
	if err = c.Check(ctx); err != nil {
		return
	}
	var file, simple string
	if file, err = ResolveLocation(location); err != nil {
		return nil, c.fail(KindInvalidSourceLocation, location, "location.invalid", err, location)
	}
	if simple, err = ClassName(file); err != nil {
		return nil, c.fail(KindInvalidSourceLocation, location, "location.invalid", err, location)
	}
	var text []byte
	if text, err = os.ReadFile(file); err != nil {
		return nil, c.fail(KindInvalidSourceLocation, location, "location.invalid", err, location)
	}
	code, pkg, err := DeclarePackage(text, c.defaultPackage)
	if err != nil {
		return nil, c.fail(KindMalformedPackage, location, "package.malformed", err, location)
	}
	src := NewSourceUnit(pkg, simple, code)
	c.log.Debug("compile unit", zap.String("location", location), zap.String("name", src.Name), zap.String("uri", src.URI()))
	m := NewManager(c.linker, c.parentLoader(), c.log)
	diags := NewCollector()
	ok, err := c.toolchain.Compile(ctx, &Task{Unit: src, Output: m, Diagnostics: diags})
	if err != nil {
		if errors.Is(err, ErrToolchainUnavailable) {
			return nil, c.fail(KindToolchainUnavailable, location, "toolchain.unavailable", err, err.Error())
		}
		return nil, c.fail(KindCompilationFailed, location, "compile.failed", err)
	}
	if !ok {
		e := newError(KindCompilationFailed, location, Render(c.messages.Get("compile.failed"), diags.Diagnostics()), nil)
		e.Diagnostics = diags.Diagnostics()
		c.log.Debug("compile rejected", zap.String("location", location), zap.Int("diagnostics", diags.Len()))
		return nil, e
	}
	return &Unit{Location: location, Source: src, Manager: m, Diagnostics: diags.Diagnostics(), compiler: c}, nil
}

// Load the class of a built unit.
func (u *Unit) Load() (*Class, error) {
	cls, err := u.Manager.Loader().Resolve(u.Source.Name)
	if err != nil {
		return nil, u.compiler.fail(KindClassResolutionFailed, u.Location, "class.unresolved", err, u.Source.Name)
	}
	cls.diags = u.Diagnostics
	cls.msgs = u.compiler.messages
	return cls, nil
}

// Compile the go source file at location, a path or a file URL named <identifier>.go, and load it.
//
// The unit is compiled inside the package of its package clause, or inside the default package
// when it has none. The returned Class is named <package>.<identifier>.
func (c *Compiler) Compile(ctx context.Context, location string) (*Class, error) {
	u, err := c.Build(ctx, location)
	if err != nil {
		return nil, err
	}
	return u.Load()
}
