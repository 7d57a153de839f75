package pool

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/ZenLiuCN/dyncc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct{ gen int }

func (s sample) Name() string   { return "sample" }
func (s sample) Action() string { return strings.Repeat("x", s.gen) }

func newFirst() any  { return sample{gen: 1} }
func newSecond() any { return sample{gen: 2} }

type toolchain struct{}

func (toolchain) Version(context.Context) (string, error) { return "go1.22.0", nil }

func (toolchain) Compile(_ context.Context, t *dyncc.Task) (bool, error) {
	if strings.Contains(string(t.Unit.Content()), "broken") {
		t.Diagnostics.Report(dyncc.Diagnostic{Severity: dyncc.SevError, Message: "broken"})
		return false, nil
	}
	_, err := t.Output.Output(t.Unit.Name, dyncc.KindLinkable).Write(t.Unit.Content())
	return err == nil, err
}

type linker struct {
	mu    sync.Mutex
	gen   int
	fail  int // generation from which linking fails, none when zero
	freed map[string]int
}

var errLink = errors.New("link failed")

func (l *linker) Link(a *dyncc.Artifact) (*dyncc.Class, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	if l.fail > 0 && l.gen >= l.fail {
		return nil, errLink
	}
	ctor := newFirst
	if l.gen%2 == 0 {
		ctor = newSecond
	}
	name := a.Name()
	i := strings.LastIndexByte(name, '.')
	return dyncc.NewClass(name, dyncc.Symbols{
		name[:i] + ".New" + name[i+1:]: reflect.ValueOf(ctor).Pointer(),
	}, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.freed[name]++
	}), nil
}

func setup(t *testing.T) (*Pool, *linker, string) {
	dir := t.TempDir()
	for name, text := range map[string]string{
		"Alpha.go":  "package sample\n",
		"Beta.go":   "package sample\n",
		"Broken.go": "package sample\n// broken\n",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644))
	}
	l := &linker{freed: make(map[string]int)}
	c := dyncc.NewCompiler(
		dyncc.WithToolchain(toolchain{}),
		dyncc.WithLinker(l),
		dyncc.WithParent(dyncc.HostLoader(dyncc.Symbols{})),
		dyncc.WithHostMatch(false),
	)
	return New(c), l, dir
}

func TestPoolLoad(t *testing.T) {
	p, _, dir := setup(t)
	ctx := context.Background()
	c, err := p.Load(ctx, filepath.Join(dir, "Alpha.go"))
	require.NoError(t, err)
	assert.Equal(t, "sample.Alpha", c.Name())
	_, err = p.Load(ctx, filepath.Join(dir, "Alpha.go"))
	assert.ErrorIs(t, err, ErrAlreadyLoad)

	r, err := p.Require("sample.Alpha")
	require.NoError(t, err)
	assert.Same(t, c, r)
	l, ok := p.Location("sample.Alpha")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "Alpha.go"), l)
	_, err = p.Require("sample.Beta")
	assert.ErrorIs(t, err, ErrNotLoad)

	v, err := dyncc.New[dyncc.Proto](c)
	require.NoError(t, err)
	assert.Equal(t, "x", v.Action())
}

func TestPoolLoadAll(t *testing.T) {
	p, _, dir := setup(t)
	ctx := context.Background()
	v, err := p.LoadAll(ctx, filepath.Join(dir, "Alpha.go"), filepath.Join(dir, "Beta.go"))
	require.NoError(t, err)
	require.Len(t, v, 2)
	assert.Equal(t, "sample.Alpha", v[0].Name())
	assert.Equal(t, "sample.Beta", v[1].Name())
	assert.Equal(t, []string{"sample.Alpha", "sample.Beta"}, p.Names())

	p, _, dir = setup(t)
	_, err = p.LoadAll(ctx, filepath.Join(dir, "Alpha.go"), filepath.Join(dir, "Broken.go"))
	assert.ErrorIs(t, err, dyncc.ErrCompilationFailed)
	assert.Empty(t, p.Names())
}

func TestPoolReload(t *testing.T) {
	p, l, dir := setup(t)
	ctx := context.Background()
	_, err := p.Reload(ctx, filepath.Join(dir, "Alpha.go"))
	assert.ErrorIs(t, err, ErrNotLoad)

	old, err := p.Load(ctx, filepath.Join(dir, "Alpha.go"))
	require.NoError(t, err)
	c, err := p.Reload(ctx, filepath.Join(dir, "Alpha.go"))
	require.NoError(t, err)
	assert.NotSame(t, old, c)
	assert.Equal(t, 1, l.freed["sample.Alpha"])
	_, ok := old.Fetch("NewAlpha")
	assert.False(t, ok)

	v, err := dyncc.New[dyncc.Proto](c)
	require.NoError(t, err)
	assert.Equal(t, "xx", v.Action())
}

func TestPoolClose(t *testing.T) {
	p, l, dir := setup(t)
	ctx := context.Background()
	_, err := p.LoadAll(ctx, filepath.Join(dir, "Alpha.go"), filepath.Join(dir, "Beta.go"))
	require.NoError(t, err)
	p.Close()
	assert.Equal(t, map[string]int{"sample.Alpha": 1, "sample.Beta": 1}, l.freed)
	assert.Empty(t, p.Names())
	_, err = p.Load(ctx, filepath.Join(dir, "Alpha.go"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPoolReloadKeepsClassOnLinkFailure(t *testing.T) {
	p, l, dir := setup(t)
	ctx := context.Background()
	old, err := p.Load(ctx, filepath.Join(dir, "Alpha.go"))
	require.NoError(t, err)
	l.fail = 2
	_, err = p.Reload(ctx, filepath.Join(dir, "Alpha.go"))
	assert.ErrorIs(t, err, dyncc.ErrClassResolutionFailed)
	assert.ErrorIs(t, err, errLink)

	c, err := p.Require("sample.Alpha")
	require.NoError(t, err)
	assert.Same(t, old, c)
	assert.Zero(t, l.freed["sample.Alpha"])
	v, err := dyncc.New[dyncc.Proto](c)
	require.NoError(t, err)
	assert.Equal(t, "x", v.Action())
}

func TestPoolReloadKeepsClassOnCompileFailure(t *testing.T) {
	p, l, dir := setup(t)
	ctx := context.Background()
	old, err := p.Load(ctx, filepath.Join(dir, "Alpha.go"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Alpha.go"), []byte("package sample\n// broken\n"), 0o644))
	_, err = p.Reload(ctx, filepath.Join(dir, "Alpha.go"))
	assert.ErrorIs(t, err, dyncc.ErrCompilationFailed)
	c, err := p.Require("sample.Alpha")
	require.NoError(t, err)
	assert.Same(t, old, c)
	assert.Zero(t, l.freed["sample.Alpha"])
}
