package dyncc

import (
	"context"
	"reflect"
	"strings"
	"sync"
)

type testSample struct{}

func (testSample) Test() bool { return true }

func newTestSample() any { return testSample{} }

func newBroken() any { panic("broken constructor") }

type fakeToolchain struct {
	mu         sync.Mutex
	version    string
	err        error
	reject     []Diagnostic
	skipOutput bool
	units      []*SourceUnit
}

func (f *fakeToolchain) Version(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.version == "" {
		return "go1.22.0", nil
	}
	return f.version, nil
}

func (f *fakeToolchain) Compile(_ context.Context, t *Task) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.units = append(f.units, t.Unit)
	if len(f.reject) > 0 {
		for _, d := range f.reject {
			t.Diagnostics.Report(d)
		}
		return false, nil
	}
	if !f.skipOutput {
		if _, err := t.Output.Output(t.Unit.Name, KindLinkable).Write(t.Unit.Content()); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (f *fakeToolchain) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.units)
}

type fakeLinker struct {
	mu    sync.Mutex
	links int
	freed int
	ctor  any
}

func (l *fakeLinker) Link(a *Artifact) (*Class, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.links++
	name := a.Name()
	i := strings.LastIndexByte(name, '.')
	ctor := l.ctor
	if ctor == nil {
		ctor = newTestSample
	}
	syms := Symbols{name[:i] + ".New" + name[i+1:]: reflect.ValueOf(ctor).Pointer()}
	return NewClass(name, syms, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.freed++
	}), nil
}

func newTestCompiler(t *fakeToolchain, l *fakeLinker, opts ...Option) *Compiler {
	return NewCompiler(append([]Option{
		WithToolchain(t),
		WithLinker(l),
		WithParent(HostLoader(Symbols{})),
		WithHostMatch(false),
	}, opts...)...)
}
