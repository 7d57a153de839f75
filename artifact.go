package dyncc

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ArtifactKind tells what bytes an Artifact holds.
type ArtifactKind uint8

const (
	KindObject   ArtifactKind = iota // a go object file
	KindLinkable                     // a serialized goloader linker
)

func (k ArtifactKind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindLinkable:
		return "linkable"
	}
	return "unknown"
}

type (
	// OutputSink receives every compiled output of the toolchain.
	OutputSink interface {
		Output(name string, kind ArtifactKind) io.Writer
	}
	// Loader resolves names to classes.
	Loader interface {
		Resolve(name string) (*Class, error)
	}
	// Linker materializes an Artifact into a live Class.
	Linker interface {
		Link(a *Artifact) (*Class, error)
	}
	// Artifact is the in memory output of the toolchain for one name.
	Artifact struct {
		name  string
		kind  ArtifactKind
		buf   bytes.Buffer
		class *Class
	}
	// Manager keeps the artifacts of one compilation and the loader defining them.
	Manager struct {
		mu        sync.Mutex
		artifacts map[string]*Artifact
		linker    Linker
		parent    Loader
		loader    *artifactLoader
		log       *zap.Logger
	}
	artifactLoader struct {
		m *Manager
	}
)

func (a *Artifact) Name() string       { return a.name }
func (a *Artifact) Kind() ArtifactKind { return a.kind }

// Write appends to the buffer of the artifact.
func (a *Artifact) Write(p []byte) (int, error) {
	return a.buf.Write(p)
}

// Bytes written so far, must not be modified.
func (a *Artifact) Bytes() []byte {
	return a.buf.Bytes()
}

// Reader over the written bytes.
func (a *Artifact) Reader() io.Reader {
	return bytes.NewReader(a.buf.Bytes())
}

// NewManager with the linker to define artifacts and the parent to resolve everything else.
// A nil parent resolves nothing.
func NewManager(linker Linker, parent Loader, log *zap.Logger) *Manager {
	if log == nil {
		log = Logger()
	}
	return &Manager{
		artifacts: make(map[string]*Artifact),
		linker:    linker,
		parent:    parent,
		log:       log,
	}
}

// Output registers a fresh artifact for name and returns it as write target.
func (m *Manager) Output(name string, kind ArtifactKind) io.Writer {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := &Artifact{name: name, kind: kind}
	m.artifacts[name] = a
	m.log.Debug("output artifact", zap.String("name", name), zap.Stringer("kind", kind))
	return a
}

// Artifact registered under name.
func (m *Manager) Artifact(name string) (a *Artifact, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok = m.artifacts[name]
	return
}

// Artifacts dump names of all artifacts, sorted.
func (m *Manager) Artifacts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]string, 0, len(m.artifacts))
	for s := range m.artifacts {
		v = append(v, s)
	}
	sort.Strings(v)
	return v
}

// Loader of this manager, the same instance on every call.
func (m *Manager) Loader() Loader {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loader == nil {
		m.loader = &artifactLoader{m: m}
	}
	return m.loader
}

// Free every class defined by this manager.
func (m *Manager) Free() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.artifacts {
		if a.class != nil {
			a.class.Free()
			a.class = nil
		}
	}
}

func (l *artifactLoader) Resolve(name string) (*Class, error) {
	m := l.m
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.artifacts[name]
	if !ok {
		if m.parent == nil {
			return nil, ErrClassNotFound
		}
		return m.parent.Resolve(name)
	}
	if a.class == nil {
		c, err := m.linker.Link(a)
		if err != nil {
			return nil, err
		}
		m.log.Debug("defined class", zap.String("name", name), zap.Int("bytes", a.buf.Len()))
		a.class = c
	} else if a.class.isFreed() {
		return nil, fmt.Errorf("%w: %s", ErrFreed, name)
	}
	return a.class, nil
}
