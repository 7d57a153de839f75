package dyncc

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type parentLoader map[string]*Class

func (p parentLoader) Resolve(name string) (*Class, error) {
	if c, ok := p[name]; ok {
		return c, nil
	}
	return nil, ErrClassNotFound
}

func TestManagerOutput(t *testing.T) {
	m := NewManager(new(fakeLinker), nil, nil)
	w := m.Output("sample.A", KindLinkable)
	_, err := io.WriteString(w, "hello ")
	require.NoError(t, err)
	_, err = io.WriteString(w, "world")
	require.NoError(t, err)
	a, ok := m.Artifact("sample.A")
	require.True(t, ok)
	assert.Equal(t, "hello world", string(a.Bytes()))
	assert.Equal(t, KindLinkable, a.Kind())
	assert.Equal(t, "sample.A", a.Name())
	b, err := io.ReadAll(a.Reader())
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(b))

	m.Output("sample.B", KindObject)
	m.Output("sample.A", KindLinkable)
	assert.Equal(t, []string{"sample.A", "sample.B"}, m.Artifacts())
	a, _ = m.Artifact("sample.A")
	assert.Empty(t, a.Bytes())
}

func TestManagerLoaderIsShared(t *testing.T) {
	m := NewManager(new(fakeLinker), nil, nil)
	assert.Same(t, m.Loader(), m.Loader())
	assert.NotSame(t, m.Loader(), NewManager(new(fakeLinker), nil, nil).Loader())
}

func TestLoaderResolveIdempotent(t *testing.T) {
	l := new(fakeLinker)
	m := NewManager(l, nil, nil)
	_, _ = m.Output("sample.A", KindLinkable).Write([]byte{1})
	a, err := m.Loader().Resolve("sample.A")
	require.NoError(t, err)
	b, err := m.Loader().Resolve("sample.A")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, l.links)
	m.Free()
	assert.Equal(t, 1, l.freed)
	_, ok := a.Fetch("NewA")
	assert.False(t, ok)
}

func TestLoaderResolveFreed(t *testing.T) {
	l := new(fakeLinker)
	m := NewManager(l, nil, nil)
	_, _ = m.Output("sample.A", KindLinkable).Write([]byte{1})
	a, err := m.Loader().Resolve("sample.A")
	require.NoError(t, err)
	a.Free()
	_, err = m.Loader().Resolve("sample.A")
	assert.ErrorIs(t, err, ErrFreed)
	assert.Equal(t, 1, l.links)
}

func TestLoaderDelegatesToParent(t *testing.T) {
	host := hostClass("fmt", Symbols{"fmt.Sprint": 1})
	m := NewManager(new(fakeLinker), parentLoader{"fmt": host}, nil)
	c, err := m.Loader().Resolve("fmt")
	require.NoError(t, err)
	assert.Same(t, host, c)
	_, err = m.Loader().Resolve("sample.Missing")
	assert.ErrorIs(t, err, ErrClassNotFound)
	_, err = NewManager(new(fakeLinker), nil, nil).Loader().Resolve("fmt")
	assert.ErrorIs(t, err, ErrClassNotFound)
}

func TestHostLoader(t *testing.T) {
	h := HostLoader(Symbols{"strings.ToUpper": 1, "strings.(*Builder).String": 2})
	c, err := h.Resolve("strings")
	require.NoError(t, err)
	assert.Equal(t, "strings", c.Name())
	s, ok := c.Fetch("strings.ToUpper")
	assert.True(t, ok)
	assert.Equal(t, Sym(1), s)
	c, err = h.Resolve("strings.ToUpper")
	require.NoError(t, err)
	assert.Equal(t, "strings", c.Package())
	_, err = h.Resolve("bytes")
	assert.ErrorIs(t, err, ErrClassNotFound)
}

func TestHostLoaderPackage(t *testing.T) {
	c, err := HostLoader(Symbols{"strings.ToUpper": 1}).Resolve("strings")
	require.NoError(t, err)
	assert.Equal(t, "strings", c.Package())
	s, ok := c.Fetch("ToUpper")
	assert.True(t, ok)
	assert.Equal(t, Sym(1), s)
}
