package dyncc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGoLinkerRejectsObject(t *testing.T) {
	m := NewManager(new(GoLinker), nil, nil)
	_, _ = m.Output("sample.A", KindObject).Write([]byte("go object"))
	_, err := m.Loader().Resolve("sample.A")
	assert.ErrorContains(t, err, "unsupported artifact kind")
}

func TestGoLinkerCorruptLinkable(t *testing.T) {
	m := NewManager(new(GoLinker), nil, nil)
	_, _ = m.Output("sample.A", KindLinkable).Write([]byte("not a serialized linker"))
	_, err := m.Loader().Resolve("sample.A")
	assert.ErrorContains(t, err, "read linkable sample.A")
	a, _ := m.Artifact("sample.A")
	assert.Nil(t, a.class)
}
