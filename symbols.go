package dyncc

import (
	"maps"
	"strings"
	"sync"

	"github.com/ZenLiuCN/fn"
	"github.com/pkujhd/goloader"
)

type (
	// Symbols is a table of resolved symbol addresses.
	Symbols map[string]uintptr
	// hostLoader resolves names against the symbols of the host executable.
	hostLoader struct {
		syms Symbols
	}
)

var (
	hostOnce = sync.OnceValues(func() (Symbols, error) {
		s := make(Symbols)
		if err := goloader.RegSymbol(s); err != nil {
			return nil, err
		}
		return s, nil
	})
	// global types registered for every Symbols created afterwards
	typesMu sync.Mutex
	types   []any
)

// HostSymbols the symbols of the running executable, must not be modified.
func HostSymbols() (Symbols, error) {
	return hostOnce()
}

// NewSymbols create a Symbols with host symbols and all registered types.
func NewSymbols(extra ...any) (Symbols, error) {
	h, err := HostSymbols()
	if err != nil {
		return nil, err
	}
	s := maps.Clone(h)
	typesMu.Lock()
	t := append(types[:len(types):len(types)], extra...)
	typesMu.Unlock()
	if len(t) > 0 {
		goloader.RegTypes(s, t...)
	}
	return s, nil
}

// RegisterTypes used by compiled units but not referenced by the host code.
// The values should be pointers to the interfaces or the instances of the types.
func RegisterTypes(t ...any) {
	typesMu.Lock()
	defer typesMu.Unlock()
	types = append(types, t...)
}

// Names dump symbol names inside Symbols
func (s Symbols) Names() []string {
	return fn.MapKeys(s)
}

// HostLoader resolves packages or symbols the host executable already has.
func HostLoader(syms Symbols) Loader {
	return hostLoader{syms: syms}
}

func (h hostLoader) Resolve(name string) (*Class, error) {
	if _, ok := h.syms[name]; ok {
		return hostClass(name, h.syms), nil
	}
	prefix := name + "."
	for s := range h.syms {
		if strings.HasPrefix(s, prefix) {
			c := hostClass(name, h.syms)
			c.pkg, c.simple = name, ""
			return c, nil
		}
	}
	return nil, ErrClassNotFound
}
