package dyncc

import (
	"fmt"
	"os"
	"sync"

	"github.com/pkujhd/goloader"
	"go.uber.org/zap"
)

// linkMu serializes every change of the runtime module list.
var linkMu sync.Mutex

// GoLinker defines artifacts as goloader code modules against a fresh copy of the host symbols.
type GoLinker struct {
	Types []any // types registered for this linker only
	Sync  bool  // sync stdout before unloading
	Log   *zap.Logger
}

func (l *GoLinker) logger() *zap.Logger {
	if l.Log == nil {
		return Logger()
	}
	return l.Log
}

// Link an Artifact of KindLinkable.
func (l *GoLinker) Link(a *Artifact) (c *Class, err error) {
	if a.Kind() != KindLinkable {
		return nil, fmt.Errorf("link %s: unsupported artifact kind %s", a.Name(), a.Kind())
	}
	var lk *goloader.Linker
	if lk, err = goloader.UnSerialize(a.Reader()); err != nil {
		return nil, fmt.Errorf("read linkable %s: %w", a.Name(), err)
	}
	var syms Symbols
	if syms, err = NewSymbols(l.Types...); err != nil {
		return nil, err
	}
	if missing := goloader.UnresolvedSymbols(lk, syms); len(missing) > 0 {
		l.logger().Debug("unresolved symbols", zap.String("name", a.Name()), zap.Strings("symbols", missing))
	}
	var module *goloader.CodeModule
	linkMu.Lock()
	module, err = goloader.Load(lk, syms)
	linkMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", a.Name(), err)
	}
	l.logger().Debug("create module", zap.String("name", a.Name()), zap.Int("symbols", len(module.Syms)))
	flush := l.Sync
	return NewClass(a.Name(), module.Syms, func() {
		if flush {
			_ = os.Stdout.Sync()
		}
		linkMu.Lock()
		defer linkMu.Unlock()
		module.Unload()
	}), nil
}
