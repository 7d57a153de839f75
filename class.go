package dyncc

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"unsafe"

	"github.com/ZenLiuCN/dyncc/messages"
)

type (
	//Sym is the entry address of a resolved symbol.
	Sym uintptr
	// Class is the type descriptor of a loaded unit.
	//
	// Use Steps:
	//
	//	1. Obtain it from [Compiler.Compile] or a [Loader].
	//	2. Construct instances with [New] or fetch symbols with [Class.Fetch] and [As].
	//	3. Call [Class.Free] once nothing created from it is in use.
	//
	// Note:
	//
	//	Values and functions obtained from a Class must not be used after Free.
	Class struct {
		name   string
		pkg    string
		simple string
		syms   Symbols
		diags  []Diagnostic
		msgs   *messages.Store
		mu     sync.Mutex
		free   func()
		freed  bool
	}
)

// NewClass named <package>.<simple> over resolved symbols, for [Linker] implementations.
// free is called once by [Class.Free], it may be nil.
func NewClass(name string, syms Symbols, free func()) *Class {
	c := &Class{name: name, syms: syms, free: free}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		c.pkg, c.simple = name[:i], name[i+1:]
	} else {
		c.pkg, c.simple = "main", name
	}
	return c
}

func hostClass(name string, syms Symbols) *Class {
	return NewClass(name, syms, nil)
}

func (c *Class) Name() string    { return c.name }
func (c *Class) Package() string { return c.pkg }
func (c *Class) Simple() string  { return c.simple }

// Diagnostics the toolchain reported while compiling a successful unit.
func (c *Class) Diagnostics() []Diagnostic { return c.diags }

// Constructor is the symbol of the function building instances, New + simple name.
func (c *Class) Constructor() string {
	return c.pkg + ".New" + c.simple
}

// Symbols dump names of all symbols of the class, sorted.
func (c *Class) Symbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.freed {
		return nil
	}
	v := c.syms.Names()
	sort.Strings(v)
	return v
}

func (c *Class) isFreed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freed
}

func (c *Class) store() *messages.Store {
	if c.msgs == nil {
		return messages.Default()
	}
	return c.msgs
}

func (c *Class) qualify(sym string) string {
	if strings.IndexByte(sym, '.') < 0 {
		return c.pkg + "." + sym
	}
	return sym
}

// Fetch a symbol, names without package are looked up inside the package of the class.
func (c *Class) Fetch(sym string) (u Sym, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.freed {
		return
	}
	var p uintptr
	p, ok = c.syms[c.qualify(sym)]
	return Sym(p), ok
}

// MustFetch a symbol, panics with ErrFreed or ErrMissingSymbol.
func (c *Class) MustFetch(sym string) Sym {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.freed {
		panic(ErrFreed)
	}
	p, ok := c.syms[c.qualify(sym)]
	if !ok {
		panic(fmt.Errorf("%w: %s", ErrMissingSymbol, c.qualify(sym)))
	}
	return Sym(p)
}

// Free unloads the code of the class. Calling it more than once is harmless.
func (c *Class) Free() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.freed {
		return
	}
	c.freed = true
	if c.free != nil {
		c.free()
	}
	c.syms = nil
}

// As convert fetched Sym to a function type.
func As[T any](s Sym) (x T) {
	p := new(uintptr)
	*p = uintptr(s)
	f := unsafe.Pointer(p)
	return *(*T)(unsafe.Pointer(&f))
}

// New constructs an instance through the constructor of the class and checks it is a T.
//
// The unit must declare
//
//	func New<Simple>() any
//
// A missing constructor or a freed class fails with ErrClassResolutionFailed, a value that is not a T with ErrIncompatible.
// A panic inside the constructor is returned as error.
func New[T any](c *Class) (t T, err error) {
	ctor := c.Constructor()
	if c.isFreed() {
		err = newError(KindClassResolutionFailed, c.name, ctor, ErrFreed)
		return
	}
	s, ok := c.Fetch(ctor)
	if !ok {
		err = newError(KindClassResolutionFailed, c.name, c.store().Get("class.constructor", ctor), ErrMissingSymbol)
		return
	}
	var v any
	func() {
		defer func() {
			switch y := recover().(type) {
			case nil:
			case error:
				err = y
			default:
				err = fmt.Errorf("%v", y)
			}
		}()
		v = As[func() any](s)()
	}()
	if err != nil {
		return
	}
	t, ok = v.(T)
	if !ok {
		err = fmt.Errorf("%w: %s", ErrIncompatible,
			c.store().Get("class.incompatible", c.name, fmt.Sprintf("%T", v), reflect.TypeFor[T]().String()))
	}
	return
}

// Use create a function to construct and use an instance on the fly
func Use[T any](c *Class) func(func(t T, err error)) {
	return func(f func(t T, err error)) {
		f(New[T](c))
	}
}
