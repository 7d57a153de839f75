// Package pool holds classes loaded by a Compiler by name, reloading and freeing them.
package pool

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/ZenLiuCN/dyncc"
	"github.com/ZenLiuCN/fn"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Pool struct {
	*dyncc.Compiler
	Classes   map[string]*dyncc.Class
	locations map[string]string
	log       *zap.Logger
	sync.RWMutex
}

var (
	ErrAlreadyLoad = errors.New("class already loaded")
	ErrNotLoad     = errors.New("class not loaded")
	ErrClosed      = errors.New("pool closed")
)

// New create new pool compiling with c
func New(c *dyncc.Compiler) *Pool {
	return &Pool{
		Compiler:  c,
		Classes:   make(map[string]*dyncc.Class),
		locations: make(map[string]string),
		log:       dyncc.Logger(),
	}
}

// Load compile and load the unit at location.
func (p *Pool) Load(ctx context.Context, location string) (c *dyncc.Class, err error) {
	var u *dyncc.Unit
	if u, err = p.Build(ctx, location); err != nil {
		return
	}
	p.Lock()
	defer p.Unlock()
	return p.add(u)
}

func (p *Pool) add(u *dyncc.Unit) (c *dyncc.Class, err error) {
	if p.Classes == nil {
		return nil, ErrClosed
	}
	if _, ok := p.Classes[u.Source.Name]; ok {
		return nil, ErrAlreadyLoad
	}
	if c, err = u.Load(); err != nil {
		return
	}
	p.Classes[u.Source.Name] = c
	p.locations[u.Source.Name] = u.Location
	p.log.Debug("pool load", zap.String("name", u.Source.Name), zap.String("location", u.Location))
	return
}

// LoadAll compile all units concurrently then load them in order of locations.
// Nothing is loaded when any compilation fails.
func (p *Pool) LoadAll(ctx context.Context, locations ...string) (v []*dyncc.Class, err error) {
	units := make([]*dyncc.Unit, len(locations))
	g, gtx := errgroup.WithContext(ctx)
	for i, l := range locations {
		i, l := i, l
		g.Go(func() (err error) {
			units[i], err = p.Build(gtx, l)
			return
		})
	}
	if err = g.Wait(); err != nil {
		return
	}
	p.Lock()
	defer p.Unlock()
	for _, u := range units {
		var c *dyncc.Class
		if c, err = p.add(u); err != nil {
			return
		}
		v = append(v, c)
	}
	return
}

// Reload the unit at location, the class previously loaded under the same name is freed
// once the new one is linked. It is kept when compiling or linking fails.
func (p *Pool) Reload(ctx context.Context, location string) (c *dyncc.Class, err error) {
	var u *dyncc.Unit
	if u, err = p.Build(ctx, location); err != nil {
		return
	}
	p.Lock()
	defer p.Unlock()
	if p.Classes == nil {
		return nil, ErrClosed
	}
	old, ok := p.Classes[u.Source.Name]
	if !ok {
		return nil, ErrNotLoad
	}
	if c, err = u.Load(); err != nil {
		return
	}
	p.Classes[u.Source.Name] = c
	p.locations[u.Source.Name] = u.Location
	old.Free()
	p.log.Debug("pool reload", zap.String("name", u.Source.Name), zap.String("location", u.Location))
	return
}

// Require fetch a loaded class by name
func (p *Pool) Require(name string) (*dyncc.Class, error) {
	p.RLock()
	defer p.RUnlock()
	if c, ok := p.Classes[name]; ok {
		return c, nil
	}
	return nil, ErrNotLoad
}

// Location the class of name was loaded from.
func (p *Pool) Location(name string) (string, bool) {
	p.RLock()
	defer p.RUnlock()
	l, ok := p.locations[name]
	return l, ok
}

// Names of loaded classes, sorted.
func (p *Pool) Names() []string {
	p.RLock()
	defer p.RUnlock()
	v := fn.MapKeys(p.Classes)
	sort.Strings(v)
	return v
}

// Close free all classes, the pool can't be used anymore.
func (p *Pool) Close() {
	p.Lock()
	defer p.Unlock()
	for name, c := range p.Classes {
		c.Free()
		p.log.Debug("pool free", zap.String("name", name))
	}
	p.Classes = nil
	p.locations = nil
}
