package loader

import (
	"sync"

	"grantku_backend/internals/features/payment/widget"
)

// Globals adalah "window" proses: nama global → kapabilitas widget yang
// sudah didefinisikan oleh script vendor.
type Globals struct {
	mu   sync.RWMutex
	defs map[string]widget.Widget
}

func NewGlobals() *Globals {
	return &Globals{defs: map[string]widget.Widget{}}
}

func (g *Globals) Define(name string, w widget.Widget) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.defs[name] = w
}

func (g *Globals) Lookup(name string) (widget.Widget, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	w, ok := g.defs[name]
	return w, ok && w != nil
}
