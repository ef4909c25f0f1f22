package panel

import (
	"sort"
	"sync"
)

// Registry holds the mounted panels by name.
type Registry struct {
	mu     sync.RWMutex
	panels map[string]*Controller
}

func NewRegistry() *Registry {
	return &Registry{panels: make(map[string]*Controller)}
}

func (r *Registry) Register(c *Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panels[c.Name()] = c
}

func (r *Registry) Get(name string) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.panels[name]
	return c, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.panels))
	for name := range r.panels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CloseAll closes every panel, used on shutdown so in-flight responses
// cannot touch state after the server stops.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.panels {
		c.Close()
	}
}
