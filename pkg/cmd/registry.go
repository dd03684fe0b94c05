package cmd

import (
	"fmt"
	"sort"
	"sync"

	"github.com/keshon/togglebot/pkg/action"
)

// Registry stores functions by their @namespace/name reference. It does not
// perform dispatch.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds c under its name, replacing any previous entry. The name
// must be a well-formed function reference.
func (r *Registry) Register(c Command) error {
	if _, err := action.ParseFunctionRef(c.Name()); err != nil {
		return fmt.Errorf("register %q: %w", c.Name(), err)
	}
	r.mu.Lock()
	r.commands[c.Name()] = c
	r.mu.Unlock()
	return nil
}

// Get returns the function registered for ref, or nil.
func (r *Registry) Get(ref action.FunctionRef) Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.commands[ref.String()]
}

// GetAll returns all registered functions, sorted by name.
func (r *Registry) GetAll() []Command {
	r.mu.RLock()
	list := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		list = append(list, c)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})
	return list
}
