package bot

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Registry manages module registration and interaction lookup.
type Registry struct {
	mu         sync.RWMutex
	modules    []Module
	commands   map[string]Command
	components []Component
}

// NewRegistry creates a new registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds a module. Command names and component prefixes must be unique.
func (r *Registry) Register(m Module) error {
	if m == nil {
		return fmt.Errorf("cannot register nil module")
	}
	if m.Name() == "" {
		return fmt.Errorf("module name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.modules {
		if existing.Name() == m.Name() {
			return fmt.Errorf("module %s already registered", m.Name())
		}
	}
	cmds := m.Commands()
	for _, c := range cmds {
		if c.Definition == nil || c.Definition.Name == "" {
			return fmt.Errorf("module %s: command without a name", m.Name())
		}
		if _, ok := r.commands[c.Definition.Name]; ok {
			return fmt.Errorf("module %s: command %s already registered", m.Name(), c.Definition.Name)
		}
	}
	comps := m.Components()
	for _, c := range comps {
		if c.Prefix == "" {
			return fmt.Errorf("module %s: component prefix cannot be empty", m.Name())
		}
		for _, existing := range r.components {
			if strings.HasPrefix(c.Prefix, existing.Prefix) || strings.HasPrefix(existing.Prefix, c.Prefix) {
				return fmt.Errorf("module %s: component prefix %q overlaps %q", m.Name(), c.Prefix, existing.Prefix)
			}
		}
	}

	for _, c := range cmds {
		r.commands[c.Definition.Name] = c
	}
	r.components = append(r.components, comps...)
	r.modules = append(r.modules, m)
	return nil
}

// Command looks up a slash command by name.
func (r *Registry) Command(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.commands[name]
	return c, ok
}

// Component finds the handler for a custom id.
func (r *Registry) Component(customID string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.components {
		if strings.HasPrefix(customID, c.Prefix) {
			return c.Handler, true
		}
	}
	return nil, false
}

// Definitions returns every command definition, sorted by name.
func (r *Registry) Definitions() []*discordgo.ApplicationCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]*discordgo.ApplicationCommand, 0, len(r.commands))
	for _, c := range r.commands {
		defs = append(defs, c.Definition)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Modules returns the registered modules in registration order.
func (r *Registry) Modules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Module(nil), r.modules...)
}

// Names returns the registered module names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.modules))
	for _, m := range r.modules {
		names = append(names, m.Name())
	}
	return names
}
