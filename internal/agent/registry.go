package agent

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jlicht/krikri/internal/harvest"
)

// Factory instantiates an agent from the options stored on its activity.
type Factory func(opts harvest.Options) (SoftwareAgent, error)

// Definition describes a dispatchable agent type.
type Definition struct {
	Name        string
	Aliases     []string
	Queue       string
	Description string
	Schema      harvest.OptionSchema
	Factory     Factory
}

// QueueName returns the definition's default queue.
func (d Definition) QueueName() string {
	if d.Queue != "" {
		return d.Queue
	}
	return DefaultQueue(d.Name)
}

// Registry maps agent names to definitions.
type Registry struct {
	mu      sync.RWMutex
	defs    map[string]Definition
	aliases map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		defs:    make(map[string]Definition),
		aliases: make(map[string]string),
	}
}

// Register adds def. Names and aliases are case-insensitive and must be
// unique.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("registering agent: name is required")
	}
	if def.Factory == nil {
		return fmt.Errorf("registering agent %s: factory is required", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	keys := append([]string{def.Name}, def.Aliases...)
	for _, key := range keys {
		if _, taken := r.aliases[strings.ToLower(key)]; taken {
			return fmt.Errorf("registering agent %s: %q already registered", def.Name, key)
		}
	}
	r.defs[def.Name] = def
	for _, key := range keys {
		r.aliases[strings.ToLower(key)] = def.Name
	}
	return nil
}

// Lookup finds a definition by name or alias.
func (r *Registry) Lookup(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	canonical, ok := r.aliases[strings.ToLower(name)]
	if !ok {
		return Definition{}, false
	}
	return r.defs[canonical], true
}

// Definitions lists registered agents by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Queues lists the default queue of every registered agent.
func (r *Registry) Queues() []string {
	seen := map[string]bool{}
	var out []string
	for _, def := range r.Definitions() {
		q := def.QueueName()
		if !seen[q] {
			seen[q] = true
			out = append(out, q)
		}
	}
	return out
}
