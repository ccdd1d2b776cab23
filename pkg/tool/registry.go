package tool

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
)

// Registry keeps the mapping between tool names and implementations. It is
// the single dispatch point for model-issued tool calls: whatever goes wrong
// inside, Execute always hands a plain text outcome back to the caller.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register inserts a tool. Registering a name that is already taken replaces
// the previous tool; the collision is logged so silent shadowing shows up in
// operator logs.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool is nil")
	}
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		log.Printf("[tools] %s already registered, overwriting", name)
	}
	r.tools[name] = t
	return nil
}

// Unregister removes a tool by name and reports whether it was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		return false
	}
	delete(r.tools, name)
	return true
}

// Get fetches a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNamesLocked()
}

// List produces a snapshot of all registered tools ordered by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, name := range r.sortedNamesLocked() {
		out = append(out, r.tools[name])
	}
	return out
}

// Len reports the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Definitions returns the wire definitions of every registered tool, ordered
// by name so the model always sees a stable listing.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.tools))
	for _, name := range r.sortedNamesLocked() {
		defs = append(defs, Define(r.tools[name]))
	}
	return defs
}

// Execute dispatches a tool call and always returns a textual outcome. Unknown
// tools, invalid arguments, tool errors, and panics all fold into messages the
// model can read and react to; nothing escapes as an error or a panic.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (out string) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return fmt.Sprintf("Error: Unknown tool '%s'. Available tools: %s...", name, r.nameSample(10))
	}

	if err := CheckArgs(args, t.Schema()); err != nil {
		return fmt.Sprintf("Error: Invalid parameters for tool '%s': %s", name, err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[tools] %s panicked: %v", name, rec)
			out = fmt.Sprintf("Error executing tool %s: %v", name, rec)
		}
	}()

	result, err := t.Execute(ctx, args)
	if err != nil {
		return fmt.Sprintf("Error executing tool %s: %s", name, err)
	}
	return result
}

func (r *Registry) nameSample(limit int) string {
	r.mu.RLock()
	names := r.sortedNamesLocked()
	r.mu.RUnlock()
	if len(names) > limit {
		names = names[:limit]
	}
	return strings.Join(names, ", ")
}

func (r *Registry) sortedNamesLocked() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
