package probe

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/apihub/hub/pkg/errmodel"
	"github.com/apihub/hub/pkg/flows"
)

// Registry keeps probes by name. Unlike a process-global table, a registry
// is built per server so tests can wire independent sets.
type Registry struct {
	mu     sync.RWMutex
	probes map[string]Probe
}

func NewRegistry() *Registry { return &Registry{probes: map[string]Probe{}} }

// Register adds a probe under its descriptor name.
func (r *Registry) Register(p Probe) error {
	if p == nil {
		return fmt.Errorf("probe is nil")
	}
	d := p.Describe()
	if d.Name == "" {
		return fmt.Errorf("probe name is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.probes[d.Name]; exists {
		return fmt.Errorf("probe %q already registered", d.Name)
	}
	r.probes[d.Name] = p
	return nil
}

// Resolve returns a probe by name.
func (r *Registry) Resolve(name string) (Probe, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.probes[name]
	return p, ok
}

// Names lists registered probe names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.probes))
	for n := range r.probes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// SafeRun validates input against the probe's schema, runs it, and validates
// output. Permission checks are passed in by the caller via allowed set;
// missing permissions cause a policy error.
func SafeRun(ctx context.Context, p Probe, args map[string]any, allowed map[string]bool, validate flows.ValidateFunc) (map[string]any, error) {
	if p == nil {
		return nil, errmodel.Validation("bad_probe", "probe is nil", nil)
	}
	d := p.Describe()
	for _, perm := range d.Permissions {
		if !allowed[perm.Name] {
			return nil, errmodel.Policy("forbidden", "permission denied for probe", map[string]any{"permission": perm.Name, "probe": d.Name})
		}
	}
	if err := validate(d.InputSchema, args); err != nil {
		return nil, errmodel.Validation("invalid_input", "probe input validation failed", map[string]any{"probe": d.Name, "error": err.Error()})
	}
	out, err := p.Run(ctx, args)
	if err != nil {
		return nil, err
	}
	if err := validate(d.OutputSchema, out); err != nil {
		return nil, errmodel.Validation("invalid_output", "probe output validation failed", map[string]any{"probe": d.Name, "error": err.Error()})
	}
	return out, nil
}
