package npc

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownEnemy is returned when an encounter names no registered template.
var ErrUnknownEnemy = errors.New("npc: unknown enemy")

// EncounterContext is the progression context rewards scale with.
type EncounterContext struct {
	Mile       int
	Difficulty float64
}

// Registry holds enemy templates by ID and the current encounter context.
// All methods are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
	ctx       EncounterContext
}

// NewRegistry creates an empty Registry. A mile below 1 is raised to 1 and a
// non-positive difficulty becomes 1.
func NewRegistry(ctx EncounterContext) *Registry {
	r := &Registry{templates: make(map[string]*Template)}
	r.SetContext(ctx)
	return r
}

// LoadRegistry builds a Registry from every template in dir.
func LoadRegistry(dir string, ctx EncounterContext) (*Registry, error) {
	templates, err := LoadTemplates(dir)
	if err != nil {
		return nil, err
	}
	r := NewRegistry(ctx)
	for _, t := range templates {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds t.
//
// Precondition: t must have passed Validate().
// Postcondition: Returns an error if a template with the same ID exists.
func (r *Registry) Register(t *Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.templates[t.ID]; ok {
		return fmt.Errorf("npc: duplicate template %q", t.ID)
	}
	r.templates[t.ID] = t
	return nil
}

// Template returns the template with id.
func (r *Registry) Template(id string) (*Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	return t, ok
}

// All returns every template sorted by ID.
func (r *Registry) All() []*Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Template, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetContext replaces the encounter context.
func (r *Registry) SetContext(ctx EncounterContext) {
	if ctx.Mile < 1 {
		ctx.Mile = 1
	}
	if ctx.Difficulty <= 0 {
		ctx.Difficulty = 1
	}
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()
}

// Encounter returns the template for id together with the current context.
//
// Postcondition: returns an error wrapping ErrUnknownEnemy iff id is not registered.
func (r *Registry) Encounter(id string) (*Template, EncounterContext, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	if !ok {
		return nil, r.ctx, fmt.Errorf("%w %q", ErrUnknownEnemy, id)
	}
	return t, r.ctx, nil
}
