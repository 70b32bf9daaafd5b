package condition

import (
	"fmt"
	"sort"
)

// Active tracks one applied status effect.
type Active struct {
	Def    *Def
	Stacks int
	// RoundsRemaining is -1 for permanent effects.
	RoundsRemaining int
}

// ActiveSet tracks the status effects currently applied to one combatant.
// It is not safe for concurrent use; the caller must serialise access.
type ActiveSet struct {
	effects map[string]*Active
}

// NewActiveSet creates an empty ActiveSet.
func NewActiveSet() *ActiveSet {
	return &ActiveSet{effects: make(map[string]*Active)}
}

// Apply adds def or refreshes it if already present.
//
// Precondition: def must not be nil.
// Postcondition: Has(def.ID); stacks grow on re-apply up to MaxStacks (1 when
// unstackable); RoundsRemaining becomes max(existing, rounds). Permanent effects
// always store -1.
func (s *ActiveSet) Apply(def *Def, stacks, rounds int) error {
	if def == nil {
		return fmt.Errorf("condition: Apply: def must not be nil")
	}
	if stacks < 1 {
		stacks = 1
	}
	if def.DurationType == DurationPermanent {
		rounds = -1
	}
	limit := def.MaxStacks
	if limit == 0 {
		limit = 1
	}

	a, ok := s.effects[def.ID]
	if !ok {
		s.effects[def.ID] = &Active{Def: def, Stacks: min(stacks, limit), RoundsRemaining: rounds}
		return nil
	}
	a.Stacks = min(a.Stacks+stacks, limit)
	if rounds > a.RoundsRemaining {
		a.RoundsRemaining = rounds
	}
	return nil
}

// Remove deletes the effect with id. Removing an absent effect is a no-op.
func (s *ActiveSet) Remove(id string) {
	delete(s.effects, id)
}

// Tick decrements every round-limited effect and drops those that reach zero.
//
// Postcondition: every returned id is no longer present; permanent effects are untouched.
func (s *ActiveSet) Tick() []string {
	var expired []string
	for id, a := range s.effects {
		if a.RoundsRemaining < 0 {
			continue
		}
		a.RoundsRemaining--
		if a.RoundsRemaining <= 0 {
			expired = append(expired, id)
			delete(s.effects, id)
		}
	}
	sort.Strings(expired)
	return expired
}

// Has reports whether the effect with id is active.
func (s *ActiveSet) Has(id string) bool {
	_, ok := s.effects[id]
	return ok
}

// Stacks returns the stack count for id, or 0.
func (s *ActiveSet) Stacks(id string) int {
	if a, ok := s.effects[id]; ok {
		return a.Stacks
	}
	return 0
}

// Len returns the number of active effects.
func (s *ActiveSet) Len() int {
	return len(s.effects)
}

// All returns the active effects sorted by ID. Callers must not modify them.
func (s *ActiveSet) All() []*Active {
	out := make([]*Active, 0, len(s.effects))
	for _, a := range s.effects {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Def.ID < out[j].Def.ID })
	return out
}
