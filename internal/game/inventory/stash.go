package inventory

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/cory-johannsen/idlecombat/internal/game/combat"
)

// ItemInstance is a concrete item owned by the party. Procedurally generated
// items have no ItemDefID and carry their own name, slot and bonus.
type ItemInstance struct {
	InstanceID string
	ItemDefID  string
	Name       string
	Slot       Slot
	Quality    Quality
	Bonus      combat.Stats
	Quantity   int
}

// FromDef builds a single-quantity instance of d with a fresh ID.
func FromDef(d *ItemDef) ItemInstance {
	return ItemInstance{
		InstanceID: uuid.New().String(),
		ItemDefID:  d.ID,
		Name:       d.Name,
		Slot:       d.Slot,
		Quality:    d.Quality,
		Bonus:      d.Bonus,
		Quantity:   1,
	}
}

// Stash is the party's shared loot container with a slot limit.
// All methods are safe for concurrent use.
type Stash struct {
	mu       sync.Mutex
	maxSlots int
	items    []ItemInstance
}

// NewStash creates a Stash holding at most maxSlots entries.
//
// Precondition: maxSlots >= 0.
func NewStash(maxSlots int) *Stash {
	return &Stash{maxSlots: maxSlots}
}

// AddDrop places quantity units of the registered item defID into the stash.
// Stackable items merge into existing stacks first. It is atomic: if the slot
// limit would be exceeded, no state is modified.
//
// Precondition: quantity > 0.
// Postcondition: on error, stash state is unchanged.
func (s *Stash) AddDrop(defID string, quantity int, reg *Registry) error {
	def, ok := reg.Item(defID)
	if !ok {
		return fmt.Errorf("stash: unknown item %q", defID)
	}
	if quantity <= 0 {
		return fmt.Errorf("stash: quantity must be > 0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !def.Stackable {
		if len(s.items)+quantity > s.maxSlots {
			return fmt.Errorf("stash: not enough slots for %d of %q", quantity, defID)
		}
		for i := 0; i < quantity; i++ {
			s.items = append(s.items, FromDef(def))
		}
		return nil
	}

	// Count how much fits into existing stacks before touching anything.
	remaining := quantity
	for _, it := range s.items {
		if it.ItemDefID == def.ID && it.Quantity < def.MaxStack {
			remaining -= min(remaining, def.MaxStack-it.Quantity)
		}
	}
	newSlots := (remaining + def.MaxStack - 1) / def.MaxStack
	if len(s.items)+newSlots > s.maxSlots {
		return fmt.Errorf("stash: not enough slots")
	}

	remaining = quantity
	for i := range s.items {
		if remaining == 0 {
			break
		}
		if s.items[i].ItemDefID == def.ID && s.items[i].Quantity < def.MaxStack {
			take := min(remaining, def.MaxStack-s.items[i].Quantity)
			s.items[i].Quantity += take
			remaining -= take
		}
	}
	for remaining > 0 {
		inst := FromDef(def)
		inst.Quantity = min(remaining, def.MaxStack)
		s.items = append(s.items, inst)
		remaining -= inst.Quantity
	}
	return nil
}

// AddInstance stores a generated item.
//
// Postcondition: returns an error and leaves the stash unchanged when full.
func (s *Stash) AddInstance(inst ItemInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) >= s.maxSlots {
		return fmt.Errorf("stash: full")
	}
	if inst.Quantity < 1 {
		inst.Quantity = 1
	}
	s.items = append(s.items, inst)
	return nil
}

// Take removes and returns the whole entry identified by instanceID.
func (s *Stash) Take(instanceID string) (ItemInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].InstanceID == instanceID {
			it := s.items[i]
			s.items = append(s.items[:i], s.items[i+1:]...)
			return it, nil
		}
	}
	return ItemInstance{}, fmt.Errorf("stash: instance %q not found", instanceID)
}

// Items returns a snapshot copy of all entries.
func (s *Stash) Items() []ItemInstance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ItemInstance, len(s.items))
	copy(out, s.items)
	return out
}

// UsedSlots returns the number of occupied slots.
func (s *Stash) UsedSlots() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
