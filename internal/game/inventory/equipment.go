package inventory

import (
	"fmt"
	"sync"

	"github.com/cory-johannsen/idlecombat/internal/game/combat"
)

// BaseStats supplies a hero's unequipped stats.
type BaseStats interface {
	BaseStats(heroID string) (combat.Stats, bool)
}

// Equipment tracks the items worn by each hero and sums their bonuses.
// All methods are safe for concurrent use.
type Equipment struct {
	mu       sync.RWMutex
	base     BaseStats
	worn     map[string]map[Slot]ItemInstance
	onChange func(heroID string)
}

// NewEquipment creates an empty Equipment reading base stats from base.
//
// Precondition: base must be non-nil.
func NewEquipment(base BaseStats) *Equipment {
	return &Equipment{base: base, worn: make(map[string]map[Slot]ItemInstance)}
}

// OnChange registers fn to be called after every equip or unequip. fn is
// called without the Equipment lock held.
func (e *Equipment) OnChange(fn func(heroID string)) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

func (e *Equipment) notify(heroID string) {
	e.mu.RLock()
	fn := e.onChange
	e.mu.RUnlock()
	if fn != nil {
		fn(heroID)
	}
}

// Equip wears item on heroID, returning the item it replaced.
//
// Precondition: item.Slot must be equippable.
// Postcondition: Equipped(heroID)[item.Slot] == item.
func (e *Equipment) Equip(heroID string, item ItemInstance) (*ItemInstance, error) {
	if !item.Slot.Equippable() {
		return nil, fmt.Errorf("inventory: %q cannot be equipped", item.Name)
	}
	if _, ok := e.base.BaseStats(heroID); !ok {
		return nil, fmt.Errorf("inventory: unknown hero %q", heroID)
	}
	e.mu.Lock()
	slots, ok := e.worn[heroID]
	if !ok {
		slots = make(map[Slot]ItemInstance)
		e.worn[heroID] = slots
	}
	var prev *ItemInstance
	if old, ok := slots[item.Slot]; ok {
		prev = &old
	}
	slots[item.Slot] = item
	e.mu.Unlock()

	e.notify(heroID)
	return prev, nil
}

// Unequip removes whatever heroID wears in slot.
func (e *Equipment) Unequip(heroID string, slot Slot) (ItemInstance, bool) {
	e.mu.Lock()
	it, ok := e.worn[heroID][slot]
	if ok {
		delete(e.worn[heroID], slot)
	}
	e.mu.Unlock()

	if ok {
		e.notify(heroID)
	}
	return it, ok
}

// Equipped returns a copy of heroID's worn items by slot.
func (e *Equipment) Equipped(heroID string) map[Slot]ItemInstance {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[Slot]ItemInstance, len(e.worn[heroID]))
	for s, it := range e.worn[heroID] {
		out[s] = it
	}
	return out
}

// HeroStats returns heroID's base stats plus every worn item's bonus.
//
// Postcondition: ok is false iff the hero has no base stats. An unwounded
// hero, or one whose base stats omit Health, is at the boosted MaxHealth;
// otherwise Health is clamped to it.
func (e *Equipment) HeroStats(heroID string) (*combat.Stats, bool) {
	st, ok := e.base.BaseStats(heroID)
	if !ok {
		return nil, false
	}
	full := !st.Has(combat.StatHealth) || st.Health >= st.MaxHealth
	e.mu.RLock()
	for _, it := range e.worn[heroID] {
		st = st.Plus(it.Bonus)
	}
	e.mu.RUnlock()
	switch {
	case full && st.Has(combat.StatMaxHealth):
		st = st.WithHealth(st.MaxHealth)
	case st.Has(combat.StatHealth):
		st.Health = min(max(st.Health, 0), st.MaxHealth)
	}
	return &st, true
}
