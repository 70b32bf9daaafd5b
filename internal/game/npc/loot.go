package npc

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cory-johannsen/idlecombat/internal/game/dice"
)

// ItemDrop defines a single fixed item entry in a loot table with a drop chance.
type ItemDrop struct {
	ItemID string  `yaml:"item"`
	Chance float64 `yaml:"chance"`
	MinQty int     `yaml:"min_qty"`
	MaxQty int     `yaml:"max_qty"`
}

// LootTable defines the fixed item drops of an enemy template.
type LootTable struct {
	Items []ItemDrop `yaml:"items"`
	// Procedural is the number of procedurally generated items rolled on
	// victory, in addition to the fixed drops.
	Procedural int `yaml:"procedural"`
}

// Validate checks that the loot table satisfies its invariants.
//
// Precondition: lt must not be nil.
// Postcondition: Returns nil iff all item constraints hold; an empty loot
// table is valid.
func (lt *LootTable) Validate() error {
	var errs []error
	if lt.Procedural < 0 {
		errs = append(errs, fmt.Errorf("loot table: procedural must be >= 0, got %d", lt.Procedural))
	}
	for i, item := range lt.Items {
		if item.ItemID == "" {
			errs = append(errs, fmt.Errorf("loot table: item[%d] must have a non-empty item id", i))
		}
		if item.Chance <= 0 || item.Chance > 1.0 {
			errs = append(errs, fmt.Errorf("loot table: item[%d] chance must be in (0, 1.0], got %f", i, item.Chance))
		}
		if item.MinQty < 1 {
			errs = append(errs, fmt.Errorf("loot table: item[%d] min_qty must be >= 1, got %d", i, item.MinQty))
		}
		if item.MinQty > item.MaxQty {
			errs = append(errs, fmt.Errorf("loot table: item[%d] min_qty (%d) must be <= max_qty (%d)", i, item.MinQty, item.MaxQty))
		}
	}
	return errors.Join(errs...)
}

// LootItem is a single dropped item instance.
type LootItem struct {
	ItemDefID  string
	InstanceID string
	Quantity   int
}

// RollDrops rolls the fixed item drops of lt.
//
// Precondition: lt must have passed Validate(); src must be non-nil.
// Postcondition: each returned item's Quantity is in [MinQty, MaxQty] and
// every InstanceID is unique.
func RollDrops(lt LootTable, src dice.Source) []LootItem {
	var out []LootItem
	for _, item := range lt.Items {
		if src.Float64() >= item.Chance {
			continue
		}
		qty := item.MinQty
		if spread := item.MaxQty - item.MinQty; spread > 0 {
			qty += src.Intn(spread + 1)
		}
		out = append(out, LootItem{
			ItemDefID:  item.ItemID,
			InstanceID: uuid.New().String(),
			Quantity:   qty,
		})
	}
	return out
}
