package inventory

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/idlecombat/internal/game/combat"
)

// Slot identifies where an item is worn.
type Slot string

const (
	SlotWeapon    Slot = "weapon"
	SlotArmor     Slot = "armor"
	SlotAccessory Slot = "accessory"
	// SlotNone marks materials and trophies that cannot be equipped.
	SlotNone Slot = "none"
)

// Equippable reports whether items in s can be worn.
func (s Slot) Equippable() bool {
	return s == SlotWeapon || s == SlotArmor || s == SlotAccessory
}

var validSlots = map[Slot]bool{SlotWeapon: true, SlotArmor: true, SlotAccessory: true, SlotNone: true}

// Quality is an item rarity tier.
type Quality string

const (
	QualityCommon    Quality = "common"
	QualityUncommon  Quality = "uncommon"
	QualityRare      Quality = "rare"
	QualityEpic      Quality = "epic"
	QualityLegendary Quality = "legendary"
)

// Qualities lists every tier from lowest to highest.
var Qualities = []Quality{QualityCommon, QualityUncommon, QualityRare, QualityEpic, QualityLegendary}

// Valid reports whether q is a known tier.
func (q Quality) Valid() bool {
	for _, v := range Qualities {
		if q == v {
			return true
		}
	}
	return false
}

// ItemDef defines the static properties of an item loaded from YAML.
type ItemDef struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Slot        Slot    `yaml:"slot"`
	Quality     Quality `yaml:"quality"`
	// Bonus is added to the wearer's base stats while equipped.
	Bonus     combat.Stats `yaml:"bonus"`
	Stackable bool         `yaml:"stackable"`
	MaxStack  int          `yaml:"max_stack"`
}

// Validate checks that the ItemDef satisfies its invariants.
//
// Precondition: d is non-nil.
// Postcondition: returns nil iff all fields are valid.
func (d *ItemDef) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if d.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if !validSlots[d.Slot] {
		errs = append(errs, fmt.Errorf("slot must be one of weapon, armor, accessory, none; got %q", d.Slot))
	}
	if !d.Quality.Valid() {
		errs = append(errs, fmt.Errorf("unknown quality %q", d.Quality))
	}
	if d.MaxStack < 1 {
		errs = append(errs, errors.New("max_stack must be >= 1"))
	}
	if d.Stackable && d.Slot.Equippable() {
		errs = append(errs, errors.New("equippable items cannot stack"))
	}
	if d.Bonus.Health != 0 {
		errs = append(errs, errors.New("bonus.health is not supported; use bonus.max_health"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("item %q: %w", d.ID, err)
	}
	return nil
}

// LoadItems reads all *.yaml and *.yml files from dir, parses each as an
// ItemDef, validates it, and returns the collected slice.
//
// Precondition: dir is a readable directory path.
// Postcondition: returns all valid ItemDefs or the first encountered error.
func LoadItems(dir string) ([]*ItemDef, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("LoadItems: cannot read directory %q: %w", dir, err)
	}

	var items []*ItemDef
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("LoadItems: cannot read file %q: %w", path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		var d ItemDef
		if err := dec.Decode(&d); err != nil {
			return nil, fmt.Errorf("LoadItems: cannot parse file %q: %w", path, err)
		}
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("LoadItems: invalid item in %q: %w", path, err)
		}
		items = append(items, &d)
	}
	return items, nil
}
