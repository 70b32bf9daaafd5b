// Package engine assembles a runnable combat engine from configuration and
// content directories.
package engine

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/idlecombat/internal/config"
	"github.com/cory-johannsen/idlecombat/internal/game/condition"
	"github.com/cory-johannsen/idlecombat/internal/game/inventory"
	"github.com/cory-johannsen/idlecombat/internal/game/npc"
	"github.com/cory-johannsen/idlecombat/internal/game/party"
)

// Content is every definition loaded from disk.
type Content struct {
	Conditions *condition.Registry
	Enemies    *npc.Registry
	Heroes     []*party.HeroDef
	Items      *inventory.Registry
	// Scripts is the Lua root; empty disables scripting.
	Scripts string
}

// LoadContent reads the content directories named by cfg. Conditions and
// items are optional: an empty directory setting yields an empty registry.
//
// Postcondition: returns every load error joined, or a Content whose
// cross references have been checked.
func LoadContent(cfg config.ContentConfig, enc config.EncounterConfig, shout string, logger *zap.Logger) (*Content, error) {
	c := &Content{
		Conditions: condition.NewRegistry(),
		Items:      inventory.NewRegistry(),
		Scripts:    cfg.Scripts,
	}
	var errs []error

	if cfg.Conditions != "" {
		reg, err := condition.LoadDirectory(cfg.Conditions)
		if err != nil {
			errs = append(errs, fmt.Errorf("loading conditions: %w", err))
		} else {
			c.Conditions = reg
		}
	}
	if cfg.Items != "" {
		reg, err := inventory.LoadRegistry(cfg.Items)
		if err != nil {
			errs = append(errs, fmt.Errorf("loading items: %w", err))
		} else {
			c.Items = reg
		}
	}
	enemies, err := npc.LoadRegistry(cfg.Enemies, npc.EncounterContext{Mile: enc.Mile, Difficulty: enc.Difficulty})
	if err != nil {
		errs = append(errs, fmt.Errorf("loading enemies: %w", err))
	}
	c.Enemies = enemies
	heroes, err := party.LoadHeroes(cfg.Heroes)
	if err != nil {
		errs = append(errs, fmt.Errorf("loading heroes: %w", err))
	}
	c.Heroes = heroes
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if err := c.check(shout, enc.Enemy); err != nil {
		return nil, err
	}
	logger.Info("content loaded",
		zap.Int("enemies", len(c.Enemies.All())),
		zap.Int("heroes", len(c.Heroes)),
		zap.Int("conditions", len(c.Conditions.All())),
		zap.Int("items", len(c.Items.AllItems())),
	)
	return c, nil
}

// check verifies that every name one definition uses for another resolves.
func (c *Content) check(shout, defaultEnemy string) error {
	var errs []error
	if len(c.Heroes) == 0 {
		errs = append(errs, errors.New("no heroes defined"))
	}
	if shout != "" {
		if _, ok := c.Conditions.Get(shout); !ok {
			errs = append(errs, fmt.Errorf("shout condition %q is not defined", shout))
		}
	}
	if defaultEnemy != "" {
		if _, ok := c.Enemies.Template(defaultEnemy); !ok {
			errs = append(errs, fmt.Errorf("encounter enemy %q is not defined", defaultEnemy))
		}
	}
	for _, t := range c.Enemies.All() {
		for _, a := range t.Abilities {
			if a.Effect == "" {
				continue
			}
			if _, ok := c.Conditions.Get(a.Effect); !ok {
				errs = append(errs, fmt.Errorf("enemy %q ability %q: unknown effect %q", t.ID, a.Name, a.Effect))
			}
		}
		if t.Loot == nil {
			continue
		}
		for _, d := range t.Loot.Items {
			if _, ok := c.Items.Item(d.ItemID); !ok {
				errs = append(errs, fmt.Errorf("enemy %q loot: unknown item %q", t.ID, d.ItemID))
			}
		}
	}
	return errors.Join(errs...)
}
