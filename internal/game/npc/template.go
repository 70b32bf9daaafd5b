// Package npc provides enemy template definitions and the encounter registry.
package npc

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/idlecombat/internal/game/combat"
	"github.com/cory-johannsen/idlecombat/internal/game/dice"
)

// Known targeting strategies an enemy template may name.
var validStrategies = map[string]bool{
	"": true, "aggressive": true, "tactical": true, "defensive": true, "boss": true,
}

// BossConfig marks a template as a boss and overrides its enrage triggers.
type BossConfig struct {
	// Phases enables multi-phase behaviour: threat wipes on phase changes and
	// phase-based targeting.
	Phases      bool    `yaml:"phases"`
	EnrageAt    float64 `yaml:"enrage_at"`
	EnrageRound int     `yaml:"enrage_round"`
	AddName     string  `yaml:"add_name"`
	// Script is the Lua namespace consulted for mechanics that are not built in.
	Script string `yaml:"script"`
}

// Template defines a reusable enemy archetype loaded from YAML.
type Template struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Stats       combat.Stats      `yaml:"stats"`
	AIStrategy  string            `yaml:"ai_strategy"`
	Abilities   []*combat.Ability `yaml:"abilities"`
	Boss        *BossConfig       `yaml:"boss"`
	// Experience is the base experience awarded for a victory.
	Experience int `yaml:"experience"`
	// Gold is a dice expression rolled for the base gold reward.
	Gold string     `yaml:"gold"`
	Loot *LootTable `yaml:"loot"`
}

// Validate checks the template's invariants and reports every violation.
//
// Precondition: t must not be nil.
// Postcondition: Returns nil iff the template is usable to build an Enemy.
func (t *Template) Validate() error {
	if t.ID == "" {
		return errors.New("npc template: id must not be empty")
	}
	var errs []error
	if t.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if t.Stats.Attack < 0 || t.Stats.Defense < 0 || t.Stats.MaxHealth < 0 || t.Stats.Speed < 0 {
		errs = append(errs, errors.New("stats must be >= 0"))
	}
	if !validStrategies[t.AIStrategy] {
		errs = append(errs, fmt.Errorf("unknown ai_strategy %q", t.AIStrategy))
	}
	if t.Experience < 0 {
		errs = append(errs, errors.New("experience must be >= 0"))
	}
	if t.Gold != "" {
		if _, err := dice.Parse(t.Gold); err != nil {
			errs = append(errs, fmt.Errorf("gold: %w", err))
		}
	}
	seen := make(map[string]bool, len(t.Abilities))
	for i, a := range t.Abilities {
		if a == nil {
			errs = append(errs, fmt.Errorf("ability[%d] is empty", i))
			continue
		}
		if seen[a.Name] {
			errs = append(errs, fmt.Errorf("duplicate ability %q", a.Name))
		}
		seen[a.Name] = true
		if err := a.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if b := t.Boss; b != nil {
		if b.EnrageAt < 0 || b.EnrageAt >= 1 {
			errs = append(errs, fmt.Errorf("boss.enrage_at must be in [0, 1), got %v", b.EnrageAt))
		}
		if b.EnrageRound < 0 {
			errs = append(errs, errors.New("boss.enrage_round must be >= 0"))
		}
	}
	if t.Loot != nil {
		if err := t.Loot.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("npc template %q: %w", t.ID, err)
	}
	return nil
}

// NewEnemy builds a fresh Enemy with id from this template using the
// already resolved stats s.
//
// Postcondition: the enemy starts in phase one at s.Health, or at full
// health when s does not supply Health.
func (t *Template) NewEnemy(id string, s combat.Stats) *combat.Enemy {
	if !s.Has(combat.StatHealth) {
		s = s.WithHealth(s.MaxHealth)
	}
	e := combat.NewEnemy(id, t.Name, t.ID, s, t.Abilities)
	e.Strategy = t.AIStrategy
	if b := t.Boss; b != nil {
		e.Boss = true
		e.MultiPhase = b.Phases
		e.EnrageAt = b.EnrageAt
		e.EnrageRound = b.EnrageRound
		e.AddName = b.AddName
		e.ScriptID = b.Script
	}
	return e
}

// IsBoss reports whether the template declares a boss block.
func (t *Template) IsBoss() bool { return t.Boss != nil }

// LoadTemplateFromBytes parses a single enemy template from raw YAML bytes.
// Unknown fields are rejected.
//
// Postcondition: Returns a validated *Template, or an error.
func LoadTemplateFromBytes(data []byte) (*Template, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var tmpl Template
	if err := dec.Decode(&tmpl); err != nil {
		return nil, fmt.Errorf("parsing template YAML: %w", err)
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// LoadTemplates reads all *.yaml files in dir and returns the parsed templates.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all templates or an error on the first parse or validate
// failure; on error, the partial result is discarded.
func LoadTemplates(dir string) ([]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading enemy dir %q: %w", dir, err)
	}

	var templates []*Template
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}

		tmpl, err := LoadTemplateFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		templates = append(templates, tmpl)
	}
	return templates, nil
}
