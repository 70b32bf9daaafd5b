// Package condition models timed status effects (buffs, debuffs, stuns) and
// damage-absorbing shields applied to combatants during an encounter.
package condition

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Duration types.
const (
	DurationRounds    = "rounds"
	DurationPermanent = "permanent"
)

// Def is the static definition of a status effect, loaded from YAML.
//
// Percent modifiers are fractions applied per stack: -0.2 lowers the stat by 20%.
type Def struct {
	ID             string  `yaml:"id"`
	Name           string  `yaml:"name"`
	Description    string  `yaml:"description"`
	DurationType   string  `yaml:"duration_type"`
	MaxStacks      int     `yaml:"max_stacks"` // 0 = unstackable
	AttackPercent  float64 `yaml:"attack_percent"`
	DefensePercent float64 `yaml:"defense_percent"`
	SpeedPercent   float64 `yaml:"speed_percent"`
	Incapacitates  bool    `yaml:"incapacitates"`
	Debuff         bool    `yaml:"debuff"`
}

// Validate checks the definition's invariants.
//
// Postcondition: returns nil iff every field is valid; otherwise all violations joined.
func (d *Def) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if d.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if d.DurationType != DurationRounds && d.DurationType != DurationPermanent {
		errs = append(errs, fmt.Errorf("duration_type must be rounds or permanent, got %q", d.DurationType))
	}
	if d.MaxStacks < 0 {
		errs = append(errs, fmt.Errorf("max_stacks must be >= 0, got %d", d.MaxStacks))
	}
	for name, v := range map[string]float64{"attack_percent": d.AttackPercent, "defense_percent": d.DefensePercent, "speed_percent": d.SpeedPercent} {
		if v <= -1 {
			errs = append(errs, fmt.Errorf("%s must be > -1, got %v", name, v))
		}
	}
	return errors.Join(errs...)
}

// Registry holds the known status effect definitions keyed by ID.
type Registry struct {
	defs map[string]*Def
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Def)}
}

// Register adds def to the registry.
//
// Precondition: def must not be nil.
// Postcondition: Get(def.ID) returns def; an invalid or duplicate def is rejected.
func (r *Registry) Register(def *Def) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("condition %q: %w", def.ID, err)
	}
	if _, exists := r.defs[def.ID]; exists {
		return fmt.Errorf("condition %q already registered", def.ID)
	}
	r.defs[def.ID] = def
	return nil
}

// Get returns the Def for id.
func (r *Registry) Get(id string) (*Def, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// All returns every registered Def sorted by ID.
func (r *Registry) All() []*Def {
	out := make([]*Def, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LoadDirectory parses every *.yaml file in dir as a Def.
//
// Precondition: dir must be a readable directory.
// Postcondition: returns a populated Registry, or an error naming the first bad file.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading condition dir %q: %w", dir, err)
	}
	reg := NewRegistry()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var def Def
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		if err := reg.Register(&def); err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
	}
	return reg, nil
}
