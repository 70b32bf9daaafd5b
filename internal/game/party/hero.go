// Package party holds the heroes that fight together and their progress.
package party

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/idlecombat/internal/game/combat"
)

// HeroDef is a hero loaded from YAML.
type HeroDef struct {
	ID    string       `yaml:"id"`
	Name  string       `yaml:"name"`
	Role  combat.Role  `yaml:"role"`
	Stats combat.Stats `yaml:"stats"`
}

// Validate checks the hero's invariants.
//
// Postcondition: Returns nil iff ID and Name are set, Role is known and
// no stat is negative.
func (d *HeroDef) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if d.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if !d.Role.Valid() {
		errs = append(errs, fmt.Errorf("unknown role %q", d.Role))
	}
	s := d.Stats
	if s.Attack < 0 || s.Defense < 0 || s.MaxHealth < 0 || s.Health < 0 || s.Speed < 0 {
		errs = append(errs, errors.New("stats must be >= 0"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("hero %q: %w", d.ID, err)
	}
	return nil
}

// LoadHeroes reads every *.yaml file in dir. A file may hold one hero or a
// list of heroes. The result keeps file order, then document order.
func LoadHeroes(dir string) ([]*HeroDef, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading hero dir %q: %w", dir, err)
	}
	var out []*HeroDef
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		defs, err := parseHeroes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		out = append(out, defs...)
	}
	return out, nil
}

func parseHeroes(data []byte) ([]*HeroDef, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var defs []*HeroDef
	if len(doc.Content) > 0 && doc.Content[0].Kind == yaml.SequenceNode {
		if err := dec.Decode(&defs); err != nil {
			return nil, err
		}
	} else {
		var d HeroDef
		if err := dec.Decode(&d); err != nil {
			return nil, err
		}
		defs = append(defs, &d)
	}
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}
	return defs, nil
}
