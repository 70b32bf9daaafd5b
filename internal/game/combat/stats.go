package combat

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Stat names one field of Stats.
type Stat uint8

const (
	StatAttack Stat = 1 << iota
	StatDefense
	StatMaxHealth
	StatHealth
	StatSpeed
)

var statKeys = map[string]Stat{
	"attack":     StatAttack,
	"defense":    StatDefense,
	"max_health": StatMaxHealth,
	"health":     StatHealth,
	"speed":      StatSpeed,
}

// Stats is a combatant's resolved numeric profile.
//
// Stats decoded from YAML remember which keys the document supplied; any
// other Stats value supplies every field, so a zero is a real zero.
type Stats struct {
	Attack    int `yaml:"attack"`
	Defense   int `yaml:"defense"`
	MaxHealth int `yaml:"max_health"`
	Health    int `yaml:"health"`
	Speed     int `yaml:"speed"`

	partial bool
	set     Stat
}

// DefaultStats are the fallback values used when no source supplies a stat.
var DefaultStats = Stats{Attack: 10, Defense: 5, MaxHealth: 100, Health: 100, Speed: 10}

// Has reports whether s supplies f.
func (s Stats) Has(f Stat) bool {
	return !s.partial || s.set&f != 0
}

// UnmarshalYAML decodes a stats mapping and records the keys present.
// Unknown keys are rejected.
func (s *Stats) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: stats must be a mapping", n.Line)
	}
	var set Stat
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i]
		f, ok := statKeys[key.Value]
		if !ok {
			return fmt.Errorf("line %d: unknown stat %q", key.Line, key.Value)
		}
		set |= f
	}
	type plain Stats
	var p plain
	if err := n.Decode(&p); err != nil {
		return err
	}
	*s = Stats(p)
	s.partial, s.set = true, set
	return nil
}

// Plus returns s with b's bonuses added. A field b changes counts as
// supplied.
func (s Stats) Plus(b Stats) Stats {
	s.Attack += b.Attack
	s.Defense += b.Defense
	s.MaxHealth += b.MaxHealth
	s.Speed += b.Speed
	if !s.partial {
		return s
	}
	for f, v := range map[Stat]int{StatAttack: b.Attack, StatDefense: b.Defense, StatMaxHealth: b.MaxHealth, StatSpeed: b.Speed} {
		if v != 0 {
			s.set |= f
		}
	}
	return s
}

// WithHealth returns s with Health set and marked as supplied.
func (s Stats) WithHealth(hp int) Stats {
	s.Health = hp
	if s.partial {
		s.set |= StatHealth
	}
	return s
}

// ResolveStats merges stat sources in precedence order.
//
// Sources are passed highest precedence first; the engine passes the
// equipment provider's stats, then the roster's base stats. Nil sources are
// skipped. Attack, Defense and Speed each take the first supplied value
// that is not negative; MaxHealth takes the first supplied positive value.
// Anything no source supplies comes from defaults. Health comes from the
// source that supplied MaxHealth, clamped to [0, MaxHealth], so a supplied
// Health of 0 stays 0. Full health is used when that source has no Health
// or MaxHealth came from defaults.
//
// Postcondition: fellBack is true iff Attack, Defense or MaxHealth came from defaults.
func ResolveStats(defaults Stats, sources ...*Stats) (resolved Stats, fellBack bool) {
	pick := func(f Stat, get func(*Stats) int, floor int) (int, *Stats) {
		for _, s := range sources {
			if s != nil && s.Has(f) && get(s) >= floor {
				return get(s), s
			}
		}
		return 0, nil
	}

	var from *Stats
	if resolved.Attack, from = pick(StatAttack, func(s *Stats) int { return s.Attack }, 0); from == nil {
		resolved.Attack, fellBack = defaults.Attack, true
	}
	if resolved.Defense, from = pick(StatDefense, func(s *Stats) int { return s.Defense }, 0); from == nil {
		resolved.Defense, fellBack = defaults.Defense, true
	}
	if resolved.Speed, from = pick(StatSpeed, func(s *Stats) int { return s.Speed }, 0); from == nil {
		resolved.Speed = defaults.Speed
	}
	if resolved.MaxHealth, from = pick(StatMaxHealth, func(s *Stats) int { return s.MaxHealth }, 1); from == nil {
		resolved.MaxHealth, fellBack = defaults.MaxHealth, true
		resolved.Health = resolved.MaxHealth
		return resolved, fellBack
	}
	if !from.Has(StatHealth) {
		resolved.Health = resolved.MaxHealth
		return resolved, fellBack
	}
	resolved.Health = clampHealth(from.Health, resolved.MaxHealth)
	return resolved, fellBack
}
