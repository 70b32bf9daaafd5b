package combat

import (
	"errors"
	"fmt"
	"slices"
)

// AbilityType classifies what an ability does.
type AbilityType string

const (
	AbilityDamage AbilityType = "damage"
	AbilityAoE    AbilityType = "aoe"
	AbilityDebuff AbilityType = "debuff"
	AbilityBuff   AbilityType = "buff"
	AbilityHeal   AbilityType = "heal"
	AbilityStun   AbilityType = "stun"
)

var validAbilityTypes = map[AbilityType]bool{
	AbilityDamage: true, AbilityAoE: true, AbilityDebuff: true,
	AbilityBuff: true, AbilityHeal: true, AbilityStun: true,
}

// Combo tags used by ability scoring.
const (
	TagAttack   = "attack"
	TagHeavy    = "heavy"
	TagFinisher = "finisher"
	TagDebuff   = "debuff"
	TagStun     = "stun"
)

var validTags = map[string]bool{
	TagAttack: true, TagHeavy: true, TagFinisher: true, TagDebuff: true, TagStun: true,
}

// Ability is an enemy skill loaded from an enemy template.
type Ability struct {
	Name string      `yaml:"name"`
	Type AbilityType `yaml:"type"`
	// Power scales attack for damage abilities and max health for heals.
	Power    float64 `yaml:"power"`
	Cooldown int     `yaml:"cooldown"`
	CastTime int     `yaml:"cast_time"`
	// Phases restricts the ability to the listed phases; empty means all.
	Phases       []Phase  `yaml:"phases"`
	Tags         []string `yaml:"tags"`
	Effect       string   `yaml:"effect"`
	EffectRounds int      `yaml:"effect_rounds"`
	// Mechanic names a boss mechanic executed instead of the default resolution.
	Mechanic string `yaml:"mechanic"`
}

// HasTag reports whether the ability carries tag.
func (a *Ability) HasTag(tag string) bool {
	return slices.Contains(a.Tags, tag)
}

// DealsDamage reports whether the ability hurts its targets.
func (a *Ability) DealsDamage() bool {
	return a.Type == AbilityDamage || a.Type == AbilityAoE || a.Type == AbilityStun
}

// AvailableIn reports whether the ability may be used in phase p.
func (a *Ability) AvailableIn(p Phase) bool {
	return len(a.Phases) == 0 || slices.Contains(a.Phases, p)
}

// Validate checks the ability's invariants.
func (a *Ability) Validate() error {
	var errs []error
	if a.Name == "" {
		errs = append(errs, errors.New("ability name must not be empty"))
	}
	if !validAbilityTypes[a.Type] {
		errs = append(errs, fmt.Errorf("ability %q: unknown type %q", a.Name, a.Type))
	}
	if a.Power < 0 {
		errs = append(errs, fmt.Errorf("ability %q: power must be >= 0", a.Name))
	}
	if a.Cooldown < 0 || a.CastTime < 0 || a.EffectRounds < 0 {
		errs = append(errs, fmt.Errorf("ability %q: cooldown, cast_time and effect_rounds must be >= 0", a.Name))
	}
	for _, t := range a.Tags {
		if !validTags[t] {
			errs = append(errs, fmt.Errorf("ability %q: unknown tag %q", a.Name, t))
		}
	}
	for _, p := range a.Phases {
		switch p {
		case PhaseOne, PhaseTwo, PhaseThree, PhaseEnrage:
		default:
			errs = append(errs, fmt.Errorf("ability %q: unknown phase %q", a.Name, p))
		}
	}
	if (a.Type == AbilityDebuff || a.Type == AbilityStun) && a.Effect == "" && a.Mechanic == "" {
		errs = append(errs, fmt.Errorf("ability %q: %s abilities need an effect", a.Name, a.Type))
	}
	return errors.Join(errs...)
}
