package combat

import (
	"math"

	"github.com/cory-johannsen/idlecombat/internal/game/condition"
	"github.com/cory-johannsen/idlecombat/internal/game/dice"
)

// DamageParams are the balance constants consumed by DamageCalculator.
type DamageParams struct {
	MissChance     float64
	CritChance     float64
	CritMultiplier float64
	Variance       float64
}

// Effects exposes the status-effect state the calculator reads.
type Effects interface {
	Modifiers(combatantID string) condition.Modifiers
	ConsumeShield(combatantID string, dmg int) int
}

// DamageOutcome is the result of one damage calculation.
//
// A miss is distinct from a hit that dealt zero damage.
type DamageOutcome struct {
	Amount   int
	Miss     bool
	Critical bool
	// Absorbed is the damage a shield soaked before Amount was reached.
	Absorbed int
}

// DamageCalculator turns attack and defense values into damage.
type DamageCalculator struct {
	params  DamageParams
	src     dice.Source
	effects Effects
}

// NewDamageCalculator creates a DamageCalculator.
//
// Precondition: src must be non-nil; effects may be nil when no status effects are tracked.
func NewDamageCalculator(params DamageParams, src dice.Source, effects Effects) *DamageCalculator {
	return &DamageCalculator{params: params, src: src, effects: effects}
}

// Params returns the calculator's balance constants.
func (d *DamageCalculator) Params() DamageParams {
	return d.params
}

// Calculate resolves one hit of attack against defense.
//
// The pipeline is fixed: status modifiers, miss roll, max(1, atk-def), crit
// roll, symmetric variance rounded to the nearest integer, shield absorption,
// clamp. attacker and defender may be nil.
//
// Postcondition: Amount >= 0; Miss implies Amount == 0 and no shield is consumed.
func (d *DamageCalculator) Calculate(attack, defense int, attacker, defender Combatant) DamageOutcome {
	atk, def := float64(attack), float64(defense)
	if d.effects != nil {
		if attacker != nil {
			atk *= 1 + d.effects.Modifiers(attacker.ID()).AttackPercent
		}
		if defender != nil {
			def *= 1 + d.effects.Modifiers(defender.ID()).DefensePercent
		}
	}

	if d.src.Float64() < d.params.MissChance {
		return DamageOutcome{Miss: true}
	}

	dmg := math.Max(1, atk-def)

	var out DamageOutcome
	if d.src.Float64() < d.params.CritChance {
		out.Critical = true
		dmg *= d.params.CritMultiplier
	}

	jitter := 2*d.src.Float64() - 1
	amount := int(math.Round(dmg * (1 + jitter*d.params.Variance)))

	if d.effects != nil && defender != nil {
		out.Absorbed = d.effects.ConsumeShield(defender.ID(), amount)
		amount -= out.Absorbed
	}
	out.Amount = max(amount, 0)
	return out
}

// Scaled returns round(attack * power), with power <= 0 treated as 1.
func Scaled(attack int, power float64) int {
	if power <= 0 {
		power = 1
	}
	return int(math.Round(float64(attack) * power))
}
