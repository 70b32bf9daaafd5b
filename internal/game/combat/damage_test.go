package combat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/idlecombat/internal/game/combat"
	"github.com/cory-johannsen/idlecombat/internal/game/condition"
	"github.com/cory-johannsen/idlecombat/internal/game/dice"
)

// sequenceSource replays floats in order, then repeats the last one.
type sequenceSource struct {
	floats []float64
	i      int
}

func (s *sequenceSource) Intn(n int) int { return 0 }

func (s *sequenceSource) Float64() float64 {
	if len(s.floats) == 0 {
		return 0.5
	}
	v := s.floats[min(s.i, len(s.floats)-1)]
	s.i++
	return v
}

func noRandom() combat.DamageParams {
	return combat.DamageParams{CritMultiplier: 2}
}

func TestCalculate_Deterministic(t *testing.T) {
	calc := combat.NewDamageCalculator(noRandom(), &sequenceSource{floats: []float64{0.9}}, nil)
	for i := 0; i < 10; i++ {
		out := calc.Calculate(20, 5, nil, nil)
		assert.Equal(t, 15, out.Amount)
		assert.False(t, out.Miss)
		assert.False(t, out.Critical)
	}
}

func TestCalculate_MissReturnsZero(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		atk := rapid.IntRange(0, 1000).Draw(rt, "attack")
		def := rapid.IntRange(0, 1000).Draw(rt, "defense")
		p := combat.DamageParams{MissChance: 0.5, CritChance: 0.5, CritMultiplier: 2, Variance: 0.2}
		calc := combat.NewDamageCalculator(p, &sequenceSource{floats: []float64{0.1}}, nil)
		out := calc.Calculate(atk, def, nil, nil)
		assert.True(rt, out.Miss)
		assert.Zero(rt, out.Amount)
	})
}

func TestCalculate_MinimumOneOnHit(t *testing.T) {
	calc := combat.NewDamageCalculator(noRandom(), &sequenceSource{floats: []float64{0.9}}, nil)
	out := calc.Calculate(3, 40, nil, nil)
	assert.Equal(t, 1, out.Amount)
	assert.False(t, out.Miss)
}

func TestCalculate_Critical(t *testing.T) {
	p := combat.DamageParams{CritChance: 0.2, CritMultiplier: 1.5}
	// miss roll 0.9 (hit), crit roll 0.1 (crit), variance roll ignored.
	calc := combat.NewDamageCalculator(p, &sequenceSource{floats: []float64{0.9, 0.1, 0.5}}, nil)
	out := calc.Calculate(30, 10, nil, nil)
	assert.True(t, out.Critical)
	assert.Equal(t, 30, out.Amount)
}

func TestCalculate_VarianceBounds(t *testing.T) {
	p := combat.DamageParams{CritMultiplier: 2, Variance: 0.1}
	low := combat.NewDamageCalculator(p, &sequenceSource{floats: []float64{0.9, 0.9, 0.0}}, nil)
	high := combat.NewDamageCalculator(p, &sequenceSource{floats: []float64{0.9, 0.9, 1.0}}, nil)
	assert.Equal(t, 90, low.Calculate(110, 10, nil, nil).Amount)
	assert.Equal(t, 110, high.Calculate(110, 10, nil, nil).Amount)
}

func TestCalculate_NeverNegative_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		p := combat.DamageParams{
			MissChance:     rapid.Float64Range(0, 1).Draw(rt, "miss"),
			CritChance:     rapid.Float64Range(0, 1).Draw(rt, "crit"),
			CritMultiplier: rapid.Float64Range(1, 4).Draw(rt, "mult"),
			Variance:       rapid.Float64Range(0, 1).Draw(rt, "variance"),
		}
		src := dice.NewSeededSource(rapid.Uint64().Draw(rt, "seed"))
		calc := combat.NewDamageCalculator(p, src, nil)
		out := calc.Calculate(rapid.IntRange(0, 500).Draw(rt, "atk"), rapid.IntRange(0, 500).Draw(rt, "def"), nil, nil)
		assert.GreaterOrEqual(rt, out.Amount, 0)
		if out.Miss {
			assert.Zero(rt, out.Amount)
		}
	})
}

func TestCalculate_ModifiersAndShield(t *testing.T) {
	reg := condition.NewRegistry()
	require.NoError(t, reg.Register(&condition.Def{ID: "empowered", Name: "Empowered", DurationType: condition.DurationRounds, AttackPercent: 0.5}))
	require.NoError(t, reg.Register(&condition.Def{ID: "sundered", Name: "Sundered", DurationType: condition.DurationRounds, DefensePercent: -0.5, Debuff: true}))
	tr := condition.NewTracker(reg, zap.NewNop())

	attacker := combat.NewEnemy("e1", "Ogre", "ogre", combat.Stats{Attack: 20, MaxHealth: 100, Health: 100}, nil)
	defender := combat.NewHero("h1", "Brom", combat.RoleTank, combat.Stats{Defense: 10, MaxHealth: 100, Health: 100})
	require.NoError(t, tr.Apply("e1", "empowered", 2))
	require.NoError(t, tr.Apply("h1", "sundered", 2))
	tr.AddShield("h1", 10)

	calc := combat.NewDamageCalculator(noRandom(), &sequenceSource{floats: []float64{0.9}}, tr)
	out := calc.Calculate(attacker.Attack(), defender.Defense(), attacker, defender)
	// 20*1.5 - 10*0.5 = 25, shield soaks 10.
	assert.Equal(t, 15, out.Amount)
	assert.Equal(t, 10, out.Absorbed)
	assert.Zero(t, tr.ShieldAmount("h1"))
}

func TestScaled(t *testing.T) {
	assert.Equal(t, 15, combat.Scaled(10, 1.5))
	assert.Equal(t, 10, combat.Scaled(10, 0))
}

// Hero (20/5/100) strikes an enemy (10/2/50) for 15; the enemy's 10 attack
// against the hero's 5 defense answers for 5.
func TestScenario_ExchangeOfBlows(t *testing.T) {
	hero := combat.NewHero("h1", "Brom", combat.RoleDPS, combat.Stats{Attack: 20, Defense: 5, MaxHealth: 100, Health: 100})
	enemy := combat.NewEnemy("e1", "Bandit", "bandit", combat.Stats{Attack: 10, Defense: 2, MaxHealth: 50, Health: 50}, nil)
	calc := combat.NewDamageCalculator(noRandom(), &sequenceSource{floats: []float64{0.9}}, nil)

	out := calc.Calculate(20, 5, hero, enemy)
	enemy.ApplyDamage(out.Amount)
	assert.Equal(t, 35, enemy.CurrentHealth())

	out = calc.Calculate(enemy.Attack(), hero.Defense(), enemy, hero)
	hero.ApplyDamage(out.Amount)
	assert.Equal(t, 5, out.Amount)
	assert.Equal(t, 95, hero.CurrentHealth())
}
