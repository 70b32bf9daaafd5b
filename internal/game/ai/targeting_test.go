package ai_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/idlecombat/internal/game/ai"
	"github.com/cory-johannsen/idlecombat/internal/game/boss"
	"github.com/cory-johannsen/idlecombat/internal/game/combat"
	"github.com/cory-johannsen/idlecombat/internal/game/dice"
	"github.com/cory-johannsen/idlecombat/internal/game/threat"
)

type fixedSource struct {
	val int
	f   float64
}

func (s fixedSource) Intn(n int) int   { return s.val % n }
func (s fixedSource) Float64() float64 { return s.f }

type stunSet map[string]bool

func (s stunSet) IsIncapacitated(id string) bool { return s[id] }
func (s stunSet) HasDebuff(id string) bool       { return s[id] }

func party() []*combat.Hero {
	return []*combat.Hero{
		combat.NewHero("tank", "Brom", combat.RoleTank, combat.Stats{MaxHealth: 200, Health: 150}),
		combat.NewHero("dps", "Kael", combat.RoleDPS, combat.Stats{MaxHealth: 100, Health: 40}),
		combat.NewHero("heal", "Mira", combat.RoleHealer, combat.Stats{MaxHealth: 80, Health: 60}),
	}
}

func newTargeter(tbl *threat.Table, status ai.StatusReader, src dice.Source) *ai.Targeter {
	calc := combat.NewDamageCalculator(combat.DamageParams{}, src, nil)
	mech := boss.NewMechanics(boss.Params{Phase2At: 0.5, Phase3At: 0.25}, tbl, calc, nil, nil, src, zap.NewNop())
	return ai.NewTargeter(tbl, mech, status, src, 1.1)
}

func enemy() *combat.Enemy {
	return combat.NewEnemy("E1", "Ogre", "ogre", combat.Stats{Attack: 20, MaxHealth: 100, Health: 100}, nil)
}

func TestSelectTarget_DefensiveHighestThreatAndWipe(t *testing.T) {
	tbl := threat.NewTable()
	heroes := []*combat.Hero{
		combat.NewHero("H1", "A", combat.RoleTank, combat.Stats{MaxHealth: 10, Health: 10}),
		combat.NewHero("H2", "B", combat.RoleDPS, combat.Stats{MaxHealth: 10, Health: 10}),
	}
	tbl.Set("E1", "H1", 50)
	tbl.Set("E1", "H2", 80)
	tg := newTargeter(tbl, nil, fixedSource{})
	e := enemy()

	assert.Equal(t, "H2", tg.SelectTarget(e, heroes, ai.Defensive, 1).ID())
	tbl.Wipe("E1")
	assert.Equal(t, "", tbl.Highest("E1", nil))
	assert.Equal(t, "H1", tg.SelectTarget(e, heroes, ai.Defensive, 2).ID(), "wiped table falls back to party order")
}

func TestSelectTarget_Aggressive(t *testing.T) {
	tg := newTargeter(threat.NewTable(), nil, fixedSource{})
	assert.Equal(t, "dps", tg.SelectTarget(enemy(), party(), ai.Aggressive, 1).ID())
}

func TestSelectTarget_Tactical(t *testing.T) {
	tg := newTargeter(threat.NewTable(), nil, fixedSource{})
	assert.Equal(t, "heal", tg.SelectTarget(enemy(), party(), ai.Tactical, 1).ID())

	heroes := party()
	heroes[2].ApplyDamage(1000)
	assert.Equal(t, "dps", tg.SelectTarget(enemy(), heroes, ai.Tactical, 1).ID())
}

func TestSelectTarget_EnrageOverridesStrategy(t *testing.T) {
	tbl := threat.NewTable()
	tbl.Set("E1", "tank", 999)
	tg := newTargeter(tbl, nil, fixedSource{val: 2})
	e := enemy()
	e.State.Enraged = true
	for _, s := range []ai.Strategy{ai.Defensive, ai.Tactical, ai.Aggressive, ai.Boss} {
		assert.Equal(t, "heal", tg.SelectTarget(e, party(), s, 1).ID())
	}
	e.State.Enraged = false
	e.State.IgnoreThreat = true
	assert.Equal(t, "heal", tg.SelectTarget(e, party(), ai.Defensive, 1).ID())
}

func TestSelectTarget_SkipsIncapacitated(t *testing.T) {
	tbl := threat.NewTable()
	tbl.Set("E1", "tank", 100)
	tbl.Set("E1", "dps", 10)
	tg := newTargeter(tbl, stunSet{"tank": true}, fixedSource{})
	assert.Equal(t, "dps", tg.SelectTarget(enemy(), party(), ai.Defensive, 1).ID())

	all := newTargeter(tbl, stunSet{"tank": true, "dps": true, "heal": true}, fixedSource{})
	assert.Equal(t, "tank", all.SelectTarget(enemy(), party(), ai.Defensive, 1).ID(), "a fully disabled party is still targetable")
}

func TestSelectTarget_NoLivingHeroes(t *testing.T) {
	tg := newTargeter(threat.NewTable(), nil, fixedSource{})
	heroes := party()
	for _, h := range heroes {
		h.ApplyDamage(1000)
	}
	assert.Nil(t, tg.SelectTarget(enemy(), heroes, ai.Defensive, 1))
}

func TestSelectTarget_SwitchHysteresis(t *testing.T) {
	tbl := threat.NewTable()
	tbl.Set("E1", "tank", 100)
	tbl.Set("E1", "dps", 50)
	tg := newTargeter(tbl, nil, fixedSource{})
	e := enemy()
	heroes := party()

	require.Equal(t, "tank", tg.SelectTarget(e, heroes, ai.Defensive, 1).ID())
	tbl.Set("E1", "dps", 105)
	assert.Equal(t, "tank", tg.SelectTarget(e, heroes, ai.Defensive, 2).ID(), "105 does not exceed 110% of 100")
	assert.Equal(t, 1, e.State.LastTargetSwitch)

	tbl.Set("E1", "dps", 111)
	assert.Equal(t, "dps", tg.SelectTarget(e, heroes, ai.Defensive, 3).ID())
	assert.Equal(t, 3, e.State.LastTargetSwitch)
	assert.Equal(t, "dps", e.State.CurrentTargetID)
}

func TestSelectTarget_BossPhaseRule(t *testing.T) {
	tbl := threat.NewTable()
	tbl.Set("E1", "tank", 10)
	tg := newTargeter(tbl, nil, fixedSource{})
	e := enemy()
	e.MultiPhase = true

	assert.Equal(t, "tank", tg.SelectTarget(e, party(), "", 1).ID())
	e.ApplyDamage(60)
	assert.Equal(t, "heal", tg.SelectTarget(e, party(), "", 2).ID())
	e.ApplyDamage(20)
	assert.Equal(t, "dps", tg.SelectTarget(e, party(), "", 3).ID())
}

func TestResolveStrategy(t *testing.T) {
	e := enemy()
	assert.Equal(t, ai.Defensive, ai.ResolveStrategy(e, ""))
	e.State.Behavior = boss.BehaviorAggressive
	assert.Equal(t, ai.Aggressive, ai.ResolveStrategy(e, ""))
	e.MultiPhase = true
	assert.Equal(t, ai.Boss, ai.ResolveStrategy(e, ""))
	e.Strategy = "tactical"
	assert.Equal(t, ai.Tactical, ai.ResolveStrategy(e, ""))
	assert.Equal(t, ai.Aggressive, ai.ResolveStrategy(e, ai.Aggressive))
	assert.Equal(t, ai.Tactical, ai.ResolveStrategy(e, "bogus"))
}

func TestSelectTarget_AlwaysLivingHero_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tbl := threat.NewTable()
		heroes := party()
		for _, h := range heroes {
			h.ApplyDamage(rapid.IntRange(0, 250).Draw(rt, "damage"))
			tbl.Set("E1", h.ID(), rapid.Float64Range(0, 100).Draw(rt, "threat"))
		}
		tg := newTargeter(tbl, nil, dice.NewSeededSource(rapid.Uint64().Draw(rt, "seed")))
		e := enemy()
		e.State.Enraged = rapid.Bool().Draw(rt, "enraged")
		strategy := rapid.SampledFrom([]ai.Strategy{ai.Aggressive, ai.Tactical, ai.Defensive, ai.Boss}).Draw(rt, "strategy")

		got := tg.SelectTarget(e, heroes, strategy, 1)
		alive := 0
		for _, h := range heroes {
			if h.IsAlive() {
				alive++
			}
		}
		if alive == 0 {
			assert.Nil(rt, got)
			return
		}
		require.NotNil(rt, got)
		assert.True(rt, got.IsAlive())
	})
}

func TestIsIncapacitated(t *testing.T) {
	tg := newTargeter(threat.NewTable(), stunSet{"dps": true}, fixedSource{})
	heroes := party()
	assert.False(t, tg.IsIncapacitated(heroes[0]))
	assert.True(t, tg.IsIncapacitated(heroes[1]))
	heroes[2].ApplyDamage(500)
	assert.True(t, tg.IsIncapacitated(heroes[2]))
}
