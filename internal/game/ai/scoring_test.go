package ai_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/idlecombat/internal/game/ai"
	"github.com/cory-johannsen/idlecombat/internal/game/combat"
	"github.com/cory-johannsen/idlecombat/internal/game/dice"
)

var (
	claw    = &combat.Ability{Name: "Claw", Type: combat.AbilityDamage, Tags: []string{combat.TagAttack}}
	crush   = &combat.Ability{Name: "Crush", Type: combat.AbilityDamage, Tags: []string{combat.TagHeavy}}
	execute = &combat.Ability{Name: "Execute", Type: combat.AbilityDamage, Tags: []string{combat.TagFinisher}}
	hex     = &combat.Ability{Name: "Hex", Type: combat.AbilityDebuff, Effect: "weakened", Tags: []string{combat.TagDebuff}}
	daze    = &combat.Ability{Name: "Daze", Type: combat.AbilityStun, Effect: "stunned", Tags: []string{combat.TagStun}}
	mend    = &combat.Ability{Name: "Mend", Type: combat.AbilityHeal, Power: 0.2}
)

func TestScore_Base(t *testing.T) {
	sc := ai.NewScorer(nil, fixedSource{})
	assert.Equal(t, 50, sc.Score(enemy(), claw, party()))
	assert.Equal(t, 50, sc.Score(enemy(), mend, party()))
}

func TestScore_DebuffedTargets(t *testing.T) {
	sc := ai.NewScorer(stunSet{"dps": true}, fixedSource{})
	assert.Equal(t, 70, sc.Score(enemy(), claw, party()))
	assert.Equal(t, 50, sc.Score(enemy(), hex, party()), "no opening bonus once a debuff is up")
}

func TestScore_OpeningDebuff(t *testing.T) {
	sc := ai.NewScorer(stunSet{}, fixedSource{})
	assert.Equal(t, 75, sc.Score(enemy(), hex, party()))
}

func TestScore_Finisher(t *testing.T) {
	sc := ai.NewScorer(nil, fixedSource{})
	heroes := party()
	assert.Equal(t, 65, sc.Score(enemy(), execute, heroes), "dps at 40% health")
	heroes[1].ApplyDamage(20)
	assert.Equal(t, 80, sc.Score(enemy(), execute, heroes), "dps at 20% health")
}

func TestScore_SelfSustain(t *testing.T) {
	sc := ai.NewScorer(nil, fixedSource{})
	e := enemy()
	e.ApplyDamage(60)
	assert.Equal(t, 70, sc.Score(e, mend, party()))
}

func TestScore_CombosUseTags(t *testing.T) {
	sc := ai.NewScorer(nil, fixedSource{})
	e := enemy()

	e.State.LastAbility = hex
	assert.Equal(t, 70, sc.Score(e, claw, party()))
	e.State.LastAbility = daze
	assert.Equal(t, 80, sc.Score(e, crush, party()))
	e.State.LastAbility = claw
	assert.Equal(t, 90, sc.Score(e, execute, party()), "combo plus mid-health finisher")

	named := &combat.Ability{Name: "debuff stun attack", Type: combat.AbilityDamage}
	e.State.LastAbility = named
	assert.Equal(t, 50, sc.Score(e, claw, party()), "names never trigger combos")
}

func TestScore_Clamped_Property(t *testing.T) {
	abilities := []*combat.Ability{claw, crush, execute, hex, daze, mend}
	rapid.Check(t, func(rt *rapid.T) {
		heroes := party()
		status := stunSet{}
		for _, h := range heroes {
			h.ApplyDamage(rapid.IntRange(0, 199).Draw(rt, "damage"))
			status[h.ID()] = rapid.Bool().Draw(rt, "debuffed")
		}
		e := enemy()
		e.ApplyDamage(rapid.IntRange(0, 99).Draw(rt, "self"))
		e.State.LastAbility = rapid.SampledFrom(abilities).Draw(rt, "last")
		sc := ai.NewScorer(status, fixedSource{})
		for _, a := range abilities {
			s := sc.Score(e, a, heroes)
			assert.GreaterOrEqual(rt, s, 0)
			assert.LessOrEqual(rt, s, 100)
		}
	})
}

func TestChoose_WeightedAmongTopThree(t *testing.T) {
	e := enemy()
	heroes := party()
	e.State.LastAbility = claw
	// Execute 90, Claw 50, Crush 50, Mend 50: Mend is outside the top three.
	candidates := []*combat.Ability{claw, crush, mend, execute}

	low := ai.NewScorer(nil, fixedSource{f: 0.0})
	assert.Equal(t, execute, low.Choose(e, candidates, heroes))
	mid := ai.NewScorer(nil, fixedSource{f: 0.5})
	assert.Equal(t, claw, mid.Choose(e, candidates, heroes))
	high := ai.NewScorer(nil, fixedSource{f: 0.99})
	assert.Equal(t, crush, high.Choose(e, candidates, heroes))

	assert.Nil(t, low.Choose(e, nil, heroes))
}

func TestChoose_NeverOutsideTopThree_Property(t *testing.T) {
	pool := []*combat.Ability{claw, crush, execute, hex, daze, mend}
	rapid.Check(t, func(rt *rapid.T) {
		e := enemy()
		e.State.LastAbility = rapid.SampledFrom(pool).Draw(rt, "last")
		candidates := rapid.Permutation(pool).Draw(rt, "candidates")[:rapid.IntRange(1, len(pool)).Draw(rt, "n")]
		heroes := party()
		sc := ai.NewScorer(stunSet{}, dice.NewSeededSource(rapid.Uint64().Draw(rt, "seed")))

		ranked := sc.Rank(e, candidates, heroes)
		top := make([]*combat.Ability, 0, 3)
		for _, r := range ranked[:min(3, len(ranked))] {
			top = append(top, r.Ability)
		}
		assert.Contains(rt, top, sc.Choose(e, candidates, heroes))
	})
}

func TestChoose_LowerScoredCandidateNeverDrawn(t *testing.T) {
	e := enemy()
	e.State.LastAbility = claw
	// Execute 90, Claw 50, Crush 50, Mend 50: Mend ties but ranks fourth.
	candidates := []*combat.Ability{claw, crush, mend, execute}
	for seed := uint64(1); seed <= 200; seed++ {
		sc := ai.NewScorer(nil, dice.NewSeededSource(seed))
		assert.NotEqual(t, mend, sc.Choose(e, candidates, party()))
	}
}

func TestEligibleAbilities(t *testing.T) {
	enrageOnly := &combat.Ability{Name: "Rampage", Type: combat.AbilityAoE, Phases: []combat.Phase{combat.PhaseEnrage}}
	e := combat.NewEnemy("E1", "Ogre", "ogre", combat.Stats{MaxHealth: 100, Health: 100}, []*combat.Ability{claw, crush, enrageOnly})
	s := combat.NewSession("s", party(), []*combat.Enemy{e}, time.Unix(0, 0))
	s.SetCooldown("E1", "Crush", 2)

	got := ai.EligibleAbilities(e, s)
	require.Len(t, got, 1)
	assert.Equal(t, claw, got[0])

	e.State.Phase = combat.PhaseEnrage
	s.TickCooldowns("E1")
	s.TickCooldowns("E1")
	assert.Len(t, ai.EligibleAbilities(e, s), 3)
}
