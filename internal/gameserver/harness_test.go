package gameserver_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/idlecombat/internal/game/ai"
	"github.com/cory-johannsen/idlecombat/internal/game/boss"
	"github.com/cory-johannsen/idlecombat/internal/game/combat"
	"github.com/cory-johannsen/idlecombat/internal/game/condition"
	"github.com/cory-johannsen/idlecombat/internal/game/dice"
	"github.com/cory-johannsen/idlecombat/internal/game/threat"
	"github.com/cory-johannsen/idlecombat/internal/gameserver"
)

// fixedSource always returns the same values. With f = 0.5 and no miss,
// crit or variance configured, every hit deals exactly max(1, atk-def).
type fixedSource struct {
	val int
	f   float64
}

func (s fixedSource) Intn(n int) int   { return s.val % n }
func (s fixedSource) Float64() float64 { return s.f }

func steady() dice.Source { return fixedSource{f: 0.5} }

func testActionParams() gameserver.ActionParams {
	return gameserver.ActionParams{
		TankThreat:        2,
		DPSThreat:         1,
		HealerThreat:      0.5,
		HealRatio:         0.5,
		TauntBonus:        50,
		ShieldFraction:    0.2,
		ShieldCooldown:    3,
		HealFraction:      0.3,
		HealThreshold:     0.5,
		HealCooldown:      2,
		InterruptCooldown: 4,
		InterruptPenalty:  2,
	}
}

func testBossParams() boss.Params {
	return boss.Params{
		Phase2At:               0.5,
		Phase3At:               0.25,
		EnrageAt:               0.2,
		EnrageAttackMultiplier: 1.5,
		EnrageSpeedMultiplier:  1.2,
		AoEMultiplier:          0.5,
		CleaveTargets:          2,
		ShoutEffect:            "intimidated",
		ShoutRounds:            2,
		AddsPerSummon:          2,
		AddStatFraction:        0.3,
		AdaptationInterval:     30 * time.Second,
		AdaptationAttackBonus:  0.1,
		AdaptationMaxLevel:     3,
	}
}

func testConditions(t *testing.T) *condition.Registry {
	t.Helper()
	reg := condition.NewRegistry()
	for _, d := range []*condition.Def{
		{ID: "stunned", Name: "Stunned", DurationType: condition.DurationRounds, Incapacitates: true, Debuff: true},
		{ID: "weakened", Name: "Weakened", DurationType: condition.DurationRounds, AttackPercent: -0.2, Debuff: true},
		{ID: "intimidated", Name: "Intimidated", DurationType: condition.DurationRounds, AttackPercent: -0.1, Debuff: true},
		{ID: "frenzy", Name: "Frenzy", DurationType: condition.DurationRounds, AttackPercent: 0.25},
	} {
		require.NoError(t, reg.Register(d))
	}
	return reg
}

// rig is a fully wired set of turn collaborators.
type rig struct {
	threat  *threat.Table
	effects *condition.Tracker
	// status is what Actions sees; it is effects unless wrapped.
	status    gameserver.StatusEffects
	damage    *combat.DamageCalculator
	mechanics *boss.Mechanics
	actions   *gameserver.Actions
	logger    *zap.Logger
	logs      *observer.ObservedLogs
}

func newRig(t *testing.T, src dice.Source) *rig {
	t.Helper()
	return newRigWith(t, src, nil)
}

// newRigWith is newRig with the status effects Actions uses replaced by
// wrap(tracker) when wrap is non-nil.
func newRigWith(t *testing.T, src dice.Source, wrap func(gameserver.StatusEffects) gameserver.StatusEffects) *rig {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	effects := condition.NewTracker(testConditions(t), logger)
	tbl := threat.NewTable()
	dmg := combat.NewDamageCalculator(combat.DamageParams{CritMultiplier: 2}, src, effects)
	mech := boss.NewMechanics(testBossParams(), tbl, dmg, effects, nil, src, logger)
	var status gameserver.StatusEffects = effects
	if wrap != nil {
		status = wrap(effects)
	}
	actions := gameserver.NewActions(testActionParams(), gameserver.ActionDeps{
		Threat:    tbl,
		Targeter:  ai.NewTargeter(tbl, mech, effects, src, 1.1),
		Scorer:    ai.NewScorer(effects, src),
		Damage:    dmg,
		Mechanics: mech,
		Effects:   status,
		Logger:    logger,
	})
	return &rig{threat: tbl, effects: effects, status: status, damage: dmg, mechanics: mech, actions: actions, logger: logger, logs: logs}
}

func stats(atk, def, hp int) combat.Stats {
	return combat.Stats{Attack: atk, Defense: def, MaxHealth: hp, Health: hp, Speed: 10}
}

// session builds a session and initialises every enemy's threat table.
func (r *rig) session(heroes []*combat.Hero, enemies ...*combat.Enemy) *combat.Session {
	s := combat.NewSession("s1", heroes, enemies, time.Unix(0, 0))
	ids := make([]string, 0, len(heroes))
	for _, h := range heroes {
		ids = append(ids, h.ID())
	}
	for _, e := range enemies {
		r.threat.Initialize(e.ID(), ids...)
	}
	return s
}
