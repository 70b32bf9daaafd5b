package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/idlecombat/internal/config"
	"github.com/cory-johannsen/idlecombat/internal/game/ai"
	"github.com/cory-johannsen/idlecombat/internal/game/boss"
	"github.com/cory-johannsen/idlecombat/internal/game/combat"
	"github.com/cory-johannsen/idlecombat/internal/game/condition"
	"github.com/cory-johannsen/idlecombat/internal/game/dice"
	"github.com/cory-johannsen/idlecombat/internal/game/inventory"
	"github.com/cory-johannsen/idlecombat/internal/game/party"
	"github.com/cory-johannsen/idlecombat/internal/game/reward"
	"github.com/cory-johannsen/idlecombat/internal/game/threat"
	"github.com/cory-johannsen/idlecombat/internal/gameserver"
	"github.com/cory-johannsen/idlecombat/internal/observability"
	"github.com/cory-johannsen/idlecombat/internal/scripting"
)

// ErrTurnLimit is returned by Run when combat outlasts its turn budget.
var ErrTurnLimit = errors.New("engine: turn limit reached")

// DamageParams converts the damage section.
func DamageParams(c config.DamageConfig) combat.DamageParams {
	return combat.DamageParams{
		MissChance:     c.MissChance,
		CritChance:     c.CritChance,
		CritMultiplier: c.CritMultiplier,
		Variance:       c.Variance,
	}
}

// ActionParams converts the threat, hero and interrupt settings.
func ActionParams(c config.CombatConfig) gameserver.ActionParams {
	return gameserver.ActionParams{
		TankThreat:        c.Threat.TankMultiplier,
		DPSThreat:         c.Threat.DPSMultiplier,
		HealerThreat:      c.Threat.HealerMultiplier,
		HealRatio:         c.Threat.HealRatio,
		TauntBonus:        c.Threat.TauntBonus,
		ShieldFraction:    c.Hero.ShieldFraction,
		ShieldCooldown:    c.Hero.ShieldCooldown,
		HealFraction:      c.Hero.HealFraction,
		HealThreshold:     c.Hero.HealThreshold,
		HealCooldown:      c.Hero.HealCooldown,
		InterruptCooldown: c.Hero.InterruptCooldown,
		InterruptPenalty:  c.Boss.InterruptPenalty,
	}
}

// BossParams converts the boss and adaptation sections.
func BossParams(c config.CombatConfig) boss.Params {
	b, a := c.Boss, c.Adaptation
	return boss.Params{
		Phase2At:               b.Phase2At,
		Phase3At:               b.Phase3At,
		EnrageAt:               b.EnrageAt,
		EnrageRound:            b.EnrageRound,
		EnrageAttackMultiplier: b.EnrageAttackMultiplier,
		EnrageSpeedMultiplier:  b.EnrageSpeedMultiplier,
		AoEMultiplier:          b.AoEMultiplier,
		CleaveTargets:          b.CleaveTargets,
		ShoutEffect:            b.ShoutCondition,
		ShoutRounds:            b.ShoutRounds,
		AddsPerSummon:          b.AddsPerSummon,
		AddStatFraction:        b.AddStatFraction,
		AdaptationInterval:     a.Interval,
		AdaptationAttackBonus:  a.AttackBonus,
		AdaptationMaxLevel:     a.MaxLevel,
	}
}

// RewardParams converts the rewards section.
func RewardParams(c config.RewardsConfig) reward.Params {
	return reward.Params{
		BaseExperience:     c.BaseExperience,
		BaseGold:           c.BaseGold,
		MileScaling:        c.MileScaling,
		BossMultiplier:     c.BossMultiplier,
		DefeatFraction:     c.DefeatFraction,
		QualityWeights:     c.QualityWeights,
		QualityMileShift:   c.QualityMileShift,
		QualityMultipliers: c.QualityMultipliers,
		BossProcedural:     c.BossProcedural,
	}
}

// FallbackStats converts the hero fallback block.
func FallbackStats(s config.StatsConfig) combat.Stats {
	return combat.Stats{Attack: s.Attack, Defense: s.Defense, MaxHealth: s.MaxHealth, Health: s.MaxHealth, Speed: s.Speed}
}

// Engine is a fully wired combat engine for one party.
type Engine struct {
	Orchestrator *gameserver.Orchestrator
	Bus          *gameserver.Bus
	Roster       *party.Roster
	Equipment    *inventory.Equipment
	Stash        *inventory.Stash
	Content      *Content

	cfg     config.Config
	scripts *scripting.Manager
	logger  *zap.Logger
}

// New wires every collaborator from cfg and content. src drives every
// random draw; pass a seeded source for reproducible runs.
//
// Precondition: content must come from LoadContent; src and logger must be non-nil.
// Postcondition: the orchestrator is Idle; Close releases the script VMs.
func New(cfg config.Config, content *Content, src dice.Source, logger *zap.Logger) (*Engine, error) {
	roller := dice.NewRoller(src, logger)

	var scripts *scripting.Manager
	if content.Scripts != "" {
		start := time.Now()
		scripts = scripting.NewManager(roller, observability.Component(logger, "scripting"), cfg.Scripting.InstructionLimit)
		if err := scripts.LoadTree(content.Scripts); err != nil {
			scripts.Close()
			return nil, fmt.Errorf("loading scripts: %w", err)
		}
		logger.Info("scripts loaded", zap.Duration("elapsed", time.Since(start)))
	}

	roster, err := party.NewRosterFromDefs(content.Heroes)
	if err != nil {
		if scripts != nil {
			scripts.Close()
		}
		return nil, fmt.Errorf("building roster: %w", err)
	}

	effects := condition.NewTracker(content.Conditions, observability.Component(logger, "conditions"))
	tbl := threat.NewTable()
	dmg := combat.NewDamageCalculator(DamageParams(cfg.Combat.Damage), src, effects)

	// A nil *scripting.Manager must not become a non-nil interface.
	var runner boss.ScriptRunner
	if scripts != nil {
		runner = scripts
	}
	mech := boss.NewMechanics(BossParams(cfg.Combat), tbl, dmg, effects, runner, src, observability.Component(logger, "boss"))

	actions := gameserver.NewActions(ActionParams(cfg.Combat), gameserver.ActionDeps{
		Threat:    tbl,
		Targeter:  ai.NewTargeter(tbl, mech, effects, src, cfg.Combat.Threat.TargetSwitchRatio),
		Scorer:    ai.NewScorer(effects, src),
		Damage:    dmg,
		Mechanics: mech,
		Effects:   effects,
		Logger:    observability.Component(logger, "actions"),
	})

	equipment := inventory.NewEquipment(roster)
	stash := inventory.NewStash(cfg.Rewards.StashSlots)
	bus := gameserver.NewBus(observability.Component(logger, "events"))

	orch := gameserver.NewOrchestrator(gameserver.OrchestratorDeps{
		Roster:         roster,
		Equipment:      equipment,
		Encounters:     content.Enemies,
		Effects:        effects,
		Threat:         tbl,
		Actions:        actions,
		Mechanics:      mech,
		Rewards:        reward.NewCalculator(RewardParams(cfg.Rewards), roller, content.Items, observability.Component(logger, "rewards")),
		Awards:         roster,
		Stash:          stash,
		Publisher:      bus,
		Fallback:       FallbackStats(cfg.Combat.Hero.Fallback),
		DecayPerSecond: cfg.Combat.Threat.DecayPerSecond,
		Logger:         observability.Component(logger, "orchestrator"),
	})
	equipment.OnChange(orch.NotifyEquipmentChanged)

	return &Engine{
		Orchestrator: orch,
		Bus:          bus,
		Roster:       roster,
		Equipment:    equipment,
		Stash:        stash,
		Content:      content,
		cfg:          cfg,
		scripts:      scripts,
		logger:       logger,
	}, nil
}

// Close releases the script VMs.
func (e *Engine) Close() {
	if e.scripts != nil {
		e.scripts.Close()
	}
}

// Run fights enemyID with the whole roster, advancing simulated time by the
// configured tick interval per turn until combat ends. A maxTurns above
// zero bounds the fight; reaching it aborts combat and returns ErrTurnLimit.
//
// Postcondition: on success the orchestrator is Idle and the result is the
// fight's rewards.
func (e *Engine) Run(ctx context.Context, enemyID string, maxTurns int) (*reward.Result, error) {
	o := e.Orchestrator
	if err := o.StartCombat(ctx, enemyID, nil); err != nil {
		return nil, err
	}
	for turns := 0; o.IsActive(); turns++ {
		if maxTurns > 0 && turns >= maxTurns {
			if err := o.Abort(ctx); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w after %d turns", ErrTurnLimit, turns)
		}
		if err := ctx.Err(); err != nil {
			_ = o.Abort(context.WithoutCancel(ctx))
			return nil, err
		}
		if _, err := o.Tick(ctx, e.cfg.Combat.TickInterval); err != nil && !errors.Is(err, gameserver.ErrNoCombat) {
			return nil, err
		}
	}
	return o.Result(), nil
}

// AutoEncounter returns a TickFunc that starts a fight against enemyID
// whenever the orchestrator is idle, making combat continuous. Start
// failures are logged.
func (e *Engine) AutoEncounter(enemyID string) gameserver.TickFunc {
	return func(ctx context.Context, _ time.Duration) {
		if e.Orchestrator.IsActive() {
			return
		}
		if err := e.Orchestrator.StartCombat(ctx, enemyID, nil); err != nil {
			e.logger.Warn("starting encounter", zap.String("enemy", enemyID), zap.Error(err))
		}
	}
}
