package gameserver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/cory-johannsen/idlecombat/internal/game/ai"
	"github.com/cory-johannsen/idlecombat/internal/game/boss"
	"github.com/cory-johannsen/idlecombat/internal/game/combat"
	"github.com/cory-johannsen/idlecombat/internal/game/condition"
	"github.com/cory-johannsen/idlecombat/internal/game/threat"
)

// Hero kit abilities. The names double as cooldown keys on the session.
const (
	AbilityShield    = "shield"
	AbilityHeal      = "heal"
	AbilityInterrupt = "interrupt"
)

var (
	// ErrNotCasting is returned when interrupting an enemy with no cast in progress.
	ErrNotCasting = errors.New("enemy is not casting")
	// ErrUnknownCombatant is returned when an ID names no participant of the session.
	ErrUnknownCombatant = errors.New("unknown combatant")
)

// StatusEffects is the status-effect state consulted and mutated during turns.
// It is implemented by *condition.Tracker.
type StatusEffects interface {
	Modifiers(combatantID string) condition.Modifiers
	ShieldAmount(combatantID string) int
	ConsumeShield(combatantID string, dmg int) int
	AddShield(combatantID string, amount int)
	Apply(combatantID, effectID string, rounds int) error
	Tick(combatantID string) []string
	ClearAll(combatantID string)
	IsIncapacitated(combatantID string) bool
	HasDebuff(combatantID string) bool
	Reset()
}

var _ StatusEffects = (*condition.Tracker)(nil)

// ActionParams are the balance constants for threat generation and the hero kit.
type ActionParams struct {
	TankThreat   float64
	DPSThreat    float64
	HealerThreat float64
	// HealRatio is the share of healing converted to threat, split across enemies.
	HealRatio  float64
	TauntBonus float64

	ShieldFraction    float64
	ShieldCooldown    int
	HealFraction      float64
	HealThreshold     float64
	HealCooldown      int
	InterruptCooldown int
	InterruptPenalty  int
}

// ActionKind classifies an ActionResult.
type ActionKind string

const (
	ActionAttack    ActionKind = "attack"
	ActionAbility   ActionKind = "ability"
	ActionMechanic  ActionKind = "mechanic"
	ActionCast      ActionKind = "cast"
	ActionShield    ActionKind = "shield"
	ActionHeal      ActionKind = "heal"
	ActionInterrupt ActionKind = "interrupt"
	ActionSkip      ActionKind = "skip"
)

// ActionResult is what one actor's turn did.
//
// Targets and Amounts are parallel. For damaging actions Outcomes is parallel
// to them too; for heals and shields Outcomes is nil and Amounts holds the
// health restored or absorb granted.
type ActionResult struct {
	ActorID  string
	Kind     ActionKind
	Ability  string
	Targets  []string
	Amounts  []int
	Outcomes []combat.DamageOutcome
	// Deaths lists combatants whose health reached zero during the action.
	Deaths []string
	// Afflicted lists combatants a status effect was applied to.
	Afflicted []string
	Summoned  []string
	// Expired lists the actor's status effects that ran out at turn start.
	Expired []string
	// Refreshed is true when queued stats were applied at turn start.
	Refreshed   bool
	PhaseChange *boss.PhaseChange
	Enraged     bool
	CastStarted bool
	// CastRemaining is the rounds left on the actor's cast; zero once it resolves.
	CastRemaining int
	// Interrupted is the enemy whose cast was cancelled.
	Interrupted string
	// Reason explains an ActionSkip.
	Reason string
}

// ActionDeps are the collaborators Actions resolves turns against.
type ActionDeps struct {
	Threat    *threat.Table
	Targeter  *ai.Targeter
	Scorer    *ai.Scorer
	Damage    *combat.DamageCalculator
	Mechanics *boss.Mechanics
	Effects   StatusEffects
	Logger    *zap.Logger
}

// Actions executes combatant turns. It mutates health, threat, cooldowns and
// cast state and reports what happened; it never publishes events.
//
// It is not safe for concurrent use; the orchestrator serialises access.
type Actions struct {
	params    ActionParams
	threat    *threat.Table
	targeter  *ai.Targeter
	scorer    *ai.Scorer
	damage    *combat.DamageCalculator
	mechanics *boss.Mechanics
	effects   StatusEffects
	logger    *zap.Logger
}

// NewActions creates Actions.
//
// Precondition: every field of d must be non-nil.
func NewActions(p ActionParams, d ActionDeps) *Actions {
	return &Actions{
		params:    p,
		threat:    d.Threat,
		targeter:  d.Targeter,
		scorer:    d.Scorer,
		damage:    d.Damage,
		mechanics: d.Mechanics,
		effects:   d.Effects,
		logger:    d.Logger,
	}
}

func skip(actorID, reason string) ActionResult {
	return ActionResult{ActorID: actorID, Kind: ActionSkip, Reason: reason}
}

func (a *Actions) threatMultiplier(r combat.Role) float64 {
	switch r {
	case combat.RoleTank:
		return a.params.TankThreat
	case combat.RoleHealer:
		return a.params.HealerThreat
	default:
		return a.params.DPSThreat
	}
}

// ExecutePartyTurn runs a turn for every living hero in party order and
// stops early once no hostile remains.
func (a *Actions) ExecutePartyTurn(ctx context.Context, s *combat.Session) []ActionResult {
	var out []ActionResult
	for _, h := range s.Heroes {
		if s.EnemiesDefeated() {
			break
		}
		if !h.IsAlive() {
			continue
		}
		out = append(out, a.ExecuteHeroTurn(ctx, s, h))
	}
	return out
}

// ExecuteHeroTurn runs h's turn: queued stats are applied, effects and
// cooldowns tick, then the hero uses its role ability when one applies or
// auto-attacks the focused hostile.
func (a *Actions) ExecuteHeroTurn(ctx context.Context, s *combat.Session, h *combat.Hero) ActionResult {
	if !h.IsAlive() {
		return skip(h.ID(), "dead")
	}
	refreshed := false
	if st, ok := s.TakePendingStats(h.ID()); ok {
		h.Refresh(st)
		refreshed = true
	}
	expired := a.effects.Tick(h.ID())
	s.TickCooldowns(h.ID())

	res := a.heroAction(s, h)
	res.Expired = expired
	res.Refreshed = refreshed
	return res
}

func (a *Actions) heroAction(s *combat.Session, h *combat.Hero) ActionResult {
	if a.effects.IsIncapacitated(h.ID()) {
		return skip(h.ID(), "incapacitated")
	}
	switch h.Role {
	case combat.RoleTank:
		if s.Cooldown(h.ID(), AbilityShield) == 0 {
			return a.ExecuteDefensiveAbility(s, h)
		}
	case combat.RoleHealer:
		if s.Cooldown(h.ID(), AbilityHeal) == 0 {
			if t := woundedAlly(s, a.params.HealThreshold); t != nil {
				return a.ExecuteHealAbility(s, h, t)
			}
		}
	case combat.RoleDPS:
		if s.Cooldown(h.ID(), AbilityInterrupt) == 0 {
			for _, e := range s.LivingEnemies() {
				if e.IsCasting() {
					res, err := a.InterruptEnemy(s, h.ID(), e.ID())
					if err == nil {
						return res
					}
				}
			}
		}
	}
	target := focus(s)
	if target == nil {
		return skip(h.ID(), "no target")
	}
	return a.ExecuteAutoAttack(s, h, target)
}

// focus returns the hostile heroes attack: the first living enemy, then
// the first living add.
func focus(s *combat.Session) combat.Combatant {
	if es := s.LivingEnemies(); len(es) > 0 {
		return es[0]
	}
	if as := s.LivingAdds(); len(as) > 0 {
		return as[0]
	}
	return nil
}

// woundedAlly returns the living hero with the lowest health fraction below
// threshold, or nil.
func woundedAlly(s *combat.Session, threshold float64) *combat.Hero {
	var low *combat.Hero
	for _, h := range s.LivingHeroes() {
		if h.HealthFraction() >= threshold {
			continue
		}
		if low == nil || h.HealthFraction() < low.HealthFraction() {
			low = h
		}
	}
	return low
}

// ExecuteAutoAttack resolves one basic attack of attacker against target.
//
// Postcondition: damage is applied, then threat when a hero hits a hostile,
// then the death check.
func (a *Actions) ExecuteAutoAttack(s *combat.Session, attacker, target combat.Combatant) ActionResult {
	res := ActionResult{ActorID: attacker.ID(), Kind: ActionAttack}
	out := a.damage.Calculate(attacker.Attack(), target.Defense(), attacker, target)
	a.land(s, &res, attacker, target, out)
	return res
}

// land applies out to target and records it on res.
func (a *Actions) land(s *combat.Session, res *ActionResult, attacker, target combat.Combatant, out combat.DamageOutcome) {
	wasAlive := target.IsAlive()
	out.Amount = target.ApplyDamage(out.Amount)
	res.Targets = append(res.Targets, target.ID())
	res.Amounts = append(res.Amounts, out.Amount)
	res.Outcomes = append(res.Outcomes, out)

	if h, ok := attacker.(*combat.Hero); ok && target.Kind() != combat.KindHero && out.Amount > 0 {
		a.threat.Add(target.ID(), h.ID(), float64(out.Amount), a.threatMultiplier(h.Role))
	}
	if wasAlive && !target.IsAlive() {
		a.recordDeath(s, res, target)
	}
}

func (a *Actions) recordDeath(s *combat.Session, res *ActionResult, c combat.Combatant) {
	res.Deaths = append(res.Deaths, c.ID())
	a.effects.ClearAll(c.ID())
	switch v := c.(type) {
	case *combat.Hero:
		a.threat.RemoveHero(v.ID())
	case *combat.Enemy:
		v.State.Casting = nil
		a.threat.RemoveEnemy(v.ID())
	case *combat.Add:
		a.threat.RemoveEnemy(v.ID())
	}
	a.logger.Info("combatant died",
		zap.String("session", s.ID),
		zap.String("combatant", c.ID()),
		zap.String("kind", c.Kind().String()),
		zap.Int("round", s.Round),
	)
}

// ExecuteDefensiveAbility shields tank for a fraction of its max health and
// taunts every living hostile.
func (a *Actions) ExecuteDefensiveAbility(s *combat.Session, tank *combat.Hero) ActionResult {
	amount := int(math.Round(float64(tank.MaxHealth()) * a.params.ShieldFraction))
	a.effects.AddShield(tank.ID(), amount)
	s.SetCooldown(tank.ID(), AbilityShield, a.params.ShieldCooldown)
	for _, id := range hostileIDs(s) {
		a.threat.Add(id, tank.ID(), a.params.TauntBonus, 1)
	}
	return ActionResult{
		ActorID: tank.ID(),
		Kind:    ActionShield,
		Ability: AbilityShield,
		Targets: []string{tank.ID()},
		Amounts: []int{amount},
	}
}

// ExecuteHealAbility restores a fraction of target's max health. The threat
// generated is the healing times the heal ratio, spread evenly across every
// living hostile.
func (a *Actions) ExecuteHealAbility(s *combat.Session, healer, target *combat.Hero) ActionResult {
	healed := target.Heal(int(math.Round(float64(target.MaxHealth()) * a.params.HealFraction)))
	s.SetCooldown(healer.ID(), AbilityHeal, a.params.HealCooldown)
	if hostiles := hostileIDs(s); healed > 0 && len(hostiles) > 0 {
		per := float64(healed) * a.params.HealRatio / float64(len(hostiles))
		for _, id := range hostiles {
			a.threat.Add(id, healer.ID(), per, a.threatMultiplier(healer.Role))
		}
	}
	return ActionResult{
		ActorID: healer.ID(),
		Kind:    ActionHeal,
		Ability: AbilityHeal,
		Targets: []string{target.ID()},
		Amounts: []int{healed},
	}
}

func hostileIDs(s *combat.Session) []string {
	var ids []string
	for _, e := range s.LivingEnemies() {
		ids = append(ids, e.ID())
	}
	for _, ad := range s.LivingAdds() {
		ids = append(ids, ad.ID())
	}
	return ids
}

// InterruptEnemy cancels enemyID's cast and adds the interrupt penalty to
// the cancelled ability's cooldown. actorID, when non-empty, is the hero
// spending its interrupt.
func (a *Actions) InterruptEnemy(s *combat.Session, actorID, enemyID string) (ActionResult, error) {
	e := s.Enemy(enemyID)
	if e == nil {
		return ActionResult{}, fmt.Errorf("gameserver: InterruptEnemy %q: %w", enemyID, ErrUnknownCombatant)
	}
	if !e.IsCasting() {
		return ActionResult{}, fmt.Errorf("gameserver: InterruptEnemy %q: %w", enemyID, ErrNotCasting)
	}
	ab := e.State.Casting.Ability
	e.State.Casting = nil
	s.SetCooldown(e.ID(), ab.Name, s.Cooldown(e.ID(), ab.Name)+a.params.InterruptPenalty)
	if actorID != "" {
		s.SetCooldown(actorID, AbilityInterrupt, a.params.InterruptCooldown)
	}
	a.logger.Debug("cast interrupted",
		zap.String("enemy", enemyID),
		zap.String("ability", ab.Name),
		zap.String("by", actorID),
	)
	return ActionResult{
		ActorID:     actorID,
		Kind:        ActionInterrupt,
		Ability:     ab.Name,
		Targets:     []string{enemyID},
		Interrupted: enemyID,
	}, nil
}

// ExecuteEnemyTurn runs e's turn: effects and cooldowns tick, phase and
// enrage are evaluated, then an in-progress cast advances or a new ability
// is chosen by score, falling back to an auto-attack.
func (a *Actions) ExecuteEnemyTurn(ctx context.Context, s *combat.Session, e *combat.Enemy) ActionResult {
	if !e.IsAlive() {
		return skip(e.ID(), "dead")
	}
	expired := a.effects.Tick(e.ID())
	s.TickCooldowns(e.ID())

	pc := a.mechanics.EvaluatePhase(e)
	enraged := false
	if a.mechanics.CheckEnrage(e, s.Round) {
		enraged = a.mechanics.TriggerEnrage(e)
	}

	res := a.enemyAction(ctx, s, e)
	res.Expired = expired
	res.Enraged = enraged
	if pc.Changed {
		res.PhaseChange = &pc
	}
	return res
}

func (a *Actions) enemyAction(ctx context.Context, s *combat.Session, e *combat.Enemy) ActionResult {
	if a.effects.IsIncapacitated(e.ID()) {
		return skip(e.ID(), "incapacitated")
	}

	if c := e.State.Casting; c != nil {
		c.RoundsRemaining--
		if c.RoundsRemaining > 0 {
			return ActionResult{
				ActorID:       e.ID(),
				Kind:          ActionCast,
				Ability:       c.Ability.Name,
				Targets:       []string{c.TargetID},
				CastRemaining: c.RoundsRemaining,
			}
		}
		e.State.Casting = nil
		target := s.Hero(c.TargetID)
		if target == nil || !target.IsAlive() {
			target = a.targeter.SelectTarget(e, s.Heroes, "", s.Round)
		}
		if target == nil {
			return skip(e.ID(), "no target")
		}
		return a.resolveAbility(ctx, s, e, c.Ability, target)
	}

	target := a.targeter.SelectTarget(e, s.Heroes, "", s.Round)
	if target == nil {
		return skip(e.ID(), "no target")
	}
	ab := a.scorer.Choose(e, ai.EligibleAbilities(e, s), s.LivingHeroes())
	if ab == nil {
		return a.ExecuteAutoAttack(s, e, target)
	}
	s.SetCooldown(e.ID(), ab.Name, ab.Cooldown)
	if ab.CastTime > 0 {
		e.State.Casting = &combat.Cast{Ability: ab, TargetID: target.ID(), RoundsRemaining: ab.CastTime}
		return ActionResult{
			ActorID:       e.ID(),
			Kind:          ActionCast,
			Ability:       ab.Name,
			Targets:       []string{target.ID()},
			CastStarted:   true,
			CastRemaining: ab.CastTime,
		}
	}
	return a.resolveAbility(ctx, s, e, ab, target)
}

// resolveAbility applies ab from e. Mechanic abilities run through boss
// mechanics; a failing mechanic degrades to an auto-attack on target.
func (a *Actions) resolveAbility(ctx context.Context, s *combat.Session, e *combat.Enemy, ab *combat.Ability, target *combat.Hero) ActionResult {
	e.State.LastAbility = ab
	res := ActionResult{ActorID: e.ID(), Kind: ActionAbility, Ability: ab.Name}

	if ab.Mechanic != "" {
		alive := livingSet(s)
		mr, err := a.mechanics.ExecuteMechanic(ctx, e, ab.Mechanic, s)
		if err != nil {
			a.logger.Warn("mechanic failed",
				zap.String("enemy", e.ID()),
				zap.String("mechanic", ab.Mechanic),
				zap.Error(err),
			)
			if !target.IsAlive() {
				return skip(e.ID(), "no target")
			}
			return a.ExecuteAutoAttack(s, e, target)
		}
		res.Kind = ActionMechanic
		res.Targets, res.Amounts, res.Outcomes = mr.Targets, mr.Amounts, mr.Outcomes
		res.Afflicted = mr.Afflicted
		for _, add := range mr.Summoned {
			res.Summoned = append(res.Summoned, add.ID())
		}
		for _, h := range s.Heroes {
			if alive[h.ID()] && !h.IsAlive() {
				a.recordDeath(s, &res, h)
			}
		}
		return res
	}

	switch ab.Type {
	case combat.AbilityDamage, combat.AbilityStun:
		a.strike(s, &res, e, target, ab)
	case combat.AbilityAoE:
		for _, h := range s.LivingHeroes() {
			a.strike(s, &res, e, h, ab)
		}
	case combat.AbilityDebuff:
		a.afflict(&res, target.ID(), ab)
	case combat.AbilityBuff:
		a.afflict(&res, e.ID(), ab)
	case combat.AbilityHeal:
		res.Kind = ActionHeal
		healed := e.Heal(int(math.Round(float64(e.MaxHealth()) * ab.Power)))
		res.Targets = []string{e.ID()}
		res.Amounts = []int{healed}
	}
	return res
}

// strike hits target with ab's scaled attack and applies ab's effect on a hit.
func (a *Actions) strike(s *combat.Session, res *ActionResult, e *combat.Enemy, target *combat.Hero, ab *combat.Ability) {
	out := a.damage.Calculate(combat.Scaled(e.Attack(), ab.Power), target.Defense(), e, target)
	a.land(s, res, e, target, out)
	if !out.Miss && target.IsAlive() {
		a.afflict(res, target.ID(), ab)
	}
}

func (a *Actions) afflict(res *ActionResult, id string, ab *combat.Ability) {
	if ab.Effect == "" {
		return
	}
	if err := a.effects.Apply(id, ab.Effect, ab.EffectRounds); err != nil {
		a.logger.Warn("effect not applied",
			zap.String("combatant", id),
			zap.String("effect", ab.Effect),
			zap.Error(err),
		)
		return
	}
	res.Afflicted = append(res.Afflicted, id)
}

func livingSet(s *combat.Session) map[string]bool {
	out := make(map[string]bool, len(s.Heroes))
	for _, h := range s.LivingHeroes() {
		out[h.ID()] = true
	}
	return out
}

// ExecuteAddsAttack has every living, able add auto-attack the hero it holds
// the most threat for, else the first living hero.
func (a *Actions) ExecuteAddsAttack(s *combat.Session) []ActionResult {
	var out []ActionResult
	for _, add := range s.LivingAdds() {
		expired := a.effects.Tick(add.ID())
		if a.effects.IsIncapacitated(add.ID()) {
			res := skip(add.ID(), "incapacitated")
			res.Expired = expired
			out = append(out, res)
			continue
		}
		target := a.addTarget(s, add)
		if target == nil {
			break
		}
		res := a.ExecuteAutoAttack(s, add, target)
		res.Expired = expired
		out = append(out, res)
	}
	return out
}

func (a *Actions) addTarget(s *combat.Session, add *combat.Add) *combat.Hero {
	living := s.LivingHeroes()
	if len(living) == 0 {
		return nil
	}
	id := a.threat.Highest(add.ID(), func(h string) bool {
		hero := s.Hero(h)
		return hero != nil && hero.IsAlive()
	})
	if h := s.Hero(id); h != nil {
		return h
	}
	return living[0]
}
