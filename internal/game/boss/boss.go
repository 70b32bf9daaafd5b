// Package boss implements enemy phase transitions, enrage, adaptation and the
// named special mechanics bosses execute during an encounter.
package boss

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/idlecombat/internal/game/combat"
	"github.com/cory-johannsen/idlecombat/internal/game/dice"
	"github.com/cory-johannsen/idlecombat/internal/game/threat"
	"github.com/cory-johannsen/idlecombat/internal/scripting"
)

// Built-in mechanic names.
const (
	MechanicAoE               = "aoe"
	MechanicCleave            = "cleave"
	MechanicIntimidatingShout = "intimidating_shout"
	MechanicSummonAdds        = "summon_adds"
)

// Behaviour tags carried by regular enemies.
const (
	BehaviorDefensive  = "defensive"
	BehaviorAggressive = "aggressive"
	BehaviorEnrage     = "enrage"
)

// Params are the balance constants for phases, enrage, mechanics and adaptation.
type Params struct {
	// Phase2At and Phase3At are health fractions; Phase3At < Phase2At.
	Phase2At               float64
	Phase3At               float64
	EnrageAt               float64
	EnrageRound            int
	EnrageAttackMultiplier float64
	EnrageSpeedMultiplier  float64
	AoEMultiplier          float64
	CleaveTargets          int
	ShoutEffect            string
	ShoutRounds            int
	AddsPerSummon          int
	AddStatFraction        float64
	AdaptationInterval     time.Duration
	AdaptationAttackBonus  float64
	AdaptationMaxLevel     int
}

// EffectApplier applies status effects to combatants.
type EffectApplier interface {
	Apply(combatantID, effectID string, rounds int) error
}

// ScriptRunner executes script-backed mechanics.
type ScriptRunner interface {
	CallMechanic(ctx context.Context, ns, mechanic string, env scripting.Env) (bool, error)
}

// PhaseChange describes the outcome of EvaluatePhase.
type PhaseChange struct {
	From, To    combat.Phase
	Changed     bool
	ThreatWiped bool
}

// MechanicResult records what one mechanic did.
type MechanicResult struct {
	Mechanic string
	Targets  []string
	Amounts  []int
	Outcomes []combat.DamageOutcome
	// Afflicted lists the combatants a status effect was applied to.
	Afflicted []string
	Summoned  []*combat.Add
}

func (r *MechanicResult) hit(target string, out combat.DamageOutcome) {
	r.Targets = append(r.Targets, target)
	r.Amounts = append(r.Amounts, out.Amount)
	r.Outcomes = append(r.Outcomes, out)
}

// Mechanics evaluates boss state and executes mechanics.
//
// It is not safe for concurrent use; the caller must serialise access.
type Mechanics struct {
	params  Params
	threat  *threat.Table
	damage  *combat.DamageCalculator
	effects EffectApplier
	scripts ScriptRunner
	src     dice.Source
	logger  *zap.Logger
}

// NewMechanics creates Mechanics.
//
// Precondition: threat, damage, src and logger must be non-nil; effects and
// scripts may be nil, disabling shouts and script-backed mechanics respectively.
func NewMechanics(p Params, tbl *threat.Table, damage *combat.DamageCalculator, effects EffectApplier, scripts ScriptRunner, src dice.Source, logger *zap.Logger) *Mechanics {
	return &Mechanics{params: p, threat: tbl, damage: damage, effects: effects, scripts: scripts, src: src, logger: logger}
}

// Phase derives e's phase from its health fraction.
//
// Postcondition: returns PhaseEnrage iff e is enraged; otherwise the result
// depends only on e.HealthFraction().
func (m *Mechanics) Phase(e *combat.Enemy) combat.Phase {
	if e.State.Enraged {
		return combat.PhaseEnrage
	}
	f := e.HealthFraction()
	switch {
	case f <= m.params.Phase3At:
		return combat.PhaseThree
	case f <= m.params.Phase2At:
		return combat.PhaseTwo
	default:
		return combat.PhaseOne
	}
}

// EvaluatePhase records e's current phase. Multi-phase bosses have their
// threat wiped on every transition; regular enemies only switch behaviour tag.
func (m *Mechanics) EvaluatePhase(e *combat.Enemy) PhaseChange {
	to := m.Phase(e)
	pc := PhaseChange{From: e.State.Phase, To: to}
	if pc.From == to {
		return pc
	}
	pc.Changed = true
	e.State.Phase = to
	if e.MultiPhase {
		m.threat.Wipe(e.ID())
		pc.ThreatWiped = true
	} else {
		e.State.Behavior = behaviorFor(to)
	}
	m.logger.Info("phase change",
		zap.String("enemy", e.ID()),
		zap.String("from", string(pc.From)),
		zap.String("to", string(to)),
		zap.Bool("threat_wiped", pc.ThreatWiped),
	)
	return pc
}

func behaviorFor(p combat.Phase) string {
	switch p {
	case combat.PhaseOne:
		return BehaviorDefensive
	case combat.PhaseEnrage:
		return BehaviorEnrage
	default:
		return BehaviorAggressive
	}
}

func (m *Mechanics) enrageThresholds(e *combat.Enemy) (float64, int) {
	at, round := m.params.EnrageAt, m.params.EnrageRound
	if !e.Boss {
		at, round = 0, 0
	}
	if e.EnrageAt > 0 {
		at = e.EnrageAt
	}
	if e.EnrageRound > 0 {
		round = e.EnrageRound
	}
	return at, round
}

// CheckEnrage reports whether e should enrage now: it is not yet enraged and
// its health fraction or the round has crossed its threshold. Bosses use the
// default thresholds; other enemies only enrage when their template sets one.
func (m *Mechanics) CheckEnrage(e *combat.Enemy, round int) bool {
	if e.State.Enraged || !e.IsAlive() {
		return false
	}
	at, atRound := m.enrageThresholds(e)
	if at > 0 && e.HealthFraction() <= at {
		return true
	}
	return atRound > 0 && round >= atRound
}

// TriggerEnrage enrages e once.
//
// Postcondition: e.State.Enraged; attack and speed multipliers are scaled;
// e's threat table is wiped. Returns false if e was already enraged.
func (m *Mechanics) TriggerEnrage(e *combat.Enemy) bool {
	if e.State.Enraged {
		return false
	}
	e.State.Enraged = true
	e.State.AttackMultiplier *= m.params.EnrageAttackMultiplier
	e.State.SpeedMultiplier *= m.params.EnrageSpeedMultiplier
	e.State.Phase = combat.PhaseEnrage
	e.State.Behavior = BehaviorEnrage
	m.threat.Wipe(e.ID())
	m.logger.Info("enrage", zap.String("enemy", e.ID()), zap.Int("attack", e.Attack()))
	return true
}

// Adapt raises e's adaptation level from the encounter's elapsed time.
//
// Postcondition: AdaptationLevel == min(max level, elapsed / interval) and never decreases.
func (m *Mechanics) Adapt(e *combat.Enemy, elapsed time.Duration) bool {
	if m.params.AdaptationInterval <= 0 {
		return false
	}
	level := min(int(elapsed/m.params.AdaptationInterval), m.params.AdaptationMaxLevel)
	if level <= e.State.AdaptationLevel {
		return false
	}
	e.State.AdaptationLevel = level
	e.State.AdaptationBonus = float64(level) * m.params.AdaptationAttackBonus
	return true
}

// PhaseTarget applies the phase-based boss target rule: highest threat in
// phase one, healers then DPS in phase two, lowest health in phase three and
// a random hero while enraged. Returns nil when the rule finds no candidate.
//
// Precondition: candidates are alive.
func (m *Mechanics) PhaseTarget(e *combat.Enemy, candidates []*combat.Hero) *combat.Hero {
	if len(candidates) == 0 {
		return nil
	}
	switch m.Phase(e) {
	case combat.PhaseTwo:
		for _, role := range []combat.Role{combat.RoleHealer, combat.RoleDPS} {
			for _, h := range candidates {
				if h.Role == role {
					return h
				}
			}
		}
		return nil
	case combat.PhaseThree:
		lowest := candidates[0]
		for _, h := range candidates[1:] {
			if h.CurrentHealth() < lowest.CurrentHealth() {
				lowest = h
			}
		}
		return lowest
	case combat.PhaseEnrage:
		return candidates[m.src.Intn(len(candidates))]
	default:
		eligible := make(map[string]bool, len(candidates))
		for _, h := range candidates {
			eligible[h.ID()] = true
		}
		id := m.threat.Highest(e.ID(), func(h string) bool { return eligible[h] })
		for _, h := range candidates {
			if h.ID() == id {
				return h
			}
		}
		return nil
	}
}

// ExecuteMechanic runs the named mechanic for e against s's party.
// Unknown built-ins are delegated to e's script namespace.
func (m *Mechanics) ExecuteMechanic(ctx context.Context, e *combat.Enemy, name string, s *combat.Session) (MechanicResult, error) {
	res := MechanicResult{Mechanic: name}
	switch name {
	case MechanicAoE:
		m.aoe(e, s, &res)
	case MechanicCleave:
		m.cleave(e, s, &res)
	case MechanicIntimidatingShout:
		if err := m.shout(s, &res); err != nil {
			return res, err
		}
	case MechanicSummonAdds:
		m.summon(e, s, &res)
	default:
		if err := m.script(ctx, e, name, s, &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (m *Mechanics) strike(e *combat.Enemy, h *combat.Hero, power float64, res *MechanicResult) {
	out := m.damage.Calculate(combat.Scaled(e.Attack(), power), h.Defense(), e, h)
	out.Amount = h.ApplyDamage(out.Amount)
	res.hit(h.ID(), out)
}

func (m *Mechanics) aoe(e *combat.Enemy, s *combat.Session, res *MechanicResult) {
	for _, h := range s.LivingHeroes() {
		m.strike(e, h, m.params.AoEMultiplier, res)
	}
}

// cleave hits the first living tank plus up to CleaveTargets DPS in party order.
func (m *Mechanics) cleave(e *combat.Enemy, s *combat.Session, res *MechanicResult) {
	var targets []*combat.Hero
	for _, h := range s.LivingHeroes() {
		if h.Role == combat.RoleTank {
			targets = append(targets, h)
			break
		}
	}
	dps := 0
	for _, h := range s.LivingHeroes() {
		if h.Role == combat.RoleDPS && dps < m.params.CleaveTargets {
			targets = append(targets, h)
			dps++
		}
	}
	for _, h := range targets {
		m.strike(e, h, 1, res)
	}
}

func (m *Mechanics) shout(s *combat.Session, res *MechanicResult) error {
	if m.effects == nil || m.params.ShoutEffect == "" {
		return nil
	}
	for _, h := range s.LivingHeroes() {
		if err := m.effects.Apply(h.ID(), m.params.ShoutEffect, m.params.ShoutRounds); err != nil {
			return fmt.Errorf("boss: intimidating shout: %w", err)
		}
		res.Afflicted = append(res.Afflicted, h.ID())
	}
	return nil
}

func (m *Mechanics) summon(e *combat.Enemy, s *combat.Session, res *MechanicResult) {
	name := e.AddName
	if name == "" {
		name = e.Name() + " Minion"
	}
	base := e.Stats()
	frac := m.params.AddStatFraction
	st := combat.Stats{
		Attack:    max(1, int(float64(e.BaseAttack())*frac)),
		Defense:   int(float64(base.Defense) * frac),
		MaxHealth: max(1, int(float64(base.MaxHealth)*frac)),
		Speed:     base.Speed,
	}
	st.Health = st.MaxHealth

	heroIDs := make([]string, 0, len(s.Heroes))
	for _, h := range s.LivingHeroes() {
		heroIDs = append(heroIDs, h.ID())
	}
	for i := 0; i < m.params.AddsPerSummon; i++ {
		add := combat.NewAdd(uuid.New().String(), name, e.ID(), st)
		s.SummonAdd(add)
		m.threat.Initialize(add.ID(), heroIDs...)
		res.Summoned = append(res.Summoned, add)
	}
}

func (m *Mechanics) script(ctx context.Context, e *combat.Enemy, name string, s *combat.Session, res *MechanicResult) error {
	if m.scripts == nil {
		return fmt.Errorf("boss: unknown mechanic %q", name)
	}
	env := scripting.Env{
		ActorID: e.ID(),
		Heroes: func() []scripting.HeroView {
			var out []scripting.HeroView
			for _, h := range s.LivingHeroes() {
				out = append(out, scripting.HeroView{
					ID: h.ID(), Name: h.Name(), Role: string(h.Role),
					Health: h.CurrentHealth(), MaxHealth: h.MaxHealth(),
				})
			}
			return out
		},
		Damage: func(id string, amount int) int {
			h := s.Hero(id)
			if h == nil || !h.IsAlive() {
				return 0
			}
			out := m.damage.Calculate(amount, h.Defense(), e, h)
			out.Amount = h.ApplyDamage(out.Amount)
			res.hit(id, out)
			return out.Amount
		},
		DamageAll: func(mult float64) int {
			total := 0
			for _, h := range s.LivingHeroes() {
				before := len(res.Amounts)
				m.strike(e, h, mult, res)
				total += res.Amounts[before]
			}
			return total
		},
		ApplyCondition: func(id, effect string, rounds int) error {
			if m.effects == nil {
				return fmt.Errorf("no status effects tracked")
			}
			if s.Combatant(id) == nil {
				return fmt.Errorf("unknown combatant %q", id)
			}
			if err := m.effects.Apply(id, effect, rounds); err != nil {
				return err
			}
			res.Afflicted = append(res.Afflicted, id)
			return nil
		},
	}
	handled, err := m.scripts.CallMechanic(ctx, e.ScriptID, name, env)
	if err != nil {
		return fmt.Errorf("boss: mechanic %q: %w", name, err)
	}
	if !handled {
		return fmt.Errorf("boss: unknown mechanic %q", name)
	}
	return nil
}
