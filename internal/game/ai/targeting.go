// Package ai decides whom enemies attack and which ability they use.
package ai

import (
	"github.com/cory-johannsen/idlecombat/internal/game/boss"
	"github.com/cory-johannsen/idlecombat/internal/game/combat"
	"github.com/cory-johannsen/idlecombat/internal/game/dice"
	"github.com/cory-johannsen/idlecombat/internal/game/threat"
)

// Strategy is an enemy targeting strategy.
type Strategy string

const (
	Aggressive Strategy = "aggressive"
	Tactical   Strategy = "tactical"
	Defensive  Strategy = "defensive"
	Boss       Strategy = "boss"
)

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case Aggressive, Tactical, Defensive, Boss:
		return true
	}
	return false
}

var tacticalPriority = []combat.Role{combat.RoleHealer, combat.RoleDPS, combat.RoleTank}

// StatusReader reports disabling status effects.
type StatusReader interface {
	IsIncapacitated(combatantID string) bool
}

// PhaseTargeter applies the boss phase target rule.
type PhaseTargeter interface {
	PhaseTarget(e *combat.Enemy, candidates []*combat.Hero) *combat.Hero
}

// Targeter selects enemy targets.
type Targeter struct {
	threat      *threat.Table
	phases      PhaseTargeter
	status      StatusReader
	src         dice.Source
	switchRatio float64
}

// NewTargeter creates a Targeter. switchRatio is how far another hero's
// threat must exceed the current target's before a defensive enemy switches;
// values <= 1 switch immediately.
//
// Precondition: tbl, phases and src must be non-nil; status may be nil.
func NewTargeter(tbl *threat.Table, phases PhaseTargeter, status StatusReader, src dice.Source, switchRatio float64) *Targeter {
	return &Targeter{threat: tbl, phases: phases, status: status, src: src, switchRatio: switchRatio}
}

// IsIncapacitated reports whether c is dead, stunned or otherwise unable to act.
func (t *Targeter) IsIncapacitated(c combat.Combatant) bool {
	if !c.IsAlive() {
		return true
	}
	return t.status != nil && t.status.IsIncapacitated(c.ID())
}

// ResolveStrategy picks the strategy for e: explicit when valid, then the
// template's strategy, then boss for multi-phase bosses, then the
// behaviour tag, then defensive.
func ResolveStrategy(e *combat.Enemy, explicit Strategy) Strategy {
	if explicit.Valid() {
		return explicit
	}
	if s := Strategy(e.Strategy); s.Valid() {
		return s
	}
	if e.MultiPhase {
		return Boss
	}
	if e.State.Behavior == boss.BehaviorAggressive {
		return Aggressive
	}
	return Defensive
}

// candidates returns the living heroes that are not incapacitated. When every
// living hero is incapacitated they are all returned, so a disabled party
// can still be finished off.
func (t *Targeter) candidates(heroes []*combat.Hero) []*combat.Hero {
	var living, able []*combat.Hero
	for _, h := range heroes {
		if !h.IsAlive() {
			continue
		}
		living = append(living, h)
		if t.status == nil || !t.status.IsIncapacitated(h.ID()) {
			able = append(able, h)
		}
	}
	if len(able) == 0 {
		return living
	}
	return able
}

// SelectTarget picks the hero e attacks in round. Enraged or threat-ignoring
// enemies pick uniformly at random; otherwise the strategy decides, falling
// back to highest threat and finally to the first candidate in party order.
//
// Postcondition: returns nil iff no hero is alive; e.State.CurrentTargetID
// is the returned hero and LastTargetSwitch is updated when it changed.
func (t *Targeter) SelectTarget(e *combat.Enemy, heroes []*combat.Hero, strategy Strategy, round int) *combat.Hero {
	cands := t.candidates(heroes)
	if len(cands) == 0 {
		return nil
	}

	var target *combat.Hero
	if e.State.Enraged || e.State.IgnoreThreat {
		target = cands[t.src.Intn(len(cands))]
	} else {
		switch ResolveStrategy(e, strategy) {
		case Aggressive:
			target = lowestHealthFraction(cands)
		case Tactical:
			target = byRolePriority(cands, tacticalPriority)
		case Boss:
			target = t.phases.PhaseTarget(e, cands)
		default:
			target = t.defensive(e, cands)
		}
		if target == nil {
			target = t.highestThreat(e, cands)
		}
		if target == nil {
			target = cands[0]
		}
	}

	if e.State.CurrentTargetID != target.ID() {
		e.State.CurrentTargetID = target.ID()
		e.State.LastTargetSwitch = round
	}
	return target
}

func (t *Targeter) highestThreat(e *combat.Enemy, cands []*combat.Hero) *combat.Hero {
	byID := make(map[string]*combat.Hero, len(cands))
	for _, h := range cands {
		byID[h.ID()] = h
	}
	id := t.threat.Highest(e.ID(), func(h string) bool { return byID[h] != nil })
	return byID[id]
}

// defensive targets the highest-threat hero but only leaves the current
// target once the leader's threat exceeds switchRatio times the current
// target's threat.
func (t *Targeter) defensive(e *combat.Enemy, cands []*combat.Hero) *combat.Hero {
	best := t.highestThreat(e, cands)
	if best == nil {
		return nil
	}
	cur := e.State.CurrentTargetID
	if cur == "" || cur == best.ID() {
		return best
	}
	for _, h := range cands {
		if h.ID() != cur {
			continue
		}
		if t.threat.Get(e.ID(), best.ID()) <= t.threat.Get(e.ID(), cur)*t.switchRatio {
			return h
		}
		break
	}
	return best
}

func lowestHealthFraction(cands []*combat.Hero) *combat.Hero {
	var lowest *combat.Hero
	for _, h := range cands {
		if lowest == nil || h.HealthFraction() < lowest.HealthFraction() {
			lowest = h
		}
	}
	return lowest
}

func byRolePriority(cands []*combat.Hero, priority []combat.Role) *combat.Hero {
	for _, role := range priority {
		for _, h := range cands {
			if h.Role == role {
				return h
			}
		}
	}
	return nil
}
