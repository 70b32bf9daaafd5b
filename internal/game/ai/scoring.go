package ai

import (
	"sort"

	"github.com/cory-johannsen/idlecombat/internal/game/combat"
	"github.com/cory-johannsen/idlecombat/internal/game/dice"
)

// Scoring weights.
const (
	baseScore           = 50
	debuffedTargetBonus = 20
	finisherLowBonus    = 30
	finisherMidBonus    = 15
	openingDebuffBonus  = 25
	selfSustainBonus    = 20
	topCandidates       = 3
)

// combos maps a previous ability tag to the follow-up tag it rewards.
var combos = []struct {
	prev, next string
	bonus      int
}{
	{combat.TagDebuff, combat.TagAttack, 20},
	{combat.TagStun, combat.TagHeavy, 30},
	{combat.TagAttack, combat.TagFinisher, 25},
}

// DebuffReader reports whether a combatant carries a debuff.
type DebuffReader interface {
	HasDebuff(combatantID string) bool
}

// Scored pairs an ability with its heuristic score.
type Scored struct {
	Ability *combat.Ability
	Score   int
}

// Scorer ranks enemy abilities and draws one.
type Scorer struct {
	status DebuffReader
	src    dice.Source
}

// NewScorer creates a Scorer.
//
// Precondition: src must be non-nil; status may be nil (no hero is debuffed).
func NewScorer(status DebuffReader, src dice.Source) *Scorer {
	return &Scorer{status: status, src: src}
}

// EligibleAbilities returns e's abilities that are off cooldown and usable in e's phase.
func EligibleAbilities(e *combat.Enemy, s *combat.Session) []*combat.Ability {
	var out []*combat.Ability
	for _, a := range e.Abilities {
		if s.Cooldown(e.ID(), a.Name) == 0 && a.AvailableIn(e.State.Phase) {
			out = append(out, a)
		}
	}
	return out
}

func (sc *Scorer) anyDebuffed(heroes []*combat.Hero) bool {
	if sc.status == nil {
		return false
	}
	for _, h := range heroes {
		if h.IsAlive() && sc.status.HasDebuff(h.ID()) {
			return true
		}
	}
	return false
}

func lowestFraction(heroes []*combat.Hero) float64 {
	lowest := 1.0
	for _, h := range heroes {
		if h.IsAlive() && h.HealthFraction() < lowest {
			lowest = h.HealthFraction()
		}
	}
	return lowest
}

// Score rates a for e against heroes.
//
// Postcondition: 0 <= score <= 100.
func (sc *Scorer) Score(e *combat.Enemy, a *combat.Ability, heroes []*combat.Hero) int {
	score := baseScore
	debuffed := sc.anyDebuffed(heroes)

	if debuffed && a.DealsDamage() {
		score += debuffedTargetBonus
	}
	if a.HasTag(combat.TagFinisher) {
		switch low := lowestFraction(heroes); {
		case low < 0.25:
			score += finisherLowBonus
		case low < 0.5:
			score += finisherMidBonus
		}
	}
	if a.Type == combat.AbilityDebuff && !debuffed {
		score += openingDebuffBonus
	}
	if (a.Type == combat.AbilityHeal || a.Type == combat.AbilityBuff) && e.HealthFraction() < 0.5 {
		score += selfSustainBonus
	}
	if prev := e.State.LastAbility; prev != nil {
		for _, c := range combos {
			if prev.HasTag(c.prev) && a.HasTag(c.next) {
				score += c.bonus
			}
		}
	}
	return min(max(score, 0), 100)
}

// Rank scores every candidate, highest first; ties keep candidate order.
func (sc *Scorer) Rank(e *combat.Enemy, candidates []*combat.Ability, heroes []*combat.Hero) []Scored {
	out := make([]Scored, 0, len(candidates))
	for _, a := range candidates {
		out = append(out, Scored{Ability: a, Score: sc.Score(e, a, heroes)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Choose draws among the top three ranked candidates weighted by score, or
// uniformly when they all score zero. Returns nil when candidates is empty.
func (sc *Scorer) Choose(e *combat.Enemy, candidates []*combat.Ability, heroes []*combat.Hero) *combat.Ability {
	ranked := sc.Rank(e, candidates, heroes)
	if len(ranked) == 0 {
		return nil
	}
	top := ranked[:min(topCandidates, len(ranked))]

	total := 0
	for _, s := range top {
		total += s.Score
	}
	if total == 0 {
		return top[sc.src.Intn(len(top))].Ability
	}
	r := sc.src.Float64() * float64(total)
	for _, s := range top {
		r -= float64(s.Score)
		if r < 0 {
			return s.Ability
		}
	}
	return top[len(top)-1].Ability
}
