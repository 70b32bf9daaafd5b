package combat

import "math"

// Hero is a party member.
type Hero struct {
	Unit
	Role Role
}

// NewHero builds a Hero from resolved stats.
func NewHero(id, name string, role Role, s Stats) *Hero {
	return &Hero{Unit: newUnit(id, name, s), Role: role}
}

func (h *Hero) Kind() Kind { return KindHero }

// Refresh replaces the hero's stats with s while keeping current health.
//
// Postcondition: CurrentHealth() == min(previous health, s.MaxHealth).
func (h *Hero) Refresh(s Stats) {
	s.Health = h.health
	h.setStats(s)
}

// Phase is an enemy's behavioural stage.
type Phase string

const (
	PhaseOne    Phase = "phase1"
	PhaseTwo    Phase = "phase2"
	PhaseThree  Phase = "phase3"
	PhaseEnrage Phase = "enrage"
)

// Cast is an in-progress multi-round ability.
type Cast struct {
	Ability         *Ability
	TargetID        string
	RoundsRemaining int
}

// EnemyState is the mutable combat state of an Enemy.
type EnemyState struct {
	Phase Phase
	// Behavior is the tag regular enemies switch between on phase changes:
	// "defensive", "aggressive" or "enrage".
	Behavior         string
	AdaptationLevel  int
	AdaptationBonus  float64
	LastTargetSwitch int
	CurrentTargetID  string
	Enraged          bool
	IgnoreThreat     bool
	AttackMultiplier float64
	SpeedMultiplier  float64
	LastAbility      *Ability
	Casting          *Cast
}

// Enemy is a hostile combatant built from an enemy template.
type Enemy struct {
	Unit
	TemplateID string
	Abilities  []*Ability
	// Strategy is the template's preferred targeting strategy, possibly empty.
	Strategy string
	// MultiPhase is true for bosses whose template declares phased mechanics.
	MultiPhase bool
	Boss       bool
	// EnrageAt and EnrageRound override the default enrage triggers when positive.
	EnrageAt    float64
	EnrageRound int
	// AddName names the minions this enemy summons.
	AddName string
	// ScriptID is the Lua namespace searched for script-backed mechanics.
	ScriptID string
	State    EnemyState
}

// NewEnemy builds an Enemy in phase one with neutral multipliers.
func NewEnemy(id, name, templateID string, s Stats, abilities []*Ability) *Enemy {
	return &Enemy{
		Unit:       newUnit(id, name, s),
		TemplateID: templateID,
		Abilities:  abilities,
		State: EnemyState{
			Phase:            PhaseOne,
			Behavior:         "defensive",
			AttackMultiplier: 1,
			SpeedMultiplier:  1,
		},
	}
}

func (e *Enemy) Kind() Kind { return KindEnemy }

// Attack applies enrage and adaptation multipliers to the base attack.
func (e *Enemy) Attack() int {
	return int(math.Round(float64(e.attack) * e.State.AttackMultiplier * (1 + e.State.AdaptationBonus)))
}

// Speed applies the enrage multiplier to the base speed.
func (e *Enemy) Speed() int {
	return int(math.Round(float64(e.speed) * e.State.SpeedMultiplier))
}

// BaseAttack returns the attack before multipliers.
func (e *Enemy) BaseAttack() int { return e.attack }

// IsCasting reports whether a multi-round cast is in progress.
func (e *Enemy) IsCasting() bool { return e.State.Casting != nil }

// Ability returns the named ability, or nil.
func (e *Enemy) Ability(name string) *Ability {
	for _, a := range e.Abilities {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Add is a minion summoned mid-combat by an Enemy.
type Add struct {
	Unit
	OwnerID string
}

// NewAdd builds an Add owned by ownerID.
func NewAdd(id, name, ownerID string, s Stats) *Add {
	return &Add{Unit: newUnit(id, name, s), OwnerID: ownerID}
}

func (a *Add) Kind() Kind { return KindAdd }

var (
	_ Combatant = (*Hero)(nil)
	_ Combatant = (*Enemy)(nil)
	_ Combatant = (*Add)(nil)
)
