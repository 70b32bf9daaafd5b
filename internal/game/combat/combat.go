// Package combat defines the combatants, abilities, damage math and session
// state of one encounter between a hero party and an enemy group.
package combat

import "fmt"

// Kind tags the concrete variant behind a Combatant.
type Kind int

const (
	KindHero Kind = iota
	KindEnemy
	KindAdd
)

// String returns the lowercase kind label.
func (k Kind) String() string {
	switch k {
	case KindHero:
		return "hero"
	case KindEnemy:
		return "enemy"
	case KindAdd:
		return "add"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Role is a hero's party role.
type Role string

const (
	RoleTank   Role = "tank"
	RoleHealer Role = "healer"
	RoleDPS    Role = "dps"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleTank || r == RoleHealer || r == RoleDPS
}

// Combatant is the capability set shared by heroes, enemies and adds.
type Combatant interface {
	ID() string
	Name() string
	Kind() Kind
	MaxHealth() int
	CurrentHealth() int
	Attack() int
	Defense() int
	Speed() int
	IsAlive() bool
	// HealthFraction returns CurrentHealth/MaxHealth in [0, 1].
	HealthFraction() float64
	// ApplyDamage lowers health by amount and returns the health actually lost.
	ApplyDamage(amount int) int
	// Heal raises health by amount and returns the health actually restored.
	Heal(amount int) int
}

// Unit holds the state common to every Combatant variant.
//
// Invariant: 0 <= health <= maxHealth after every mutation.
type Unit struct {
	id        string
	name      string
	maxHealth int
	health    int
	attack    int
	defense   int
	speed     int
}

func newUnit(id, name string, s Stats) Unit {
	u := Unit{id: id, name: name}
	u.setStats(s)
	return u
}

func (u *Unit) setStats(s Stats) {
	u.maxHealth = max(s.MaxHealth, 1)
	u.attack = max(s.Attack, 0)
	u.defense = max(s.Defense, 0)
	u.speed = max(s.Speed, 0)
	u.health = clampHealth(s.Health, u.maxHealth)
}

func clampHealth(h, maxHealth int) int {
	return min(max(h, 0), maxHealth)
}

func (u *Unit) ID() string         { return u.id }
func (u *Unit) Name() string       { return u.name }
func (u *Unit) MaxHealth() int     { return u.maxHealth }
func (u *Unit) CurrentHealth() int { return u.health }
func (u *Unit) Attack() int        { return u.attack }
func (u *Unit) Defense() int       { return u.defense }
func (u *Unit) Speed() int         { return u.speed }
func (u *Unit) IsAlive() bool      { return u.health > 0 }

func (u *Unit) HealthFraction() float64 {
	return float64(u.health) / float64(u.maxHealth)
}

// ApplyDamage reduces health by amount, flooring at zero.
//
// Postcondition: CurrentHealth() >= 0; negative amounts are ignored.
func (u *Unit) ApplyDamage(amount int) int {
	if amount <= 0 {
		return 0
	}
	before := u.health
	u.health = clampHealth(u.health-amount, u.maxHealth)
	return before - u.health
}

// Heal raises health by amount, capping at MaxHealth. Dead units stay dead.
//
// Postcondition: CurrentHealth() <= MaxHealth(); negative amounts are ignored.
func (u *Unit) Heal(amount int) int {
	if amount <= 0 || u.health == 0 {
		return 0
	}
	before := u.health
	u.health = clampHealth(u.health+amount, u.maxHealth)
	return u.health - before
}

// Stats returns the unit's current stat snapshot.
func (u *Unit) Stats() Stats {
	return Stats{Attack: u.attack, Defense: u.defense, MaxHealth: u.maxHealth, Health: u.health, Speed: u.speed}
}
