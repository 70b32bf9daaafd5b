package combat

import "time"

// TurnOwner names the side whose action executes next.
type TurnOwner string

const (
	TurnParty TurnOwner = "party"
	TurnEnemy TurnOwner = "enemy"
)

// Session is the state of one encounter.
//
// It is not safe for concurrent use; the orchestrator serialises access.
type Session struct {
	ID        string
	Round     int
	StartedAt time.Time
	TurnOwner TurnOwner
	Heroes    []*Hero
	Enemies   []*Enemy
	Adds      []*Add
	// Mile and Difficulty are the encounter context used for reward scaling.
	Mile       int
	Difficulty float64

	cooldowns map[string]map[string]int
	pending   map[string]Stats
}

// NewSession creates a session at round 1 with the party acting first.
//
// Postcondition: Round == 1; TurnOwner == TurnParty; all cooldowns are zero.
func NewSession(id string, heroes []*Hero, enemies []*Enemy, startedAt time.Time) *Session {
	return &Session{
		ID:        id,
		Round:     1,
		StartedAt: startedAt,
		TurnOwner: TurnParty,
		Heroes:    heroes,
		Enemies:   enemies,
		cooldowns: make(map[string]map[string]int),
		pending:   make(map[string]Stats),
	}
}

// Cooldown returns the rounds remaining before ownerID may use ability again.
func (s *Session) Cooldown(ownerID, ability string) int {
	return s.cooldowns[ownerID][ability]
}

// SetCooldown sets ownerID's cooldown for ability, flooring at zero.
func (s *Session) SetCooldown(ownerID, ability string, rounds int) {
	m, ok := s.cooldowns[ownerID]
	if !ok {
		m = make(map[string]int)
		s.cooldowns[ownerID] = m
	}
	m[ability] = max(rounds, 0)
}

// TickCooldowns decrements every cooldown owned by ownerID by one round.
//
// Postcondition: every cooldown of ownerID is >= 0.
func (s *Session) TickCooldowns(ownerID string) {
	for name, v := range s.cooldowns[ownerID] {
		if v > 0 {
			s.cooldowns[ownerID][name] = v - 1
		}
	}
}

// QueueStats records refreshed stats for heroID, applied at its next turn.
// A later notification replaces an earlier one.
func (s *Session) QueueStats(heroID string, st Stats) {
	s.pending[heroID] = st
}

// TakePendingStats removes and returns heroID's queued stats.
func (s *Session) TakePendingStats(heroID string) (Stats, bool) {
	st, ok := s.pending[heroID]
	if ok {
		delete(s.pending, heroID)
	}
	return st, ok
}

// Hero returns the hero with id, or nil.
func (s *Session) Hero(id string) *Hero {
	for _, h := range s.Heroes {
		if h.ID() == id {
			return h
		}
	}
	return nil
}

// Enemy returns the enemy with id, or nil.
func (s *Session) Enemy(id string) *Enemy {
	for _, e := range s.Enemies {
		if e.ID() == id {
			return e
		}
	}
	return nil
}

// Combatant returns any participant with id, or nil.
func (s *Session) Combatant(id string) Combatant {
	if h := s.Hero(id); h != nil {
		return h
	}
	if e := s.Enemy(id); e != nil {
		return e
	}
	for _, a := range s.Adds {
		if a.ID() == id {
			return a
		}
	}
	return nil
}

// LivingHeroes returns the heroes with health above zero, in party order.
func (s *Session) LivingHeroes() []*Hero {
	var out []*Hero
	for _, h := range s.Heroes {
		if h.IsAlive() {
			out = append(out, h)
		}
	}
	return out
}

// LivingEnemies returns the enemies with health above zero.
func (s *Session) LivingEnemies() []*Enemy {
	var out []*Enemy
	for _, e := range s.Enemies {
		if e.IsAlive() {
			out = append(out, e)
		}
	}
	return out
}

// LivingAdds returns the adds with health above zero.
func (s *Session) LivingAdds() []*Add {
	var out []*Add
	for _, a := range s.Adds {
		if a.IsAlive() {
			out = append(out, a)
		}
	}
	return out
}

// HostileCount returns the number of living enemies and adds.
func (s *Session) HostileCount() int {
	return len(s.LivingEnemies()) + len(s.LivingAdds())
}

// PartyDefeated reports whether every hero has health <= 0.
func (s *Session) PartyDefeated() bool {
	return len(s.LivingHeroes()) == 0
}

// EnemiesDefeated reports whether every enemy and add has health <= 0.
func (s *Session) EnemiesDefeated() bool {
	return s.HostileCount() == 0
}

// SummonAdd binds a into the session.
func (s *Session) SummonAdd(a *Add) {
	s.Adds = append(s.Adds, a)
}

// RemoveDeadAdds drops adds with no health and returns them.
func (s *Session) RemoveDeadAdds() []*Add {
	var dead []*Add
	kept := s.Adds[:0]
	for _, a := range s.Adds {
		if a.IsAlive() {
			kept = append(kept, a)
		} else {
			dead = append(dead, a)
		}
	}
	s.Adds = kept
	return dead
}

// Participants returns every combatant: heroes, then enemies, then adds.
func (s *Session) Participants() []Combatant {
	out := make([]Combatant, 0, len(s.Heroes)+len(s.Enemies)+len(s.Adds))
	for _, h := range s.Heroes {
		out = append(out, h)
	}
	for _, e := range s.Enemies {
		out = append(out, e)
	}
	for _, a := range s.Adds {
		out = append(out, a)
	}
	return out
}

// ClearCasts discards every in-progress cast.
func (s *Session) ClearCasts() {
	for _, e := range s.Enemies {
		e.State.Casting = nil
	}
}
