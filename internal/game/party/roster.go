package party

import (
	"fmt"
	"sync"

	"github.com/cory-johannsen/idlecombat/internal/game/combat"
)

// Member is a hero on the roster with accumulated progress.
type Member struct {
	ID         string
	Name       string
	Role       combat.Role
	Base       combat.Stats
	Experience int
	Gold       int
}

// Gain is what one hero received from a reward.
type Gain struct {
	HeroID     string
	Experience int
	Gold       int
}

// Roster tracks the party in join order.
// All methods are safe for concurrent use.
type Roster struct {
	mu      sync.RWMutex
	order   []string
	members map[string]*Member
}

// NewRoster creates an empty Roster.
func NewRoster() *Roster {
	return &Roster{members: make(map[string]*Member)}
}

// NewRosterFromDefs builds a roster from defs in order.
func NewRosterFromDefs(defs []*HeroDef) (*Roster, error) {
	r := NewRoster()
	for _, d := range defs {
		if err := r.Add(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add appends the hero described by d.
//
// Precondition: d must have passed Validate().
// Postcondition: Returns an error if the ID is already on the roster.
func (r *Roster) Add(d *HeroDef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.members[d.ID]; exists {
		return fmt.Errorf("party: hero %q already on roster", d.ID)
	}
	r.members[d.ID] = &Member{ID: d.ID, Name: d.Name, Role: d.Role, Base: d.Stats}
	r.order = append(r.order, d.ID)
	return nil
}

// Remove drops heroID from the roster.
func (r *Roster) Remove(heroID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[heroID]; !ok {
		return fmt.Errorf("party: hero %q not found", heroID)
	}
	delete(r.members, heroID)
	for i, id := range r.order {
		if id == heroID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Heroes returns copies of every member in join order.
func (r *Roster) Heroes() []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Member, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.members[id])
	}
	return out
}

// Hero returns a copy of the member with heroID.
func (r *Roster) Hero(heroID string) (Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[heroID]
	if !ok {
		return Member{}, false
	}
	return *m, true
}

// Tank returns the first tank in join order.
func (r *Roster) Tank() (Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if m := r.members[id]; m.Role == combat.RoleTank {
			return *m, true
		}
	}
	return Member{}, false
}

// BaseStats returns heroID's unequipped stats.
func (r *Roster) BaseStats(heroID string) (combat.Stats, bool) {
	m, ok := r.Hero(heroID)
	return m.Base, ok
}

// Award grants experience to each of heroIDs and splits gold evenly
// between them; the remainder goes to the first hero. Unknown IDs are skipped.
//
// Postcondition: the sum of returned gold equals gold when at least one
// hero is known.
func (r *Roster) Award(heroIDs []string, experience, gold int) []Gain {
	r.mu.Lock()
	defer r.mu.Unlock()
	var known []*Member
	for _, id := range heroIDs {
		if m, ok := r.members[id]; ok {
			known = append(known, m)
		}
	}
	if len(known) == 0 {
		return nil
	}
	share, rem := gold/len(known), gold%len(known)
	gains := make([]Gain, 0, len(known))
	for i, m := range known {
		g := Gain{HeroID: m.ID, Experience: experience, Gold: share}
		if i == 0 {
			g.Gold += rem
		}
		m.Experience += g.Experience
		m.Gold += g.Gold
		gains = append(gains, g)
	}
	return gains
}
