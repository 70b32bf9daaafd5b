package gameserver

import (
	"time"

	"github.com/cory-johannsen/idlecombat/internal/game/reward"
	"github.com/cory-johannsen/idlecombat/internal/game/threat"
)

// CombatantView is a read-only copy of one participant.
type CombatantView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Role      string `json:"role,omitempty"`
	Health    int    `json:"health"`
	MaxHealth int    `json:"max_health"`
	Attack    int    `json:"attack"`
	Defense   int    `json:"defense"`
	Shield    int    `json:"shield,omitempty"`
	Phase     string `json:"phase,omitempty"`
	Enraged   bool   `json:"enraged,omitempty"`
	Casting   string `json:"casting,omitempty"`
}

// Snapshot is a read-only copy of the orchestrator's state.
type Snapshot struct {
	State      string                    `json:"state"`
	SessionID  string                    `json:"session_id,omitempty"`
	Round      int                       `json:"round,omitempty"`
	TurnOwner  string                    `json:"turn_owner,omitempty"`
	Elapsed    time.Duration             `json:"elapsed,omitempty"`
	Combatants []CombatantView           `json:"combatants,omitempty"`
	Threat     map[string][]threat.Entry `json:"threat,omitempty"`
	LastResult *reward.Result            `json:"last_result,omitempty"`
}

// Snapshot copies the current state. Outside combat only State and
// LastResult are set.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	snap := Snapshot{State: o.machine.Current(), LastResult: o.result}
	s := o.session
	if s == nil {
		return snap
	}
	snap.SessionID = s.ID
	snap.Round = s.Round
	snap.TurnOwner = string(s.TurnOwner)
	snap.Elapsed = o.elapsed
	for _, h := range s.Heroes {
		snap.Combatants = append(snap.Combatants, CombatantView{
			ID: h.ID(), Name: h.Name(), Kind: h.Kind().String(), Role: string(h.Role),
			Health: h.CurrentHealth(), MaxHealth: h.MaxHealth(),
			Attack: h.Attack(), Defense: h.Defense(),
			Shield: o.deps.Effects.ShieldAmount(h.ID()),
		})
	}
	for _, e := range s.Enemies {
		v := CombatantView{
			ID: e.ID(), Name: e.Name(), Kind: e.Kind().String(),
			Health: e.CurrentHealth(), MaxHealth: e.MaxHealth(),
			Attack: e.Attack(), Defense: e.Defense(),
			Phase: string(e.State.Phase), Enraged: e.State.Enraged,
		}
		if e.State.Casting != nil {
			v.Casting = e.State.Casting.Ability.Name
		}
		snap.Combatants = append(snap.Combatants, v)
	}
	for _, a := range s.Adds {
		snap.Combatants = append(snap.Combatants, CombatantView{
			ID: a.ID(), Name: a.Name(), Kind: a.Kind().String(),
			Health: a.CurrentHealth(), MaxHealth: a.MaxHealth(),
			Attack: a.Attack(), Defense: a.Defense(),
		})
	}
	snap.Threat = make(map[string][]threat.Entry)
	for _, id := range o.deps.Threat.Enemies() {
		snap.Threat[id] = o.deps.Threat.Snapshot(id)
	}
	return snap
}
