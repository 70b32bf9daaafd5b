package condition

import (
	"fmt"

	"go.uber.org/zap"
)

// Tracker owns the status effects and shield pools of every combatant in an
// encounter, keyed by combatant ID.
//
// It is not safe for concurrent use; the caller must serialise access.
type Tracker struct {
	reg     *Registry
	sets    map[string]*ActiveSet
	shields map[string]int
	logger  *zap.Logger
}

// NewTracker creates a Tracker resolving effect IDs against reg.
//
// Precondition: reg and logger must be non-nil.
func NewTracker(reg *Registry, logger *zap.Logger) *Tracker {
	return &Tracker{
		reg:     reg,
		sets:    make(map[string]*ActiveSet),
		shields: make(map[string]int),
		logger:  logger,
	}
}

// Set returns the ActiveSet for combatantID, creating it on first use.
func (t *Tracker) Set(combatantID string) *ActiveSet {
	s, ok := t.sets[combatantID]
	if !ok {
		s = NewActiveSet()
		t.sets[combatantID] = s
	}
	return s
}

// Apply applies the registered effect effectID to combatantID for rounds rounds.
//
// Postcondition: returns an error if effectID is unknown.
func (t *Tracker) Apply(combatantID, effectID string, rounds int) error {
	def, ok := t.reg.Get(effectID)
	if !ok {
		return fmt.Errorf("condition: unknown effect %q", effectID)
	}
	if err := t.Set(combatantID).Apply(def, 1, rounds); err != nil {
		return err
	}
	t.logger.Debug("effect applied",
		zap.String("combatant", combatantID),
		zap.String("effect", effectID),
		zap.Int("rounds", rounds),
	)
	return nil
}

// Remove removes effectID from combatantID.
func (t *Tracker) Remove(combatantID, effectID string) {
	if s, ok := t.sets[combatantID]; ok {
		s.Remove(effectID)
	}
}

// Tick advances combatantID's effects by one round and returns the expired IDs.
func (t *Tracker) Tick(combatantID string) []string {
	s, ok := t.sets[combatantID]
	if !ok {
		return nil
	}
	return s.Tick()
}

// Modifiers returns the summed stat modifiers for combatantID.
func (t *Tracker) Modifiers(combatantID string) Modifiers {
	return StatModifiers(t.sets[combatantID])
}

// IsIncapacitated reports whether combatantID is stunned or otherwise disabled.
func (t *Tracker) IsIncapacitated(combatantID string) bool {
	return IsIncapacitated(t.sets[combatantID])
}

// HasDebuff reports whether combatantID carries any debuff.
func (t *Tracker) HasDebuff(combatantID string) bool {
	return HasDebuff(t.sets[combatantID])
}

// AddShield grants amount absorb to combatantID. Non-positive amounts are ignored.
func (t *Tracker) AddShield(combatantID string, amount int) {
	if amount <= 0 {
		return
	}
	t.shields[combatantID] += amount
}

// ShieldAmount returns combatantID's remaining absorb.
func (t *Tracker) ShieldAmount(combatantID string) int {
	return t.shields[combatantID]
}

// ConsumeShield absorbs up to dmg from combatantID's shield.
//
// Postcondition: returns absorbed == min(shield, max(dmg, 0)); the shield shrinks by absorbed.
func (t *Tracker) ConsumeShield(combatantID string, dmg int) int {
	shield := t.shields[combatantID]
	if shield <= 0 || dmg <= 0 {
		return 0
	}
	absorbed := min(shield, dmg)
	if shield == absorbed {
		delete(t.shields, combatantID)
	} else {
		t.shields[combatantID] = shield - absorbed
	}
	return absorbed
}

// ClearAll drops every effect and shield on combatantID.
func (t *Tracker) ClearAll(combatantID string) {
	delete(t.sets, combatantID)
	delete(t.shields, combatantID)
}

// Reset drops all state for every combatant.
func (t *Tracker) Reset() {
	clear(t.sets)
	clear(t.shields)
}
