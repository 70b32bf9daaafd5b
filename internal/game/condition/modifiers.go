package condition

// Modifiers is the summed percent adjustment contributed by active effects.
// A value of 0.2 means +20%.
type Modifiers struct {
	AttackPercent  float64
	DefensePercent float64
	SpeedPercent   float64
}

// StatModifiers sums every effect's percent modifiers, multiplied by stacks.
//
// Postcondition: a nil set yields the zero Modifiers.
func StatModifiers(s *ActiveSet) Modifiers {
	var m Modifiers
	if s == nil {
		return m
	}
	for _, a := range s.effects {
		n := float64(a.Stacks)
		m.AttackPercent += a.Def.AttackPercent * n
		m.DefensePercent += a.Def.DefensePercent * n
		m.SpeedPercent += a.Def.SpeedPercent * n
	}
	return m
}

// IsIncapacitated reports whether any active effect prevents acting.
func IsIncapacitated(s *ActiveSet) bool {
	if s == nil {
		return false
	}
	for _, a := range s.effects {
		if a.Def.Incapacitates {
			return true
		}
	}
	return false
}

// HasDebuff reports whether any active effect is flagged as a debuff.
func HasDebuff(s *ActiveSet) bool {
	if s == nil {
		return false
	}
	for _, a := range s.effects {
		if a.Def.Debuff {
			return true
		}
	}
	return false
}
