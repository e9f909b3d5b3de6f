package server

// UserModes represents the modes of a user
type UserModes struct {
	Invisible bool // i - Invisible (+i)
	Operator  bool // o - IRC Operator (+o), never settable by the user
}

// Set applies a user settable mode. It reports whether the flag is known
// and whether the value actually changed.
func (m *UserModes) Set(mode rune, enable bool) (known, changed bool) {
	switch mode {
	case 'i':
		changed = m.Invisible != enable
		m.Invisible = enable
		return true, changed
	}
	return false, false
}

// HasMode checks if a mode is set
func (m *UserModes) HasMode(mode rune) bool {
	switch mode {
	case 'i':
		return m.Invisible
	case 'o':
		return m.Operator
	}
	return false
}

// ModeString returns the mode string, e.g. "+i"
func (m *UserModes) ModeString() string {
	modes := "+"
	if m.Invisible {
		modes += "i"
	}
	if m.Operator {
		modes += "o"
	}
	return modes
}
