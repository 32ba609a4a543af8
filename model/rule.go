package model

// Rule is an ordered pattern → script pair. The same shape serves aliases
// (matched against what the user typed) and triggers (matched against lines
// the server sent).
type Rule struct {
	Name    string `json:"name" yaml:"name"`
	Pattern string `json:"pattern" yaml:"pattern"` // ECMAScript regular expression, unanchored
	Command string `json:"command" yaml:"command"` // script body, may span lines
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// Variable is a named value bound read-only into every script sandbox.
type Variable struct {
	Name        string `json:"name" yaml:"name"`
	Value       string `json:"value" yaml:"value"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Script is event-keyed automation reached through sendEvent.
type Script struct {
	Name    string `json:"name" yaml:"name"`
	Event   string `json:"event" yaml:"event"`
	Command string `json:"command" yaml:"command"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// FindScript returns the first enabled script registered for event.
func FindScript(scripts []Script, event string) (Script, bool) {
	for _, s := range scripts {
		if s.Enabled && s.Event == event {
			return s, true
		}
	}
	return Script{}, false
}

// LookupVariable returns the value bound to name. Later entries win, matching
// how duplicates are bound into a sandbox.
func LookupVariable(vars []Variable, name string) (string, bool) {
	for i := len(vars) - 1; i >= 0; i-- {
		if vars[i].Name == name {
			return vars[i].Value, true
		}
	}
	return "", false
}
