package model

// DefaultEventDepth bounds nested sendEvent calls when a profile leaves it unset.
const DefaultEventDepth = 8

// Profile is everything one game connection needs: the rule sets, the
// event scripts and the initial variable values.
type Profile struct {
	Name      string     `yaml:"name"`
	Aliases   []Rule     `yaml:"aliases"`
	Triggers  []Rule     `yaml:"triggers"`
	Scripts   []Script   `yaml:"scripts"`
	Variables []Variable `yaml:"variables"`
	Settings  Settings   `yaml:"settings"`
}

type Settings struct {
	Echo       bool `yaml:"echo"`       // echo sent commands to the console
	EventDepth int  `yaml:"eventDepth"` // max nested sendEvent calls
}

// EffectiveEventDepth returns the configured depth or the default.
func (s Settings) EffectiveEventDepth() int {
	if s.EventDepth <= 0 {
		return DefaultEventDepth
	}
	return s.EventDepth
}
