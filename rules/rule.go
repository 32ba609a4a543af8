package rules

// Policy decides what happens after a rule matches. Aliases expand typed
// input with FirstMatch; triggers react to server lines with Accumulate.
type Policy int

const (
	// FirstMatch stops at the first matching rule.
	FirstMatch Policy = iota
	// Accumulate runs every matching rule and concatenates their actions.
	Accumulate
)

func (p Policy) String() string {
	switch p {
	case FirstMatch:
		return "first-match"
	case Accumulate:
		return "accumulate"
	default:
		return "unknown"
	}
}

// stopAfter reports whether the scan ends once a rule has matched.
func (p Policy) stopAfter() bool { return p == FirstMatch }
