package rules

import (
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nstehr/mudlark/mudlark-core/model"
)

// maxRepeat caps a single token's repeat count so a typo like "9999n"
// cannot flood the connection.
const maxRepeat = 100

// walkToken is one comma-separated piece of a speedwalk string.
type walkToken struct {
	count int
	name  string // resolved direction name, or the literal command
}

func parseWalkToken(tok string) walkToken {
	digits := 0
	for digits < len(tok) && tok[digits] >= '0' && tok[digits] <= '9' {
		digits++
	}
	count := 1
	rest := tok
	if digits > 0 {
		// "3" on its own is a literal command, not a count with nothing to repeat.
		if r := strings.TrimSpace(tok[digits:]); r != "" {
			n, err := strconv.Atoi(tok[:digits])
			if err != nil || n > maxRepeat {
				slog.Warn("speedwalk repeat count clamped", "token", tok, "max", maxRepeat)
				n = maxRepeat
			}
			count = n
			rest = r
		}
	}
	if name, ok := Direction(rest); ok {
		return walkToken{count: count, name: name}
	}
	return walkToken{count: count, name: rest}
}

// Expand turns a speedwalk shorthand such as "2e,w,ne,climb up" into the
// individual move commands. Unknown codes are passed through as literal
// commands. With backwards set the token order is reversed and every
// direction is replaced by its opposite, retracing the path.
func Expand(shorthand string, backwards bool) []string {
	var tokens []walkToken
	for _, raw := range strings.Split(shorthand, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		tokens = append(tokens, parseWalkToken(raw))
	}
	if backwards {
		slices.Reverse(tokens)
	}

	var out []string
	for _, t := range tokens {
		name := t.name
		if backwards {
			if opp, ok := Opposite(name); ok {
				name = opp
			}
		}
		for range t.count {
			out = append(out, name)
		}
	}
	return out
}

// Steps renders an expansion as actions, pacing consecutive steps with a
// wait when delay is positive.
func Steps(shorthand string, backwards bool, delay time.Duration) []model.Action {
	moves := Expand(shorthand, backwards)
	var c Collector
	for i, m := range moves {
		if i > 0 && delay > 0 {
			c.Wait(int(delay.Milliseconds()))
		}
		c.Send(m)
	}
	return c.Actions()
}
