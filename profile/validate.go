package profile

import (
	"fmt"

	"github.com/nstehr/mudlark/mudlark-core/model"
	"github.com/nstehr/mudlark/mudlark-core/rules"
)

// Problem is one thing wrong with a profile. A profile with problems still
// loads; the engine skips whatever it cannot use.
type Problem struct {
	Kind string // "alias", "trigger", "script" or "variable"
	Name string
	Err  error
}

func (p Problem) String() string {
	return fmt.Sprintf("%s %q: %v", p.Kind, p.Name, p.Err)
}

// Validate compiles every pattern and script body and checks that every
// variable can be bound into a sandbox.
func Validate(engine *rules.Engine, p model.Profile) []Problem {
	var problems []Problem

	for _, v := range p.Variables {
		if err := rules.ValidateVariableName(v.Name); err != nil {
			problems = append(problems, Problem{Kind: "variable", Name: v.Name, Err: err})
		}
	}

	checkRules := func(kind string, rs []model.Rule) {
		for _, r := range rs {
			if err := engine.CompilePattern(r.Pattern); err != nil {
				problems = append(problems, Problem{Kind: kind, Name: r.Name, Err: err})
				continue
			}
			if err := engine.CheckScript(r.Name, r.Command, p.Variables); err != nil {
				problems = append(problems, Problem{Kind: kind, Name: r.Name, Err: err})
			}
		}
	}
	checkRules("alias", p.Aliases)
	checkRules("trigger", p.Triggers)

	for _, s := range p.Scripts {
		if s.Event == "" {
			problems = append(problems, Problem{Kind: "script", Name: s.Name, Err: fmt.Errorf("no event")})
			continue
		}
		if err := engine.CheckScript(s.Name, s.Command, p.Variables); err != nil {
			problems = append(problems, Problem{Kind: "script", Name: s.Name, Err: err})
		}
	}
	return problems
}
