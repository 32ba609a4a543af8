package rules

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dlclark/regexp2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nstehr/mudlark/mudlark-core/model"
)

const (
	patternCacheSize = 512
	// DefaultMatchTimeout bounds one pattern match so a pathological
	// backtracking pattern cannot stall the session.
	DefaultMatchTimeout = 250 * time.Millisecond
)

// compiledPattern memoises both outcomes so an invalid pattern is not
// recompiled for every line the server sends.
type compiledPattern struct {
	re  *regexp2.Regexp
	err error
}

// Engine matches text against ordered rules and turns the scripts of the
// matching rules into actions. It holds no session state: rules, variables
// and scripts are supplied on every call, so edits are visible immediately.
type Engine struct {
	eval         *Evaluator
	patterns     *lru.Cache[string, compiledPattern]
	matchTimeout time.Duration
	eventDepth   int
	scriptTime   time.Duration
}

type Option func(*Engine)

// WithEventDepth caps nested sendEvent calls.
func WithEventDepth(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.eventDepth = n
		}
	}
}

func WithScriptTimeout(d time.Duration) Option {
	return func(e *Engine) { e.scriptTime = d }
}

func WithMatchTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.matchTimeout = d
		}
	}
}

func NewEngine(opts ...Option) (*Engine, error) {
	cache, err := lru.New[string, compiledPattern](patternCacheSize)
	if err != nil {
		return nil, fmt.Errorf("pattern cache: %w", err)
	}
	e := &Engine{
		patterns:     cache,
		matchTimeout: DefaultMatchTimeout,
		eventDepth:   model.DefaultEventDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.eval = NewEvaluator(e.scriptTime)
	return e, nil
}

// ExpandAlias expands typed input with the first matching alias. A nil
// result means "no expansion": the caller sends the input as typed.
func (e *Engine) ExpandAlias(input string, aliases []model.Rule, env Env) []model.Action {
	return e.Dispatch(input, aliases, FirstMatch, env)
}

// ProcessTriggers runs every matching trigger against a server line.
func (e *Engine) ProcessTriggers(line string, triggers []model.Rule, env Env) []model.Action {
	return e.Dispatch(line, triggers, Accumulate, env)
}

// Dispatch scans rules in order. Disabled rules are never tried and a rule
// whose pattern is invalid is skipped. Under FirstMatch the first matching
// rule decides the result, and a script error yields nil; under Accumulate
// each matching rule appends its actions and a failing rule is left out.
// The result is nil when no actions were produced.
func (e *Engine) Dispatch(input string, rules []model.Rule, policy Policy, env Env) []model.Action {
	var out Collector
	for _, r := range rules {
		if !r.Enabled {
			continue
		}

		matches, err := e.match(r.Pattern, input)
		if err != nil {
			slog.Warn("rule pattern error", "rule", r.Name, "error", &PatternError{Rule: r.Name, Pattern: r.Pattern, Err: err})
			continue
		}
		if matches == nil {
			continue
		}

		slog.Debug("rule matched", "rule", r.Name, "policy", policy)
		sb := newSandbox(e.eval, env, matches, 0, e.eventDepth)
		actions, err := e.eval.Run(r.Name, r.Command, sb)
		if err != nil {
			slog.Error("rule script error", "rule", r.Name, "policy", policy, "error", err)
			if policy.stopAfter() {
				return nil
			}
			continue
		}
		out.Append(actions...)

		if policy.stopAfter() {
			break
		}
	}
	return out.Actions()
}

// CompilePattern reports whether pattern is usable as a rule pattern.
func (e *Engine) CompilePattern(pattern string) error {
	_, err := e.compile(pattern)
	return err
}

// CheckScript compiles a script body against a variable set without running it.
func (e *Engine) CheckScript(name, body string, vars []model.Variable) error {
	return e.eval.Check(name, body, vars)
}

func (e *Engine) compile(pattern string) (*regexp2.Regexp, error) {
	if c, ok := e.patterns.Get(pattern); ok {
		return c.re, c.err
	}
	re, err := regexp2.Compile(pattern, regexp2.ECMAScript)
	if err == nil {
		re.MatchTimeout = e.matchTimeout
	}
	e.patterns.Add(pattern, compiledPattern{re: re, err: err})
	return re, err
}

// match returns the capture array for the first match of pattern in input,
// or nil when it does not match. Groups that did not participate are "".
func (e *Engine) match(pattern, input string) ([]string, error) {
	re, err := e.compile(pattern)
	if err != nil {
		return nil, err
	}
	m, err := re.FindStringMatch(input)
	if err != nil || m == nil {
		return nil, err
	}
	groups := m.Groups()
	out := make([]string, len(groups))
	for i, g := range groups {
		if len(g.Captures) > 0 {
			out[i] = g.String()
		}
	}
	return out, nil
}
