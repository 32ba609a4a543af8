package rules

import (
	"errors"
	"fmt"
	"go/token"
	"go/types"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/spf13/cast"
	"github.com/traefik/yaegi/interp"

	"github.com/nstehr/mudlark/mudlark-core/model"
)

// reservedNames are bound by the sandbox itself; variables may not shadow them.
var reservedNames = map[string]bool{
	"matches":     true,
	"send":        true,
	"sendAll":     true,
	"wait":        true,
	"speedwalk":   true,
	"setVariable": true,
	"sendEvent":   true,
	"alert":       true,
	"Run":         true,
	"sandbox":     true,
	"main":        true, // the wrapper's package name, used to call Run
	"init":        true,
}

// resolved is returned by wait(): the pause happens at replay time, so the
// script never blocks on it.
var resolved = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// Sandbox is the capability set a single script body runs against. Every
// primitive appends to the sandbox's own collector; once sealed, late calls
// from a script that overran its deadline are dropped.
type Sandbox struct {
	Matches []string

	env      Env
	eval     *Evaluator
	depth    int
	maxDepth int

	mu     sync.Mutex
	out    Collector
	sealed bool
	err    error
}

func newSandbox(eval *Evaluator, env Env, matches []string, depth, maxDepth int) *Sandbox {
	return &Sandbox{
		Matches:  matches,
		env:      env,
		eval:     eval,
		depth:    depth,
		maxDepth: maxDepth,
	}
}

func (s *Sandbox) emit(fn func(c *Collector)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return
	}
	fn(&s.out)
}

func (s *Sandbox) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *Sandbox) isSealed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sealed
}

// seal stops further emission and returns what the script produced.
func (s *Sandbox) seal() ([]model.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sealed = true
	return s.out.Actions(), s.err
}

func (s *Sandbox) Send(text string) {
	s.emit(func(c *Collector) { c.Send(text) })
}

func (s *Sandbox) SendAll(texts ...string) {
	s.emit(func(c *Collector) {
		for _, t := range texts {
			c.Send(t)
		}
	})
}

func (s *Sandbox) Wait(ms int) <-chan struct{} {
	s.emit(func(c *Collector) { c.Wait(ms) })
	return resolved
}

// Speedwalk accepts optional backwards and delay-in-seconds arguments, in
// that order, so scripts can write speedwalk("2e,n", true, 0.5).
func (s *Sandbox) Speedwalk(shorthand string, opts ...any) {
	backwards, delay, err := speedwalkOptions(opts)
	if err != nil {
		s.fail(fmt.Errorf("speedwalk %q: %w", shorthand, err))
		return
	}
	steps := Steps(shorthand, backwards, delay)
	s.emit(func(c *Collector) { c.Append(steps...) })
}

func speedwalkOptions(opts []any) (bool, time.Duration, error) {
	if len(opts) > 2 {
		return false, 0, fmt.Errorf("expected at most 2 options, got %d", len(opts))
	}
	var backwards bool
	var seconds float64
	var err error
	if len(opts) > 0 {
		if backwards, err = cast.ToBoolE(opts[0]); err != nil {
			return false, 0, fmt.Errorf("backwards: %w", err)
		}
	}
	if len(opts) > 1 {
		if seconds, err = cast.ToFloat64E(opts[1]); err != nil {
			return false, 0, fmt.Errorf("delay: %w", err)
		}
	}
	if seconds < 0 {
		seconds = 0
	}
	return backwards, time.Duration(seconds * float64(time.Second)), nil
}

func (s *Sandbox) SetVariable(name, value string) {
	if s.isSealed() {
		return
	}
	if s.env.SetVariable == nil {
		slog.Debug("setVariable ignored, no store attached", "name", name)
		return
	}
	s.env.SetVariable(name, value)
}

// SendEvent runs the first enabled script registered for event in a fresh
// sandbox and folds its output into this one. A missing script or a failing
// one is logged and otherwise ignored.
func (s *Sandbox) SendEvent(event string) {
	if s.isSealed() {
		return
	}
	script, ok := model.FindScript(s.env.Scripts, event)
	if !ok {
		slog.Warn("event script not found", "event", event, "error", ErrMissingEventScript)
		return
	}
	if s.depth >= s.maxDepth {
		slog.Warn("event script skipped", "event", event, "depth", s.depth, "error", ErrEventDepth)
		return
	}
	child := newSandbox(s.eval, s.env, s.Matches, s.depth+1, s.maxDepth)
	actions, err := s.eval.Run(script.Name, script.Command, child)
	if err != nil {
		slog.Error("event script error", "event", event, "script", script.Name, "error", err)
		return
	}
	s.emit(func(c *Collector) { c.Append(actions...) })
}

// Alert is fire-and-forget: notifier errors and panics never reach the script.
func (s *Sandbox) Alert() {
	if s.env.Notifier == nil || s.isSealed() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("alert failed", "panic", r)
		}
	}()
	if err := s.env.Notifier.Alert(); err != nil {
		slog.Warn("alert failed", "error", err)
	}
}

// exports publishes the primitives to the interpreter as the sandbox package.
func (s *Sandbox) exports() interp.Exports {
	matches := s.Matches
	return interp.Exports{
		sandboxPath + "/sandbox": {
			"Matches":     reflect.ValueOf(&matches).Elem(),
			"Send":        reflect.ValueOf(s.Send),
			"SendAll":     reflect.ValueOf(s.SendAll),
			"Wait":        reflect.ValueOf(s.Wait),
			"Speedwalk":   reflect.ValueOf(s.Speedwalk),
			"SetVariable": reflect.ValueOf(s.SetVariable),
			"SendEvent":   reflect.ValueOf(s.SendEvent),
			"Alert":       reflect.ValueOf(s.Alert),
		},
	}
}

var errNotIdentifier = errors.New("not a valid identifier")

// ValidateVariableName reports why name cannot be bound into a sandbox, or
// nil if it can.
func ValidateVariableName(name string) error {
	switch {
	case !token.IsIdentifier(name) || name == "_":
		return errNotIdentifier
	case reservedNames[name]:
		return fmt.Errorf("shadows sandbox primitive %q", name)
	case scriptPackageNames[name]:
		return fmt.Errorf("shadows package %q", name)
	case types.Universe.Lookup(name) != nil:
		return fmt.Errorf("shadows predeclared identifier %q", name)
	}
	return nil
}

// bindable filters vars down to the ones that can become constants, keeping
// first-seen order and the last value for duplicate names.
func bindable(vars []model.Variable) []model.Variable {
	index := make(map[string]int, len(vars))
	var out []model.Variable
	for _, v := range vars {
		if v.Name == "" {
			continue
		}
		if err := ValidateVariableName(v.Name); err != nil {
			slog.Warn("variable not bound", "name", v.Name, "error", err)
			continue
		}
		if i, ok := index[v.Name]; ok {
			out[i] = v
			continue
		}
		index[v.Name] = len(out)
		out = append(out, v)
	}
	return out
}
