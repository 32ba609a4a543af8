package rules

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingEventScript is reported when sendEvent names an event with no
	// enabled script.
	ErrMissingEventScript = errors.New("no enabled script for event")
	// ErrEventDepth is reported when nested sendEvent calls exceed the limit.
	ErrEventDepth = errors.New("event recursion limit reached")
)

// PatternError means a rule's pattern did not compile or could not be
// evaluated against the input. The rule is skipped; the scan continues.
type PatternError struct {
	Rule    string
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("rule %q: pattern %q: %v", e.Rule, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

// ScriptError means a rule's script body failed to compile or run.
// The rule contributes no actions.
type ScriptError struct {
	Rule string
	Err  error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("rule %q: %v", e.Rule, e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }
