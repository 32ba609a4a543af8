package rules

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/nstehr/mudlark/mudlark-core/model"
)

// sandboxPath is the import path scripts see the primitives under.
const sandboxPath = "mudlark/sandbox"

// DefaultScriptTimeout bounds a single script body. Each nested event script
// gets its own budget.
const DefaultScriptTimeout = 2 * time.Second

// scriptPackages are the only stdlib packages a script can reach. They are
// pure: no filesystem, network or process access.
var scriptPackages = []string{"fmt", "math", "strconv", "strings", "unicode"}

var scriptPackageNames = func() map[string]bool {
	m := make(map[string]bool, len(scriptPackages))
	for _, p := range scriptPackages {
		m[path.Base(p)] = true
	}
	return m
}()

// Evaluator runs script bodies in an embedded Go interpreter. Each run gets
// its own interpreter whose only symbols are the whitelisted packages and
// the sandbox primitives, so scripts cannot reach engine internals.
type Evaluator struct {
	timeout  time.Duration
	packages interp.Exports
}

func NewEvaluator(timeout time.Duration) *Evaluator {
	if timeout <= 0 {
		timeout = DefaultScriptTimeout
	}
	restricted := interp.Exports{}
	for _, pkg := range scriptPackages {
		key := pkg + "/" + path.Base(pkg)
		if syms, ok := stdlib.Symbols[key]; ok {
			restricted[key] = syms
		}
	}
	return &Evaluator{timeout: timeout, packages: restricted}
}

func (ev *Evaluator) interpreter(sb *Sandbox) (*interp.Interpreter, error) {
	i := interp.New(interp.Options{Stdout: io.Discard, Stderr: io.Discard})
	if err := i.Use(ev.packages); err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}
	if err := i.Use(sb.exports()); err != nil {
		return nil, fmt.Errorf("load sandbox: %w", err)
	}
	return i, nil
}

// Run compiles body against sb and executes it to completion. The returned
// actions are exactly what the body emitted; on error the body contributes
// nothing.
func (ev *Evaluator) Run(name, body string, sb *Sandbox) ([]model.Action, error) {
	i, err := ev.interpreter(sb)
	if err != nil {
		sb.seal()
		return nil, &ScriptError{Rule: name, Err: err}
	}

	ctx, cancel := context.WithTimeout(context.Background(), ev.timeout)
	defer cancel()

	if _, err := i.EvalWithContext(ctx, scriptSource(body, bindable(sb.env.Variables))); err != nil {
		sb.seal()
		return nil, &ScriptError{Rule: name, Err: fmt.Errorf("compile: %w", err)}
	}
	_, runErr := i.EvalWithContext(ctx, "main.Run()")
	actions, sbErr := sb.seal()
	if runErr != nil {
		return nil, &ScriptError{Rule: name, Err: runErr}
	}
	if sbErr != nil {
		return nil, &ScriptError{Rule: name, Err: sbErr}
	}
	return actions, nil
}

// Check compiles body without running it, so undefined names and syntax
// errors surface before the rule ever fires.
func (ev *Evaluator) Check(name, body string, vars []model.Variable) error {
	sb := newSandbox(ev, Env{Variables: vars}, nil, 0, 0)
	defer sb.seal()
	i, err := ev.interpreter(sb)
	if err != nil {
		return &ScriptError{Rule: name, Err: err}
	}
	ctx, cancel := context.WithTimeout(context.Background(), ev.timeout)
	defer cancel()
	if _, err := i.EvalWithContext(ctx, scriptSource(body, bindable(vars))); err != nil {
		return &ScriptError{Rule: name, Err: fmt.Errorf("compile: %w", err)}
	}
	// Resolve the entry point without calling it.
	if _, err := i.EvalWithContext(ctx, "main.Run"); err != nil {
		return &ScriptError{Rule: name, Err: fmt.Errorf("entry point: %w", err)}
	}
	return nil
}

// scriptSource wraps a body into a package whose scope holds nothing but the
// primitives and one constant per variable.
func scriptSource(body string, vars []model.Variable) string {
	var b strings.Builder
	b.WriteString("package main\n\nimport (\n")
	for _, p := range scriptPackages {
		fmt.Fprintf(&b, "\t%q\n", p)
	}
	fmt.Fprintf(&b, "\tsandbox %q\n)\n\n", sandboxPath)

	// Keep every import used regardless of what the body references.
	b.WriteString("var (\n")
	b.WriteString("\t_ = fmt.Sprint\n\t_ = math.Abs\n\t_ = strconv.Itoa\n\t_ = strings.TrimSpace\n\t_ = unicode.IsDigit\n")
	b.WriteString(")\n\n")

	b.WriteString("var (\n")
	b.WriteString("\tmatches     = sandbox.Matches\n")
	b.WriteString("\tsend        = sandbox.Send\n")
	b.WriteString("\tsendAll     = sandbox.SendAll\n")
	b.WriteString("\twait        = sandbox.Wait\n")
	b.WriteString("\tspeedwalk   = sandbox.Speedwalk\n")
	b.WriteString("\tsetVariable = sandbox.SetVariable\n")
	b.WriteString("\tsendEvent   = sandbox.SendEvent\n")
	b.WriteString("\talert       = sandbox.Alert\n")
	b.WriteString(")\n\n")

	for _, v := range vars {
		fmt.Fprintf(&b, "const %s = %s\n", v.Name, strconv.Quote(v.Value))
	}

	b.WriteString("\nfunc Run() {\n")
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		b.WriteString("\t")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("}\n")
	return b.String()
}
