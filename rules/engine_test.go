package rules

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/nstehr/mudlark/mudlark-core/model"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func alias(pattern, command string) model.Rule {
	return model.Rule{Name: pattern, Pattern: pattern, Command: command, Enabled: true}
}

func assertActions(t *testing.T, got []model.Action, want ...model.Action) {
	t.Helper()
	if !slices.Equal(got, want) {
		t.Fatalf("actions = %v, want %v", got, want)
	}
}

func TestExpandAliasNoMatch(t *testing.T) {
	e := newTestEngine(t)
	rules := []model.Rule{alias(`^test$`, `send("test command")`)}
	if got := e.ExpandAlias("something else", rules, Env{}); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestExpandAliasSend(t *testing.T) {
	e := newTestEngine(t)
	rules := []model.Rule{alias(`^t`, `send("X")`)}
	assertActions(t, e.ExpandAlias("t anything", rules, Env{}), model.Command("X"))
}

func TestExpandAliasWait(t *testing.T) {
	e := newTestEngine(t)
	rules := []model.Rule{alias(`^w$`, `wait(500)`)}
	got := e.ExpandAlias("w", rules, Env{})
	assertActions(t, got, model.Action{Type: model.ActionWait, Content: "", WaitTime: 500})
}

func TestExpandAliasCaptureGroups(t *testing.T) {
	e := newTestEngine(t)
	rules := []model.Rule{alias(`^g (.+)$`, `send("enter"); send("give tianji " + matches[1])`)}
	assertActions(t, e.ExpandAlias("g wineskin", rules, Env{}),
		model.Command("enter"),
		model.Command("give tianji wineskin"),
	)
}

func TestExpandAliasMultiLineBody(t *testing.T) {
	e := newTestEngine(t)
	body := `
		send("wield " + weapon)

		wait(500)
		send("kill " + matches[1])
		wait(1000)
		send("get all from corpse")
	`
	rules := []model.Rule{alias(`^attack (.+)$`, body)}
	env := Env{Variables: []model.Variable{{Name: "weapon", Value: "sword"}}}
	assertActions(t, e.ExpandAlias("attack goblin", rules, env),
		model.Command("wield sword"),
		model.Wait(500),
		model.Command("kill goblin"),
		model.Wait(1000),
		model.Command("get all from corpse"),
	)
}

func TestExpandAliasConditional(t *testing.T) {
	e := newTestEngine(t)
	body := `
		target := matches[1]
		if target == "dragon" {
			send("flee")
		} else {
			send("attack " + target)
		}
	`
	rules := []model.Rule{alias(`^cond (.+)$`, body)}
	assertActions(t, e.ExpandAlias("cond dragon", rules, Env{}), model.Command("flee"))
	assertActions(t, e.ExpandAlias("cond goblin", rules, Env{}), model.Command("attack goblin"))
}

func TestExpandAliasStdlibHelpers(t *testing.T) {
	e := newTestEngine(t)
	body := `
		n, _ := strconv.Atoi(matches[1])
		for i := 0; i < n; i++ {
			send(strings.ToUpper(matches[2]))
		}
	`
	rules := []model.Rule{alias(`^rep (\d+) (\w+)$`, body)}
	assertActions(t, e.ExpandAlias("rep 2 look", rules, Env{}),
		model.Command("LOOK"),
		model.Command("LOOK"),
	)
}

func TestExpandAliasSendAll(t *testing.T) {
	e := newTestEngine(t)
	rules := []model.Rule{alias(`^prep$`, `sendAll("wear armor", "wield " + weapon, "say ready")`)}
	env := Env{Variables: []model.Variable{{Name: "weapon", Value: "axe"}}}
	assertActions(t, e.ExpandAlias("prep", rules, env),
		model.Command("wear armor"),
		model.Command("wield axe"),
		model.Command("say ready"),
	)
}

func TestExpandAliasSpeedwalk(t *testing.T) {
	e := newTestEngine(t)
	rules := []model.Rule{
		alias(`^home$`, `speedwalk("2e,w,ne")`),
		alias(`^back$`, `speedwalk("2e,w,ne", true)`),
		alias(`^slow$`, `speedwalk("n,e", false, 0.5)`),
	}
	assertActions(t, e.ExpandAlias("home", rules, Env{}),
		model.Command("east"), model.Command("east"), model.Command("west"), model.Command("northeast"))
	assertActions(t, e.ExpandAlias("back", rules, Env{}),
		model.Command("southwest"), model.Command("east"), model.Command("west"), model.Command("west"))
	assertActions(t, e.ExpandAlias("slow", rules, Env{}),
		model.Command("north"), model.Wait(500), model.Command("east"))
}

func TestExpandAliasBadSpeedwalkOption(t *testing.T) {
	e := newTestEngine(t)
	rules := []model.Rule{alias(`^walk$`, `send("start"); speedwalk("n", "sideways")`)}
	if got := e.ExpandAlias("walk", rules, Env{}); got != nil {
		t.Errorf("expected nil for invalid speedwalk option, got %v", got)
	}
}

func TestUnboundVariableExcludesRule(t *testing.T) {
	e := newTestEngine(t)
	rules := []model.Rule{alias(`^cul$`, `send("echo Last line was: " + line)`)}
	if got := e.ExpandAlias("cul", rules, Env{}); got != nil {
		t.Errorf("expected nil when a variable is unbound, got %v", got)
	}

	env := Env{Variables: []model.Variable{{Name: "line", Value: "A goblin appears!"}}}
	assertActions(t, e.ExpandAlias("cul", rules, env), model.Command("echo Last line was: A goblin appears!"))
}

func TestVariablesAreReadOnly(t *testing.T) {
	e := newTestEngine(t)
	vars := []model.Variable{{Name: "weapon", Value: "sword"}}
	var sets int
	env := Env{
		Variables:   vars,
		SetVariable: func(string, string) { sets++ },
	}
	rules := []model.Rule{alias(`^uw$`, `weapon = "axe"`)}
	if got := e.ExpandAlias("uw", rules, env); got != nil {
		t.Errorf("expected no actions, got %v", got)
	}
	if vars[0].Value != "sword" {
		t.Errorf("variable mutated to %q", vars[0].Value)
	}
	if sets != 0 {
		t.Errorf("store written %d times", sets)
	}
}

func TestUnbindableVariablesAreSkipped(t *testing.T) {
	e := newTestEngine(t)
	env := Env{Variables: []model.Variable{
		{Name: "my-var", Value: "x"},
		{Name: "send", Value: "y"},
		{Name: "strings", Value: "z"},
		{Name: "hp", Value: "10"},
		{Name: "hp", Value: "12"},
	}}
	rules := []model.Rule{alias(`^hp$`, `send("hp is " + hp)`)}
	assertActions(t, e.ExpandAlias("hp", rules, env), model.Command("hp is 12"))
}

func TestSetVariableInvokesCallback(t *testing.T) {
	e := newTestEngine(t)
	type call struct{ name, value string }
	var calls []call
	env := Env{SetVariable: func(name, value string) { calls = append(calls, call{name, value}) }}

	rules := []model.Rule{alias(`^sv$`, `setVariable("foo", "bar")`)}
	if got := e.ExpandAlias("sv", rules, env); got != nil {
		t.Errorf("setVariable alone should emit no actions, got %v", got)
	}
	if !slices.Equal(calls, []call{{"foo", "bar"}}) {
		t.Errorf("callback calls = %v", calls)
	}

	calls = nil
	rules = []model.Rule{alias(`^sv (\w+) (\w+)$`, `
		setVariable(matches[1], matches[2])
		setVariable("treeDirection", "北")
		send("echo Set " + matches[1] + " to " + matches[2])
	`)}
	assertActions(t, e.ExpandAlias("sv weapon sword", rules, env), model.Command("echo Set weapon to sword"))
	if !slices.Equal(calls, []call{{"weapon", "sword"}, {"treeDirection", "北"}}) {
		t.Errorf("callback calls = %v", calls)
	}
}

func TestSetVariableDoesNotRefreshSnapshot(t *testing.T) {
	e := newTestEngine(t)
	env := Env{
		Variables:   []model.Variable{{Name: "target", Value: "goblin"}},
		SetVariable: func(string, string) {},
	}
	rules := []model.Rule{alias(`^t (\w+)$`, `setVariable("target", matches[1]); send("kill " + target)`)}
	assertActions(t, e.ExpandAlias("t orc", rules, env), model.Command("kill goblin"))
}

func TestDisabledRulesNeverMatch(t *testing.T) {
	e := newTestEngine(t)
	rules := []model.Rule{
		{Name: "off", Pattern: `.*`, Command: `send("disabled")`, Enabled: false},
	}
	if got := e.ExpandAlias("anything", rules, Env{}); got != nil {
		t.Errorf("disabled rule produced %v", got)
	}
	if got := e.ProcessTriggers("anything", rules, Env{}); got != nil {
		t.Errorf("disabled trigger produced %v", got)
	}
}

func TestInvalidPatternDoesNotStopScan(t *testing.T) {
	e := newTestEngine(t)
	rules := []model.Rule{
		alias(`^(unclosed`, `send("broken")`),
		alias(`^look$`, `send("look around")`),
	}
	assertActions(t, e.ExpandAlias("look", rules, Env{}), model.Command("look around"))

	if err := e.CompilePattern(`^(unclosed`); err == nil {
		t.Error("CompilePattern should reject an unclosed group")
	}
	if err := e.CompilePattern(`^look$`); err != nil {
		t.Errorf("CompilePattern(^look$) = %v", err)
	}
}

func TestFirstMatchStopsAtFirstRule(t *testing.T) {
	e := newTestEngine(t)
	rules := []model.Rule{
		alias(`^k`, `send("first")`),
		alias(`^kill`, `send("second")`),
	}
	assertActions(t, e.ExpandAlias("kill rat", rules, Env{}), model.Command("first"))
}

func TestFirstMatchScriptErrorMeansNoExpansion(t *testing.T) {
	e := newTestEngine(t)
	rules := []model.Rule{
		alias(`^k`, `send(undefinedThing)`),
		alias(`^kill`, `send("second")`),
	}
	if got := e.ExpandAlias("kill rat", rules, Env{}); got != nil {
		t.Errorf("expected nil after script error, got %v", got)
	}
}

func TestRuntimePanicIsContained(t *testing.T) {
	e := newTestEngine(t)
	rules := []model.Rule{alias(`^oops$`, `send("before"); send(matches[5])`)}
	if got := e.ExpandAlias("oops", rules, Env{}); got != nil {
		t.Errorf("expected nil after runtime panic, got %v", got)
	}
}

func TestProcessTriggersAccumulates(t *testing.T) {
	e := newTestEngine(t)
	triggers := []model.Rule{
		alias(`goblin`, `send("kill goblin")`),
		alias(`appears`, `send(notBound)`),
		alias(`(\w+) appears`, `send("look " + strings.ToLower(matches[1]))`),
		alias(`dragon`, `send("flee")`),
	}
	assertActions(t, e.ProcessTriggers("A Goblin appears! The goblin snarls.", triggers, Env{}),
		model.Command("kill goblin"),
		model.Command("look goblin"),
	)
	if got := e.ProcessTriggers("Nothing happens.", triggers, Env{}); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestNonParticipatingGroupIsEmpty(t *testing.T) {
	e := newTestEngine(t)
	rules := []model.Rule{alias(`^kill (\w+)( now)?$`, `send("[" + matches[2] + "]")`)}
	assertActions(t, e.ExpandAlias("kill orc", rules, Env{}), model.Command("[]"))
	assertActions(t, e.ExpandAlias("kill orc now", rules, Env{}), model.Command("[ now]"))
}

func TestECMAScriptPatterns(t *testing.T) {
	e := newTestEngine(t)
	rules := []model.Rule{alias(`^(?=.*gold)get (.+)$`, `send("take " + matches[1])`)}
	assertActions(t, e.ExpandAlias("get gold coins", rules, Env{}), model.Command("take gold coins"))
	if got := e.ExpandAlias("get rusty nail", rules, Env{}); got != nil {
		t.Errorf("lookahead should have rejected input, got %v", got)
	}
}

func TestSendEvent(t *testing.T) {
	e := newTestEngine(t)
	env := Env{Scripts: []model.Script{
		{Name: "old heal", Event: "heal", Command: `send("quaff red")`, Enabled: false},
		{Name: "heal", Event: "heal", Command: `send("quaff blue"); wait(200)`, Enabled: true},
	}}
	rules := []model.Rule{alias(`HP low`, `send("a"); sendEvent("heal"); send("b")`)}
	assertActions(t, e.ProcessTriggers("Warning: HP low", rules, env),
		model.Command("a"),
		model.Command("quaff blue"),
		model.Wait(200),
		model.Command("b"),
	)
}

func TestSendEventMissingIsNoop(t *testing.T) {
	e := newTestEngine(t)
	rules := []model.Rule{alias(`^x$`, `sendEvent("nothing"); send("done")`)}
	assertActions(t, e.ExpandAlias("x", rules, Env{}), model.Command("done"))
}

func TestSendEventFailureDoesNotFailCaller(t *testing.T) {
	e := newTestEngine(t)
	env := Env{Scripts: []model.Script{
		{Name: "broken", Event: "boom", Command: `send("partial"); send(missing)`, Enabled: true},
	}}
	rules := []model.Rule{alias(`^x$`, `sendEvent("boom"); send("done")`)}
	assertActions(t, e.ExpandAlias("x", rules, env), model.Command("done"))
}

func TestSendEventRecursionIsCapped(t *testing.T) {
	e := newTestEngine(t, WithEventDepth(3))
	env := Env{Scripts: []model.Script{
		{Name: "loop", Event: "loop", Command: `send("tick"); sendEvent("loop")`, Enabled: true},
	}}
	rules := []model.Rule{alias(`^go$`, `sendEvent("loop")`)}
	assertActions(t, e.ExpandAlias("go", rules, env),
		model.Command("tick"), model.Command("tick"), model.Command("tick"))
}

func TestSendEventSharesVariablesAndMatches(t *testing.T) {
	e := newTestEngine(t)
	env := Env{
		Variables: []model.Variable{{Name: "weapon", Value: "spear"}},
		Scripts: []model.Script{
			{Name: "arm", Event: "arm", Command: `send("wield " + weapon + " at " + matches[1])`, Enabled: true},
		},
	}
	rules := []model.Rule{alias(`^arm (\w+)$`, `sendEvent("arm")`)}
	assertActions(t, e.ExpandAlias("arm troll", rules, env), model.Command("wield spear at troll"))
}

func TestAlertIsFireAndForget(t *testing.T) {
	e := newTestEngine(t)
	alerts := 0
	env := Env{Notifier: NotifierFunc(func() error {
		alerts++
		return errors.New("no audio device")
	})}
	rules := []model.Rule{alias(`tells you`, `alert(); send("reply busy")`)}
	assertActions(t, e.ProcessTriggers("Tianji tells you: hi", rules, env), model.Command("reply busy"))
	if alerts != 1 {
		t.Errorf("notifier called %d times, want 1", alerts)
	}

	panicky := Env{Notifier: NotifierFunc(func() error { panic("speaker on fire") })}
	assertActions(t, e.ProcessTriggers("Tianji tells you: hi", rules, panicky), model.Command("reply busy"))
}

func TestCheckScript(t *testing.T) {
	e := newTestEngine(t)
	vars := []model.Variable{{Name: "target", Value: "orc"}}
	if err := e.CheckScript("ok", `send("kill " + target)`, vars); err != nil {
		t.Errorf("CheckScript(ok) = %v", err)
	}
	err := e.CheckScript("bad", `send("kill " + victim)`, vars)
	var se *ScriptError
	if !errors.As(err, &se) || se.Rule != "bad" {
		t.Errorf("CheckScript(bad) = %v, want ScriptError for rule bad", err)
	}
}

func TestEntryPointNamesAreNotBound(t *testing.T) {
	e := newTestEngine(t)
	vars := []model.Variable{{Name: "main", Value: "sword"}, {Name: "init", Value: "1"}, {Name: "weapon", Value: "axe"}}
	rules := []model.Rule{alias(`^l$`, `send("look")`), alias(`^w$`, `send("wield " + weapon)`)}
	env := Env{Variables: vars}

	assertActions(t, e.ExpandAlias("l", rules, env), model.Command("look"))
	assertActions(t, e.ExpandAlias("w", rules, env), model.Command("wield axe"))
	if err := e.CheckScript("look", `send("look")`, vars); err != nil {
		t.Errorf("CheckScript with main variable = %v", err)
	}
}

func TestScriptTimeoutStopsRunawayBody(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	e := newTestEngine(t, WithScriptTimeout(100*time.Millisecond))
	rules := []model.Rule{alias(`^spin$`, "send(\"a\")\nfor {\n}")}

	start := time.Now()
	if got := e.ExpandAlias("spin", rules, Env{}); got != nil {
		t.Errorf("runaway body produced %v, want nil", got)
	}
	if d := time.Since(start); d > 5*time.Second {
		t.Errorf("timeout not enforced: took %v", d)
	}
}

func TestMatchTimeoutSkipsPattern(t *testing.T) {
	e := newTestEngine(t, WithMatchTimeout(10*time.Millisecond))
	triggers := []model.Rule{
		alias(`^(a+)+$`, `send("never")`),
		alias(`b$`, `send("tail")`),
	}
	line := strings.Repeat("a", 40) + "b"
	assertActions(t, e.ProcessTriggers(line, triggers, Env{}), model.Command("tail"))
}
