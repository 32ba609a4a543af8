// Package agent hosts one console session: it routes typed input through
// aliases, server lines through triggers, and replays the resulting actions
// on the connection.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/nstehr/mudlark/mudlark-core/ipc"
	"github.com/nstehr/mudlark/mudlark-core/model"
	"github.com/nstehr/mudlark/mudlark-core/rules"
	"github.com/nstehr/mudlark/mudlark-core/store"
)

// Agent owns the pattern engine state for a single session.
type Agent struct {
	Conn     *ipc.Connection
	Player   *rules.Player
	Store    store.Store
	Notifier rules.Notifier
	// Reload re-reads the profile for #reload. Nil disables the command.
	Reload func() (model.Profile, error)

	mu      sync.RWMutex
	engine  *rules.Engine
	profile model.Profile

	ctx      context.Context
	replays  sync.WaitGroup
	commands *ipc.Commands
	styles   styles
}

// New builds a session for p. ctx bounds every replay; cancelling it aborts
// pending waits.
func New(ctx context.Context, conn *ipc.Connection, engine *rules.Engine, st store.Store, p model.Profile) *Agent {
	a := &Agent{
		Conn:    conn,
		Player:  rules.NewPlayer(),
		Store:   st,
		engine:  engine,
		profile: p,
		ctx:     ctx,
		styles:  defaultStyles(),
	}
	a.commands = a.clientCommands()
	return a
}

// Register wires the agent's handlers into its connection.
func (a *Agent) Register() {
	a.Conn.RegisterHandler(ipc.TypeInput, a.handleInputEnvelope)
	a.Conn.RegisterHandler(ipc.TypeLine, a.handleLineEnvelope)
}

func (a *Agent) handleInputEnvelope(env ipc.Envelope) (*ipc.Envelope, error) {
	a.HandleInput(env.Data)
	return nil, nil
}

func (a *Agent) handleLineEnvelope(env ipc.Envelope) (*ipc.Envelope, error) {
	a.HandleLine(env.Data)
	return nil, nil
}

// Profile returns the profile currently in effect.
func (a *Agent) Profile() model.Profile {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.profile
}

// Swap replaces the profile. Dispatch calls already running finish with the
// old rules. The engine is rebuilt when the event depth changes.
func (a *Agent) Swap(p model.Profile) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p.Settings.EffectiveEventDepth() != a.profile.Settings.EffectiveEventDepth() {
		engine, err := rules.NewEngine(rules.WithEventDepth(p.Settings.EffectiveEventDepth()))
		if err != nil {
			slog.Error("rebuild engine", "error", err)
		} else {
			a.engine = engine
		}
	}
	a.profile = p
	if err := a.Store.Seed(p.Variables); err != nil {
		slog.Error("seed variables", "error", err)
	}
	slog.Info("profile swapped", "name", p.Name,
		"aliases", len(p.Aliases), "triggers", len(p.Triggers), "scripts", len(p.Scripts))
}

func (a *Agent) snapshot() (*rules.Engine, model.Profile) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.engine, a.profile
}

func (a *Agent) env(p model.Profile) rules.Env {
	return rules.Env{
		Variables:   a.Store.Variables(),
		Scripts:     p.Scripts,
		SetVariable: a.setVariable,
		Notifier:    a.Notifier,
	}
}

func (a *Agent) setVariable(name, value string) {
	if err := a.Store.Set(name, value); err != nil {
		slog.Error("set variable", "name", name, "error", err)
		return
	}
	slog.Debug("variable set", "name", name, "value", value)
}

// HandleInput processes one line typed by the user. Blank input is ignored,
// client commands run locally, and input no alias expands is sent verbatim.
func (a *Agent) HandleInput(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if ipc.IsCommand(text) {
		if err := a.commands.Execute(text); err != nil {
			a.Conn.Info(err.Error())
		}
		return
	}

	engine, p := a.snapshot()
	actions := engine.ExpandAlias(text, p.Aliases, a.env(p))
	if actions == nil {
		actions = []model.Action{model.Command(text)}
	}
	a.replay(actions, p.Settings.Echo)
}

// HandleLine processes one line from the server: it is cleaned, echoed and
// run through every matching trigger.
func (a *Agent) HandleLine(line string) {
	clean := rules.CleanLine(line)
	if err := a.Conn.Send(ipc.TypeLine, a.styles.line.Render(clean)); err != nil {
		slog.Error("echo line", "error", err)
	}

	engine, p := a.snapshot()
	actions := engine.ProcessTriggers(clean, p.Triggers, a.env(p))
	a.replay(actions, p.Settings.Echo)
}

// replay plays actions in the background so pacing never blocks the read loop.
func (a *Agent) replay(actions []model.Action, echo bool) {
	if len(actions) == 0 {
		return
	}
	sink := a.Conn.SendCommand
	if echo {
		sink = func(text string) {
			a.Conn.SendCommand(text)
			a.Conn.Info(a.styles.echo.Render("→ " + text))
		}
	}

	a.replays.Add(1)
	go func() {
		defer a.replays.Done()
		if err := a.Player.Play(a.ctx, actions, sink); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("replay interrupted", "error", err)
		}
	}()
}

// Wait blocks until every replay started so far has finished.
func (a *Agent) Wait() {
	a.replays.Wait()
}
