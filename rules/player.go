package rules

import (
	"context"
	"time"

	"github.com/nstehr/mudlark/mudlark-core/model"
)

// Sink receives each command line during replay, typically the connection
// to the game.
type Sink func(text string)

// Player replays an action list against a sink. Commands are delivered
// immediately and in order; waits suspend only the replay that contains
// them. Play blocks, so hosts run each replay in its own goroutine when the
// rest of the session must keep going.
type Player struct{}

func NewPlayer() *Player {
	return &Player{}
}

// Play delivers actions to sink. It returns early with ctx.Err() only when
// the host cancels ctx (shutdown); otherwise every wait runs to completion.
func (p *Player) Play(ctx context.Context, actions []model.Action, sink Sink) error {
	for _, a := range actions {
		switch a.Type {
		case model.ActionCommand:
			sink(a.Content)
		case model.ActionWait:
			d := a.Duration()
			if d == 0 {
				continue
			}
			t := time.NewTimer(d)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			}
		}
	}
	return nil
}
