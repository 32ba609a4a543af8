package rules

import "github.com/nstehr/mudlark/mudlark-core/model"

// Collector accumulates the actions one dispatch pass produces, in emission
// order. It is discarded once the actions are handed to a Player.
type Collector struct {
	actions []model.Action
}

func (c *Collector) Send(text string) {
	c.actions = append(c.actions, model.Command(text))
}

func (c *Collector) Wait(ms int) {
	c.actions = append(c.actions, model.Wait(ms))
}

func (c *Collector) Append(actions ...model.Action) {
	c.actions = append(c.actions, actions...)
}

func (c *Collector) Len() int { return len(c.actions) }

// Actions returns the collected list, or nil when nothing was emitted so
// callers can treat "no actions" and "no match" the same way.
func (c *Collector) Actions() []model.Action {
	if len(c.actions) == 0 {
		return nil
	}
	return c.actions
}
