package rules

import "github.com/nstehr/mudlark/mudlark-core/model"

// Notifier realises alert(): a bell, a flash, or nothing at all.
type Notifier interface {
	Alert() error
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func() error

func (f NotifierFunc) Alert() error { return f() }

// Env carries the host's collaborators for one dispatch call. Slices are
// read as snapshots; the engine keeps nothing once the call returns.
type Env struct {
	Variables []model.Variable
	Scripts   []model.Script
	// SetVariable writes to the host's variable store. Reads inside the
	// running script keep seeing the snapshot in Variables.
	SetVariable func(name, value string)
	Notifier    Notifier
}
