package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActionType discriminates the two kinds of deferred output.
type ActionType string

const (
	ActionCommand ActionType = "command"
	ActionWait    ActionType = "wait"
)

// Action is one unit of deferred output produced by a dispatch pass:
// a line to send, or a pause before continuing.
type Action struct {
	Type     ActionType `json:"type"`
	Content  string     `json:"content"`
	WaitTime int        `json:"waitTime"` // milliseconds, wait actions only
}

// MarshalJSON writes waitTime on wait actions only, zero included.
func (a Action) MarshalJSON() ([]byte, error) {
	type wire struct {
		Type     ActionType `json:"type"`
		Content  string     `json:"content"`
		WaitTime *int       `json:"waitTime,omitempty"`
	}
	w := wire{Type: a.Type, Content: a.Content}
	if a.Type == ActionWait {
		ms := a.WaitTime
		w.WaitTime = &ms
	}
	return json.Marshal(w)
}

func Command(content string) Action {
	return Action{Type: ActionCommand, Content: content}
}

func Wait(ms int) Action {
	return Action{Type: ActionWait, WaitTime: ms}
}

// Duration is the pause a wait action asks for. Negative waits clamp to zero.
func (a Action) Duration() time.Duration {
	if a.WaitTime <= 0 {
		return 0
	}
	return time.Duration(a.WaitTime) * time.Millisecond
}

func (a Action) String() string {
	if a.Type == ActionWait {
		return fmt.Sprintf("wait %dms", a.WaitTime)
	}
	return fmt.Sprintf("send %q", a.Content)
}
