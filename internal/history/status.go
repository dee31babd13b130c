package history

import (
	"fmt"

	"github.com/dshills/sketchpad/internal/event/topic"
)

// StatusTopics matches every status event published for a Manager.
const StatusTopics topic.Topic = "history.*"

// Action identifies the history operation a Status describes.
type Action int

const (
	ActionRecord Action = iota
	ActionUndo
	ActionRedo
	ActionClear
	ActionReset
)

// String returns the action name, also used as the event topic suffix.
func (a Action) String() string {
	switch a {
	case ActionRecord:
		return "record"
	case ActionUndo:
		return "undo"
	case ActionRedo:
		return "redo"
	case ActionClear:
		return "clear"
	case ActionReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Topic returns the event topic a Status for a is published on.
func (a Action) Topic() topic.Topic {
	return topic.Topic("history").Child(a.String())
}

// Status is the user-visible outcome of a history operation.
type Status struct {
	Action Action

	// Err is ErrNothingToUndo or ErrNothingToRedo for an exhausted stack,
	// nil on success.
	Err error

	// Stack depths after the operation.
	HistoryLen int
	RedoLen    int
}

// OK reports whether the operation changed the stacks.
func (s Status) OK() bool {
	return s.Err == nil
}

// Message returns the text a front-end shows for the status.
func (s Status) Message() string {
	if s.Err != nil {
		return s.Err.Error()
	}
	switch s.Action {
	case ActionUndo:
		return "undone"
	case ActionRedo:
		return "redone"
	case ActionClear:
		return "cleared"
	case ActionReset:
		return "loaded"
	default:
		return "recorded"
	}
}

func (s Status) String() string {
	return fmt.Sprintf("%s: %s (history=%d redo=%d)", s.Action, s.Message(), s.HistoryLen, s.RedoLen)
}

// Notifier receives a Status after every operation.
type Notifier interface {
	Notify(Status)
}

// NotifierFunc is a function adapter for Notifier.
type NotifierFunc func(Status)

// Notify implements Notifier.
func (f NotifierFunc) Notify(s Status) {
	f(s)
}
