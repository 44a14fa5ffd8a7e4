package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/vigil-mon/agent/internal/control"
)

// Verb names a control operation submitted by the presentation layer.
type Verb string

const (
	VerbTerminate   Verb = "terminate"
	VerbSuspend     Verb = "suspend"
	VerbResume      Verb = "resume"
	VerbSetPriority Verb = "set_priority"
	VerbLaunch      Verb = "launch"
)

// Command is one queued control request. PID addresses the target for every
// verb except Launch, which carries a command line instead.
type Command struct {
	ID      string                `json:"id"`
	Verb    Verb                  `json:"verb"`
	PID     int32                 `json:"pid,omitempty"`
	Level   control.PriorityLevel `json:"level,omitempty"`
	Command string                `json:"command,omitempty"`
	Args    []string              `json:"args,omitempty"`
}

// NewCommand builds a pid-targeted command with a fresh correlation id.
func NewCommand(verb Verb, pid int32) Command {
	return Command{ID: uuid.NewString(), Verb: verb, PID: pid}
}

// NewLaunchCommand builds a launch command with a fresh correlation id.
func NewLaunchCommand(command string, args []string) Command {
	return Command{ID: uuid.NewString(), Verb: VerbLaunch, Command: command, Args: args}
}

// Event is the completion notification for one command. Error carries the
// control error verbatim for display; Kind carries its taxonomy class. Both
// are empty on success.
type Event struct {
	CommandID   string                `json:"commandId"`
	Verb        Verb                  `json:"verb"`
	PID         int32                 `json:"pid,omitempty"`
	LaunchedPID int32                 `json:"launchedPid,omitempty"`
	Level       control.PriorityLevel `json:"level,omitempty"`
	Error       string                `json:"error,omitempty"`
	Kind        control.Kind          `json:"kind,omitempty"`
	At          time.Time             `json:"at"`
}

// OK reports whether the command completed without error.
func (e *Event) OK() bool {
	return e.Error == ""
}

func completionEvent(cmd Command, at time.Time, err error) Event {
	ev := Event{
		CommandID: cmd.ID,
		Verb:      cmd.Verb,
		PID:       cmd.PID,
		Level:     cmd.Level,
		At:        at,
	}
	if err != nil {
		ev.Error = err.Error()
		ev.Kind = control.KindOf(err)
	}
	return ev
}
