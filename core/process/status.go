package process

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// State is the terminal-status tri-state of a process.
type State uint8

const (
	Running State = iota
	Exited
	Signaled
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Exited:
		return "exited"
	case Signaled:
		return "signaled"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// SuccessCode is the exit code that counts as success.
const SuccessCode = 0

// Status is the collected status of a process. Once Done it never changes.
type Status struct {
	State State
	// Code is the exit code, valid when State is Exited.
	Code int
	// Signal is the terminating signal, valid when State is Signaled.
	Signal unix.Signal
}

// Done reports whether the process has exited or was killed by a signal.
func (s Status) Done() bool {
	return s.State != Running
}

// Success reports whether the process exited with SuccessCode.
func (s Status) Success() bool {
	return s.State == Exited && s.Code == SuccessCode
}

func (s Status) String() string {
	switch s.State {
	case Exited:
		return fmt.Sprintf("exit %d", s.Code)
	case Signaled:
		return fmt.Sprintf("signal %s", unix.SignalName(s.Signal))
	default:
		return s.State.String()
	}
}

// Change is what a single poll observed besides the terminal status.
type Change uint8

const (
	// Unchanged means nothing was reported.
	Unchanged Change = iota
	// Stopped means the process entered the stopped sub-state.
	Stopped
	// Continued means a stopped process was resumed.
	Continued
	// Terminated means the poll collected the exit status.
	Terminated
)

func (c Change) String() string {
	switch c {
	case Unchanged:
		return "unchanged"
	case Stopped:
		return "stopped"
	case Continued:
		return "continued"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("Change(%d)", uint8(c))
	}
}
