package jobs

import (
	"fmt"

	"github.com/josephlewis42/jobsh/core/process"
	"github.com/josephlewis42/jobsh/core/unit"
)

// State is the job-control state of a job.
type State uint8

const (
	// Run means every live process of the job is running.
	Run State = iota
	// Stopped means every live process of the job is stopped.
	Stopped
	// RunStopped means one side of a pipeline is stopped and the other runs.
	RunStopped
	// Done is terminal: every process has been collected.
	Done
)

func (s State) String() string {
	switch s {
	case Run:
		return "Run"
	case Stopped:
		return "Stopped"
	case RunStopped:
		return "RunStopped"
	case Done:
		return "Done"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// transition computes the state a job moves to after a poll of u observed
// obs. It returns cur when nothing relevant happened.
func transition(u unit.Unit, cur State, obs unit.Observation) State {
	if cur == Done || obs.Done {
		return Done
	}

	switch u.(type) {
	case *unit.Pipeline:
		// With one side gone the other is handled like a single process.
		switch {
		case obs.Finished[0] && !obs.Finished[1]:
			return nextUnary(cur, obs.Changes[1])
		case obs.Finished[1] && !obs.Finished[0]:
			return nextUnary(cur, obs.Changes[0])
		}
		return nextBinary(cur, obs.Changes[0], obs.Changes[1])
	case *unit.Single, *unit.Chain:
		return nextUnary(cur, obs.Changes[0])
	default:
		panic(fmt.Sprintf("jobs: unexpected unit %T", u))
	}
}

func nextUnary(cur State, change process.Change) State {
	switch change {
	case process.Stopped:
		return Stopped
	case process.Continued:
		return Run
	default:
		return cur
	}
}

func nextBinary(cur State, a, b process.Change) State {
	var stopped, continued int
	for _, ch := range []process.Change{a, b} {
		switch ch {
		case process.Stopped:
			stopped++
		case process.Continued:
			continued++
		}
	}

	switch {
	case stopped == 2:
		return Stopped
	case continued == 2:
		return Run
	case stopped == 1 && continued == 1:
		return RunStopped
	case stopped == 1:
		if cur == Run {
			return RunStopped
		}
		return Stopped
	case continued == 1:
		if cur == Stopped {
			return RunStopped
		}
		return Run
	}
	return cur
}
