// Package unit composes processes into the three forms a job can take: a
// single command, a two-stage pipeline and a short-circuit boolean chain.
//
// Every form is a Unit. The set is closed; callers switch on the concrete
// type when they need to tell them apart.
package unit

import (
	"errors"
	"fmt"
	"os"

	"github.com/josephlewis42/jobsh/core/process"
	"golang.org/x/sys/unix"
)

// Terminal is the part of the controlling terminal a unit needs.
type Terminal interface {
	SetForeground(pgid int)
	ShellPgid() int
}

// Env carries the collaborators every unit is built with.
type Env struct {
	Builtins process.Builtins
	// Terminal may be nil when there is no terminal to arbitrate.
	Terminal Terminal
}

func (e Env) handTo(pgid int) {
	if e.Terminal != nil {
		e.Terminal.SetForeground(pgid)
	}
}

func (e Env) reclaim() {
	if e.Terminal != nil {
		e.Terminal.SetForeground(e.Terminal.ShellPgid())
	}
}

// Kind identifies the form of a unit.
type Kind uint8

const (
	KindSingle Kind = iota
	KindPipeline
	KindChain
)

func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindPipeline:
		return "pipeline"
	case KindChain:
		return "chain"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Operator joins the two argument vectors of a composite command.
type Operator uint8

const (
	OpNone Operator = iota
	OpPipe
	OpAnd
	OpOr
)

func (o Operator) String() string {
	switch o {
	case OpNone:
		return ""
	case OpPipe:
		return "|"
	case OpAnd:
		return "&&"
	case OpOr:
		return "||"
	default:
		return fmt.Sprintf("Operator(%d)", uint8(o))
	}
}

// Command is a classified command line.
type Command struct {
	// Argv holds one argument vector for OpNone and two otherwise.
	Argv       [][]string
	Op         Operator
	Foreground bool
	// Text is the command line as typed, for display.
	Text string
}

// ErrMalformed is returned for a command whose shape does not match its
// operator.
var ErrMalformed = errors.New("malformed command")

// Validate checks that the command has as many non-empty argument vectors as
// its operator needs.
func (c Command) Validate() error {
	want := 2
	switch c.Op {
	case OpNone:
		want = 1
	case OpPipe, OpAnd, OpOr:
	default:
		return fmt.Errorf("%w: unknown operator %d", ErrMalformed, c.Op)
	}

	if len(c.Argv) != want {
		return fmt.Errorf("%w: %q needs %d argument vectors, got %d", ErrMalformed, c.Op, want, len(c.Argv))
	}
	for i, argv := range c.Argv {
		if len(argv) == 0 || argv[0] == "" {
			return fmt.Errorf("%w: argument vector %d is empty", ErrMalformed, i)
		}
	}
	return nil
}

// Observation is what one poll of a unit saw.
type Observation struct {
	// Done is set once every process the unit will ever own has terminated.
	Done bool
	// Changes holds the sub-state change of each side seen by this poll.
	Changes [2]process.Change
	// Finished marks sides whose exit status has been collected.
	Finished [2]bool
	// Sides is the number of processes that run concurrently, 1 or 2.
	Sides int
}

// Changed reports whether any side changed.
func (o Observation) Changed() bool {
	return o.Changes[0] != process.Unchanged || o.Changes[1] != process.Unchanged
}

// Unit is one job's worth of processes.
type Unit interface {
	Kind() Kind
	// Poll checks every live process once. With nonBlocking unset it waits
	// for at least one change.
	Poll(nonBlocking bool) Observation
	// Done reports whether all processes terminated. With nonBlocking unset
	// it waits for that and always returns true.
	Done(nonBlocking bool) bool
	// Success waits for the unit to finish and reports whether it succeeded.
	Success() bool
	// Signaled reports, per process, whether it was killed by a signal.
	Signaled() []bool
	// Signal delivers sig to the live process(es). A target that is already
	// gone is ignored.
	Signal(sig unix.Signal)
	// Leader is the process group that should own the terminal.
	Leader() int
	// Pids lists the pids of the unit, -1 for a process never spawned.
	Pids() []int
	Foreground() bool
	SetForeground(fg bool)
	// Close collects every process and releases the unit's descriptors.
	Close()

	unit()
}

// New builds and starts the unit for cmd.
func New(env Env, cmd Command) (Unit, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	switch cmd.Op {
	case OpNone:
		return newSingle(env, cmd.Argv[0], cmd.Foreground), nil
	case OpPipe:
		return newPipeline(env, cmd.Argv[0], cmd.Argv[1], cmd.Foreground), nil
	default:
		return newChain(env, cmd.Op, cmd.Argv[0], cmd.Argv[1], cmd.Foreground), nil
	}
}

func deliver(p *process.Process, sig unix.Signal) {
	err := p.Signal(sig)
	switch {
	case err == nil, errors.Is(err, os.ErrProcessDone), errors.Is(err, unix.ESRCH):
	default:
		process.Fatal(fmt.Sprintf("kill %d %s", p.Pid(), unix.SignalName(sig)), err)
	}
}

func signaled(s process.Status) bool {
	return s.State == process.Signaled
}
