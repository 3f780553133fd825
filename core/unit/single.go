package unit

import (
	"github.com/josephlewis42/jobsh/core/process"
	"golang.org/x/sys/unix"
)

// Single is one process leading its own process group.
type Single struct {
	env        Env
	proc       *process.Process
	foreground bool
}

var _ Unit = (*Single)(nil)

func newSingle(env Env, argv []string, fg bool) *Single {
	s := &Single{
		env:        env,
		proc:       process.Spawn(env.Builtins, argv, nil),
		foreground: fg,
	}
	if fg {
		env.handTo(s.proc.Pid())
	} else {
		env.reclaim()
	}
	return s
}

func (*Single) unit() {}

func (*Single) Kind() Kind { return KindSingle }

func (s *Single) Poll(nonBlocking bool) Observation {
	obs := Observation{Sides: 1}
	status, change := s.proc.Poll(nonBlocking)
	obs.Changes[0] = change
	obs.Finished[0] = status.Done()
	obs.Done = status.Done()
	return obs
}

func (s *Single) Done(nonBlocking bool) bool {
	if !nonBlocking {
		s.proc.Join()
		return true
	}
	return s.Poll(true).Done
}

func (s *Single) Success() bool {
	return s.proc.Join().Success()
}

func (s *Single) Signaled() []bool {
	return []bool{signaled(s.proc.Status())}
}

func (s *Single) Signal(sig unix.Signal) {
	deliver(s.proc, sig)
}

func (s *Single) Leader() int {
	return s.proc.Pid()
}

func (s *Single) Pids() []int {
	return []int{s.proc.Pid()}
}

func (s *Single) Foreground() bool {
	return s.foreground
}

func (s *Single) SetForeground(fg bool) {
	s.foreground = fg
}

func (s *Single) Close() {
	s.proc.Release()
	if s.foreground {
		s.env.reclaim()
	}
}
