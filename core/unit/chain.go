package unit

import (
	"github.com/josephlewis42/jobsh/core/process"
	"golang.org/x/sys/unix"
)

// notRun is the status of a chain's second process when the predicate
// skipped it. It is never a success.
var notRun = process.Status{State: process.Exited, Code: -1}

// Chain runs its first command and then, depending on the operator and the
// first exit status, its second. Only one of the two is alive at a time.
type Chain struct {
	env        Env
	op         Operator
	first      *process.Process
	second     *process.Process
	rest       []string
	foreground bool
}

var _ Unit = (*Chain)(nil)

func newChain(env Env, op Operator, first, second []string, fg bool) *Chain {
	c := &Chain{
		env:        env,
		op:         op,
		first:      process.Spawn(env.Builtins, first, nil),
		rest:       append([]string(nil), second...),
		foreground: fg,
	}
	if fg {
		env.handTo(c.first.Pid())
	} else {
		env.reclaim()
	}
	return c
}

func (*Chain) unit() {}

func (*Chain) Kind() Kind { return KindChain }

// Operator returns AND or OR.
func (c *Chain) Operator() Operator {
	return c.op
}

// Spawned reports whether the second command was started.
func (c *Chain) Spawned() bool {
	return c.second != nil
}

func (c *Chain) active() *process.Process {
	if c.second != nil {
		return c.second
	}
	return c.first
}

func (c *Chain) done() bool {
	if c.second != nil {
		return c.second.Status().Done()
	}
	return c.first.Status().Done() && c.rest == nil
}

// advance consumes the deferred argument vector once the first process has
// terminated and starts it if the operator allows.
func (c *Chain) advance() bool {
	if c.rest == nil {
		return false
	}
	argv := c.rest
	c.rest = nil

	run := c.first.Status().Success()
	if c.op == OpOr {
		run = !run
	}
	if !run {
		return false
	}

	c.second = process.Spawn(c.env.Builtins, argv, nil)
	if c.foreground {
		c.env.handTo(c.second.Pid())
	}
	return true
}

func (c *Chain) Poll(nonBlocking bool) Observation {
	obs := Observation{Sides: 1}
	for !c.done() {
		active := c.active()
		status, change := active.Poll(nonBlocking)
		if !status.Done() {
			obs.Changes[0] = change
			return obs
		}
		if active == c.first && c.advance() {
			continue
		}
		obs.Changes[0] = process.Terminated
	}

	obs.Done = true
	obs.Finished[0] = true
	return obs
}

func (c *Chain) Done(nonBlocking bool) bool {
	if nonBlocking {
		return c.Poll(true).Done
	}

	c.first.Join()
	c.advance()
	// A non-blocking poll may already have started the second process.
	if c.second != nil {
		c.second.Join()
	}
	return true
}

func (c *Chain) statuses() (process.Status, process.Status) {
	second := notRun
	if c.second != nil {
		second = c.second.Status()
	}
	return c.first.Status(), second
}

func (c *Chain) Success() bool {
	c.Done(false)
	first, second := c.statuses()
	if c.op == OpAnd {
		return first.Success() && second.Success()
	}
	return first.Success() || second.Success()
}

func (c *Chain) Signaled() []bool {
	first, second := c.statuses()
	return []bool{signaled(first), signaled(second)}
}

func (c *Chain) Signal(sig unix.Signal) {
	deliver(c.active(), sig)
}

func (c *Chain) Leader() int {
	return c.active().Pid()
}

func (c *Chain) Pids() []int {
	second := -1
	if c.second != nil {
		second = c.second.Pid()
	}
	return []int{c.first.Pid(), second}
}

func (c *Chain) Foreground() bool {
	return c.foreground
}

func (c *Chain) SetForeground(fg bool) {
	c.foreground = fg
}

// Close collects whatever was started. A second command that has not been
// started by now never will be.
func (c *Chain) Close() {
	c.first.Release()
	c.rest = nil
	if c.second != nil {
		c.second.Release()
	}
	if c.foreground {
		c.env.reclaim()
	}
}
