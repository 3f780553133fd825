package jobs

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/josephlewis42/jobsh/core/logger"
	"github.com/josephlewis42/jobsh/core/metrics"
	"github.com/josephlewis42/jobsh/core/unit"
	"golang.org/x/sys/unix"
)

// Job is one entry of the table.
type Job struct {
	Unit       unit.Unit
	Command    string
	Foreground bool
	State      State
}

// Options configures a Table.
type Options struct {
	// Env is used to build units in Launch.
	Env unit.Env
	// Notices receives a line for every state change; nil discards them.
	Notices io.Writer
	// Events receives structured events; nil discards them.
	Events *logger.SessionLogger
	// Notifier, if set, is consulted by Sweep for pending SIGCHLDs.
	Notifier *Notifier
	Logger   *log.Logger
}

// Table is the shell's registry of jobs. It is safe for concurrent use; the
// table is locked for the whole of every poll-and-transition step.
type Table struct {
	env      unit.Env
	notices  io.Writer
	events   *logger.SessionLogger
	notifier *Notifier
	logger   *log.Logger

	mu   sync.Mutex
	jobs []*Job
	fg   int
}

func NewTable(opts Options) *Table {
	t := &Table{
		env:      opts.Env,
		notices:  opts.Notices,
		events:   opts.Events,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		fg:       -1,
	}
	if t.notices == nil {
		t.notices = io.Discard
	}
	if t.events == nil {
		t.events = logger.Discard().Sessionless()
	}
	if t.logger == nil {
		t.logger = log.New(os.Stderr, "jobsh: ", 0)
	}
	return t
}

// Launch builds the unit for cmd, which starts its processes, and registers
// it.
func (t *Table) Launch(cmd unit.Command) (int, error) {
	u, err := unit.New(t.env, cmd)
	if err != nil {
		return -1, err
	}

	idx := t.Register(u, cmd.Foreground, cmd.Text)
	t.record(&logger.RunCommand{
		Command:    cmd.Text,
		Argv:       cmd.Argv[0],
		Kind:       u.Kind().String(),
		Foreground: cmd.Foreground,
		Job:        idx,
		Pids:       u.Pids(),
	})
	return idx, nil
}

// Register appends a running job for u and returns its index. A foreground
// job becomes the one WaitForeground waits for.
func (t *Table) Register(u unit.Unit, foreground bool, text string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	u.SetForeground(foreground)
	idx := len(t.jobs)
	t.jobs = append(t.jobs, &Job{
		Unit:       u,
		Command:    text,
		Foreground: foreground,
		State:      Run,
	})
	if foreground {
		t.fg = idx
	}

	metrics.JobLaunched(u.Kind().String())
	return idx
}

// Sweep polls every unfinished job without blocking until a whole pass
// changes nothing and no SIGCHLD is pending.
func (t *Table) Sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sweep()
}

func (t *Table) sweep() {
	metrics.Sweep()
	for {
		changed := false
		for idx, job := range t.jobs {
			if job.State == Done {
				continue
			}
			if t.step(idx, true) {
				changed = true
			}
		}

		if !changed && !t.pending() {
			return
		}
	}
}

func (t *Table) pending() bool {
	return t.notifier != nil && t.notifier.take()
}

// step polls job idx once and applies the transition. It reports whether the
// state changed.
func (t *Table) step(idx int, nonBlocking bool) bool {
	job := t.jobs[idx]
	obs := job.Unit.Poll(nonBlocking)

	next := transition(job.Unit, job.State, obs)
	if next == job.State {
		return false
	}
	t.setState(idx, next)
	return true
}

func (t *Table) setState(idx int, next State) {
	job := t.jobs[idx]
	prev := job.State
	job.State = next

	// A foreground job finishing is what the user waited for.
	if !(idx == t.fg && next == Done) {
		fmt.Fprintf(t.notices, "[%d] %s %s\n", idx, next, job.Command)
	}

	event := &logger.JobState{
		Job:     idx,
		Command: job.Command,
		From:    prev.String(),
		To:      next.String(),
	}
	if next == Done {
		event.Success = job.Unit.Success()
	}
	t.record(event)
	metrics.JobTransition(next.String(), next == Done)
}

// WaitForeground blocks while the foreground job, if any, is running, then
// gives the terminal back to the shell. Other jobs are swept in between.
func (t *Table) WaitForeground() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sweep()
	if t.fg < 0 {
		return
	}

	for t.jobs[t.fg].State == Run {
		t.step(t.fg, false)
		t.sweep()
	}

	t.fg = -1
	t.reclaim()
}

// Foreground returns the index of the foreground job or -1.
func (t *Table) Foreground() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fg
}

func (t *Table) live(idx int) (*Job, bool) {
	if idx < 0 || idx >= len(t.jobs) {
		return nil, false
	}
	job := t.jobs[idx]
	return job, job.State != Done
}

// Fg continues job idx in the foreground and hands it the terminal. Callers
// follow up with WaitForeground. Unknown and finished jobs are ignored.
func (t *Table) Fg(idx int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.live(idx)
	if !ok {
		return false
	}

	t.fg = idx
	job.Foreground = true
	job.Unit.SetForeground(true)
	if t.env.Terminal != nil {
		t.env.Terminal.SetForeground(job.Unit.Leader())
	}
	t.signal(idx, unix.SIGCONT)
	if job.State != Run {
		t.setState(idx, Run)
	}
	return true
}

// Bg continues job idx in the background. Unknown and finished jobs are
// ignored.
func (t *Table) Bg(idx int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.live(idx)
	if !ok {
		return false
	}

	if t.fg == idx {
		t.fg = -1
	}
	job.Foreground = false
	job.Unit.SetForeground(false)
	t.signal(idx, unix.SIGCONT)
	if job.State != Run {
		t.setState(idx, Run)
	}
	return true
}

// Signal delivers sig to job idx. Unknown and finished jobs are ignored.
func (t *Table) Signal(idx int, sig unix.Signal) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.live(idx); !ok {
		return false
	}
	t.signal(idx, sig)
	return true
}

func (t *Table) signal(idx int, sig unix.Signal) {
	t.jobs[idx].Unit.Signal(sig)

	name := unix.SignalName(sig)
	metrics.SignalSent(name)
	t.record(&logger.JobSignal{Job: idx, Signal: name})
}

// List returns a snapshot of every job. It never blocks on a running process.
func (t *Table) List() []Info {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Info, 0, len(t.jobs))
	for idx, job := range t.jobs {
		info := Info{
			Index:      idx,
			Pids:       job.Unit.Pids(),
			Foreground: job.Foreground,
			Kind:       job.Unit.Kind(),
			State:      job.State,
			Command:    job.Command,
		}
		// Done units have collected every status, so these return at once.
		if job.State == Done {
			info.Signaled = job.Unit.Signaled()
			info.Success = job.Unit.Success()
		}
		out = append(out, info)
	}
	return out
}

// Len returns the number of jobs ever registered.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.jobs)
}

// Unfinished returns the number of jobs that are not Done.
func (t *Table) Unfinished() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, job := range t.jobs {
		if job.State != Done {
			n++
		}
	}
	return n
}

// Close hangs up every unfinished job, collects all processes and returns
// the terminal to the shell.
func (t *Table) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for idx, job := range t.jobs {
		if job.State == Done {
			continue
		}
		t.signal(idx, unix.SIGHUP)
		// A stopped job only acts on the hang-up once continued.
		t.signal(idx, unix.SIGCONT)
	}

	for _, job := range t.jobs {
		job.Unit.Close()
	}
	t.fg = -1
	t.reclaim()
}

func (t *Table) reclaim() {
	if t.env.Terminal != nil {
		t.env.Terminal.SetForeground(t.env.Terminal.ShellPgid())
	}
}

func (t *Table) record(event logger.LogType) {
	if err := t.events.Record(event); err != nil {
		t.logger.Printf("event log: %v", err)
	}
}
