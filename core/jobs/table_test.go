package jobs

import (
	"bytes"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/pkg/reexec"
	"github.com/josephlewis42/jobsh/core/logger"
	"github.com/josephlewis42/jobsh/core/process"
	"github.com/josephlewis42/jobsh/core/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestMain(m *testing.M) {
	process.RegisterBuiltins(nil)
	if reexec.Init() {
		return
	}
	os.Exit(m.Run())
}

const shellPgid = 1

type fakeTerminal struct {
	mu      sync.Mutex
	history []int
}

func (f *fakeTerminal) SetForeground(pgid int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, pgid)
}

func (f *fakeTerminal) ShellPgid() int { return shellPgid }

func (f *fakeTerminal) Last() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history[len(f.history)-1]
}

func (f *fakeTerminal) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.history)
}

// syncBuffer is a bytes.Buffer safe for concurrent use.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

type fixture struct {
	table   *Table
	term    *fakeTerminal
	notices *syncBuffer
	events  *syncBuffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{term: &fakeTerminal{}, notices: &syncBuffer{}, events: &syncBuffer{}}
	f.table = NewTable(Options{
		Env:     unit.Env{Terminal: f.term},
		Notices: f.notices,
		Events:  logger.NewJsonLinesLogRecorder(f.events).NewSession(),
	})
	t.Cleanup(f.table.Close)
	return f
}

func cmd(text string, fg bool, op unit.Operator, argv ...[]string) unit.Command {
	return unit.Command{Argv: argv, Op: op, Foreground: fg, Text: text}
}

func (f *fixture) launch(t *testing.T, c unit.Command) int {
	t.Helper()
	idx, err := f.table.Launch(c)
	require.NoError(t, err)
	return idx
}

func (f *fixture) state(idx int) State {
	return f.table.List()[idx].State
}

func TestLaunchRejectsMalformed(t *testing.T) {
	f := newFixture(t)
	idx, err := f.table.Launch(unit.Command{Op: unit.OpAnd, Argv: [][]string{{"true"}}})
	assert.ErrorIs(t, err, unit.ErrMalformed)
	assert.Equal(t, -1, idx)
	assert.Zero(t, f.table.Len())
}

func TestBackgroundPipelineListing(t *testing.T) {
	f := newFixture(t)
	idx := f.launch(t, cmd("sleep 5 | cat &", false, unit.OpPipe, []string{"sleep", "5"}, []string{"cat"}))

	require.Equal(t, 0, idx)
	assert.Equal(t, -1, f.table.Foreground())

	jobs := f.table.List()
	require.Len(t, jobs, 1)
	assert.Equal(t, Run, jobs[0].State)
	assert.False(t, jobs[0].Foreground)
	assert.Equal(t, unit.KindPipeline, jobs[0].Kind)
	assert.Len(t, jobs[0].Pids, 2)
	assert.Equal(t, "sleep 5 | cat &", jobs[0].Command)

	// Background launches leave the terminal with the shell.
	assert.Equal(t, shellPgid, f.term.Last())
	assert.Contains(t, f.events.String(), `"kind":"pipeline"`)
}

func TestWaitForegroundOutcomes(t *testing.T) {
	cases := map[string]struct {
		cmd     unit.Command
		success bool
	}{
		"true":          {cmd("true", true, unit.OpNone, []string{"true"}), true},
		"false":         {cmd("false", true, unit.OpNone, []string{"false"}), false},
		"true && false": {cmd("true && false", true, unit.OpAnd, []string{"true"}, []string{"false"}), false},
		"false || true": {cmd("false || true", true, unit.OpOr, []string{"false"}, []string{"true"}), true},
		"false && true": {cmd("false && true", true, unit.OpAnd, []string{"false"}, []string{"true"}), false},
		"echo | cat":    {cmd("echo | cat", true, unit.OpPipe, []string{"true"}, []string{"cat"}), true},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			f := newFixture(t)
			idx := f.launch(t, tc.cmd)
			assert.Equal(t, idx, f.table.Foreground())
			assert.NotEqual(t, shellPgid, f.term.Last(), "job owns the terminal")

			f.table.WaitForeground()

			jobs := f.table.List()
			assert.Equal(t, Done, jobs[idx].State)
			assert.Equal(t, tc.success, jobs[idx].Success)
			assert.Equal(t, shellPgid, f.term.Last())
			assert.Equal(t, -1, f.table.Foreground())
			assert.Empty(t, f.notices.String(), "finishing in the foreground is silent")
		})
	}
}

func TestWaitForegroundStopThenFg(t *testing.T) {
	f := newFixture(t)
	idx := f.launch(t, cmd("sleep 5", true, unit.OpNone, []string{"sleep", "5"}))
	pid := f.table.List()[idx].Pids[0]

	go func() {
		time.Sleep(50 * time.Millisecond)
		unix.Kill(pid, unix.SIGSTOP)
	}()
	f.table.WaitForeground()

	assert.Equal(t, Stopped, f.state(idx))
	assert.Equal(t, shellPgid, f.term.Last())
	assert.Contains(t, f.notices.String(), "[0] Stopped sleep 5\n")

	require.True(t, f.table.Fg(idx))
	assert.Equal(t, pid, f.term.Last())
	assert.Equal(t, Run, f.state(idx))
	assert.Equal(t, idx, f.table.Foreground())

	go func() {
		time.Sleep(50 * time.Millisecond)
		unix.Kill(pid, unix.SIGKILL)
	}()
	f.table.WaitForeground()

	jobs := f.table.List()
	assert.Equal(t, Done, jobs[idx].State)
	assert.Equal(t, []bool{true}, jobs[idx].Signaled)
	assert.Equal(t, shellPgid, f.term.Last())
}

func TestFgBgRejects(t *testing.T) {
	f := newFixture(t)
	idx := f.launch(t, cmd("true", true, unit.OpNone, []string{"true"}))
	f.table.WaitForeground()
	require.Equal(t, Done, f.state(idx))

	before := f.table.List()
	handoffs := f.term.Len()

	for _, i := range []int{-1, 1, 100, idx} {
		assert.False(t, f.table.Fg(i), "fg %d", i)
		assert.False(t, f.table.Bg(i), "bg %d", i)
		assert.False(t, f.table.Signal(i, unix.SIGTERM), "signal %d", i)
	}

	assert.Equal(t, before, f.table.List())
	assert.Equal(t, handoffs, f.term.Len())
	assert.Equal(t, -1, f.table.Foreground())
}

func TestBgContinuesStoppedJob(t *testing.T) {
	f := newFixture(t)
	idx := f.launch(t, cmd("sleep 5 &", false, unit.OpNone, []string{"sleep", "5"}))

	require.True(t, f.table.Signal(idx, unix.SIGSTOP))
	require.Eventually(t, func() bool {
		f.table.Sweep()
		return f.state(idx) == Stopped
	}, 5*time.Second, 10*time.Millisecond)

	handoffs := f.term.Len()
	require.True(t, f.table.Bg(idx))
	assert.Equal(t, Run, f.state(idx))
	assert.Equal(t, handoffs, f.term.Len(), "bg does not touch the terminal")

	// The pending continue notification does not change anything.
	f.table.Sweep()
	assert.Equal(t, Run, f.state(idx))
	assert.Equal(t, "[0] Stopped sleep 5 &\n[0] Run sleep 5 &\n", f.notices.String())
}

func TestSweepConvergesAfterBatch(t *testing.T) {
	f := newFixture(t)
	var pids []int
	for i := 0; i < 3; i++ {
		idx := f.launch(t, cmd("sleep 5 &", false, unit.OpNone, []string{"sleep", "5"}))
		pids = append(pids, f.table.List()[idx].Pids[0])
	}
	pipe := f.launch(t, cmd("sleep 5 | sleep 5 &", false, unit.OpPipe, []string{"sleep", "5"}, []string{"sleep", "5"}))

	for _, pid := range pids {
		require.NoError(t, unix.Kill(pid, unix.SIGSTOP))
	}
	require.NoError(t, unix.Kill(-f.table.List()[pipe].Pids[0], unix.SIGSTOP))

	require.Eventually(t, func() bool {
		f.table.Sweep()
		for _, job := range f.table.List() {
			if job.State != Stopped {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 4, f.table.Unfinished())
}

func TestPipelinePartialStop(t *testing.T) {
	f := newFixture(t)
	idx := f.launch(t, cmd("sleep 5 | sleep 5 &", false, unit.OpPipe, []string{"sleep", "5"}, []string{"sleep", "5"}))
	pids := f.table.List()[idx].Pids

	require.NoError(t, unix.Kill(pids[1], unix.SIGSTOP))
	require.Eventually(t, func() bool {
		f.table.Sweep()
		return f.state(idx) == RunStopped
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, unix.Kill(pids[0], unix.SIGSTOP))
	require.Eventually(t, func() bool {
		f.table.Sweep()
		return f.state(idx) == Stopped
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, unix.Kill(pids[0], unix.SIGCONT))
	require.Eventually(t, func() bool {
		f.table.Sweep()
		return f.state(idx) == RunStopped
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, unix.Kill(pids[1], unix.SIGCONT))
	require.Eventually(t, func() bool {
		f.table.Sweep()
		return f.state(idx) == Run
	}, 5*time.Second, 10*time.Millisecond)
}

func TestCloseHangsUpUnfinishedJobs(t *testing.T) {
	f := newFixture(t)
	running := f.launch(t, cmd("sleep 5 &", false, unit.OpNone, []string{"sleep", "5"}))
	stopped := f.launch(t, cmd("sleep 6 &", false, unit.OpNone, []string{"sleep", "6"}))
	finished := f.launch(t, cmd("true &", false, unit.OpNone, []string{"true"}))

	require.True(t, f.table.Signal(stopped, unix.SIGSTOP))
	require.Eventually(t, func() bool {
		f.table.Sweep()
		return f.state(stopped) == Stopped && f.state(finished) == Done
	}, 5*time.Second, 10*time.Millisecond)

	f.table.Close()

	for _, idx := range []int{running, stopped} {
		u := f.table.jobs[idx].Unit
		assert.Equal(t, []bool{true}, u.Signaled(), "job %d", idx)
	}
	assert.Equal(t, shellPgid, f.term.Last())
	assert.Contains(t, f.events.String(), `"signal":"SIGHUP"`)
}

func TestNotifierWakesSweep(t *testing.T) {
	n := NewNotifier()
	n.Start()
	defer n.Stop()

	f := newFixture(t)
	f.table.notifier = n

	f.launch(t, cmd("true &", false, unit.OpNone, []string{"true"}))

	select {
	case <-n.Wake():
	case <-time.After(5 * time.Second):
		t.Fatal("no SIGCHLD wake-up")
	}

	require.Eventually(t, func() bool {
		f.table.Sweep()
		return f.state(0) == Done
	}, 5*time.Second, 10*time.Millisecond)

	assert.False(t, n.Pending(), "sweep consumes the notification")
	assert.Contains(t, f.notices.String(), "[0] Done true &")
}

func TestNotifierPost(t *testing.T) {
	n := NewNotifier()

	assert.False(t, n.take())
	n.Post()
	n.Post()
	assert.True(t, n.Pending())
	assert.True(t, n.take())
	assert.False(t, n.take())

	select {
	case <-n.Wake():
	default:
		t.Fatal("post must wake")
	}
	n.Stop()
	n.Stop()
}
