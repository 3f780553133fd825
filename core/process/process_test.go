package process

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"testing"

	"github.com/docker/docker/pkg/reexec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type testBuiltins map[string]Func

func (tb testBuiltins) Lookup(name string) (Func, bool) {
	fn, ok := tb[name]
	return fn, ok
}

func (tb testBuiltins) Names() []string {
	var out []string
	for k := range tb {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var builtins = testBuiltins{
	"exitcode": func(argv []string) int {
		code, _ := strconv.Atoi(argv[1])
		return code
	},
	"hello": func(argv []string) int {
		io.WriteString(os.Stdout, "hello from "+argv[0]+"\n")
		return 0
	},
}

func TestMain(m *testing.M) {
	RegisterBuiltins(builtins)
	if reexec.Init() {
		return
	}
	os.Exit(m.Run())
}

func TestExitStatus(t *testing.T) {
	cases := map[string]struct {
		argv     []string
		expected Status
		builtin  bool
	}{
		"true":      {[]string{"true"}, Status{State: Exited, Code: 0}, false},
		"false":     {[]string{"false"}, Status{State: Exited, Code: 1}, false},
		"abs-path":  {[]string{"/bin/sh", "-c", "exit 7"}, Status{State: Exited, Code: 7}, false},
		"builtin":   {[]string{"exitcode", "3"}, Status{State: Exited, Code: 3}, true},
		"not-found": {[]string{"jobsh-no-such-program"}, Status{State: Exited, Code: NotFoundCode}, true},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			p := Spawn(builtins, tc.argv, nil)
			assert.Equal(t, tc.builtin, p.Builtin())
			assert.Equal(t, tc.expected, p.Join())

			// Joining again returns the cached status.
			assert.Equal(t, tc.expected, p.Join())
			assert.Equal(t, tc.expected.Success(), p.Status().Success())
		})
	}
}

func TestExecFailureIsReportedByChild(t *testing.T) {
	dir := t.TempDir()
	notExecutable := filepath.Join(dir, "script")
	require.NoError(t, os.WriteFile(notExecutable, []byte("#!/bin/sh\nexit 0\n"), 0644))

	cases := map[string]struct {
		path     string
		expected int
	}{
		"missing":        {"./jobsh-no-such-program", NotFoundCode},
		"missing-dir":    {filepath.Join(dir, "nope", "prog"), NotFoundCode},
		"not-executable": {notExecutable, CannotExecCode},
		"directory":      {dir, CannotExecCode},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			p := Spawn(nil, []string{tc.path, "arg"}, nil)
			assert.True(t, p.Builtin(), "the failure runs through the builtin path")
			assert.Positive(t, p.Pid())
			assert.Equal(t, Status{State: Exited, Code: tc.expected}, p.Join())
			assert.Equal(t, []string{tc.path, "arg"}, p.Argv())
		})
	}
}

func TestPollNonBlocking(t *testing.T) {
	p := Spawn(nil, []string{"sleep", "5"}, nil)
	defer p.Release()

	status, change := p.Poll(true)
	assert.Equal(t, Unchanged, change)
	assert.False(t, status.Done())

	require.NoError(t, p.Signal(unix.SIGKILL))
	status = p.Join()
	assert.Equal(t, Status{State: Signaled, Signal: unix.SIGKILL}, status)

	status, change = p.Poll(true)
	assert.Equal(t, Unchanged, change)
	assert.True(t, status.Done())
}

func TestStopAndContinue(t *testing.T) {
	p := Spawn(nil, []string{"sleep", "5"}, nil)
	defer p.Release()

	require.NoError(t, p.Signal(unix.SIGSTOP))
	status, change := p.Poll(false)
	assert.Equal(t, Stopped, change)
	assert.False(t, status.Done(), "stopping is not terminal")

	require.NoError(t, p.Signal(unix.SIGCONT))
	_, change = p.Poll(false)
	assert.Equal(t, Continued, change)

	require.NoError(t, p.Signal(unix.SIGTERM))
	status, change = p.Poll(false)
	assert.Equal(t, Terminated, change)
	assert.Equal(t, Status{State: Signaled, Signal: unix.SIGTERM}, status)
}

func TestProcessGroups(t *testing.T) {
	leader := Spawn(nil, []string{"sleep", "5"}, nil)
	defer leader.Release()
	member := Spawn(nil, []string{"sleep", "5"}, &Attr{Stdio: DefaultStdio, Pgid: leader.Pid()})
	defer member.Release()

	pgid, err := unix.Getpgid(leader.Pid())
	require.NoError(t, err)
	assert.Equal(t, leader.Pid(), pgid)

	pgid, err = unix.Getpgid(member.Pid())
	require.NoError(t, err)
	assert.Equal(t, leader.Pid(), pgid)

	require.NoError(t, unix.Kill(-leader.Pid(), unix.SIGKILL))
	assert.Equal(t, unix.SIGKILL, leader.Join().Signal)
	assert.Equal(t, unix.SIGKILL, member.Join().Signal)
}

func TestSignalAfterJoin(t *testing.T) {
	p := Spawn(nil, []string{"true"}, nil)
	p.Join()

	assert.ErrorIs(t, p.Signal(unix.SIGTERM), os.ErrProcessDone)
}

func TestStdioRedirect(t *testing.T) {
	for _, argv := range [][]string{{"echo", "hello from echo"}, {"hello"}} {
		t.Run(argv[0], func(t *testing.T) {
			var fds [2]int
			require.NoError(t, unix.Pipe2(fds[:], unix.O_CLOEXEC))
			r := os.NewFile(uintptr(fds[0]), "r")
			defer r.Close()

			p := Spawn(builtins, argv, &Attr{
				Stdio:    Stdio{Inherit, fds[1], Inherit},
				CloseFds: fds[:],
			})
			require.NoError(t, unix.Close(fds[1]))

			out, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, "hello from "+argv[0]+"\n", string(out))
			assert.True(t, p.Join().Success())
		})
	}
}

func TestRelease(t *testing.T) {
	p := Spawn(nil, []string{"sh", "-c", "exit 4"}, nil)
	p.Release()

	assert.Equal(t, Status{State: Exited, Code: 4}, p.Status())
}
