package core

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/pkg/reexec"
	"github.com/josephlewis42/jobsh/commands"
	"github.com/josephlewis42/jobsh/core/config"
	"github.com/josephlewis42/jobsh/core/jobs"
	"github.com/josephlewis42/jobsh/core/logger"
	"github.com/josephlewis42/jobsh/core/process"
	"github.com/josephlewis42/jobsh/core/tty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestMain(m *testing.M) {
	process.RegisterBuiltins(commands.Default())
	if reexec.Init() {
		return
	}
	os.Exit(m.Run())
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

// scriptInput feeds fixed lines to the shell.
type scriptInput struct {
	lines   []string
	prompts []string
}

func (si *scriptInput) SetPrompt(prompt string) {
	si.prompts = append(si.prompts, prompt)
}

func (si *scriptInput) Readline() (string, error) {
	if len(si.lines) == 0 {
		return "", io.EOF
	}
	line := si.lines[0]
	si.lines = si.lines[1:]
	return line, nil
}

func (si *scriptInput) Close() error { return nil }

type shellFixture struct {
	shell  *Shell
	stdout *syncBuffer
	stderr *syncBuffer
	events *syncBuffer
	input  *scriptInput
}

func newShellFixture(t *testing.T, lines ...string) *shellFixture {
	t.Helper()

	devNull, err := os.Open(os.DevNull)
	require.NoError(t, err)
	t.Cleanup(func() { devNull.Close() })

	f := &shellFixture{
		stdout: &syncBuffer{},
		stderr: &syncBuffer{},
		events: &syncBuffer{},
		input:  &scriptInput{lines: lines},
	}

	cfg := config.Default()
	cfg.Color = config.ColorNever
	reg, err := commands.NewRegistry(cfg.Builtins...)
	require.NoError(t, err)

	f.shell, err = NewShell(Options{
		Config:   cfg,
		Builtins: reg,
		Terminal: tty.New(int(devNull.Fd()), log.New(io.Discard, "", 0)),
		Stdout:   f.stdout,
		Stderr:   f.stderr,
		Input:    f.input,
		Events:   logger.NewJsonLinesLogRecorder(f.events).NewSession(),
		Logger:   log.New(f.stderr, "", 0),
	})
	require.NoError(t, err)
	t.Cleanup(func() { f.shell.Close() })
	return f
}

func TestExecute(t *testing.T) {
	cases := map[string]struct {
		line   string
		status int
	}{
		"true":           {"true", 0},
		"false":          {"false", 1},
		"builtin":        {"echo hello", 0},
		"external":       {"/bin/sh -c 'exit 0'", 0},
		"and-short":      {"false && true", 1},
		"and":            {"true && true", 0},
		"or-short":       {"true || false", 0},
		"or":             {"false || true", 0},
		"pipeline":       {"echo hi | grep -q hi", 0},
		"pipeline-fails": {"echo hi | grep -q bye", 1},
		"not-found":      {"jobsh-no-such-program", 1},
		"syntax":         {"echo 'unterminated", 2},
		"unsupported":    {"echo hi > /dev/null", 2},
		"blank":          {"   ", 0},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			f := newShellFixture(t)
			assert.Equal(t, tc.status, f.shell.Execute(tc.line))
			assert.Equal(t, tc.status, f.shell.LastStatus())
			assert.Equal(t, -1, f.shell.Jobs().Foreground())
		})
	}
}

func TestExecute_events(t *testing.T) {
	f := newShellFixture(t)

	f.shell.Execute("jobsh-no-such-program arg")
	f.shell.Execute("echo 'unterminated")
	f.shell.Execute("true")

	var unknown, syntaxErrs, runs int
	err := logger.ReadJSONLinesLog(strings.NewReader(f.events.String()), func(entry *logger.LogEntry) {
		switch event := entry.GetLogType().(type) {
		case *logger.UnknownCommand:
			unknown++
			assert.Equal(t, []string{"jobsh-no-such-program", "arg"}, event.Command)
		case *logger.SyntaxError:
			syntaxErrs++
			assert.Equal(t, "echo 'unterminated", event.Input)
		case *logger.RunCommand:
			runs++
		}
		assert.NotEmpty(t, entry.GetSessionId())
	})
	require.NoError(t, err)
	assert.Equal(t, 1, unknown)
	assert.Equal(t, 1, syntaxErrs)
	assert.Equal(t, 2, runs, "the syntax error never launches")
	assert.Contains(t, f.stderr.String(), "jobsh: ")
}

func TestExecute_background(t *testing.T) {
	f := newShellFixture(t)

	assert.Equal(t, 0, f.shell.Execute("sleep 5 &"))
	assert.Regexp(t, `^\[0\] \d+\n$`, f.stdout.String())

	list := f.shell.Jobs().List()
	require.Len(t, list, 1)
	assert.Equal(t, jobs.Run, list[0].State)
	assert.False(t, list[0].Foreground)

	assert.Equal(t, 0, f.shell.Execute("kill 0"))
	require.Eventually(t, func() bool {
		f.shell.Jobs().Sweep()
		return f.shell.Jobs().List()[0].State == jobs.Done
	}, 5*time.Second, 10*time.Millisecond)

	assert.Contains(t, f.stdout.String(), "[0] Done sleep 5 &\n")
	assert.Equal(t, 1, f.shell.Execute("kill 0"))
	assert.Contains(t, f.stderr.String(), "kill: 0: no such job")
}

func TestExecute_stopAndResume(t *testing.T) {
	f := newShellFixture(t)

	f.shell.Execute("sleep 5 &")
	assert.Equal(t, 0, f.shell.Execute("kill -STOP %0"))
	require.Eventually(t, func() bool {
		f.shell.Jobs().Sweep()
		return f.shell.Jobs().List()[0].State == jobs.Stopped
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 0, f.shell.Execute("bg"))
	assert.Equal(t, jobs.Run, f.shell.Jobs().List()[0].State)

	assert.Equal(t, 0, f.shell.Execute("kill -s KILL"))
	assert.Equal(t, 1, f.shell.Execute("fg 0"), "killed jobs are not successful")
	assert.Equal(t, jobs.Done, f.shell.Jobs().List()[0].State)
}

func TestFgBgErrors(t *testing.T) {
	f := newShellFixture(t)

	assert.Equal(t, 1, f.shell.Execute("fg"))
	assert.Contains(t, f.stderr.String(), "fg: no current job")

	assert.Equal(t, 1, f.shell.Execute("bg 7"))
	assert.Contains(t, f.stderr.String(), "bg: 7: no such job")

	assert.Equal(t, 1, f.shell.Execute("fg x"))
	assert.Contains(t, f.stderr.String(), "fg: x: no such job")

	assert.Equal(t, 1, f.shell.Execute("bg 1 2"))
	assert.Contains(t, f.stderr.String(), "bg: too many arguments")
}

func TestJobs(t *testing.T) {
	f := newShellFixture(t)

	f.shell.Execute("true")
	f.shell.Execute("false || true")
	assert.Equal(t, 0, f.shell.Execute("jobs"))

	out := f.stdout.String()
	assert.Contains(t, out, "JOB")
	assert.Contains(t, out, "single")
	assert.Contains(t, out, "chain")
	assert.Contains(t, out, "success: +")

	before := f.stdout.String()
	assert.Equal(t, 0, f.shell.Execute("jobs -r"))
	after := strings.TrimPrefix(f.stdout.String(), before)
	assert.NotContains(t, after, "chain", "finished jobs are hidden")
}

func TestKillArguments(t *testing.T) {
	f := newShellFixture(t)

	assert.Equal(t, 0, f.shell.Execute("kill -l"))
	assert.Contains(t, f.stdout.String(), "HUP")

	assert.Equal(t, 1, f.shell.Execute("kill -s BOGUS 0"))
	assert.Contains(t, f.stderr.String(), "invalid signal specification")
}

func TestSignalNumber(t *testing.T) {
	cases := map[string]unix.Signal{
		"TERM":    unix.SIGTERM,
		"SIGTERM": unix.SIGTERM,
		"kill":    unix.SIGKILL,
		"9":       unix.SIGKILL,
		"bogus":   0,
		"999":     0,
	}

	for name, expected := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, expected, signalNumber(name))
		})
	}
}

func TestCd(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { os.Chdir(wd) })

	f := newShellFixture(t)
	dir := t.TempDir()

	assert.Equal(t, 0, f.shell.Execute("cd "+dir))
	now, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, dir, now)

	assert.Equal(t, 1, f.shell.Execute("cd /jobsh/does/not/exist"))
	assert.Equal(t, 1, f.shell.Execute("cd a b"))
	assert.Contains(t, f.stderr.String(), "cd: too many arguments")
}

func TestShellBuiltinsStandAlone(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { os.Chdir(wd) })

	cases := map[string]string{
		"and list":    "cd %s && true",
		"or list":     "true || cd %s",
		"pipeline":    "cd %s | cat",
		"background":  "cd %s &",
		"second word": "echo cd %s",
	}

	for name, format := range cases {
		t.Run(name, func(t *testing.T) {
			f := newShellFixture(t)
			dir := t.TempDir()
			line := fmt.Sprintf(format, dir)

			status := f.shell.Execute(line)
			now, err := os.Getwd()
			require.NoError(t, err)
			assert.Equal(t, wd, now, "directory must not change")

			if name == "second word" {
				assert.Equal(t, 0, status, "cd is only an argument here")
				return
			}
			assert.Equal(t, 2, status)
			assert.Contains(t, f.stderr.String(), "jobsh: cd: shell builtins cannot be combined")
			assert.Contains(t, f.events.String(), "syntax_error")
			assert.Empty(t, f.shell.table.List(), "nothing is launched")
		})
	}
}

func TestRun(t *testing.T) {
	f := newShellFixture(t, "true", "", "history", "exit 4", "echo never")
	f.shell.interactive = true

	assert.Equal(t, 4, f.shell.Run())
	assert.True(t, f.shell.Quit)

	out := f.stdout.String()
	assert.True(t, strings.HasPrefix(out, banner+"\n"))
	assert.True(t, strings.HasSuffix(out, goodbye+"\n"))
	assert.Contains(t, out, "    0  true\n    1  history\n")
	assert.Equal(t, []string{"echo never"}, f.input.lines, "exit stops reading")
	assert.Len(t, f.input.prompts, 4)
}

func TestRun_eof(t *testing.T) {
	f := newShellFixture(t, "false")

	assert.Equal(t, 1, f.shell.Run(), "last status is returned")
	assert.NotContains(t, f.stdout.String(), banner)
}

func TestHelp(t *testing.T) {
	f := newShellFixture(t)

	assert.Equal(t, 0, f.shell.Execute("help"))
	out := f.stdout.String()
	assert.Contains(t, out, "bg cd exit fg help history jobs kill")
	assert.Contains(t, out, "echo")
}

func TestExpandPrompt(t *testing.T) {
	cases := map[string]struct {
		prompt   string
		root     bool
		expected string
	}{
		"default": {DefaultPrompt, false, "ada@~/src$ "},
		"root":    {DefaultPrompt, true, "ada@~/src# "},
		"host":    {`\h:\w `, false, "box:~/src "},
		"literal": {"> ", false, "> "},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			assert.Equal(t, tc.expected, expandPrompt(tc.prompt, "ada", "box", "~/src", tc.root))
		})
	}
}
