package core

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"os/user"
	"strings"
	"sync"

	"github.com/abiosoft/readline"
	"github.com/fatih/color"
	"github.com/josephlewis42/jobsh/core/config"
	"github.com/josephlewis42/jobsh/core/jobs"
	"github.com/josephlewis42/jobsh/core/logger"
	"github.com/josephlewis42/jobsh/core/parse"
	"github.com/josephlewis42/jobsh/core/process"
	"github.com/josephlewis42/jobsh/core/tty"
	"github.com/josephlewis42/jobsh/core/unit"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

const (
	EnvHome = "HOME"
	EnvPWD  = "PWD"
	EnvUser = "USER"

	DefaultPrompt = `\u@\w\$ `

	banner  = "jobsh: a job control shell. Type `help' to see the builtin commands."
	goodbye = "goodbye"
)

var promptColor = color.New(color.FgGreen, color.Bold)

// LineReader supplies command lines.
type LineReader interface {
	SetPrompt(prompt string)
	// Readline returns the next line, io.EOF at the end of input or
	// readline.ErrInterrupt when the line was abandoned.
	Readline() (string, error)
	Close() error
}

// Options configures a Shell.
type Options struct {
	Config   *config.Configuration
	Builtins process.Builtins
	Terminal *tty.Terminal

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Input overrides the line reader built from Stdin.
	Input LineReader
	// Interactive prints the greeting and farewell lines.
	Interactive bool

	Events *logger.SessionLogger
	Logger *log.Logger
}

type Shell struct {
	cfg      *config.Configuration
	builtins process.Builtins
	terminal *tty.Terminal
	table    *jobs.Table
	notifier *jobs.Notifier
	input    LineReader
	stdout   io.Writer
	stderr   io.Writer
	events   *logger.SessionLogger
	logger   *log.Logger
	colorize bool

	interactive bool

	lastRet int
	history []string

	// Set to true to quit the shell
	Quit bool

	sigs      chan os.Signal
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewShell builds a shell and its job table. Close must be called to hang up
// remaining jobs.
func NewShell(opts Options) (*Shell, error) {
	s := &Shell{
		cfg:      opts.Config,
		builtins: opts.Builtins,
		terminal: opts.Terminal,
		input:    opts.Input,
		stdout:   opts.Stdout,
		stderr:   opts.Stderr,
		events:   opts.Events,
		logger:   opts.Logger,
		notifier: jobs.NewNotifier(),

		interactive: opts.Interactive,
		sigs:        make(chan os.Signal, 1),
		done:        make(chan struct{}),
	}
	if s.cfg == nil {
		s.cfg = config.Default()
	}
	if s.stdout == nil {
		s.stdout = os.Stdout
	}
	if s.stderr == nil {
		s.stderr = os.Stderr
	}
	if s.events == nil {
		s.events = logger.Discard().Sessionless()
	}
	if s.logger == nil {
		s.logger = log.New(s.stderr, "jobsh: ", 0)
	}

	if s.input == nil {
		stdin := opts.Stdin
		if stdin == nil {
			stdin = os.Stdin
		}
		rl, err := newReadline(stdin, s.stdout, s.stderr, s.cfg.HistoryPath())
		if err != nil {
			return nil, err
		}
		s.input = rl
		// Writes through readline redraw the prompt below them.
		s.stdout = rl.Stdout()
	}

	s.colorize = shouldColor(s.cfg.Color, s.stdout)

	var terminal unit.Terminal
	if s.terminal != nil {
		terminal = s.terminal
	}
	s.table = jobs.NewTable(jobs.Options{
		Env: unit.Env{
			Builtins: s.builtins,
			Terminal: terminal,
		},
		Notices:  s.stdout,
		Events:   s.events,
		Notifier: s.notifier,
		Logger:   s.logger,
	})

	s.start()
	return s, nil
}

func newReadline(stdin io.Reader, stdout, stderr io.Writer, history string) (*readline.Instance, error) {
	cfg := &readline.Config{
		Stdin:       readline.NewCancelableStdin(stdin),
		Stdout:      stdout,
		Stderr:      stderr,
		HistoryFile: history,
		FuncIsTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
		},
	}

	if err := cfg.Init(); err != nil {
		return nil, err
	}

	return readline.NewEx(cfg)
}

func shouldColor(mode string, w io.Writer) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// start subscribes to the signals the shell must survive and begins sweeping
// background jobs whenever a child changes state.
func (s *Shell) start() {
	// Catching rather than ignoring keeps the default disposition in children.
	signal.Notify(s.sigs, unix.SIGINT, unix.SIGQUIT, unix.SIGTSTP, unix.SIGTTIN, unix.SIGTTOU)
	s.notifier.Start()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.sigs:
			case <-s.done:
				return
			}
		}
	}()
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.notifier.Wake():
				s.table.Sweep()
			case <-s.done:
				return
			}
		}
	}()
}

// Jobs exposes the job table.
func (s *Shell) Jobs() *jobs.Table {
	return s.table
}

// LastStatus returns the exit status of the last command.
func (s *Shell) LastStatus() int {
	return s.lastRet
}

func (s *Shell) prompt() string {
	prompt := s.cfg.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}

	username := os.Getenv(EnvUser)
	uid := os.Getuid()
	if u, err := user.Current(); err == nil {
		username = u.Username
	}
	host, _ := os.Hostname()
	if i := strings.IndexByte(host, '.'); i > 0 {
		host = host[:i]
	}

	pwd, _ := os.Getwd()
	if home, err := os.UserHomeDir(); err == nil && home != "" && strings.HasPrefix(pwd, home) {
		pwd = "~" + strings.TrimPrefix(pwd, home)
	}

	prompt = expandPrompt(prompt, username, host, pwd, uid == 0)
	if s.colorize {
		promptColor.EnableColor()
		return promptColor.Sprint(prompt)
	}
	return prompt
}

func expandPrompt(prompt, username, host, pwd string, root bool) string {
	dollar := "$"
	if root {
		dollar = "#"
	}
	return strings.NewReplacer(
		`\u`, username,
		`\h`, host,
		`\w`, pwd,
		`\$`, dollar,
	).Replace(prompt)
}

// Run reads and executes lines until the input ends or exit is called and
// returns the shell's exit status.
func (s *Shell) Run() int {
	if s.interactive {
		fmt.Fprintln(s.stdout, banner)
	}

	for !s.Quit {
		// Report background jobs that changed while the last command ran.
		s.table.Sweep()

		s.input.SetPrompt(s.prompt())
		line, err := s.input.Readline()

		switch {
		case err == io.EOF:
			s.Quit = true

		case err == readline.ErrInterrupt:
			// Interrupt clears line.
			continue

		case err != nil:
			s.logger.Printf("Error readline: %v", err)
			s.Quit = true

		case strings.TrimSpace(line) == "":
			continue // empty line

		default:
			s.history = append(s.history, line)
			s.Execute(line)
		}
	}

	if s.interactive {
		fmt.Fprintln(s.stdout, goodbye)
	}
	return s.lastRet
}

// Execute runs one command line and waits for it if it runs in the
// foreground. It returns the exit status the line produced.
func (s *Shell) Execute(line string) int {
	line = strings.TrimSpace(line)
	if line == "" {
		return s.lastRet
	}

	cmd, err := parse.Classify(line)
	switch {
	case errors.Is(err, parse.ErrEmpty):
		return s.lastRet
	case err != nil:
		fmt.Fprintf(s.stderr, "jobsh: %v\n", err)
		s.record(&logger.SyntaxError{Input: line, ErrorMessage: err.Error()})
		s.lastRet = 2
		return s.lastRet
	}

	// Shell builtins act on the shell itself and never fork, so they can
	// only run as a simple foreground command.
	for _, argv := range cmd.Argv {
		builtin, ok := AllBuiltins[argv[0]]
		if !ok {
			continue
		}
		if cmd.Op != unit.OpNone || !cmd.Foreground {
			err := fmt.Errorf("%s: shell builtins cannot be combined or run in the background", argv[0])
			fmt.Fprintf(s.stderr, "jobsh: %v\n", err)
			s.record(&logger.SyntaxError{Input: line, ErrorMessage: err.Error()})
			s.lastRet = 2
			return s.lastRet
		}
		s.lastRet = builtin.Main(s, argv)
		return s.lastRet
	}

	for _, argv := range cmd.Argv {
		if !s.resolvable(argv[0]) {
			s.record(&logger.UnknownCommand{Command: argv})
		}
	}

	idx, err := s.table.Launch(cmd)
	if err != nil {
		fmt.Fprintf(s.stderr, "jobsh: %v\n", err)
		s.lastRet = 2
		return s.lastRet
	}

	if !cmd.Foreground {
		info := s.table.List()[idx]
		fmt.Fprintf(s.stdout, "[%d] %s\n", idx, joinPids(info.Pids))
		s.lastRet = 0
		return s.lastRet
	}

	s.table.WaitForeground()
	s.lastRet = exitStatus(s.table.List()[idx])
	return s.lastRet
}

func (s *Shell) resolvable(name string) bool {
	if s.builtins != nil {
		if _, ok := s.builtins.Lookup(name); ok {
			return true
		}
	}
	if strings.Contains(name, "/") {
		return true
	}
	_, err := exec.LookPath(name)
	return err == nil
}

// exitStatus condenses a job into a shell exit status. Jobs that stopped
// report 128+SIGTSTP as other shells do.
func exitStatus(info jobs.Info) int {
	switch {
	case info.State != jobs.Done:
		return 128 + int(unix.SIGTSTP)
	case info.Success:
		return 0
	default:
		return 1
	}
}

func joinPids(pids []int) string {
	var out []string
	for _, pid := range pids {
		if pid > 0 {
			out = append(out, fmt.Sprint(pid))
		}
	}
	return strings.Join(out, " ")
}

func (s *Shell) record(event logger.LogType) {
	if err := s.events.Record(event); err != nil {
		s.logger.Printf("recording event: %v", err)
	}
}

// Close hangs up all unfinished jobs, stops signal handling and releases the
// line reader.
func (s *Shell) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		signal.Stop(s.sigs)
		s.notifier.Stop()
		s.wg.Wait()

		s.table.Close()
		if s.terminal != nil {
			s.terminal.Reclaim()
		}
		err = s.input.Close()
	})
	return err
}

type linesInput struct {
	lines []string
}

// LinesInput returns a LineReader that yields lines and then io.EOF.
func LinesInput(lines ...string) LineReader {
	return &linesInput{lines: lines}
}

func (li *linesInput) SetPrompt(string) {}

func (li *linesInput) Readline() (string, error) {
	if len(li.lines) == 0 {
		return "", io.EOF
	}
	line := li.lines[0]
	li.lines = li.lines[1:]
	return line, nil
}

func (li *linesInput) Close() error { return nil }
