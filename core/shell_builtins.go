package core

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/josephlewis42/jobsh/core/jobs"
	"github.com/pborman/getopt/v2"
	"golang.org/x/sys/unix"
)

// AllBuiltins holds a list of all registered shell builtins
var AllBuiltins = make(map[string]ShellBuiltin)

type ShellBuiltin interface {
	Main(s *Shell, args []string) int
}

type ShellBuiltinFunc func(s *Shell, args []string) int

func (f ShellBuiltinFunc) Main(s *Shell, args []string) int {
	return f(s, args)
}

var _ ShellBuiltin = (ShellBuiltinFunc)(nil)

// Cd is the cd shell builtin
func Cd(s *Shell, args []string) int {
	switch len(args) {
	case 1:
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(s.stderr, "%s: %v\n", args[0], err)
			return 1
		}
		args = append(args, home)
		fallthrough
	case 2:
		if err := os.Chdir(args[1]); err != nil {
			fmt.Fprintf(s.stderr, "%s: %v\n", args[0], err)
			return 1
		}
		if wd, err := os.Getwd(); err == nil {
			os.Setenv(EnvPWD, wd)
		}
	default:
		fmt.Fprintf(s.stderr, "%s: too many arguments\n", args[0])
		return 1
	}
	return 0
}

// Exit quits the shell
func Exit(s *Shell, args []string) int {
	s.Quit = true
	if len(args) > 1 {
		code, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(s.stderr, "%s: %s: numeric argument required\n", args[0], args[1])
			return 2
		}
		return code
	}
	return s.lastRet
}

// Jobs lists the job table.
func Jobs(s *Shell, args []string) int {
	opts := getopt.New()
	running := opts.Bool('r', "restrict output to unfinished jobs")
	helpOpt := opts.BoolLong("help", 'h', "show help and exit")

	if err := opts.Getopt(args, nil); err != nil || *helpOpt {
		w := s.stderr
		if err != nil {
			fmt.Fprintln(w, err)
		}
		fmt.Fprintln(w, "usage: jobs [-r]")
		fmt.Fprintln(w, "Display the status of jobs.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Options:")
		opts.PrintOptions(w)
		if err != nil {
			return 2
		}
		return 0
	}

	list := s.table.List()
	if *running {
		var unfinished []jobs.Info
		for _, info := range list {
			if info.State != jobs.Done {
				unfinished = append(unfinished, info)
			}
		}
		list = unfinished
	}

	if err := jobs.Render(s.stdout, list, s.colorize); err != nil {
		fmt.Fprintf(s.stderr, "%s: %v\n", args[0], err)
		return 1
	}
	return 0
}

// jobArg resolves the job operand of fg, bg and kill. Without one the most
// recent unfinished job is used. A leading % is accepted.
func jobArg(s *Shell, args []string) (int, error) {
	if len(args) == 0 {
		list := s.table.List()
		for i := len(list) - 1; i >= 0; i-- {
			if list[i].State != jobs.Done {
				return list[i].Index, nil
			}
		}
		return -1, fmt.Errorf("no current job")
	}
	if len(args) > 1 {
		return -1, fmt.Errorf("too many arguments")
	}

	idx, err := strconv.Atoi(strings.TrimPrefix(args[0], "%"))
	if err != nil {
		return -1, fmt.Errorf("%s: no such job", args[0])
	}
	return idx, nil
}

// Fg moves a job to the foreground and waits for it.
func Fg(s *Shell, args []string) int {
	idx, err := jobArg(s, args[1:])
	if err != nil {
		fmt.Fprintf(s.stderr, "%s: %v\n", args[0], err)
		return 1
	}

	if !s.table.Fg(idx) {
		fmt.Fprintf(s.stderr, "%s: %d: no such job\n", args[0], idx)
		return 1
	}

	s.table.WaitForeground()
	return exitStatus(s.table.List()[idx])
}

// Bg continues a job in the background.
func Bg(s *Shell, args []string) int {
	idx, err := jobArg(s, args[1:])
	if err != nil {
		fmt.Fprintf(s.stderr, "%s: %v\n", args[0], err)
		return 1
	}

	if !s.table.Bg(idx) {
		fmt.Fprintf(s.stderr, "%s: %d: no such job\n", args[0], idx)
		return 1
	}
	return 0
}

// Kill sends a signal to a job.
func Kill(s *Shell, args []string) int {
	opts := getopt.New()
	sigName := opts.String('s', "TERM", "signal to send", "SIGNAL")
	list := opts.Bool('l', "list signal names")
	helpOpt := opts.BoolLong("help", 'h', "show help and exit")

	// Accept the traditional -SIGNAL form.
	if len(args) > 1 && strings.HasPrefix(args[1], "-") && len(args[1]) > 1 && args[1] != "--help" {
		if name := strings.TrimPrefix(args[1], "-"); signalNumber(name) != 0 {
			args = append([]string{args[0], "-s", name}, args[2:]...)
		}
	}

	if err := opts.Getopt(args, nil); err != nil || *helpOpt {
		w := s.stderr
		if err != nil {
			fmt.Fprintln(w, err)
		}
		fmt.Fprintln(w, "usage: kill [-s SIGNAL | -SIGNAL] JOB")
		fmt.Fprintln(w, "Send a signal to a job.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Options:")
		opts.PrintOptions(w)
		if err != nil {
			return 2
		}
		return 0
	}

	if *list {
		var names []string
		for sig := unix.Signal(1); sig < 32; sig++ {
			if name := unix.SignalName(sig); name != "" {
				names = append(names, strings.TrimPrefix(name, "SIG"))
			}
		}
		fmt.Fprintln(s.stdout, strings.Join(names, " "))
		return 0
	}

	sig := signalNumber(*sigName)
	if sig == 0 {
		fmt.Fprintf(s.stderr, "%s: %s: invalid signal specification\n", args[0], *sigName)
		return 1
	}

	idx, err := jobArg(s, opts.Args())
	if err != nil {
		fmt.Fprintf(s.stderr, "%s: %v\n", args[0], err)
		return 1
	}

	if !s.table.Signal(idx, sig) {
		fmt.Fprintf(s.stderr, "%s: %d: no such job\n", args[0], idx)
		return 1
	}
	return 0
}

// signalNumber accepts names with or without the SIG prefix and numbers.
func signalNumber(name string) unix.Signal {
	if n, err := strconv.Atoi(name); err == nil {
		if unix.SignalName(unix.Signal(n)) == "" {
			return 0
		}
		return unix.Signal(n)
	}

	name = strings.ToUpper(name)
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	return unix.SignalNum(name)
}

func History(s *Shell, args []string) int {
	opts := getopt.New()
	clear := opts.Bool('c', "clear the history by deleting all entries")
	helpOpt := opts.BoolLong("help", 'h', "show help and exit")

	if err := opts.Getopt(args, nil); err != nil || *helpOpt {
		w := s.stderr
		if err != nil {
			fmt.Fprintln(w, err)
		}
		fmt.Fprintln(w, "Display or manipulate the history list")
		fmt.Fprintln(w, "Display the history list with line numbers.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Options:")
		opts.PrintOptions(w)
		return 1
	}

	if *clear {
		s.history = nil
		return 0
	}

	for i, line := range s.history {
		fmt.Fprintf(s.stdout, "% 5d  %s\n", i, line)
	}
	return 0
}

func Help(s *Shell, args []string) int {
	w := s.stdout
	fmt.Fprintln(w, "jobsh, a job control shell")
	fmt.Fprintln(w, "A command line is one program, two programs joined by |, && or ||,")
	fmt.Fprintln(w, "optionally followed by & to run it in the background.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Shell builtins:")

	var builtins []string
	for k := range AllBuiltins {
		builtins = append(builtins, k)
	}
	sort.Strings(builtins)
	fmt.Fprintln(w, "  "+strings.Join(builtins, " "))

	if s.builtins != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Commands built into the binary:")
		fmt.Fprintln(w, "  "+strings.Join(s.builtins.Names(), " "))
	}

	return 0
}

func init() {
	AllBuiltins["cd"] = ShellBuiltinFunc(Cd)
	AllBuiltins["exit"] = ShellBuiltinFunc(Exit)
	AllBuiltins["jobs"] = ShellBuiltinFunc(Jobs)
	AllBuiltins["fg"] = ShellBuiltinFunc(Fg)
	AllBuiltins["bg"] = ShellBuiltinFunc(Bg)
	AllBuiltins["kill"] = ShellBuiltinFunc(Kill)
	AllBuiltins["history"] = ShellBuiltinFunc(History)
	AllBuiltins["help"] = ShellBuiltinFunc(Help)
}
