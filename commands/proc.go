package commands

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Proc is the view a builtin has of the process it runs in.
type Proc interface {
	// Args holds the command line, starting with the program name.
	Args() []string
	Stdin() io.Reader
	Stdout() io.Writer
	Stderr() io.Writer
	Getwd() string
	Getenv(key string) string
	Environ() []string
	Hostname() (string, error)
	// IsTerminal reports whether standard output is a terminal.
	IsTerminal() bool
	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)
	Uname() (Utsname, error)
}

// Utsname holds the fields reported by uname.
type Utsname struct {
	Sysname  string
	Nodename string
	Release  string
	Version  string
	Machine  string
}

// CommandFunc is the entry point of a builtin.
type CommandFunc func(p Proc) int

type osProc struct {
	args []string
}

var _ Proc = (*osProc)(nil)

// NewOSProc returns the Proc of the running process with the given argv.
func NewOSProc(argv []string) Proc {
	return &osProc{args: argv}
}

func (p *osProc) Args() []string    { return p.args }
func (p *osProc) Stdin() io.Reader  { return os.Stdin }
func (p *osProc) Stdout() io.Writer { return os.Stdout }
func (p *osProc) Stderr() io.Writer { return os.Stderr }
func (p *osProc) Environ() []string { return os.Environ() }

func (p *osProc) Getenv(k string) string {
	return os.Getenv(k)
}

func (p *osProc) Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return os.Getenv("PWD")
	}
	return wd
}

func (p *osProc) Hostname() (string, error) {
	return os.Hostname()
}

func (p *osProc) IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func (p *osProc) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

func (p *osProc) Uname() (Utsname, error) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return Utsname{}, err
	}
	return Utsname{
		Sysname:  unix.ByteSliceToString(u.Sysname[:]),
		Nodename: unix.ByteSliceToString(u.Nodename[:]),
		Release:  unix.ByteSliceToString(u.Release[:]),
		Version:  unix.ByteSliceToString(u.Version[:]),
		Machine:  unix.ByteSliceToString(u.Machine[:]),
	}, nil
}
