// Package commandstest runs builtins against in-memory standard streams and
// files.
package commandstest

import (
	"bytes"
	"io"
	"strings"

	"github.com/josephlewis42/jobsh/commands"
	"github.com/spf13/afero"
)

// Cmd is similar to exec.Cmd.
type Cmd struct {
	// Process function
	Process commands.CommandFunc
	// Process arguments, the first argument should be the process name.
	Argv []string
	// Dir is the reported working directory, "/" if empty.
	Dir string
	// Env gives the environment variables in the form returned by Environ.
	Env []string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// FS backs Open. It is created on first use if nil.
	FS afero.Fs
	// Terminal is reported by IsTerminal.
	Terminal bool

	ExitStatus int
}

// Command returns a Cmd that runs process with the given arguments.
func Command(process commands.CommandFunc, name string, arg ...string) *Cmd {
	return &Cmd{
		Process: process,
		Argv:    append([]string{name}, arg...),
		FS:      afero.NewMemMapFs(),
	}
}

// CombinedOutput runs the command and returns stdout and stderr interleaved.
func (c *Cmd) CombinedOutput() ([]byte, error) {
	buf := &bytes.Buffer{}
	c.Stdout = buf
	c.Stderr = buf

	err := c.Run()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Run starts the command and waits for it to complete.
func (c *Cmd) Run() error {
	if c.FS == nil {
		c.FS = afero.NewMemMapFs()
	}
	c.ExitStatus = c.Process(&proc{cmd: c})
	return nil
}

// Deterministic values reported by every Cmd.
const (
	Hostname = "jobsh-test"
)

// Uname is reported by every Cmd.
var Uname = commands.Utsname{
	Sysname:  "Linux",
	Nodename: Hostname,
	Release:  "5.10.0",
	Version:  "#1 SMP",
	Machine:  "x86_64",
}

type proc struct {
	cmd *Cmd
}

var _ commands.Proc = (*proc)(nil)

func (p *proc) Args() []string { return p.cmd.Argv }

func (p *proc) Stdin() io.Reader {
	if p.cmd.Stdin == nil {
		return strings.NewReader("")
	}
	return p.cmd.Stdin
}

func (p *proc) Stdout() io.Writer {
	if p.cmd.Stdout == nil {
		return io.Discard
	}
	return p.cmd.Stdout
}

func (p *proc) Stderr() io.Writer {
	if p.cmd.Stderr == nil {
		return io.Discard
	}
	return p.cmd.Stderr
}

func (p *proc) Getwd() string {
	if p.cmd.Dir == "" {
		return "/"
	}
	return p.cmd.Dir
}

func (p *proc) Getenv(key string) string {
	for _, kv := range p.cmd.Env {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			return v
		}
	}
	return ""
}

func (p *proc) Environ() []string {
	return append([]string(nil), p.cmd.Env...)
}

func (p *proc) Hostname() (string, error) { return Hostname, nil }

func (p *proc) IsTerminal() bool { return p.cmd.Terminal }

func (p *proc) Open(path string) (io.ReadCloser, error) {
	fd, err := p.cmd.FS.Open(path)
	if err != nil {
		return nil, err
	}
	return fd, nil
}

func (p *proc) Uname() (commands.Utsname, error) { return Uname, nil }
