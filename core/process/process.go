package process

import (
	"errors"
	"log"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/docker/docker/pkg/reexec"
	"golang.org/x/sys/unix"
)

// Logger receives fatal diagnostics before the program exits.
var Logger = log.New(os.Stderr, "jobsh: ", 0)

// Fatal reports the failure of an OS primitive and exits.
func Fatal(op string, err error) {
	Logger.Fatalf("%s: %v", op, err)
}

// Inherit leaves a standard stream pointing at the shell's own descriptor.
const Inherit = -1

// Stdio maps the child's fd 0, 1 and 2 to a descriptor of the shell.
type Stdio [3]int

// DefaultStdio inherits all three standard streams.
var DefaultStdio = Stdio{Inherit, Inherit, Inherit}

// Attr describes how a process is spawned.
type Attr struct {
	Stdio Stdio
	// CloseFds are descriptors of the shell the child must not keep open.
	CloseFds []int
	// Pgid is the process group to join. Zero makes the child the leader of
	// a new group.
	Pgid int
}

// Process is one spawned child. It is not safe for concurrent use.
type Process struct {
	argv    []string
	pid     int
	builtin bool
	status  Status
}

// Spawn starts argv. If argv[0] is registered in b the builtin is run in a
// re-executed child, otherwise the program is executed directly. attr may be
// nil. A program file that is missing or cannot be executed yields a child
// that exits with NotFoundCode or CannotExecCode. Spawn does not return on
// any other failure.
func Spawn(b Builtins, argv []string, attr *Attr) *Process {
	if len(argv) == 0 || argv[0] == "" {
		Fatal("spawn", errors.New("empty argument vector"))
	}
	if attr == nil {
		attr = &Attr{Stdio: DefaultStdio}
	}

	p := &Process{argv: append([]string(nil), argv...)}
	path, execArgv := p.resolve(b)

	files := make([]uintptr, len(attr.Stdio))
	for fd, src := range attr.Stdio {
		if src == Inherit {
			src = fd
		}
		files[fd] = uintptr(src)
	}

	// The child must not hold the shell's copies of these descriptors or
	// pipe readers would never see EOF.
	for _, fd := range attr.CloseFds {
		if fd >= 0 {
			unix.CloseOnExec(fd)
		}
	}

	pid, err := forkExec(path, execArgv, files, attr.Pgid)
	if code, ok := execFailure(err); ok && !p.builtin {
		// Only the program is at fault, so the child reports it and exits the
		// way a failed exec would.
		p.builtin = true
		entry := notFoundEntry
		if code == CannotExecCode {
			entry = cannotExecEntry
		}
		pid, err = forkExec(reexec.Self(), []string{entry, argv[0], err.Error()}, files, attr.Pgid)
	}
	if err != nil {
		Fatal("fork/exec "+argv[0], err)
	}
	p.pid = pid

	pgid := attr.Pgid
	if pgid == 0 {
		pgid = pid
	}
	// Repeat the child's setpgid so the group exists before we return. EACCES
	// means the child already exec'd with the group set.
	if err := unix.Setpgid(pid, pgid); err != nil && !errors.Is(err, unix.EACCES) && !errors.Is(err, unix.ESRCH) {
		Fatal("setpgid", err)
	}

	return p
}

func forkExec(path string, argv []string, files []uintptr, pgid int) (int, error) {
	return syscall.ForkExec(path, argv, &syscall.ProcAttr{
		Env:   os.Environ(),
		Files: files,
		Sys: &syscall.SysProcAttr{
			Setpgid: true,
			Pgid:    pgid,
		},
	})
}

// execFailure maps errors caused by the program file itself to the exit code
// the child reports. Anything else is a failure of the shell.
func execFailure(err error) (int, bool) {
	switch {
	case err == nil:
		return 0, false
	case errors.Is(err, unix.ENOENT), errors.Is(err, unix.ENOTDIR):
		return NotFoundCode, true
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.ENOEXEC),
		errors.Is(err, unix.EISDIR), errors.Is(err, unix.ELOOP),
		errors.Is(err, unix.ENAMETOOLONG), errors.Is(err, unix.EPERM):
		return CannotExecCode, true
	}
	return 0, false
}

func (p *Process) resolve(b Builtins) (string, []string) {
	name := p.argv[0]
	if b != nil {
		if _, ok := b.Lookup(name); ok {
			p.builtin = true
			return reexec.Self(), append([]string{entryName(name)}, p.argv[1:]...)
		}
	}

	path := name
	if !strings.Contains(name, "/") {
		found, err := exec.LookPath(name)
		if err != nil {
			p.builtin = true
			return reexec.Self(), []string{notFoundEntry, name}
		}
		path = found
	}
	return path, p.argv
}

// Pid returns the process id.
func (p *Process) Pid() int {
	return p.pid
}

// Argv returns the argument vector the process was spawned with.
func (p *Process) Argv() []string {
	return p.argv
}

// Builtin reports whether the process was started through the builtin path.
func (p *Process) Builtin() bool {
	return p.builtin
}

// Status returns the last collected status without waiting.
func (p *Process) Status() Status {
	return p.status
}

// Poll checks for a state change. With nonBlocking set it returns
// immediately when nothing happened; otherwise it waits until the child
// stops, continues or terminates. An interrupted wait reports Unchanged.
func (p *Process) Poll(nonBlocking bool) (Status, Change) {
	if p.status.Done() {
		return p.status, Unchanged
	}

	options := unix.WUNTRACED | unix.WCONTINUED
	if nonBlocking {
		options |= unix.WNOHANG
	}

	var ws unix.WaitStatus
	wpid, err := unix.Wait4(p.pid, &ws, options, nil)
	switch {
	case errors.Is(err, unix.EINTR):
		return p.status, Unchanged
	case err != nil:
		Fatal("wait4", err)
	case wpid == 0:
		return p.status, Unchanged
	}

	change := p.record(ws)
	return p.status, change
}

func (p *Process) record(ws unix.WaitStatus) Change {
	switch {
	case ws.Exited():
		p.status = Status{State: Exited, Code: ws.ExitStatus()}
		return Terminated
	case ws.Signaled():
		p.status = Status{State: Signaled, Signal: ws.Signal()}
		return Terminated
	case ws.Stopped():
		return Stopped
	case ws.Continued():
		return Continued
	}
	return Unchanged
}

// Join blocks until the process exits or is killed. Later calls return the
// cached status without a system call.
func (p *Process) Join() Status {
	for !p.status.Done() {
		var ws unix.WaitStatus
		_, err := unix.Wait4(p.pid, &ws, 0, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			Fatal("wait4", err)
		}
		p.record(ws)
	}
	return p.status
}

// Signal delivers sig to the process. It returns os.ErrProcessDone once the
// status has been collected, since the pid may already belong to someone
// else.
func (p *Process) Signal(sig unix.Signal) error {
	if p.status.Done() {
		return os.ErrProcessDone
	}
	return unix.Kill(p.pid, sig)
}

// Release collects the exit status if that has not happened yet. It must be
// called exactly when the owner is done with the process.
func (p *Process) Release() {
	if !p.status.Done() {
		p.Join()
	}
}
