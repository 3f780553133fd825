// Package tty arbitrates ownership of the controlling terminal.
//
// Exactly one process group is the terminal's foreground group at any time:
// the shell's own group while it is idle, or the leader of the job that owns
// the foreground. All changes go through Terminal.
package tty

import (
	"log"
	"os"
	"sync"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Terminal is the shell's handle on its controlling terminal. When the
// descriptor is not a terminal the foreground group is only tracked, which
// keeps the rest of the shell identical when run from a pipe or a test.
type Terminal struct {
	fd        int
	shellPgid int
	active    bool
	logger    *log.Logger

	mu         sync.Mutex
	foreground int
}

// Open returns the terminal attached to standard input.
func Open(logger *log.Logger) *Terminal {
	return New(int(os.Stdin.Fd()), logger)
}

// New returns a Terminal for fd. If fd is a terminal the shell is moved into
// its own process group and made the foreground group.
func New(fd int, logger *log.Logger) *Terminal {
	if logger == nil {
		logger = log.New(os.Stderr, "jobsh: ", 0)
	}

	t := &Terminal{
		fd:        fd,
		shellPgid: unix.Getpgrp(),
		active:    term.IsTerminal(fd),
		logger:    logger,
	}

	if t.active {
		if pid := unix.Getpid(); t.shellPgid != pid {
			if err := unix.Setpgid(0, 0); err != nil {
				t.logger.Printf("setpgid: %v", err)
			} else {
				t.shellPgid = pid
			}
		}
	}

	t.SetForeground(t.shellPgid)
	return t
}

// Active reports whether the descriptor is a real terminal.
func (t *Terminal) Active() bool {
	return t.active
}

// ShellPgid returns the process group of the shell itself.
func (t *Terminal) ShellPgid() int {
	return t.shellPgid
}

// Foreground returns the current foreground process group.
func (t *Terminal) Foreground() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active {
		if pgid, err := unix.IoctlGetInt(t.fd, unix.TIOCGPGRP); err == nil {
			return pgid
		}
	}
	return t.foreground
}

// SetForeground makes pgid the terminal's foreground process group. Failures
// are logged and otherwise ignored; the group may already have exited.
func (t *Terminal) SetForeground(pgid int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.foreground = pgid
	if !t.active {
		return
	}

	var err error
	withTTYSignalsBlocked(func() {
		err = unix.IoctlSetPointerInt(t.fd, unix.TIOCSPGRP, pgid)
	})
	if err != nil {
		t.logger.Printf("tcsetpgrp %d: %v", pgid, err)
	}
}

// Reclaim returns the terminal to the shell.
func (t *Terminal) Reclaim() {
	t.SetForeground(t.shellPgid)
}
