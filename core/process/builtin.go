package process

import (
	"fmt"
	"os"
	"sync"

	"github.com/docker/docker/pkg/reexec"
)

// Func is an in-process builtin. It receives the full argument vector,
// including the program name, and returns the exit code.
type Func func(argv []string) int

// Builtins resolves program names to builtin callbacks.
type Builtins interface {
	// Lookup returns the callback registered under name.
	Lookup(name string) (Func, bool)
	// Names lists every registered builtin.
	Names() []string
}

const (
	entryPrefix = "jobsh-builtin:"

	// notFoundEntry runs when a program can neither be resolved as a builtin
	// nor found on PATH.
	notFoundEntry = entryPrefix + "!notfound"

	// cannotExecEntry runs when a program was found but could not be executed.
	cannotExecEntry = entryPrefix + "!cannotexec"

	// NotFoundCode is the exit code of a command that could not be found.
	NotFoundCode = 127
	// CannotExecCode is the exit code of a command that could not be executed.
	CannotExecCode = 126
)

var (
	registerMu sync.Mutex
	registered = make(map[string]bool)
)

func entryName(name string) string {
	return entryPrefix + name
}

// RegisterBuiltins makes every builtin of b runnable in a re-executed child.
// It must be called before reexec.Init in main (or TestMain) with the same
// registry the shell later passes to Spawn. b may be nil.
func RegisterBuiltins(b Builtins) {
	registerMu.Lock()
	defer registerMu.Unlock()

	register := func(entry string, fn func()) {
		if registered[entry] {
			return
		}
		registered[entry] = true
		reexec.Register(entry, fn)
	}

	register(notFoundEntry, func() {
		name := "jobsh"
		if len(os.Args) > 1 {
			name = os.Args[1]
		}
		if len(os.Args) > 2 {
			fmt.Fprintf(os.Stderr, "%s: %s\n", name, os.Args[2])
		} else {
			fmt.Fprintf(os.Stderr, "%s: command not found\n", name)
		}
		os.Exit(NotFoundCode)
	})

	register(cannotExecEntry, func() {
		name, reason := "jobsh", "cannot execute"
		if len(os.Args) > 1 {
			name = os.Args[1]
		}
		if len(os.Args) > 2 {
			reason = os.Args[2]
		}
		fmt.Fprintf(os.Stderr, "%s: %s\n", name, reason)
		os.Exit(CannotExecCode)
	})

	if b == nil {
		return
	}

	for _, name := range b.Names() {
		name := name
		register(entryName(name), func() {
			fn, ok := b.Lookup(name)
			if !ok {
				fmt.Fprintf(os.Stderr, "%s: builtin vanished\n", name)
				os.Exit(NotFoundCode)
			}
			argv := append([]string{name}, os.Args[1:]...)
			os.Exit(fn(argv))
		})
	}
}
