// Package process owns single OS processes on behalf of the shell.
//
// A Process is created by Spawn and lives until its exit status has been
// collected. Programs are started with fork+exec; names that resolve to a
// registered builtin are started by re-executing the shell binary, which runs
// the builtin callback and exits with its return value. Both paths produce an
// ordinary child with its own pid, process group, wait status and signal
// handling, so callers never need to know which one was taken.
//
// Failures of the underlying primitives (fork, exec, pipe, wait) are not
// recoverable: they are reported on Logger and the program exits.
//
// Only Linux is supported.
package process
