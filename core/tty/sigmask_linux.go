package tty

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// withTTYSignalsBlocked runs fn on a locked OS thread with SIGTTOU and SIGTTIN
// blocked, so a shell that is not yet in the foreground can take the
// terminal back instead of being stopped.
func withTTYSignalsBlocked(fn func()) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var set, old unix.Sigset_t
	sigaddset(&set, unix.SIGTTOU)
	sigaddset(&set, unix.SIGTTIN)

	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &set, &old); err != nil {
		fn()
		return
	}
	defer unix.PthreadSigmask(unix.SIG_SETMASK, &old, nil)

	fn()
}

func sigaddset(set *unix.Sigset_t, sig unix.Signal) {
	bits := uint(unsafe.Sizeof(set.Val[0])) * 8
	n := uint(sig) - 1
	set.Val[n/bits] |= 1 << (n % bits)
}
