package jobs

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Notifier records that some child changed state. It never touches the job
// table itself; Table.Sweep consumes the notification.
type Notifier struct {
	pending atomic.Bool
	wake    chan struct{}

	sigs     chan os.Signal
	done     chan struct{}
	stopOnce sync.Once
}

func NewNotifier() *Notifier {
	return &Notifier{
		wake: make(chan struct{}, 1),
		sigs: make(chan os.Signal, 1),
		done: make(chan struct{}),
	}
}

// Start subscribes to SIGCHLD.
func (n *Notifier) Start() {
	signal.Notify(n.sigs, unix.SIGCHLD)
	go func() {
		for {
			select {
			case <-n.sigs:
				n.Post()
			case <-n.done:
				return
			}
		}
	}()
}

// Post marks a notification as pending and wakes a waiter, if any.
func (n *Notifier) Post() {
	n.pending.Store(true)
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

// Wake fires at least once after every Post.
func (n *Notifier) Wake() <-chan struct{} {
	return n.wake
}

// Pending reports whether a notification has not been consumed yet.
func (n *Notifier) Pending() bool {
	return n.pending.Load()
}

func (n *Notifier) take() bool {
	return n.pending.Swap(false)
}

// Stop unsubscribes from SIGCHLD.
func (n *Notifier) Stop() {
	n.stopOnce.Do(func() {
		signal.Stop(n.sigs)
		close(n.done)
	})
}
