package unit

import (
	"github.com/josephlewis42/jobsh/core/process"
	"golang.org/x/sys/unix"
)

// closeFd is replaced in tests to observe pipe closes.
var closeFd = unix.Close

// Pipeline is two processes in one process group, the first writing stdout
// and stderr into a pipe the second reads as stdin.
type Pipeline struct {
	env        Env
	procs      [2]*process.Process
	pipe       [2]int
	pipeOpen   bool
	foreground bool
}

var _ Unit = (*Pipeline)(nil)

func newPipeline(env Env, left, right []string, fg bool) *Pipeline {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		process.Fatal("pipe", err)
	}

	p := &Pipeline{env: env, pipe: fds, pipeOpen: true, foreground: fg}
	r, w := fds[0], fds[1]

	p.procs[0] = process.Spawn(env.Builtins, left, &process.Attr{
		Stdio:    process.Stdio{process.Inherit, w, w},
		CloseFds: fds[:],
	})
	p.procs[1] = process.Spawn(env.Builtins, right, &process.Attr{
		Stdio:    process.Stdio{r, process.Inherit, process.Inherit},
		CloseFds: fds[:],
		Pgid:     p.procs[0].Pid(),
	})

	if fg {
		env.handTo(p.Leader())
	} else {
		env.reclaim()
	}
	return p
}

func (*Pipeline) unit() {}

func (*Pipeline) Kind() Kind { return KindPipeline }

// Poll checks both sides every time. In blocking mode only the first live
// side is waited for; after any change the rest is checked without waiting.
func (p *Pipeline) Poll(nonBlocking bool) Observation {
	obs := Observation{Sides: 2}
	for i, proc := range p.procs {
		if proc.Status().Done() {
			obs.Finished[i] = true
			continue
		}

		status, change := proc.Poll(nonBlocking)
		obs.Changes[i] = change
		obs.Finished[i] = status.Done()
		if change != process.Unchanged {
			nonBlocking = true
		}
	}

	// The reader only sees EOF once the writer is gone and our copy of the
	// write end is closed.
	if obs.Finished[0] {
		p.closePipe()
	}

	obs.Done = obs.Finished[0] && obs.Finished[1]
	return obs
}

func (p *Pipeline) closePipe() {
	if !p.pipeOpen {
		return
	}
	p.pipeOpen = false
	for _, fd := range p.pipe {
		closeFd(fd)
	}
}

func (p *Pipeline) Done(nonBlocking bool) bool {
	if nonBlocking {
		return p.Poll(true).Done
	}

	p.procs[0].Join()
	p.closePipe()
	p.procs[1].Join()
	return true
}

func (p *Pipeline) Success() bool {
	p.Done(false)
	return p.procs[0].Status().Success() && p.procs[1].Status().Success()
}

func (p *Pipeline) Signaled() []bool {
	return []bool{signaled(p.procs[0].Status()), signaled(p.procs[1].Status())}
}

func (p *Pipeline) Signal(sig unix.Signal) {
	for _, proc := range p.procs {
		deliver(proc, sig)
	}
}

func (p *Pipeline) Leader() int {
	return p.procs[0].Pid()
}

func (p *Pipeline) Pids() []int {
	return []int{p.procs[0].Pid(), p.procs[1].Pid()}
}

func (p *Pipeline) Foreground() bool {
	return p.foreground
}

func (p *Pipeline) SetForeground(fg bool) {
	p.foreground = fg
}

func (p *Pipeline) Close() {
	p.procs[0].Release()
	p.closePipe()
	p.procs[1].Release()
	if p.foreground {
		p.env.reclaim()
	}
}
