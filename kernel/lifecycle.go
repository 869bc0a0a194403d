package kernel

import (
	"github.com/FlashLizard/os-pke-lab/abi"
	"github.com/FlashLizard/os-pke-lab/exec"
	"github.com/pkg/errors"
)

// Fork creates a READY copy of parent: a deep copy of its address space,
// the same trap frame with a0 cleared, and the same heap cursor. Nothing is
// claimed or enqueued unless every step succeeds.
func (k *Kernel) Fork(parent *Process) (*Process, error) {
	child, err := k.procs.Alloc()
	if err != nil {
		return nil, err
	}

	mem, err := parent.Mem.Fork()
	if err != nil {
		return nil, errors.Wrapf(err, "fork of pid %d", parent.Pid)
	}

	child.Mem = mem
	child.TrapFrame = parent.TrapFrame
	child.Heap = parent.Heap.clone()
	child.Image = parent.Image
	child.CompleteSyscall(0)

	k.procs.claim(child, parent.Ref())
	k.runq.Enqueue(child)

	k.L.Debug("process-fork", "parent", parent.Pid, "child", child.Pid, "pages", mem.Pages())

	return child, nil
}

// Exit turns p into a ZOMBIE, releasing its address space. A parent blocked
// waiting for p is woken. The slot itself is kept until reaped.
func (k *Kernel) Exit(p *Process, code int) {
	k.L.Debug("process-exit", "pid", p.Pid, "code", code)

	p.exitCode = code

	if parent, ok := k.parentOf(p); ok && parent.status == Blocked && parent.waitsFor(p.Pid) {
		k.wake(parent)
	}

	k.runq.Remove(p)

	if p.Mem != nil {
		p.Mem.Destroy()
		p.Mem = nil
	}

	p.blockEvent = EventNone
	p.setStatus(Zombie)

	if k.current == p {
		k.current = nil
	}

	if p.Ref() == k.init {
		k.exitCode = code
	}

	k.events.Notify(EventProcessExit)
}

// Wait looks for a ZOMBIE child of p matching pid, abi.WaitAny meaning any
// child. A match is reaped and its pid returned. Otherwise p is BLOCKED
// until a matching child exits and blocked is true; the woken process
// re-executes the wait syscall from the start.
func (k *Kernel) Wait(p *Process, pid int) (int, bool, error) {
	var found bool

	if pid == abi.WaitAny {
		for _, c := range k.procs.slots {
			if !k.isChild(p, c) {
				continue
			}

			found = true

			if c.status == Zombie {
				return k.Reap(c), false, nil
			}
		}
	} else {
		c, ok := k.procs.Get(pid)
		if ok && k.isChild(p, c) {
			found = true

			if c.status == Zombie {
				return k.Reap(c), false, nil
			}
		}
	}

	if !found {
		return abi.Failure, false, errors.Wrapf(ErrInvalidArgument, "pid %d has no child %d", p.Pid, pid)
	}

	p.blockEvent = EventWaitChild
	p.waitPid = pid
	p.setStatus(Blocked)

	if k.current == p {
		k.current = nil
	}

	k.L.Trace("process-wait-block", "pid", p.Pid, "wait", pid)

	return 0, true, nil
}

// Yield moves p to the tail of the ready queue.
func (k *Kernel) Yield(p *Process) {
	p.setStatus(Ready)
	k.runq.Enqueue(p)

	if k.current == p {
		k.current = nil
	}
}

// Reap frees the slot of ZOMBIE p and returns the pid it had.
func (k *Kernel) Reap(p *Process) int {
	if p.status != Zombie {
		panic(errors.Errorf("reaping pid %d in state %s", p.Pid, p.status))
	}

	pid := p.Pid
	k.procs.release(p)

	k.L.Trace("process-reap", "pid", pid)

	return pid
}

// ReapOrphans frees every ZOMBIE no live parent can wait for and returns
// how many were freed.
func (k *Kernel) ReapOrphans() int {
	var n int

	for _, p := range k.procs.slots {
		if p.status != Zombie {
			continue
		}

		if parent, ok := k.parentOf(p); ok && parent.Live() {
			continue
		}

		k.Reap(p)
		n++
	}

	if n > 0 {
		k.L.Debug("reaped-orphans", "count", n)
	}

	return n
}

func (k *Kernel) parentOf(p *Process) (*Process, bool) {
	return k.procs.Resolve(p.parent)
}

func (k *Kernel) isChild(p, c *Process) bool {
	return c.status != Free && c.parent == p.Ref()
}

func (p *Process) waitsFor(pid int) bool {
	return p.blockEvent == EventWaitChild && (p.waitPid == abi.WaitAny || p.waitPid == pid)
}

// wake readies a process blocked in wait and rewinds it onto the ecall.
func (k *Kernel) wake(p *Process) {
	k.L.Trace("process-wake", "pid", p.Pid, "epc", p.TrapFrame.Epc-exec.InstrSize)

	p.blockEvent = EventNone
	p.rewind()
	p.setStatus(Ready)
	k.runq.Enqueue(p)
}
