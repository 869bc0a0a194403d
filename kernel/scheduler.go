package kernel

import (
	"context"

	"github.com/FlashLizard/os-pke-lab/exec"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
)

// Schedule takes the head of the ready queue and makes it the RUNNING
// process. With an empty queue it returns ErrShutdown if nothing is live any
// more, or ErrIdle if live processes are all blocked.
func (k *Kernel) Schedule() (*Process, error) {
	p := k.runq.Dequeue()
	if p == nil {
		if k.procs.Live() == 0 {
			return nil, ErrShutdown
		}

		return nil, ErrIdle
	}

	if p.status != Ready {
		panic(errors.Errorf("pid %d queued in state %s", p.Pid, p.status))
	}

	p.setStatus(Running)
	k.current = p

	k.L.Trace("sched-pick", "pid", p.Pid, "epc", p.TrapFrame.Epc, "queued", k.runq.Len())

	return p, nil
}

// Run is the kernel's dispatch loop. It returns nil once no process is
// left, ctx.Err() if ctx ends first, and an ErrFatal error on a kernel
// panic.
func (k *Kernel) Run(ctx context.Context) error {
	if k.dispatcher == nil {
		return errors.Wrap(ErrFatal, "no syscall dispatcher installed")
	}

	for {
		k.runInterrupts()

		p, err := k.Schedule()
		switch errors.Cause(err) {
		case nil:
		case ErrShutdown:
			k.ReapOrphans()
			k.L.Info("shutdown", "exit-code", k.exitCode, "retired", k.machine.Retired)
			return nil
		case ErrIdle:
			if k.ReapOrphans() > 0 {
				continue
			}

			if err := k.idle(ctx); err != nil {
				return err
			}

			continue
		default:
			return err
		}

		if err := k.resume(ctx, p); err != nil {
			return err
		}
	}
}

// resume runs p until it gives up the CPU. Syscalls that complete keep p
// on the CPU within the same timer slice.
func (k *Kernel) resume(ctx context.Context, p *Process) error {
	task := &Task{Process: p}
	tctx := SetTask(ctx, task)

	var used int

	for {
		trap := k.machine.Run(ctx, &p.TrapFrame, p.Mem, used)
		used = trap.Used

		switch trap.Kind {
		case exec.TrapSyscall:
			p.TrapFrame.Epc += exec.InstrSize

			out := k.dispatcher.InvokeSyscall(tctx, task)

			switch {
			case out.kind == fatal:
				return k.halt(p, out.err)
			case out.Scheduled():
				if k.current == p {
					return k.halt(p, errors.New("syscall rescheduled but left the caller running"))
				}
				return nil
			default:
				p.CompleteSyscall(out.Result())
			}
		case exec.TrapTimer:
			k.L.Trace("sched-timer", "pid", p.Pid, "epc", p.TrapFrame.Epc)
			k.Yield(p)
			return nil
		case exec.TrapCanceled:
			k.Yield(p)
			return ctx.Err()
		default:
			return k.halt(p, trap)
		}
	}
}

func (k *Kernel) halt(p *Process, cause error) error {
	k.L.Error("kernel-panic", "pid", p.Pid, "error", cause)
	k.L.Debug("trap-frame\n" + spew.Sdump(p.TrapFrame))

	return errors.Wrapf(ErrFatal, "pid %d: %s", p.Pid, cause)
}

// idle sleeps until an interrupt arrives or ctx ends.
func (k *Kernel) idle(ctx context.Context) error {
	c := make(chan struct{}, 1)
	ev := k.events.RegisterChannel(EventWakeup, c)
	defer k.events.Unregister(ev)

	k.L.Trace("sched-idle", "blocked", k.procs.Count(Blocked))

	if k.runInterrupts() > 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c:
		return nil
	}
}
