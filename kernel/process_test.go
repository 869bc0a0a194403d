package kernel

import (
	"context"
	"testing"
	"time"

	"github.com/FlashLizard/os-pke-lab/abi"
	"github.com/FlashLizard/os-pke-lab/asm"
	"github.com/FlashLizard/os-pke-lab/config"
	"github.com/FlashLizard/os-pke-lab/exec"
	"github.com/FlashLizard/os-pke-lab/memory"
	"github.com/FlashLizard/os-pke-lab/pkg/waiter"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"
)

const spinSrc = `
.text
.func main
main:
	li a0, 65
	ecall
	j main
.endfunc
.data
word: .dword 7
`

func testKernel(t *testing.T, tweak func(cfg *config.Config)) *Kernel {
	cfg := config.Default()
	cfg.MaxProcs = 8
	cfg.Frames = 256
	cfg.MaxHeapPages = 4

	if tweak != nil {
		tweak(cfg)
	}

	k, err := NewKernel(cfg, nil)
	require.NoError(t, err)

	return k
}

func spinImage(t *testing.T) *asm.Image {
	img, err := asm.Assemble("spin.s", []byte(spinSrc))
	require.NoError(t, err)

	return img
}

// running spawns a process and makes it the RUNNING one, as if it had just
// trapped on the ecall at its entry point.
func running(t *testing.T, k *Kernel) *Process {
	p, err := k.Spawn(spinImage(t))
	require.NoError(t, err)

	got, err := k.Schedule()
	require.NoError(t, err)
	require.Equal(t, p, got)

	p.TrapFrame.Epc += exec.InstrSize

	return p
}

func TestSpawn(t *testing.T) {
	k := testKernel(t, nil)

	img := spinImage(t)

	p, err := k.Spawn(img)
	require.NoError(t, err)

	require.Equal(t, 0, p.Pid)
	require.Equal(t, Ready, p.Status())
	require.Equal(t, []int{0}, k.RunQueue().Pids())
	require.Equal(t, img.Entry, p.TrapFrame.Epc)
	require.Equal(t, uint64(abi.UserStackTop), p.TrapFrame.Reg(exec.RegSP))

	code, ok := p.Mem.Segment(memory.SegCode)
	require.True(t, ok)
	require.Equal(t, uint64(asm.TextBase), code.Start)

	heap, ok := p.Mem.Segment(memory.SegHeap)
	require.True(t, ok)
	require.Equal(t, 0, heap.Pages)

	stack, ok := p.Mem.Segment(memory.SegStack)
	require.True(t, ok)
	require.Equal(t, uint64(abi.UserStackTop), stack.End())

	buf := make([]byte, 1)
	_, err = p.Mem.ReadAt(buf, int64(img.Labels["word"]))
	require.NoError(t, err)
	require.Equal(t, byte(7), buf[0])

	t.Run("rejects images reaching into the heap", func(t *testing.T) {
		big := &asm.Image{Name: "big", TextBase: asm.TextBase, DataBase: abi.UserHeapStart - 8, Data: make([]byte, 16)}

		free := k.Pool().Free()

		_, err := k.Spawn(big)
		require.Equal(t, ErrImageTooLarge, errors.Cause(err))
		require.Equal(t, free, k.Pool().Free())
		require.Equal(t, Free, k.Processes().slots[1].Status())
	})
}

func TestFork(t *testing.T) {
	n := neko.Modern(t)

	n.It("copies the parent into the lowest free slot", func(t *testing.T) {
		k := testKernel(t, nil)
		parent := running(t, k)

		parent.TrapFrame.SetReg(exec.RegA0, abi.SysFork)
		parent.TrapFrame.SetReg(exec.RegS1, 99)

		child, err := k.Fork(parent)
		require.NoError(t, err)

		require.Equal(t, 1, child.Pid)
		require.Equal(t, Ready, child.Status())
		require.Equal(t, []int{1}, k.RunQueue().Pids())

		require.Equal(t, uint64(0), child.TrapFrame.Reg(exec.RegA0))
		require.Equal(t, uint64(99), child.TrapFrame.Reg(exec.RegS1))
		require.Equal(t, parent.TrapFrame.Epc, child.TrapFrame.Epc)

		p, ok := k.parentOf(child)
		require.True(t, ok)
		require.Equal(t, parent, p)
	})

	n.It("gives the child its own memory", func(t *testing.T) {
		k := testKernel(t, nil)
		parent := running(t, k)

		addr := int64(parent.Image.Labels["word"])

		child, err := k.Fork(parent)
		require.NoError(t, err)

		buf := make([]byte, 1)
		_, err = child.Mem.ReadAt(buf, addr)
		require.NoError(t, err)
		require.Equal(t, byte(7), buf[0])

		_, err = child.Mem.WriteAt([]byte{1}, addr)
		require.NoError(t, err)
		_, err = parent.Mem.WriteAt([]byte{2}, addr)
		require.NoError(t, err)

		_, err = child.Mem.ReadAt(buf, addr)
		require.NoError(t, err)
		require.Equal(t, byte(1), buf[0])

		_, err = parent.Mem.ReadAt(buf, addr)
		require.NoError(t, err)
		require.Equal(t, byte(2), buf[0])
	})

	n.It("copies the heap cursor and free list", func(t *testing.T) {
		k := testKernel(t, nil)
		parent := running(t, k)

		a, err := k.AllocatePage(parent)
		require.NoError(t, err)
		_, err = k.AllocatePage(parent)
		require.NoError(t, err)
		require.NoError(t, k.FreePage(parent, a))

		child, err := k.Fork(parent)
		require.NoError(t, err)

		require.Equal(t, parent.Heap.Top, child.Heap.Top)
		require.Equal(t, []uint64{a}, child.Heap.Free)

		got, err := k.AllocatePage(child)
		require.NoError(t, err)
		require.Equal(t, a, got)
		require.Equal(t, []uint64{a}, parent.Heap.Free)
	})

	n.It("fails without a trace when the table is full", func(t *testing.T) {
		k := testKernel(t, func(cfg *config.Config) { cfg.MaxProcs = 1 })
		parent := running(t, k)

		free := k.Pool().Free()

		_, err := k.Fork(parent)
		require.Equal(t, ErrNoFreeSlot, errors.Cause(err))

		require.Equal(t, free, k.Pool().Free())
		require.Equal(t, 0, k.RunQueue().Len())
	})

	n.It("rolls back when memory runs out mid copy", func(t *testing.T) {
		k := testKernel(t, func(cfg *config.Config) { cfg.Frames = 12 })
		parent := running(t, k)

		free := k.Pool().Free()
		require.True(t, free > 0)

		_, err := k.Fork(parent)
		require.Equal(t, memory.ErrOutOfMemory, errors.Cause(err))

		require.Equal(t, free, k.Pool().Free())
		require.Equal(t, 0, k.RunQueue().Len())
		require.Equal(t, 1, k.Processes().Count(Running))
		require.Equal(t, k.Processes().Cap()-1, k.Processes().Count(Free))
	})

	n.Meow()
}

func TestWait(t *testing.T) {
	n := neko.Modern(t)

	n.It("reaps a child that already exited", func(t *testing.T) {
		k := testKernel(t, nil)
		parent := running(t, k)

		child, err := k.Fork(parent)
		require.NoError(t, err)

		k.Exit(child, 2)
		require.Equal(t, Zombie, child.Status())
		require.Nil(t, child.Mem)
		require.Equal(t, 0, k.RunQueue().Len())

		pid, blocked, err := k.Wait(parent, abi.WaitAny)
		require.NoError(t, err)
		require.False(t, blocked)
		require.Equal(t, 1, pid)
		require.Equal(t, Free, child.Status())
	})

	n.It("blocks until the child exits and rewinds onto the ecall", func(t *testing.T) {
		k := testKernel(t, nil)
		parent := running(t, k)

		child, err := k.Fork(parent)
		require.NoError(t, err)

		epc := parent.TrapFrame.Epc

		_, blocked, err := k.Wait(parent, child.Pid)
		require.NoError(t, err)
		require.True(t, blocked)
		require.Equal(t, Blocked, parent.Status())
		require.Nil(t, k.Current())

		got, err := k.Schedule()
		require.NoError(t, err)
		require.Equal(t, child, got)

		k.Exit(child, 0)

		require.Equal(t, Ready, parent.Status())
		require.Equal(t, epc-exec.InstrSize, parent.TrapFrame.Epc)
		require.Equal(t, []int{parent.Pid}, k.RunQueue().Pids())

		_, err = k.Schedule()
		require.NoError(t, err)

		pid, blocked, err := k.Wait(parent, child.Pid)
		require.NoError(t, err)
		require.False(t, blocked)
		require.Equal(t, child.Pid, pid)
	})

	n.It("does not wake a parent waiting for another child", func(t *testing.T) {
		k := testKernel(t, nil)
		parent := running(t, k)

		first, err := k.Fork(parent)
		require.NoError(t, err)
		second, err := k.Fork(parent)
		require.NoError(t, err)

		_, blocked, err := k.Wait(parent, second.Pid)
		require.NoError(t, err)
		require.True(t, blocked)

		k.runq.Remove(first)
		first.setStatus(Running)
		k.Exit(first, 1)

		require.Equal(t, Blocked, parent.Status())
		require.Equal(t, Zombie, first.Status())
	})

	n.It("fails for pids it does not own", func(t *testing.T) {
		k := testKernel(t, nil)
		parent := running(t, k)

		_, _, err := k.Wait(parent, abi.WaitAny)
		require.Equal(t, ErrInvalidArgument, errors.Cause(err))

		_, _, err = k.Wait(parent, k.Processes().Cap())
		require.Equal(t, ErrInvalidArgument, errors.Cause(err))

		_, _, err = k.Wait(parent, -7)
		require.Equal(t, ErrInvalidArgument, errors.Cause(err))

		_, _, err = k.Wait(parent, parent.Pid)
		require.Equal(t, ErrInvalidArgument, errors.Cause(err))

		require.Equal(t, Running, parent.Status())
	})

	n.It("refuses to reap the same child twice", func(t *testing.T) {
		k := testKernel(t, nil)
		parent := running(t, k)

		child, err := k.Fork(parent)
		require.NoError(t, err)
		k.Exit(child, 0)

		pid, _, err := k.Wait(parent, child.Pid)
		require.NoError(t, err)
		require.Equal(t, child.Pid, pid)

		_, _, err = k.Wait(parent, child.Pid)
		require.Equal(t, ErrInvalidArgument, errors.Cause(err))
	})

	n.It("does not treat a reused slot as the old child", func(t *testing.T) {
		k := testKernel(t, nil)
		parent := running(t, k)

		child, err := k.Fork(parent)
		require.NoError(t, err)

		// the child forks a grandchild, then exits and is reaped
		grand, err := k.Fork(child)
		require.NoError(t, err)

		k.Exit(child, 0)
		_, _, err = k.Wait(parent, child.Pid)
		require.NoError(t, err)

		_, ok := k.parentOf(grand)
		require.False(t, ok)

		// a new process lands in the reaped slot
		other, err := k.Spawn(spinImage(t))
		require.NoError(t, err)
		require.Equal(t, child.Pid, other.Pid)

		_, ok = k.parentOf(grand)
		require.False(t, ok)
	})

	n.Meow()
}

func TestReapOrphans(t *testing.T) {
	k := testKernel(t, nil)
	parent := running(t, k)

	child, err := k.Fork(parent)
	require.NoError(t, err)

	k.Exit(child, 0)

	require.Equal(t, 0, k.ReapOrphans())
	require.Equal(t, Zombie, child.Status())

	k.Exit(parent, 0)
	require.Equal(t, 2, k.ReapOrphans())

	require.Equal(t, Free, parent.Status())
	require.Equal(t, Free, child.Status())
	require.Equal(t, k.Pool().Total(), k.Pool().Free())
}

func TestRunQueue(t *testing.T) {
	t.Run("dispatches in enqueue order", func(t *testing.T) {
		k := testKernel(t, nil)

		for i := 0; i < 3; i++ {
			_, err := k.Spawn(spinImage(t))
			require.NoError(t, err)
		}

		a, err := k.Schedule()
		require.NoError(t, err)
		require.Equal(t, 0, a.Pid)

		k.Yield(a)
		require.Equal(t, []int{1, 2, 0}, k.RunQueue().Pids())

		b, err := k.Schedule()
		require.NoError(t, err)
		require.Equal(t, 1, b.Pid)

		child, err := k.Fork(b)
		require.NoError(t, err)
		require.Equal(t, []int{2, 0, child.Pid}, k.RunQueue().Pids())
	})

	t.Run("reports idle and shutdown", func(t *testing.T) {
		k := testKernel(t, nil)

		_, err := k.Schedule()
		require.Equal(t, ErrShutdown, err)

		p := running(t, k)
		c, err := k.Fork(p)
		require.NoError(t, err)

		_, blocked, err := k.Wait(p, c.Pid)
		require.NoError(t, err)
		require.True(t, blocked)

		got, err := k.Schedule()
		require.NoError(t, err)
		require.Equal(t, c, got)

		c.setStatus(Blocked)
		k.current = nil

		_, err = k.Schedule()
		require.Equal(t, ErrIdle, err)

		c.setStatus(Running)
		k.Exit(c, 0)

		got, err = k.Schedule()
		require.NoError(t, err)
		require.Equal(t, p, got)

		pid, _, err := k.Wait(p, c.Pid)
		require.NoError(t, err)
		require.Equal(t, c.Pid, pid)

		k.Exit(p, 0)

		_, err = k.Schedule()
		require.Equal(t, ErrShutdown, err)
	})

	t.Run("refuses to queue a process twice", func(t *testing.T) {
		var q RunQueue
		p := &Process{Pid: 3}

		q.Enqueue(p)
		require.Panics(t, func() { q.Enqueue(p) })

		require.Equal(t, p, q.Dequeue())
		require.Nil(t, q.Dequeue())
		require.Equal(t, 0, q.Len())
	})
}

func TestHeap(t *testing.T) {
	n := neko.Modern(t)

	n.It("reuses the most recently freed page before growing", func(t *testing.T) {
		k := testKernel(t, nil)
		p := running(t, k)

		a, err := k.AllocatePage(p)
		require.NoError(t, err)
		require.Equal(t, uint64(abi.UserHeapStart), a)

		b, err := k.AllocatePage(p)
		require.NoError(t, err)
		require.Equal(t, a+memory.PageSize, b)

		require.NoError(t, k.FreePage(p, a))

		_, err = p.Mem.Translate(a)
		require.Equal(t, memory.ErrUnmapped, errors.Cause(err))

		c, err := k.AllocatePage(p)
		require.NoError(t, err)
		require.Equal(t, a, c)
		require.Empty(t, p.Heap.Free)
		require.Equal(t, b+memory.PageSize, p.Heap.Top)

		seg, ok := p.Mem.Segment(memory.SegHeap)
		require.True(t, ok)
		require.Equal(t, 2, seg.Pages)
	})

	n.It("hands out fresh zeroed frames on reuse", func(t *testing.T) {
		k := testKernel(t, nil)
		p := running(t, k)

		a, err := k.AllocatePage(p)
		require.NoError(t, err)

		_, err = p.Mem.WriteAt([]byte("dirty"), int64(a))
		require.NoError(t, err)

		require.NoError(t, k.FreePage(p, a))

		_, err = k.AllocatePage(p)
		require.NoError(t, err)

		buf := make([]byte, 5)
		_, err = p.Mem.ReadAt(buf, int64(a))
		require.NoError(t, err)
		require.Equal(t, make([]byte, 5), buf)
	})

	n.It("stops growing at the page limit", func(t *testing.T) {
		k := testKernel(t, nil)
		p := running(t, k)

		for i := 0; i < k.Config().MaxHeapPages; i++ {
			_, err := k.AllocatePage(p)
			require.NoError(t, err)
		}

		_, err := k.AllocatePage(p)
		require.Equal(t, ErrHeapExhausted, errors.Cause(err))

		require.NoError(t, k.FreePage(p, abi.UserHeapStart))

		va, err := k.AllocatePage(p)
		require.NoError(t, err)
		require.Equal(t, uint64(abi.UserHeapStart), va)
	})

	n.It("reports exhausted physical memory and keeps running", func(t *testing.T) {
		k := testKernel(t, func(cfg *config.Config) { cfg.Frames = 9 })
		p := running(t, k)

		for k.Pool().Free() > 0 {
			_, err := k.AllocatePage(p)
			if err != nil {
				break
			}
		}

		top := p.Heap.Top

		_, err := k.AllocatePage(p)
		require.Equal(t, memory.ErrOutOfMemory, errors.Cause(err))
		require.Equal(t, top, p.Heap.Top)
		require.Equal(t, Running, p.Status())
	})

	n.It("rejects addresses that are not live heap pages", func(t *testing.T) {
		k := testKernel(t, nil)
		p := running(t, k)

		a, err := k.AllocatePage(p)
		require.NoError(t, err)

		require.Equal(t, ErrInvalidArgument, errors.Cause(k.FreePage(p, a+8)))
		require.Equal(t, ErrInvalidArgument, errors.Cause(k.FreePage(p, a+memory.PageSize)))
		require.Equal(t, ErrInvalidArgument, errors.Cause(k.FreePage(p, asm.TextBase)))

		require.NoError(t, k.FreePage(p, a))
		require.Equal(t, ErrInvalidArgument, errors.Cause(k.FreePage(p, a)))
		require.Equal(t, []uint64{a}, p.Heap.Free)
	})

	n.Meow()
}

type dispatchFunc func(ctx context.Context, t *Task) Outcome

func (f dispatchFunc) InvokeSyscall(ctx context.Context, t *Task) Outcome {
	return f(ctx, t)
}

// exitOnly handles every syscall as exit(a1).
func exitOnly(ctx context.Context, t *Task) Outcome {
	t.Kernel.Exit(t.Process, int(t.Arg(0)))
	return Rescheduled()
}

func assemble(t *testing.T, src string) *asm.Image {
	img, err := asm.Assemble("test.s", []byte(src))
	require.NoError(t, err)

	return img
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("runs until every process exited", func(t *testing.T) {
		k := testKernel(t, nil)
		k.SetDispatcher(dispatchFunc(exitOnly))

		_, err := k.Spawn(assemble(t, "main:\n li a1, 3\n ecall\n"))
		require.NoError(t, err)
		_, err = k.Spawn(assemble(t, "main:\n li a1, 4\n ecall\n"))
		require.NoError(t, err)

		require.NoError(t, k.Run(ctx))
		require.Equal(t, 3, k.ExitCode())
		require.Equal(t, k.Processes().Cap(), k.Processes().Count(Free))
		require.Equal(t, k.Pool().Total(), k.Pool().Free())
	})

	t.Run("returns completed results in a0", func(t *testing.T) {
		k := testKernel(t, nil)

		var seen []uint64
		k.SetDispatcher(dispatchFunc(func(ctx context.Context, t *Task) Outcome {
			if t.Number() == 1 {
				return exitOnly(ctx, t)
			}

			seen = append(seen, t.Arg(0))
			return Completed(int64(t.Arg(0)) * 2)
		}))

		_, err := k.Spawn(assemble(t, `
main:
	li a0, 0
	li a1, 21
	ecall
	mv a1, a0
	li a0, 0
	ecall
	mv a1, a0
	li a0, 1
	ecall
`))
		require.NoError(t, err)

		require.NoError(t, k.Run(ctx))
		require.Equal(t, []uint64{21, 42}, seen)
		require.Equal(t, 84, k.ExitCode())
	})

	t.Run("halts on a fault", func(t *testing.T) {
		k := testKernel(t, nil)
		k.SetDispatcher(dispatchFunc(exitOnly))

		_, err := k.Spawn(assemble(t, "main:\n li t0, 0x300000\n ld a0, 0(t0)\n"))
		require.NoError(t, err)

		err = k.Run(ctx)
		require.Equal(t, ErrFatal, errors.Cause(err))
	})

	t.Run("halts on a fatal outcome", func(t *testing.T) {
		k := testKernel(t, nil)
		k.SetDispatcher(dispatchFunc(func(ctx context.Context, t *Task) Outcome {
			return Fatal(errors.New("unknown syscall"))
		}))

		_, err := k.Spawn(assemble(t, "main:\n ecall\n"))
		require.NoError(t, err)

		require.Equal(t, ErrFatal, errors.Cause(k.Run(ctx)))
	})

	t.Run("preempts on the timer", func(t *testing.T) {
		k := testKernel(t, func(cfg *config.Config) { cfg.Quantum = 10 })

		codes := map[int]int{}
		var firstExit uint64

		k.SetDispatcher(dispatchFunc(func(ctx context.Context, t *Task) Outcome {
			if firstExit == 0 {
				firstExit = t.Kernel.Retired()
			}

			codes[t.Pid] = int(t.Arg(0))
			return exitOnly(ctx, t)
		}))

		loop := `
main:
	li t0, 0
	li t1, 100
again:
	addi t0, t0, 1
	blt t0, t1, again
	mv a1, t0
	ecall
`
		_, err := k.Spawn(assemble(t, loop))
		require.NoError(t, err)
		_, err = k.Spawn(assemble(t, loop))
		require.NoError(t, err)

		require.NoError(t, k.Run(ctx))

		require.Equal(t, map[int]int{0: 100, 1: 100}, codes)

		// the second process ran while the first was still looping
		require.True(t, firstExit > 300)
	})

	t.Run("preempts a process that keeps making syscalls", func(t *testing.T) {
		k := testKernel(t, func(cfg *config.Config) { cfg.Quantum = 20 })

		spinner, err := k.Spawn(assemble(t, "main:\n li a0, 1\n ecall\n j main\n"))
		require.NoError(t, err)
		other, err := k.Spawn(assemble(t, "main:\n li a1, 7\n li a0, 65\n ecall\n"))
		require.NoError(t, err)

		var spins int

		k.SetDispatcher(dispatchFunc(func(ctx context.Context, task *Task) Outcome {
			cur, ok := GetTask(ctx)
			require.True(t, ok)
			require.Equal(t, task, cur)

			if task.Number() != 1 {
				return exitOnly(ctx, task)
			}

			spins++

			switch {
			case other.Status() == Zombie:
				k.Exit(task.Process, spins)
				return Rescheduled()
			case spins > 1000:
				return Fatal(errors.New("spinner was never preempted"))
			default:
				return Completed(0)
			}
		}))

		require.NoError(t, k.Run(ctx))

		require.Equal(t, spins, k.ExitCode())
		require.True(t, spins <= 20, "spins=%d", spins)
		require.Equal(t, Free, spinner.Status())
	})

	t.Run("announces process exits to observers", func(t *testing.T) {
		k := testKernel(t, nil)
		k.SetDispatcher(dispatchFunc(exitOnly))

		var exits int
		ev := k.Events().RegisterFunc(EventProcessExit, func(fired waiter.EventType) {
			exits++
		})
		defer k.Events().Unregister(ev)

		for i := 0; i < 3; i++ {
			_, err := k.Spawn(assemble(t, "main:\n li a1, 1\n ecall\n"))
			require.NoError(t, err)
		}

		require.NoError(t, k.Run(ctx))
		require.Equal(t, 3, exits)
	})

	t.Run("sleeps while everything is blocked", func(t *testing.T) {
		k := testKernel(t, nil)
		k.SetDispatcher(dispatchFunc(exitOnly))

		p, err := k.Spawn(assemble(t, "main:\n li a1, 5\n ecall\n"))
		require.NoError(t, err)

		k.runq.Remove(p)
		p.setStatus(Blocked)

		go func() {
			time.Sleep(50 * time.Millisecond)
			k.Interrupt(func(k *Kernel) {
				p.setStatus(Ready)
				k.runq.Enqueue(p)
			})
		}()

		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		require.NoError(t, k.Run(cctx))
		require.Equal(t, 5, k.ExitCode())
	})

	t.Run("gives up when the context ends while idle", func(t *testing.T) {
		k := testKernel(t, nil)
		k.SetDispatcher(dispatchFunc(exitOnly))

		p, err := k.Spawn(assemble(t, "main:\n ecall\n"))
		require.NoError(t, err)

		k.runq.Remove(p)
		p.setStatus(Blocked)

		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		require.Equal(t, context.DeadlineExceeded, k.Run(cctx))
	})

	t.Run("needs a dispatcher", func(t *testing.T) {
		k := testKernel(t, nil)
		require.Equal(t, ErrFatal, errors.Cause(k.Run(ctx)))
	})
}

func TestTaskRegisters(t *testing.T) {
	var p Process

	p.TrapFrame.SetReg(exec.RegA0, 64)
	for i := 0; i < NumArgs; i++ {
		p.TrapFrame.SetReg(exec.RegA1+i, uint64(100+i))
	}

	task := &Task{Process: &p}

	require.Equal(t, uint64(64), task.Number())
	require.Equal(t, uint64(100), task.Arg(0))
	require.Equal(t, uint64(106), task.Arg(NumArgs-1))

	got, ok := GetTask(SetTask(context.Background(), task))
	require.True(t, ok)
	require.Equal(t, task, got)

	_, ok = GetTask(context.Background())
	require.False(t, ok)
}
