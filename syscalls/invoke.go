package syscalls

import (
	"context"

	"github.com/FlashLizard/os-pke-lab/abi"
	"github.com/FlashLizard/os-pke-lab/kernel"
	"github.com/FlashLizard/os-pke-lab/tracing"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

type Invoker struct {
	Kernel *kernel.Kernel
	L      hclog.Logger
}

// Install creates an Invoker for k and registers it as k's dispatcher.
func Install(k *kernel.Kernel) *Invoker {
	i := &Invoker{
		Kernel: k,
		L:      k.L.Named("syscall"),
	}

	k.SetDispatcher(i)

	return i
}

func (i *Invoker) InvokeSyscall(ctx context.Context, t *kernel.Task) kernel.Outcome {
	args := argsOf(t)

	var f Handler
	if args.Index >= 0 && args.Index < len(Syscalls) {
		f = Syscalls[args.Index]
	}

	if f == nil {
		i.L.Error("unknown syscall", "pid", t.Pid, "number", args.Index)
		return kernel.Fatal(errors.Wrapf(ErrUnknownSyscall, "number %d", args.Index))
	}

	name := abi.SyscallNames[args.Index]

	ctx, span := tracing.StartSpan(ctx, "syscall."+name)
	defer span.End()

	span.SetInt("pid", int64(t.Pid))

	l := i.L.With("pid", t.Pid)
	l.Trace("syscall-enter", "name", name, "a1", args.Args.R0, "a2", args.Args.R1)

	out := f(ctx, l, t, args)

	if out.Scheduled() {
		span.SetString("outcome", "scheduled")
	} else {
		span.SetInt("result", out.Result())
	}

	span.SetStatus(out.Err())

	return out
}
