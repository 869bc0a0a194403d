package syscalls

import (
	"context"

	"github.com/FlashLizard/os-pke-lab/abi"
	"github.com/FlashLizard/os-pke-lab/kernel"
	hclog "github.com/hashicorp/go-hclog"
)

func sysFork(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) kernel.Outcome {
	child, err := t.Kernel.Fork(t.Process)
	if err != nil {
		l.Warn("error forking process", "error", err)
		return failure()
	}

	return kernel.Completed(int64(child.Pid))
}

func sysWait(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) kernel.Outcome {
	pid := int(int64(args.Args.R0))

	reaped, blocked, err := t.Kernel.Wait(t.Process, pid)
	if err != nil {
		l.Debug("wait failed", "wait", pid, "error", err)
		return failure()
	}

	if blocked {
		return kernel.Rescheduled()
	}

	l.Trace("wait-reaped", "child", reaped)

	return kernel.Completed(int64(reaped))
}

func sysYield(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) kernel.Outcome {
	t.CompleteSyscall(0)
	t.Kernel.Yield(t.Process)

	return kernel.Rescheduled()
}

func init() {
	Syscalls[abi.SysFork] = sysFork
	Syscalls[abi.SysWait] = sysWait
	Syscalls[abi.SysYield] = sysYield
}
