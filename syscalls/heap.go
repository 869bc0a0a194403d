package syscalls

import (
	"context"

	"github.com/FlashLizard/os-pke-lab/abi"
	"github.com/FlashLizard/os-pke-lab/kernel"
	hclog "github.com/hashicorp/go-hclog"
)

func sysAllocatePage(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) kernel.Outcome {
	va, err := t.Kernel.AllocatePage(t.Process)
	if err != nil {
		l.Warn("error allocating heap page", "error", err)
		return failure()
	}

	return kernel.Completed(int64(va))
}

func sysFreePage(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) kernel.Outcome {
	va := args.Args.R0

	err := t.Kernel.FreePage(t.Process, va)
	if err != nil {
		l.Warn("error freeing heap page", "va", va, "error", err)
		return failure()
	}

	return kernel.Completed(0)
}

func init() {
	Syscalls[abi.SysAllocatePage] = sysAllocatePage
	Syscalls[abi.SysFreePage] = sysFreePage
}
