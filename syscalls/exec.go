package syscalls

import (
	"context"
	"fmt"

	"github.com/FlashLizard/os-pke-lab/abi"
	"github.com/FlashLizard/os-pke-lab/kernel"
	hclog "github.com/hashicorp/go-hclog"
)

func sysExit(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) kernel.Outcome {
	code := int(int64(args.Args.R0))

	msg := fmt.Sprintf("User exit with code:%d.", code)

	l.Info(msg)
	fmt.Fprintln(t.Kernel.Console(), msg)

	t.Kernel.Exit(t.Process, code)

	return kernel.Rescheduled()
}

func init() {
	Syscalls[abi.SysExit] = sysExit
}
