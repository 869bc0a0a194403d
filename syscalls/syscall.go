package syscalls

import (
	"context"

	"github.com/FlashLizard/os-pke-lab/abi"
	"github.com/FlashLizard/os-pke-lab/kernel"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

var ErrUnknownSyscall = errors.New("unknown syscall")

type SysArgs struct {
	Index int
	Args  SyscallRequest
}

// SyscallRequest holds the argument registers a1..a7.
type SyscallRequest struct {
	R0, R1, R2, R3, R4, R5, R6 uint64
}

type Handler func(context.Context, hclog.Logger, *kernel.Task, SysArgs) kernel.Outcome

var Syscalls [abi.NumSyscalls]Handler

func argsOf(t *kernel.Task) SysArgs {
	return SysArgs{
		Index: int(t.Number()),
		Args: SyscallRequest{
			R0: t.Arg(0),
			R1: t.Arg(1),
			R2: t.Arg(2),
			R3: t.Arg(3),
			R4: t.Arg(4),
			R5: t.Arg(5),
			R6: t.Arg(6),
		},
	}
}

func failure() kernel.Outcome {
	return kernel.Completed(abi.Failure)
}
