package syscalls

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/FlashLizard/os-pke-lab/abi"
	"github.com/FlashLizard/os-pke-lab/exec"
	"github.com/FlashLizard/os-pke-lab/kernel"
	"github.com/FlashLizard/os-pke-lab/memory"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// MaxPrint bounds the length of a single print.
const MaxPrint = 16 * memory.PageSize

const userRead = memory.FlagRead | memory.FlagUser

// copyIn reads n bytes at va from the user's view of its address space, one
// page at a time.
func copyIn(mem exec.Memory, va, n uint64) ([]byte, error) {
	out := make([]byte, 0, n)

	for n > 0 {
		chunk := memory.PageSize - memory.PageOffset(va)
		if chunk > n {
			chunk = n
		}

		b, err := mem.Project(va, chunk, userRead)
		if err != nil {
			return nil, err
		}

		out = append(out, b...)
		va += chunk
		n -= chunk
	}

	return out, nil
}

func sysPrint(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) kernel.Outcome {
	var (
		ptr = args.Args.R0
		sz  = args.Args.R1
	)

	if sz > MaxPrint {
		l.Warn("print too long", "size", sz)
		return failure()
	}

	data, err := copyIn(t.Mem, ptr, sz)
	if err != nil {
		l.Error("error reading data from userspace", "va", ptr, "error", err)
		return kernel.Fatal(errors.Wrapf(err, "print from %#x", ptr))
	}

	if _, err := t.Kernel.Console().Write(data); err != nil {
		l.Error("error writing to console", "error", err)
		return failure()
	}

	return kernel.Completed(0)
}

// Frame layout produced by the standard prologue: the return address at
// fp-8 and the caller's frame pointer at fp-16.
const (
	raOffset = 8
	fpOffset = 16
)

func readWord(mem exec.Memory, va uint64) (uint64, bool) {
	b, err := copyIn(mem, va, 8)
	if err != nil {
		return 0, false
	}

	return binary.LittleEndian.Uint64(b), true
}

// sysPrintBacktrace prints the functions on the caller's frame pointer
// chain, innermost first, up to depth frames or main.
func sysPrintBacktrace(ctx context.Context, l hclog.Logger, t *kernel.Task, args SysArgs) kernel.Outcome {
	depth := int(int64(args.Args.R0))

	if t.Image == nil {
		return failure()
	}

	var (
		fp      = t.TrapFrame.Reg(exec.RegFP)
		console = t.Kernel.Console()
		printed int64
	)

	for i := 0; i < depth && fp >= fpOffset; i++ {
		ra, ok := readWord(t.Mem, fp-raOffset)
		if !ok {
			break
		}

		prev, ok := readWord(t.Mem, fp-fpOffset)
		if !ok {
			break
		}

		if sym, ok := t.Image.Symbols.Lookup(ra); ok {
			fmt.Fprintf(console, "%s\n", sym.Name)
			printed++

			if sym.Name == "main" {
				break
			}
		} else {
			l.Trace("backtrace-no-symbol", "ra", ra)
		}

		fp = prev
	}

	return kernel.Completed(printed)
}

func init() {
	Syscalls[abi.SysPrint] = sysPrint
	Syscalls[abi.SysPrintBacktrace] = sysPrintBacktrace
}
