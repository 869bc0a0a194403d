package kernel

import (
	"github.com/FlashLizard/os-pke-lab/abi"
	"github.com/FlashLizard/os-pke-lab/asm"
	"github.com/FlashLizard/os-pke-lab/exec"
	"github.com/FlashLizard/os-pke-lab/memory"
	"github.com/pkg/errors"
)

const (
	codePerms  = memory.FlagRead | memory.FlagExec | memory.FlagUser
	dataPerms  = memory.FlagRead | memory.FlagWrite | memory.FlagUser
	stackPerms = memory.FlagRead | memory.FlagWrite | memory.FlagUser
)

// Spawn builds a fresh address space for img and queues a process with no
// parent to run it. The first process spawned is the init process whose
// exit code becomes the kernel's.
func (k *Kernel) Spawn(img *asm.Image) (*Process, error) {
	proc, err := k.procs.Alloc()
	if err != nil {
		return nil, err
	}

	mem, err := k.SetupMemory(img)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", img.Name)
	}

	proc.Mem = mem
	proc.Image = img
	proc.Heap = HeapCursor{Base: abi.UserHeapStart, Top: abi.UserHeapStart}
	proc.TrapFrame = exec.TrapFrame{Epc: img.Entry}
	proc.TrapFrame.SetReg(exec.RegSP, abi.UserStackTop)

	k.procs.claim(proc, NoParent)
	k.runq.Enqueue(proc)

	if k.init == NoParent {
		k.init = proc.Ref()
	}

	k.L.Info("process-spawn", "pid", proc.Pid, "image", img.Name, "entry", img.Entry)

	return proc, nil
}

// SetupMemory lays img out in a new address space: code, data, an empty
// heap and the user stack below abi.UserStackTop.
func (k *Kernel) SetupMemory(img *asm.Image) (*memory.VirtualMemory, error) {
	if img.DataBase+uint64(len(img.Data)) > abi.UserHeapStart || img.TextBase+uint64(len(img.Text)) > abi.UserHeapStart {
		return nil, ErrImageTooLarge
	}

	mem, err := memory.NewVirtualMemory(k.pool)
	if err != nil {
		return nil, err
	}

	err = k.layout(mem, img)
	if err != nil {
		mem.Destroy()
		return nil, err
	}

	return mem, nil
}

func (k *Kernel) layout(mem *memory.VirtualMemory, img *asm.Image) error {
	if err := loadSegment(mem, memory.SegCode, img.TextBase, img.Text, codePerms); err != nil {
		return err
	}

	if len(img.Data) > 0 {
		if err := loadSegment(mem, memory.SegData, img.DataBase, img.Data, dataPerms); err != nil {
			return err
		}
	}

	if _, err := mem.MapSegment(memory.SegHeap, abi.UserHeapStart, 0, heapPerms); err != nil {
		return err
	}

	pages := k.cfg.StackPages
	_, err := mem.MapSegment(memory.SegStack, abi.UserStackTop-uint64(pages)*memory.PageSize, pages, stackPerms)

	return err
}

func loadSegment(mem *memory.VirtualMemory, kind memory.SegmentKind, base uint64, contents []byte, perms memory.PageTableEntryFlag) error {
	pages := int(memory.PageRound(uint64(len(contents))) / memory.PageSize)

	if _, err := mem.MapSegment(kind, base, pages, perms); err != nil {
		return err
	}

	_, err := mem.WriteAt(contents, int64(base))
	return err
}
