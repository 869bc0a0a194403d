package kernel

import (
	"github.com/FlashLizard/os-pke-lab/asm"
	"github.com/FlashLizard/os-pke-lab/exec"
	"github.com/FlashLizard/os-pke-lab/memory"
	"github.com/FlashLizard/os-pke-lab/pkg/ilist"
)

// The syscall number travels in a0 and its arguments in a1..a7. The result
// is returned in a0.
const (
	numberReg = exec.RegA0
	resultReg = exec.RegA0
)

var argRegs = [...]int{
	exec.RegA1, exec.RegA2, exec.RegA3, exec.RegA4, exec.RegA5, exec.RegA6, exec.RegA7,
}

// NumArgs is the number of argument registers a syscall can read.
const NumArgs = len(argRegs)

type Status int

const (
	Free Status = iota
	Ready
	Running
	Blocked
	Zombie
)

func (s Status) String() string {
	switch s {
	case Free:
		return "FREE"
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Blocked:
		return "BLOCKED"
	case Zombie:
		return "ZOMBIE"
	default:
		return "UNKNOWN"
	}
}

// BlockEvent names what a BLOCKED process is waiting for.
type BlockEvent int

const (
	EventNone BlockEvent = iota
	EventWaitChild
)

// NoParent is the parent reference of a process nobody forked.
var NoParent = ProcRef{Slot: -1}

// ProcRef is a weak reference to a process slot. The generation guards
// against the slot having been reaped and handed to a new process.
type ProcRef struct {
	Slot int
	Gen  uint64
}

// HeapCursor tracks the user heap of one process: Top is the next address
// to grow into and Free holds reclaimed pages, most recently freed last.
type HeapCursor struct {
	Base uint64
	Top  uint64
	Free []uint64
}

func (h HeapCursor) clone() HeapCursor {
	h.Free = append([]uint64(nil), h.Free...)
	return h
}

// Pages is the number of pages the heap has grown by, mapped or not.
func (h *HeapCursor) Pages() int {
	return int((h.Top - h.Base) / memory.PageSize)
}

type Process struct {
	// Used by the run queue. Only linked while READY.
	ilist.Entry
	queued bool

	Kernel *Kernel

	// Pid is also the slot index in the process table.
	Pid int
	gen uint64

	status    Status
	TrapFrame exec.TrapFrame
	Mem       *memory.VirtualMemory
	Heap      HeapCursor
	Image     *asm.Image

	parent ProcRef

	blockEvent BlockEvent
	waitPid    int

	exitCode int
}

func (p *Process) Status() Status {
	return p.status
}

func (p *Process) ExitCode() int {
	return p.exitCode
}

func (p *Process) Ref() ProcRef {
	return ProcRef{Slot: p.Pid, Gen: p.gen}
}

// Live reports whether the process can still run or be woken.
func (p *Process) Live() bool {
	switch p.status {
	case Ready, Running, Blocked:
		return true
	default:
		return false
	}
}

func (p *Process) setStatus(s Status) {
	if p.Kernel != nil {
		p.Kernel.L.Trace("process-state", "pid", p.Pid, "from", p.status, "to", s)
	}

	p.status = s
}

// CompleteSyscall stores the result of the syscall the process trapped on.
func (p *Process) CompleteSyscall(result int64) {
	p.TrapFrame.SetReg(resultReg, uint64(result))
}

// rewind moves the process back onto the ecall it last executed, so the
// syscall runs again when the process resumes.
func (p *Process) rewind() {
	p.TrapFrame.Epc -= exec.InstrSize
}

func (p *Process) reset() {
	p.status = Free
	p.TrapFrame = exec.TrapFrame{}
	p.Mem = nil
	p.Heap = HeapCursor{}
	p.Image = nil
	p.parent = NoParent
	p.blockEvent = EventNone
	p.waitPid = 0
	p.exitCode = 0
}
