package exec

import (
	"context"
	"fmt"

	"github.com/FlashLizard/os-pke-lab/memory"
)

// TrapFrame holds the general purpose registers and the program counter of a
// suspended process.
type TrapFrame struct {
	Regs [NumRegs]uint64
	Epc  uint64
}

func (tf *TrapFrame) Reg(r int) uint64 {
	return tf.Regs[r]
}

func (tf *TrapFrame) SetReg(r int, v uint64) {
	if r != RegZero {
		tf.Regs[r] = v
	}
}

// Memory is the view of an address space the CPU needs. Accesses are
// checked against the permission bits of the page they touch.
type Memory interface {
	Project(va, sz uint64, access memory.PageTableEntryFlag) ([]byte, error)
}

type TrapKind int

const (
	TrapSyscall TrapKind = iota
	TrapTimer
	TrapFault
	TrapIllegal
	TrapCanceled
)

func (k TrapKind) String() string {
	switch k {
	case TrapSyscall:
		return "syscall"
	case TrapTimer:
		return "timer"
	case TrapFault:
		return "fault"
	case TrapIllegal:
		return "illegal-instruction"
	case TrapCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Trap reports why Run stopped. Epc in the trap frame points at the
// instruction that trapped; for TrapTimer it points at the next instruction
// to execute.
type Trap struct {
	Kind TrapKind
	Addr uint64
	Err  error

	// Used is the number of instructions of the timer slice spent when
	// the trap was raised.
	Used int
}

func (t Trap) Error() string {
	if t.Err != nil {
		return fmt.Sprintf("%s at %#x: %s", t.Kind, t.Addr, t.Err)
	}

	return fmt.Sprintf("%s at %#x", t.Kind, t.Addr)
}

const (
	fetchAccess = memory.FlagExec | memory.FlagUser
	loadAccess  = memory.FlagRead | memory.FlagUser
	storeAccess = memory.FlagWrite | memory.FlagUser

	cancelCheck = 1024
)

// Machine executes user instructions. It holds no per-process state, the
// trap frame and memory are supplied on every Run.
type Machine struct {
	// Quantum is the number of instructions executed before a timer trap.
	// Zero disables the timer.
	Quantum int

	// Retired counts executed instructions across all runs.
	Retired uint64
}

// Run executes instructions starting at tf.Epc until something traps.
// used is the part of the current timer slice already spent, so a slice
// carries across syscalls; the trap reports the slice spent so far in Used.
func (m *Machine) Run(ctx context.Context, tf *TrapFrame, mem Memory, used int) Trap {
	trap := m.run(ctx, tf, mem, &used)
	trap.Used = used

	return trap
}

func (m *Machine) run(ctx context.Context, tf *TrapFrame, mem Memory, steps *int) Trap {
	for n := 0; ; n++ {
		if m.Quantum > 0 && *steps >= m.Quantum {
			return Trap{Kind: TrapTimer, Addr: tf.Epc}
		}

		if n%cancelCheck == 0 && ctx.Err() != nil {
			return Trap{Kind: TrapCanceled, Addr: tf.Epc, Err: ctx.Err()}
		}

		pc := tf.Epc

		raw, err := mem.Project(pc, InstrSize, fetchAccess)
		if err != nil {
			return Trap{Kind: TrapFault, Addr: pc, Err: err}
		}

		in := Decode(raw)

		if in.Op == OpEcall {
			return Trap{Kind: TrapSyscall, Addr: pc}
		}

		if trap, ok := m.step(tf, mem, in); !ok {
			return trap
		}

		*steps++
		m.Retired++
	}
}

func (m *Machine) step(tf *TrapFrame, mem Memory, in Instr) (Trap, bool) {
	var (
		pc   = tf.Epc
		next = pc + InstrSize
		rs1  = tf.Regs[in.Rs1&31]
		rs2  = tf.Regs[in.Rs2&31]
		imm  = uint64(int64(in.Imm))
	)

	if in.Rd >= NumRegs || in.Rs1 >= NumRegs || in.Rs2 >= NumRegs {
		return Trap{Kind: TrapIllegal, Addr: pc}, false
	}

	switch in.Op {
	case OpNop:
	case OpLi:
		tf.SetReg(int(in.Rd), imm)
	case OpMv:
		tf.SetReg(int(in.Rd), rs1)
	case OpAdd:
		tf.SetReg(int(in.Rd), rs1+rs2)
	case OpAddi:
		tf.SetReg(int(in.Rd), rs1+imm)
	case OpSub:
		tf.SetReg(int(in.Rd), rs1-rs2)
	case OpLd, OpLb:
		sz := uint64(8)
		if in.Op == OpLb {
			sz = 1
		}

		addr := rs1 + imm
		b, err := mem.Project(addr, sz, loadAccess)
		if err != nil {
			return Trap{Kind: TrapFault, Addr: addr, Err: err}, false
		}

		if sz == 8 {
			tf.SetReg(int(in.Rd), endianess.Uint64(b))
		} else {
			tf.SetReg(int(in.Rd), uint64(b[0]))
		}
	case OpSd, OpSb:
		sz := uint64(8)
		if in.Op == OpSb {
			sz = 1
		}

		addr := rs1 + imm
		b, err := mem.Project(addr, sz, storeAccess)
		if err != nil {
			return Trap{Kind: TrapFault, Addr: addr, Err: err}, false
		}

		if sz == 8 {
			endianess.PutUint64(b, rs2)
		} else {
			b[0] = byte(rs2)
		}
	case OpBeq:
		if rs1 == rs2 {
			next = pc + imm
		}
	case OpBne:
		if rs1 != rs2 {
			next = pc + imm
		}
	case OpBlt:
		if int64(rs1) < int64(rs2) {
			next = pc + imm
		}
	case OpJal:
		tf.SetReg(int(in.Rd), next)
		next = pc + imm
	case OpJalr:
		tf.SetReg(int(in.Rd), next)
		next = (rs1 + imm) &^ 1
	default:
		return Trap{Kind: TrapIllegal, Addr: pc}, false
	}

	tf.Epc = next

	return Trap{}, true
}
