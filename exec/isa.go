// Package exec implements the user mode CPU: a small RV64 flavoured
// instruction set executed directly against a process address space.
package exec

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// InstrSize is the width of every encoded instruction.
const InstrSize = 8

type Op uint8

const (
	OpNop Op = iota
	OpLi
	OpMv
	OpAdd
	OpAddi
	OpSub
	OpLd
	OpSd
	OpLb
	OpSb
	OpBeq
	OpBne
	OpBlt
	OpJal
	OpJalr
	OpEcall

	numOps
)

var opNames = [numOps]string{
	OpNop:   "nop",
	OpLi:    "li",
	OpMv:    "mv",
	OpAdd:   "add",
	OpAddi:  "addi",
	OpSub:   "sub",
	OpLd:    "ld",
	OpSd:    "sd",
	OpLb:    "lb",
	OpSb:    "sb",
	OpBeq:   "beq",
	OpBne:   "bne",
	OpBlt:   "blt",
	OpJal:   "jal",
	OpJalr:  "jalr",
	OpEcall: "ecall",
}

func (o Op) String() string {
	if o < numOps {
		return opNames[o]
	}

	return fmt.Sprintf("op(%d)", uint8(o))
}

// LookupOp maps a mnemonic to its opcode.
func LookupOp(name string) (Op, bool) {
	for i, n := range opNames {
		if n == name {
			return Op(i), true
		}
	}

	return 0, false
}

// Register numbers, RISC-V integer ABI names.
const (
	RegZero = iota
	RegRA
	RegSP
	RegGP
	RegTP
	RegT0
	RegT1
	RegT2
	RegS0
	RegS1
	RegA0
	RegA1
	RegA2
	RegA3
	RegA4
	RegA5
	RegA6
	RegA7
	RegS2
	RegS3
	RegS4
	RegS5
	RegS6
	RegS7
	RegS8
	RegS9
	RegS10
	RegS11
	RegT3
	RegT4
	RegT5
	RegT6

	NumRegs
)

// RegFP is the frame pointer, an alias of s0.
const RegFP = RegS0

var regNames = [NumRegs]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

func RegName(r uint8) string {
	if int(r) < NumRegs {
		return regNames[r]
	}

	return fmt.Sprintf("x%d", r)
}

// LookupReg accepts ABI names, "fp" and the raw x0..x31 form.
func LookupReg(name string) (uint8, bool) {
	if name == "fp" {
		return RegFP, true
	}

	for i, n := range regNames {
		if n == name {
			return uint8(i), true
		}
	}

	var n int
	if _, err := fmt.Sscanf(name, "x%d", &n); err == nil && n >= 0 && n < NumRegs && name == fmt.Sprintf("x%d", n) {
		return uint8(n), true
	}

	return 0, false
}

// Instr is one decoded instruction. Branch and jal immediates are byte
// offsets relative to the address of the instruction itself.
type Instr struct {
	Op  Op
	Rd  uint8
	Rs1 uint8
	Rs2 uint8
	Imm int32
}

var endianess = binary.LittleEndian

func (i Instr) Encode(b []byte) {
	b[0] = byte(i.Op)
	b[1] = i.Rd
	b[2] = i.Rs1
	b[3] = i.Rs2
	endianess.PutUint32(b[4:], uint32(i.Imm))
}

func Decode(b []byte) Instr {
	return Instr{
		Op:  Op(b[0]),
		Rd:  b[1],
		Rs1: b[2],
		Rs2: b[3],
		Imm: int32(endianess.Uint32(b[4:])),
	}
}

func (i Instr) String() string {
	var sb strings.Builder

	sb.WriteString(i.Op.String())

	switch i.Op {
	case OpLi:
		fmt.Fprintf(&sb, " %s, %d", RegName(i.Rd), i.Imm)
	case OpMv:
		fmt.Fprintf(&sb, " %s, %s", RegName(i.Rd), RegName(i.Rs1))
	case OpAdd, OpSub:
		fmt.Fprintf(&sb, " %s, %s, %s", RegName(i.Rd), RegName(i.Rs1), RegName(i.Rs2))
	case OpAddi:
		fmt.Fprintf(&sb, " %s, %s, %d", RegName(i.Rd), RegName(i.Rs1), i.Imm)
	case OpLd, OpLb:
		fmt.Fprintf(&sb, " %s, %d(%s)", RegName(i.Rd), i.Imm, RegName(i.Rs1))
	case OpSd, OpSb:
		fmt.Fprintf(&sb, " %s, %d(%s)", RegName(i.Rs2), i.Imm, RegName(i.Rs1))
	case OpBeq, OpBne, OpBlt:
		fmt.Fprintf(&sb, " %s, %s, %+d", RegName(i.Rs1), RegName(i.Rs2), i.Imm)
	case OpJal:
		fmt.Fprintf(&sb, " %s, %+d", RegName(i.Rd), i.Imm)
	case OpJalr:
		fmt.Fprintf(&sb, " %s, %d(%s)", RegName(i.Rd), i.Imm, RegName(i.Rs1))
	}

	return sb.String()
}
