// Package asm assembles the line oriented assembly dialect user programs are
// written in into loadable images.
package asm

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"sort"
	"strconv"
	"strings"

	"github.com/FlashLizard/os-pke-lab/exec"
	"github.com/FlashLizard/os-pke-lab/memory"
	"github.com/pkg/errors"
	"github.com/viant/parsly"
)

// TextBase is where the first instruction of every image is placed.
const TextBase = 0x10000

var (
	ErrSyntax        = errors.New("syntax error")
	ErrUnknownLabel  = errors.New("unknown label")
	ErrDuplicate     = errors.New("duplicate label")
	ErrBadOperands   = errors.New("bad operands")
	ErrUnknownOpcode = errors.New("unknown instruction")
)

type section int

const (
	sectionText section = iota
	sectionData
)

type operandKind int

const (
	operandReg operandKind = iota
	operandImm
	operandLabel
	operandMem
	operandString
)

type operand struct {
	kind  operandKind
	reg   uint8
	imm   int64
	label string
	str   string
}

type stmt struct {
	line    int
	section section
	offset  uint64
	op      string
	args    []operand
}

type labelRef struct {
	section section
	offset  uint64
}

type funcRange struct {
	name       string
	start, end uint64
	open       bool
}

type assembler struct {
	name   string
	stmts  []*stmt
	labels map[string]labelRef
	funcs  []*funcRange

	textSize uint64
	dataSize uint64

	dataBase uint64
}

// Assemble turns source into an Image. name is only used in error messages.
func Assemble(name string, src []byte) (*Image, error) {
	a := &assembler{
		name:   name,
		labels: make(map[string]labelRef),
	}

	if err := a.parse(src); err != nil {
		return nil, err
	}

	return a.emit()
}

func (a *assembler) errorf(line int, err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, "%s:%d: "+format, append([]interface{}{a.name, line}, args...)...)
}

func (a *assembler) parse(src []byte) error {
	sec := sectionText

	scanner := bufio.NewScanner(bytes.NewReader(src))

	var lineNo int
	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		st, labels, err := a.parseLine(lineNo, line)
		if err != nil {
			return err
		}

		for _, l := range labels {
			if err := a.define(lineNo, l, sec); err != nil {
				return err
			}
		}

		if st == nil {
			continue
		}

		switch st.op {
		case ".text":
			sec = sectionText
			continue
		case ".data":
			sec = sectionData
			continue
		case ".func":
			if len(st.args) != 1 || st.args[0].kind != operandLabel {
				return a.errorf(lineNo, ErrBadOperands, ".func needs a name")
			}
			fn := st.args[0].label
			if err := a.define(lineNo, fn, sectionText); err != nil {
				return err
			}
			a.funcs = append(a.funcs, &funcRange{name: fn, start: a.textSize, open: true})
			continue
		case ".endfunc":
			if len(a.funcs) == 0 || !a.funcs[len(a.funcs)-1].open {
				return a.errorf(lineNo, ErrSyntax, ".endfunc without .func")
			}
			fn := a.funcs[len(a.funcs)-1]
			fn.end = a.textSize
			fn.open = false
			continue
		}

		st.section = sec

		if sec == sectionText {
			if strings.HasPrefix(st.op, ".") {
				return a.errorf(lineNo, ErrSyntax, "directive %s outside .data", st.op)
			}

			st.offset = a.textSize
			a.textSize += exec.InstrSize
		} else {
			sz, align, err := a.dataLayout(st)
			if err != nil {
				return err
			}

			if align > 1 {
				a.dataSize = (a.dataSize + align - 1) &^ (align - 1)
			}

			// A label on the same line names the aligned position.
			for _, l := range labels {
				a.labels[l] = labelRef{section: sectionData, offset: a.dataSize}
			}

			st.offset = a.dataSize
			a.dataSize += sz
		}

		a.stmts = append(a.stmts, st)
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	for _, fn := range a.funcs {
		if fn.open {
			fn.end = a.textSize
		}
	}

	return nil
}

func (a *assembler) define(line int, name string, sec section) error {
	off := a.textSize
	if sec == sectionData {
		off = a.dataSize
	}

	ref := labelRef{section: sec, offset: off}

	// ".func f" followed by "f:" names the same address twice.
	if prev, ok := a.labels[name]; ok && prev != ref {
		return a.errorf(line, ErrDuplicate, "%s", name)
	}

	a.labels[name] = ref
	return nil
}

// parseLine splits a line into leading labels and an optional statement.
func (a *assembler) parseLine(lineNo int, line string) (*stmt, []string, error) {
	cur := parsly.NewCursor(a.name, []byte(line), 0)

	var labels []string

	for {
		m := cur.MatchAfterOptional(whitespaceToken, identifierToken, commentToken)
		switch m.Code {
		case commentCode, parsly.EOF:
			return nil, labels, nil
		case identifierCode:
		default:
			return nil, nil, a.errorf(lineNo, ErrSyntax, "%s", cur.NewError(identifierToken))
		}

		ident := m.Text(cur)

		if cur.MatchAfterOptional(whitespaceToken, colonToken).Code == colonCode {
			labels = append(labels, ident)
			continue
		}

		args, err := a.parseOperands(lineNo, cur)
		if err != nil {
			return nil, nil, err
		}

		return &stmt{line: lineNo, op: strings.ToLower(ident), args: args}, labels, nil
	}
}

func (a *assembler) parseOperands(lineNo int, cur *parsly.Cursor) ([]operand, error) {
	var args []operand

	for {
		m := cur.MatchAfterOptional(whitespaceToken, numberToken, identifierToken, stringToken, openParenToken, commentToken)

		var op operand

		switch m.Code {
		case parsly.EOF, commentCode:
			if len(args) > 0 {
				return nil, a.errorf(lineNo, ErrSyntax, "dangling comma")
			}
			return nil, nil
		case numberCode:
			n, err := strconv.ParseInt(m.Text(cur), 0, 64)
			if err != nil {
				return nil, a.errorf(lineNo, ErrSyntax, "%s", err)
			}
			op = operand{kind: operandImm, imm: n}

			if cur.MatchAfterOptional(whitespaceToken, openParenToken).Code == openParenCode {
				reg, err := a.parseBase(lineNo, cur)
				if err != nil {
					return nil, err
				}
				op = operand{kind: operandMem, imm: n, reg: reg}
			}
		case openParenCode:
			reg, err := a.parseBase(lineNo, cur)
			if err != nil {
				return nil, err
			}
			op = operand{kind: operandMem, reg: reg}
		case identifierCode:
			text := m.Text(cur)
			if reg, ok := exec.LookupReg(text); ok {
				op = operand{kind: operandReg, reg: reg}
			} else {
				op = operand{kind: operandLabel, label: text}
			}
		case stringCode:
			s, err := strconv.Unquote(m.Text(cur))
			if err != nil {
				return nil, a.errorf(lineNo, ErrSyntax, "%s", err)
			}
			op = operand{kind: operandString, str: s}
		default:
			return nil, a.errorf(lineNo, ErrSyntax, "%s", cur.NewError(numberToken, identifierToken, stringToken))
		}

		args = append(args, op)

		m = cur.MatchAfterOptional(whitespaceToken, commaToken, commentToken)
		switch m.Code {
		case commaCode:
			continue
		case commentCode, parsly.EOF:
			return args, nil
		default:
			return nil, a.errorf(lineNo, ErrSyntax, "%s", cur.NewError(commaToken))
		}
	}
}

func (a *assembler) parseBase(lineNo int, cur *parsly.Cursor) (uint8, error) {
	m := cur.MatchAfterOptional(whitespaceToken, identifierToken)
	if m.Code != identifierCode {
		return 0, a.errorf(lineNo, ErrSyntax, "%s", cur.NewError(identifierToken))
	}

	reg, ok := exec.LookupReg(m.Text(cur))
	if !ok {
		return 0, a.errorf(lineNo, ErrBadOperands, "%q is not a register", m.Text(cur))
	}

	if cur.MatchAfterOptional(whitespaceToken, closeParenToken).Code != closeParenCode {
		return 0, a.errorf(lineNo, ErrSyntax, "%s", cur.NewError(closeParenToken))
	}

	return reg, nil
}

// dataLayout reports the size and alignment of a data directive.
func (a *assembler) dataLayout(st *stmt) (uint64, uint64, error) {
	switch st.op {
	case ".string":
		if len(st.args) != 1 || st.args[0].kind != operandString {
			return 0, 0, a.errorf(st.line, ErrBadOperands, ".string needs one literal")
		}
		return uint64(len(st.args[0].str) + 1), 1, nil
	case ".byte":
		return uint64(len(st.args)), 1, nil
	case ".dword":
		return uint64(8 * len(st.args)), 8, nil
	case ".space":
		if len(st.args) != 1 || st.args[0].kind != operandImm || st.args[0].imm < 0 {
			return 0, 0, a.errorf(st.line, ErrBadOperands, ".space needs a size")
		}
		return uint64(st.args[0].imm), 1, nil
	case ".align":
		if len(st.args) != 1 || st.args[0].kind != operandImm || st.args[0].imm <= 0 {
			return 0, 0, a.errorf(st.line, ErrBadOperands, ".align needs a size")
		}
		return 0, uint64(st.args[0].imm), nil
	default:
		return 0, 0, a.errorf(st.line, ErrUnknownOpcode, "%s in .data", st.op)
	}
}

func (a *assembler) resolve(line int, name string) (uint64, error) {
	ref, ok := a.labels[name]
	if !ok {
		return 0, a.errorf(line, ErrUnknownLabel, "%s", name)
	}

	if ref.section == sectionData {
		return a.dataBase + ref.offset, nil
	}

	return TextBase + ref.offset, nil
}

func (a *assembler) emit() (*Image, error) {
	a.dataBase = memory.PageRound(TextBase + a.textSize)
	if a.textSize == 0 {
		a.dataBase = TextBase + memory.PageSize
	}

	img := &Image{
		Name:     a.name,
		TextBase: TextBase,
		Text:     make([]byte, a.textSize),
		DataBase: a.dataBase,
		Data:     make([]byte, a.dataSize),
		Labels:   make(map[string]uint64),
	}

	for name := range a.labels {
		addr, _ := a.resolve(0, name)
		img.Labels[name] = addr
	}

	for _, st := range a.stmts {
		var err error

		if st.section == sectionText {
			err = a.emitInstr(img, st)
		} else {
			err = a.emitData(img, st)
		}

		if err != nil {
			return nil, err
		}
	}

	for _, fn := range a.funcs {
		img.Symbols = append(img.Symbols, Symbol{
			Name:  fn.name,
			Start: TextBase + fn.start,
			Size:  fn.end - fn.start,
		})
	}

	sort.Slice(img.Symbols, func(i, j int) bool {
		return img.Symbols[i].Start < img.Symbols[j].Start
	})

	img.Entry = TextBase
	for _, name := range []string{"_start", "main"} {
		if addr, ok := img.Labels[name]; ok {
			img.Entry = addr
			break
		}
	}

	return img, nil
}

func (a *assembler) emitData(img *Image, st *stmt) error {
	out := img.Data[st.offset:]

	switch st.op {
	case ".string":
		copy(out, st.args[0].str)
	case ".byte":
		for i, arg := range st.args {
			if arg.kind != operandImm {
				return a.errorf(st.line, ErrBadOperands, ".byte takes numbers")
			}
			out[i] = byte(arg.imm)
		}
	case ".dword":
		for i, arg := range st.args {
			var v uint64

			switch arg.kind {
			case operandImm:
				v = uint64(arg.imm)
			case operandLabel:
				addr, err := a.resolve(st.line, arg.label)
				if err != nil {
					return err
				}
				v = addr
			default:
				return a.errorf(st.line, ErrBadOperands, ".dword takes numbers or labels")
			}

			binary.LittleEndian.PutUint64(out[i*8:], v)
		}
	}

	return nil
}

// value resolves an immediate or label operand to a number.
func (a *assembler) value(st *stmt, arg operand) (int64, error) {
	switch arg.kind {
	case operandImm:
		return arg.imm, nil
	case operandLabel:
		addr, err := a.resolve(st.line, arg.label)
		return int64(addr), err
	default:
		return 0, a.errorf(st.line, ErrBadOperands, "%s expects a number or label", st.op)
	}
}

// target resolves a branch target to an offset from the instruction.
func (a *assembler) target(st *stmt, arg operand) (int32, error) {
	switch arg.kind {
	case operandImm:
		return int32(arg.imm), nil
	case operandLabel:
		addr, err := a.resolve(st.line, arg.label)
		if err != nil {
			return 0, err
		}
		return int32(int64(addr) - int64(TextBase+st.offset)), nil
	default:
		return 0, a.errorf(st.line, ErrBadOperands, "%s expects a label or offset", st.op)
	}
}

func kinds(args []operand, want ...operandKind) bool {
	if len(args) != len(want) {
		return false
	}

	for i, k := range want {
		if args[i].kind != k {
			return false
		}
	}

	return true
}

func (a *assembler) emitInstr(img *Image, st *stmt) error {
	var (
		in   exec.Instr
		args = st.args
		bad  = errors.Wrapf(ErrBadOperands, "%s:%d: %s", a.name, st.line, st.op)
	)

	switch st.op {
	case "nop", "ecall":
		if len(args) != 0 {
			return bad
		}
		in.Op, _ = exec.LookupOp(st.op)
	case "li", "la":
		if len(args) != 2 || args[0].kind != operandReg {
			return bad
		}
		v, err := a.value(st, args[1])
		if err != nil {
			return err
		}
		if v != int64(int32(v)) {
			return a.errorf(st.line, ErrBadOperands, "immediate %d out of range", v)
		}
		in = exec.Instr{Op: exec.OpLi, Rd: args[0].reg, Imm: int32(v)}
	case "mv":
		if !kinds(args, operandReg, operandReg) {
			return bad
		}
		in = exec.Instr{Op: exec.OpMv, Rd: args[0].reg, Rs1: args[1].reg}
	case "add", "sub":
		if !kinds(args, operandReg, operandReg, operandReg) {
			return bad
		}
		in.Op, _ = exec.LookupOp(st.op)
		in.Rd, in.Rs1, in.Rs2 = args[0].reg, args[1].reg, args[2].reg
	case "addi":
		if !kinds(args, operandReg, operandReg, operandImm) {
			return bad
		}
		in = exec.Instr{Op: exec.OpAddi, Rd: args[0].reg, Rs1: args[1].reg, Imm: int32(args[2].imm)}
	case "ld", "lb":
		if !kinds(args, operandReg, operandMem) {
			return bad
		}
		in.Op, _ = exec.LookupOp(st.op)
		in.Rd, in.Rs1, in.Imm = args[0].reg, args[1].reg, int32(args[1].imm)
	case "sd", "sb":
		if !kinds(args, operandReg, operandMem) {
			return bad
		}
		in.Op, _ = exec.LookupOp(st.op)
		in.Rs2, in.Rs1, in.Imm = args[0].reg, args[1].reg, int32(args[1].imm)
	case "beq", "bne", "blt":
		if len(args) != 3 || args[0].kind != operandReg || args[1].kind != operandReg {
			return bad
		}
		off, err := a.target(st, args[2])
		if err != nil {
			return err
		}
		in.Op, _ = exec.LookupOp(st.op)
		in.Rs1, in.Rs2, in.Imm = args[0].reg, args[1].reg, off
	case "jal", "j", "call":
		rd := uint8(exec.RegRA)
		if st.op == "j" {
			rd = exec.RegZero
		}

		if st.op == "jal" && len(args) == 2 && args[0].kind == operandReg {
			rd = args[0].reg
			args = args[1:]
		}

		if len(args) != 1 {
			return bad
		}

		off, err := a.target(st, args[0])
		if err != nil {
			return err
		}
		in = exec.Instr{Op: exec.OpJal, Rd: rd, Imm: off}
	case "jalr":
		switch {
		case kinds(args, operandReg, operandMem):
			in = exec.Instr{Op: exec.OpJalr, Rd: args[0].reg, Rs1: args[1].reg, Imm: int32(args[1].imm)}
		case kinds(args, operandReg):
			in = exec.Instr{Op: exec.OpJalr, Rd: exec.RegRA, Rs1: args[0].reg}
		default:
			return bad
		}
	case "ret":
		if len(args) != 0 {
			return bad
		}
		in = exec.Instr{Op: exec.OpJalr, Rd: exec.RegZero, Rs1: exec.RegRA}
	default:
		return a.errorf(st.line, ErrUnknownOpcode, "%s", st.op)
	}

	in.Encode(img.Text[st.offset:])
	return nil
}
