package asm

import "fmt"

// Opcode is the one-byte instruction tag that leads every emitted instruction.
type Opcode byte

const (
	HLT Opcode = iota
	LOAD
	ADD
	SUB
	MUL
	DIV
	JMP
	EQ
	NEQ
	GT
	LT
	GTE
	LTE
	JEQ
	AND
	OR
	NOT
	ALLOC
	PRINT
	SYSCALL
	// LW, SW and COPY are reserved ordinals: the grammar accepts the mnemonics
	// and the assembler will happily emit them, but the VM has no semantics
	// for them yet and Step reports UnrecognizedOpcode if one is executed.
	LW
	SW
	COPY

	// IGL is the sentinel for an unrecognized mnemonic. It never appears as a
	// successfully-parsed real instruction on the wire except when the source
	// program itself asks to execute garbage.
	IGL Opcode = 255
)

var opcodeNames = map[Opcode]string{
	HLT:     "hlt",
	LOAD:    "load",
	ADD:     "add",
	SUB:     "sub",
	MUL:     "mul",
	DIV:     "div",
	JMP:     "jmp",
	EQ:      "eq",
	NEQ:     "neq",
	GT:      "gt",
	LT:      "lt",
	GTE:     "gte",
	LTE:     "lte",
	JEQ:     "jeq",
	AND:     "and",
	OR:      "or",
	NOT:     "not",
	ALLOC:   "alloc",
	PRINT:   "print",
	SYSCALL: "syscall",
	LW:      "lw",
	SW:      "sw",
	COPY:    "copy",
	IGL:     "igl",
}

var namesToOpcode map[string]Opcode

func init() {
	namesToOpcode = make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		namesToOpcode[name] = op
	}
}

// OpcodeFromMnemonic resolves a case-insensitive mnemonic to an Opcode,
// returning IGL for anything unrecognized: an unknown mnemonic is a valid
// token that is only an error if it is executed.
func OpcodeFromMnemonic(mnemonic string) Opcode {
	if op, ok := namesToOpcode[lower(mnemonic)]; ok {
		return op
	}
	return IGL
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("opcode(%d)", byte(op))
}

// NumOperands reports how many operand tokens a fully-formed instruction for
// this opcode carries, independent of each operand's encoded width on the
// wire (the assembler's encodeToken decides those widths).
func (op Opcode) NumOperands() int {
	switch op {
	case HLT, IGL:
		return 0
	case JMP, ALLOC, PRINT:
		return 1
	case LOAD, NOT:
		return 2
	default:
		// ADD/SUB/MUL/DIV/EQ/NEQ/GT/LT/GTE/LTE/JEQ/AND/OR/SYSCALL/LW/SW/COPY
		return 3
	}
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
