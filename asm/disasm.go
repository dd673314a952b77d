package asm

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Disassemble decodes a code segment (the bytes after the header and
// read-only data) back into one human-readable "<offset>: <mnemonic>
// <operands>" line per instruction, over the variable-length (4/8/12-byte)
// encoding.
func Disassemble(code []byte) []string {
	var lines []string
	pc := 0
	for pc < len(code) {
		op := Opcode(code[pc])
		start := pc
		pc++

		var operands []string
		n := op.NumOperands()

		switch op {
		case LOAD:
			if pc >= len(code) {
				lines = append(lines, fmt.Sprintf("%d: %s <truncated>", start, op))
				return lines
			}
			reg := RegisterByte(code[pc])
			pc++
			operands = append(operands, describeRegister(reg))
			if reg.Kind() == KindReal {
				if pc+8 <= len(code) {
					bits := binary.BigEndian.Uint64(code[pc : pc+8])
					operands = append(operands, fmt.Sprintf("#%v", math.Float64frombits(bits)))
				}
				pc += 8
			} else {
				if pc+4 <= len(code) {
					v := int32(binary.BigEndian.Uint32(code[pc : pc+4]))
					operands = append(operands, fmt.Sprintf("#%d", v))
				}
				pc += 4
			}
			pc = padTo(start, pc)
		case PRINT:
			if pc+2 <= len(code) {
				offset := binary.BigEndian.Uint16(code[pc : pc+2])
				operands = append(operands, fmt.Sprintf("@%d", offset))
			}
			pc += 2
			pc = padTo(start, pc)
		default:
			for i := 0; i < n && pc < len(code); i++ {
				operands = append(operands, describeRegister(RegisterByte(code[pc])))
				pc++
			}
			pc = padTo(start, pc)
		}

		lines = append(lines, fmt.Sprintf("%d: %s %s", start, op, strings.Join(operands, " ")))
	}
	return lines
}

// padTo advances pc to the next 4/8/12-byte slot boundary relative to start,
// matching the assembler's padToSlotSize rounding.
func padTo(start, pc int) int {
	used := pc - start
	switch {
	case used <= 4:
		return start + 4
	case used <= 8:
		return start + 8
	default:
		return start + 12
	}
}

func describeRegister(r RegisterByte) string {
	switch r.Kind() {
	case KindReal:
		return fmt.Sprintf("$r%d", r.Index())
	case KindVector:
		return fmt.Sprintf("$v%d", r.Index())
	default:
		return fmt.Sprintf("$i%d", r.Index())
	}
}
