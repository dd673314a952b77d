package vm

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"runtime/debug"
	"strconv"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"dovm/asm"
)

// Magic is the 4-byte image signature, ASCII "DOVM".
var Magic = [4]byte{'D', 'O', 'V', 'M'}

const numRegisters = 32

// VM is a register-based virtual machine owning three 32-entry register
// files, a program byte vector, a grow-only heap, read-only data, and a
// program counter.
//
// A VM instance owns all of its state exclusively for its lifetime and holds
// no package-level mutable state; constructing distinct VMs for concurrent
// use is safe, but a single VM must not be driven from more than one
// goroutine at a time.
type VM struct {
	IRegisters [numRegisters]int32
	RRegisters [numRegisters]float64
	VRegisters [numRegisters][]float64

	program   []byte
	heap      []byte
	roData    []byte
	pc        int
	codeStart int

	halted bool
	Log    *logrus.Logger
}

// New constructs a VM with an optional logger. A nil logger disables the
// one warn-level log path (real→int truncation) rather than panicking.
func New(log *logrus.Logger) *VM {
	return &VM{Log: log}
}

// SetBytecode validates the header magic, stores the program bytes, slices
// out the read-only segment per the declared ro_len, and positions the
// program counter at the first code byte.
func (v *VM) SetBytecode(image []byte) error {
	if len(image) < asm.HeaderSize {
		return errors.New("invalid bytecode: image shorter than header")
	}
	if image[0] != Magic[0] || image[1] != Magic[1] || image[2] != Magic[2] || image[3] != Magic[3] {
		return errors.Errorf("invalid bytecode: bad magic %v", image[0:4])
	}

	roLen := binary.BigEndian.Uint32(image[4:8])
	roEnd := asm.HeaderSize + int(roLen)
	if roEnd > len(image) {
		return errors.New("invalid bytecode: ro_len exceeds image length")
	}

	v.program = image
	v.roData = image[asm.HeaderSize:roEnd]
	v.codeStart = roEnd
	v.pc = roEnd
	v.halted = false
	return nil
}

// PC returns the current program-counter byte offset.
func (v *VM) PC() int { return v.pc }

// Halted reports whether the last Step saw HLT.
func (v *VM) Halted() bool { return v.halted }

// Heap returns the current heap contents.
func (v *VM) Heap() []byte { return v.heap }

// ROData returns the read-only data segment.
func (v *VM) ROData() []byte { return v.roData }

// Code returns the code segment as loaded by SetBytecode, independent of
// how far PC has advanced.
func (v *VM) Code() []byte { return v.program[v.codeStart:] }

// Run repeatedly calls Step until it halts or errors. The garbage collector
// is disabled for the duration of the hot loop, restored on return:
// allocation inside Step is limited to heap growth from ALLOC, the result
// slices of vector operations and error values, so the collector has little
// useful to do between opcodes and its pauses mostly cost time.
func (v *VM) Run() error {
	gcPercent := 100
	if key, ok := os.LookupEnv("GOGC"); ok {
		if parsed, err := strconv.ParseInt(key, 10, 32); err == nil {
			gcPercent = int(parsed)
		}
	}
	debug.SetGCPercent(-1)
	defer debug.SetGCPercent(gcPercent)

	for {
		halted, err := v.Step()
		if err != nil {
			return err
		}
		if halted {
			return nil
		}
	}
}

// Step decodes and executes exactly one instruction, returning (true, nil)
// on HLT. After a non-jumping instruction succeeds, PC points at the next
// opcode byte, past any zero padding in the instruction's slot. On error, PC
// has already moved past the opcode byte and whatever operand bytes were read
// before the fault was found, so it no longer points at the faulting
// instruction.
func (v *VM) Step() (bool, error) {
	if v.pc >= len(v.program) {
		return false, errors.New("ran out of program to run")
	}

	start := v.pc
	op := asm.Opcode(v.program[v.pc])
	v.pc++

	// Skip the zero padding that fills each instruction's 4/8/12-byte slot.
	padded := func(err error) (bool, error) {
		if err == nil {
			v.pc = start + (v.pc-start+3)/4*4
		}
		return false, err
	}

	switch op {
	case asm.HLT:
		fmt.Println("Halting")
		v.halted = true
		return true, nil

	case asm.LOAD:
		return padded(v.execLoad())

	case asm.ADD, asm.SUB, asm.MUL, asm.DIV:
		return false, v.execArith(op)

	case asm.JMP:
		target := v.nextRegisterByte()
		if err := v.checkIndex(target); err != nil {
			return false, err
		}
		v.pc = int(v.IRegisters[target.Index()])
		return false, nil

	case asm.EQ, asm.NEQ, asm.GT, asm.LT, asm.GTE, asm.LTE:
		return false, v.execCompare(op)

	case asm.JEQ:
		return false, v.execJeq()

	case asm.AND, asm.OR:
		return false, v.execLogic(op)

	case asm.NOT:
		return padded(v.execNot())

	case asm.ALLOC:
		return padded(v.execAlloc())

	case asm.PRINT:
		return padded(v.execPrint())

	case asm.SYSCALL:
		return false, v.execSyscall()

	case asm.LW, asm.SW, asm.COPY:
		return false, errors.Errorf("unrecognized opcode: %s is reserved and not implemented", op)

	default:
		return false, errors.Errorf("unrecognized opcode '%s'", op)
	}
}

func (v *VM) nextByte() byte {
	b := v.program[v.pc]
	v.pc++
	return b
}

func (v *VM) nextRegisterByte() asm.RegisterByte {
	return asm.RegisterByte(v.nextByte())
}

func (v *VM) nextUint16() uint16 {
	b := binary.BigEndian.Uint16(v.program[v.pc : v.pc+2])
	v.pc += 2
	return b
}

func (v *VM) nextInt32() int32 {
	b := int32(binary.BigEndian.Uint32(v.program[v.pc : v.pc+4]))
	v.pc += 4
	return b
}

func (v *VM) nextFloat64() float64 {
	bits := binary.BigEndian.Uint64(v.program[v.pc : v.pc+8])
	v.pc += 8
	return math.Float64frombits(bits)
}

// checkIndex rejects a register reference whose index falls outside the
// 32-entry register files. The on-wire encoding reserves 6 bits for the
// index (0..63), so a syntactically valid operand can still name a register
// that does not exist.
func (v *VM) checkIndex(reg asm.RegisterByte) error {
	if int(reg.Index()) >= numRegisters {
		return errors.Errorf("register index %d out of range (max %d)", reg.Index(), numRegisters-1)
	}
	return nil
}

// getRegister reads the current value out of the register file addressed by
// reg, independent of whether it will be used as a source or destination.
func (v *VM) getRegister(reg asm.RegisterByte) (Register, error) {
	if err := v.checkIndex(reg); err != nil {
		return Register{}, err
	}
	switch reg.Kind() {
	case asm.KindReal:
		return RealRegister(v.RRegisters[reg.Index()]), nil
	case asm.KindVector:
		return VectorRegister(v.VRegisters[reg.Index()]), nil
	default:
		return IntRegister(v.IRegisters[reg.Index()]), nil
	}
}

func (v *VM) setIntRegister(reg asm.RegisterByte, val int32) error {
	if err := v.checkIndex(reg); err != nil {
		return err
	}
	v.IRegisters[reg.Index()] = val
	return nil
}

func (v *VM) setRealRegister(reg asm.RegisterByte, val float64) error {
	if err := v.checkIndex(reg); err != nil {
		return err
	}
	v.RRegisters[reg.Index()] = val
	return nil
}

func (v *VM) setVectorRegister(reg asm.RegisterByte, val []float64) error {
	if err := v.checkIndex(reg); err != nil {
		return err
	}
	v.VRegisters[reg.Index()] = val
	return nil
}

func (v *VM) execLoad() error {
	reg := v.nextRegisterByte()
	switch reg.Kind() {
	case asm.KindInt:
		val := v.nextInt32()
		return v.setIntRegister(reg, val)
	case asm.KindReal:
		val := v.nextFloat64()
		return v.setRealRegister(reg, val)
	default:
		return errors.New("type mismatch: LOAD into a vector register is undefined")
	}
}

func (v *VM) execAlloc() error {
	reg := v.nextRegisterByte()
	if reg.Kind() != asm.KindInt {
		return errors.New("type mismatch: ALLOC expects an integer register holding a byte count")
	}
	if err := v.checkIndex(reg); err != nil {
		return err
	}
	n := v.IRegisters[reg.Index()]
	if n < 0 {
		return errors.Errorf("cannot extend heap by negative byte count %d", n)
	}
	v.heap = append(v.heap, make([]byte, n)...)
	return nil
}

func (v *VM) execPrint() error {
	offset := int(v.nextUint16())
	if offset < 0 || offset > len(v.roData) {
		return errors.Errorf("print offset %d out of bounds", offset)
	}
	end := offset
	for end < len(v.roData) && v.roData[end] != 0 {
		end++
	}
	if end >= len(v.roData) {
		return errors.New("unterminated string in read-only segment")
	}
	s := v.roData[offset:end]
	if !utf8.Valid(s) {
		return errors.New("error decoding string to print: invalid utf8")
	}
	fmt.Print(string(s))
	return nil
}
