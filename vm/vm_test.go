package vm

import (
	"fmt"
	"math"
	"testing"

	"dovm/asm"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func assembleAndLoad(t *testing.T, source string) *VM {
	img, err := asm.Assemble(source)
	assert(t, err == nil, "assemble failed: %v", err)

	machine := New(nil)
	err = machine.SetBytecode(img.Bytes)
	assert(t, err == nil, "SetBytecode failed: %v", err)
	return machine
}

func TestIntegerAddEndToEnd(t *testing.T) {
	machine := assembleAndLoad(t, ".data\n.code\nload $i0 #3\nload $i1 #2\nadd $i0 $i0 $i1\nhlt\n")
	err := machine.Run()
	assert(t, err == nil, "run failed: %v", err)
	assert(t, machine.IRegisters[0] == 5, "expected iregs[0]==5, got %d", machine.IRegisters[0])
	assert(t, machine.IRegisters[1] == 2, "expected iregs[1]==2, got %d", machine.IRegisters[1])
}

func TestRealLoadEndToEnd(t *testing.T) {
	machine := assembleAndLoad(t, ".data\n.code\nload $r0 #4.2\nhlt\n")
	err := machine.Run()
	assert(t, err == nil, "run failed: %v", err)
	assert(t, math.Abs(machine.RRegisters[0]-4.2) < 1e-15, "expected rregs[0]~=4.2, got %v", machine.RRegisters[0])
}

func TestVectorPairwiseAdd(t *testing.T) {
	machine := New(nil)
	machine.VRegisters[0] = []float64{1.0, 2.0, 3.1}
	machine.VRegisters[1] = []float64{2.0, 3.0, 4.0}
	machine.program = []byte{byte(asm.ADD), byte(asm.VectorRegisterByte(0)), byte(asm.VectorRegisterByte(0)), byte(asm.VectorRegisterByte(1))}

	halted, err := machine.Step()
	assert(t, err == nil, "step failed: %v", err)
	assert(t, !halted, "did not expect halt")

	want := []float64{3.0, 5.0, 7.1}
	for i, w := range want {
		assert(t, math.Abs(machine.VRegisters[0][i]-w) < 1e-9, "index %d: want %v got %v", i, w, machine.VRegisters[0][i])
	}
}

func TestVectorLengthMismatch(t *testing.T) {
	machine := New(nil)
	machine.VRegisters[0] = []float64{1.0, 2.0}
	machine.VRegisters[1] = []float64{1.0, 2.0, 3.0}
	machine.program = []byte{byte(asm.ADD), byte(asm.VectorRegisterByte(0)), byte(asm.VectorRegisterByte(0)), byte(asm.VectorRegisterByte(1))}

	_, err := machine.Step()
	assert(t, err != nil, "expected length mismatch error")
	assert(t, machine.pc == 4, "expected pc advanced past instruction, got %d", machine.pc)
}

func TestComparisonOutput(t *testing.T) {
	machine := New(nil)
	machine.IRegisters[0] = 2
	machine.IRegisters[1] = 2
	machine.program = []byte{byte(asm.EQ), byte(asm.IntRegisterByte(0)), byte(asm.IntRegisterByte(0)), byte(asm.IntRegisterByte(1))}

	_, err := machine.Step()
	assert(t, err == nil, "step failed: %v", err)
	assert(t, machine.IRegisters[0] == 1, "expected iregs[0]==1, got %d", machine.IRegisters[0])

	machine2 := New(nil)
	machine2.IRegisters[0] = 3
	machine2.IRegisters[1] = 2
	machine2.program = []byte{byte(asm.EQ), byte(asm.IntRegisterByte(0)), byte(asm.IntRegisterByte(0)), byte(asm.IntRegisterByte(1))}
	_, err = machine2.Step()
	assert(t, err == nil, "step failed: %v", err)
	assert(t, machine2.IRegisters[0] == 0, "expected iregs[0]==0, got %d", machine2.IRegisters[0])
}

func TestIntegerDivisionByZeroIsError(t *testing.T) {
	machine := New(nil)
	machine.IRegisters[0] = 10
	machine.IRegisters[1] = 0
	machine.program = []byte{byte(asm.DIV), byte(asm.IntRegisterByte(2)), byte(asm.IntRegisterByte(0)), byte(asm.IntRegisterByte(1))}

	_, err := machine.Step()
	assert(t, err != nil, "expected division by zero error")
}

func TestIntegerOverflowWraps(t *testing.T) {
	machine := New(nil)
	machine.IRegisters[0] = math.MaxInt32
	machine.IRegisters[1] = 1
	machine.program = []byte{byte(asm.ADD), byte(asm.IntRegisterByte(2)), byte(asm.IntRegisterByte(0)), byte(asm.IntRegisterByte(1))}

	_, err := machine.Step()
	assert(t, err == nil, "step failed: %v", err)
	assert(t, machine.IRegisters[2] == math.MinInt32, "expected wraparound to MinInt32, got %d", machine.IRegisters[2])
}

func TestLoadIntoVectorRegisterRejected(t *testing.T) {
	machine := New(nil)
	machine.program = []byte{byte(asm.LOAD), byte(asm.VectorRegisterByte(0)), 0, 0, 0, 0}

	_, err := machine.Step()
	assert(t, err != nil, "expected rejection of LOAD into vector register")
}

func TestScalarOpVectorAsymmetry(t *testing.T) {
	machine := New(nil)
	machine.VRegisters[0] = []float64{1.0, 2.0}
	machine.IRegisters[0] = 10
	machine.program = []byte{byte(asm.SUB), byte(asm.VectorRegisterByte(1)), byte(asm.IntRegisterByte(0)), byte(asm.VectorRegisterByte(0))}

	_, err := machine.Step()
	assert(t, err != nil, "expected scalar-minus-vector to be rejected")
}

func TestRealToIntTruncatesTowardZero(t *testing.T) {
	machine := New(nil)
	machine.RRegisters[0] = -3.9
	machine.IRegisters[1] = 0
	machine.program = []byte{byte(asm.ADD), byte(asm.IntRegisterByte(2)), byte(asm.RealRegisterByte(0)), byte(asm.IntRegisterByte(1))}

	_, err := machine.Step()
	assert(t, err == nil, "step failed: %v", err)
	assert(t, machine.IRegisters[2] == -3, "expected truncation toward zero to -3, got %d", machine.IRegisters[2])
}

func TestRunOutOfProgram(t *testing.T) {
	machine := New(nil)
	machine.program = []byte{}

	_, err := machine.Step()
	assert(t, err != nil, "expected ran-out-of-program error")
}

func TestInvalidMagicRejected(t *testing.T) {
	machine := New(nil)
	bad := make([]byte, asm.HeaderSize)
	copy(bad, []byte("NOPE"))
	err := machine.SetBytecode(bad)
	assert(t, err != nil, "expected invalid magic error")
}

func TestAllocExtendsHeap(t *testing.T) {
	machine := New(nil)
	machine.IRegisters[0] = 4
	machine.program = []byte{byte(asm.ALLOC), byte(asm.IntRegisterByte(0))}

	_, err := machine.Step()
	assert(t, err == nil, "step failed: %v", err)
	assert(t, len(machine.Heap()) == 4, "expected heap length 4, got %d", len(machine.Heap()))
}

func TestNotNegatesScalar(t *testing.T) {
	machine := New(nil)
	machine.IRegisters[0] = 0
	machine.program = []byte{byte(asm.NOT), byte(asm.IntRegisterByte(1)), byte(asm.IntRegisterByte(0))}

	_, err := machine.Step()
	assert(t, err == nil, "step failed: %v", err)
	assert(t, machine.IRegisters[1] == 1, "expected not(0)==1, got %d", machine.IRegisters[1])
}

func TestJeqJumpsWhenEqual(t *testing.T) {
	machine := New(nil)
	machine.IRegisters[0] = 99
	machine.IRegisters[1] = 5
	machine.IRegisters[2] = 5
	machine.program = []byte{byte(asm.JEQ), byte(asm.IntRegisterByte(0)), byte(asm.IntRegisterByte(1)), byte(asm.IntRegisterByte(2))}

	_, err := machine.Step()
	assert(t, err == nil, "step failed: %v", err)
	assert(t, machine.pc == 99, "expected pc jumped to 99, got %d", machine.pc)
}

func TestSyscallUnknownIdErrors(t *testing.T) {
	machine := New(nil)
	machine.IRegisters[0] = 42
	machine.program = []byte{byte(asm.SYSCALL), byte(asm.IntRegisterByte(0)), byte(asm.IntRegisterByte(0)), byte(asm.IntRegisterByte(0))}

	_, err := machine.Step()
	assert(t, err != nil, "expected unrecognized syscall id error")
}

func TestSyscallPrintsHeapBytes(t *testing.T) {
	machine := New(nil)
	machine.heap = []byte("hi")
	machine.IRegisters[0] = 1 // id = print heap
	machine.IRegisters[1] = 0 // offset
	machine.IRegisters[2] = 2 // length
	machine.program = []byte{byte(asm.SYSCALL), byte(asm.IntRegisterByte(0)), byte(asm.IntRegisterByte(1)), byte(asm.IntRegisterByte(2))}

	_, err := machine.Step()
	assert(t, err == nil, "step failed: %v", err)
}

func TestReservedOpcodesAreUnrecognized(t *testing.T) {
	for _, op := range []asm.Opcode{asm.LW, asm.SW, asm.COPY} {
		machine := New(nil)
		machine.program = []byte{byte(op), 0, 0, 0}
		_, err := machine.Step()
		assert(t, err != nil, "expected %s to be unrecognized", op)
	}
}

func TestOutOfRangeRegisterErrorsInsteadOfPanicking(t *testing.T) {
	machine := New(nil)
	machine.program = []byte{byte(asm.ADD), byte(asm.IntRegisterByte(40)), byte(asm.IntRegisterByte(0)), byte(asm.IntRegisterByte(1))}

	_, err := machine.Step()
	assert(t, err != nil, "expected out-of-range register error, not a panic")
}

func TestJmpToOutOfRangeRegisterErrors(t *testing.T) {
	machine := New(nil)
	machine.program = []byte{byte(asm.JMP), byte(asm.IntRegisterByte(50))}

	_, err := machine.Step()
	assert(t, err != nil, "expected out-of-range register error on jmp")
}

func TestRoundTripSetBytecode(t *testing.T) {
	img, err := asm.Assemble(".data\n.code\nload $i0 #3\nhlt\n")
	assert(t, err == nil, "assemble failed: %v", err)

	machine := New(nil)
	err = machine.SetBytecode(img.Bytes)
	assert(t, err == nil, "SetBytecode failed: %v", err)
	assert(t, machine.pc == asm.HeaderSize+int(img.ROLen), "expected pc at first code byte, got %d", machine.pc)
}
