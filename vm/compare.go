package vm

import (
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"dovm/asm"
)

// epsilon is the tolerance used for real-register equality.
const epsilon = 2.2204460492503131e-16

// execCompare implements EQ/NEQ/GT/LT/GTE/LTE. The output register must be
// integer-class (it receives 0 or 1); dispatch for how the comparison
// itself is carried out is keyed on operand a's class.
func (v *VM) execCompare(op asm.Opcode) error {
	out := v.nextRegisterByte()
	a := v.nextRegisterByte()
	b := v.nextRegisterByte()

	if out.Kind() != asm.KindInt {
		return errors.Errorf("%s: output register must be an integer register", op)
	}

	av, err := v.getRegister(a)
	if err != nil {
		return errors.Wrapf(err, "%s: left operand", op)
	}
	bv, err := v.getRegister(b)
	if err != nil {
		return errors.Wrapf(err, "%s: right operand", op)
	}

	result, err := compareRegisters(op, av, bv, v.Log)
	if err != nil {
		return err
	}

	if result {
		return v.setIntRegister(out, 1)
	}
	return v.setIntRegister(out, 0)
}

func compareRegisters(op asm.Opcode, a, b Register, log *logrus.Logger) (bool, error) {
	switch a.Kind {
	case asm.KindVector:
		bv, err := b.AsVector()
		if err != nil {
			return false, errors.Wrapf(err, "%s: right operand", op)
		}
		return compareVectors(op, a.Vector, bv)
	case asm.KindReal:
		y, err := b.AsFloat64()
		if err != nil {
			return false, errors.Wrapf(err, "%s: right operand", op)
		}
		return compareReals(op, a.Real, y), nil
	default:
		x, err := a.AsInt32(nil)
		if err != nil {
			return false, err
		}
		y, err := b.AsInt32(log)
		if err != nil {
			return false, errors.Wrapf(err, "%s: right operand", op)
		}
		return compareInts(op, x, y), nil
	}
}

func compareInts(op asm.Opcode, x, y int32) bool {
	switch op {
	case asm.EQ:
		return x == y
	case asm.NEQ:
		return x != y
	case asm.GT:
		return x > y
	case asm.LT:
		return x < y
	case asm.GTE:
		return x >= y
	default:
		return x <= y
	}
}

func compareReals(op asm.Opcode, x, y float64) bool {
	switch op {
	case asm.EQ:
		return math.Abs(x-y) < epsilon
	case asm.NEQ:
		return math.Abs(x-y) >= epsilon
	case asm.GT:
		return x > y
	case asm.LT:
		return x < y
	case asm.GTE:
		return x >= y
	default:
		return x <= y
	}
}

// compareVectors implements equality/ordering over []float64. Go has no
// derived ordering for slices, so the lexicographic comparison below is
// hand-written: compare element by element, first mismatch decides order,
// equal-prefix-but-different-length defers to the shorter vector being
// "less."
func compareVectors(op asm.Opcode, a, b []float64) (bool, error) {
	switch op {
	case asm.EQ:
		return vectorsEqual(a, b), nil
	case asm.NEQ:
		return !vectorsEqual(a, b), nil
	case asm.GT:
		return vectorLess(b, a), nil
	case asm.LT:
		return vectorLess(a, b), nil
	case asm.GTE:
		return !vectorLess(a, b), nil
	default:
		return !vectorLess(b, a), nil
	}
}

func vectorsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) >= epsilon {
			return false
		}
	}
	return true
}

func vectorLess(a, b []float64) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] < b[i] {
			return true
		}
		if a[i] > b[i] {
			return false
		}
	}
	return len(a) < len(b)
}

// execJeq implements JEQ "target, a, b": jumps the program counter to the
// value held by the target integer register when iregs[a] == iregs[b].
func (v *VM) execJeq() error {
	target := v.nextRegisterByte()
	a := v.nextRegisterByte()
	b := v.nextRegisterByte()

	aReg, err := v.getRegister(a)
	if err != nil {
		return errors.Wrap(err, "jeq: left operand")
	}
	av, err := aReg.AsInt32(v.Log)
	if err != nil {
		return errors.Wrap(err, "jeq: left operand")
	}

	bReg, err := v.getRegister(b)
	if err != nil {
		return errors.Wrap(err, "jeq: right operand")
	}
	bv, err := bReg.AsInt32(v.Log)
	if err != nil {
		return errors.Wrap(err, "jeq: right operand")
	}

	if av == bv {
		targetReg, err := v.getRegister(target)
		if err != nil {
			return errors.Wrap(err, "jeq: target operand")
		}
		targetVal, err := targetReg.AsInt32(v.Log)
		if err != nil {
			return errors.Wrap(err, "jeq: target operand")
		}
		v.pc = int(targetVal)
	}
	return nil
}
