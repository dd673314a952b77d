package vm

import (
	"github.com/pkg/errors"

	"dovm/asm"
)

// execArith implements ADD/SUB/MUL/DIV, dispatching on the OUTPUT register's
// class: the instruction shape is always "op out, a, b".
func (v *VM) execArith(op asm.Opcode) error {
	out := v.nextRegisterByte()
	a := v.nextRegisterByte()
	b := v.nextRegisterByte()

	av, err := v.getRegister(a)
	if err != nil {
		return errors.Wrapf(err, "%s: left operand", op)
	}
	bv, err := v.getRegister(b)
	if err != nil {
		return errors.Wrapf(err, "%s: right operand", op)
	}

	switch out.Kind() {
	case asm.KindInt:
		x, err := av.AsInt32(v.Log)
		if err != nil {
			return errors.Wrapf(err, "%s: left operand", op)
		}
		y, err := bv.AsInt32(v.Log)
		if err != nil {
			return errors.Wrapf(err, "%s: right operand", op)
		}
		result, err := intArith(op, x, y)
		if err != nil {
			return err
		}
		return v.setIntRegister(out, result)

	case asm.KindReal:
		x, err := av.AsFloat64()
		if err != nil {
			return errors.Wrapf(err, "%s: left operand", op)
		}
		y, err := bv.AsFloat64()
		if err != nil {
			return errors.Wrapf(err, "%s: right operand", op)
		}
		return v.setRealRegister(out, realArith(op, x, y))

	default:
		result, err := vectorArith(op, av, bv)
		if err != nil {
			return err
		}
		return v.setVectorRegister(out, result)
	}
}

func intArith(op asm.Opcode, x, y int32) (int32, error) {
	switch op {
	case asm.ADD:
		return x + y, nil
	case asm.SUB:
		return x - y, nil
	case asm.MUL:
		return x * y, nil
	case asm.DIV:
		if y == 0 {
			return 0, errors.New("integer division by zero")
		}
		return x / y, nil
	default:
		return 0, errors.Errorf("%s is not an arithmetic opcode", op)
	}
}

func realArith(op asm.Opcode, x, y float64) float64 {
	switch op {
	case asm.ADD:
		return x + y
	case asm.SUB:
		return x - y
	case asm.MUL:
		return x * y
	default:
		return x / y
	}
}

// commutative reports whether scalar-op-vector should be treated the same
// as vector-op-scalar: ADD and MUL commute, SUB and DIV do not.
func commutative(op asm.Opcode) bool {
	return op == asm.ADD || op == asm.MUL
}

// vectorArith implements the vector-output arithmetic cases: vector-vector
// (pairwise, equal length required), vector-scalar broadcast, and
// scalar-scalar-into-vector (always rejected).
func vectorArith(op asm.Opcode, a, b Register) ([]float64, error) {
	if a.Kind == asm.KindVector && b.Kind == asm.KindVector {
		if len(a.Vector) != len(b.Vector) {
			return nil, errors.Errorf("%s: vector length mismatch (%d vs %d)", op, len(a.Vector), len(b.Vector))
		}
		out := make([]float64, len(a.Vector))
		for i := range out {
			out[i] = realArith(op, a.Vector[i], b.Vector[i])
		}
		return out, nil
	}

	if a.Kind == asm.KindVector && b.Kind != asm.KindVector {
		scalar, err := b.AsFloat64()
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(a.Vector))
		for i, e := range a.Vector {
			out[i] = realArith(op, e, scalar)
		}
		return out, nil
	}

	if a.Kind != asm.KindVector && b.Kind == asm.KindVector {
		if !commutative(op) {
			return nil, errors.Errorf("%s: scalar-op-vector is not defined, only vector-op-scalar", op)
		}
		scalar, err := a.AsFloat64()
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(b.Vector))
		for i, e := range b.Vector {
			out[i] = realArith(op, scalar, e)
		}
		return out, nil
	}

	return nil, errors.Errorf("%s: cannot combine two scalar registers into a vector register", op)
}
