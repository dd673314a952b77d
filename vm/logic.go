package vm

import (
	"github.com/pkg/errors"

	"dovm/asm"
)

func truthy(f float64) bool { return f != 0 }

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// execLogic implements AND/OR, dispatching on the output register's class
// and mirroring execArith's broadcast rules (both are commutative, so
// scalar-op-vector and vector-op-scalar are both accepted).
func (v *VM) execLogic(op asm.Opcode) error {
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
		return v.setIntRegister(out, int32(boolToFloat(logicOp(op, truthy(float64(x)), truthy(float64(y))))))

	case asm.KindReal:
		x, err := av.AsFloat64()
		if err != nil {
			return errors.Wrapf(err, "%s: left operand", op)
		}
		y, err := bv.AsFloat64()
		if err != nil {
			return errors.Wrapf(err, "%s: right operand", op)
		}
		return v.setRealRegister(out, boolToFloat(logicOp(op, truthy(x), truthy(y))))

	default:
		result, err := vectorLogic(op, av, bv)
		if err != nil {
			return err
		}
		return v.setVectorRegister(out, result)
	}
}

func logicOp(op asm.Opcode, a, b bool) bool {
	if op == asm.AND {
		return a && b
	}
	return a || b
}

func vectorLogic(op asm.Opcode, a, b Register) ([]float64, error) {
	if a.Kind == asm.KindVector && b.Kind == asm.KindVector {
		if len(a.Vector) != len(b.Vector) {
			return nil, errors.Errorf("%s: vector length mismatch (%d vs %d)", op, len(a.Vector), len(b.Vector))
		}
		out := make([]float64, len(a.Vector))
		for i := range out {
			out[i] = boolToFloat(logicOp(op, truthy(a.Vector[i]), truthy(b.Vector[i])))
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
			out[i] = boolToFloat(logicOp(op, truthy(e), truthy(scalar)))
		}
		return out, nil
	}

	if a.Kind != asm.KindVector && b.Kind == asm.KindVector {
		scalar, err := a.AsFloat64()
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(b.Vector))
		for i, e := range b.Vector {
			out[i] = boolToFloat(logicOp(op, truthy(scalar), truthy(e)))
		}
		return out, nil
	}

	return nil, errors.Errorf("%s: cannot combine two scalar registers into a vector register", op)
}

// execNot implements NOT "out, a": element-wise logical negation for vector
// sources, scalar negation matching the output class otherwise.
func (v *VM) execNot() error {
	out := v.nextRegisterByte()
	a := v.nextRegisterByte()
	av, err := v.getRegister(a)
	if err != nil {
		return errors.Wrap(err, "not: operand")
	}

	switch out.Kind() {
	case asm.KindInt:
		x, err := av.AsInt32(v.Log)
		if err != nil {
			return errors.Wrap(err, "not: operand")
		}
		return v.setIntRegister(out, int32(boolToFloat(!truthy(float64(x)))))
	case asm.KindReal:
		x, err := av.AsFloat64()
		if err != nil {
			return errors.Wrap(err, "not: operand")
		}
		return v.setRealRegister(out, boolToFloat(!truthy(x)))
	default:
		vec, err := av.AsVector()
		if err != nil {
			return errors.Wrap(err, "not: operand")
		}
		out2 := make([]float64, len(vec))
		for i, e := range vec {
			out2[i] = boolToFloat(!truthy(e))
		}
		return v.setVectorRegister(out, out2)
	}
}
