package vm

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"dovm/asm"
)

// Kind is an alias of asm.RegisterKind, used as the runtime value's own tag
// (RegisterByte is a byte-level concept; Register is a typed value).
type Kind = asm.RegisterKind

const (
	KindInt    = asm.KindInt
	KindReal   = asm.KindReal
	KindVector = asm.KindVector
)

// Register is a tagged three-way sum of an integer, a real, or a vector
// value. Only the field matching Kind is meaningful.
type Register struct {
	Kind   Kind
	Int    int32
	Real   float64
	Vector []float64
}

// IntRegister wraps an int32 as a Register value.
func IntRegister(v int32) Register { return Register{Kind: KindInt, Int: v} }

// RealRegister wraps a float64 as a Register value.
func RealRegister(v float64) Register { return Register{Kind: KindReal, Real: v} }

// VectorRegister wraps a []float64 as a Register value.
func VectorRegister(v []float64) Register { return Register{Kind: KindVector, Vector: v} }

// AsInt32 converts a Register to an i32: integers pass through, reals
// truncate toward zero with a warn-level log (the one precision-loss path
// allowed to succeed rather than error), and vectors are rejected.
func (r Register) AsInt32(log *logrus.Logger) (int32, error) {
	switch r.Kind {
	case KindInt:
		return r.Int, nil
	case KindReal:
		if log != nil {
			log.Warnf("precision loss converting real %v to int", r.Real)
		}
		return int32(r.Real), nil
	default:
		return 0, errors.New("cannot convert vector to i32")
	}
}

// AsFloat64 converts a Register to an f64: integers promote exactly, reals
// pass through, vectors are rejected.
func (r Register) AsFloat64() (float64, error) {
	switch r.Kind {
	case KindInt:
		return float64(r.Int), nil
	case KindReal:
		return r.Real, nil
	default:
		return 0, errors.New("cannot convert vector to f64")
	}
}

// AsVector converts a Register to a []float64; only vectors succeed.
func (r Register) AsVector() ([]float64, error) {
	if r.Kind != KindVector {
		return nil, errors.New("cannot convert scalar to vector")
	}
	return r.Vector, nil
}
