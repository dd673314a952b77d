package vm

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkg/errors"

	"dovm/asm"
)

// execSyscall implements SYSCALL "id, a, b": a command-dispatch-by-id escape
// hatch into the host, simplified to a synchronous in-process dispatch since
// this machine runs no concurrent device goroutines.
func (v *VM) execSyscall() error {
	id := v.nextRegisterByte()
	a := v.nextRegisterByte()
	b := v.nextRegisterByte()

	idReg, err := v.getRegister(id)
	if err != nil {
		return errors.Wrap(err, "syscall: id operand")
	}
	idVal, err := idReg.AsInt32(v.Log)
	if err != nil {
		return errors.Wrap(err, "syscall: id operand")
	}

	switch idVal {
	case 0:
		desc, err := v.describeRegisterValue(a)
		if err != nil {
			return errors.Wrap(err, "syscall 0: register operand")
		}
		fmt.Println(desc)
		return nil

	case 1:
		aReg, err := v.getRegister(a)
		if err != nil {
			return errors.Wrap(err, "syscall 1: offset operand")
		}
		offset, err := aReg.AsInt32(v.Log)
		if err != nil {
			return errors.Wrap(err, "syscall 1: offset operand")
		}
		bReg, err := v.getRegister(b)
		if err != nil {
			return errors.Wrap(err, "syscall 1: length operand")
		}
		n, err := bReg.AsInt32(v.Log)
		if err != nil {
			return errors.Wrap(err, "syscall 1: length operand")
		}
		if n < 0 || offset < 0 || int(offset)+int(n) > len(v.heap) {
			return errors.Errorf("syscall 1: heap range [%d:%d) out of bounds (heap size %d)", offset, offset+n, len(v.heap))
		}
		fmt.Print(string(v.heap[offset : offset+n]))
		return nil

	case 2:
		aReg, err := v.getRegister(a)
		if err != nil {
			return errors.Wrap(err, "syscall 2: offset operand")
		}
		offset, err := aReg.AsInt32(v.Log)
		if err != nil {
			return errors.Wrap(err, "syscall 2: offset operand")
		}
		return v.printROString(int(offset))

	default:
		return errors.Errorf("syscall: unrecognized id %d", idVal)
	}
}

func (v *VM) printROString(offset int) error {
	if offset < 0 || offset > len(v.roData) {
		return errors.Errorf("syscall 2: offset %d out of bounds", offset)
	}
	end := offset
	for end < len(v.roData) && v.roData[end] != 0 {
		end++
	}
	if end >= len(v.roData) {
		return errors.New("syscall 2: unterminated string in read-only segment")
	}
	s := v.roData[offset:end]
	if !utf8.Valid(s) {
		return errors.New("syscall 2: invalid utf8")
	}
	fmt.Print(string(s))
	return nil
}

func (v *VM) describeRegisterValue(reg asm.RegisterByte) (string, error) {
	val, err := v.getRegister(reg)
	if err != nil {
		return "", err
	}
	switch val.Kind {
	case asm.KindReal:
		return fmt.Sprintf("$r%d = %v", reg.Index(), val.Real), nil
	case asm.KindVector:
		return fmt.Sprintf("$v%d = %v", reg.Index(), val.Vector), nil
	default:
		return fmt.Sprintf("$i%d = %v", reg.Index(), val.Int), nil
	}
}
