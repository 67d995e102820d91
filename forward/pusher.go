package forward

import (
	"fmt"
	"math"

	"github.com/chazu/lambdastring/asm"
)

// IntEncoding returns the opcode used to push v: ICONST_M1..ICONST_5 for
// -1..5, BIPUSH for the byte range, SIPUSH for the short range, and LDC from
// the constant pool otherwise.
func IntEncoding(v int32) asm.Opcode {
	switch {
	case v >= -1 && v <= 5:
		return asm.Opcode(int32(asm.ICONST_0) + v)
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return asm.BIPUSH
	case v >= math.MinInt16 && v <= math.MaxInt16:
		return asm.SIPUSH
	default:
		return asm.LDC
	}
}

func (e *Emitter) pushInt(v int32) error {
	switch op := IntEncoding(v); op {
	case asm.BIPUSH, asm.SIPUSH:
		return e.mv.VisitIntInsn(op, int(v))
	case asm.LDC:
		return e.mv.VisitLdcInsn(v)
	default:
		return e.mv.VisitInsn(op)
	}
}

func (e *Emitter) pushIntChecked(v int) error {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return fmt.Errorf("integer argument %d out of int32 range", v)
	}
	return e.pushInt(int32(v))
}

func (e *Emitter) pushBool(b bool) error {
	if b {
		return e.pushInt(1)
	}
	return e.pushInt(0)
}

func (e *Emitter) pushString(s string) error {
	return e.mv.VisitLdcInsn(s)
}

func (e *Emitter) pushNull() error {
	return e.mv.VisitInsn(asm.ACONST_NULL)
}

// pushObject pushes op where an Object reference is expected; scalars are
// boxed.
func (e *Emitter) pushObject(op Operand) error {
	switch x := op.(type) {
	case Int:
		if err := e.pushInt(int32(x)); err != nil {
			return err
		}
		return e.mv.VisitMethodInsn(asm.INVOKESTATIC, asm.IntegerType, "valueOf", descIntegerValueOf, false)
	case Bool:
		if err := e.pushBool(bool(x)); err != nil {
			return err
		}
		return e.mv.VisitMethodInsn(asm.INVOKESTATIC, asm.BooleanType, "valueOf", descBooleanValueOf, false)
	case String:
		return e.pushString(string(x))
	case Null, nil:
		return e.pushNull()
	case Array:
		return e.pushArray(x, asm.ObjectType)
	case HandleOperand:
		return e.pushHandle(asm.Handle(x))
	default:
		return fmt.Errorf("cannot push operand of type %T", op)
	}
}

// pushArray builds an array of elemType holding elems. A nil slice pushes
// null; an empty one creates a zero-length array with no stores.
func (e *Emitter) pushArray(elems []Operand, elemType string) error {
	if elems == nil {
		return e.pushNull()
	}
	if len(elems) > math.MaxInt32 {
		return fmt.Errorf("array of %d elements is too large", len(elems))
	}
	if err := e.pushInt(int32(len(elems))); err != nil {
		return err
	}
	if err := e.mv.VisitTypeInsn(asm.ANEWARRAY, elemType); err != nil {
		return err
	}
	for i, elem := range elems {
		if err := e.dup(); err != nil {
			return err
		}
		if err := e.pushInt(int32(i)); err != nil {
			return err
		}
		if err := e.pushObject(elem); err != nil {
			return fmt.Errorf("array element %d: %w", i, err)
		}
		if err := e.mv.VisitInsn(asm.AASTORE); err != nil {
			return err
		}
	}
	return nil
}

// pushHandle constructs a Handle instance at runtime.
func (e *Emitter) pushHandle(h asm.Handle) error {
	if err := e.mv.VisitTypeInsn(asm.NEW, e.sig.handle); err != nil {
		return err
	}
	if err := e.dup(); err != nil {
		return err
	}
	pushes := []func() error{
		e.intArg(h.Tag),
		e.stringArg(h.Owner),
		e.stringArg(h.Name),
		e.stringArg(h.Desc),
		e.boolArg(h.IsInterface),
	}
	for _, push := range pushes {
		if err := push(); err != nil {
			return err
		}
	}
	return e.mv.VisitMethodInsn(asm.INVOKESPECIAL, e.sig.handle, "<init>", descHandleInit, false)
}
