package forward

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/lambdastring/asm"
)

// checker rejects events whose arguments cannot be pushed. Emit runs it
// before writing anything, so a rejected event leaves the visitor untouched.
type checker struct{}

var _ lowerer = checker{}

func checkInts(vs ...int) error {
	for _, v := range vs {
		if v < math.MinInt32 || v > math.MaxInt32 {
			return fmt.Errorf("integer argument %d out of int32 range", v)
		}
	}
	return nil
}

func checkHandle(h asm.Handle) error {
	if err := checkInts(h.Tag); err != nil {
		return fmt.Errorf("handle tag: %w", err)
	}
	return nil
}

func checkOperands(ops []Operand) error {
	if len(ops) > math.MaxInt32 {
		return fmt.Errorf("array of %d elements is too large", len(ops))
	}
	for i, op := range ops {
		if err := checkOperand(op); err != nil {
			return fmt.Errorf("array element %d: %w", i, err)
		}
	}
	return nil
}

func checkOperand(op Operand) error {
	switch x := op.(type) {
	case Array:
		return checkOperands(x)
	case HandleOperand:
		return checkHandle(asm.Handle(x))
	}
	return nil
}

func (checker) code(Code) error           { return nil }
func (checker) end(End) error             { return nil }
func (checker) typeInsn(TypeInsn) error   { return nil }
func (checker) fieldInsn(FieldInsn) error { return nil }

func (checker) maxs(ev Maxs) error           { return checkInts(ev.MaxStack, ev.MaxLocals) }
func (checker) parameter(ev Parameter) error { return checkInts(ev.Access) }
func (checker) insn(ev Insn) error           { return nil }
func (checker) intInsn(ev IntInsn) error     { return checkInts(ev.Operand) }
func (checker) varInsn(ev VarInsn) error     { return checkInts(ev.Slot) }
func (checker) iincInsn(ev IincInsn) error   { return checkInts(ev.Slot, ev.Increment) }

func (checker) methodInsn(MethodInsn) error { return nil }

func (checker) multiANewArrayInsn(ev MultiANewArrayInsn) error {
	return checkInts(ev.Dims)
}

func (checker) invokeDynamicInsn(ev InvokeDynamicInsn) error {
	if err := checkHandle(ev.Bootstrap); err != nil {
		return err
	}
	return checkOperands(ev.BootstrapArgs)
}

func (checker) frame(ev Frame) error {
	if err := checkInts(ev.Type, ev.NLocal, ev.NStack); err != nil {
		return err
	}
	if err := checkOperands(ev.Local); err != nil {
		return fmt.Errorf("locals: %w", err)
	}
	if err := checkOperands(ev.Stack); err != nil {
		return fmt.Errorf("stack: %w", err)
	}
	return nil
}

func (checker) ldcInsn(ev LdcInsn) error {
	if ev.Value == nil {
		return errors.New("ldc without a constant")
	}
	return checkOperand(ev.Value)
}
