package forward

import (
	"fmt"
	"math"

	"github.com/chazu/lambdastring/asm"
)

// Operand is a value that is pushed onto the operand stack before a
// forwarded call. The set of implementations is closed.
type Operand interface {
	isOperand()
}

// Int is a 32-bit integer operand.
type Int int32

// String is a string constant operand.
type String string

// Null is the null reference.
type Null struct{}

// Bool is a boolean operand. It is pushed as 0 or 1.
type Bool bool

// Array is an Object[] operand whose elements are pushed in order.
// A nil Array is pushed as a null reference and reads back as Null.
type Array []Operand

// HandleOperand is a method handle, constructed at runtime with NEW.
type HandleOperand asm.Handle

func (Int) isOperand()           {}
func (String) isOperand()        {}
func (Null) isOperand()          {}
func (Bool) isOperand()          {}
func (Array) isOperand()         {}
func (HandleOperand) isOperand() {}

// OperandOf converts a runtime value, as produced by a visitor caller, into
// an Operand.
func OperandOf(v any) (Operand, error) {
	switch x := v.(type) {
	case nil:
		return Null{}, nil
	case Operand:
		return x, nil
	case int32:
		return Int(x), nil
	case int:
		if x < math.MinInt32 || x > math.MaxInt32 {
			return nil, fmt.Errorf("integer operand %d out of int32 range", x)
		}
		return Int(int32(x)), nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case []any:
		if x == nil {
			return Null{}, nil
		}
		elems, err := OperandsOf(x)
		if err != nil {
			return nil, err
		}
		return Array(elems), nil
	case asm.Handle:
		return HandleOperand(x), nil
	case *asm.Handle:
		if x == nil {
			return Null{}, nil
		}
		return HandleOperand(*x), nil
	default:
		return nil, &NotSupportedError{Op: fmt.Sprintf("operand of type %T", v)}
	}
}

// OperandsOf converts a runtime array. A nil slice stays nil, which is how an
// absent array is told apart from an empty one.
func OperandsOf(vs []any) ([]Operand, error) {
	if vs == nil {
		return nil, nil
	}
	out := make([]Operand, len(vs))
	for i, v := range vs {
		op, err := OperandOf(v)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = op
	}
	return out, nil
}

// Value converts an Operand back to the runtime value a visitor receives.
func Value(op Operand) any {
	switch x := op.(type) {
	case Int:
		return int32(x)
	case String:
		return string(x)
	case Bool:
		return bool(x)
	case Array:
		if x == nil {
			return nil
		}
		return Values(x)
	case HandleOperand:
		return asm.Handle(x)
	default:
		return nil
	}
}

// Values converts a slice of operands, keeping nil as nil.
func Values(ops []Operand) []any {
	if ops == nil {
		return nil
	}
	out := make([]any, len(ops))
	for i, op := range ops {
		out[i] = Value(op)
	}
	return out
}
