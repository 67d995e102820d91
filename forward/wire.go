package forward

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/lambdastring/asm"
)

// ProgramWireVersion is the current version of the CBOR program encoding.
const ProgramWireVersion = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("forward: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type wireProgram struct {
	Version uint8       `cbor:"1,keyasint"`
	Events  []wireEvent `cbor:"2,keyasint"`
}

// wireEvent carries every variant; A, B and C hold the integer payload in
// declaration order of the variant's fields.
type wireEvent struct {
	Kind   EventKind     `cbor:"1,keyasint"`
	Op     uint8         `cbor:"2,keyasint,omitempty"`
	A      int           `cbor:"3,keyasint,omitempty"`
	B      int           `cbor:"4,keyasint,omitempty"`
	C      int           `cbor:"5,keyasint,omitempty"`
	Owner  string        `cbor:"6,keyasint,omitempty"`
	Name   string        `cbor:"7,keyasint,omitempty"`
	Desc   string        `cbor:"8,keyasint,omitempty"`
	Flag   bool          `cbor:"9,keyasint,omitempty"`
	Value  *wireOperand  `cbor:"10,keyasint,omitempty"`
	Handle *wireHandle   `cbor:"11,keyasint,omitempty"`
	Local  *wireArray    `cbor:"12,keyasint,omitempty"`
	Stack  *wireArray    `cbor:"13,keyasint,omitempty"`
	Args   *wireArray    `cbor:"14,keyasint,omitempty"`
}

type operandKind uint8

const (
	operandNull operandKind = iota
	operandInt
	operandString
	operandBool
	operandArray
	operandHandle
)

type wireOperand struct {
	Kind   operandKind `cbor:"1,keyasint"`
	Int    int32       `cbor:"2,keyasint,omitempty"`
	Str    string      `cbor:"3,keyasint,omitempty"`
	Bool   bool        `cbor:"4,keyasint,omitempty"`
	Array  *wireArray  `cbor:"5,keyasint,omitempty"`
	Handle *wireHandle `cbor:"6,keyasint,omitempty"`
}

// wireArray wraps a slice so that a present-but-empty array survives
// encoding; an absent array is a nil *wireArray.
type wireArray struct {
	Items []wireOperand `cbor:"1,keyasint"`
}

type wireHandle struct {
	Tag   int    `cbor:"1,keyasint"`
	Owner string `cbor:"2,keyasint"`
	Name  string `cbor:"3,keyasint"`
	Desc  string `cbor:"4,keyasint"`
	Itf   bool   `cbor:"5,keyasint,omitempty"`
}

// MarshalProgram serializes a program to canonical CBOR bytes.
func MarshalProgram(p Program) ([]byte, error) {
	wp := wireProgram{Version: ProgramWireVersion, Events: make([]wireEvent, 0, len(p))}
	for i, ev := range p {
		var enc wireEncoder
		if err := ev.lower(&enc); err != nil {
			return nil, fmt.Errorf("forward: encode event %d: %w", i, err)
		}
		wp.Events = append(wp.Events, enc.out)
	}
	return cborEncMode.Marshal(wp)
}

// UnmarshalProgram deserializes a program from CBOR bytes.
func UnmarshalProgram(data []byte) (Program, error) {
	var wp wireProgram
	if err := cbor.Unmarshal(data, &wp); err != nil {
		return nil, fmt.Errorf("forward: unmarshal program: %w", err)
	}
	if wp.Version > ProgramWireVersion {
		return nil, fmt.Errorf("forward: program version %d is newer than supported version %d", wp.Version, ProgramWireVersion)
	}
	p := make(Program, 0, len(wp.Events))
	for i, we := range wp.Events {
		ev, err := decodeEvent(we)
		if err != nil {
			return nil, fmt.Errorf("forward: decode event %d: %w", i, err)
		}
		p = append(p, ev)
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

type wireEncoder struct {
	out wireEvent
}

var _ lowerer = (*wireEncoder)(nil)

func (w *wireEncoder) code(Code) error {
	w.out = wireEvent{Kind: KindCode}
	return nil
}

func (w *wireEncoder) end(End) error {
	w.out = wireEvent{Kind: KindEnd}
	return nil
}

func (w *wireEncoder) maxs(ev Maxs) error {
	w.out = wireEvent{Kind: KindMaxs, A: ev.MaxStack, B: ev.MaxLocals}
	return nil
}

func (w *wireEncoder) parameter(ev Parameter) error {
	w.out = wireEvent{Kind: KindParameter, Name: ev.Name, A: ev.Access}
	return nil
}

func (w *wireEncoder) insn(ev Insn) error {
	w.out = wireEvent{Kind: KindInsn, Op: uint8(ev.Opcode)}
	return nil
}

func (w *wireEncoder) intInsn(ev IntInsn) error {
	w.out = wireEvent{Kind: KindIntInsn, Op: uint8(ev.Opcode), A: ev.Operand}
	return nil
}

func (w *wireEncoder) varInsn(ev VarInsn) error {
	w.out = wireEvent{Kind: KindVarInsn, Op: uint8(ev.Opcode), A: ev.Slot}
	return nil
}

func (w *wireEncoder) typeInsn(ev TypeInsn) error {
	w.out = wireEvent{Kind: KindTypeInsn, Op: uint8(ev.Opcode), Desc: ev.Type}
	return nil
}

func (w *wireEncoder) fieldInsn(ev FieldInsn) error {
	w.out = wireEvent{Kind: KindFieldInsn, Op: uint8(ev.Opcode), Owner: ev.Owner, Name: ev.Name, Desc: ev.Desc}
	return nil
}

func (w *wireEncoder) methodInsn(ev MethodInsn) error {
	w.out = wireEvent{Kind: KindMethodInsn, Op: uint8(ev.Opcode), Owner: ev.Owner, Name: ev.Name, Desc: ev.Desc, Flag: ev.IsInterface}
	return nil
}

func (w *wireEncoder) invokeDynamicInsn(ev InvokeDynamicInsn) error {
	args, err := encodeArray(ev.BootstrapArgs)
	if err != nil {
		return err
	}
	h := encodeHandle(ev.Bootstrap)
	w.out = wireEvent{Kind: KindInvokeDynamicInsn, Name: ev.Name, Desc: ev.Desc, Handle: &h, Args: args}
	return nil
}

func (w *wireEncoder) multiANewArrayInsn(ev MultiANewArrayInsn) error {
	w.out = wireEvent{Kind: KindMultiANewArrayInsn, Desc: ev.Desc, A: ev.Dims}
	return nil
}

func (w *wireEncoder) frame(ev Frame) error {
	local, err := encodeArray(ev.Local)
	if err != nil {
		return err
	}
	stack, err := encodeArray(ev.Stack)
	if err != nil {
		return err
	}
	w.out = wireEvent{Kind: KindFrame, A: ev.Type, B: ev.NLocal, C: ev.NStack, Local: local, Stack: stack}
	return nil
}

func (w *wireEncoder) iincInsn(ev IincInsn) error {
	w.out = wireEvent{Kind: KindIincInsn, A: ev.Slot, B: ev.Increment}
	return nil
}

func (w *wireEncoder) ldcInsn(ev LdcInsn) error {
	v, err := encodeOperand(ev.Value)
	if err != nil {
		return err
	}
	w.out = wireEvent{Kind: KindLdcInsn, Value: &v}
	return nil
}

func encodeHandle(h asm.Handle) wireHandle {
	return wireHandle{Tag: h.Tag, Owner: h.Owner, Name: h.Name, Desc: h.Desc, Itf: h.IsInterface}
}

func encodeArray(ops []Operand) (*wireArray, error) {
	if ops == nil {
		return nil, nil
	}
	arr := &wireArray{Items: make([]wireOperand, len(ops))}
	for i, op := range ops {
		wo, err := encodeOperand(op)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		arr.Items[i] = wo
	}
	return arr, nil
}

func encodeOperand(op Operand) (wireOperand, error) {
	switch x := op.(type) {
	case nil, Null:
		return wireOperand{Kind: operandNull}, nil
	case Int:
		return wireOperand{Kind: operandInt, Int: int32(x)}, nil
	case String:
		return wireOperand{Kind: operandString, Str: string(x)}, nil
	case Bool:
		return wireOperand{Kind: operandBool, Bool: bool(x)}, nil
	case Array:
		if x == nil {
			return wireOperand{Kind: operandNull}, nil
		}
		arr, err := encodeArray(x)
		if err != nil {
			return wireOperand{}, err
		}
		return wireOperand{Kind: operandArray, Array: arr}, nil
	case HandleOperand:
		h := encodeHandle(asm.Handle(x))
		return wireOperand{Kind: operandHandle, Handle: &h}, nil
	default:
		return wireOperand{}, fmt.Errorf("cannot encode operand of type %T", op)
	}
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

func decodeEvent(we wireEvent) (Event, error) {
	op := asm.Opcode(we.Op)
	switch we.Kind {
	case KindCode:
		return Code{}, nil
	case KindEnd:
		return End{}, nil
	case KindMaxs:
		return Maxs{MaxStack: we.A, MaxLocals: we.B}, nil
	case KindParameter:
		return Parameter{Name: we.Name, Access: we.A}, nil
	case KindInsn:
		return Insn{Opcode: op}, nil
	case KindIntInsn:
		return IntInsn{Opcode: op, Operand: we.A}, nil
	case KindVarInsn:
		return VarInsn{Opcode: op, Slot: we.A}, nil
	case KindTypeInsn:
		return TypeInsn{Opcode: op, Type: we.Desc}, nil
	case KindFieldInsn:
		return FieldInsn{Opcode: op, Owner: we.Owner, Name: we.Name, Desc: we.Desc}, nil
	case KindMethodInsn:
		return MethodInsn{Opcode: op, Owner: we.Owner, Name: we.Name, Desc: we.Desc, IsInterface: we.Flag}, nil
	case KindInvokeDynamicInsn:
		if we.Handle == nil {
			return nil, fmt.Errorf("invokedynamic without bootstrap handle")
		}
		args, err := decodeArray(we.Args)
		if err != nil {
			return nil, err
		}
		return InvokeDynamicInsn{Name: we.Name, Desc: we.Desc, Bootstrap: decodeHandle(*we.Handle), BootstrapArgs: args}, nil
	case KindMultiANewArrayInsn:
		return MultiANewArrayInsn{Desc: we.Desc, Dims: we.A}, nil
	case KindFrame:
		local, err := decodeArray(we.Local)
		if err != nil {
			return nil, err
		}
		stack, err := decodeArray(we.Stack)
		if err != nil {
			return nil, err
		}
		return Frame{Type: we.A, NLocal: we.B, Local: local, NStack: we.C, Stack: stack}, nil
	case KindIincInsn:
		return IincInsn{Slot: we.A, Increment: we.B}, nil
	case KindLdcInsn:
		if we.Value == nil {
			return nil, fmt.Errorf("ldc without a constant")
		}
		v, err := decodeOperand(*we.Value)
		if err != nil {
			return nil, err
		}
		return LdcInsn{Value: v}, nil
	default:
		return nil, fmt.Errorf("unknown event kind %d", we.Kind)
	}
}

func decodeHandle(h wireHandle) asm.Handle {
	return asm.Handle{Tag: h.Tag, Owner: h.Owner, Name: h.Name, Desc: h.Desc, IsInterface: h.Itf}
}

func decodeArray(arr *wireArray) ([]Operand, error) {
	if arr == nil {
		return nil, nil
	}
	out := make([]Operand, len(arr.Items))
	for i, wo := range arr.Items {
		op, err := decodeOperand(wo)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = op
	}
	return out, nil
}

func decodeOperand(wo wireOperand) (Operand, error) {
	switch wo.Kind {
	case operandNull:
		return Null{}, nil
	case operandInt:
		return Int(wo.Int), nil
	case operandString:
		return String(wo.Str), nil
	case operandBool:
		return Bool(wo.Bool), nil
	case operandArray:
		elems, err := decodeArray(wo.Array)
		if err != nil {
			return nil, err
		}
		if elems == nil {
			elems = []Operand{}
		}
		return Array(elems), nil
	case operandHandle:
		if wo.Handle == nil {
			return nil, fmt.Errorf("handle operand without a handle")
		}
		return HandleOperand(decodeHandle(*wo.Handle)), nil
	default:
		return nil, fmt.Errorf("unknown operand kind %d", wo.Kind)
	}
}
