package forward

import "github.com/chazu/lambdastring/asm"

// EventKind identifies an Event variant.
type EventKind uint8

const (
	KindCode EventKind = iota + 1
	KindEnd
	KindMaxs
	KindParameter
	KindInsn
	KindIntInsn
	KindVarInsn
	KindTypeInsn
	KindFieldInsn
	KindMethodInsn
	KindInvokeDynamicInsn
	KindMultiANewArrayInsn
	KindFrame
	KindIincInsn
	KindLdcInsn
)

var kindNames = map[EventKind]string{
	KindCode:               "visitCode",
	KindEnd:                "visitEnd",
	KindMaxs:               "visitMaxs",
	KindParameter:          "visitParameter",
	KindInsn:               "visitInsn",
	KindIntInsn:            "visitIntInsn",
	KindVarInsn:            "visitVarInsn",
	KindTypeInsn:           "visitTypeInsn",
	KindFieldInsn:          "visitFieldInsn",
	KindMethodInsn:         "visitMethodInsn",
	KindInvokeDynamicInsn:  "visitInvokeDynamicInsn",
	KindMultiANewArrayInsn: "visitMultiANewArrayInsn",
	KindFrame:              "visitFrame",
	KindIincInsn:           "visitIincInsn",
	KindLdcInsn:            "visitLdcInsn",
}

// String returns the visitor method the kind forwards to.
func (k EventKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "EventKind(?)"
}

// Event is one forwardable visitor call. The set of variants is closed, and
// each variant dispatches to exactly one method of lowerer, so a variant
// without a lowering case does not compile.
type Event interface {
	Kind() EventKind
	lower(l lowerer) error
}

// lowerer has one method per Event variant.
type lowerer interface {
	code(Code) error
	end(End) error
	maxs(Maxs) error
	parameter(Parameter) error
	insn(Insn) error
	intInsn(IntInsn) error
	varInsn(VarInsn) error
	typeInsn(TypeInsn) error
	fieldInsn(FieldInsn) error
	methodInsn(MethodInsn) error
	invokeDynamicInsn(InvokeDynamicInsn) error
	multiANewArrayInsn(MultiANewArrayInsn) error
	frame(Frame) error
	iincInsn(IincInsn) error
	ldcInsn(LdcInsn) error
}

// Code starts the method body.
type Code struct{}

// End closes the method.
type End struct{}

// Maxs declares the maximum stack size and local count.
type Maxs struct {
	MaxStack, MaxLocals int
}

// Parameter names a formal parameter.
type Parameter struct {
	Name   string
	Access int
}

// Insn is a zero-operand instruction.
type Insn struct {
	Opcode asm.Opcode
}

// IntInsn is BIPUSH, SIPUSH or NEWARRAY with its operand.
type IntInsn struct {
	Opcode  asm.Opcode
	Operand int
}

// VarInsn loads or stores a local variable slot.
type VarInsn struct {
	Opcode asm.Opcode
	Slot   int
}

// TypeInsn is NEW, ANEWARRAY, CHECKCAST or INSTANCEOF.
type TypeInsn struct {
	Opcode asm.Opcode
	Type   string
}

// FieldInsn reads or writes a field.
type FieldInsn struct {
	Opcode            asm.Opcode
	Owner, Name, Desc string
}

// MethodInsn calls a method.
type MethodInsn struct {
	Opcode            asm.Opcode
	Owner, Name, Desc string
	IsInterface       bool
}

// InvokeDynamicInsn is a dynamic call site. A nil BootstrapArgs is forwarded
// as a null array.
type InvokeDynamicInsn struct {
	Name, Desc    string
	Bootstrap     asm.Handle
	BootstrapArgs []Operand
}

// MultiANewArrayInsn creates a multi-dimensional array.
type MultiANewArrayInsn struct {
	Desc string
	Dims int
}

// Frame declares the type state at the current position. Nil Local or Stack
// slices are forwarded as null arrays.
type Frame struct {
	Type   int
	NLocal int
	Local  []Operand
	NStack int
	Stack  []Operand
}

// IincInsn increments a local variable.
type IincInsn struct {
	Slot, Increment int
}

// LdcInsn loads a constant.
type LdcInsn struct {
	Value Operand
}

func (Code) Kind() EventKind               { return KindCode }
func (End) Kind() EventKind                { return KindEnd }
func (Maxs) Kind() EventKind               { return KindMaxs }
func (Parameter) Kind() EventKind          { return KindParameter }
func (Insn) Kind() EventKind               { return KindInsn }
func (IntInsn) Kind() EventKind            { return KindIntInsn }
func (VarInsn) Kind() EventKind            { return KindVarInsn }
func (TypeInsn) Kind() EventKind           { return KindTypeInsn }
func (FieldInsn) Kind() EventKind          { return KindFieldInsn }
func (MethodInsn) Kind() EventKind         { return KindMethodInsn }
func (InvokeDynamicInsn) Kind() EventKind  { return KindInvokeDynamicInsn }
func (MultiANewArrayInsn) Kind() EventKind { return KindMultiANewArrayInsn }
func (Frame) Kind() EventKind              { return KindFrame }
func (IincInsn) Kind() EventKind           { return KindIincInsn }
func (LdcInsn) Kind() EventKind            { return KindLdcInsn }

func (e Code) lower(l lowerer) error               { return l.code(e) }
func (e End) lower(l lowerer) error                { return l.end(e) }
func (e Maxs) lower(l lowerer) error               { return l.maxs(e) }
func (e Parameter) lower(l lowerer) error          { return l.parameter(e) }
func (e Insn) lower(l lowerer) error               { return l.insn(e) }
func (e IntInsn) lower(l lowerer) error            { return l.intInsn(e) }
func (e VarInsn) lower(l lowerer) error            { return l.varInsn(e) }
func (e TypeInsn) lower(l lowerer) error           { return l.typeInsn(e) }
func (e FieldInsn) lower(l lowerer) error          { return l.fieldInsn(e) }
func (e MethodInsn) lower(l lowerer) error         { return l.methodInsn(e) }
func (e InvokeDynamicInsn) lower(l lowerer) error  { return l.invokeDynamicInsn(e) }
func (e MultiANewArrayInsn) lower(l lowerer) error { return l.multiANewArrayInsn(e) }
func (e Frame) lower(l lowerer) error              { return l.frame(e) }
func (e IincInsn) lower(l lowerer) error           { return l.iincInsn(e) }
func (e LdcInsn) lower(l lowerer) error            { return l.ldcInsn(e) }
