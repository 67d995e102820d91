// Package forward turns method-visitor events into straight-line code that
// replays them.
//
// Given a visitor handle on top of the operand stack, Emit appends
// instructions that, when executed, duplicate the handle, push the event's
// arguments and invoke the matching visitor method. Only a fixed subset of
// operations can be forwarded; see ErrNotSupported.
package forward

import (
	"errors"
	"fmt"

	"github.com/chazu/lambdastring/asm"
)

// DefaultToolkitPackage is the package of the runtime visitor types.
const DefaultToolkitPackage = "org/objectweb/asm"

// DefaultLabelSlot is the first local slot used for block labels. Slot 0
// holds the visitor handle in a compiled replay method.
const DefaultLabelSlot = 1

// Emitter writes forwarding code into a method visitor.
type Emitter struct {
	mv  asm.MethodVisitor
	sig signatures

	labelBase int
	depth     int
}

var _ lowerer = (*Emitter)(nil)

// Option configures an Emitter.
type Option func(*Emitter)

// WithToolkitPackage sets the internal package name of MethodVisitor, Label
// and Handle, e.g. "jdk/internal/org/objectweb/asm".
func WithToolkitPackage(pkg string) Option {
	return func(e *Emitter) {
		e.sig = newSignatures(pkg)
	}
}

// WithLabelSlot sets the first local slot available to structured blocks.
func WithLabelSlot(slot int) Option {
	return func(e *Emitter) {
		e.labelBase = slot
	}
}

// NewEmitter creates an emitter writing into mv.
func NewEmitter(mv asm.MethodVisitor, opts ...Option) *Emitter {
	e := &Emitter{
		mv:        mv,
		sig:       newSignatures(DefaultToolkitPackage),
		labelBase: DefaultLabelSlot,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// VisitorType returns the internal name of the visitor handle's type.
func (e *Emitter) VisitorType() string {
	return e.sig.visitor
}

// Emit appends the code that replays ev against the visitor handle. An event
// whose arguments cannot be pushed is rejected before anything is written.
func (e *Emitter) Emit(ev Event) error {
	if ev == nil {
		return errors.New("forward: nil event")
	}
	if err := ev.lower(checker{}); err != nil {
		return fmt.Errorf("forward %s: %w", ev.Kind(), err)
	}
	if err := ev.lower(e); err != nil {
		return fmt.Errorf("forward %s: %w", ev.Kind(), err)
	}
	return nil
}

// EmitAll emits every event of a program in order.
func (e *Emitter) EmitAll(p Program) error {
	for i, ev := range p {
		if err := e.Emit(ev); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Visitor method signatures
// ---------------------------------------------------------------------------

type signatures struct {
	visitor string
	label   string
	handle  string

	invokeDynamic string
	tryCatchBlock string
	visitLabel    string
}

const (
	descNoArgs         = "()V"
	descInt            = "(I)V"
	descIntInt         = "(II)V"
	descIntString      = "(ILjava/lang/String;)V"
	descStringInt      = "(Ljava/lang/String;I)V"
	descFieldInsn      = "(ILjava/lang/String;Ljava/lang/String;Ljava/lang/String;)V"
	descMethodInsn     = "(ILjava/lang/String;Ljava/lang/String;Ljava/lang/String;Z)V"
	descFrame          = "(II[Ljava/lang/Object;I[Ljava/lang/Object;)V"
	descObject         = "(Ljava/lang/Object;)V"
	descHandleInit     = "(ILjava/lang/String;Ljava/lang/String;Ljava/lang/String;Z)V"
	descIntegerValueOf = "(I)Ljava/lang/Integer;"
	descBooleanValueOf = "(Z)Ljava/lang/Boolean;"
)

func newSignatures(pkg string) signatures {
	label := pkg + "/Label"
	handle := pkg + "/Handle"
	return signatures{
		visitor:       pkg + "/MethodVisitor",
		label:         label,
		handle:        handle,
		invokeDynamic: "(Ljava/lang/String;Ljava/lang/String;L" + handle + ";[Ljava/lang/Object;)V",
		tryCatchBlock: "(L" + label + ";L" + label + ";L" + label + ";Ljava/lang/String;)V",
		visitLabel:    "(L" + label + ";)V",
	}
}

// ---------------------------------------------------------------------------
// Core dispatch
// ---------------------------------------------------------------------------

func (e *Emitter) dup() error {
	return e.mv.VisitInsn(asm.DUP)
}

func (e *Emitter) invoke(name, desc string) error {
	return e.mv.VisitMethodInsn(asm.INVOKEVIRTUAL, e.sig.visitor, name, desc, false)
}

// forward duplicates the handle, runs the pushes and invokes name/desc.
func (e *Emitter) forward(name, desc string, pushes ...func() error) error {
	if err := e.dup(); err != nil {
		return err
	}
	for _, push := range pushes {
		if err := push(); err != nil {
			return err
		}
	}
	return e.invoke(name, desc)
}

func (e *Emitter) code(Code) error {
	return e.forward("visitCode", descNoArgs)
}

func (e *Emitter) end(End) error {
	return e.forward("visitEnd", descNoArgs)
}

func (e *Emitter) maxs(ev Maxs) error {
	return e.forward("visitMaxs", descIntInt, e.intArg(ev.MaxStack), e.intArg(ev.MaxLocals))
}

func (e *Emitter) parameter(ev Parameter) error {
	return e.forward("visitParameter", descStringInt, e.stringArg(ev.Name), e.intArg(ev.Access))
}

func (e *Emitter) insn(ev Insn) error {
	return e.forward("visitInsn", descInt, e.intArg(int(ev.Opcode)))
}

func (e *Emitter) intInsn(ev IntInsn) error {
	return e.forward("visitIntInsn", descIntInt, e.intArg(int(ev.Opcode)), e.intArg(ev.Operand))
}

func (e *Emitter) varInsn(ev VarInsn) error {
	return e.forward("visitVarInsn", descIntInt, e.intArg(int(ev.Opcode)), e.intArg(ev.Slot))
}

func (e *Emitter) typeInsn(ev TypeInsn) error {
	return e.forward("visitTypeInsn", descIntString, e.intArg(int(ev.Opcode)), e.stringArg(ev.Type))
}

func (e *Emitter) fieldInsn(ev FieldInsn) error {
	return e.forward("visitFieldInsn", descFieldInsn,
		e.intArg(int(ev.Opcode)), e.stringArg(ev.Owner), e.stringArg(ev.Name), e.stringArg(ev.Desc))
}

func (e *Emitter) methodInsn(ev MethodInsn) error {
	return e.forward("visitMethodInsn", descMethodInsn,
		e.intArg(int(ev.Opcode)), e.stringArg(ev.Owner), e.stringArg(ev.Name), e.stringArg(ev.Desc),
		e.boolArg(ev.IsInterface))
}

func (e *Emitter) invokeDynamicInsn(ev InvokeDynamicInsn) error {
	return e.forward("visitInvokeDynamicInsn", e.sig.invokeDynamic,
		e.stringArg(ev.Name), e.stringArg(ev.Desc),
		func() error { return e.pushHandle(ev.Bootstrap) },
		e.arrayArg(ev.BootstrapArgs))
}

func (e *Emitter) multiANewArrayInsn(ev MultiANewArrayInsn) error {
	return e.forward("visitMultiANewArrayInsn", descStringInt, e.stringArg(ev.Desc), e.intArg(ev.Dims))
}

func (e *Emitter) frame(ev Frame) error {
	return e.forward("visitFrame", descFrame,
		e.intArg(ev.Type), e.intArg(ev.NLocal), e.arrayArg(ev.Local),
		e.intArg(ev.NStack), e.arrayArg(ev.Stack))
}

func (e *Emitter) iincInsn(ev IincInsn) error {
	return e.forward("visitIincInsn", descIntInt, e.intArg(ev.Slot), e.intArg(ev.Increment))
}

func (e *Emitter) ldcInsn(ev LdcInsn) error {
	if ev.Value == nil {
		return errors.New("ldc without a constant")
	}
	return e.forward("visitLdcInsn", descObject, func() error { return e.pushObject(ev.Value) })
}

// ---------------------------------------------------------------------------
// Argument closures
// ---------------------------------------------------------------------------

func (e *Emitter) intArg(v int) func() error {
	return func() error { return e.pushIntChecked(v) }
}

func (e *Emitter) stringArg(s string) func() error {
	return func() error { return e.pushString(s) }
}

func (e *Emitter) boolArg(b bool) func() error {
	return func() error { return e.pushBool(b) }
}

func (e *Emitter) arrayArg(elems []Operand) func() error {
	return func() error { return e.pushArray(elems, asm.ObjectType) }
}
