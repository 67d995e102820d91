package forward

import (
	"fmt"

	"github.com/chazu/lambdastring/asm"
)

// sink adapts visitor calls to events. Supported calls are converted and
// handed to put; unsupported calls fail before put is reached.
type sink struct {
	put func(Event) error
}

var _ asm.MethodVisitor = sink{}

func (s sink) VisitParameter(name string, access int) error {
	return s.put(Parameter{Name: name, Access: access})
}

func (s sink) VisitCode() error {
	return s.put(Code{})
}

func (s sink) VisitFrame(kind int, nLocal int, local []any, nStack int, stack []any) error {
	l, err := OperandsOf(local)
	if err != nil {
		return fmt.Errorf("visitFrame locals: %w", err)
	}
	st, err := OperandsOf(stack)
	if err != nil {
		return fmt.Errorf("visitFrame stack: %w", err)
	}
	return s.put(Frame{Type: kind, NLocal: nLocal, Local: l, NStack: nStack, Stack: st})
}

func (s sink) VisitInsn(opcode asm.Opcode) error {
	return s.put(Insn{Opcode: opcode})
}

func (s sink) VisitIntInsn(opcode asm.Opcode, operand int) error {
	return s.put(IntInsn{Opcode: opcode, Operand: operand})
}

func (s sink) VisitVarInsn(opcode asm.Opcode, slot int) error {
	return s.put(VarInsn{Opcode: opcode, Slot: slot})
}

func (s sink) VisitTypeInsn(opcode asm.Opcode, typ string) error {
	return s.put(TypeInsn{Opcode: opcode, Type: typ})
}

func (s sink) VisitFieldInsn(opcode asm.Opcode, owner, name, desc string) error {
	return s.put(FieldInsn{Opcode: opcode, Owner: owner, Name: name, Desc: desc})
}

func (s sink) VisitMethodInsn(opcode asm.Opcode, owner, name, desc string, isInterface bool) error {
	return s.put(MethodInsn{Opcode: opcode, Owner: owner, Name: name, Desc: desc, IsInterface: isInterface})
}

func (s sink) VisitInvokeDynamicInsn(name, desc string, bsm asm.Handle, bsmArgs ...any) error {
	args, err := OperandsOf(bsmArgs)
	if err != nil {
		return fmt.Errorf("visitInvokeDynamicInsn bootstrap args: %w", err)
	}
	return s.put(InvokeDynamicInsn{Name: name, Desc: desc, Bootstrap: bsm, BootstrapArgs: args})
}

func (s sink) VisitLdcInsn(cst any) error {
	v, err := OperandOf(cst)
	if err != nil {
		return fmt.Errorf("visitLdcInsn: %w", err)
	}
	return s.put(LdcInsn{Value: v})
}

func (s sink) VisitIincInsn(slot int, increment int) error {
	return s.put(IincInsn{Slot: slot, Increment: increment})
}

func (s sink) VisitMultiANewArrayInsn(desc string, dims int) error {
	return s.put(MultiANewArrayInsn{Desc: desc, Dims: dims})
}

func (s sink) VisitMaxs(maxStack, maxLocals int) error {
	return s.put(Maxs{MaxStack: maxStack, MaxLocals: maxLocals})
}

func (s sink) VisitEnd() error {
	return s.put(End{})
}

// Unsupported operations.

func (sink) VisitAnnotationDefault() error {
	return notSupported("visitAnnotationDefault")
}

func (sink) VisitAnnotation(desc string, visible bool) error {
	return notSupported("visitAnnotation")
}

func (sink) VisitTypeAnnotation(typeRef int, typePath string, desc string, visible bool) error {
	return notSupported("visitTypeAnnotation")
}

func (sink) VisitParameterAnnotation(parameter int, desc string, visible bool) error {
	return notSupported("visitParameterAnnotation")
}

func (sink) VisitAttribute(attr asm.Attribute) error {
	return notSupported("visitAttribute")
}

func (sink) VisitJumpInsn(opcode asm.Opcode, label *asm.Label) error {
	return notSupported("visitJumpInsn")
}

func (sink) VisitLabel(label *asm.Label) error {
	return notSupported("visitLabel")
}

func (sink) VisitTableSwitchInsn(min, max int, dflt *asm.Label, labels ...*asm.Label) error {
	return notSupported("visitTableSwitchInsn")
}

func (sink) VisitLookupSwitchInsn(dflt *asm.Label, keys []int, labels []*asm.Label) error {
	return notSupported("visitLookupSwitchInsn")
}

func (sink) VisitInsnAnnotation(typeRef int, typePath string, desc string, visible bool) error {
	return notSupported("visitInsnAnnotation")
}

func (sink) VisitTryCatchBlock(start, end, handler *asm.Label, typ string) error {
	return notSupported("visitTryCatchBlock")
}

func (sink) VisitTryCatchAnnotation(typeRef int, typePath string, desc string, visible bool) error {
	return notSupported("visitTryCatchAnnotation")
}

func (sink) VisitLocalVariable(name, desc, signature string, start, end *asm.Label, index int) error {
	return notSupported("visitLocalVariable")
}

func (sink) VisitLineNumber(line int, start *asm.Label) error {
	return notSupported("visitLineNumber")
}

// Visitor returns a MethodVisitor that forwards each supported call through
// Emit. Unsupported calls return ErrNotSupported without emitting anything.
func (e *Emitter) Visitor() asm.MethodVisitor {
	return sink{put: e.Emit}
}

// ---------------------------------------------------------------------------
// Recorder
// ---------------------------------------------------------------------------

// Recorder is a MethodVisitor that collects supported calls into a Program.
type Recorder struct {
	sink
	program Program
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	r := &Recorder{}
	r.sink = sink{put: r.record}
	return r
}

func (r *Recorder) record(ev Event) error {
	r.program = append(r.program, ev)
	return nil
}

// Program returns the events recorded so far.
func (r *Recorder) Program() Program {
	return r.program
}

// Reset discards the recorded events.
func (r *Recorder) Reset() {
	r.program = nil
}
