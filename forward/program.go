package forward

import (
	"fmt"

	"github.com/chazu/lambdastring/asm"
)

// ReplayMethodName is the name given to methods built by Compile.
const ReplayMethodName = "replay"

// Program is a recorded sequence of events, in visit order.
type Program []Event

// Compile lowers p into a complete replay method taking the visitor handle as
// its only argument:
//
//	ALOAD 0
//	<forwarded events>
//	POP
//	RETURN
func Compile(p Program, opts ...Option) (*asm.Method, error) {
	em := NewEmitter(nil, opts...)
	m := asm.NewMethod(ReplayMethodName, "(L"+em.VisitorType()+";)V")
	em.mv = m

	if err := m.VisitCode(); err != nil {
		return nil, err
	}
	if err := m.VisitVarInsn(asm.ALOAD, 0); err != nil {
		return nil, err
	}
	if err := em.EmitAll(p); err != nil {
		return nil, err
	}
	if err := m.VisitInsn(asm.POP); err != nil {
		return nil, err
	}
	if err := m.VisitInsn(asm.RETURN); err != nil {
		return nil, err
	}
	maxStack, err := m.ComputeMaxStack()
	if err != nil {
		return nil, fmt.Errorf("compile replay method: %w", err)
	}
	if err := m.VisitMaxs(maxStack, m.MaxLocals); err != nil {
		return nil, err
	}
	if err := m.VisitEnd(); err != nil {
		return nil, err
	}
	return m, nil
}

// Apply makes the visitor calls described by p directly on mv.
func (p Program) Apply(mv asm.MethodVisitor) error {
	a := applier{mv: mv}
	for i, ev := range p {
		if err := ev.lower(a); err != nil {
			return fmt.Errorf("apply event %d (%s): %w", i, ev.Kind(), err)
		}
	}
	return nil
}

// applier performs each event as a direct visitor call.
type applier struct {
	mv asm.MethodVisitor
}

var _ lowerer = applier{}

func (a applier) code(Code) error { return a.mv.VisitCode() }
func (a applier) end(End) error   { return a.mv.VisitEnd() }

func (a applier) maxs(ev Maxs) error {
	return a.mv.VisitMaxs(ev.MaxStack, ev.MaxLocals)
}

func (a applier) parameter(ev Parameter) error {
	return a.mv.VisitParameter(ev.Name, ev.Access)
}

func (a applier) insn(ev Insn) error {
	return a.mv.VisitInsn(ev.Opcode)
}

func (a applier) intInsn(ev IntInsn) error {
	return a.mv.VisitIntInsn(ev.Opcode, ev.Operand)
}

func (a applier) varInsn(ev VarInsn) error {
	return a.mv.VisitVarInsn(ev.Opcode, ev.Slot)
}

func (a applier) typeInsn(ev TypeInsn) error {
	return a.mv.VisitTypeInsn(ev.Opcode, ev.Type)
}

func (a applier) fieldInsn(ev FieldInsn) error {
	return a.mv.VisitFieldInsn(ev.Opcode, ev.Owner, ev.Name, ev.Desc)
}

func (a applier) methodInsn(ev MethodInsn) error {
	return a.mv.VisitMethodInsn(ev.Opcode, ev.Owner, ev.Name, ev.Desc, ev.IsInterface)
}

func (a applier) invokeDynamicInsn(ev InvokeDynamicInsn) error {
	return a.mv.VisitInvokeDynamicInsn(ev.Name, ev.Desc, ev.Bootstrap, Values(ev.BootstrapArgs)...)
}

func (a applier) multiANewArrayInsn(ev MultiANewArrayInsn) error {
	return a.mv.VisitMultiANewArrayInsn(ev.Desc, ev.Dims)
}

func (a applier) frame(ev Frame) error {
	return a.mv.VisitFrame(ev.Type, ev.NLocal, Values(ev.Local), ev.NStack, Values(ev.Stack))
}

func (a applier) iincInsn(ev IincInsn) error {
	return a.mv.VisitIincInsn(ev.Slot, ev.Increment)
}

func (a applier) ldcInsn(ev LdcInsn) error {
	return a.mv.VisitLdcInsn(Value(ev.Value))
}
