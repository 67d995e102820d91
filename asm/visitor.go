// Package asm models the method-visitor protocol of a JVM bytecode toolkit
// and an in-memory method body that implements it.
//
// The protocol is a sequence of Visit calls describing one method: optional
// parameters and annotations, then VisitCode, instructions interleaved with
// labels, frames and debug entries, then VisitMaxs and VisitEnd. Every call
// returns an error so a visitor can reject the calls it does not support.
package asm

import "fmt"

// Internal names of the runtime types the protocol refers to.
const (
	MethodVisitorType = "org/objectweb/asm/MethodVisitor"
	LabelType         = "org/objectweb/asm/Label"
	HandleType        = "org/objectweb/asm/Handle"
	ObjectType        = "java/lang/Object"
	StringType        = "java/lang/String"
	IntegerType       = "java/lang/Integer"
	BooleanType       = "java/lang/Boolean"
)

// Label marks a position in a method body. Labels are compared by identity.
type Label struct {
	// Name is optional and only used when printing.
	Name string
}

// NewLabel returns a fresh label.
func NewLabel(name string) *Label {
	return &Label{Name: name}
}

func (l *Label) String() string {
	if l == nil {
		return "<nil label>"
	}
	if l.Name != "" {
		return l.Name
	}
	return fmt.Sprintf("L%p", l)
}

// Handle is a method handle constant, used by invokedynamic bootstrap methods.
type Handle struct {
	Tag         int
	Owner       string
	Name        string
	Desc        string
	IsInterface bool
}

func (h Handle) String() string {
	itf := ""
	if h.IsInterface {
		itf = " itf"
	}
	return fmt.Sprintf("%s.%s%s (%d)%s", h.Owner, h.Name, h.Desc, h.Tag, itf)
}

// Attribute is a non-standard attribute attached to a method.
type Attribute struct {
	Type    string
	Content []byte
}

// MethodVisitor receives the events that describe one method.
type MethodVisitor interface {
	VisitParameter(name string, access int) error
	VisitAnnotationDefault() error
	VisitAnnotation(desc string, visible bool) error
	VisitTypeAnnotation(typeRef int, typePath string, desc string, visible bool) error
	VisitParameterAnnotation(parameter int, desc string, visible bool) error
	VisitAttribute(attr Attribute) error
	VisitCode() error
	VisitFrame(kind int, nLocal int, local []any, nStack int, stack []any) error
	VisitInsn(opcode Opcode) error
	VisitIntInsn(opcode Opcode, operand int) error
	VisitVarInsn(opcode Opcode, slot int) error
	VisitTypeInsn(opcode Opcode, typ string) error
	VisitFieldInsn(opcode Opcode, owner, name, desc string) error
	VisitMethodInsn(opcode Opcode, owner, name, desc string, isInterface bool) error
	VisitInvokeDynamicInsn(name, desc string, bsm Handle, bsmArgs ...any) error
	VisitJumpInsn(opcode Opcode, label *Label) error
	VisitLabel(label *Label) error
	VisitLdcInsn(cst any) error
	VisitIincInsn(slot int, increment int) error
	VisitTableSwitchInsn(min, max int, dflt *Label, labels ...*Label) error
	VisitLookupSwitchInsn(dflt *Label, keys []int, labels []*Label) error
	VisitMultiANewArrayInsn(desc string, dims int) error
	VisitInsnAnnotation(typeRef int, typePath string, desc string, visible bool) error
	VisitTryCatchBlock(start, end, handler *Label, typ string) error
	VisitTryCatchAnnotation(typeRef int, typePath string, desc string, visible bool) error
	VisitLocalVariable(name, desc, signature string, start, end *Label, index int) error
	VisitLineNumber(line int, start *Label) error
	VisitMaxs(maxStack, maxLocals int) error
	VisitEnd() error
}
