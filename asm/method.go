package asm

import (
	"errors"
	"fmt"
)

// NodeKind distinguishes real instructions from the pseudo entries a method
// body carries between them.
type NodeKind uint8

const (
	// NodeInsn is an executable instruction.
	NodeInsn NodeKind = iota
	// NodeLabel marks the position of a label.
	NodeLabel
	// NodeFrame declares the type state at the following instruction.
	NodeFrame
	// NodeLine maps the following instructions to a source line.
	NodeLine
)

// Node is one entry of a method body.
// Which fields are meaningful depends on Kind and, for instructions, on the
// opcode's Shape.
type Node struct {
	Kind NodeKind
	Op   Opcode

	Int   int    // BIPUSH/SIPUSH/NEWARRAY operand, local slot, dims, line
	Incr  int    // IINC increment
	Type  string // type operand or multianewarray descriptor
	Owner string
	Name  string
	Desc  string
	Itf   bool
	Cst   any // LDC constant

	Label  *Label   // jump target, label position, line start
	Labels []*Label // switch targets
	Keys   []int    // lookupswitch keys
	Min    int      // tableswitch bounds
	Max    int

	BSM     Handle
	BSMArgs []any

	FrameKind int
	Local     []any
	Stack     []any
}

// TryCatch is one entry of a method's exception table.
type TryCatch struct {
	Start, End, Handler *Label
	Type                string // internal name; empty catches everything
}

// LocalVariable is a debug entry naming a local slot over a label range.
type LocalVariable struct {
	Name, Desc, Signature string
	Start, End            *Label
	Index                 int
}

// Parameter is a formal parameter name entry.
type Parameter struct {
	Name   string
	Access int
}

// Method is an in-memory method body. It implements MethodVisitor by
// recording every call, so it accepts the full protocol.
type Method struct {
	Name string
	Desc string

	Nodes          []Node
	TryCatchBlocks []TryCatch
	LocalVariables []LocalVariable
	Parameters     []Parameter
	Annotations    []string
	Attributes     []Attribute

	MaxStack  int
	MaxLocals int

	codeStarted bool
	ended       bool
}

var _ MethodVisitor = (*Method)(nil)

// ErrMethodEnded is returned when a visit arrives after VisitEnd.
var ErrMethodEnded = errors.New("method already ended")

// NewMethod creates an empty method body.
func NewMethod(name, desc string) *Method {
	return &Method{
		Name:  name,
		Desc:  desc,
		Nodes: make([]Node, 0, 32),
	}
}

func (m *Method) add(n Node) error {
	if m.ended {
		return ErrMethodEnded
	}
	m.Nodes = append(m.Nodes, n)
	return nil
}

// CodeLen returns the number of executable instructions.
func (m *Method) CodeLen() int {
	count := 0
	for _, n := range m.Nodes {
		if n.Kind == NodeInsn {
			count++
		}
	}
	return count
}

// Instructions returns the executable instructions in order.
func (m *Method) Instructions() []Node {
	out := make([]Node, 0, len(m.Nodes))
	for _, n := range m.Nodes {
		if n.Kind == NodeInsn {
			out = append(out, n)
		}
	}
	return out
}

// CountOp returns how many instructions use op.
func (m *Method) CountOp(op Opcode) int {
	count := 0
	for _, n := range m.Nodes {
		if n.Kind == NodeInsn && n.Op == op {
			count++
		}
	}
	return count
}

// LabelIndex returns the node index where label is placed, or -1.
func (m *Method) LabelIndex(label *Label) int {
	for i, n := range m.Nodes {
		if n.Kind == NodeLabel && n.Label == label {
			return i
		}
	}
	return -1
}

// CheckHandlerFrames verifies that every exception handler starts with a
// frame declaring exactly one stack value, as a verifier requires at a merge
// point.
func (m *Method) CheckHandlerFrames() error {
	for i, tc := range m.TryCatchBlocks {
		idx := m.LabelIndex(tc.Handler)
		if idx < 0 {
			return fmt.Errorf("try/catch %d: handler label %s is never placed", i, tc.Handler)
		}
		var frame *Node
		for j := idx + 1; j < len(m.Nodes); j++ {
			n := &m.Nodes[j]
			if n.Kind == NodeLabel || n.Kind == NodeLine {
				continue
			}
			if n.Kind == NodeFrame {
				frame = n
			}
			break
		}
		if frame == nil {
			return fmt.Errorf("try/catch %d: no frame at handler %s", i, tc.Handler)
		}
		switch frame.FrameKind {
		case F_SAME1, F_FULL, F_NEW:
			if len(frame.Stack) != 1 {
				return fmt.Errorf("try/catch %d: handler frame has %d stack values, want 1", i, len(frame.Stack))
			}
			if tc.Type != "" && frame.Stack[0] != tc.Type {
				return fmt.Errorf("try/catch %d: handler frame stack is %v, want %s", i, frame.Stack[0], tc.Type)
			}
		default:
			return fmt.Errorf("try/catch %d: handler frame kind %d cannot carry the exception", i, frame.FrameKind)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// MethodVisitor implementation
// ---------------------------------------------------------------------------

func (m *Method) VisitParameter(name string, access int) error {
	m.Parameters = append(m.Parameters, Parameter{Name: name, Access: access})
	return nil
}

func (m *Method) VisitAnnotationDefault() error {
	m.Annotations = append(m.Annotations, "<default>")
	return nil
}

func (m *Method) VisitAnnotation(desc string, visible bool) error {
	m.Annotations = append(m.Annotations, desc)
	return nil
}

func (m *Method) VisitTypeAnnotation(typeRef int, typePath string, desc string, visible bool) error {
	m.Annotations = append(m.Annotations, desc)
	return nil
}

func (m *Method) VisitParameterAnnotation(parameter int, desc string, visible bool) error {
	m.Annotations = append(m.Annotations, desc)
	return nil
}

func (m *Method) VisitAttribute(attr Attribute) error {
	m.Attributes = append(m.Attributes, attr)
	return nil
}

func (m *Method) VisitCode() error {
	if m.codeStarted {
		return errors.New("VisitCode called twice")
	}
	m.codeStarted = true
	return nil
}

func (m *Method) VisitFrame(kind int, nLocal int, local []any, nStack int, stack []any) error {
	if nLocal < 0 || nStack < 0 {
		return fmt.Errorf("frame declares negative counts %d and %d", nLocal, nStack)
	}
	if local != nil && nLocal > len(local) {
		return fmt.Errorf("frame declares %d locals but carries %d", nLocal, len(local))
	}
	if stack != nil && nStack > len(stack) {
		return fmt.Errorf("frame declares %d stack values but carries %d", nStack, len(stack))
	}
	n := Node{Kind: NodeFrame, FrameKind: kind}
	if local != nil {
		n.Local = append([]any(nil), local[:nLocal]...)
	}
	if stack != nil {
		n.Stack = append([]any(nil), stack[:nStack]...)
	}
	return m.add(n)
}

func (m *Method) VisitInsn(opcode Opcode) error {
	return m.add(Node{Kind: NodeInsn, Op: opcode})
}

func (m *Method) VisitIntInsn(opcode Opcode, operand int) error {
	return m.add(Node{Kind: NodeInsn, Op: opcode, Int: operand})
}

func (m *Method) VisitVarInsn(opcode Opcode, slot int) error {
	if slot < 0 {
		return fmt.Errorf("%s: negative local slot %d", opcode, slot)
	}
	if slot+1 > m.MaxLocals {
		m.MaxLocals = slot + 1
	}
	return m.add(Node{Kind: NodeInsn, Op: opcode, Int: slot})
}

func (m *Method) VisitTypeInsn(opcode Opcode, typ string) error {
	return m.add(Node{Kind: NodeInsn, Op: opcode, Type: typ})
}

func (m *Method) VisitFieldInsn(opcode Opcode, owner, name, desc string) error {
	return m.add(Node{Kind: NodeInsn, Op: opcode, Owner: owner, Name: name, Desc: desc})
}

func (m *Method) VisitMethodInsn(opcode Opcode, owner, name, desc string, isInterface bool) error {
	return m.add(Node{Kind: NodeInsn, Op: opcode, Owner: owner, Name: name, Desc: desc, Itf: isInterface})
}

func (m *Method) VisitInvokeDynamicInsn(name, desc string, bsm Handle, bsmArgs ...any) error {
	return m.add(Node{Kind: NodeInsn, Op: INVOKEDYNAMIC, Name: name, Desc: desc, BSM: bsm, BSMArgs: bsmArgs})
}

func (m *Method) VisitJumpInsn(opcode Opcode, label *Label) error {
	return m.add(Node{Kind: NodeInsn, Op: opcode, Label: label})
}

func (m *Method) VisitLabel(label *Label) error {
	if label == nil {
		return errors.New("VisitLabel: nil label")
	}
	if m.LabelIndex(label) >= 0 {
		return fmt.Errorf("label %s placed twice", label)
	}
	return m.add(Node{Kind: NodeLabel, Label: label})
}

func (m *Method) VisitLdcInsn(cst any) error {
	return m.add(Node{Kind: NodeInsn, Op: LDC, Cst: cst})
}

func (m *Method) VisitIincInsn(slot int, increment int) error {
	return m.add(Node{Kind: NodeInsn, Op: IINC, Int: slot, Incr: increment})
}

func (m *Method) VisitTableSwitchInsn(min, max int, dflt *Label, labels ...*Label) error {
	return m.add(Node{Kind: NodeInsn, Op: TABLESWITCH, Min: min, Max: max, Label: dflt, Labels: labels})
}

func (m *Method) VisitLookupSwitchInsn(dflt *Label, keys []int, labels []*Label) error {
	if len(keys) != len(labels) {
		return fmt.Errorf("lookupswitch: %d keys but %d labels", len(keys), len(labels))
	}
	return m.add(Node{Kind: NodeInsn, Op: LOOKUPSWITCH, Label: dflt, Keys: keys, Labels: labels})
}

func (m *Method) VisitMultiANewArrayInsn(desc string, dims int) error {
	return m.add(Node{Kind: NodeInsn, Op: MULTIANEWARRAY, Type: desc, Int: dims})
}

func (m *Method) VisitInsnAnnotation(typeRef int, typePath string, desc string, visible bool) error {
	m.Annotations = append(m.Annotations, desc)
	return nil
}

func (m *Method) VisitTryCatchBlock(start, end, handler *Label, typ string) error {
	if start == nil || end == nil || handler == nil {
		return errors.New("VisitTryCatchBlock: nil label")
	}
	m.TryCatchBlocks = append(m.TryCatchBlocks, TryCatch{Start: start, End: end, Handler: handler, Type: typ})
	return nil
}

func (m *Method) VisitTryCatchAnnotation(typeRef int, typePath string, desc string, visible bool) error {
	m.Annotations = append(m.Annotations, desc)
	return nil
}

func (m *Method) VisitLocalVariable(name, desc, signature string, start, end *Label, index int) error {
	m.LocalVariables = append(m.LocalVariables, LocalVariable{
		Name: name, Desc: desc, Signature: signature, Start: start, End: end, Index: index,
	})
	return nil
}

func (m *Method) VisitLineNumber(line int, start *Label) error {
	return m.add(Node{Kind: NodeLine, Int: line, Label: start})
}

func (m *Method) VisitMaxs(maxStack, maxLocals int) error {
	m.MaxStack = maxStack
	if maxLocals > m.MaxLocals {
		m.MaxLocals = maxLocals
	}
	return nil
}

func (m *Method) VisitEnd() error {
	if m.ended {
		return ErrMethodEnded
	}
	m.ended = true
	return nil
}

// Ended reports whether VisitEnd has been called.
func (m *Method) Ended() bool {
	return m.ended
}
