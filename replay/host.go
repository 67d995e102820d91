package replay

import (
	"fmt"

	"github.com/chazu/lambdastring/asm"
)

// Object is an instance created by NEW. Native holds the Go value behind
// toolkit types: a *asm.Label or an asm.Handle.
type Object struct {
	Class       string
	Message     string
	Native      any
	Initialized bool
}

func (o *Object) String() string {
	if o.Message != "" {
		return o.Class + ": " + o.Message
	}
	return o.Class
}

// Array is a reference array created by ANEWARRAY.
type Array struct {
	ElemType string
	Elems    []any
}

// visitorCall reads converted arguments and returns the call to make. All
// conversions happen before the visitor sees anything.
type visitorCall func(c *argReader) func(mv asm.MethodVisitor) error

// visitorMethods binds visitor method names and descriptors to Go calls. The
// toolkit package in descriptors is written as "%s".
var visitorMethods = map[string]visitorCall{
	"visitCode()V": func(c *argReader) func(asm.MethodVisitor) error {
		return func(mv asm.MethodVisitor) error { return mv.VisitCode() }
	},
	"visitEnd()V": func(c *argReader) func(asm.MethodVisitor) error {
		return func(mv asm.MethodVisitor) error { return mv.VisitEnd() }
	},
	"visitMaxs(II)V": func(c *argReader) func(asm.MethodVisitor) error {
		maxStack, maxLocals := c.int(), c.int()
		return func(mv asm.MethodVisitor) error { return mv.VisitMaxs(maxStack, maxLocals) }
	},
	"visitParameter(Ljava/lang/String;I)V": func(c *argReader) func(asm.MethodVisitor) error {
		name, access := c.string(), c.int()
		return func(mv asm.MethodVisitor) error { return mv.VisitParameter(name, access) }
	},
	"visitInsn(I)V": func(c *argReader) func(asm.MethodVisitor) error {
		op := c.opcode()
		return func(mv asm.MethodVisitor) error { return mv.VisitInsn(op) }
	},
	"visitIntInsn(II)V": func(c *argReader) func(asm.MethodVisitor) error {
		op, operand := c.opcode(), c.int()
		return func(mv asm.MethodVisitor) error { return mv.VisitIntInsn(op, operand) }
	},
	"visitVarInsn(II)V": func(c *argReader) func(asm.MethodVisitor) error {
		op, slot := c.opcode(), c.int()
		return func(mv asm.MethodVisitor) error { return mv.VisitVarInsn(op, slot) }
	},
	"visitTypeInsn(ILjava/lang/String;)V": func(c *argReader) func(asm.MethodVisitor) error {
		op, typ := c.opcode(), c.string()
		return func(mv asm.MethodVisitor) error { return mv.VisitTypeInsn(op, typ) }
	},
	"visitFieldInsn(ILjava/lang/String;Ljava/lang/String;Ljava/lang/String;)V": func(c *argReader) func(asm.MethodVisitor) error {
		op, owner, name, desc := c.opcode(), c.string(), c.string(), c.string()
		return func(mv asm.MethodVisitor) error { return mv.VisitFieldInsn(op, owner, name, desc) }
	},
	"visitMethodInsn(ILjava/lang/String;Ljava/lang/String;Ljava/lang/String;Z)V": func(c *argReader) func(asm.MethodVisitor) error {
		op, owner, name, desc, itf := c.opcode(), c.string(), c.string(), c.string(), c.bool()
		return func(mv asm.MethodVisitor) error { return mv.VisitMethodInsn(op, owner, name, desc, itf) }
	},
	"visitInvokeDynamicInsn(Ljava/lang/String;Ljava/lang/String;L%s/Handle;[Ljava/lang/Object;)V": func(c *argReader) func(asm.MethodVisitor) error {
		name, desc, bsm, bsmArgs := c.string(), c.string(), c.handle(), c.array()
		return func(mv asm.MethodVisitor) error { return mv.VisitInvokeDynamicInsn(name, desc, bsm, bsmArgs...) }
	},
	"visitMultiANewArrayInsn(Ljava/lang/String;I)V": func(c *argReader) func(asm.MethodVisitor) error {
		desc, dims := c.string(), c.int()
		return func(mv asm.MethodVisitor) error { return mv.VisitMultiANewArrayInsn(desc, dims) }
	},
	"visitFrame(II[Ljava/lang/Object;I[Ljava/lang/Object;)V": func(c *argReader) func(asm.MethodVisitor) error {
		kind, nLocal, local, nStack, stack := c.int(), c.int(), c.array(), c.int(), c.array()
		return func(mv asm.MethodVisitor) error { return mv.VisitFrame(kind, nLocal, local, nStack, stack) }
	},
	"visitIincInsn(II)V": func(c *argReader) func(asm.MethodVisitor) error {
		slot, incr := c.int(), c.int()
		return func(mv asm.MethodVisitor) error { return mv.VisitIincInsn(slot, incr) }
	},
	"visitLdcInsn(Ljava/lang/Object;)V": func(c *argReader) func(asm.MethodVisitor) error {
		cst := c.object()
		return func(mv asm.MethodVisitor) error { return mv.VisitLdcInsn(cst) }
	},
	"visitLabel(L%s/Label;)V": func(c *argReader) func(asm.MethodVisitor) error {
		label := c.label()
		return func(mv asm.MethodVisitor) error { return mv.VisitLabel(label) }
	},
	"visitTryCatchBlock(L%s/Label;L%s/Label;L%s/Label;Ljava/lang/String;)V": func(c *argReader) func(asm.MethodVisitor) error {
		start, end, handler, typ := c.label(), c.label(), c.label(), c.string()
		return func(mv asm.MethodVisitor) error { return mv.VisitTryCatchBlock(start, end, handler, typ) }
	},
	"visitLineNumber(IL%s/Label;)V": func(c *argReader) func(asm.MethodVisitor) error {
		line, start := c.int(), c.label()
		return func(mv asm.MethodVisitor) error { return mv.VisitLineNumber(line, start) }
	},
	"visitJumpInsn(IL%s/Label;)V": func(c *argReader) func(asm.MethodVisitor) error {
		op, label := c.opcode(), c.label()
		return func(mv asm.MethodVisitor) error { return mv.VisitJumpInsn(op, label) }
	},
}

// bindings resolves the descriptors of visitorMethods for one toolkit
// package.
func bindings(pkg string) map[string]visitorCall {
	out := make(map[string]visitorCall, len(visitorMethods))
	for key, call := range visitorMethods {
		n := 0
		for i := 0; i+1 < len(key); i++ {
			if key[i] == '%' && key[i+1] == 's' {
				n++
			}
		}
		if n > 0 {
			args := make([]any, n)
			for i := range args {
				args[i] = pkg
			}
			key = fmt.Sprintf(key, args...)
		}
		out[key] = call
	}
	return out
}

func (m *Machine) callVisitor(mv asm.MethodVisitor, name, desc string, params []string, args []any) error {
	if m.bound == nil || m.boundPkg != m.toolkit {
		m.bound = bindings(m.toolkit)
		m.boundPkg = m.toolkit
	}
	call, ok := m.bound[name+desc]
	if !ok {
		return fmt.Errorf("%w: %s.%s%s", ErrNoSuchMethod, m.visitorType(), name, desc)
	}
	c := &argReader{args: args, m: m}
	invoke := call(c)
	if c.err == nil && c.i != len(args) {
		c.err = verifyError("%d arguments for %d parameters", len(args), len(params))
	}
	if c.err != nil {
		return fmt.Errorf("%s: %w", name, c.err)
	}
	if err := invoke(mv); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// argReader converts machine values to the Go types of visitor parameters,
// one argument per call. The first conversion failure is kept in err and
// later reads return zero values.
type argReader struct {
	m    *Machine
	args []any
	i    int
	err  error
}

func (c *argReader) next() (any, bool) {
	if c.err != nil {
		return nil, false
	}
	if c.i >= len(c.args) {
		c.err = verifyError("too few arguments")
		return nil, false
	}
	v := c.args[c.i]
	c.i++
	return v, true
}

func (c *argReader) fail(format string, args ...any) {
	if c.err == nil {
		c.err = verifyError("argument %d: %s", c.i-1, fmt.Sprintf(format, args...))
	}
}

func (c *argReader) int() int {
	v, ok := c.next()
	if !ok {
		return 0
	}
	i, ok := v.(int32)
	if !ok {
		c.fail("expected int, got %T", v)
		return 0
	}
	return int(i)
}

func (c *argReader) opcode() asm.Opcode {
	i := c.int()
	if i < 0 || i > 0xff {
		c.fail("opcode %d out of range", i)
		return 0
	}
	return asm.Opcode(i)
}

func (c *argReader) bool() bool {
	v, ok := c.next()
	if !ok {
		return false
	}
	switch b := v.(type) {
	case int32:
		return b != 0
	case bool:
		return b
	}
	c.fail("expected boolean, got %T", v)
	return false
}

// string reads a String argument; null reads as "".
func (c *argReader) string() string {
	v, ok := c.next()
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		c.fail("expected String, got %T", v)
		return ""
	}
	return s
}

func (c *argReader) label() *asm.Label {
	v, ok := c.next()
	if !ok {
		return nil
	}
	if v == nil {
		c.fail("null label")
		return nil
	}
	obj, ok := v.(*Object)
	if !ok || obj.Class != c.m.labelType() || !obj.Initialized {
		c.fail("expected Label, got %v", v)
		return nil
	}
	return obj.Native.(*asm.Label)
}

func (c *argReader) handle() asm.Handle {
	v, ok := c.next()
	if !ok {
		return asm.Handle{}
	}
	obj, ok := v.(*Object)
	if !ok || obj.Class != c.m.handleType() || !obj.Initialized {
		c.fail("expected Handle, got %v", v)
		return asm.Handle{}
	}
	return obj.Native.(asm.Handle)
}

// array reads an Object[] argument; null reads as a nil slice.
func (c *argReader) array() []any {
	v, ok := c.next()
	if !ok || v == nil {
		return nil
	}
	arr, ok := v.(*Array)
	if !ok {
		c.fail("expected array, got %T", v)
		return nil
	}
	out := make([]any, len(arr.Elems))
	for i, e := range arr.Elems {
		conv, err := c.m.hostValue(e)
		if err != nil {
			c.fail("element %d: %v", i, err)
			return nil
		}
		out[i] = conv
	}
	return out
}

func (c *argReader) object() any {
	v, ok := c.next()
	if !ok {
		return nil
	}
	conv, err := c.m.hostValue(v)
	if err != nil {
		c.fail("%v", err)
		return nil
	}
	return conv
}

// hostValue converts a machine value to the Go value a visitor receives for
// an Object parameter.
func (m *Machine) hostValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, int32, bool, string:
		return x, nil
	case *Array:
		out := make([]any, len(x.Elems))
		for i, e := range x.Elems {
			conv, err := m.hostValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil
	case *Object:
		if !x.Initialized {
			return nil, fmt.Errorf("uninitialized %s", x.Class)
		}
		if x.Native != nil {
			return x.Native, nil
		}
		return nil, fmt.Errorf("%s has no host value", x.Class)
	default:
		return nil, fmt.Errorf("unexpected value %T", v)
	}
}

func toHandle(args []any) (asm.Handle, error) {
	tag, ok := args[0].(int32)
	if !ok {
		return asm.Handle{}, verifyError("handle tag is %T", args[0])
	}
	var strs [3]string
	for i := range strs {
		s, err := toString(args[1+i])
		if err != nil {
			return asm.Handle{}, err
		}
		strs[i] = s
	}
	itf, ok := args[4].(int32)
	if !ok {
		return asm.Handle{}, verifyError("handle interface flag is %T", args[4])
	}
	return asm.Handle{Tag: int(tag), Owner: strs[0], Name: strs[1], Desc: strs[2], IsInterface: itf != 0}, nil
}

func toString(v any) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	}
	return "", verifyError("expected String, got %T", v)
}
