// Package replay executes straight-line method bodies held in an asm.Method.
//
// It exists to run the code produced by package forward: the machine
// understands the small instruction subset that code uses, the Label and
// Handle constructors, boxing of scalars, and INVOKEVIRTUAL calls on a
// MethodVisitor handle, which it turns into calls on a Go asm.MethodVisitor.
// Exceptions thrown with ATHROW are routed through the method's try/catch
// table, so a replayed method can itself be executed again.
package replay

import (
	"fmt"
	"math"

	"github.com/tliron/commonlog"

	"github.com/chazu/lambdastring/asm"
)

var log = commonlog.GetLogger("lambdastring.replay")

// StaticFunc implements an INVOKESTATIC target. Arguments arrive in
// declaration order.
type StaticFunc func(args []any) (any, error)

// Machine executes methods one at a time. It is not safe for concurrent use.
type Machine struct {
	hierarchy Hierarchy
	toolkit   string
	statics   map[string]StaticFunc
	bound     map[string]visitorCall
	boundPkg  string

	// Trace logs every executed instruction at debug level.
	Trace bool

	// Per-run state
	method   *asm.Method
	labels   map[*asm.Label]int
	stack    []any
	locals   []any
	pc       int
	labelSeq int
}

// Option configures a Machine.
type Option func(*Machine)

// WithHierarchy replaces the class hierarchy used for handler matching. A nil
// hierarchy restores the default one.
func WithHierarchy(h Hierarchy) Option {
	return func(m *Machine) {
		if h == nil {
			h = DefaultHierarchy()
		}
		m.hierarchy = h
	}
}

// WithClass adds one class with its superclass to the hierarchy.
func WithClass(name, super string) Option {
	return func(m *Machine) {
		m.hierarchy[name] = super
	}
}

// WithToolkitPackage sets the package of the MethodVisitor, Label and Handle
// types the executed code refers to.
func WithToolkitPackage(pkg string) Option {
	return func(m *Machine) {
		m.toolkit = pkg
	}
}

// WithStatic binds an INVOKESTATIC target.
func WithStatic(owner, name, desc string, fn StaticFunc) Option {
	return func(m *Machine) {
		m.statics[staticKey(owner, name, desc)] = fn
	}
}

// NewMachine creates a machine with the default hierarchy and the
// java/lang/Integer and java/lang/Boolean boxing methods.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		hierarchy: DefaultHierarchy(),
		toolkit:   "org/objectweb/asm",
		statics:   make(map[string]StaticFunc),
	}
	m.statics[staticKey(asm.IntegerType, "valueOf", "(I)Ljava/lang/Integer;")] = func(args []any) (any, error) {
		return args[0], nil
	}
	m.statics[staticKey(asm.BooleanType, "valueOf", "(Z)Ljava/lang/Boolean;")] = func(args []any) (any, error) {
		return args[0] != int32(0), nil
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func staticKey(owner, name, desc string) string {
	return owner + "." + name + desc
}

func (m *Machine) labelType() string   { return m.toolkit + "/Label" }
func (m *Machine) handleType() string  { return m.toolkit + "/Handle" }
func (m *Machine) visitorType() string { return m.toolkit + "/MethodVisitor" }

// Run executes method with args in the first local slots and returns the
// value of IRETURN or ARETURN, or nil for RETURN. A MethodVisitor argument
// serves as the receiver of forwarded visitor calls.
func (m *Machine) Run(method *asm.Method, args ...any) (any, error) {
	if method == nil {
		return nil, fmt.Errorf("replay: nil method")
	}
	m.method = method
	m.labels = make(map[*asm.Label]int)
	for i, n := range method.Nodes {
		if n.Kind == asm.NodeLabel {
			m.labels[n.Label] = i
		}
	}
	nLocals := method.MaxLocals
	if nLocals < len(args) {
		nLocals = len(args)
	}
	m.locals = make([]any, nLocals)
	copy(m.locals, args)
	m.stack = m.stack[:0]
	m.pc = 0

	ret, err := m.run()
	m.method = nil
	return ret, err
}

// run is the main execution loop.
func (m *Machine) run() (any, error) {
	nodes := m.method.Nodes
	for m.pc < len(nodes) {
		n := nodes[m.pc]
		if n.Kind != asm.NodeInsn {
			m.pc++
			continue
		}

		if m.Trace && log.AllowLevel(commonlog.Debug) {
			log.Debugf("[%04d] %-40s sp=%d", m.pc, asm.FormatNode(n), len(m.stack))
		}

		ret, done, thrown, err := m.step(n)
		if err != nil {
			return nil, fmt.Errorf("%s at %d: %w", n.Op, m.pc, err)
		}
		if done {
			return ret, nil
		}
		if thrown != nil {
			if err := m.throw(thrown); err != nil {
				return nil, err
			}
			continue
		}
		m.pc++
	}
	return nil, fmt.Errorf("replay: fell off the end of %s", m.method.Name)
}

// throw transfers control to the first handler covering pc whose type
// matches exc.
func (m *Machine) throw(exc *Object) error {
	for _, tc := range m.method.TryCatchBlocks {
		start, okStart := m.labels[tc.Start]
		end, okEnd := m.labels[tc.End]
		handler, okHandler := m.labels[tc.Handler]
		if !okStart || !okEnd || !okHandler {
			return verifyError("try/catch block refers to an unplaced label")
		}
		if m.pc < start || m.pc >= end {
			continue
		}
		if tc.Type != "" && !m.hierarchy.IsAssignable(exc.Class, tc.Type) {
			continue
		}
		if m.Trace {
			log.Debugf("[%04d] %s caught by handler at %d", m.pc, exc.Class, handler)
		}
		m.stack = append(m.stack[:0], exc)
		m.pc = handler
		return nil
	}
	return &UncaughtError{Exception: exc, PC: m.pc}
}

// step executes one instruction. It reports a return value with done set,
// an exception to route, or a fatal error.
func (m *Machine) step(n asm.Node) (ret any, done bool, thrown *Object, err error) {
	switch op := n.Op; op {
	case asm.NOP:

	// Constants
	case asm.ACONST_NULL:
		m.push(nil)
	case asm.ICONST_M1, asm.ICONST_0, asm.ICONST_1, asm.ICONST_2, asm.ICONST_3, asm.ICONST_4, asm.ICONST_5:
		m.push(int32(op) - int32(asm.ICONST_0))
	case asm.BIPUSH:
		if n.Int < math.MinInt8 || n.Int > math.MaxInt8 {
			return nil, false, nil, verifyError("bipush operand %d out of range", n.Int)
		}
		m.push(int32(n.Int))
	case asm.SIPUSH:
		if n.Int < math.MinInt16 || n.Int > math.MaxInt16 {
			return nil, false, nil, verifyError("sipush operand %d out of range", n.Int)
		}
		m.push(int32(n.Int))
	case asm.LDC:
		v, err := ldcValue(n.Cst)
		if err != nil {
			return nil, false, nil, err
		}
		m.push(v)

	// Locals
	case asm.ILOAD, asm.ALOAD:
		v, err := m.load(n.Int)
		if err != nil {
			return nil, false, nil, err
		}
		if op == asm.ILOAD {
			if _, ok := v.(int32); !ok {
				return nil, false, nil, verifyError("iload of %T", v)
			}
		}
		m.push(v)
	case asm.ISTORE, asm.ASTORE:
		v, err := m.pop()
		if err != nil {
			return nil, false, nil, err
		}
		if err := m.store(n.Int, v); err != nil {
			return nil, false, nil, err
		}
	case asm.IINC:
		v, err := m.load(n.Int)
		if err != nil {
			return nil, false, nil, err
		}
		i, ok := v.(int32)
		if !ok {
			return nil, false, nil, verifyError("iinc of %T", v)
		}
		if err := m.store(n.Int, i+int32(n.Incr)); err != nil {
			return nil, false, nil, err
		}

	// Stack
	case asm.POP:
		if _, err := m.pop(); err != nil {
			return nil, false, nil, err
		}
	case asm.DUP:
		v, err := m.peek()
		if err != nil {
			return nil, false, nil, err
		}
		m.push(v)
	case asm.SWAP:
		if len(m.stack) < 2 {
			return nil, false, nil, verifyError("swap on a stack of %d", len(m.stack))
		}
		top := len(m.stack) - 1
		m.stack[top], m.stack[top-1] = m.stack[top-1], m.stack[top]

	// Arithmetic
	case asm.IADD, asm.ISUB, asm.IMUL, asm.IDIV, asm.IREM:
		b, err := m.popInt()
		if err != nil {
			return nil, false, nil, err
		}
		a, err := m.popInt()
		if err != nil {
			return nil, false, nil, err
		}
		switch op {
		case asm.IADD:
			m.push(a + b)
		case asm.ISUB:
			m.push(a - b)
		case asm.IMUL:
			m.push(a * b)
		default:
			if b == 0 {
				return nil, false, m.raise("java/lang/ArithmeticException", "/ by zero"), nil
			}
			if op == asm.IDIV {
				m.push(a / b)
			} else {
				m.push(a % b)
			}
		}
	case asm.INEG:
		a, err := m.popInt()
		if err != nil {
			return nil, false, nil, err
		}
		m.push(-a)

	// Objects and arrays
	case asm.NEW:
		m.push(&Object{Class: n.Type})
	case asm.ANEWARRAY:
		size, err := m.popInt()
		if err != nil {
			return nil, false, nil, err
		}
		if size < 0 {
			return nil, false, m.raise("java/lang/NegativeArraySizeException", fmt.Sprint(size)), nil
		}
		m.push(&Array{ElemType: n.Type, Elems: make([]any, size)})
	case asm.AASTORE:
		v, err := m.pop()
		if err != nil {
			return nil, false, nil, err
		}
		idx, err := m.popInt()
		if err != nil {
			return nil, false, nil, err
		}
		arr, npe, err := m.popArray()
		if err != nil || npe != nil {
			return nil, false, npe, err
		}
		if idx < 0 || int(idx) >= len(arr.Elems) {
			return nil, false, m.raise("java/lang/ArrayIndexOutOfBoundsException", fmt.Sprint(idx)), nil
		}
		arr.Elems[idx] = v
	case asm.AALOAD:
		idx, err := m.popInt()
		if err != nil {
			return nil, false, nil, err
		}
		arr, npe, err := m.popArray()
		if err != nil || npe != nil {
			return nil, false, npe, err
		}
		if idx < 0 || int(idx) >= len(arr.Elems) {
			return nil, false, m.raise("java/lang/ArrayIndexOutOfBoundsException", fmt.Sprint(idx)), nil
		}
		m.push(arr.Elems[idx])
	case asm.ARRAYLENGTH:
		arr, npe, err := m.popArray()
		if err != nil || npe != nil {
			return nil, false, npe, err
		}
		m.push(int32(len(arr.Elems)))
	case asm.CHECKCAST:
		v, err := m.peek()
		if err != nil {
			return nil, false, nil, err
		}
		if obj, ok := v.(*Object); ok && !m.hierarchy.IsAssignable(obj.Class, n.Type) {
			m.stack = m.stack[:len(m.stack)-1]
			return nil, false, m.raise("java/lang/ClassCastException", obj.Class+" cannot be cast to "+n.Type), nil
		}

	// Calls
	case asm.INVOKESTATIC:
		return m.invokeStatic(n)
	case asm.INVOKESPECIAL:
		return m.invokeSpecial(n)
	case asm.INVOKEVIRTUAL, asm.INVOKEINTERFACE:
		return m.invokeVirtual(n)

	// Control
	case asm.ATHROW:
		v, err := m.pop()
		if err != nil {
			return nil, false, nil, err
		}
		if v == nil {
			return nil, false, m.raise("java/lang/NullPointerException", "throw of null"), nil
		}
		obj, ok := v.(*Object)
		if !ok || !m.hierarchy.IsThrowable(obj.Class) {
			return nil, false, nil, verifyError("athrow of non-throwable %v", v)
		}
		return nil, false, obj, nil
	case asm.IRETURN:
		v, err := m.popInt()
		if err != nil {
			return nil, false, nil, err
		}
		return v, true, nil, nil
	case asm.ARETURN:
		v, err := m.pop()
		if err != nil {
			return nil, false, nil, err
		}
		return v, true, nil, nil
	case asm.RETURN:
		return nil, true, nil, nil

	default:
		return nil, false, nil, fmt.Errorf("%w: %s", ErrUnsupportedInstruction, op)
	}
	return nil, false, nil, nil
}

// raise builds a machine-generated exception.
func (m *Machine) raise(class, msg string) *Object {
	return &Object{Class: class, Message: msg, Initialized: true}
}

func ldcValue(cst any) (any, error) {
	switch v := cst.(type) {
	case int32, string:
		return v, nil
	case int:
		if v < math.MinInt32 || v > math.MaxInt32 {
			return nil, verifyError("ldc integer %d out of range", v)
		}
		return int32(v), nil
	default:
		return nil, fmt.Errorf("%w: ldc of %T", ErrUnsupportedInstruction, cst)
	}
}

// Stack and locals helpers

func (m *Machine) push(v any) {
	m.stack = append(m.stack, v)
}

func (m *Machine) pop() (any, error) {
	if len(m.stack) == 0 {
		return nil, verifyError("stack underflow")
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

func (m *Machine) peek() (any, error) {
	if len(m.stack) == 0 {
		return nil, verifyError("stack underflow")
	}
	return m.stack[len(m.stack)-1], nil
}

func (m *Machine) popInt() (int32, error) {
	v, err := m.pop()
	if err != nil {
		return 0, err
	}
	i, ok := v.(int32)
	if !ok {
		return 0, verifyError("expected int, got %T", v)
	}
	return i, nil
}

// popArray pops an array reference; a null reference yields an exception.
func (m *Machine) popArray() (*Array, *Object, error) {
	v, err := m.pop()
	if err != nil {
		return nil, nil, err
	}
	if v == nil {
		return nil, m.raise("java/lang/NullPointerException", "array is null"), nil
	}
	arr, ok := v.(*Array)
	if !ok {
		return nil, nil, verifyError("expected array, got %T", v)
	}
	return arr, nil, nil
}

func (m *Machine) load(slot int) (any, error) {
	if slot < 0 || slot >= len(m.locals) {
		return nil, verifyError("local %d out of range", slot)
	}
	return m.locals[slot], nil
}

func (m *Machine) store(slot int, v any) error {
	if slot < 0 {
		return verifyError("local %d out of range", slot)
	}
	for slot >= len(m.locals) {
		m.locals = append(m.locals, nil)
	}
	m.locals[slot] = v
	return nil
}

func (m *Machine) popArgs(desc string) ([]string, []any, error) {
	params, _, err := asm.ParseMethodDescriptor(desc)
	if err != nil {
		return nil, nil, err
	}
	args := make([]any, len(params))
	for i := len(params) - 1; i >= 0; i-- {
		v, err := m.pop()
		if err != nil {
			return nil, nil, err
		}
		args[i] = v
	}
	return params, args, nil
}

func (m *Machine) invokeStatic(n asm.Node) (any, bool, *Object, error) {
	fn, ok := m.statics[staticKey(n.Owner, n.Name, n.Desc)]
	if !ok {
		return nil, false, nil, fmt.Errorf("%w: %s.%s%s", ErrNoSuchMethod, n.Owner, n.Name, n.Desc)
	}
	_, args, err := m.popArgs(n.Desc)
	if err != nil {
		return nil, false, nil, err
	}
	result, err := fn(args)
	if err != nil {
		return nil, false, nil, err
	}
	if _, ret, _ := asm.ParseMethodDescriptor(n.Desc); ret != "V" {
		m.push(result)
	}
	return nil, false, nil, nil
}

// invokeSpecial runs constructors of the types the machine knows.
func (m *Machine) invokeSpecial(n asm.Node) (any, bool, *Object, error) {
	if n.Name != "<init>" {
		return nil, false, nil, fmt.Errorf("%w: %s.%s%s", ErrNoSuchMethod, n.Owner, n.Name, n.Desc)
	}
	_, args, err := m.popArgs(n.Desc)
	if err != nil {
		return nil, false, nil, err
	}
	recv, err := m.pop()
	if err != nil {
		return nil, false, nil, err
	}
	obj, ok := recv.(*Object)
	if !ok {
		return nil, false, nil, verifyError("constructor receiver is %T", recv)
	}
	if obj.Initialized {
		return nil, false, nil, verifyError("%s initialized twice", obj.Class)
	}
	if obj.Class != n.Owner {
		return nil, false, nil, verifyError("%s constructor called on %s", n.Owner, obj.Class)
	}

	switch {
	case n.Owner == m.labelType() && n.Desc == "()V":
		m.labelSeq++
		obj.Native = asm.NewLabel(fmt.Sprintf("R%d", m.labelSeq))
	case n.Owner == m.handleType() && n.Desc == "(ILjava/lang/String;Ljava/lang/String;Ljava/lang/String;Z)V":
		h, err := toHandle(args)
		if err != nil {
			return nil, false, nil, err
		}
		obj.Native = h
	case m.hierarchy.IsThrowable(n.Owner) && n.Desc == "()V":
	case m.hierarchy.IsThrowable(n.Owner) && n.Desc == "(Ljava/lang/String;)V":
		msg, err := toString(args[0])
		if err != nil {
			return nil, false, nil, err
		}
		obj.Message = msg
	default:
		return nil, false, nil, fmt.Errorf("%w: %s.<init>%s", ErrNoSuchMethod, n.Owner, n.Desc)
	}
	obj.Initialized = true
	return nil, false, nil, nil
}

func (m *Machine) invokeVirtual(n asm.Node) (any, bool, *Object, error) {
	if n.Owner != m.visitorType() {
		return nil, false, nil, fmt.Errorf("%w: %s.%s%s", ErrNoSuchMethod, n.Owner, n.Name, n.Desc)
	}
	params, args, err := m.popArgs(n.Desc)
	if err != nil {
		return nil, false, nil, err
	}
	recv, err := m.pop()
	if err != nil {
		return nil, false, nil, err
	}
	if recv == nil {
		return nil, false, m.raise("java/lang/NullPointerException", "visitor is null"), nil
	}
	mv, ok := recv.(asm.MethodVisitor)
	if !ok {
		return nil, false, nil, verifyError("receiver of %s is %T", n.Name, recv)
	}
	if err := m.callVisitor(mv, n.Name, n.Desc, params, args); err != nil {
		return nil, false, nil, err
	}
	return nil, false, nil, nil
}
