package asm

import (
	"strings"
	"testing"
)

func TestDisassembleEmpty(t *testing.T) {
	m := NewMethod("run", "()V")

	output := m.Disassemble()

	if !strings.Contains(output, "; === run()V ===") {
		t.Error("Disassembly missing header")
	}
	if strings.Contains(output, "Exception table") {
		t.Error("Empty method should have no exception table")
	}
}

func TestDisassembleInstructions(t *testing.T) {
	m := NewMethod("replay", "(Lorg/objectweb/asm/MethodVisitor;)V")
	m.VisitParameter("mv", 0)
	m.VisitVarInsn(ALOAD, 0)
	m.VisitInsn(DUP)
	m.VisitLdcInsn("hello world")
	m.VisitIntInsn(SIPUSH, 300)
	m.VisitMethodInsn(INVOKEVIRTUAL, MethodVisitorType, "visitParameter", "(Ljava/lang/String;I)V", false)
	m.VisitIincInsn(2, -1)
	m.VisitInsn(RETURN)
	m.VisitMaxs(4, 3)

	output := m.Disassemble()

	for _, want := range []string{
		"; Parameters (1): mv",
		"; Max stack: 4, max locals: 3",
		"0000  ALOAD",
		"DUP",
		`LDC              "hello world"`,
		"SIPUSH           300",
		"org/objectweb/asm/MethodVisitor.visitParameter(Ljava/lang/String;I)V",
		"IINC             2 -1",
		"0006  RETURN",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Disassembly missing %q:\n%s", want, output)
		}
	}
}

func TestDisassembleExceptionTable(t *testing.T) {
	m := NewMethod("run", "()V")
	start, end, handler := NewLabel("L0"), NewLabel("L1"), NewLabel("L2")
	m.VisitTryCatchBlock(start, end, handler, "")
	m.VisitLabel(start)
	m.VisitLabel(end)
	m.VisitLabel(handler)
	m.VisitFrame(F_SAME1, 0, nil, 1, []any{"java/lang/Throwable"})
	m.VisitLineNumber(7, start)
	m.VisitInsn(ATHROW)

	output := m.Disassemble()

	for _, want := range []string{
		";   [L0, L1) -> L2 any",
		"L2:",
		`; frame SAME1 locals=null stack=["java/lang/Throwable"]`,
		"; line 7",
		"0000  ATHROW",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Disassembly missing %q:\n%s", want, output)
		}
	}
}

func TestFormatNodeLongConstant(t *testing.T) {
	long := strings.Repeat("x", 60)
	got := FormatNode(Node{Op: LDC, Cst: long})
	if !strings.Contains(got, "...") || strings.Contains(got, long) {
		t.Errorf("long constant not truncated: %s", got)
	}
}

func TestFormatNodeInvokeDynamic(t *testing.T) {
	n := Node{
		Op:      INVOKEDYNAMIC,
		Name:    "run",
		Desc:    "()Ljava/lang/Runnable;",
		BSM:     Handle{Tag: H_INVOKESTATIC, Owner: "p/Boot", Name: "bsm", Desc: "()V"},
		BSMArgs: []any{int32(3), nil},
	}
	got := FormatNode(n)
	want := "INVOKEDYNAMIC    run()Ljava/lang/Runnable; [p/Boot.bsm()V (6)] [3, null]"
	if got != want {
		t.Errorf("FormatNode = %q, want %q", got, want)
	}
}
