package forward

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/chazu/lambdastring/asm"
)

func wireSample() Program {
	return Program{
		Parameter{Name: "arg", Access: 0x10},
		Code{},
		Frame{Type: asm.F_FULL, NLocal: 2, Local: []Operand{String("java/lang/String"), Int(asm.INTEGER)}, Stack: []Operand{}},
		Frame{Type: asm.F_SAME},
		Insn{Opcode: asm.NOP},
		IntInsn{Opcode: asm.NEWARRAY, Operand: asm.T_INT},
		VarInsn{Opcode: asm.ASTORE, Slot: 2},
		TypeInsn{Opcode: asm.CHECKCAST, Type: "java/lang/Runnable"},
		FieldInsn{Opcode: asm.PUTFIELD, Owner: "p/A", Name: "x", Desc: "I"},
		MethodInsn{Opcode: asm.INVOKEINTERFACE, Owner: "java/util/List", Name: "size", Desc: "()I", IsInterface: true},
		InvokeDynamicInsn{
			Name: "run", Desc: "()Ljava/lang/Runnable;", Bootstrap: metafactory,
			BootstrapArgs: []Operand{String("()V"), HandleOperand(metafactory), Array{}, Array{Bool(true), Null{}}},
		},
		InvokeDynamicInsn{Name: "get", Desc: "()Ljava/util/function/Supplier;", Bootstrap: metafactory},
		MultiANewArrayInsn{Desc: "[[I", Dims: 2},
		IincInsn{Slot: 1, Increment: -100},
		LdcInsn{Value: Int(-2147483648)},
		LdcInsn{Value: String("")},
		LdcInsn{Value: Bool(false)},
		LdcInsn{Value: Null{}},
		Maxs{MaxStack: 4, MaxLocals: 3},
		End{},
	}
}

func TestProgramWireRoundTrip(t *testing.T) {
	prog := wireSample()
	data, err := MarshalProgram(prog)
	if err != nil {
		t.Fatalf("MarshalProgram: %v", err)
	}
	got, err := UnmarshalProgram(data)
	if err != nil {
		t.Fatalf("UnmarshalProgram: %v", err)
	}
	if diff := cmp.Diff(prog, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	// Canonical encoding is deterministic.
	again, err := MarshalProgram(got)
	if err != nil {
		t.Fatal(err)
	}
	if string(again) != string(data) {
		t.Error("re-encoding a decoded program changed its bytes")
	}
}

func TestProgramWireReplays(t *testing.T) {
	data, err := MarshalProgram(wireSample())
	if err != nil {
		t.Fatal(err)
	}
	prog, err := UnmarshalProgram(data)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := replayed(t, prog, DefaultToolkitPackage)
	if diff := cmp.Diff(prog, got); diff != "" {
		t.Errorf("replay of decoded program mismatch (-want +got):\n%s", diff)
	}
}

func TestProgramWireNilArrayOperand(t *testing.T) {
	data, err := MarshalProgram(Program{LdcInsn{Value: Array(nil)}})
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalProgram(data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Program{LdcInsn{Value: Null{}}}, got); diff != "" {
		t.Errorf("nil array mismatch (-want +got):\n%s", diff)
	}
}

func TestProgramWireRejectsNewerVersion(t *testing.T) {
	data, err := cbor.Marshal(wireProgram{Version: ProgramWireVersion + 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := UnmarshalProgram(data); err == nil {
		t.Error("UnmarshalProgram accepted a newer version")
	}
}

func TestProgramWireRejectsBadEvents(t *testing.T) {
	tests := map[string]wireEvent{
		"unknown kind":          {Kind: 99},
		"ldc without constant":  {Kind: KindLdcInsn},
		"indy without handle":   {Kind: KindInvokeDynamicInsn, Name: "run"},
		"unknown operand kind":  {Kind: KindLdcInsn, Value: &wireOperand{Kind: 42}},
		"handle without handle": {Kind: KindLdcInsn, Value: &wireOperand{Kind: operandHandle}},
	}
	for name, we := range tests {
		t.Run(name, func(t *testing.T) {
			data, err := cbor.Marshal(wireProgram{Version: ProgramWireVersion, Events: []wireEvent{we}})
			if err != nil {
				t.Fatal(err)
			}
			if _, err := UnmarshalProgram(data); err == nil {
				t.Error("UnmarshalProgram accepted a malformed event")
			}
		})
	}
}

func TestProgramWireGarbage(t *testing.T) {
	if _, err := UnmarshalProgram([]byte{0xff, 0x00, 0x01}); err == nil {
		t.Error("UnmarshalProgram accepted garbage")
	}
}
