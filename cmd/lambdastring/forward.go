package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/chazu/lambdastring/asm"
	"github.com/chazu/lambdastring/forward"
	"github.com/chazu/lambdastring/manifest"
	"github.com/chazu/lambdastring/replay"
)

// handleForwardCommand processes `lambdastring forward`: it decodes a
// recorded program, compiles its replay method and prints the disassembly.
// With -verify the method is executed against a recorder and the replayed
// events must encode to the same bytes as the input.
func handleForwardCommand(args []string, m *manifest.Manifest) error {
	fs := flag.NewFlagSet("forward", flag.ContinueOnError)
	verify := fs.Bool("verify", false, "Execute the replay method and compare the replayed events")
	trace := fs.Bool("trace", false, "Log every executed instruction (with -verify)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: lambdastring forward [-verify] [-trace] <program>")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	prog, err := forward.UnmarshalProgram(data)
	if err != nil {
		return err
	}

	method, err := forward.Compile(prog, m.ForwardOptions()...)
	if err != nil {
		return err
	}
	fmt.Print(method.Disassemble())

	if !*verify {
		return nil
	}
	replayed, err := replayProgram(method, m.Forward.ToolkitPackage, *trace)
	if err != nil {
		return err
	}
	got, err := forward.MarshalProgram(replayed)
	if err != nil {
		return err
	}
	want, err := forward.MarshalProgram(prog)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, want) {
		return fmt.Errorf("replay produced %d events that differ from the %d recorded", len(replayed), len(prog))
	}
	fmt.Printf("verified: %d events replayed\n", len(replayed))
	return nil
}

func replayProgram(method *asm.Method, toolkit string, trace bool) (forward.Program, error) {
	rec := forward.NewRecorder()
	mach := replay.NewMachine(replay.WithToolkitPackage(toolkit))
	mach.Trace = trace
	if _, err := mach.Run(method, rec); err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	return rec.Program(), nil
}

// handleSampleCommand processes `lambdastring sample`, writing a small
// program that exercises every event kind.
func handleSampleCommand(args []string) error {
	fs := flag.NewFlagSet("sample", flag.ContinueOnError)
	out := fs.String("o", "", "Output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	data, err := forward.MarshalProgram(sampleProgram())
	if err != nil {
		return err
	}
	if *out == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(*out, data, 0644)
}

func sampleProgram() forward.Program {
	return forward.Program{
		forward.Parameter{Name: "arg", Access: 0},
		forward.Code{},
		forward.Frame{Type: asm.F_FULL, NLocal: 1, Local: []forward.Operand{forward.String("java/lang/String")}, NStack: 0},
		forward.FieldInsn{Opcode: asm.GETSTATIC, Owner: "java/lang/System", Name: "out", Desc: "Ljava/io/PrintStream;"},
		forward.LdcInsn{Value: forward.String("hello")},
		forward.MethodInsn{Opcode: asm.INVOKEVIRTUAL, Owner: "java/io/PrintStream", Name: "println", Desc: "(Ljava/lang/String;)V"},
		forward.IntInsn{Opcode: asm.BIPUSH, Operand: 100},
		forward.VarInsn{Opcode: asm.ISTORE, Slot: 1},
		forward.IincInsn{Slot: 1, Increment: -1},
		forward.InvokeDynamicInsn{
			Name: "run",
			Desc: "()Ljava/lang/Runnable;",
			Bootstrap: asm.Handle{
				Tag:   asm.H_INVOKESTATIC,
				Owner: "java/lang/invoke/LambdaMetafactory",
				Name:  "metafactory",
				Desc:  "(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodHandle;Ljava/lang/invoke/MethodType;)Ljava/lang/invoke/CallSite;",
			},
			BootstrapArgs: []forward.Operand{forward.String("()V"), forward.Int(6)},
		},
		forward.TypeInsn{Opcode: asm.CHECKCAST, Type: "java/lang/Runnable"},
		forward.Insn{Opcode: asm.POP},
		forward.LdcInsn{Value: forward.Int(1 << 20)},
		forward.MultiANewArrayInsn{Desc: "[[I", Dims: 2},
		forward.Insn{Opcode: asm.POP2},
		forward.Insn{Opcode: asm.RETURN},
		forward.Maxs{MaxStack: 2, MaxLocals: 2},
		forward.End{},
	}
}
