package classfile

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"
)

const lambdaDesc = "()V"

func buildClass(t *testing.T, b *Builder) []byte {
	t.Helper()
	data, err := b.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	return data
}

func TestFirstLine(t *testing.T) {
	data := buildClass(t, NewBuilder("com/example/Holder").
		AddMethod(MethodSpec{Access: AccPublic, Name: "<init>", Desc: "()V", MaxLocals: 1, Lines: []LineEntry{{0, 3}}}).
		AddMethod(MethodSpec{
			Access:   AccPrivate | AccStatic | AccSynthetic,
			Name:     "lambda$makeRun$0",
			Desc:     lambdaDesc,
			MaxStack: 0,
			Lines:    []LineEntry{{0, 42}, {4, 43}},
		}))

	line, ok, err := FirstLine(data, "lambda$makeRun$0", lambdaDesc)
	if err != nil {
		t.Fatalf("FirstLine: %v", err)
	}
	if !ok || line != 42 {
		t.Errorf("FirstLine = (%d, %v), want (42, true)", line, ok)
	}
}

func TestFirstLineTableOrder(t *testing.T) {
	// The first entry of the table wins even when a later one has a lower pc.
	data := buildClass(t, NewBuilder("A").
		AddMethod(MethodSpec{Name: "m", Desc: "()V", Code: []byte{0x00, 0x00, 0xb1}, Lines: []LineEntry{{2, 9}, {0, 7}}}))

	line, ok, err := FirstLine(data, "m", "()V")
	if err != nil || !ok || line != 9 {
		t.Errorf("FirstLine = (%d, %v, %v), want (9, true, nil)", line, ok, err)
	}
}

func TestFirstLineFirstMatchingMethod(t *testing.T) {
	data := buildClass(t, NewBuilder("A").
		AddMethod(MethodSpec{Name: "m", Desc: "(I)V", Lines: []LineEntry{{0, 1}}}).
		AddMethod(MethodSpec{Name: "m", Desc: "()V", Lines: []LineEntry{{0, 2}}}).
		AddMethod(MethodSpec{Name: "m", Desc: "()V", Lines: []LineEntry{{0, 3}}}))

	line, ok, err := FirstLine(data, "m", "()V")
	if err != nil || !ok || line != 2 {
		t.Errorf("FirstLine = (%d, %v, %v), want (2, true, nil)", line, ok, err)
	}
}

func TestFirstLineAbsent(t *testing.T) {
	data := buildClass(t, NewBuilder("A").
		AddMethod(MethodSpec{Name: "noTable", Desc: "()V"}).
		AddMethod(MethodSpec{Name: "abstract", Desc: "()V", NoCode: true}))

	tests := []struct {
		name, desc string
	}{
		{"noTable", "()V"},
		{"abstract", "()V"},
		{"missing", "()V"},
		{"noTable", "(I)V"},
	}
	for _, tt := range tests {
		line, ok, err := FirstLine(data, tt.name, tt.desc)
		if err != nil {
			t.Errorf("FirstLine(%s%s) error = %v, want nil", tt.name, tt.desc, err)
		}
		if ok {
			t.Errorf("FirstLine(%s%s) = (%d, true), want not found", tt.name, tt.desc, line)
		}
	}
}

func TestParseMalformed(t *testing.T) {
	valid := buildClass(t, NewBuilder("A").AddMethod(MethodSpec{Name: "m", Desc: "()V"}))

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", []byte{0xde, 0xad, 0xbe, 0xef, 0, 0, 0, 52}},
		{"truncated", valid[:len(valid)/2]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := FirstLine(tt.data, "m", "()V")
			if !errors.Is(err, ErrParse) {
				t.Errorf("FirstLine error = %v, want ErrParse", err)
			}
		})
	}
}

func TestParseReadError(t *testing.T) {
	valid := buildClass(t, NewBuilder("A").AddMethod(MethodSpec{Name: "m", Desc: "()V"}))
	broken := errors.New("disk went away")

	_, err := Parse(io.MultiReader(bytes.NewReader(valid[:8]), iotest.ErrReader(broken)))
	if !errors.Is(err, ErrParse) || !errors.Is(err, broken) {
		t.Errorf("Parse error = %v, want ErrParse wrapping the read error", err)
	}
}

func TestParseMethods(t *testing.T) {
	data := buildClass(t, NewBuilder("com/example/Holder").
		AddMethod(MethodSpec{Name: "run", Desc: "()V", MaxStack: 2, MaxLocals: 1, Code: []byte{0x00, 0xb1}, Lines: []LineEntry{{0, 10}}}))

	cls, err := Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cls.Name != "com/example/Holder" {
		t.Errorf("Name = %q, want com/example/Holder", cls.Name)
	}
	want := []Method{{
		Name:      "run",
		Desc:      "()V",
		MaxStack:  2,
		MaxLocals: 1,
		CodeLen:   2,
		Lines:     []LineEntry{{StartPC: 0, Line: 10}},
	}}
	if diff := cmp.Diff(want, cls.Methods); diff != "" {
		t.Errorf("methods mismatch (-want +got):\n%s", diff)
	}

	var r LineResolver = cls
	if line, ok, _ := r.ResolveLineNumber("run", "()V"); !ok || line != 10 {
		t.Errorf("ResolveLineNumber = (%d, %v), want (10, true)", line, ok)
	}
}

func TestBuilderHeader(t *testing.T) {
	data := buildClass(t, NewBuilder("A"))
	if !bytes.HasPrefix(data, []byte{0xca, 0xfe, 0xba, 0xbe, 0, 0, 0, DefaultMajorVersion}) {
		t.Errorf("header = % x, want cafebabe 0000 0034", data[:8])
	}
}
