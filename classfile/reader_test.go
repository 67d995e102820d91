package classfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// poolBytes writes a constant pool count followed by raw entries.
func poolBytes(count uint16, entries ...[]byte) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, count)
	for _, e := range entries {
		buf.Write(e)
	}
	return buf.Bytes()
}

func TestReadPoolWideAndSkippedEntries(t *testing.T) {
	data := poolBytes(6,
		[]byte{tagLong, 0, 0, 0, 0, 0, 0, 0, 42}, // slots 1 and 2
		[]byte{tagUtf8, 0, 1, 'A'},              // 3
		[]byte{tagClass, 0, 3},                  // 4
		[]byte{tagMethodHandle, 6, 0, 4},        // 5
	)
	r := &reader{data: data}
	if err := r.readPool(); err != nil {
		t.Fatalf("readPool: %v", err)
	}
	if r.offset != len(data) {
		t.Errorf("offset = %d, want %d", r.offset, len(data))
	}
	if name, err := r.classNameAt(4); err != nil || name != "A" {
		t.Errorf("classNameAt(4) = %q, %v; want A", name, err)
	}
	for _, idx := range []uint16{0, 1, 2, 5, 9} {
		if _, err := r.utf8At(idx); err == nil {
			t.Errorf("utf8At(%d) should fail", idx)
		}
	}
}

func TestReadPoolErrors(t *testing.T) {
	tests := map[string][]byte{
		"zero count":  poolBytes(0),
		"unknown tag": poolBytes(2, []byte{2, 0, 0}),
		"short utf8":  poolBytes(2, []byte{tagUtf8, 0, 5, 'a'}),
		"short long":  poolBytes(3, []byte{tagLong, 0, 0}),
		"missing":     poolBytes(3, []byte{tagUtf8, 0, 0}),
	}
	for name, data := range tests {
		r := &reader{data: data}
		if err := r.readPool(); err == nil {
			t.Errorf("%s: readPool should fail", name)
		}
	}
}

func TestParseSkipsMethodsWithoutCode(t *testing.T) {
	data := buildClass(t, NewBuilder("com/example/Iface").
		AddMethod(MethodSpec{Access: AccPublic, Name: "run", Desc: "()V", NoCode: true}).
		AddMethod(MethodSpec{Name: "lambda$run$0", Desc: "()V", Lines: []LineEntry{{0, 4}, {0, 9}}}))

	cls, err := ParseBytes(data)
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	if len(cls.Methods) != 2 {
		t.Fatalf("len(Methods) = %d, want 2", len(cls.Methods))
	}
	if m := cls.Methods[0]; m.CodeLen != 0 || m.Lines != nil {
		t.Errorf("abstract method = %+v, want no code", m)
	}
	if line, ok, _ := cls.ResolveLineNumber("lambda$run$0", "()V"); !ok || line != 4 {
		t.Errorf("ResolveLineNumber = (%d, %v), want (4, true)", line, ok)
	}
}

func TestParseBadClassIndex(t *testing.T) {
	data := buildClass(t, NewBuilder("A"))
	// this_class follows the constant pool and access flags; point it at
	// constant 0.
	r := &reader{data: data}
	if err := r.readHeader(); err != nil {
		t.Fatal(err)
	}
	if err := r.readPool(); err != nil {
		t.Fatal(err)
	}
	patched := append([]byte(nil), data...)
	binary.BigEndian.PutUint16(patched[r.offset+2:], 0)

	if _, err := ParseBytes(patched); !errors.Is(err, ErrParse) {
		t.Errorf("ParseBytes error = %v, want ErrParse", err)
	}
}
