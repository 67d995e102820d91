package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/lambdastring/classfile"
	"github.com/chazu/lambdastring/forward"
	"github.com/chazu/lambdastring/manifest"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// writeFile writes data into dir and returns its path.
func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		t.Fatalf("writing %s: %v", p, err)
	}
	return p
}

func holderClass(t *testing.T) []byte {
	t.Helper()
	data, err := classfile.NewBuilder("com/example/Holder").
		AddMethod(classfile.MethodSpec{
			Access: classfile.AccPrivate | classfile.AccStatic | classfile.AccSynthetic,
			Name:   "lambda$makeRun$0",
			Desc:   "()V",
			Lines:  []classfile.LineEntry{{StartPC: 0, Line: 17}},
		}).
		Bytes()
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestSampleProgramReplays(t *testing.T) {
	prog := sampleProgram()
	method, err := forward.Compile(prog)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	got, err := replayProgram(method, forward.DefaultToolkitPackage, false)
	if err != nil {
		t.Fatalf("replayProgram: %v", err)
	}
	if diff := cmp.Diff(prog, got); diff != "" {
		t.Errorf("sample replay mismatch (-want +got):\n%s", diff)
	}
}

func TestForwardCommandVerify(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "prog.cbor")
	if err := handleSampleCommand([]string{"-o", out}); err != nil {
		t.Fatalf("sample: %v", err)
	}
	if err := handleForwardCommand([]string{"-verify", out}, manifest.Default()); err != nil {
		t.Fatalf("forward -verify: %v", err)
	}
}

func TestForwardCommandUsage(t *testing.T) {
	if err := handleForwardCommand(nil, manifest.Default()); err == nil {
		t.Error("forward without a program should fail")
	}
	bad := writeFile(t, t.TempDir(), "bad.cbor", []byte{0xff})
	if err := handleForwardCommand([]string{bad}, manifest.Default()); err == nil {
		t.Error("forward of a malformed program should fail")
	}
}

func TestLineCommandClassFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "Holder.class", holderClass(t))
	if err := handleLineCommand([]string{path, "lambda$makeRun$0", "()V"}, manifest.Default()); err != nil {
		t.Fatalf("line: %v", err)
	}
	if err := handleLineCommand([]string{path, "missing", "()V"}, manifest.Default()); err != nil {
		t.Fatalf("line for a missing method should report no information, got %v", err)
	}
}

func TestLineFromClasspath(t *testing.T) {
	t.Setenv(manifest.ClasspathEnv, "")
	dir := t.TempDir()
	writeFile(t, dir, filepath.Join("classes", "com", "example", "Holder.class"), holderClass(t))
	m := &manifest.Manifest{Dir: dir, Classpath: manifest.Classpath{Dirs: []string{"classes"}}}

	line, ok, err := lineFromClasspath(m, "com.example.Holder", "lambda$makeRun$0", "()V")
	if err != nil {
		t.Fatalf("lineFromClasspath: %v", err)
	}
	if !ok || line != 17 {
		t.Errorf("lineFromClasspath = %d, %v; want 17, true", line, ok)
	}

	if _, _, err := lineFromClasspath(m, "com.example.Missing", "run", "()V"); err == nil {
		t.Error("missing class should fail")
	}
}

func TestLineCommandUsage(t *testing.T) {
	if err := handleLineCommand([]string{"only-one"}, manifest.Default()); err == nil {
		t.Error("line with one argument should fail")
	}
}
