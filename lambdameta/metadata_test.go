package lambdameta

import (
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"testing/iotest"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/lambdastring/classfile"
)

const (
	holderName = "com.example.Holder"
	lambdaName = "lambda$makeRun$0"
)

// holderClass returns a class with one synthetic lambda method whose first
// line is line; a zero line writes no line table.
func holderClass(t *testing.T, line int) []byte {
	t.Helper()
	spec := classfile.MethodSpec{
		Access: classfile.AccPrivate | classfile.AccStatic | classfile.AccSynthetic,
		Name:   lambdaName,
		Desc:   "()V",
	}
	if line > 0 {
		spec.Lines = []classfile.LineEntry{{StartPC: 0, Line: line}}
	}
	data, err := classfile.NewBuilder("com/example/Holder").AddMethod(spec).Bytes()
	if err != nil {
		t.Fatalf("building class: %v", err)
	}
	return data
}

// countingLocator counts Open calls on a mutable in-memory tree.
type countingLocator struct {
	mu    sync.Mutex
	files fstest.MapFS
	opens atomic.Int32
}

func newCountingLocator() *countingLocator {
	return &countingLocator{files: fstest.MapFS{}}
}

func (l *countingLocator) put(name string, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.files[name] = &fstest.MapFile{Data: data}
}

func (l *countingLocator) remove(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.files, name)
}

func (l *countingLocator) Open(name string) (io.ReadCloser, error) {
	l.opens.Add(1)
	l.mu.Lock()
	defer l.mu.Unlock()
	f, ok := l.files[name]
	if !ok {
		return nil, ErrResourceNotFound
	}
	return FSLocator{FS: fstest.MapFS{name: f}}.Open(name)
}

// brokenLocator serves readers that fail after a few bytes.
type brokenLocator struct {
	err    error
	opened []*brokenReader
}

type brokenReader struct {
	io.Reader
	closed bool
}

func (r *brokenReader) Close() error {
	r.closed = true
	return nil
}

func (l *brokenLocator) Open(name string) (io.ReadCloser, error) {
	r := &brokenReader{Reader: io.MultiReader(strings.NewReader("\xca\xfe\xba\xbe"), iotest.ErrReader(l.err))}
	l.opened = append(l.opened, r)
	return r, nil
}

func newHolderMetadata(t *testing.T, loc ResourceLocator) *Metadata {
	t.Helper()
	md, err := NewMetadata(
		Type{Name: "com.example.Holder$$Lambda$1"},
		Type{Name: holderName, Locator: loc},
		MethodDescriptor{Name: lambdaName, Desc: "()V"},
		6, classfile.AccPrivate|classfile.AccStatic|classfile.AccSynthetic,
	)
	if err != nil {
		t.Fatalf("NewMetadata: %v", err)
	}
	return md
}

func TestResourceName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"com.example.Holder", "com/example/Holder.class"},
		{"com.example.Holder$Inner", "com/example/Holder$Inner.class"},
		{"Top", "Top.class"},
	}
	for _, tt := range tests {
		if got := ResourceName(tt.in); got != tt.want {
			t.Errorf("ResourceName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewMetadataValidates(t *testing.T) {
	_, err := NewMetadata(Type{Name: "T"}, Type{}, MethodDescriptor{Name: "m", Desc: "()V"}, 0, 0)
	if err == nil {
		t.Error("NewMetadata with no declaring type should fail")
	}
	md, err := NewMetadata(Type{Name: "T"}, Type{Name: "D"}, MethodDescriptor{Name: "m", Desc: "()V"}, 5, 0x1008)
	if err != nil {
		t.Fatalf("NewMetadata: %v", err)
	}
	if md.MethodName() != "m" || md.MethodDesc() != "()V" || md.ReferenceKind() != 5 || md.Modifiers() != 0x1008 {
		t.Errorf("accessors = (%s, %s, %d, %#x)", md.MethodName(), md.MethodDesc(), md.ReferenceKind(), md.Modifiers())
	}
	if md.TargetType().Name != "T" || md.DeclaringType().Name != "D" {
		t.Errorf("types = (%s, %s), want (T, D)", md.TargetType().Name, md.DeclaringType().Name)
	}
}

func TestDeclarationLine(t *testing.T) {
	loc := newCountingLocator()
	loc.put(ResourceName(holderName), holderClass(t, 42))
	md := newHolderMetadata(t, loc)

	line, ok, err := md.DeclarationLine()
	if err != nil {
		t.Fatalf("DeclarationLine: %v", err)
	}
	if !ok || line != 42 {
		t.Errorf("DeclarationLine = (%d, %v), want (42, true)", line, ok)
	}
}

func TestDeclarationLineMemoized(t *testing.T) {
	loc := newCountingLocator()
	loc.put(ResourceName(holderName), holderClass(t, 42))
	md := newHolderMetadata(t, loc)

	if _, _, err := md.DeclarationLine(); err != nil {
		t.Fatalf("first DeclarationLine: %v", err)
	}
	loc.remove(ResourceName(holderName))

	line, ok, err := md.DeclarationLine()
	if err != nil || !ok || line != 42 {
		t.Errorf("second DeclarationLine = (%d, %v, %v), want (42, true, nil)", line, ok, err)
	}
	if n := loc.opens.Load(); n != 1 {
		t.Errorf("locator opened %d times, want 1", n)
	}
}

func TestDeclarationLineNoTableIsMemoized(t *testing.T) {
	loc := newCountingLocator()
	loc.put(ResourceName(holderName), holderClass(t, 0))
	md := newHolderMetadata(t, loc)

	for i := 0; i < 3; i++ {
		line, ok, err := md.DeclarationLine()
		if err != nil || ok {
			t.Errorf("call %d: DeclarationLine = (%d, %v, %v), want (0, false, nil)", i, line, ok, err)
		}
	}
	if n := loc.opens.Load(); n != 1 {
		t.Errorf("locator opened %d times, want 1", n)
	}
}

func TestDeclarationLineMissingResource(t *testing.T) {
	loc := newCountingLocator()
	md := newHolderMetadata(t, loc)

	_, _, err := md.DeclarationLine()
	if !errors.Is(err, ErrMetadataUnavailable) || !errors.Is(err, ErrResourceNotFound) {
		t.Fatalf("DeclarationLine error = %v, want ErrMetadataUnavailable and ErrResourceNotFound", err)
	}
	var ue *UnavailableError
	if !errors.As(err, &ue) || ue.Resource != "com/example/Holder.class" {
		t.Errorf("UnavailableError = %+v, want resource com/example/Holder.class", ue)
	}

	// Failures are not cached: once the class appears the line is found.
	loc.put(ResourceName(holderName), holderClass(t, 7))
	line, ok, err := md.DeclarationLine()
	if err != nil || !ok || line != 7 {
		t.Errorf("DeclarationLine after put = (%d, %v, %v), want (7, true, nil)", line, ok, err)
	}
}

func TestDeclarationLineReadError(t *testing.T) {
	loc := &brokenLocator{err: errors.New("connection reset")}
	md := newHolderMetadata(t, loc)

	_, _, err := md.DeclarationLine()
	if !errors.Is(err, ErrMetadataUnavailable) || !errors.Is(err, classfile.ErrParse) || !errors.Is(err, loc.err) {
		t.Errorf("DeclarationLine error = %v, want ErrMetadataUnavailable and ErrParse wrapping the read error", err)
	}
	if len(loc.opened) != 1 || !loc.opened[0].closed {
		t.Errorf("resource readers = %d, want one closed reader", len(loc.opened))
	}
}

func TestDeclarationLineCorruptClass(t *testing.T) {
	loc := newCountingLocator()
	loc.put(ResourceName(holderName), []byte("not a class file"))
	md := newHolderMetadata(t, loc)

	_, _, err := md.DeclarationLine()
	if !errors.Is(err, ErrMetadataUnavailable) || !errors.Is(err, classfile.ErrParse) {
		t.Errorf("DeclarationLine error = %v, want ErrMetadataUnavailable and ErrParse", err)
	}
}

func TestDeclarationLineConcurrent(t *testing.T) {
	loc := newCountingLocator()
	loc.put(ResourceName(holderName), holderClass(t, 42))
	md := newHolderMetadata(t, loc)

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			line, ok, err := md.DeclarationLine()
			if err != nil {
				return err
			}
			if !ok || line != 42 {
				return errors.New("wrong declaration line")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent DeclarationLine: %v", err)
	}
	if n := loc.opens.Load(); n < 1 || n > 32 {
		t.Errorf("locator opened %d times, want between 1 and 32", n)
	}
}

func TestDeclarationLineDefaultLocator(t *testing.T) {
	loc := newCountingLocator()
	loc.put(ResourceName(holderName), holderClass(t, 11))
	SetDefaultLocator(loc)
	defer SetDefaultLocator(nil)

	md := newHolderMetadata(t, nil)
	line, ok, err := md.DeclarationLine()
	if err != nil || !ok || line != 11 {
		t.Errorf("DeclarationLine = (%d, %v, %v), want (11, true, nil)", line, ok, err)
	}
}
