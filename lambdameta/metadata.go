// Package lambdameta describes the method behind a closure object and finds
// the source line it was declared on.
//
// The line is read from the declaring type's class file, located through a
// ResourceLocator, the first time DeclarationLine is called. Successful
// answers, including "no line information", are cached for the lifetime of
// the Metadata; failures are not, so a later call may succeed.
package lambdameta

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/tliron/commonlog"

	"github.com/chazu/lambdastring/classfile"
)

var log = commonlog.GetLogger("lambdastring.meta")

// MaxClassSize bounds how many bytes are read from one class resource.
const MaxClassSize = 64 << 20

// MethodDescriptor identifies a method within its declaring type.
type MethodDescriptor struct {
	Name string
	Desc string
}

func (m MethodDescriptor) String() string {
	return m.Name + m.Desc
}

// Type is a reference to a loaded type: its binary name (dotted, e.g.
// "com.example.Holder$Inner") and the locator its class file is read from.
// A nil Locator uses DefaultLocator.
type Type struct {
	Name    string
	Locator ResourceLocator
}

func (t Type) locator() ResourceLocator {
	if t.Locator != nil {
		return t.Locator
	}
	return DefaultLocator()
}

// lineResult is a computed declaration line. ok is false when the method has
// no line information.
type lineResult struct {
	line int
	ok   bool
}

// Metadata describes the implementation method of a closure. All fields are
// fixed at construction.
type Metadata struct {
	target        Type
	declaring     Type
	method        MethodDescriptor
	referenceKind int
	modifiers     int

	line atomic.Pointer[lineResult]
}

// NewMetadata creates the description of a closure of type target whose
// implementation is method, declared in declaring.
func NewMetadata(target, declaring Type, method MethodDescriptor, referenceKind, modifiers int) (*Metadata, error) {
	if target.Name == "" {
		return nil, fmt.Errorf("lambdameta: target type name is required")
	}
	if declaring.Name == "" {
		return nil, fmt.Errorf("lambdameta: declaring type name is required")
	}
	if method.Name == "" || method.Desc == "" {
		return nil, fmt.Errorf("lambdameta: method name and descriptor are required")
	}
	return &Metadata{
		target:        target,
		declaring:     declaring,
		method:        method,
		referenceKind: referenceKind,
		modifiers:     modifiers,
	}, nil
}

func (m *Metadata) TargetType() Type { return m.target }
func (m *Metadata) DeclaringType() Type { return m.declaring }
func (m *Metadata) Method() MethodDescriptor { return m.method }
func (m *Metadata) MethodName() string { return m.method.Name }
func (m *Metadata) MethodDesc() string { return m.method.Desc }
func (m *Metadata) ReferenceKind() int { return m.referenceKind }
func (m *Metadata) Modifiers() int { return m.modifiers }

// DeclarationLine returns the first source line of the implementation
// method. ok is false when the class file carries no line for it. The
// error, if any, is an *UnavailableError.
//
// Concurrent first calls may each compute the line; the first to finish
// publishes its result and the others return it.
func (m *Metadata) DeclarationLine() (line int, ok bool, err error) {
	if r := m.line.Load(); r != nil {
		return r.line, r.ok, nil
	}

	r, err := m.computeDeclarationLine()
	if err != nil {
		log.Warningf("declaration line of %s.%s: %v", m.declaring.Name, m.method, err)
		return 0, false, err
	}
	if !m.line.CompareAndSwap(nil, r) {
		r = m.line.Load()
	}
	return r.line, r.ok, nil
}

func (m *Metadata) computeDeclarationLine() (*lineResult, error) {
	resource := ResourceName(m.declaring.Name)
	unavailable := func(err error) error {
		return &UnavailableError{Type: m.declaring.Name, Resource: resource, Err: err}
	}

	rc, err := m.declaring.locator().Open(resource)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxClassSize+1))
	if err != nil {
		return nil, unavailable(fmt.Errorf("%w: reading class: %w", classfile.ErrParse, err))
	}
	if len(data) > MaxClassSize {
		return nil, unavailable(fmt.Errorf("%w: larger than %d bytes", classfile.ErrParse, MaxClassSize))
	}

	line, ok, err := classfile.FirstLine(data, m.method.Name, m.method.Desc)
	if err != nil {
		return nil, unavailable(err)
	}
	log.Debugf("declaration line of %s.%s: %d (found %v)", m.declaring.Name, m.method, line, ok)
	return &lineResult{line: line, ok: ok}, nil
}
