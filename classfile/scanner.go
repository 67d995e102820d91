// Package classfile reads the parts of JVM class files needed to locate the
// source line of a method, and writes minimal class files for fixtures.
package classfile

import (
	"errors"
	"fmt"
	"io"
)

// ErrParse is returned when class bytes cannot be decoded.
var ErrParse = errors.New("malformed class file")

// LineResolver finds the first source line of a method.
type LineResolver interface {
	// ResolveLineNumber reports the line of the first line-number entry of
	// the method with the given name and descriptor. ok is false when no
	// such method or entry exists.
	ResolveLineNumber(name, desc string) (line int, ok bool, err error)
}

// Method is one method of a parsed class.
type Method struct {
	Name      string
	Desc      string
	MaxStack  int
	MaxLocals int
	CodeLen   int

	// Lines holds the line-number entries of the method's code in table
	// order, concatenated across LineNumberTable attributes.
	Lines []LineEntry
}

// LineEntry maps a code offset to a source line.
type LineEntry struct {
	StartPC int
	Line    int
}

// Class is the subset of a class file the scanner keeps.
type Class struct {
	Name    string
	Methods []Method
}

var _ LineResolver = (*Class)(nil)

// Parse reads a whole class file from r.
func Parse(r io.Reader) (*Class, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading class: %w", ErrParse, err)
	}
	return ParseBytes(data)
}

// ParseBytes decodes a class file held in memory.
func ParseBytes(data []byte) (*Class, error) {
	r := &reader{data: data}
	cls, err := r.readClass()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return cls, nil
}

// FindMethod returns the first method with the given name and descriptor.
func (c *Class) FindMethod(name, desc string) (*Method, bool) {
	for i := range c.Methods {
		if c.Methods[i].Name == name && c.Methods[i].Desc == desc {
			return &c.Methods[i], true
		}
	}
	return nil, false
}

// ResolveLineNumber implements LineResolver. The first method in table order
// matching name and desc is used, and its first line entry is returned.
func (c *Class) ResolveLineNumber(name, desc string) (int, bool, error) {
	m, ok := c.FindMethod(name, desc)
	if !ok || len(m.Lines) == 0 {
		return 0, false, nil
	}
	return m.Lines[0].Line, true, nil
}

// FirstLine parses data and resolves the first line of the named method.
func FirstLine(data []byte, name, desc string) (int, bool, error) {
	cls, err := ParseBytes(data)
	if err != nil {
		return 0, false, err
	}
	return cls.ResolveLineNumber(name, desc)
}
