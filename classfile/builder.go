package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Class file format constants
// ---------------------------------------------------------------------------

// Magic is the first word of every class file.
const Magic uint32 = 0xCAFEBABE

// DefaultMajorVersion is the class file version written by Builder (Java 8).
const DefaultMajorVersion = 52

// Constant pool tags used by Builder.
const (
	tagUtf8  = 1
	tagClass = 7
)

// Access flags used by Builder.
const (
	AccPublic    = 0x0001
	AccPrivate   = 0x0002
	AccStatic    = 0x0008
	AccFinal     = 0x0010
	AccSuper     = 0x0020
	AccSynthetic = 0x1000
)

const opReturn = 0xb1

// ---------------------------------------------------------------------------
// Builder: writes minimal class files
// ---------------------------------------------------------------------------

// MethodSpec describes one method written by Builder.
type MethodSpec struct {
	Access    uint16
	Name      string
	Desc      string
	MaxStack  uint16
	MaxLocals uint16

	// Code is the raw bytecode. A nil slice writes a single RETURN. Methods
	// with NoCode set are written without a Code attribute.
	Code   []byte
	NoCode bool

	// Lines become one LineNumberTable attribute, in this order. Nil writes
	// no table.
	Lines []LineEntry
}

// Builder assembles a class file with a constant pool of Utf8 and Class
// entries, no fields, and the given methods.
type Builder struct {
	Name         string
	Super        string
	Access       uint16
	MajorVersion uint16

	methods []MethodSpec

	pool    bytes.Buffer
	poolLen int
	utf8    map[string]uint16
	classes map[string]uint16
}

// NewBuilder creates a builder for a public class extending java/lang/Object.
func NewBuilder(name string) *Builder {
	return &Builder{
		Name:         name,
		Super:        "java/lang/Object",
		Access:       AccPublic | AccSuper,
		MajorVersion: DefaultMajorVersion,
	}
}

// AddMethod appends a method.
func (b *Builder) AddMethod(m MethodSpec) *Builder {
	b.methods = append(b.methods, m)
	return b
}

// Bytes writes the class file.
func (b *Builder) Bytes() ([]byte, error) {
	b.pool.Reset()
	b.poolLen = 0
	b.utf8 = make(map[string]uint16)
	b.classes = make(map[string]uint16)

	// The pool must be complete before the header is written, so the body is
	// assembled first.
	var body bytes.Buffer
	this, err := b.class(b.Name)
	if err != nil {
		return nil, err
	}
	super, err := b.class(b.Super)
	if err != nil {
		return nil, err
	}
	writeU16(&body, b.Access)
	writeU16(&body, this)
	writeU16(&body, super)
	writeU16(&body, 0) // interfaces
	writeU16(&body, 0) // fields

	if len(b.methods) > math.MaxUint16 {
		return nil, fmt.Errorf("too many methods: %d", len(b.methods))
	}
	writeU16(&body, uint16(len(b.methods)))
	for _, m := range b.methods {
		if err := b.writeMethod(&body, m); err != nil {
			return nil, fmt.Errorf("method %s%s: %w", m.Name, m.Desc, err)
		}
	}
	writeU16(&body, 0) // class attributes

	var out bytes.Buffer
	writeU32(&out, Magic)
	writeU16(&out, 0)
	writeU16(&out, b.MajorVersion)
	writeU16(&out, uint16(b.poolLen+1))
	out.Write(b.pool.Bytes())
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

func (b *Builder) writeMethod(w *bytes.Buffer, m MethodSpec) error {
	name, err := b.utf8Index(m.Name)
	if err != nil {
		return err
	}
	desc, err := b.utf8Index(m.Desc)
	if err != nil {
		return err
	}
	writeU16(w, m.Access)
	writeU16(w, name)
	writeU16(w, desc)
	if m.NoCode {
		writeU16(w, 0)
		return nil
	}
	writeU16(w, 1)
	return b.writeCode(w, m)
}

func (b *Builder) writeCode(w *bytes.Buffer, m MethodSpec) error {
	codeName, err := b.utf8Index("Code")
	if err != nil {
		return err
	}
	code := m.Code
	if code == nil {
		code = []byte{opReturn}
	}

	var attr bytes.Buffer
	writeU16(&attr, m.MaxStack)
	writeU16(&attr, m.MaxLocals)
	writeU32(&attr, uint32(len(code)))
	attr.Write(code)
	writeU16(&attr, 0) // exception table

	if m.Lines == nil {
		writeU16(&attr, 0)
	} else {
		if len(m.Lines) > math.MaxUint16 {
			return fmt.Errorf("too many line entries: %d", len(m.Lines))
		}
		tableName, err := b.utf8Index("LineNumberTable")
		if err != nil {
			return err
		}
		writeU16(&attr, 1)
		writeU16(&attr, tableName)
		writeU32(&attr, uint32(2+4*len(m.Lines)))
		writeU16(&attr, uint16(len(m.Lines)))
		for _, ln := range m.Lines {
			if ln.StartPC < 0 || ln.StartPC > math.MaxUint16 || ln.Line < 0 || ln.Line > math.MaxUint16 {
				return fmt.Errorf("line entry %+v out of range", ln)
			}
			writeU16(&attr, uint16(ln.StartPC))
			writeU16(&attr, uint16(ln.Line))
		}
	}

	writeU16(w, codeName)
	writeU32(w, uint32(attr.Len()))
	w.Write(attr.Bytes())
	return nil
}

// utf8Index interns s as a Utf8 constant.
func (b *Builder) utf8Index(s string) (uint16, error) {
	if idx, ok := b.utf8[s]; ok {
		return idx, nil
	}
	if len(s) > math.MaxUint16 {
		return 0, fmt.Errorf("constant of %d bytes is too long", len(s))
	}
	idx, err := b.nextIndex()
	if err != nil {
		return 0, err
	}
	b.pool.WriteByte(tagUtf8)
	writeU16(&b.pool, uint16(len(s)))
	b.pool.WriteString(s)
	b.utf8[s] = idx
	return idx, nil
}

// class interns name as a Class constant.
func (b *Builder) class(name string) (uint16, error) {
	if idx, ok := b.classes[name]; ok {
		return idx, nil
	}
	nameIdx, err := b.utf8Index(name)
	if err != nil {
		return 0, err
	}
	idx, err := b.nextIndex()
	if err != nil {
		return 0, err
	}
	b.pool.WriteByte(tagClass)
	writeU16(&b.pool, nameIdx)
	b.classes[name] = idx
	return idx, nil
}

func (b *Builder) nextIndex() (uint16, error) {
	if b.poolLen+1 >= math.MaxUint16 {
		return 0, fmt.Errorf("constant pool is full")
	}
	b.poolLen++
	return uint16(b.poolLen), nil
}

func writeU16(w *bytes.Buffer, v uint16) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	w.Write(buf[:])
}

func writeU32(w *bytes.Buffer, v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	w.Write(buf[:])
}
