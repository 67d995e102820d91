package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Remaining constant pool tags. Entries are skipped by size; only Utf8 and
// Class entries are kept.
const (
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

var errUnexpectedEOF = errors.New("unexpected end of class data")

// poolEntry is one constant pool slot. For Class entries index names the
// Utf8 entry holding the class name.
type poolEntry struct {
	tag   byte
	utf8  string
	index uint16
}

// reader decodes a class file held in memory.
type reader struct {
	data   []byte
	offset int
	pool   []poolEntry
}

func (r *reader) readU1() (byte, error) {
	if r.offset+1 > len(r.data) {
		return 0, errUnexpectedEOF
	}
	v := r.data[r.offset]
	r.offset++
	return v, nil
}

func (r *reader) readU2() (uint16, error) {
	if r.offset+2 > len(r.data) {
		return 0, errUnexpectedEOF
	}
	v := binary.BigEndian.Uint16(r.data[r.offset:])
	r.offset += 2
	return v, nil
}

func (r *reader) readU4() (uint32, error) {
	if r.offset+4 > len(r.data) {
		return 0, errUnexpectedEOF
	}
	v := binary.BigEndian.Uint32(r.data[r.offset:])
	r.offset += 4
	return v, nil
}

func (r *reader) readBytes(n int) ([]byte, error) {
	if n < 0 || r.offset+n > len(r.data) {
		return nil, errUnexpectedEOF
	}
	b := r.data[r.offset : r.offset+n]
	r.offset += n
	return b, nil
}

func (r *reader) skip(n int) error {
	_, err := r.readBytes(n)
	return err
}

func (r *reader) readHeader() error {
	magic, err := r.readU4()
	if err != nil {
		return err
	}
	if magic != Magic {
		return fmt.Errorf("bad magic 0x%08X", magic)
	}
	// minor and major version
	return r.skip(4)
}

func (r *reader) readPool() error {
	count, err := r.readU2()
	if err != nil {
		return fmt.Errorf("constant pool count: %w", err)
	}
	if count == 0 {
		return errors.New("empty constant pool count")
	}
	r.pool = make([]poolEntry, count)
	for i := 1; i < int(count); i++ {
		tag, err := r.readU1()
		if err != nil {
			return fmt.Errorf("constant %d: %w", i, err)
		}
		entry := poolEntry{tag: tag}
		switch tag {
		case tagUtf8:
			n, err := r.readU2()
			if err != nil {
				return fmt.Errorf("constant %d: %w", i, err)
			}
			b, err := r.readBytes(int(n))
			if err != nil {
				return fmt.Errorf("constant %d: %w", i, err)
			}
			entry.utf8 = string(b)
		case tagClass:
			if entry.index, err = r.readU2(); err != nil {
				return fmt.Errorf("constant %d: %w", i, err)
			}
		case tagString, tagMethodType, tagModule, tagPackage:
			err = r.skip(2)
		case tagMethodHandle:
			err = r.skip(3)
		case tagInteger, tagFloat, tagFieldref, tagMethodref, tagInterfaceMethodref,
			tagNameAndType, tagDynamic, tagInvokeDynamic:
			err = r.skip(4)
		case tagLong, tagDouble:
			err = r.skip(8)
		default:
			return fmt.Errorf("constant %d: unknown tag %d", i, tag)
		}
		if err != nil {
			return fmt.Errorf("constant %d: %w", i, err)
		}
		r.pool[i] = entry
		// Long and Double take two slots.
		if tag == tagLong || tag == tagDouble {
			i++
		}
	}
	return nil
}

func (r *reader) utf8At(index uint16) (string, error) {
	if int(index) >= len(r.pool) || r.pool[index].tag != tagUtf8 {
		return "", fmt.Errorf("constant %d is not a Utf8 entry", index)
	}
	return r.pool[index].utf8, nil
}

func (r *reader) classNameAt(index uint16) (string, error) {
	if int(index) >= len(r.pool) || r.pool[index].tag != tagClass {
		return "", fmt.Errorf("constant %d is not a Class entry", index)
	}
	return r.utf8At(r.pool[index].index)
}

// readMember reads the access flags, name and descriptor of a field or
// method. Its attributes follow.
func (r *reader) readMember() (name, desc string, err error) {
	if err := r.skip(2); err != nil {
		return "", "", err
	}
	nameIdx, err := r.readU2()
	if err != nil {
		return "", "", err
	}
	descIdx, err := r.readU2()
	if err != nil {
		return "", "", err
	}
	if name, err = r.utf8At(nameIdx); err != nil {
		return "", "", err
	}
	if desc, err = r.utf8At(descIdx); err != nil {
		return "", "", err
	}
	return name, desc, nil
}

// readAttributes reads an attribute table, calling fn with the name and body
// of each attribute.
func (r *reader) readAttributes(fn func(name string, body *reader) error) error {
	count, err := r.readU2()
	if err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		nameIdx, err := r.readU2()
		if err != nil {
			return err
		}
		length, err := r.readU4()
		if err != nil {
			return err
		}
		if uint64(length) > uint64(len(r.data)-r.offset) {
			return errUnexpectedEOF
		}
		body, _ := r.readBytes(int(length))
		if fn == nil {
			continue
		}
		name, err := r.utf8At(nameIdx)
		if err != nil {
			return fmt.Errorf("attribute %d: %w", i, err)
		}
		if err := fn(name, &reader{data: body, pool: r.pool}); err != nil {
			return fmt.Errorf("%s attribute: %w", name, err)
		}
	}
	return nil
}

// readCode fills the code fields and line entries of m from a Code attribute.
func (r *reader) readCode(m *Method) error {
	maxStack, err := r.readU2()
	if err != nil {
		return err
	}
	maxLocals, err := r.readU2()
	if err != nil {
		return err
	}
	codeLen, err := r.readU4()
	if err != nil {
		return err
	}
	if uint64(codeLen) > uint64(len(r.data)-r.offset) {
		return errUnexpectedEOF
	}
	r.offset += int(codeLen)
	handlers, err := r.readU2()
	if err != nil {
		return err
	}
	if err := r.skip(8 * int(handlers)); err != nil {
		return err
	}
	m.MaxStack, m.MaxLocals, m.CodeLen = int(maxStack), int(maxLocals), int(codeLen)

	return r.readAttributes(func(name string, body *reader) error {
		if name != "LineNumberTable" {
			return nil
		}
		n, err := body.readU2()
		if err != nil {
			return err
		}
		for j := 0; j < int(n); j++ {
			pc, err := body.readU2()
			if err != nil {
				return err
			}
			line, err := body.readU2()
			if err != nil {
				return err
			}
			m.Lines = append(m.Lines, LineEntry{StartPC: int(pc), Line: int(line)})
		}
		return nil
	})
}

func (r *reader) readClass() (*Class, error) {
	if err := r.readHeader(); err != nil {
		return nil, err
	}
	if err := r.readPool(); err != nil {
		return nil, err
	}
	if err := r.skip(2); err != nil { // access flags
		return nil, err
	}
	thisIdx, err := r.readU2()
	if err != nil {
		return nil, err
	}
	name, err := r.classNameAt(thisIdx)
	if err != nil {
		return nil, fmt.Errorf("class name: %w", err)
	}
	if err := r.skip(2); err != nil { // super class
		return nil, err
	}
	interfaces, err := r.readU2()
	if err != nil {
		return nil, err
	}
	if err := r.skip(2 * int(interfaces)); err != nil {
		return nil, err
	}

	fields, err := r.readU2()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(fields); i++ {
		if _, _, err := r.readMember(); err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		if err := r.readAttributes(nil); err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
	}

	methods, err := r.readU2()
	if err != nil {
		return nil, err
	}
	cls := &Class{Name: name, Methods: make([]Method, 0, methods)}
	for i := 0; i < int(methods); i++ {
		mname, mdesc, err := r.readMember()
		if err != nil {
			return nil, fmt.Errorf("method %d: %w", i, err)
		}
		method := Method{Name: mname, Desc: mdesc}
		err = r.readAttributes(func(name string, body *reader) error {
			if name != "Code" {
				return nil
			}
			return body.readCode(&method)
		})
		if err != nil {
			return nil, fmt.Errorf("method %s%s: %w", mname, mdesc, err)
		}
		cls.Methods = append(cls.Methods, method)
	}

	if err := r.readAttributes(nil); err != nil {
		return nil, fmt.Errorf("class attributes: %w", err)
	}
	return cls, nil
}
