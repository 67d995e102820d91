package asm

import (
	"fmt"
)

// ParseMethodDescriptor splits a method descriptor such as
// "(ILjava/lang/String;[I)V" into its parameter and return type descriptors.
func ParseMethodDescriptor(desc string) (params []string, ret string, err error) {
	if len(desc) < 3 || desc[0] != '(' {
		return nil, "", fmt.Errorf("malformed method descriptor %q", desc)
	}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		end, err := fieldTypeEnd(desc, i)
		if err != nil {
			return nil, "", err
		}
		params = append(params, desc[i:end])
		i = end
	}
	if i >= len(desc) {
		return nil, "", fmt.Errorf("malformed method descriptor %q: missing ')'", desc)
	}
	ret = desc[i+1:]
	if ret != "V" {
		end, err := fieldTypeEnd(desc, i+1)
		if err != nil {
			return nil, "", err
		}
		if end != len(desc) {
			return nil, "", fmt.Errorf("malformed method descriptor %q: trailing data", desc)
		}
	}
	return params, ret, nil
}

// fieldTypeEnd returns the index just past the field type starting at i.
func fieldTypeEnd(desc string, i int) (int, error) {
	for i < len(desc) && desc[i] == '[' {
		i++
	}
	if i >= len(desc) {
		return 0, fmt.Errorf("malformed descriptor %q", desc)
	}
	switch desc[i] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return i + 1, nil
	case 'L':
		for j := i + 1; j < len(desc); j++ {
			if desc[j] == ';' {
				return j + 1, nil
			}
		}
		return 0, fmt.Errorf("malformed descriptor %q: unterminated class type", desc)
	default:
		return 0, fmt.Errorf("malformed descriptor %q: unexpected %q", desc, desc[i])
	}
}

// SlotSize returns how many stack slots a value of the given type occupies.
func SlotSize(typeDesc string) int {
	switch typeDesc {
	case "V":
		return 0
	case "J", "D":
		return 2
	default:
		return 1
	}
}

// StackEffect returns the number of stack slots an instruction pops and
// pushes. Only instructions that can appear in straight-line code are
// modeled.
func StackEffect(n Node) (pop, push int, err error) {
	switch n.Op {
	case NOP, IINC, RETURN:
		return 0, 0, nil
	case SWAP:
		return 2, 2, nil
	case CHECKCAST, INSTANCEOF, ARRAYLENGTH, NEWARRAY, ANEWARRAY, I2B, I2C, I2S, INEG:
		return 1, 1, nil
	case ACONST_NULL, ICONST_M1, ICONST_0, ICONST_1, ICONST_2, ICONST_3, ICONST_4, ICONST_5,
		FCONST_0, FCONST_1, FCONST_2, BIPUSH, SIPUSH, NEW, ILOAD, FLOAD, ALOAD:
		return 0, 1, nil
	case LCONST_0, LCONST_1, DCONST_0, DCONST_1, LLOAD, DLOAD:
		return 0, 2, nil
	case LDC:
		switch n.Cst.(type) {
		case int64, float64:
			return 0, 2, nil
		}
		return 0, 1, nil
	case ISTORE, FSTORE, ASTORE, POP, ATHROW, IRETURN, FRETURN, ARETURN, MONITORENTER, MONITOREXIT:
		return 1, 0, nil
	case LSTORE, DSTORE, POP2, LRETURN, DRETURN:
		return 2, 0, nil
	case DUP:
		return 1, 2, nil
	case DUP_X1:
		return 2, 3, nil
	case DUP2:
		return 2, 4, nil
	case IADD, ISUB, IMUL, IDIV, IREM, ISHL, ISHR, IUSHR, IAND, IOR, IXOR, IALOAD, AALOAD, BALOAD, CALOAD, SALOAD:
		return 2, 1, nil
	case IASTORE, AASTORE, BASTORE, CASTORE, SASTORE:
		return 3, 0, nil
	case GETSTATIC, PUTSTATIC, GETFIELD, PUTFIELD:
		size := SlotSize(n.Desc)
		switch n.Op {
		case GETSTATIC:
			return 0, size, nil
		case PUTSTATIC:
			return size, 0, nil
		case GETFIELD:
			return 1, size, nil
		default:
			return 1 + size, 0, nil
		}
	case INVOKEVIRTUAL, INVOKESPECIAL, INVOKEINTERFACE, INVOKESTATIC, INVOKEDYNAMIC:
		params, ret, err := ParseMethodDescriptor(n.Desc)
		if err != nil {
			return 0, 0, err
		}
		for _, p := range params {
			pop += SlotSize(p)
		}
		if n.Op != INVOKESTATIC && n.Op != INVOKEDYNAMIC {
			pop++
		}
		return pop, SlotSize(ret), nil
	case MULTIANEWARRAY:
		return n.Int, 1, nil
	default:
		return 0, 0, fmt.Errorf("stack effect of %s is not modeled", n.Op)
	}
}

// ComputeMaxStack simulates the method's instructions in order and returns
// the deepest stack reached. It assumes straight-line code: jumps and
// switches are rejected, and exception handlers are entered with the one
// exception value on the stack.
func (m *Method) ComputeMaxStack() (int, error) {
	handlers := make(map[*Label]bool, len(m.TryCatchBlocks))
	for _, tc := range m.TryCatchBlocks {
		handlers[tc.Handler] = true
	}

	depth, maxDepth := 0, 0
	for _, n := range m.Nodes {
		switch n.Kind {
		case NodeLabel:
			if handlers[n.Label] {
				depth = 1
				if depth > maxDepth {
					maxDepth = depth
				}
			}
			continue
		case NodeInsn:
		default:
			continue
		}
		switch n.Op.Shape() {
		case ShapeJump, ShapeTableSwitch, ShapeLookupSwitch:
			return 0, fmt.Errorf("%s: branching code has no single stack depth", n.Op)
		}
		pop, push, err := StackEffect(n)
		if err != nil {
			return 0, err
		}
		if pop > depth {
			return 0, fmt.Errorf("%s pops %d values from a stack of %d", n.Op, pop, depth)
		}
		depth = depth - pop + push
		if depth > maxDepth {
			maxDepth = depth
		}
	}
	return maxDepth, nil
}
