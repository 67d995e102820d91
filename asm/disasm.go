package asm

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the method body.
func (m *Method) Disassemble() string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("; === %s%s ===\n", m.Name, m.Desc))
	if len(m.Parameters) > 0 {
		sb.WriteString(fmt.Sprintf("; Parameters (%d): ", len(m.Parameters)))
		for i, p := range m.Parameters {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.Name)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("; Max stack: %d, max locals: %d\n", m.MaxStack, m.MaxLocals))

	if len(m.TryCatchBlocks) > 0 {
		sb.WriteString("; Exception table:\n")
		for _, tc := range m.TryCatchBlocks {
			typ := tc.Type
			if typ == "" {
				typ = "any"
			}
			sb.WriteString(fmt.Sprintf(";   [%s, %s) -> %s %s\n", tc.Start, tc.End, tc.Handler, typ))
		}
	}
	sb.WriteString("\n")

	pc := 0
	for _, n := range m.Nodes {
		switch n.Kind {
		case NodeLabel:
			sb.WriteString(fmt.Sprintf("%s:\n", n.Label))
		case NodeLine:
			sb.WriteString(fmt.Sprintf("      ; line %d\n", n.Int))
		case NodeFrame:
			sb.WriteString(fmt.Sprintf("      ; frame %s locals=%s stack=%s\n",
				frameKindName(n.FrameKind), formatArray(n.Local), formatArray(n.Stack)))
		case NodeInsn:
			sb.WriteString(fmt.Sprintf("%04d  %s\n", pc, FormatNode(n)))
			pc++
		}
	}

	return sb.String()
}

// FormatNode renders one instruction with its operands.
func FormatNode(n Node) string {
	name := n.Op.String()
	switch n.Op.Shape() {
	case ShapeInt:
		return fmt.Sprintf("%-16s %d", name, n.Int)
	case ShapeVar:
		return fmt.Sprintf("%-16s %d", name, n.Int)
	case ShapeType:
		return fmt.Sprintf("%-16s %s", name, n.Type)
	case ShapeField:
		return fmt.Sprintf("%-16s %s.%s : %s", name, n.Owner, n.Name, n.Desc)
	case ShapeMethod:
		itf := ""
		if n.Itf {
			itf = " (itf)"
		}
		return fmt.Sprintf("%-16s %s.%s%s%s", name, n.Owner, n.Name, n.Desc, itf)
	case ShapeInvokeDynamic:
		return fmt.Sprintf("%-16s %s%s [%s] %s", name, n.Name, n.Desc, n.BSM, formatArray(n.BSMArgs))
	case ShapeJump:
		return fmt.Sprintf("%-16s %s", name, n.Label)
	case ShapeLdc:
		return fmt.Sprintf("%-16s %s", name, formatConstant(n.Cst))
	case ShapeIinc:
		return fmt.Sprintf("%-16s %d %d", name, n.Int, n.Incr)
	case ShapeTableSwitch:
		return fmt.Sprintf("%-16s %d..%d default=%s", name, n.Min, n.Max, n.Label)
	case ShapeLookupSwitch:
		return fmt.Sprintf("%-16s %v default=%s", name, n.Keys, n.Label)
	case ShapeMultiANewArray:
		return fmt.Sprintf("%-16s %s %d", name, n.Type, n.Int)
	default:
		return name
	}
}

func frameKindName(kind int) string {
	switch kind {
	case F_NEW:
		return "NEW"
	case F_FULL:
		return "FULL"
	case F_APPEND:
		return "APPEND"
	case F_CHOP:
		return "CHOP"
	case F_SAME:
		return "SAME"
	case F_SAME1:
		return "SAME1"
	default:
		return fmt.Sprintf("F(%d)", kind)
	}
}

func formatConstant(v any) string {
	switch c := v.(type) {
	case string:
		display := c
		if len(display) > 40 {
			display = display[:37] + "..."
		}
		return fmt.Sprintf("%q", display)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", c)
	}
}

func formatArray(vs []any) string {
	if vs == nil {
		return "null"
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = formatConstant(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
