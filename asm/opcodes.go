package asm

import "fmt"

// Opcode is a JVM instruction opcode.
// Values follow the class file format; only their names and operand shape
// are tracked here.
type Opcode uint8

const (
	// ========================================================================
	// Constants (0x00-0x14)
	// ========================================================================

	NOP         Opcode = 0x00
	ACONST_NULL Opcode = 0x01
	ICONST_M1   Opcode = 0x02
	ICONST_0    Opcode = 0x03
	ICONST_1    Opcode = 0x04
	ICONST_2    Opcode = 0x05
	ICONST_3    Opcode = 0x06
	ICONST_4    Opcode = 0x07
	ICONST_5    Opcode = 0x08
	LCONST_0    Opcode = 0x09
	LCONST_1    Opcode = 0x0A
	FCONST_0    Opcode = 0x0B
	FCONST_1    Opcode = 0x0C
	FCONST_2    Opcode = 0x0D
	DCONST_0    Opcode = 0x0E
	DCONST_1    Opcode = 0x0F
	BIPUSH      Opcode = 0x10 // BIPUSH <byte>
	SIPUSH      Opcode = 0x11 // SIPUSH <short>
	LDC         Opcode = 0x12 // LDC <cp index>

	// ========================================================================
	// Loads and stores (0x15-0x56)
	// ========================================================================

	ILOAD   Opcode = 0x15
	LLOAD   Opcode = 0x16
	FLOAD   Opcode = 0x17
	DLOAD   Opcode = 0x18
	ALOAD   Opcode = 0x19
	IALOAD  Opcode = 0x2E
	LALOAD  Opcode = 0x2F
	FALOAD  Opcode = 0x30
	DALOAD  Opcode = 0x31
	AALOAD  Opcode = 0x32
	BALOAD  Opcode = 0x33
	CALOAD  Opcode = 0x34
	SALOAD  Opcode = 0x35
	ISTORE  Opcode = 0x36
	LSTORE  Opcode = 0x37
	FSTORE  Opcode = 0x38
	DSTORE  Opcode = 0x39
	ASTORE  Opcode = 0x3A
	IASTORE Opcode = 0x4F
	LASTORE Opcode = 0x50
	FASTORE Opcode = 0x51
	DASTORE Opcode = 0x52
	AASTORE Opcode = 0x53
	BASTORE Opcode = 0x54
	CASTORE Opcode = 0x55
	SASTORE Opcode = 0x56

	// ========================================================================
	// Stack manipulation (0x57-0x5F)
	// ========================================================================

	POP     Opcode = 0x57
	POP2    Opcode = 0x58
	DUP     Opcode = 0x59
	DUP_X1  Opcode = 0x5A
	DUP_X2  Opcode = 0x5B
	DUP2    Opcode = 0x5C
	DUP2_X1 Opcode = 0x5D
	DUP2_X2 Opcode = 0x5E
	SWAP    Opcode = 0x5F

	// ========================================================================
	// Arithmetic and conversions (0x60-0x93)
	// ========================================================================

	IADD  Opcode = 0x60
	LADD  Opcode = 0x61
	ISUB  Opcode = 0x64
	LSUB  Opcode = 0x65
	IMUL  Opcode = 0x68
	LMUL  Opcode = 0x69
	IDIV  Opcode = 0x6C
	LDIV  Opcode = 0x6D
	IREM  Opcode = 0x70
	INEG  Opcode = 0x74
	ISHL  Opcode = 0x78
	ISHR  Opcode = 0x7A
	IUSHR Opcode = 0x7C
	IAND  Opcode = 0x7E
	IOR   Opcode = 0x80
	IXOR  Opcode = 0x82
	IINC  Opcode = 0x84 // IINC <var> <const>
	I2L   Opcode = 0x85
	I2F   Opcode = 0x86
	I2D   Opcode = 0x87
	L2I   Opcode = 0x88
	I2B   Opcode = 0x91
	I2C   Opcode = 0x92
	I2S   Opcode = 0x93

	// ========================================================================
	// Comparisons and control flow (0x94-0xB1)
	// ========================================================================

	LCMP         Opcode = 0x94
	IFEQ         Opcode = 0x99
	IFNE         Opcode = 0x9A
	IFLT         Opcode = 0x9B
	IFGE         Opcode = 0x9C
	IFGT         Opcode = 0x9D
	IFLE         Opcode = 0x9E
	IF_ICMPEQ    Opcode = 0x9F
	IF_ICMPNE    Opcode = 0xA0
	IF_ICMPLT    Opcode = 0xA1
	IF_ICMPGE    Opcode = 0xA2
	IF_ICMPGT    Opcode = 0xA3
	IF_ICMPLE    Opcode = 0xA4
	IF_ACMPEQ    Opcode = 0xA5
	IF_ACMPNE    Opcode = 0xA6
	GOTO         Opcode = 0xA7
	JSR          Opcode = 0xA8
	RET          Opcode = 0xA9
	TABLESWITCH  Opcode = 0xAA
	LOOKUPSWITCH Opcode = 0xAB
	IRETURN      Opcode = 0xAC
	LRETURN      Opcode = 0xAD
	FRETURN      Opcode = 0xAE
	DRETURN      Opcode = 0xAF
	ARETURN      Opcode = 0xB0
	RETURN       Opcode = 0xB1

	// ========================================================================
	// References (0xB2-0xC7)
	// ========================================================================

	GETSTATIC       Opcode = 0xB2
	PUTSTATIC       Opcode = 0xB3
	GETFIELD        Opcode = 0xB4
	PUTFIELD        Opcode = 0xB5
	INVOKEVIRTUAL   Opcode = 0xB6
	INVOKESPECIAL   Opcode = 0xB7
	INVOKESTATIC    Opcode = 0xB8
	INVOKEINTERFACE Opcode = 0xB9
	INVOKEDYNAMIC   Opcode = 0xBA
	NEW             Opcode = 0xBB
	NEWARRAY        Opcode = 0xBC // NEWARRAY <atype>
	ANEWARRAY       Opcode = 0xBD
	ARRAYLENGTH     Opcode = 0xBE
	ATHROW          Opcode = 0xBF
	CHECKCAST       Opcode = 0xC0
	INSTANCEOF      Opcode = 0xC1
	MONITORENTER    Opcode = 0xC2
	MONITOREXIT     Opcode = 0xC3
	MULTIANEWARRAY  Opcode = 0xC5
	IFNULL          Opcode = 0xC6
	IFNONNULL       Opcode = 0xC7
)

// Shape describes which visitor call carries an opcode, and therefore which
// operands accompany it.
type Shape uint8

const (
	ShapeInsn Shape = iota
	ShapeInt
	ShapeVar
	ShapeType
	ShapeField
	ShapeMethod
	ShapeInvokeDynamic
	ShapeJump
	ShapeLdc
	ShapeIinc
	ShapeTableSwitch
	ShapeLookupSwitch
	ShapeMultiANewArray
)

// OpcodeInfo provides metadata about each opcode for disassembly and validation.
type OpcodeInfo struct {
	Name  string // Mnemonic
	Shape Shape  // Visitor call that carries the opcode
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	NOP: {"NOP", ShapeInsn}, ACONST_NULL: {"ACONST_NULL", ShapeInsn},
	ICONST_M1: {"ICONST_M1", ShapeInsn}, ICONST_0: {"ICONST_0", ShapeInsn},
	ICONST_1: {"ICONST_1", ShapeInsn}, ICONST_2: {"ICONST_2", ShapeInsn},
	ICONST_3: {"ICONST_3", ShapeInsn}, ICONST_4: {"ICONST_4", ShapeInsn},
	ICONST_5: {"ICONST_5", ShapeInsn},
	LCONST_0: {"LCONST_0", ShapeInsn}, LCONST_1: {"LCONST_1", ShapeInsn},
	FCONST_0: {"FCONST_0", ShapeInsn}, FCONST_1: {"FCONST_1", ShapeInsn}, FCONST_2: {"FCONST_2", ShapeInsn},
	DCONST_0: {"DCONST_0", ShapeInsn}, DCONST_1: {"DCONST_1", ShapeInsn},
	BIPUSH: {"BIPUSH", ShapeInt}, SIPUSH: {"SIPUSH", ShapeInt},
	LDC: {"LDC", ShapeLdc},

	ILOAD: {"ILOAD", ShapeVar}, LLOAD: {"LLOAD", ShapeVar}, FLOAD: {"FLOAD", ShapeVar},
	DLOAD: {"DLOAD", ShapeVar}, ALOAD: {"ALOAD", ShapeVar},
	IALOAD: {"IALOAD", ShapeInsn}, LALOAD: {"LALOAD", ShapeInsn}, FALOAD: {"FALOAD", ShapeInsn},
	DALOAD: {"DALOAD", ShapeInsn}, AALOAD: {"AALOAD", ShapeInsn}, BALOAD: {"BALOAD", ShapeInsn},
	CALOAD: {"CALOAD", ShapeInsn}, SALOAD: {"SALOAD", ShapeInsn},
	ISTORE: {"ISTORE", ShapeVar}, LSTORE: {"LSTORE", ShapeVar}, FSTORE: {"FSTORE", ShapeVar},
	DSTORE: {"DSTORE", ShapeVar}, ASTORE: {"ASTORE", ShapeVar},
	IASTORE: {"IASTORE", ShapeInsn}, LASTORE: {"LASTORE", ShapeInsn}, FASTORE: {"FASTORE", ShapeInsn},
	DASTORE: {"DASTORE", ShapeInsn}, AASTORE: {"AASTORE", ShapeInsn}, BASTORE: {"BASTORE", ShapeInsn},
	CASTORE: {"CASTORE", ShapeInsn}, SASTORE: {"SASTORE", ShapeInsn},

	POP: {"POP", ShapeInsn}, POP2: {"POP2", ShapeInsn}, DUP: {"DUP", ShapeInsn},
	DUP_X1: {"DUP_X1", ShapeInsn}, DUP_X2: {"DUP_X2", ShapeInsn}, DUP2: {"DUP2", ShapeInsn},
	DUP2_X1: {"DUP2_X1", ShapeInsn}, DUP2_X2: {"DUP2_X2", ShapeInsn}, SWAP: {"SWAP", ShapeInsn},

	IADD: {"IADD", ShapeInsn}, LADD: {"LADD", ShapeInsn}, ISUB: {"ISUB", ShapeInsn},
	LSUB: {"LSUB", ShapeInsn}, IMUL: {"IMUL", ShapeInsn}, LMUL: {"LMUL", ShapeInsn},
	IDIV: {"IDIV", ShapeInsn}, LDIV: {"LDIV", ShapeInsn}, IREM: {"IREM", ShapeInsn},
	INEG: {"INEG", ShapeInsn}, ISHL: {"ISHL", ShapeInsn}, ISHR: {"ISHR", ShapeInsn},
	IUSHR: {"IUSHR", ShapeInsn}, IAND: {"IAND", ShapeInsn}, IOR: {"IOR", ShapeInsn},
	IXOR: {"IXOR", ShapeInsn}, IINC: {"IINC", ShapeIinc},
	I2L: {"I2L", ShapeInsn}, I2F: {"I2F", ShapeInsn}, I2D: {"I2D", ShapeInsn},
	L2I: {"L2I", ShapeInsn}, I2B: {"I2B", ShapeInsn}, I2C: {"I2C", ShapeInsn}, I2S: {"I2S", ShapeInsn},

	LCMP: {"LCMP", ShapeInsn},
	IFEQ: {"IFEQ", ShapeJump}, IFNE: {"IFNE", ShapeJump}, IFLT: {"IFLT", ShapeJump},
	IFGE: {"IFGE", ShapeJump}, IFGT: {"IFGT", ShapeJump}, IFLE: {"IFLE", ShapeJump},
	IF_ICMPEQ: {"IF_ICMPEQ", ShapeJump}, IF_ICMPNE: {"IF_ICMPNE", ShapeJump},
	IF_ICMPLT: {"IF_ICMPLT", ShapeJump}, IF_ICMPGE: {"IF_ICMPGE", ShapeJump},
	IF_ICMPGT: {"IF_ICMPGT", ShapeJump}, IF_ICMPLE: {"IF_ICMPLE", ShapeJump},
	IF_ACMPEQ: {"IF_ACMPEQ", ShapeJump}, IF_ACMPNE: {"IF_ACMPNE", ShapeJump},
	GOTO: {"GOTO", ShapeJump}, JSR: {"JSR", ShapeJump}, RET: {"RET", ShapeVar},
	TABLESWITCH: {"TABLESWITCH", ShapeTableSwitch}, LOOKUPSWITCH: {"LOOKUPSWITCH", ShapeLookupSwitch},
	IRETURN: {"IRETURN", ShapeInsn}, LRETURN: {"LRETURN", ShapeInsn}, FRETURN: {"FRETURN", ShapeInsn},
	DRETURN: {"DRETURN", ShapeInsn}, ARETURN: {"ARETURN", ShapeInsn}, RETURN: {"RETURN", ShapeInsn},

	GETSTATIC: {"GETSTATIC", ShapeField}, PUTSTATIC: {"PUTSTATIC", ShapeField},
	GETFIELD: {"GETFIELD", ShapeField}, PUTFIELD: {"PUTFIELD", ShapeField},
	INVOKEVIRTUAL: {"INVOKEVIRTUAL", ShapeMethod}, INVOKESPECIAL: {"INVOKESPECIAL", ShapeMethod},
	INVOKESTATIC: {"INVOKESTATIC", ShapeMethod}, INVOKEINTERFACE: {"INVOKEINTERFACE", ShapeMethod},
	INVOKEDYNAMIC: {"INVOKEDYNAMIC", ShapeInvokeDynamic},
	NEW: {"NEW", ShapeType}, NEWARRAY: {"NEWARRAY", ShapeInt}, ANEWARRAY: {"ANEWARRAY", ShapeType},
	ARRAYLENGTH: {"ARRAYLENGTH", ShapeInsn}, ATHROW: {"ATHROW", ShapeInsn},
	CHECKCAST: {"CHECKCAST", ShapeType}, INSTANCEOF: {"INSTANCEOF", ShapeType},
	MONITORENTER: {"MONITORENTER", ShapeInsn}, MONITOREXIT: {"MONITOREXIT", ShapeInsn},
	MULTIANEWARRAY: {"MULTIANEWARRAY", ShapeMultiANewArray},
	IFNULL: {"IFNULL", ShapeJump}, IFNONNULL: {"IFNONNULL", ShapeJump},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns an OpcodeInfo named "UNKNOWN(0x..)" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op)), Shape: ShapeInsn}
}

// Known reports whether op has an entry in the opcode table.
func (op Opcode) Known() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the mnemonic of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// Shape returns the visitor call that carries this opcode.
func (op Opcode) Shape() Shape {
	return GetOpcodeInfo(op).Shape
}

// IsReturn returns true if this opcode leaves the method normally.
func (op Opcode) IsReturn() bool {
	return op >= IRETURN && op <= RETURN
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}

// Frame kinds passed to VisitFrame.
const (
	F_NEW    = -1
	F_FULL   = 0
	F_APPEND = 1
	F_CHOP   = 2
	F_SAME   = 3
	F_SAME1  = 4
)

// Verification types used in frame local and stack arrays.
const (
	TOP                = 0
	INTEGER            = 1
	FLOAT              = 2
	DOUBLE             = 3
	LONG               = 4
	NULL               = 5
	UNINITIALIZED_THIS = 6
)

// Method handle reference kinds.
const (
	H_GETFIELD         = 1
	H_GETSTATIC        = 2
	H_PUTFIELD         = 3
	H_PUTSTATIC        = 4
	H_INVOKEVIRTUAL    = 5
	H_INVOKESTATIC     = 6
	H_INVOKESPECIAL    = 7
	H_NEWINVOKESPECIAL = 8
	H_INVOKEINTERFACE  = 9
)

// Primitive array element types for NEWARRAY.
const (
	T_BOOLEAN = 4
	T_CHAR    = 5
	T_FLOAT   = 6
	T_DOUBLE  = 7
	T_BYTE    = 8
	T_SHORT   = 9
	T_INT     = 10
	T_LONG    = 11
)
