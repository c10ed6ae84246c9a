package vm

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode identifies one instruction. The numeric values are part of the
// serialized chunk format and must not be renumbered.
type Opcode byte

// Stack operations
const (
	OpNop           Opcode = 0x00 // no operation
	OpLoadConst     Opcode = 0x01 // push constants[operand]
	OpLoadUndefined Opcode = 0x02 // push undefined
	OpLoadNull      Opcode = 0x03 // push null
	OpLoadTrue      Opcode = 0x04 // push true
	OpLoadFalse     Opcode = 0x05 // push false
	OpPop           Opcode = 0x06 // discard top of stack
	OpDup           Opcode = 0x07 // duplicate top of stack
	OpSwap          Opcode = 0x08 // swap the top two values
	OpDup2          Opcode = 0x09 // duplicate the top two values
	OpLoadHole      Opcode = 0x0A // push the uninitialized marker for let/const
)

// Arithmetic
const (
	OpAdd       Opcode = 0x10
	OpSub       Opcode = 0x11
	OpMul       Opcode = 0x12
	OpDiv       Opcode = 0x13
	OpMod       Opcode = 0x14
	OpPow       Opcode = 0x15
	OpNeg       Opcode = 0x16
	OpPlus      Opcode = 0x17 // unary +, ToNumber
	OpInc       Opcode = 0x18 // ToNumeric then +1
	OpDec       Opcode = 0x19 // ToNumeric then -1
	OpToNumeric Opcode = 0x1A
)

// Comparison
const (
	OpEq       Opcode = 0x20
	OpNe       Opcode = 0x21
	OpStrictEq Opcode = 0x22
	OpStrictNe Opcode = 0x23
	OpLt       Opcode = 0x24
	OpLe       Opcode = 0x25
	OpGt       Opcode = 0x26
	OpGe       Opcode = 0x27
)

// Logical and bitwise
const (
	OpNot        Opcode = 0x30
	OpBitAnd     Opcode = 0x31
	OpBitOr      Opcode = 0x32
	OpBitXor     Opcode = 0x33
	OpBitNot     Opcode = 0x34
	OpShl        Opcode = 0x35
	OpShr        Opcode = 0x36
	OpUshr       Opcode = 0x37
	OpLogicalAnd Opcode = 0x38 // eager: a ? b : a on truthiness
	OpLogicalOr  Opcode = 0x39 // eager: a ? a : b on truthiness
)

// Variable access
const (
	OpLoadLocal       Opcode = 0x40
	OpStoreLocal      Opcode = 0x41 // store without popping
	OpLoadGlobal      Opcode = 0x42 // operand: name constant
	OpStoreGlobal     Opcode = 0x43 // store without popping
	OpLoadUpvalue     Opcode = 0x44
	OpStoreUpvalue    Opcode = 0x45 // store without popping
	OpCloseUpvalue    Opcode = 0x46 // close upvalues at or above local operand
	OpTypeOfGlobal    Opcode = 0x47 // typeof on a possibly unresolvable global
	OpLoadThis        Opcode = 0x48
	OpLoadArguments   Opcode = 0x49
	OpLoadArgument    Opcode = 0x4A // push arguments[operand]
	OpArgumentsLength Opcode = 0x4B
)

// Property access
const (
	OpGetProperty    Opcode = 0x50 // obj -> obj[name]
	OpSetProperty    Opcode = 0x51 // obj value -> value
	OpDeleteProperty Opcode = 0x52 // obj key -> bool
	OpGetElement     Opcode = 0x53 // obj key -> obj[key]
	OpSetElement     Opcode = 0x54 // obj key value -> value
)

// Control flow
const (
	OpJump        Opcode = 0x60
	OpJumpIfFalse Opcode = 0x61 // pops the condition
	OpJumpIfTrue  Opcode = 0x62 // pops the condition
)

// Functions
const (
	OpCall    Opcode = 0x70 // callee this args... -> result
	OpReturn  Opcode = 0x71
	OpClosure Opcode = 0x72 // operand: template constant
	OpNew     Opcode = 0x73 // callee args... -> object
	OpApply   Opcode = 0x74 // callee this argsArray -> result; operand is an Apply mode
)

// Objects
const (
	OpNewObject    Opcode = 0x80
	OpNewArray     Opcode = 0x81 // pops operand elements
	OpTypeOf       Opcode = 0x82
	OpInstanceOf   Opcode = 0x83
	OpIn           Opcode = 0x84
	OpArrayPush    Opcode = 0x85 // arr value -> arr; operand 1 spreads value
	OpNewRegExp    Opcode = 0x86 // operand: pattern constant, flags at operand+1
	OpInherit      Opcode = 0x87 // ctor parent -> ctor
	OpDefineMethod Opcode = 0x88 // target fn -> target; defines a hidden property
)

// Iteration
const (
	OpForInInit Opcode = 0x90 // obj -> iterator; operand 1 iterates values
	OpForInNext Opcode = 0x91 // iterator -> next, or jump when exhausted
	OpForInDone Opcode = 0x92 // iterator -> bool
)

// Misc
const (
	OpThrow Opcode = 0xF0
	OpHalt  Opcode = 0xFF
)

// ---------------------------------------------------------------------------
// Operands
// ---------------------------------------------------------------------------

// OperandKind classifies the immediate attached to an instruction.
type OperandKind uint8

const (
	OperandNone OperandKind = iota
	OperandConstant
	OperandLocal
	OperandJump
	OperandArgCount
	OperandProperty
)

var operandKindNames = [...]string{"none", "const", "local", "jump", "argc", "prop"}

func (k OperandKind) String() string {
	if int(k) < len(operandKindNames) {
		return operandKindNames[k]
	}
	return "?"
}

// Limits of each operand kind.
const (
	MaxConstants = 1<<16 - 1
	MaxLocals    = 1<<16 - 1
	MaxArgCount  = 1<<8 - 1
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode. StackEffect is the net change
// in stack height; opcodes whose effect depends on the operand report 0.
type OpcodeInfo struct {
	Name        string
	Operand     OperandKind
	StackEffect int
}

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	// Stack
	OpNop:           {"NOP", OperandNone, 0},
	OpLoadConst:     {"LOAD_CONST", OperandConstant, 1},
	OpLoadUndefined: {"LOAD_UNDEFINED", OperandNone, 1},
	OpLoadNull:      {"LOAD_NULL", OperandNone, 1},
	OpLoadTrue:      {"LOAD_TRUE", OperandNone, 1},
	OpLoadFalse:     {"LOAD_FALSE", OperandNone, 1},
	OpPop:           {"POP", OperandNone, -1},
	OpDup:           {"DUP", OperandNone, 1},
	OpSwap:          {"SWAP", OperandNone, 0},
	OpDup2:          {"DUP2", OperandNone, 2},
	OpLoadHole:      {"LOAD_HOLE", OperandNone, 1},

	// Arithmetic
	OpAdd:       {"ADD", OperandNone, -1},
	OpSub:       {"SUB", OperandNone, -1},
	OpMul:       {"MUL", OperandNone, -1},
	OpDiv:       {"DIV", OperandNone, -1},
	OpMod:       {"MOD", OperandNone, -1},
	OpPow:       {"POW", OperandNone, -1},
	OpNeg:       {"NEG", OperandNone, 0},
	OpPlus:      {"PLUS", OperandNone, 0},
	OpInc:       {"INC", OperandNone, 0},
	OpDec:       {"DEC", OperandNone, 0},
	OpToNumeric: {"TO_NUMERIC", OperandNone, 0},

	// Comparison
	OpEq:       {"EQ", OperandNone, -1},
	OpNe:       {"NE", OperandNone, -1},
	OpStrictEq: {"STRICT_EQ", OperandNone, -1},
	OpStrictNe: {"STRICT_NE", OperandNone, -1},
	OpLt:       {"LT", OperandNone, -1},
	OpLe:       {"LE", OperandNone, -1},
	OpGt:       {"GT", OperandNone, -1},
	OpGe:       {"GE", OperandNone, -1},

	// Logical / bitwise
	OpNot:        {"NOT", OperandNone, 0},
	OpBitAnd:     {"BIT_AND", OperandNone, -1},
	OpBitOr:      {"BIT_OR", OperandNone, -1},
	OpBitXor:     {"BIT_XOR", OperandNone, -1},
	OpBitNot:     {"BIT_NOT", OperandNone, 0},
	OpShl:        {"SHL", OperandNone, -1},
	OpShr:        {"SHR", OperandNone, -1},
	OpUshr:       {"USHR", OperandNone, -1},
	OpLogicalAnd: {"LOGICAL_AND", OperandNone, -1},
	OpLogicalOr:  {"LOGICAL_OR", OperandNone, -1},

	// Variables
	OpLoadLocal:       {"LOAD_LOCAL", OperandLocal, 1},
	OpStoreLocal:      {"STORE_LOCAL", OperandLocal, 0},
	OpLoadGlobal:      {"LOAD_GLOBAL", OperandProperty, 1},
	OpStoreGlobal:     {"STORE_GLOBAL", OperandProperty, 0},
	OpLoadUpvalue:     {"LOAD_UPVALUE", OperandLocal, 1},
	OpStoreUpvalue:    {"STORE_UPVALUE", OperandLocal, 0},
	OpCloseUpvalue:    {"CLOSE_UPVALUE", OperandLocal, 0},
	OpTypeOfGlobal:    {"TYPEOF_GLOBAL", OperandProperty, 1},
	OpLoadThis:        {"LOAD_THIS", OperandNone, 1},
	OpLoadArguments:   {"LOAD_ARGUMENTS", OperandNone, 1},
	OpLoadArgument:    {"LOAD_ARGUMENT", OperandArgCount, 1},
	OpArgumentsLength: {"ARGUMENTS_LENGTH", OperandNone, 1},

	// Properties
	OpGetProperty:    {"GET_PROPERTY", OperandProperty, 0},
	OpSetProperty:    {"SET_PROPERTY", OperandProperty, -1},
	OpDeleteProperty: {"DELETE_PROPERTY", OperandNone, -1},
	OpGetElement:     {"GET_ELEMENT", OperandNone, -1},
	OpSetElement:     {"SET_ELEMENT", OperandNone, -2},

	// Control flow
	OpJump:        {"JUMP", OperandJump, 0},
	OpJumpIfFalse: {"JUMP_IF_FALSE", OperandJump, -1},
	OpJumpIfTrue:  {"JUMP_IF_TRUE", OperandJump, -1},

	// Functions
	OpCall:    {"CALL", OperandArgCount, 0},
	OpReturn:  {"RETURN", OperandNone, -1},
	OpClosure: {"CLOSURE", OperandConstant, 1},
	OpNew:     {"NEW", OperandArgCount, 0},
	OpApply:   {"APPLY", OperandArgCount, -2},

	// Objects
	OpNewObject:    {"NEW_OBJECT", OperandNone, 1},
	OpNewArray:     {"NEW_ARRAY", OperandArgCount, 0},
	OpTypeOf:       {"TYPEOF", OperandNone, 0},
	OpInstanceOf:   {"INSTANCEOF", OperandNone, -1},
	OpIn:           {"IN", OperandNone, -1},
	OpArrayPush:    {"ARRAY_PUSH", OperandArgCount, -1},
	OpNewRegExp:    {"NEW_REGEXP", OperandConstant, 1},
	OpInherit:      {"INHERIT", OperandNone, -1},
	OpDefineMethod: {"DEFINE_METHOD", OperandProperty, -1},

	// Iteration
	OpForInInit: {"FOR_IN_INIT", OperandArgCount, 0},
	OpForInNext: {"FOR_IN_NEXT", OperandJump, 0},
	OpForInDone: {"FOR_IN_DONE", OperandNone, 0},

	// Misc
	OpThrow: {"THROW", OperandNone, -1},
	OpHalt:  {"HALT", OperandNone, 0},
}

// Info returns metadata for the opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op)), Operand: OperandNone}
}

// Name returns the mnemonic.
func (op Opcode) Name() string {
	return op.Info().Name
}

// Valid reports whether op is a known opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeTable[op]
	return ok
}

func (op Opcode) String() string {
	return op.Name()
}

// ---------------------------------------------------------------------------
// Instruction
// ---------------------------------------------------------------------------

// Instruction is one opcode plus its optional operand.
type Instruction struct {
	Op      Opcode
	Operand int32
}

// Simple returns an instruction without an operand.
func Simple(op Opcode) Instruction { return Instruction{Op: op} }

// WithOperand returns an instruction carrying an operand.
func WithOperand(op Opcode, operand int) Instruction {
	return Instruction{Op: op, Operand: int32(operand)}
}

func (in Instruction) String() string {
	info := in.Op.Info()
	if info.Operand == OperandNone {
		return info.Name
	}
	return fmt.Sprintf("%s %s(%d)", info.Name, info.Operand, in.Operand)
}
