// Package chunk implements the bytecode container described by spec.md
// §3/§4.2: a flat byte stream, a parallel constant pool, and a
// per-instruction source-line map.
package chunk

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"loxvm/internal/value"
)

// OpCode is a one-byte instruction tag (spec.md §4.3).
type OpCode byte

const (
	OpConstant OpCode = iota
	OpNil
	OpTrue
	OpFalse
	OpPop
	OpDefineGlobal
	OpGetGlobal
	OpSetGlobal
	OpGetLocal
	OpSetLocal
	OpEqual
	OpGreater
	OpLess
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpNot
	OpNegate
	OpPrint
	OpJump
	OpJumpIfFalse
	OpLoop
	OpReturn
)

var opNames = [...]string{
	OpConstant: "OP_CONSTANT", OpNil: "OP_NIL", OpTrue: "OP_TRUE", OpFalse: "OP_FALSE",
	OpPop: "OP_POP",
	OpDefineGlobal: "OP_DEFINE_GLOBAL", OpGetGlobal: "OP_GET_GLOBAL", OpSetGlobal: "OP_SET_GLOBAL",
	OpGetLocal: "OP_GET_LOCAL", OpSetLocal: "OP_SET_LOCAL",
	OpEqual: "OP_EQUAL", OpGreater: "OP_GREATER", OpLess: "OP_LESS",
	OpAdd: "OP_ADD", OpSubtract: "OP_SUBTRACT", OpMultiply: "OP_MULTIPLY", OpDivide: "OP_DIVIDE",
	OpNot: "OP_NOT", OpNegate: "OP_NEGATE", OpPrint: "OP_PRINT",
	OpJump: "OP_JUMP", OpJumpIfFalse: "OP_JUMP_IF_FALSE", OpLoop: "OP_LOOP",
	OpReturn: "OP_RETURN",
}

func (op OpCode) String() string {
	if int(op) >= 0 && int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("OP_%d", byte(op))
}

// MaxConstants is the number of distinct constants a chunk can hold: the
// CONSTANT/GLOBAL family of opcodes addresses the pool with a single
// operand byte (spec.md §3).
const MaxConstants = 256

// Chunk is a self-contained unit of bytecode: the code stream, its
// constant pool, and the line map used for runtime diagnostics.
// Invariant (spec.md §3, §8): len(Code) == len(Lines) at all times.
type Chunk struct {
	Code      []byte
	Constants []value.Value
	Lines     []int
}

// New returns an empty chunk ready for compilation to write into.
func New() *Chunk {
	return &Chunk{}
}

// WriteOp appends an opcode byte, recording the source line it came from.
func (c *Chunk) WriteOp(op OpCode, line int) {
	c.Code = append(c.Code, byte(op))
	c.Lines = append(c.Lines, line)
}

// WriteByte appends a raw operand byte for the instruction just written.
func (c *Chunk) WriteByte(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// AddConstant appends v to the constant pool and returns its index, or
// ok=false if the pool is already at MaxConstants (spec.md §3: "Too many
// constants in one chunk").
func (c *Chunk) AddConstant(v value.Value) (idx byte, ok bool) {
	if len(c.Constants) >= MaxConstants {
		return 0, false
	}
	c.Constants = append(c.Constants, v)
	return byte(len(c.Constants) - 1), true
}

// ReadByte returns the octet at offset.
func (c *Chunk) ReadByte(offset int) byte { return c.Code[offset] }

// ConstantAt returns the constant at idx.
func (c *Chunk) ConstantAt(idx byte) value.Value { return c.Constants[idx] }

// Summary describes a chunk's size for the --disassemble CLI header
// (SPEC_FULL.md §3): humanized byte/constant counts instead of bare
// integers.
func (c *Chunk) Summary() string {
	return fmt.Sprintf("%s of bytecode, %s constant(s)",
		humanize.Bytes(uint64(len(c.Code))),
		humanize.Comma(int64(len(c.Constants))))
}

// Disassemble prints one line per instruction in the chunk, prefixed by
// name, for debugging (spec.md §4.2: "optional and for debugging").
func (c *Chunk) Disassemble(name string) {
	fmt.Printf("== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		offset = c.DisassembleInstruction(offset)
	}
}

// DisassembleInstruction prints the instruction at offset and returns the
// offset of the instruction that follows it.
func (c *Chunk) DisassembleInstruction(offset int) int {
	fmt.Printf("%04d ", offset)
	if offset > 0 && c.Lines[offset] == c.Lines[offset-1] {
		fmt.Printf("   | ")
	} else {
		fmt.Printf("%4d ", c.Lines[offset])
	}

	op := OpCode(c.Code[offset])
	switch op {
	case OpConstant, OpDefineGlobal, OpGetGlobal, OpSetGlobal:
		return c.constantInstruction(op.String(), offset)
	case OpGetLocal, OpSetLocal:
		return c.byteInstruction(op.String(), offset)
	case OpJump, OpJumpIfFalse, OpLoop:
		return c.jumpInstruction(op.String(), offset)
	case OpNil, OpTrue, OpFalse, OpPop, OpEqual, OpGreater, OpLess,
		OpAdd, OpSubtract, OpMultiply, OpDivide, OpNot, OpNegate,
		OpPrint, OpReturn:
		return c.simpleInstruction(op.String(), offset)
	default:
		fmt.Printf("Unknown opcode %d\n", op)
		return offset + 1
	}
}

func (c *Chunk) simpleInstruction(name string, offset int) int {
	fmt.Printf("%s\n", name)
	return offset + 1
}

func (c *Chunk) constantInstruction(name string, offset int) int {
	idx := c.Code[offset+1]
	fmt.Printf("%-16s %4d '%s'\n", name, idx, c.Constants[idx])
	return offset + 2
}

func (c *Chunk) byteInstruction(name string, offset int) int {
	slot := c.Code[offset+1]
	fmt.Printf("%-16s %4d\n", name, slot)
	return offset + 2
}

func (c *Chunk) jumpInstruction(name string, offset int) int {
	jump := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
	sign := 1
	if name == "OP_LOOP" {
		sign = -1
	}
	target := offset + 3 + sign*jump
	fmt.Printf("%-16s %4d -> %d\n", name, offset, target)
	return offset + 3
}
