package vm

import (
	"encoding/binary"
	"fmt"
)

// ---------------------------------------------------------------------------
// Builder: programmatic construction of executable images
// ---------------------------------------------------------------------------

// Builder assembles a packed executable image byte by byte: function
// descriptors, constant cells and emitted code. It is a byte-level emitter
// for tests, tools and embedders, not an assembler; jump displacements are
// the caller's arithmetic.
type Builder struct {
	functions     []Function
	constants     []Cell
	code          []byte
	mainVariables uint8
}

// NewBuilder creates an empty image builder.
func NewBuilder() *Builder {
	return &Builder{
		code: make([]byte, 0, 64),
	}
}

// SetMainVariables reserves n locals for the implicit main frame.
func (b *Builder) SetMainVariables(n uint8) {
	b.mainVariables = n
}

// AddFunction appends a descriptor to the function table and returns its
// index, the value CAL takes as parameter.
func (b *Builder) AddFunction(f Function) int {
	if len(b.functions) >= 0xFF {
		panic("builder: function table full")
	}
	if f.ReturnsCount > funReturnsMask {
		panic("builder: returns count exceeds 6 bits")
	}
	b.functions = append(b.functions, f)
	return len(b.functions) - 1
}

// AddConstant appends a cell to the constant pool and returns its index,
// the value LDC takes from the stack.
func (b *Builder) AddConstant(v Cell) int {
	if len(b.constants) >= 0xFF {
		panic("builder: constant pool full")
	}
	b.constants = append(b.constants, v)
	return len(b.constants) - 1
}

// Len returns the current code length, i.e. the address of the next
// emitted instruction.
func (b *Builder) Len() int {
	return len(b.code)
}

// Emit appends a raw opcode byte.
func (b *Builder) Emit(raw byte) {
	b.code = append(b.code, raw)
}

// Psh emits a 7-bit literal push.
func (b *Builder) Psh(value int32) {
	if value < 0 || value > 0x7F {
		panic("builder: PSH literal out of range")
	}
	b.code = append(b.code, byte(value))
}

// Psc emits a push-compose with the given 5-bit tail.
func (b *Builder) Psc(low5 byte) {
	if low5 > 0x1F {
		panic("builder: PSC tail out of range")
	}
	b.code = append(b.code, 0x80|low5)
}

// Op emits a short-group instruction: arithmetic, branch, unary, SLP, RET,
// LDC, JMB or a reserved skip code.
func (b *Builder) Op(op Op) {
	switch {
	case op >= OpADD && op <= OpXOR:
		b.code = append(b.code, 0xA8|byte(op-OpADD))
	case op >= OpBZE && op <= OpBLE:
		b.code = append(b.code, 0xA0|byte(op-OpBZE))
	case op >= OpNEG && op <= OpDEC:
		b.code = append(b.code, 0xB8|byte(op-OpNEG))
	case op == OpSLP:
		b.code = append(b.code, 0xB4)
	case op == OpRET:
		b.code = append(b.code, 0xB5)
	case op == OpLDC:
		b.code = append(b.code, 0xB6)
	case op == OpJMB:
		b.code = append(b.code, 0xB7)
	case op >= OpSKZ && op <= OpSNN:
		b.code = append(b.code, 0xB0|byte(op-OpSKZ))
	default:
		panic(fmt.Sprintf("builder: %s needs a parameter emitter", op))
	}
}

// Pop emits a multi-pop of 1 to 4 cells.
func (b *Builder) Pop(cells int) {
	if cells < 1 || cells > 4 {
		panic("builder: POP count out of range")
	}
	b.code = append(b.code, 0xBC|byte(cells-1))
}

func (b *Builder) param(family byte, imm int) {
	if imm < 0 || imm > paramSaturated {
		panic("builder: parameter immediate out of range")
	}
	b.code = append(b.code, 0xC0|family<<4|byte(imm))
}

// Jmp emits a relative jump. Immediate 15 is the saturation sentinel and
// takes the true displacement from the stack.
func (b *Builder) Jmp(imm int) {
	b.param(0, imm)
}

// Cal emits a call of function #imm. Immediate 15 is the saturation
// sentinel and takes the true index from the stack.
func (b *Builder) Cal(imm int) {
	b.param(1, imm)
}

// Ldv emits a load of local variable #imm of the current frame.
func (b *Builder) Ldv(imm int) {
	b.param(2, imm)
}

// Stv emits a store into local variable #imm of the current frame.
func (b *Builder) Stv(imm int) {
	b.param(3, imm)
}

// Build assembles the packed image. The result is self-describing and
// passes Check.
func (b *Builder) Build() ([]byte, error) {
	size := exeCountsSize + len(b.functions)*exeFunctionSize + len(b.constants)*exeConstantSize + len(b.code)
	if size > 0xFFFF {
		return nil, fmt.Errorf("builder: image size %d exceeds 16 bits", size)
	}
	out := make([]byte, 0, exeVersionSize+exeSizeSize+size)
	out = append(out, Version)
	out = binary.LittleEndian.AppendUint16(out, uint16(size))
	out = append(out, byte(len(b.functions)), byte(len(b.constants)), b.mainVariables)
	for _, f := range b.functions {
		out = binary.LittleEndian.AppendUint16(out, f.Address)
		packed := f.ReturnsCount & funReturnsMask
		if f.IsVariadic {
			packed |= funVariadicBit
		}
		if f.IsBuiltIn {
			packed |= funBuiltInBit
		}
		out = append(out, f.ArgumentsCount, f.VariablesCount, packed)
	}
	for _, c := range b.constants {
		out = binary.LittleEndian.AppendUint32(out, uint32(c))
	}
	out = append(out, b.code...)
	return out, nil
}

// MustBuild is Build for tests and tools where a malformed image is a
// programming error.
func (b *Builder) MustBuild() []byte {
	image, err := b.Build()
	if err != nil {
		panic(err)
	}
	return image
}
