package vm

import "fmt"

// ---------------------------------------------------------------------------
// Opcode encoding
// ---------------------------------------------------------------------------
//
// Instructions are a single byte partitioned by the top two bits:
//
//	0xxxxxxx  PSH, 7-bit non-negative literal
//	10xxxxxx  short group: PSC, arithmetic, branches, unary, SLP/RET/LDC/JMB
//	11ffiiii  parameterised group: ff selects JMP/CAL/LDV/STV, iiii is the
//	          4-bit parameter; 0x0F is the saturation sentinel and the true
//	          parameter comes from the data stack.

// Op identifies a decoded operation.
type Op uint8

const (
	OpPSH Op = iota
	OpPSC

	// parameterised group
	OpJMP
	OpCAL
	OpLDV
	OpSTV

	// binary arithmetic
	OpADD
	OpSUB
	OpMUL
	OpDIV
	OpPWR
	OpAND
	OpIOR
	OpXOR

	// conditional branches
	OpBZE
	OpBNZ
	OpBEQ
	OpBNE
	OpBGT
	OpBLT
	OpBGE
	OpBLE

	// unary
	OpNEG
	OpINV
	OpINC
	OpDEC

	OpPOP
	OpSLP
	OpRET
	OpLDC
	OpJMB

	// reserved skip codes, executed as no-ops
	OpSKZ
	OpSNZ
	OpSKN
	OpSNN
)

var opNames = [...]string{
	OpPSH: "PSH", OpPSC: "PSC",
	OpJMP: "JMP", OpCAL: "CAL", OpLDV: "LDV", OpSTV: "STV",
	OpADD: "ADD", OpSUB: "SUB", OpMUL: "MUL", OpDIV: "DIV",
	OpPWR: "PWR", OpAND: "AND", OpIOR: "IOR", OpXOR: "XOR",
	OpBZE: "BZE", OpBNZ: "BNZ", OpBEQ: "BEQ", OpBNE: "BNE",
	OpBGT: "BGT", OpBLT: "BLT", OpBGE: "BGE", OpBLE: "BLE",
	OpNEG: "NEG", OpINV: "INV", OpINC: "INC", OpDEC: "DEC",
	OpPOP: "POP", OpSLP: "SLP", OpRET: "RET", OpLDC: "LDC", OpJMB: "JMB",
	OpSKZ: "SKZ", OpSNZ: "SNZ", OpSKN: "SKN", OpSNN: "SNN",
}

// String implements the Stringer interface.
func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("OP_%02X", uint8(op))
}

// paramSaturated is the sentinel immediate of the parameterised group: the
// true parameter is popped from the data stack and, when positive, gains
// this value back.
const paramSaturated = 0x0F

// Instr is one decoded instruction. Imm carries the embedded immediate;
// Extended marks a saturated parameter that must be completed from the
// data stack before execution.
type Instr struct {
	Op       Op
	Imm      int32
	Extended bool
}

// decode classifies a fetched opcode byte. It never fails: every byte value
// maps to an operation, reserved codes included.
func decode(b byte) Instr {
	if b&0x80 == 0 {
		return Instr{Op: OpPSH, Imm: int32(b & 0x7F)}
	}
	if b&0x40 != 0 {
		imm := int32(b & paramSaturated)
		in := Instr{Imm: imm, Extended: imm == paramSaturated}
		switch (b >> 4) & 3 {
		case 0:
			in.Op = OpJMP
		case 1:
			in.Op = OpCAL
		case 2:
			in.Op = OpLDV
		default:
			in.Op = OpSTV
		}
		return in
	}
	if b&0x20 == 0 {
		return Instr{Op: OpPSC, Imm: int32(b & 0x1F)}
	}
	if b&0x10 == 0 {
		if b&0x08 != 0 {
			return Instr{Op: OpADD + Op(b&7)}
		}
		return Instr{Op: OpBZE + Op(b&7)}
	}
	if b&0x08 != 0 {
		if b&0x04 != 0 {
			return Instr{Op: OpPOP, Imm: int32(b&3) + 1}
		}
		return Instr{Op: OpNEG + Op(b&3)}
	}
	if b&0x04 != 0 {
		switch b & 3 {
		case 0:
			return Instr{Op: OpSLP}
		case 1:
			return Instr{Op: OpRET}
		case 2:
			return Instr{Op: OpLDC}
		default:
			return Instr{Op: OpJMB}
		}
	}
	return Instr{Op: OpSKZ + Op(b&3)}
}

// Decode exposes the instruction decoder for tools and tests.
func Decode(b byte) Instr {
	return decode(b)
}

// String renders a decoded instruction for disassembly: the mnemonic, the
// immediate (bracketed for JMP/CAL/LDV/STV), or "*" for a saturated
// parameter. The tracer uses its own per-operation formats.
func (in Instr) String() string {
	switch {
	case in.Extended:
		return in.Op.String() + " *"
	case in.Op == OpPSH, in.Op == OpPSC, in.Op == OpPOP:
		return fmt.Sprintf("%s %d", in.Op, in.Imm)
	case in.Op >= OpJMP && in.Op <= OpSTV:
		return fmt.Sprintf("%s [%d]", in.Op, in.Imm)
	default:
		return in.Op.String()
	}
}

// Disassemble renders every instruction of a code section, one per line,
// prefixed with its byte offset.
func Disassemble(code []byte) string {
	var out []byte
	for pc, b := range code {
		out = fmt.Appendf(out, "%04d  %s\n", pc, decode(b))
	}
	return string(out)
}
