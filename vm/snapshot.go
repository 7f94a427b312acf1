package vm

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Snapshot: checkpointing the transient machine state
// ---------------------------------------------------------------------------

// cborEncMode uses canonical mode for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Snapshot is the serializable transient state of a VM: everything Reset
// would clear, plus the persistent binding byte. The executable itself is
// not captured; a snapshot is only meaningful against the same image.
type Snapshot struct {
	Timer     uint32  `cbor:"1,keyasint"`
	Timeout   uint32  `cbor:"2,keyasint"`
	DataStack []Cell  `cbor:"3,keyasint"`
	CallStack []Frame `cbor:"4,keyasint"`
	PC        uint16  `cbor:"5,keyasint"`
	Binding   byte    `cbor:"6,keyasint"`
}

// Snapshot serializes the live machine state to CBOR, so an embedder can
// checkpoint a program (a pending sleep included) across power cycles.
func (m *VM) Snapshot() ([]byte, error) {
	s := Snapshot{
		Timer:     m.timer,
		Timeout:   m.timeout,
		DataStack: append([]Cell(nil), m.dataStack[:m.dataTop]...),
		CallStack: append([]Frame(nil), m.callStack[:m.callTop]...),
		PC:        m.pc,
		Binding:   m.binding,
	}
	return cborEncMode.Marshal(&s)
}

// Restore replaces the transient state from a snapshot taken against the
// same executable. The bound image, built-in table, clock and tracer are
// untouched.
func (m *VM) Restore(data []byte) error {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("vm: unmarshal snapshot: %w", err)
	}
	if len(s.DataStack) > DataStackSize {
		return fmt.Errorf("vm: snapshot data stack depth %d exceeds %d", len(s.DataStack), DataStackSize)
	}
	if len(s.CallStack) > CallStackSize {
		return fmt.Errorf("vm: snapshot call stack depth %d exceeds %d", len(s.CallStack), CallStackSize)
	}
	if int(s.PC) > m.exe.CodeSize() {
		return fmt.Errorf("vm: snapshot pc %d beyond code size %d", s.PC, m.exe.CodeSize())
	}
	m.dataStack = [DataStackSize]Cell{}
	m.callStack = [CallStackSize]Frame{}
	copy(m.dataStack[:], s.DataStack)
	copy(m.callStack[:], s.CallStack)
	m.dataTop = len(s.DataStack)
	m.callTop = len(s.CallStack)
	m.timer = s.Timer
	m.timeout = s.Timeout
	m.pc = s.PC
	m.binding = s.Binding
	return nil
}
