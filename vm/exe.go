package vm

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Executable image accessor
// ---------------------------------------------------------------------------

// Version is the executable format version this VM executes. An image built
// for any other version is rejected by Check.
const Version = 1

// Header size constants. The image is byte-packed with no padding; every
// multi-byte field is little-endian.
const (
	exeVersionSize   = 1
	exeSizeSize      = 2
	exeCountsSize    = 3 // functions, constants, main variables
	exeHeaderSize    = exeVersionSize + exeSizeSize + exeCountsSize
	exeFunctionSize  = 5 // address u16 + arguments u8 + variables u8 + packed u8
	exeConstantSize  = 4
	exeCountsOffset  = exeVersionSize + exeSizeSize
	exeSectionsStart = exeHeaderSize
)

// Flag bits of the packed byte in a function record.
const (
	funReturnsMask = 0x3F
	funVariadicBit = 0x40
	funBuiltInBit  = 0x80
)

// Image check errors.
var (
	ErrWrongSize    = errors.New("executable size mismatch")
	ErrWrongVersion = errors.New("executable version mismatch")
)

// Function describes one entry of the executable's function table.
type Function struct {
	Address        uint16 // code offset, or built-in index when IsBuiltIn
	ArgumentsCount uint8
	VariablesCount uint8
	ReturnsCount   uint8 // 6 bits in the image
	IsVariadic     bool
	IsBuiltIn      bool
}

// Exe is a read-only view over a packed executable image. It borrows the
// byte slice; the bytes must outlive the Exe and every VM bound to it.
type Exe struct {
	image          []byte
	functionsCount int
	constantsCount int
	mainVariables  int
	constantsStart int
	codeStart      int
}

// Check validates the structural size and version of an image without
// constructing an accessor. The size field covers everything after the
// version and size fields themselves: the three count bytes, the function
// table, the constants and the code.
func Check(image []byte) error {
	if len(image) < exeHeaderSize {
		return ErrWrongSize
	}
	size := int(binary.LittleEndian.Uint16(image[exeVersionSize:]))
	if size != len(image)-exeVersionSize-exeSizeSize {
		return ErrWrongSize
	}
	if image[0] != Version {
		return ErrWrongVersion
	}
	functions := int(image[exeCountsOffset])
	constants := int(image[exeCountsOffset+1])
	if exeCountsSize+functions*exeFunctionSize+constants*exeConstantSize > size {
		return ErrWrongSize
	}
	return nil
}

// NewExe checks an image and returns an accessor over it.
func NewExe(image []byte) (*Exe, error) {
	if err := Check(image); err != nil {
		return nil, err
	}
	e := &Exe{
		image:          image,
		functionsCount: int(image[exeCountsOffset]),
		constantsCount: int(image[exeCountsOffset+1]),
		mainVariables:  int(image[exeCountsOffset+2]),
	}
	e.constantsStart = exeSectionsStart + e.functionsCount*exeFunctionSize
	e.codeStart = e.constantsStart + e.constantsCount*exeConstantSize
	return e, nil
}

// FunctionsCount returns the number of entries in the function table.
func (e *Exe) FunctionsCount() int {
	return e.functionsCount
}

// ConstantsCount returns the number of entries in the constant pool.
func (e *Exe) ConstantsCount() int {
	return e.constantsCount
}

// MainVariablesCount returns the number of locals pre-reserved for the
// implicit main frame.
func (e *Exe) MainVariablesCount() int {
	return e.mainVariables
}

// Function decodes the function record at index. The caller must have
// bounds-checked the index.
func (e *Exe) Function(index int) Function {
	rec := e.image[exeSectionsStart+index*exeFunctionSize:]
	packed := rec[4]
	return Function{
		Address:        binary.LittleEndian.Uint16(rec),
		ArgumentsCount: rec[2],
		VariablesCount: rec[3],
		ReturnsCount:   packed & funReturnsMask,
		IsVariadic:     packed&funVariadicBit != 0,
		IsBuiltIn:      packed&funBuiltInBit != 0,
	}
}

// Constant returns the raw constant cell at index, before sign extension.
// The caller must have bounds-checked the index.
func (e *Exe) Constant(index int) uint32 {
	return binary.LittleEndian.Uint32(e.image[e.constantsStart+index*exeConstantSize:])
}

// Code returns the code section as a borrowed slice.
func (e *Exe) Code() []byte {
	return e.image[e.codeStart:]
}

// CodeSize returns the byte length of the code section.
func (e *Exe) CodeSize() int {
	return len(e.image) - e.codeStart
}

// String summarizes the image for diagnostics.
func (e *Exe) String() string {
	return fmt.Sprintf("exe{functions:%d constants:%d main-vars:%d code:%dB}",
		e.functionsCount, e.constantsCount, e.mainVariables, e.CodeSize())
}
