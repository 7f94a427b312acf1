package vm

// ---------------------------------------------------------------------------
// Built-in host functions
// ---------------------------------------------------------------------------

// Builtin is a host function invoked by CAL when the descriptor's built-in
// bit is set. It runs inline on the caller's goroutine and does not occupy
// a call frame.
//
// window is the shared argument/return region of the data stack:
// window[:argsCount] holds the arguments, and results are written in place
// starting at window[0], up to the descriptor's returns count (the window
// is sized to cover both). A built-in must not touch any other VM state and
// must not call Step recursively.
//
// Indices into the table are stable and part of the ABI of a compiled
// image; the table is supplied at VM construction and only borrowed.
type Builtin func(m *VM, window []Cell, argsCount int)
