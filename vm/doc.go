// Package vm implements a small stack-based bytecode virtual machine for
// severely resource-constrained targets: tens of bytes of RAM for the two
// fixed stacks and a few kilobytes of code.
//
// A VM executes a compact, self-describing executable image (see Exe) one
// instruction per Step call. Programs are a table of functions, a pool of
// constants and a flat code section; execution begins in an implicit main
// frame whose locals are pre-reserved at the bottom of the data stack.
//
// The embedder drives the machine:
//
//	exe, err := vm.NewExe(image)
//	...
//	m := vm.New(exe, builtins)
//	for {
//		if errno := m.Step(); errno != vm.NoError {
//			// vm.MainReturn is normal termination
//			break
//		}
//	}
//
// Step is strictly cooperative: it executes at most one instruction and
// never blocks. The only suspension point is the SLP instruction, a
// wall-clock gate during which Step returns NoError without side effects.
package vm
