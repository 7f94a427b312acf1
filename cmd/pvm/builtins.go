package main

import (
	"fmt"
	"time"

	"github.com/ma5ter/pvm/vm"
)

// The built-in table of this runner. Indices are stable and part of the
// ABI of images compiled against it; only append.
//
//	0  print     variadic, prints every argument
//	1  output    prints its single argument
//	2  get-tick  returns monotonic milliseconds
//	3  get-time  returns monotonic seconds
//	4  get-realtime  returns hour, minute, second
//	5  get-date  returns year, month, day
//	6  get-weekday   returns weekday, Sunday = 0
func builtinTable() []vm.Builtin {
	return []vm.Builtin{
		builtinPrint,
		builtinOutput,
		builtinGetTick,
		builtinGetTime,
		builtinGetRealtime,
		builtinGetDate,
		builtinGetWeekday,
	}
}

func builtinPrint(_ *vm.VM, window []vm.Cell, argsCount int) {
	for i := 0; i < argsCount; i++ {
		fmt.Printf(" %d", window[i])
	}
}

func builtinOutput(_ *vm.VM, window []vm.Cell, _ int) {
	fmt.Printf("OUTPUT= %d", window[0])
}

func builtinGetTick(_ *vm.VM, window []vm.Cell, _ int) {
	window[0] = vm.Cell(vm.NowMS())
}

func builtinGetTime(_ *vm.VM, window []vm.Cell, _ int) {
	window[0] = vm.Cell(vm.NowMS() / 1000)
}

func builtinGetRealtime(_ *vm.VM, window []vm.Cell, _ int) {
	now := time.Now()
	window[0] = vm.Cell(now.Hour())
	window[1] = vm.Cell(now.Minute())
	window[2] = vm.Cell(now.Second())
}

func builtinGetDate(_ *vm.VM, window []vm.Cell, _ int) {
	now := time.Now()
	window[0] = vm.Cell(now.Year())
	window[1] = vm.Cell(int(now.Month()))
	window[2] = vm.Cell(now.Day())
}

func builtinGetWeekday(_ *vm.VM, window []vm.Cell, _ int) {
	window[0] = vm.Cell(int(time.Now().Weekday()))
}
