package main

import (
	"fmt"
	"os"

	"github.com/chazu/vecgc/vm"
)

var scenarios = map[string]func(*vm.VM){
	"demo":      runDemo,
	"cycle":     runCycle,
	"leak":      runLeak,
	"unhandled": runUnhandled,
}

func printLedger(machine *vm.VM, title string) {
	fmt.Printf("== %s\n", title)
	vm.PrintTable(os.Stdout, machine.GC().Ledger())
}

// runDemo builds an integer, a double and a self-referencing reference
// vector, then collects with and without a root.
func runDemo(machine *vm.VM) {
	ints := machine.NewIntVector(1, 2, 3)
	doubles := machine.NewDoubleVector(1.1, 2.1, 3.1)
	refs := machine.NewRefVector(nil)
	machine.SetRef(refs, 0, refs)
	machine.Append(refs, vm.RefValue(ints))
	machine.Append(refs, vm.RefValue(doubles))

	fmt.Printf("doubles[2] = %g\n", machine.GetDouble(doubles, 2))
	printLedger(machine, "after construction")

	machine.DeclareRoot(refs)
	stats := machine.Collect()
	printLedger(machine, fmt.Sprintf("rooted collection (swept %d)", stats.Swept))

	machine.RevokeRoot(refs)
	stats = machine.Collect()
	printLedger(machine, fmt.Sprintf("unrooted collection (swept %d)", stats.Swept))
}

// runCycle shows that unreachable cycles are reclaimed once their root is
// revoked.
func runCycle(machine *vm.VM) {
	a := machine.NewRefVector(nil, nil)
	b := machine.NewRefVector(a)
	machine.SetRef(a, 0, a)
	machine.SetRef(a, 1, b)
	machine.NewString("garbage")

	machine.DeclareRoot(a)
	stats := machine.Collect()
	printLedger(machine, fmt.Sprintf("a rooted (reachable %d, swept %d)", stats.Reachable, stats.Swept))

	machine.RevokeRoot(a)
	stats = machine.Collect()
	printLedger(machine, fmt.Sprintf("a revoked (swept %d)", stats.Swept))
}

// runLeak fails the second allocation of a vector inside a protected scope
// and shows the first allocation was returned.
func runLeak(machine *vm.VM) {
	machine.GCInit()
	before := machine.Heap().Stats()
	machine.Heap().FailAfter(1)
	err := machine.Try(func() {
		machine.NewVector(vm.Double, 1024)
	})
	after := machine.Heap().Stats()
	fmt.Printf("error: %v\n", err)
	fmt.Printf("before: %s\nafter:  %s\n", before, after)
	if err != nil {
		vm.PrintBacktrace(os.Stdout, machine.LastError().Backtrace)
	}
}

// runUnhandled raises outside any protected scope; the terminal handler
// prints the backtrace and exits with status 1.
func runUnhandled(machine *vm.VM) {
	v := machine.NewIntVector(1, 2, 3)
	machine.GetInt(v, 3)
}
