package vm

import (
	"testing"
)

// TestRootedSelfReference builds an integer, a double and a reference
// vector holding itself and the other two, then collects with and without
// the reference vector as root.
func TestRootedSelfReference(t *testing.T) {
	vm := NewVM()
	defer vm.Shutdown()
	vm.GCInit()
	base := vm.Heap().Stats().LiveBytes

	first := vm.NewIntVector(1, 2, 3)
	second := vm.NewDoubleVector(1.1, 2.1, 3.1)
	third := vm.NewRefVector(nil)
	vm.SetRef(third, 0, third)
	vm.Append(third, RefValue(first))
	vm.Append(third, RefValue(second))

	if got := vm.GetDouble(second, 2); got != 3.1 {
		t.Errorf("second[2] = %g, want 3.1", got)
	}
	if vm.GetRef(third, 0) != third {
		t.Error("third does not reference itself")
	}

	vm.DeclareRoot(third)
	stats := vm.Collect()
	if stats.Swept != 0 || vm.GC().Ledger().Len() != 3 {
		t.Errorf("rooted: swept %d, ledger %d", stats.Swept, vm.GC().Ledger().Len())
	}

	vm.RevokeRoot(third)
	stats = vm.Collect()
	if stats.Swept != 3 || vm.GC().Ledger().Len() != 0 {
		t.Errorf("unrooted: swept %d, ledger %d", stats.Swept, vm.GC().Ledger().Len())
	}
	for _, v := range []*Vector{first, second, third} {
		if !v.Freed() {
			t.Errorf("#%d survived", v.ID())
		}
	}
	if live := vm.Heap().Stats().LiveBytes; live != base {
		t.Errorf("live bytes %d, want %d", live, base)
	}
}

// TestIndependentVMs checks that two VMs share no state.
func TestIndependentVMs(t *testing.T) {
	a, b := NewVM(), NewVM()
	defer a.Shutdown()
	defer b.Shutdown()

	va := a.NewIntVector(1)
	b.NewIntVector(1)
	b.NewIntVector(2)

	if a.ID() == b.ID() {
		t.Error("VMs share an id")
	}
	if a.GC().Tracked(va) == b.GC().Tracked(va) {
		t.Error("vector tracked by both VMs")
	}
	if a.GC().Ledger().Len() != 1 || b.GC().Ledger().Len() != 2 {
		t.Error("ledgers are not independent")
	}
	if err := b.Try(func() { b.Collect() }); err != nil {
		t.Fatal(err)
	}
	if va.Freed() {
		t.Error("collecting one VM freed a vector of the other")
	}
}
