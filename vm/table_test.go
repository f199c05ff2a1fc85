package vm

import (
	"testing"
)

func TestTableRecordIsIdempotent(t *testing.T) {
	vm := NewVM()
	defer vm.Shutdown()

	tab := vm.NewTable()
	defer tab.Delete(false)
	v := vm.NewIntVector(1)

	if !tab.Record(v) {
		t.Error("first Record reported no change")
	}
	if tab.Record(v) {
		t.Error("second Record reported a change")
	}
	if tab.Len() != 1 || tab.Find(v) != 0 || !tab.Contains(v) {
		t.Errorf("len=%d find=%d", tab.Len(), tab.Find(v))
	}
	if err := vm.Try(func() { tab.Record(nil) }); KindOf(err) != NullReference {
		t.Errorf("Record(nil): err = %v", err)
	}
}

func TestTableGrows(t *testing.T) {
	vm := NewVM()
	defer vm.Shutdown()

	tab := vm.NewTable()
	defer tab.Delete(false)
	if tab.Cap() != InitCapacity {
		t.Fatalf("initial cap = %d, want %d", tab.Cap(), InitCapacity)
	}
	vs := make([]*Vector, InitCapacity+1)
	for i := range vs {
		vs[i] = vm.NewIntVector(int64(i))
		tab.Record(vs[i])
	}
	if tab.Cap() != 24 || tab.Len() != 9 {
		t.Errorf("len/cap = %d/%d, want 9/24", tab.Len(), tab.Cap())
	}
	for i, v := range vs {
		if tab.At(i) != v {
			t.Fatalf("entry %d moved during growth", i)
		}
	}
}

func TestTableUntrackCompacts(t *testing.T) {
	vm := NewVM()
	defer vm.Shutdown()

	tab := vm.NewTable()
	defer tab.Delete(false)
	a, b, c := vm.NewIntVector(1), vm.NewIntVector(2), vm.NewIntVector(3)
	tab.Record(a)
	tab.Record(b)
	tab.Record(c)

	if !tab.Untrack(b, false) {
		t.Fatal("Untrack(b) reported missing")
	}
	if tab.Untrack(b, false) {
		t.Error("second Untrack(b) reported found")
	}
	got := tab.Entries()
	if len(got) != 2 || got[0] != a || got[1] != c {
		t.Errorf("entries = %v", got)
	}
	if b.Freed() {
		t.Error("Untrack without freeContent freed the vector")
	}
	if err := vm.Try(func() { tab.UntrackIndex(2, false) }); KindOf(err) != IndexOutOfRange {
		t.Errorf("UntrackIndex(2): err = %v", err)
	}
	if err := vm.Try(func() { tab.At(-1) }); KindOf(err) != IndexOutOfRange {
		t.Errorf("At(-1): err = %v", err)
	}
}

func TestTableUntrackFrees(t *testing.T) {
	vm := NewVM()
	tab := vm.NewTable()
	v := vm.NewVectorFromValues(Integer, IntValue(1))
	vm.GC().Ledger().Untrack(v, false)

	tab.Record(v)
	before := vm.Heap().Stats().LiveBytes
	tab.Untrack(v, true)
	if !v.Freed() {
		t.Error("Untrack with freeContent left the vector live")
	}
	if freed := before - vm.Heap().Stats().LiveBytes; freed != vectorHeaderSize+8 {
		t.Errorf("freed %d bytes, want %d", freed, vectorHeaderSize+8)
	}
	tab.Delete(false)
	vm.Shutdown()
	if s := vm.Heap().Stats(); s.LiveBytes != 0 || s.Allocs != s.Frees {
		t.Errorf("leak after shutdown: %s", s)
	}
}

func TestTableShrink(t *testing.T) {
	vm := NewVM()
	defer vm.Shutdown()

	tab := vm.NewTable()
	defer tab.Delete(false)
	for i := 0; i < 100; i++ {
		tab.Record(vm.NewIntVector(int64(i)))
	}
	grown := tab.Cap()
	for tab.Len() > 2 {
		tab.UntrackIndex(0, false)
	}
	tab.Shrink()
	if tab.Cap() != ShrinkTarget(2) || tab.Cap() >= grown {
		t.Errorf("cap after Shrink = %d (was %d)", tab.Cap(), grown)
	}
	if tab.Len() != 2 {
		t.Errorf("Shrink changed length to %d", tab.Len())
	}
	tab.Shrink()
	if tab.Cap() != ShrinkTarget(2) {
		t.Errorf("second Shrink changed cap to %d", tab.Cap())
	}
}

func TestTableClearAndDelete(t *testing.T) {
	vm := NewVM()
	defer vm.Shutdown()

	tab := vm.NewTable()
	v := vm.NewIntVector(1)
	tab.Record(v)
	tab.Clear(false)
	if tab.Len() != 0 || tab.Contains(v) {
		t.Error("Clear left entries behind")
	}
	tab.Record(v)
	if tab.Len() != 1 {
		t.Error("table unusable after Clear")
	}

	tab.Delete(false)
	if err := vm.Try(func() { tab.Record(v) }); KindOf(err) != NullReference {
		t.Errorf("Record on deleted table: err = %v", err)
	}
	if tab.Len() != 0 || tab.Entries() != nil {
		t.Error("deleted table still reports entries")
	}
}

func TestTableAllocationFailure(t *testing.T) {
	vm := NewVM()
	defer vm.Shutdown()

	before := vm.Heap().Stats()
	vm.Heap().FailAfter(1)
	if err := vm.Try(func() { vm.NewTable() }); KindOf(err) != AllocationFailure {
		t.Fatalf("err = %v", err)
	}
	after := vm.Heap().Stats()
	if after.LiveBytes != before.LiveBytes || after.Allocs-before.Allocs != after.Frees-before.Frees {
		t.Errorf("before %s, after %s", before, after)
	}
}
