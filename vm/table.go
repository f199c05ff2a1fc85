package vm

// ---------------------------------------------------------------------------
// Table: a growable set of vector handles
// ---------------------------------------------------------------------------

// tableHeaderSize is the accounted size of a Table struct.
const tableHeaderSize = 48

// refSize is the accounted size of one table entry.
const refSize = 8

// Table is an ordered list of distinct vector handles. It owns its entry
// buffer but never the vectors it lists, unless asked to free them on
// removal. The collector keeps three: the ledger, the roots and the working
// set.
type Table struct {
	vm      *VM
	entries []*Vector // len(entries) is the capacity
	length  int
	members map[*Vector]struct{}
}

// NewTable creates an empty table with InitCapacity slots.
func (vm *VM) NewTable() *Table {
	defer vm.leave(vm.enter())
	vm.alloc(tableHeaderSize)
	t := &Table{vm: vm}
	vm.guard(t, func() { vm.heap.free(tableHeaderSize) })

	vm.alloc(InitCapacity * refSize)
	t.entries = make([]*Vector, InitCapacity)
	t.members = make(map[*Vector]struct{}, InitCapacity)

	vm.release(t)
	return t
}

func (t *Table) check() {
	if t == nil {
		// No VM to raise through; this is a programming error.
		panic(ErrNullReference)
	}
	if t.entries == nil {
		t.vm.Raise(NullReference, "table has no entry buffer (deleted)")
	}
}

// Len returns the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return t.length
}

// Cap returns the number of entry slots.
func (t *Table) Cap() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// At returns entry i.
func (t *Table) At(i int) *Vector {
	t.check()
	if i < 0 || i >= t.length {
		t.vm.Raise(IndexOutOfRange, "table index %d outside [0,%d)", i, t.length)
	}
	return t.entries[i]
}

// Entries returns a copy of the entries in order.
func (t *Table) Entries() []*Vector {
	if t == nil || t.entries == nil {
		return nil
	}
	return append([]*Vector(nil), t.entries[:t.length]...)
}

// Reserve ensures the table has at least capacity slots.
func (t *Table) Reserve(capacity int) {
	t.check()
	if len(t.entries) >= capacity {
		return
	}
	newCap, ok := GrowCapacity(len(t.entries), capacity, refSize)
	if !ok {
		t.vm.Raise(InvalidCapacityRequest, "table capacity %d exceeds maximum %d", capacity, MaxCapacity)
	}
	t.resize(newCap)
}

// resize swaps the entry buffer for one of newCap slots.
func (t *Table) resize(newCap int) {
	vm := t.vm
	vm.alloc(int64(newCap) * refSize)
	grown := make([]*Vector, newCap)
	copy(grown, t.entries[:t.length])
	vm.heap.free(int64(len(t.entries)) * refSize)
	t.entries = grown
}

// Shrink releases slack slots once capacity exceeds ShrinkTarget(Len).
func (t *Table) Shrink() {
	t.check()
	if target := ShrinkTarget(t.length); len(t.entries) > target {
		t.resize(target)
	}
}

// Find returns the position of v, or -1.
func (t *Table) Find(v *Vector) int {
	t.check()
	if _, ok := t.members[v]; !ok {
		return -1
	}
	for i, e := range t.entries[:t.length] {
		if e == v {
			return i
		}
	}
	return -1
}

// Contains reports whether v is listed.
func (t *Table) Contains(v *Vector) bool {
	t.check()
	_, ok := t.members[v]
	return ok
}

// Record appends v unless it is already listed. It reports whether v was
// added.
func (t *Table) Record(v *Vector) bool {
	t.check()
	if v == nil {
		t.vm.Raise(NullReference, "cannot record nil vector")
	}
	if _, ok := t.members[v]; ok {
		return false
	}
	t.Reserve(t.length + 1)
	t.entries[t.length] = v
	t.length++
	t.members[v] = struct{}{}
	return true
}

// Untrack removes v if present, freeing it when freeContent is set. It
// reports whether v was found.
func (t *Table) Untrack(v *Vector, freeContent bool) bool {
	t.check()
	i := t.Find(v)
	if i < 0 {
		return false
	}
	t.UntrackIndex(i, freeContent)
	return true
}

// UntrackIndex removes the entry at i and closes the gap, freeing the
// vector when freeContent is set.
func (t *Table) UntrackIndex(i int, freeContent bool) {
	t.check()
	if i < 0 || i >= t.length {
		t.vm.Raise(IndexOutOfRange, "table index %d outside [0,%d)", i, t.length)
	}
	v := t.entries[i]
	copy(t.entries[i:], t.entries[i+1:t.length])
	t.length--
	t.entries[t.length] = nil
	delete(t.members, v)
	if freeContent {
		t.vm.freeVector(v)
	}
}

// Clear removes every entry, freeing each when freeContent is set.
func (t *Table) Clear(freeContent bool) {
	t.check()
	for i := 0; i < t.length; i++ {
		if freeContent {
			t.vm.freeVector(t.entries[i])
		}
		t.entries[i] = nil
	}
	t.length = 0
	clear(t.members)
}

// Delete clears the table and releases its entry buffer. The table cannot
// be used afterwards.
func (t *Table) Delete(freeContent bool) {
	t.Clear(freeContent)
	t.vm.heap.free(int64(len(t.entries)) * refSize)
	t.vm.heap.free(tableHeaderSize)
	t.entries = nil
	t.members = nil
}
