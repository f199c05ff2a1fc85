package vm

import (
	"time"

	"github.com/tliron/commonlog"
)

var gcLog = commonlog.GetLogger("vecgc.gc")

// ---------------------------------------------------------------------------
// Collector: explicit-root mark and sweep over Managed vectors
// ---------------------------------------------------------------------------

// CollectStats holds statistics from a single collection.
type CollectStats struct {
	Roots     int // declared roots at the start of the cycle
	Reachable int // size of the working set after marking
	Swept     int // vectors freed
	Remaining int // ledger length after the sweep
	Duration  time.Duration
	Timestamp time.Time
}

// Collector owns three tables: the ledger of every live Managed vector, the
// roots declared by the application, and the working set computed by each
// collection. Collection never runs on its own; call Collect.
type Collector struct {
	vm *VM

	ledger  *Table
	roots   *Table
	working *Table

	collecting  bool
	collections uint64
	lastStats   *CollectStats
}

func newCollector(vm *VM) *Collector {
	return &Collector{vm: vm}
}

// Initialized reports whether the tables exist. It raises if only some do.
func (gc *Collector) Initialized() bool {
	n := 0
	for _, t := range []*Table{gc.ledger, gc.roots, gc.working} {
		if t != nil {
			n++
		}
	}
	switch n {
	case 0:
		return false
	case 3:
		return true
	}
	gc.vm.Raise(InconsistentCollectorState, "%d of 3 collector tables allocated", n)
	return false
}

// Init allocates the tables. It is a no-op when they already exist.
func (gc *Collector) Init() {
	vm := gc.vm
	defer vm.leave(vm.enter())
	if gc.Initialized() {
		return
	}
	ledger := vm.NewTable()
	vm.guard(ledger, func() { ledger.Delete(false) })
	roots := vm.NewTable()
	vm.guard(roots, func() { roots.Delete(false) })
	working := vm.NewTable()

	vm.release(roots)
	vm.release(ledger)
	gc.ledger, gc.roots, gc.working = ledger, roots, working
	gcLog.Debugf("collector initialized for vm %s", vm.id)
}

// Record adds v to the ledger, initializing the collector if needed.
// Vectors recorded while a collection is sweeping (by a finalizer) join the
// working set so that sweep keeps them.
func (gc *Collector) Record(v *Vector) {
	vm := gc.vm
	defer vm.leave(vm.enter())
	if v == nil {
		vm.Raise(NullReference, "cannot record nil vector")
	}
	gc.Init()
	if gc.collecting {
		gc.working.Record(v)
	}
	gc.ledger.Record(v)
}

func (gc *Collector) requireInit() {
	if !gc.Initialized() {
		gc.vm.Raise(InconsistentCollectorState, "collector is not initialized")
	}
}

// DeclareRoot marks v as directly reachable.
func (gc *Collector) DeclareRoot(v *Vector) {
	vm := gc.vm
	defer vm.leave(vm.enter())
	vm.checkLive(v)
	if v.storage != Managed {
		vm.Raise(TypeMismatch, "vector #%d is %s and cannot be a root", v.id, v.storage)
	}
	gc.Init()
	gc.roots.Record(v)
}

// RevokeRoot removes v from the roots. The vector itself is untouched.
func (gc *Collector) RevokeRoot(v *Vector) {
	vm := gc.vm
	defer vm.leave(vm.enter())
	if v == nil {
		vm.Raise(NullReference, "cannot revoke nil vector")
	}
	gc.requireInit()
	gc.roots.Untrack(v, false)
}

// Tracked reports whether v is in the ledger.
func (gc *Collector) Tracked(v *Vector) bool {
	return gc.ledger != nil && gc.ledger.entries != nil && gc.ledger.Contains(v)
}

// IsRoot reports whether v is a declared root.
func (gc *Collector) IsRoot(v *Vector) bool {
	return gc.roots != nil && gc.roots.entries != nil && gc.roots.Contains(v)
}

// Ledger returns the table of tracked vectors. Callers must not modify it.
func (gc *Collector) Ledger() *Table { return gc.ledger }

// Roots returns the table of declared roots. Callers must not modify it.
func (gc *Collector) Roots() *Table { return gc.roots }

// Working returns the working set of the last collection. Its contents are
// only meaningful immediately after Collect.
func (gc *Collector) Working() *Table { return gc.working }

// Collections returns the number of completed collections.
func (gc *Collector) Collections() uint64 { return gc.collections }

// LastStats returns statistics from the most recent collection, or nil.
func (gc *Collector) LastStats() *CollectStats { return gc.lastStats }

// Collect runs one mark and sweep cycle. With no roots declared every
// tracked vector is freed.
func (gc *Collector) Collect() *CollectStats {
	vm := gc.vm
	defer vm.leave(vm.enter())
	if gc.collecting {
		vm.Raise(InconsistentCollectorState, "collection already in progress")
	}
	gc.requireInit()
	gc.collecting = true
	defer func() { gc.collecting = false }()

	start := time.Now()
	stats := &CollectStats{Timestamp: start, Roots: gc.roots.Len()}

	gc.working.Clear(false)
	if gc.roots.Len() > 0 {
		for _, r := range gc.roots.entries[:gc.roots.length] {
			gc.working.Record(r)
		}
		gc.mark()
	}
	stats.Reachable = gc.working.Len()
	stats.Swept = gc.sweep()
	stats.Remaining = gc.ledger.Len()
	stats.Duration = time.Since(start)

	gc.collections++
	gc.lastStats = stats
	gcLog.Debugf("collection %d: roots=%d reachable=%d swept=%d remaining=%d in %s",
		gc.collections, stats.Roots, stats.Reachable, stats.Swept, stats.Remaining, stats.Duration)
	return stats
}

// mark extends the working set breadth-first. The tail is re-read on every
// step so vectors discovered along the way are visited too; Record ignores
// vectors already present, which bounds the walk on cycles.
func (gc *Collector) mark() {
	vm := gc.vm
	w := gc.working
	for head := 0; head <= w.Len()-1; head++ {
		v := w.entries[head]
		if v.attrs != nil {
			w.Record(v.attrs)
		}
		if v.kind != Reference {
			continue
		}
		if v.data == nil {
			vm.Raise(NullReference, "reachable vector #%d has no data (freed)", v.id)
		}
		v.data.forEachRef(v.length, func(r *Vector) {
			if r != nil {
				w.Record(r)
			}
		})
	}
}

// sweep frees every ledger entry missing from the working set. Removal
// shifts the next entry into the current slot, so the cursor only advances
// past survivors.
func (gc *Collector) sweep() int {
	swept := 0
	l := gc.ledger
	for i := 0; i < l.Len(); {
		v := l.entries[i]
		if gc.working.Contains(v) {
			i++
			continue
		}
		if fn := v.finalizer; fn != nil {
			v.finalizer = nil
			fn(v)
		}
		// A finalizer may have shifted the ledger; locate v again.
		if l.entries[i] != v {
			if i = l.Find(v); i < 0 {
				i = 0
				continue
			}
		}
		l.UntrackIndex(i, true)
		swept++
	}
	return swept
}

// forget removes v from the roots and frees it through the ledger.
func (gc *Collector) forget(v *Vector) {
	gc.requireInit()
	gc.roots.Untrack(v, false)
	if !gc.ledger.Untrack(v, true) {
		gc.vm.Raise(InconsistentCollectorState, "managed vector #%d is not in the ledger", v.id)
	}
}

// Kill frees every tracked vector, releases the tables and returns the
// collector to its uninitialized state.
func (gc *Collector) Kill() {
	vm := gc.vm
	defer vm.leave(vm.enter())
	if gc.collecting {
		vm.Raise(InconsistentCollectorState, "cannot kill collector during collection")
	}
	if !gc.Initialized() {
		return
	}
	freed := gc.ledger.Len()
	gc.ledger.Delete(true)
	gc.roots.Delete(false)
	gc.working.Delete(false)
	gc.ledger, gc.roots, gc.working = nil, nil, nil
	gcLog.Debugf("collector killed, %d vectors freed", freed)
}
