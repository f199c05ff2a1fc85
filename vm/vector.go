package vm

// ---------------------------------------------------------------------------
// Vector: the tagged, growable container
// ---------------------------------------------------------------------------

// Vector holds Length elements of a single ElementKind in a buffer of
// Capacity elements. Managed vectors are owned by the collector; Transient
// vectors live only as long as the WithTransient call that created them.
type Vector struct {
	id        uint64
	kind      ElementKind
	storage   StorageClass
	length    int
	attrs     *Vector
	data      buffer
	freed     bool
	finalizer func(*Vector)
}

// ID returns the vector's serial number within its VM.
func (v *Vector) ID() uint64 { return v.id }

// Kind returns the element kind.
func (v *Vector) Kind() ElementKind { return v.kind }

// Storage returns the storage class.
func (v *Vector) Storage() StorageClass { return v.storage }

// Len returns the number of elements in use.
func (v *Vector) Len() int { return v.length }

// Cap returns the number of elements the buffer can hold.
func (v *Vector) Cap() int {
	if v.data == nil {
		return 0
	}
	return v.data.capacity()
}

// Freed reports whether the vector's storage has been released.
func (v *Vector) Freed() bool { return v.freed }

// Attributes returns the attribute table, or nil if none was created.
func (v *Vector) Attributes() *Vector { return v.attrs }

func (v *Vector) dataBytes() int64 {
	return int64(v.Cap()) * int64(v.kind.Size())
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

func (vm *VM) checkLive(v *Vector) {
	if v == nil {
		vm.Raise(NullReference, "nil vector")
	}
	if v.freed || v.data == nil {
		vm.Raise(NullReference, "vector #%d has no data (freed)", v.id)
	}
}

func (vm *VM) checkIndex(v *Vector, i int) {
	if i < 0 || i >= v.length {
		vm.Raise(IndexOutOfRange, "index %d outside [0,%d) of vector #%d", i, v.length, v.id)
	}
}

func (vm *VM) checkKind(v *Vector, kind ElementKind) {
	if v.kind != kind {
		vm.Raise(TypeMismatch, "vector #%d holds %s, not %s", v.id, v.kind, kind)
	}
}

func (vm *VM) checkValue(v *Vector, val Value) {
	vm.checkKind(v, val.kind)
	if val.kind == Reference && val.ref != nil && val.ref.freed {
		vm.Raise(NullReference, "reference to freed vector #%d", val.ref.id)
	}
}

func (vm *VM) checkCapacity(capacity int) {
	if capacity <= 0 || capacity > MaxCapacity {
		vm.Raise(InvalidCapacityRequest, "capacity %d outside (0,%d]", capacity, MaxCapacity)
	}
}

func (vm *VM) checkElementKind(kind ElementKind) {
	if !kind.Valid() {
		vm.Raise(TypeMismatch, "unknown element kind %d", int(kind))
	}
}

// ---------------------------------------------------------------------------
// Allocation
// ---------------------------------------------------------------------------

// allocBuffer accounts for and creates a data buffer of n elements.
func (vm *VM) allocBuffer(kind ElementKind, n int) buffer {
	vm.alloc(int64(n) * int64(kind.Size()))
	return newBuffer(kind, n)
}

func (vm *VM) freeBuffer(kind ElementKind, b buffer) {
	vm.heap.free(int64(b.capacity()) * int64(kind.Size()))
}

// NewVector creates an empty Managed vector and records it in the ledger.
func (vm *VM) NewVector(kind ElementKind, capacity int) *Vector {
	defer vm.leave(vm.enter())
	vm.checkElementKind(kind)
	vm.checkCapacity(capacity)

	vm.alloc(vectorHeaderSize)
	vm.nextID++
	v := &Vector{id: vm.nextID, kind: kind, storage: Managed}
	vm.guard(v, func() {
		v.freed = true
		vm.heap.free(vectorHeaderSize)
	})

	data := vm.allocBuffer(kind, capacity)
	vm.guard(data, func() {
		v.data = nil
		vm.freeBuffer(kind, data)
	})
	v.data = data

	vm.gc.Record(v)

	vm.release(data)
	vm.release(v)
	return v
}

// NewVectorFromValues creates a Managed vector holding values. Every value
// is checked against kind before anything is allocated.
func (vm *VM) NewVectorFromValues(kind ElementKind, values ...Value) *Vector {
	defer vm.leave(vm.enter())
	vm.checkElementKind(kind)
	for i, val := range values {
		if val.kind != kind {
			vm.Raise(TypeMismatch, "value %d is %s, want %s", i, val.kind, kind)
		}
		if val.kind == Reference && val.ref != nil && val.ref.freed {
			vm.Raise(NullReference, "value %d references freed vector #%d", i, val.ref.id)
		}
	}
	v := vm.NewVector(kind, max(len(values), 1))
	for i, val := range values {
		v.data.set(i, val)
	}
	v.length = len(values)
	return v
}

// NewIntVector creates an Integer vector.
func (vm *VM) NewIntVector(xs ...int64) *Vector {
	values := make([]Value, len(xs))
	for i, x := range xs {
		values[i] = IntValue(x)
	}
	return vm.NewVectorFromValues(Integer, values...)
}

// NewDoubleVector creates a Double vector.
func (vm *VM) NewDoubleVector(xs ...float64) *Vector {
	values := make([]Value, len(xs))
	for i, x := range xs {
		values[i] = DoubleValue(x)
	}
	return vm.NewVectorFromValues(Double, values...)
}

// NewByteVector creates a Byte vector holding a copy of b.
func (vm *VM) NewByteVector(b []byte) *Vector {
	values := make([]Value, len(b))
	for i, x := range b {
		values[i] = ByteValue(x)
	}
	return vm.NewVectorFromValues(Byte, values...)
}

// NewString creates a Byte vector holding the bytes of s.
func (vm *VM) NewString(s string) *Vector {
	return vm.NewByteVector([]byte(s))
}

// NewRefVector creates a Reference vector; nil entries are null references.
func (vm *VM) NewRefVector(refs ...*Vector) *Vector {
	values := make([]Value, len(refs))
	for i, r := range refs {
		values[i] = RefValue(r)
	}
	return vm.NewVectorFromValues(Reference, values...)
}

// WithTransient runs fn with a scope-bound vector. The vector is not
// accounted on the heap, cannot grow, is invisible to the collector, and is
// poisoned when fn returns or raises.
func (vm *VM) WithTransient(kind ElementKind, capacity int, fn func(v *Vector)) {
	defer vm.leave(vm.enter())
	vm.checkElementKind(kind)
	vm.checkCapacity(capacity)
	vm.nextID++
	v := &Vector{id: vm.nextID, kind: kind, storage: Transient, data: newBuffer(kind, capacity)}
	defer func() {
		v.data = nil
		v.length = 0
		v.freed = true
	}()
	fn(v)
}

// freeVector releases the data buffer and header of a Managed vector.
func (vm *VM) freeVector(v *Vector) {
	if v == nil || v.freed {
		return
	}
	if v.data != nil {
		vm.freeBuffer(v.kind, v.data)
		v.data = nil
	}
	vm.heap.free(vectorHeaderSize)
	v.length = 0
	v.attrs = nil
	v.finalizer = nil
	v.freed = true
}

// Delete frees a Managed vector immediately, removing it from the ledger
// and the root set. References to it elsewhere become dangling.
func (vm *VM) Delete(v *Vector) {
	defer vm.leave(vm.enter())
	vm.checkLive(v)
	if v.storage != Managed {
		vm.Raise(TypeMismatch, "vector #%d is %s and cannot be deleted", v.id, v.storage)
	}
	vm.gc.forget(v)
}

// SetFinalizer registers fn to run when the collector sweeps v. A nil fn
// removes the finalizer.
func (vm *VM) SetFinalizer(v *Vector, fn func(*Vector)) {
	defer vm.leave(vm.enter())
	vm.checkLive(v)
	if v.storage != Managed {
		vm.Raise(TypeMismatch, "vector #%d is %s; only managed vectors are finalized", v.id, v.storage)
	}
	v.finalizer = fn
}

// ---------------------------------------------------------------------------
// Access
// ---------------------------------------------------------------------------

// Length returns the number of elements in v.
func (vm *VM) Length(v *Vector) int {
	if v == nil {
		vm.Raise(NullReference, "nil vector")
	}
	return v.length
}

// TypeOf returns the element kind of v.
func (vm *VM) TypeOf(v *Vector) ElementKind {
	if v == nil {
		vm.Raise(NullReference, "nil vector")
	}
	return v.kind
}

// Get returns element i of v.
func (vm *VM) Get(v *Vector, i int) Value {
	defer vm.leave(vm.enter())
	vm.checkLive(v)
	vm.checkIndex(v, i)
	return v.data.get(i)
}

// Set stores val at index i. The value's kind must match the vector's.
func (vm *VM) Set(v *Vector, i int, val Value) {
	defer vm.leave(vm.enter())
	vm.checkLive(v)
	vm.checkIndex(v, i)
	vm.checkValue(v, val)
	v.data.set(i, val)
}

func (vm *VM) getKind(v *Vector, i int, kind ElementKind) Value {
	vm.checkLive(v)
	vm.checkIndex(v, i)
	vm.checkKind(v, kind)
	return v.data.get(i)
}

// GetByte returns element i of a Byte vector.
func (vm *VM) GetByte(v *Vector, i int) byte {
	defer vm.leave(vm.enter())
	return vm.getKind(v, i, Byte).Byte()
}

// GetInt returns element i of an Integer vector.
func (vm *VM) GetInt(v *Vector, i int) int64 {
	defer vm.leave(vm.enter())
	return vm.getKind(v, i, Integer).Int()
}

// GetDouble returns element i of a Double vector.
func (vm *VM) GetDouble(v *Vector, i int) float64 {
	defer vm.leave(vm.enter())
	return vm.getKind(v, i, Double).Double()
}

// GetRef returns element i of a Reference vector; it may be nil.
func (vm *VM) GetRef(v *Vector, i int) *Vector {
	defer vm.leave(vm.enter())
	return vm.getKind(v, i, Reference).Ref()
}

// SetByte stores b at index i of a Byte vector.
func (vm *VM) SetByte(v *Vector, i int, b byte) {
	defer vm.leave(vm.enter())
	vm.Set(v, i, ByteValue(b))
}

// SetInt stores x at index i of an Integer vector.
func (vm *VM) SetInt(v *Vector, i int, x int64) {
	defer vm.leave(vm.enter())
	vm.Set(v, i, IntValue(x))
}

// SetDouble stores d at index i of a Double vector.
func (vm *VM) SetDouble(v *Vector, i int, d float64) {
	defer vm.leave(vm.enter())
	vm.Set(v, i, DoubleValue(d))
}

// SetRef stores ref at index i of a Reference vector; ref may be nil.
func (vm *VM) SetRef(v *Vector, i int, ref *Vector) {
	defer vm.leave(vm.enter())
	vm.Set(v, i, RefValue(ref))
}

// Values returns a copy of the elements of v.
func (vm *VM) Values(v *Vector) []Value {
	defer vm.leave(vm.enter())
	vm.checkLive(v)
	out := make([]Value, v.length)
	for i := range out {
		out[i] = v.data.get(i)
	}
	return out
}

// Ints returns a copy of the elements of an Integer vector.
func (vm *VM) Ints(v *Vector) []int64 {
	defer vm.leave(vm.enter())
	vm.checkLive(v)
	vm.checkKind(v, Integer)
	return append([]int64(nil), v.data.(*slab[int64]).items[:v.length]...)
}

// Doubles returns a copy of the elements of a Double vector.
func (vm *VM) Doubles(v *Vector) []float64 {
	defer vm.leave(vm.enter())
	vm.checkLive(v)
	vm.checkKind(v, Double)
	return append([]float64(nil), v.data.(*slab[float64]).items[:v.length]...)
}

// Bytes returns a copy of the elements of a Byte vector.
func (vm *VM) Bytes(v *Vector) []byte {
	defer vm.leave(vm.enter())
	vm.checkLive(v)
	vm.checkKind(v, Byte)
	return append([]byte(nil), v.data.(*slab[byte]).items[:v.length]...)
}

// StringOf returns the contents of a Byte vector as a string.
func (vm *VM) StringOf(v *Vector) string {
	defer vm.leave(vm.enter())
	return string(vm.Bytes(v))
}
