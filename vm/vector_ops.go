package vm

// ---------------------------------------------------------------------------
// Vector mutation: everything is expressed via Reserve plus bulk copies
// ---------------------------------------------------------------------------

// Reserve ensures v can hold capacity elements. Growth follows
// GrowCapacity. Reserving a Transient vector always raises.
func (vm *VM) Reserve(v *Vector, capacity int) {
	defer vm.leave(vm.enter())
	vm.checkLive(v)
	if v.storage == Transient {
		vm.Raise(InvalidCapacityRequest, "transient vector #%d cannot be reserved", v.id)
	}
	if v.Cap() >= capacity {
		return
	}
	newCap, ok := GrowCapacity(v.Cap(), capacity, v.kind.Size())
	if !ok {
		vm.Raise(InvalidCapacityRequest, "capacity %d exceeds maximum %d", capacity, MaxCapacity)
	}

	kind := v.kind
	grown := vm.allocBuffer(kind, newCap)
	vm.guard(grown, func() { vm.freeBuffer(kind, grown) })
	grown.copyFrom(0, v.data, 0, v.data.capacity())
	vm.release(grown)

	vm.freeBuffer(kind, v.data)
	v.data = grown
}

// ensureRoom makes space for extra more elements, raising for Transient
// vectors that would have to grow.
func (vm *VM) ensureRoom(v *Vector, extra int) {
	need := v.length + extra
	if need > MaxCapacity || need < v.length {
		vm.Raise(InvalidCapacityRequest, "length %d exceeds maximum %d", need, MaxCapacity)
	}
	if need > v.Cap() {
		vm.Reserve(v, need)
	}
}

// Append adds val to the end of v.
func (vm *VM) Append(v *Vector, val Value) {
	defer vm.leave(vm.enter())
	vm.checkLive(v)
	vm.checkValue(v, val)
	vm.ensureRoom(v, 1)
	v.data.set(v.length, val)
	v.length++
}

// Insert places val at index, shifting later elements up. index may equal
// the length, which appends.
func (vm *VM) Insert(v *Vector, index int, val Value) {
	defer vm.leave(vm.enter())
	vm.checkLive(v)
	if index < 0 || index > v.length {
		vm.Raise(IndexOutOfRange, "insert index %d outside [0,%d] of vector #%d", index, v.length, v.id)
	}
	vm.checkValue(v, val)
	vm.ensureRoom(v, 1)
	v.data.move(index+1, index, v.length-index)
	v.data.set(index, val)
	v.length++
}

// Remove deletes the element at index, shifting later elements down, and
// returns it.
func (vm *VM) Remove(v *Vector, index int) Value {
	defer vm.leave(vm.enter())
	vm.checkLive(v)
	vm.checkIndex(v, index)
	removed := v.data.get(index)
	v.data.move(index, index+1, v.length-index-1)
	v.length--
	v.data.zero(v.length)
	return removed
}

// Extend appends every element of src to dst. src may be dst.
func (vm *VM) Extend(dst, src *Vector) {
	defer vm.leave(vm.enter())
	vm.checkLive(dst)
	vm.checkLive(src)
	vm.checkKind(dst, src.kind)
	n := src.length
	vm.ensureRoom(dst, n)
	dst.data.copyFrom(dst.length, src.data, 0, n)
	dst.length += n
}

// Concatenate returns a new Managed vector holding a followed by b.
func (vm *VM) Concatenate(a, b *Vector) *Vector {
	defer vm.leave(vm.enter())
	vm.checkLive(a)
	vm.checkLive(b)
	vm.checkKind(b, a.kind)
	n := a.length + b.length
	if n > MaxCapacity || n < a.length {
		vm.Raise(InvalidCapacityRequest, "concatenated length %d exceeds maximum %d", n, MaxCapacity)
	}
	out := vm.NewVector(a.kind, max(n, 1))
	out.data.copyFrom(0, a.data, 0, a.length)
	out.data.copyFrom(a.length, b.data, 0, b.length)
	out.length = n
	return out
}

// Copy returns a new Managed vector with the same elements as v. The copy
// is shallow for Reference vectors and carries no attributes.
func (vm *VM) Copy(v *Vector) *Vector {
	defer vm.leave(vm.enter())
	vm.checkLive(v)
	out := vm.NewVector(v.kind, max(v.length, 1))
	out.data.copyFrom(0, v.data, 0, v.length)
	out.length = v.length
	return out
}

// indexList validates an Integer vector of positions into v and returns
// them. No element of v is touched.
func (vm *VM) indexList(v, indices *Vector) []int {
	vm.checkLive(indices)
	if indices.kind != Integer {
		vm.Raise(TypeMismatch, "index vector #%d holds %s, not %s", indices.id, indices.kind, Integer)
	}
	items := indices.data.(*slab[int64]).items[:indices.length]
	out := make([]int, len(items))
	for k, i := range items {
		if i < 0 || i >= int64(v.length) {
			vm.Raise(IndexOutOfRange, "subset index %d (position %d) outside [0,%d) of vector #%d", i, k, v.length, v.id)
		}
		out[k] = int(i)
	}
	return out
}

// Subset returns a new Managed vector with the elements of v at the
// positions listed in the Integer vector indices. Every index is validated
// before anything is allocated.
func (vm *VM) Subset(v, indices *Vector) *Vector {
	defer vm.leave(vm.enter())
	vm.checkLive(v)
	positions := vm.indexList(v, indices)
	out := vm.NewVector(v.kind, max(len(positions), 1))
	for k, i := range positions {
		out.data.copyFrom(k, v.data, i, 1)
	}
	out.length = len(positions)
	return out
}

// Assign stores values[k] at dst[indices[k]] for every k. The two index and
// value vectors must have the same length and every index must be valid
// before dst is modified.
func (vm *VM) Assign(dst, indices, values *Vector) {
	defer vm.leave(vm.enter())
	vm.checkLive(dst)
	vm.checkLive(values)
	vm.checkKind(values, dst.kind)
	positions := vm.indexList(dst, indices)
	if len(positions) != values.length {
		vm.Raise(IncompatibleLength, "%d indices but %d values", len(positions), values.length)
	}
	for k, i := range positions {
		dst.data.copyFrom(i, values.data, k, 1)
	}
}

// Truncate shortens v to n elements, clearing the dropped slots.
func (vm *VM) Truncate(v *Vector, n int) {
	defer vm.leave(vm.enter())
	vm.checkLive(v)
	if n < 0 || n > v.length {
		vm.Raise(IndexOutOfRange, "truncate length %d outside [0,%d] of vector #%d", n, v.length, v.id)
	}
	for i := n; i < v.length; i++ {
		v.data.zero(i)
	}
	v.length = n
}
