package vm

// ---------------------------------------------------------------------------
// Attributes: named side values hung off a vector
// ---------------------------------------------------------------------------
//
// The attribute table is a Managed Reference vector of alternating
// name/value entries. Names are Byte vectors. The collector traces the
// table from its owner, so attributes live exactly as long as the owner.

func (vm *VM) findAttribute(v *Vector, name string) int {
	if v.attrs == nil {
		return -1
	}
	refs := v.attrs.data.(*slab[*Vector]).items
	for i := 0; i+1 < v.attrs.length; i += 2 {
		n := refs[i]
		if n != nil && !n.freed && string(n.data.(*slab[byte]).items[:n.length]) == name {
			return i
		}
	}
	return -1
}

func (vm *VM) checkAttributable(v *Vector) {
	vm.checkLive(v)
	if v.storage != Managed {
		vm.Raise(TypeMismatch, "vector #%d is %s and cannot carry attributes", v.id, v.storage)
	}
}

// SetAttribute binds name to value on v, replacing an existing binding.
func (vm *VM) SetAttribute(v *Vector, name string, value *Vector) {
	defer vm.leave(vm.enter())
	vm.checkAttributable(v)
	vm.checkLive(value)

	if i := vm.findAttribute(v, name); i >= 0 {
		v.attrs.data.set(i+1, RefValue(value))
		return
	}
	key := vm.NewString(name)
	if v.attrs == nil {
		v.attrs = vm.NewVector(Reference, 2)
	}
	vm.Append(v.attrs, RefValue(key))
	vm.Append(v.attrs, RefValue(value))
}

// Attribute returns the value bound to name on v, raising
// AttributeNotFound if there is none.
func (vm *VM) Attribute(v *Vector, name string) *Vector {
	defer vm.leave(vm.enter())
	vm.checkLive(v)
	i := vm.findAttribute(v, name)
	if i < 0 {
		vm.Raise(AttributeNotFound, "vector #%d has no attribute %q", v.id, name)
	}
	return v.attrs.data.get(i + 1).Ref()
}

// HasAttribute reports whether name is bound on v.
func (vm *VM) HasAttribute(v *Vector, name string) bool {
	defer vm.leave(vm.enter())
	vm.checkLive(v)
	return vm.findAttribute(v, name) >= 0
}

// RemoveAttribute unbinds name from v, raising AttributeNotFound if it was
// not bound.
func (vm *VM) RemoveAttribute(v *Vector, name string) {
	defer vm.leave(vm.enter())
	vm.checkLive(v)
	i := vm.findAttribute(v, name)
	if i < 0 {
		vm.Raise(AttributeNotFound, "vector #%d has no attribute %q", v.id, name)
	}
	vm.Remove(v.attrs, i+1)
	vm.Remove(v.attrs, i)
}

// AttributeNames returns the bound names of v in binding order.
func (vm *VM) AttributeNames(v *Vector) []string {
	defer vm.leave(vm.enter())
	vm.checkLive(v)
	if v.attrs == nil {
		return nil
	}
	var names []string
	refs := v.attrs.data.(*slab[*Vector]).items
	for i := 0; i+1 < v.attrs.length; i += 2 {
		if n := refs[i]; n != nil && !n.freed {
			names = append(names, string(n.data.(*slab[byte]).items[:n.length]))
		}
	}
	return names
}
