package vm

// ---------------------------------------------------------------------------
// CleanupStack: finalizers for half-built objects
// ---------------------------------------------------------------------------

// cleanupEntry pairs a resource with the function that releases it.
type cleanupEntry struct {
	handle   any
	finalize func()
}

// cleanupStack is a LIFO ledger of pending finalizers. Allocations register
// here while their owner is under construction and deregister once the owner
// is complete; Raise unwinds whatever is still registered.
type cleanupStack struct {
	entries []cleanupEntry
}

func (c *cleanupStack) depth() int {
	return len(c.entries)
}

func (c *cleanupStack) push(handle any, finalize func()) {
	c.entries = append(c.entries, cleanupEntry{handle: handle, finalize: finalize})
}

// pop deregisters the most recent entry without running it. It reports
// false if the top entry does not belong to handle.
func (c *cleanupStack) pop(handle any) bool {
	n := len(c.entries)
	if n == 0 || c.entries[n-1].handle != handle {
		return false
	}
	c.entries[n-1] = cleanupEntry{}
	c.entries = c.entries[:n-1]
	return true
}

// unwind runs and removes every entry above mark, most recent first. Each
// entry is removed before its finalizer runs so a finalizer never runs twice.
func (c *cleanupStack) unwind(mark int) int {
	ran := 0
	for len(c.entries) > mark {
		n := len(c.entries) - 1
		e := c.entries[n]
		c.entries[n] = cleanupEntry{}
		c.entries = c.entries[:n]
		if e.finalize != nil {
			e.finalize()
		}
		ran++
	}
	return ran
}

// guard registers finalize for handle on the VM's cleanup stack.
func (vm *VM) guard(handle any, finalize func()) {
	vm.cleanup.push(handle, finalize)
}

// release deregisters handle, which must be the most recent guard. A
// mismatch is reported as InconsistentCollectorState: the guarded objects
// are headed for the ledger, and the kind taxonomy has no separate entry
// for runtime bookkeeping faults.
func (vm *VM) release(handle any) {
	if !vm.cleanup.pop(handle) {
		vm.Raise(InconsistentCollectorState, "cleanup stack out of order: %T released but is not the most recent guard", handle)
	}
}

// Cleanup registers a caller-supplied finalizer. The returned function
// deregisters it without running it; if an error is raised first, the
// finalizer runs during unwinding instead.
func (vm *VM) Cleanup(finalize func()) (dismiss func()) {
	token := new(byte)
	vm.guard(token, finalize)
	return func() { vm.release(token) }
}

// PendingCleanups returns the number of registered finalizers.
func (vm *VM) PendingCleanups() int {
	return vm.cleanup.depth()
}
