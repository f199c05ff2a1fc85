package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
)

// ---------------------------------------------------------------------------
// Protected scopes, raising and the terminal handler
// ---------------------------------------------------------------------------

func TestTrySuccess(t *testing.T) {
	vm := NewVM()
	defer vm.Shutdown()

	ran := false
	if err := vm.Try(func() { ran = true }); err != nil {
		t.Fatalf("Try returned %v", err)
	}
	if !ran {
		t.Error("protected function did not run")
	}
	if vm.CurrentError() != None {
		t.Errorf("CurrentError = %v, want none", vm.CurrentError())
	}
	if vm.InScope() {
		t.Error("scope still active after Try")
	}
}

func TestTryRecoversRaisedError(t *testing.T) {
	vm := NewVM()
	defer vm.Shutdown()

	v := vm.NewIntVector(1, 2, 3)
	reached := false
	err := vm.Try(func() {
		vm.GetInt(v, 3)
		reached = true
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if reached {
		t.Error("execution continued past Raise")
	}
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("errors.Is(%v, ErrIndexOutOfRange) = false", err)
	}
	if KindOf(err) != IndexOutOfRange {
		t.Errorf("KindOf = %v, want %v", KindOf(err), IndexOutOfRange)
	}
	if vm.CurrentError() != IndexOutOfRange {
		t.Errorf("CurrentError = %v, want %v", vm.CurrentError(), IndexOutOfRange)
	}
	if vm.LastError() != err {
		t.Error("LastError should be the returned error")
	}

	// A successful scope drops errors raised inside it and restores the
	// error state it was entered with.
	if err := vm.Try(func() {
		vm.Try(func() { vm.Raise(TypeMismatch, "inner") })
		if vm.CurrentError() != TypeMismatch {
			t.Errorf("CurrentError inside = %v, want %v", vm.CurrentError(), TypeMismatch)
		}
	}); err != nil {
		t.Fatal(err)
	}
	if vm.CurrentError() != IndexOutOfRange || vm.LastError() != err {
		t.Errorf("CurrentError after success = %v, want %v", vm.CurrentError(), IndexOutOfRange)
	}
}

func TestSuccessfulScopeRestoresEntryError(t *testing.T) {
	vm := NewVM()
	defer vm.Shutdown()

	err := vm.Try(func() {
		if inner := vm.Try(func() { vm.Raise(AttributeNotFound, "x") }); inner == nil {
			t.Error("expected inner error")
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if vm.CurrentError() != None || vm.LastError() != nil {
		t.Errorf("CurrentError = %v, want none", vm.CurrentError())
	}
}

func TestRaisedErrorCarriesFrozenBacktrace(t *testing.T) {
	vm := NewVM()
	defer vm.Shutdown()

	v := vm.NewIntVector(1)
	depth := vm.BacktraceDepth()
	err := vm.Try(func() {
		vm.GetInt(v, 5)
	})
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if len(e.Backtrace) == 0 {
		t.Fatal("backtrace snapshot is empty")
	}
	if top := e.Backtrace.Top(); !strings.Contains(top.Function, "GetInt") {
		t.Errorf("top frame = %v, want GetInt", top)
	}
	if top := e.Backtrace.Top(); top.Line == 0 || top.File == "" {
		t.Errorf("top frame missing location: %+v", top)
	}
	if got := vm.BacktraceDepth(); got != depth {
		t.Errorf("live backtrace depth = %d after failed call, want %d", got, depth)
	}
}

func TestNestedScopes(t *testing.T) {
	vm := NewVM()
	defer vm.Shutdown()

	var inner error
	outer := vm.Try(func() {
		vm.PushFrame("outer.go", 1, "outer")
		inner = vm.Try(func() {
			vm.PushFrame("inner.go", 2, "inner")
			vm.PushFrame("inner.go", 3, "deeper")
			vm.Raise(TypeMismatch, "inner failure")
		})
		if got := vm.BacktraceDepth(); got != 1 {
			t.Errorf("depth after inner failure = %d, want 1", got)
		}
		vm.PopFrame()
	})
	if outer != nil {
		t.Fatalf("outer scope failed: %v", outer)
	}
	if KindOf(inner) != TypeMismatch {
		t.Errorf("inner error kind = %v, want %v", KindOf(inner), TypeMismatch)
	}
	if got := len(inner.(*Error).Backtrace); got != 3 {
		t.Errorf("inner snapshot has %d frames, want 3", got)
	}
	if vm.BacktraceDepth() != 0 {
		t.Errorf("depth after both scopes = %d, want 0", vm.BacktraceDepth())
	}
}

func TestRaisePropagatesToOuterScope(t *testing.T) {
	vm := NewVM()
	defer vm.Shutdown()

	innerReturned := false
	err := vm.Try(func() {
		func() {
			vm.Raise(AttributeNotFound, "deep")
		}()
		innerReturned = true
	})
	if KindOf(err) != AttributeNotFound {
		t.Errorf("kind = %v, want %v", KindOf(err), AttributeNotFound)
	}
	if innerReturned {
		t.Error("control returned to the raising frame")
	}
}

func TestRecoveryDepthLimit(t *testing.T) {
	vm := NewVMWithOptions(Options{MaxRecoveryDepth: 3})
	defer vm.Shutdown()

	var third error
	err := vm.Try(func() {
		vm.Try(func() {
			third = vm.Try(func() {
				vm.Try(func() {
					t.Error("fourth scope should not run")
				})
			})
		})
	})
	if err != nil {
		t.Fatalf("outer scope failed: %v", err)
	}
	if KindOf(third) != StackLimitExceeded {
		t.Errorf("third scope error = %v, want %v", third, StackLimitExceeded)
	}
}

func TestForeignPanicPassesThrough(t *testing.T) {
	vm := NewVM()
	defer vm.Shutdown()

	finalized := false
	defer func() {
		r := recover()
		if r != "boom" {
			t.Errorf("recovered %v, want boom", r)
		}
		if vm.InScope() {
			t.Error("scope still active after foreign panic")
		}
		if vm.BacktraceDepth() != 0 {
			t.Errorf("backtrace depth = %d, want 0", vm.BacktraceDepth())
		}
		if vm.PendingCleanups() != 0 {
			t.Errorf("%d cleanups pending after foreign panic", vm.PendingCleanups())
		}
		if !finalized {
			t.Error("cleanup registered in the scope did not run")
		}
	}()
	vm.Try(func() {
		vm.PushFrame("x.go", 1, "x")
		vm.Cleanup(func() { finalized = true })
		panic("boom")
	})
}

func TestForeignPanicKeepsOuterCleanups(t *testing.T) {
	vm := NewVM()
	defer vm.Shutdown()

	err := vm.Try(func() {
		outerRan := false
		dismiss := vm.Cleanup(func() { outerRan = true })
		func() {
			defer func() { recover() }()
			vm.Try(func() {
				vm.Cleanup(func() {})
				panic("boom")
			})
		}()
		if vm.PendingCleanups() != 1 || outerRan {
			t.Errorf("pending = %d, outer ran = %v", vm.PendingCleanups(), outerRan)
		}
		dismiss()
	})
	if err != nil {
		t.Fatalf("outer scope failed: %v", err)
	}
}

func TestErrorsFromAnotherVMAreNotRecovered(t *testing.T) {
	a := NewVM()
	b := NewVM()
	defer a.Shutdown()
	defer b.Shutdown()

	b.SetTerminalHandler(func(*Error) {})
	defer func() {
		r := recover()
		e, ok := r.(*Error)
		if !ok || e.Kind != NullReference {
			t.Errorf("recovered %v, want b's null reference", r)
		}
	}()
	a.Try(func() {
		b.Get(nil, 0)
	})
	t.Error("unreachable")
}

func TestTerminalHandler(t *testing.T) {
	vm := NewVM()
	defer vm.Shutdown()

	var got *Error
	vm.SetTerminalHandler(func(e *Error) { got = e })

	func() {
		defer func() {
			if r := recover(); r != got {
				t.Errorf("panic value %v, want the handled error", r)
			}
		}()
		vm.Raise(IncompatibleLength, "%d vs %d", 2, 3)
	}()

	if got == nil {
		t.Fatal("terminal handler not invoked")
	}
	if got.Kind != IncompatibleLength || got.Message != "2 vs 3" {
		t.Errorf("handled %v", got)
	}
}

func TestReportError(t *testing.T) {
	var buf bytes.Buffer
	ReportError(&buf, &Error{
		Kind:    IndexOutOfRange,
		Message: "index 3 outside [0,3)",
		Backtrace: Backtrace{
			{File: "main.go", Line: 10, Function: "main.main"},
			{File: "vector.go", Line: 20, Function: "vm.(*VM).GetInt"},
		},
	})
	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[1], "GetInt") || !strings.Contains(lines[2], "main.main") {
		t.Errorf("frames not most recent first:\n%s", out)
	}
	if lines[3] != "error: index out of range: index 3 outside [0,3)" {
		t.Errorf("diagnostic line = %q", lines[3])
	}
}

func TestKindString(t *testing.T) {
	if StackLimitExceeded.String() != "stack limit exceeded" {
		t.Errorf("String = %q", StackLimitExceeded.String())
	}
	if Kind(99).String() != "kind(99)" {
		t.Errorf("String = %q", Kind(99).String())
	}
	if KindOf(errors.New("plain")) != None {
		t.Error("plain errors have no kind")
	}
}

// ---------------------------------------------------------------------------
// Cleanup stack
// ---------------------------------------------------------------------------

func TestCleanupUnwindsLIFO(t *testing.T) {
	vm := NewVM()
	defer vm.Shutdown()

	var order []int
	err := vm.Try(func() {
		for i := 1; i <= 3; i++ {
			vm.Cleanup(func() { order = append(order, i) })
		}
		vm.Raise(AllocationFailure, "simulated")
	})
	if KindOf(err) != AllocationFailure {
		t.Fatalf("err = %v", err)
	}
	if len(order) != 3 || order[0] != 3 || order[1] != 2 || order[2] != 1 {
		t.Errorf("finalizer order = %v, want [3 2 1]", order)
	}
	if vm.PendingCleanups() != 0 {
		t.Errorf("%d cleanups still pending", vm.PendingCleanups())
	}
}

func TestCleanupDismissed(t *testing.T) {
	vm := NewVM()
	defer vm.Shutdown()

	ran := false
	err := vm.Try(func() {
		dismiss := vm.Cleanup(func() { ran = true })
		dismiss()
		vm.Raise(TypeMismatch, "after dismissal")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if ran {
		t.Error("dismissed finalizer ran")
	}
}

func TestCleanupOutsideScopeSurvivesInnerRaise(t *testing.T) {
	vm := NewVM()
	defer vm.Shutdown()

	outerRan := false
	err := vm.Try(func() {
		dismiss := vm.Cleanup(func() { outerRan = true })
		inner := vm.Try(func() {
			vm.Raise(NullReference, "inner")
		})
		if inner == nil {
			t.Error("inner scope should fail")
		}
		if outerRan {
			t.Error("outer finalizer ran on inner raise")
		}
		dismiss()
	})
	if err != nil {
		t.Fatal(err)
	}
	if outerRan {
		t.Error("outer finalizer ran after dismissal")
	}
}

func TestCleanupReleaseOutOfOrder(t *testing.T) {
	vm := NewVM()
	defer vm.Shutdown()

	err := vm.Try(func() {
		first := vm.Cleanup(func() {})
		vm.Cleanup(func() {})
		first()
	})
	if KindOf(err) != InconsistentCollectorState {
		t.Errorf("err = %v, want %v", err, InconsistentCollectorState)
	}
	if err == nil || !strings.Contains(err.Error(), "cleanup stack out of order") {
		t.Errorf("message does not name the cleanup stack: %v", err)
	}
}
