package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// ---------------------------------------------------------------------------
// Error kinds
// ---------------------------------------------------------------------------

// Kind classifies a raised error.
type Kind int

const (
	None Kind = iota
	NullReference
	IndexOutOfRange
	TypeMismatch
	InvalidCapacityRequest
	AllocationFailure
	StackLimitExceeded
	InconsistentCollectorState
	IncompatibleLength
	AttributeNotFound
)

var kindNames = [...]string{
	None:                       "none",
	NullReference:              "null reference",
	IndexOutOfRange:            "index out of range",
	TypeMismatch:               "type mismatch",
	InvalidCapacityRequest:     "invalid capacity request",
	AllocationFailure:          "allocation failure",
	StackLimitExceeded:         "stack limit exceeded",
	InconsistentCollectorState: "inconsistent collector state",
	IncompatibleLength:         "incompatible length",
	AttributeNotFound:          "attribute not found",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Sentinels for errors.Is matching against a raised *Error.
var (
	ErrNullReference              = errors.New(NullReference.String())
	ErrIndexOutOfRange            = errors.New(IndexOutOfRange.String())
	ErrTypeMismatch               = errors.New(TypeMismatch.String())
	ErrInvalidCapacityRequest     = errors.New(InvalidCapacityRequest.String())
	ErrAllocationFailure          = errors.New(AllocationFailure.String())
	ErrStackLimitExceeded         = errors.New(StackLimitExceeded.String())
	ErrInconsistentCollectorState = errors.New(InconsistentCollectorState.String())
	ErrIncompatibleLength         = errors.New(IncompatibleLength.String())
	ErrAttributeNotFound          = errors.New(AttributeNotFound.String())
)

var sentinels = map[Kind]error{
	NullReference:              ErrNullReference,
	IndexOutOfRange:            ErrIndexOutOfRange,
	TypeMismatch:               ErrTypeMismatch,
	InvalidCapacityRequest:     ErrInvalidCapacityRequest,
	AllocationFailure:          ErrAllocationFailure,
	StackLimitExceeded:         ErrStackLimitExceeded,
	InconsistentCollectorState: ErrInconsistentCollectorState,
	IncompatibleLength:         ErrIncompatibleLength,
	AttributeNotFound:          ErrAttributeNotFound,
}

// Error is a raised runtime error. It is the panic value that carries control
// from Raise to the nearest Try.
type Error struct {
	Kind      Kind
	Message   string
	Backtrace Backtrace // frozen when the error was raised

	vm *VM
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the kind sentinel so errors.Is works on raised errors.
func (e *Error) Unwrap() error {
	return sentinels[e.Kind]
}

// KindOf returns the Kind of a raised error, or None if err is not one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return None
}

// ---------------------------------------------------------------------------
// Recovery points
// ---------------------------------------------------------------------------

// DefaultMaxRecoveryDepth is the scope nesting limit used when Options leaves it unset.
const DefaultMaxRecoveryDepth = 128

// recoveryPoint is one protected scope. Points form a stack through prev.
type recoveryPoint struct {
	prev        *recoveryPoint
	saved       *Error // error state on entry
	traceDepth  int
	cleanupMark int
	depth       int
}

func (vm *VM) enterScope() *recoveryPoint {
	depth := 1
	if vm.recovery != nil {
		depth = vm.recovery.depth + 1
	}
	if depth > vm.opts.MaxRecoveryDepth {
		vm.Raise(StackLimitExceeded, "recovery point depth %d exceeded", vm.opts.MaxRecoveryDepth)
	}
	rp := &recoveryPoint{
		prev:        vm.recovery,
		saved:       vm.lastErr,
		traceDepth:  vm.BacktraceDepth(),
		cleanupMark: vm.cleanup.depth(),
		depth:       depth,
	}
	vm.recovery = rp
	return rp
}

// leaveScope pops rp. The backtrace is rolled back to the depth recorded on
// entry in both the success and the failure case. On success any error
// left pending inside the scope is dropped and the entry state restored.
func (vm *VM) leaveScope(rp *recoveryPoint, failed *Error) {
	vm.recovery = rp.prev
	vm.leave(rp.traceDepth)
	if failed == nil {
		vm.lastErr = rp.saved
		return
	}
	vm.lastErr = failed
}

// Try runs fn inside a protected scope. An error raised by this VM while fn
// runs is recovered and returned; the cleanup stack has already been unwound
// to the scope's entry mark. Panics that did not come from Raise propagate
// after the scope is popped.
func (vm *VM) Try(fn func()) (err error) {
	rp := vm.enterScope()
	defer func() {
		r := recover()
		if r == nil {
			vm.leaveScope(rp, nil)
			return
		}
		raised, ok := r.(*Error)
		if !ok || raised.vm != vm {
			vm.cleanup.unwind(rp.cleanupMark)
			vm.leaveScope(rp, nil)
			panic(r)
		}
		vm.leaveScope(rp, raised)
		err = raised
	}()
	fn()
	return nil
}

// InScope reports whether a protected scope is active.
func (vm *VM) InScope() bool {
	return vm.recovery != nil
}

// CurrentError returns the kind of the pending error, or None.
func (vm *VM) CurrentError() Kind {
	if vm.lastErr == nil {
		return None
	}
	return vm.lastErr.Kind
}

// LastError returns the pending error, or nil.
func (vm *VM) LastError() *Error {
	return vm.lastErr
}

// ---------------------------------------------------------------------------
// Raising
// ---------------------------------------------------------------------------

// Raise records an error, freezes the backtrace, runs pending cleanups and
// transfers control to the innermost Try. Outside any Try the terminal
// handler runs instead. Raise never returns.
func (vm *VM) Raise(kind Kind, format string, args ...any) {
	e := &Error{
		Kind:      kind,
		Message:   fmt.Sprintf(format, args...),
		Backtrace: vm.Backtrace(),
		vm:        vm,
	}
	vm.lastErr = e

	mark := 0
	if vm.recovery != nil {
		mark = vm.recovery.cleanupMark
	}
	vm.cleanup.unwind(mark)

	if vm.recovery == nil {
		log.Errorf("unhandled %s: %s", e.Kind, e.Message)
		vm.terminal(e)
	}
	panic(e)
}

// TerminalHandler receives errors raised outside any protected scope.
type TerminalHandler func(e *Error)

// SetTerminalHandler replaces the handler for unrecovered errors. If the
// handler returns, the error continues as a Go panic.
func (vm *VM) SetTerminalHandler(h TerminalHandler) {
	if h == nil {
		h = vm.defaultTerminal
	}
	vm.terminal = h
}

func (vm *VM) defaultTerminal(e *Error) {
	ReportError(vm.out, e)
	os.Exit(1)
}

// ReportError prints the frozen backtrace followed by a one-line diagnostic.
func ReportError(w io.Writer, e *Error) {
	PrintBacktrace(w, e.Backtrace)
	fmt.Fprintf(w, "error: %s\n", e)
}
