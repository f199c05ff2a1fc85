package vm

import (
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
)

// ---------------------------------------------------------------------------
// Backtrace: explicit ledger of traced calls
// ---------------------------------------------------------------------------

// DefaultMaxBacktraceDepth is the frame limit used when Options leaves it unset.
const DefaultMaxBacktraceDepth = 256

// Frame is one traced call.
type Frame struct {
	File     string
	Line     int
	Function string
}

func (f Frame) String() string {
	return fmt.Sprintf("%s (%s:%d)", f.Function, f.File, f.Line)
}

// Backtrace is a frozen copy of the traced call stack, oldest frame first.
type Backtrace []Frame

// Depth returns the number of frames in the snapshot.
func (bt Backtrace) Depth() int {
	return len(bt)
}

// Top returns the most recent frame, or a zero Frame for an empty snapshot.
func (bt Backtrace) Top() Frame {
	if len(bt) == 0 {
		return Frame{}
	}
	return bt[len(bt)-1]
}

// backtrace is the live, bounded frame stack owned by a VM.
type backtrace struct {
	frames []Frame
	limit  int
}

func newBacktrace(limit int) *backtrace {
	if limit <= 0 {
		limit = DefaultMaxBacktraceDepth
	}
	return &backtrace{
		frames: make([]Frame, 0, limit),
		limit:  limit,
	}
}

func (b *backtrace) depth() int {
	return len(b.frames)
}

// truncate drops every frame above depth. It is a no-op when the stack is
// already at or below depth, which keeps pops idempotent during unwinding.
func (b *backtrace) truncate(depth int) {
	if depth < 0 {
		depth = 0
	}
	if depth < len(b.frames) {
		clear(b.frames[depth:])
		b.frames = b.frames[:depth]
	}
}

func (b *backtrace) snapshot() Backtrace {
	out := make(Backtrace, len(b.frames))
	copy(out, b.frames)
	return out
}

// PushFrame records entry into a traced call. Exceeding the configured depth
// raises StackLimitExceeded.
func (vm *VM) PushFrame(file string, line int, function string) {
	if vm.trace == nil {
		vm.trace = newBacktrace(vm.opts.MaxBacktraceDepth)
	}
	if vm.trace.depth() >= vm.trace.limit {
		vm.Raise(StackLimitExceeded, "backtrace depth %d exceeded calling %s", vm.trace.limit, function)
	}
	vm.trace.frames = append(vm.trace.frames, Frame{File: file, Line: line, Function: function})
}

// PopFrame removes the most recent traced call.
func (vm *VM) PopFrame() {
	if vm.trace == nil || vm.trace.depth() == 0 {
		return
	}
	vm.trace.truncate(vm.trace.depth() - 1)
}

// BacktraceDepth returns the number of live frames.
func (vm *VM) BacktraceDepth() int {
	if vm.trace == nil {
		return 0
	}
	return vm.trace.depth()
}

// Backtrace returns a frozen copy of the live frames.
func (vm *VM) Backtrace() Backtrace {
	if vm.trace == nil {
		return nil
	}
	return vm.trace.snapshot()
}

// enter pushes a frame for its caller and returns the depth to restore on
// exit. Use as: defer vm.leave(vm.enter()).
func (vm *VM) enter() int {
	depth := vm.BacktraceDepth()
	file, line, function := "?", 0, "?"
	if pc, f, l, ok := runtime.Caller(1); ok {
		file, line = filepath.Base(f), l
		if fn := runtime.FuncForPC(pc); fn != nil {
			function = shortFuncName(fn.Name())
		}
	}
	vm.PushFrame(file, line, function)
	return depth
}

func (vm *VM) leave(depth int) {
	if vm.trace != nil {
		vm.trace.truncate(depth)
	}
}

// shortFuncName strips the import path from a runtime function name:
// "github.com/x/y/vm.(*VM).Append" becomes "vm.(*VM).Append".
func shortFuncName(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// PrintBacktrace writes bt most recent call first.
func PrintBacktrace(w io.Writer, bt Backtrace) {
	if len(bt) == 0 {
		fmt.Fprintln(w, "backtrace: <empty>")
		return
	}
	fmt.Fprintf(w, "backtrace (%d frames, most recent call first):\n", len(bt))
	for i := len(bt) - 1; i >= 0; i-- {
		fmt.Fprintf(w, "  #%-3d %s\n", len(bt)-1-i, bt[i])
	}
}
