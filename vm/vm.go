package vm

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("vecgc.vm")

// ---------------------------------------------------------------------------
// VM: one independent runtime context
// ---------------------------------------------------------------------------

// Options configures a VM. Zero fields take their defaults.
type Options struct {
	MaxBacktraceDepth int
	MaxRecoveryDepth  int
	HeapLimit         int64 // bytes; 0 means unlimited
	Out               io.Writer
}

func (o Options) withDefaults() Options {
	if o.MaxBacktraceDepth <= 0 {
		o.MaxBacktraceDepth = DefaultMaxBacktraceDepth
	}
	if o.MaxRecoveryDepth <= 0 {
		o.MaxRecoveryDepth = DefaultMaxRecoveryDepth
	}
	if o.HeapLimit < 0 {
		o.HeapLimit = 0
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
	return o
}

// VM holds every piece of runtime state: allocation counters, the cleanup
// stack, protected scopes, the backtrace, the last error and the collector.
// A VM is not safe for concurrent use; separate VMs are fully independent.
type VM struct {
	id   uuid.UUID
	opts Options
	out  io.Writer

	heap     *Heap
	cleanup  cleanupStack
	recovery *recoveryPoint
	trace    *backtrace
	lastErr  *Error
	terminal TerminalHandler

	gc     *Collector
	nextID uint64
}

// NewVM creates a VM with default options.
func NewVM() *VM {
	return NewVMWithOptions(Options{})
}

// NewVMWithOptions creates a VM configured by opts.
func NewVMWithOptions(opts Options) *VM {
	opts = opts.withDefaults()
	vm := &VM{
		id:    uuid.New(),
		opts:  opts,
		out:   opts.Out,
		heap:  newHeap(opts.HeapLimit),
		trace: newBacktrace(opts.MaxBacktraceDepth),
	}
	vm.terminal = vm.defaultTerminal
	vm.gc = newCollector(vm)
	log.Debugf("vm %s created (backtrace=%d scopes=%d heap-limit=%d)",
		vm.id, opts.MaxBacktraceDepth, opts.MaxRecoveryDepth, opts.HeapLimit)
	return vm
}

// ID returns the VM's instance id.
func (vm *VM) ID() uuid.UUID { return vm.id }

// Options returns the effective options.
func (vm *VM) Options() Options { return vm.opts }

// Out returns the diagnostics writer.
func (vm *VM) Out() io.Writer { return vm.out }

// GC returns the VM's collector.
func (vm *VM) GC() *Collector { return vm.gc }

// Shutdown frees every tracked vector and releases the collector tables.
func (vm *VM) Shutdown() {
	vm.gc.Kill()
}

// ---------------------------------------------------------------------------
// Collector shortcuts
// ---------------------------------------------------------------------------

// GCInit initializes the collector; see Collector.Init.
func (vm *VM) GCInit() { vm.gc.Init() }

// DeclareRoot marks v as directly reachable.
func (vm *VM) DeclareRoot(v *Vector) { vm.gc.DeclareRoot(v) }

// RevokeRoot removes v from the roots.
func (vm *VM) RevokeRoot(v *Vector) { vm.gc.RevokeRoot(v) }

// Collect runs one collection cycle.
func (vm *VM) Collect() *CollectStats { return vm.gc.Collect() }

// GCKill frees every tracked vector; see Collector.Kill.
func (vm *VM) GCKill() { vm.gc.Kill() }
