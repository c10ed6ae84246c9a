package vm

import (
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// VM: one isolated execution context
// ---------------------------------------------------------------------------

// DefaultMaxCallDepth bounds script recursion.
const DefaultMaxCallDepth = 10000

const initialStackSize = 1024

// VM executes compiled chunks. A VM is not safe for concurrent use; see the
// engine package for synchronized facades.
type VM struct {
	heap     *Heap
	builtins *Environment // root: Math, console, Object, ...
	globals  *Environment // child: script top-level bindings

	stack        []Value
	sp           int
	frames       []*CallFrame
	openUpvalues []*Upvalue

	realm realm

	maxDepth     int
	heapCapacity int
	out          io.Writer
	log          commonlog.Logger

	symbolSeq uint64
	rand      *rand.Rand

	// joining holds arrays currently being joined, so cycles print as "".
	joining map[*Object]bool
}

// realm holds the intrinsic prototypes and constructors of one VM.
type realm struct {
	objectProto   Value
	functionProto Value
	arrayProto    Value
	stringProto   Value
	numberProto   Value
	booleanProto  Value
	symbolProto   Value
	bigintProto   Value
	errorProto    Value
	dateProto     Value
	regexpProto   Value

	errorProtos map[string]Value // by constructor name, "Error" included

	// globalObject is globalThis; its properties are the global bindings.
	globalObject Value
}

func (vm *VM) isGlobalObject(v Value) bool {
	return v.kind == KindObject && v.bits == vm.realm.globalObject.bits && v.ptr == vm.realm.globalObject.ptr
}

// Option configures a VM.
type Option func(*VM)

// WithHeapCapacity sets the maximum number of live heap objects.
func WithHeapCapacity(n int) Option {
	return func(vm *VM) { vm.heapCapacity = n }
}

// WithMaxCallDepth sets the maximum number of nested calls.
func WithMaxCallDepth(n int) Option {
	return func(vm *VM) { vm.maxDepth = n }
}

// WithOutput sets where console output is written.
func WithOutput(w io.Writer) Option {
	return func(vm *VM) { vm.out = w }
}

// WithLogger sets the logger used for VM diagnostics.
func WithLogger(l commonlog.Logger) Option {
	return func(vm *VM) { vm.log = l }
}

// NewVM creates a VM with its built-ins installed.
func NewVM(opts ...Option) *VM {
	vm := &VM{
		maxDepth:     DefaultMaxCallDepth,
		heapCapacity: DefaultHeapCapacity,
		out:          os.Stdout,
		rand:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(vm)
	}
	if vm.log == nil {
		vm.log = commonlog.GetLogger("spacey.vm")
	}
	vm.heap = NewHeap(vm.heapCapacity)
	vm.stack = make([]Value, initialStackSize)
	vm.bootstrap()
	return vm
}

// bootstrap creates fresh environments and installs the built-ins.
func (vm *VM) bootstrap() {
	vm.builtins = NewEnvironment(nil)
	vm.globals = NewEnvironment(vm.builtins)
	vm.installBuiltins()
}

// Reset discards every global binding and heap object and reinstalls the
// built-ins. Object values obtained before the reset become invalid.
func (vm *VM) Reset() {
	vm.closeUpvalues(0)
	for i := range vm.stack[:vm.sp] {
		vm.stack[i] = Undefined
	}
	vm.sp = 0
	vm.frames = vm.frames[:0]
	vm.heap.Reset()
	vm.bootstrap()
	vm.log.Debugf("vm reset, heap generation %d", vm.heap.arena.Generation())
}

// Globals returns the script global environment. Its parent holds the
// built-ins.
func (vm *VM) Globals() *Environment { return vm.globals }

// Heap returns the VM's object heap.
func (vm *VM) Heap() *Heap { return vm.heap }

// Output returns the writer console output goes to.
func (vm *VM) Output() io.Writer { return vm.out }

// SetGlobal binds a host value in the script global environment.
func (vm *VM) SetGlobal(name string, v Value) {
	vm.globals.Declare(name, v, true)
}

// GetGlobal reads a global binding.
func (vm *VM) GetGlobal(name string) (Value, bool) {
	b, ok := vm.globals.Lookup(name)
	if !ok || !b.Initialized {
		return Undefined, false
	}
	return b.Value, true
}

// ---------------------------------------------------------------------------
// Allocation helpers
// ---------------------------------------------------------------------------

// alloc stores o on the heap. Exhaustion is not catchable by scripts.
func (vm *VM) alloc(o Object) (Value, error) {
	v, ok := vm.heap.Allocate(o)
	if !ok {
		vm.log.Warningf("heap exhausted at %d objects", vm.heap.Cap())
		return Undefined, NewError(RangeError, "heap exhausted")
	}
	return v, nil
}

func (vm *VM) newObject(proto Value) (Value, error) {
	return vm.alloc(Object{Class: ClassObject, Proto: proto})
}

// NewObject allocates an empty plain object.
func (vm *VM) NewObject() (Value, error) {
	return vm.newObject(vm.realm.objectProto)
}

// NewArray allocates an array holding elems. The slice is owned by the
// array afterwards.
func (vm *VM) NewArray(elems []Value) (Value, error) {
	if elems == nil {
		elems = []Value{}
	}
	return vm.alloc(Object{Class: ClassArray, Proto: vm.realm.arrayProto, Elements: elems})
}

// newErrorObject allocates an error whose prototype is the named
// constructor's prototype.
func (vm *VM) newErrorObject(name, msg string) (Value, error) {
	proto, ok := vm.realm.errorProtos[name]
	if !ok {
		proto = vm.realm.errorProto
	}
	o := Object{Class: ClassError, Proto: proto}
	o.Props.Define("message", String(msg), PropHidden)
	return vm.alloc(o)
}

func (vm *VM) newWrapper(class ObjectClass, prim Value) (Value, error) {
	var proto Value
	switch class {
	case ClassString:
		proto = vm.realm.stringProto
	case ClassNumber:
		proto = vm.realm.numberProto
	default:
		proto = vm.realm.booleanProto
	}
	return vm.alloc(Object{Class: class, Proto: proto, Primitive: prim})
}

// native creates a built-in function value.
func (vm *VM) native(name string, arity int, fn NativeFunc) Value {
	return FunctionValue(NewNative(name, arity, fn))
}

// newSymbol creates a unique symbol.
func (vm *VM) newSymbol(description string) Value {
	vm.symbolSeq++
	return Value{kind: KindSymbol, ptr: &symbol{description: description, id: vm.symbolSeq}}
}
