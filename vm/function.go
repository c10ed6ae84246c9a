package vm

// ---------------------------------------------------------------------------
// Function templates (compile time) and function values (run time)
// ---------------------------------------------------------------------------

// FunctionKind distinguishes how a function binds this and whether it can
// be constructed.
type FunctionKind uint8

const (
	FuncNormal FunctionKind = iota
	FuncArrow               // lexical this, not constructible
	FuncMethod              // class or object method, not constructible
	FuncClassConstructor    // only callable with new
)

// UpvalueDesc tells the Closure instruction where to find one captured
// variable: a local slot of the enclosing frame, or an upvalue of the
// enclosing closure.
type UpvalueDesc struct {
	FromLocal bool
	Index     uint16
	Name      string
}

// FunctionTemplate is the compiled form of a function literal. It is
// stored in the constant pool of the enclosing chunk.
type FunctionTemplate struct {
	Name          string
	Kind          FunctionKind
	NumParams     int
	RestIndex     int // index of the rest parameter, or -1
	Chunk         *Chunk
	Upvalues      []UpvalueDesc
	UsesArguments bool
	Source        string // original source text, for Function.prototype.toString
}

// NativeFunc is the signature of built-in functions.
type NativeFunc func(vm *VM, this Value, args []Value) (Value, error)

// Function is a callable value: either a closure over a template or a
// native Go function.
type Function struct {
	Name     string
	Template *FunctionTemplate
	Upvalues []*Upvalue

	Native NativeFunc
	// Construct handles `new` for native constructors. Nil means the native
	// cannot be constructed.
	Construct NativeFunc
	Arity     int

	boundThis    Value
	hasBoundThis bool

	// Proto overrides the prototype of the function object itself. Derived
	// class constructors point it at the parent constructor so static
	// members are inherited. Undefined means Function.prototype.
	Proto Value

	// Props holds own properties such as prototype and static members.
	Props PropertyMap
}

// NewNative creates a native function value.
func NewNative(name string, arity int, fn NativeFunc) *Function {
	return &Function{Name: name, Native: fn, Arity: arity}
}

// IsNative reports whether fn is implemented in Go.
func (fn *Function) IsNative() bool { return fn.Native != nil }

// IsConstructor reports whether fn may be used with new.
func (fn *Function) IsConstructor() bool {
	if fn.Native != nil {
		return fn.Construct != nil
	}
	return fn.Template.Kind == FuncNormal || fn.Template.Kind == FuncClassConstructor
}

// Length returns the value of the length property.
func (fn *Function) Length() int {
	if fn.Template != nil {
		return fn.Template.NumParams
	}
	return fn.Arity
}

func (fn *Function) sourceText() string {
	if fn.Template != nil && fn.Template.Source != "" {
		return fn.Template.Source
	}
	return "function " + fn.Name + "() { [native code] }"
}

// Upvalue is a captured variable. While open it aliases a stack slot of a
// live frame; once the frame returns (or the block exits) it is closed and
// owns the value.
type Upvalue struct {
	index  int
	open   bool
	closed Value
}

func (u *Upvalue) get(vm *VM) Value {
	if u.open {
		return vm.stack[u.index]
	}
	return u.closed
}

func (u *Upvalue) set(vm *VM, v Value) {
	if u.open {
		vm.stack[u.index] = v
		return
	}
	u.closed = v
}

// captureUpvalue returns the open upvalue for a stack slot, creating it if
// no closure has captured the slot yet.
func (vm *VM) captureUpvalue(slot int) *Upvalue {
	for _, u := range vm.openUpvalues {
		if u.index == slot {
			return u
		}
	}
	u := &Upvalue{index: slot, open: true}
	vm.openUpvalues = append(vm.openUpvalues, u)
	return u
}

// closeUpvalues closes every open upvalue at or above slot.
func (vm *VM) closeUpvalues(slot int) {
	kept := vm.openUpvalues[:0]
	for _, u := range vm.openUpvalues {
		if u.index >= slot {
			u.closed = vm.stack[u.index]
			u.open = false
			continue
		}
		kept = append(kept, u)
	}
	for i := len(kept); i < len(vm.openUpvalues); i++ {
		vm.openUpvalues[i] = nil
	}
	vm.openUpvalues = kept
}
