package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// CallFrame: execution state of one invocation
// ---------------------------------------------------------------------------

// CallFrame is the execution state of a chunk: the top-level program or one
// function call.
type CallFrame struct {
	Function *Function // nil for the top-level chunk
	Chunk    *Chunk
	IP       int
	Base     int // stack index of local slot 0
	Ret      int // stack height to restore on return
	This     Value

	// Args is a copy of the actual arguments, kept only for functions that
	// use arguments or a rest parameter.
	Args       []Value
	ArgCount   int
	argsObject Value
	construct  bool
}

// operandBase is the stack index where the frame's operand stack begins.
func (f *CallFrame) operandBase() int { return f.Base + f.Chunk.NumLocals }

// ---------------------------------------------------------------------------
// Stack operations
// ---------------------------------------------------------------------------

func (vm *VM) ensureStack(n int) {
	if vm.sp+n <= len(vm.stack) {
		return
	}
	size := len(vm.stack) * 2
	for size < vm.sp+n {
		size *= 2
	}
	grown := make([]Value, size)
	copy(grown, vm.stack[:vm.sp])
	vm.stack = grown
}

func (vm *VM) push(v Value) {
	if vm.sp >= len(vm.stack) {
		vm.ensureStack(1)
	}
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() Value {
	vm.sp--
	v := vm.stack[vm.sp]
	vm.stack[vm.sp] = Undefined
	return v
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[vm.sp-1-distance]
}

// ---------------------------------------------------------------------------
// Entry points
// ---------------------------------------------------------------------------

// Execute runs a top-level chunk and returns its completion value: the
// value of the last expression statement, or undefined.
//
// Uncaught script exceptions are returned as *Error. Execute never panics on
// malformed bytecode; the chunk is validated before it runs.
func (vm *VM) Execute(chunk *Chunk) (result Value, err error) {
	if err := chunk.Validate(); err != nil {
		return Undefined, err
	}
	startSP := vm.sp
	startFrames := len(vm.frames)
	defer func() {
		if r := recover(); r != nil {
			vm.log.Errorf("recovered from vm panic in %s: %v", chunk.Name, r)
			err = Errorf(InternalError, "vm panic: %v", r)
		}
		if err != nil {
			vm.closeUpvalues(startSP)
			for i := startSP; i < vm.sp; i++ {
				vm.stack[i] = Undefined
			}
			vm.sp = startSP
			vm.frames = vm.frames[:startFrames]
			result = Undefined
		}
	}()

	vm.declareGlobals(chunk)
	frame := &CallFrame{Chunk: chunk, Base: vm.sp, Ret: vm.sp, This: vm.realm.globalObject}
	vm.ensureStack(chunk.NumLocals)
	for i := 0; i < chunk.NumLocals; i++ {
		vm.push(Undefined)
	}
	vm.frames = append(vm.frames, frame)

	v, err := vm.run(startFrames)
	if err != nil {
		return Undefined, vm.hostError(err)
	}
	return v, nil
}

// declareGlobals creates the chunk's top-level bindings. var and function
// names keep any existing value; let and const start uninitialized.
func (vm *VM) declareGlobals(chunk *Chunk) {
	for _, g := range chunk.Globals {
		switch g.Kind {
		case DeclVar, DeclFunction:
			if _, ok := vm.globals.Lookup(g.Name); !ok {
				vm.globals.Declare(g.Name, Undefined, true)
			}
		case DeclLet:
			vm.globals.DeclareUninitialized(g.Name, true)
		case DeclConst:
			vm.globals.DeclareUninitialized(g.Name, false)
		}
	}
}

// Call invokes callee with the given receiver and arguments. It is used by
// natives that call back into script code.
func (vm *VM) Call(callee, this Value, args []Value) (Value, error) {
	fn := callee.AsFunction()
	if fn == nil {
		return Undefined, vm.throwError(TypeError, "%s is not a function", describe(callee))
	}
	if fn.Native != nil {
		return fn.Native(vm, this, args)
	}
	if fn.Template.Kind == FuncClassConstructor {
		return Undefined, vm.throwError(TypeError, "Class constructor %s cannot be invoked without 'new'", fn.Name)
	}
	calleeIdx := vm.sp
	vm.ensureStack(len(args) + 2)
	vm.push(callee)
	vm.push(this)
	for _, a := range args {
		vm.push(a)
	}
	depth := len(vm.frames)
	if err := vm.pushFrame(fn, calleeIdx, len(args), this, false); err != nil {
		vm.truncate(calleeIdx)
		return Undefined, err
	}
	return vm.run(depth)
}

// Construct invokes callee as a constructor.
func (vm *VM) Construct(callee Value, args []Value) (Value, error) {
	fn := callee.AsFunction()
	if fn == nil || !fn.IsConstructor() {
		return Undefined, vm.throwError(TypeError, "%s is not a constructor", describe(callee))
	}
	if fn.Native != nil {
		return fn.Construct(vm, Undefined, args)
	}
	this, err := vm.newInstance(callee)
	if err != nil {
		return Undefined, err
	}
	calleeIdx := vm.sp
	vm.ensureStack(len(args) + 2)
	vm.push(callee)
	vm.push(this)
	for _, a := range args {
		vm.push(a)
	}
	depth := len(vm.frames)
	if err := vm.pushFrame(fn, calleeIdx, len(args), this, true); err != nil {
		vm.truncate(calleeIdx)
		return Undefined, err
	}
	return vm.run(depth)
}

func (vm *VM) truncate(sp int) {
	for i := sp; i < vm.sp; i++ {
		vm.stack[i] = Undefined
	}
	vm.sp = sp
}

// newInstance allocates the receiver of a script constructor call.
func (vm *VM) newInstance(callee Value) (Value, error) {
	proto, err := vm.getProperty(callee, "prototype")
	if err != nil {
		return Undefined, err
	}
	if !proto.IsObjectLike() {
		proto = vm.realm.objectProto
	}
	return vm.newObject(proto)
}

// pushFrame activates a script function whose callee, receiver and argc
// arguments are already on the stack starting at calleeIdx.
func (vm *VM) pushFrame(fn *Function, calleeIdx, argc int, this Value, construct bool) error {
	if len(vm.frames) >= vm.maxDepth {
		return vm.throwError(RangeError, "Maximum call stack size exceeded")
	}
	t := fn.Template
	base := calleeIdx + 2
	frame := &CallFrame{
		Function:  fn,
		Chunk:     t.Chunk,
		Base:      base,
		Ret:       calleeIdx,
		This:      this,
		ArgCount:  argc,
		construct: construct,
	}
	switch {
	case fn.hasBoundThis:
		frame.This = fn.boundThis
	case !construct && t.Kind == FuncNormal && this.IsNullish():
		// Non-strict functions see the global object as a missing receiver.
		frame.This = vm.realm.globalObject
	}
	if t.UsesArguments || t.RestIndex >= 0 {
		frame.Args = append([]Value(nil), vm.stack[base:base+argc]...)
	}

	np := t.NumParams
	vm.ensureStack(t.Chunk.NumLocals + 1)
	if argc < np {
		for i := argc; i < np; i++ {
			vm.stack[base+i] = Undefined
		}
	} else {
		for i := base + np; i < base+argc; i++ {
			vm.stack[i] = Undefined
		}
	}
	vm.sp = base + np
	if t.RestIndex >= 0 {
		var rest []Value
		if argc > np {
			rest = append(rest, frame.Args[np:]...)
		}
		arr, err := vm.NewArray(rest)
		if err != nil {
			vm.truncate(calleeIdx)
			return err
		}
		vm.push(arr)
	}
	for vm.sp < base+t.Chunk.NumLocals {
		vm.push(Undefined)
	}
	vm.frames = append(vm.frames, frame)
	return nil
}

// ---------------------------------------------------------------------------
// Main loop
// ---------------------------------------------------------------------------

// run executes frames until the frame count drops back to stop and returns
// the value of the last return.
func (vm *VM) run(stop int) (Value, error) {
	frame := vm.frames[len(vm.frames)-1]
	for {
		code := frame.Chunk.Instructions
		var in Instruction
		if frame.IP < len(code) {
			in = code[frame.IP]
		} else {
			in = Instruction{Op: OpHalt}
		}
		frame.IP++

		var err error
		switch in.Op {
		// --- Stack ---
		case OpNop:

		case OpLoadConst:
			vm.push(frame.Chunk.Constants[in.Operand])

		case OpLoadUndefined:
			vm.push(Undefined)

		case OpLoadNull:
			vm.push(Null)

		case OpLoadTrue:
			vm.push(True)

		case OpLoadFalse:
			vm.push(False)

		case OpLoadHole:
			vm.push(hole)

		case OpPop:
			vm.pop()

		case OpDup:
			vm.push(vm.peek(0))

		case OpDup2:
			a, b := vm.peek(1), vm.peek(0)
			vm.push(a)
			vm.push(b)

		case OpSwap:
			vm.stack[vm.sp-1], vm.stack[vm.sp-2] = vm.stack[vm.sp-2], vm.stack[vm.sp-1]

		// --- Arithmetic ---
		case OpAdd:
			b, a := vm.pop(), vm.pop()
			var r Value
			if r, err = vm.add(a, b); err == nil {
				vm.push(r)
			}

		case OpSub, OpMul, OpDiv, OpMod, OpPow,
			OpBitAnd, OpBitOr, OpBitXor, OpShl, OpShr, OpUshr:
			b, a := vm.pop(), vm.pop()
			var r Value
			if r, err = vm.arith(in.Op, a, b); err == nil {
				vm.push(r)
			}

		case OpNeg:
			var r Value
			if r, err = vm.negate(vm.pop()); err == nil {
				vm.push(r)
			}

		case OpInc, OpDec:
			var r Value
			if r, err = vm.increment(vm.pop(), in.Op == OpInc); err == nil {
				vm.push(r)
			}

		case OpToNumeric:
			var r Value
			if r, err = vm.toNumeric(vm.pop()); err == nil {
				vm.push(r)
			}

		case OpPlus:
			v := vm.pop()
			if v.kind == KindBigInt {
				err = vm.throwError(TypeError, "Cannot convert a BigInt value to a number")
				break
			}
			var f float64
			if f, err = vm.ToNumber(v); err == nil {
				vm.push(Number(f))
			}

		case OpBitNot:
			var r Value
			if r, err = vm.bitNot(vm.pop()); err == nil {
				vm.push(r)
			}

		// --- Comparison ---
		case OpEq:
			b, a := vm.pop(), vm.pop()
			vm.push(Bool(AbstractEquals(a, b)))

		case OpNe:
			b, a := vm.pop(), vm.pop()
			vm.push(Bool(!AbstractEquals(a, b)))

		case OpStrictEq:
			b, a := vm.pop(), vm.pop()
			vm.push(Bool(StrictEquals(a, b)))

		case OpStrictNe:
			b, a := vm.pop(), vm.pop()
			vm.push(Bool(!StrictEquals(a, b)))

		case OpLt, OpLe, OpGt, OpGe:
			b, a := vm.pop(), vm.pop()
			var r bool
			if r, err = vm.compare(in.Op, a, b); err == nil {
				vm.push(Bool(r))
			}

		// --- Logical ---
		case OpNot:
			vm.push(Bool(!ToBoolean(vm.pop())))

		case OpLogicalAnd:
			b, a := vm.pop(), vm.pop()
			if ToBoolean(a) {
				vm.push(b)
			} else {
				vm.push(a)
			}

		case OpLogicalOr:
			b, a := vm.pop(), vm.pop()
			if ToBoolean(a) {
				vm.push(a)
			} else {
				vm.push(b)
			}

		// --- Variables ---
		case OpLoadLocal:
			v := vm.stack[frame.Base+int(in.Operand)]
			if v.isHole() {
				err = vm.throwError(ReferenceError, "Cannot access '%s' before initialization", frame.Chunk.localName(in.Operand))
				break
			}
			vm.push(v)

		case OpStoreLocal:
			vm.stack[frame.Base+int(in.Operand)] = vm.peek(0)

		case OpLoadGlobal:
			var v Value
			if v, err = vm.globals.Get(frame.Chunk.constantString(in.Operand)); err == nil {
				vm.push(v)
			}

		case OpStoreGlobal:
			err = vm.globals.Set(frame.Chunk.constantString(in.Operand), vm.peek(0))

		case OpTypeOfGlobal:
			name := frame.Chunk.constantString(in.Operand)
			b, ok := vm.globals.Lookup(name)
			switch {
			case !ok:
				vm.push(String("undefined"))
			case !b.Initialized:
				err = vm.throwError(ReferenceError, "Cannot access '%s' before initialization", name)
			default:
				vm.push(String(b.Value.TypeOf()))
			}

		case OpLoadUpvalue:
			v := frame.Function.Upvalues[in.Operand].get(vm)
			if v.isHole() {
				err = vm.throwError(ReferenceError, "Cannot access '%s' before initialization",
					frame.Function.Template.Upvalues[in.Operand].Name)
				break
			}
			vm.push(v)

		case OpStoreUpvalue:
			frame.Function.Upvalues[in.Operand].set(vm, vm.peek(0))

		case OpCloseUpvalue:
			vm.closeUpvalues(frame.Base + int(in.Operand))

		case OpLoadThis:
			vm.push(frame.This)

		case OpLoadArguments:
			var v Value
			if v, err = vm.argumentsObject(frame); err == nil {
				vm.push(v)
			}

		case OpLoadArgument:
			vm.push(vm.argumentAt(frame, int(in.Operand)))

		case OpArgumentsLength:
			if o := frame.argsObject.Object(); o != nil {
				vm.push(Int(len(o.Elements)))
			} else {
				vm.push(Int(frame.ArgCount))
			}

		// --- Properties ---
		case OpGetProperty:
			obj := vm.pop()
			var v Value
			if v, err = vm.getProperty(obj, frame.Chunk.constantString(in.Operand)); err == nil {
				vm.push(v)
			}

		case OpSetProperty:
			val, obj := vm.pop(), vm.pop()
			if err = vm.setProperty(obj, frame.Chunk.constantString(in.Operand), val); err == nil {
				vm.push(val)
			}

		case OpGetElement:
			key, obj := vm.pop(), vm.pop()
			var v Value
			if v, err = vm.getElement(obj, key); err == nil {
				vm.push(v)
			}

		case OpSetElement:
			val, key, obj := vm.pop(), vm.pop(), vm.pop()
			if err = vm.setElement(obj, key, val); err == nil {
				vm.push(val)
			}

		case OpDeleteProperty:
			key, obj := vm.pop(), vm.pop()
			var ok bool
			if ok, err = vm.deleteElement(obj, key); err == nil {
				vm.push(Bool(ok))
			}

		// --- Control flow ---
		case OpJump:
			frame.IP = int(in.Operand)

		case OpJumpIfFalse:
			if !ToBoolean(vm.pop()) {
				frame.IP = int(in.Operand)
			}

		case OpJumpIfTrue:
			if ToBoolean(vm.pop()) {
				frame.IP = int(in.Operand)
			}

		// --- Functions ---
		case OpCall:
			err = vm.callOp(int(in.Operand))
			frame = vm.frames[len(vm.frames)-1]

		case OpNew:
			err = vm.newOp(int(in.Operand))
			frame = vm.frames[len(vm.frames)-1]

		case OpApply:
			err = vm.applyOp(int(in.Operand))
			frame = vm.frames[len(vm.frames)-1]

		case OpReturn, OpHalt:
			var result Value
			if in.Op == OpReturn || vm.sp > frame.operandBase() {
				result = vm.pop()
			}
			if frame.construct && !result.IsObjectLike() {
				result = frame.This
			}
			vm.closeUpvalues(frame.Base)
			vm.truncate(frame.Ret)
			vm.frames[len(vm.frames)-1] = nil
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == stop {
				return result, nil
			}
			vm.push(result)
			frame = vm.frames[len(vm.frames)-1]

		case OpClosure:
			vm.push(vm.makeClosure(frame, frame.Chunk.Constants[in.Operand].AsTemplate()))

		// --- Objects ---
		case OpNewObject:
			var v Value
			if v, err = vm.NewObject(); err == nil {
				vm.push(v)
			}

		case OpNewArray:
			n := int(in.Operand)
			elems := make([]Value, n)
			copy(elems, vm.stack[vm.sp-n:vm.sp])
			vm.truncate(vm.sp - n)
			var v Value
			if v, err = vm.NewArray(elems); err == nil {
				vm.push(v)
			}

		case OpArrayPush:
			val := vm.pop()
			err = vm.arrayPush(vm.peek(0), val, in.Operand == 1)

		case OpTypeOf:
			vm.push(String(vm.pop().TypeOf()))

		case OpInstanceOf:
			ctor, obj := vm.pop(), vm.pop()
			var r bool
			if r, err = vm.instanceOf(obj, ctor); err == nil {
				vm.push(Bool(r))
			}

		case OpIn:
			obj, key := vm.pop(), vm.pop()
			var r bool
			if r, err = vm.inOp(key, obj); err == nil {
				vm.push(Bool(r))
			}

		case OpNewRegExp:
			pattern := frame.Chunk.Constants[in.Operand].str
			flags := frame.Chunk.Constants[in.Operand+1].str
			var v Value
			if v, err = vm.newRegExp(pattern, flags); err == nil {
				vm.push(v)
			}

		case OpInherit:
			parent := vm.pop()
			err = vm.inherit(vm.peek(0), parent)

		case OpDefineMethod:
			fn := vm.pop()
			err = vm.defineHidden(vm.peek(0), frame.Chunk.constantString(in.Operand), fn)

		// --- Iteration ---
		case OpForInInit:
			var it Value
			if it, err = vm.newIterator(vm.pop(), in.Operand == 1); err == nil {
				vm.push(it)
			}

		case OpForInDone:
			it := vm.pop().ptr.(*propertyIterator)
			vm.push(Bool(it.done(vm)))

		case OpForInNext:
			it := vm.pop().ptr.(*propertyIterator)
			if it.done(vm) {
				frame.IP = int(in.Operand)
				break
			}
			vm.push(it.next(vm))

		case OpThrow:
			err = &Exception{Value: vm.pop()}

		default:
			err = Errorf(InternalError, "unknown opcode 0x%02X", byte(in.Op))
		}

		if err != nil {
			err = vm.toScriptError(err)
			var exc *Exception
			if !errors.As(err, &exc) {
				return Undefined, err
			}
			if !vm.unwind(exc, stop) {
				return Undefined, exc
			}
			frame = vm.frames[len(vm.frames)-1]
		}
	}
}

// unwind transfers control to the innermost handler covering the faulting
// instruction, popping frames above stop that have none. It reports false
// if the exception escapes every frame.
func (vm *VM) unwind(exc *Exception, stop int) bool {
	for len(vm.frames) > stop {
		f := vm.frames[len(vm.frames)-1]
		ip := f.IP - 1
		for _, h := range f.Chunk.Handlers {
			if ip >= h.Start && ip < h.End {
				vm.truncate(f.operandBase())
				vm.push(exc.Value)
				f.IP = h.Target
				return true
			}
		}
		vm.closeUpvalues(f.Base)
		vm.truncate(f.Ret)
		vm.frames[len(vm.frames)-1] = nil
		vm.frames = vm.frames[:len(vm.frames)-1]
	}
	return false
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// callOp handles Call: [callee, this, args...].
func (vm *VM) callOp(argc int) error {
	calleeIdx := vm.sp - argc - 2
	callee := vm.stack[calleeIdx]
	this := vm.stack[calleeIdx+1]
	fn := callee.AsFunction()
	if fn == nil {
		return vm.throwError(TypeError, "%s is not a function", describe(callee))
	}
	if fn.Native != nil {
		args := make([]Value, argc)
		copy(args, vm.stack[calleeIdx+2:vm.sp])
		vm.truncate(calleeIdx)
		res, err := fn.Native(vm, this, args)
		if err != nil {
			return err
		}
		vm.push(res)
		return nil
	}
	if fn.Template.Kind == FuncClassConstructor {
		return vm.throwError(TypeError, "Class constructor %s cannot be invoked without 'new'", fn.Name)
	}
	return vm.pushFrame(fn, calleeIdx, argc, this, false)
}

// newOp handles New: [callee, args...]. The receiver is inserted after the
// callee so the frame layout matches Call.
func (vm *VM) newOp(argc int) error {
	calleeIdx := vm.sp - argc - 1
	callee := vm.stack[calleeIdx]
	fn := callee.AsFunction()
	if fn == nil || !fn.IsConstructor() {
		return vm.throwError(TypeError, "%s is not a constructor", describe(callee))
	}
	if fn.Native != nil {
		args := make([]Value, argc)
		copy(args, vm.stack[calleeIdx+1:vm.sp])
		vm.truncate(calleeIdx)
		res, err := fn.Construct(vm, Undefined, args)
		if err != nil {
			return err
		}
		vm.push(res)
		return nil
	}
	this, err := vm.newInstance(callee)
	if err != nil {
		return err
	}
	vm.ensureStack(1)
	copy(vm.stack[calleeIdx+2:vm.sp+1], vm.stack[calleeIdx+1:vm.sp])
	vm.stack[calleeIdx+1] = this
	vm.sp++
	return vm.pushFrame(fn, calleeIdx, argc, this, true)
}

// Apply operand modes.
const (
	ApplyCall  = 0 // callee(...args) with an explicit this
	ApplySuper = 1 // parent constructor against an existing receiver
	ApplyNew   = 2 // new callee(...args); the this slot is ignored
)

// applyOp handles Apply: [callee, this, argsArray].
func (vm *VM) applyOp(mode int) error {
	super := mode == ApplySuper
	argv := vm.pop()
	args, err := vm.listFromArrayLike(argv)
	if err != nil {
		return err
	}
	calleeIdx := vm.sp - 2
	callee := vm.stack[calleeIdx]
	this := vm.stack[calleeIdx+1]
	fn := callee.AsFunction()
	if fn == nil {
		return vm.throwError(TypeError, "%s is not a function", describe(callee))
	}
	if len(args) > MaxArgCount*256 {
		return vm.throwError(RangeError, "too many arguments in function call")
	}
	if mode == ApplyNew {
		return vm.constructList(fn, callee, calleeIdx, args)
	}
	if fn.Native != nil {
		vm.truncate(calleeIdx)
		var res Value
		if super && fn.Construct != nil {
			res, err = fn.Construct(vm, this, args)
			if err == nil {
				vm.adoptNative(this, res)
				res = this
			}
		} else {
			res, err = fn.Native(vm, this, args)
		}
		if err != nil {
			return err
		}
		vm.push(res)
		return nil
	}
	if fn.Template.Kind == FuncClassConstructor && !super {
		return vm.throwError(TypeError, "Class constructor %s cannot be invoked without 'new'", fn.Name)
	}
	vm.ensureStack(len(args))
	for _, a := range args {
		vm.push(a)
	}
	return vm.pushFrame(fn, calleeIdx, len(args), this, super)
}

// constructList runs new callee(...args) for an argument list that is
// already materialized. The slot above callee receives the new receiver.
func (vm *VM) constructList(fn *Function, callee Value, calleeIdx int, args []Value) error {
	if !fn.IsConstructor() {
		return vm.throwError(TypeError, "%s is not a constructor", describe(callee))
	}
	if fn.Native != nil {
		vm.truncate(calleeIdx)
		res, err := fn.Construct(vm, Undefined, args)
		if err != nil {
			return err
		}
		vm.push(res)
		return nil
	}
	this, err := vm.newInstance(callee)
	if err != nil {
		return err
	}
	vm.stack[calleeIdx+1] = this
	vm.ensureStack(len(args))
	for _, a := range args {
		vm.push(a)
	}
	return vm.pushFrame(fn, calleeIdx, len(args), this, true)
}

// adoptNative copies the internal state of an object created by a native
// constructor into a subclass instance.
func (vm *VM) adoptNative(this, made Value) {
	dst, src := this.Object(), made.Object()
	if dst == nil || src == nil || dst == src {
		return
	}
	dst.Class = src.Class
	dst.Elements = src.Elements
	dst.Primitive = src.Primitive
	dst.regexp = src.regexp
	src.Props.Each(func(key string, v Value, flags PropFlags) {
		dst.Props.Define(key, v, flags)
	})
}

// makeClosure instantiates a function template in the current frame.
func (vm *VM) makeClosure(frame *CallFrame, t *FunctionTemplate) Value {
	fn := &Function{
		Name:     t.Name,
		Template: t,
		Upvalues: make([]*Upvalue, len(t.Upvalues)),
	}
	for i, desc := range t.Upvalues {
		if desc.FromLocal {
			fn.Upvalues[i] = vm.captureUpvalue(frame.Base + int(desc.Index))
		} else {
			fn.Upvalues[i] = frame.Function.Upvalues[desc.Index]
		}
	}
	if t.Kind == FuncArrow {
		fn.boundThis = frame.This
		fn.hasBoundThis = true
	}
	return FunctionValue(fn)
}

func (vm *VM) argumentsObject(frame *CallFrame) (Value, error) {
	if frame.argsObject.kind == KindObject {
		return frame.argsObject, nil
	}
	elems := append([]Value{}, frame.Args...)
	v, err := vm.alloc(Object{Class: ClassArguments, Proto: vm.realm.objectProto, Elements: elems})
	if err != nil {
		return Undefined, err
	}
	frame.argsObject = v
	return v, nil
}

func (vm *VM) argumentAt(frame *CallFrame, n int) Value {
	if o := frame.argsObject.Object(); o != nil {
		if n < len(o.Elements) {
			return o.Elements[n]
		}
		return Undefined
	}
	if n < len(frame.Args) {
		return frame.Args[n]
	}
	return Undefined
}

// ---------------------------------------------------------------------------
// Classes and methods
// ---------------------------------------------------------------------------

// inherit links ctor to parent: ctor.prototype inherits parent.prototype
// and ctor itself inherits parent's static members.
func (vm *VM) inherit(ctor, parent Value) error {
	fn := ctor.AsFunction()
	if fn == nil {
		return vm.throwError(TypeError, "class constructor is not a function")
	}
	protoVal, err := vm.getProperty(ctor, "prototype")
	if err != nil {
		return err
	}
	proto := protoVal.Object()
	if proto == nil {
		return vm.throwError(TypeError, "class prototype is not an object")
	}
	if parent.IsNull() {
		proto.Proto = Null
		return nil
	}
	pfn := parent.AsFunction()
	if pfn == nil || !pfn.IsConstructor() {
		return vm.throwError(TypeError, "Class extends value %s is not a constructor or null", describe(parent))
	}
	parentProto, err := vm.getProperty(parent, "prototype")
	if err != nil {
		return err
	}
	if !parentProto.IsObjectLike() && !parentProto.IsNull() {
		return vm.throwError(TypeError, "Class extends value does not have valid prototype property")
	}
	proto.Proto = parentProto
	fn.Proto = parent
	return nil
}

// defineHidden defines a non-enumerable property, used for class methods.
func (vm *VM) defineHidden(target Value, key string, v Value) error {
	switch target.kind {
	case KindObject:
		o := target.Object()
		if o == nil {
			return errStaleObject
		}
		o.Props.Define(key, v, PropHidden)
	case KindFunction:
		target.AsFunction().Props.Define(key, v, PropHidden)
	case KindNativeObject:
		target.AsNativeObject().Define(key, v, PropHidden)
	default:
		return vm.throwError(TypeError, "cannot define method %s on %s", key, target.TypeOf())
	}
	if fn := v.AsFunction(); fn != nil && fn.Name == "" {
		fn.Name = key
	}
	return nil
}

var errStaleObject = NewError(InternalError, "object reference is no longer valid")

// describe renders a value for an error message.
func describe(v Value) string {
	switch v.kind {
	case KindString:
		return fmt.Sprintf("%q", v.str)
	case KindFunction:
		if name := v.AsFunction().Name; name != "" {
			return name
		}
		return "function"
	case KindObject, KindNativeObject:
		return "object"
	}
	return v.String()
}
