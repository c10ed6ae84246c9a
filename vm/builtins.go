package vm

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/spacey-js/spacey/gc"
)

// builtinMethod is one entry of a built-in method table.
type builtinMethod struct {
	name  string
	arity int
	fn    NativeFunc
}

func arg(args []Value, i int) Value {
	if i < len(args) {
		return args[i]
	}
	return Undefined
}

// defineMethods installs a method table as hidden properties of target.
func (vm *VM) defineMethods(target Value, methods []builtinMethod) {
	for _, m := range methods {
		fn := vm.native(m.name, m.arity, m.fn)
		switch target.kind {
		case KindObject:
			target.Object().Props.Define(m.name, fn, PropHidden)
		case KindFunction:
			target.AsFunction().Props.Define(m.name, fn, PropHidden)
		}
	}
}

// defineValue installs a read-only hidden property.
func defineValue(target Value, name string, v Value) {
	switch target.kind {
	case KindObject:
		target.Object().Props.Define(name, v, 0)
	case KindFunction:
		target.AsFunction().Props.Define(name, v, 0)
	}
}

// constructor creates a native constructor bound to proto.
func (vm *VM) constructor(name string, arity int, proto Value, call, construct NativeFunc) Value {
	fn := NewNative(name, arity, call)
	fn.Construct = construct
	ctor := FunctionValue(fn)
	if proto.kind == KindObject {
		fn.Props.Define("prototype", proto, 0)
		proto.Object().Props.Define("constructor", ctor, PropHidden)
	}
	return ctor
}

// mustAlloc is used while bootstrapping, where the heap is empty.
func (vm *VM) mustAlloc(o Object) Value {
	v, err := vm.alloc(o)
	if err != nil {
		panic(fmt.Sprintf("bootstrap: %v", err))
	}
	return v
}

// installBuiltins creates the intrinsic prototypes and the global bindings.
func (vm *VM) installBuiltins() {
	r := &vm.realm
	r.objectProto = vm.mustAlloc(Object{Class: ClassObject, Proto: Null})
	proto := func(class ObjectClass, prim Value) Value {
		return vm.mustAlloc(Object{Class: class, Proto: r.objectProto, Primitive: prim})
	}
	r.functionProto = proto(ClassObject, Undefined)
	r.arrayProto = vm.mustAlloc(Object{Class: ClassArray, Proto: r.objectProto, Elements: []Value{}})
	r.stringProto = proto(ClassString, String(""))
	r.numberProto = proto(ClassNumber, Number(0))
	r.booleanProto = proto(ClassBoolean, False)
	r.symbolProto = proto(ClassObject, Undefined)
	r.bigintProto = proto(ClassObject, Undefined)
	r.errorProto = proto(ClassObject, Undefined)
	r.dateProto = proto(ClassObject, Undefined)
	r.regexpProto = proto(ClassObject, Undefined)
	r.errorProtos = map[string]Value{"Error": r.errorProto}
	for _, v := range []Value{r.objectProto, r.functionProto, r.arrayProto, r.stringProto, r.numberProto,
		r.booleanProto, r.symbolProto, r.bigintProto, r.errorProto, r.dateProto, r.regexpProto} {
		vm.heap.Header(v).SetFlag(gc.FlagPrototype)
	}

	env := vm.builtins
	env.Declare("undefined", Undefined, false)
	env.Declare("NaN", NaN, false)
	env.Declare("Infinity", Number(math.Inf(1)), false)
	r.globalObject = vm.mustAlloc(Object{Class: ClassObject, Proto: r.objectProto})
	env.Declare("globalThis", r.globalObject, true)

	vm.installObject()
	vm.installFunction()
	vm.installArray()
	vm.installString()
	vm.installNumber()
	vm.installBoolean()
	vm.installSymbol()
	vm.installBigInt()
	vm.installErrors()
	vm.installMath()
	vm.installConsole()
	vm.installDate()
	vm.installRegExp()
	vm.installJSON()
	vm.installGlobalFunctions()
}

// ---------------------------------------------------------------------------
// Global functions
// ---------------------------------------------------------------------------

func (vm *VM) installGlobalFunctions() {
	env := vm.builtins
	env.Declare("parseInt", vm.native("parseInt", 2, func(vm *VM, _ Value, args []Value) (Value, error) {
		s, err := vm.ToString(arg(args, 0))
		if err != nil {
			return Undefined, err
		}
		radix := 0
		if r := arg(args, 1); !r.IsUndefined() {
			f, err := vm.ToNumber(r)
			if err != nil {
				return Undefined, err
			}
			radix = int(ToInt32(f))
		}
		return Number(ParseInt(s, radix)), nil
	}), true)
	env.Declare("parseFloat", vm.native("parseFloat", 1, func(vm *VM, _ Value, args []Value) (Value, error) {
		s, err := vm.ToString(arg(args, 0))
		if err != nil {
			return Undefined, err
		}
		return Number(ParseFloat(s)), nil
	}), true)
	env.Declare("isNaN", vm.native("isNaN", 1, func(vm *VM, _ Value, args []Value) (Value, error) {
		f, err := vm.ToNumber(arg(args, 0))
		return Bool(math.IsNaN(f)), err
	}), true)
	env.Declare("isFinite", vm.native("isFinite", 1, func(vm *VM, _ Value, args []Value) (Value, error) {
		f, err := vm.ToNumber(arg(args, 0))
		return Bool(!math.IsNaN(f) && !math.IsInf(f, 0)), err
	}), true)
}

// ---------------------------------------------------------------------------
// console
// ---------------------------------------------------------------------------

func (vm *VM) installConsole() {
	console := vm.mustAlloc(Object{Class: ClassObject, Proto: vm.realm.objectProto})
	write := func(prefix string) NativeFunc {
		return func(vm *VM, _ Value, args []Value) (Value, error) {
			parts := make([]string, len(args))
			for i, a := range args {
				if a.IsString() {
					parts[i] = a.String()
				} else {
					parts[i] = a.Inspect()
				}
			}
			fmt.Fprintln(vm.out, prefix+strings.Join(parts, " "))
			return Undefined, nil
		}
	}
	vm.defineMethods(console, []builtinMethod{
		{"log", 0, write("")},
		{"info", 0, write("")},
		{"debug", 0, write("")},
		{"warn", 0, write("")},
		{"error", 0, write("")},
	})
	vm.builtins.Declare("console", console, true)
}

// ---------------------------------------------------------------------------
// Object
// ---------------------------------------------------------------------------

func (vm *VM) installObject() {
	objectProto := vm.realm.objectProto
	call := func(vm *VM, _ Value, args []Value) (Value, error) {
		v := arg(args, 0)
		if v.IsNullish() {
			return vm.NewObject()
		}
		return vm.toObject(v)
	}
	ctor := vm.constructor("Object", 1, objectProto, call, call)
	vm.defineMethods(ctor, objectStatics)
	vm.defineMethods(objectProto, objectMethods)
	vm.builtins.Declare("Object", ctor, true)
}

var objectStatics = []builtinMethod{
	{"keys", 1, func(vm *VM, _ Value, args []Value) (Value, error) {
		o, err := vm.toObject(arg(args, 0))
		if err != nil {
			return Undefined, err
		}
		return vm.stringArray(vm.ownKeys(o, true))
	}},
	{"values", 1, func(vm *VM, _ Value, args []Value) (Value, error) {
		o, err := vm.toObject(arg(args, 0))
		if err != nil {
			return Undefined, err
		}
		keys := vm.ownKeys(o, true)
		out := make([]Value, len(keys))
		for i, k := range keys {
			if out[i], err = vm.getProperty(o, k); err != nil {
				return Undefined, err
			}
		}
		return vm.NewArray(out)
	}},
	{"entries", 1, func(vm *VM, _ Value, args []Value) (Value, error) {
		o, err := vm.toObject(arg(args, 0))
		if err != nil {
			return Undefined, err
		}
		keys := vm.ownKeys(o, true)
		out := make([]Value, len(keys))
		for i, k := range keys {
			v, err := vm.getProperty(o, k)
			if err != nil {
				return Undefined, err
			}
			if out[i], err = vm.NewArray([]Value{String(k), v}); err != nil {
				return Undefined, err
			}
		}
		return vm.NewArray(out)
	}},
	{"getOwnPropertyNames", 1, func(vm *VM, _ Value, args []Value) (Value, error) {
		o, err := vm.toObject(arg(args, 0))
		if err != nil {
			return Undefined, err
		}
		keys := vm.ownKeys(o, false)
		if ob := o.Object(); ob != nil && ob.IsArrayLike() {
			keys = append(keys, "length")
		}
		return vm.stringArray(keys)
	}},
	{"assign", 2, func(vm *VM, _ Value, args []Value) (Value, error) {
		target, err := vm.toObject(arg(args, 0))
		if err != nil {
			return Undefined, err
		}
		for _, src := range args[1:] {
			if src.IsNullish() {
				continue
			}
			for _, k := range vm.ownKeys(src, true) {
				v, err := vm.getProperty(src, k)
				if err != nil {
					return Undefined, err
				}
				if err := vm.setProperty(target, k, v); err != nil {
					return Undefined, err
				}
			}
		}
		return target, nil
	}},
	{"create", 2, func(vm *VM, _ Value, args []Value) (Value, error) {
		proto := arg(args, 0)
		if !proto.IsObjectLike() && !proto.IsNull() {
			return Undefined, vm.throwError(TypeError, "Object prototype may only be an Object or null: %s", proto.String())
		}
		obj, err := vm.newObject(proto)
		if err != nil {
			return Undefined, err
		}
		if props := arg(args, 1); props.IsObjectLike() {
			for _, k := range vm.ownKeys(props, true) {
				desc, err := vm.getProperty(props, k)
				if err != nil {
					return Undefined, err
				}
				if err := vm.defineFromDescriptor(obj, k, desc); err != nil {
					return Undefined, err
				}
			}
		}
		return obj, nil
	}},
	{"defineProperty", 3, func(vm *VM, _ Value, args []Value) (Value, error) {
		obj := arg(args, 0)
		if !obj.IsObjectLike() {
			return Undefined, vm.throwError(TypeError, "Object.defineProperty called on non-object")
		}
		k, err := vm.propertyKey(arg(args, 1))
		if err != nil {
			return Undefined, err
		}
		return obj, vm.defineFromDescriptor(obj, k, arg(args, 2))
	}},
	{"getPrototypeOf", 1, func(vm *VM, _ Value, args []Value) (Value, error) {
		v := arg(args, 0)
		if v.IsNullish() {
			return Undefined, vm.throwError(TypeError, "Cannot convert undefined or null to object")
		}
		return vm.protoOf(v), nil
	}},
	{"setPrototypeOf", 2, func(vm *VM, _ Value, args []Value) (Value, error) {
		v, proto := arg(args, 0), arg(args, 1)
		if !proto.IsObjectLike() && !proto.IsNull() {
			return Undefined, vm.throwError(TypeError, "Object prototype may only be an Object or null: %s", proto.String())
		}
		switch v.kind {
		case KindObject:
			if !vm.heap.Header(v).IsExtensible() {
				return Undefined, vm.throwError(TypeError, "#<Object> is not extensible")
			}
			for p := proto; p.IsObjectLike(); p = vm.protoOf(p) {
				if StrictEquals(p, v) {
					return Undefined, vm.throwError(TypeError, "Cyclic __proto__ value")
				}
			}
			v.Object().Proto = proto
		case KindFunction:
			v.AsFunction().Proto = proto
		}
		return v, nil
	}},
	{"freeze", 1, func(vm *VM, _ Value, args []Value) (Value, error) {
		v := arg(args, 0)
		if o := v.Object(); o != nil {
			vm.heap.Header(v).Freeze()
			o.Props.clearAllFlags(PropWritable | PropConfigurable)
		} else if fn := v.AsFunction(); fn != nil {
			fn.Props.clearAllFlags(PropWritable | PropConfigurable)
		}
		return v, nil
	}},
	{"isFrozen", 1, func(vm *VM, _ Value, args []Value) (Value, error) {
		v := arg(args, 0)
		if v.kind != KindObject {
			return Bool(!v.IsObjectLike()), nil
		}
		hdr := vm.heap.Header(v)
		if hdr.IsFrozen() {
			return True, nil
		}
		o := v.Object()
		empty := !o.IsArrayLike() || len(o.Elements) == 0
		return Bool(!hdr.IsExtensible() && empty && o.Props.allFlagsClear(PropWritable|PropConfigurable)), nil
	}},
	{"seal", 1, func(vm *VM, _ Value, args []Value) (Value, error) {
		v := arg(args, 0)
		if o := v.Object(); o != nil {
			vm.heap.Header(v).Seal()
			o.Props.clearAllFlags(PropConfigurable)
		}
		return v, nil
	}},
	{"isSealed", 1, func(vm *VM, _ Value, args []Value) (Value, error) {
		v := arg(args, 0)
		if v.kind != KindObject {
			return Bool(!v.IsObjectLike()), nil
		}
		hdr := vm.heap.Header(v)
		return Bool(hdr.IsSealed() || (!hdr.IsExtensible() && v.Object().Props.allFlagsClear(PropConfigurable))), nil
	}},
	{"preventExtensions", 1, func(vm *VM, _ Value, args []Value) (Value, error) {
		v := arg(args, 0)
		if v.kind == KindObject {
			vm.heap.Header(v).PreventExtensions()
		}
		return v, nil
	}},
	{"isExtensible", 1, func(vm *VM, _ Value, args []Value) (Value, error) {
		v := arg(args, 0)
		if v.kind != KindObject {
			return Bool(v.IsObjectLike()), nil
		}
		return Bool(vm.heap.Header(v).IsExtensible()), nil
	}},
}

var objectMethods = []builtinMethod{
	{"hasOwnProperty", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		k, err := vm.propertyKey(arg(args, 0))
		if err != nil {
			return Undefined, err
		}
		o, err := vm.toObject(this)
		if err != nil {
			return Undefined, err
		}
		_, ok := vm.getOwn(o, k)
		return Bool(ok), nil
	}},
	{"propertyIsEnumerable", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		k, err := vm.propertyKey(arg(args, 0))
		if err != nil {
			return Undefined, err
		}
		for _, key := range vm.ownKeys(this, true) {
			if key == k {
				return True, nil
			}
		}
		return False, nil
	}},
	{"isPrototypeOf", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		v := arg(args, 0)
		for p, n := vm.protoOf(v), 0; p.IsObjectLike() && n < maxProtoDepth; p, n = vm.protoOf(p), n+1 {
			if StrictEquals(p, this) {
				return True, nil
			}
		}
		return False, nil
	}},
	{"toString", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
		return String("[object " + classOf(this) + "]"), nil
	}},
	{"toLocaleString", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
		s, err := vm.ToString(this)
		return String(s), err
	}},
	{"valueOf", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
		return vm.toObject(this)
	}},
}

// classOf returns the tag Object.prototype.toString reports.
func classOf(v Value) string {
	switch v.kind {
	case KindUndefined:
		return "Undefined"
	case KindNull:
		return "Null"
	case KindFunction:
		return "Function"
	case KindString:
		return "String"
	case KindNumber:
		return "Number"
	case KindBoolean:
		return "Boolean"
	case KindSymbol:
		return "Symbol"
	case KindBigInt:
		return "BigInt"
	case KindObject:
		if o := v.Object(); o != nil {
			return o.Class.String()
		}
	}
	return "Object"
}

// defineFromDescriptor applies a data property descriptor. Accessor
// descriptors are rejected.
func (vm *VM) defineFromDescriptor(obj Value, key string, desc Value) error {
	if !desc.IsObjectLike() {
		return vm.throwError(TypeError, "Property description must be an object: %s", desc.String())
	}
	if vm.hasProperty(desc, "get") || vm.hasProperty(desc, "set") {
		return vm.throwError(TypeError, "accessor properties are not supported")
	}
	flag := func(name string) (bool, error) {
		v, err := vm.getProperty(desc, name)
		return ToBoolean(v), err
	}
	var flags PropFlags
	for _, f := range []struct {
		name string
		bit  PropFlags
	}{{"writable", PropWritable}, {"enumerable", PropEnumerable}, {"configurable", PropConfigurable}} {
		on, err := flag(f.name)
		if err != nil {
			return err
		}
		if on {
			flags |= f.bit
		}
	}
	val, err := vm.getProperty(desc, "value")
	if err != nil {
		return err
	}
	switch obj.kind {
	case KindObject:
		o := obj.Object()
		hdr := vm.heap.Header(obj)
		if hdr.IsFrozen() || (!o.Props.Has(key) && !hdr.IsExtensible()) {
			return vm.throwError(TypeError, "Cannot define property %s, object is not extensible", key)
		}
		if o.IsArrayLike() {
			if idx, ok := arrayIndex(key); ok && idx <= len(o.Elements) {
				return vm.setProperty(obj, key, val)
			}
		}
		if f, ok := o.Props.Flags(key); ok && f&PropConfigurable == 0 {
			return vm.throwError(TypeError, "Cannot redefine property: %s", key)
		}
		o.Props.Define(key, val, flags)
	case KindFunction:
		obj.AsFunction().Props.Define(key, val, flags)
	case KindNativeObject:
		obj.AsNativeObject().Define(key, val, flags)
	}
	return nil
}

func (vm *VM) stringArray(keys []string) (Value, error) {
	out := make([]Value, len(keys))
	for i, k := range keys {
		out[i] = String(k)
	}
	return vm.NewArray(out)
}

// ---------------------------------------------------------------------------
// Function.prototype
// ---------------------------------------------------------------------------

func (vm *VM) installFunction() {
	fp := vm.realm.functionProto
	vm.defineMethods(fp, []builtinMethod{
		{"call", 1, func(vm *VM, this Value, args []Value) (Value, error) {
			var rest []Value
			if len(args) > 1 {
				rest = args[1:]
			}
			return vm.Call(this, arg(args, 0), rest)
		}},
		{"apply", 2, func(vm *VM, this Value, args []Value) (Value, error) {
			list, err := vm.listFromArrayLike(arg(args, 1))
			if err != nil {
				return Undefined, err
			}
			return vm.Call(this, arg(args, 0), list)
		}},
		{"bind", 1, func(vm *VM, this Value, args []Value) (Value, error) {
			target := this.AsFunction()
			if target == nil {
				return Undefined, vm.throwError(TypeError, "Bind must be called on a function")
			}
			boundThis := arg(args, 0)
			var bound []Value
			if len(args) > 1 {
				bound = append(bound, args[1:]...)
			}
			arity := target.Length() - len(bound)
			if arity < 0 {
				arity = 0
			}
			fn := NewNative("bound "+target.Name, arity, func(vm *VM, _ Value, args []Value) (Value, error) {
				return vm.Call(this, boundThis, append(append([]Value(nil), bound...), args...))
			})
			if target.IsConstructor() {
				fn.Construct = func(vm *VM, _ Value, args []Value) (Value, error) {
					return vm.Construct(this, append(append([]Value(nil), bound...), args...))
				}
			}
			return FunctionValue(fn), nil
		}},
		{"toString", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
			fn := this.AsFunction()
			if fn == nil {
				return Undefined, vm.throwError(TypeError, "Function.prototype.toString requires that 'this' be a Function")
			}
			return String(fn.sourceText()), nil
		}},
	})
	call := func(vm *VM, _ Value, _ []Value) (Value, error) {
		return Undefined, vm.throwError(TypeError, "Function constructor is not supported")
	}
	vm.builtins.Declare("Function", vm.constructor("Function", 1, fp, call, call), true)
}

// ---------------------------------------------------------------------------
// Boolean, Symbol, BigInt
// ---------------------------------------------------------------------------

func (vm *VM) installBoolean() {
	ctor := vm.constructor("Boolean", 1, vm.realm.booleanProto,
		func(vm *VM, _ Value, args []Value) (Value, error) {
			return Bool(ToBoolean(arg(args, 0))), nil
		},
		func(vm *VM, _ Value, args []Value) (Value, error) {
			return vm.newWrapper(ClassBoolean, Bool(ToBoolean(arg(args, 0))))
		})
	thisBool := func(vm *VM, this Value) (Value, error) {
		if this.kind == KindBoolean {
			return this, nil
		}
		if o := this.Object(); o != nil && o.Class == ClassBoolean {
			return o.Primitive, nil
		}
		return Undefined, vm.throwError(TypeError, "Boolean.prototype method called on incompatible receiver")
	}
	vm.defineMethods(vm.realm.booleanProto, []builtinMethod{
		{"toString", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
			b, err := thisBool(vm, this)
			return String(b.String()), err
		}},
		{"valueOf", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
			return thisBool(vm, this)
		}},
	})
	vm.builtins.Declare("Boolean", ctor, true)
}

func (vm *VM) installSymbol() {
	sp := vm.realm.symbolProto
	fn := NewNative("Symbol", 0, func(vm *VM, _ Value, args []Value) (Value, error) {
		desc := ""
		if d := arg(args, 0); !d.IsUndefined() {
			s, err := vm.ToString(d)
			if err != nil {
				return Undefined, err
			}
			desc = s
		}
		return vm.newSymbol(desc), nil
	})
	ctor := FunctionValue(fn)
	fn.Props.Define("prototype", sp, 0)
	sp.Object().Props.Define("constructor", ctor, PropHidden)
	vm.defineMethods(sp, []builtinMethod{
		{"toString", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
			if this.kind != KindSymbol {
				return Undefined, vm.throwError(TypeError, "Symbol.prototype.toString requires that 'this' be a Symbol")
			}
			return String(this.String()), nil
		}},
		{"valueOf", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
			return this, nil
		}},
	})
	defineValue(ctor, "iterator", vm.newSymbol("Symbol.iterator"))
	vm.builtins.Declare("Symbol", ctor, true)
}

func (vm *VM) installBigInt() {
	bp := vm.realm.bigintProto
	fn := NewNative("BigInt", 1, func(vm *VM, _ Value, args []Value) (Value, error) {
		v, err := vm.toPrimitive(arg(args, 0), hintNumber)
		if err != nil {
			return Undefined, err
		}
		switch v.kind {
		case KindBigInt:
			return v, nil
		case KindNumber:
			f := v.AsNumber()
			if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
				return Undefined, vm.throwError(RangeError, "The number %s cannot be converted to a BigInt because it is not an integer", FormatNumber(f))
			}
			b, _ := big.NewFloat(f).Int(nil)
			return BigInt(b), nil
		case KindBoolean:
			return BigInt(big.NewInt(int64(v.bits))), nil
		case KindString:
			if b, ok := parseBigInt(v.str); ok {
				return BigInt(b), nil
			}
			return Undefined, vm.throwError(SyntaxError, "Cannot convert %s to a BigInt", v.str)
		}
		return Undefined, vm.throwError(TypeError, "Cannot convert %s to a BigInt", v.String())
	})
	ctor := FunctionValue(fn)
	fn.Props.Define("prototype", bp, 0)
	bp.Object().Props.Define("constructor", ctor, PropHidden)
	vm.defineMethods(bp, []builtinMethod{
		{"toString", 0, func(vm *VM, this Value, args []Value) (Value, error) {
			b := this.AsBigInt()
			if b == nil {
				return Undefined, vm.throwError(TypeError, "BigInt.prototype.toString requires that 'this' be a BigInt")
			}
			radix := 10
			if r := arg(args, 0); !r.IsUndefined() {
				f, err := vm.ToNumber(r)
				if err != nil {
					return Undefined, err
				}
				radix = int(f)
				if radix < 2 || radix > 36 {
					return Undefined, vm.throwError(RangeError, "toString() radix must be between 2 and 36")
				}
			}
			return String(b.Text(radix)), nil
		}},
		{"valueOf", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
			return this, nil
		}},
	})
	vm.builtins.Declare("BigInt", ctor, true)
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var errorConstructors = []string{"TypeError", "ReferenceError", "RangeError", "SyntaxError", "EvalError", "URIError"}

func (vm *VM) installErrors() {
	ep := vm.realm.errorProto
	ep.Object().Props.Define("name", String("Error"), PropHidden)
	ep.Object().Props.Define("message", String(""), PropHidden)
	vm.defineMethods(ep, []builtinMethod{
		{"toString", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
			if !this.IsObjectLike() {
				return Undefined, vm.throwError(TypeError, "Error.prototype.toString called on non-object")
			}
			nv, err := vm.getProperty(this, "name")
			if err != nil {
				return Undefined, err
			}
			mv, err := vm.getProperty(this, "message")
			if err != nil {
				return Undefined, err
			}
			name, msg := "Error", ""
			if !nv.IsUndefined() {
				if name, err = vm.ToString(nv); err != nil {
					return Undefined, err
				}
			}
			if !mv.IsUndefined() {
				if msg, err = vm.ToString(mv); err != nil {
					return Undefined, err
				}
			}
			switch {
			case name == "":
				return String(msg), nil
			case msg == "":
				return String(name), nil
			}
			return String(name + ": " + msg), nil
		}},
	})
	base := vm.errorConstructor("Error", ep)
	vm.builtins.Declare("Error", base, true)

	for _, name := range errorConstructors {
		proto := vm.mustAlloc(Object{Class: ClassObject, Proto: ep})
		vm.heap.Header(proto).SetFlag(gc.FlagPrototype)
		proto.Object().Props.Define("name", String(name), PropHidden)
		proto.Object().Props.Define("message", String(""), PropHidden)
		vm.realm.errorProtos[name] = proto
		ctor := vm.errorConstructor(name, proto)
		ctor.AsFunction().Proto = base
		vm.builtins.Declare(name, ctor, true)
	}
}

func (vm *VM) errorConstructor(name string, proto Value) Value {
	construct := func(vm *VM, this Value, args []Value) (Value, error) {
		var obj Value
		if o := this.Object(); o != nil {
			// super(message) from a subclass constructor
			o.Class = ClassError
			obj = this
		} else {
			v, err := vm.alloc(Object{Class: ClassError, Proto: proto})
			if err != nil {
				return Undefined, err
			}
			obj = v
		}
		if m := arg(args, 0); !m.IsUndefined() {
			s, err := vm.ToString(m)
			if err != nil {
				return Undefined, err
			}
			obj.Object().Props.Define("message", String(s), PropHidden)
		}
		return obj, nil
	}
	call := func(vm *VM, _ Value, args []Value) (Value, error) {
		return construct(vm, Undefined, args)
	}
	return vm.constructor(name, 1, proto, call, construct)
}

// ---------------------------------------------------------------------------
// Math
// ---------------------------------------------------------------------------

func (vm *VM) installMath() {
	m := vm.mustAlloc(Object{Class: ClassObject, Proto: vm.realm.objectProto})
	unary := func(name string, f func(float64) float64) builtinMethod {
		return builtinMethod{name, 1, func(vm *VM, _ Value, args []Value) (Value, error) {
			x, err := vm.ToNumber(arg(args, 0))
			if err != nil {
				return Undefined, err
			}
			return Number(f(x)), nil
		}}
	}
	binary := func(name string, f func(float64, float64) float64) builtinMethod {
		return builtinMethod{name, 2, func(vm *VM, _ Value, args []Value) (Value, error) {
			x, err := vm.ToNumber(arg(args, 0))
			if err != nil {
				return Undefined, err
			}
			y, err := vm.ToNumber(arg(args, 1))
			if err != nil {
				return Undefined, err
			}
			return Number(f(x, y)), nil
		}}
	}
	extremum := func(name string, init float64, better func(a, b float64) bool) builtinMethod {
		return builtinMethod{name, 2, func(vm *VM, _ Value, args []Value) (Value, error) {
			r := init
			for _, a := range args {
				x, err := vm.ToNumber(a)
				if err != nil {
					return Undefined, err
				}
				if math.IsNaN(x) {
					r = x
				} else if !math.IsNaN(r) && better(x, r) {
					r = x
				}
			}
			return Number(r), nil
		}}
	}
	vm.defineMethods(m, []builtinMethod{
		unary("abs", math.Abs),
		unary("floor", math.Floor),
		unary("ceil", math.Ceil),
		unary("round", jsRound),
		unary("trunc", math.Trunc),
		unary("sign", func(x float64) float64 {
			switch {
			case x > 0:
				return 1
			case x < 0:
				return -1
			}
			return x
		}),
		unary("sqrt", math.Sqrt),
		unary("cbrt", math.Cbrt),
		unary("sin", math.Sin),
		unary("cos", math.Cos),
		unary("tan", math.Tan),
		unary("asin", math.Asin),
		unary("acos", math.Acos),
		unary("atan", math.Atan),
		unary("exp", math.Exp),
		unary("log", math.Log),
		unary("log2", math.Log2),
		unary("log10", math.Log10),
		binary("pow", jsPow),
		binary("atan2", math.Atan2),
		extremum("max", math.Inf(-1), func(a, b float64) bool {
			return a > b || (a == 0 && b == 0 && !math.Signbit(a))
		}),
		extremum("min", math.Inf(1), func(a, b float64) bool {
			return a < b || (a == 0 && b == 0 && math.Signbit(a))
		}),
		{"random", 0, func(vm *VM, _ Value, _ []Value) (Value, error) {
			return Number(vm.rand.Float64()), nil
		}},
		{"hypot", 2, func(vm *VM, _ Value, args []Value) (Value, error) {
			sum := 0.0
			for _, a := range args {
				x, err := vm.ToNumber(a)
				if err != nil {
					return Undefined, err
				}
				if math.IsInf(x, 0) {
					return Number(math.Inf(1)), nil
				}
				sum += x * x
			}
			return Number(math.Sqrt(sum)), nil
		}},
	})
	for name, v := range map[string]float64{
		"PI": math.Pi, "E": math.E, "LN2": math.Ln2, "LN10": math.Ln10,
		"LOG2E": math.Log2E, "LOG10E": math.Log10E, "SQRT2": math.Sqrt2, "SQRT1_2": math.Sqrt2 / 2,
	} {
		defineValue(m, name, Number(v))
	}
	vm.builtins.Declare("Math", m, true)
}

// jsRound rounds half-way cases toward +Infinity.
func jsRound(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	r := math.Floor(x)
	if x-r >= 0.5 {
		r++
	}
	if r == 0 && math.Signbit(x) {
		return math.Copysign(0, -1)
	}
	return r
}
