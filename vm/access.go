package vm

import (
	"strconv"
)

// maxProtoDepth guards prototype walks against cycles.
const maxProtoDepth = 10000

// ---------------------------------------------------------------------------
// Keys
// ---------------------------------------------------------------------------

// propertyKey converts a computed key to its string form.
func (vm *VM) propertyKey(key Value) (string, error) {
	switch key.kind {
	case KindString:
		return key.str, nil
	case KindNumber:
		return FormatNumber(key.AsNumber()), nil
	case KindSymbol:
		return symbolKey(key), nil
	}
	return vm.ToString(key)
}

func symbolKey(sym Value) string {
	return symbolKeyPrefix + strconv.FormatUint(sym.ptr.(*symbol).id, 10)
}

// ---------------------------------------------------------------------------
// Prototype chain
// ---------------------------------------------------------------------------

// protoOf returns the prototype of v, boxing primitives implicitly.
func (vm *VM) protoOf(v Value) Value {
	switch v.kind {
	case KindObject:
		if o := v.Object(); o != nil {
			return o.Proto
		}
		return Null
	case KindFunction:
		if p := v.AsFunction().Proto; p.IsObjectLike() || p.IsNull() {
			return p
		}
		return vm.realm.functionProto
	case KindNativeObject:
		return vm.realm.objectProto
	case KindString:
		return vm.realm.stringProto
	case KindNumber:
		return vm.realm.numberProto
	case KindBoolean:
		return vm.realm.booleanProto
	case KindSymbol:
		return vm.realm.symbolProto
	case KindBigInt:
		return vm.realm.bigintProto
	}
	return Null
}

// getOwn looks up an own property of an object-like value, including the
// virtual properties of arrays, strings and functions.
func (vm *VM) getOwn(v Value, key string) (Value, bool) {
	switch v.kind {
	case KindObject:
		o := v.Object()
		if o == nil {
			return Undefined, false
		}
		if vm.isGlobalObject(v) {
			if b, ok := vm.globals.Lookup(key); ok && b.Initialized {
				return b.Value, true
			}
		}
		return vm.getObjectOwn(o, key)
	case KindFunction:
		return vm.getFunctionOwn(v.AsFunction(), key)
	case KindNativeObject:
		return v.AsNativeObject().Get(key)
	}
	return Undefined, false
}

func (vm *VM) getObjectOwn(o *Object, key string) (Value, bool) {
	switch o.Class {
	case ClassArray, ClassArguments:
		if key == "length" {
			return Int(len(o.Elements)), true
		}
		if idx, ok := arrayIndex(key); ok {
			if idx < len(o.Elements) {
				return o.Elements[idx], true
			}
			return Undefined, false
		}
	case ClassString:
		s := o.Primitive.str
		if key == "length" {
			return Int(StringLength(s)), true
		}
		if idx, ok := arrayIndex(key); ok && idx < StringLength(s) {
			return String(utf16Slice(s, idx, idx+1)), true
		}
	}
	return o.Props.Get(key)
}

func (vm *VM) getFunctionOwn(fn *Function, key string) (Value, bool) {
	if v, ok := fn.Props.Get(key); ok {
		return v, true
	}
	switch key {
	case "prototype":
		if fn.Template == nil || !fn.IsConstructor() {
			return Undefined, false
		}
		proto, err := vm.newObject(vm.realm.objectProto)
		if err != nil {
			return Undefined, false
		}
		proto.Object().Props.Define("constructor", FunctionValue(fn), PropHidden)
		fn.Props.Define("prototype", proto, PropWritable)
		return proto, true
	case "name":
		return String(fn.Name), true
	case "length":
		return Int(fn.Length()), true
	}
	return Undefined, false
}

// getOwnOrProto finds key on o or its prototype chain without running
// script code.
func (vm *VM) getOwnOrProto(o *Object, key string) (Value, bool) {
	if v, ok := vm.getObjectOwn(o, key); ok {
		return v, true
	}
	return vm.lookupChain(o.Proto, key)
}

// lookupChain searches proto and its ancestors for key.
func (vm *VM) lookupChain(proto Value, key string) (Value, bool) {
	for n := 0; proto.IsObjectLike() && n < maxProtoDepth; n++ {
		if v, ok := vm.getOwn(proto, key); ok {
			return v, true
		}
		proto = vm.protoOf(proto)
	}
	return Undefined, false
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

// GetProperty reads v[key].
func (vm *VM) GetProperty(v Value, key string) (Value, error) {
	return vm.getProperty(v, key)
}

func (vm *VM) getProperty(v Value, key string) (Value, error) {
	switch v.kind {
	case KindUndefined, KindNull, kindHole:
		return Undefined, vm.throwError(TypeError, "Cannot read properties of %s (reading '%s')", v.String(), displayKey(key))
	case KindString:
		if key == "length" {
			return Int(StringLength(v.str)), nil
		}
		if idx, ok := arrayIndex(key); ok {
			if idx < StringLength(v.str) {
				return String(utf16Slice(v.str, idx, idx+1)), nil
			}
			return Undefined, nil
		}
	case KindSymbol:
		if key == "description" {
			return String(v.ptr.(*symbol).description), nil
		}
	case KindObject:
		if v.Object() == nil {
			return Undefined, errStaleObject
		}
		if r, ok := vm.getOwn(v, key); ok {
			return r, nil
		}
	case KindFunction, KindNativeObject:
		if r, ok := vm.getOwn(v, key); ok {
			return r, nil
		}
	}
	r, _ := vm.lookupChain(vm.protoOf(v), key)
	return r, nil
}

// getElement reads obj[key] for a computed key.
func (vm *VM) getElement(obj, key Value) (Value, error) {
	if key.kind == KindNumber && obj.kind == KindObject {
		if o := obj.Object(); o != nil && o.IsArrayLike() {
			f := key.AsNumber()
			if i := int(f); float64(i) == f && i >= 0 && i < len(o.Elements) {
				return o.Elements[i], nil
			}
		}
	}
	if obj.IsNullish() {
		k, _ := vm.propertyKey(key)
		return Undefined, vm.throwError(TypeError, "Cannot read properties of %s (reading '%s')", obj.String(), displayKey(k))
	}
	k, err := vm.propertyKey(key)
	if err != nil {
		return Undefined, err
	}
	return vm.getProperty(obj, k)
}

func displayKey(key string) string {
	if len(key) >= len(symbolKeyPrefix) && key[:len(symbolKeyPrefix)] == symbolKeyPrefix {
		return "Symbol()"
	}
	return key
}

// hasProperty reports whether key is an own or inherited property.
func (vm *VM) hasProperty(v Value, key string) bool {
	if _, ok := vm.getOwn(v, key); ok {
		return true
	}
	_, ok := vm.lookupChain(vm.protoOf(v), key)
	return ok
}

// ---------------------------------------------------------------------------
// Set and delete
// ---------------------------------------------------------------------------

// SetProperty assigns v[key] = val.
func (vm *VM) SetProperty(v Value, key string, val Value) error {
	return vm.setProperty(v, key, val)
}

// setProperty assigns a property. Writes that frozen objects, read-only
// properties or non-extensible objects reject are silently ignored.
func (vm *VM) setProperty(v Value, key string, val Value) error {
	switch v.kind {
	case KindUndefined, KindNull, kindHole:
		return vm.throwError(TypeError, "Cannot set properties of %s (setting '%s')", v.String(), displayKey(key))
	case KindObject:
		o := v.Object()
		if o == nil {
			return errStaleObject
		}
		if vm.isGlobalObject(v) {
			return vm.globals.Set(key, val)
		}
		hdr := vm.heap.Header(v)
		if hdr.IsFrozen() {
			return nil
		}
		if o.IsArrayLike() {
			if key == "length" {
				return vm.setLength(o, hdr.IsExtensible(), val)
			}
			if idx, ok := arrayIndex(key); ok {
				if idx < len(o.Elements) {
					o.Elements[idx] = val
					return nil
				}
				if !hdr.IsExtensible() {
					return nil
				}
				if idx-len(o.Elements) > maxArrayGap {
					return vm.throwError(RangeError, "Invalid array length")
				}
				for len(o.Elements) < idx {
					o.Elements = append(o.Elements, Undefined)
				}
				o.Elements = append(o.Elements, val)
				return nil
			}
		}
		if !o.Props.Has(key) && !hdr.IsExtensible() {
			return nil
		}
		o.Props.Set(key, val)
	case KindFunction:
		fn := v.AsFunction()
		if !fn.Props.Has(key) && (key == "name" || key == "length") {
			return nil
		}
		fn.Props.Set(key, val)
	case KindNativeObject:
		v.AsNativeObject().Set(key, val)
	}
	return nil
}

// maxArrayGap bounds how far past the end a single index write may extend
// a dense array.
const maxArrayGap = 1 << 24

func (vm *VM) setLength(o *Object, extensible bool, val Value) error {
	f, err := vm.ToNumber(val)
	if err != nil {
		return err
	}
	n := int(f)
	if float64(n) != f || n < 0 || n > maxArrayGap*4 {
		return vm.throwError(RangeError, "Invalid array length")
	}
	if n <= len(o.Elements) {
		for i := n; i < len(o.Elements); i++ {
			o.Elements[i] = Undefined
		}
		o.Elements = o.Elements[:n]
		return nil
	}
	if !extensible {
		return nil
	}
	for len(o.Elements) < n {
		o.Elements = append(o.Elements, Undefined)
	}
	return nil
}

func (vm *VM) setElement(obj, key, val Value) error {
	if key.kind == KindNumber && obj.kind == KindObject {
		if o := obj.Object(); o != nil && o.IsArrayLike() {
			f := key.AsNumber()
			if i := int(f); float64(i) == f && i >= 0 && i < len(o.Elements) && !vm.heap.Header(obj).IsFrozen() {
				o.Elements[i] = val
				return nil
			}
		}
	}
	k, err := vm.propertyKey(key)
	if err != nil {
		return err
	}
	return vm.setProperty(obj, k, val)
}

// deleteElement implements the delete operator. It reports false when the
// property is sealed or not configurable.
func (vm *VM) deleteElement(obj, key Value) (bool, error) {
	if !obj.IsObjectLike() {
		return false, vm.throwError(TypeError, "Cannot delete property of %s", obj.TypeOf())
	}
	k, err := vm.propertyKey(key)
	if err != nil {
		return false, err
	}
	switch obj.kind {
	case KindObject:
		o := obj.Object()
		if o == nil {
			return false, errStaleObject
		}
		hdr := vm.heap.Header(obj)
		if o.IsArrayLike() {
			if k == "length" {
				return false, nil
			}
			if idx, ok := arrayIndex(k); ok {
				if idx >= len(o.Elements) {
					return true, nil
				}
				if hdr.IsSealed() {
					return false, nil
				}
				o.Elements[idx] = Undefined
				return true, nil
			}
		}
		if !o.Props.Has(k) {
			return true, nil
		}
		if hdr.IsSealed() {
			return false, nil
		}
		return o.Props.Delete(k), nil
	case KindFunction:
		return obj.AsFunction().Props.Delete(k), nil
	default:
		return obj.AsNativeObject().Delete(k), nil
	}
}

// ---------------------------------------------------------------------------
// Arrays
// ---------------------------------------------------------------------------

// arrayPush appends val (or, when spread, each element of val) to arr.
func (vm *VM) arrayPush(arr, val Value, spread bool) error {
	o := arr.Object()
	if o == nil {
		return errStaleObject
	}
	if !spread {
		o.Elements = append(o.Elements, val)
		return nil
	}
	items, err := vm.iterableToList(val)
	if err != nil {
		return err
	}
	o.Elements = append(o.Elements, items...)
	return nil
}

// listFromArrayLike copies the elements of an array-like value.
func (vm *VM) listFromArrayLike(v Value) ([]Value, error) {
	if v.IsNullish() {
		return nil, nil
	}
	if o := v.Object(); o != nil && o.IsArrayLike() {
		return append([]Value(nil), o.Elements...), nil
	}
	if !v.IsObjectLike() {
		return nil, vm.throwError(TypeError, "CreateListFromArrayLike called on non-object")
	}
	lv, err := vm.getProperty(v, "length")
	if err != nil {
		return nil, err
	}
	f, err := vm.ToNumber(lv)
	if err != nil {
		return nil, err
	}
	n := int(ToIntegerOrInfinity(f))
	if n < 0 {
		n = 0
	}
	if n > maxArrayGap {
		return nil, vm.throwError(RangeError, "Invalid array length")
	}
	out := make([]Value, n)
	for i := range out {
		if out[i], err = vm.getProperty(v, strconv.Itoa(i)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// iterableToList expands arrays, arguments objects and strings.
func (vm *VM) iterableToList(v Value) ([]Value, error) {
	switch v.kind {
	case KindString:
		var out []Value
		for _, r := range v.str {
			out = append(out, String(string(r)))
		}
		return out, nil
	case KindObject:
		if o := v.Object(); o != nil {
			switch o.Class {
			case ClassArray, ClassArguments:
				return append([]Value(nil), o.Elements...), nil
			case ClassString:
				return vm.iterableToList(o.Primitive)
			}
		}
	}
	return nil, vm.throwError(TypeError, "%s is not iterable", describe(v))
}
