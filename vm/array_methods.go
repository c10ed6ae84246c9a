package vm

import (
	"math"
	"slices"
	"strings"
)

func (vm *VM) installArray() {
	ap := vm.realm.arrayProto
	construct := func(vm *VM, _ Value, args []Value) (Value, error) {
		if len(args) == 1 && args[0].kind == KindNumber {
			f := args[0].AsNumber()
			n := int(f)
			if float64(n) != f || n < 0 || n > maxArrayGap*4 {
				return Undefined, vm.throwError(RangeError, "Invalid array length")
			}
			elems := make([]Value, n)
			return vm.NewArray(elems)
		}
		return vm.NewArray(append([]Value(nil), args...))
	}
	ctor := vm.constructor("Array", 1, ap, construct, construct)
	vm.defineMethods(ctor, []builtinMethod{
		{"isArray", 1, func(vm *VM, _ Value, args []Value) (Value, error) {
			o := arg(args, 0).Object()
			return Bool(o != nil && o.Class == ClassArray), nil
		}},
		{"of", 0, func(vm *VM, _ Value, args []Value) (Value, error) {
			return vm.NewArray(append([]Value(nil), args...))
		}},
		{"from", 1, func(vm *VM, _ Value, args []Value) (Value, error) {
			src := arg(args, 0)
			var items []Value
			var err error
			switch {
			case src.IsNullish():
				return Undefined, vm.throwError(TypeError, "%s is not iterable", src.String())
			case src.kind == KindString:
				items, err = vm.iterableToList(src)
			default:
				items, err = vm.listFromArrayLike(src)
			}
			if err != nil {
				return Undefined, err
			}
			if fn := arg(args, 1); !fn.IsUndefined() {
				if fn.kind != KindFunction {
					return Undefined, vm.throwError(TypeError, "%s is not a function", describe(fn))
				}
				for i, v := range items {
					if items[i], err = vm.Call(fn, arg(args, 2), []Value{v, Int(i)}); err != nil {
						return Undefined, err
					}
				}
			}
			return vm.NewArray(items)
		}},
	})
	vm.defineMethods(ap, arrayMethods)
	vm.builtins.Declare("Array", ctor, true)
}

// thisArray returns the receiver of an Array.prototype method.
func thisArray(vm *VM, this Value, method string) (*Object, error) {
	if o := this.Object(); o != nil && o.IsArrayLike() {
		return o, nil
	}
	return nil, vm.throwError(TypeError, "Array.prototype.%s called on %s", method, describe(this))
}

// mutableArray is thisArray for methods that modify the receiver.
func mutableArray(vm *VM, this Value, method string) (*Object, error) {
	o, err := thisArray(vm, this, method)
	if err != nil {
		return nil, err
	}
	if vm.heap.Header(this).IsFrozen() {
		return nil, vm.throwError(TypeError, "Cannot modify frozen array (Array.prototype.%s)", method)
	}
	return o, nil
}

func callbackArg(vm *VM, args []Value) (Value, error) {
	fn := arg(args, 0)
	if fn.kind != KindFunction {
		return Undefined, vm.throwError(TypeError, "%s is not a function", describe(fn))
	}
	return fn, nil
}

// relativeIndex resolves an optional relative index argument.
func (vm *VM) relativeIndex(args []Value, i int, n int, def int) (int, error) {
	if arg(args, i).IsUndefined() {
		return def, nil
	}
	f, err := vm.intArg(args, i, 0)
	if err != nil {
		return 0, err
	}
	return clampIndex(f, n), nil
}

// iterate calls fn(element, index, array) for each index below the
// starting length that is still present, stopping when visit says so.
func (vm *VM) iterate(this Value, args []Value, method string, visit func(i int, v, r Value) (bool, error)) error {
	o, err := thisArray(vm, this, method)
	if err != nil {
		return err
	}
	fn, err := callbackArg(vm, args)
	if err != nil {
		return err
	}
	thisArg := arg(args, 1)
	n := len(o.Elements)
	for i := 0; i < n && i < len(o.Elements); i++ {
		v := o.Elements[i]
		r, err := vm.Call(fn, thisArg, []Value{v, Int(i), this})
		if err != nil {
			return err
		}
		stop, err := visit(i, v, r)
		if err != nil || stop {
			return err
		}
	}
	return nil
}

// join concatenates the string forms of the elements of o. Nullish
// elements and arrays already being joined contribute "".
func (vm *VM) join(o *Object, sep string) (string, error) {
	if vm.joining == nil {
		vm.joining = make(map[*Object]bool)
	}
	if vm.joining[o] {
		return "", nil
	}
	vm.joining[o] = true
	defer delete(vm.joining, o)
	var sb strings.Builder
	for i := 0; i < len(o.Elements); i++ {
		if i > 0 {
			sb.WriteString(sep)
		}
		el := o.Elements[i]
		if el.IsNullish() {
			continue
		}
		s, err := vm.ToString(el)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

func (vm *VM) reduce(this Value, args []Value, method string, right bool) (Value, error) {
	o, err := thisArray(vm, this, method)
	if err != nil {
		return Undefined, err
	}
	fn, err := callbackArg(vm, args)
	if err != nil {
		return Undefined, err
	}
	n := len(o.Elements)
	i, step := 0, 1
	if right {
		i, step = n-1, -1
	}
	var acc Value
	if len(args) >= 2 {
		acc = args[1]
	} else {
		if n == 0 {
			return Undefined, vm.throwError(TypeError, "Reduce of empty array with no initial value")
		}
		acc = o.Elements[i]
		i += step
	}
	for ; i >= 0 && i < n; i += step {
		if i >= len(o.Elements) {
			continue
		}
		if acc, err = vm.Call(fn, Undefined, []Value{acc, o.Elements[i], Int(i), this}); err != nil {
			return Undefined, err
		}
	}
	return acc, nil
}

// find implements find, findIndex, findLast and findLastIndex.
func (vm *VM) find(this Value, args []Value, method string, last, index bool) (Value, error) {
	o, err := thisArray(vm, this, method)
	if err != nil {
		return Undefined, err
	}
	fn, err := callbackArg(vm, args)
	if err != nil {
		return Undefined, err
	}
	n := len(o.Elements)
	for k := 0; k < n; k++ {
		i := k
		if last {
			i = n - 1 - k
		}
		v := Undefined
		if i < len(o.Elements) {
			v = o.Elements[i]
		}
		r, err := vm.Call(fn, arg(args, 1), []Value{v, Int(i), this})
		if err != nil {
			return Undefined, err
		}
		if ToBoolean(r) {
			if index {
				return Int(i), nil
			}
			return v, nil
		}
	}
	if index {
		return Int(-1), nil
	}
	return Undefined, nil
}

// sortValues sorts in place with an optional comparator. Undefined values
// sort to the end and the sort is stable.
func (vm *VM) sortValues(items []Value, cmp Value) error {
	var firstErr error
	slices.SortStableFunc(items, func(a, b Value) int {
		if firstErr != nil {
			return 0
		}
		switch {
		case a.IsUndefined() && b.IsUndefined():
			return 0
		case a.IsUndefined():
			return 1
		case b.IsUndefined():
			return -1
		}
		if cmp.kind == KindFunction {
			r, err := vm.Call(cmp, Undefined, []Value{a, b})
			if err != nil {
				firstErr = err
				return 0
			}
			f, err := vm.ToNumber(r)
			if err != nil {
				firstErr = err
				return 0
			}
			switch {
			case f < 0:
				return -1
			case f > 0:
				return 1
			}
			return 0
		}
		x, err := vm.ToString(a)
		if err != nil {
			firstErr = err
			return 0
		}
		y, err := vm.ToString(b)
		if err != nil {
			firstErr = err
			return 0
		}
		return compareStrings(x, y)
	})
	return firstErr
}

func (vm *VM) flatten(out []Value, items []Value, depth float64) ([]Value, error) {
	for _, v := range items {
		if o := v.Object(); o != nil && o.Class == ClassArray && depth >= 1 {
			var err error
			if out, err = vm.flatten(out, o.Elements, depth-1); err != nil {
				return nil, err
			}
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

var arrayMethods = []builtinMethod{
	{"push", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		o, err := mutableArray(vm, this, "push")
		if err != nil {
			return Undefined, err
		}
		if !vm.heap.Header(this).IsExtensible() && len(args) > 0 {
			return Undefined, vm.throwError(TypeError, "Cannot add property %d, object is not extensible", len(o.Elements))
		}
		o.Elements = append(o.Elements, args...)
		return Int(len(o.Elements)), nil
	}},
	{"pop", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
		o, err := mutableArray(vm, this, "pop")
		if err != nil {
			return Undefined, err
		}
		n := len(o.Elements)
		if n == 0 {
			return Undefined, nil
		}
		v := o.Elements[n-1]
		o.Elements[n-1] = Undefined
		o.Elements = o.Elements[:n-1]
		return v, nil
	}},
	{"shift", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
		o, err := mutableArray(vm, this, "shift")
		if err != nil {
			return Undefined, err
		}
		if len(o.Elements) == 0 {
			return Undefined, nil
		}
		v := o.Elements[0]
		o.Elements = slices.Delete(o.Elements, 0, 1)
		return v, nil
	}},
	{"unshift", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		o, err := mutableArray(vm, this, "unshift")
		if err != nil {
			return Undefined, err
		}
		o.Elements = slices.Insert(o.Elements, 0, args...)
		return Int(len(o.Elements)), nil
	}},
	{"join", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		o, err := thisArray(vm, this, "join")
		if err != nil {
			return Undefined, err
		}
		sep := ","
		if s := arg(args, 0); !s.IsUndefined() {
			if sep, err = vm.ToString(s); err != nil {
				return Undefined, err
			}
		}
		s, err := vm.join(o, sep)
		return String(s), err
	}},
	{"toString", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
		o := this.Object()
		if o == nil || !o.IsArrayLike() {
			return String("[object " + classOf(this) + "]"), nil
		}
		s, err := vm.join(o, ",")
		return String(s), err
	}},
	{"toLocaleString", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
		o, err := thisArray(vm, this, "toLocaleString")
		if err != nil {
			return Undefined, err
		}
		s, err := vm.join(o, ",")
		return String(s), err
	}},
	{"slice", 2, func(vm *VM, this Value, args []Value) (Value, error) {
		o, err := thisArray(vm, this, "slice")
		if err != nil {
			return Undefined, err
		}
		n := len(o.Elements)
		start, err := vm.relativeIndex(args, 0, n, 0)
		if err != nil {
			return Undefined, err
		}
		end, err := vm.relativeIndex(args, 1, n, n)
		if err != nil {
			return Undefined, err
		}
		if end < start {
			end = start
		}
		return vm.NewArray(append([]Value(nil), o.Elements[start:end]...))
	}},
	{"splice", 2, func(vm *VM, this Value, args []Value) (Value, error) {
		o, err := mutableArray(vm, this, "splice")
		if err != nil {
			return Undefined, err
		}
		n := len(o.Elements)
		start, err := vm.relativeIndex(args, 0, n, 0)
		if err != nil {
			return Undefined, err
		}
		count := n - start
		if len(args) == 0 {
			count = 0
		} else if len(args) >= 2 {
			f, err := vm.intArg(args, 1, 0)
			if err != nil {
				return Undefined, err
			}
			count = clamp(f, n-start)
		}
		removed := append([]Value(nil), o.Elements[start:start+count]...)
		var inserts []Value
		if len(args) > 2 {
			inserts = args[2:]
		}
		o.Elements = slices.Replace(o.Elements, start, start+count, inserts...)
		return vm.NewArray(removed)
	}},
	{"concat", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		o, err := thisArray(vm, this, "concat")
		if err != nil {
			return Undefined, err
		}
		out := append([]Value(nil), o.Elements...)
		for _, a := range args {
			if ao := a.Object(); ao != nil && ao.Class == ClassArray {
				out = append(out, ao.Elements...)
				continue
			}
			out = append(out, a)
		}
		return vm.NewArray(out)
	}},
	{"indexOf", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		o, err := thisArray(vm, this, "indexOf")
		if err != nil {
			return Undefined, err
		}
		from, err := vm.relativeIndex(args, 1, len(o.Elements), 0)
		if err != nil {
			return Undefined, err
		}
		target := arg(args, 0)
		for i := from; i < len(o.Elements); i++ {
			if StrictEquals(o.Elements[i], target) {
				return Int(i), nil
			}
		}
		return Int(-1), nil
	}},
	{"lastIndexOf", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		o, err := thisArray(vm, this, "lastIndexOf")
		if err != nil {
			return Undefined, err
		}
		n := len(o.Elements)
		from := n - 1
		if len(args) > 1 {
			f, err := vm.intArg(args, 1, 0)
			if err != nil {
				return Undefined, err
			}
			if f < 0 {
				f += float64(n)
			}
			from = int(math.Min(f, float64(n-1)))
		}
		target := arg(args, 0)
		for i := from; i >= 0; i-- {
			if StrictEquals(o.Elements[i], target) {
				return Int(i), nil
			}
		}
		return Int(-1), nil
	}},
	{"includes", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		o, err := thisArray(vm, this, "includes")
		if err != nil {
			return Undefined, err
		}
		from, err := vm.relativeIndex(args, 1, len(o.Elements), 0)
		if err != nil {
			return Undefined, err
		}
		target := arg(args, 0)
		for i := from; i < len(o.Elements); i++ {
			if SameValueZero(o.Elements[i], target) {
				return True, nil
			}
		}
		return False, nil
	}},
	{"reverse", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
		o, err := mutableArray(vm, this, "reverse")
		if err != nil {
			return Undefined, err
		}
		slices.Reverse(o.Elements)
		return this, nil
	}},
	{"sort", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		o, err := mutableArray(vm, this, "sort")
		if err != nil {
			return Undefined, err
		}
		cmp := arg(args, 0)
		if !cmp.IsUndefined() && cmp.kind != KindFunction {
			return Undefined, vm.throwError(TypeError, "The comparison function must be either a function or undefined")
		}
		items := append([]Value(nil), o.Elements...)
		if err := vm.sortValues(items, cmp); err != nil {
			return Undefined, err
		}
		copy(o.Elements, items)
		return this, nil
	}},
	{"fill", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		o, err := mutableArray(vm, this, "fill")
		if err != nil {
			return Undefined, err
		}
		n := len(o.Elements)
		start, err := vm.relativeIndex(args, 1, n, 0)
		if err != nil {
			return Undefined, err
		}
		end, err := vm.relativeIndex(args, 2, n, n)
		if err != nil {
			return Undefined, err
		}
		for i := start; i < end; i++ {
			o.Elements[i] = arg(args, 0)
		}
		return this, nil
	}},
	{"at", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		o, err := thisArray(vm, this, "at")
		if err != nil {
			return Undefined, err
		}
		f, err := vm.intArg(args, 0, 0)
		if err != nil {
			return Undefined, err
		}
		if f < 0 {
			f += float64(len(o.Elements))
		}
		if f < 0 || f >= float64(len(o.Elements)) {
			return Undefined, nil
		}
		return o.Elements[int(f)], nil
	}},
	{"flat", 0, func(vm *VM, this Value, args []Value) (Value, error) {
		o, err := thisArray(vm, this, "flat")
		if err != nil {
			return Undefined, err
		}
		depth, err := vm.intArg(args, 0, 1)
		if err != nil {
			return Undefined, err
		}
		out, err := vm.flatten(nil, o.Elements, depth)
		if err != nil {
			return Undefined, err
		}
		return vm.NewArray(out)
	}},
	{"flatMap", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		var mapped []Value
		err := vm.iterate(this, args, "flatMap", func(_ int, _, r Value) (bool, error) {
			mapped = append(mapped, r)
			return false, nil
		})
		if err != nil {
			return Undefined, err
		}
		out, err := vm.flatten(nil, mapped, 1)
		if err != nil {
			return Undefined, err
		}
		return vm.NewArray(out)
	}},
	{"forEach", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		return Undefined, vm.iterate(this, args, "forEach", func(int, Value, Value) (bool, error) {
			return false, nil
		})
	}},
	{"map", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		var out []Value
		if o := this.Object(); o != nil {
			out = make([]Value, 0, len(o.Elements))
		}
		err := vm.iterate(this, args, "map", func(_ int, _, r Value) (bool, error) {
			out = append(out, r)
			return false, nil
		})
		if err != nil {
			return Undefined, err
		}
		return vm.NewArray(out)
	}},
	{"filter", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		var out []Value
		err := vm.iterate(this, args, "filter", func(_ int, v, r Value) (bool, error) {
			if ToBoolean(r) {
				out = append(out, v)
			}
			return false, nil
		})
		if err != nil {
			return Undefined, err
		}
		return vm.NewArray(out)
	}},
	{"some", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		found := false
		err := vm.iterate(this, args, "some", func(_ int, _, r Value) (bool, error) {
			found = ToBoolean(r)
			return found, nil
		})
		return Bool(found), err
	}},
	{"every", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		all := true
		err := vm.iterate(this, args, "every", func(_ int, _, r Value) (bool, error) {
			all = ToBoolean(r)
			return !all, nil
		})
		return Bool(all), err
	}},
	{"reduce", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		return vm.reduce(this, args, "reduce", false)
	}},
	{"reduceRight", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		return vm.reduce(this, args, "reduceRight", true)
	}},
	{"find", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		return vm.find(this, args, "find", false, false)
	}},
	{"findIndex", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		return vm.find(this, args, "findIndex", false, true)
	}},
	{"findLast", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		return vm.find(this, args, "findLast", true, false)
	}},
	{"findLastIndex", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		return vm.find(this, args, "findLastIndex", true, true)
	}},
}
