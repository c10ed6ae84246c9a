package vm

import "strconv"

// propertyIterator drives for-in (keys) and for-of (values) loops.
//
// for-in snapshots the enumerable keys, own and inherited, when the loop
// starts. for-of over an array reads the live array so elements appended
// during the loop are visited.
type propertyIterator struct {
	keys []string
	pos  int

	source Value   // array being iterated by value
	values []Value // pre-expanded values (strings)
	byVal  bool
}

func (vm *VM) newIterator(v Value, values bool) (Value, error) {
	it := &propertyIterator{byVal: values}
	if !values {
		if !v.IsNullish() {
			it.keys = vm.enumerableKeys(v)
		}
		return iteratorValue(it), nil
	}
	if o := v.Object(); o != nil && o.IsArrayLike() {
		it.source = v
		return iteratorValue(it), nil
	}
	list, err := vm.iterableToList(v)
	if err != nil {
		return Undefined, err
	}
	it.values = list
	return iteratorValue(it), nil
}

func (it *propertyIterator) done(vm *VM) bool {
	switch {
	case !it.byVal:
		return it.pos >= len(it.keys)
	case it.source.kind == KindObject:
		o := it.source.Object()
		return o == nil || it.pos >= len(o.Elements)
	default:
		return it.pos >= len(it.values)
	}
}

func (it *propertyIterator) next(vm *VM) Value {
	i := it.pos
	it.pos++
	switch {
	case !it.byVal:
		return String(it.keys[i])
	case it.source.kind == KindObject:
		return it.source.Object().Elements[i]
	default:
		return it.values[i]
	}
}

// enumerableKeys lists the keys for-in visits: indices first, then own
// enumerable properties in insertion order, then inherited ones that are
// not shadowed.
func (vm *VM) enumerableKeys(v Value) []string {
	var keys []string
	seen := make(map[string]bool)
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for n := 0; v.IsObjectLike() || v.kind == KindString; n++ {
		if n >= maxProtoDepth {
			break
		}
		for _, k := range vm.ownKeys(v, true) {
			add(k)
		}
		v = vm.protoOf(v)
	}
	return keys
}

// ownKeys returns the own string keys of v. With enumerableOnly set,
// hidden properties are skipped.
func (vm *VM) ownKeys(v Value, enumerableOnly bool) []string {
	pick := func(m *PropertyMap) []string {
		if enumerableOnly {
			return m.EnumerableKeys()
		}
		return m.Keys()
	}
	switch v.kind {
	case KindString:
		n := StringLength(v.str)
		keys := make([]string, n)
		for i := range keys {
			keys[i] = strconv.Itoa(i)
		}
		return keys
	case KindObject:
		o := v.Object()
		if o == nil {
			return nil
		}
		var keys []string
		if vm.isGlobalObject(v) {
			keys = vm.globals.Names()
		}
		switch o.Class {
		case ClassArray, ClassArguments:
			for i := range o.Elements {
				keys = append(keys, strconv.Itoa(i))
			}
		case ClassString:
			keys = vm.ownKeys(o.Primitive, enumerableOnly)
		}
		return append(keys, pick(&o.Props)...)
	case KindFunction:
		return pick(&v.AsFunction().Props)
	case KindNativeObject:
		return pick(v.AsNativeObject())
	}
	return nil
}
