package vm

import (
	"math"
	"strings"
	"unicode/utf16"
)

// thisString coerces the receiver of a String.prototype method.
func thisString(vm *VM, this Value, method string) (string, error) {
	switch this.kind {
	case KindString:
		return this.str, nil
	case KindUndefined, KindNull:
		return "", vm.throwError(TypeError, "String.prototype.%s called on null or undefined", method)
	}
	if o := this.Object(); o != nil && o.Class == ClassString {
		return o.Primitive.str, nil
	}
	return vm.ToString(this)
}

// intArg converts an optional integer argument, returning def when absent.
func (vm *VM) intArg(args []Value, i int, def float64) (float64, error) {
	v := arg(args, i)
	if v.IsUndefined() {
		return def, nil
	}
	f, err := vm.ToNumber(v)
	if err != nil {
		return 0, err
	}
	return ToIntegerOrInfinity(f), nil
}

// clampIndex resolves a relative index (negative counts from the end)
// against length n.
func clampIndex(f float64, n int) int {
	if f < 0 {
		f += float64(n)
		if f < 0 {
			return 0
		}
	}
	if f > float64(n) {
		return n
	}
	return int(f)
}

func clamp(f float64, n int) int {
	switch {
	case f < 0:
		return 0
	case f > float64(n):
		return n
	}
	return int(f)
}

func (vm *VM) installString() {
	sp := vm.realm.stringProto
	ctor := vm.constructor("String", 1, sp,
		func(vm *VM, _ Value, args []Value) (Value, error) {
			if len(args) == 0 {
				return String(""), nil
			}
			if args[0].kind == KindSymbol {
				return String(args[0].String()), nil
			}
			s, err := vm.ToString(args[0])
			return String(s), err
		},
		func(vm *VM, _ Value, args []Value) (Value, error) {
			s := ""
			if len(args) > 0 {
				var err error
				if s, err = vm.ToString(args[0]); err != nil {
					return Undefined, err
				}
			}
			return vm.newWrapper(ClassString, String(s))
		})
	vm.defineMethods(ctor, []builtinMethod{
		{"fromCharCode", 1, func(vm *VM, _ Value, args []Value) (Value, error) {
			units := make([]uint16, len(args))
			for i, a := range args {
				f, err := vm.ToNumber(a)
				if err != nil {
					return Undefined, err
				}
				units[i] = uint16(ToUint32(f))
			}
			return String(fromUTF16(units)), nil
		}},
	})
	vm.defineMethods(sp, stringMethods)
	vm.builtins.Declare("String", ctor, true)
}

var stringMethods = []builtinMethod{
	{"charAt", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		s, err := thisString(vm, this, "charAt")
		if err != nil {
			return Undefined, err
		}
		pos, err := vm.intArg(args, 0, 0)
		if err != nil {
			return Undefined, err
		}
		if pos < 0 || pos >= float64(StringLength(s)) {
			return String(""), nil
		}
		return String(utf16Slice(s, int(pos), int(pos)+1)), nil
	}},
	{"charCodeAt", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		s, err := thisString(vm, this, "charCodeAt")
		if err != nil {
			return Undefined, err
		}
		pos, err := vm.intArg(args, 0, 0)
		if err != nil {
			return Undefined, err
		}
		if pos < 0 || pos >= float64(StringLength(s)) {
			return NaN, nil
		}
		return Int(int(utf16At(s, int(pos)))), nil
	}},
	{"codePointAt", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		s, err := thisString(vm, this, "codePointAt")
		if err != nil {
			return Undefined, err
		}
		pos, err := vm.intArg(args, 0, 0)
		if err != nil {
			return Undefined, err
		}
		units := toUTF16(s)
		if pos < 0 || pos >= float64(len(units)) {
			return Undefined, nil
		}
		i := int(pos)
		if utf16.IsSurrogate(rune(units[i])) && i+1 < len(units) {
			if r := utf16.DecodeRune(rune(units[i]), rune(units[i+1])); r != 0xFFFD {
				return Int(int(r)), nil
			}
		}
		return Int(int(units[i])), nil
	}},
	{"at", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		s, err := thisString(vm, this, "at")
		if err != nil {
			return Undefined, err
		}
		pos, err := vm.intArg(args, 0, 0)
		if err != nil {
			return Undefined, err
		}
		n := StringLength(s)
		if pos < 0 {
			pos += float64(n)
		}
		if pos < 0 || pos >= float64(n) {
			return Undefined, nil
		}
		return String(utf16Slice(s, int(pos), int(pos)+1)), nil
	}},
	{"indexOf", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		s, err := thisString(vm, this, "indexOf")
		if err != nil {
			return Undefined, err
		}
		sub, err := vm.ToString(arg(args, 0))
		if err != nil {
			return Undefined, err
		}
		from, err := vm.intArg(args, 1, 0)
		if err != nil {
			return Undefined, err
		}
		return Int(utf16Index(s, sub, clamp(from, StringLength(s)))), nil
	}},
	{"lastIndexOf", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		s, err := thisString(vm, this, "lastIndexOf")
		if err != nil {
			return Undefined, err
		}
		sub, err := vm.ToString(arg(args, 0))
		if err != nil {
			return Undefined, err
		}
		from := math.Inf(1)
		if v := arg(args, 1); !v.IsUndefined() {
			f, err := vm.ToNumber(v)
			if err != nil {
				return Undefined, err
			}
			if !math.IsNaN(f) {
				from = ToIntegerOrInfinity(f)
			}
		}
		return Int(utf16LastIndex(s, sub, clamp(from, StringLength(s)))), nil
	}},
	{"includes", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		s, err := thisString(vm, this, "includes")
		if err != nil {
			return Undefined, err
		}
		if regexpOf(arg(args, 0)) != nil {
			return Undefined, vm.throwError(TypeError, "First argument to String.prototype.includes must not be a regular expression")
		}
		sub, err := vm.ToString(arg(args, 0))
		if err != nil {
			return Undefined, err
		}
		from, err := vm.intArg(args, 1, 0)
		if err != nil {
			return Undefined, err
		}
		return Bool(utf16Index(s, sub, clamp(from, StringLength(s))) >= 0), nil
	}},
	{"startsWith", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		s, err := thisString(vm, this, "startsWith")
		if err != nil {
			return Undefined, err
		}
		sub, err := vm.ToString(arg(args, 0))
		if err != nil {
			return Undefined, err
		}
		from, err := vm.intArg(args, 1, 0)
		if err != nil {
			return Undefined, err
		}
		rest := utf16Slice(s, clamp(from, StringLength(s)), StringLength(s))
		return Bool(strings.HasPrefix(rest, sub)), nil
	}},
	{"endsWith", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		s, err := thisString(vm, this, "endsWith")
		if err != nil {
			return Undefined, err
		}
		sub, err := vm.ToString(arg(args, 0))
		if err != nil {
			return Undefined, err
		}
		n := StringLength(s)
		end, err := vm.intArg(args, 1, float64(n))
		if err != nil {
			return Undefined, err
		}
		return Bool(strings.HasSuffix(utf16Slice(s, 0, clamp(end, n)), sub)), nil
	}},
	{"substring", 2, func(vm *VM, this Value, args []Value) (Value, error) {
		s, err := thisString(vm, this, "substring")
		if err != nil {
			return Undefined, err
		}
		n := StringLength(s)
		a, err := vm.intArg(args, 0, 0)
		if err != nil {
			return Undefined, err
		}
		b, err := vm.intArg(args, 1, float64(n))
		if err != nil {
			return Undefined, err
		}
		from, to := clamp(a, n), clamp(b, n)
		if from > to {
			from, to = to, from
		}
		return String(utf16Slice(s, from, to)), nil
	}},
	{"slice", 2, func(vm *VM, this Value, args []Value) (Value, error) {
		s, err := thisString(vm, this, "slice")
		if err != nil {
			return Undefined, err
		}
		n := StringLength(s)
		a, err := vm.intArg(args, 0, 0)
		if err != nil {
			return Undefined, err
		}
		b, err := vm.intArg(args, 1, float64(n))
		if err != nil {
			return Undefined, err
		}
		from, to := clampIndex(a, n), clampIndex(b, n)
		if from >= to {
			return String(""), nil
		}
		return String(utf16Slice(s, from, to)), nil
	}},
	{"substr", 2, func(vm *VM, this Value, args []Value) (Value, error) {
		s, err := thisString(vm, this, "substr")
		if err != nil {
			return Undefined, err
		}
		n := StringLength(s)
		a, err := vm.intArg(args, 0, 0)
		if err != nil {
			return Undefined, err
		}
		length, err := vm.intArg(args, 1, float64(n))
		if err != nil {
			return Undefined, err
		}
		from := clampIndex(a, n)
		to := from + clamp(length, n-from)
		return String(utf16Slice(s, from, to)), nil
	}},
	{"toLowerCase", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
		s, err := thisString(vm, this, "toLowerCase")
		return String(strings.ToLower(s)), err
	}},
	{"toUpperCase", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
		s, err := thisString(vm, this, "toUpperCase")
		return String(strings.ToUpper(s)), err
	}},
	{"toLocaleLowerCase", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
		s, err := thisString(vm, this, "toLocaleLowerCase")
		return String(strings.ToLower(s)), err
	}},
	{"toLocaleUpperCase", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
		s, err := thisString(vm, this, "toLocaleUpperCase")
		return String(strings.ToUpper(s)), err
	}},
	{"trim", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
		s, err := thisString(vm, this, "trim")
		return String(trimJSSpace(s)), err
	}},
	{"trimStart", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
		s, err := thisString(vm, this, "trimStart")
		return String(strings.TrimLeftFunc(s, isJSSpace)), err
	}},
	{"trimEnd", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
		s, err := thisString(vm, this, "trimEnd")
		return String(strings.TrimRightFunc(s, isJSSpace)), err
	}},
	{"padStart", 2, func(vm *VM, this Value, args []Value) (Value, error) {
		return vm.pad(this, args, true)
	}},
	{"padEnd", 2, func(vm *VM, this Value, args []Value) (Value, error) {
		return vm.pad(this, args, false)
	}},
	{"repeat", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		s, err := thisString(vm, this, "repeat")
		if err != nil {
			return Undefined, err
		}
		n, err := vm.intArg(args, 0, 0)
		if err != nil {
			return Undefined, err
		}
		if n < 0 || math.IsInf(n, 0) || n*float64(len(s)) > 1<<28 {
			return Undefined, vm.throwError(RangeError, "Invalid count value: %s", FormatNumber(n))
		}
		return String(strings.Repeat(s, int(n))), nil
	}},
	{"concat", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		s, err := thisString(vm, this, "concat")
		if err != nil {
			return Undefined, err
		}
		var sb strings.Builder
		sb.WriteString(s)
		for _, a := range args {
			t, err := vm.ToString(a)
			if err != nil {
				return Undefined, err
			}
			sb.WriteString(t)
		}
		return String(sb.String()), nil
	}},
	{"split", 2, stringSplit},
	{"replace", 2, func(vm *VM, this Value, args []Value) (Value, error) {
		return vm.replace(this, args, false)
	}},
	{"replaceAll", 2, func(vm *VM, this Value, args []Value) (Value, error) {
		return vm.replace(this, args, true)
	}},
	{"match", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		s, err := thisString(vm, this, "match")
		if err != nil {
			return Undefined, err
		}
		rv, err := vm.toRegExpArg(arg(args, 0))
		if err != nil {
			return Undefined, err
		}
		d := regexpOf(rv)
		if !d.global {
			return vm.regexpExec(rv, s)
		}
		matches, err := vm.allMatches(d, s)
		if err != nil {
			return Undefined, err
		}
		if err := vm.setProperty(rv, "lastIndex", Int(0)); err != nil {
			return Undefined, err
		}
		if len(matches) == 0 {
			return Null, nil
		}
		out := make([]Value, len(matches))
		for i, m := range matches {
			out[i] = String(m.String())
		}
		return vm.NewArray(out)
	}},
	{"search", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		s, err := thisString(vm, this, "search")
		if err != nil {
			return Undefined, err
		}
		rv, err := vm.toRegExpArg(arg(args, 0))
		if err != nil {
			return Undefined, err
		}
		m, err := vm.findAt(regexpOf(rv), s, 0)
		if err != nil || m == nil {
			return Int(-1), err
		}
		return Int(runeToUnit(s, m.Index)), nil
	}},
	{"toString", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
		return thisStringValue(vm, this, "toString")
	}},
	{"valueOf", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
		return thisStringValue(vm, this, "valueOf")
	}},
}

func thisStringValue(vm *VM, this Value, method string) (Value, error) {
	if this.kind == KindString {
		return this, nil
	}
	if o := this.Object(); o != nil && o.Class == ClassString {
		return o.Primitive, nil
	}
	return Undefined, vm.throwError(TypeError, "String.prototype.%s requires that 'this' be a String", method)
}

func (vm *VM) toRegExpArg(v Value) (Value, error) {
	if regexpOf(v) != nil {
		return v, nil
	}
	pattern := "(?:)"
	if !v.IsUndefined() {
		s, err := vm.ToString(v)
		if err != nil {
			return Undefined, err
		}
		pattern = s
	}
	return vm.newRegExp(pattern, "")
}

func (vm *VM) pad(this Value, args []Value, start bool) (Value, error) {
	s, err := thisString(vm, this, "padStart")
	if err != nil {
		return Undefined, err
	}
	target, err := vm.intArg(args, 0, 0)
	if err != nil {
		return Undefined, err
	}
	filler := " "
	if f := arg(args, 1); !f.IsUndefined() {
		if filler, err = vm.ToString(f); err != nil {
			return Undefined, err
		}
	}
	n := StringLength(s)
	if target <= float64(n) || filler == "" {
		return String(s), nil
	}
	if target > 1<<28 {
		return Undefined, vm.throwError(RangeError, "Invalid string length")
	}
	need := int(target) - n
	fu := toUTF16(filler)
	padding := make([]uint16, 0, need)
	for len(padding) < need {
		padding = append(padding, fu[len(padding)%len(fu)])
	}
	if start {
		return String(fromUTF16(padding) + s), nil
	}
	return String(s + fromUTF16(padding)), nil
}

func stringSplit(vm *VM, this Value, args []Value) (Value, error) {
	s, err := thisString(vm, this, "split")
	if err != nil {
		return Undefined, err
	}
	limit := uint32(math.MaxUint32)
	if l := arg(args, 1); !l.IsUndefined() {
		f, err := vm.ToNumber(l)
		if err != nil {
			return Undefined, err
		}
		limit = ToUint32(f)
	}
	sepArg := arg(args, 0)
	var parts []string
	switch {
	case limit == 0:
	case sepArg.IsUndefined():
		parts = []string{s}
	case regexpOf(sepArg) != nil:
		d := regexpOf(sepArg)
		if s == "" {
			if m, err := vm.findAt(d, s, 0); err != nil {
				return Undefined, err
			} else if m == nil {
				parts = []string{s}
			}
			break
		}
		matches, err := vm.allMatches(d, s)
		if err != nil {
			return Undefined, err
		}
		runes := []rune(s)
		last := 0
		var out []Value
		for _, m := range matches {
			if m.Length == 0 && (m.Index == 0 || m.Index >= len(runes)) {
				continue
			}
			out = append(out, String(string(runes[last:m.Index])))
			for _, g := range m.Groups()[1:] {
				if len(g.Captures) == 0 {
					out = append(out, Undefined)
				} else {
					out = append(out, String(g.String()))
				}
			}
			last = m.Index + m.Length
		}
		out = append(out, String(string(runes[last:])))
		if uint32(len(out)) > limit {
			out = out[:limit]
		}
		return vm.NewArray(out)
	default:
		sep, err := vm.ToString(sepArg)
		if err != nil {
			return Undefined, err
		}
		if sep == "" {
			units := toUTF16(s)
			parts = make([]string, len(units))
			for i := range units {
				parts[i] = fromUTF16(units[i : i+1])
			}
		} else {
			parts = strings.Split(s, sep)
		}
	}
	if uint32(len(parts)) > limit {
		parts = parts[:limit]
	}
	return vm.stringArray(parts)
}

// replace implements String.prototype.replace and replaceAll.
func (vm *VM) replace(this Value, args []Value, all bool) (Value, error) {
	s, err := thisString(vm, this, "replace")
	if err != nil {
		return Undefined, err
	}
	pattern, replacement := arg(args, 0), arg(args, 1)
	fn := replacement.AsFunction()
	tmpl := ""
	if fn == nil {
		if tmpl, err = vm.ToString(replacement); err != nil {
			return Undefined, err
		}
	}

	type hit struct {
		pos      int // UTF-16 offset
		matched  string
		captures []Value
		named    Value
	}
	var hits []hit
	if d := regexpOf(pattern); d != nil {
		if all && !d.global {
			return Undefined, vm.throwError(TypeError, "replaceAll must be called with a global RegExp")
		}
		if d.global {
			matches, err := vm.allMatches(d, s)
			if err != nil {
				return Undefined, err
			}
			if err := vm.setProperty(pattern, "lastIndex", Int(0)); err != nil {
				return Undefined, err
			}
			for _, m := range matches {
				caps, named := captureValues(m.Groups())
				hits = append(hits, hit{runeToUnit(s, m.Index), m.String(), caps, named})
			}
		} else {
			m, err := vm.findAt(d, s, 0)
			if err != nil {
				return Undefined, err
			}
			if m != nil {
				caps, named := captureValues(m.Groups())
				hits = append(hits, hit{runeToUnit(s, m.Index), m.String(), caps, named})
			}
		}
		for i := range hits {
			if hits[i].named.kind == KindNativeObject {
				obj, err := vm.NewObject()
				if err != nil {
					return Undefined, err
				}
				hits[i].named.AsNativeObject().Each(func(k string, v Value, _ PropFlags) {
					obj.Object().Props.Set(k, v)
				})
				hits[i].named = obj
			}
		}
	} else {
		needle, err := vm.ToString(pattern)
		if err != nil {
			return Undefined, err
		}
		from := 0
		for {
			i := utf16Index(s, needle, from)
			if i < 0 {
				break
			}
			hits = append(hits, hit{pos: i, matched: needle, named: Undefined})
			if !all {
				break
			}
			from = i + StringLength(needle)
			if needle == "" {
				from++
			}
			if from > StringLength(s) {
				break
			}
		}
	}
	if len(hits) == 0 {
		return String(s), nil
	}

	var sb strings.Builder
	last := 0
	for _, h := range hits {
		sb.WriteString(utf16Slice(s, last, h.pos))
		if fn != nil {
			callArgs := append([]Value{String(h.matched)}, h.captures...)
			callArgs = append(callArgs, Int(h.pos), String(s))
			if !h.named.IsUndefined() {
				callArgs = append(callArgs, h.named)
			}
			r, err := vm.Call(replacement, Undefined, callArgs)
			if err != nil {
				return Undefined, err
			}
			rs, err := vm.ToString(r)
			if err != nil {
				return Undefined, err
			}
			sb.WriteString(rs)
		} else {
			sb.WriteString(expandReplacement(tmpl, h.matched, s, h.pos, h.captures, h.named, vm))
		}
		last = h.pos + StringLength(h.matched)
	}
	sb.WriteString(utf16Slice(s, last, StringLength(s)))
	return String(sb.String()), nil
}
