package vm

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

func thisNumber(vm *VM, this Value, method string) (float64, error) {
	if this.kind == KindNumber {
		return this.AsNumber(), nil
	}
	if o := this.Object(); o != nil && o.Class == ClassNumber {
		return o.Primitive.AsNumber(), nil
	}
	return 0, vm.throwError(TypeError, "Number.prototype.%s requires that 'this' be a Number", method)
}

func (vm *VM) installNumber() {
	np := vm.realm.numberProto
	toNum := func(vm *VM, args []Value) (float64, error) {
		if len(args) == 0 {
			return 0, nil
		}
		v, err := vm.toPrimitive(args[0], hintNumber)
		if err != nil {
			return 0, err
		}
		if v.kind == KindBigInt {
			f, _ := new(big.Float).SetInt(v.AsBigInt()).Float64()
			return f, nil
		}
		return vm.ToNumber(v)
	}
	ctor := vm.constructor("Number", 1, np,
		func(vm *VM, _ Value, args []Value) (Value, error) {
			f, err := toNum(vm, args)
			return Number(f), err
		},
		func(vm *VM, _ Value, args []Value) (Value, error) {
			f, err := toNum(vm, args)
			if err != nil {
				return Undefined, err
			}
			return vm.newWrapper(ClassNumber, Number(f))
		})
	for name, v := range map[string]float64{
		"MAX_SAFE_INTEGER":  1<<53 - 1,
		"MIN_SAFE_INTEGER":  -(1<<53 - 1),
		"MAX_VALUE":         math.MaxFloat64,
		"MIN_VALUE":         5e-324,
		"EPSILON":           math.Nextafter(1, 2) - 1,
		"POSITIVE_INFINITY": math.Inf(1),
		"NEGATIVE_INFINITY": math.Inf(-1),
		"NaN":               math.NaN(),
	} {
		defineValue(ctor, name, Number(v))
	}
	isNum := func(name string, test func(float64) bool) builtinMethod {
		return builtinMethod{name, 1, func(vm *VM, _ Value, args []Value) (Value, error) {
			v := arg(args, 0)
			return Bool(v.kind == KindNumber && test(v.AsNumber())), nil
		}}
	}
	isInteger := func(f float64) bool { return !math.IsInf(f, 0) && f == math.Trunc(f) }
	vm.defineMethods(ctor, []builtinMethod{
		isNum("isNaN", math.IsNaN),
		isNum("isFinite", func(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }),
		isNum("isInteger", isInteger),
		isNum("isSafeInteger", func(f float64) bool { return isInteger(f) && math.Abs(f) <= 1<<53-1 }),
	})
	vm.defineMethods(np, numberMethods)
	vm.builtins.Declare("Number", ctor, true)
}

var numberMethods = []builtinMethod{
	{"toString", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		x, err := thisNumber(vm, this, "toString")
		if err != nil {
			return Undefined, err
		}
		radix, err := vm.intArg(args, 0, 10)
		if err != nil {
			return Undefined, err
		}
		if radix < 2 || radix > 36 {
			return Undefined, vm.throwError(RangeError, "toString() radix must be between 2 and 36")
		}
		if radix == 10 {
			return String(FormatNumber(x)), nil
		}
		return String(FormatNumberRadix(x, int(radix))), nil
	}},
	{"toLocaleString", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
		x, err := thisNumber(vm, this, "toLocaleString")
		return String(FormatNumber(x)), err
	}},
	{"valueOf", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
		x, err := thisNumber(vm, this, "valueOf")
		return Number(x), err
	}},
	{"toFixed", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		x, err := thisNumber(vm, this, "toFixed")
		if err != nil {
			return Undefined, err
		}
		d, err := vm.intArg(args, 0, 0)
		if err != nil {
			return Undefined, err
		}
		if d < 0 || d > 100 {
			return Undefined, vm.throwError(RangeError, "toFixed() digits argument must be between 0 and 100")
		}
		if math.IsNaN(x) || math.IsInf(x, 0) || math.Abs(x) >= 1e21 {
			return String(FormatNumber(x)), nil
		}
		return String(toFixed(x, int(d))), nil
	}},
	{"toExponential", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		x, err := thisNumber(vm, this, "toExponential")
		if err != nil {
			return Undefined, err
		}
		d := -1.0
		if v := arg(args, 0); !v.IsUndefined() {
			if d, err = vm.intArg(args, 0, 0); err != nil {
				return Undefined, err
			}
			if d < 0 || d > 100 {
				return Undefined, vm.throwError(RangeError, "toExponential() argument must be between 0 and 100")
			}
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return String(FormatNumber(x)), nil
		}
		return String(jsExponent(strconv.FormatFloat(x, 'e', int(d), 64))), nil
	}},
	{"toPrecision", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		x, err := thisNumber(vm, this, "toPrecision")
		if err != nil {
			return Undefined, err
		}
		if arg(args, 0).IsUndefined() || math.IsNaN(x) || math.IsInf(x, 0) {
			return String(FormatNumber(x)), nil
		}
		p, err := vm.intArg(args, 0, 0)
		if err != nil {
			return Undefined, err
		}
		if p < 1 || p > 100 {
			return Undefined, vm.throwError(RangeError, "toPrecision() argument must be between 1 and 100")
		}
		return String(toPrecision(x, int(p))), nil
	}},
}

// toFixed formats x with d fraction digits, rounding the exact binary value
// half away from zero.
func toFixed(x float64, d int) string {
	neg := x < 0
	exact := new(big.Float).SetFloat64(math.Abs(x)).Text('f', 1100)
	intPart, frac, _ := strings.Cut(exact, ".")
	frac += strings.Repeat("0", d+1)
	digits := []byte(intPart + frac[:d])
	if frac[d] >= '5' {
		i := len(digits) - 1
		for ; i >= 0; i-- {
			if digits[i] == '9' {
				digits[i] = '0'
				continue
			}
			digits[i]++
			break
		}
		if i < 0 {
			digits = append([]byte{'1'}, digits...)
		}
	}
	n := len(digits) - d
	out := string(digits[:n])
	if d > 0 {
		out += "." + string(digits[n:])
	}
	if neg {
		out = "-" + out
	}
	return out
}

// jsExponent rewrites Go's e+05 exponent form as e+5.
func jsExponent(s string) string {
	mant, exp, ok := strings.Cut(s, "e")
	if !ok {
		return s
	}
	sign := exp[0]
	digits := strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mant + "e" + string(sign) + digits
}

func toPrecision(x float64, p int) string {
	if x == 0 {
		s := "0"
		if p > 1 {
			s += "." + strings.Repeat("0", p-1)
		}
		return s
	}
	es := strconv.FormatFloat(x, 'e', p-1, 64)
	_, exp, _ := strings.Cut(es, "e")
	e, _ := strconv.Atoi(exp)
	if e < -6 || e >= p {
		return jsExponent(es)
	}
	return strconv.FormatFloat(x, 'f', p-1-e, 64)
}
