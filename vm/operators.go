package vm

import (
	"math"
	"math/big"
)

// ---------------------------------------------------------------------------
// Conversions that may run script code
// ---------------------------------------------------------------------------

type primitiveHint uint8

const (
	hintDefault primitiveHint = iota
	hintNumber
	hintString
)

// ToPrimitive converts objects by calling valueOf and toString.
func (vm *VM) ToPrimitive(v Value) (Value, error) {
	return vm.toPrimitive(v, hintDefault)
}

func (vm *VM) toPrimitive(v Value, hint primitiveHint) (Value, error) {
	if !v.IsObjectLike() {
		return v, nil
	}
	if hint == hintDefault {
		hint = hintNumber
		if o := v.Object(); o != nil && o.Class == ClassDate {
			hint = hintString
		}
	}
	order := [2]string{"valueOf", "toString"}
	if hint == hintString {
		order = [2]string{"toString", "valueOf"}
	}
	for _, name := range order {
		m, err := vm.getProperty(v, name)
		if err != nil {
			return Undefined, err
		}
		if !m.IsFunction() {
			continue
		}
		r, err := vm.Call(m, v, nil)
		if err != nil {
			return Undefined, err
		}
		if !r.IsObjectLike() {
			return r, nil
		}
	}
	return Undefined, vm.throwError(TypeError, "Cannot convert object to primitive value")
}

// ToNumber converts v to a number.
func (vm *VM) ToNumber(v Value) (float64, error) {
	if v.kind == KindNumber {
		return v.AsNumber(), nil
	}
	p, err := vm.toPrimitive(v, hintNumber)
	if err != nil {
		return 0, err
	}
	if p.kind == KindSymbol {
		return 0, vm.throwError(TypeError, "Cannot convert a Symbol value to a number")
	}
	return primitiveToNumber(p), nil
}

// ToString converts v to a string, calling toString on objects.
func (vm *VM) ToString(v Value) (string, error) {
	switch v.kind {
	case KindString:
		return v.str, nil
	case KindSymbol:
		return "", vm.throwError(TypeError, "Cannot convert a Symbol value to a string")
	}
	if !v.IsObjectLike() {
		return v.String(), nil
	}
	p, err := vm.toPrimitive(v, hintString)
	if err != nil {
		return "", err
	}
	if p.kind == KindSymbol {
		return "", vm.throwError(TypeError, "Cannot convert a Symbol value to a string")
	}
	return p.String(), nil
}

// toNumeric converts v to a number or bigint.
func (vm *VM) toNumeric(v Value) (Value, error) {
	if v.kind == KindNumber || v.kind == KindBigInt {
		return v, nil
	}
	p, err := vm.toPrimitive(v, hintNumber)
	if err != nil {
		return Undefined, err
	}
	if p.kind == KindBigInt {
		return p, nil
	}
	if p.kind == KindSymbol {
		return Undefined, vm.throwError(TypeError, "Cannot convert a Symbol value to a number")
	}
	return Number(primitiveToNumber(p)), nil
}

// toObject boxes primitives; nullish values are a TypeError.
func (vm *VM) toObject(v Value) (Value, error) {
	switch v.kind {
	case KindUndefined, KindNull:
		return Undefined, vm.throwError(TypeError, "Cannot convert undefined or null to object")
	case KindString:
		return vm.newWrapper(ClassString, v)
	case KindNumber:
		return vm.newWrapper(ClassNumber, v)
	case KindBoolean:
		return vm.newWrapper(ClassBoolean, v)
	}
	return v, nil
}

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

func (vm *VM) add(a, b Value) (Value, error) {
	if a.kind == KindNumber && b.kind == KindNumber {
		return Number(a.AsNumber() + b.AsNumber()), nil
	}
	if a.kind == KindString && b.kind == KindString {
		return String(a.str + b.str), nil
	}
	pa, err := vm.toPrimitive(a, hintDefault)
	if err != nil {
		return Undefined, err
	}
	pb, err := vm.toPrimitive(b, hintDefault)
	if err != nil {
		return Undefined, err
	}
	if pa.kind == KindString || pb.kind == KindString {
		if pa.kind == KindSymbol || pb.kind == KindSymbol {
			return Undefined, vm.throwError(TypeError, "Cannot convert a Symbol value to a string")
		}
		return String(pa.String() + pb.String()), nil
	}
	if pa.kind == KindBigInt || pb.kind == KindBigInt {
		if pa.kind != pb.kind {
			return Undefined, errMixBigInt(vm)
		}
		return BigInt(new(big.Int).Add(pa.AsBigInt(), pb.AsBigInt())), nil
	}
	if pa.kind == KindSymbol || pb.kind == KindSymbol {
		return Undefined, vm.throwError(TypeError, "Cannot convert a Symbol value to a number")
	}
	return Number(primitiveToNumber(pa) + primitiveToNumber(pb)), nil
}

func errMixBigInt(vm *VM) error {
	return vm.throwError(TypeError, "Cannot mix BigInt and other types, use explicit conversions")
}

// arith implements every binary numeric operator other than +.
func (vm *VM) arith(op Opcode, a, b Value) (Value, error) {
	na, err := vm.toNumeric(a)
	if err != nil {
		return Undefined, err
	}
	nb, err := vm.toNumeric(b)
	if err != nil {
		return Undefined, err
	}
	if na.kind == KindBigInt || nb.kind == KindBigInt {
		if na.kind != nb.kind {
			return Undefined, errMixBigInt(vm)
		}
		return vm.bigArith(op, na.AsBigInt(), nb.AsBigInt())
	}
	x, y := na.AsNumber(), nb.AsNumber()
	switch op {
	case OpSub:
		return Number(x - y), nil
	case OpMul:
		return Number(x * y), nil
	case OpDiv:
		return Number(x / y), nil
	case OpMod:
		return Number(math.Mod(x, y)), nil
	case OpPow:
		return Number(jsPow(x, y)), nil
	case OpBitAnd:
		return Int(int(ToInt32(x) & ToInt32(y))), nil
	case OpBitOr:
		return Int(int(ToInt32(x) | ToInt32(y))), nil
	case OpBitXor:
		return Int(int(ToInt32(x) ^ ToInt32(y))), nil
	case OpShl:
		return Int(int(ToInt32(x) << (ToUint32(y) & 31))), nil
	case OpShr:
		return Int(int(ToInt32(x) >> (ToUint32(y) & 31))), nil
	case OpUshr:
		return Number(float64(ToUint32(x) >> (ToUint32(y) & 31))), nil
	}
	return Undefined, Errorf(InternalError, "bad arithmetic opcode %s", op)
}

// jsPow differs from math.Pow where ECMAScript says 1 ** ±Infinity is NaN.
func jsPow(x, y float64) float64 {
	if math.IsNaN(y) {
		return math.NaN()
	}
	if math.IsInf(y, 0) && (x == 1 || x == -1) {
		return math.NaN()
	}
	return math.Pow(x, y)
}

func (vm *VM) bigArith(op Opcode, x, y *big.Int) (Value, error) {
	r := new(big.Int)
	switch op {
	case OpSub:
		r.Sub(x, y)
	case OpMul:
		r.Mul(x, y)
	case OpDiv:
		if y.Sign() == 0 {
			return Undefined, vm.throwError(RangeError, "Division by zero")
		}
		r.Quo(x, y)
	case OpMod:
		if y.Sign() == 0 {
			return Undefined, vm.throwError(RangeError, "Division by zero")
		}
		r.Rem(x, y)
	case OpPow:
		if y.Sign() < 0 {
			return Undefined, vm.throwError(RangeError, "Exponent must be non-negative")
		}
		if y.BitLen() > 32 {
			return Undefined, vm.throwError(RangeError, "Maximum BigInt size exceeded")
		}
		r.Exp(x, y, nil)
	case OpBitAnd:
		r.And(x, y)
	case OpBitOr:
		r.Or(x, y)
	case OpBitXor:
		r.Xor(x, y)
	case OpShl, OpShr:
		if !y.IsInt64() || y.Int64() > 1<<24 || y.Int64() < -(1<<24) {
			return Undefined, vm.throwError(RangeError, "Maximum BigInt size exceeded")
		}
		n := y.Int64()
		if op == OpShr {
			n = -n
		}
		if n >= 0 {
			r.Lsh(x, uint(n))
		} else {
			r.Rsh(x, uint(-n))
		}
	case OpUshr:
		return Undefined, vm.throwError(TypeError, "BigInts have no unsigned right shift, use >> instead")
	default:
		return Undefined, Errorf(InternalError, "bad bigint opcode %s", op)
	}
	return BigInt(r), nil
}

func (vm *VM) negate(v Value) (Value, error) {
	n, err := vm.toNumeric(v)
	if err != nil {
		return Undefined, err
	}
	if n.kind == KindBigInt {
		return BigInt(new(big.Int).Neg(n.AsBigInt())), nil
	}
	return Number(-n.AsNumber()), nil
}

// increment implements ++ and -- on the numeric value of v.
func (vm *VM) increment(v Value, up bool) (Value, error) {
	n, err := vm.toNumeric(v)
	if err != nil {
		return Undefined, err
	}
	if n.kind == KindBigInt {
		if up {
			return BigInt(new(big.Int).Add(n.AsBigInt(), big.NewInt(1))), nil
		}
		return BigInt(new(big.Int).Sub(n.AsBigInt(), big.NewInt(1))), nil
	}
	if up {
		return Number(n.AsNumber() + 1), nil
	}
	return Number(n.AsNumber() - 1), nil
}

func (vm *VM) bitNot(v Value) (Value, error) {
	n, err := vm.toNumeric(v)
	if err != nil {
		return Undefined, err
	}
	if n.kind == KindBigInt {
		return BigInt(new(big.Int).Not(n.AsBigInt())), nil
	}
	return Int(int(^ToInt32(n.AsNumber()))), nil
}

// compare implements < <= > >=.
func (vm *VM) compare(op Opcode, a, b Value) (bool, error) {
	pa, err := vm.toPrimitive(a, hintNumber)
	if err != nil {
		return false, err
	}
	pb, err := vm.toPrimitive(b, hintNumber)
	if err != nil {
		return false, err
	}
	if pa.kind == KindSymbol || pb.kind == KindSymbol {
		return false, vm.throwError(TypeError, "Cannot convert a Symbol value to a number")
	}
	r := comparePrimitives(pa, pb)
	switch op {
	case OpLt:
		return r == cmpLess, nil
	case OpLe:
		return r == cmpLess || r == cmpEqual, nil
	case OpGt:
		return r == cmpGreater, nil
	case OpGe:
		return r == cmpGreater || r == cmpEqual, nil
	}
	return false, nil
}

// instanceOf walks obj's prototype chain looking for ctor.prototype.
func (vm *VM) instanceOf(obj, ctor Value) (bool, error) {
	if !ctor.IsFunction() {
		return false, vm.throwError(TypeError, "Right-hand side of 'instanceof' is not callable")
	}
	if !obj.IsObjectLike() {
		return false, nil
	}
	target, err := vm.getProperty(ctor, "prototype")
	if err != nil {
		return false, err
	}
	if !target.IsObjectLike() {
		return false, vm.throwError(TypeError, "Function has non-object prototype in instanceof check")
	}
	for p, n := vm.protoOf(obj), 0; p.IsObjectLike() && n < maxProtoDepth; p, n = vm.protoOf(p), n+1 {
		if StrictEquals(p, target) {
			return true, nil
		}
	}
	return false, nil
}

func (vm *VM) inOp(key, obj Value) (bool, error) {
	if !obj.IsObjectLike() {
		k, _ := vm.propertyKey(key)
		return false, vm.throwError(TypeError, "Cannot use 'in' operator to search for '%s' in %s", k, obj.String())
	}
	k, err := vm.propertyKey(key)
	if err != nil {
		return false, err
	}
	return vm.hasProperty(obj, k), nil
}
