package vm

import (
	"math"
	"math/big"
)

// StrictEquals implements ===. Values of different kinds are never equal
// and NaN is unequal to itself.
func StrictEquals(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindUndefined, KindNull:
		return true
	case KindBoolean:
		return a.bits == b.bits
	case KindNumber:
		return a.AsNumber() == b.AsNumber()
	case KindString:
		return a.str == b.str
	case KindBigInt:
		return a.AsBigInt().Cmp(b.AsBigInt()) == 0
	case KindObject:
		return a.bits == b.bits && a.ptr == b.ptr
	case KindSymbol, KindFunction, KindNativeObject:
		return a.ptr == b.ptr
	}
	return false
}

// AbstractEquals implements == with the ES3 coercion ladder:
//
//   - same kind: strict equality
//   - null == undefined
//   - number vs string: the string is converted with ToNumber
//   - boolean vs anything: the boolean becomes 0 or 1 and the comparison recurses
//   - bigint vs number or string: compared by mathematical value
//
// Comparisons between an object and a primitive are false; objects are not
// converted with ToPrimitive.
func AbstractEquals(a, b Value) bool {
	if a.kind == b.kind {
		return StrictEquals(a, b)
	}
	if a.IsNullish() && b.IsNullish() {
		return true
	}
	if a.IsNullish() || b.IsNullish() {
		return false
	}

	switch {
	case a.kind == KindNumber && b.kind == KindString:
		return a.AsNumber() == StringToNumber(b.str)
	case a.kind == KindString && b.kind == KindNumber:
		return StringToNumber(a.str) == b.AsNumber()
	case a.kind == KindBoolean:
		return AbstractEquals(Number(primitiveToNumber(a)), b)
	case b.kind == KindBoolean:
		return AbstractEquals(a, Number(primitiveToNumber(b)))
	case a.kind == KindBigInt && b.kind == KindNumber:
		return bigEqualsNumber(a.AsBigInt(), b.AsNumber())
	case a.kind == KindNumber && b.kind == KindBigInt:
		return bigEqualsNumber(b.AsBigInt(), a.AsNumber())
	case a.kind == KindBigInt && b.kind == KindString:
		n, ok := parseBigInt(b.str)
		return ok && n.Cmp(a.AsBigInt()) == 0
	case a.kind == KindString && b.kind == KindBigInt:
		n, ok := parseBigInt(a.str)
		return ok && n.Cmp(b.AsBigInt()) == 0
	}
	return false
}

// SameValueZero is strict equality except that NaN equals NaN.
func SameValueZero(a, b Value) bool {
	if a.kind == KindNumber && b.kind == KindNumber {
		x, y := a.AsNumber(), b.AsNumber()
		return x == y || (math.IsNaN(x) && math.IsNaN(y))
	}
	return StrictEquals(a, b)
}

func bigEqualsNumber(b *big.Int, f float64) bool {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return false
	}
	bf := new(big.Float).SetInt(b)
	return bf.Cmp(big.NewFloat(f)) == 0
}

func parseBigInt(s string) (*big.Int, bool) {
	s = trimJSSpace(s)
	if s == "" {
		return new(big.Int), true
	}
	n, ok := new(big.Int).SetString(s, 0)
	return n, ok
}

// compareResult is the outcome of the abstract relational comparison.
type compareResult int8

const (
	cmpLess compareResult = iota
	cmpEqual
	cmpGreater
	cmpUndefined // NaN involved
)

// comparePrimitives compares two primitives: strings by code unit,
// bigints exactly, everything else numerically.
func comparePrimitives(a, b Value) compareResult {
	if a.kind == KindString && b.kind == KindString {
		switch compareStrings(a.str, b.str) {
		case -1:
			return cmpLess
		case 1:
			return cmpGreater
		}
		return cmpEqual
	}
	if a.kind == KindBigInt || b.kind == KindBigInt {
		x, okx := toBigFloat(a)
		y, oky := toBigFloat(b)
		if !okx || !oky {
			return cmpUndefined
		}
		return compareResult(x.Cmp(y) + 1)
	}
	x, y := primitiveToNumber(a), primitiveToNumber(b)
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return cmpUndefined
	case x < y:
		return cmpLess
	case x > y:
		return cmpGreater
	}
	return cmpEqual
}

func toBigFloat(v Value) (*big.Float, bool) {
	switch v.kind {
	case KindBigInt:
		return new(big.Float).SetInt(v.AsBigInt()), true
	case KindString:
		n, ok := parseBigInt(v.str)
		if !ok {
			return nil, false
		}
		return new(big.Float).SetInt(n), true
	}
	f := primitiveToNumber(v)
	if math.IsNaN(f) {
		return nil, false
	}
	return big.NewFloat(f), true
}
