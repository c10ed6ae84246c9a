package vm

import (
	"math"
	"math/big"
	"testing"
)

// ---------------------------------------------------------------------------
// Value tests
// ---------------------------------------------------------------------------

func TestZeroValueIsUndefined(t *testing.T) {
	var v Value
	if !v.IsUndefined() || v.Kind() != KindUndefined {
		t.Errorf("zero Value kind = %v, want undefined", v.Kind())
	}
}

func TestTypeOf(t *testing.T) {
	fn := FunctionValue(NewNative("f", 0, nil))
	tests := []struct {
		v    Value
		want string
	}{
		{Undefined, "undefined"},
		{Null, "object"},
		{True, "boolean"},
		{Number(1), "number"},
		{NaN, "number"},
		{String(""), "string"},
		{BigInt(big.NewInt(3)), "bigint"},
		{fn, "function"},
		{NativeObjectValue(NewPropertyMap()), "object"},
	}
	for _, tc := range tests {
		if got := tc.v.TypeOf(); got != tc.want {
			t.Errorf("typeof %s = %q, want %q", tc.v.Inspect(), got, tc.want)
		}
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Undefined, "undefined"},
		{Null, "null"},
		{True, "true"},
		{False, "false"},
		{Int(42), "42"},
		{Number(-1.5), "-1.5"},
		{NaN, "NaN"},
		{String("abc"), "abc"},
		{BigInt(big.NewInt(-7)), "-7"},
		{NativeObjectValue(NewPropertyMap()), "[object Object]"},
	}
	for _, tc := range tests {
		if got := tc.v.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}

func TestValueInspectQuotesStrings(t *testing.T) {
	if got := String("hi").Inspect(); got != `'hi'` {
		t.Errorf("Inspect() = %s, want 'hi'", got)
	}
	if got := String(`it's "q"\`).Inspect(); got != `'it\'s "q"\\'` {
		t.Errorf("Inspect() = %s", got)
	}
	if got := Int(3).Inspect(); got != "3" {
		t.Errorf("Inspect(3) = %s", got)
	}
}

func TestValueAccessors(t *testing.T) {
	if Number(2.5).AsNumber() != 2.5 {
		t.Error("AsNumber")
	}
	if !Bool(true).AsBool() || Bool(false).AsBool() {
		t.Error("AsBool")
	}
	if String("s").AsString() != "s" {
		t.Error("AsString")
	}
	if Number(1).AsFunction() != nil {
		t.Error("AsFunction on a number should be nil")
	}
	if Undefined.AsTemplate() != nil {
		t.Error("AsTemplate on undefined should be nil")
	}
	if !Null.IsNullish() || !Undefined.IsNullish() || Number(0).IsNullish() {
		t.Error("IsNullish")
	}
}

// ---------------------------------------------------------------------------
// Conversion tests
// ---------------------------------------------------------------------------

func TestFormatNumber(t *testing.T) {
	tenth, fifth := 0.1, 0.2
	tests := []struct {
		f    float64
		want string
	}{
		{0, "0"},
		{math.Copysign(0, -1), "0"},
		{1, "1"},
		{-42, "-42"},
		{3.14, "3.14"},
		{tenth + fifth, "0.30000000000000004"},
		{1e21, "1e+21"},
		{1.5e21, "1.5e+21"},
		{123456789012345680000, "123456789012345680000"},
		{0.000001, "0.000001"},
		{1e-7, "1e-7"},
		{2.5e-8, "2.5e-8"},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
		{math.NaN(), "NaN"},
	}
	for _, tc := range tests {
		if got := FormatNumber(tc.f); got != tc.want {
			t.Errorf("FormatNumber(%v) = %q, want %q", tc.f, got, tc.want)
		}
	}
}

func TestStringToNumber(t *testing.T) {
	tests := []struct {
		s    string
		want float64
	}{
		{"", 0},
		{"   ", 0},
		{"42", 42},
		{"  12  ", 12},
		{"-3.5", -3.5},
		{"1e3", 1000},
		{"0x1F", 31},
		{"0b101", 5},
		{"0o10", 8},
		{"Infinity", math.Inf(1)},
		{"-Infinity", math.Inf(-1)},
	}
	for _, tc := range tests {
		if got := StringToNumber(tc.s); got != tc.want {
			t.Errorf("StringToNumber(%q) = %v, want %v", tc.s, got, tc.want)
		}
	}
	for _, s := range []string{"abc", "1_000", "12px", "inf", "0x", "1e", "0xG"} {
		if got := StringToNumber(s); !math.IsNaN(got) {
			t.Errorf("StringToNumber(%q) = %v, want NaN", s, got)
		}
	}
}

func TestParseIntAndFloat(t *testing.T) {
	tests := []struct {
		s     string
		radix int
		want  float64
	}{
		{"42", 0, 42},
		{"  -17px", 0, -17},
		{"0x1A", 0, 26},
		{"ff", 16, 255},
		{"0xff", 16, 255},
		{"101", 2, 5},
		{"z", 36, 35},
	}
	for _, tc := range tests {
		if got := ParseInt(tc.s, tc.radix); got != tc.want {
			t.Errorf("ParseInt(%q, %d) = %v, want %v", tc.s, tc.radix, got, tc.want)
		}
	}
	for _, bad := range []struct {
		s     string
		radix int
	}{{"", 0}, {"xyz", 0}, {"1", 1}, {"1", 37}, {"0x10", 8}} {
		if got := ParseInt(bad.s, bad.radix); !math.IsNaN(got) && got != 0 {
			t.Errorf("ParseInt(%q, %d) = %v, want NaN or 0", bad.s, bad.radix, got)
		}
	}

	if got := ParseFloat("  3.5e2abc"); got != 350 {
		t.Errorf("ParseFloat = %v, want 350", got)
	}
	if got := ParseFloat("abc"); !math.IsNaN(got) {
		t.Errorf("ParseFloat(abc) = %v, want NaN", got)
	}
}

func TestToBoolean(t *testing.T) {
	falsy := []Value{Undefined, Null, False, Number(0), NaN, String(""), BigInt(big.NewInt(0))}
	for _, v := range falsy {
		if ToBoolean(v) {
			t.Errorf("ToBoolean(%s) = true", v.Inspect())
		}
	}
	truthy := []Value{True, Number(-1), String("0"), String("false"), BigInt(big.NewInt(2)), NativeObjectValue(NewPropertyMap())}
	for _, v := range truthy {
		if !ToBoolean(v) {
			t.Errorf("ToBoolean(%s) = false", v.Inspect())
		}
	}
}

func TestToInt32AndUint32(t *testing.T) {
	tests := []struct {
		f    float64
		i32  int32
		ui32 uint32
	}{
		{0, 0, 0},
		{1.9, 1, 1},
		{-1.9, -1, 4294967295},
		{4294967296 + 5, 5, 5},
		{2147483648, -2147483648, 2147483648},
		{math.NaN(), 0, 0},
		{math.Inf(1), 0, 0},
	}
	for _, tc := range tests {
		if got := ToInt32(tc.f); got != tc.i32 {
			t.Errorf("ToInt32(%v) = %d, want %d", tc.f, got, tc.i32)
		}
		if got := ToUint32(tc.f); got != tc.ui32 {
			t.Errorf("ToUint32(%v) = %d, want %d", tc.f, got, tc.ui32)
		}
	}
}

func TestStringLengthCountsUTF16Units(t *testing.T) {
	tests := []struct {
		s    string
		want int
	}{
		{"", 0},
		{"abc", 3},
		{"é", 1},
		{"\U0001F600", 2},
	}
	for _, tc := range tests {
		if got := StringLength(tc.s); got != tc.want {
			t.Errorf("StringLength(%q) = %d, want %d", tc.s, got, tc.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Equality tests
// ---------------------------------------------------------------------------

func TestStrictEquals(t *testing.T) {
	fn := FunctionValue(NewNative("f", 0, nil))
	tests := []struct {
		a, b Value
		want bool
	}{
		{Number(1), Number(1), true},
		{NaN, NaN, false},
		{Number(0), Number(math.Copysign(0, -1)), true},
		{String("a"), String("a"), true},
		{Number(1), String("1"), false},
		{Null, Undefined, false},
		{Null, Null, true},
		{True, True, true},
		{BigInt(big.NewInt(5)), BigInt(big.NewInt(5)), true},
		{fn, fn, true},
		{fn, FunctionValue(NewNative("f", 0, nil)), false},
	}
	for _, tc := range tests {
		if got := StrictEquals(tc.a, tc.b); got != tc.want {
			t.Errorf("%s === %s = %v, want %v", tc.a.Inspect(), tc.b.Inspect(), got, tc.want)
		}
	}
}

func TestAbstractEquals(t *testing.T) {
	tests := []struct {
		a, b Value
		want bool
	}{
		{Null, Undefined, true},
		{Undefined, Null, true},
		{Null, Number(0), false},
		{Undefined, False, false},
		{String("1"), Number(1), true},
		{String(""), Number(0), true},
		{True, Number(1), true},
		{False, String("0"), true},
		{String("1.0"), Number(1), true},
		{NaN, NaN, false},
		{BigInt(big.NewInt(2)), Number(2), true},
		{BigInt(big.NewInt(2)), String("2"), true},
		{String("a"), String("b"), false},
	}
	for _, tc := range tests {
		if got := AbstractEquals(tc.a, tc.b); got != tc.want {
			t.Errorf("%s == %s = %v, want %v", tc.a.Inspect(), tc.b.Inspect(), got, tc.want)
		}
	}
}

func TestSameValueZero(t *testing.T) {
	if !SameValueZero(NaN, NaN) {
		t.Error("SameValueZero(NaN, NaN) = false")
	}
	if !SameValueZero(Number(0), Number(math.Copysign(0, -1))) {
		t.Error("SameValueZero(0, -0) = false")
	}
	if SameValueZero(Number(1), String("1")) {
		t.Error("SameValueZero(1, '1') = true")
	}
}
