package vm

import (
	"math"
	"math/big"
	"strings"

	"github.com/spacey-js/spacey/gc"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBoolean
	KindNumber
	KindString
	KindSymbol
	KindBigInt
	KindObject       // arena-backed object, addressed by gc.Ref
	KindFunction     // *Function, shared by reference
	KindNativeObject // *PropertyMap owned by the host

	// Internal kinds. Scripts can never observe these.
	kindHole     // uninitialized let/const slot
	kindIterator // for-in/for-of cursor
	kindTemplate // function template in a constant pool
)

var kindNames = map[Kind]string{
	KindUndefined:    "undefined",
	KindNull:         "null",
	KindBoolean:      "boolean",
	KindNumber:       "number",
	KindString:       "string",
	KindSymbol:       "symbol",
	KindBigInt:       "bigint",
	KindObject:       "object",
	KindFunction:     "function",
	KindNativeObject: "native",
	kindHole:         "hole",
	kindIterator:     "iterator",
	kindTemplate:     "template",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ---------------------------------------------------------------------------
// Value: tagged union
// ---------------------------------------------------------------------------

// Value is a script value. The zero Value is undefined.
//
// bits holds the float64 bits of a number, 0/1 for a boolean, or a packed
// gc.Ref for an object. str holds string contents. ptr holds the shared
// payload of functions, native objects, bigints, symbols, or the *Heap an
// object ref belongs to.
type Value struct {
	kind Kind
	bits uint64
	str  string
	ptr  any
}

// Pre-built singletons.
var (
	Undefined = Value{kind: KindUndefined}
	Null      = Value{kind: KindNull}
	True      = Value{kind: KindBoolean, bits: 1}
	False     = Value{kind: KindBoolean, bits: 0}
	NaN       = Number(math.NaN())
	hole      = Value{kind: kindHole}
)

// symbol is the payload of a Symbol value; identity is the pointer.
type symbol struct {
	description string
	id          uint64
}

// Bool returns the boolean value for b.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Number returns a number value.
func Number(f float64) Value {
	return Value{kind: KindNumber, bits: math.Float64bits(f)}
}

// Int returns a number value from an integer.
func Int(i int) Value { return Number(float64(i)) }

// String returns a string value.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// BigInt returns a bigint value. The caller must not mutate b afterwards.
func BigInt(b *big.Int) Value {
	return Value{kind: KindBigInt, ptr: b}
}

// FunctionValue wraps a function.
func FunctionValue(fn *Function) Value {
	return Value{kind: KindFunction, ptr: fn}
}

// NativeObjectValue wraps a host-owned property map.
func NativeObjectValue(m *PropertyMap) Value {
	return Value{kind: KindNativeObject, ptr: m}
}

// TemplateValue wraps a function template for a constant pool.
func TemplateValue(t *FunctionTemplate) Value {
	return Value{kind: kindTemplate, ptr: t}
}

func objectValue(h *Heap, ref gc.Ref) Value {
	return Value{kind: KindObject, bits: ref.Pack(), ptr: h}
}

func iteratorValue(it *propertyIterator) Value {
	return Value{kind: kindIterator, ptr: it}
}

// ---------------------------------------------------------------------------
// Predicates and accessors
// ---------------------------------------------------------------------------

func (v Value) Kind() Kind          { return v.kind }
func (v Value) IsUndefined() bool   { return v.kind == KindUndefined }
func (v Value) IsNull() bool        { return v.kind == KindNull }
func (v Value) IsNullish() bool     { return v.kind == KindUndefined || v.kind == KindNull }
func (v Value) IsBoolean() bool     { return v.kind == KindBoolean }
func (v Value) IsNumber() bool      { return v.kind == KindNumber }
func (v Value) IsString() bool      { return v.kind == KindString }
func (v Value) IsSymbol() bool      { return v.kind == KindSymbol }
func (v Value) IsBigInt() bool      { return v.kind == KindBigInt }
func (v Value) IsObject() bool      { return v.kind == KindObject }
func (v Value) IsFunction() bool    { return v.kind == KindFunction }
func (v Value) IsNativeObject() bool { return v.kind == KindNativeObject }

// IsObjectLike reports whether v is any reference type.
func (v Value) IsObjectLike() bool {
	return v.kind == KindObject || v.kind == KindFunction || v.kind == KindNativeObject
}

func (v Value) isHole() bool { return v.kind == kindHole }

// AsNumber returns the float payload. It is only meaningful for numbers.
func (v Value) AsNumber() float64 { return math.Float64frombits(v.bits) }

// AsBool returns the boolean payload.
func (v Value) AsBool() bool { return v.bits != 0 }

// AsString returns the string payload.
func (v Value) AsString() string { return v.str }

// AsBigInt returns the bigint payload or nil.
func (v Value) AsBigInt() *big.Int {
	b, _ := v.ptr.(*big.Int)
	return b
}

// AsFunction returns the function payload or nil.
func (v Value) AsFunction() *Function {
	fn, _ := v.ptr.(*Function)
	return fn
}

// AsNativeObject returns the property map of a native object or nil.
func (v Value) AsNativeObject() *PropertyMap {
	m, _ := v.ptr.(*PropertyMap)
	return m
}

// AsTemplate returns the function template payload or nil.
func (v Value) AsTemplate() *FunctionTemplate {
	t, _ := v.ptr.(*FunctionTemplate)
	return t
}

// Ref returns the arena ref of an object value.
func (v Value) Ref() gc.Ref { return gc.UnpackRef(v.bits) }

// Object resolves an object value against its heap. It returns nil for
// non-objects and for refs invalidated by a heap reset.
func (v Value) Object() *Object {
	if v.kind != KindObject {
		return nil
	}
	h, _ := v.ptr.(*Heap)
	if h == nil {
		return nil
	}
	o, ok := h.arena.Get(v.Ref())
	if !ok {
		return nil
	}
	return o
}

// ---------------------------------------------------------------------------
// typeof and ToString without running script code
// ---------------------------------------------------------------------------

// TypeOf returns the result of the typeof operator.
func (v Value) TypeOf() string {
	switch v.kind {
	case KindUndefined, kindHole:
		return "undefined"
	case KindNull, KindObject, KindNativeObject:
		return "object"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSymbol:
		return "symbol"
	case KindBigInt:
		return "bigint"
	case KindFunction:
		return "function"
	}
	return "undefined"
}

// String converts v to a string the way ToString does for primitives.
// Objects are rendered from their internal state; user-defined toString
// methods are not called. Use VM.ToString for the full conversion.
func (v Value) String() string {
	switch v.kind {
	case KindUndefined, kindHole:
		return "undefined"
	case KindNull:
		return "null"
	case KindBoolean:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case KindNumber:
		return FormatNumber(v.AsNumber())
	case KindString:
		return v.str
	case KindSymbol:
		return "Symbol(" + v.ptr.(*symbol).description + ")"
	case KindBigInt:
		return v.AsBigInt().String()
	case KindFunction:
		return v.AsFunction().sourceText()
	case KindNativeObject:
		return "[object Object]"
	case KindObject:
		o := v.Object()
		if o == nil {
			return "[object Object]"
		}
		return o.defaultString(make(map[*Object]bool))
	case kindTemplate:
		return "<template " + v.AsTemplate().Name + ">"
	case kindIterator:
		return "<iterator>"
	}
	return ""
}

// Inspect renders v for a REPL: strings are quoted and arrays and objects
// show their contents.
func (v Value) Inspect() string {
	var sb strings.Builder
	inspect(&sb, v, 0, make(map[*Object]bool))
	return sb.String()
}

func inspect(sb *strings.Builder, v Value, depth int, seen map[*Object]bool) {
	switch v.kind {
	case KindString:
		sb.WriteString(quoteString(v.str))
	case KindBigInt:
		sb.WriteString(v.String())
		sb.WriteByte('n')
	case KindFunction:
		fn := v.AsFunction()
		if fn.Name == "" {
			sb.WriteString("[Function (anonymous)]")
		} else {
			sb.WriteString("[Function: " + fn.Name + "]")
		}
	case KindNativeObject:
		inspectProps(sb, v.AsNativeObject(), depth, seen)
	case KindObject:
		o := v.Object()
		if o == nil {
			sb.WriteString("[object]")
			return
		}
		if seen[o] {
			sb.WriteString("[Circular]")
			return
		}
		if depth > 3 {
			sb.WriteString("[Object]")
			return
		}
		seen[o] = true
		defer delete(seen, o)
		switch o.Class {
		case ClassArray, ClassArguments:
			sb.WriteByte('[')
			for i, el := range o.Elements {
				if i > 0 {
					sb.WriteString(", ")
				}
				inspect(sb, el, depth+1, seen)
			}
			sb.WriteByte(']')
		case ClassError, ClassDate, ClassRegExp:
			sb.WriteString(o.defaultString(seen))
		case ClassString, ClassNumber, ClassBoolean:
			sb.WriteString("[" + o.Class.String() + ": " + o.Primitive.Inspect() + "]")
		default:
			inspectProps(sb, &o.Props, depth, seen)
		}
	default:
		sb.WriteString(v.String())
	}
}

func inspectProps(sb *strings.Builder, m *PropertyMap, depth int, seen map[*Object]bool) {
	keys := m.EnumerableKeys()
	if len(keys) == 0 {
		sb.WriteString("{}")
		return
	}
	sb.WriteString("{ ")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteString(": ")
		val, _ := m.Get(k)
		inspect(sb, val, depth+1, seen)
	}
	sb.WriteString(" }")
}

func quoteString(s string) string {
	var sb strings.Builder
	sb.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'':
			sb.WriteString(`\'`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}
