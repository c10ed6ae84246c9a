package vm

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

func (vm *VM) installJSON() {
	obj := vm.mustAlloc(Object{Class: ClassObject, Proto: vm.realm.objectProto})
	vm.defineMethods(obj, []builtinMethod{
		{"stringify", 3, func(vm *VM, _ Value, args []Value) (Value, error) {
			s, ok, err := vm.jsonStringify(arg(args, 0), arg(args, 1), arg(args, 2))
			if err != nil || !ok {
				return Undefined, err
			}
			return String(s), nil
		}},
		{"parse", 2, func(vm *VM, _ Value, args []Value) (Value, error) {
			text, err := vm.ToString(arg(args, 0))
			if err != nil {
				return Undefined, err
			}
			v, err := vm.jsonParse(text)
			if err != nil {
				return Undefined, err
			}
			if reviver := arg(args, 1); reviver.kind == KindFunction {
				root, err := vm.NewObject()
				if err != nil {
					return Undefined, err
				}
				root.Object().Props.Set("", v)
				return vm.revive(reviver, root, "")
			}
			return v, nil
		}},
	})
	vm.builtins.Declare("JSON", obj, true)
}

// ---------------------------------------------------------------------------
// stringify
// ---------------------------------------------------------------------------

type jsonWriter struct {
	vm       *VM
	replacer Value
	allow    map[string]bool
	keys     []string // allow-list order when replacer is an array
	gap      string
	stack    []Value
	sb       strings.Builder
}

// jsonStringify serializes v. ok is false when v has no JSON form
// (undefined, functions, symbols).
func (vm *VM) jsonStringify(v, replacer, space Value) (string, bool, error) {
	w := &jsonWriter{vm: vm}
	switch {
	case replacer.kind == KindFunction:
		w.replacer = replacer
	case replacer.kind == KindObject && classOf(replacer) == "Array":
		w.allow = make(map[string]bool)
		for _, el := range replacer.Object().Elements {
			if el.kind != KindString && el.kind != KindNumber {
				continue
			}
			k := el.String()
			if !w.allow[k] {
				w.allow[k] = true
				w.keys = append(w.keys, k)
			}
		}
	}
	space = unwrapPrimitive(space)
	switch space.kind {
	case KindNumber:
		n := int(math.Min(10, ToIntegerOrInfinity(space.AsNumber())))
		if n > 0 {
			w.gap = strings.Repeat(" ", n)
		}
	case KindString:
		w.gap = space.str
		if len(w.gap) > 10 {
			w.gap = w.gap[:10]
		}
	}
	holder, err := vm.NewObject()
	if err != nil {
		return "", false, err
	}
	holder.Object().Props.Set("", v)
	ok, err := w.property(holder, "", v, "")
	if err != nil {
		return "", false, err
	}
	return w.sb.String(), ok, nil
}

func unwrapPrimitive(v Value) Value {
	if o := v.Object(); o != nil {
		switch o.Class {
		case ClassNumber, ClassString, ClassBoolean:
			return o.Primitive
		}
	}
	return v
}

// property writes the serialization of holder[key] (already read as v).
func (w *jsonWriter) property(holder Value, key string, v Value, indent string) (bool, error) {
	vm := w.vm
	if v.IsObjectLike() || v.kind == KindBigInt {
		toJSON, err := vm.getProperty(v, "toJSON")
		if err != nil {
			return false, err
		}
		if toJSON.kind == KindFunction {
			if v, err = vm.Call(toJSON, v, []Value{String(key)}); err != nil {
				return false, err
			}
		}
	}
	if w.replacer.kind == KindFunction {
		var err error
		if v, err = vm.Call(w.replacer, holder, []Value{String(key), v}); err != nil {
			return false, err
		}
	}
	v = unwrapPrimitive(v)
	switch v.kind {
	case KindNull:
		w.sb.WriteString("null")
	case KindBoolean:
		w.sb.WriteString(v.String())
	case KindNumber:
		if f := v.AsNumber(); math.IsNaN(f) || math.IsInf(f, 0) {
			w.sb.WriteString("null")
		} else {
			w.sb.WriteString(FormatNumber(f))
		}
	case KindString:
		writeJSONString(&w.sb, v.str)
	case KindBigInt:
		return false, vm.throwError(TypeError, "Do not know how to serialize a BigInt")
	case KindObject, KindNativeObject:
		for _, s := range w.stack {
			if StrictEquals(s, v) {
				return false, vm.throwError(TypeError, "Converting circular structure to JSON")
			}
		}
		w.stack = append(w.stack, v)
		defer func() { w.stack = w.stack[:len(w.stack)-1] }()
		if o := v.Object(); o != nil && o.Class == ClassArray {
			return true, w.array(v, o, indent)
		}
		return true, w.object(v, indent)
	default:
		return false, nil
	}
	return true, nil
}

func (w *jsonWriter) array(v Value, o *Object, indent string) error {
	if len(o.Elements) == 0 {
		w.sb.WriteString("[]")
		return nil
	}
	inner := indent + w.gap
	w.sb.WriteByte('[')
	for i := 0; i < len(o.Elements); i++ {
		if i > 0 {
			w.sb.WriteByte(',')
		}
		w.newline(inner)
		ok, err := w.property(v, strconv.Itoa(i), o.Elements[i], inner)
		if err != nil {
			return err
		}
		if !ok {
			w.sb.WriteString("null")
		}
	}
	w.newline(indent)
	w.sb.WriteByte(']')
	return nil
}

func (w *jsonWriter) object(v Value, indent string) error {
	vm := w.vm
	keys := w.keys
	if w.allow == nil {
		keys = vm.ownKeys(v, true)
	}
	inner := indent + w.gap
	w.sb.WriteByte('{')
	wrote := false
	for _, k := range keys {
		pv, err := vm.getProperty(v, k)
		if err != nil {
			return err
		}
		mark := w.sb.Len()
		if wrote {
			w.sb.WriteByte(',')
		}
		w.newline(inner)
		writeJSONString(&w.sb, k)
		w.sb.WriteByte(':')
		if w.gap != "" {
			w.sb.WriteByte(' ')
		}
		ok, err := w.property(v, k, pv, inner)
		if err != nil {
			return err
		}
		if !ok {
			// Roll back the key when the value has no JSON form.
			s := w.sb.String()[:mark]
			w.sb.Reset()
			w.sb.WriteString(s)
			continue
		}
		wrote = true
	}
	if wrote {
		w.newline(indent)
	}
	w.sb.WriteByte('}')
	return nil
}

func (w *jsonWriter) newline(indent string) {
	if w.gap != "" {
		w.sb.WriteByte('\n')
		w.sb.WriteString(indent)
	}
}

func writeJSONString(sb *strings.Builder, s string) {
	const hex = "0123456789abcdef"
	sb.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 {
				sb.WriteString(`\u00`)
				sb.WriteByte(hex[r>>4])
				sb.WriteByte(hex[r&0xF])
			} else {
				sb.WriteString(s[i : i+size])
			}
		}
		i += size
	}
	sb.WriteByte('"')
}

// ---------------------------------------------------------------------------
// parse
// ---------------------------------------------------------------------------

// jsonParse decodes text into script values. Object keys keep their
// source order.
func (vm *VM) jsonParse(text string) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	v, err := vm.jsonValue(dec)
	if err != nil {
		return Undefined, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Undefined, vm.throwError(SyntaxError, "Unexpected non-whitespace character after JSON")
	}
	return v, nil
}

func (vm *VM) jsonSyntaxError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return vm.throwError(SyntaxError, "Unexpected end of JSON input")
	}
	var se *json.SyntaxError
	if errors.As(err, &se) {
		return vm.throwError(SyntaxError, "%s in JSON at position %d", se.Error(), se.Offset)
	}
	return vm.throwError(SyntaxError, "%v", err)
}

func (vm *VM) jsonValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Undefined, vm.jsonSyntaxError(err)
	}
	switch t := tok.(type) {
	case nil:
		return Null, nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(StringToNumber(string(t))), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			var elems []Value
			for dec.More() {
				el, err := vm.jsonValue(dec)
				if err != nil {
					return Undefined, err
				}
				elems = append(elems, el)
			}
			if _, err := dec.Token(); err != nil {
				return Undefined, vm.jsonSyntaxError(err)
			}
			return vm.NewArray(elems)
		case '{':
			obj, err := vm.NewObject()
			if err != nil {
				return Undefined, err
			}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return Undefined, vm.jsonSyntaxError(err)
				}
				k, _ := kt.(string)
				val, err := vm.jsonValue(dec)
				if err != nil {
					return Undefined, err
				}
				obj.Object().Props.Set(k, val)
			}
			if _, err := dec.Token(); err != nil {
				return Undefined, vm.jsonSyntaxError(err)
			}
			return obj, nil
		}
	}
	return Undefined, vm.throwError(SyntaxError, "Unexpected token in JSON")
}

// revive applies a JSON.parse reviver bottom-up.
func (vm *VM) revive(reviver, holder Value, key string) (Value, error) {
	v, err := vm.getProperty(holder, key)
	if err != nil {
		return Undefined, err
	}
	if o := v.Object(); o != nil {
		var keys []string
		if o.Class == ClassArray {
			for i := range o.Elements {
				keys = append(keys, strconv.Itoa(i))
			}
		} else {
			keys = o.Props.EnumerableKeys()
		}
		for _, k := range keys {
			nv, err := vm.revive(reviver, v, k)
			if err != nil {
				return Undefined, err
			}
			if nv.IsUndefined() && o.Class != ClassArray {
				o.Props.Delete(k)
				continue
			}
			if err := vm.setProperty(v, k, nv); err != nil {
				return Undefined, err
			}
		}
	}
	return vm.Call(reviver, holder, []Value{String(key), v})
}
