package vm

import (
	"strings"

	"github.com/spacey-js/spacey/gc"
)

// ---------------------------------------------------------------------------
// Object: arena-resident script objects
// ---------------------------------------------------------------------------

// ObjectClass is the internal [[Class]] of an object.
type ObjectClass uint8

const (
	ClassObject ObjectClass = iota
	ClassArray
	ClassArguments
	ClassError
	ClassDate
	ClassRegExp
	ClassBoolean
	ClassNumber
	ClassString
)

var classNames = [...]string{
	ClassObject:    "Object",
	ClassArray:     "Array",
	ClassArguments: "Arguments",
	ClassError:     "Error",
	ClassDate:      "Date",
	ClassRegExp:    "RegExp",
	ClassBoolean:   "Boolean",
	ClassNumber:    "Number",
	ClassString:    "String",
}

func (c ObjectClass) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return "Object"
}

// Object is a heap object. Arrays and arguments objects keep their indexed
// elements densely in Elements; everything else lives in Props.
type Object struct {
	Class    ObjectClass
	Proto    Value // Null or an object-like value
	Props    PropertyMap
	Elements []Value

	// Primitive is the wrapped value of Boolean/Number/String objects and
	// the time value (ms since epoch) of a Date.
	Primitive Value

	regexp *regexpData
}

// IsArrayLike reports whether the object stores indexed elements.
func (o *Object) IsArrayLike() bool {
	return o.Class == ClassArray || o.Class == ClassArguments
}

func (o *Object) defaultString(seen map[*Object]bool) string {
	switch o.Class {
	case ClassArray, ClassArguments:
		if seen[o] {
			return ""
		}
		seen[o] = true
		defer delete(seen, o)
		parts := make([]string, len(o.Elements))
		for i, el := range o.Elements {
			if el.IsNullish() {
				continue
			}
			if el.kind == KindObject {
				if inner := el.Object(); inner != nil {
					parts[i] = inner.defaultString(seen)
					continue
				}
			}
			parts[i] = el.String()
		}
		return strings.Join(parts, ",")
	case ClassError:
		name := "Error"
		if v, ok := o.Props.Get("name"); ok {
			name = v.String()
		} else if p := o.Proto.Object(); p != nil {
			if v, ok := p.Props.Get("name"); ok {
				name = v.String()
			}
		}
		msg := ""
		if v, ok := o.Props.Get("message"); ok {
			msg = v.String()
		}
		if msg == "" {
			return name
		}
		return name + ": " + msg
	case ClassDate:
		return formatDate(o.Primitive.AsNumber())
	case ClassRegExp:
		if o.regexp != nil {
			return "/" + o.regexp.source + "/" + o.regexp.flags
		}
	case ClassBoolean, ClassNumber, ClassString:
		return o.Primitive.String()
	}
	return "[object Object]"
}

// ---------------------------------------------------------------------------
// Heap: the arena plus a typed facade
// ---------------------------------------------------------------------------

// DefaultHeapCapacity is the default maximum number of live objects.
const DefaultHeapCapacity = 1 << 20

// Heap owns the arena that stores every script object of one VM.
type Heap struct {
	arena *gc.Arena[Object]
}

// NewHeap creates a heap holding at most capacity objects.
func NewHeap(capacity int) *Heap {
	return &Heap{arena: gc.NewArena[Object](capacity)}
}

// Allocate stores o and returns an object value referencing it.
func (h *Heap) Allocate(o Object) (Value, bool) {
	ref, ok := h.arena.Allocate(o)
	if !ok {
		return Undefined, false
	}
	return objectValue(h, ref), true
}

// Header returns the arena header of an object value.
func (h *Heap) Header(v Value) *gc.ObjectHeader {
	if v.kind != KindObject {
		return nil
	}
	hdr, ok := h.arena.GetHeader(v.Ref())
	if !ok {
		return nil
	}
	return hdr
}

// Len returns the number of live objects.
func (h *Heap) Len() int { return h.arena.Len() }

// Cap returns the object capacity.
func (h *Heap) Cap() int { return h.arena.Cap() }

// Used returns the approximate bytes held by live objects.
func (h *Heap) Used() int { return h.arena.Used() }

// Reset discards every object. All object values issued before the reset
// resolve to nil afterwards.
func (h *Heap) Reset() { h.arena.Reset() }

// Walk visits every live object, marking each one black and ageing it.
// It returns the number of objects visited.
func (h *Heap) Walk(fn func(v Value, o *Object)) int {
	n := 0
	h.arena.Each(func(ref gc.Ref, o *Object, hdr *gc.ObjectHeader) bool {
		hdr.SetColor(gc.Black)
		hdr.IncrementAge()
		if fn != nil {
			fn(objectValue(h, ref), o)
		}
		n++
		return true
	})
	return n
}
