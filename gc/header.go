package gc

import "sync/atomic"

// Color is the tri-color marking state of an object. The arena never
// collects individual objects, but the header keeps the state so heap
// walkers (the disassembler's heap dump, tests) can mark what they visit.
type Color uint32

const (
	White Color = iota // not yet visited
	Gray               // visited, children pending
	Black              // visited, children done
)

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Gray:
		return "gray"
	case Black:
		return "black"
	}
	return "unknown"
}

// Object header flags.
const (
	FlagExtensible uint32 = 1 << iota
	FlagSealed
	FlagFrozen
	FlagPrototype
	FlagFinalized
)

// maxAge saturates the age counter.
const maxAge = 255

// ObjectHeader is the per-slot metadata stored alongside every arena entry.
// All fields are atomics so headers can be inspected while another goroutine
// allocates.
type ObjectHeader struct {
	color atomic.Uint32
	age   atomic.Uint32
	flags atomic.Uint32
}

func (h *ObjectHeader) init() {
	h.color.Store(uint32(White))
	h.age.Store(0)
	h.flags.Store(FlagExtensible)
}

// Color returns the current mark color.
func (h *ObjectHeader) Color() Color { return Color(h.color.Load()) }

// SetColor sets the mark color.
func (h *ObjectHeader) SetColor(c Color) { h.color.Store(uint32(c)) }

// Age returns how many times the object has survived a heap walk.
func (h *ObjectHeader) Age() uint32 { return h.age.Load() }

// IncrementAge bumps the age, saturating at 255.
func (h *ObjectHeader) IncrementAge() {
	for {
		old := h.age.Load()
		if old >= maxAge {
			return
		}
		if h.age.CompareAndSwap(old, old+1) {
			return
		}
	}
}

// Flags returns the raw flag word.
func (h *ObjectHeader) Flags() uint32 { return h.flags.Load() }

// HasFlag reports whether every bit in f is set.
func (h *ObjectHeader) HasFlag(f uint32) bool { return h.flags.Load()&f == f }

// SetFlag sets the bits in f.
func (h *ObjectHeader) SetFlag(f uint32) {
	for {
		old := h.flags.Load()
		if h.flags.CompareAndSwap(old, old|f) {
			return
		}
	}
}

// ClearFlag clears the bits in f.
func (h *ObjectHeader) ClearFlag(f uint32) {
	for {
		old := h.flags.Load()
		if h.flags.CompareAndSwap(old, old&^f) {
			return
		}
	}
}

func (h *ObjectHeader) IsExtensible() bool { return h.HasFlag(FlagExtensible) }
func (h *ObjectHeader) IsSealed() bool     { return h.HasFlag(FlagSealed) }
func (h *ObjectHeader) IsFrozen() bool     { return h.HasFlag(FlagFrozen) }

// PreventExtensions clears the extensible bit.
func (h *ObjectHeader) PreventExtensions() { h.ClearFlag(FlagExtensible) }

// Seal makes the object non-extensible and marks it sealed.
func (h *ObjectHeader) Seal() {
	h.ClearFlag(FlagExtensible)
	h.SetFlag(FlagSealed)
}

// Freeze seals the object and marks it frozen.
func (h *ObjectHeader) Freeze() {
	h.Seal()
	h.SetFlag(FlagFrozen)
}
