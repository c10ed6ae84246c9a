// Package gc provides the bump allocator that backs the script heap.
//
// An Arena hands out slots in O(1) with a single atomic add and is only
// ever reclaimed as a whole with Reset. Objects are addressed by Ref, an
// index plus the generation it was issued in, so a Ref from before a reset
// fails closed instead of reading whatever now lives in its slot.
package gc

import (
	"sync/atomic"
	"unsafe"
)

// BlockSize is the number of entries in one lazily created storage block.
const BlockSize = 1024

// Ref is an opaque handle to an arena slot.
type Ref struct {
	index uint32
	gen   uint32
}

// Index returns the slot index.
func (r Ref) Index() int { return int(r.index) }

// Generation returns the arena generation the ref was issued in.
func (r Ref) Generation() uint32 { return r.gen }

// IsZero reports whether r is the zero Ref. The zero Ref is never valid
// because arena generations start at 1.
func (r Ref) IsZero() bool { return r.gen == 0 }

// Pack encodes the ref into a single word.
func (r Ref) Pack() uint64 { return uint64(r.gen)<<32 | uint64(r.index) }

// UnpackRef is the inverse of Pack.
func UnpackRef(w uint64) Ref { return Ref{index: uint32(w), gen: uint32(w >> 32)} }

type entry[T any] struct {
	header ObjectHeader
	value  T
	ready  atomic.Bool
}

type block[T any] struct {
	entries []entry[T]
}

// Arena is a fixed-capacity, append-only allocation region.
//
// Allocate, Get and GetHeader are safe for concurrent use. Reset is not:
// the caller must guarantee no other goroutine touches the arena while it
// runs, and must drop every Ref issued before it.
type Arena[T any] struct {
	blocks   []atomic.Pointer[block[T]]
	count    atomic.Int64
	capacity int
	gen      atomic.Uint32
}

// NewArena creates an arena holding at most capacity objects. Storage is
// allocated one block at a time as slots are reserved.
func NewArena[T any](capacity int) *Arena[T] {
	if capacity < 0 {
		capacity = 0
	}
	nblocks := (capacity + BlockSize - 1) / BlockSize
	a := &Arena[T]{
		blocks:   make([]atomic.Pointer[block[T]], nblocks),
		capacity: capacity,
	}
	a.gen.Store(1)
	return a
}

// Allocate stores v in the next free slot. It returns false when the arena
// is full; that is a resource condition for the caller to report, not a
// fault.
func (a *Arena[T]) Allocate(v T) (Ref, bool) {
	if a.count.Load() >= int64(a.capacity) {
		return Ref{}, false
	}

	idx := a.count.Add(1) - 1
	if idx >= int64(a.capacity) {
		// Lost the race for the last slot.
		a.count.Add(-1)
		return Ref{}, false
	}

	e := a.slot(int(idx))
	e.header.init()
	e.value = v
	e.ready.Store(true)

	return Ref{index: uint32(idx), gen: a.gen.Load()}, true
}

func (a *Arena[T]) slot(idx int) *entry[T] {
	bi, off := idx/BlockSize, idx%BlockSize
	b := a.blocks[bi].Load()
	if b == nil {
		nb := &block[T]{entries: make([]entry[T], BlockSize)}
		if a.blocks[bi].CompareAndSwap(nil, nb) {
			b = nb
		} else {
			b = a.blocks[bi].Load()
		}
	}
	return &b.entries[off]
}

func (a *Arena[T]) lookup(idx int) (*entry[T], bool) {
	if idx < 0 || idx >= a.capacity || int64(idx) >= a.count.Load() {
		return nil, false
	}
	b := a.blocks[idx/BlockSize].Load()
	if b == nil {
		return nil, false
	}
	e := &b.entries[idx%BlockSize]
	if !e.ready.Load() {
		return nil, false
	}
	return e, true
}

// Get returns the object for ref, or false if ref is out of range, from an
// earlier generation, or not yet published.
func (a *Arena[T]) Get(ref Ref) (*T, bool) {
	if ref.gen != a.gen.Load() {
		return nil, false
	}
	return a.At(int(ref.index))
}

// At returns the object stored at index.
func (a *Arena[T]) At(index int) (*T, bool) {
	e, ok := a.lookup(index)
	if !ok {
		return nil, false
	}
	return &e.value, true
}

// GetHeader returns the header for ref.
func (a *Arena[T]) GetHeader(ref Ref) (*ObjectHeader, bool) {
	if ref.gen != a.gen.Load() {
		return nil, false
	}
	return a.HeaderAt(int(ref.index))
}

// HeaderAt returns the header stored at index.
func (a *Arena[T]) HeaderAt(index int) (*ObjectHeader, bool) {
	e, ok := a.lookup(index)
	if !ok {
		return nil, false
	}
	return &e.header, true
}

// Reset drops every object and invalidates all outstanding refs.
func (a *Arena[T]) Reset() {
	for i := range a.blocks {
		a.blocks[i].Store(nil)
	}
	a.count.Store(0)
	a.gen.Add(1)
}

// Len returns the number of live objects.
func (a *Arena[T]) Len() int { return int(a.count.Load()) }

// Cap returns the capacity in objects.
func (a *Arena[T]) Cap() int { return a.capacity }

// IsFull reports whether the next Allocate would fail.
func (a *Arena[T]) IsFull() bool { return a.count.Load() >= int64(a.capacity) }

// Generation returns the current generation.
func (a *Arena[T]) Generation() uint32 { return a.gen.Load() }

// Used returns the approximate number of bytes used by live entries.
func (a *Arena[T]) Used() int {
	var e entry[T]
	return a.Len() * int(unsafe.Sizeof(e))
}

// Each calls fn for every live object in index order until fn returns false.
func (a *Arena[T]) Each(fn func(ref Ref, v *T, h *ObjectHeader) bool) {
	gen := a.gen.Load()
	n := a.Len()
	for i := 0; i < n; i++ {
		e, ok := a.lookup(i)
		if !ok {
			continue
		}
		if !fn(Ref{index: uint32(i), gen: gen}, &e.value, &e.header) {
			return
		}
	}
}
