package gc

import (
	"sync"
	"testing"
)

func TestArenaAllocate(t *testing.T) {
	a := NewArena[string](16)

	ref, ok := a.Allocate("hello")
	if !ok {
		t.Fatal("Allocate failed on empty arena")
	}
	if ref.Index() != 0 {
		t.Errorf("first index = %d, want 0", ref.Index())
	}

	v, ok := a.Get(ref)
	if !ok || *v != "hello" {
		t.Errorf("Get = %v, %v; want hello, true", v, ok)
	}
}

func TestArenaSequentialIndices(t *testing.T) {
	a := NewArena[int](64)
	for i := 0; i < 10; i++ {
		ref, ok := a.Allocate(i)
		if !ok {
			t.Fatalf("Allocate %d failed", i)
		}
		if ref.Index() != i {
			t.Errorf("index = %d, want %d", ref.Index(), i)
		}
	}
	if a.Len() != 10 {
		t.Errorf("Len = %d, want 10", a.Len())
	}
}

func TestArenaExhaustion(t *testing.T) {
	const capacity = BlockSize + 7 // spans two blocks
	a := NewArena[int](capacity)

	got := 0
	for i := 0; i < capacity+5; i++ {
		if _, ok := a.Allocate(i); ok {
			got++
		}
	}
	if got != capacity {
		t.Errorf("successful allocations = %d, want %d", got, capacity)
	}
	if !a.IsFull() {
		t.Error("IsFull = false after exhaustion")
	}
	if _, ok := a.Allocate(0); ok {
		t.Error("Allocate succeeded on full arena")
	}
}

func TestArenaZeroCapacity(t *testing.T) {
	a := NewArena[int](0)
	if _, ok := a.Allocate(1); ok {
		t.Error("Allocate succeeded with zero capacity")
	}
}

func TestArenaReset(t *testing.T) {
	a := NewArena[int](32)
	var refs []Ref
	for i := 0; i < 5; i++ {
		ref, _ := a.Allocate(i)
		refs = append(refs, ref)
	}

	a.Reset()

	if a.Len() != 0 {
		t.Errorf("Len after reset = %d, want 0", a.Len())
	}
	if a.Used() != 0 {
		t.Errorf("Used after reset = %d, want 0", a.Used())
	}
	for _, ref := range refs {
		if _, ok := a.Get(ref); ok {
			t.Errorf("Get(%d) succeeded after reset", ref.Index())
		}
		if _, ok := a.GetHeader(ref); ok {
			t.Errorf("GetHeader(%d) succeeded after reset", ref.Index())
		}
	}

	// A stale ref must not alias a new object in the same slot.
	fresh, _ := a.Allocate(99)
	if fresh.Index() != refs[0].Index() {
		t.Fatalf("fresh index = %d, want %d", fresh.Index(), refs[0].Index())
	}
	if _, ok := a.Get(refs[0]); ok {
		t.Error("stale ref resolved to the new object")
	}
	if v, ok := a.Get(fresh); !ok || *v != 99 {
		t.Errorf("Get(fresh) = %v, %v", v, ok)
	}
}

func TestArenaOutOfRange(t *testing.T) {
	a := NewArena[int](8)
	a.Allocate(1)

	if _, ok := a.At(1); ok {
		t.Error("At(1) succeeded with one live object")
	}
	if _, ok := a.At(-1); ok {
		t.Error("At(-1) succeeded")
	}
	if _, ok := a.HeaderAt(5); ok {
		t.Error("HeaderAt(5) succeeded")
	}
	var zero Ref
	if _, ok := a.Get(zero); ok {
		t.Error("zero Ref resolved")
	}
}

// A reservation that loses the race for the last slot bumps count past
// capacity before rolling back; reads in that window must fail closed.
func TestArenaReadPastCapacityDuringRollback(t *testing.T) {
	a := NewArena[int](BlockSize)
	a.count.Store(BlockSize + 1)

	if _, ok := a.At(BlockSize); ok {
		t.Error("At(capacity) succeeded")
	}
	if _, ok := a.HeaderAt(BlockSize); ok {
		t.Error("HeaderAt(capacity) succeeded")
	}
}

func TestArenaHeader(t *testing.T) {
	a := NewArena[int](4)
	ref, _ := a.Allocate(1)

	h, ok := a.GetHeader(ref)
	if !ok {
		t.Fatal("GetHeader failed")
	}
	if h.Age() != 0 {
		t.Errorf("age = %d, want 0", h.Age())
	}
	if h.Color() != White {
		t.Errorf("color = %v, want white", h.Color())
	}
	if !h.IsExtensible() {
		t.Error("new object not extensible")
	}

	h.Freeze()
	if !h.IsFrozen() || !h.IsSealed() || h.IsExtensible() {
		t.Errorf("flags after Freeze = %b", h.Flags())
	}

	for i := 0; i < 300; i++ {
		h.IncrementAge()
	}
	if h.Age() != maxAge {
		t.Errorf("age = %d, want saturated %d", h.Age(), maxAge)
	}
}

func TestArenaConcurrentAllocate(t *testing.T) {
	const capacity = 4000
	a := NewArena[int](capacity)

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[int]bool)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				ref, ok := a.Allocate(i)
				if !ok {
					continue
				}
				mu.Lock()
				if seen[ref.Index()] {
					t.Errorf("index %d handed out twice", ref.Index())
				}
				seen[ref.Index()] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != capacity {
		t.Errorf("distinct slots = %d, want %d", len(seen), capacity)
	}
	if a.Len() != capacity {
		t.Errorf("Len = %d, want %d", a.Len(), capacity)
	}
}

func TestRefPack(t *testing.T) {
	a := NewArena[int](4)
	a.Allocate(0)
	ref, _ := a.Allocate(1)
	if got := UnpackRef(ref.Pack()); got != ref {
		t.Errorf("UnpackRef(Pack) = %+v, want %+v", got, ref)
	}
}

func TestArenaEach(t *testing.T) {
	a := NewArena[int](8)
	for i := 0; i < 4; i++ {
		a.Allocate(i * 10)
	}
	sum := 0
	a.Each(func(_ Ref, v *int, h *ObjectHeader) bool {
		sum += *v
		h.SetColor(Black)
		return true
	})
	if sum != 60 {
		t.Errorf("sum = %d, want 60", sum)
	}
	h, _ := a.HeaderAt(2)
	if h.Color() != Black {
		t.Errorf("color = %v, want black", h.Color())
	}
}
