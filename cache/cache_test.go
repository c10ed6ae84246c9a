package cache

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/spacey-js/spacey/compiler"
	"github.com/spacey-js/spacey/vm"
)

func openTemp(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "sub", "chunks.db"), opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func compileJS(t *testing.T, src string, ts bool) *vm.Chunk {
	t.Helper()
	chunk, err := compiler.CompileSource(src, ts)
	if err != nil {
		t.Fatalf("compile %q: %v", src, err)
	}
	return chunk
}

func TestCacheMissThenHit(t *testing.T) {
	c := openTemp(t, WithEngineVersion("0.1.0"), WithOwner("test"))
	src := "let a = 20; a * 2 + 2"

	if _, ok, err := c.Get(src, false); err != nil || ok {
		t.Fatalf("Get on empty cache = %v, %v", ok, err)
	}
	if err := c.Put(src, false, compileJS(t, src, false)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	chunk, ok, err := c.Get(src, false)
	if err != nil || !ok {
		t.Fatalf("Get after Put = %v, %v", ok, err)
	}

	v, err := vm.NewVM(vm.WithOutput(io.Discard)).Execute(chunk)
	if err != nil {
		t.Fatal(err)
	}
	if v.String() != "42" {
		t.Errorf("cached chunk result = %s, want 42", v.Inspect())
	}

	stats, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 || stats.Hits != 1 || stats.Misses != 1 || stats.Bytes == 0 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestCacheKeysByMode(t *testing.T) {
	c := openTemp(t)
	src := "1 + 1"
	if err := c.Put(src, false, compileJS(t, src, false)); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(src, true); ok {
		t.Error("a JavaScript entry satisfied a TypeScript lookup")
	}
	if Key(src, true) == Key(src, false) {
		t.Error("keys should differ by mode")
	}
	if Key(src, false) != Key(src, false) {
		t.Error("Key is not deterministic")
	}
}

func TestCacheStaleEngineVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.db")
	src := "'v'"

	old, err := Open(path, WithEngineVersion("0.1.0"))
	if err != nil {
		t.Fatal(err)
	}
	if err := old.Put(src, false, compileJS(t, src, false)); err != nil {
		t.Fatal(err)
	}
	old.Close()

	newer, err := Open(path, WithEngineVersion("0.2.0"))
	if err != nil {
		t.Fatal(err)
	}
	defer newer.Close()
	if _, ok, err := newer.Get(src, false); err != nil || ok {
		t.Errorf("Get across versions = %v, %v; want a miss", ok, err)
	}
	if err := newer.Put(src, false, compileJS(t, src, false)); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := newer.Get(src, false); !ok {
		t.Error("rewritten entry should hit")
	}
}

func TestCacheCorruptRowIsDropped(t *testing.T) {
	c := openTemp(t)
	src := "1"
	if _, err := c.db.Exec(
		"INSERT INTO chunks (key, mode, engine, owner, created_at, data) VALUES (?, 'js', '', '', 0, ?)",
		Key(src, false), []byte("garbage"),
	); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Get(src, false); err != nil || ok {
		t.Fatalf("Get(corrupt) = %v, %v; want a miss", ok, err)
	}
	stats, _ := c.Stats()
	if stats.Entries != 0 {
		t.Errorf("corrupt row was not deleted: %+v", stats)
	}
}

func TestCacheDeleteAndClear(t *testing.T) {
	c := openTemp(t)
	for _, src := range []string{"1", "2", "3"} {
		if err := c.Put(src, false, compileJS(t, src, false)); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Delete("2", false); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get("2", false); ok {
		t.Error("deleted entry still hits")
	}
	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
	stats, _ := c.Stats()
	if stats.Entries != 0 {
		t.Errorf("entries after Clear = %d", stats.Entries)
	}
}

func TestCacheInMemory(t *testing.T) {
	c, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	src := "type T = number; const n: T = 3; n"
	if err := c.Put(src, true, compileJS(t, src, true)); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(src, true); !ok {
		t.Error("in-memory cache lost its entry")
	}
	if c.Path() != ":memory:" {
		t.Errorf("Path() = %q", c.Path())
	}
}
