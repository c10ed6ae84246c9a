package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"testing"
)

func TestAsyncEvalConcurrent(t *testing.T) {
	a := NewAsync(WithOutput(io.Discard))
	ctx := context.Background()
	if _, err := a.Eval(ctx, "var hits = 0; function hit() { hits = hits + 1; return hits; }"); err != nil {
		t.Fatal(err)
	}

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := a.Eval(ctx, "hit()"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	v, ok := a.Global("hits")
	if !ok || v.AsNumber() != n {
		t.Errorf("hits = %s, want %d", v.Inspect(), n)
	}
}

func TestAsyncCancelledContext(t *testing.T) {
	a := NewAsync(WithOutput(io.Discard))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.Eval(ctx, "var ran = true"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Eval with cancelled context = %v", err)
	}
	if _, err := a.EvalTypeScript(ctx, "1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("EvalTypeScript with cancelled context = %v", err)
	}
	if _, ok := a.Global("ran"); ok {
		t.Error("cancelled eval ran")
	}
}

func TestAsyncEvalFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "typed.ts", "const k: string = 'ok'; k")
	a := NewAsync(WithOutput(io.Discard))

	v, err := a.EvalFile(context.Background(), path)
	if err != nil || v.String() != "ok" {
		t.Fatalf("EvalFile = %s, %v", v.Inspect(), err)
	}
	if _, err := a.EvalFile(context.Background(), filepath.Join(dir, "missing.js")); !errors.Is(err, &Error{Kind: IOError}) {
		t.Errorf("missing file error = %v", err)
	}
}

func TestAsyncEvalFiles(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 5; i++ {
		paths = append(paths, writeFile(t, dir, fmt.Sprintf("f%d.js", i), fmt.Sprintf("var f%d = %d; f%d * 10", i, i, i)))
	}
	paths = append(paths, filepath.Join(dir, "absent.js"))

	a := NewAsync(WithOutput(io.Discard))
	results := a.EvalFiles(context.Background(), paths)
	if len(results) != len(paths) {
		t.Fatalf("got %d results, want %d", len(results), len(paths))
	}

	got := make(map[string]string)
	for _, r := range results {
		if r.Err != nil {
			got[filepath.Base(r.Path)] = "error"
			continue
		}
		got[filepath.Base(r.Path)] = r.Display
	}
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("f%d.js", i)
		if want := fmt.Sprint(i * 10); got[name] != want {
			t.Errorf("%s = %q, want %q", name, got[name], want)
		}
	}
	if got["absent.js"] != "error" {
		t.Errorf("absent.js = %q, want an error", got["absent.js"])
	}

	var names []string
	a.Inspect(func(e *Engine) {
		for i := 0; i < 5; i++ {
			if _, ok := e.Global(fmt.Sprintf("f%d", i)); ok {
				names = append(names, fmt.Sprintf("f%d", i))
			}
		}
	})
	sort.Strings(names)
	if len(names) != 5 {
		t.Errorf("globals defined by the files = %v", names)
	}
}

func TestAsyncEvalFilesBounded(t *testing.T) {
	a := NewAsync(WithOutput(io.Discard))
	if a.readers < 1 {
		t.Fatalf("readers = %d", a.readers)
	}
	a.readers = 2

	dir := t.TempDir()
	var paths []string
	for i := 0; i < 40; i++ {
		paths = append(paths, writeFile(t, dir, fmt.Sprintf("n%d.js", i),
			"var seen = (typeof seen === 'undefined' ? 0 : seen) + 1; seen"))
	}
	results := a.EvalFiles(context.Background(), paths)
	if len(results) != len(paths) {
		t.Fatalf("got %d results, want %d", len(results), len(paths))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("%s: %v", filepath.Base(r.Path), r.Err)
		}
	}
	if v, ok := a.Global("seen"); !ok || v.AsNumber() != 40 {
		t.Errorf("seen = %v, %v; want 40", v.Inspect(), ok)
	}
}

func TestAsyncEvalFilesOrdered(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "a.js", "var order = 'a'; order"),
		writeFile(t, dir, "b.ts", "order = order + 'b' as string; order"),
		writeFile(t, dir, "bad.js", "throw new TypeError('nope')"),
		writeFile(t, dir, "c.js", "order += 'c'; order"),
	}

	a := NewAsync(WithOutput(io.Discard))
	results := a.EvalFilesOrdered(context.Background(), paths)
	want := []string{"'a'", "'ab'", "", "'abc'"}
	for i, r := range results {
		if r.Path != paths[i] {
			t.Fatalf("result %d is for %s", i, r.Path)
		}
		if i == 2 {
			if !errors.Is(r.Err, &Error{Kind: TypeError}) {
				t.Errorf("bad.js error = %v", r.Err)
			}
			continue
		}
		if r.Err != nil || r.Display != want[i] {
			t.Errorf("%s = %q, %v; want %q", filepath.Base(r.Path), r.Display, r.Err, want[i])
		}
	}
}

func TestAsyncReset(t *testing.T) {
	a := WrapAsync(New(WithOutput(io.Discard)))
	if _, err := a.Eval(context.Background(), "var gone = 1"); err != nil {
		t.Fatal(err)
	}
	a.Reset()
	if _, ok := a.Global("gone"); ok {
		t.Error("global survived Reset")
	}
}
