package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"testing"

	"github.com/spacey-js/spacey/vm"
)

func TestNewParallelExecutorWorkers(t *testing.T) {
	if got := NewParallelExecutor(3).Workers(); got != 3 {
		t.Errorf("Workers() = %d, want 3", got)
	}
	if got := NewParallelExecutor(0).Workers(); got != runtime.NumCPU() {
		t.Errorf("Workers() = %d, want NumCPU", got)
	}
	if got := NewParallelExecutor(-1).Workers(); got != runtime.NumCPU() {
		t.Errorf("Workers() = %d, want NumCPU", got)
	}
}

func TestCompileParallel(t *testing.T) {
	var sources []string
	for i := 0; i < 20; i++ {
		sources = append(sources, fmt.Sprintf("var acc = 0; for (var i = 0; i <= %d; i++) acc += i; acc", i))
	}
	sources = append(sources, "var = broken")

	p := NewParallelExecutor(4)
	chunks, errs := p.CompileParallel(context.Background(), sources, false)
	if len(chunks) != len(sources) || len(errs) != len(sources) {
		t.Fatalf("result lengths = %d, %d", len(chunks), len(errs))
	}

	for i := 0; i < 20; i++ {
		if errs[i] != nil {
			t.Fatalf("source %d: %v", i, errs[i])
		}
		v, err := vm.NewVM(vm.WithOutput(io.Discard)).Execute(chunks[i])
		if err != nil {
			t.Fatal(err)
		}
		if want := float64(i * (i + 1) / 2); v.AsNumber() != want {
			t.Errorf("chunk %d = %s, want %v", i, v.Inspect(), want)
		}
	}

	last := len(sources) - 1
	if chunks[last] != nil || !errors.Is(errs[last], &Error{Kind: SyntaxError}) {
		t.Errorf("broken source = %v, %v", chunks[last], errs[last])
	}
}

func TestCompileParallelTypeScript(t *testing.T) {
	sources := []string{"let a: number = 1; a", "type T = string; const s: T = 'x'; s"}
	chunks, errs := NewParallelExecutor(2).CompileParallel(context.Background(), sources, true)
	for i, err := range errs {
		if err != nil {
			t.Fatalf("source %d: %v", i, err)
		}
	}
	e := New(WithOutput(io.Discard))
	if v, _ := e.Run(chunks[1]); v.String() != "x" {
		t.Errorf("second chunk = %s", v.Inspect())
	}
}

func TestCompileParallelDuplicates(t *testing.T) {
	sources := make([]string, 16)
	for i := range sources {
		sources[i] = "function sq(x) { return x * x; } sq(9)"
	}
	chunks, errs := NewParallelExecutor(8).CompileParallel(context.Background(), sources, false)
	for i := range sources {
		if errs[i] != nil {
			t.Fatal(errs[i])
		}
		v, err := vm.NewVM(vm.WithOutput(io.Discard)).Execute(chunks[i])
		if err != nil || v.AsNumber() != 81 {
			t.Errorf("chunk %d = %s, %v", i, v.Inspect(), err)
		}
	}
}

func TestParseParallel(t *testing.T) {
	sources := []string{"1 + 2", "function f() {}", "if (", "let x: number = 1"}
	progs, errs := NewParallelExecutor(2).ParseParallel(context.Background(), sources, false)

	for i := 0; i < 2; i++ {
		if errs[i] != nil || progs[i] == nil {
			t.Errorf("source %d = %v, %v", i, progs[i], errs[i])
		}
	}
	for i := 2; i < 4; i++ {
		if errs[i] == nil || progs[i] != nil {
			t.Errorf("source %d parsed: %q", i, sources[i])
		}
	}
	if len(progs[1].Body) != 1 {
		t.Errorf("function program has %d statements", len(progs[1].Body))
	}
}

func TestParallelCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	chunks, errs := NewParallelExecutor(2).CompileParallel(ctx, []string{"1", "2", "3"}, false)
	for i := range errs {
		if !errors.Is(errs[i], context.Canceled) || chunks[i] != nil {
			t.Errorf("job %d = %v, %v", i, chunks[i], errs[i])
		}
	}
}
