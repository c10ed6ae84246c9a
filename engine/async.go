package engine

import (
	"context"
	"runtime"
	"sync"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/spacey-js/spacey/vm"
)

// AsyncEngine shares one Engine between goroutines. Evaluations hold the
// write lock, so only one runs at a time; readers of VM state hold the
// read lock and may overlap each other.
//
// A context is checked before an evaluation starts. It cannot interrupt
// one that is already running.
type AsyncEngine struct {
	mu  sync.RWMutex
	eng *Engine
	log commonlog.Logger

	// readers bounds the file reads EvalFiles and EvalFilesOrdered run at once.
	readers int
}

// Result is the outcome of evaluating one file.
type Result struct {
	Path  string
	Value vm.Value
	// Display is Value rendered while the lock was held.
	Display string
	Err     error
}

// NewAsync creates an AsyncEngine around a new Engine.
func NewAsync(opts ...Option) *AsyncEngine {
	return WrapAsync(New(opts...))
}

// WrapAsync takes ownership of e. The caller must not use e directly
// afterwards.
func WrapAsync(e *Engine) *AsyncEngine {
	return &AsyncEngine{eng: e, log: commonlog.GetLogger("spacey.async"), readers: runtime.NumCPU()}
}

// Eval runs JavaScript source under the write lock.
func (a *AsyncEngine) Eval(ctx context.Context, src string) (vm.Value, error) {
	return a.eval(ctx, src, false)
}

// EvalTypeScript runs TypeScript source under the write lock.
func (a *AsyncEngine) EvalTypeScript(ctx context.Context, src string) (vm.Value, error) {
	return a.eval(ctx, src, true)
}

// EvalFile reads path without holding the lock, then evaluates it with the
// mode chosen by its extension.
func (a *AsyncEngine) EvalFile(ctx context.Context, path string) (vm.Value, error) {
	src, err := ReadSource(path)
	if err != nil {
		return vm.Undefined, err
	}
	return a.eval(ctx, src, IsTypeScriptPath(path))
}

func (a *AsyncEngine) eval(ctx context.Context, src string, ts bool) (vm.Value, error) {
	if err := ctx.Err(); err != nil {
		return vm.Undefined, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.eng.eval(src, ts)
}

func (a *AsyncEngine) evalResult(ctx context.Context, path, src string) Result {
	if err := ctx.Err(); err != nil {
		return Result{Path: path, Err: err}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	v, err := a.eng.eval(src, IsTypeScriptPath(path))
	r := Result{Path: path, Value: v, Err: err}
	if err == nil {
		r.Display = v.Inspect()
	}
	return r
}

// EvalFiles reads every file concurrently and evaluates each one as soon
// as its read completes. Results are in completion order.
func (a *AsyncEngine) EvalFiles(ctx context.Context, paths []string) []Result {
	var (
		mu      sync.Mutex
		results = make([]Result, 0, len(paths))
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.readers)
	for _, path := range paths {
		g.Go(func() error {
			var r Result
			src, err := ReadSource(path)
			if err != nil {
				r = Result{Path: path, Err: err}
			} else {
				r = a.evalResult(ctx, path, src)
			}
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	a.log.Debugf("evaluated %d files", len(results))
	return results
}

// EvalFilesOrdered reads every file concurrently, then evaluates them one
// after another in input order. A file that fails to read or evaluate does
// not stop the ones after it.
func (a *AsyncEngine) EvalFilesOrdered(ctx context.Context, paths []string) []Result {
	sources := make([]string, len(paths))
	readErrs := make([]error, len(paths))
	var g errgroup.Group
	g.SetLimit(a.readers)
	for i, path := range paths {
		g.Go(func() error {
			sources[i], readErrs[i] = ReadSource(path)
			return nil
		})
	}
	_ = g.Wait()

	results := make([]Result, len(paths))
	for i, path := range paths {
		if readErrs[i] != nil {
			results[i] = Result{Path: path, Err: readErrs[i]}
			continue
		}
		results[i] = a.evalResult(ctx, path, sources[i])
	}
	return results
}

// Inspect calls fn with the engine under the read lock. fn must not
// evaluate code.
func (a *AsyncEngine) Inspect(fn func(*Engine)) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	fn(a.eng)
}

// Global reads a script global under the read lock.
func (a *AsyncEngine) Global(name string) (vm.Value, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.eng.Global(name)
}

// Reset clears the engine under the write lock.
func (a *AsyncEngine) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.eng.Reset()
}
