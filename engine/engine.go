// Package engine is the embedding API of Spacey. An Engine owns one VM and
// turns source text into values:
//
//	eng := engine.New()
//	v, err := eng.Eval("1 + 2 * 3")
//
// AsyncEngine serializes access to one Engine from many goroutines, and
// ParallelExecutor compiles independent sources on a worker pool.
package engine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/spacey-js/spacey/cache"
	"github.com/spacey-js/spacey/compiler"
	"github.com/spacey-js/spacey/manifest"
	"github.com/spacey-js/spacey/vm"
)

// Version is the engine release, checked against manifest constraints and
// recorded in cache rows.
const Version = "0.1.0"

// Error is the error type returned by every evaluation.
type Error = vm.Error

// ErrorKind classifies an Error.
type ErrorKind = vm.ErrorKind

// The closed set of error kinds.
const (
	SyntaxError    = vm.SyntaxError
	TypeError      = vm.TypeError
	ReferenceError = vm.ReferenceError
	RangeError     = vm.RangeError
	InternalError  = vm.InternalError
	IOError        = vm.IOError
)

// Engine compiles and runs scripts against a single VM. It is not safe for
// concurrent use; see AsyncEngine.
type Engine struct {
	id       uuid.UUID
	vm       *vm.VM
	cache    *cache.Cache
	log      commonlog.Logger
	warnings []string

	vmOpts []vm.Option
}

// Option configures an Engine.
type Option func(*Engine)

// WithHeapCapacity bounds the number of script objects.
func WithHeapCapacity(n int) Option {
	return func(e *Engine) { e.vmOpts = append(e.vmOpts, vm.WithHeapCapacity(n)) }
}

// WithMaxCallDepth bounds the call stack.
func WithMaxCallDepth(n int) Option {
	return func(e *Engine) { e.vmOpts = append(e.vmOpts, vm.WithMaxCallDepth(n)) }
}

// WithOutput redirects console output.
func WithOutput(w io.Writer) Option {
	return func(e *Engine) { e.vmOpts = append(e.vmOpts, vm.WithOutput(w)) }
}

// WithLogger replaces the engine logger.
func WithLogger(l commonlog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithCache looks compiled chunks up in c before compiling and stores new
// ones in it.
func WithCache(c *cache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithManifest applies the engine settings of a project manifest.
func WithManifest(m *manifest.Manifest) Option {
	return func(e *Engine) {
		if m == nil {
			return
		}
		if m.Engine.HeapCapacity > 0 {
			e.vmOpts = append(e.vmOpts, vm.WithHeapCapacity(m.Engine.HeapCapacity))
		}
		if m.Engine.MaxCallDepth > 0 {
			e.vmOpts = append(e.vmOpts, vm.WithMaxCallDepth(m.Engine.MaxCallDepth))
		}
	}
}

// New creates an engine with a fresh VM.
func New(opts ...Option) *Engine {
	e := &Engine{id: uuid.New()}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = commonlog.GetLogger("spacey.engine")
	}
	e.vm = vm.NewVM(e.vmOpts...)
	e.log.Debugf("[%s] engine created", e.shortID())
	return e
}

// ID returns the engine's unique identifier.
func (e *Engine) ID() string { return e.id.String() }

func (e *Engine) shortID() string { return e.id.String()[:8] }

// VM returns the underlying virtual machine.
func (e *Engine) VM() *vm.VM { return e.vm }

// Warnings returns the diagnostics of the most recent compilation.
func (e *Engine) Warnings() []string { return e.warnings }

// Eval runs src as JavaScript and returns its completion value.
func (e *Engine) Eval(src string) (vm.Value, error) {
	return e.eval(src, false)
}

// EvalTypeScript erases the TypeScript syntax of src and runs the rest.
func (e *Engine) EvalTypeScript(src string) (vm.Value, error) {
	return e.eval(src, true)
}

// EvalFile reads and runs a JavaScript file.
func (e *Engine) EvalFile(path string) (vm.Value, error) {
	return e.evalFile(path, false)
}

// EvalFileTypeScript reads and runs a TypeScript file.
func (e *Engine) EvalFileTypeScript(path string) (vm.Value, error) {
	return e.evalFile(path, true)
}

// EvalFileAuto runs path as TypeScript or JavaScript depending on its
// extension.
func (e *Engine) EvalFileAuto(path string) (vm.Value, error) {
	return e.evalFile(path, IsTypeScriptPath(path))
}

// IsTypeScriptPath reports whether path has a TypeScript extension.
func IsTypeScriptPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".tsx", ".mts", ".cts":
		return true
	}
	return false
}

// ReadSource reads a script file, mapping failures to IOError.
func ReadSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", vm.NewError(vm.IOError, err.Error())
	}
	return string(data), nil
}

func (e *Engine) evalFile(path string, ts bool) (vm.Value, error) {
	src, err := ReadSource(path)
	if err != nil {
		return vm.Undefined, err
	}
	return e.eval(src, ts)
}

func (e *Engine) eval(src string, ts bool) (vm.Value, error) {
	chunk, err := e.Compile(src, ts)
	if err != nil {
		return vm.Undefined, err
	}
	return e.Run(chunk)
}

// Compile turns src into a chunk without running it. With a cache
// attached, unchanged sources are not recompiled.
func (e *Engine) Compile(src string, ts bool) (*vm.Chunk, error) {
	if e.cache != nil {
		chunk, ok, err := e.cache.Get(src, ts)
		if err != nil {
			e.log.Warningf("[%s] cache lookup failed: %v", e.shortID(), err)
		} else if ok {
			e.warnings = nil
			return chunk, nil
		}
	}

	start := time.Now()
	prog, err := compiler.ParseSource(src, ts)
	if err != nil {
		return nil, err
	}
	c := compiler.NewCompiler()
	chunk, err := c.Compile(prog)
	if err != nil {
		return nil, err
	}
	e.warnings = c.Warnings()
	e.log.Debugf("[%s] compiled %d instructions in %s", e.shortID(), len(chunk.Instructions), time.Since(start))

	if e.cache != nil {
		if err := e.cache.Put(src, ts, chunk); err != nil {
			e.log.Warningf("[%s] cache store failed: %v", e.shortID(), err)
		}
	}
	return chunk, nil
}

// Run executes a compiled chunk in the engine's VM.
func (e *Engine) Run(chunk *vm.Chunk) (vm.Value, error) {
	start := time.Now()
	v, err := e.vm.Execute(chunk)
	e.log.Debugf("[%s] ran %s in %s", e.shortID(), chunk.Name, time.Since(start))
	return v, err
}

// Reset discards all script state, as if the engine were new.
func (e *Engine) Reset() {
	e.vm.Reset()
	e.warnings = nil
}

// Global returns the value of a script global.
func (e *Engine) Global(name string) (vm.Value, bool) {
	return e.vm.GetGlobal(name)
}

// SetGlobal binds a host value as a script global.
func (e *Engine) SetGlobal(name string, v vm.Value) {
	e.vm.SetGlobal(name, v)
}

// Format renders v the way the REPL prints results.
func (e *Engine) Format(v vm.Value) string {
	return v.Inspect()
}

// String identifies the engine in logs.
func (e *Engine) String() string {
	return fmt.Sprintf("engine %s", e.shortID())
}
