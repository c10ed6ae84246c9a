package integration_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spacey-js/spacey/cache"
	"github.com/spacey-js/spacey/engine"
	"github.com/spacey-js/spacey/vm"
	"github.com/spacey-js/spacey/vm/dist"
)

// ---------------------------------------------------------------------------
// Integration test helpers
// ---------------------------------------------------------------------------

func newEngine(t *testing.T, opts ...engine.Option) *engine.Engine {
	t.Helper()
	return engine.New(append([]engine.Option{engine.WithOutput(io.Discard)}, opts...)...)
}

// eval runs source through the full lexer, parser, compiler and VM
// pipeline and returns the completion value as a string.
func eval(t *testing.T, e *engine.Engine, source string) string {
	t.Helper()
	v, err := e.Eval(source)
	if err != nil {
		t.Fatalf("eval error: %v\nsource: %s", err, source)
	}
	return v.String()
}

func evalTS(t *testing.T, e *engine.Engine, source string) string {
	t.Helper()
	v, err := e.EvalTypeScript(source)
	if err != nil {
		t.Fatalf("eval error: %v\nsource: %s", err, source)
	}
	return v.String()
}

func writeFile(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ---------------------------------------------------------------------------
// Programs
// ---------------------------------------------------------------------------

func TestIntegrationE2E_Factorial(t *testing.T) {
	e := newEngine(t)
	src := `
function fact(n) {
  var r = 1;
  for (var i = 2; i <= n; i++) r *= i;
  return r;
}
fact(10)`
	if got := eval(t, e, src); got != "3628800" {
		t.Errorf("fact(10) = %s", got)
	}
}

func TestIntegrationE2E_LinkedList(t *testing.T) {
	e := newEngine(t)
	src := `
class Node {
  constructor(value, next) { this.value = value; this.next = next; }
}
class List {
  constructor() { this.head = null; this.size = 0; }
  push(v) { this.head = new Node(v, this.head); this.size++; return this; }
  toArray() {
    var out = [];
    for (var n = this.head; n !== null; n = n.next) out.push(n.value);
    return out;
  }
}
var l = new List().push(1).push(2).push(3);
l.size + ':' + l.toArray().join('-')`
	if got := eval(t, e, src); got != "3:3-2-1" {
		t.Errorf("list = %s", got)
	}
}

func TestIntegrationE2E_Inheritance(t *testing.T) {
	e := newEngine(t)
	src := `
class Shape {
  constructor(name) { this.name = name; }
  describe() { return this.name + ' with area ' + this.area(); }
}
class Rect extends Shape {
  constructor(w, h) { super('rect'); this.w = w; this.h = h; }
  area() { return this.w * this.h; }
}
class Square extends Rect {
  constructor(s) { super(s, s); this.name = 'square'; }
}
var s = new Square(4);
s.describe() + ' ' + (s instanceof Shape)`
	if got := eval(t, e, src); got != "square with area 16 true" {
		t.Errorf("describe = %s", got)
	}
}

func TestIntegrationE2E_Closures(t *testing.T) {
	e := newEngine(t)
	src := `
function makeCounter() {
  var n = 0;
  return { inc: function () { return ++n; }, get: function () { return n; } };
}
var a = makeCounter(), b = makeCounter();
a.inc(); a.inc(); b.inc();
var fns = [];
for (let i = 0; i < 3; i++) fns.push(() => i * 10);
a.get() + ',' + b.get() + ',' + fns.map(f => f()).join('/')`
	if got := eval(t, e, src); got != "2,1,0/10/20" {
		t.Errorf("closures = %s", got)
	}
}

func TestIntegrationE2E_ExceptionsAcrossFrames(t *testing.T) {
	e := newEngine(t)
	src := `
var log = [];
function inner(x) {
  try {
    if (x > 2) throw new RangeError('too big: ' + x);
    return x;
  } finally {
    log.push('f' + x);
  }
}
function outer() {
  var sum = 0;
  for (var i = 0; i < 5; i++) {
    try { sum += inner(i); } catch (e) { log.push(e.name); }
  }
  return sum;
}
outer() + ' ' + log.join(',')`
	want := "3 f0,f1,f2,f3,RangeError,f4,RangeError"
	if got := eval(t, e, src); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestIntegrationE2E_ArrayPipeline(t *testing.T) {
	e := newEngine(t)
	src := `
var words = 'the quick brown fox jumps over the lazy dog'.split(' ');
var long = words.filter(w => w.length > 3).map(w => w.toUpperCase());
long.sort();
long.join(' ') + ' ' + words.reduce((acc, w) => acc + w.length, 0)`
	if got := eval(t, e, src); got != "BROWN JUMPS LAZY OVER QUICK 35" {
		t.Errorf("pipeline = %s", got)
	}
}

func TestIntegrationE2E_JSONRoundTrip(t *testing.T) {
	e := newEngine(t)
	src := `
var doc = JSON.parse('{"name":"spacey","tags":["js","ts"],"n":3}');
doc.n += 1;
doc.tags.push('cbor');
JSON.stringify(doc)`
	want := `{"name":"spacey","tags":["js","ts","cbor"],"n":4}`
	if got := eval(t, e, src); got != want {
		t.Errorf("JSON = %s, want %s", got, want)
	}
}

func TestIntegrationE2E_GlobalPersistence(t *testing.T) {
	e := newEngine(t)
	eval(t, e, "var total = 0; function add(n) { total += n; return total; }")
	eval(t, e, "add(5)")
	if got := eval(t, e, "add(7)"); got != "12" {
		t.Errorf("total = %s", got)
	}
	e.Reset()
	if _, err := e.Eval("add(1)"); err == nil || !strings.Contains(err.Error(), "ReferenceError") {
		t.Errorf("after Reset: %v", err)
	}
}

func TestIntegrationE2E_TypeScript(t *testing.T) {
	e := newEngine(t)
	src := `
interface Point { x: number; y: number }
type Pair<T> = [T, T];
enum Axis { X, Y }
abstract class Base<T> {
  protected items: T[] = [];
  abstract score(item: T): number;
  add(item: T): this { this.items.push(item); return this; }
  total(): number { return this.items.reduce((s, i) => s + this.score(i), 0); }
}
class Points extends Base<Point> {
  score(p: Point): number { return p.x * p.y; }
}
function pick(p: Point, axis: Axis): number {
  return axis === Axis.X ? p.x : p.y;
}
const pts = new Points().add({ x: 2, y: 3 }).add({ x: 4, y: 5 } as Point);
const pair: Pair<number> = [pick({ x: 1, y: 9 }, Axis.Y), pts.total()!];
pair.join(':')`
	if got := evalTS(t, e, src); got != "9:26" {
		t.Errorf("TypeScript = %s", got)
	}
}

func TestIntegrationE2E_UncaughtErrorKinds(t *testing.T) {
	e := newEngine(t)
	tests := []struct {
		src  string
		kind vm.ErrorKind
	}{
		{"undefinedThing + 1", vm.ReferenceError},
		{"null.prop", vm.TypeError},
		{"(function f() { return f(); })()", vm.RangeError},
		{"var = 1", vm.SyntaxError},
		{"a: a: ;", vm.SyntaxError},
	}
	for _, tc := range tests {
		_, err := e.Eval(tc.src)
		var verr *vm.Error
		if !errors.As(err, &verr) {
			t.Errorf("%s: error = %v (%T)", tc.src, err, err)
			continue
		}
		if verr.Kind != tc.kind {
			t.Errorf("%s: kind = %v, want %v", tc.src, verr.Kind, tc.kind)
		}
	}
}

// ---------------------------------------------------------------------------
// Cross-package pipelines
// ---------------------------------------------------------------------------

func TestIntegrationE2E_ChunkWireRoundTrip(t *testing.T) {
	src := `
function fib(n) { return n < 2 ? n : fib(n - 1) + fib(n - 2); }
var big = 2n ** 70n;
[fib(20), 'str', 1.5, big, /a+b/.test('aab')].join('|')`

	chunk, err := newEngine(t).Compile(src, false)
	if err != nil {
		t.Fatal(err)
	}
	data, err := dist.MarshalChunk(chunk)
	if err != nil {
		t.Fatalf("MarshalChunk: %v", err)
	}
	decoded, err := dist.UnmarshalChunk(data)
	if err != nil {
		t.Fatalf("UnmarshalChunk: %v", err)
	}
	if !dist.Equal(chunk, decoded) {
		t.Error("decoded chunk differs from the compiled one")
	}

	v, err := newEngine(t).Run(decoded)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := v.String(), "6765|str|1.5|1180591620717411303424|true"; got != want {
		t.Errorf("decoded run = %s, want %s", got, want)
	}
}

func TestIntegrationE2E_CacheAcrossEngines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.db")
	src := "var xs = []; for (var i = 0; i < 4; i++) xs.push(i * i); xs.join(',')"

	for round := 0; round < 2; round++ {
		c, err := cache.Open(path, cache.WithEngineVersion(engine.Version))
		if err != nil {
			t.Fatal(err)
		}
		e := newEngine(t, engine.WithCache(c))
		if got := eval(t, e, src); got != "0,1,4,9" {
			t.Errorf("round %d: %s", round, got)
		}
		st, err := c.Stats()
		if err != nil {
			t.Fatal(err)
		}
		if round == 0 && st.Misses != 1 {
			t.Errorf("first round misses = %d, want 1", st.Misses)
		}
		if round == 1 && st.Hits != 1 {
			t.Errorf("second round hits = %d, want 1", st.Hits)
		}
		if err := c.Close(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestIntegrationE2E_ParallelCompileSerialRun(t *testing.T) {
	sources := []string{
		"var acc = 1;",
		"acc = acc * 3;",
		"acc = acc + 4;",
		"acc = acc * acc;",
	}
	chunks, errs := engine.NewParallelExecutor(2).CompileParallel(context.Background(), sources, false)
	for i, err := range errs {
		if err != nil {
			t.Fatalf("source %d: %v", i, err)
		}
	}

	e := newEngine(t)
	for _, c := range chunks {
		if _, err := e.Run(c); err != nil {
			t.Fatal(err)
		}
	}
	if got := eval(t, e, "acc"); got != "49" {
		t.Errorf("acc = %s, want 49", got)
	}
}

func TestIntegrationE2E_AsyncEngineFiles(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "a.js", "var order = ['a'];"),
		writeFile(t, dir, "b.ts", "order.push('b' as string);"),
		writeFile(t, dir, "c.js", "order.push('c'); order.join('')"),
	}

	ae := engine.WrapAsync(newEngine(t))
	results := ae.EvalFilesOrdered(context.Background(), paths)
	if len(results) != len(paths) {
		t.Fatalf("got %d results, want %d", len(results), len(paths))
	}
	last := results[len(results)-1]
	if last.Err != nil || last.Value.String() != "abc" {
		t.Errorf("last result = %s, %v", last.Display, last.Err)
	}
}
