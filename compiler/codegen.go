package compiler

import (
	"fmt"

	"github.com/spacey-js/spacey/vm"
)

// ---------------------------------------------------------------------------
// Codegen: Compile AST to bytecode
// ---------------------------------------------------------------------------

// Compiler compiles a Program to a bytecode chunk. A Compiler is not safe
// for concurrent use; create one per compilation.
type Compiler struct {
	fs  *funcState
	err error

	// Top-level const names, for compile-time assignment checks.
	globalConsts map[string]bool

	chains   []*optionalChain
	classes  map[*Class]classLocals
	withSeq  int
	warnings []string
}

// NewCompiler creates a new compiler.
func NewCompiler() *Compiler {
	return &Compiler{globalConsts: make(map[string]bool)}
}

// Warnings returns non-fatal diagnostics from the last compilation.
func (c *Compiler) Warnings() []string {
	return c.warnings
}

// Compile compiles prog with a fresh Compiler.
func Compile(prog *Program) (*vm.Chunk, error) {
	return NewCompiler().Compile(prog)
}

// CompileSource parses and compiles src in one step.
func CompileSource(src string, typeScript bool) (*vm.Chunk, error) {
	prog, err := ParseSource(src, typeScript)
	if err != nil {
		return nil, err
	}
	return Compile(prog)
}

// errorAt records the first compilation error, positioned at node.
func (c *Compiler) errorAt(node Node, kind vm.ErrorKind, format string, args ...interface{}) {
	if c.err != nil {
		return
	}
	pos := node.Span().Start
	c.err = vm.NewError(kind, fmt.Sprintf("line %d:%d: %s", pos.Line, pos.Column, fmt.Sprintf(format, args...)))
}

func (c *Compiler) emit(op vm.Opcode) int { return c.fs.b.Emit(op) }

func (c *Compiler) emitOp(op vm.Opcode, operand int) int { return c.fs.b.EmitOperand(op, operand) }

func (c *Compiler) emitJump(op vm.Opcode) int { return c.fs.b.EmitJump(op) }

func (c *Compiler) patch(at int) { c.fs.b.PatchJump(at) }

func (c *Compiler) here() int { return c.fs.b.Len() }

func (c *Compiler) emitConst(v vm.Value) {
	c.emitOp(vm.OpLoadConst, c.fs.b.AddConstant(v))
}

func (c *Compiler) name(s string) int { return c.fs.b.AddName(s) }

// ---------------------------------------------------------------------------
// Programs
// ---------------------------------------------------------------------------

// Compile compiles a whole program. Top-level declarations become global
// bindings; the chunk halts with the completion value of the last
// expression statement executed.
func (c *Compiler) Compile(prog *Program) (*vm.Chunk, error) {
	sa := NewSemanticAnalyzer()
	sa.AnalyzeProgram(prog)
	if errs := sa.Errors(); len(errs) > 0 {
		return nil, vm.NewError(vm.SyntaxError, errs[0])
	}
	c.warnings = sa.Warnings()

	fs := newFuncState(nil, nil, "<main>")
	c.fs = fs
	fs.completion = fs.declare("%completion", bindHidden).slot

	c.declareProgramGlobals(prog.Body)
	c.initFunctionDecls(prog.Body)

	if n := len(prog.Body); n > 0 && resetsCompletion(prog.Body[n-1]) {
		c.emit(vm.OpLoadUndefined)
		c.emitOp(vm.OpStoreLocal, fs.completion)
		c.emit(vm.OpPop)
	}
	c.compileStatements(prog.Body)
	if c.err != nil {
		return nil, c.err
	}
	c.emitOp(vm.OpLoadLocal, fs.completion)
	c.emit(vm.OpHalt)

	chunk := c.finishChunk(fs)
	if err := fs.b.Err(); err != nil {
		return nil, err
	}
	return chunk, nil
}

// resetsCompletion reports whether stmt, as the last statement of a
// program, contributes its own completion value. Declarations do not.
func resetsCompletion(stmt Stmt) bool {
	switch stmt.(type) {
	case *ExprStmt, *VarDecl, *FunctionDecl, *ClassDecl, *EmptyStmt:
		return false
	}
	return true
}

func (c *Compiler) declareProgramGlobals(body []Stmt) {
	b := c.fs.b
	for _, name := range hoistedVars(body) {
		b.DeclareGlobal(name, vm.DeclVar)
	}
	for _, s := range body {
		switch s := s.(type) {
		case *FunctionDecl:
			b.DeclareGlobal(s.Func.Name, vm.DeclFunction)
		case *ClassDecl:
			b.DeclareGlobal(s.Class.Name, vm.DeclLet)
		case *VarDecl:
			for _, d := range s.Decls {
				switch s.Kind {
				case DeclLet:
					b.DeclareGlobal(d.Name, vm.DeclLet)
				case DeclConst:
					b.DeclareGlobal(d.Name, vm.DeclConst)
					c.globalConsts[d.Name] = true
				}
			}
		}
	}
}

func (c *Compiler) finishChunk(fs *funcState) *vm.Chunk {
	fs.b.SetNumLocals(len(fs.localNames))
	fs.b.SetLocalNames(fs.localNames)
	fs.b.SetNumUpvalues(len(fs.upvalues))
	return fs.b.Build()
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

var functionKinds = map[FunctionKind]vm.FunctionKind{
	FunctionNormal:      vm.FuncNormal,
	FunctionArrow:       vm.FuncArrow,
	FunctionMethod:      vm.FuncMethod,
	FunctionConstructor: vm.FuncClassConstructor,
}

// compileFunction compiles fn into a template. name overrides fn.Name for
// anonymous functions that take the name of their binding.
func (c *Compiler) compileFunction(fn *Function, name string) *vm.FunctionTemplate {
	if name == "" {
		name = fn.Name
	}
	chunkName := name
	if chunkName == "" {
		chunkName = "<anonymous>"
	}
	outer := c.fs
	fs := newFuncState(outer, fn, chunkName)
	c.fs = fs
	outerChains := c.chains
	c.chains = nil
	defer func() {
		c.fs = outer
		c.chains = outerChains
	}()

	t := &vm.FunctionTemplate{
		Name:      name,
		Kind:      functionKinds[fn.Kind],
		RestIndex: -1,
		Source:    fn.Source,
	}

	// Parameters occupy the first slots, in order, even when names repeat.
	for i, p := range fn.Params {
		l := &local{name: p.Name, slot: len(fs.localNames), kind: bindParam}
		fs.localNames = append(fs.localNames, p.Name)
		fs.scope().locals = append(fs.scope().locals, l)
		if p.Rest {
			t.RestIndex = i
		} else {
			t.NumParams++
		}
	}

	vars := hoistedVars(fn.Body)
	if fn.Kind != FunctionArrow && !declaresName(fn, vars, "arguments") {
		if u := scanArguments(fn); u.used {
			t.UsesArguments = true
			if u.general {
				fs.args = argumentsLocal
				slot := fs.declare("arguments", bindVar).slot
				c.emit(vm.OpLoadArguments)
				c.emitOp(vm.OpStoreLocal, slot)
				c.emit(vm.OpPop)
			} else {
				fs.args = argumentsFast
			}
		}
	}
	for _, v := range vars {
		fs.declare(v, bindVar)
	}

	for i, p := range fn.Params {
		if p.Default == nil {
			continue
		}
		fs.b.SetLine(p.SpanVal.Start.Line)
		c.emitOp(vm.OpLoadLocal, i)
		c.emit(vm.OpLoadUndefined)
		c.emit(vm.OpStrictEq)
		skip := c.emitJump(vm.OpJumpIfFalse)
		c.compileNamedExpr(p.Default, p.Name)
		c.emitOp(vm.OpStoreLocal, i)
		c.emit(vm.OpPop)
		c.patch(skip)
	}

	if fn.Kind == FunctionConstructor && (fn.Class == nil || fn.Class.SuperClass == nil) {
		c.initInstance(fn)
	}

	if fn.ExprBody != nil {
		fs.b.SetLine(fn.ExprBody.Span().Start.Line)
		c.compileExpr(fn.ExprBody)
		c.emit(vm.OpReturn)
	} else {
		c.enterBlock(fn.Body)
		c.compileStatements(fn.Body)
		c.emit(vm.OpLoadUndefined)
		c.emit(vm.OpReturn)
	}

	t.Chunk = c.finishChunk(fs)
	t.Upvalues = fs.upvalues
	if err := fs.b.Err(); err != nil && c.err == nil {
		c.err = err
	}
	return t
}

// declaresName reports whether a parameter or hoisted var of fn is name.
func declaresName(fn *Function, vars []string, name string) bool {
	for _, p := range fn.Params {
		if p.Name == name {
			return true
		}
	}
	for _, v := range vars {
		if v == name {
			return true
		}
	}
	return false
}

// emitClosure compiles fn and pushes a closure over it.
func (c *Compiler) emitClosure(fn *Function, name string) {
	t := c.compileFunction(fn, name)
	c.emitOp(vm.OpClosure, c.fs.b.AddConstant(vm.TemplateValue(t)))
}

// compileFunctionExpr pushes the closure for a function expression. A
// named expression that refers to itself gets a private binding of its
// own name.
func (c *Compiler) compileFunctionExpr(fn *Function, hint string) {
	if fn.Name == "" || fn.Kind == FunctionArrow || !mentions(fn, fn.Name) {
		c.emitClosure(fn, hint)
		return
	}
	fs := c.fs
	fs.pushScope()
	self := fs.declare(fn.Name, bindVar)
	c.emitClosure(fn, fn.Name)
	c.emitOp(vm.OpStoreLocal, self.slot)
	fs.popScope()
}

// ---------------------------------------------------------------------------
// Blocks
// ---------------------------------------------------------------------------

// enterBlock declares the lexical bindings of a statement list in the
// current scope and initializes its function declarations. Lexical
// bindings start in the uninitialized state.
func (c *Compiler) enterBlock(body []Stmt) {
	for _, s := range body {
		switch s := s.(type) {
		case *VarDecl:
			if s.Kind == DeclVar {
				continue
			}
			kind := bindLet
			if s.Kind == DeclConst {
				kind = bindConst
			}
			for _, d := range s.Decls {
				c.declareHole(d.Name, kind)
			}
		case *ClassDecl:
			c.declareHole(s.Class.Name, bindClass)
		}
	}
	c.initFunctionDecls(body)
}

func (c *Compiler) declareHole(name string, kind bindingKind) {
	l := c.fs.declare(name, kind)
	c.emit(vm.OpLoadHole)
	c.emitOp(vm.OpStoreLocal, l.slot)
	c.emit(vm.OpPop)
}

// initFunctionDecls creates the closures of the function declarations
// directly in body and stores them in their bindings.
func (c *Compiler) initFunctionDecls(body []Stmt) {
	for _, s := range body {
		if fd, ok := s.(*FunctionDecl); ok {
			c.fs.b.SetLine(fd.SpanVal.Start.Line)
			c.emitClosure(fd.Func, "")
			c.storeName(fd.Func.Name, fd, true)
			c.emit(vm.OpPop)
		}
	}
}

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

// resolve finds the binding name refers to, ignoring with statements.
func (c *Compiler) resolve(name string) ref {
	fs := c.fs
	if l := fs.lookupLocal(name); l != nil {
		return ref{kind: refLocal, index: l.slot, name: name, mutable: l.mutable()}
	}
	if idx := fs.resolveUpvalue(name); idx >= 0 {
		return ref{kind: refUpvalue, index: idx, name: name, mutable: fs.upinfo[idx].mutable}
	}
	return ref{kind: refGlobal, index: c.name(name), name: name, mutable: !c.globalConsts[name]}
}

func (c *Compiler) emitLoad(r ref) {
	switch r.kind {
	case refLocal:
		c.emitOp(vm.OpLoadLocal, r.index)
	case refUpvalue:
		c.emitOp(vm.OpLoadUpvalue, r.index)
	default:
		c.emitOp(vm.OpLoadGlobal, r.index)
	}
}

func (c *Compiler) emitStore(r ref) {
	switch r.kind {
	case refLocal:
		c.emitOp(vm.OpStoreLocal, r.index)
	case refUpvalue:
		c.emitOp(vm.OpStoreUpvalue, r.index)
	default:
		c.emitOp(vm.OpStoreGlobal, r.index)
	}
}

// withDispatch emits the probes for name against every enclosing with
// object. hit is called with the object's reference after the probe
// succeeds; miss emits the lexical fallback.
func (c *Compiler) withDispatch(name string, hit func(obj ref), miss func()) {
	withs := c.fs.withTargets(name)
	if len(withs) == 0 {
		miss()
		return
	}
	var ends []int
	for _, w := range withs {
		obj := c.resolve(w)
		c.emitConst(vm.String(name))
		c.emitLoad(obj)
		c.emit(vm.OpIn)
		next := c.emitJump(vm.OpJumpIfFalse)
		hit(obj)
		ends = append(ends, c.emitJump(vm.OpJump))
		c.patch(next)
	}
	miss()
	for _, j := range ends {
		c.patch(j)
	}
}

// loadName pushes the value of the variable name.
func (c *Compiler) loadName(name string, node Node) {
	c.withDispatch(name, func(obj ref) {
		c.emitLoad(obj)
		c.emitOp(vm.OpGetProperty, c.name(name))
	}, func() {
		c.emitLoad(c.resolve(name))
	})
}

// storeName assigns the top of stack to the variable name, leaving the
// value in place. init marks the initializing store of a declaration.
func (c *Compiler) storeName(name string, node Node, init bool) {
	c.withDispatch(name, func(obj ref) {
		c.emitLoad(obj)
		c.emit(vm.OpSwap)
		c.emitOp(vm.OpSetProperty, c.name(name))
	}, func() {
		r := c.resolve(name)
		if !init && !r.mutable {
			c.errorAt(node, vm.TypeError, "Assignment to constant variable '%s'", name)
			return
		}
		c.emitStore(r)
	})
}

// ---------------------------------------------------------------------------
// Temporaries
// ---------------------------------------------------------------------------

// withTemp runs body with a scratch local slot.
func (c *Compiler) withTemp(body func(slot int)) {
	slot := c.fs.allocTemp()
	body(slot)
	c.fs.freeTemp(slot)
}
