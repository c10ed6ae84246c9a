package compiler

import (
	"fmt"
	"sort"

	"github.com/spacey-js/spacey/vm"
)

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (c *Compiler) compileStatements(stmts []Stmt) {
	for _, s := range stmts {
		if c.err != nil {
			return
		}
		c.compileStmt(s)
	}
}

func (c *Compiler) compileStmt(stmt Stmt) {
	c.fs.b.SetLine(stmt.Span().Start.Line)
	switch s := stmt.(type) {
	case *ExprStmt:
		c.compileExpr(s.Expr)
		if c.fs.top {
			c.emitOp(vm.OpStoreLocal, c.fs.completion)
		}
		c.emit(vm.OpPop)
	case *VarDecl:
		c.compileVarDecl(s)
	case *FunctionDecl:
		// Initialized when the enclosing block is entered.
	case *ClassDecl:
		c.compileClass(s.Class, s.Class.Name)
		c.storeName(s.Class.Name, s, true)
		c.emit(vm.OpPop)
	case *BlockStmt:
		c.compileBlock(s)
	case *EmptyStmt:
	case *DebuggerStmt:
		c.emit(vm.OpNop)
	case *IfStmt:
		c.compileIf(s)
	case *WhileStmt:
		c.compileWhile(s, nil)
	case *DoWhileStmt:
		c.compileDoWhile(s, nil)
	case *ForStmt:
		c.compileFor(s, nil)
	case *ForInStmt:
		c.compileForIn(s, nil)
	case *SwitchStmt:
		c.compileSwitch(s, nil)
	case *TryStmt:
		c.compileTry(s)
	case *ThrowStmt:
		c.compileExpr(s.Argument)
		c.emit(vm.OpThrow)
	case *ReturnStmt:
		c.compileReturn(s)
	case *BreakStmt:
		c.compileBreak(s)
	case *ContinueStmt:
		c.compileContinue(s)
	case *LabeledStmt:
		c.compileLabeled(s)
	case *WithStmt:
		c.compileWith(s)
	default:
		c.errorAt(stmt, vm.SyntaxError, "unsupported statement %T", stmt)
	}
}

func (c *Compiler) compileVarDecl(s *VarDecl) {
	for _, d := range s.Decls {
		switch {
		case d.Init != nil:
			c.compileNamedExpr(d.Init, d.Name)
		case s.Kind == DeclVar:
			continue
		default:
			c.emit(vm.OpLoadUndefined)
		}
		c.storeName(d.Name, s, true)
		c.emit(vm.OpPop)
	}
}

func (c *Compiler) compileBlock(b *BlockStmt) {
	c.fs.pushScope()
	c.enterBlock(b.Body)
	c.compileStatements(b.Body)
	c.fs.popScope()
}

func (c *Compiler) compileIf(s *IfStmt) {
	c.compileExpr(s.Test)
	elseJump := c.emitJump(vm.OpJumpIfFalse)
	c.compileStmt(s.Consequent)
	if s.Alternate == nil {
		c.patch(elseJump)
		return
	}
	endJump := c.emitJump(vm.OpJump)
	c.patch(elseJump)
	c.compileStmt(s.Alternate)
	c.patch(endJump)
}

// ---------------------------------------------------------------------------
// Loops
// ---------------------------------------------------------------------------

func (c *Compiler) pushControl(kind controlKind, labels []string) *control {
	ctl := &control{kind: kind, labels: labels, scopes: len(c.fs.scopes)}
	c.fs.controls = append(c.fs.controls, ctl)
	return ctl
}

func (c *Compiler) popControl() {
	c.fs.controls = c.fs.controls[:len(c.fs.controls)-1]
}

func (c *Compiler) patchAll(jumps []int, target int) {
	for _, j := range jumps {
		c.fs.b.PatchJumpTo(j, target)
	}
}

func (c *Compiler) compileWhile(s *WhileStmt, labels []string) {
	start := c.here()
	c.compileExpr(s.Test)
	exit := c.emitJump(vm.OpJumpIfFalse)
	ctl := c.pushControl(controlLoop, labels)
	c.compileStmt(s.Body)
	c.popControl()
	c.patchAll(ctl.continues, start)
	c.fs.b.EmitLoop(vm.OpJump, start)
	c.patch(exit)
	c.patchAll(ctl.breaks, c.here())
}

func (c *Compiler) compileDoWhile(s *DoWhileStmt, labels []string) {
	start := c.here()
	ctl := c.pushControl(controlLoop, labels)
	c.compileStmt(s.Body)
	c.popControl()
	c.patchAll(ctl.continues, c.here())
	c.compileExpr(s.Test)
	c.fs.b.EmitLoop(vm.OpJumpIfTrue, start)
	c.patchAll(ctl.breaks, c.here())
}

func (c *Compiler) compileFor(s *ForStmt, labels []string) {
	fs := c.fs
	var head *blockScope
	switch init := s.Init.(type) {
	case *VarDecl:
		if init.Kind != DeclVar {
			head = fs.pushScope()
			c.enterBlock([]Stmt{init})
		}
		c.compileVarDecl(init)
	case *ExprStmt:
		c.compileExpr(init.Expr)
		c.emit(vm.OpPop)
	}

	start := c.here()
	exit := -1
	if s.Test != nil {
		c.compileExpr(s.Test)
		exit = c.emitJump(vm.OpJumpIfFalse)
	}
	ctl := c.pushControl(controlLoop, labels)
	c.compileStmt(s.Body)
	c.popControl()

	c.patchAll(ctl.continues, c.here())
	// Each iteration gets its own copy of the loop's let bindings.
	if head != nil && head.hasCaptured() {
		c.emitOp(vm.OpCloseUpvalue, head.base)
	}
	if s.Update != nil {
		c.compileExpr(s.Update)
		c.emit(vm.OpPop)
	}
	c.fs.b.EmitLoop(vm.OpJump, start)
	if exit >= 0 {
		c.patch(exit)
	}
	c.patchAll(ctl.breaks, c.here())
	if head != nil {
		fs.popScope()
	}
}

func (c *Compiler) compileForIn(s *ForInStmt, labels []string) {
	fs := c.fs
	var head *blockScope
	name := ""
	if s.Decl != nil {
		name = s.Decl.Decls[0].Name
		if s.Decl.Kind != DeclVar {
			head = fs.pushScope()
			kind := bindLet
			if s.Decl.Kind == DeclConst {
				kind = bindConst
			}
			fs.declare(name, kind)
		}
	}

	c.compileExpr(s.Right)
	of := 0
	if s.Of {
		of = 1
	}
	c.emitOp(vm.OpForInInit, of)
	iter := fs.allocTemp()
	c.emitOp(vm.OpStoreLocal, iter)
	c.emit(vm.OpPop)

	start := c.here()
	c.emitOp(vm.OpLoadLocal, iter)
	next := c.emitJump(vm.OpForInNext)
	if s.Decl != nil {
		c.storeName(name, s.Decl, true)
	} else {
		c.assignTop(s.Target)
	}
	c.emit(vm.OpPop)

	ctl := c.pushControl(controlLoop, labels)
	c.compileStmt(s.Body)
	c.popControl()

	c.patchAll(ctl.continues, c.here())
	if head != nil && head.hasCaptured() {
		c.emitOp(vm.OpCloseUpvalue, head.base)
	}
	c.fs.b.EmitLoop(vm.OpJump, start)
	c.patch(next)
	c.patchAll(ctl.breaks, c.here())
	if head != nil {
		fs.popScope()
	}
	fs.freeTemp(iter)
}

// assignTop stores the value on top of the stack into target, leaving
// the value in place.
func (c *Compiler) assignTop(target Expr) {
	switch t := target.(type) {
	case *Identifier:
		c.storeName(t.Name, t, false)
	case *MemberExpr:
		c.withTemp(func(tmp int) {
			c.emitOp(vm.OpStoreLocal, tmp)
			c.emit(vm.OpPop)
			c.compileMemberObject(t)
			if t.Computed != nil {
				c.compileExpr(t.Computed)
				c.emitOp(vm.OpLoadLocal, tmp)
				c.emit(vm.OpSetElement)
			} else {
				c.emitOp(vm.OpLoadLocal, tmp)
				c.emitOp(vm.OpSetProperty, c.name(t.Name))
			}
		})
	default:
		c.errorAt(target, vm.SyntaxError, "invalid assignment target")
	}
}

// ---------------------------------------------------------------------------
// Switch
// ---------------------------------------------------------------------------

func (c *Compiler) compileSwitch(s *SwitchStmt, labels []string) {
	fs := c.fs
	c.compileExpr(s.Discriminant)
	disc := fs.allocTemp()
	c.emitOp(vm.OpStoreLocal, disc)
	c.emit(vm.OpPop)

	fs.pushScope()
	var all []Stmt
	for _, cs := range s.Cases {
		all = append(all, cs.Body...)
	}
	c.enterBlock(all)

	jumps := make([]int, len(s.Cases))
	def := -1
	for i, cs := range s.Cases {
		if cs.Test == nil {
			def = i
			continue
		}
		c.emitOp(vm.OpLoadLocal, disc)
		c.compileExpr(cs.Test)
		c.emit(vm.OpStrictEq)
		jumps[i] = c.emitJump(vm.OpJumpIfTrue)
	}
	fallback := c.emitJump(vm.OpJump)

	ctl := c.pushControl(controlSwitch, labels)
	for i, cs := range s.Cases {
		if i == def {
			c.patch(fallback)
		} else {
			c.patch(jumps[i])
		}
		c.compileStatements(cs.Body)
	}
	c.popControl()
	if def < 0 {
		c.patch(fallback)
	}
	c.patchAll(ctl.breaks, c.here())
	fs.popScope()
	fs.freeTemp(disc)
}

// ---------------------------------------------------------------------------
// Try
// ---------------------------------------------------------------------------

// compileTry lays out a try statement as
//
//	try:     block; [finally]; jump end
//	catch:   bind exception; handler; [finally]; jump end
//	finally: save exception; finally; rethrow
//	end:
//
// break, continue and return inside the protected regions run the
// finalizer inline before jumping out.
func (c *Compiler) compileTry(s *TryStmt) {
	fs := c.fs
	ctl := &control{kind: controlTry, finalizer: s.Finalizer, scopes: len(fs.scopes)}
	mark := len(fs.localNames)

	tryStart := c.here()
	fs.controls = append(fs.controls, ctl)
	c.compileBlock(s.Block)
	c.popControl()
	tryEnd := c.here()
	if s.Finalizer != nil {
		c.compileBlock(s.Finalizer)
	}
	exits := []int{c.emitJump(vm.OpJump)}
	regions := [][2]int{{tryStart, tryEnd}}

	if s.Handler != nil {
		catchStart := c.here()
		for _, r := range subtractHoles(regions, ctl.holes) {
			fs.b.AddHandler(r[0], r[1], catchStart)
		}
		c.closeFrom(mark)
		fs.pushScope()
		if s.Param != "" {
			l := fs.declare(s.Param, bindLet)
			c.emitOp(vm.OpStoreLocal, l.slot)
		}
		c.emit(vm.OpPop)
		fs.controls = append(fs.controls, ctl)
		c.enterBlock(s.Handler.Body)
		c.compileStatements(s.Handler.Body)
		c.popControl()
		fs.popScope()
		catchEnd := c.here()
		if s.Finalizer != nil {
			c.compileBlock(s.Finalizer)
		}
		exits = append(exits, c.emitJump(vm.OpJump))
		regions = append(regions, [2]int{catchStart, catchEnd})
	}

	if s.Finalizer != nil {
		target := c.here()
		for _, r := range subtractHoles(regions, ctl.holes) {
			fs.b.AddHandler(r[0], r[1], target)
		}
		c.closeFrom(mark)
		c.withTemp(func(exc int) {
			c.emitOp(vm.OpStoreLocal, exc)
			c.emit(vm.OpPop)
			c.compileBlock(s.Finalizer)
			c.emitOp(vm.OpLoadLocal, exc)
			c.emit(vm.OpThrow)
		})
	}
	for _, j := range exits {
		c.patch(j)
	}
}

// closeFrom closes upvalues over locals declared since slot mark. A throw
// can leave a block without running its scope exit.
func (c *Compiler) closeFrom(mark int) {
	if mark < len(c.fs.localNames) {
		c.emitOp(vm.OpCloseUpvalue, mark)
	}
}

// subtractHoles removes the hole ranges from each region.
func subtractHoles(regions, holes [][2]int) [][2]int {
	if len(holes) == 0 {
		return regions
	}
	sorted := append([][2]int(nil), holes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i][0] < sorted[j][0] })
	var out [][2]int
	for _, r := range regions {
		start := r[0]
		for _, h := range sorted {
			if h[1] <= start || h[0] >= r[1] {
				continue
			}
			if h[0] > start {
				out = append(out, [2]int{start, h[0]})
			}
			start = h[1]
		}
		if start < r[1] {
			out = append(out, [2]int{start, r[1]})
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Jumps out of statements
// ---------------------------------------------------------------------------

// leave runs the finalizers of every try statement between the current
// position and target (or all of them when target is nil).
func (c *Compiler) leave(target *control) {
	fs := c.fs
	var crossed []*control
	for i := len(fs.controls) - 1; i >= 0; i-- {
		ctl := fs.controls[i]
		if ctl == target {
			return
		}
		if ctl.kind != controlTry {
			continue
		}
		crossed = append(crossed, ctl)
		if ctl.finalizer == nil {
			continue
		}
		start := c.here()
		c.inlineFinalizer(ctl, i)
		end := c.here()
		for _, x := range crossed {
			x.holes = append(x.holes, [2]int{start, end})
		}
	}
}

// inlineFinalizer compiles the finalizer of the try at controls[idx] in
// the scope the try statement itself sees.
func (c *Compiler) inlineFinalizer(ctl *control, idx int) {
	fs := c.fs
	controls, scopes := fs.controls, fs.scopes
	fs.controls = controls[:idx:idx]
	fs.scopes = scopes[:ctl.scopes:ctl.scopes]
	c.compileBlock(ctl.finalizer)
	fs.controls, fs.scopes = controls, scopes
}

// closeScopesAbove closes upvalues of every scope nested deeper than n.
func (c *Compiler) closeScopesAbove(n int) {
	fs := c.fs
	if len(fs.scopes) > n {
		c.closeFrom(fs.scopes[n].base)
	}
}

func (c *Compiler) compileReturn(s *ReturnStmt) {
	if s.Argument != nil {
		c.compileExpr(s.Argument)
	} else {
		c.emit(vm.OpLoadUndefined)
	}
	if !c.hasFinalizer() {
		c.emit(vm.OpReturn)
		return
	}
	c.withTemp(func(tmp int) {
		c.emitOp(vm.OpStoreLocal, tmp)
		c.emit(vm.OpPop)
		c.leave(nil)
		c.emitOp(vm.OpLoadLocal, tmp)
		c.emit(vm.OpReturn)
	})
}

func (c *Compiler) hasFinalizer() bool {
	for _, ctl := range c.fs.controls {
		if ctl.kind == controlTry && ctl.finalizer != nil {
			return true
		}
	}
	return false
}

func (c *Compiler) compileBreak(s *BreakStmt) {
	var target *control
	controls := c.fs.controls
	for i := len(controls) - 1; i >= 0 && target == nil; i-- {
		ctl := controls[i]
		switch {
		case s.Label != "":
			if ctl.hasLabel(s.Label) {
				target = ctl
			}
		case ctl.kind == controlLoop || ctl.kind == controlSwitch:
			target = ctl
		}
	}
	if target == nil {
		if s.Label != "" {
			c.errorAt(s, vm.SyntaxError, "Undefined label '%s'", s.Label)
		} else {
			c.errorAt(s, vm.SyntaxError, "Illegal break statement")
		}
		return
	}
	c.leave(target)
	c.closeScopesAbove(target.scopes)
	target.breaks = append(target.breaks, c.emitJump(vm.OpJump))
}

func (c *Compiler) compileContinue(s *ContinueStmt) {
	var target *control
	controls := c.fs.controls
	for i := len(controls) - 1; i >= 0 && target == nil; i-- {
		ctl := controls[i]
		if ctl.kind == controlLoop && (s.Label == "" || ctl.hasLabel(s.Label)) {
			target = ctl
		}
	}
	if target == nil {
		c.errorAt(s, vm.SyntaxError, "Illegal continue statement")
		return
	}
	c.leave(target)
	c.closeScopesAbove(target.scopes)
	target.continues = append(target.continues, c.emitJump(vm.OpJump))
}

func (c *Compiler) compileLabeled(s *LabeledStmt) {
	labels := []string{s.Label}
	body := s.Body
	for {
		inner, ok := body.(*LabeledStmt)
		if !ok {
			break
		}
		labels = append(labels, inner.Label)
		body = inner.Body
	}
	c.fs.b.SetLine(body.Span().Start.Line)
	switch b := body.(type) {
	case *WhileStmt:
		c.compileWhile(b, labels)
	case *DoWhileStmt:
		c.compileDoWhile(b, labels)
	case *ForStmt:
		c.compileFor(b, labels)
	case *ForInStmt:
		c.compileForIn(b, labels)
	case *SwitchStmt:
		c.compileSwitch(b, labels)
	default:
		ctl := c.pushControl(controlLabel, labels)
		c.compileStmt(body)
		c.popControl()
		c.patchAll(ctl.breaks, c.here())
	}
}

// ---------------------------------------------------------------------------
// With
// ---------------------------------------------------------------------------

// compileWith keeps the object in a hidden local; identifiers inside the
// body probe it with the in operator before their lexical binding.
func (c *Compiler) compileWith(s *WithStmt) {
	fs := c.fs
	c.compileExpr(s.Object)
	scope := fs.pushScope()
	name := fmt.Sprintf("%%with%d", c.withSeq)
	c.withSeq++
	l := fs.declare(name, bindHidden)
	c.emitOp(vm.OpStoreLocal, l.slot)
	c.emit(vm.OpPop)
	scope.with = name
	c.compileStmt(s.Body)
	fs.popScope()
}
