package compiler

import (
	"fmt"

	"github.com/spacey-js/spacey/vm"
)

// ---------------------------------------------------------------------------
// Classes
// ---------------------------------------------------------------------------

// classLocals names the hidden bindings a class body shares with its
// methods: the parent constructor and the instance field initializer.
type classLocals struct {
	super  string
	fields string
}

func (c *Compiler) classLocals(cls *Class) classLocals {
	if c.classes == nil {
		c.classes = make(map[*Class]classLocals)
	}
	if cl, ok := c.classes[cls]; ok {
		return cl
	}
	n := len(c.classes)
	cl := classLocals{
		super:  fmt.Sprintf("%%super%d", n),
		fields: fmt.Sprintf("%%fields%d", n),
	}
	c.classes[cls] = cl
	return cl
}

// compileClass pushes the constructor of cls with its prototype methods
// and static members defined.
func (c *Compiler) compileClass(cls *Class, name string) {
	fs := c.fs
	cl := c.classLocals(cls)
	fs.pushScope()

	var self *local
	if cls.Name != "" && classMentions(cls, cls.Name) {
		self = fs.declare(cls.Name, bindConst)
		c.emit(vm.OpLoadHole)
		c.emitOp(vm.OpStoreLocal, self.slot)
		c.emit(vm.OpPop)
	}
	if cls.SuperClass != nil {
		c.compileExpr(cls.SuperClass)
		l := fs.declare(cl.super, bindHidden)
		c.emitOp(vm.OpStoreLocal, l.slot)
		c.emit(vm.OpPop)
	}
	if cls.Fields != nil {
		c.emitClosure(cls.Fields, "")
		l := fs.declare(cl.fields, bindHidden)
		c.emitOp(vm.OpStoreLocal, l.slot)
		c.emit(vm.OpPop)
	}

	ctor := cls.Constructor
	if ctor == nil {
		ctor = implicitConstructor(cls)
	}
	c.emitClosure(ctor, name)
	if cls.SuperClass != nil {
		c.emitLoad(c.resolve(cl.super))
		c.emit(vm.OpInherit)
	}

	for _, m := range cls.Members {
		c.fs.b.SetLine(m.SpanVal.Start.Line)
		c.emit(vm.OpDup)
		if !m.Static {
			c.emitOp(vm.OpGetProperty, c.name("prototype"))
		}
		if m.Computed != nil {
			c.compileExpr(m.Computed)
			c.emitClosure(m.Func, "")
			c.emit(vm.OpSetElement)
		} else {
			c.emitClosure(m.Func, "")
			c.emitOp(vm.OpDefineMethod, c.name(m.Func.Name))
		}
		c.emit(vm.OpPop)
	}

	if self != nil {
		c.emitOp(vm.OpStoreLocal, self.slot)
	}
	if cls.StaticFields != nil {
		c.emit(vm.OpDup)
		c.emitClosure(cls.StaticFields, "")
		c.emit(vm.OpSwap)
		c.emitOp(vm.OpCall, 0)
		c.emit(vm.OpPop)
	}
	fs.popScope()
}

// implicitConstructor is constructor() {} for a base class and
// constructor(...args) { super(...args) } for a derived one.
func implicitConstructor(cls *Class) *Function {
	fn := &Function{SpanVal: cls.SpanVal, Name: cls.Name, Kind: FunctionConstructor, Class: cls}
	if cls.SuperClass == nil {
		return fn
	}
	sp := cls.SpanVal
	fn.Params = []*Param{{SpanVal: sp, Name: "args", Rest: true}}
	fn.Body = []Stmt{&ExprStmt{SpanVal: sp, Expr: &CallExpr{
		SpanVal: sp,
		Callee:  &SuperExpr{SpanVal: sp},
		Args:    []Expr{&SpreadElement{SpanVal: sp, Argument: &Identifier{SpanVal: sp, Name: "args"}}},
	}}}
	return fn
}

// enclosingMethod returns the nearest non-arrow function being compiled.
func (c *Compiler) enclosingMethod() *Function {
	for f := c.fs; f != nil && f.fn != nil; f = f.parent {
		if f.fn.Kind != FunctionArrow {
			return f.fn
		}
	}
	return nil
}

// loadSuperBase pushes the object super.x reads from: the parent
// prototype in instance methods, the parent constructor in static ones.
func (c *Compiler) loadSuperBase(node Node) {
	fn := c.enclosingMethod()
	if fn == nil || fn.Class == nil {
		c.errorAt(node, vm.SyntaxError, "'super' keyword unexpected here")
		return
	}
	cls := fn.Class
	if cls.SuperClass == nil {
		if fn.Static {
			c.emitLoad(c.resolve("Function"))
		} else {
			c.emitLoad(c.resolve("Object"))
		}
		c.emitOp(vm.OpGetProperty, c.name("prototype"))
		return
	}
	c.emitLoad(c.resolve(c.classLocals(cls).super))
	if !fn.Static {
		c.emitOp(vm.OpGetProperty, c.name("prototype"))
	}
}

// compileSuperCall runs the parent constructor against this and then
// initializes the instance. Its value is this.
func (c *Compiler) compileSuperCall(e *CallExpr) {
	fn := c.enclosingMethod()
	if fn == nil || fn.Kind != FunctionConstructor || fn.Class == nil || fn.Class.SuperClass == nil {
		c.errorAt(e, vm.SyntaxError, "'super' keyword unexpected here")
		return
	}
	c.emitLoad(c.resolve(c.classLocals(fn.Class).super))
	c.emit(vm.OpLoadThis)
	c.emitOp(vm.OpNewArray, 0)
	c.pushElements(e.Args)
	c.emitOp(vm.OpApply, vm.ApplySuper)
	c.initInstance(fn)
}

// initInstance assigns parameter properties and runs the field
// initializer of ctor's class against this.
func (c *Compiler) initInstance(ctor *Function) {
	for _, name := range ctor.ParamProperties {
		c.emit(vm.OpLoadThis)
		c.loadName(name, ctor)
		c.emitOp(vm.OpSetProperty, c.name(name))
		c.emit(vm.OpPop)
	}
	if ctor.Class == nil || ctor.Class.Fields == nil {
		return
	}
	c.emitLoad(c.resolve(c.classLocals(ctor.Class).fields))
	c.emit(vm.OpLoadThis)
	c.emitOp(vm.OpCall, 0)
	c.emit(vm.OpPop)
}
