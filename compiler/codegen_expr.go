package compiler

import (
	"math/big"

	"github.com/spacey-js/spacey/vm"
)

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

var binaryOps = map[TokenType]vm.Opcode{
	TokenPlus:       vm.OpAdd,
	TokenMinus:      vm.OpSub,
	TokenStar:       vm.OpMul,
	TokenSlash:      vm.OpDiv,
	TokenPercent:    vm.OpMod,
	TokenStarStar:   vm.OpPow,
	TokenLess:       vm.OpLt,
	TokenGreater:    vm.OpGt,
	TokenLessEq:     vm.OpLe,
	TokenGreaterEq:  vm.OpGe,
	TokenEq:         vm.OpEq,
	TokenNotEq:      vm.OpNe,
	TokenStrictEq:   vm.OpStrictEq,
	TokenStrictNe:   vm.OpStrictNe,
	TokenShl:        vm.OpShl,
	TokenShr:        vm.OpShr,
	TokenUshr:       vm.OpUshr,
	TokenAmp:        vm.OpBitAnd,
	TokenPipe:       vm.OpBitOr,
	TokenCaret:      vm.OpBitXor,
	TokenInstanceof: vm.OpInstanceOf,
	TokenIn:         vm.OpIn,
}

// compoundOps maps compound assignment operators to their binary operator.
var compoundOps = map[TokenType]TokenType{
	TokenPlusEq:     TokenPlus,
	TokenMinusEq:    TokenMinus,
	TokenStarEq:     TokenStar,
	TokenSlashEq:    TokenSlash,
	TokenPercentEq:  TokenPercent,
	TokenStarStarEq: TokenStarStar,
	TokenShlEq:      TokenShl,
	TokenShrEq:      TokenShr,
	TokenUshrEq:     TokenUshr,
	TokenAmpEq:      TokenAmp,
	TokenPipeEq:     TokenPipe,
	TokenCaretEq:    TokenCaret,
}

// compileNamedExpr compiles e; an anonymous function or class takes name.
func (c *Compiler) compileNamedExpr(e Expr, name string) {
	switch e := e.(type) {
	case *FunctionExpr:
		c.compileFunctionExpr(e.Func, name)
	case *ClassExpr:
		if e.Class.Name == "" {
			c.compileClass(e.Class, name)
			return
		}
		c.compileClass(e.Class, e.Class.Name)
	default:
		c.compileExpr(e)
	}
}

func (c *Compiler) compileExpr(expr Expr) {
	if c.err != nil {
		return
	}
	switch e := expr.(type) {
	case *NumberLiteral:
		c.emitConst(vm.Number(e.Value))
	case *BigIntLiteral:
		n, ok := new(big.Int).SetString(e.Digits, 0)
		if !ok {
			c.errorAt(e, vm.SyntaxError, "invalid BigInt literal %s", e.Digits)
			return
		}
		c.emitOp(vm.OpLoadConst, c.fs.b.AddConstant(vm.BigInt(n)))
	case *StringLiteral:
		c.emitConst(vm.String(e.Value))
	case *TemplateLiteral:
		c.compileTemplate(e)
	case *RegExpLiteral:
		idx := c.fs.b.AddRawConstant(vm.String(e.Pattern))
		c.fs.b.AddRawConstant(vm.String(e.Flags))
		c.emitOp(vm.OpNewRegExp, idx)
	case *BooleanLiteral:
		if e.Value {
			c.emit(vm.OpLoadTrue)
		} else {
			c.emit(vm.OpLoadFalse)
		}
	case *NullLiteral:
		c.emit(vm.OpLoadNull)
	case *Identifier:
		c.compileIdentifier(e)
	case *ThisExpr:
		c.emit(vm.OpLoadThis)
	case *SuperExpr:
		c.errorAt(e, vm.SyntaxError, "'super' keyword unexpected here")
	case *ArrayLiteral:
		c.compileArray(e)
	case *SpreadElement:
		c.errorAt(e, vm.SyntaxError, "unexpected spread element")
	case *ObjectLiteral:
		c.compileObject(e)
	case *FunctionExpr:
		c.compileFunctionExpr(e.Func, "")
	case *ClassExpr:
		c.compileClass(e.Class, e.Class.Name)
	case *UnaryExpr:
		c.compileUnary(e)
	case *UpdateExpr:
		c.compileUpdate(e)
	case *BinaryExpr:
		c.compileExpr(e.Left)
		c.compileExpr(e.Right)
		op, ok := binaryOps[e.Op]
		if !ok {
			c.errorAt(e, vm.SyntaxError, "unsupported operator %s", e.Op)
			return
		}
		c.emit(op)
	case *LogicalExpr:
		c.compileLogical(e)
	case *ConditionalExpr:
		c.compileExpr(e.Test)
		elseJump := c.emitJump(vm.OpJumpIfFalse)
		c.compileExpr(e.Consequent)
		endJump := c.emitJump(vm.OpJump)
		c.patch(elseJump)
		c.compileExpr(e.Alternate)
		c.patch(endJump)
	case *AssignExpr:
		c.compileAssign(e)
	case *SequenceExpr:
		for i, x := range e.Exprs {
			c.compileExpr(x)
			if i < len(e.Exprs)-1 {
				c.emit(vm.OpPop)
			}
		}
	case *CallExpr:
		c.compileCall(e)
	case *NewExpr:
		c.compileNew(e)
	case *MemberExpr:
		c.compileMember(e)
	case *OptionalChain:
		c.compileOptionalChain(e)
	default:
		c.errorAt(expr, vm.SyntaxError, "unsupported expression %T", expr)
	}
}

func (c *Compiler) compileIdentifier(e *Identifier) {
	if e.Name == "undefined" {
		if r := c.resolve("undefined"); r.kind == refGlobal && len(c.fs.withTargets("undefined")) == 0 {
			c.emit(vm.OpLoadUndefined)
			return
		}
	}
	c.loadName(e.Name, e)
}

func (c *Compiler) compileTemplate(e *TemplateLiteral) {
	c.emitConst(vm.String(e.Quasis[0]))
	for i, x := range e.Exprs {
		c.compileExpr(x)
		c.emit(vm.OpAdd)
		if q := e.Quasis[i+1]; q != "" {
			c.emitConst(vm.String(q))
			c.emit(vm.OpAdd)
		}
	}
}

// ---------------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------------

func (c *Compiler) compileArray(e *ArrayLiteral) {
	spread := len(e.Elements) > vm.MaxArgCount
	for _, el := range e.Elements {
		if _, ok := el.(*SpreadElement); ok {
			spread = true
		}
	}
	if !spread {
		for _, el := range e.Elements {
			if el == nil {
				c.emit(vm.OpLoadUndefined)
			} else {
				c.compileExpr(el)
			}
		}
		c.emitOp(vm.OpNewArray, len(e.Elements))
		return
	}
	c.emitOp(vm.OpNewArray, 0)
	c.pushElements(e.Elements)
}

// pushElements appends each element to the array on top of the stack,
// expanding spread elements.
func (c *Compiler) pushElements(elems []Expr) {
	for _, el := range elems {
		switch el := el.(type) {
		case nil:
			c.emit(vm.OpLoadUndefined)
			c.emitOp(vm.OpArrayPush, 0)
		case *SpreadElement:
			c.compileExpr(el.Argument)
			c.emitOp(vm.OpArrayPush, 1)
		default:
			c.compileExpr(el)
			c.emitOp(vm.OpArrayPush, 0)
		}
	}
}

func (c *Compiler) compileObject(e *ObjectLiteral) {
	c.emit(vm.OpNewObject)
	for _, p := range e.Properties {
		switch p.Kind {
		case PropertyGetter, PropertySetter:
			if p.Computed != nil {
				c.errorAt(e, vm.SyntaxError, "computed accessor names are not supported")
				return
			}
			fe, ok := p.Value.(*FunctionExpr)
			if !ok {
				continue
			}
			c.emit(vm.OpDup)
			c.emitClosure(fe.Func, "")
			c.emitOp(vm.OpDefineMethod, c.name(fe.Func.Name))
			c.emit(vm.OpPop)
		default:
			c.emit(vm.OpDup)
			if p.Computed != nil {
				c.compileExpr(p.Computed)
				c.compileExpr(p.Value)
				c.emit(vm.OpSetElement)
			} else {
				c.compileNamedExpr(p.Value, p.Key)
				c.emitOp(vm.OpSetProperty, c.name(p.Key))
			}
			c.emit(vm.OpPop)
		}
	}
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

func (c *Compiler) compileUnary(e *UnaryExpr) {
	switch e.Op {
	case TokenTypeof:
		c.compileTypeof(e.Operand)
		return
	case TokenDelete:
		c.compileDelete(e.Operand)
		return
	case TokenVoid:
		c.compileExpr(e.Operand)
		c.emit(vm.OpPop)
		c.emit(vm.OpLoadUndefined)
		return
	}
	c.compileExpr(e.Operand)
	switch e.Op {
	case TokenBang:
		c.emit(vm.OpNot)
	case TokenMinus:
		c.emit(vm.OpNeg)
	case TokenPlus:
		c.emit(vm.OpPlus)
	case TokenTilde:
		c.emit(vm.OpBitNot)
	default:
		c.errorAt(e, vm.SyntaxError, "unsupported unary operator %s", e.Op)
	}
}

// compileTypeof never throws for an unresolvable global name.
func (c *Compiler) compileTypeof(operand Expr) {
	id, ok := operand.(*Identifier)
	if !ok {
		c.compileExpr(operand)
		c.emit(vm.OpTypeOf)
		return
	}
	c.withDispatch(id.Name, func(obj ref) {
		c.emitLoad(obj)
		c.emitOp(vm.OpGetProperty, c.name(id.Name))
		c.emit(vm.OpTypeOf)
	}, func() {
		r := c.resolve(id.Name)
		if r.kind == refGlobal {
			c.emitOp(vm.OpTypeOfGlobal, r.index)
			return
		}
		c.emitLoad(r)
		c.emit(vm.OpTypeOf)
	})
}

func (c *Compiler) compileDelete(operand Expr) {
	switch t := operand.(type) {
	case *MemberExpr:
		if _, ok := t.Object.(*SuperExpr); ok {
			c.errorAt(t, vm.ReferenceError, "Unsupported reference to 'super'")
			return
		}
		c.compileExpr(t.Object)
		if t.Computed != nil {
			c.compileExpr(t.Computed)
		} else {
			c.emitConst(vm.String(t.Name))
		}
		c.emit(vm.OpDeleteProperty)
	case *Identifier:
		c.emit(vm.OpLoadFalse)
	default:
		c.compileExpr(operand)
		c.emit(vm.OpPop)
		c.emit(vm.OpLoadTrue)
	}
}

func (c *Compiler) compileLogical(e *LogicalExpr) {
	c.compileExpr(e.Left)
	c.emit(vm.OpDup)
	var end int
	switch e.Op {
	case TokenAnd:
		end = c.emitJump(vm.OpJumpIfFalse)
	case TokenOr:
		end = c.emitJump(vm.OpJumpIfTrue)
	default:
		c.emit(vm.OpLoadNull)
		c.emit(vm.OpEq)
		end = c.emitJump(vm.OpJumpIfFalse)
	}
	c.emit(vm.OpPop)
	c.compileExpr(e.Right)
	c.patch(end)
}

// ---------------------------------------------------------------------------
// Assignment
// ---------------------------------------------------------------------------

// logicalAssign maps &&=, ||= and ??= to their logical operator.
var logicalAssign = map[TokenType]TokenType{
	TokenAndEq:     TokenAnd,
	TokenOrEq:      TokenOr,
	TokenNullishEq: TokenNullish,
}

func (c *Compiler) compileAssign(e *AssignExpr) {
	if op, ok := logicalAssign[e.Op]; ok {
		c.compileLogicalAssign(e, op)
		return
	}
	if e.Op == TokenAssign {
		switch t := e.Target.(type) {
		case *Identifier:
			c.compileNamedExpr(e.Value, t.Name)
			c.storeName(t.Name, t, false)
		case *MemberExpr:
			c.compileMemberTarget(t)
			c.compileExpr(e.Value)
			c.emitMemberStore(t)
		default:
			c.errorAt(e, vm.SyntaxError, "Invalid left-hand side in assignment")
		}
		return
	}

	bin, ok := compoundOps[e.Op]
	if !ok {
		c.errorAt(e, vm.SyntaxError, "unsupported assignment operator %s", e.Op)
		return
	}
	op := binaryOps[bin]
	switch t := e.Target.(type) {
	case *Identifier:
		c.loadName(t.Name, t)
		c.compileExpr(e.Value)
		c.emit(op)
		c.storeName(t.Name, t, false)
	case *MemberExpr:
		c.compileMemberTarget(t)
		c.emitMemberReload(t)
		c.compileExpr(e.Value)
		c.emit(op)
		c.emitMemberStore(t)
	default:
		c.errorAt(e, vm.SyntaxError, "Invalid left-hand side in assignment")
	}
}

// compileLogicalAssign evaluates the right side and stores only when the
// logical operator would select it.
func (c *Compiler) compileLogicalAssign(e *AssignExpr, op TokenType) {
	test := func() int {
		switch op {
		case TokenAnd:
			return c.emitJump(vm.OpJumpIfFalse)
		case TokenOr:
			return c.emitJump(vm.OpJumpIfTrue)
		}
		c.emit(vm.OpLoadNull)
		c.emit(vm.OpEq)
		return c.emitJump(vm.OpJumpIfFalse)
	}
	switch t := e.Target.(type) {
	case *Identifier:
		c.loadName(t.Name, t)
		c.emit(vm.OpDup)
		end := test()
		c.emit(vm.OpPop)
		c.compileNamedExpr(e.Value, t.Name)
		c.storeName(t.Name, t, false)
		c.patch(end)
	case *MemberExpr:
		c.withTemp(func(tmp int) {
			c.compileMemberTarget(t)
			c.emitMemberReload(t)
			c.emitOp(vm.OpStoreLocal, tmp)
			c.emit(vm.OpDup)
			skip := test()
			c.emit(vm.OpPop)
			c.compileExpr(e.Value)
			c.emitMemberStore(t)
			done := c.emitJump(vm.OpJump)
			c.patch(skip)
			// Drop the target operands, keep the current value.
			c.emit(vm.OpPop)
			if t.Computed != nil {
				c.emit(vm.OpPop)
			}
			c.emit(vm.OpPop)
			c.emitOp(vm.OpLoadLocal, tmp)
			c.patch(done)
		})
	default:
		c.errorAt(e, vm.SyntaxError, "Invalid left-hand side in assignment")
	}
}

// compileMemberTarget pushes the operands of a member assignment: the
// object, and the key when computed.
func (c *Compiler) compileMemberTarget(t *MemberExpr) {
	if _, ok := t.Object.(*SuperExpr); ok {
		c.emit(vm.OpLoadThis)
	} else {
		c.compileExpr(t.Object)
	}
	if t.Computed != nil {
		c.compileExpr(t.Computed)
	}
}

// emitMemberReload reads the current value of the target whose operands
// compileMemberTarget pushed, keeping the operands.
func (c *Compiler) emitMemberReload(t *MemberExpr) {
	if t.Computed != nil {
		c.emit(vm.OpDup2)
		c.emit(vm.OpGetElement)
		return
	}
	c.emit(vm.OpDup)
	c.emitOp(vm.OpGetProperty, c.name(t.Name))
}

func (c *Compiler) emitMemberStore(t *MemberExpr) {
	if t.Computed != nil {
		c.emit(vm.OpSetElement)
		return
	}
	c.emitOp(vm.OpSetProperty, c.name(t.Name))
}

func (c *Compiler) compileUpdate(e *UpdateExpr) {
	op := vm.OpInc
	if e.Op == TokenDecrement {
		op = vm.OpDec
	}
	switch t := e.Target.(type) {
	case *Identifier:
		c.loadName(t.Name, t)
		if e.Prefix {
			c.emit(op)
			c.storeName(t.Name, t, false)
			return
		}
		c.emit(vm.OpToNumeric)
		c.emit(vm.OpDup)
		c.emit(op)
		c.storeName(t.Name, t, false)
		c.emit(vm.OpPop)
	case *MemberExpr:
		c.compileMemberTarget(t)
		c.emitMemberReload(t)
		if e.Prefix {
			c.emit(op)
			c.emitMemberStore(t)
			return
		}
		c.withTemp(func(tmp int) {
			c.emit(vm.OpToNumeric)
			c.emitOp(vm.OpStoreLocal, tmp)
			c.emit(op)
			c.emitMemberStore(t)
			c.emit(vm.OpPop)
			c.emitOp(vm.OpLoadLocal, tmp)
		})
	default:
		fix := "postfix"
		if e.Prefix {
			fix = "prefix"
		}
		c.errorAt(e, vm.SyntaxError, "Invalid left-hand side expression in %s operation", fix)
	}
}

// ---------------------------------------------------------------------------
// Member access and optional chains
// ---------------------------------------------------------------------------

// optionalChain collects the short-circuit jumps of one a?.b chain. Each
// jump leaves pops extra values on the stack that the exit discards.
type optionalChain struct {
	exits []chainExit
}

type chainExit struct {
	jump int
	pops int
}

func (c *Compiler) compileOptionalChain(e *OptionalChain) {
	chain := &optionalChain{}
	c.chains = append(c.chains, chain)
	c.compileExpr(e.Expr)
	c.chains = c.chains[:len(c.chains)-1]
	if len(chain.exits) == 0 {
		return
	}
	done := c.emitJump(vm.OpJump)
	var ends []int
	for i, x := range chain.exits {
		c.patch(x.jump)
		for j := 0; j < x.pops; j++ {
			c.emit(vm.OpPop)
		}
		c.emit(vm.OpLoadUndefined)
		if i < len(chain.exits)-1 {
			ends = append(ends, c.emitJump(vm.OpJump))
		}
	}
	c.patchAll(ends, c.here())
	c.patch(done)
}

// optionalCheck short-circuits the enclosing chain when the value on top
// of the stack is null or undefined. pops is the number of values the
// chain has pushed, including that value.
func (c *Compiler) optionalCheck(node Node, pops int) {
	if len(c.chains) == 0 {
		c.errorAt(node, vm.SyntaxError, "optional chain outside of a chain expression")
		return
	}
	chain := c.chains[len(c.chains)-1]
	c.emit(vm.OpDup)
	c.emit(vm.OpLoadNull)
	c.emit(vm.OpEq)
	chain.exits = append(chain.exits, chainExit{jump: c.emitJump(vm.OpJumpIfTrue), pops: pops})
}

// compileMemberObject pushes the object a member expression reads from.
func (c *Compiler) compileMemberObject(m *MemberExpr) {
	if sup, ok := m.Object.(*SuperExpr); ok {
		c.loadSuperBase(sup)
		return
	}
	c.compileExpr(m.Object)
	if m.Optional {
		c.optionalCheck(m, 1)
	}
}

func (c *Compiler) emitGetMember(m *MemberExpr) {
	if m.Computed != nil {
		c.compileExpr(m.Computed)
		c.emit(vm.OpGetElement)
		return
	}
	c.emitOp(vm.OpGetProperty, c.name(m.Name))
}

func (c *Compiler) compileMember(m *MemberExpr) {
	if c.fs.args == argumentsFast && isFastArgumentsRead(m) && c.resolvesToArguments() {
		if m.Computed == nil {
			c.emit(vm.OpArgumentsLength)
			return
		}
		n, _ := fastArgumentsIndex(m)
		c.emitOp(vm.OpLoadArgument, n)
		return
	}
	c.compileMemberObject(m)
	c.emitGetMember(m)
}

// resolvesToArguments reports whether arguments is not shadowed by a
// local in the current function.
func (c *Compiler) resolvesToArguments() bool {
	return c.fs.lookupLocal("arguments") == nil
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

func hasSpread(args []Expr) bool {
	for _, a := range args {
		if _, ok := a.(*SpreadElement); ok {
			return true
		}
	}
	return false
}

// compileArgs pushes call arguments. It returns false when they were
// collected into an array for Apply.
func (c *Compiler) compileArgs(args []Expr) bool {
	if hasSpread(args) || len(args) > vm.MaxArgCount {
		c.emitOp(vm.OpNewArray, 0)
		c.pushElements(args)
		return false
	}
	for _, a := range args {
		c.compileExpr(a)
	}
	return true
}

func (c *Compiler) emitCall(args []Expr) {
	if c.compileArgs(args) {
		c.emitOp(vm.OpCall, len(args))
		return
	}
	c.emitOp(vm.OpApply, vm.ApplyCall)
}

func (c *Compiler) compileCall(e *CallExpr) {
	switch callee := e.Callee.(type) {
	case *SuperExpr:
		c.compileSuperCall(e)
		return
	case *MemberExpr:
		if sup, ok := callee.Object.(*SuperExpr); ok {
			c.loadSuperBase(sup)
			c.emitGetMember(callee)
			if e.Optional {
				c.optionalCheck(e, 1)
			}
			c.emit(vm.OpLoadThis)
			c.emitCall(e.Args)
			return
		}
		c.compileMemberObject(callee)
		c.emit(vm.OpDup)
		c.emitGetMember(callee)
		if e.Optional {
			c.optionalCheck(e, 2)
		}
		c.emit(vm.OpSwap)
	case *Identifier:
		c.withDispatch(callee.Name, func(obj ref) {
			c.emitLoad(obj)
			c.emit(vm.OpDup)
			c.emitOp(vm.OpGetProperty, c.name(callee.Name))
			c.emit(vm.OpSwap)
		}, func() {
			c.compileIdentifier(callee)
			c.emit(vm.OpLoadUndefined)
		})
		if e.Optional {
			// [fn, this]: test fn without disturbing the receiver.
			c.emit(vm.OpSwap)
			c.optionalCheck(e, 2)
			c.emit(vm.OpSwap)
		}
	default:
		c.compileExpr(e.Callee)
		if e.Optional {
			c.optionalCheck(e, 1)
		}
		c.emit(vm.OpLoadUndefined)
	}
	c.emitCall(e.Args)
}

func (c *Compiler) compileNew(e *NewExpr) {
	c.compileExpr(e.Callee)
	if hasSpread(e.Args) || len(e.Args) > vm.MaxArgCount {
		c.emit(vm.OpLoadUndefined)
		c.emitOp(vm.OpNewArray, 0)
		c.pushElements(e.Args)
		c.emitOp(vm.OpApply, vm.ApplyNew)
		return
	}
	for _, a := range e.Args {
		c.compileExpr(a)
	}
	c.emitOp(vm.OpNew, len(e.Args))
}
