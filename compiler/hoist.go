package compiler

// ---------------------------------------------------------------------------
// AST walking and hoisting pre-passes
// ---------------------------------------------------------------------------

// Inspect traverses the AST rooted at n in depth-first order. It calls
// f(n) for each node; if f returns false, the children of n are skipped.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	expr := func(e Expr) {
		if e != nil {
			Inspect(e, f)
		}
	}
	stmts := func(list []Stmt) {
		for _, s := range list {
			if s != nil {
				Inspect(s, f)
			}
		}
	}
	switch n := n.(type) {
	case *Program:
		stmts(n.Body)

	// Expressions
	case *TemplateLiteral:
		for _, e := range n.Exprs {
			expr(e)
		}
	case *ArrayLiteral:
		for _, e := range n.Elements {
			expr(e)
		}
	case *SpreadElement:
		expr(n.Argument)
	case *ObjectLiteral:
		for _, p := range n.Properties {
			expr(p.Computed)
			expr(p.Value)
		}
	case *FunctionExpr:
		Inspect(n.Func, f)
	case *Function:
		for _, p := range n.Params {
			expr(p.Default)
		}
		stmts(n.Body)
		expr(n.ExprBody)
	case *ClassExpr:
		Inspect(n.Class, f)
	case *Class:
		expr(n.SuperClass)
		if n.Constructor != nil {
			Inspect(n.Constructor, f)
		}
		for _, m := range n.Members {
			expr(m.Computed)
			Inspect(m.Func, f)
		}
		if n.Fields != nil {
			Inspect(n.Fields, f)
		}
		if n.StaticFields != nil {
			Inspect(n.StaticFields, f)
		}
	case *UnaryExpr:
		expr(n.Operand)
	case *UpdateExpr:
		expr(n.Target)
	case *BinaryExpr:
		expr(n.Left)
		expr(n.Right)
	case *LogicalExpr:
		expr(n.Left)
		expr(n.Right)
	case *ConditionalExpr:
		expr(n.Test)
		expr(n.Consequent)
		expr(n.Alternate)
	case *AssignExpr:
		expr(n.Target)
		expr(n.Value)
	case *SequenceExpr:
		for _, e := range n.Exprs {
			expr(e)
		}
	case *CallExpr:
		expr(n.Callee)
		for _, a := range n.Args {
			expr(a)
		}
	case *NewExpr:
		expr(n.Callee)
		for _, a := range n.Args {
			expr(a)
		}
	case *MemberExpr:
		expr(n.Object)
		expr(n.Computed)
	case *OptionalChain:
		expr(n.Expr)

	// Statements
	case *VarDecl:
		for _, d := range n.Decls {
			expr(d.Init)
		}
	case *FunctionDecl:
		Inspect(n.Func, f)
	case *ClassDecl:
		Inspect(n.Class, f)
	case *ExprStmt:
		expr(n.Expr)
	case *BlockStmt:
		stmts(n.Body)
	case *IfStmt:
		expr(n.Test)
		stmts([]Stmt{n.Consequent, n.Alternate})
	case *WhileStmt:
		expr(n.Test)
		stmts([]Stmt{n.Body})
	case *DoWhileStmt:
		stmts([]Stmt{n.Body})
		expr(n.Test)
	case *ForStmt:
		stmts([]Stmt{n.Init})
		expr(n.Test)
		expr(n.Update)
		stmts([]Stmt{n.Body})
	case *ForInStmt:
		if n.Decl != nil {
			Inspect(n.Decl, f)
		}
		expr(n.Target)
		expr(n.Right)
		stmts([]Stmt{n.Body})
	case *SwitchStmt:
		expr(n.Discriminant)
		for _, c := range n.Cases {
			expr(c.Test)
			stmts(c.Body)
		}
	case *TryStmt:
		Inspect(n.Block, f)
		if n.Handler != nil {
			Inspect(n.Handler, f)
		}
		if n.Finalizer != nil {
			Inspect(n.Finalizer, f)
		}
	case *ThrowStmt:
		expr(n.Argument)
	case *ReturnStmt:
		expr(n.Argument)
	case *LabeledStmt:
		stmts([]Stmt{n.Body})
	case *WithStmt:
		expr(n.Object)
		stmts([]Stmt{n.Body})
	}
}

// hoistedVars returns the var-scoped names declared by body, in order of
// first appearance: var declarations and function declarations at any
// block depth, but not inside nested functions.
func hoistedVars(body []Stmt) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, s := range body {
		Inspect(s, func(n Node) bool {
			switch n := n.(type) {
			case *VarDecl:
				if n.Kind == DeclVar {
					for _, d := range n.Decls {
						add(d.Name)
					}
				}
				return false
			case *FunctionDecl:
				add(n.Func.Name)
				return false
			case *ClassDecl, Expr:
				return false
			}
			return true
		})
	}
	return names
}

// argumentsUsage describes how a function body refers to arguments.
type argumentsUsage struct {
	used bool
	// general is set when some use needs a real arguments object rather
	// than arguments[n] or arguments.length reads.
	general bool
}

func isArgumentsIdent(e Expr) bool {
	id, ok := e.(*Identifier)
	return ok && id.Name == "arguments"
}

func isArgumentsMember(e Expr) bool {
	m, ok := e.(*MemberExpr)
	return ok && isArgumentsIdent(m.Object)
}

// fastArgumentsIndex reports the index n for a read of arguments[n] with
// a small integer literal n.
func fastArgumentsIndex(m *MemberExpr) (int, bool) {
	if m.Optional {
		return 0, false
	}
	lit, ok := m.Computed.(*NumberLiteral)
	if !ok {
		return 0, false
	}
	n := int(lit.Value)
	if float64(n) != lit.Value || n < 0 || n > 255 {
		return 0, false
	}
	return n, true
}

func isFastArgumentsRead(m *MemberExpr) bool {
	if !isArgumentsIdent(m.Object) || m.Optional {
		return false
	}
	if m.Computed == nil {
		return m.Name == "length"
	}
	_, ok := fastArgumentsIndex(m)
	return ok
}

// scanArguments reports how fn uses its arguments object. Arrow functions
// share the enclosing arguments, so uses inside them count, but always as
// general uses.
func scanArguments(fn *Function) argumentsUsage {
	var u argumentsUsage
	var visit func(fn *Function, inArrow bool)
	visit = func(fn *Function, inArrow bool) {
		inspectFunctionBody(fn, func(n Node) bool {
			switch n := n.(type) {
			case *Function:
				if n.Kind == FunctionArrow {
					visit(n, true)
				}
				return false
			case *MemberExpr:
				if isFastArgumentsRead(n) && !inArrow {
					u.used = true
					return false
				}
			case *Identifier:
				if n.Name == "arguments" {
					u.used, u.general = true, true
				}
			case *CallExpr:
				if isArgumentsMember(n.Callee) {
					u.used, u.general = true, true
				}
			case *AssignExpr:
				if isArgumentsMember(n.Target) {
					u.used, u.general = true, true
				}
			case *UpdateExpr:
				if isArgumentsMember(n.Target) {
					u.used, u.general = true, true
				}
			case *UnaryExpr:
				if n.Op == TokenDelete && isArgumentsMember(n.Operand) {
					u.used, u.general = true, true
				}
			}
			return true
		})
	}
	visit(fn, false)
	return u
}

// inspectFunctionBody runs Inspect over the parameters and body of fn
// without visiting fn itself.
func inspectFunctionBody(fn *Function, f func(Node) bool) {
	for _, p := range fn.Params {
		if p.Default != nil {
			Inspect(p.Default, f)
		}
	}
	for _, s := range fn.Body {
		Inspect(s, f)
	}
	if fn.ExprBody != nil {
		Inspect(fn.ExprBody, f)
	}
}

// mentions reports whether name appears as an identifier anywhere inside fn,
// including nested functions.
func mentions(fn *Function, name string) bool {
	found := false
	inspectFunctionBody(fn, func(n Node) bool {
		if id, ok := n.(*Identifier); ok && id.Name == name {
			found = true
		}
		return !found
	})
	return found
}

// classMentions is mentions for every function of a class body.
func classMentions(c *Class, name string) bool {
	found := false
	Inspect(c, func(n Node) bool {
		if id, ok := n.(*Identifier); ok && id.Name == name {
			found = true
		}
		return !found
	})
	return found
}
