package compiler

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) parseStatement() Stmt {
	start := p.curToken.Pos
	switch p.curToken.Type {
	case TokenLBrace:
		return p.parseBlock()
	case TokenSemicolon:
		p.nextToken()
		return &EmptyStmt{SpanVal: p.spanFrom(start)}
	case TokenVar:
		return p.parseVarStatement(DeclVar)
	case TokenConst:
		if p.typeScript && p.peekTokenIs(TokenEnum) {
			p.nextToken()
			return p.parseEnum(start)
		}
		return p.parseVarStatement(DeclConst)
	case TokenLet:
		if t := p.peekToken.Type; p.isIdentifier(t) || t == TokenLBracket || t == TokenLBrace {
			return p.parseVarStatement(DeclLet)
		}
	case TokenFunction:
		return p.parseFunctionDeclaration(start)
	case TokenAsync:
		if p.peekTokenIs(TokenFunction) && !p.peekToken.NewlineBefore {
			p.errorf("async functions are not supported")
			return nil
		}
	case TokenClass:
		return p.parseClassDeclaration(start)
	case TokenIf:
		return p.parseIf()
	case TokenWhile:
		return p.parseWhile()
	case TokenDo:
		return p.parseDoWhile()
	case TokenFor:
		return p.parseFor()
	case TokenSwitch:
		return p.parseSwitch()
	case TokenTry:
		return p.parseTry()
	case TokenThrow:
		return p.parseThrow()
	case TokenReturn:
		return p.parseReturn()
	case TokenBreak, TokenContinue:
		return p.parseJump()
	case TokenWith:
		return p.parseWith()
	case TokenDebugger:
		p.nextToken()
		p.consumeSemicolon()
		return &DebuggerStmt{SpanVal: p.spanFrom(start)}
	case TokenImport:
		return p.parseImport(start)
	case TokenExport:
		return p.parseExport(start)
	case TokenEnum:
		if p.typeScript {
			return p.parseEnum(start)
		}
		p.errorf("unexpected reserved word 'enum'")
		return nil
	}
	if p.typeScript {
		if stmt, ok := p.parseTypeScriptDeclaration(start); ok {
			return stmt
		}
	}
	if p.isIdentifier(p.curToken.Type) && p.peekTokenIs(TokenColon) {
		return p.parseLabeled()
	}
	return p.parseExpressionStatement()
}

func (p *Parser) parseExpressionStatement() Stmt {
	start := p.curToken.Pos
	e := p.parseExpression()
	if p.failed() {
		return nil
	}
	p.consumeSemicolon()
	return &ExprStmt{SpanVal: p.spanFrom(start), Expr: e}
}

func (p *Parser) parseBlock() *BlockStmt {
	start := p.curToken.Pos
	if !p.expect(TokenLBrace) {
		return nil
	}
	block := &BlockStmt{}
	block.Body = p.parseStatementList(TokenRBrace)
	p.expect(TokenRBrace)
	block.SpanVal = p.spanFrom(start)
	return block
}

// parseStatementList parses statements up to (not including) end.
func (p *Parser) parseStatementList(end TokenType) []Stmt {
	var stmts []Stmt
	for !p.curTokenIs(end) && !p.curTokenIs(TokenEOF) && !p.failed() {
		if stmt := p.parseStatement(); stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

func (p *Parser) parseVarStatement(kind DeclKind) Stmt {
	decl := p.parseVarDecl(kind, false)
	if decl == nil {
		return nil
	}
	p.consumeSemicolon()
	decl.SpanVal = p.spanFrom(decl.SpanVal.Start)
	return decl
}

// parseVarDecl parses the keyword and declarators. In a for head the
// initializer of a const may be omitted when in/of follows.
func (p *Parser) parseVarDecl(kind DeclKind, forHead bool) *VarDecl {
	start := p.curToken.Pos
	p.nextToken() // var, let or const
	decl := &VarDecl{Kind: kind}
	for !p.failed() {
		dstart := p.curToken.Pos
		name := p.parseBindingName()
		if p.failed() {
			return nil
		}
		if p.typeScript {
			if p.curTokenIs(TokenBang) {
				p.nextToken()
			}
			p.skipTypeAnnotation()
		}
		d := &Declarator{Name: name}
		if p.curTokenIs(TokenAssign) {
			p.nextToken()
			d.Init = p.parseAssignment()
		} else if kind == DeclConst && !p.ambient && !(forHead && (p.curTokenIs(TokenIn) || p.curTokenIs(TokenOf))) {
			p.errorf("missing initializer in const declaration")
			return nil
		}
		d.SpanVal = p.spanFrom(dstart)
		decl.Decls = append(decl.Decls, d)
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	decl.SpanVal = p.spanFrom(start)
	return decl
}

func (p *Parser) parseFunctionDeclaration(start Position) Stmt {
	p.nextToken() // function
	if p.curTokenIs(TokenStar) {
		p.errorf("generator functions are not supported")
		return nil
	}
	if !p.isIdentifier(p.curToken.Type) {
		p.errorf("function statements require a function name")
		return nil
	}
	fn := p.parseFunctionRest(start, FunctionNormal, true)
	if fn == nil {
		// A TypeScript overload signature without a body.
		if p.failed() {
			return nil
		}
		return &EmptyStmt{SpanVal: p.spanFrom(start)}
	}
	return &FunctionDecl{SpanVal: p.spanFrom(start), Func: fn}
}

func (p *Parser) parseClassDeclaration(start Position) Stmt {
	p.nextToken() // class
	if !p.isIdentifier(p.curToken.Type) || p.curTokenIs(TokenImplements) {
		p.errorf("class statements require a class name")
		return nil
	}
	c := p.parseClassRest(start)
	if c == nil {
		return nil
	}
	return &ClassDecl{SpanVal: c.SpanVal, Class: c}
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

// parseCondition parses a parenthesized expression.
func (p *Parser) parseCondition() Expr {
	if !p.expect(TokenLParen) {
		return nil
	}
	defer p.setNoIn(false)()
	e := p.parseExpression()
	p.expect(TokenRParen)
	return e
}

func (p *Parser) parseIf() Stmt {
	start := p.curToken.Pos
	p.nextToken()
	stmt := &IfStmt{Test: p.parseCondition()}
	if p.failed() {
		return nil
	}
	stmt.Consequent = p.parseSubStatement()
	if p.curTokenIs(TokenElse) {
		p.nextToken()
		stmt.Alternate = p.parseSubStatement()
	}
	if p.failed() {
		return nil
	}
	stmt.SpanVal = p.spanFrom(start)
	return stmt
}

// parseSubStatement parses the body of a compound statement, where a
// lexical declaration is not allowed.
func (p *Parser) parseSubStatement() Stmt {
	switch p.curToken.Type {
	case TokenClass, TokenConst:
		p.errorf("lexical declaration cannot appear in a single-statement context")
		return nil
	case TokenLet:
		if p.peekTokenIs(TokenLBracket) || (p.isIdentifier(p.peekToken.Type) && !p.peekToken.NewlineBefore) {
			p.errorf("lexical declaration cannot appear in a single-statement context")
			return nil
		}
	}
	stmt := p.parseStatement()
	if stmt == nil && !p.failed() {
		stmt = &EmptyStmt{SpanVal: p.spanFrom(p.curToken.Pos)}
	}
	return stmt
}

func (p *Parser) parseWhile() Stmt {
	start := p.curToken.Pos
	p.nextToken()
	test := p.parseCondition()
	if p.failed() {
		return nil
	}
	body := p.parseSubStatement()
	if p.failed() {
		return nil
	}
	return &WhileStmt{SpanVal: p.spanFrom(start), Test: test, Body: body}
}

func (p *Parser) parseDoWhile() Stmt {
	start := p.curToken.Pos
	p.nextToken()
	body := p.parseSubStatement()
	if p.failed() || !p.expect(TokenWhile) {
		return nil
	}
	test := p.parseCondition()
	if p.failed() {
		return nil
	}
	// do-while gets a semicolon inserted even without a newline.
	if p.curTokenIs(TokenSemicolon) {
		p.nextToken()
	}
	return &DoWhileStmt{SpanVal: p.spanFrom(start), Body: body, Test: test}
}

func (p *Parser) parseFor() Stmt {
	start := p.curToken.Pos
	p.nextToken() // for
	if p.curTokenIs(TokenAwait) {
		p.errorf("for await is not supported")
		return nil
	}
	if !p.expect(TokenLParen) {
		return nil
	}

	var init Stmt
	restore := p.setNoIn(true)
	switch {
	case p.curTokenIs(TokenSemicolon):
	case p.curTokenIs(TokenVar), p.curTokenIs(TokenConst),
		p.curTokenIs(TokenLet) && (p.isIdentifier(p.peekToken.Type) || p.peekTokenIs(TokenLBracket) || p.peekTokenIs(TokenLBrace)):
		kind := DeclVar
		switch p.curToken.Type {
		case TokenLet:
			kind = DeclLet
		case TokenConst:
			kind = DeclConst
		}
		decl := p.parseVarDecl(kind, true)
		if decl == nil {
			restore()
			return nil
		}
		if p.curTokenIs(TokenIn) || p.curTokenIs(TokenOf) {
			restore()
			if len(decl.Decls) != 1 {
				p.errorf("invalid left-hand side in for-%s loop: must have a single binding", p.curToken.Literal)
				return nil
			}
			if decl.Decls[0].Init != nil && (p.curTokenIs(TokenOf) || kind != DeclVar) {
				p.errorf("for-%s loop variable declaration may not have an initializer", p.curToken.Literal)
				return nil
			}
			return p.parseForIn(start, decl, nil)
		}
		init = decl
	default:
		estart := p.curToken.Pos
		e := p.parseExpression()
		if p.failed() {
			restore()
			return nil
		}
		if p.curTokenIs(TokenIn) || p.curTokenIs(TokenOf) {
			restore()
			if !isAssignable(e) {
				p.errorAt(estart, "invalid left-hand side in for-%s loop", p.curToken.Literal)
				return nil
			}
			return p.parseForIn(start, nil, e)
		}
		init = &ExprStmt{SpanVal: p.spanFrom(estart), Expr: e}
	}
	restore()

	stmt := &ForStmt{Init: init}
	if !p.expect(TokenSemicolon) {
		return nil
	}
	if !p.curTokenIs(TokenSemicolon) {
		stmt.Test = p.parseExpression()
	}
	if !p.expect(TokenSemicolon) {
		return nil
	}
	if !p.curTokenIs(TokenRParen) {
		stmt.Update = p.parseExpression()
	}
	if !p.expect(TokenRParen) {
		return nil
	}
	stmt.Body = p.parseSubStatement()
	if p.failed() {
		return nil
	}
	stmt.SpanVal = p.spanFrom(start)
	return stmt
}

func (p *Parser) parseForIn(start Position, decl *VarDecl, target Expr) Stmt {
	of := p.curTokenIs(TokenOf)
	p.nextToken()
	var right Expr
	if of {
		right = p.parseAssignment()
	} else {
		right = p.parseExpression()
	}
	if p.failed() || !p.expect(TokenRParen) {
		return nil
	}
	body := p.parseSubStatement()
	if p.failed() {
		return nil
	}
	return &ForInStmt{SpanVal: p.spanFrom(start), Decl: decl, Target: target, Right: right, Body: body, Of: of}
}

func (p *Parser) parseSwitch() Stmt {
	start := p.curToken.Pos
	p.nextToken()
	stmt := &SwitchStmt{Discriminant: p.parseCondition()}
	if p.failed() || !p.expect(TokenLBrace) {
		return nil
	}
	hasDefault := false
	for !p.curTokenIs(TokenRBrace) && !p.failed() {
		cstart := p.curToken.Pos
		c := &SwitchCase{}
		switch p.curToken.Type {
		case TokenCase:
			p.nextToken()
			c.Test = p.parseExpression()
		case TokenDefault:
			if hasDefault {
				p.errorf("more than one default clause in switch statement")
				return nil
			}
			hasDefault = true
			p.nextToken()
		default:
			p.unexpected()
			return nil
		}
		if !p.expect(TokenColon) {
			return nil
		}
		for !p.curTokenIs(TokenCase) && !p.curTokenIs(TokenDefault) && !p.curTokenIs(TokenRBrace) &&
			!p.curTokenIs(TokenEOF) && !p.failed() {
			if s := p.parseStatement(); s != nil {
				c.Body = append(c.Body, s)
			}
		}
		c.SpanVal = p.spanFrom(cstart)
		stmt.Cases = append(stmt.Cases, c)
	}
	if !p.expect(TokenRBrace) {
		return nil
	}
	stmt.SpanVal = p.spanFrom(start)
	return stmt
}

func (p *Parser) parseTry() Stmt {
	start := p.curToken.Pos
	p.nextToken()
	stmt := &TryStmt{Block: p.parseBlock()}
	if p.failed() {
		return nil
	}
	if p.curTokenIs(TokenCatch) {
		p.nextToken()
		if p.curTokenIs(TokenLParen) {
			p.nextToken()
			stmt.Param = p.parseBindingName()
			if p.typeScript {
				p.skipTypeAnnotation()
			}
			if !p.expect(TokenRParen) {
				return nil
			}
		}
		stmt.Handler = p.parseBlock()
	}
	if p.curTokenIs(TokenFinally) {
		p.nextToken()
		stmt.Finalizer = p.parseBlock()
	}
	if p.failed() {
		return nil
	}
	if stmt.Handler == nil && stmt.Finalizer == nil {
		p.errorf("missing catch or finally after try")
		return nil
	}
	stmt.SpanVal = p.spanFrom(start)
	return stmt
}

func (p *Parser) parseThrow() Stmt {
	start := p.curToken.Pos
	p.nextToken()
	if p.curToken.NewlineBefore {
		p.errorf("illegal newline after throw")
		return nil
	}
	arg := p.parseExpression()
	if p.failed() {
		return nil
	}
	p.consumeSemicolon()
	return &ThrowStmt{SpanVal: p.spanFrom(start), Argument: arg}
}

func (p *Parser) parseReturn() Stmt {
	start := p.curToken.Pos
	if p.funcDepth == 0 {
		p.errorf("illegal return statement")
		return nil
	}
	p.nextToken()
	stmt := &ReturnStmt{}
	if !p.curTokenIs(TokenSemicolon) && !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) && !p.curToken.NewlineBefore {
		stmt.Argument = p.parseExpression()
	}
	if p.failed() {
		return nil
	}
	p.consumeSemicolon()
	stmt.SpanVal = p.spanFrom(start)
	return stmt
}

// parseJump parses break and continue. The label must be on the same line.
func (p *Parser) parseJump() Stmt {
	start := p.curToken.Pos
	isBreak := p.curTokenIs(TokenBreak)
	p.nextToken()
	label := ""
	if p.isIdentifier(p.curToken.Type) && !p.curToken.NewlineBefore {
		label = p.curToken.Literal
		p.nextToken()
	}
	p.consumeSemicolon()
	if p.failed() {
		return nil
	}
	if isBreak {
		return &BreakStmt{SpanVal: p.spanFrom(start), Label: label}
	}
	return &ContinueStmt{SpanVal: p.spanFrom(start), Label: label}
}

func (p *Parser) parseWith() Stmt {
	start := p.curToken.Pos
	p.nextToken()
	obj := p.parseCondition()
	if p.failed() {
		return nil
	}
	body := p.parseSubStatement()
	if p.failed() {
		return nil
	}
	return &WithStmt{SpanVal: p.spanFrom(start), Object: obj, Body: body}
}

func (p *Parser) parseLabeled() Stmt {
	start := p.curToken.Pos
	label := p.curToken.Literal
	p.nextToken() // label
	p.nextToken() // :
	var body Stmt
	if p.curTokenIs(TokenFunction) {
		body = p.parseFunctionDeclaration(p.curToken.Pos)
	} else {
		body = p.parseSubStatement()
	}
	if p.failed() {
		return nil
	}
	return &LabeledStmt{SpanVal: p.spanFrom(start), Label: label, Body: body}
}

// ---------------------------------------------------------------------------
// Modules
// ---------------------------------------------------------------------------

// parseImport erases type-only imports. Value imports need a module loader,
// which the engine does not provide.
func (p *Parser) parseImport(start Position) Stmt {
	if p.typeScript && p.peekTokenIs(TokenTypeAlias) {
		p.nextToken()
		p.nextToken()
		p.skipModuleClause()
		return &EmptyStmt{SpanVal: p.spanFrom(start)}
	}
	p.errorf("import declarations require a module loader")
	return nil
}

// skipModuleClause skips the rest of an import or export clause through
// its module specifier.
func (p *Parser) skipModuleClause() {
	for !p.curTokenIs(TokenEOF) && !p.curTokenIs(TokenSemicolon) && !p.failed() {
		if p.curTokenIs(TokenLBrace) {
			p.skipBalanced(TokenLBrace, TokenRBrace)
			continue
		}
		wasFrom := p.curTokenIs(TokenIdentifier) && p.curToken.Literal == "from"
		p.nextToken()
		if wasFrom && p.curTokenIs(TokenString) {
			p.nextToken()
			break
		}
		if p.curToken.NewlineBefore {
			break
		}
	}
	p.consumeSemicolon()
}

// parseExport strips the export keyword from declarations.
func (p *Parser) parseExport(start Position) Stmt {
	p.nextToken() // export
	switch p.curToken.Type {
	case TokenDefault:
		p.nextToken()
		switch {
		case p.curTokenIs(TokenFunction) && p.isIdentifier(p.peekToken.Type):
			return p.parseFunctionDeclaration(p.curToken.Pos)
		case p.curTokenIs(TokenClass) && p.isIdentifier(p.peekToken.Type) && !p.peekTokenIs(TokenImplements):
			return p.parseClassDeclaration(p.curToken.Pos)
		}
		return p.parseExpressionStatement()
	case TokenLBrace:
		p.skipBalanced(TokenLBrace, TokenRBrace)
		if p.curTokenIs(TokenIdentifier) && p.curToken.Literal == "from" {
			p.errorf("export declarations require a module loader")
			return nil
		}
		p.consumeSemicolon()
		return &EmptyStmt{SpanVal: p.spanFrom(start)}
	case TokenStar, TokenAssign:
		p.errorf("export declarations require a module loader")
		return nil
	}
	if p.typeScript && p.curTokenIs(TokenTypeAlias) && p.peekTokenIs(TokenLBrace) {
		p.nextToken()
		p.skipModuleClause()
		return &EmptyStmt{SpanVal: p.spanFrom(start)}
	}
	return p.parseStatement()
}
