package compiler

import (
	"strings"

	"github.com/spacey-js/spacey/vm"
)

// ---------------------------------------------------------------------------
// Expressions, lowest precedence first
// ---------------------------------------------------------------------------

// parseExpression parses a comma-separated sequence.
func (p *Parser) parseExpression() Expr {
	start := p.curToken.Pos
	e := p.parseAssignment()
	if !p.curTokenIs(TokenComma) || p.failed() {
		return e
	}
	seq := &SequenceExpr{Exprs: []Expr{e}}
	for p.curTokenIs(TokenComma) && !p.failed() {
		p.nextToken()
		seq.Exprs = append(seq.Exprs, p.parseAssignment())
	}
	seq.SpanVal = p.spanFrom(start)
	return seq
}

func isAssignOp(t TokenType) bool {
	switch t {
	case TokenAssign, TokenPlusEq, TokenMinusEq, TokenStarEq, TokenSlashEq, TokenPercentEq,
		TokenStarStarEq, TokenShlEq, TokenShrEq, TokenUshrEq, TokenAmpEq, TokenPipeEq,
		TokenCaretEq, TokenAndEq, TokenOrEq, TokenNullishEq:
		return true
	}
	return false
}

// isAssignable reports whether e is a valid simple assignment target.
func isAssignable(e Expr) bool {
	switch t := e.(type) {
	case *Identifier:
		return true
	case *MemberExpr:
		_, isSuper := t.Object.(*SuperExpr)
		return !t.Optional && !isSuper
	}
	return false
}

func (p *Parser) parseAssignment() Expr {
	if p.failed() {
		return nil
	}
	if arrow, ok := p.tryArrow(); ok {
		return arrow
	}
	if p.curTokenIs(TokenYield) && !p.peekToken.NewlineBefore && p.isExpressionStart(p.peekToken.Type) {
		p.errorf("generator functions are not supported")
		return nil
	}
	start := p.curToken.Pos
	left := p.parseConditional()
	if !isAssignOp(p.curToken.Type) || p.failed() {
		return left
	}
	if !isAssignable(left) {
		p.errorAt(start, "invalid left-hand side in assignment")
		return nil
	}
	op := p.curToken.Type
	p.nextToken()
	value := p.parseAssignment()
	return &AssignExpr{SpanVal: p.spanFrom(start), Op: op, Target: left, Value: value}
}

// isExpressionStart reports whether t can begin an expression operand.
func (p *Parser) isExpressionStart(t TokenType) bool {
	switch t {
	case TokenNumber, TokenBigInt, TokenString, TokenTemplate, TokenLParen, TokenLBracket,
		TokenLBrace, TokenThis, TokenFunction, TokenClass, TokenNew, TokenNull, TokenTrue,
		TokenFalse, TokenBang, TokenTilde, TokenMinus, TokenPlus, TokenIncrement, TokenDecrement,
		TokenTypeof, TokenVoid, TokenDelete, TokenSlash, TokenSlashEq:
		return true
	}
	return p.isIdentifier(t)
}

// tryArrow parses an arrow function if one starts at the current token.
func (p *Parser) tryArrow() (Expr, bool) {
	start := p.curToken.Pos
	switch {
	case p.isIdentifier(p.curToken.Type) && p.peekTokenIs(TokenArrow) && !p.peekToken.NewlineBefore:
		fn := &Function{Kind: FunctionArrow, Params: []*Param{{SpanVal: p.curToken.Span(), Name: p.curToken.Literal}}}
		p.nextToken()
		p.nextToken()
		return p.parseArrowBody(start, fn), true
	case p.curTokenIs(TokenLParen):
		st := p.snapshot()
		fn := &Function{Kind: FunctionArrow}
		p.parseParams(fn)
		if p.arrowFollows() {
			p.nextToken()
			return p.parseArrowBody(start, fn), true
		}
		p.rewind(st)
	case p.typeScript && p.curTokenIs(TokenLess):
		st := p.snapshot()
		p.skipTypeParameters()
		fn := &Function{Kind: FunctionArrow}
		if p.curTokenIs(TokenLParen) {
			p.parseParams(fn)
			if p.arrowFollows() {
				p.nextToken()
				return p.parseArrowBody(start, fn), true
			}
		}
		p.rewind(st)
	}
	return nil, false
}

// arrowFollows skips an optional return type and reports whether => comes
// next on the same line.
func (p *Parser) arrowFollows() bool {
	if p.failed() {
		return false
	}
	if p.typeScript && p.curTokenIs(TokenColon) {
		p.skipReturnType()
		if p.failed() {
			return false
		}
	}
	return p.curTokenIs(TokenArrow) && !p.curToken.NewlineBefore
}

func (p *Parser) parseArrowBody(start Position, fn *Function) Expr {
	if p.curTokenIs(TokenLBrace) {
		fn.Body = p.parseFunctionBody()
	} else {
		p.funcDepth++
		fn.ExprBody = p.parseAssignment()
		p.funcDepth--
	}
	if p.failed() {
		return nil
	}
	fn.SpanVal = p.spanFrom(start)
	fn.Source = p.input[start.Offset:p.prevEnd.Offset]
	return &FunctionExpr{SpanVal: fn.SpanVal, Func: fn}
}

func (p *Parser) parseConditional() Expr {
	start := p.curToken.Pos
	test := p.parseBinary(1)
	if !p.curTokenIs(TokenQuestion) || p.failed() {
		return test
	}
	p.nextToken()
	restore := p.setNoIn(false)
	cons := p.parseAssignment()
	restore()
	if !p.expect(TokenColon) {
		return nil
	}
	alt := p.parseAssignment()
	return &ConditionalExpr{SpanVal: p.spanFrom(start), Test: test, Consequent: cons, Alternate: alt}
}

// binaryPrecedence returns the binding power of a binary operator, or 0.
func (p *Parser) binaryPrecedence(tok Token) int {
	switch tok.Type {
	case TokenNullish:
		return 1
	case TokenOr:
		return 2
	case TokenAnd:
		return 3
	case TokenPipe:
		return 4
	case TokenCaret:
		return 5
	case TokenAmp:
		return 6
	case TokenEq, TokenNotEq, TokenStrictEq, TokenStrictNe:
		return 7
	case TokenLess, TokenGreater, TokenLessEq, TokenGreaterEq, TokenInstanceof:
		return 8
	case TokenIn:
		if p.noIn {
			return 0
		}
		return 8
	case TokenAs, TokenSatisfies:
		if p.typeScript && !tok.NewlineBefore {
			return 8
		}
	case TokenShl, TokenShr, TokenUshr:
		return 9
	case TokenPlus, TokenMinus:
		return 10
	case TokenStar, TokenSlash, TokenPercent:
		return 11
	case TokenStarStar:
		return 12
	}
	return 0
}

// parseBinary is a precedence climb over the binary operators.
func (p *Parser) parseBinary(minPrec int) Expr {
	start := p.curToken.Pos
	left := p.parseUnary()
	for !p.failed() {
		op := p.curToken.Type
		prec := p.binaryPrecedence(p.curToken)
		if prec == 0 || prec < minPrec {
			break
		}
		p.nextToken()
		if op == TokenAs || op == TokenSatisfies {
			if p.curTokenIs(TokenConst) {
				p.nextToken()
			} else {
				p.skipType()
			}
			continue
		}
		var right Expr
		if op == TokenStarStar {
			if u, ok := left.(*UnaryExpr); ok && u.SpanVal.Start == start {
				p.errorAt(start, "unary operator used immediately before exponentiation expression")
				return nil
			}
			right = p.parseBinary(prec)
		} else {
			right = p.parseBinary(prec + 1)
		}
		span := p.spanFrom(start)
		switch op {
		case TokenAnd, TokenOr, TokenNullish:
			left = &LogicalExpr{SpanVal: span, Op: op, Left: left, Right: right}
		default:
			left = &BinaryExpr{SpanVal: span, Op: op, Left: left, Right: right}
		}
	}
	return left
}

func (p *Parser) parseUnary() Expr {
	start := p.curToken.Pos
	switch op := p.curToken.Type; op {
	case TokenDelete, TokenVoid, TokenTypeof, TokenPlus, TokenMinus, TokenTilde, TokenBang:
		p.nextToken()
		operand := p.parseUnary()
		if p.failed() {
			return nil
		}
		return &UnaryExpr{SpanVal: p.spanFrom(start), Op: op, Operand: operand}
	case TokenIncrement, TokenDecrement:
		p.nextToken()
		target := p.parseUnary()
		if p.failed() {
			return nil
		}
		if !isAssignable(target) {
			p.errorAt(start, "invalid left-hand side expression in prefix operation")
			return nil
		}
		return &UpdateExpr{SpanVal: p.spanFrom(start), Op: op, Prefix: true, Target: target}
	case TokenLess:
		if p.typeScript {
			// <T>expr type assertion
			p.nextToken()
			if p.curTokenIs(TokenConst) {
				p.nextToken()
			} else {
				p.skipType()
			}
			p.expectGreater()
			return p.parseUnary()
		}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() Expr {
	start := p.curToken.Pos
	e := p.parseLeftHandSide()
	if p.failed() {
		return nil
	}
	if (p.curTokenIs(TokenIncrement) || p.curTokenIs(TokenDecrement)) && !p.curToken.NewlineBefore {
		if !isAssignable(e) {
			p.errorAt(start, "invalid left-hand side expression in postfix operation")
			return nil
		}
		op := p.curToken.Type
		p.nextToken()
		return &UpdateExpr{SpanVal: p.spanFrom(start), Op: op, Target: e}
	}
	return e
}

// ---------------------------------------------------------------------------
// Calls, member access and new
// ---------------------------------------------------------------------------

func (p *Parser) parseLeftHandSide() Expr {
	start := p.curToken.Pos
	var e Expr
	switch p.curToken.Type {
	case TokenNew:
		e = p.parseNew()
	case TokenSuper:
		p.nextToken()
		if !p.curTokenIs(TokenLParen) && !p.curTokenIs(TokenDot) && !p.curTokenIs(TokenLBracket) {
			p.errorAt(start, "'super' keyword unexpected here")
			return nil
		}
		e = &SuperExpr{SpanVal: p.spanFrom(start)}
	default:
		e = p.parsePrimary()
	}
	if p.failed() {
		return nil
	}
	return p.parseCallTail(start, e, true)
}

func (p *Parser) parseNew() Expr {
	start := p.curToken.Pos
	p.nextToken() // new
	if p.curTokenIs(TokenDot) {
		p.errorf("new.target is not supported")
		return nil
	}
	var callee Expr
	switch p.curToken.Type {
	case TokenNew:
		callee = p.parseNew()
	case TokenSuper:
		p.errorf("'super' keyword unexpected here")
		return nil
	default:
		callee = p.parsePrimary()
	}
	if p.failed() {
		return nil
	}
	callee = p.parseCallTail(start, callee, false)
	n := &NewExpr{Callee: callee}
	if p.curTokenIs(TokenLParen) {
		n.Args = p.parseArguments()
	}
	if p.failed() {
		return nil
	}
	n.SpanVal = p.spanFrom(start)
	return n
}

// parseCallTail parses member accesses, calls and optional chains that
// follow e. Without allowCalls it stops before an argument list, for the
// callee of new.
func (p *Parser) parseCallTail(start Position, e Expr, allowCalls bool) Expr {
	chain := false
loop:
	for !p.failed() {
		switch p.curToken.Type {
		case TokenDot:
			p.nextToken()
			name, ok := p.parseMemberName()
			if !ok {
				return nil
			}
			e = &MemberExpr{SpanVal: p.spanFrom(start), Object: e, Name: name}
		case TokenOptional:
			if !allowCalls {
				p.errorf("invalid optional chain from new expression")
				return nil
			}
			p.nextToken()
			chain = true
			if p.typeScript && p.curTokenIs(TokenLess) {
				p.skipTypeArguments()
			}
			switch p.curToken.Type {
			case TokenLParen:
				args := p.parseArguments()
				e = &CallExpr{SpanVal: p.spanFrom(start), Callee: e, Args: args, Optional: true}
			case TokenLBracket:
				p.nextToken()
				restore := p.setNoIn(false)
				key := p.parseExpression()
				restore()
				if !p.expect(TokenRBracket) {
					return nil
				}
				e = &MemberExpr{SpanVal: p.spanFrom(start), Object: e, Computed: key, Optional: true}
			default:
				name, ok := p.parseMemberName()
				if !ok {
					return nil
				}
				e = &MemberExpr{SpanVal: p.spanFrom(start), Object: e, Name: name, Optional: true}
			}
		case TokenLBracket:
			p.nextToken()
			restore := p.setNoIn(false)
			key := p.parseExpression()
			restore()
			if !p.expect(TokenRBracket) {
				return nil
			}
			e = &MemberExpr{SpanVal: p.spanFrom(start), Object: e, Computed: key}
		case TokenLParen:
			if !allowCalls {
				break loop
			}
			args := p.parseArguments()
			e = &CallExpr{SpanVal: p.spanFrom(start), Callee: e, Args: args}
		case TokenTemplate:
			p.errorf("tagged templates are not supported")
			return nil
		case TokenBang:
			if !p.typeScript || p.curToken.NewlineBefore {
				break loop
			}
			p.nextToken() // non-null assertion
		case TokenLess:
			if !p.typeScript || !p.tryTypeArguments() {
				break loop
			}
			if !allowCalls {
				break loop
			}
		default:
			break loop
		}
	}
	if p.failed() {
		return nil
	}
	if chain {
		return &OptionalChain{SpanVal: p.spanFrom(start), Expr: e}
	}
	return e
}

// parseMemberName consumes the name after a dot.
func (p *Parser) parseMemberName() (string, bool) {
	switch tok := p.curToken; {
	case isPropertyName(tok.Type):
		p.nextToken()
		return tok.Literal, true
	case tok.Type == TokenPrivateName:
		p.nextToken()
		return "#" + tok.Literal, true
	}
	p.unexpected()
	return "", false
}

// tryTypeArguments skips a type argument list if it is followed by an
// argument list, and rewinds otherwise.
func (p *Parser) tryTypeArguments() bool {
	st := p.snapshot()
	p.skipTypeArguments()
	if !p.failed() && p.curTokenIs(TokenLParen) {
		return true
	}
	p.rewind(st)
	return false
}

func (p *Parser) parseArguments() []Expr {
	if !p.expect(TokenLParen) {
		return nil
	}
	defer p.setNoIn(false)()
	var args []Expr
	for !p.curTokenIs(TokenRParen) && !p.failed() {
		if p.curTokenIs(TokenEllipsis) {
			start := p.curToken.Pos
			p.nextToken()
			arg := p.parseAssignment()
			args = append(args, &SpreadElement{SpanVal: p.spanFrom(start), Argument: arg})
		} else {
			args = append(args, p.parseAssignment())
		}
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(TokenRParen)
	return args
}

// ---------------------------------------------------------------------------
// Primary expressions
// ---------------------------------------------------------------------------

func (p *Parser) parsePrimary() Expr {
	start := p.curToken.Pos
	tok := p.curToken
	switch tok.Type {
	case TokenNumber:
		p.nextToken()
		return &NumberLiteral{SpanVal: tok.Span(), Value: tok.Number}
	case TokenBigInt:
		p.nextToken()
		return &BigIntLiteral{SpanVal: tok.Span(), Digits: tok.Literal}
	case TokenString:
		p.nextToken()
		return &StringLiteral{SpanVal: tok.Span(), Value: tok.Literal}
	case TokenTemplate:
		p.nextToken()
		return p.parseTemplate(tok)
	case TokenSlash, TokenSlashEq:
		return p.parseRegExp()
	case TokenThis:
		p.nextToken()
		return &ThisExpr{SpanVal: tok.Span()}
	case TokenNull:
		p.nextToken()
		return &NullLiteral{SpanVal: tok.Span()}
	case TokenTrue, TokenFalse:
		p.nextToken()
		return &BooleanLiteral{SpanVal: tok.Span(), Value: tok.Type == TokenTrue}
	case TokenLParen:
		p.nextToken()
		restore := p.setNoIn(false)
		e := p.parseExpression()
		restore()
		if !p.expect(TokenRParen) {
			return nil
		}
		return e
	case TokenLBracket:
		return p.parseArrayLiteral()
	case TokenLBrace:
		return p.parseObjectLiteral()
	case TokenFunction:
		p.nextToken()
		if p.curTokenIs(TokenStar) {
			p.errorf("generator functions are not supported")
			return nil
		}
		fn := p.parseFunctionRest(start, FunctionNormal, false)
		if fn == nil {
			return nil
		}
		return &FunctionExpr{SpanVal: fn.SpanVal, Func: fn}
	case TokenClass:
		p.nextToken()
		c := p.parseClassRest(start)
		if c == nil {
			return nil
		}
		return &ClassExpr{SpanVal: c.SpanVal, Class: c}
	case TokenAsync:
		if p.peekTokenIs(TokenFunction) && !p.peekToken.NewlineBefore {
			p.errorf("async functions are not supported")
			return nil
		}
	}
	if p.isIdentifier(tok.Type) {
		p.nextToken()
		return &Identifier{SpanVal: tok.Span(), Name: tok.Literal}
	}
	p.unexpected()
	return nil
}

// parseRegExp re-reads the current slash as a regular expression literal.
func (p *Parser) parseRegExp() Expr {
	tok := p.lexer.RescanRegExp(p.curToken)
	p.curToken = tok
	p.peekToken = p.lexer.NextToken()
	if tok.Type == TokenIllegal {
		p.errorf("%s", tok.Literal)
		return nil
	}
	for i, f := range tok.Flags {
		if !strings.ContainsRune("dgimsuy", f) || strings.ContainsRune(tok.Flags[:i], f) {
			p.errorf("invalid regular expression flags '%s'", tok.Flags)
			return nil
		}
	}
	p.nextToken()
	return &RegExpLiteral{SpanVal: tok.Span(), Pattern: tok.Literal, Flags: tok.Flags}
}

// parseTemplate parses the substitutions of a template token. Each one is
// read by a sub-parser positioned at its offset in the source.
func (p *Parser) parseTemplate(tok Token) Expr {
	t := &TemplateLiteral{SpanVal: tok.Span(), Quasis: tok.Parts}
	for i, src := range tok.Exprs {
		start := tok.ExprStart[i]
		sub := &Parser{
			lexer: &Lexer{
				input:      p.input,
				pos:        start.Offset,
				line:       start.Line,
				lineStart:  start.Offset - (start.Column - 1),
				typeScript: p.typeScript,
			},
			input:      p.input,
			typeScript: p.typeScript,
			funcDepth:  p.funcDepth,
		}
		sub.nextToken()
		sub.nextToken()
		e := sub.parseExpression()
		if !sub.failed() && (!sub.curTokenIs(TokenRBrace) || sub.curToken.Pos.Offset != start.Offset+len(src)) {
			sub.unexpected()
		}
		if sub.failed() {
			p.errors = append(p.errors, sub.errors[0])
			return nil
		}
		t.Exprs = append(t.Exprs, e)
	}
	return t
}

func (p *Parser) parseArrayLiteral() Expr {
	start := p.curToken.Pos
	p.nextToken() // [
	defer p.setNoIn(false)()
	arr := &ArrayLiteral{}
	for !p.curTokenIs(TokenRBracket) && !p.failed() {
		if p.curTokenIs(TokenComma) {
			p.nextToken()
			arr.Elements = append(arr.Elements, nil)
			continue
		}
		if p.curTokenIs(TokenEllipsis) {
			sstart := p.curToken.Pos
			p.nextToken()
			arg := p.parseAssignment()
			arr.Elements = append(arr.Elements, &SpreadElement{SpanVal: p.spanFrom(sstart), Argument: arg})
		} else {
			arr.Elements = append(arr.Elements, p.parseAssignment())
		}
		if !p.curTokenIs(TokenRBracket) && !p.expect(TokenComma) {
			return nil
		}
	}
	if !p.expect(TokenRBracket) {
		return nil
	}
	arr.SpanVal = p.spanFrom(start)
	return arr
}

// ---------------------------------------------------------------------------
// Object literals
// ---------------------------------------------------------------------------

func (p *Parser) parseObjectLiteral() Expr {
	start := p.curToken.Pos
	p.nextToken() // {
	defer p.setNoIn(false)()
	obj := &ObjectLiteral{}
	for !p.curTokenIs(TokenRBrace) && !p.failed() {
		prop := p.parseObjectProperty()
		if prop == nil {
			return nil
		}
		obj.Properties = append(obj.Properties, prop)
		if !p.curTokenIs(TokenRBrace) && !p.expect(TokenComma) {
			return nil
		}
	}
	if !p.expect(TokenRBrace) {
		return nil
	}
	obj.SpanVal = p.spanFrom(start)
	return obj
}

// startsMemberName reports whether a get/set/static/async prefix at the
// current token is a modifier rather than the member name itself.
func (p *Parser) startsMemberName() bool {
	switch t := p.peekToken.Type; {
	case isPropertyName(t), t == TokenString, t == TokenNumber, t == TokenBigInt,
		t == TokenLBracket, t == TokenPrivateName, t == TokenStar:
		return true
	}
	return false
}

func (p *Parser) parseObjectProperty() *Property {
	start := p.curToken.Pos
	switch {
	case p.curTokenIs(TokenEllipsis):
		p.errorf("object spread is not supported")
		return nil
	case p.curTokenIs(TokenStar):
		p.errorf("generator functions are not supported")
		return nil
	case p.curTokenIs(TokenAsync) && p.startsMemberName() && !p.peekToken.NewlineBefore:
		p.errorf("async functions are not supported")
		return nil
	}
	kind := PropertyInit
	if (p.curTokenIs(TokenGet) || p.curTokenIs(TokenSet)) && p.startsMemberName() {
		kind = PropertyGetter
		if p.curTokenIs(TokenSet) {
			kind = PropertySetter
		}
		p.nextToken()
	}
	keyTok := p.curToken
	key, computed := p.parsePropertyKey()
	if p.failed() {
		return nil
	}
	prop := &Property{Kind: kind, Key: key, Computed: computed}
	switch {
	case p.curTokenIs(TokenLParen) || (p.typeScript && p.curTokenIs(TokenLess)):
		name := key
		switch kind {
		case PropertyInit:
			prop.Kind = PropertyMethod
		case PropertyGetter:
			name = "get " + key
		case PropertySetter:
			name = "set " + key
		}
		fn := p.parseFunctionTail(&Function{Name: name, Kind: FunctionMethod}, start, false)
		if fn == nil {
			return nil
		}
		prop.Value = &FunctionExpr{SpanVal: fn.SpanVal, Func: fn}
	case kind != PropertyInit:
		p.unexpected()
		return nil
	case p.curTokenIs(TokenColon):
		p.nextToken()
		prop.Value = p.parseAssignment()
	case computed == nil && p.isIdentifier(keyTok.Type) && (p.curTokenIs(TokenComma) || p.curTokenIs(TokenRBrace)):
		prop.Value = &Identifier{SpanVal: keyTok.Span(), Name: key}
	case p.curTokenIs(TokenAssign):
		p.errorf("invalid shorthand property initializer")
		return nil
	default:
		p.unexpected()
		return nil
	}
	if p.failed() {
		return nil
	}
	prop.SpanVal = p.spanFrom(start)
	return prop
}

// parsePropertyKey parses a static or computed property name.
func (p *Parser) parsePropertyKey() (string, Expr) {
	tok := p.curToken
	switch {
	case tok.Type == TokenString, tok.Type == TokenBigInt:
		p.nextToken()
		return tok.Literal, nil
	case tok.Type == TokenNumber:
		p.nextToken()
		return vm.FormatNumber(tok.Number), nil
	case tok.Type == TokenPrivateName:
		p.nextToken()
		return "#" + tok.Literal, nil
	case tok.Type == TokenLBracket:
		p.nextToken()
		restore := p.setNoIn(false)
		e := p.parseAssignment()
		restore()
		p.expect(TokenRBracket)
		return "", e
	case isPropertyName(tok.Type):
		p.nextToken()
		return tok.Literal, nil
	}
	p.unexpected()
	return "", nil
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

// parseFunctionRest parses the optional name, signature and body after the
// function keyword. A TypeScript signature without a body yields nil when
// allowSignature is set.
func (p *Parser) parseFunctionRest(start Position, kind FunctionKind, allowSignature bool) *Function {
	fn := &Function{Kind: kind}
	if p.isIdentifier(p.curToken.Type) {
		fn.Name = p.curToken.Literal
		p.nextToken()
	}
	return p.parseFunctionTail(fn, start, allowSignature)
}

// parseFunctionTail parses type parameters, parameters, return type and
// body into fn.
func (p *Parser) parseFunctionTail(fn *Function, start Position, allowSignature bool) *Function {
	if p.typeScript && p.curTokenIs(TokenLess) {
		p.skipTypeParameters()
	}
	if !p.curTokenIs(TokenLParen) {
		p.unexpected()
		return nil
	}
	p.parseParams(fn)
	if p.typeScript && p.curTokenIs(TokenColon) {
		p.skipReturnType()
	}
	if p.failed() {
		return nil
	}
	if !p.curTokenIs(TokenLBrace) {
		if p.typeScript && (allowSignature || p.ambient) {
			p.consumeSemicolon()
			return nil
		}
		p.unexpected()
		return nil
	}
	fn.Body = p.parseFunctionBody()
	if p.failed() {
		return nil
	}
	fn.SpanVal = p.spanFrom(start)
	fn.Source = p.input[start.Offset:p.prevEnd.Offset]
	return fn
}

func (p *Parser) isParamModifier(t TokenType) bool {
	switch t {
	case TokenPublic, TokenPrivate, TokenProtected, TokenReadonly, TokenOverride:
		return p.typeScript
	}
	return false
}

// parseParams parses a parenthesized parameter list into fn.
func (p *Parser) parseParams(fn *Function) {
	if !p.expect(TokenLParen) {
		return
	}
	defer p.setNoIn(false)()
	for !p.curTokenIs(TokenRParen) && !p.failed() {
		start := p.curToken.Pos
		if p.typeScript {
			p.skipDecorators()
		}
		property := false
		for p.isParamModifier(p.curToken.Type) && (p.isIdentifier(p.peekToken.Type) || p.peekTokenIs(TokenLBrace) || p.peekTokenIs(TokenLBracket)) {
			property = true
			p.nextToken()
		}
		if p.typeScript && p.curTokenIs(TokenThis) && len(fn.Params) == 0 {
			// this parameter
			p.nextToken()
			p.skipTypeAnnotation()
			if !p.curTokenIs(TokenRParen) {
				p.expect(TokenComma)
			}
			continue
		}
		param := &Param{}
		if p.curTokenIs(TokenEllipsis) {
			param.Rest = true
			p.nextToken()
		}
		param.Name = p.parseBindingName()
		if p.failed() {
			return
		}
		if p.typeScript {
			if p.curTokenIs(TokenQuestion) {
				p.nextToken()
			}
			p.skipTypeAnnotation()
		}
		if p.curTokenIs(TokenAssign) {
			if param.Rest {
				p.errorf("rest parameter may not have a default initializer")
				return
			}
			p.nextToken()
			param.Default = p.parseAssignment()
		}
		param.SpanVal = p.spanFrom(start)
		fn.Params = append(fn.Params, param)
		if property {
			if fn.Kind != FunctionConstructor {
				p.errorAt(start, "a parameter property is only allowed in a constructor implementation")
				return
			}
			fn.ParamProperties = append(fn.ParamProperties, param.Name)
		}
		if !p.curTokenIs(TokenComma) {
			break
		}
		if param.Rest {
			p.errorf("rest parameter must be last formal parameter")
			return
		}
		p.nextToken()
	}
	p.expect(TokenRParen)
}

// parseFunctionBody parses { statements } as the body of a function.
func (p *Parser) parseFunctionBody() []Stmt {
	if !p.expect(TokenLBrace) {
		return nil
	}
	restore := p.setNoIn(false)
	ambient := p.ambient
	p.ambient = false
	p.funcDepth++
	body := p.parseStatementList(TokenRBrace)
	p.funcDepth--
	p.ambient = ambient
	restore()
	p.expect(TokenRBrace)
	return body
}

// ---------------------------------------------------------------------------
// Classes
// ---------------------------------------------------------------------------

// parseClassRest parses a class after the class keyword.
func (p *Parser) parseClassRest(start Position) *Class {
	c := &Class{}
	if p.isIdentifier(p.curToken.Type) && !p.curTokenIs(TokenImplements) {
		c.Name = p.curToken.Literal
		p.nextToken()
	}
	if p.typeScript && p.curTokenIs(TokenLess) {
		p.skipTypeParameters()
	}
	if p.curTokenIs(TokenExtends) {
		p.nextToken()
		c.SuperClass = p.parseLeftHandSide()
		if p.typeScript && p.curTokenIs(TokenLess) {
			p.skipTypeArguments()
		}
	}
	if p.typeScript && p.curTokenIs(TokenImplements) {
		p.nextToken()
		p.skipType()
		for p.curTokenIs(TokenComma) && !p.failed() {
			p.nextToken()
			p.skipType()
		}
	}
	if p.failed() || !p.expect(TokenLBrace) {
		return nil
	}
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) && !p.failed() {
		p.parseClassMember(c)
	}
	if !p.expect(TokenRBrace) {
		return nil
	}
	c.SpanVal = p.spanFrom(start)
	return c
}

func (p *Parser) isMemberModifier(t TokenType) bool {
	switch t {
	case TokenStatic:
		return true
	case TokenPublic, TokenPrivate, TokenProtected, TokenReadonly, TokenAbstract, TokenOverride,
		TokenDeclare, TokenAccessor:
		return p.typeScript
	}
	return false
}

// endsMemberName reports whether the peek token ends a member name, so a
// modifier word at the current token is really the name.
func (p *Parser) endsMemberName() bool {
	switch p.peekToken.Type {
	case TokenLParen, TokenAssign, TokenSemicolon, TokenRBrace, TokenEOF:
		return true
	case TokenColon, TokenQuestion, TokenLess, TokenBang:
		return p.typeScript
	}
	return false
}

// fieldAssignment builds this[key] = value for a field initializer.
func fieldAssignment(span Span, key string, computed, value Expr) Stmt {
	if value == nil {
		value = &UnaryExpr{SpanVal: span, Op: TokenVoid, Operand: &NumberLiteral{SpanVal: span}}
	}
	target := &MemberExpr{SpanVal: span, Object: &ThisExpr{SpanVal: span}, Name: key, Computed: computed}
	return &ExprStmt{SpanVal: span, Expr: &AssignExpr{SpanVal: span, Op: TokenAssign, Target: target, Value: value}}
}

func (p *Parser) parseClassMember(c *Class) {
	start := p.curToken.Pos
	if p.curTokenIs(TokenSemicolon) {
		p.nextToken()
		return
	}
	if p.typeScript {
		p.skipDecorators()
	}
	static, erased := false, false
	for p.isMemberModifier(p.curToken.Type) && !p.endsMemberName() {
		switch p.curToken.Type {
		case TokenStatic:
			static = true
		case TokenAbstract, TokenDeclare:
			erased = true
		}
		p.nextToken()
	}
	switch {
	case static && p.curTokenIs(TokenLBrace):
		p.errorf("class static blocks are not supported")
		return
	case p.curTokenIs(TokenStar):
		p.errorf("generator functions are not supported")
		return
	case p.curTokenIs(TokenAsync) && !p.endsMemberName() && !p.peekToken.NewlineBefore:
		p.errorf("async functions are not supported")
		return
	case p.typeScript && p.curTokenIs(TokenLBracket) && p.isIndexSignature():
		p.skipBalanced(TokenLBracket, TokenRBracket)
		p.skipTypeAnnotation()
		p.consumeSemicolon()
		return
	}
	kind := MemberMethod
	if (p.curTokenIs(TokenGet) || p.curTokenIs(TokenSet)) && !p.endsMemberName() {
		kind = MemberGetter
		if p.curTokenIs(TokenSet) {
			kind = MemberSetter
		}
		p.nextToken()
	}
	keyTok := p.curToken
	key, computed := p.parsePropertyKey()
	if p.failed() {
		return
	}
	if p.typeScript && (p.curTokenIs(TokenQuestion) || p.curTokenIs(TokenBang)) {
		p.nextToken()
	}

	if p.curTokenIs(TokenLParen) || (p.typeScript && p.curTokenIs(TokenLess)) {
		if kind == MemberMethod && !static && computed == nil && key == "constructor" && keyTok.Type != TokenPrivateName {
			fn := p.parseFunctionTail(&Function{Name: c.Name, Kind: FunctionConstructor, Class: c}, start, true)
			if fn == nil {
				return
			}
			if c.Constructor != nil {
				p.errorAt(start, "a class may only have one constructor")
				return
			}
			c.Constructor = fn
			return
		}
		name := key
		switch kind {
		case MemberGetter:
			name = "get " + key
		case MemberSetter:
			name = "set " + key
		}
		fn := p.parseFunctionTail(&Function{Name: name, Kind: FunctionMethod, Class: c, Static: static}, start, true)
		if fn == nil || erased {
			return
		}
		c.Members = append(c.Members, &ClassMember{
			SpanVal: p.spanFrom(start), Kind: kind, Static: static, Key: key, Computed: computed, Func: fn,
		})
		return
	}

	// Field
	if kind != MemberMethod {
		p.unexpected()
		return
	}
	if p.typeScript {
		p.skipTypeAnnotation()
	}
	var value Expr
	if p.curTokenIs(TokenAssign) {
		p.nextToken()
		p.funcDepth++
		value = p.parseAssignment()
		p.funcDepth--
	}
	if p.failed() {
		return
	}
	p.consumeSemicolon()
	if erased {
		return
	}
	span := p.spanFrom(start)
	init := &c.Fields
	if static {
		init = &c.StaticFields
	}
	if *init == nil {
		*init = &Function{SpanVal: span, Kind: FunctionMethod, Class: c, Static: static}
	}
	(*init).Body = append((*init).Body, fieldAssignment(span, key, computed, value))
}
