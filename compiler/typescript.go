package compiler

import (
	"math"

	"github.com/spacey-js/spacey/vm"
)

// ---------------------------------------------------------------------------
// TypeScript erasure
// ---------------------------------------------------------------------------

// parseTypeScriptDeclaration handles statements that exist only in
// TypeScript. It reports false when the current token starts an ordinary
// statement.
func (p *Parser) parseTypeScriptDeclaration(start Position) (Stmt, bool) {
	peek := p.peekToken
	sameLine := !peek.NewlineBefore
	switch p.curToken.Type {
	case TokenAt:
		p.skipDecorators()
		if p.failed() {
			return nil, true
		}
		return p.parseStatement(), true
	case TokenTypeAlias:
		if !p.isIdentifier(peek.Type) || !sameLine {
			return nil, false
		}
		p.nextToken() // type
		p.nextToken() // name
		if p.curTokenIs(TokenLess) {
			p.skipTypeParameters()
		}
		if !p.expect(TokenAssign) {
			return nil, true
		}
		p.skipType()
		p.consumeSemicolon()
	case TokenInterface:
		if !p.isIdentifier(peek.Type) || !sameLine {
			return nil, false
		}
		p.nextToken() // interface
		p.nextToken() // name
		if p.curTokenIs(TokenLess) {
			p.skipTypeParameters()
		}
		if p.curTokenIs(TokenExtends) {
			p.nextToken()
			p.skipType()
			for p.curTokenIs(TokenComma) && !p.failed() {
				p.nextToken()
				p.skipType()
			}
		}
		if !p.failed() && !p.curTokenIs(TokenLBrace) {
			p.unexpected()
		}
		p.skipBalanced(TokenLBrace, TokenRBrace)
	case TokenNamespace, TokenModule:
		if !(p.isIdentifier(peek.Type) || peek.Type == TokenString) || !sameLine {
			return nil, false
		}
		p.nextToken()
		p.skipNamespace()
	case TokenDeclare:
		if !sameLine || !(isPropertyName(peek.Type)) {
			return nil, false
		}
		p.nextToken() // declare
		if p.curTokenIs(TokenIdentifier) && p.curToken.Literal == "global" && p.peekTokenIs(TokenLBrace) {
			p.nextToken()
			p.skipBalanced(TokenLBrace, TokenRBrace)
			break
		}
		ambient := p.ambient
		p.ambient = true
		p.parseStatement()
		p.ambient = ambient
	case TokenAbstract:
		if !p.peekTokenIs(TokenClass) || !sameLine {
			return nil, false
		}
		p.nextToken()
		return p.parseClassDeclaration(start), true
	default:
		return nil, false
	}
	if p.failed() {
		return nil, true
	}
	return &EmptyStmt{SpanVal: p.spanFrom(start)}, true
}

// skipNamespace skips a dotted namespace name or module string and its
// body.
func (p *Parser) skipNamespace() {
	p.nextToken() // name or module string
	for p.curTokenIs(TokenDot) && !p.failed() {
		p.nextToken()
		p.parseBindingName()
	}
	if p.curTokenIs(TokenLBrace) {
		p.skipBalanced(TokenLBrace, TokenRBrace)
		return
	}
	p.consumeSemicolon()
}

// skipDecorators skips @expr decorators. They are not evaluated.
func (p *Parser) skipDecorators() {
	for p.curTokenIs(TokenAt) && !p.failed() {
		start := p.curToken.Pos
		p.nextToken()
		var e Expr
		if p.curTokenIs(TokenLParen) {
			e = p.parsePrimary()
		} else {
			e = &Identifier{Name: p.parseBindingName()}
		}
		if p.failed() {
			return
		}
		p.parseCallTail(start, e, true)
	}
}

// isIndexSignature reports whether the [ at the current token opens an
// index signature such as [key: string]: T.
func (p *Parser) isIndexSignature() bool {
	st := p.snapshot()
	defer p.rewind(st)
	p.nextToken()
	return p.isIdentifier(p.curToken.Type) && p.peekTokenIs(TokenColon)
}

// ---------------------------------------------------------------------------
// Enums
// ---------------------------------------------------------------------------

// enumValue is the compile-time value of an enum member.
type enumValue struct {
	num   float64
	str   string
	isStr bool
}

// parseEnum lowers enum E { A, B = 5, C = "s" } to a block that builds the
// enum object with reverse mappings for numeric members.
func (p *Parser) parseEnum(start Position) Stmt {
	p.nextToken() // enum
	nameTok := p.curToken
	name := p.parseBindingName()
	if p.failed() || !p.expect(TokenLBrace) {
		return nil
	}
	ident := func() Expr { return &Identifier{SpanVal: nameTok.Span(), Name: name} }
	block := &BlockStmt{}
	block.Body = append(block.Body, &VarDecl{
		SpanVal: nameTok.Span(),
		Kind:    DeclVar,
		Decls:   []*Declarator{{SpanVal: nameTok.Span(), Name: name, Init: &ObjectLiteral{SpanVal: nameTok.Span()}}},
	})
	assign := func(span Span, key, value Expr) {
		target := &MemberExpr{SpanVal: span, Object: ident(), Computed: key}
		block.Body = append(block.Body, &ExprStmt{SpanVal: span, Expr: &AssignExpr{SpanVal: span, Op: TokenAssign, Target: target, Value: value}})
	}

	values := make(map[string]enumValue)
	next := 0.0
	for !p.curTokenIs(TokenRBrace) && !p.failed() {
		mstart := p.curToken.Pos
		var key string
		switch tok := p.curToken; {
		case tok.Type == TokenString, isPropertyName(tok.Type):
			key = tok.Literal
			p.nextToken()
		default:
			p.errorf("enum member names must be identifiers or strings")
			return nil
		}
		var init Expr
		if p.curTokenIs(TokenAssign) {
			p.nextToken()
			init = p.parseAssignment()
			if p.failed() {
				return nil
			}
		}
		span := p.spanFrom(mstart)
		keyLit := &StringLiteral{SpanVal: span, Value: key}
		v, constant := enumValue{num: next}, init == nil
		if init != nil {
			v, constant = foldEnumValue(init, values)
		}
		switch {
		case constant && v.isStr:
			assign(span, keyLit, &StringLiteral{SpanVal: span, Value: v.str})
		case constant:
			assign(span, keyLit, &NumberLiteral{SpanVal: span, Value: v.num})
			assign(span, &NumberLiteral{SpanVal: span, Value: v.num}, &StringLiteral{SpanVal: span, Value: key})
			next = v.num + 1
		default:
			assign(span, keyLit, init)
			next++
		}
		if constant {
			values[key] = v
		}
		if !p.curTokenIs(TokenRBrace) && !p.expect(TokenComma) {
			return nil
		}
	}
	if !p.expect(TokenRBrace) {
		return nil
	}
	block.SpanVal = p.spanFrom(start)
	return block
}

// foldEnumValue evaluates a constant enum initializer: literals, earlier
// members and arithmetic over them.
func foldEnumValue(e Expr, members map[string]enumValue) (enumValue, bool) {
	switch n := e.(type) {
	case *NumberLiteral:
		return enumValue{num: n.Value}, true
	case *StringLiteral:
		return enumValue{str: n.Value, isStr: true}, true
	case *TemplateLiteral:
		if len(n.Exprs) == 0 {
			return enumValue{str: n.Quasis[0], isStr: true}, true
		}
	case *Identifier:
		v, ok := members[n.Name]
		return v, ok
	case *UnaryExpr:
		v, ok := foldEnumValue(n.Operand, members)
		if !ok || v.isStr {
			return v, false
		}
		switch n.Op {
		case TokenMinus:
			return enumValue{num: -v.num}, true
		case TokenPlus:
			return v, true
		case TokenTilde:
			return enumValue{num: float64(^vm.ToInt32(v.num))}, true
		}
	case *BinaryExpr:
		l, ok1 := foldEnumValue(n.Left, members)
		r, ok2 := foldEnumValue(n.Right, members)
		if !ok1 || !ok2 {
			break
		}
		if l.isStr || r.isStr {
			if n.Op == TokenPlus && l.isStr && r.isStr {
				return enumValue{str: l.str + r.str, isStr: true}, true
			}
			break
		}
		a, b := l.num, r.num
		switch n.Op {
		case TokenPlus:
			return enumValue{num: a + b}, true
		case TokenMinus:
			return enumValue{num: a - b}, true
		case TokenStar:
			return enumValue{num: a * b}, true
		case TokenSlash:
			return enumValue{num: a / b}, true
		case TokenPercent:
			return enumValue{num: math.Mod(a, b)}, true
		case TokenStarStar:
			return enumValue{num: math.Pow(a, b)}, true
		case TokenPipe:
			return enumValue{num: float64(vm.ToInt32(a) | vm.ToInt32(b))}, true
		case TokenAmp:
			return enumValue{num: float64(vm.ToInt32(a) & vm.ToInt32(b))}, true
		case TokenCaret:
			return enumValue{num: float64(vm.ToInt32(a) ^ vm.ToInt32(b))}, true
		case TokenShl:
			return enumValue{num: float64(vm.ToInt32(a) << (uint32(vm.ToInt32(b)) & 31))}, true
		case TokenShr:
			return enumValue{num: float64(vm.ToInt32(a) >> (uint32(vm.ToInt32(b)) & 31))}, true
		}
	}
	return enumValue{}, false
}

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// skipTypeAnnotation skips ": Type" if present.
func (p *Parser) skipTypeAnnotation() {
	if p.curTokenIs(TokenColon) {
		p.nextToken()
		p.skipType()
	}
}

// skipReturnType skips ": Type" after a parameter list, including the
// predicate forms "x is T" and "asserts x is T".
func (p *Parser) skipReturnType() {
	p.nextToken() // :
	if p.curTokenIs(TokenAsserts) && (p.isIdentifier(p.peekToken.Type) || p.peekTokenIs(TokenThis)) && !p.peekToken.NewlineBefore {
		p.nextToken()
		p.nextToken()
		if p.curTokenIs(TokenIs) {
			p.nextToken()
			p.skipType()
		}
		return
	}
	p.skipType()
}

// skipType skips one type, including conditional types.
func (p *Parser) skipType() {
	if p.failed() {
		return
	}
	p.skipUnionType()
	if p.curTokenIs(TokenExtends) && !p.curToken.NewlineBefore {
		p.nextToken()
		p.skipUnionType()
		if !p.expect(TokenQuestion) {
			return
		}
		p.skipType()
		if !p.expect(TokenColon) {
			return
		}
		p.skipType()
	}
}

func (p *Parser) skipUnionType() {
	if p.curTokenIs(TokenPipe) || p.curTokenIs(TokenAmp) {
		p.nextToken()
	}
	p.skipTypeOperand()
	for (p.curTokenIs(TokenPipe) || p.curTokenIs(TokenAmp)) && !p.failed() {
		p.nextToken()
		p.skipTypeOperand()
	}
}

// skipFunctionType skips "(params) => Type" after optional type
// parameters.
func (p *Parser) skipFunctionType() {
	if p.curTokenIs(TokenLess) {
		p.skipTypeParameters()
	}
	if !p.curTokenIs(TokenLParen) {
		p.unexpected()
		return
	}
	p.skipBalanced(TokenLParen, TokenRParen)
	if p.expect(TokenArrow) {
		p.skipType()
	}
}

func (p *Parser) skipTypeOperand() {
	if p.failed() {
		return
	}
	switch p.curToken.Type {
	case TokenKeyof, TokenUnique, TokenReadonly:
		p.nextToken()
		p.skipTypeOperand()
		return
	case TokenInfer:
		p.nextToken()
		p.parseBindingName()
	case TokenTypeof:
		p.nextToken()
		p.skipEntityName()
	case TokenNew:
		p.nextToken()
		p.skipFunctionType()
		return
	case TokenAbstract:
		if !p.peekTokenIs(TokenNew) {
			p.skipEntityName()
			break
		}
		p.nextToken()
		p.nextToken()
		p.skipFunctionType()
		return
	case TokenLess:
		p.skipFunctionType()
		return
	case TokenLParen:
		// Either a parenthesized type or a function type's parameters.
		p.skipBalanced(TokenLParen, TokenRParen)
		if p.curTokenIs(TokenArrow) {
			p.nextToken()
			p.skipType()
			return
		}
	case TokenLBracket:
		p.skipBalanced(TokenLBracket, TokenRBracket)
	case TokenLBrace:
		p.skipBalanced(TokenLBrace, TokenRBrace)
	case TokenString, TokenNumber, TokenBigInt, TokenTemplate, TokenTrue, TokenFalse,
		TokenNull, TokenVoid, TokenThis:
		p.nextToken()
	case TokenMinus:
		p.nextToken()
		if !p.curTokenIs(TokenNumber) && !p.curTokenIs(TokenBigInt) {
			p.unexpected()
			return
		}
		p.nextToken()
	case TokenImport:
		p.nextToken()
		p.skipBalanced(TokenLParen, TokenRParen)
		for p.curTokenIs(TokenDot) && !p.failed() {
			p.nextToken()
			p.parseMemberName()
		}
		if p.curTokenIs(TokenLess) {
			p.skipTypeArguments()
		}
	default:
		if !p.isIdentifier(p.curToken.Type) {
			p.unexpected()
			return
		}
		p.skipEntityName()
	}
	if p.curTokenIs(TokenIs) && !p.curToken.NewlineBefore {
		p.nextToken()
		p.skipType()
		return
	}
	for p.curTokenIs(TokenLBracket) && !p.curToken.NewlineBefore && !p.failed() {
		p.skipBalanced(TokenLBracket, TokenRBracket)
	}
}

// skipEntityName skips a qualified name with optional type arguments.
func (p *Parser) skipEntityName() {
	if !isPropertyName(p.curToken.Type) {
		p.unexpected()
		return
	}
	p.nextToken()
	for p.curTokenIs(TokenDot) && !p.failed() {
		p.nextToken()
		p.parseMemberName()
	}
	if p.curTokenIs(TokenLess) && !p.curToken.NewlineBefore {
		p.skipTypeArguments()
	}
}

// skipBalanced skips from an open token through its matching close token.
func (p *Parser) skipBalanced(open, close TokenType) {
	if !p.curTokenIs(open) {
		p.unexpected()
		return
	}
	depth := 0
	for !p.failed() {
		switch p.curToken.Type {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				p.nextToken()
				return
			}
		case TokenEOF, TokenIllegal:
			p.unexpected()
			return
		}
		p.nextToken()
	}
}

// skipTypeArguments skips <T, U>.
func (p *Parser) skipTypeArguments() {
	if !p.expect(TokenLess) {
		return
	}
	for !p.failed() {
		p.skipType()
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expectGreater()
}

// skipTypeParameters skips <in T extends U = D, ...>.
func (p *Parser) skipTypeParameters() {
	if !p.expect(TokenLess) {
		return
	}
	for !p.failed() && !p.curTokenIs(TokenGreater) {
		for (p.curTokenIs(TokenIn) || p.curTokenIs(TokenConst) ||
			(p.curTokenIs(TokenIdentifier) && p.curToken.Literal == "out")) && p.isIdentifier(p.peekToken.Type) {
			p.nextToken()
		}
		p.parseBindingName()
		if p.curTokenIs(TokenExtends) {
			p.nextToken()
			p.skipType()
		}
		if p.curTokenIs(TokenAssign) {
			p.nextToken()
			p.skipType()
		}
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expectGreater()
}

// expectGreater consumes a closing >. A token that merely starts with >
// (>>, >=, ...) is split, so nested lists like Array<Array<T>> close.
func (p *Parser) expectGreater() {
	var rest TokenType
	switch p.curToken.Type {
	case TokenGreater:
		p.nextToken()
		return
	case TokenShr:
		rest = TokenGreater
	case TokenUshr:
		rest = TokenShr
	case TokenGreaterEq:
		rest = TokenAssign
	case TokenShrEq:
		rest = TokenGreaterEq
	case TokenUshrEq:
		rest = TokenShrEq
	default:
		p.unexpected()
		return
	}
	tok := &p.curToken
	tok.Type = rest
	tok.Literal = tok.Literal[1:]
	tok.Pos.Offset++
	tok.Pos.Column++
	tok.NewlineBefore = false
}
