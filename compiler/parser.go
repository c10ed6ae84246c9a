package compiler

import (
	"fmt"

	"github.com/spacey-js/spacey/vm"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent parser for JavaScript with TypeScript erasure
// ---------------------------------------------------------------------------

// Parser parses JavaScript (or TypeScript) source code into an AST.
// Parsing stops at the first error; Errors reports it.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	prevEnd   Position // end of the last consumed token
	errors    []string
	input     string // original source text (for function sources)

	typeScript bool
	noIn       bool // the in operator is disallowed (for-init)
	funcDepth  int  // number of enclosing function bodies
	ambient    bool // inside a declare statement: bodies and initializers are optional
}

// NewParser creates a new parser for JavaScript input.
func NewParser(input string) *Parser {
	p := &Parser{
		lexer: NewLexer(input),
		input: input,
	}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// NewTypeScriptParser creates a parser that erases TypeScript syntax.
func NewTypeScriptParser(input string) *Parser {
	p := &Parser{
		lexer:      NewTypeScriptLexer(input),
		input:      input,
		typeScript: true,
	}
	p.nextToken()
	p.nextToken()
	return p
}

// SetTypeScriptMode switches TypeScript erasure on or off. It only affects
// tokens not yet read, so call it before parsing.
func (p *Parser) SetTypeScriptMode(on bool) {
	if p.typeScript == on {
		return
	}
	p.typeScript = on
	p.lexer = NewLexer(p.input)
	p.lexer.SetTypeScript(on)
	p.errors = nil
	p.nextToken()
	p.nextToken()
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.prevEnd = p.curToken.End
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.unexpected()
	return false
}

// errorf records a parse error at the current token.
func (p *Parser) errorf(format string, args ...interface{}) {
	p.errorAt(p.curToken.Pos, format, args...)
}

func (p *Parser) errorAt(pos Position, format string, args ...interface{}) {
	if len(p.errors) > 0 {
		return
	}
	msg := fmt.Sprintf("line %d:%d: %s", pos.Line, pos.Column, fmt.Sprintf(format, args...))
	p.errors = append(p.errors, msg)
}

// unexpected records an error for the current token.
func (p *Parser) unexpected() {
	switch tok := p.curToken; tok.Type {
	case TokenEOF:
		p.errorf("unexpected end of input")
	case TokenIllegal:
		p.errorf("%s", tok.Literal)
	case TokenString:
		p.errorf("unexpected string")
	case TokenNumber, TokenBigInt:
		p.errorf("unexpected number")
	case TokenTemplate:
		p.errorf("unexpected template string")
	case TokenIdentifier:
		p.errorf("unexpected identifier '%s'", tok.Literal)
	default:
		p.errorf("unexpected token '%s'", tok.Type)
	}
}

// failed reports whether an error has been recorded.
func (p *Parser) failed() bool { return len(p.errors) > 0 }

// Errors returns accumulated parse errors.
func (p *Parser) Errors() []string {
	return p.errors
}

// spanFrom returns the span from start to the end of the last token.
func (p *Parser) spanFrom(start Position) Span {
	return Span{Start: start, End: p.prevEnd}
}

// ---------------------------------------------------------------------------
// Speculation
// ---------------------------------------------------------------------------

type parserState struct {
	lex       lexerState
	cur, peek Token
	prevEnd   Position
	nerr      int
}

func (p *Parser) snapshot() parserState {
	return parserState{
		lex:     p.lexer.save(),
		cur:     p.curToken,
		peek:    p.peekToken,
		prevEnd: p.prevEnd,
		nerr:    len(p.errors),
	}
}

func (p *Parser) rewind(s parserState) {
	p.lexer.restore(s.lex)
	p.curToken = s.cur
	p.peekToken = s.peek
	p.prevEnd = s.prevEnd
	p.errors = p.errors[:s.nerr]
}

// setNoIn sets the noIn flag and returns a function restoring it.
func (p *Parser) setNoIn(on bool) func() {
	old := p.noIn
	p.noIn = on
	return func() { p.noIn = old }
}

// ---------------------------------------------------------------------------
// Token classes
// ---------------------------------------------------------------------------

// isIdentifier reports whether t can name a binding.
func (p *Parser) isIdentifier(t TokenType) bool {
	return t == TokenIdentifier || t.IsContextual()
}

// isPropertyName reports whether t can follow a dot or name a property.
func isPropertyName(t TokenType) bool {
	return t == TokenIdentifier || t.IsKeyword()
}

// parseBindingName consumes a binding identifier.
func (p *Parser) parseBindingName() string {
	if !p.isIdentifier(p.curToken.Type) {
		if p.curTokenIs(TokenLBracket) || p.curTokenIs(TokenLBrace) {
			p.errorf("destructuring patterns are not supported")
			return ""
		}
		p.unexpected()
		return ""
	}
	name := p.curToken.Literal
	p.nextToken()
	return name
}

// consumeSemicolon implements automatic semicolon insertion.
func (p *Parser) consumeSemicolon() {
	switch {
	case p.curTokenIs(TokenSemicolon):
		p.nextToken()
	case p.curTokenIs(TokenRBrace), p.curTokenIs(TokenEOF), p.curToken.NewlineBefore:
	default:
		p.unexpected()
	}
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseProgram parses a complete source file.
func (p *Parser) ParseProgram() *Program {
	prog := &Program{Source: p.input}
	start := p.curToken.Pos
	for !p.curTokenIs(TokenEOF) && !p.failed() {
		if stmt := p.parseStatement(); stmt != nil {
			prog.Body = append(prog.Body, stmt)
		}
	}
	prog.SpanVal = p.spanFrom(start)
	return prog
}

// ParseExpression parses a single expression spanning the whole input.
func (p *Parser) ParseExpression() Expr {
	e := p.parseExpression()
	if !p.failed() && !p.curTokenIs(TokenEOF) {
		p.unexpected()
	}
	return e
}

// ParseSource parses src as a program and returns the first error as a
// SyntaxError.
func ParseSource(src string, typeScript bool) (*Program, error) {
	var p *Parser
	if typeScript {
		p = NewTypeScriptParser(src)
	} else {
		p = NewParser(src)
	}
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, vm.NewError(vm.SyntaxError, errs[0])
	}
	return prog, nil
}
