package compiler

import (
	"math/big"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: tokenizer for JavaScript and TypeScript source
// ---------------------------------------------------------------------------

// Lexer tokenizes JavaScript source code. In TypeScript mode it also
// recognizes the TypeScript contextual keywords.
type Lexer struct {
	input      string
	pos        int // offset of the next unread byte
	line       int // current line (1-based)
	lineStart  int // offset of the current line start
	typeScript bool
	newline    bool // a line terminator was skipped before the current token
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	if strings.HasPrefix(input, "#!") {
		l.skipLine()
	}
	return l
}

// NewTypeScriptLexer creates a lexer in TypeScript mode.
func NewTypeScriptLexer(input string) *Lexer {
	l := NewLexer(input)
	l.typeScript = true
	return l
}

// SetTypeScript switches the keyword table.
func (l *Lexer) SetTypeScript(on bool) { l.typeScript = on }

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.pos - l.lineStart + 1}
}

func (l *Lexer) peekByte(n int) byte {
	if l.pos+n < len(l.input) {
		return l.input[l.pos+n]
	}
	return 0
}

// peekRune decodes the rune at the current position.
func (l *Lexer) peekRune() (rune, int) {
	if l.pos >= len(l.input) {
		return 0, 0
	}
	c := l.input[l.pos]
	if c < utf8.RuneSelf {
		return rune(c), 1
	}
	return utf8.DecodeRuneInString(l.input[l.pos:])
}

// advance consumes one rune, tracking line starts.
func (l *Lexer) advance() rune {
	r, size := l.peekRune()
	if size == 0 {
		return 0
	}
	l.pos += size
	if r == '\r' && l.peekByte(0) == '\n' {
		l.pos++
		r = '\n'
	}
	if isLineTerminator(r) {
		l.line++
		l.lineStart = l.pos
	}
	return r
}

func isLineTerminator(r rune) bool {
	return r == '\n' || r == '\r' || r == 0x2028 || r == 0x2029
}

func isWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\v', '\f', 0xA0, 0xFEFF:
		return true
	}
	return r > 0x7F && unicode.Is(unicode.Zs, r)
}

func isIdentStart(r rune) bool {
	return r == '$' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r > 0x7F && unicode.IsLetter(r))
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9') ||
		(r > 0x7F && (unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r) ||
			unicode.Is(unicode.Pc, r) || r == 0x200C || r == 0x200D))
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (l *Lexer) skipLine() {
	for l.pos < len(l.input) {
		r, _ := l.peekRune()
		if isLineTerminator(r) {
			return
		}
		l.advance()
	}
}

// skipTrivia skips whitespace and comments, recording whether a line
// terminator was crossed.
func (l *Lexer) skipTrivia() Token {
	for l.pos < len(l.input) {
		r, _ := l.peekRune()
		switch {
		case isLineTerminator(r):
			l.newline = true
			l.advance()
		case isWhitespace(r):
			l.advance()
		case r == '/' && l.peekByte(1) == '/':
			l.skipLine()
		case r == '/' && l.peekByte(1) == '*':
			start := l.position()
			l.pos += 2
			for {
				if l.pos >= len(l.input) {
					return Token{Type: TokenIllegal, Literal: "unterminated comment", Pos: start, End: l.position()}
				}
				if l.input[l.pos] == '*' && l.peekByte(1) == '/' {
					l.pos += 2
					break
				}
				if c, _ := l.peekRune(); isLineTerminator(c) {
					l.newline = true
				}
				l.advance()
			}
		default:
			return Token{}
		}
	}
	return Token{}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.newline = false
	if bad := l.skipTrivia(); bad.Type == TokenIllegal {
		bad.NewlineBefore = l.newline
		return bad
	}
	tok := l.scan()
	tok.NewlineBefore = l.newline
	tok.End = l.position()
	return tok
}

func (l *Lexer) scan() Token {
	pos := l.position()
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: pos}
	}
	r, _ := l.peekRune()
	switch {
	case isIdentStart(r) || r == '\\':
		return l.readIdentifier(pos)
	case isDigit(byte(r)) && r < utf8.RuneSelf:
		return l.readNumber(pos)
	case r == '.' && isDigit(l.peekByte(1)):
		return l.readNumber(pos)
	case r == '"' || r == '\'':
		return l.readString(pos, byte(r))
	case r == '`':
		return l.readTemplate(pos)
	case r == '#':
		l.pos++
		if c, _ := l.peekRune(); isIdentStart(c) {
			id := l.readIdentifier(pos)
			return Token{Type: TokenPrivateName, Literal: id.Literal, Pos: pos}
		}
		return l.illegal(pos, "unexpected character '#'")
	}
	if t, n := l.matchPunctuator(); n > 0 {
		start := l.pos
		l.pos += n
		return Token{Type: t, Literal: l.input[start:l.pos], Pos: pos}
	}
	l.advance()
	return l.illegal(pos, "unexpected character "+strconv.QuoteRune(r))
}

func (l *Lexer) illegal(pos Position, msg string) Token {
	return Token{Type: TokenIllegal, Literal: msg, Pos: pos}
}

// punctuators lists every operator, longest first within a leading byte.
var punctuators = []struct {
	text string
	typ  TokenType
}{
	{">>>=", TokenUshrEq},
	{"...", TokenEllipsis}, {"===", TokenStrictEq}, {"!==", TokenStrictNe}, {"**=", TokenStarStarEq},
	{"<<=", TokenShlEq}, {">>=", TokenShrEq}, {">>>", TokenUshr}, {"&&=", TokenAndEq},
	{"||=", TokenOrEq}, {"??=", TokenNullishEq},
	{"=>", TokenArrow}, {"==", TokenEq}, {"!=", TokenNotEq}, {"<=", TokenLessEq}, {">=", TokenGreaterEq},
	{"&&", TokenAnd}, {"||", TokenOr}, {"??", TokenNullish}, {"?.", TokenOptional},
	{"++", TokenIncrement}, {"--", TokenDecrement}, {"+=", TokenPlusEq}, {"-=", TokenMinusEq},
	{"*=", TokenStarEq}, {"/=", TokenSlashEq}, {"%=", TokenPercentEq}, {"&=", TokenAmpEq},
	{"|=", TokenPipeEq}, {"^=", TokenCaretEq}, {"<<", TokenShl}, {">>", TokenShr}, {"**", TokenStarStar},
	{"(", TokenLParen}, {")", TokenRParen}, {"[", TokenLBracket}, {"]", TokenRBracket},
	{"{", TokenLBrace}, {"}", TokenRBrace}, {";", TokenSemicolon}, {",", TokenComma},
	{".", TokenDot}, {"?", TokenQuestion}, {":", TokenColon}, {"@", TokenAt},
	{"+", TokenPlus}, {"-", TokenMinus}, {"*", TokenStar}, {"/", TokenSlash}, {"%", TokenPercent},
	{"<", TokenLess}, {">", TokenGreater}, {"&", TokenAmp}, {"|", TokenPipe}, {"^", TokenCaret},
	{"!", TokenBang}, {"~", TokenTilde}, {"=", TokenAssign},
}

func (l *Lexer) matchPunctuator() (TokenType, int) {
	rest := l.input[l.pos:]
	for _, p := range punctuators {
		if !strings.HasPrefix(rest, p.text) {
			continue
		}
		// a?.5:b is a conditional, not optional chaining
		if p.typ == TokenOptional && len(rest) > 2 && isDigit(rest[2]) {
			continue
		}
		return p.typ, len(p.text)
	}
	return TokenIllegal, 0
}

// ---------------------------------------------------------------------------
// Identifiers and keywords
// ---------------------------------------------------------------------------

func (l *Lexer) readIdentifier(pos Position) Token {
	var sb strings.Builder
	for l.pos < len(l.input) {
		r, size := l.peekRune()
		if r == '\\' {
			if l.peekByte(1) != 'u' {
				return l.illegal(pos, "invalid escape in identifier")
			}
			l.pos += 2
			cp, ok := l.readUnicodeEscape()
			if !ok || !isIdentPart(cp) {
				return l.illegal(pos, "invalid Unicode escape in identifier")
			}
			sb.WriteRune(cp)
			continue
		}
		if !isIdentPart(r) {
			break
		}
		sb.WriteString(l.input[l.pos : l.pos+size])
		l.pos += size
	}
	word := sb.String()
	if t, ok := keywords[word]; ok {
		return Token{Type: t, Literal: word, Pos: pos}
	}
	if l.typeScript {
		if t, ok := typeScriptKeywords[word]; ok {
			return Token{Type: t, Literal: word, Pos: pos}
		}
	}
	return Token{Type: TokenIdentifier, Literal: word, Pos: pos}
}

// ---------------------------------------------------------------------------
// Numbers
// ---------------------------------------------------------------------------

// readDigits consumes digits valid in base, allowing single separators
// between digits. It reports false on a misplaced separator.
func (l *Lexer) readDigits(base int) (string, bool) {
	var sb strings.Builder
	lastSep := false
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == '_' {
			if sb.Len() == 0 || lastSep {
				return "", false
			}
			lastSep = true
			l.pos++
			continue
		}
		if digitValue(c) >= base {
			break
		}
		sb.WriteByte(c)
		lastSep = false
		l.pos++
	}
	if lastSep {
		return "", false
	}
	return sb.String(), true
}

func digitValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'z':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	}
	return 99
}

func (l *Lexer) readNumber(pos Position) Token {
	bad := func() Token { return l.illegal(pos, "invalid number literal") }
	if l.input[l.pos] == '0' && l.pos+1 < len(l.input) {
		base := 0
		switch l.input[l.pos+1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			l.pos += 2
			digits, ok := l.readDigits(base)
			if !ok || digits == "" {
				return bad()
			}
			return l.finishInteger(pos, digits, base)
		}
		if isDigit(l.input[l.pos+1]) {
			return l.readLegacyOctal(pos)
		}
	}

	start := l.pos
	intPart, ok := l.readDigits(10)
	if !ok {
		return bad()
	}
	if l.pos < len(l.input) && l.input[l.pos] == 'n' {
		return l.finishInteger(pos, intPart, 10)
	}
	text := intPart
	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		l.pos++
		if l.pos < len(l.input) && l.input[l.pos] == '_' {
			return bad()
		}
		frac, ok := l.readDigits(10)
		if !ok {
			return bad()
		}
		text += "." + frac
	}
	if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		l.pos++
		sign := ""
		if l.pos < len(l.input) && (l.input[l.pos] == '+' || l.input[l.pos] == '-') {
			sign = string(l.input[l.pos])
			l.pos++
		}
		exp, ok := l.readDigits(10)
		if !ok || exp == "" {
			return bad()
		}
		text += "e" + sign + exp
	}
	if r, _ := l.peekRune(); isIdentStart(r) || isDigit(byte(r)) && r < utf8.RuneSelf {
		return l.illegal(pos, "identifier starts immediately after numeric literal")
	}
	if strings.HasPrefix(text, ".") {
		text = "0" + text
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(text, "."), 64)
	if err != nil && !isRangeErr(err) {
		return bad()
	}
	return Token{Type: TokenNumber, Literal: l.input[start:l.pos], Number: f, Pos: pos}
}

func isRangeErr(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}

// readLegacyOctal handles 017 (octal) and 089 (decimal with a leading zero).
func (l *Lexer) readLegacyOctal(pos Position) Token {
	start := l.pos
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	digits := l.input[start:l.pos]
	base := 8
	if strings.ContainsAny(digits, "89") {
		base = 10
	}
	if r, _ := l.peekRune(); isIdentStart(r) || r == '.' && base == 8 {
		return l.illegal(pos, "invalid number literal")
	}
	n, _ := new(big.Int).SetString(digits, base)
	f, _ := new(big.Float).SetInt(n).Float64()
	return Token{Type: TokenNumber, Literal: digits, Number: f, Pos: pos}
}

// finishInteger completes a radix or BigInt literal whose digits have been
// read.
func (l *Lexer) finishInteger(pos Position, digits string, base int) Token {
	n, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return l.illegal(pos, "invalid number literal")
	}
	if l.pos < len(l.input) && l.input[l.pos] == 'n' {
		l.pos++
		if r, _ := l.peekRune(); isIdentPart(r) {
			return l.illegal(pos, "invalid BigInt literal")
		}
		return Token{Type: TokenBigInt, Literal: n.String(), Pos: pos}
	}
	if r, _ := l.peekRune(); isIdentPart(r) {
		return l.illegal(pos, "identifier starts immediately after numeric literal")
	}
	f, _ := new(big.Float).SetInt(n).Float64()
	return Token{Type: TokenNumber, Literal: digits, Number: f, Pos: pos}
}

// ---------------------------------------------------------------------------
// Strings and templates
// ---------------------------------------------------------------------------

// readUnicodeEscape reads the part after \u: XXXX or {X...}.
func (l *Lexer) readUnicodeEscape() (rune, bool) {
	if l.peekByte(0) == '{' {
		end := strings.IndexByte(l.input[l.pos:], '}')
		if end < 2 {
			return 0, false
		}
		n, err := strconv.ParseUint(l.input[l.pos+1:l.pos+end], 16, 32)
		if err != nil || n > unicode.MaxRune {
			return 0, false
		}
		l.pos += end + 1
		return rune(n), true
	}
	if l.pos+4 > len(l.input) {
		return 0, false
	}
	n, err := strconv.ParseUint(l.input[l.pos:l.pos+4], 16, 32)
	if err != nil {
		return 0, false
	}
	l.pos += 4
	return rune(n), true
}

// readEscape decodes one escape sequence after the backslash into sb.
// It reports a message on malformed input.
func (l *Lexer) readEscape(sb *strings.Builder) string {
	r := l.advance()
	switch r {
	case 'n':
		sb.WriteByte('\n')
	case 'r':
		sb.WriteByte('\r')
	case 't':
		sb.WriteByte('\t')
	case 'b':
		sb.WriteByte('\b')
	case 'f':
		sb.WriteByte('\f')
	case 'v':
		sb.WriteByte('\v')
	case '0', '1', '2', '3', '4', '5', '6', '7':
		n := int(r - '0')
		for i := 0; i < 2 && l.pos < len(l.input); i++ {
			c := l.input[l.pos]
			if c < '0' || c > '7' || n*8+int(c-'0') > 0377 {
				break
			}
			n = n*8 + int(c-'0')
			l.pos++
		}
		sb.WriteRune(rune(n))
	case 'x':
		if l.pos+2 > len(l.input) {
			return "invalid hexadecimal escape sequence"
		}
		n, err := strconv.ParseUint(l.input[l.pos:l.pos+2], 16, 8)
		if err != nil {
			return "invalid hexadecimal escape sequence"
		}
		l.pos += 2
		sb.WriteRune(rune(n))
	case 'u':
		cp, ok := l.readUnicodeEscape()
		if !ok {
			return "invalid Unicode escape sequence"
		}
		if cp >= 0xD800 && cp <= 0xDBFF && l.peekByte(0) == '\\' && l.peekByte(1) == 'u' {
			save := l.pos
			l.pos += 2
			if lo, ok := l.readUnicodeEscape(); ok && lo >= 0xDC00 && lo <= 0xDFFF {
				cp = (cp-0xD800)<<10 + (lo - 0xDC00) + 0x10000
			} else {
				l.pos = save
			}
		}
		sb.WriteRune(cp)
	case 0:
		return "unterminated string literal"
	default:
		if isLineTerminator(r) {
			break // line continuation
		}
		sb.WriteRune(r)
	}
	return ""
}

func (l *Lexer) readString(pos Position, quote byte) Token {
	l.pos++
	var sb strings.Builder
	for {
		if l.pos >= len(l.input) {
			return l.illegal(pos, "unterminated string literal")
		}
		r, size := l.peekRune()
		switch {
		case r == rune(quote):
			l.pos++
			return Token{Type: TokenString, Literal: sb.String(), Pos: pos}
		case r == '\\':
			l.pos++
			if msg := l.readEscape(&sb); msg != "" {
				return l.illegal(pos, msg)
			}
		case r == '\n' || r == '\r':
			return l.illegal(pos, "unterminated string literal")
		default:
			sb.WriteString(l.input[l.pos : l.pos+size])
			l.pos += size
		}
	}
}

func (l *Lexer) readTemplate(pos Position) Token {
	l.pos++
	tok := Token{Type: TokenTemplate, Pos: pos}
	var sb strings.Builder
	for {
		if l.pos >= len(l.input) {
			return l.illegal(pos, "unterminated template literal")
		}
		r, size := l.peekRune()
		switch {
		case r == '`':
			l.pos++
			tok.Parts = append(tok.Parts, sb.String())
			tok.Literal = l.input[pos.Offset:l.pos]
			return tok
		case r == '\\':
			l.pos++
			if msg := l.readEscape(&sb); msg != "" {
				return l.illegal(pos, msg)
			}
		case r == '$' && l.peekByte(1) == '{':
			tok.Parts = append(tok.Parts, sb.String())
			sb.Reset()
			l.pos += 2
			start := l.position()
			if !l.skipBalanced() {
				return l.illegal(pos, "unterminated template literal")
			}
			tok.Exprs = append(tok.Exprs, l.input[start.Offset:l.pos-1])
			tok.ExprStart = append(tok.ExprStart, start)
		case r == '\r':
			l.advance()
			sb.WriteByte('\n')
		default:
			l.advance()
			sb.WriteString(l.input[l.pos-size : l.pos])
		}
	}
}

// skipBalanced skips to just past the } closing a template substitution,
// stepping over nested braces, strings, templates and comments.
func (l *Lexer) skipBalanced() bool {
	depth := 1
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch {
		case c == '{':
			depth++
			l.pos++
		case c == '}':
			depth--
			l.pos++
			if depth == 0 {
				return true
			}
		case c == '"' || c == '\'':
			if l.readString(l.position(), c).Type == TokenIllegal {
				return false
			}
		case c == '`':
			if l.readTemplate(l.position()).Type == TokenIllegal {
				return false
			}
		case c == '/' && (l.peekByte(1) == '/' || l.peekByte(1) == '*'):
			nl := l.newline
			if l.skipTrivia().Type == TokenIllegal {
				return false
			}
			l.newline = nl
		default:
			l.advance()
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Regular expressions
// ---------------------------------------------------------------------------

// RescanRegExp re-reads a / or /= token as a regular expression literal.
// The parser calls it when a slash appears where an expression may start.
func (l *Lexer) RescanRegExp(tok Token) Token {
	l.pos = tok.Pos.Offset + 1
	l.line = tok.Pos.Line
	l.lineStart = tok.Pos.Offset - (tok.Pos.Column - 1)
	pos := tok.Pos
	start := l.pos
	inClass := false
	for {
		if l.pos >= len(l.input) {
			return l.illegal(pos, "unterminated regular expression literal")
		}
		r, size := l.peekRune()
		if isLineTerminator(r) {
			return l.illegal(pos, "unterminated regular expression literal")
		}
		switch {
		case r == '\\':
			l.pos++
			if n, _ := l.peekRune(); n == 0 || isLineTerminator(n) {
				return l.illegal(pos, "unterminated regular expression literal")
			}
			_, size = l.peekRune()
		case r == '[':
			inClass = true
		case r == ']':
			inClass = false
		case r == '/' && !inClass:
			pattern := l.input[start:l.pos]
			l.pos++
			fstart := l.pos
			for l.pos < len(l.input) {
				c, n := l.peekRune()
				if !isIdentPart(c) {
					break
				}
				l.pos += n
			}
			return Token{
				Type:          TokenRegExp,
				Literal:       pattern,
				Flags:         l.input[fstart:l.pos],
				Pos:           pos,
				End:           l.position(),
				NewlineBefore: tok.NewlineBefore,
			}
		}
		l.pos += size
	}
}

// ---------------------------------------------------------------------------
// State snapshots for speculative parsing
// ---------------------------------------------------------------------------

type lexerState struct {
	pos, line, lineStart int
}

func (l *Lexer) save() lexerState { return lexerState{l.pos, l.line, l.lineStart} }

func (l *Lexer) restore(s lexerState) {
	l.pos, l.line, l.lineStart = s.pos, s.line, s.lineStart
}

// Tokenize returns every token of input up to and including EOF. Slashes
// are always read as division; it is meant for diagnostics and tests.
func Tokenize(input string, typeScript bool) []Token {
	l := NewLexer(input)
	l.typeScript = typeScript
	var toks []Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == TokenEOF || tok.Type == TokenIllegal {
			return toks
		}
	}
}
