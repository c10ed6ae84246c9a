package compiler

import (
	"testing"
)

func TestLexerPunctuators(t *testing.T) {
	input := `( ) [ ] { } ; , . ... ? ?. : => === !== == != <= >= >>>= >>> ** **= && || ?? ??= ++ --`
	expected := []struct {
		typ TokenType
		lit string
	}{
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenLBracket, "["},
		{TokenRBracket, "]"},
		{TokenLBrace, "{"},
		{TokenRBrace, "}"},
		{TokenSemicolon, ";"},
		{TokenComma, ","},
		{TokenDot, "."},
		{TokenEllipsis, "..."},
		{TokenQuestion, "?"},
		{TokenOptional, "?."},
		{TokenColon, ":"},
		{TokenArrow, "=>"},
		{TokenStrictEq, "==="},
		{TokenStrictNe, "!=="},
		{TokenEq, "=="},
		{TokenNotEq, "!="},
		{TokenLessEq, "<="},
		{TokenGreaterEq, ">="},
		{TokenUshrEq, ">>>="},
		{TokenUshr, ">>>"},
		{TokenStarStar, "**"},
		{TokenStarStarEq, "**="},
		{TokenAnd, "&&"},
		{TokenOr, "||"},
		{TokenNullish, "??"},
		{TokenNullishEq, "??="},
		{TokenIncrement, "++"},
		{TokenDecrement, "--"},
		{TokenEOF, ""},
	}

	l := NewLexer(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ {
			t.Errorf("token[%d] type = %v, want %v", i, tok.Type, exp.typ)
		}
		if tok.Literal != exp.lit {
			t.Errorf("token[%d] literal = %q, want %q", i, tok.Literal, exp.lit)
		}
	}
}

func TestLexerOptionalBeforeDigit(t *testing.T) {
	toks := Tokenize("a?.5:b", false)
	want := []TokenType{TokenIdentifier, TokenQuestion, TokenNumber, TokenColon, TokenIdentifier, TokenEOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
	}
	for i, typ := range want {
		if toks[i].Type != typ {
			t.Errorf("token[%d] = %v, want %v", i, toks[i].Type, typ)
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"42", 42},
		{"0", 0},
		{"3.25", 3.25},
		{".5", 0.5},
		{"1.5e3", 1500},
		{"2E-2", 0.02},
		{"0xFF", 255},
		{"0o17", 15},
		{"0b1010", 10},
		{"017", 15},
		{"089", 89},
		{"1_000_000", 1000000},
		{"1e400", 0}, // checked separately
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			tok := NewLexer(tc.input).NextToken()
			if tok.Type != TokenNumber {
				t.Fatalf("type = %v, want NUMBER (%s)", tok.Type, tok.Literal)
			}
			if tc.input == "1e400" {
				if tok.Number <= 1e308 {
					t.Errorf("1e400 = %v, want +Inf", tok.Number)
				}
				return
			}
			if tok.Number != tc.want {
				t.Errorf("value = %v, want %v", tok.Number, tc.want)
			}
		})
	}
}

func TestLexerBigInt(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"42n", "42"},
		{"0x10n", "16"},
		{"0b11n", "3"},
		{"123456789012345678901234567890n", "123456789012345678901234567890"},
	}
	for _, tc := range tests {
		tok := NewLexer(tc.input).NextToken()
		if tok.Type != TokenBigInt {
			t.Errorf("Lexer(%q): type = %v, want BIGINT", tc.input, tok.Type)
			continue
		}
		if tok.Literal != tc.want {
			t.Errorf("Lexer(%q): literal = %q, want %q", tc.input, tok.Literal, tc.want)
		}
	}
}

func TestLexerInvalidNumbers(t *testing.T) {
	for _, input := range []string{"1__0", "1_", "0x", "3in", "0b2", "1e", "1.5n"} {
		toks := Tokenize(input, false)
		found := false
		for _, tok := range toks {
			if tok.Type == TokenIllegal {
				found = true
			}
		}
		if !found {
			t.Errorf("Tokenize(%q) = %v, want an ILLEGAL token", input, toks)
		}
	}
}

func TestLexerStrings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"hello"`, "hello"},
		{`'single'`, "single"},
		{`"a\nb"`, "a\nb"},
		{`"tab\there"`, "tab\there"},
		{`"\x41"`, "A"},
		{`"\u0041"`, "A"},
		{`"\u{1F600}"`, "\U0001F600"},
		{`'it\'s'`, "it's"},
		{`"line\
continued"`, "linecontinued"},
		{`"\0"`, "\x00"},
	}

	for _, tc := range tests {
		tok := NewLexer(tc.input).NextToken()
		if tok.Type != TokenString {
			t.Errorf("Lexer(%s): type = %v, want STRING", tc.input, tok.Type)
			continue
		}
		if tok.Literal != tc.want {
			t.Errorf("Lexer(%s): literal = %q, want %q", tc.input, tok.Literal, tc.want)
		}
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	for _, input := range []string{`"abc`, "'abc\n'", "`abc"} {
		tok := NewLexer(input).NextToken()
		if tok.Type != TokenIllegal {
			t.Errorf("Lexer(%q): type = %v, want ILLEGAL", input, tok.Type)
		}
	}
}

func TestLexerTemplate(t *testing.T) {
	tok := NewLexer("`a${x + 1}b${ {y: 2}.y }c`").NextToken()
	if tok.Type != TokenTemplate {
		t.Fatalf("type = %v, want TEMPLATE", tok.Type)
	}
	wantParts := []string{"a", "b", "c"}
	if len(tok.Parts) != len(wantParts) {
		t.Fatalf("parts = %q, want %q", tok.Parts, wantParts)
	}
	for i, p := range wantParts {
		if tok.Parts[i] != p {
			t.Errorf("part[%d] = %q, want %q", i, tok.Parts[i], p)
		}
	}
	wantExprs := []string{"x + 1", " {y: 2}.y "}
	if len(tok.Exprs) != len(wantExprs) {
		t.Fatalf("exprs = %q, want %q", tok.Exprs, wantExprs)
	}
	for i, e := range wantExprs {
		if tok.Exprs[i] != e {
			t.Errorf("expr[%d] = %q, want %q", i, tok.Exprs[i], e)
		}
	}
}

func TestLexerNestedTemplate(t *testing.T) {
	tok := NewLexer("`outer ${`inner ${1}`} end`").NextToken()
	if tok.Type != TokenTemplate {
		t.Fatalf("type = %v, want TEMPLATE", tok.Type)
	}
	if len(tok.Exprs) != 1 || tok.Exprs[0] != "`inner ${1}`" {
		t.Errorf("exprs = %q", tok.Exprs)
	}
}

func TestLexerKeywords(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
	}{
		{"var", TokenVar},
		{"function", TokenFunction},
		{"return", TokenReturn},
		{"typeof", TokenTypeof},
		{"instanceof", TokenInstanceof},
		{"class", TokenClass},
		{"null", TokenNull},
		{"true", TokenTrue},
		{"let", TokenLet},
		{"of", TokenOf},
		{"foo", TokenIdentifier},
		{"$bar", TokenIdentifier},
		{"_baz9", TokenIdentifier},
	}
	for _, tc := range tests {
		tok := NewLexer(tc.input).NextToken()
		if tok.Type != tc.typ {
			t.Errorf("Lexer(%q): type = %v, want %v", tc.input, tok.Type, tc.typ)
		}
	}
}

func TestLexerTypeScriptKeywords(t *testing.T) {
	if tok := NewLexer("interface").NextToken(); tok.Type != TokenIdentifier {
		t.Errorf("JS lexer: interface = %v, want IDENTIFIER", tok.Type)
	}
	if tok := NewTypeScriptLexer("interface").NextToken(); tok.Type != TokenInterface {
		t.Errorf("TS lexer: interface = %v, want %v", tok.Type, TokenInterface)
	}
}

func TestLexerUnicodeEscapeIdentifier(t *testing.T) {
	tok := NewLexer(`\u0061bc`).NextToken()
	if tok.Type != TokenIdentifier || tok.Literal != "abc" {
		t.Errorf("got %v, want IDENTIFIER(abc)", tok)
	}
}

func TestLexerComments(t *testing.T) {
	toks := Tokenize("a // line\n/* block\n */ b /* same */ c", false)
	want := []struct {
		lit     string
		newline bool
	}{
		{"a", false},
		{"b", true},
		{"c", false},
	}
	for i, w := range want {
		if toks[i].Literal != w.lit {
			t.Errorf("token[%d] = %q, want %q", i, toks[i].Literal, w.lit)
		}
		if toks[i].NewlineBefore != w.newline {
			t.Errorf("token[%d] NewlineBefore = %v, want %v", i, toks[i].NewlineBefore, w.newline)
		}
	}
}

func TestLexerUnterminatedComment(t *testing.T) {
	tok := NewLexer("/* never closed").NextToken()
	if tok.Type != TokenIllegal {
		t.Errorf("type = %v, want ILLEGAL", tok.Type)
	}
}

func TestLexerRescanRegExp(t *testing.T) {
	l := NewLexer(`/a[/]b\/c/gi + 1`)
	slash := l.NextToken()
	if slash.Type != TokenSlash {
		t.Fatalf("first token = %v, want /", slash.Type)
	}
	re := l.RescanRegExp(slash)
	if re.Type != TokenRegExp {
		t.Fatalf("rescan type = %v, want REGEXP", re.Type)
	}
	if re.Literal != `a[/]b\/c` {
		t.Errorf("pattern = %q", re.Literal)
	}
	if re.Flags != "gi" {
		t.Errorf("flags = %q, want gi", re.Flags)
	}
	if next := l.NextToken(); next.Type != TokenPlus {
		t.Errorf("after regexp = %v, want +", next.Type)
	}
}

func TestLexerPositions(t *testing.T) {
	toks := Tokenize("a\n  bb", false)
	if toks[1].Pos.Line != 2 || toks[1].Pos.Column != 3 {
		t.Errorf("bb at %d:%d, want 2:3", toks[1].Pos.Line, toks[1].Pos.Column)
	}
	if toks[1].End.Column != 5 {
		t.Errorf("bb ends at column %d, want 5", toks[1].End.Column)
	}
}

func TestLexerPrivateName(t *testing.T) {
	tok := NewLexer("#secret").NextToken()
	if tok.Type != TokenPrivateName || tok.Literal != "secret" {
		t.Errorf("got %v, want PRIVATE_NAME(secret)", tok)
	}
}
