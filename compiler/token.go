package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the JavaScript/TypeScript lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenIllegal

	// Literals
	TokenIdentifier  // foo, $bar, _baz
	TokenPrivateName // #secret
	TokenNumber      // 42, 0xFF, 1.5e3
	TokenBigInt      // 42n
	TokenString      // 'a', "b"
	TokenTemplate    // `a${b}c`
	TokenRegExp      // /ab+c/gi, produced only by RescanRegExp

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenLBrace    // {
	TokenRBrace    // }
	TokenSemicolon // ;
	TokenComma     // ,
	TokenDot       // .
	TokenEllipsis  // ...
	TokenQuestion  // ?
	TokenOptional  // ?.
	TokenColon     // :
	TokenArrow     // =>
	TokenAt        // @

	// Operators
	TokenPlus       // +
	TokenMinus      // -
	TokenStar       // *
	TokenSlash      // /
	TokenPercent    // %
	TokenStarStar   // **
	TokenIncrement  // ++
	TokenDecrement  // --
	TokenLess       // <
	TokenGreater    // >
	TokenLessEq     // <=
	TokenGreaterEq  // >=
	TokenEq         // ==
	TokenNotEq      // !=
	TokenStrictEq   // ===
	TokenStrictNe   // !==
	TokenShl        // <<
	TokenShr        // >>
	TokenUshr       // >>>
	TokenAmp        // &
	TokenPipe       // |
	TokenCaret      // ^
	TokenBang       // !
	TokenTilde      // ~
	TokenAnd        // &&
	TokenOr         // ||
	TokenNullish    // ??
	TokenAssign     // =
	TokenPlusEq     // +=
	TokenMinusEq    // -=
	TokenStarEq     // *=
	TokenSlashEq    // /=
	TokenPercentEq  // %=
	TokenStarStarEq // **=
	TokenShlEq      // <<=
	TokenShrEq      // >>=
	TokenUshrEq     // >>>=
	TokenAmpEq      // &=
	TokenPipeEq     // |=
	TokenCaretEq    // ^=
	TokenAndEq      // &&=
	TokenOrEq       // ||=
	TokenNullishEq  // ??=

	// Reserved words
	keywordStart
	TokenBreak
	TokenCase
	TokenCatch
	TokenClass
	TokenConst
	TokenContinue
	TokenDebugger
	TokenDefault
	TokenDelete
	TokenDo
	TokenElse
	TokenEnum
	TokenExport
	TokenExtends
	TokenFalse
	TokenFinally
	TokenFor
	TokenFunction
	TokenIf
	TokenImport
	TokenIn
	TokenInstanceof
	TokenNew
	TokenNull
	TokenReturn
	TokenSuper
	TokenSwitch
	TokenThis
	TokenThrow
	TokenTrue
	TokenTry
	TokenTypeof
	TokenVar
	TokenVoid
	TokenWhile
	TokenWith

	// Contextual keywords. These are valid identifiers wherever the grammar
	// does not give them a meaning.
	contextualStart
	TokenLet
	TokenYield
	TokenAsync
	TokenAwait
	TokenStatic
	TokenOf
	TokenGet
	TokenSet

	// TypeScript contextual keywords, recognized only in TypeScript mode.
	TokenTypeAlias
	TokenInterface
	TokenDeclare
	TokenNamespace
	TokenModule
	TokenAbstract
	TokenImplements
	TokenPublic
	TokenPrivate
	TokenProtected
	TokenReadonly
	TokenAny
	TokenUnknown
	TokenNever
	TokenKeyof
	TokenInfer
	TokenIs
	TokenAsserts
	TokenSatisfies
	TokenOverride
	TokenAccessor
	TokenUnique
	TokenAs
	keywordEnd
)

var tokenNames = map[TokenType]string{
	TokenEOF:         "EOF",
	TokenIllegal:     "ILLEGAL",
	TokenIdentifier:  "IDENTIFIER",
	TokenPrivateName: "PRIVATE_NAME",
	TokenNumber:      "NUMBER",
	TokenBigInt:      "BIGINT",
	TokenString:      "STRING",
	TokenTemplate:    "TEMPLATE",
	TokenRegExp:      "REGEXP",
	TokenLParen:      "(",
	TokenRParen:      ")",
	TokenLBracket:    "[",
	TokenRBracket:    "]",
	TokenLBrace:      "{",
	TokenRBrace:      "}",
	TokenSemicolon:   ";",
	TokenComma:       ",",
	TokenDot:         ".",
	TokenEllipsis:    "...",
	TokenQuestion:    "?",
	TokenOptional:    "?.",
	TokenColon:       ":",
	TokenArrow:       "=>",
	TokenAt:          "@",
	TokenPlus:        "+",
	TokenMinus:       "-",
	TokenStar:        "*",
	TokenSlash:       "/",
	TokenPercent:     "%",
	TokenStarStar:    "**",
	TokenIncrement:   "++",
	TokenDecrement:   "--",
	TokenLess:        "<",
	TokenGreater:     ">",
	TokenLessEq:      "<=",
	TokenGreaterEq:   ">=",
	TokenEq:          "==",
	TokenNotEq:       "!=",
	TokenStrictEq:    "===",
	TokenStrictNe:    "!==",
	TokenShl:         "<<",
	TokenShr:         ">>",
	TokenUshr:        ">>>",
	TokenAmp:         "&",
	TokenPipe:        "|",
	TokenCaret:       "^",
	TokenBang:        "!",
	TokenTilde:       "~",
	TokenAnd:         "&&",
	TokenOr:          "||",
	TokenNullish:     "??",
	TokenAssign:      "=",
	TokenPlusEq:      "+=",
	TokenMinusEq:     "-=",
	TokenStarEq:      "*=",
	TokenSlashEq:     "/=",
	TokenPercentEq:   "%=",
	TokenStarStarEq:  "**=",
	TokenShlEq:       "<<=",
	TokenShrEq:       ">>=",
	TokenUshrEq:      ">>>=",
	TokenAmpEq:       "&=",
	TokenPipeEq:      "|=",
	TokenCaretEq:     "^=",
	TokenAndEq:       "&&=",
	TokenOrEq:        "||=",
	TokenNullishEq:   "??=",
}

// keywords holds the words recognized in both modes.
var keywords = map[string]TokenType{
	"break":      TokenBreak,
	"case":       TokenCase,
	"catch":      TokenCatch,
	"class":      TokenClass,
	"const":      TokenConst,
	"continue":   TokenContinue,
	"debugger":   TokenDebugger,
	"default":    TokenDefault,
	"delete":     TokenDelete,
	"do":         TokenDo,
	"else":       TokenElse,
	"enum":       TokenEnum,
	"export":     TokenExport,
	"extends":    TokenExtends,
	"false":      TokenFalse,
	"finally":    TokenFinally,
	"for":        TokenFor,
	"function":   TokenFunction,
	"if":         TokenIf,
	"import":     TokenImport,
	"in":         TokenIn,
	"instanceof": TokenInstanceof,
	"new":        TokenNew,
	"null":       TokenNull,
	"return":     TokenReturn,
	"super":      TokenSuper,
	"switch":     TokenSwitch,
	"this":       TokenThis,
	"throw":      TokenThrow,
	"true":       TokenTrue,
	"try":        TokenTry,
	"typeof":     TokenTypeof,
	"var":        TokenVar,
	"void":       TokenVoid,
	"while":      TokenWhile,
	"with":       TokenWith,
	"let":        TokenLet,
	"yield":      TokenYield,
	"async":      TokenAsync,
	"await":      TokenAwait,
	"static":     TokenStatic,
	"of":         TokenOf,
	"get":        TokenGet,
	"set":        TokenSet,
}

// typeScriptKeywords extends keywords in TypeScript mode.
var typeScriptKeywords = map[string]TokenType{
	"type":       TokenTypeAlias,
	"interface":  TokenInterface,
	"declare":    TokenDeclare,
	"namespace":  TokenNamespace,
	"module":     TokenModule,
	"abstract":   TokenAbstract,
	"implements": TokenImplements,
	"public":     TokenPublic,
	"private":    TokenPrivate,
	"protected":  TokenProtected,
	"readonly":   TokenReadonly,
	"any":        TokenAny,
	"unknown":    TokenUnknown,
	"never":      TokenNever,
	"keyof":      TokenKeyof,
	"infer":      TokenInfer,
	"is":         TokenIs,
	"asserts":    TokenAsserts,
	"satisfies":  TokenSatisfies,
	"override":   TokenOverride,
	"accessor":   TokenAccessor,
	"unique":     TokenUnique,
	"as":         TokenAs,
}

func init() {
	for word, t := range keywords {
		tokenNames[t] = word
	}
	for word, t := range typeScriptKeywords {
		tokenNames[t] = word
	}
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// IsKeyword reports whether t is a reserved or contextual word.
func (t TokenType) IsKeyword() bool {
	return t > keywordStart && t < keywordEnd
}

// IsContextual reports whether t is a keyword that may also be used as an
// identifier.
func (t TokenType) IsContextual() bool {
	return t > contextualStart && t < keywordEnd
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string // identifier name, cooked string, pattern, or raw text

	Number float64 // value of a Number token
	Flags  string  // flags of a RegExp token

	// Parts and Exprs describe a Template token: the cooked text between
	// substitutions and the raw source of each ${...} expression.
	// len(Parts) == len(Exprs)+1.
	Parts     []string
	Exprs     []string
	ExprStart []Position

	Pos Position // start position
	End Position // position just past the token

	// NewlineBefore is set when a line terminator separates this token from
	// the previous one. It drives automatic semicolon insertion.
	NewlineBefore bool
}

// Span returns the source range of the token.
func (t Token) Span() Span { return Span{Start: t.Pos, End: t.End} }

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenIllegal:
		return fmt.Sprintf("ILLEGAL(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}
