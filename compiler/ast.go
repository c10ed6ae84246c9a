package compiler

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for JavaScript (after TypeScript erasure)
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// Program is the root of a parsed source file.
type Program struct {
	SpanVal Span
	Body    []Stmt
	Source  string
}

func (n *Program) Span() Span { return n.SpanVal }
func (n *Program) node()      {}

// ---------------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------------

// NumberLiteral represents a numeric literal.
type NumberLiteral struct {
	SpanVal Span
	Value   float64
}

func (n *NumberLiteral) Span() Span { return n.SpanVal }
func (n *NumberLiteral) node()      {}
func (n *NumberLiteral) expr()      {}

// BigIntLiteral holds the decimal digits of a BigInt literal.
type BigIntLiteral struct {
	SpanVal Span
	Digits  string
}

func (n *BigIntLiteral) Span() Span { return n.SpanVal }
func (n *BigIntLiteral) node()      {}
func (n *BigIntLiteral) expr()      {}

// StringLiteral represents a string literal (already unescaped).
type StringLiteral struct {
	SpanVal Span
	Value   string
}

func (n *StringLiteral) Span() Span { return n.SpanVal }
func (n *StringLiteral) node()      {}
func (n *StringLiteral) expr()      {}

// TemplateLiteral is `q0${e0}q1...`. len(Quasis) == len(Exprs)+1.
type TemplateLiteral struct {
	SpanVal Span
	Quasis  []string
	Exprs   []Expr
}

func (n *TemplateLiteral) Span() Span { return n.SpanVal }
func (n *TemplateLiteral) node()      {}
func (n *TemplateLiteral) expr()      {}

// RegExpLiteral represents /pattern/flags.
type RegExpLiteral struct {
	SpanVal Span
	Pattern string
	Flags   string
}

func (n *RegExpLiteral) Span() Span { return n.SpanVal }
func (n *RegExpLiteral) node()      {}
func (n *RegExpLiteral) expr()      {}

// BooleanLiteral represents true or false.
type BooleanLiteral struct {
	SpanVal Span
	Value   bool
}

func (n *BooleanLiteral) Span() Span { return n.SpanVal }
func (n *BooleanLiteral) node()      {}
func (n *BooleanLiteral) expr()      {}

// NullLiteral represents null.
type NullLiteral struct {
	SpanVal Span
}

func (n *NullLiteral) Span() Span { return n.SpanVal }
func (n *NullLiteral) node()      {}
func (n *NullLiteral) expr()      {}

// ---------------------------------------------------------------------------
// Primary expressions
// ---------------------------------------------------------------------------

// Identifier is a variable reference.
type Identifier struct {
	SpanVal Span
	Name    string
}

func (n *Identifier) Span() Span { return n.SpanVal }
func (n *Identifier) node()      {}
func (n *Identifier) expr()      {}

// ThisExpr is the this keyword.
type ThisExpr struct {
	SpanVal Span
}

func (n *ThisExpr) Span() Span { return n.SpanVal }
func (n *ThisExpr) node()      {}
func (n *ThisExpr) expr()      {}

// SuperExpr is super, valid only as a callee or member object.
type SuperExpr struct {
	SpanVal Span
}

func (n *SuperExpr) Span() Span { return n.SpanVal }
func (n *SuperExpr) node()      {}
func (n *SuperExpr) expr()      {}

// ArrayLiteral is [a, , ...b]. A nil element is a hole.
type ArrayLiteral struct {
	SpanVal  Span
	Elements []Expr
}

func (n *ArrayLiteral) Span() Span { return n.SpanVal }
func (n *ArrayLiteral) node()      {}
func (n *ArrayLiteral) expr()      {}

// SpreadElement is ...expr in an array literal or argument list.
type SpreadElement struct {
	SpanVal  Span
	Argument Expr
}

func (n *SpreadElement) Span() Span { return n.SpanVal }
func (n *SpreadElement) node()      {}
func (n *SpreadElement) expr()      {}

// PropertyKind distinguishes object literal members.
type PropertyKind int

const (
	PropertyInit PropertyKind = iota
	PropertyMethod
	PropertyGetter
	PropertySetter
)

// Property is one member of an object literal. Computed is set for
// [expr]: value; otherwise Key holds the static name.
type Property struct {
	SpanVal  Span
	Kind     PropertyKind
	Key      string
	Computed Expr
	Value    Expr
}

// ObjectLiteral is {a: 1, b, [c]: 2, m() {}}.
type ObjectLiteral struct {
	SpanVal    Span
	Properties []*Property
}

func (n *ObjectLiteral) Span() Span { return n.SpanVal }
func (n *ObjectLiteral) node()      {}
func (n *ObjectLiteral) expr()      {}

// ---------------------------------------------------------------------------
// Functions and classes
// ---------------------------------------------------------------------------

// FunctionKind distinguishes how a function binds this.
type FunctionKind int

const (
	FunctionNormal FunctionKind = iota
	FunctionArrow
	FunctionMethod
	FunctionConstructor
)

// Param is one formal parameter.
type Param struct {
	SpanVal Span
	Name    string
	Default Expr
	Rest    bool
}

// Function is the shared shape of function declarations, expressions,
// arrows and methods.
type Function struct {
	SpanVal  Span
	Name     string
	Kind     FunctionKind
	Params   []*Param
	Body     []Stmt
	ExprBody Expr // arrow with an expression body
	Source   string

	// ParamProperties lists constructor parameters declared with an
	// accessibility modifier; each is assigned to this on entry.
	ParamProperties []string

	// Class links a method or constructor to its class, for field
	// initializers and super references.
	Class *Class
	// Static marks a static method or the static field initializer.
	Static bool
}

func (n *Function) Span() Span { return n.SpanVal }
func (n *Function) node()      {}

// FunctionExpr is a function or arrow function used as a value.
type FunctionExpr struct {
	SpanVal Span
	Func    *Function
}

func (n *FunctionExpr) Span() Span { return n.SpanVal }
func (n *FunctionExpr) node()      {}
func (n *FunctionExpr) expr()      {}

// MemberKind distinguishes class members.
type MemberKind int

const (
	MemberMethod MemberKind = iota
	MemberGetter
	MemberSetter
)

// ClassMember is a method of a class body.
type ClassMember struct {
	SpanVal  Span
	Kind     MemberKind
	Static   bool
	Key      string
	Computed Expr
	Func     *Function
}

// Class is the shared shape of class declarations and expressions.
type Class struct {
	SpanVal     Span
	Name        string
	SuperClass  Expr
	Constructor *Function // nil for an implicit constructor
	Members     []*ClassMember

	// Fields assigns the instance fields; it runs with the new instance
	// as this, before a base constructor body or after super() returns.
	// StaticFields runs once with the class as this. Either may be nil.
	Fields       *Function
	StaticFields *Function
}

func (n *Class) Span() Span { return n.SpanVal }
func (n *Class) node()      {}

// ClassExpr is a class used as a value.
type ClassExpr struct {
	SpanVal Span
	Class   *Class
}

func (n *ClassExpr) Span() Span { return n.SpanVal }
func (n *ClassExpr) node()      {}
func (n *ClassExpr) expr()      {}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// UnaryExpr is a prefix operator: delete void typeof + - ~ !.
type UnaryExpr struct {
	SpanVal Span
	Op      TokenType
	Operand Expr
}

func (n *UnaryExpr) Span() Span { return n.SpanVal }
func (n *UnaryExpr) node()      {}
func (n *UnaryExpr) expr()      {}

// UpdateExpr is ++x, --x, x++ or x--.
type UpdateExpr struct {
	SpanVal Span
	Op      TokenType // TokenIncrement or TokenDecrement
	Prefix  bool
	Target  Expr
}

func (n *UpdateExpr) Span() Span { return n.SpanVal }
func (n *UpdateExpr) node()      {}
func (n *UpdateExpr) expr()      {}

// BinaryExpr is an arithmetic, comparison, bitwise, in or instanceof
// operation.
type BinaryExpr struct {
	SpanVal Span
	Op      TokenType
	Left    Expr
	Right   Expr
}

func (n *BinaryExpr) Span() Span { return n.SpanVal }
func (n *BinaryExpr) node()      {}
func (n *BinaryExpr) expr()      {}

// LogicalExpr is a short-circuiting &&, || or ??.
type LogicalExpr struct {
	SpanVal Span
	Op      TokenType
	Left    Expr
	Right   Expr
}

func (n *LogicalExpr) Span() Span { return n.SpanVal }
func (n *LogicalExpr) node()      {}
func (n *LogicalExpr) expr()      {}

// ConditionalExpr is test ? consequent : alternate.
type ConditionalExpr struct {
	SpanVal    Span
	Test       Expr
	Consequent Expr
	Alternate  Expr
}

func (n *ConditionalExpr) Span() Span { return n.SpanVal }
func (n *ConditionalExpr) node()      {}
func (n *ConditionalExpr) expr()      {}

// AssignExpr is target op= value. Op is TokenAssign for plain assignment.
type AssignExpr struct {
	SpanVal Span
	Op      TokenType
	Target  Expr
	Value   Expr
}

func (n *AssignExpr) Span() Span { return n.SpanVal }
func (n *AssignExpr) node()      {}
func (n *AssignExpr) expr()      {}

// SequenceExpr is a, b, c.
type SequenceExpr struct {
	SpanVal Span
	Exprs   []Expr
}

func (n *SequenceExpr) Span() Span { return n.SpanVal }
func (n *SequenceExpr) node()      {}
func (n *SequenceExpr) expr()      {}

// ---------------------------------------------------------------------------
// Calls and member access
// ---------------------------------------------------------------------------

// CallExpr is callee(args). Optional is set for callee?.(args).
type CallExpr struct {
	SpanVal  Span
	Callee   Expr
	Args     []Expr
	Optional bool
}

func (n *CallExpr) Span() Span { return n.SpanVal }
func (n *CallExpr) node()      {}
func (n *CallExpr) expr()      {}

// NewExpr is new callee(args).
type NewExpr struct {
	SpanVal Span
	Callee  Expr
	Args    []Expr
}

func (n *NewExpr) Span() Span { return n.SpanVal }
func (n *NewExpr) node()      {}
func (n *NewExpr) expr()      {}

// MemberExpr is object.name or object[computed]. Optional is set for ?..
type MemberExpr struct {
	SpanVal  Span
	Object   Expr
	Name     string
	Computed Expr
	Optional bool
}

func (n *MemberExpr) Span() Span { return n.SpanVal }
func (n *MemberExpr) node()      {}
func (n *MemberExpr) expr()      {}

// OptionalChain wraps the outermost node of a chain containing ?. so a
// nullish short circuit skips the whole chain.
type OptionalChain struct {
	SpanVal Span
	Expr    Expr
}

func (n *OptionalChain) Span() Span { return n.SpanVal }
func (n *OptionalChain) node()      {}
func (n *OptionalChain) expr()      {}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// DeclKind is the keyword of a variable declaration.
type DeclKind int

const (
	DeclVar DeclKind = iota
	DeclLet
	DeclConst
)

func (k DeclKind) String() string {
	switch k {
	case DeclLet:
		return "let"
	case DeclConst:
		return "const"
	}
	return "var"
}

// Declarator is one name = init pair.
type Declarator struct {
	SpanVal Span
	Name    string
	Init    Expr
}

// VarDecl is var/let/const with one or more declarators.
type VarDecl struct {
	SpanVal Span
	Kind    DeclKind
	Decls   []*Declarator
}

func (n *VarDecl) Span() Span { return n.SpanVal }
func (n *VarDecl) node()      {}
func (n *VarDecl) stmt()      {}

// FunctionDecl is a hoisted function declaration.
type FunctionDecl struct {
	SpanVal Span
	Func    *Function
}

func (n *FunctionDecl) Span() Span { return n.SpanVal }
func (n *FunctionDecl) node()      {}
func (n *FunctionDecl) stmt()      {}

// ClassDecl is a class declaration.
type ClassDecl struct {
	SpanVal Span
	Class   *Class
}

func (n *ClassDecl) Span() Span { return n.SpanVal }
func (n *ClassDecl) node()      {}
func (n *ClassDecl) stmt()      {}

// ExprStmt is an expression evaluated for its effect.
type ExprStmt struct {
	SpanVal Span
	Expr    Expr
}

func (n *ExprStmt) Span() Span { return n.SpanVal }
func (n *ExprStmt) node()      {}
func (n *ExprStmt) stmt()      {}

// BlockStmt is { ... }.
type BlockStmt struct {
	SpanVal Span
	Body    []Stmt
}

func (n *BlockStmt) Span() Span { return n.SpanVal }
func (n *BlockStmt) node()      {}
func (n *BlockStmt) stmt()      {}

// EmptyStmt is a lone semicolon, or a TypeScript declaration that erases
// to nothing.
type EmptyStmt struct {
	SpanVal Span
}

func (n *EmptyStmt) Span() Span { return n.SpanVal }
func (n *EmptyStmt) node()      {}
func (n *EmptyStmt) stmt()      {}

// IfStmt is if (test) consequent else alternate.
type IfStmt struct {
	SpanVal    Span
	Test       Expr
	Consequent Stmt
	Alternate  Stmt
}

func (n *IfStmt) Span() Span { return n.SpanVal }
func (n *IfStmt) node()      {}
func (n *IfStmt) stmt()      {}

// WhileStmt is while (test) body.
type WhileStmt struct {
	SpanVal Span
	Test    Expr
	Body    Stmt
}

func (n *WhileStmt) Span() Span { return n.SpanVal }
func (n *WhileStmt) node()      {}
func (n *WhileStmt) stmt()      {}

// DoWhileStmt is do body while (test).
type DoWhileStmt struct {
	SpanVal Span
	Body    Stmt
	Test    Expr
}

func (n *DoWhileStmt) Span() Span { return n.SpanVal }
func (n *DoWhileStmt) node()      {}
func (n *DoWhileStmt) stmt()      {}

// ForStmt is for (init; test; update) body. Init is a *VarDecl, an
// *ExprStmt or nil.
type ForStmt struct {
	SpanVal Span
	Init    Stmt
	Test    Expr
	Update  Expr
	Body    Stmt
}

func (n *ForStmt) Span() Span { return n.SpanVal }
func (n *ForStmt) node()      {}
func (n *ForStmt) stmt()      {}

// ForInStmt is for (left in right) or, with Of set, for (left of right).
// Left is a *VarDecl with one declarator or an assignment target Expr.
type ForInStmt struct {
	SpanVal Span
	Decl    *VarDecl
	Target  Expr
	Right   Expr
	Body    Stmt
	Of      bool
}

func (n *ForInStmt) Span() Span { return n.SpanVal }
func (n *ForInStmt) node()      {}
func (n *ForInStmt) stmt()      {}

// SwitchCase is one case or default clause. Test is nil for default.
type SwitchCase struct {
	SpanVal Span
	Test    Expr
	Body    []Stmt
}

// SwitchStmt is switch (discriminant) { cases }.
type SwitchStmt struct {
	SpanVal      Span
	Discriminant Expr
	Cases        []*SwitchCase
}

func (n *SwitchStmt) Span() Span { return n.SpanVal }
func (n *SwitchStmt) node()      {}
func (n *SwitchStmt) stmt()      {}

// TryStmt is try/catch/finally. Handler or Finalizer may be nil, not both.
type TryStmt struct {
	SpanVal   Span
	Block     *BlockStmt
	Param     string // empty for catch without a binding
	Handler   *BlockStmt
	Finalizer *BlockStmt
}

func (n *TryStmt) Span() Span { return n.SpanVal }
func (n *TryStmt) node()      {}
func (n *TryStmt) stmt()      {}

// ThrowStmt is throw expr.
type ThrowStmt struct {
	SpanVal  Span
	Argument Expr
}

func (n *ThrowStmt) Span() Span { return n.SpanVal }
func (n *ThrowStmt) node()      {}
func (n *ThrowStmt) stmt()      {}

// ReturnStmt is return [expr].
type ReturnStmt struct {
	SpanVal  Span
	Argument Expr
}

func (n *ReturnStmt) Span() Span { return n.SpanVal }
func (n *ReturnStmt) node()      {}
func (n *ReturnStmt) stmt()      {}

// BreakStmt is break [label].
type BreakStmt struct {
	SpanVal Span
	Label   string
}

func (n *BreakStmt) Span() Span { return n.SpanVal }
func (n *BreakStmt) node()      {}
func (n *BreakStmt) stmt()      {}

// ContinueStmt is continue [label].
type ContinueStmt struct {
	SpanVal Span
	Label   string
}

func (n *ContinueStmt) Span() Span { return n.SpanVal }
func (n *ContinueStmt) node()      {}
func (n *ContinueStmt) stmt()      {}

// LabeledStmt is label: body.
type LabeledStmt struct {
	SpanVal Span
	Label   string
	Body    Stmt
}

func (n *LabeledStmt) Span() Span { return n.SpanVal }
func (n *LabeledStmt) node()      {}
func (n *LabeledStmt) stmt()      {}

// WithStmt is with (object) body.
type WithStmt struct {
	SpanVal Span
	Object  Expr
	Body    Stmt
}

func (n *WithStmt) Span() Span { return n.SpanVal }
func (n *WithStmt) node()      {}
func (n *WithStmt) stmt()      {}

// DebuggerStmt is the debugger statement; it compiles to nothing.
type DebuggerStmt struct {
	SpanVal Span
}

func (n *DebuggerStmt) Span() Span { return n.SpanVal }
func (n *DebuggerStmt) node()      {}
func (n *DebuggerStmt) stmt()      {}
