package compiler

import (
	"fmt"
	"strings"
	"testing"
)

func parseProgram(t *testing.T, src string) *Program {
	t.Helper()
	p := NewParser(src)
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parse %q: %v", src, errs)
	}
	return prog
}

func parseExpr(t *testing.T, src string) Expr {
	t.Helper()
	p := NewParser(src)
	e := p.ParseExpression()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parse %q: %v", src, errs)
	}
	return e
}

func firstExpr(t *testing.T, prog *Program) Expr {
	t.Helper()
	if len(prog.Body) == 0 {
		t.Fatal("empty program")
	}
	es, ok := prog.Body[0].(*ExprStmt)
	if !ok {
		t.Fatalf("statement is %T, want *ExprStmt", prog.Body[0])
	}
	return es.Expr
}

func TestParseVarDecl(t *testing.T) {
	prog := parseProgram(t, "var x = 1, y; let z = 'a'; const w = true;")
	if len(prog.Body) != 3 {
		t.Fatalf("got %d statements, want 3", len(prog.Body))
	}
	kinds := []DeclKind{DeclVar, DeclLet, DeclConst}
	for i, k := range kinds {
		d, ok := prog.Body[i].(*VarDecl)
		if !ok {
			t.Fatalf("stmt %d is %T, want *VarDecl", i, prog.Body[i])
		}
		if d.Kind != k {
			t.Errorf("stmt %d kind = %v, want %v", i, d.Kind, k)
		}
	}
	first := prog.Body[0].(*VarDecl)
	if len(first.Decls) != 2 || first.Decls[0].Name != "x" || first.Decls[1].Init != nil {
		t.Errorf("var decl = %+v", first.Decls)
	}
}

func TestParsePrecedence(t *testing.T) {
	e := parseExpr(t, "1 + 2 * 3")
	add, ok := e.(*BinaryExpr)
	if !ok || add.Op != TokenPlus {
		t.Fatalf("root = %T %v, want +", e, e)
	}
	mul, ok := add.Right.(*BinaryExpr)
	if !ok || mul.Op != TokenStar {
		t.Fatalf("right = %T, want *", add.Right)
	}
}

func TestParseExponentRightAssociative(t *testing.T) {
	e := parseExpr(t, "2 ** 3 ** 2")
	pow := e.(*BinaryExpr)
	if _, ok := pow.Right.(*BinaryExpr); !ok {
		t.Errorf("2 ** 3 ** 2 should group to the right, got right = %T", pow.Right)
	}
	if _, ok := pow.Left.(*NumberLiteral); !ok {
		t.Errorf("left = %T, want *NumberLiteral", pow.Left)
	}
}

func TestParseLogicalAndConditional(t *testing.T) {
	e := parseExpr(t, "a || b && c ? d : e")
	cond, ok := e.(*ConditionalExpr)
	if !ok {
		t.Fatalf("root = %T, want *ConditionalExpr", e)
	}
	or, ok := cond.Test.(*LogicalExpr)
	if !ok || or.Op != TokenOr {
		t.Fatalf("test = %T, want ||", cond.Test)
	}
	if and, ok := or.Right.(*LogicalExpr); !ok || and.Op != TokenAnd {
		t.Errorf("|| right = %T, want &&", or.Right)
	}
}

func TestParseAssignmentRightAssociative(t *testing.T) {
	e := parseExpr(t, "a = b += 1")
	outer := e.(*AssignExpr)
	inner, ok := outer.Value.(*AssignExpr)
	if !ok || inner.Op != TokenPlusEq {
		t.Errorf("value = %T, want += assignment", outer.Value)
	}
}

func TestParseMemberAndCall(t *testing.T) {
	e := parseExpr(t, "a.b[c](1, ...d)")
	call, ok := e.(*CallExpr)
	if !ok {
		t.Fatalf("root = %T, want *CallExpr", e)
	}
	if len(call.Args) != 2 {
		t.Fatalf("args = %d, want 2", len(call.Args))
	}
	if _, ok := call.Args[1].(*SpreadElement); !ok {
		t.Errorf("arg 1 = %T, want *SpreadElement", call.Args[1])
	}
	idx, ok := call.Callee.(*MemberExpr)
	if !ok || idx.Computed == nil {
		t.Fatalf("callee = %T, want computed member", call.Callee)
	}
	dot, ok := idx.Object.(*MemberExpr)
	if !ok || dot.Name != "b" {
		t.Errorf("object = %T, want .b", idx.Object)
	}
}

func TestParseOptionalChain(t *testing.T) {
	e := parseExpr(t, "a?.b.c")
	chain, ok := e.(*OptionalChain)
	if !ok {
		t.Fatalf("root = %T, want *OptionalChain", e)
	}
	outer := chain.Expr.(*MemberExpr)
	if outer.Name != "c" || outer.Optional {
		t.Errorf("outer = %+v", outer)
	}
	inner := outer.Object.(*MemberExpr)
	if inner.Name != "b" || !inner.Optional {
		t.Errorf("inner = %+v", inner)
	}
}

func TestParseNew(t *testing.T) {
	e := parseExpr(t, "new Foo.Bar(1)")
	n, ok := e.(*NewExpr)
	if !ok {
		t.Fatalf("root = %T, want *NewExpr", e)
	}
	if _, ok := n.Callee.(*MemberExpr); !ok {
		t.Errorf("callee = %T, want member", n.Callee)
	}
	if len(n.Args) != 1 {
		t.Errorf("args = %d, want 1", len(n.Args))
	}

	bare := parseExpr(t, "new Foo")
	if n, ok := bare.(*NewExpr); !ok || len(n.Args) != 0 {
		t.Errorf("new Foo = %#v", bare)
	}
}

func TestParseArrowFunctions(t *testing.T) {
	tests := []struct {
		src      string
		params   int
		exprBody bool
	}{
		{"x => x * 2", 1, true},
		{"(a, b) => a + b", 2, true},
		{"() => { return 1 }", 0, false},
		{"(a, ...rest) => rest", 2, true},
		{"(a = 1) => a", 1, true},
	}
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			e := parseExpr(t, tc.src)
			fe, ok := e.(*FunctionExpr)
			if !ok {
				t.Fatalf("root = %T, want *FunctionExpr", e)
			}
			if fe.Func.Kind != FunctionArrow {
				t.Errorf("kind = %v, want arrow", fe.Func.Kind)
			}
			if len(fe.Func.Params) != tc.params {
				t.Errorf("params = %d, want %d", len(fe.Func.Params), tc.params)
			}
			if (fe.Func.ExprBody != nil) != tc.exprBody {
				t.Errorf("expression body = %v, want %v", fe.Func.ExprBody != nil, tc.exprBody)
			}
		})
	}
}

func TestParseParenthesizedIsNotArrow(t *testing.T) {
	e := parseExpr(t, "(a, b)")
	if _, ok := e.(*SequenceExpr); !ok {
		t.Errorf("(a, b) = %T, want *SequenceExpr", e)
	}
}

func TestParseObjectLiteral(t *testing.T) {
	e := parseExpr(t, "({a: 1, b, [c]: 2, m() { return 3 }, get g() { return 4 }, 'q': 5, 7: 6})")
	obj, ok := e.(*ObjectLiteral)
	if !ok {
		t.Fatalf("root = %T, want *ObjectLiteral", e)
	}
	want := []struct {
		key  string
		kind PropertyKind
	}{
		{"a", PropertyInit},
		{"b", PropertyInit},
		{"", PropertyInit},
		{"m", PropertyMethod},
		{"g", PropertyGetter},
		{"q", PropertyInit},
		{"7", PropertyInit},
	}
	if len(obj.Properties) != len(want) {
		t.Fatalf("properties = %d, want %d", len(obj.Properties), len(want))
	}
	for i, w := range want {
		p := obj.Properties[i]
		if p.Key != w.key || p.Kind != w.kind {
			t.Errorf("property %d = {%q %v}, want {%q %v}", i, p.Key, p.Kind, w.key, w.kind)
		}
	}
	if obj.Properties[2].Computed == nil {
		t.Error("property 2 should be computed")
	}
}

func TestParseFunctionDeclaration(t *testing.T) {
	prog := parseProgram(t, "function add(a, b = 2, ...rest) { return a + b }")
	fd, ok := prog.Body[0].(*FunctionDecl)
	if !ok {
		t.Fatalf("stmt = %T, want *FunctionDecl", prog.Body[0])
	}
	fn := fd.Func
	if fn.Name != "add" || len(fn.Params) != 3 {
		t.Fatalf("function = %s with %d params", fn.Name, len(fn.Params))
	}
	if fn.Params[1].Default == nil {
		t.Error("b should have a default")
	}
	if !fn.Params[2].Rest {
		t.Error("rest should be a rest parameter")
	}
	if !strings.HasPrefix(fn.Source, "function add") {
		t.Errorf("source = %q", fn.Source)
	}
}

func TestParseClass(t *testing.T) {
	prog := parseProgram(t, `
class Dog extends Animal {
  name = "rex";
  static count = 0;
  constructor(n) { super(n) }
  bark() { return "woof" }
  static create() { return new Dog() }
  get label() { return this.name }
}`)
	cd, ok := prog.Body[0].(*ClassDecl)
	if !ok {
		t.Fatalf("stmt = %T, want *ClassDecl", prog.Body[0])
	}
	cls := cd.Class
	if cls.Name != "Dog" || cls.SuperClass == nil {
		t.Errorf("class %q extends %v", cls.Name, cls.SuperClass)
	}
	if cls.Constructor == nil || cls.Constructor.Kind != FunctionConstructor {
		t.Fatal("missing constructor")
	}
	if len(cls.Members) != 3 {
		t.Fatalf("members = %d, want 3", len(cls.Members))
	}
	if !cls.Members[1].Static {
		t.Error("create should be static")
	}
	if cls.Members[2].Kind != MemberGetter || cls.Members[2].Func.Name != "get label" {
		t.Errorf("getter = %v %q", cls.Members[2].Kind, cls.Members[2].Func.Name)
	}
	if cls.Fields == nil || len(cls.Fields.Body) != 1 {
		t.Error("want one instance field initializer")
	}
	if cls.StaticFields == nil || len(cls.StaticFields.Body) != 1 {
		t.Error("want one static field initializer")
	}
}

func TestParseStatements(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"if (a) b; else c;", "*compiler.IfStmt"},
		{"while (a) {}", "*compiler.WhileStmt"},
		{"do x++; while (x < 3)", "*compiler.DoWhileStmt"},
		{"for (var i = 0; i < 3; i++) {}", "*compiler.ForStmt"},
		{"for (;;) break;", "*compiler.ForStmt"},
		{"for (var k in o) {}", "*compiler.ForInStmt"},
		{"for (const v of arr) {}", "*compiler.ForInStmt"},
		{"switch (x) { case 1: break; default: }", "*compiler.SwitchStmt"},
		{"try { a() } catch (e) {} finally {}", "*compiler.TryStmt"},
		{"try { a() } catch {}", "*compiler.TryStmt"},
		{"throw new Error('x')", "*compiler.ThrowStmt"},
		{"outer: for (;;) { continue outer }", "*compiler.LabeledStmt"},
		{"with (o) { x }", "*compiler.WithStmt"},
		{";", "*compiler.EmptyStmt"},
		{"debugger;", "*compiler.DebuggerStmt"},
		{"{ let x = 1 }", "*compiler.BlockStmt"},
	}
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			prog := parseProgram(t, tc.src)
			if len(prog.Body) != 1 {
				t.Fatalf("got %d statements, want 1", len(prog.Body))
			}
			if got := typeName(prog.Body[0]); got != tc.want {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestParseForOfFlag(t *testing.T) {
	prog := parseProgram(t, "for (let v of xs) ; for (k in o) ;")
	of := prog.Body[0].(*ForInStmt)
	if !of.Of || of.Decl == nil || of.Decl.Kind != DeclLet {
		t.Errorf("for-of = %+v", of)
	}
	in := prog.Body[1].(*ForInStmt)
	if in.Of || in.Decl != nil || in.Target == nil {
		t.Errorf("for-in = %+v", in)
	}
}

func TestParseASI(t *testing.T) {
	prog := parseProgram(t, "function f() {\n  return\n  42\n}")
	fn := prog.Body[0].(*FunctionDecl).Func
	if len(fn.Body) != 2 {
		t.Fatalf("body = %d statements, want 2", len(fn.Body))
	}
	if ret := fn.Body[0].(*ReturnStmt); ret.Argument != nil {
		t.Error("return followed by a newline should have no argument")
	}

	prog = parseProgram(t, "a = b\n++c")
	if len(prog.Body) != 2 {
		t.Fatalf("got %d statements, want 2", len(prog.Body))
	}
	if u, ok := prog.Body[1].(*ExprStmt).Expr.(*UpdateExpr); !ok || !u.Prefix {
		t.Error("++c should be a prefix update on the next line")
	}
}

func TestParseRegExpVersusDivision(t *testing.T) {
	e := parseExpr(t, "a / b / c")
	if _, ok := e.(*BinaryExpr); !ok {
		t.Errorf("a / b / c = %T, want division", e)
	}
	re := parseExpr(t, "/ab+c/gi")
	lit, ok := re.(*RegExpLiteral)
	if !ok {
		t.Fatalf("root = %T, want *RegExpLiteral", re)
	}
	if lit.Pattern != "ab+c" || lit.Flags != "gi" {
		t.Errorf("regexp = /%s/%s", lit.Pattern, lit.Flags)
	}
	call := parseExpr(t, "s.replace(/x/g, 'y')").(*CallExpr)
	if _, ok := call.Args[0].(*RegExpLiteral); !ok {
		t.Errorf("arg 0 = %T, want regexp", call.Args[0])
	}
}

func TestParseTemplateLiteral(t *testing.T) {
	e := parseExpr(t, "`sum: ${a + b}!`")
	tl, ok := e.(*TemplateLiteral)
	if !ok {
		t.Fatalf("root = %T, want *TemplateLiteral", e)
	}
	if len(tl.Quasis) != 2 || tl.Quasis[0] != "sum: " || tl.Quasis[1] != "!" {
		t.Errorf("quasis = %q", tl.Quasis)
	}
	if len(tl.Exprs) != 1 {
		t.Fatalf("exprs = %d, want 1", len(tl.Exprs))
	}
	if _, ok := tl.Exprs[0].(*BinaryExpr); !ok {
		t.Errorf("expr = %T, want *BinaryExpr", tl.Exprs[0])
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"var = 1", "unexpected"},
		{"1 = 2", "invalid left-hand side in assignment"},
		{"++1", "invalid left-hand side expression in prefix operation"},
		{"return 1", "illegal return statement"},
		{"const x;", "missing initializer in const declaration"},
		{"function* g() {}", "generator functions are not supported"},
		{"async function f() {}", "async functions are not supported"},
		{"var {a} = o", "destructuring patterns are not supported"},
		{"-2 ** 2", "unary operator used immediately before exponentiation expression"},
		{"if (a) let x = 1", "lexical declaration cannot appear in a single-statement context"},
		{"try {}", "missing catch or finally after try"},
		{"throw\n1", "illegal newline after throw"},
		{"switch (x) { default: default: }", "more than one default clause in switch statement"},
		{"import x from 'y'", "import declarations require a module loader"},
		{"function f(...a, b) {}", "rest parameter must be last formal parameter"},
		{"class A { constructor() {} constructor() {} }", "a class may only have one constructor"},
		{"x = `unterminated", "unterminated template literal"},
		{"/re/q", "invalid regular expression flags 'q'"},
		{"a.b(", "unexpected end of input"},
	}
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			_, err := ParseSource(tc.src, false)
			if err == nil {
				t.Fatalf("ParseSource(%q) succeeded, want error containing %q", tc.src, tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tc.want)
			}
			if !strings.HasPrefix(err.Error(), "SyntaxError: line ") {
				t.Errorf("error = %q, want a positioned SyntaxError", err.Error())
			}
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	p := NewParser("var a = 1;\nvar b = ;")
	p.ParseProgram()
	errs := p.Errors()
	if len(errs) != 1 {
		t.Fatalf("errors = %v, want exactly one", errs)
	}
	if !strings.HasPrefix(errs[0], "line 2:9:") {
		t.Errorf("error = %q, want line 2:9", errs[0])
	}
}

func TestParseSpans(t *testing.T) {
	prog := parseProgram(t, "let a = 1;\n  foo(a);")
	sp := prog.Body[1].Span()
	if sp.Start.Line != 2 || sp.Start.Column != 3 {
		t.Errorf("second statement starts at %d:%d, want 2:3", sp.Start.Line, sp.Start.Column)
	}
}

func typeName(v interface{}) string {
	return fmt.Sprintf("%T", v)
}
