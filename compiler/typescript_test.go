package compiler

import (
	"strings"
	"testing"
)

func parseTS(t *testing.T, src string) *Program {
	t.Helper()
	prog, err := ParseSource(src, true)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return prog
}

func TestTypeScriptErasedDeclarations(t *testing.T) {
	sources := []string{
		"interface Shape { area(): number; readonly name?: string }",
		"interface Box<T> extends Shape, Other<T> { value: T }",
		"type ID = string | number;",
		"type Fn<T> = (x: T) => T[];",
		"declare const VERSION: string;",
		"declare function ext(a: number): void;",
		"declare global { interface Window { x: number } }",
		"namespace NS { export const a = 1 }",
		"declare module 'pkg' { export function f(): void }",
	}
	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			prog := parseTS(t, src)
			for _, st := range prog.Body {
				if _, ok := st.(*EmptyStmt); !ok {
					t.Errorf("statement %T survived erasure", st)
				}
			}
		})
	}
}

func TestTypeScriptAnnotationsAreErased(t *testing.T) {
	prog := parseTS(t, "function add<T extends number>(a: T, b?: number): number { return a + (b ?? 0) }")
	fn := prog.Body[0].(*FunctionDecl).Func
	if len(fn.Params) != 2 || fn.Params[0].Name != "a" || fn.Params[1].Name != "b" {
		t.Errorf("params = %+v", fn.Params)
	}
}

func TestTypeScriptKeywordsAsIdentifiers(t *testing.T) {
	// Contextual TypeScript keywords remain usable as ordinary names.
	prog := parseTS(t, "var type = 1; var declare = 2; var namespace = type + declare;")
	if len(prog.Body) != 3 {
		t.Fatalf("got %d statements, want 3", len(prog.Body))
	}
	for _, st := range prog.Body {
		if _, ok := st.(*VarDecl); !ok {
			t.Errorf("statement %T, want *VarDecl", st)
		}
	}
}

func TestTypeScriptParameterProperties(t *testing.T) {
	prog := parseTS(t, "class P { constructor(public x: number, private readonly y: number, z: number) {} }")
	ctor := prog.Body[0].(*ClassDecl).Class.Constructor
	if ctor == nil {
		t.Fatal("missing constructor")
	}
	if got := strings.Join(ctor.ParamProperties, ","); got != "x,y" {
		t.Errorf("parameter properties = %q, want x,y", got)
	}
}

func TestTypeScriptAbstractMembersErased(t *testing.T) {
	prog := parseTS(t, "abstract class A { abstract m(): void; declare n: number; k(): number { return 1 } }")
	cls := prog.Body[0].(*ClassDecl).Class
	if len(cls.Members) != 1 || cls.Members[0].Key != "k" {
		t.Errorf("members = %d, want only k", len(cls.Members))
	}
	if cls.Fields != nil {
		t.Error("declare field should not produce an initializer")
	}
}

func TestTypeScriptEval(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"annotations", "let n: number = 40; const add = (a: number, b: number): number => a + b; add(n, 2)", "42"},
		{"as", "const v = ('abc' as string).length; v", "3"},
		{"satisfies", "const o = { a: 1 } satisfies Record<string, number>; o.a", "1"},
		{"non-null", "const m = { x: { y: 7 } }; m.x!.y", "7"},
		{"generic call", "function id<T>(x: T): T { return x } id<string>('g')", "g"},
		{"generic arrow", "const wrap = <T,>(x: T): T[] => [x]; wrap(5).length", "1"},
		{"interface then code", "interface I { a: number }\nconst i: I = { a: 9 }; i.a", "9"},
		{"enum", "enum Color { Red, Green = 5, Blue }\nColor.Red + Color.Blue + Color[5]", "6Green"},
		{"string enum", "enum Dir { Up = 'UP', Down = 'DOWN' }\nDir.Down", "DOWN"},
		{"const enum", "const enum E { A = 1 << 2, B = A | 1 }\nE.B", "5"},
		{"param properties", "class P { constructor(public x: number, private y: number) {} sum() { return this.x + this.y } } new P(1, 2).sum()", "3"},
		{"class fields", "class C { count: number = 3; label?: string; } new C().count", "3"},
		{"optional params", "function f(a: number, b?: number) { return b === undefined } f(1)", "true"},
		{"implements", "interface Named { name: string } class N implements Named { name = 'n' } new N().name", "n"},
		{"access modifiers", "class A { private static secret = 4; public static get() { return A.secret } } A.get()", "4"},
		{"index signature", "class Bag { [key: string]: any; v = 1 } new Bag().v", "1"},
		{"type assertion in arithmetic", "let u: unknown = 4; (u as number) * 2", "8"},
		{"function type annotation", "let cb: (x: number) => number = x => x + 1; cb(1)", "2"},
		{"tuple and union types", "let t: [string, number] | null = ['a', 1]; t![0]", "a"},
		{"decorators skipped", "function dec(t: any) {}\n@dec class D { v = 2 }\nnew D().v", "2"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, _, err := run(t, tc.src, true)
			if err != nil {
				t.Fatalf("eval error: %v\nsource: %s", err, tc.src)
			}
			if got := v.String(); got != tc.want {
				t.Errorf("result = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestTypeScriptSyntaxIsRejectedInJavaScript(t *testing.T) {
	for _, src := range []string{
		"let n: number = 1",
		"function f(a: string) {}",
		"enum E { A }",
	} {
		if _, err := ParseSource(src, false); err == nil {
			t.Errorf("ParseSource(%q, js) succeeded, want a syntax error", src)
		}
	}
}
