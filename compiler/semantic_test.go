package compiler

import (
	"strings"
	"testing"
)

func analyze(t *testing.T, src string) *SemanticAnalyzer {
	t.Helper()
	prog, err := ParseSource(src, false)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	sa := NewSemanticAnalyzer()
	sa.AnalyzeProgram(prog)
	return sa
}

func TestSemanticValidPrograms(t *testing.T) {
	sources := []string{
		"var a; var a;",
		"function f() {} var f;",
		"let x = 1; { let x = 2; }",
		"function f(a) { var a; }",
		"try {} catch (e) { var e; }",
		"for (let i = 0; i < 1; i++) { let i = 2; }",
		"loop: while (true) { break loop; }",
		"a: b: for (;;) { continue a; }",
		"l: { break l; }",
		"switch (1) { case 1: break; }",
		"while (1) { function f() { return 1 } break; }",
		"x: for (;;) { (function () { x: for (;;) { break x } })(); break }",
		"{ function g() {} function g() {} }",
	}
	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			sa := analyze(t, src)
			if errs := sa.Errors(); len(errs) > 0 {
				t.Errorf("errors = %v, want none", errs)
			}
		})
	}
}

func TestSemanticErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"let a; let a;", "Identifier 'a' has already been declared"},
		{"const b = 1; var b;", "Identifier 'b' has already been declared"},
		{"let c; { var c; }", "Identifier 'c' has already been declared"},
		{"class D {} let D;", "Identifier 'D' has already been declared"},
		{"function f(p) { let p; }", "Identifier 'p' has already been declared"},
		{"try {} catch (e) { let e; }", "Identifier 'e' has already been declared"},
		{"{ let g; function g() {} }", "Identifier 'g' has already been declared"},
		{"switch (1) { case 1: let s; case 2: let s; }", "Identifier 's' has already been declared"},
		{"break;", "Illegal break statement"},
		{"function f() { continue; }", "Illegal continue statement: no surrounding iteration statement"},
		{"for (;;) { break nowhere; }", "Undefined label 'nowhere'"},
		{"lbl: { while (1) { continue lbl; } }", "'lbl' does not denote an iteration statement"},
		{"dup: dup: ;", "Label 'dup' has already been declared"},
		{"while (1) { (function () { break; })() }", "Illegal break statement"},
		{"l: for (;;) { (() => { continue l })() }", "Undefined label 'l'"},
		{"switch (0) { case 0: continue; }", "Illegal continue statement"},
	}
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			sa := analyze(t, tc.src)
			errs := sa.Errors()
			if len(errs) == 0 {
				t.Fatalf("no errors, want %q", tc.want)
			}
			if !strings.Contains(errs[0], tc.want) {
				t.Errorf("error = %q, want it to contain %q", errs[0], tc.want)
			}
			if !strings.HasPrefix(errs[0], "line ") {
				t.Errorf("error = %q, want a line position", errs[0])
			}
		})
	}
}

func TestSemanticUnreachableCode(t *testing.T) {
	tests := []struct {
		src      string
		warnings int
	}{
		{"function f() { return 1; f(); }", 1},
		{"function f() { throw 1; var a; var b; }", 1},
		{"function f() { return 1; function hoisted() {} }", 0},
		{"while (1) { break; ; }", 0},
		{"while (1) { continue; x++; }", 1},
		{"function f() { if (a) return 1; return 2; }", 0},
		{"switch (1) { case 1: break; dead(); }", 1},
	}
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			sa := analyze(t, tc.src)
			if len(sa.Errors()) > 0 {
				t.Fatalf("errors = %v", sa.Errors())
			}
			if got := len(sa.Warnings()); got != tc.warnings {
				t.Errorf("warnings = %v, want %d", sa.Warnings(), tc.warnings)
			}
			for _, w := range sa.Warnings() {
				if !strings.Contains(w, "unreachable code") {
					t.Errorf("warning = %q", w)
				}
			}
		})
	}
}

func TestSemanticErrorPosition(t *testing.T) {
	sa := analyze(t, "let a = 1;\nlet a = 2;")
	errs := sa.Errors()
	if len(errs) != 1 {
		t.Fatalf("errors = %v, want one", errs)
	}
	if !strings.HasPrefix(errs[0], "line 2:1:") {
		t.Errorf("error = %q, want line 2:1", errs[0])
	}
}
