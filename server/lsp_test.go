package server

import (
	"io"
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/spacey-js/spacey/engine"
)

// ---------------------------------------------------------------------------
// Text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"simple word", "console.lo", protocol.Position{Line: 0, Character: 10}, "lo"},
		{"at start", "Mat", protocol.Position{Line: 0, Character: 3}, "Mat"},
		{"empty line", "", protocol.Position{Line: 0, Character: 0}, ""},
		{"multi line", "first line\nsecond line\nJSO", protocol.Position{Line: 2, Character: 3}, "JSO"},
		{"after operator", "x = parseI", protocol.Position{Line: 0, Character: 10}, "parseI"},
		{"dollar", "var $el", protocol.Position{Line: 0, Character: 7}, "$el"},
		{"cursor at beginning", "hello", protocol.Position{Line: 0, Character: 0}, ""},
		{"line beyond document", "single line", protocol.Position{Line: 5, Character: 0}, ""},
		{"column beyond line", "abc", protocol.Position{Line: 0, Character: 40}, "abc"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractPrefix(tc.text, tc.pos); got != tc.want {
				t.Errorf("extractPrefix = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"inside word", "hello world", protocol.Position{Line: 0, Character: 3}, "hello"},
		{"end of word", "hello world", protocol.Position{Line: 0, Character: 5}, "hello"},
		{"second word", "hello world", protocol.Position{Line: 0, Character: 7}, "world"},
		{"member", "Math.max(1)", protocol.Position{Line: 0, Character: 6}, "max"},
		{"punctuation", "(  )", protocol.Position{Line: 0, Character: 2}, ""},
		{"second line", "a\nfoo_bar", protocol.Position{Line: 1, Character: 0}, "foo_bar"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractWord(tc.text, tc.pos); got != tc.want {
				t.Errorf("extractWord = %q, want %q", got, tc.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func TestSplitLocation(t *testing.T) {
	tests := []struct {
		msg       string
		line, col int
		text      string
	}{
		{"line 3:7: unexpected token", 2, 6, "unexpected token"},
		{"warning: line 1:1: unreachable code", 0, 0, "unreachable code"},
		{"no location here", 0, 0, "no location here"},
		{"line 0:0: bogus", 0, 0, "line 0:0: bogus"},
	}
	for _, tc := range tests {
		line, col, text := splitLocation(tc.msg)
		if line != tc.line || col != tc.col || text != tc.text {
			t.Errorf("splitLocation(%q) = %d, %d, %q; want %d, %d, %q",
				tc.msg, line, col, text, tc.line, tc.col, tc.text)
		}
	}
}

func TestDiagnoseClean(t *testing.T) {
	if d := diagnose("var x = 1; function f() { return x; }", false); len(d) != 0 {
		t.Errorf("clean program has diagnostics: %+v", d)
	}
	if d := diagnose("let n: number = 1;", true); len(d) != 0 {
		t.Errorf("clean TypeScript has diagnostics: %+v", d)
	}
}

func TestDiagnoseSyntaxError(t *testing.T) {
	d := diagnose("var x = 1;\nvar = 2;", false)
	if len(d) != 1 {
		t.Fatalf("got %d diagnostics, want 1: %+v", len(d), d)
	}
	if *d[0].Severity != protocol.DiagnosticSeverityError {
		t.Errorf("severity = %v", *d[0].Severity)
	}
	if d[0].Range.Start.Line != 1 {
		t.Errorf("error on line %d, want 1", d[0].Range.Start.Line)
	}
	if strings.HasPrefix(d[0].Message, "line ") {
		t.Errorf("location left in message: %q", d[0].Message)
	}
	if *d[0].Source != lspName {
		t.Errorf("source = %q", *d[0].Source)
	}
}

func TestDiagnoseSemanticError(t *testing.T) {
	d := diagnose("let a = 1;\nlet a = 2;", false)
	if len(d) != 1 || !strings.Contains(d[0].Message, "already been declared") {
		t.Fatalf("diagnostics = %+v", d)
	}
}

func TestDiagnoseTypeScriptInJavaScript(t *testing.T) {
	if d := diagnose("let n: number = 1;", false); len(d) != 1 {
		t.Errorf("type annotation in JavaScript: %+v", d)
	}
}

// ---------------------------------------------------------------------------
// Completion and hover
// ---------------------------------------------------------------------------

func labels(items []protocol.CompletionItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Label
	}
	return out
}

func TestComplete(t *testing.T) {
	e := engine.New(engine.WithOutput(io.Discard))
	text := "function parseConfig(src) {}\nvar parsed = 1;\npar"

	got := labels(complete(e, text, false, "par"))
	want := []string{"parseConfig", "parseFloat", "parseInt", "parsed"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("complete(par) = %v, want %v", got, want)
	}

	items := complete(e, "", false, "Mat")
	if len(items) != 1 || items[0].Label != "Math" || *items[0].Detail != "object" {
		t.Errorf("complete(Mat) = %+v", labels(items))
	}

	items = complete(e, "", false, "retu")
	if len(items) != 1 || *items[0].Kind != protocol.CompletionItemKindKeyword {
		t.Errorf("complete(retu) = %v", labels(items))
	}
}

func TestCompleteScriptGlobals(t *testing.T) {
	e := engine.New(engine.WithOutput(io.Discard))
	if _, err := e.Eval("var sessionCount = 3"); err != nil {
		t.Fatal(err)
	}
	got := labels(complete(e, "", false, "sessionC"))
	if len(got) != 1 || got[0] != "sessionCount" {
		t.Errorf("complete(sessionC) = %v", got)
	}
}

func TestHover(t *testing.T) {
	e := engine.New(engine.WithOutput(io.Discard))
	text := "function add(a, b, ...rest) { return a + b; }\nconst limit = 3;\nclass Box {}"

	tests := []struct {
		word string
		want string
	}{
		{"add", "function add(a, b, ...rest)"},
		{"limit", "const limit"},
		{"Box", "class Box"},
		{"Math", "**Math**: `object`"},
		{"parseInt", "**parseInt**: `function`"},
	}
	for _, tc := range tests {
		h := hover(e, text, false, tc.word)
		if h == nil {
			t.Errorf("hover(%s) = nil", tc.word)
			continue
		}
		content := h.Contents.(protocol.MarkupContent)
		if !strings.Contains(content.Value, tc.want) {
			t.Errorf("hover(%s) = %q, want %q", tc.word, content.Value, tc.want)
		}
	}
	if h := hover(e, text, false, "nothing"); h != nil {
		t.Errorf("hover(nothing) = %+v", h)
	}
}

func TestDeclarationsOfBrokenDocument(t *testing.T) {
	if d := declarations("function (", false); d != nil {
		t.Errorf("declarations = %+v", d)
	}
}

func TestNewLSP(t *testing.T) {
	s := NewLSP(engine.New(engine.WithOutput(io.Discard)))
	defer s.worker.Stop()
	if s.server == nil || s.handler.Initialize == nil {
		t.Fatal("server not wired")
	}
	if s.version != engine.Version {
		t.Errorf("version = %q", s.version)
	}
}
