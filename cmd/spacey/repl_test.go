package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spacey-js/spacey/engine"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		cmd   replCommand
		arg   string
	}{
		{".help", cmdHelp, ""},
		{".h", cmdHelp, ""},
		{".?", cmdHelp, ""},
		{".exit", cmdExit, ""},
		{".quit", cmdExit, ""},
		{".Q", cmdExit, ""},
		{".clear", cmdClear, ""},
		{".cls", cmdClear, ""},
		{".version", cmdVersion, ""},
		{".v", cmdVersion, ""},
		{".load  app.js ", cmdLoad, "app.js"},
		{".l x.ts", cmdLoad, "x.ts"},
		{".5 + 1", cmdNone, ""},
		{".unknown", cmdNone, ""},
		{"help", cmdNone, ""},
	}
	for _, tc := range tests {
		cmd, arg := parseCommand(tc.input)
		if cmd != tc.cmd || arg != tc.arg {
			t.Errorf("parseCommand(%q) = %v, %q; want %v, %q", tc.input, cmd, arg, tc.cmd, tc.arg)
		}
	}
}

func TestNeedsMore(t *testing.T) {
	tests := []struct {
		input string
		more  bool
	}{
		{"1 + 2", false},
		{"function f() {", true},
		{"function f() {\n  return 1;\n}", false},
		{"[1, 2,", true},
		{"foo(", true},
		{"'{'", false},
		{`"a\"{"`, false},
		{"`tpl", true},
		{"1 +", true},
		{"var x =", true},
		{"}", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := needsMore(tc.input); got != tc.more {
			t.Errorf("needsMore(%q) = %v, want %v", tc.input, got, tc.more)
		}
	}
}

func TestComplete(t *testing.T) {
	got := complete("var x = Ma")
	if len(got) != 1 || got[0] != "var x = Math" {
		t.Errorf("complete = %v", got)
	}
	if got := complete("cons"); len(got) != 2 {
		t.Errorf("complete(cons) = %v, want const and console.log", got)
	}
	if got := complete("x "); got != nil {
		t.Errorf("complete after space = %v", got)
	}
}

func TestREPLHandle(t *testing.T) {
	var stdout, stderr bytes.Buffer
	eng := engine.New(engine.WithOutput(&stdout))
	r := &repl{eng: eng, stdout: &stdout, stderr: &stderr}

	if r.handle("var a = 41") {
		t.Fatal("statement exited the REPL")
	}
	r.handle("a + 1")
	r.handle("nope()")
	r.handle("'still ' + 'alive'")
	if got := stdout.String(); got != "undefined\n42\n'still alive'\n" {
		t.Errorf("stdout = %q", got)
	}
	if !strings.Contains(stderr.String(), "Error: ReferenceError") {
		t.Errorf("stderr = %q", stderr.String())
	}

	stdout.Reset()
	r.handle(".version")
	if !strings.Contains(stdout.String(), engine.Version) {
		t.Errorf(".version printed %q", stdout.String())
	}
	stdout.Reset()
	r.handle(".help")
	if !strings.Contains(stdout.String(), ".load <file>") {
		t.Errorf(".help printed %q", stdout.String())
	}
	if !r.handle(".exit") {
		t.Error(".exit did not exit")
	}
}

func TestREPLLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lib.ts")
	if err := os.WriteFile(path, []byte("function twice(n: number): number { return n * 2; } twice(4)"), 0644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	r := &repl{eng: engine.New(engine.WithOutput(&stdout)), stdout: &stdout, stderr: &stderr}
	r.handle(".load " + path)
	r.handle("twice(21)")
	if got := stdout.String(); got != "8\n42\n" {
		t.Errorf("stdout = %q, stderr = %q", got, stderr.String())
	}

	r.handle(".load")
	if !strings.Contains(stderr.String(), "usage: .load") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestREPLTypeScriptMode(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := &repl{eng: engine.New(engine.WithOutput(&stdout)), ts: true, stdout: &stdout, stderr: &stderr}
	r.handle("let k: string = 'ts'; k")
	if got := stdout.String(); got != "'ts'\n" {
		t.Errorf("stdout = %q, stderr = %q", got, stderr.String())
	}
}
