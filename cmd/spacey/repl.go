package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"

	"github.com/spacey-js/spacey/engine"
	"github.com/spacey-js/spacey/vm"
)

const (
	historyFile    = ".spacey_history"
	maxHistorySize = 1000

	promptMain = "> "
	promptCont = "... "
)

// replCommand is a dot command understood by the REPL.
type replCommand int

const (
	cmdNone replCommand = iota
	cmdHelp
	cmdExit
	cmdClear
	cmdVersion
	cmdLoad
)

var replCommands = []struct {
	usage string
	help  string
}{
	{".help", "Show this help message"},
	{".exit", "Exit the REPL"},
	{".clear", "Clear the screen"},
	{".version", "Show version information"},
	{".load <file>", "Load and execute a JavaScript or TypeScript file"},
}

// completionWords feeds tab completion.
var completionWords = []string{
	"break", "case", "catch", "class", "const", "continue", "default", "delete",
	"do", "else", "extends", "false", "finally", "for", "function", "if", "in",
	"instanceof", "let", "new", "null", "return", "super", "switch", "this",
	"throw", "true", "try", "typeof", "undefined", "var", "void", "while",
	"Array", "Boolean", "Date", "Error", "JSON", "Math", "NaN", "Infinity",
	"Number", "Object", "RegExp", "String", "Symbol", "console.log",
	"parseInt", "parseFloat", "isNaN", "isFinite",
}

// parseCommand splits a dot command into its kind and argument. Input that
// does not start with a dot, or names an unknown command, yields cmdNone.
func parseCommand(input string) (replCommand, string) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, ".") {
		return cmdNone, ""
	}
	name, arg, _ := strings.Cut(input[1:], " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(name) {
	case "help", "h", "?":
		return cmdHelp, arg
	case "exit", "quit", "q":
		return cmdExit, arg
	case "clear", "cls":
		return cmdClear, arg
	case "version", "v":
		return cmdVersion, arg
	case "load", "l":
		return cmdLoad, arg
	}
	return cmdNone, ""
}

// isBalanced reports whether every bracket opened in input outside of
// string literals has been closed. A stray closer counts as balanced so the
// parser gets to report it.
func isBalanced(input string) bool {
	var (
		stack   []rune
		quote   rune
		escaped bool
	)
	for _, c := range input {
		if escaped {
			escaped = false
			continue
		}
		if quote != 0 {
			switch c {
			case '\\':
				escaped = true
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '(':
			stack = append(stack, ')')
		case '[':
			stack = append(stack, ']')
		case '{':
			stack = append(stack, '}')
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return true
			}
			stack = stack[:len(stack)-1]
		}
	}
	return len(stack) == 0 && quote == 0
}

// needsMore reports whether the buffered input is an unfinished statement.
func needsMore(input string) bool {
	if !isBalanced(input) {
		return true
	}
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '\\', '+', '-', '*', '/', '=', ',':
		return true
	}
	return false
}

// complete returns completions for the identifier under the cursor.
func complete(line string) []string {
	start := strings.LastIndexFunc(line, func(r rune) bool {
		return !(r == '_' || r == '.' || r == '$' ||
			('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9'))
	}) + 1
	word := line[start:]
	if word == "" {
		return nil
	}
	var out []string
	for _, w := range completionWords {
		if strings.HasPrefix(w, word) && w != word {
			out = append(out, line[:start]+w)
		}
	}
	sort.Strings(out)
	return out
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return historyFile
	}
	return filepath.Join(home, historyFile)
}

// runREPL reads statements until EOF or .exit. Values and errors are
// printed and the session continues.
func runREPL(eng *engine.Engine, ts bool, stdout, stderr io.Writer) int {
	fmt.Fprintf(stdout, "Spacey JavaScript Engine v%s\n", engine.Version)
	fmt.Fprintln(stdout, "Type .help for commands, .exit to quit.")
	fmt.Fprintln(stdout)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetMultiLineMode(true)
	ln.SetCompleter(complete)

	histPath := historyPath()
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	r := &repl{eng: eng, ts: ts, stdout: stdout, stderr: stderr}
	for {
		input, ok := readInput(ln)
		if !ok {
			fmt.Fprintln(stdout)
			break
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(input, "\n", " "))
		if r.handle(input) {
			break
		}
	}

	if err := saveHistory(ln, histPath); err != nil {
		fmt.Fprintf(stderr, "Warning: cannot save history: %v\n", err)
	}
	fmt.Fprintln(stdout, "Goodbye!")
	return 0
}

// readInput reads lines until the buffered statement is complete. Ctrl+C
// discards the buffer; EOF ends the session.
func readInput(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			return "", true
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if !needsMore(b.String()) {
			return b.String(), true
		}
	}
}

// saveHistory keeps only the newest maxHistorySize entries.
func saveHistory(ln *liner.State, path string) error {
	var all strings.Builder
	if _, err := ln.WriteHistory(&all); err != nil {
		return err
	}
	lines := strings.Split(strings.TrimRight(all.String(), "\n"), "\n")
	if len(lines) > maxHistorySize {
		lines = lines[len(lines)-maxHistorySize:]
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600)
}

// repl evaluates REPL input against one engine.
type repl struct {
	eng    *engine.Engine
	ts     bool
	stdout io.Writer
	stderr io.Writer
}

// handle runs one command or statement and reports whether to exit.
func (r *repl) handle(input string) bool {
	cmd, arg := parseCommand(input)
	switch cmd {
	case cmdExit:
		return true
	case cmdHelp:
		r.printHelp()
	case cmdClear:
		fmt.Fprint(r.stdout, "\x1b[2J\x1b[H")
	case cmdVersion:
		fmt.Fprintf(r.stdout, "Spacey %s\n", engine.Version)
	case cmdLoad:
		if arg == "" {
			fmt.Fprintln(r.stderr, "usage: .load <file>")
			return false
		}
		r.print(r.eng.EvalFileAuto(arg))
	default:
		if r.ts {
			r.print(r.eng.EvalTypeScript(input))
		} else {
			r.print(r.eng.Eval(input))
		}
	}
	return false
}

func (r *repl) print(v vm.Value, err error) {
	if err != nil {
		fmt.Fprintf(r.stderr, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(r.stdout, r.eng.Format(v))
}

func (r *repl) printHelp() {
	fmt.Fprintln(r.stdout, "REPL Commands:")
	for _, c := range replCommands {
		fmt.Fprintf(r.stdout, "  %-16s %s\n", c.usage, c.help)
	}
	fmt.Fprintln(r.stdout)
	fmt.Fprintln(r.stdout, "Keyboard Shortcuts:")
	fmt.Fprintf(r.stdout, "  %-16s %s\n", "Ctrl+C", "Discard the current input")
	fmt.Fprintf(r.stdout, "  %-16s %s\n", "Ctrl+D", "Exit REPL")
	fmt.Fprintf(r.stdout, "  %-16s %s\n", "Tab", "Autocomplete")
}
