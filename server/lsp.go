// Package server is the Spacey language server. It speaks LSP over stdio
// and reports syntax errors and compiler warnings as diagnostics, with
// completion and hover backed by the engine's builtins.
package server

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/spacey-js/spacey/compiler"
	"github.com/spacey-js/spacey/engine"
	"github.com/spacey-js/spacey/vm"
)

const lspName = "spacey-lsp"

const maxCompletionItems = 100

var keywords = []string{
	"break", "case", "catch", "class", "const", "continue", "debugger", "default",
	"delete", "do", "else", "extends", "false", "finally", "for", "function",
	"if", "in", "instanceof", "let", "new", "null", "return", "super", "switch",
	"this", "throw", "true", "try", "typeof", "var", "void", "while",
}

// LspServer bridges LSP editor features to a Spacey engine via Worker.
type LspServer struct {
	worker *Worker
	log    commonlog.Logger

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a language server around e. The server takes ownership
// of e.
func NewLSP(e *engine.Engine) *LspServer {
	s := &LspServer{
		worker:  NewWorker(e),
		log:     commonlog.GetLogger("spacey.lsp"),
		docs:    make(map[string]string),
		version: engine.Version,
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)
	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	s.log.Infof("%s %s initializing", lspName, s.version)

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"."},
	}
	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	ts := isTypeScriptURI(params.TextDocument.URI)
	return s.worker.Do(func(e *engine.Engine) any {
		return complete(e, text, ts, prefix)
	})
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	ts := isTypeScriptURI(params.TextDocument.URI)
	res, err := s.worker.Do(func(e *engine.Engine) any {
		return hover(e, text, ts, word)
	})
	if err != nil || res == nil {
		return nil, nil
	}
	return res.(*protocol.Hover), nil
}

// complete lists keywords, builtins and the document's top-level
// declarations that start with prefix.
func complete(e *engine.Engine, text string, ts bool, prefix string) []protocol.CompletionItem {
	seen := make(map[string]bool)
	var items []protocol.CompletionItem
	add := func(label string, kind protocol.CompletionItemKind, detail string) {
		if seen[label] || !strings.HasPrefix(label, prefix) {
			return
		}
		seen[label] = true
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &label,
		})
	}

	for _, d := range declarations(text, ts) {
		add(d.name, d.kind, d.detail)
	}
	env := e.VM().Globals()
	for env != nil {
		for _, name := range env.Names() {
			v, _ := e.Global(name)
			kind := protocol.CompletionItemKindVariable
			if v.IsFunction() {
				kind = protocol.CompletionItemKindFunction
			}
			add(name, kind, v.TypeOf())
		}
		env = env.Parent()
	}
	for _, kw := range keywords {
		add(kw, protocol.CompletionItemKindKeyword, "keyword")
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	if len(items) > maxCompletionItems {
		items = items[:maxCompletionItems]
	}
	return items
}

// hover describes a declaration in the document or a global of the engine.
func hover(e *engine.Engine, text string, ts bool, word string) *protocol.Hover {
	var b strings.Builder
	for _, d := range declarations(text, ts) {
		if d.name == word {
			fmt.Fprintf(&b, "```js\n%s\n```", d.signature)
			break
		}
	}
	if b.Len() == 0 {
		v, ok := e.Global(word)
		if !ok {
			return nil
		}
		fmt.Fprintf(&b, "**%s**: `%s`", word, v.TypeOf())
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

// declaration is a top-level name bound by a document.
type declaration struct {
	name      string
	kind      protocol.CompletionItemKind
	detail    string
	signature string
}

// declarations returns the top-level bindings of text. A document that does
// not parse has none.
func declarations(text string, ts bool) []declaration {
	prog, err := compiler.ParseSource(text, ts)
	if err != nil {
		return nil
	}
	var out []declaration
	for _, stmt := range prog.Body {
		switch st := stmt.(type) {
		case *compiler.FunctionDecl:
			params := make([]string, len(st.Func.Params))
			for i, p := range st.Func.Params {
				params[i] = p.Name
				if p.Rest {
					params[i] = "..." + p.Name
				}
			}
			out = append(out, declaration{
				name:      st.Func.Name,
				kind:      protocol.CompletionItemKindFunction,
				detail:    "function",
				signature: fmt.Sprintf("function %s(%s)", st.Func.Name, strings.Join(params, ", ")),
			})
		case *compiler.ClassDecl:
			out = append(out, declaration{
				name:      st.Class.Name,
				kind:      protocol.CompletionItemKindClass,
				detail:    "class",
				signature: "class " + st.Class.Name,
			})
		case *compiler.VarDecl:
			keyword := declKeyword(st.Kind)
			for _, d := range st.Decls {
				out = append(out, declaration{
					name:      d.Name,
					kind:      protocol.CompletionItemKindVariable,
					detail:    keyword,
					signature: keyword + " " + d.Name,
				})
			}
		}
	}
	return out
}

func declKeyword(k compiler.DeclKind) string {
	switch k {
	case compiler.DeclLet:
		return "let"
	case compiler.DeclConst:
		return "const"
	}
	return "var"
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics := diagnose(text, isTypeScriptURI(uri))
	s.log.Debugf("%s: %d diagnostics", uri, len(diagnostics))
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// diagnose compiles text without running it and reports the first error
// and every warning.
func diagnose(text string, ts bool) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	prog, err := compiler.ParseSource(text, ts)
	if err == nil {
		c := compiler.NewCompiler()
		_, err = c.Compile(prog)
		for _, w := range c.Warnings() {
			diagnostics = append(diagnostics, newDiagnostic(w, protocol.DiagnosticSeverityWarning))
		}
	}
	if err != nil {
		msg := err.Error()
		var ee *vm.Error
		if errors.As(err, &ee) {
			msg = ee.Message
		}
		diagnostics = append(diagnostics, newDiagnostic(msg, protocol.DiagnosticSeverityError))
	}
	return diagnostics
}

// newDiagnostic positions a compiler message of the form
// "line L:C: text", which is 1-based, at its LSP location.
func newDiagnostic(msg string, severity protocol.DiagnosticSeverity) protocol.Diagnostic {
	line, col, text := splitLocation(msg)
	source := lspName
	start := protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)}
	return protocol.Diagnostic{
		Range:    protocol.Range{Start: start, End: protocol.Position{Line: start.Line, Character: start.Character + 1}},
		Severity: &severity,
		Source:   &source,
		Message:  text,
	}
}

// splitLocation returns the 0-based line and column of msg and the text
// after the location. Messages without one are placed at the start.
func splitLocation(msg string) (int, int, string) {
	rest := strings.TrimPrefix(msg, "warning: ")
	var line, col int
	if n, _ := fmt.Sscanf(rest, "line %d:%d:", &line, &col); n != 2 || line < 1 || col < 1 {
		return 0, 0, rest
	}
	if i := strings.Index(rest, ": "); i >= 0 {
		rest = rest[i+2:]
	}
	return line - 1, col - 1, rest
}

func isTypeScriptURI(uri protocol.DocumentUri) bool {
	return engine.IsTypeScriptPath(string(uri))
}

// --- Text extraction helpers ---

func isIdentRune(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' || ch == '$'
}

// extractPrefix returns the identifier fragment before the cursor.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isIdentRune(rune(line[start-1])) {
		start--
	}
	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isIdentRune(rune(line[start-1])) {
		start--
	}
	end := col
	for end < len(line) && isIdentRune(rune(line[end])) {
		end++
	}
	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
