package compiler

import (
	"fmt"
	"slices"
)

// ---------------------------------------------------------------------------
// Semantic Analyzer: Pre-codegen semantic checks
// ---------------------------------------------------------------------------

// SemanticAnalyzer performs semantic analysis on the AST before code generation.
// It rejects duplicate declarations and misplaced break, continue and labels,
// and warns about unreachable code.
type SemanticAnalyzer struct {
	errors   []string
	warnings []string

	scopes []*declScope // innermost last
	ctx    jumpContext
}

// declClass is how a name was introduced into a scope.
type declClass int

const (
	declVarLike declClass = iota // var or function declaration
	declLexical                  // let, const or class
	declParam                    // function or catch parameter
)

// declScope is one scope for duplicate-declaration checks.
type declScope struct {
	names    map[string]declClass
	function bool // var declarations land here
}

// jumpContext tracks the statements break and continue may target
// within the current function.
type jumpContext struct {
	labels     []labelFrame
	loops      int
	breakables int // loops and switches
}

type labelFrame struct {
	name string
	loop bool
}

// NewSemanticAnalyzer creates a new semantic analyzer.
func NewSemanticAnalyzer() *SemanticAnalyzer {
	return &SemanticAnalyzer{}
}

// Errors returns accumulated analysis errors.
func (s *SemanticAnalyzer) Errors() []string {
	return s.errors
}

// Warnings returns non-fatal diagnostics such as unreachable code.
func (s *SemanticAnalyzer) Warnings() []string {
	return s.warnings
}

// errorAt records an error with position information.
func (s *SemanticAnalyzer) errorAt(node Node, format string, args ...interface{}) {
	pos := node.Span().Start
	msg := fmt.Sprintf("line %d:%d: %s", pos.Line, pos.Column, fmt.Sprintf(format, args...))
	s.errors = append(s.errors, msg)
}

// warnAt records a warning with position information.
func (s *SemanticAnalyzer) warnAt(node Node, format string, args ...interface{}) {
	pos := node.Span().Start
	msg := fmt.Sprintf("warning: line %d:%d: %s", pos.Line, pos.Column, fmt.Sprintf(format, args...))
	s.warnings = append(s.warnings, msg)
}

// AnalyzeProgram performs semantic analysis on a whole program.
func (s *SemanticAnalyzer) AnalyzeProgram(prog *Program) {
	s.scopes = nil
	s.ctx = jumpContext{}
	s.pushScope(true)
	s.analyzeBody(prog.Body)
	s.popScope()
}

// AnalyzeFunction performs semantic analysis on a single function.
func (s *SemanticAnalyzer) AnalyzeFunction(fn *Function) {
	s.analyzeFunction(fn)
}

func (s *SemanticAnalyzer) pushScope(function bool) {
	s.scopes = append(s.scopes, &declScope{names: make(map[string]declClass), function: function})
}

func (s *SemanticAnalyzer) popScope() {
	s.scopes = s.scopes[:len(s.scopes)-1]
}

func (s *SemanticAnalyzer) scope() *declScope { return s.scopes[len(s.scopes)-1] }

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

func (s *SemanticAnalyzer) declareLexical(node Node, name string) {
	if name == "" {
		return
	}
	sc := s.scope()
	if _, ok := sc.names[name]; ok {
		s.errorAt(node, "Identifier '%s' has already been declared", name)
		return
	}
	sc.names[name] = declLexical
}

// declareVar checks a var declaration against every lexical binding
// between the current block and the enclosing function scope.
func (s *SemanticAnalyzer) declareVar(node Node, name string) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		sc := s.scopes[i]
		if cls, ok := sc.names[name]; ok && cls == declLexical {
			s.errorAt(node, "Identifier '%s' has already been declared", name)
			return
		}
		if sc.function {
			if _, ok := sc.names[name]; !ok {
				sc.names[name] = declVarLike
			}
			return
		}
	}
}

func (s *SemanticAnalyzer) declareFunction(node Node, name string) {
	sc := s.scope()
	if cls, ok := sc.names[name]; ok && cls == declLexical {
		s.errorAt(node, "Identifier '%s' has already been declared", name)
		return
	}
	sc.names[name] = declVarLike
}

// declareBlock declares the lexical bindings and function declarations
// directly contained in a statement list.
func (s *SemanticAnalyzer) declareBlock(body []Stmt) {
	for _, st := range body {
		switch st := st.(type) {
		case *VarDecl:
			if st.Kind != DeclVar {
				for _, d := range st.Decls {
					s.declareLexical(st, d.Name)
				}
			}
		case *ClassDecl:
			s.declareLexical(st, st.Class.Name)
		case *FunctionDecl:
			s.declareFunction(st, st.Func.Name)
		}
	}
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

func (s *SemanticAnalyzer) analyzeFunction(fn *Function) {
	saved := s.ctx
	s.ctx = jumpContext{}
	s.pushScope(true)
	for _, p := range fn.Params {
		s.scope().names[p.Name] = declParam
	}
	for _, p := range fn.Params {
		if p.Default != nil {
			s.analyzeExpr(p.Default)
		}
	}
	if fn.ExprBody != nil {
		s.analyzeExpr(fn.ExprBody)
	} else {
		s.analyzeBody(fn.Body)
	}
	s.popScope()
	s.ctx = saved
}

// analyzeBody analyzes a statement list that forms its own scope.
func (s *SemanticAnalyzer) analyzeBody(body []Stmt) {
	s.declareBlock(body)
	s.analyzeStatements(body)
	s.checkUnreachableCode(body)
}

// analyzeStatements analyzes a list of statements.
func (s *SemanticAnalyzer) analyzeStatements(stmts []Stmt) {
	for _, stmt := range stmts {
		s.analyzeStmt(stmt)
	}
}

// analyzeStmt analyzes a single statement.
func (s *SemanticAnalyzer) analyzeStmt(stmt Stmt) {
	if stmt == nil {
		return
	}
	switch st := stmt.(type) {
	case *ExprStmt:
		s.analyzeExpr(st.Expr)
	case *VarDecl:
		for _, d := range st.Decls {
			if st.Kind == DeclVar {
				s.declareVar(st, d.Name)
			}
			if d.Init != nil {
				s.analyzeExpr(d.Init)
			}
		}
	case *FunctionDecl:
		s.analyzeFunction(st.Func)
	case *ClassDecl:
		s.analyzeExpr(&ClassExpr{SpanVal: st.SpanVal, Class: st.Class})
	case *BlockStmt:
		s.pushScope(false)
		s.analyzeBody(st.Body)
		s.popScope()
	case *IfStmt:
		s.analyzeExpr(st.Test)
		s.analyzeStmt(st.Consequent)
		s.analyzeStmt(st.Alternate)
	case *WhileStmt:
		s.analyzeExpr(st.Test)
		s.analyzeLoopBody(st.Body)
	case *DoWhileStmt:
		s.analyzeLoopBody(st.Body)
		s.analyzeExpr(st.Test)
	case *ForStmt:
		s.pushScope(false)
		if decl, ok := st.Init.(*VarDecl); ok && decl.Kind != DeclVar {
			s.declareBlock([]Stmt{decl})
		}
		s.analyzeStmt(st.Init)
		s.analyzeExpr(st.Test)
		s.analyzeExpr(st.Update)
		s.analyzeLoopBody(st.Body)
		s.popScope()
	case *ForInStmt:
		s.pushScope(false)
		if st.Decl != nil {
			if st.Decl.Kind != DeclVar {
				s.declareBlock([]Stmt{st.Decl})
			} else {
				for _, d := range st.Decl.Decls {
					s.declareVar(st.Decl, d.Name)
				}
			}
		}
		s.analyzeExpr(st.Target)
		s.analyzeExpr(st.Right)
		s.analyzeLoopBody(st.Body)
		s.popScope()
	case *SwitchStmt:
		s.analyzeExpr(st.Discriminant)
		s.pushScope(false)
		var all []Stmt
		for _, c := range st.Cases {
			all = append(all, c.Body...)
		}
		s.declareBlock(all)
		s.ctx.breakables++
		for _, c := range st.Cases {
			s.analyzeExpr(c.Test)
			s.analyzeStatements(c.Body)
			s.checkUnreachableCode(c.Body)
		}
		s.ctx.breakables--
		s.popScope()
	case *TryStmt:
		s.analyzeStmt(st.Block)
		if st.Handler != nil {
			s.pushScope(false)
			if st.Param != "" {
				s.scope().names[st.Param] = declParam
			}
			s.analyzeBody(st.Handler.Body)
			s.popScope()
		}
		if st.Finalizer != nil {
			s.analyzeStmt(st.Finalizer)
		}
	case *ThrowStmt:
		s.analyzeExpr(st.Argument)
	case *ReturnStmt:
		s.analyzeExpr(st.Argument)
	case *BreakStmt:
		s.checkBreak(st)
	case *ContinueStmt:
		s.checkContinue(st)
	case *LabeledStmt:
		s.analyzeLabeled(st)
	case *WithStmt:
		s.analyzeExpr(st.Object)
		s.analyzeStmt(st.Body)
	}
}

func (s *SemanticAnalyzer) analyzeLoopBody(body Stmt) {
	s.ctx.loops++
	s.ctx.breakables++
	s.analyzeStmt(body)
	s.ctx.loops--
	s.ctx.breakables--
}

// analyzeExpr walks an expression, analyzing every function inside it in
// a fresh jump context.
func (s *SemanticAnalyzer) analyzeExpr(e Expr) {
	if e == nil {
		return
	}
	Inspect(e, func(n Node) bool {
		if fn, ok := n.(*Function); ok {
			s.analyzeFunction(fn)
			return false
		}
		return true
	})
}

// ---------------------------------------------------------------------------
// Labels and jumps
// ---------------------------------------------------------------------------

func (s *SemanticAnalyzer) findLabel(name string) (labelFrame, bool) {
	for i := len(s.ctx.labels) - 1; i >= 0; i-- {
		if s.ctx.labels[i].name == name {
			return s.ctx.labels[i], true
		}
	}
	return labelFrame{}, false
}

func (s *SemanticAnalyzer) analyzeLabeled(st *LabeledStmt) {
	var names []string
	var body Stmt = st
	for {
		l, ok := body.(*LabeledStmt)
		if !ok {
			break
		}
		if _, dup := s.findLabel(l.Label); dup || slices.Contains(names, l.Label) {
			s.errorAt(l, "Label '%s' has already been declared", l.Label)
		}
		names = append(names, l.Label)
		body = l.Body
	}
	loop := false
	switch body.(type) {
	case *WhileStmt, *DoWhileStmt, *ForStmt, *ForInStmt:
		loop = true
	}
	for _, n := range names {
		s.ctx.labels = append(s.ctx.labels, labelFrame{name: n, loop: loop})
	}
	s.analyzeStmt(body)
	s.ctx.labels = s.ctx.labels[:len(s.ctx.labels)-len(names)]
}

func (s *SemanticAnalyzer) checkBreak(st *BreakStmt) {
	if st.Label != "" {
		if _, ok := s.findLabel(st.Label); !ok {
			s.errorAt(st, "Undefined label '%s'", st.Label)
		}
		return
	}
	if s.ctx.breakables == 0 {
		s.errorAt(st, "Illegal break statement")
	}
}

func (s *SemanticAnalyzer) checkContinue(st *ContinueStmt) {
	if st.Label != "" {
		l, ok := s.findLabel(st.Label)
		switch {
		case !ok:
			s.errorAt(st, "Undefined label '%s'", st.Label)
		case !l.loop:
			s.errorAt(st, "Illegal continue statement: '%s' does not denote an iteration statement", st.Label)
		}
		return
	}
	if s.ctx.loops == 0 {
		s.errorAt(st, "Illegal continue statement: no surrounding iteration statement")
	}
}

// ---------------------------------------------------------------------------
// Reachability
// ---------------------------------------------------------------------------

// checkUnreachableCode warns about statements that follow an unconditional
// jump in the same list. Hoisted function declarations are exempt.
func (s *SemanticAnalyzer) checkUnreachableCode(stmts []Stmt) {
	for i, stmt := range stmts {
		switch stmt.(type) {
		case *ReturnStmt, *ThrowStmt, *BreakStmt, *ContinueStmt:
		default:
			continue
		}
		for _, rest := range stmts[i+1:] {
			switch rest.(type) {
			case *FunctionDecl, *EmptyStmt:
				continue
			}
			s.warnAt(rest, "unreachable code")
			return
		}
		return
	}
}
