package compiler

import (
	"github.com/spacey-js/spacey/vm"
)

// ---------------------------------------------------------------------------
// Scopes: local slot allocation and name resolution
// ---------------------------------------------------------------------------

// bindingKind records how a local was declared.
type bindingKind int

const (
	bindVar bindingKind = iota
	bindLet
	bindConst
	bindParam
	bindFunction
	bindClass
	bindHidden // compiler-introduced: completion value, with object, super
)

func (k bindingKind) lexical() bool {
	return k == bindLet || k == bindConst || k == bindClass
}

// local is one slot of a function frame.
type local struct {
	name     string
	slot     int
	kind     bindingKind
	captured bool
}

func (l *local) mutable() bool { return l.kind != bindConst }

// blockScope is one lexical block within a function.
type blockScope struct {
	locals []*local
	base   int    // first slot allocated in this scope
	with   string // hidden local holding the object of a with statement
}

// upvalueInfo is what the compiler remembers about each captured name.
type upvalueInfo struct {
	name    string
	mutable bool
}

// argumentsMode selects how a function materializes arguments.
type argumentsMode int

const (
	argumentsNone argumentsMode = iota
	argumentsFast               // only arguments[n] and arguments.length
	argumentsLocal              // a local named arguments holds the object
)

// funcState is the compilation state of one function body (or the
// top-level program).
type funcState struct {
	parent *funcState
	b      *vm.ChunkBuilder
	fn     *Function // nil for the program
	top    bool

	scopes     []*blockScope
	localNames []string
	upvalues   []vm.UpvalueDesc
	upinfo     []upvalueInfo
	freeTemps  []int

	controls []*control
	args     argumentsMode

	completion int // slot of the completion value, or -1
}

func newFuncState(parent *funcState, fn *Function, name string) *funcState {
	fs := &funcState{
		parent:     parent,
		b:          vm.NewChunkBuilder(name),
		fn:         fn,
		top:        parent == nil,
		completion: -1,
	}
	fs.pushScope()
	return fs
}

func (fs *funcState) scope() *blockScope { return fs.scopes[len(fs.scopes)-1] }

func (fs *funcState) pushScope() *blockScope {
	s := &blockScope{base: len(fs.localNames)}
	fs.scopes = append(fs.scopes, s)
	return s
}

// popScope drops the innermost scope. If any of its locals were captured
// it closes their upvalues so later iterations get fresh bindings.
func (fs *funcState) popScope() {
	s := fs.scope()
	fs.scopes = fs.scopes[:len(fs.scopes)-1]
	if s.hasCaptured() {
		fs.b.EmitOperand(vm.OpCloseUpvalue, s.base)
	}
}

func (s *blockScope) hasCaptured() bool {
	for _, l := range s.locals {
		if l.captured {
			return true
		}
	}
	return false
}

// declare adds a local to the innermost scope and returns it. A name
// already declared in the same scope is reused for var-like bindings.
func (fs *funcState) declare(name string, kind bindingKind) *local {
	return fs.declareIn(fs.scope(), name, kind)
}

func (fs *funcState) declareIn(s *blockScope, name string, kind bindingKind) *local {
	if !kind.lexical() && kind != bindHidden {
		for _, l := range s.locals {
			if l.name == name && !l.kind.lexical() {
				if kind == bindFunction {
					l.kind = bindFunction
				}
				return l
			}
		}
	}
	l := &local{name: name, slot: len(fs.localNames), kind: kind}
	fs.localNames = append(fs.localNames, name)
	s.locals = append(s.locals, l)
	return l
}

// allocTemp returns a scratch slot that is never captured. Temps are
// released with freeTemp in LIFO order and reused.
func (fs *funcState) allocTemp() int {
	if n := len(fs.freeTemps); n > 0 {
		slot := fs.freeTemps[n-1]
		fs.freeTemps = fs.freeTemps[:n-1]
		return slot
	}
	slot := len(fs.localNames)
	fs.localNames = append(fs.localNames, "%tmp")
	return slot
}

func (fs *funcState) freeTemp(slot int) {
	fs.freeTemps = append(fs.freeTemps, slot)
}

// lookupLocal finds the innermost local named name.
func (fs *funcState) lookupLocal(name string) *local {
	for i := len(fs.scopes) - 1; i >= 0; i-- {
		locals := fs.scopes[i].locals
		for j := len(locals) - 1; j >= 0; j-- {
			if locals[j].name == name {
				return locals[j]
			}
		}
	}
	return nil
}

// resolveUpvalue finds name in an enclosing function and threads it
// through every intermediate closure. It returns -1 if the name is not a
// local of any enclosing function.
func (fs *funcState) resolveUpvalue(name string) int {
	if fs.parent == nil {
		return -1
	}
	if l := fs.parent.lookupLocal(name); l != nil {
		l.captured = true
		return fs.addUpvalue(true, l.slot, name, l.mutable())
	}
	if idx := fs.parent.resolveUpvalue(name); idx >= 0 {
		return fs.addUpvalue(false, idx, name, fs.parent.upinfo[idx].mutable)
	}
	return -1
}

func (fs *funcState) addUpvalue(fromLocal bool, index int, name string, mutable bool) int {
	for i, u := range fs.upvalues {
		if u.FromLocal == fromLocal && int(u.Index) == index {
			return i
		}
	}
	fs.upvalues = append(fs.upvalues, vm.UpvalueDesc{FromLocal: fromLocal, Index: uint16(index), Name: name})
	fs.upinfo = append(fs.upinfo, upvalueInfo{name: name, mutable: mutable})
	return len(fs.upvalues) - 1
}

// withTargets lists the hidden with-object locals that must be probed for
// name before its lexical binding, innermost first.
func (fs *funcState) withTargets(name string) []string {
	var out []string
	for f := fs; f != nil; f = f.parent {
		for i := len(f.scopes) - 1; i >= 0; i-- {
			s := f.scopes[i]
			for _, l := range s.locals {
				if l.name == name {
					return out
				}
			}
			if s.with != "" {
				out = append(out, s.with)
			}
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// References
// ---------------------------------------------------------------------------

type refKind int

const (
	refLocal refKind = iota
	refUpvalue
	refGlobal
)

// ref is a resolved variable reference.
type ref struct {
	kind    refKind
	index   int // slot, upvalue index or name constant
	name    string
	mutable bool
}

// ---------------------------------------------------------------------------
// Control contexts
// ---------------------------------------------------------------------------

type controlKind int

const (
	controlLoop controlKind = iota
	controlSwitch
	controlLabel // a labeled statement that is not a loop or switch
	controlTry
)

// control is an enclosing statement that break, continue or return may
// have to leave.
type control struct {
	kind   controlKind
	labels []string
	scopes int // number of block scopes open around the statement's body

	breaks    []int // jumps to patch to the end
	continues []int // jumps to patch to the continue point

	// For a try statement: the finalizer is compiled inline at every exit
	// that crosses it. holes are the instruction ranges of finalizer
	// copies emitted inside the protected regions; the handlers must not
	// cover them.
	finalizer *BlockStmt
	holes     [][2]int
}

func (c *control) hasLabel(name string) bool {
	for _, l := range c.labels {
		if l == name {
			return true
		}
	}
	return false
}
