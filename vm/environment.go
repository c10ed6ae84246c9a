package vm

// Binding is one name in an Environment.
type Binding struct {
	Value       Value
	Mutable     bool
	Initialized bool
}

// Environment is a chain of binding maps. The VM keeps its globals in a
// two-level chain: built-ins at the root, script globals in a child.
type Environment struct {
	parent   *Environment
	bindings map[string]*Binding
}

// NewEnvironment creates an environment whose lookups fall back to parent.
func NewEnvironment(parent *Environment) *Environment {
	return &Environment{parent: parent, bindings: make(map[string]*Binding)}
}

// Parent returns the enclosing environment, or nil at the root.
func (e *Environment) Parent() *Environment { return e.parent }

// Declare creates or replaces an initialized binding in this environment.
func (e *Environment) Declare(name string, v Value, mutable bool) {
	e.bindings[name] = &Binding{Value: v, Mutable: mutable, Initialized: true}
}

// DeclareUninitialized creates a binding that must be initialized before it
// can be read. let and const use it.
func (e *Environment) DeclareUninitialized(name string, mutable bool) {
	e.bindings[name] = &Binding{Value: Undefined, Mutable: mutable}
}

// Has reports whether name is bound in this environment only.
func (e *Environment) Has(name string) bool {
	_, ok := e.bindings[name]
	return ok
}

// Lookup finds the binding for name, walking outward.
func (e *Environment) Lookup(name string) (*Binding, bool) {
	for env := e; env != nil; env = env.parent {
		if b, ok := env.bindings[name]; ok {
			return b, true
		}
	}
	return nil, false
}

// Get returns the value bound to name. Reading an uninitialized binding is
// a ReferenceError.
func (e *Environment) Get(name string) (Value, error) {
	b, ok := e.Lookup(name)
	if !ok {
		return Undefined, NewError(ReferenceError, name+" is not defined")
	}
	if !b.Initialized {
		return Undefined, NewError(ReferenceError, "Cannot access '"+name+"' before initialization")
	}
	return b.Value, nil
}

// Set assigns to an existing binding anywhere in the chain, or creates a
// new mutable binding here when none exists. The first store to an
// uninitialized binding initializes it, even when it is immutable.
func (e *Environment) Set(name string, v Value) error {
	b, ok := e.Lookup(name)
	if !ok {
		e.Declare(name, v, true)
		return nil
	}
	if !b.Initialized {
		b.Value = v
		b.Initialized = true
		return nil
	}
	if !b.Mutable {
		return NewError(TypeError, "Assignment to constant variable '"+name+"'")
	}
	b.Value = v
	return nil
}

// Delete removes name from this environment only.
func (e *Environment) Delete(name string) bool {
	if _, ok := e.bindings[name]; !ok {
		return false
	}
	delete(e.bindings, name)
	return true
}

// Names returns the names bound directly in this environment.
func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.bindings))
	for name := range e.bindings {
		names = append(names, name)
	}
	return names
}
