package vm

import (
	"sort"
	"testing"
)

func TestEnvironmentLookupWalksParents(t *testing.T) {
	root := NewEnvironment(nil)
	root.Declare("a", Int(1), true)
	child := NewEnvironment(root)
	child.Declare("b", Int(2), true)

	if v, err := child.Get("a"); err != nil || v.AsNumber() != 1 {
		t.Errorf("child.Get(a) = %v, %v", v, err)
	}
	if root.Has("b") {
		t.Error("root should not see child bindings")
	}
	if child.Parent() != root {
		t.Error("Parent() mismatch")
	}
}

func TestEnvironmentUndefinedName(t *testing.T) {
	env := NewEnvironment(nil)
	_, err := env.Get("missing")
	e, ok := AsError(err)
	if !ok || e.Kind != ReferenceError {
		t.Fatalf("Get(missing) error = %v, want ReferenceError", err)
	}
	if e.Message != "missing is not defined" {
		t.Errorf("message = %q", e.Message)
	}
}

func TestEnvironmentTemporalDeadZone(t *testing.T) {
	env := NewEnvironment(nil)
	env.DeclareUninitialized("x", true)
	if _, err := env.Get("x"); err == nil {
		t.Fatal("reading an uninitialized binding should fail")
	} else if e, _ := AsError(err); e.Kind != ReferenceError {
		t.Errorf("kind = %v, want ReferenceError", e.Kind)
	}
	if err := env.Set("x", Int(5)); err != nil {
		t.Fatalf("initializing store: %v", err)
	}
	if v, err := env.Get("x"); err != nil || v.AsNumber() != 5 {
		t.Errorf("Get(x) = %v, %v", v, err)
	}
}

func TestEnvironmentConstBindings(t *testing.T) {
	env := NewEnvironment(nil)
	env.DeclareUninitialized("k", false)
	if err := env.Set("k", Int(1)); err != nil {
		t.Fatalf("first store to a const should initialize it: %v", err)
	}
	err := env.Set("k", Int(2))
	if e, ok := AsError(err); !ok || e.Kind != TypeError {
		t.Fatalf("second store error = %v, want TypeError", err)
	}
	if v, _ := env.Get("k"); v.AsNumber() != 1 {
		t.Errorf("k = %v after failed store", v)
	}
}

func TestEnvironmentSetCreatesBinding(t *testing.T) {
	root := NewEnvironment(nil)
	child := NewEnvironment(root)
	root.Declare("shared", Int(1), true)

	if err := child.Set("shared", Int(2)); err != nil {
		t.Fatal(err)
	}
	if v, _ := root.Get("shared"); v.AsNumber() != 2 {
		t.Errorf("outer binding not updated: %v", v)
	}
	if err := child.Set("fresh", True); err != nil {
		t.Fatal(err)
	}
	if !child.Has("fresh") || root.Has("fresh") {
		t.Error("new binding should be created in the receiving environment")
	}
}

func TestEnvironmentDeleteAndNames(t *testing.T) {
	env := NewEnvironment(nil)
	env.Declare("a", Undefined, true)
	env.Declare("b", Undefined, true)
	if !env.Delete("a") {
		t.Error("Delete(a) = false")
	}
	if env.Delete("a") {
		t.Error("second Delete(a) = true")
	}
	names := env.Names()
	sort.Strings(names)
	if len(names) != 1 || names[0] != "b" {
		t.Errorf("Names() = %v, want [b]", names)
	}
}
