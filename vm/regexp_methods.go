package vm

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

// regexpMatchTimeout bounds a single match so catastrophic backtracking
// cannot hang the VM.
const regexpMatchTimeout = 5 * time.Second

// regexpData is the compiled state of a RegExp object.
type regexpData struct {
	source string
	flags  string
	re     *regexp2.Regexp

	global     bool
	ignoreCase bool
	multiline  bool
	dotAll     bool
	sticky     bool
}

// compileRegExp validates flags and compiles pattern with ECMAScript
// semantics.
func compileRegExp(pattern, flags string) (*regexpData, error) {
	d := &regexpData{source: pattern, flags: flags}
	opts := regexp2.RegexOptions(regexp2.ECMAScript)
	for _, f := range flags {
		var seen *bool
		switch f {
		case 'g':
			seen = &d.global
		case 'i':
			seen = &d.ignoreCase
			opts |= regexp2.IgnoreCase
		case 'm':
			seen = &d.multiline
			opts |= regexp2.Multiline
		case 's':
			seen = &d.dotAll
			opts |= regexp2.Singleline
		case 'y':
			seen = &d.sticky
		case 'u':
			continue
		default:
			return nil, Errorf(SyntaxError, "Invalid regular expression flags '%s'", flags)
		}
		if *seen {
			return nil, Errorf(SyntaxError, "Invalid regular expression flags '%s'", flags)
		}
		*seen = true
	}
	if d.dotAll {
		// regexp2 rejects Singleline together with ECMAScript.
		opts &^= regexp2.ECMAScript
	}
	re, err := regexp2.Compile(pattern, opts)
	if err != nil {
		return nil, Errorf(SyntaxError, "Invalid regular expression: /%s/: %v", pattern, err)
	}
	re.MatchTimeout = regexpMatchTimeout
	d.re = re
	return d, nil
}

// newRegExp allocates a RegExp object.
func (vm *VM) newRegExp(pattern, flags string) (Value, error) {
	d, err := compileRegExp(pattern, flags)
	if err != nil {
		return Undefined, err
	}
	o := Object{Class: ClassRegExp, Proto: vm.realm.regexpProto, regexp: d}
	o.Props.Define("lastIndex", Int(0), PropWritable)
	o.Props.Define("source", String(pattern), 0)
	o.Props.Define("flags", String(flags), 0)
	o.Props.Define("global", Bool(d.global), 0)
	o.Props.Define("ignoreCase", Bool(d.ignoreCase), 0)
	o.Props.Define("multiline", Bool(d.multiline), 0)
	o.Props.Define("sticky", Bool(d.sticky), 0)
	return vm.alloc(o)
}

// regexpOf returns the compiled state of a RegExp value, or nil.
func regexpOf(v Value) *regexpData {
	if o := v.Object(); o != nil && o.Class == ClassRegExp {
		return o.regexp
	}
	return nil
}

func (vm *VM) installRegExp() {
	rp := vm.realm.regexpProto
	construct := func(vm *VM, _ Value, args []Value) (Value, error) {
		p := arg(args, 0)
		pattern, flags := "", ""
		if d := regexpOf(p); d != nil {
			pattern, flags = d.source, d.flags
		} else if !p.IsUndefined() {
			s, err := vm.ToString(p)
			if err != nil {
				return Undefined, err
			}
			pattern = s
		}
		if f := arg(args, 1); !f.IsUndefined() {
			s, err := vm.ToString(f)
			if err != nil {
				return Undefined, err
			}
			flags = s
		}
		if pattern == "" {
			pattern = "(?:)"
		}
		return vm.newRegExp(pattern, flags)
	}
	ctor := vm.constructor("RegExp", 2, rp, construct, construct)
	vm.defineMethods(rp, regexpMethods)
	vm.builtins.Declare("RegExp", ctor, true)
}

func thisRegExp(vm *VM, this Value, method string) (*regexpData, error) {
	d := regexpOf(this)
	if d == nil {
		return nil, vm.throwError(TypeError, "RegExp.prototype.%s called on incompatible receiver", method)
	}
	return d, nil
}

var regexpMethods = []builtinMethod{
	{"exec", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		if _, err := thisRegExp(vm, this, "exec"); err != nil {
			return Undefined, err
		}
		s, err := vm.ToString(arg(args, 0))
		if err != nil {
			return Undefined, err
		}
		return vm.regexpExec(this, s)
	}},
	{"test", 1, func(vm *VM, this Value, args []Value) (Value, error) {
		if _, err := thisRegExp(vm, this, "test"); err != nil {
			return Undefined, err
		}
		s, err := vm.ToString(arg(args, 0))
		if err != nil {
			return Undefined, err
		}
		r, err := vm.regexpExec(this, s)
		if err != nil {
			return Undefined, err
		}
		return Bool(!r.IsNull()), nil
	}},
	{"toString", 0, func(vm *VM, this Value, _ []Value) (Value, error) {
		d, err := thisRegExp(vm, this, "toString")
		if err != nil {
			return Undefined, err
		}
		return String("/" + d.source + "/" + d.flags), nil
	}},
}

// ---------------------------------------------------------------------------
// Matching
// ---------------------------------------------------------------------------

// runeToUnit converts a rune offset in s to a UTF-16 offset.
func runeToUnit(s string, runes int) int {
	if isASCII(s) {
		return runes
	}
	units := 0
	for i, r := range []rune(s) {
		if i >= runes {
			break
		}
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
	}
	return units
}

// unitToRune converts a UTF-16 offset in s to a rune offset.
func unitToRune(s string, units int) int {
	if isASCII(s) {
		return units
	}
	n, u := 0, 0
	for _, r := range s {
		if u >= units {
			break
		}
		if r > 0xFFFF {
			u += 2
		} else {
			u++
		}
		n++
	}
	return n
}

// findAt runs d against s from rune offset start.
func (vm *VM) findAt(d *regexpData, s string, start int) (*regexp2.Match, error) {
	if start > utf8.RuneCountInString(s) {
		return nil, nil
	}
	m, err := d.re.FindStringMatchStartingAt(s, start)
	if err != nil {
		return nil, vm.throwError(RangeError, "regular expression match failed: %v", err)
	}
	return m, nil
}

// regexpExec implements RegExp.prototype.exec, honouring lastIndex for
// global and sticky expressions.
func (vm *VM) regexpExec(rv Value, s string) (Value, error) {
	d := regexpOf(rv)
	start := 0
	tracked := d.global || d.sticky
	if tracked {
		li, err := vm.getProperty(rv, "lastIndex")
		if err != nil {
			return Undefined, err
		}
		f, err := vm.ToNumber(li)
		if err != nil {
			return Undefined, err
		}
		n := int(ToIntegerOrInfinity(f))
		if n < 0 {
			n = 0
		}
		if n > StringLength(s) {
			return Null, vm.setProperty(rv, "lastIndex", Int(0))
		}
		start = unitToRune(s, n)
	}
	m, err := vm.findAt(d, s, start)
	if err != nil {
		return Undefined, err
	}
	if m == nil || (d.sticky && m.Index != start) {
		if tracked {
			return Null, vm.setProperty(rv, "lastIndex", Int(0))
		}
		return Null, nil
	}
	if tracked {
		end := m.Index + m.Length
		if err := vm.setProperty(rv, "lastIndex", Int(runeToUnit(s, end))); err != nil {
			return Undefined, err
		}
	}
	return vm.matchArray(m, s)
}

// matchArray builds the exec result: the match, its groups, index and
// input.
func (vm *VM) matchArray(m *regexp2.Match, s string) (Value, error) {
	groups := m.Groups()
	elems := make([]Value, len(groups))
	var named *PropertyMap
	for i, g := range groups {
		if len(g.Captures) == 0 {
			elems[i] = Undefined
		} else {
			elems[i] = String(g.String())
		}
		if i > 0 && g.Name != "" && !isDigits(g.Name) {
			if named == nil {
				named = NewPropertyMap()
			}
			named.Set(g.Name, elems[i])
		}
	}
	arr, err := vm.NewArray(elems)
	if err != nil {
		return Undefined, err
	}
	o := arr.Object()
	o.Props.Set("index", Int(runeToUnit(s, m.Index)))
	o.Props.Set("input", String(s))
	if named != nil {
		g, err := vm.NewObject()
		if err != nil {
			return Undefined, err
		}
		named.Each(func(k string, v Value, _ PropFlags) { g.Object().Props.Set(k, v) })
		o.Props.Set("groups", g)
	} else {
		o.Props.Set("groups", Undefined)
	}
	return arr, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// allMatches returns every non-overlapping match of d in s.
func (vm *VM) allMatches(d *regexpData, s string) ([]*regexp2.Match, error) {
	var out []*regexp2.Match
	total := utf8.RuneCountInString(s)
	pos := 0
	for pos <= total {
		m, err := vm.findAt(d, s, pos)
		if err != nil {
			return nil, err
		}
		if m == nil {
			break
		}
		out = append(out, m)
		next := m.Index + m.Length
		if m.Length == 0 {
			next++
		}
		pos = next
	}
	return out, nil
}

// expandReplacement substitutes $-patterns in a replacement template.
func expandReplacement(tmpl, matched, s string, position int, captures []Value, named Value, vm *VM) string {
	if !strings.Contains(tmpl, "$") {
		return tmpl
	}
	var sb strings.Builder
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		if c != '$' || i+1 >= len(tmpl) {
			sb.WriteByte(c)
			continue
		}
		n := tmpl[i+1]
		switch {
		case n == '$':
			sb.WriteByte('$')
			i++
		case n == '&':
			sb.WriteString(matched)
			i++
		case n == '`':
			sb.WriteString(utf16Slice(s, 0, position))
			i++
		case n == '\'':
			end := position + StringLength(matched)
			if end < StringLength(s) {
				sb.WriteString(utf16Slice(s, end, StringLength(s)))
			}
			i++
		case n >= '0' && n <= '9':
			idx := int(n - '0')
			width := 1
			if i+2 < len(tmpl) && tmpl[i+2] >= '0' && tmpl[i+2] <= '9' {
				if two := idx*10 + int(tmpl[i+2]-'0'); two >= 1 && two <= len(captures) {
					idx, width = two, 2
				}
			}
			if idx < 1 || idx > len(captures) {
				sb.WriteByte(c)
				continue
			}
			if v := captures[idx-1]; !v.IsUndefined() {
				sb.WriteString(v.str)
			}
			i += width
		case n == '<' && !named.IsUndefined():
			end := strings.IndexByte(tmpl[i+2:], '>')
			if end < 0 {
				sb.WriteByte(c)
				continue
			}
			name := tmpl[i+2 : i+2+end]
			if v, err := vm.getProperty(named, name); err == nil && !v.IsUndefined() {
				sb.WriteString(v.String())
			}
			i += 2 + end
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// captureValues returns the capture groups of a match (group 0 excluded)
// and a property map of the named groups, or Undefined when there are none.
func captureValues(groups []regexp2.Group) ([]Value, Value) {
	caps := make([]Value, 0, len(groups))
	var named *PropertyMap
	for i, g := range groups {
		if i == 0 {
			continue
		}
		v := Undefined
		if len(g.Captures) > 0 {
			v = String(g.String())
		}
		caps = append(caps, v)
		if g.Name != "" && !isDigits(g.Name) {
			if named == nil {
				named = NewPropertyMap()
			}
			named.Set(g.Name, v)
		}
	}
	if named == nil {
		return caps, Undefined
	}
	return caps, NativeObjectValue(named)
}
