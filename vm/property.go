package vm

import "strings"

// PropFlags are per-property attributes.
type PropFlags uint8

const (
	PropWritable PropFlags = 1 << iota
	PropEnumerable
	PropConfigurable

	PropDefault = PropWritable | PropEnumerable | PropConfigurable
	// PropHidden is used for built-in methods: writable, configurable, not enumerable.
	PropHidden = PropWritable | PropConfigurable
)

// symbolKeyPrefix marks property keys that come from Symbol values. Such
// keys never appear in enumeration.
const symbolKeyPrefix = "\x00@@"

type property struct {
	key   string
	value Value
	flags PropFlags
}

// PropertyMap is an insertion-ordered string-keyed map of properties.
type PropertyMap struct {
	props []property
	index map[string]int
}

// NewPropertyMap returns an empty map.
func NewPropertyMap() *PropertyMap {
	return &PropertyMap{}
}

// Len returns the number of properties.
func (m *PropertyMap) Len() int { return len(m.props) }

// Get returns the value stored under key.
func (m *PropertyMap) Get(key string) (Value, bool) {
	if i, ok := m.index[key]; ok {
		return m.props[i].value, true
	}
	return Undefined, false
}

// Has reports whether key is present.
func (m *PropertyMap) Has(key string) bool {
	_, ok := m.index[key]
	return ok
}

// Flags returns the attributes of key.
func (m *PropertyMap) Flags(key string) (PropFlags, bool) {
	if i, ok := m.index[key]; ok {
		return m.props[i].flags, true
	}
	return 0, false
}

// Set updates an existing property or adds a new one with default
// attributes. It reports false if the property exists and is read-only.
func (m *PropertyMap) Set(key string, v Value) bool {
	if i, ok := m.index[key]; ok {
		if m.props[i].flags&PropWritable == 0 {
			return false
		}
		m.props[i].value = v
		return true
	}
	m.Define(key, v, PropDefault)
	return true
}

// Define adds or replaces key with the given attributes, ignoring any
// read-only state.
func (m *PropertyMap) Define(key string, v Value, flags PropFlags) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if i, ok := m.index[key]; ok {
		m.props[i].value = v
		m.props[i].flags = flags
		return
	}
	m.index[key] = len(m.props)
	m.props = append(m.props, property{key: key, value: v, flags: flags})
}

// SetFlags replaces the attributes of an existing property.
func (m *PropertyMap) SetFlags(key string, flags PropFlags) {
	if i, ok := m.index[key]; ok {
		m.props[i].flags = flags
	}
}

// Delete removes key. It reports false if the property is not
// configurable.
func (m *PropertyMap) Delete(key string) bool {
	i, ok := m.index[key]
	if !ok {
		return true
	}
	if m.props[i].flags&PropConfigurable == 0 {
		return false
	}
	m.props = append(m.props[:i], m.props[i+1:]...)
	delete(m.index, key)
	for j := i; j < len(m.props); j++ {
		m.index[m.props[j].key] = j
	}
	return true
}

// Keys returns every string key in insertion order.
func (m *PropertyMap) Keys() []string {
	keys := make([]string, 0, len(m.props))
	for _, p := range m.props {
		if strings.HasPrefix(p.key, symbolKeyPrefix) {
			continue
		}
		keys = append(keys, p.key)
	}
	return keys
}

// EnumerableKeys returns the enumerable string keys in insertion order.
func (m *PropertyMap) EnumerableKeys() []string {
	keys := make([]string, 0, len(m.props))
	for _, p := range m.props {
		if p.flags&PropEnumerable == 0 || strings.HasPrefix(p.key, symbolKeyPrefix) {
			continue
		}
		keys = append(keys, p.key)
	}
	return keys
}

// Each calls fn for every property in insertion order.
func (m *PropertyMap) Each(fn func(key string, v Value, flags PropFlags)) {
	for _, p := range m.props {
		fn(p.key, p.value, p.flags)
	}
}

// clearAllFlags clears the given bits on every property.
func (m *PropertyMap) clearAllFlags(bits PropFlags) {
	for i := range m.props {
		m.props[i].flags &^= bits
	}
}

func (m *PropertyMap) allFlagsClear(bits PropFlags) bool {
	for _, p := range m.props {
		if p.flags&bits != 0 {
			return false
		}
	}
	return true
}
