package event

import "strings"

// ValueFunc extracts a display string from a payload
type ValueFunc func(Payload) string

// Placeholder is a named value referenced in templates as {name}
type Placeholder struct {
	Name  string
	Value ValueFunc
}

// PlaceholderSet is an insertion-ordered set of placeholders keyed by name.
// It is filled while variants are constructed and only read afterwards.
type PlaceholderSet struct {
	order  []string
	byName map[string]ValueFunc
}

// NewPlaceholderSet creates an empty set
func NewPlaceholderSet() *PlaceholderSet {
	return &PlaceholderSet{
		byName: make(map[string]ValueFunc),
	}
}

// Add inserts a placeholder or replaces the function of an existing one.
// A replaced placeholder keeps its original position.
func (s *PlaceholderSet) Add(name string, fn ValueFunc) {
	if _, exists := s.byName[name]; !exists {
		s.order = append(s.order, name)
	}
	s.byName[name] = fn
}

// Lookup returns the value function registered under name
func (s *PlaceholderSet) Lookup(name string) (ValueFunc, bool) {
	fn, ok := s.byName[name]
	return fn, ok
}

// Names returns placeholder names in insertion order
func (s *PlaceholderSet) Names() []string {
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// Placeholders returns the set as a slice in insertion order
func (s *PlaceholderSet) Placeholders() []Placeholder {
	out := make([]Placeholder, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, Placeholder{Name: name, Value: s.byName[name]})
	}
	return out
}

func (s *PlaceholderSet) Len() int {
	return len(s.order)
}

// ResolveAll substitutes every registered {name} token in template.
// Unknown tokens are left as written.
func (s *PlaceholderSet) ResolveAll(template string, p Payload) string {
	if !strings.Contains(template, "{") {
		return template
	}

	result := template
	for _, name := range s.order {
		token := Token(name)
		if !strings.Contains(result, token) {
			continue
		}
		result = strings.ReplaceAll(result, token, s.byName[name](p))
	}
	return result
}

// Token returns the template form of a placeholder name
func Token(name string) string {
	return "{" + name + "}"
}
