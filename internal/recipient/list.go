package recipient

import (
	"strings"
	"sync"
)

// List is the ordered, de-duplicated set of players commands are expanded
// for. It is safe for concurrent use.
type List struct {
	mu    sync.RWMutex
	names []string
}

// NewList creates a list seeded with names. Blank and repeated names are
// dropped.
func NewList(names []string) *List {
	l := &List{}
	l.Replace(names)
	return l
}

// Add appends name. It reports false when the name is blank or present.
func (l *List) Add(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if indexOf(l.names, name) >= 0 {
		return false
	}
	l.names = append(l.names, name)
	return true
}

// Remove deletes name. It reports false when the name was not present.
func (l *List) Remove(name string) bool {
	name = strings.TrimSpace(name)

	l.mu.Lock()
	defer l.mu.Unlock()
	i := indexOf(l.names, name)
	if i < 0 {
		return false
	}
	l.names = append(l.names[:i:i], l.names[i+1:]...)
	return true
}

// Replace swaps the whole list, used when the configuration is reloaded
func (l *List) Replace(names []string) {
	cleaned := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || indexOf(cleaned, n) >= 0 {
			continue
		}
		cleaned = append(cleaned, n)
	}

	l.mu.Lock()
	l.names = cleaned
	l.mu.Unlock()
}

// Snapshot returns a copy of the current names in order
func (l *List) Snapshot() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.names)
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
