package rule

import "sync/atomic"

// Store holds the active RuleSet. Readers take one snapshot per event and
// never see a half-applied reload.
type Store struct {
	current atomic.Pointer[RuleSet]
}

// NewStore creates a store; a nil initial set is replaced by an empty one
func NewStore(initial *RuleSet) *Store {
	s := &Store{}
	s.Swap(initial)
	return s
}

// Load returns the active snapshot, never nil
func (s *Store) Load() *RuleSet {
	return s.current.Load()
}

// Swap installs rs and returns the previous snapshot
func (s *Store) Swap(rs *RuleSet) *RuleSet {
	if rs == nil {
		rs = NewRuleSet(nil, nil)
	}
	return s.current.Swap(rs)
}
