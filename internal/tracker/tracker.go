// Package tracker records which entity ids have already been notified.
//
// A NotifiedSet lives as long as the scheduler that owns it. Entries are only
// ever removed by Forget, which callers use when the entity itself is deleted;
// the scheduler never removes entries.
package tracker

import "sync"

type NotifiedSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func New() *NotifiedSet {
	return &NotifiedSet{ids: make(map[string]struct{})}
}

func (s *NotifiedSet) HasFired(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// MarkFired records id. Marking an id twice is a no-op.
func (s *NotifiedSet) MarkFired(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = struct{}{}
}

func (s *NotifiedSet) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}

func (s *NotifiedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
