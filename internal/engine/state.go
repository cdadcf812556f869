package engine

import (
	"sync"

	"github.com/bizowl/support-assistant/internal/faq"
)

// sessionState is the transient, session-scoped navigation state: the
// recorded menu path, the active FAQ category and the per-category
// asked-sets. It lives in-process keyed by session id; persisted
// conversation content lives in the chat store.
//
// Concurrent turns bearing the same session id are not serialized: turn
// ordering is last-write-wins across simultaneous tabs. The per-state mutex
// guards field and map integrity only; it is held for the state transition,
// never across store or generation calls.
type sessionState struct {
	mu sync.Mutex

	Path     []string
	Category string
	// Asked holds, per category, the question ids already shown. A set
	// only grows until reset clears the whole state.
	Asked map[string]map[string]struct{}
	// Shown records the question/answer pairs already presented.
	Shown []faq.Entry
}

func newSessionState() *sessionState {
	return &sessionState{Asked: make(map[string]map[string]struct{})}
}

func (s *sessionState) asked(category string) map[string]struct{} {
	set, ok := s.Asked[category]
	if !ok {
		set = make(map[string]struct{})
		s.Asked[category] = set
	}
	return set
}

// states is a mutex-guarded session-state registry. Each visitor gets their
// own entry; there is no process-wide shared navigation state.
type states struct {
	mu sync.Mutex
	m  map[string]*sessionState
}

func newStates() *states {
	return &states{m: make(map[string]*sessionState)}
}

func (s *states) get(id string) *sessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[id]
	if !ok {
		st = newSessionState()
		s.m[id] = st
	}
	return st
}

func (s *states) drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
}
