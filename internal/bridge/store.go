package bridge

import "sync"

// Store owns session bindings and the attachment set for one router.
// An attachment carries no id of its own; it always resolves through the
// binding so the two cannot diverge.
type Store struct {
	mu       sync.RWMutex
	bindings map[string]string
	attached map[string]struct{}
}

func NewStore() *Store {
	return &Store{
		bindings: make(map[string]string),
		attached: make(map[string]struct{}),
	}
}

func (s *Store) Binding(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bindings[key]
	return id, ok
}

// Bind sets or replaces the binding. An attached key stays attached.
func (s *Store) Bind(key, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[key] = id
}

// Clear drops the binding and any attachment. Reports whether a binding existed.
func (s *Store) Clear(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.bindings[key]
	delete(s.bindings, key)
	delete(s.attached, key)
	return ok
}

// Attach binds key to id and marks it for auto-forwarding.
func (s *Store) Attach(key, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[key] = id
	s.attached[key] = struct{}{}
}

// Detach removes the attachment, leaving the binding. Returns the id it was attached to.
func (s *Store) Detach(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attached[key]; !ok {
		return "", false
	}
	delete(s.attached, key)
	return s.bindings[key], true
}

// Attached returns the session id raw messages of key are forwarded to.
func (s *Store) Attached(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.attached[key]; !ok {
		return "", false
	}
	id, ok := s.bindings[key]
	return id, ok
}

// Reset empties the store; used on router shutdown.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings = make(map[string]string)
	s.attached = make(map[string]struct{})
}
