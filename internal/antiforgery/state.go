package antiforgery

import "sync"

// StateStore is the in-memory cell holding the current token. It performs no
// validity checks; freshness decisions belong to the Manager, which is the
// only component that mutates the store.
type StateStore struct {
	mu  sync.Mutex
	tok Token
	ok  bool
}

// Read returns the current token, if any.
func (s *StateStore) Read() (Token, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tok, s.ok
}

// Write replaces the current token.
func (s *StateStore) Write(tok Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tok = tok
	s.ok = true
}

// Clear discards the current token. Clearing an empty store is a no-op.
func (s *StateStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tok = Token{}
	s.ok = false
}
