// ABOUTME: In-memory per-user conversation sessions with two-level locking
// ABOUTME: The store lock guards map membership, each session's lock guards its transcript

package session

import (
	"strings"
	"sync"
)

// Session holds one user's accumulated transcript.
// A Session stays usable after it is cleared from its Store; handlers that
// already hold it keep appending to a detached transcript.
type Session struct {
	mu         sync.Mutex
	transcript strings.Builder
}

// Transcript returns a snapshot of the current transcript.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.String()
}

// Append adds text to the end of the transcript.
func (s *Session) Append(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript.WriteString(text)
}

// Store maps user identities to sessions. It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the session for user, inserting an empty one if none exists.
func (s *Store) GetOrCreate(user string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[user]
	if !ok {
		sess = &Session{}
		s.sessions[user] = sess
	}
	return sess
}

// Clear removes the user's session entirely. The next GetOrCreate starts fresh.
func (s *Store) Clear(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, user)
}

// Append adds text to sess under the session's own lock.
// The store lock is never taken here.
func (s *Store) Append(sess *Session, text string) {
	sess.Append(text)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
