package storage

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/aliskhannn/sophia-quiz-bot/internal/domain/entities"
)

type entry struct {
	session  *entities.QuizSession
	lastSeen time.Time
}

// QuizStorage provides in-memory storage for active quiz sessions by user ID.
type QuizStorage struct {
	mu       sync.RWMutex
	sessions map[int64]entry
	seq      atomic.Int64
	now      func() time.Time
}

// NewQuizStorage creates a new QuizStorage.
func NewQuizStorage() *QuizStorage {
	return &QuizStorage{
		sessions: make(map[int64]entry),
		now:      time.Now,
	}
}

// NextID returns a new unique session ID.
func (s *QuizStorage) NextID() int64 {
	return s.seq.Add(1)
}

// Store saves the session for its user, replacing any previous one.
func (s *QuizStorage) Store(session *entities.QuizSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.UserID] = entry{session: session, lastSeen: s.now()}
}

// Get retrieves the session for a given user and refreshes its idle timer.
func (s *QuizStorage) Get(userID int64) (*entities.QuizSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[userID]
	if !ok {
		return nil, false
	}
	e.lastSeen = s.now()
	s.sessions[userID] = e
	return e.session, true
}

// Peek retrieves the session without refreshing its idle timer.
func (s *QuizStorage) Peek(userID int64) (*entities.QuizSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[userID]
	return e.session, ok
}

// Delete removes the session for a given user.
func (s *QuizStorage) Delete(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// PurgeIdle removes sessions not touched for longer than ttl and returns
// the user IDs that were removed.
func (s *QuizStorage) PurgeIdle(ttl time.Duration) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-ttl)
	var purged []int64
	for userID, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(s.sessions, userID)
			purged = append(purged, userID)
		}
	}
	return purged
}

// Len returns the number of stored sessions.
func (s *QuizStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
