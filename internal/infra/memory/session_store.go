package memory

import (
	"sort"
	"sync"

	"github.com/ompatel2019/toohak/internal/app"
	"github.com/ompatel2019/toohak/internal/domain"
)

// SessionStore is the in-memory implementation of app.SessionRepository.
// Sessions and the player index are plain maps so every lookup is O(1);
// sessions are removed only by Reset.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[int64]*app.Session
	byPlayer map[int64]int64
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[int64]*app.Session),
		byPlayer: make(map[int64]int64),
	}
}

func (s *SessionStore) Add(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
}

func (s *SessionStore) Get(sessionID int64) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) FindByPlayer(playerID int64) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessionID, ok := s.byPlayer[playerID]
	if !ok {
		return nil, false
	}
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) IndexPlayer(playerID, sessionID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byPlayer[playerID] = sessionID
}

// ListByQuiz returns the quiz's session ids split by liveness, sorted
// ascending for stable output.
func (s *SessionStore) ListByQuiz(quizID string) domain.SessionList {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := domain.SessionList{
		ActiveSessions:   []int64{},
		InactiveSessions: []int64{},
	}
	for id, session := range s.sessions {
		if session.QuizID() != quizID {
			continue
		}
		if session.State() == domain.StateEnd {
			list.InactiveSessions = append(list.InactiveSessions, id)
		} else {
			list.ActiveSessions = append(list.ActiveSessions, id)
		}
	}
	sortIDs(list.ActiveSessions)
	sortIDs(list.InactiveSessions)
	return list
}

func (s *SessionStore) CountActive(quizID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, session := range s.sessions {
		if session.QuizID() == quizID && session.State() != domain.StateEnd {
			count++
		}
	}
	return count
}

func (s *SessionStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[int64]*app.Session)
	s.byPlayer = make(map[int64]int64)
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
