package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"log"
	"sort"
	"strconv"
	"time"

	"github.com/ompatel2019/toohak/internal/domain"
)

const (
	// CountdownDuration is the fixed delay between NEXT_QUESTION and the
	// question opening automatically.
	CountdownDuration = 3 * time.Second
	// MaxAutoStartNum bounds the auto-start player threshold.
	MaxAutoStartNum = 50
	// MaxActiveSessions caps concurrent non-ended sessions per quiz.
	MaxActiveSessions = 10
)

// SessionRepository abstracts how live sessions are stored and indexed.
type SessionRepository interface {
	Add(session *Session)
	Get(sessionID int64) (*Session, bool)
	FindByPlayer(playerID int64) (*Session, bool)
	IndexPlayer(playerID, sessionID int64)
	ListByQuiz(quizID string) domain.SessionList
	CountActive(quizID string) int
	Reset()
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// ResultArchive persists final results of finished sessions; best-effort.
type ResultArchive interface {
	StoreResults(ctx context.Context, quizID string, sessionID int64, results domain.FinalResults) error
}

// SessionService contains the live-session use cases: starting sessions,
// driving the state machine, player joins, answers, and results.
type SessionService struct {
	store     SessionRepository
	quizzes   QuizRepository
	timers    *TimerManager
	archive   ResultArchive
	countdown time.Duration
	now       func() time.Time
}

// Option customises a SessionService.
type Option func(*SessionService)

// WithCountdown overrides the question countdown; tests use short values.
func WithCountdown(d time.Duration) Option {
	return func(s *SessionService) { s.countdown = d }
}

// WithResultArchive wires a results sink written when a session reaches
// FINAL_RESULTS.
func WithResultArchive(a ResultArchive) Option {
	return func(s *SessionService) { s.archive = a }
}

// WithClock is test-only for deterministic answer timings.
func WithClock(now func() time.Time) Option {
	return func(s *SessionService) { s.now = now }
}

func NewSessionService(store SessionRepository, quizzes QuizRepository, opts ...Option) *SessionService {
	s := &SessionService{
		store:     store,
		quizzes:   quizzes,
		timers:    NewTimerManager(),
		countdown: CountdownDuration,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(id int64, quizID, ownerUserID string, autoStartNum int, quiz domain.Quiz) *Session {
	return newSession(id, quizID, ownerUserID, autoStartNum, quiz)
}

// StartSession creates a session in LOBBY for the given quiz. The quiz's
// question list is snapshotted into the session.
func (s *SessionService) StartSession(ctx context.Context, quizID, ownerUserID string, autoStartNum int) (int64, error) {
	if autoStartNum > MaxAutoStartNum {
		return 0, domain.ErrAutoStartTooHigh
	}
	if s.store.CountActive(quizID) >= MaxActiveSessions {
		return 0, domain.ErrTooManyActiveSessions
	}

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return 0, err
	}
	if len(quiz.Questions) == 0 {
		return 0, domain.ErrQuizHasNoQuestions
	}

	id := newID()
	for {
		if _, exists := s.store.Get(id); !exists {
			break
		}
		id = newID()
	}
	session := newSessionWithClock(id, quizID, ownerUserID, autoStartNum, quiz, s.now)
	s.store.Add(session)
	return id, nil
}

// ListSessions splits a quiz's sessions into active and ended.
func (s *SessionService) ListSessions(quizID string) domain.SessionList {
	return s.store.ListByQuiz(quizID)
}

// ApplyAction drives the session state machine with an admin action.
func (s *SessionService) ApplyAction(ctx context.Context, quizID string, sessionID int64, rawAction string) error {
	session, ok := s.store.Get(sessionID)
	if !ok || session.QuizID() != quizID {
		return domain.ErrSessionNotFound
	}
	action, err := domain.ParseAdminAction(rawAction)
	if err != nil {
		return err
	}

	adv, err := session.Apply(action, s.countdown)
	if err != nil {
		return err
	}
	s.dispatch(session, adv)

	if action == domain.ActionGoToFinalResults {
		s.archiveResults(ctx, session)
	}
	return nil
}

// dispatch schedules the timer a transition asked for, or clears the pending
// one for transitions into states that are not time-bound.
func (s *SessionService) dispatch(session *Session, adv *autoAdvance) {
	if adv == nil {
		s.timers.Cancel(session.ID())
		return
	}
	switch adv.kind {
	case autoOpenQuestion:
		gen := adv.gen
		s.timers.Schedule(session.ID(), adv.delay, func() {
			if next := session.AutoOpen(gen); next != nil {
				s.dispatch(session, next)
			}
		})
	case autoCloseQuestion:
		gen := adv.gen
		s.timers.Schedule(session.ID(), adv.delay, func() {
			session.AutoClose(gen)
		})
	}
}

func (s *SessionService) archiveResults(ctx context.Context, session *Session) {
	if s.archive == nil {
		return
	}
	results, err := session.FinalResults()
	if err != nil {
		return
	}
	if err := s.archive.StoreResults(ctx, session.QuizID(), session.ID(), results); err != nil {
		log.Printf("failed to archive results for session %d: %v", session.ID(), err)
	}
}

// SessionStatus returns the host view of a session.
func (s *SessionService) SessionStatus(quizID string, sessionID int64) (domain.SessionStatus, error) {
	session, ok := s.store.Get(sessionID)
	if !ok || session.QuizID() != quizID {
		return domain.SessionStatus{}, domain.ErrSessionNotFound
	}
	return session.Status(), nil
}

// JoinSession registers a player in a lobby. Reaching the auto-start
// threshold advances the session as if the host applied NEXT_QUESTION.
func (s *SessionService) JoinSession(sessionID int64, name string) (int64, error) {
	session, ok := s.store.Get(sessionID)
	if !ok {
		return 0, domain.ErrSessionNotFound
	}
	player, autoStart, err := session.Join(name)
	if err != nil {
		return 0, err
	}
	s.store.IndexPlayer(player.ID, sessionID)

	if autoStart {
		if adv, err := session.Apply(domain.ActionNextQuestion, s.countdown); err == nil {
			s.dispatch(session, adv)
		}
	}
	return player.ID, nil
}

// PlayerStatus reports the owning session's state to a joined player.
func (s *SessionService) PlayerStatus(playerID int64) (domain.PlayerStatus, error) {
	session, ok := s.store.FindByPlayer(playerID)
	if !ok {
		return domain.PlayerStatus{}, domain.ErrPlayerNotFound
	}
	return session.PlayerStatus(), nil
}

// QuestionInfo returns the correctness-stripped question view for a player.
func (s *SessionService) QuestionInfo(playerID int64, position int) (domain.QuestionView, error) {
	session, ok := s.store.FindByPlayer(playerID)
	if !ok {
		return domain.QuestionView{}, domain.ErrPlayerNotFound
	}
	return session.QuestionInfo(position)
}

// SubmitAnswer records a player's answer while the question is open.
func (s *SessionService) SubmitAnswer(playerID int64, position int, answerIDs []int64) error {
	session, ok := s.store.FindByPlayer(playerID)
	if !ok {
		return domain.ErrPlayerNotFound
	}
	return session.Submit(playerID, position, answerIDs)
}

// QuestionResult returns per-question aggregates during ANSWER_SHOW.
func (s *SessionService) QuestionResult(playerID int64, position int) (domain.QuestionResult, error) {
	session, ok := s.store.FindByPlayer(playerID)
	if !ok {
		return domain.QuestionResult{}, domain.ErrPlayerNotFound
	}
	return session.QuestionResult(position)
}

// FinalResults returns the ranked scoreboard once a session reached
// FINAL_RESULTS.
func (s *SessionService) FinalResults(quizID string, sessionID int64) (domain.FinalResults, error) {
	session, ok := s.store.Get(sessionID)
	if !ok || session.QuizID() != quizID {
		return domain.FinalResults{}, domain.ErrSessionNotFound
	}
	return session.FinalResults()
}

// FinalResultsForPlayer is the player-scoped variant of FinalResults.
func (s *SessionService) FinalResultsForPlayer(playerID int64) (domain.FinalResults, error) {
	session, ok := s.store.FindByPlayer(playerID)
	if !ok {
		return domain.FinalResults{}, domain.ErrPlayerNotFound
	}
	return session.FinalResults()
}

// ResultsCSV renders final results as CSV rows of name,score,rank. Rows are
// sorted by player name; rank comes from the score-descending order.
func (s *SessionService) ResultsCSV(quizID string, sessionID int64) ([]byte, error) {
	results, err := s.FinalResults(quizID, sessionID)
	if err != nil {
		return nil, err
	}

	rankOf := make(map[string]int, len(results.UsersRankedByScore))
	for i, p := range results.UsersRankedByScore {
		if _, ok := rankOf[p.Name]; !ok {
			rankOf[p.Name] = i + 1
		}
	}

	byName := append([]domain.RankedPlayer(nil), results.UsersRankedByScore...)
	sortRankedByName(byName)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, p := range byName {
		record := []string{p.Name, strconv.Itoa(p.Score), strconv.Itoa(rankOf[p.Name])}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sortRankedByName(players []domain.RankedPlayer) {
	sort.Slice(players, func(i, j int) bool {
		return players[i].Name < players[j].Name
	})
}

// SendChat posts a message to the player's session chat.
func (s *SessionService) SendChat(playerID int64, message string) error {
	session, ok := s.store.FindByPlayer(playerID)
	if !ok {
		return domain.ErrPlayerNotFound
	}
	return session.SendChat(playerID, message)
}

// ChatLog returns all chat messages in the player's session.
func (s *SessionService) ChatLog(playerID int64) ([]domain.ChatMessage, error) {
	session, ok := s.store.FindByPlayer(playerID)
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	return session.ChatLog(), nil
}

// Subscribe attaches an event feed to a session.
func (s *SessionService) Subscribe(sessionID int64) (<-chan domain.SessionEvent, func(), error) {
	session, ok := s.store.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// SubscribeAsPlayer attaches an event feed to the player's session.
func (s *SessionService) SubscribeAsPlayer(playerID int64) (<-chan domain.SessionEvent, func(), error) {
	session, ok := s.store.FindByPlayer(playerID)
	if !ok {
		return nil, nil, domain.ErrPlayerNotFound
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Clear cancels every pending timer and drops all sessions; the process-wide
// reset used between runs and by tests.
func (s *SessionService) Clear() {
	s.timers.CancelAll()
	s.store.Reset()
}
