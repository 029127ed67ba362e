package app

import (
	"sort"
	"sync"
	"time"

	"github.com/ompatel2019/toohak/internal/domain"
)

// autoKind names the transition a pending timer will fire.
type autoKind int

const (
	autoOpenQuestion autoKind = iota + 1
	autoCloseQuestion
)

// autoAdvance asks the service to schedule a timer-driven transition.
// gen is the session's timer generation at scheduling time; a callback whose
// gen no longer matches lost a race with a later transition and must not act.
type autoAdvance struct {
	kind  autoKind
	delay time.Duration
	gen   uint64
}

// Session is one live run-through of a quiz. The quiz content is snapshotted
// at start time and read-only afterwards. All mutable state is guarded by mu;
// timer callbacks take the same lock, so admin actions and auto-transitions
// are fully serialised per session.
type Session struct {
	id           int64
	quizID       string
	ownerUserID  string
	autoStartNum int
	quiz         domain.Quiz

	mu          sync.Mutex
	state       domain.SessionState
	atQuestion  int // 1-indexed once a question is active, 0 otherwise
	players     []*domain.Player
	answers     []domain.AnswerSubmission
	chat        []domain.ChatMessage
	scored      map[int]bool
	openedAt    time.Time
	timerGen    uint64
	now         func() time.Time
	subscribers map[chan domain.SessionEvent]struct{}
}

func newSession(id int64, quizID, ownerUserID string, autoStartNum int, quiz domain.Quiz) *Session {
	return newSessionWithClock(id, quizID, ownerUserID, autoStartNum, quiz, time.Now)
}

// newSessionWithClock allows deterministic answer timings in tests.
func newSessionWithClock(id int64, quizID, ownerUserID string, autoStartNum int, quiz domain.Quiz, now func() time.Time) *Session {
	return &Session{
		id:           id,
		quizID:       quizID,
		ownerUserID:  ownerUserID,
		autoStartNum: autoStartNum,
		quiz:         quiz,
		state:        domain.StateLobby,
		scored:       make(map[int]bool),
		now:          now,
		subscribers:  make(map[chan domain.SessionEvent]struct{}),
	}
}

func (s *Session) ID() int64      { return s.id }
func (s *Session) QuizID() string { return s.quizID }
func (s *Session) Owner() string  { return s.ownerUserID }

// State reports the current lifecycle state.
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Apply validates and performs an admin action. On success it returns the
// timer the service must schedule, or nil when the new state is not
// time-bound. Bumping timerGen first invalidates any pending timer callback
// even if its Stop raced with the firing goroutine.
func (s *Session) Apply(action domain.AdminAction, countdown time.Duration) (*autoAdvance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !actionAllowed(s.state, action) {
		return nil, domain.ErrActionNotAllowed
	}
	s.timerGen++

	var adv *autoAdvance
	switch action {
	case domain.ActionEnd:
		s.state = domain.StateEnd
		s.atQuestion = 0
	case domain.ActionGoToFinalResults:
		s.state = domain.StateFinalResults
		s.atQuestion = 0
	case domain.ActionGoToAnswer:
		s.enterAnswerShowLocked()
	case domain.ActionNextQuestion:
		s.state = domain.StateQuestionCountdown
		adv = &autoAdvance{kind: autoOpenQuestion, delay: countdown, gen: s.timerGen}
	case domain.ActionSkipCountdown:
		adv = s.openQuestionLocked()
	}

	s.broadcastLocked(domain.SessionEvent{Type: "state", State: s.state, AtQuestion: s.atQuestion})
	return adv, nil
}

// AutoOpen is the countdown-expiry transition into QUESTION_OPEN. It returns
// the question-close timer to chain, or nil when the callback is stale.
func (s *Session) AutoOpen(gen uint64) *autoAdvance {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.timerGen || s.state != domain.StateQuestionCountdown {
		return nil
	}
	adv := s.openQuestionLocked()
	s.broadcastLocked(domain.SessionEvent{Type: "state", State: s.state, AtQuestion: s.atQuestion})
	return adv
}

// AutoClose is the question-duration-expiry transition into QUESTION_CLOSE.
func (s *Session) AutoClose(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.timerGen || s.state != domain.StateQuestionOpen {
		return
	}
	s.state = domain.StateQuestionClose
	s.broadcastLocked(domain.SessionEvent{Type: "state", State: s.state, AtQuestion: s.atQuestion})
}

// openQuestionLocked activates the next question. The increment happens here
// and only here, so the admin skip and the countdown timeout (which cancel
// each other) can never double-advance the position.
func (s *Session) openQuestionLocked() *autoAdvance {
	s.atQuestion++
	s.state = domain.StateQuestionOpen
	s.openedAt = s.now()
	duration := time.Duration(s.quiz.Questions[s.atQuestion-1].DurationSeconds) * time.Second
	return &autoAdvance{kind: autoCloseQuestion, delay: duration, gen: s.timerGen}
}

// enterAnswerShowLocked reveals answers and awards scores for the current
// question. A submission scores the question's full points when its answer-id
// set exactly matches the correct set; awarding runs at most once per question.
func (s *Session) enterAnswerShowLocked() {
	s.state = domain.StateAnswerShow
	pos := s.atQuestion
	if pos < 1 || pos > len(s.quiz.Questions) || s.scored[pos] {
		return
	}
	s.scored[pos] = true

	question := s.quiz.Questions[pos-1]
	correct := question.CorrectAnswerIDs()
	for _, sub := range s.answers {
		if sub.QuestionID != question.ID {
			continue
		}
		if !exactAnswerMatch(sub.AnswerIDs, correct) {
			continue
		}
		for _, p := range s.players {
			if p.ID == sub.PlayerID {
				p.Score += question.Points
				break
			}
		}
	}
}

func exactAnswerMatch(ids []int64, correct map[int64]bool) bool {
	if len(ids) != len(correct) {
		return false
	}
	for _, id := range ids {
		if !correct[id] {
			return false
		}
	}
	return true
}

// Join adds a player while the session is in the lobby. An empty name gets a
// generated placeholder. The second return reports whether the join filled
// the auto-start threshold.
func (s *Session) Join(name string) (*domain.Player, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateLobby {
		return nil, false, domain.ErrWrongState
	}

	if name == "" {
		name = generatePlayerName()
		for s.hasPlayerNameLocked(name) {
			name = generatePlayerName()
		}
	} else if s.hasPlayerNameLocked(name) {
		return nil, false, domain.ErrDuplicatePlayerName
	}

	id := newID()
	for s.hasPlayerIDLocked(id) {
		id = newID()
	}
	player := &domain.Player{ID: id, Name: name}
	s.players = append(s.players, player)

	s.broadcastLocked(domain.SessionEvent{Type: "players", Players: s.playerNamesLocked(), AtQuestion: s.atQuestion})

	autoStart := s.autoStartNum > 0 && len(s.players) >= s.autoStartNum
	return player, autoStart, nil
}

func (s *Session) hasPlayerNameLocked(name string) bool {
	for _, p := range s.players {
		if p.Name == name {
			return true
		}
	}
	return false
}

func (s *Session) hasPlayerIDLocked(id int64) bool {
	for _, p := range s.players {
		if p.ID == id {
			return true
		}
	}
	return false
}

func (s *Session) playerNamesLocked() []string {
	names := make([]string, 0, len(s.players))
	for _, p := range s.players {
		names = append(names, p.Name)
	}
	return names
}

// Submit records a player's answer to the question at the given 1-indexed
// position. A resubmission for the same question replaces the earlier record.
func (s *Session) Submit(playerID int64, position int, answerIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if position < 1 || position > len(s.quiz.Questions) {
		return domain.ErrInvalidPosition
	}
	if s.state != domain.StateQuestionOpen {
		return domain.ErrWrongState
	}
	if s.atQuestion != position {
		return domain.ErrPositionMismatch
	}

	question := s.quiz.Questions[position-1]
	if len(answerIDs) == 0 {
		return domain.ErrInvalidAnswers
	}
	valid := make(map[int64]bool, len(question.Answers))
	for _, a := range question.Answers {
		valid[a.ID] = true
	}
	seen := make(map[int64]bool, len(answerIDs))
	for _, id := range answerIDs {
		if !valid[id] || seen[id] {
			return domain.ErrInvalidAnswers
		}
		seen[id] = true
	}

	sub := domain.AnswerSubmission{
		PlayerID:         playerID,
		QuestionID:       question.ID,
		AnswerIDs:        append([]int64(nil), answerIDs...),
		TimeTakenSeconds: s.now().Sub(s.openedAt).Seconds(),
	}
	for i, existing := range s.answers {
		if existing.PlayerID == playerID && existing.QuestionID == question.ID {
			s.answers[i] = sub
			return nil
		}
	}
	s.answers = append(s.answers, sub)
	return nil
}

// QuestionInfo returns the player view of the question at position. Blocked
// in LOBBY and END; otherwise only position bookkeeping is checked, matching
// the submit gating minus the open-window requirement.
func (s *Session) QuestionInfo(position int) (domain.QuestionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if position < 1 || position > len(s.quiz.Questions) {
		return domain.QuestionView{}, domain.ErrInvalidPosition
	}
	if s.state == domain.StateLobby || s.state == domain.StateEnd {
		return domain.QuestionView{}, domain.ErrWrongState
	}
	if s.atQuestion != position {
		return domain.QuestionView{}, domain.ErrPositionMismatch
	}

	question := s.quiz.Questions[position-1]
	view := domain.QuestionView{
		QuestionID:   question.ID,
		Prompt:       question.Prompt,
		Duration:     question.DurationSeconds,
		ThumbnailURL: question.ThumbnailURL,
		Points:       question.Points,
		Answers:      make([]domain.AnswerView, 0, len(question.Answers)),
	}
	for _, a := range question.Answers {
		view.Answers = append(view.Answers, domain.AnswerView{ID: a.ID, Text: a.Text, Colour: a.Colour})
	}
	return view, nil
}

// QuestionResult aggregates submissions for the question at position.
// Only available while the session shows answers for that question.
func (s *Session) QuestionResult(position int) (domain.QuestionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if position < 1 || position > len(s.quiz.Questions) {
		return domain.QuestionResult{}, domain.ErrInvalidPosition
	}
	if s.state != domain.StateAnswerShow {
		return domain.QuestionResult{}, domain.ErrWrongState
	}
	if s.atQuestion != position {
		return domain.QuestionResult{}, domain.ErrPositionMismatch
	}

	return s.aggregateQuestionLocked(s.quiz.Questions[position-1]), nil
}

// FinalResults ranks players by score (ties keep join order) and aggregates
// every question in quiz order. Requires FINAL_RESULTS state.
func (s *Session) FinalResults() (domain.FinalResults, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateFinalResults {
		return domain.FinalResults{}, domain.ErrWrongState
	}

	ranking := make([]domain.RankedPlayer, 0, len(s.players))
	for _, p := range s.players {
		ranking = append(ranking, domain.RankedPlayer{Name: p.Name, Score: p.Score})
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Score > ranking[j].Score
	})

	questionResults := make([]domain.QuestionResult, 0, len(s.quiz.Questions))
	for _, q := range s.quiz.Questions {
		questionResults = append(questionResults, s.aggregateQuestionLocked(q))
	}

	return domain.FinalResults{
		UsersRankedByScore: ranking,
		QuestionResults:    questionResults,
	}, nil
}

func (s *Session) aggregateQuestionLocked(question domain.Question) domain.QuestionResult {
	correct := question.CorrectAnswerIDs()

	result := domain.QuestionResult{
		QuestionID:         question.ID,
		PlayersCorrectList: []string{},
	}
	var totalTime float64
	var total, correctCount int
	for _, sub := range s.answers {
		if sub.QuestionID != question.ID {
			continue
		}
		total++
		totalTime += sub.TimeTakenSeconds
		if answersIntersect(sub.AnswerIDs, correct) {
			correctCount++
			for _, p := range s.players {
				if p.ID == sub.PlayerID {
					result.PlayersCorrectList = append(result.PlayersCorrectList, p.Name)
					break
				}
			}
		}
	}
	if total > 0 {
		result.AverageAnswerTime = totalTime / float64(total)
		result.PercentCorrect = float64(correctCount) / float64(total) * 100
	}
	return result
}

func answersIntersect(ids []int64, correct map[int64]bool) bool {
	for _, id := range ids {
		if correct[id] {
			return true
		}
	}
	return false
}

// Status is the host's snapshot of the session.
func (s *Session) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SessionStatus{
		State:      s.state,
		AtQuestion: s.atQuestion,
		Players:    s.playerNamesLocked(),
		Metadata:   s.quiz,
	}
}

// PlayerStatus is the player's snapshot of the session.
func (s *Session) PlayerStatus() domain.PlayerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.PlayerStatus{
		State:        s.state,
		NumQuestions: len(s.quiz.Questions),
		AtQuestion:   s.atQuestion,
	}
}

// SendChat appends a message to the session chat log.
func (s *Session) SendChat(playerID int64, body string) error {
	if len(body) < 1 || len(body) > 100 {
		return domain.ErrInvalidMessage
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var name string
	for _, p := range s.players {
		if p.ID == playerID {
			name = p.Name
			break
		}
	}
	s.chat = append(s.chat, domain.ChatMessage{
		MessageBody: body,
		PlayerID:    playerID,
		PlayerName:  name,
		TimeSent:    s.now().Unix(),
	})
	return nil
}

// ChatLog returns all chat messages in send order.
func (s *Session) ChatLog() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChatMessage(nil), s.chat...)
}

// Subscribe registers a channel receiving session events. The caller must
// invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.SessionEvent, func()) {
	ch := make(chan domain.SessionEvent, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := domain.SessionEvent{Type: "state", State: s.state, AtQuestion: s.atQuestion, Players: s.playerNamesLocked()}
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked(ev domain.SessionEvent) {
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// drop the oldest update so a slow client never blocks the session
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}
