package domain

// SessionState is the lifecycle state of a live quiz session.
type SessionState string

const (
	StateLobby             SessionState = "LOBBY"
	StateQuestionCountdown SessionState = "QUESTION_COUNTDOWN"
	StateQuestionOpen      SessionState = "QUESTION_OPEN"
	StateQuestionClose     SessionState = "QUESTION_CLOSE"
	StateAnswerShow        SessionState = "ANSWER_SHOW"
	StateFinalResults      SessionState = "FINAL_RESULTS"
	StateEnd               SessionState = "END"
)

// AdminAction is a host-issued command that drives a session between states.
type AdminAction string

const (
	ActionNextQuestion     AdminAction = "NEXT_QUESTION"
	ActionSkipCountdown    AdminAction = "SKIP_COUNTDOWN"
	ActionGoToAnswer       AdminAction = "GO_TO_ANSWER"
	ActionGoToFinalResults AdminAction = "GO_TO_FINAL_RESULTS"
	ActionEnd              AdminAction = "END"
)

// ParseAdminAction validates a raw action string against the action enum.
func ParseAdminAction(raw string) (AdminAction, error) {
	switch a := AdminAction(raw); a {
	case ActionNextQuestion, ActionSkipCountdown, ActionGoToAnswer, ActionGoToFinalResults, ActionEnd:
		return a, nil
	}
	return "", ErrInvalidAction
}

// AnswerOption is a possible answer for a question.
type AnswerOption struct {
	ID      int64  `json:"answerId"`
	Text    string `json:"answer"`
	Correct bool   `json:"correct"`
	Colour  string `json:"colour"`
}

// Question models a timed multiple-choice question.
type Question struct {
	ID              int64          `json:"questionId"`
	Prompt          string         `json:"question"`
	DurationSeconds int            `json:"duration"`
	Points          int            `json:"points"`
	ThumbnailURL    string         `json:"thumbnailUrl"`
	Answers         []AnswerOption `json:"answers"`
}

// CorrectAnswerIDs returns the ids of the question's correct options.
func (q Question) CorrectAnswerIDs() map[int64]bool {
	ids := make(map[int64]bool)
	for _, a := range q.Answers {
		if a.Correct {
			ids[a.ID] = true
		}
	}
	return ids
}

// Quiz is an ordered collection of questions plus display metadata.
type Quiz struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	ThumbnailURL string     `json:"thumbnailUrl"`
	Questions    []Question `json:"questions"`
}

// Player is a participant joined to one session.
type Player struct {
	ID    int64  `json:"playerId"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// AnswerSubmission records one player's answer to one question.
type AnswerSubmission struct {
	PlayerID         int64
	QuestionID       int64
	AnswerIDs        []int64
	TimeTakenSeconds float64
}

// ChatMessage is one entry in a session's chat log.
type ChatMessage struct {
	MessageBody string `json:"messageBody"`
	PlayerID    int64  `json:"playerId"`
	PlayerName  string `json:"playerName"`
	TimeSent    int64  `json:"timeSent"`
}

// PlayerStatus is the view a joined player gets of their session.
type PlayerStatus struct {
	State        SessionState `json:"state"`
	NumQuestions int          `json:"numQuestions"`
	AtQuestion   int          `json:"atQuestion"`
}

// AnswerView is an answer option with the correctness flag stripped.
type AnswerView struct {
	ID     int64  `json:"answerId"`
	Text   string `json:"answer"`
	Colour string `json:"colour"`
}

// QuestionView is the question as shown to players while it is open.
// It never carries correctness information.
type QuestionView struct {
	QuestionID   int64        `json:"questionId"`
	Prompt       string       `json:"question"`
	Duration     int          `json:"duration"`
	ThumbnailURL string       `json:"thumbnailUrl"`
	Points       int          `json:"points"`
	Answers      []AnswerView `json:"answers"`
}

// QuestionResult aggregates all submissions for one question.
type QuestionResult struct {
	QuestionID         int64    `json:"questionId"`
	PlayersCorrectList []string `json:"playersCorrectList"`
	AverageAnswerTime  float64  `json:"averageAnswerTime"`
	PercentCorrect     float64  `json:"percentCorrect"`
}

// RankedPlayer is one row of the final scoreboard.
type RankedPlayer struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// FinalResults is the view of a session that reached FINAL_RESULTS.
type FinalResults struct {
	UsersRankedByScore []RankedPlayer   `json:"usersRankedByScore"`
	QuestionResults    []QuestionResult `json:"questionResults"`
}

// SessionStatus is the host's view of a running session.
type SessionStatus struct {
	State      SessionState `json:"state"`
	AtQuestion int          `json:"atQuestion"`
	Players    []string     `json:"players"`
	Metadata   Quiz         `json:"metadata"`
}

// SessionList splits a quiz's sessions by liveness.
type SessionList struct {
	ActiveSessions   []int64 `json:"activeSessions"`
	InactiveSessions []int64 `json:"inactiveSessions"`
}

// SessionEvent is pushed to websocket subscribers when a session changes.
type SessionEvent struct {
	Type       string       `json:"type"`
	State      SessionState `json:"state,omitempty"`
	AtQuestion int          `json:"atQuestion"`
	Players    []string     `json:"players,omitempty"`
}
