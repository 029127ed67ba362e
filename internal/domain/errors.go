package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizHasNoQuestions is returned when starting a session on an empty quiz.
	ErrQuizHasNoQuestions = errors.New("quiz does not have any questions")
	// ErrAutoStartTooHigh is returned when autoStartNum exceeds the allowed maximum.
	ErrAutoStartTooHigh = errors.New("autoStartNum is greater than 50")
	// ErrTooManyActiveSessions caps concurrent non-ended sessions per quiz.
	ErrTooManyActiveSessions = errors.New("too many active sessions for this quiz")

	// ErrSessionNotFound is returned when a session id does not resolve within a quiz.
	ErrSessionNotFound = errors.New("session does not exist for this quiz")
	// ErrInvalidAction is returned for an unrecognised admin action value.
	ErrInvalidAction = errors.New("action is not a valid admin action")
	// ErrActionNotAllowed is returned when a known action is illegal in the current state.
	ErrActionNotAllowed = errors.New("action cannot be applied in the current state")

	// ErrPlayerNotFound is returned when a player id has no owning session.
	ErrPlayerNotFound = errors.New("player id does not exist")
	// ErrDuplicatePlayerName enforces name uniqueness within a session.
	ErrDuplicatePlayerName = errors.New("player name is already taken in this session")
	// ErrWrongState gates player reads and writes on the session state.
	ErrWrongState = errors.New("session state does not permit this request")
	// ErrInvalidPosition is returned for a question position outside [1, numQuestions].
	ErrInvalidPosition = errors.New("question position is not valid")
	// ErrPositionMismatch is returned when the session is not at the requested question.
	ErrPositionMismatch = errors.New("session is not currently on this question")
	// ErrInvalidAnswers covers empty, duplicate, or unknown answer ids.
	ErrInvalidAnswers = errors.New("answer ids are not valid for this question")

	// ErrInvalidMessage bounds chat messages to 1-100 characters.
	ErrInvalidMessage = errors.New("message must be between 1 and 100 characters")
)
