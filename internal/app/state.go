package app

import "github.com/ompatel2019/toohak/internal/domain"

// legalActions is the session transition table. An action missing from the
// current state's set is rejected without touching the session.
var legalActions = map[domain.SessionState]map[domain.AdminAction]bool{
	domain.StateLobby: {
		domain.ActionNextQuestion: true,
		domain.ActionEnd:          true,
	},
	domain.StateQuestionCountdown: {
		domain.ActionSkipCountdown: true,
		domain.ActionEnd:           true,
	},
	domain.StateQuestionOpen: {
		domain.ActionGoToAnswer: true,
		domain.ActionEnd:        true,
	},
	domain.StateQuestionClose: {
		domain.ActionNextQuestion:     true,
		domain.ActionGoToAnswer:       true,
		domain.ActionGoToFinalResults: true,
		domain.ActionEnd:              true,
	},
	domain.StateAnswerShow: {
		domain.ActionNextQuestion:     true,
		domain.ActionGoToFinalResults: true,
		domain.ActionEnd:              true,
	},
	domain.StateFinalResults: {
		domain.ActionEnd: true,
	},
	domain.StateEnd: {},
}

func actionAllowed(state domain.SessionState, action domain.AdminAction) bool {
	return legalActions[state][action]
}
