package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ompatel2019/toohak/internal/app"
	"github.com/ompatel2019/toohak/internal/domain"
)

// TokenResolver maps opaque admin tokens to user ids and issues new ones.
// Credential checking lives outside this service; the registry only tracks
// which opaque token belongs to which user.
type TokenResolver interface {
	Issue(userID string) string
	Lookup(token string) (string, bool)
	Revoke(token string)
}

// Handler exposes the session core as a JSON API.
type Handler struct {
	service *app.SessionService
	tokens  TokenResolver
}

func NewHandler(service *app.SessionService, tokens TokenResolver) *Handler {
	return &Handler{service: service, tokens: tokens}
}

// Register wires all routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/admin/auth/token", h.issueToken)
	mux.HandleFunc("DELETE /v1/admin/auth/token", h.revokeToken)

	mux.HandleFunc("POST /v1/admin/quiz/{quizid}/session/start", h.startSession)
	mux.HandleFunc("GET /v1/admin/quiz/{quizid}/sessions", h.listSessions)
	mux.HandleFunc("PUT /v1/admin/quiz/{quizid}/session/{sessionid}", h.applyAction)
	mux.HandleFunc("GET /v1/admin/quiz/{quizid}/session/{sessionid}", h.sessionStatus)
	mux.HandleFunc("GET /v1/admin/quiz/{quizid}/session/{sessionid}/results", h.finalResults)
	mux.HandleFunc("GET /v1/admin/quiz/{quizid}/session/{sessionid}/results/csv", h.resultsCSV)

	mux.HandleFunc("POST /v1/player/join", h.joinSession)
	mux.HandleFunc("GET /v1/player/{playerid}", h.playerStatus)
	mux.HandleFunc("GET /v1/player/{playerid}/question/{position}", h.questionInfo)
	mux.HandleFunc("PUT /v1/player/{playerid}/question/{position}/answer", h.submitAnswer)
	mux.HandleFunc("GET /v1/player/{playerid}/question/{position}/results", h.questionResult)
	mux.HandleFunc("GET /v1/player/{playerid}/results", h.playerFinalResults)
	mux.HandleFunc("POST /v1/player/{playerid}/chat", h.sendChat)
	mux.HandleFunc("GET /v1/player/{playerid}/chat", h.chatLog)
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": h.tokens.Issue(body.UserID)})
}

func (h *Handler) revokeToken(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorise(w, r); !ok {
		return
	}
	h.tokens.Revoke(r.Header.Get("token"))
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorise(w, r)
	if !ok {
		return
	}
	var body struct {
		AutoStartNum int `json:"autoStartNum"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sessionID, err := h.service.StartSession(r.Context(), r.PathValue("quizid"), userID, body.AutoStartNum)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"sessionId": sessionID})
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorise(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.service.ListSessions(r.PathValue("quizid")))
}

func (h *Handler) applyAction(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorise(w, r); !ok {
		return
	}
	sessionID, ok := pathInt64(w, r, "sessionid")
	if !ok {
		return
	}
	var body struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.service.ApplyAction(r.Context(), r.PathValue("quizid"), sessionID, body.Action); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) sessionStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorise(w, r); !ok {
		return
	}
	sessionID, ok := pathInt64(w, r, "sessionid")
	if !ok {
		return
	}
	status, err := h.service.SessionStatus(r.PathValue("quizid"), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) finalResults(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorise(w, r); !ok {
		return
	}
	sessionID, ok := pathInt64(w, r, "sessionid")
	if !ok {
		return
	}
	results, err := h.service.FinalResults(r.PathValue("quizid"), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) resultsCSV(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorise(w, r); !ok {
		return
	}
	sessionID, ok := pathInt64(w, r, "sessionid")
	if !ok {
		return
	}
	data, err := h.service.ResultsCSV(r.PathValue("quizid"), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) joinSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionID int64  `json:"sessionId"`
		Name      string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	playerID, err := h.service.JoinSession(body.SessionID, body.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"playerId": playerID})
}

func (h *Handler) playerStatus(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathInt64(w, r, "playerid")
	if !ok {
		return
	}
	status, err := h.service.PlayerStatus(playerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) questionInfo(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathInt64(w, r, "playerid")
	if !ok {
		return
	}
	position, ok := pathInt(w, r, "position")
	if !ok {
		return
	}
	view, err := h.service.QuestionInfo(playerID, position)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathInt64(w, r, "playerid")
	if !ok {
		return
	}
	position, ok := pathInt(w, r, "position")
	if !ok {
		return
	}
	var body struct {
		AnswerIDs []int64 `json:"answerIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.service.SubmitAnswer(playerID, position, body.AnswerIDs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) questionResult(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathInt64(w, r, "playerid")
	if !ok {
		return
	}
	position, ok := pathInt(w, r, "position")
	if !ok {
		return
	}
	result, err := h.service.QuestionResult(playerID, position)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) playerFinalResults(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathInt64(w, r, "playerid")
	if !ok {
		return
	}
	results, err := h.service.FinalResultsForPlayer(playerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) sendChat(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathInt64(w, r, "playerid")
	if !ok {
		return
	}
	var body struct {
		Message struct {
			MessageBody string `json:"messageBody"`
		} `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.service.SendChat(playerID, body.Message.MessageBody); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) chatLog(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathInt64(w, r, "playerid")
	if !ok {
		return
	}
	messages, err := h.service.ChatLog(playerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.ChatMessage{"messages": messages})
}

func (h *Handler) authorise(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := r.Header.Get("token")
	if token == "" {
		writeJSONError(w, http.StatusUnauthorized, "token is empty or invalid")
		return "", false
	}
	userID, ok := h.tokens.Lookup(token)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "token is empty or invalid")
		return "", false
	}
	return userID, true
}

func pathInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return v, true
}

func pathInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, ok := pathInt64(w, r, name)
	return int(v), ok
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeError maps sentinel errors onto the API's status-code convention.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrPlayerNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDuplicatePlayerName):
		writeJSONError(w, http.StatusConflict, err.Error())
	default:
		writeJSONError(w, http.StatusBadRequest, err.Error())
	}
}
