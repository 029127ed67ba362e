package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/ompatel2019/toohak/internal/app"
	"github.com/ompatel2019/toohak/internal/domain"
	"github.com/ompatel2019/toohak/internal/infra/memory"
)

func TestAdminSessionLifecycleOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	token := issueToken(t, server, "admin-1")

	// Unknown token is rejected.
	resp := doJSON(t, server, "POST", "/v1/admin/quiz/quiz-1/session/start", "bogus", map[string]any{"autoStartNum": 0})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", resp.StatusCode)
	}

	resp = doJSON(t, server, "POST", "/v1/admin/quiz/quiz-1/session/start", token, map[string]any{"autoStartNum": 0})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on start, got %d", resp.StatusCode)
	}
	var started struct {
		SessionID int64 `json:"sessionId"`
	}
	decodeBody(t, resp, &started)

	resp = doJSON(t, server, "POST", "/v1/admin/quiz/quiz-unknown/session/start", token, map[string]any{"autoStartNum": 0})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown quiz, got %d", resp.StatusCode)
	}

	resp = doJSON(t, server, "GET", "/v1/admin/quiz/quiz-1/sessions", token, nil)
	var list domain.SessionList
	decodeBody(t, resp, &list)
	if len(list.ActiveSessions) != 1 || list.ActiveSessions[0] != started.SessionID {
		t.Fatalf("unexpected session list: %+v", list)
	}

	resp = doJSON(t, server, "PUT", "/v1/admin/quiz/quiz-1/session/"+itoa(started.SessionID), token, map[string]any{"action": "GO_TO_ANSWER"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for illegal action, got %d", resp.StatusCode)
	}

	resp = doJSON(t, server, "PUT", "/v1/admin/quiz/quiz-1/session/"+itoa(started.SessionID), token, map[string]any{"action": "END"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on END, got %d", resp.StatusCode)
	}

	resp = doJSON(t, server, "GET", "/v1/admin/quiz/quiz-1/session/"+itoa(started.SessionID), token, nil)
	var status domain.SessionStatus
	decodeBody(t, resp, &status)
	if status.State != domain.StateEnd {
		t.Fatalf("expected END state, got %s", status.State)
	}
}

func TestPlayerFlowOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	token := issueToken(t, server, "admin-1")

	resp := doJSON(t, server, "POST", "/v1/admin/quiz/quiz-1/session/start", token, map[string]any{"autoStartNum": 0})
	var started struct {
		SessionID int64 `json:"sessionId"`
	}
	decodeBody(t, resp, &started)

	resp = doJSON(t, server, "POST", "/v1/player/join", "", map[string]any{"sessionId": started.SessionID, "name": "Alice"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on join, got %d", resp.StatusCode)
	}
	var joined struct {
		PlayerID int64 `json:"playerId"`
	}
	decodeBody(t, resp, &joined)

	resp = doJSON(t, server, "POST", "/v1/player/join", "", map[string]any{"sessionId": started.SessionID, "name": "Alice"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate name, got %d", resp.StatusCode)
	}

	for _, action := range []string{"NEXT_QUESTION", "SKIP_COUNTDOWN"} {
		resp = doJSON(t, server, "PUT", "/v1/admin/quiz/quiz-1/session/"+itoa(started.SessionID), token, map[string]any{"action": action})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s failed with %d", action, resp.StatusCode)
		}
	}

	resp = doJSON(t, server, "GET", "/v1/player/"+itoa(joined.PlayerID)+"/question/1", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on question info, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if bytes.Contains(body, []byte(`"correct"`)) {
		t.Fatalf("question info leaks correctness: %s", body)
	}

	resp = doJSON(t, server, "PUT", "/v1/player/"+itoa(joined.PlayerID)+"/question/1/answer", "", map[string]any{"answerIds": []int64{2}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on submit, got %d", resp.StatusCode)
	}

	for _, action := range []string{"GO_TO_ANSWER", "GO_TO_FINAL_RESULTS"} {
		resp = doJSON(t, server, "PUT", "/v1/admin/quiz/quiz-1/session/"+itoa(started.SessionID), token, map[string]any{"action": action})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s failed with %d", action, resp.StatusCode)
		}
	}

	resp = doJSON(t, server, "GET", "/v1/player/"+itoa(joined.PlayerID)+"/results", "", nil)
	var final domain.FinalResults
	decodeBody(t, resp, &final)
	if len(final.UsersRankedByScore) != 1 || final.UsersRankedByScore[0].Score != 5 {
		t.Fatalf("unexpected final results: %+v", final)
	}

	resp = doJSON(t, server, "GET", "/v1/admin/quiz/quiz-1/session/"+itoa(started.SessionID)+"/results/csv", token, nil)
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("expected text/csv, got %q", ct)
	}
	csvBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(bytes.TrimSpace(csvBody)) != "Alice,5,1" {
		t.Fatalf("unexpected csv: %q", csvBody)
	}

	resp = doJSON(t, server, "GET", "/v1/player/404/results", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown player, got %d", resp.StatusCode)
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *app.SessionService) {
	t.Helper()
	store := memory.NewSessionStore()
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuizzes()), time.Minute)
	service := app.NewSessionService(store, quizRepo)
	t.Cleanup(service.Clear)

	mux := http.NewServeMux()
	NewHandler(service, memory.NewTokenRegistry()).Register(mux)
	mux.HandleFunc("/ws", NewWSHandler(service).ServeWS)
	return httptest.NewServer(mux), service
}

func issueToken(t *testing.T, server *httptest.Server, userID string) string {
	t.Helper()
	resp := doJSON(t, server, "POST", "/v1/admin/auth/token", "", map[string]any{"userId": userID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("issue token failed with %d", resp.StatusCode)
	}
	var body struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &body)
	return body.Token
}

func doJSON(t *testing.T, server *httptest.Server, method, path, token string, payload any) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, server.URL+path, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("token", token)
	}
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
