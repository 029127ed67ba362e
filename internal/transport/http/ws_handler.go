package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/ompatel2019/toohak/internal/app"
	"github.com/ompatel2019/toohak/internal/domain"
)

// WSHandler streams session state changes to hosts and players over a
// websocket, and accepts answer/chat messages from players inline.
type WSHandler struct {
	service  *app.SessionService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Position  int     `json:"position"`
	AnswerIDs []int64 `json:"answerIds"`
}

type chatPayload struct {
	MessageBody string `json:"messageBody"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// session event feed. Hosts connect with ?sessionId=, players with
// ?playerId= (set after joining over REST); players may also send
// "answer" and "chat" messages over the socket.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	var (
		updates  <-chan domain.SessionEvent
		cancel   func()
		err      error
		playerID int64
	)
	switch {
	case r.URL.Query().Get("sessionId") != "":
		var sessionID int64
		sessionID, err = strconv.ParseInt(r.URL.Query().Get("sessionId"), 10, 64)
		if err != nil {
			http.Error(w, "invalid sessionId", http.StatusBadRequest)
			return
		}
		updates, cancel, err = h.service.Subscribe(sessionID)
	case r.URL.Query().Get("playerId") != "":
		playerID, err = strconv.ParseInt(r.URL.Query().Get("playerId"), 10, 64)
		if err != nil {
			http.Error(w, "invalid playerId", http.StatusBadRequest)
			return
		}
		updates, cancel, err = h.service.SubscribeAsPlayer(playerID)
	default:
		http.Error(w, "missing sessionId or playerId", http.StatusBadRequest)
		return
	}

	conn, upgradeErr := h.upgrader.Upgrade(w, r, nil)
	if upgradeErr != nil {
		log.Printf("ws upgrade failed: %v", upgradeErr)
		if cancel != nil {
			cancel()
		}
		return
	}
	defer conn.Close()

	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "sessionUpdate", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if playerID == 0 {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "host connections are read-only"}}
			continue
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			if err := h.service.SubmitAnswer(playerID, payload.Position, payload.AnswerIDs); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "answerAck", Payload: payload}
		case "chat":
			var payload chatPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid chat payload"}}
				continue
			}
			if err := h.service.SendChat(playerID, payload.MessageBody); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
