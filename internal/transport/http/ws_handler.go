package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"xpbattle-service/internal/app"
	"xpbattle-service/internal/domain"
)

// WSHandler exposes the game engine over a websocket: one connection per
// player, typed intents in, session snapshots out.
type WSHandler struct {
	service  *app.GameService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService, log *zap.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log,
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
	OptionIndex int `json:"optionIndex"`
}

type lifelinePayload struct {
	Kind domain.LifelineKind `json:"kind"`
}

type violationPayload struct {
	Kind domain.ViolationKind `json:"kind"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the game
// engine. Timer and anti-cheat transitions are pushed through the session
// subscription; everything else is request/response.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")
	if playerID == "" {
		http.Error(w, "missing playerId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Warn("ws write error", zap.Error(err))
				return
			}
		}
	}()

	var pumps sync.WaitGroup
	startPump := func(ch <-chan domain.SessionView) {
		pumps.Add(1)
		go func() {
			defer pumps.Done()
			h.pumpUpdates(ch, send, closeSignals)
		}()
	}

	// Re-attach to a run that is already in flight (e.g. after a reconnect).
	var unsubscribe func()
	if ch, cancel, err := h.service.Subscribe(playerID); err == nil {
		unsubscribe = cancel
		startPump(ch)
	}

	send <- outboundMessage[any]{Type: "ladder", Payload: h.service.Ladder()}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		switch inbound.Type {
		case "start":
			view, err := h.service.StartSession(r.Context(), playerID)
			if err != nil {
				send <- errorMessage(err)
				continue
			}
			if unsubscribe != nil {
				unsubscribe()
			}
			if ch, cancel, err := h.service.Subscribe(playerID); err == nil {
				unsubscribe = cancel
				startPump(ch)
			}
			send <- outboundMessage[any]{Type: "session", Payload: view}

		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMessage(errors.New("invalid answer payload"))
				continue
			}
			result, err := h.service.SubmitAnswer(r.Context(), playerID, payload.OptionIndex)
			if err != nil {
				send <- errorMessage(err)
				continue
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: result}

		case "lifeline":
			var payload lifelinePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMessage(errors.New("invalid lifeline payload"))
				continue
			}
			outcome, err := h.service.UseLifeline(r.Context(), playerID, payload.Kind)
			if err != nil {
				send <- errorMessage(err)
				continue
			}
			send <- outboundMessage[any]{Type: "lifelineResult", Payload: outcome}

		case "violation":
			var payload violationPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMessage(errors.New("invalid violation payload"))
				continue
			}
			view, err := h.service.ReportViolation(r.Context(), playerID, payload.Kind)
			if err != nil {
				send <- errorMessage(err)
				continue
			}
			send <- outboundMessage[any]{Type: "session", Payload: view}

		case "quit":
			status, err := h.service.QuitSession(r.Context(), playerID)
			if err != nil {
				send <- errorMessage(err)
				continue
			}
			send <- outboundMessage[any]{Type: "lockStatus", Payload: status}

		case "lockStatus":
			status, err := h.service.GetLockStatus(r.Context(), playerID)
			if err != nil {
				send <- errorMessage(err)
				continue
			}
			send <- outboundMessage[any]{Type: "lockStatus", Payload: status}

		default:
			send <- errorMessage(errors.New("unsupported message type"))
		}
	}

	close(closeSignals)
	if unsubscribe != nil {
		unsubscribe()
	}
	pumps.Wait()
	close(send)
	<-writerDone
}

func (h *WSHandler) pumpUpdates(updates <-chan domain.SessionView, send chan<- outboundMessage[any], closeSignals <-chan struct{}) {
	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			select {
			case send <- outboundMessage[any]{Type: "session", Payload: update}:
			case <-closeSignals:
				return
			}
		case <-closeSignals:
			return
		}
	}
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{
		Code:    errorCode(err),
		Message: err.Error(),
	}}
}

// errorCode maps engine errors onto stable codes the client switches on.
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrPoolUnavailable):
		return "poolUnavailable"
	case errors.Is(err, domain.ErrInsufficientQuestions):
		return "insufficientQuestions"
	case errors.Is(err, domain.ErrSessionLocked):
		return "sessionLocked"
	case errors.Is(err, domain.ErrSessionActive):
		return "sessionActive"
	case errors.Is(err, domain.ErrSessionNotFound):
		return "sessionNotFound"
	case errors.Is(err, domain.ErrLifelineUnavailable):
		return "lifelineUnavailable"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalidTransition"
	case errors.Is(err, domain.ErrSettlementFailure):
		return "settlementFailure"
	default:
		return "internal"
	}
}
