package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"xpbattle-service/internal/app"
	"xpbattle-service/internal/domain"
	"xpbattle-service/internal/infra/memory"
)

func TestWebSocketGameFlow(t *testing.T) {
	service := app.NewGameService(
		memory.NewSessionRegistry(),
		memory.NewPoolProvider(memory.NewStaticPoolLoader(fixturePool()), time.Minute),
		memory.NewSessionLog(),
		memory.NewLockStore(5*time.Minute),
		memory.NewLedger(),
		zap.NewNop(),
		time.Minute,
	)
	wsHandler := NewWSHandler(service, zap.NewNop())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?playerId=p1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The ladder is pushed on connect.
	if typ, _ := readNext(conn, t, ""); typ != "ladder" {
		t.Fatalf("expected ladder first, got %s", typ)
	}

	writeMsg(conn, t, "start", nil)
	session := readUntil(conn, t, "session")
	if session["status"] != string(domain.StatusActive) {
		t.Fatalf("expected active session, got %v", session["status"])
	}

	// Fixture questions are correct at index 1.
	writeMsg(conn, t, "answer", map[string]any{"optionIndex": 1})
	result := readUntil(conn, t, "answerResult")
	if result["correct"] != true {
		t.Fatalf("expected correct answer, got %v", result)
	}

	writeMsg(conn, t, "lifeline", map[string]any{"kind": string(domain.LifelineExpertAdvice)})
	lifeline := readUntil(conn, t, "lifelineResult")
	if lifeline["effect"] == nil {
		t.Fatalf("expected lifeline effect, got %v", lifeline)
	}

	writeMsg(conn, t, "quit", nil)
	lock := readUntil(conn, t, "lockStatus")
	if lock["locked"] != true {
		t.Fatalf("expected quit lock, got %v", lock)
	}

	// Starting again during the cooldown yields a typed error.
	writeMsg(conn, t, "start", nil)
	errPayload := readUntil(conn, t, "error")
	if errPayload["code"] != "sessionLocked" {
		t.Fatalf("expected sessionLocked error, got %v", errPayload)
	}
}

func writeMsg(conn *websocket.Conn, t *testing.T, typ string, payload map[string]any) {
	t.Helper()
	msg := map[string]any{"type": typ}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, json.RawMessage) {
	t.Helper()
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

// readUntil skips interleaved session pushes until the wanted type arrives.
func readUntil(conn *websocket.Conn, t *testing.T, want string) map[string]any {
	t.Helper()
	for i := 0; i < 10; i++ {
		typ, raw := readNext(conn, t, "")
		if typ != want {
			continue
		}
		payload := map[string]any{}
		if err := json.Unmarshal(raw, &payload); err != nil {
			t.Fatalf("unmarshal %s payload: %v", want, err)
		}
		return payload
	}
	t.Fatalf("message of type %s never arrived", want)
	return nil
}

func fixturePool() domain.QuestionPool {
	pool := domain.QuestionPool{}
	add := func(difficulty domain.Difficulty, n int) {
		for i := 0; i < n; i++ {
			pool[difficulty] = append(pool[difficulty], domain.Question{
				ID:           fmt.Sprintf("%s-%d", difficulty, i),
				Prompt:       fmt.Sprintf("%s question %d", difficulty, i),
				Options:      []string{"w", "right", "x", "y"},
				CorrectIndex: 1,
				Difficulty:   difficulty,
			})
		}
	}
	add(domain.DifficultyEasy, 4)
	add(domain.DifficultyMedium, 5)
	add(domain.DifficultyHard, 6)
	return pool
}
