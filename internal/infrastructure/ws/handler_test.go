package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/0xcro3dile/localrag-gateway/internal/domain/entities"
	"github.com/0xcro3dile/localrag-gateway/internal/domain/usecases"
)

type pipelineFunc func(ctx context.Context, query string) (string, error)

func (f pipelineFunc) Answer(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}

func echoPipeline() Pipeline {
	return pipelineFunc(func(ctx context.Context, query string) (string, error) {
		return "answer to " + query, nil
	})
}

type testEnv struct {
	srv      *httptest.Server
	handler  *Handler
	registry *usecases.SessionRegistry
	hub      *Hub
}

func newTestEnv(t *testing.T, p Pipeline) *testEnv {
	t.Helper()
	registry := usecases.NewSessionRegistry("")
	hub := NewHub()
	h := NewHandler(registry, p, hub, Options{Greeting: "Hello %s!"})
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		h.CloseAll()
		srv.Close()
	})
	return &testEnv{srv: srv, handler: h, registry: registry, hub: hub}
}

func (e *testEnv) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	if query != "" {
		url += "?" + query
	}
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func readRaw(t *testing.T, c *websocket.Conn) []byte {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return data
}

func readFrame(t *testing.T, c *websocket.Conn) map[string]any {
	t.Helper()
	var frame map[string]any
	if err := json.Unmarshal(readRaw(t, c), &frame); err != nil {
		t.Fatalf("frame is not json: %v", err)
	}
	return frame
}

// handshake reads the init and greeting frames.
func handshake(t *testing.T, c *websocket.Conn) (init, greeting map[string]any) {
	t.Helper()
	init = readFrame(t, c)
	if init["type"] != TypeInit {
		t.Fatalf("first frame should be init, got %v", init)
	}
	greeting = readFrame(t, c)
	if greeting["type"] != string(entities.MessageIncoming) {
		t.Fatalf("second frame should be the greeting, got %v", greeting)
	}
	return init, greeting
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestHandler_InitAndGreeting(t *testing.T) {
	env := newTestEnv(t, echoPipeline())
	c := env.dial(t, "userName=Ana")

	init, greeting := handshake(t, c)
	if init["displayName"] != "Ana" || init["isNew"] != true {
		t.Errorf("unexpected init: %v", init)
	}
	if _, err := uuid.Parse(init["uuid"].(string)); err != nil {
		t.Errorf("init uuid invalid: %v", err)
	}
	if greeting["text"] != "Hello Ana!" {
		t.Errorf("unexpected greeting text %v", greeting["text"])
	}
	if id, _ := greeting["id"].(string); id == "" {
		t.Error("greeting should carry an id")
	}
	if ts, _ := greeting["timestamp"].(float64); ts <= 0 {
		t.Error("greeting should carry a timestamp")
	}
}

func TestHandler_DefaultDisplayName(t *testing.T) {
	env := newTestEnv(t, echoPipeline())
	c := env.dial(t, "")

	init, greeting := handshake(t, c)
	if init["displayName"] != usecases.DefaultDisplayName {
		t.Errorf("expected default name, got %v", init["displayName"])
	}
	if greeting["text"] != "Hello Guest!" {
		t.Errorf("unexpected greeting %v", greeting["text"])
	}
}

func TestHandler_EchoThenAnswer(t *testing.T) {
	env := newTestEnv(t, echoPipeline())
	c := env.dial(t, "userName=Ana")
	handshake(t, c)

	sent := `{"type":"outgoing","id":"1","text":"hello","timestamp":1000}`
	c.WriteMessage(websocket.TextMessage, []byte(sent))

	if echo := readRaw(t, c); string(echo) != sent {
		t.Errorf("echo should be verbatim, got %s", echo)
	}

	answer := readFrame(t, c)
	if answer["type"] != string(entities.MessageIncoming) {
		t.Fatalf("expected incoming answer, got %v", answer)
	}
	if answer["text"] != "answer to hello" {
		t.Errorf("unexpected answer %v", answer["text"])
	}
	if answer["id"] == "1" || answer["id"] == "" {
		t.Error("answer should have a fresh id")
	}
	if ts, _ := answer["timestamp"].(float64); ts <= 1000 {
		t.Error("answer should carry the current timestamp")
	}
}

func TestHandler_MalformedKeepsConnectionOpen(t *testing.T) {
	env := newTestEnv(t, echoPipeline())
	c := env.dial(t, "")
	handshake(t, c)

	for _, bad := range []string{"not json", "{}"} {
		c.WriteMessage(websocket.TextMessage, []byte(bad))
		frame := readFrame(t, c)
		if frame["type"] != TypeError || frame["message"] != InvalidMessageText {
			t.Errorf("%q: expected invalid-message error, got %v", bad, frame)
		}
	}

	c.WriteMessage(websocket.TextMessage, []byte(`{"type":"outgoing","id":"2","text":"still there?","timestamp":5}`))
	readRaw(t, c) // echo
	if answer := readFrame(t, c); answer["text"] != "answer to still there?" {
		t.Errorf("connection should keep working, got %v", answer)
	}
}

func TestHandler_UnknownType(t *testing.T) {
	env := newTestEnv(t, echoPipeline())
	c := env.dial(t, "")
	handshake(t, c)

	c.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat","message":"hi"}`))
	frame := readFrame(t, c)
	if frame["type"] != TypeError || frame["message"] != "Unknown message type: chat" {
		t.Errorf("unexpected frame %v", frame)
	}
}

func TestHandler_PipelineErrorBecomesFallback(t *testing.T) {
	env := newTestEnv(t, pipelineFunc(func(ctx context.Context, query string) (string, error) {
		return "", entities.ErrNotInitialized
	}))
	c := env.dial(t, "")
	handshake(t, c)

	c.WriteMessage(websocket.TextMessage, []byte(`{"type":"outgoing","id":"1","text":"hello","timestamp":1}`))
	readRaw(t, c)
	if answer := readFrame(t, c); answer["text"] != usecases.FallbackAnswer {
		t.Errorf("expected fallback answer, got %v", answer["text"])
	}
}

func TestHandler_ConcurrentQueries(t *testing.T) {
	release := make(chan struct{})
	env := newTestEnv(t, pipelineFunc(func(ctx context.Context, query string) (string, error) {
		if query == "slow" {
			<-release
		}
		return query + " done", nil
	}))
	c := env.dial(t, "")
	handshake(t, c)

	c.WriteMessage(websocket.TextMessage, []byte(`{"type":"outgoing","id":"a","text":"slow","timestamp":1}`))
	c.WriteMessage(websocket.TextMessage, []byte(`{"type":"outgoing","id":"b","text":"fast","timestamp":2}`))

	readRaw(t, c) // echo a
	readRaw(t, c) // echo b
	if first := readFrame(t, c); first["text"] != "fast done" {
		t.Errorf("answers should arrive in completion order, got %v", first["text"])
	}
	close(release)
	if second := readFrame(t, c); second["text"] != "slow done" {
		t.Errorf("unexpected second answer %v", second["text"])
	}
}

func TestHandler_ReconnectKeepsIdentity(t *testing.T) {
	env := newTestEnv(t, echoPipeline())

	first := env.dial(t, "userName=Ana")
	init, _ := handshake(t, first)
	id := init["uuid"].(string)
	first.Close()

	second := env.dial(t, "uuid="+id+"&userName=Someone")
	init2, greeting := handshake(t, second)
	if init2["uuid"] != id || init2["isNew"] != false {
		t.Errorf("expected reattached session, got %v", init2)
	}
	if init2["displayName"] != "Ana" || greeting["text"] != "Hello Ana!" {
		t.Errorf("display name should persist, got %v", init2["displayName"])
	}
	if env.registry.Len() != 1 {
		t.Errorf("expected 1 user, got %d", env.registry.Len())
	}
}

func TestHandler_UnknownUUIDMintsNewUser(t *testing.T) {
	env := newTestEnv(t, echoPipeline())
	c := env.dial(t, "uuid=not-a-uuid")

	init, _ := handshake(t, c)
	if init["isNew"] != true || init["uuid"] == "not-a-uuid" {
		t.Errorf("expected a freshly minted user, got %v", init)
	}
}

func TestHandler_CloseDeactivates(t *testing.T) {
	env := newTestEnv(t, echoPipeline())
	c := env.dial(t, "")
	init, _ := handshake(t, c)
	id := uuid.MustParse(init["uuid"].(string))

	eventually(t, func() bool { return env.hub.Len() == 1 }, "connection never registered")
	c.Close()

	eventually(t, func() bool {
		u, ok := env.registry.Lookup(id)
		return ok && !u.IsActive && u.Conn == nil
	}, "user should be deactivated after close")
	if env.hub.Len() != 0 {
		t.Error("closed connection should leave the hub")
	}
}

func TestHandler_StaleCloseKeepsNewerSession(t *testing.T) {
	env := newTestEnv(t, echoPipeline())

	first := env.dial(t, "")
	init, _ := handshake(t, first)
	id := uuid.MustParse(init["uuid"].(string))

	second := env.dial(t, "uuid="+id.String())
	handshake(t, second)
	eventually(t, func() bool { return env.hub.Len() == 2 }, "both connections should be registered")

	first.Close()
	eventually(t, func() bool { return env.hub.Len() == 1 }, "first connection should be gone")

	if u, _ := env.registry.Lookup(id); !u.IsActive || u.Conn == nil {
		t.Error("closing the old connection must not deactivate the new one")
	}
}

func TestHandler_AnswerAfterCloseIsDropped(t *testing.T) {
	release := make(chan struct{})
	var finished atomic.Bool
	env := newTestEnv(t, pipelineFunc(func(ctx context.Context, query string) (string, error) {
		<-release
		finished.Store(true)
		return "late", nil
	}))
	c := env.dial(t, "")
	handshake(t, c)

	c.WriteMessage(websocket.TextMessage, []byte(`{"type":"outgoing","id":"1","text":"hello","timestamp":1}`))
	readRaw(t, c)
	c.Close()
	eventually(t, func() bool { return env.hub.Len() == 0 }, "connection should close")

	close(release)
	done := make(chan struct{})
	go func() {
		env.handler.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("in-flight task never finished")
	}
	if !finished.Load() {
		t.Error("pipeline should run to completion after close")
	}
}

func TestHandler_CloseAll(t *testing.T) {
	env := newTestEnv(t, echoPipeline())
	c := env.dial(t, "")
	handshake(t, c)
	eventually(t, func() bool { return env.hub.Len() == 1 }, "connection never registered")

	env.handler.CloseAll()

	c.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := c.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) || closeErr.Code != websocket.CloseNormalClosure {
		t.Errorf("expected a normal close, got %v", err)
	}
}
