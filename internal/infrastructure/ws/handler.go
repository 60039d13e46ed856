package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/0xcro3dile/localrag-gateway/internal/domain/entities"
	"github.com/0xcro3dile/localrag-gateway/internal/domain/usecases"
)

// Pipeline answers a chat message.
type Pipeline interface {
	Answer(ctx context.Context, query string) (string, error)
}

// DefaultQueryTimeout bounds a single pipeline run.
const DefaultQueryTimeout = 5 * time.Minute

// Options tunes a Handler.
type Options struct {
	// Greeting is sent after init; every %s is replaced by the display name.
	Greeting     string
	QueryTimeout time.Duration
	// CheckOrigin overrides the upgrader's origin check. Nil accepts any origin.
	CheckOrigin func(r *http.Request) bool
}

// Handler upgrades HTTP requests and runs the chat protocol on each connection.
type Handler struct {
	registry     *usecases.SessionRegistry
	pipeline     Pipeline
	hub          *Hub
	upgrader     websocket.Upgrader
	greeting     string
	queryTimeout time.Duration
	tasks        sync.WaitGroup
	now          func() time.Time
}

// NewHandler wires a Handler.
func NewHandler(registry *usecases.SessionRegistry, pipeline Pipeline, hub *Hub, opts Options) *Handler {
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}
	return &Handler{
		registry: registry,
		pipeline: pipeline,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		greeting:     opts.Greeting,
		queryTimeout: opts.QueryTimeout,
		now:          time.Now,
	}
}

// ServeHTTP handles one websocket connection for its whole lifetime.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	c := newConn(wsConn)
	go c.writePump()

	q := r.URL.Query()
	user, isNew := h.registry.ResolveOrCreate(q.Get("uuid"), q.Get("userName"), c)

	c.Send(NewInitFrame(user, isNew))
	if h.greeting != "" {
		c.Send(entities.NewIncomingMessage(strings.ReplaceAll(h.greeting, "%s", user.DisplayName), h.now()))
	}

	c.activate(user.ID)
	h.hub.Add(c)
	log.Info().Str("user", user.ID.String()).Bool("new", isNew).Str("remote", r.RemoteAddr).Msg("connection active")

	defer func() {
		c.Close()
		h.hub.Remove(c)
		h.registry.Deactivate(user.ID, c)
		log.Info().Str("user", user.ID.String()).Msg("connection closed")
	}()

	c.readPump(func(data []byte) {
		h.dispatch(c, data)
	})
}

func (h *Handler) dispatch(c *Conn, data []byte) {
	frame, err := DecodeInbound(data)
	if err != nil {
		log.Debug().Err(err).Str("user", c.UserID().String()).Msg("malformed frame")
		c.Send(NewErrorFrame(InvalidMessageText))
		return
	}

	switch f := frame.(type) {
	case ChatFrame:
		c.Send(json.RawMessage(f.Raw))
		h.answer(c, f.Text)
	case UnknownFrame:
		c.Send(NewErrorFrame("Unknown message type: " + f.Type))
	}
}

// answer runs the pipeline in its own goroutine. Closing the connection does
// not cancel it; the result is dropped if the connection is gone by then.
func (h *Handler) answer(c *Conn, query string) {
	h.tasks.Add(1)
	go func() {
		defer h.tasks.Done()

		ctx, cancel := context.WithTimeout(context.Background(), h.queryTimeout)
		defer cancel()

		start := h.now()
		text, err := h.pipeline.Answer(ctx, query)
		if err != nil {
			log.Error().Err(err).Str("user", c.UserID().String()).Msg("retrieval pipeline failed")
			text = usecases.FallbackAnswer
		}

		if !c.Send(entities.NewIncomingMessage(text, h.now())) {
			log.Debug().Str("user", c.UserID().String()).Msg("connection closed before answer was delivered")
			return
		}
		log.Debug().Str("user", c.UserID().String()).Dur("took", h.now().Sub(start)).Msg("answer delivered")
	}()
}

// CloseAll closes every open connection.
func (h *Handler) CloseAll() {
	h.hub.CloseAll()
}

// Wait blocks until every in-flight pipeline run has finished.
func (h *Handler) Wait() {
	h.tasks.Wait()
}
