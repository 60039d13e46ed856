package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendQueueSize  = 64
)

// State is the lifecycle position of a connection.
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is one client websocket. All writes go through a single writer
// goroutine fed by an outbound queue; sends after close are dropped.
type Conn struct {
	ws    *websocket.Conn
	send  chan []byte
	done  chan struct{}
	once  sync.Once
	state atomic.Int32
	user  atomic.Pointer[uuid.UUID]
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{
		ws:   ws,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
}

// State returns the current state.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// UserID returns the user bound to the connection, or uuid.Nil before activation.
func (c *Conn) UserID() uuid.UUID {
	if id := c.user.Load(); id != nil {
		return *id
	}
	return uuid.Nil
}

func (c *Conn) activate(id uuid.UUID) {
	c.user.Store(&id)
	c.state.CompareAndSwap(int32(StateConnecting), int32(StateActive))
}

// Send queues v for delivery, waiting for room in the queue.
// It reports false if the connection is closed or v cannot be encoded.
func (c *Conn) Send(v any) bool {
	data, ok := encode(v)
	if !ok {
		return false
	}
	return c.enqueue(data, true)
}

// TrySend queues v only if the queue has room.
func (c *Conn) TrySend(v any) bool {
	data, ok := encode(v)
	if !ok {
		return false
	}
	return c.enqueue(data, false)
}

func (c *Conn) enqueue(data []byte, wait bool) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	if !wait {
		select {
		case c.send <- data:
			return true
		default:
			return false
		}
	}

	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	}
}

// Close moves the connection to StateClosed and stops the writer.
// It is safe to call more than once.
func (c *Conn) Close() {
	c.once.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.done)
	})
}

// Done is closed when the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func encode(v any) ([]byte, bool) {
	switch m := v.(type) {
	case json.RawMessage:
		return m, true
	case []byte:
		return m, true
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("encoding outbound frame failed")
		return nil, false
	}
	return data, true
}

// writePump is the only goroutine writing data frames to the socket.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("user", c.UserID().String()).Msg("websocket write failed")
				c.Close()
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// readPump delivers inbound messages to fn until the socket fails or closes.
func (c *Conn) readPump(fn func(data []byte)) {
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Warn().Err(err).Str("user", c.UserID().String()).Msg("websocket closed unexpectedly")
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		fn(data)
	}
}
