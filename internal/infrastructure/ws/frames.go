// Package ws implements the chat protocol over websocket connections.
package ws

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/0xcro3dile/localrag-gateway/internal/domain/entities"
)

// Frame type tags.
const (
	TypeInit      = "init"
	TypeHeartbeat = "heartbeat"
	TypeError     = "error"
)

// InvalidMessageText is the error frame message for undecodable input.
const InvalidMessageText = "Invalid message format"

// InboundFrame is a decoded client frame: ChatFrame or UnknownFrame.
type InboundFrame interface {
	inbound()
}

// ChatFrame is a user chat message. Raw holds the frame exactly as received.
type ChatFrame struct {
	ID        string
	Text      string
	Timestamp int64
	Raw       []byte
}

// UnknownFrame is a well-formed frame with a type tag the server does not handle.
type UnknownFrame struct {
	Type string
}

func (ChatFrame) inbound()    {}
func (UnknownFrame) inbound() {}

// DecodeInbound parses a client frame. Anything that is not a JSON object
// with a string type tag, or a chat frame with wrongly typed fields or no
// text, fails with entities.ErrMalformedMessage.
func DecodeInbound(data []byte) (InboundFrame, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrMalformedMessage, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", entities.ErrMalformedMessage)
	}

	rawType, ok := fields["type"]
	if !ok {
		return nil, fmt.Errorf("%w: missing type", entities.ErrMalformedMessage)
	}
	var typ string
	if err := json.Unmarshal(rawType, &typ); err != nil {
		return nil, fmt.Errorf("%w: type is not a string", entities.ErrMalformedMessage)
	}

	if typ != string(entities.MessageOutgoing) {
		return UnknownFrame{Type: typ}, nil
	}

	frame := ChatFrame{Raw: data}
	if err := optionalField(fields, "id", &frame.ID); err != nil {
		return nil, err
	}
	if err := optionalField(fields, "timestamp", &frame.Timestamp); err != nil {
		return nil, err
	}
	if err := optionalField(fields, "text", &frame.Text); err != nil {
		return nil, err
	}
	if frame.Text == "" {
		return nil, fmt.Errorf("%w: empty text", entities.ErrMalformedMessage)
	}
	return frame, nil
}

func optionalField(fields map[string]json.RawMessage, name string, dst any) error {
	raw, ok := fields[name]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: bad %s", entities.ErrMalformedMessage, name)
	}
	return nil
}

// InitFrame tells the client who it is, sent once per connection.
type InitFrame struct {
	Type        string `json:"type"`
	UUID        string `json:"uuid"`
	DisplayName string `json:"displayName"`
	IsNew       bool   `json:"isNew"`
}

// NewInitFrame builds the init frame for u.
func NewInitFrame(u entities.User, isNew bool) InitFrame {
	return InitFrame{Type: TypeInit, UUID: u.ID.String(), DisplayName: u.DisplayName, IsNew: isNew}
}

// HeartbeatFrame is the periodic liveness frame. Time is epoch milliseconds.
type HeartbeatFrame struct {
	Type string `json:"type"`
	Time int64  `json:"time"`
}

// ErrorFrame reports a bad client frame. The connection stays open.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewErrorFrame builds an error frame.
func NewErrorFrame(message string) ErrorFrame {
	return ErrorFrame{Type: TypeError, Message: message}
}
