package ws

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/0xcro3dile/localrag-gateway/internal/domain/entities"
)

func TestDecodeInbound_Chat(t *testing.T) {
	raw := []byte(`{"type":"outgoing","id":"1","text":"hello","timestamp":1000}`)

	frame, err := DecodeInbound(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	chat, ok := frame.(ChatFrame)
	if !ok {
		t.Fatalf("expected ChatFrame, got %T", frame)
	}
	if chat.ID != "1" || chat.Text != "hello" || chat.Timestamp != 1000 {
		t.Errorf("unexpected frame: %+v", chat)
	}
	if string(chat.Raw) != string(raw) {
		t.Error("raw bytes should be kept verbatim")
	}
}

func TestDecodeInbound_Unknown(t *testing.T) {
	frame, err := DecodeInbound([]byte(`{"type":"chat","message":"hi"}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	unknown, ok := frame.(UnknownFrame)
	if !ok || unknown.Type != "chat" {
		t.Errorf("expected UnknownFrame{chat}, got %#v", frame)
	}
}

func TestDecodeInbound_Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"not json", `not json`},
		{"empty object", `{}`},
		{"array", `[{"type":"outgoing"}]`},
		{"null", `null`},
		{"string", `"outgoing"`},
		{"numeric type", `{"type":7}`},
		{"text not string", `{"type":"outgoing","text":42}`},
		{"timestamp not number", `{"type":"outgoing","text":"hi","timestamp":"now"}`},
		{"id not string", `{"type":"outgoing","text":"hi","id":{}}`},
		{"missing text", `{"type":"outgoing","id":"1"}`},
		{"empty text", `{"type":"outgoing","text":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeInbound([]byte(tt.in))
			if !errors.Is(err, entities.ErrMalformedMessage) {
				t.Errorf("expected ErrMalformedMessage, got %v", err)
			}
		})
	}
}

func TestDecodeInbound_OptionalFields(t *testing.T) {
	frame, err := DecodeInbound([]byte(`{"type":"outgoing","text":"hi","id":null}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if frame.(ChatFrame).ID != "" {
		t.Error("null id should decode as empty")
	}
}

func TestOutboundFrames_Wire(t *testing.T) {
	u := entities.User{ID: uuid.MustParse("7f1b3c2a-0000-4000-8000-000000000001"), DisplayName: "Ana"}

	data, _ := json.Marshal(NewInitFrame(u, true))
	want := `{"type":"init","uuid":"7f1b3c2a-0000-4000-8000-000000000001","displayName":"Ana","isNew":true}`
	if string(data) != want {
		t.Errorf("init frame = %s", data)
	}

	data, _ = json.Marshal(NewErrorFrame(InvalidMessageText))
	if string(data) != `{"type":"error","message":"Invalid message format"}` {
		t.Errorf("error frame = %s", data)
	}

	data, _ = json.Marshal(HeartbeatFrame{Type: TypeHeartbeat, Time: 42})
	if string(data) != `{"type":"heartbeat","time":42}` {
		t.Errorf("heartbeat frame = %s", data)
	}
}
