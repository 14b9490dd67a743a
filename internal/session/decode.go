package session

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vaitul/partychat/internal/party"
)

// inboundKind tags a decoded inbound frame.
type inboundKind int

const (
	inboundNone inboundKind = iota
	inboundTyping
	inboundHistory
	inboundMessage
)

func (k inboundKind) String() string {
	switch k {
	case inboundTyping:
		return "typing"
	case inboundHistory:
		return "history"
	case inboundMessage:
		return "message"
	default:
		return "other"
	}
}

// inbound is one frame after decoding. userID is set independently of kind.
type inbound struct {
	kind   inboundKind
	userID string

	anyoneTyping bool
	usersTyping  []string

	history []party.ChatMessage
	message party.ChatMessage
}

// payloadShape records which fields a payload carries.
type payloadShape struct {
	UserID       *string         `json:"userId"`
	AnyoneTyping *bool           `json:"anyoneTyping"`
	UsersTyping  []string        `json:"usersTyping"`
	Messages     json.RawMessage `json:"messages"`
	Body         json.RawMessage `json:"body"`
}

// decodeInbound classifies a frame's payload. Typing wins over history, and
// history wins over a single message.
func decodeInbound(f party.Frame) (inbound, error) {
	var in inbound

	data := bytes.TrimSpace(f.Data)
	if len(data) == 0 || data[0] != '{' {
		return in, nil
	}

	var p payloadShape
	if err := json.Unmarshal(data, &p); err != nil {
		return in, fmt.Errorf("decode %s payload: %w", f.Type, err)
	}

	if p.UserID != nil {
		in.userID = *p.UserID
	}

	switch {
	case p.AnyoneTyping != nil:
		in.kind = inboundTyping
		in.anyoneTyping = *p.AnyoneTyping
		in.usersTyping = p.UsersTyping

	case isArray(p.Messages):
		var list party.MessageList
		if err := json.Unmarshal(data, &list); err != nil {
			return in, fmt.Errorf("decode message history: %w", err)
		}
		in.kind = inboundHistory
		in.history = list.Messages

	case isString(p.Body):
		var msg party.ChatMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return in, fmt.Errorf("decode chat message: %w", err)
		}
		in.kind = inboundMessage
		in.message = msg
	}

	return in, nil
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func isString(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '"'
}
