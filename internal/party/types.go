package party

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no pong)")
	ErrTimeout         = errors.New("request timeout")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrInvalidURL      = errors.New("invalid server url")
)

// MessageKind names a frame type on the wire.
type MessageKind string

const (
	KindCreateSession  MessageKind = "createSession"
	KindJoinSession    MessageKind = "joinSession"
	KindSendMessage    MessageKind = "sendMessage"
	KindTypingPresence MessageKind = "setTypingPresence"
	KindKeepAlive      MessageKind = "keepAlive"
	KindUserID         MessageKind = "userId"
)

// Frame is an inbound frame from the server.
type Frame struct {
	Type       string          `json:"type"`
	Data       json.RawMessage `json:"data,omitempty"`
	CallbackID string          `json:"callbackId,omitempty"`
	Error      *RemoteError    `json:"error,omitempty"`
}

// outFrame is the envelope client -> server.
type outFrame struct {
	Type       MessageKind `json:"type"`
	Data       any         `json:"data,omitempty"`
	CallbackID string      `json:"callbackId,omitempty"`
}

// RemoteError is an error reply from the server.
type RemoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// UserSettings identifies the user inside a room.
type UserSettings struct {
	Nickname string `json:"userNickname"`
	Icon     string `json:"userIcon,omitempty"`
}

type createSessionData struct {
	UserSettings UserSettings `json:"userSettings"`
}

type joinSessionData struct {
	SessionID    string       `json:"sessionId"`
	UserSettings UserSettings `json:"userSettings"`
}

type sessionCreated struct {
	SessionID string `json:"sessionId"`
}

// ChatMessage is a chat message as the server sends it.
type ChatMessage struct {
	IsSystemMessage bool   `json:"isSystemMessage"`
	UserIcon        string `json:"userIcon,omitempty"`
	UserNickname    string `json:"userNickname,omitempty"`
	Body            string `json:"body"`
	PermID          string `json:"permId"`
	Timestamp       int64  `json:"timestamp"` // Unix milliseconds
}

// MessageList is a room's message history.
type MessageList struct {
	Messages []ChatMessage `json:"messages"`
}

// SendMessageData is the body of a sendMessage frame.
type SendMessageData struct {
	Body string `json:"body"`
}

// SetTypingData is the body of a setTypingPresence frame.
type SetTypingData struct {
	Typing bool `json:"typing"`
}

// Handlers receive connection lifecycle callbacks.
//
// OnClosed fires at most once per Conn, and not when the owner closed the Conn
// first. Close never waits for a running OnClosed, so owners may call Close
// while holding a lock their OnClosed takes.
type Handlers struct {
	OnReady   func()
	OnClosed  func()
	OnMessage func(Frame)
}

// ClientConfig configures a websocket client.
type ClientConfig struct {
	URL               string        // e.g. wss://chat.example.com/socket
	HandshakeTimeout  time.Duration // Dial deadline
	WriteTimeout      time.Duration // Write deadline for sends
	PingTimeout       time.Duration // Max time without pong before the connection is stale
	KeepAliveInterval time.Duration // keepAlive frame and ping cadence
	RequestTimeout    time.Duration // Wait for a createSession/joinSession reply
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout:  10 * time.Second,
		WriteTimeout:      5 * time.Second,
		PingTimeout:       60 * time.Second,
		KeepAliveInterval: 5 * time.Second,
		RequestTimeout:    10 * time.Second,
	}
}
