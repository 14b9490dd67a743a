package session

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Status is the connection status of the session.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Identity is what the manager needs to rejoin a room after a drop.
type Identity struct {
	DisplayName string // user-chosen label
	Nickname    string // userId::displayName on the current connection
	RoomID      string
	Icon        string
}

// Message is a chat message held in the session's message list.
type Message struct {
	Key         string // locally unique, stable for rendering
	SenderID    string // server-assigned permanent user ID
	Nickname    string // qualified nickname of the sender
	DisplayName string
	Body        string
	Icon        string
	IsSystem    bool
	Timestamp   time.Time
}

// State is a snapshot of the session's observable state.
type State struct {
	Status         Status
	UserID         string
	RoomID         string
	Nickname       string
	Icon           string
	Messages       []Message
	AnyoneTyping   bool
	RetryAttempts  int
	RetryDelay     time.Duration // delay of the pending retry, 0 when none
	ReloadRequired bool          // retries exhausted
}

// InRoom reports whether the snapshot carries a room identity.
func (s State) InRoom() bool {
	return s.RoomID != ""
}

// Config configures the session manager.
type Config struct {
	MaxAttempts   int           // automatic reconnect budget per outage
	BaseDelay     time.Duration // delay before the first retry
	MaxDelay      time.Duration // cap on any retry delay
	JoinGrace     time.Duration // wait for a user ID before create/join
	RejoinGrace   time.Duration // wait for a user ID before rejoining after reconnect
	RejoinTimeout time.Duration // deadline for the rejoin request, 0 for none
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		BaseDelay:     time.Second,
		MaxDelay:      5 * time.Second,
		JoinGrace:     100 * time.Millisecond,
		RejoinGrace:   500 * time.Millisecond,
		RejoinTimeout: 15 * time.Second,
	}
}

// IdentityStore persists the display name and icon of the last room entered.
type IdentityStore interface {
	SaveProfile(displayName, icon string) error
}

// Archive receives every live message appended to the list. Implementations
// must not block.
type Archive interface {
	Archive(roomID string, msg Message)
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock used for retry timers, grace periods and
// fallback user IDs.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithIdentityStore persists the identity after each successful create or join.
func WithIdentityStore(s IdentityStore) Option {
	return func(m *Manager) {
		m.store = s
	}
}

// WithArchive hands every appended live message to a.
func WithArchive(a Archive) Option {
	return func(m *Manager) {
		m.archive = a
	}
}
