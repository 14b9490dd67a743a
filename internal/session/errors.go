package session

import (
	"errors"
	"fmt"
)

var (
	ErrClientNotInitialized = errors.New("chat client not initialized")
	ErrNotConnected         = errors.New("not connected to server")
	ErrNotInRoom            = errors.New("not in a room")
	ErrExternalService      = errors.New("chat service request failed")
	ErrReloadRequired       = errors.New("reconnect attempts exhausted, reload required")
	ErrNotReconnectable     = errors.New("nothing to reconnect")
	ErrSuperseded           = errors.New("session changed while request was in flight")
	ErrEmptyDisplayName     = errors.New("display name is empty")
	ErrClosed               = errors.New("session manager closed")
	ErrAlreadyStarted       = errors.New("session manager already started")
)

// ExternalError is a create, join or send rejected by the chat service.
// It matches ErrExternalService and unwraps to the cause.
type ExternalError struct {
	Op  string
	Err error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExternalError) Unwrap() error {
	return e.Err
}

func (e *ExternalError) Is(target error) bool {
	return target == ErrExternalService
}
