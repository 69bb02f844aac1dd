package feed

import (
	"context"
	"errors"
)

var (
	// ErrAlreadyConnected is returned by Connect while a session is running
	ErrAlreadyConnected = errors.New("feed already connected")
	// ErrInvalidToken is reported when the feed rejects the socket token
	ErrInvalidToken = errors.New("invalid socket token")
	// ErrNoToken is returned by Connect when no socket token is configured
	ErrNoToken = errors.New("socket token is not configured")
)

// Handler receives the raw JSON array of every event frame
type Handler func(raw []byte) error

// Callbacks are invoked on connection state changes. Any may be nil.
type Callbacks struct {
	OnOpen         func()
	OnClose        func(reason string)
	OnInvalidToken func()
}

func (c Callbacks) open() {
	if c.OnOpen != nil {
		c.OnOpen()
	}
}

func (c Callbacks) close(reason string) {
	if c.OnClose != nil {
		c.OnClose(reason)
	}
}

func (c Callbacks) invalidToken() {
	if c.OnInvalidToken != nil {
		c.OnInvalidToken()
	}
}

// Source delivers raw events until disconnected
type Source interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
}
