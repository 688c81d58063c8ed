package transport

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// WebSocket close codes used by the push protocol.
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	ClosePolicyViolation = 1008
	CloseInternalError   = 1011
	CloseAbnormal        = 1006
)

// Transport defaults.
const (
	// DefaultHandshakeTimeout bounds the HTTP upgrade.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultWriteTimeout bounds a single frame write.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultMaxMessageSize is the largest inbound frame accepted (1 MiB).
	DefaultMaxMessageSize = 1 << 20
)

// Transport errors.
var (
	ErrInvalidURL       = errors.New("invalid websocket url")
	ErrConnectionClosed = errors.New("connection closed")
	ErrHandshakeFailed  = errors.New("websocket handshake failed")
)

// Conn is one open websocket connection carrying text frames.
// WriteMessage and Close may be called concurrently with ReadMessage.
type Conn interface {
	// ReadMessage blocks until the next data frame arrives. A closed
	// connection returns an error that CloseCode classifies.
	ReadMessage() ([]byte, error)

	// WriteMessage sends data as one text frame.
	WriteMessage(data []byte) error

	// Close sends a close frame with code and reason and releases the
	// connection. Close is idempotent.
	Close(code int, reason string) error
}

// Dialer opens websocket connections.
type Dialer interface {
	// Dial opens a connection to url sending header with the upgrade
	// request. It returns once the handshake completes or fails.
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}
