package transport

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// ServerConfig configures an Upgrader.
type ServerConfig struct {
	// WriteTimeout bounds each frame write (default: 10s).
	WriteTimeout time.Duration

	// MaxMessageSize is the largest inbound frame (default: 1 MiB).
	MaxMessageSize int64

	// KeepAlive enables server-side pings. Zero disables them.
	KeepAlive KeepAliveConfig

	// CheckOrigin validates the Origin header. Nil accepts every origin.
	CheckOrigin func(r *http.Request) bool
}

// Upgrader turns HTTP requests into server-side Conns.
type Upgrader struct {
	config   ServerConfig
	upgrader websocket.Upgrader
}

// NewUpgrader creates an Upgrader, applying defaults for zero fields.
func NewUpgrader(config ServerConfig) *Upgrader {
	if config.WriteTimeout == 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	check := config.CheckOrigin
	if check == nil {
		check = func(*http.Request) bool { return true }
	}
	return &Upgrader{
		config: config,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: DefaultHandshakeTimeout,
			CheckOrigin:      check,
		},
	}
}

// Upgrade completes the websocket handshake. On failure an HTTP error has
// already been written to w.
func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (Conn, error) {
	ws, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newConn(ws, u.config.WriteTimeout, u.config.MaxMessageSize, u.config.KeepAlive), nil
}
