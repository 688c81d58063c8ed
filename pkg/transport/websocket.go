package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DialerConfig configures a WebSocketDialer.
type DialerConfig struct {
	// HandshakeTimeout bounds the upgrade (default: 10s).
	HandshakeTimeout time.Duration

	// WriteTimeout bounds each frame write (default: 10s).
	WriteTimeout time.Duration

	// MaxMessageSize is the largest inbound frame (default: 1 MiB).
	MaxMessageSize int64

	// TLSConfig is used for wss endpoints. Nil uses the system defaults.
	TLSConfig *tls.Config

	// KeepAlive enables ping/pong liveness checks. Zero disables them.
	KeepAlive KeepAliveConfig
}

// WebSocketDialer dials push endpoints with gorilla/websocket.
type WebSocketDialer struct {
	config DialerConfig
	dialer *websocket.Dialer
}

// NewWebSocketDialer creates a dialer, applying defaults for zero fields.
func NewWebSocketDialer(config DialerConfig) *WebSocketDialer {
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	return &WebSocketDialer{
		config: config,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
			TLSClientConfig:  config.TLSConfig,
		},
	}
}

// Dial opens a websocket connection to url.
func (d *WebSocketDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	if _, err := ParseURL(url); err != nil {
		return nil, err
	}

	ws, resp, err := d.dialer.DialContext(ctx, url, header)
	if err != nil {
		if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
			return nil, fmt.Errorf("%w: HTTP %d", ErrHandshakeFailed, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", RedactURL(url), err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	return newConn(ws, d.config.WriteTimeout, d.config.MaxMessageSize, d.config.KeepAlive), nil
}

// wsConn adapts *websocket.Conn to Conn.
type wsConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeCh   chan struct{}
}

func newConn(ws *websocket.Conn, writeTimeout time.Duration, maxSize int64, ka KeepAliveConfig) *wsConn {
	if maxSize > 0 {
		ws.SetReadLimit(maxSize)
	}
	c := &wsConn{
		ws:           ws,
		writeTimeout: writeTimeout,
		closeCh:      make(chan struct{}),
	}
	if ka.Enabled() {
		startKeepAlive(c, ka)
	}
	return c
}

// ReadMessage returns the next text or binary frame payload.
func (c *wsConn) ReadMessage() ([]byte, error) {
	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if typ == websocket.TextMessage || typ == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// WriteMessage sends data as a text frame.
func (c *wsConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}

	if c.writeTimeout > 0 {
		c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and closes the socket. CloseAbnormal is never
// put on the wire; the socket is dropped instead.
func (c *wsConn) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		if code == CloseAbnormal {
			err = c.ws.Close()
			return
		}
		msg := websocket.FormatCloseMessage(code, reason)
		// Best effort: the peer may already be gone.
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}

func (c *wsConn) ping(deadline time.Time) error {
	return c.ws.WriteControl(websocket.PingMessage, nil, deadline)
}

func (c *wsConn) done() <-chan struct{} {
	return c.closeCh
}

var (
	_ Dialer = (*WebSocketDialer)(nil)
	_ Conn   = (*wsConn)(nil)
)
