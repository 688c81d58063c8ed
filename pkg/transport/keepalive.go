package transport

import (
	"time"
)

// Keep-alive constants.
const (
	// DefaultPingInterval is the default interval between pings.
	DefaultPingInterval = 30 * time.Second

	// DefaultPongWait is how long a connection may stay silent before it
	// is treated as gone.
	DefaultPongWait = 75 * time.Second
)

// KeepAliveConfig configures keep-alive behavior.
type KeepAliveConfig struct {
	// PingInterval is the interval between pings. Zero disables keep-alive.
	PingInterval time.Duration

	// PongWait is the read deadline extended on every pong. It must exceed
	// PingInterval; zero uses PingInterval*5/2.
	PongWait time.Duration
}

// DefaultKeepAliveConfig returns the default keep-alive configuration.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		PingInterval: DefaultPingInterval,
		PongWait:     DefaultPongWait,
	}
}

// Enabled reports whether pings are sent.
func (c KeepAliveConfig) Enabled() bool {
	return c.PingInterval > 0
}

// DetectionDelay is the longest a dead peer can go unnoticed.
func (c KeepAliveConfig) DetectionDelay() time.Duration {
	return c.pongWait()
}

func (c KeepAliveConfig) pongWait() time.Duration {
	if c.PongWait > c.PingInterval {
		return c.PongWait
	}
	return c.PingInterval * 5 / 2
}

// startKeepAlive arms the read deadline and runs the pinger until the
// connection closes. A failed ping is left to surface through the reader.
func startKeepAlive(c *wsConn, config KeepAliveConfig) {
	wait := config.pongWait()
	c.ws.SetReadDeadline(time.Now().Add(wait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(wait))
	})

	go func() {
		ticker := time.NewTicker(config.PingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-c.done():
				return
			case <-ticker.C:
				if err := c.ping(time.Now().Add(c.writeTimeout)); err != nil {
					return
				}
			}
		}
	}()
}
