// Package config loads the monitor configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/courtside/camstatus-go/pkg/connection"
	"github.com/courtside/camstatus-go/pkg/credential"
	"github.com/courtside/camstatus-go/pkg/transport"
	"github.com/courtside/camstatus-go/pkg/wire"
)

// EnvURL overrides Endpoint.URL when set.
const EnvURL = "CAMSTATUS_WS_URL"

// DefaultEnvPrefix is the prefix for credential environment variables, so
// the token is read from CAMSTATUS_TOKEN.
const DefaultEnvPrefix = "CAMSTATUS_"

// Defaults.
const (
	DefaultURL             = "ws://localhost:8080/ws/camera-status"
	DefaultHistory         = 50
	DefaultDiscoverTimeout = 5 * time.Second
	DefaultRelayPrefix     = "camstatus"
)

// Config errors.
var (
	ErrInvalidConfig = errors.New("invalid config")
)

// Config is the monitor configuration.
type Config struct {
	Endpoint    EndpointConfig   `yaml:"endpoint"`
	Topics      []string         `yaml:"topics,omitempty"`
	Backoff     BackoffConfig    `yaml:"backoff"`
	Credentials CredentialConfig `yaml:"credentials"`
	KeepAlive   KeepAliveConfig  `yaml:"keepalive"`
	History     int              `yaml:"history"`
	ProtocolLog string           `yaml:"protocol_log,omitempty"`
	Relay       RelayConfig      `yaml:"relay"`
	Log         LogConfig        `yaml:"log"`
}

// EndpointConfig locates the push endpoint.
type EndpointConfig struct {
	URL string `yaml:"url"`

	// Discover browses mDNS for the endpoint instead of using URL.
	Discover        bool          `yaml:"discover"`
	DiscoverTimeout time.Duration `yaml:"discover_timeout"`
}

// BackoffConfig tunes reconnection.
type BackoffConfig struct {
	Initial     time.Duration `yaml:"initial"`
	Max         time.Duration `yaml:"max"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// KeepAliveConfig enables websocket pings. A zero interval disables them.
type KeepAliveConfig struct {
	Interval time.Duration `yaml:"interval"`
	PongWait time.Duration `yaml:"pong_wait,omitempty"`
}

// CredentialConfig selects where the bearer token comes from. Sources are
// consulted in order: environment, file, inline token.
type CredentialConfig struct {
	File      string `yaml:"file,omitempty"`
	EnvPrefix string `yaml:"env_prefix,omitempty"`
	Token     string `yaml:"token,omitempty"`
}

// RelayConfig configures the optional MQTT relay.
type RelayConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker,omitempty"`
	ClientID string `yaml:"client_id,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

// LogConfig configures operational logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Endpoint: EndpointConfig{
			URL:             DefaultURL,
			DiscoverTimeout: DefaultDiscoverTimeout,
		},
		Topics: wire.Topics(),
		Backoff: BackoffConfig{
			Initial:     connection.InitialBackoff,
			Max:         connection.MaxBackoff,
			MaxAttempts: connection.DefaultMaxAttempts,
		},
		Credentials: CredentialConfig{
			EnvPrefix: DefaultEnvPrefix,
		},
		History: DefaultHistory,
		Relay: RelayConfig{
			ClientID: "camstatus-monitor",
			Prefix:   DefaultRelayPrefix,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults, applies the environment override and
// validates the result. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.Parse(data); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML into c. Fields absent from data keep their values.
func (c *Config) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// ApplyEnv applies environment overrides using lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvURL); ok && strings.TrimSpace(v) != "" {
		c.Endpoint.URL = strings.TrimSpace(v)
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error

	if !c.Endpoint.Discover {
		if _, err := transport.ParseURL(c.Endpoint.URL); err != nil {
			errs = append(errs, fmt.Errorf("endpoint.url: %w", err))
		}
	}
	if c.Endpoint.Discover && c.Endpoint.DiscoverTimeout <= 0 {
		errs = append(errs, errors.New("endpoint.discover_timeout must be positive"))
	}
	for _, topic := range c.Topics {
		if !strings.HasPrefix(topic, "/") {
			errs = append(errs, fmt.Errorf("topic %q must start with /", topic))
		}
	}
	if c.Backoff.Initial <= 0 {
		errs = append(errs, errors.New("backoff.initial must be positive"))
	}
	if c.Backoff.Max < c.Backoff.Initial {
		errs = append(errs, errors.New("backoff.max must not be below backoff.initial"))
	}
	if c.Backoff.MaxAttempts <= 0 {
		errs = append(errs, errors.New("backoff.max_attempts must be positive"))
	}
	if c.KeepAlive.Interval < 0 {
		errs = append(errs, errors.New("keepalive.interval must not be negative"))
	}
	if c.KeepAlive.PongWait != 0 && c.KeepAlive.PongWait <= c.KeepAlive.Interval {
		errs = append(errs, errors.New("keepalive.pong_wait must exceed keepalive.interval"))
	}
	if c.History <= 0 {
		errs = append(errs, errors.New("history must be positive"))
	}
	if c.Relay.Enabled && c.Relay.Broker == "" {
		errs = append(errs, errors.New("relay.broker is required when the relay is enabled"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ConnectionBackoff converts the backoff settings for the client.
func (c *Config) ConnectionBackoff() connection.BackoffConfig {
	return connection.BackoffConfig{
		Initial:    c.Backoff.Initial,
		Max:        c.Backoff.Max,
		Multiplier: connection.BackoffMultiplier,
	}
}

// Dialer builds the websocket dialer with the keepalive settings.
func (c *Config) Dialer() *transport.WebSocketDialer {
	return transport.NewWebSocketDialer(transport.DialerConfig{
		KeepAlive: transport.KeepAliveConfig{
			PingInterval: c.KeepAlive.Interval,
			PongWait:     c.KeepAlive.PongWait,
		},
	})
}

// CredentialStore builds the store chain described by Credentials.
func (c *Config) CredentialStore() credential.Store {
	var stores []credential.Store
	if c.Credentials.EnvPrefix != "" {
		stores = append(stores, credential.NewEnvStore(c.Credentials.EnvPrefix))
	}
	if c.Credentials.File != "" {
		stores = append(stores, credential.NewFileStore(c.Credentials.File))
	}
	if c.Credentials.Token != "" {
		stores = append(stores, credential.NewMemoryStore(map[string]string{
			credential.TokenKey: c.Credentials.Token,
		}))
	}
	return credential.NewChainStore(stores...)
}

// Marshal encodes c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
