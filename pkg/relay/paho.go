package relay

import (
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Paho defaults.
const (
	DefaultQoS            = 1
	DefaultPublishTimeout = 5 * time.Second
	connectTimeout        = 10 * time.Second
)

// ErrPublishTimeout is returned when the broker does not acknowledge in time.
var ErrPublishTimeout = errors.New("mqtt publish timed out")

// Config configures a PahoPublisher.
type Config struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	TLS       bool

	// Prefix is used for the last-will on <prefix>/bridge/online.
	Prefix string

	// QoS for publishes (default: 1).
	QoS byte

	// PublishTimeout bounds waiting for an acknowledgement (default: 5s).
	PublishTimeout time.Duration
}

// PahoPublisher publishes over an eclipse/paho MQTT connection.
type PahoPublisher struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
}

// NewPahoPublisher connects to the broker. The broker publishes "false" on
// the online topic if the connection is lost without a clean Close.
func NewPahoPublisher(cfg Config) (*PahoPublisher, error) {
	if cfg.BrokerURL == "" {
		return nil, errors.New("missing broker url")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("missing client id")
	}
	if cfg.QoS == 0 {
		cfg.QoS = DefaultQoS
	}
	if cfg.PublishTimeout == 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetKeepAlive(30 * time.Second).
		SetConnectTimeout(5 * time.Second).
		SetPingTimeout(3 * time.Second).
		SetAutoReconnect(true).
		SetOrderMatters(false)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	if cfg.Prefix != "" {
		opts.SetWill(OnlineTopic(cfg.Prefix), "false", cfg.QoS, true)
	}

	client := mqtt.NewClient(opts)
	t := client.Connect()
	if ok := t.WaitTimeout(connectTimeout); !ok {
		return nil, fmt.Errorf("connect %s: timed out", cfg.BrokerURL)
	}
	if err := t.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.BrokerURL, err)
	}

	return &PahoPublisher{
		client:  client,
		qos:     cfg.QoS,
		timeout: cfg.PublishTimeout,
	}, nil
}

// Publish sends payload and waits for the acknowledgement.
func (p *PahoPublisher) Publish(topic string, payload []byte, retained bool) error {
	t := p.client.Publish(topic, p.qos, retained, payload)
	if !t.WaitTimeout(p.timeout) {
		return ErrPublishTimeout
	}
	return t.Error()
}

// Close disconnects, allowing in-flight messages 250ms to complete.
func (p *PahoPublisher) Close() error {
	if p.client.IsConnectionOpen() {
		p.client.Disconnect(250)
	}
	return nil
}

var _ Publisher = (*PahoPublisher)(nil)
