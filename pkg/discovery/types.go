package discovery

import (
	"errors"
	"slices"
	"time"
)

const (
	// ServiceType is the DNS-SD service type of a live status endpoint.
	ServiceType = "_camstatus._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultPort is used when an advertisement does not specify one.
	DefaultPort = 8080

	// DefaultPath is the websocket path assumed when TXT has no path key.
	DefaultPath = "/ws/camera-status"

	// MaxInstanceNameLen is the DNS label limit for instance names.
	MaxInstanceNameLen = 63
)

// TXT record keys.
const (
	TXTKeyPath    = "path"
	TXTKeyTLS     = "tls"
	TXTKeyVersion = "ver"
)

// BrowseTimeout is the default time Browse waits for a first answer.
const BrowseTimeout = 5 * time.Second

var (
	ErrNotFound            = errors.New("no endpoint found")
	ErrInvalidPath         = errors.New("invalid path in TXT record")
	ErrInvalidPort         = errors.New("invalid port")
	ErrInvalidInstanceName = errors.New("invalid instance name")
	ErrNoAddress           = errors.New("service has no address")
)

// Service is a resolved endpoint announcement.
type Service struct {
	InstanceName string
	Host         string
	Port         uint16
	Addresses    []string
	Path         string
	TLS          bool
	Version      string
}

// Clone returns a copy that shares no memory with s.
func (s *Service) Clone() *Service {
	c := *s
	c.Addresses = slices.Clone(s.Addresses)
	return &c
}

// Info describes what an advertiser announces.
type Info struct {
	InstanceName string
	Port         uint16
	Path         string
	TLS          bool
	Version      string
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface restricts advertising to one network interface.
	// Empty string means all interfaces.
	Interface string

	// TTL overrides the record TTL. Zero keeps the zeroconf default.
	TTL time.Duration
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout bounds Browse when the context has no deadline.
	BrowseTimeout time.Duration

	// Interface restricts browsing to one network interface.
	Interface string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		BrowseTimeout: BrowseTimeout,
	}
}
