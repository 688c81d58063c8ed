// Command camstatus-monitor connects to a camera status push endpoint and
// shows camera snapshots and status changes as they arrive.
//
// Usage:
//
//	camstatus-monitor [flags]
//
// Flags:
//
//	-config string        YAML configuration file
//	-url string           Push endpoint (overrides config and CAMSTATUS_WS_URL)
//	-token-file string    YAML file holding the bearer token
//	-discover             Find the endpoint via mDNS instead of -url
//	-interactive          Enable interactive command mode
//	-log-level string     Log level: debug, info, warn, error
//	-log-format string    Log format: text, json
//	-protocol-log string  File path for protocol event logging (CBOR format)
//	-relay string         MQTT broker URL; enables the relay
//	-print-config         Print the effective configuration and exit
//
// The bearer token is read from CAMSTATUS_TOKEN, then the token file, then
// the inline config token, on every connect attempt.
//
// Examples:
//
//	# Watch a local simulator
//	CAMSTATUS_TOKEN=secret camstatus-monitor -url ws://localhost:8080/ws/camera-status
//
//	# Discover the endpoint, capture the protocol and relay to MQTT
//	camstatus-monitor -discover -protocol-log monitor.clog -relay tcp://localhost:1883
//
// Interactive Commands:
//
//	status      - Show connection state and counters
//	cameras     - List known cameras
//	recent [n]  - Show recent status changes
//	connect     - Connect (resets the retry counter)
//	disconnect  - Close the connection and stop retrying
//	send <json> - Send a JSON payload
//	quit        - Exit
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/courtside/camstatus-go/cmd/camstatus-monitor/interactive"
	"github.com/courtside/camstatus-go/pkg/config"
	"github.com/courtside/camstatus-go/pkg/credential"
	"github.com/courtside/camstatus-go/pkg/discovery"
	"github.com/courtside/camstatus-go/pkg/log"
	"github.com/courtside/camstatus-go/pkg/monitor"
	"github.com/courtside/camstatus-go/pkg/relay"
	"github.com/courtside/camstatus-go/pkg/statusclient"
	"github.com/courtside/camstatus-go/pkg/transport"
	"github.com/courtside/camstatus-go/pkg/wire"
)

// Flags holds the command-line overrides.
type Flags struct {
	ConfigFile  string
	URL         string
	TokenFile   string
	Discover    bool
	Interactive bool
	LogLevel    string
	LogFormat   string
	ProtocolLog string
	Relay       string
	PrintConfig bool
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "YAML configuration file")
	flag.StringVar(&flags.URL, "url", "", "Push endpoint (overrides config and "+config.EnvURL+")")
	flag.StringVar(&flags.TokenFile, "token-file", "", "YAML file holding the bearer token")
	flag.BoolVar(&flags.Discover, "discover", false, "Find the endpoint via mDNS")
	flag.BoolVar(&flags.Interactive, "interactive", false, "Enable interactive command mode")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&flags.LogFormat, "log-format", "", "Log format: text, json")
	flag.StringVar(&flags.ProtocolLog, "protocol-log", "", "File path for protocol event logging (CBOR format)")
	flag.StringVar(&flags.Relay, "relay", "", "MQTT broker URL; enables the relay")
	flag.BoolVar(&flags.PrintConfig, "print-config", false, "Print the effective configuration and exit")
}

func main() {
	flag.Parse()

	cfg, err := loadConfig(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if flags.PrintConfig {
		data, err := cfg.Marshal()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(data)
		return
	}

	if err := run(cfg, flags.Interactive); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(f Flags) (*config.Config, error) {
	cfg, err := config.Load(f.ConfigFile)
	if err != nil {
		return nil, err
	}

	if f.URL != "" {
		cfg.Endpoint.URL = f.URL
	}
	if f.TokenFile != "" {
		cfg.Credentials.File = f.TokenFile
	}
	if f.Discover {
		cfg.Endpoint.Discover = true
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFormat != "" {
		cfg.Log.Format = f.LogFormat
	}
	if f.ProtocolLog != "" {
		cfg.ProtocolLog = f.ProtocolLog
	}
	if f.Relay != "" {
		cfg.Relay.Enabled = true
		cfg.Relay.Broker = f.Relay
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cfg *config.Config, interactiveMode bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &logSink{w: os.Stderr}
	logger := setupLogging(cfg.Log, sink)
	mon := monitor.New(monitor.Config{History: cfg.History})

	endpoint, err := resolveEndpoint(ctx, cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("camera status monitor", "endpoint", transport.RedactURL(endpoint))

	protocolLogger, closeProtocol, err := setupProtocolLog(cfg, logger)
	if err != nil {
		return err
	}
	defer closeProtocol()

	if cfg.Relay.Enabled {
		r, err := setupRelay(cfg, logger)
		if err != nil {
			return err
		}
		defer r.Close()
		mon.AddListener(r)
	}

	client := statusclient.New(statusclient.Config{
		URL:            endpoint,
		Credentials:    cfg.CredentialStore(),
		Dialer:         cfg.Dialer(),
		Backoff:        cfg.ConnectionBackoff(),
		MaxAttempts:    cfg.Backoff.MaxAttempts,
		Topics:         cfg.Topics,
		Logger:         logger,
		ProtocolLogger: protocolLogger,
	}, mon.Callbacks())
	defer client.Close()

	var shell *interactive.Shell
	if interactiveMode {
		shell, err = interactive.New(client, mon, transport.RedactURL(endpoint))
		if err != nil {
			return err
		}
		// Route log output through readline so it does not clobber the prompt.
		sink.set(shell.Stdout())
		mon.AddListener(&printer{out: shell.Stdout()})
	} else {
		mon.AddListener(&printer{out: os.Stdout})
	}

	if _, err := cfg.CredentialStore().Get(credential.TokenKey); err != nil {
		logger.Warn("no bearer token available yet; connect attempts will fail until one is set",
			"env", credential.NewEnvStore(cfg.Credentials.EnvPrefix).Variable(credential.TokenKey))
	}

	client.Connect()

	if shell != nil {
		go shell.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig.String())
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	client.Disconnect()
	return nil
}

func setupLogging(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func resolveEndpoint(ctx context.Context, cfg *config.Config, logger *slog.Logger) (string, error) {
	if !cfg.Endpoint.Discover {
		return cfg.Endpoint.URL, nil
	}

	logger.Info("browsing for endpoint", "service", discovery.ServiceType, "timeout", cfg.Endpoint.DiscoverTimeout)
	browser := discovery.NewBrowser(discovery.BrowserConfig{BrowseTimeout: cfg.Endpoint.DiscoverTimeout})
	svc, err := browser.Browse(ctx)
	if err != nil {
		return "", fmt.Errorf("discover endpoint: %w", err)
	}
	url, err := svc.URL()
	if err != nil {
		return "", fmt.Errorf("discover endpoint: %w", err)
	}
	logger.Info("discovered endpoint", "instance", svc.InstanceName, "url", url)
	return url, nil
}

// setupProtocolLog opens the capture file. At debug level events are also
// mirrored to the operational log.
func setupProtocolLog(cfg *config.Config, logger *slog.Logger) (log.Logger, func(), error) {
	var loggers []log.Logger
	closeFn := func() {}

	if cfg.ProtocolLog != "" {
		fl, err := log.NewFileLogger(cfg.ProtocolLog)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create protocol logger: %w", err)
		}
		logger.Info("protocol logging", "path", cfg.ProtocolLog)
		loggers = append(loggers, fl)
		closeFn = func() {
			if n := fl.Dropped(); n > 0 {
				logger.Warn("protocol events dropped", "count", n)
			}
			fl.Close()
		}
	}
	if strings.ToLower(cfg.Log.Level) == "debug" {
		loggers = append(loggers, log.NewSlogAdapter(logger))
	}

	if len(loggers) == 0 {
		return nil, closeFn, nil
	}
	return log.NewMultiLogger(loggers...), closeFn, nil
}

func setupRelay(cfg *config.Config, logger *slog.Logger) (*relay.Relay, error) {
	pub, err := relay.NewPahoPublisher(relay.Config{
		BrokerURL: cfg.Relay.Broker,
		ClientID:  cfg.Relay.ClientID,
		Username:  cfg.Relay.Username,
		Password:  cfg.Relay.Password,
		TLS:       strings.HasPrefix(cfg.Relay.Broker, "ssl://") || strings.HasPrefix(cfg.Relay.Broker, "tls://"),
		Prefix:    cfg.Relay.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("connect relay: %w", err)
	}
	logger.Info("relaying to MQTT", "broker", cfg.Relay.Broker, "prefix", cfg.Relay.Prefix)
	return relay.New(pub, cfg.Relay.Prefix, logger), nil
}

// logSink is the operational log destination. Interactive mode moves it
// onto the readline writer after the client is built.
type logSink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *logSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *logSink) set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

// printer writes monitor updates as single lines.
type printer struct {
	out io.Writer
}

func (p *printer) OnSnapshot(s wire.CameraSnapshot) {
	fmt.Fprintf(p.out, "[SNAPSHOT] %s %q %s\n", s.ID, s.Name, s.Status)
}

func (p *printer) OnStatusChange(n wire.StatusNotification) {
	fmt.Fprintf(p.out, "[CHANGE]   %s %q %s at %s\n", n.CameraID, n.CameraName, n.Transition(), wire.FormatTimestamp(n.Timestamp))
}

func (p *printer) OnConnectionChange(connected bool) {
	if connected {
		fmt.Fprintln(p.out, "[CONN]     connected")
	} else {
		fmt.Fprintln(p.out, "[CONN]     disconnected")
	}
}
