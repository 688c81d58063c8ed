// Command camstatus-sim runs a camera status push endpoint backed by a
// fleet of simulated cameras. It is meant for exercising camstatus-monitor
// and the status client without real hardware.
//
// Usage:
//
//	camstatus-sim [flags]
//
// Flags:
//
//	-addr string          Listen address (default ":8080")
//	-path string          Websocket path (default "/ws/camera-status")
//	-token string         Required bearer token (default from CAMSTATUS_TOKEN)
//	-cameras int          Number of simulated cameras (default 8)
//	-interval duration    Time between status changes (default 3s)
//	-seed uint            Random seed for the change sequence
//	-drop-every duration  Drop all sessions on this period (0 disables)
//	-drop-code int        Close code for injected drops (default 1006)
//	-advertise            Advertise the endpoint via mDNS
//	-name string          mDNS instance name (default "camstatus-sim")
//	-log-level string     Log level: debug, info, warn, error
//
// Examples:
//
//	# Local endpoint with a token
//	CAMSTATUS_TOKEN=secret camstatus-sim -addr 127.0.0.1:8080
//
//	# Drop every client abnormally every 20s to exercise reconnects
//	camstatus-sim -token secret -drop-every 20s
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/courtside/camstatus-go/internal/pushserver"
	"github.com/courtside/camstatus-go/pkg/discovery"
	"github.com/courtside/camstatus-go/pkg/transport"
	"github.com/courtside/camstatus-go/pkg/version"
)

var (
	addr      = flag.String("addr", ":8080", "Listen address")
	path      = flag.String("path", pushserver.DefaultPath, "Websocket path")
	token     = flag.String("token", os.Getenv("CAMSTATUS_TOKEN"), "Required bearer token")
	cameras   = flag.Int("cameras", 8, "Number of simulated cameras")
	interval  = flag.Duration("interval", 3*time.Second, "Time between status changes")
	seed      = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Random seed for the change sequence")
	dropEvery = flag.Duration("drop-every", 0, "Drop all sessions on this period (0 disables)")
	dropCode  = flag.Int("drop-code", transport.CloseAbnormal, "Close code for injected drops")
	advertise = flag.Bool("advertise", false, "Advertise the endpoint via mDNS")
	name      = flag.String("name", "camstatus-sim", "mDNS instance name")
	logLevel  = flag.String("log-level", "info", "Log level: debug, info, warn, error")
)

func main() {
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	if *cameras < 1 {
		return errors.New("-cameras must be at least 1")
	}
	if *interval <= 0 {
		return errors.New("-interval must be positive")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sim := NewSimulator(NewFleet(*cameras, *seed, nil), SimulatorConfig{
		Server: pushserver.Config{
			Address: *addr,
			Path:    *path,
			Token:   *token,
			Logger:  logger,
		},
		Interval:  *interval,
		DropEvery: *dropEvery,
		DropCode:  *dropCode,
	})
	srv := sim.Server()

	if err := srv.Start(ctx); err != nil {
		return err
	}
	defer srv.Stop()

	if *token == "" {
		logger.Warn("no token configured; accepting any client")
	}
	logger.Info("simulator running", "url", srv.URL(), "cameras", *cameras, "interval", *interval, "seed", *seed)

	if *advertise {
		adv, err := startAdvertiser(srv.Addr(), logger)
		if err != nil {
			return err
		}
		defer adv.Stop()
	}

	go sim.Run(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal", "signal", sig.String())
	return nil
}

func startAdvertiser(listen net.Addr, logger *slog.Logger) (*discovery.Advertiser, error) {
	_, portStr, err := net.SplitHostPort(listen.String())
	if err != nil {
		return nil, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, err
	}

	adv := discovery.NewAdvertiser(discovery.AdvertiserConfig{})
	info := &discovery.Info{
		InstanceName: *name,
		Port:         uint16(port),
		Path:         *path,
		Version:      version.Current,
	}
	if err := adv.Advertise(info); err != nil {
		return nil, fmt.Errorf("advertise: %w", err)
	}
	logger.Info("advertising via mDNS", "service", discovery.ServiceType, "instance", *name, "port", port)
	return adv, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
