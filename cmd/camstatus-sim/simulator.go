package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/courtside/camstatus-go/internal/pushserver"
	"github.com/courtside/camstatus-go/pkg/transport"
	"github.com/courtside/camstatus-go/pkg/wire"
)

// SimulatorConfig configures a Simulator.
type SimulatorConfig struct {
	// Server configures the push endpoint. OnSubscribe is owned by the
	// simulator and overwritten.
	Server pushserver.Config

	// Interval between status changes.
	Interval time.Duration

	// DropEvery drops all sessions with DropCode on this period. Zero disables.
	DropEvery time.Duration

	// DropCode is the close code used for injected drops (default: 1006).
	DropCode int

	// Clock drives the tickers and timestamps (default: real clock).
	Clock clockwork.Clock
}

// Simulator publishes a Fleet through a push server.
type Simulator struct {
	config SimulatorConfig
	fleet  *Fleet
	server *pushserver.Server
	logger *slog.Logger
}

// NewSimulator wires fleet to a new push server. New subscribers to the
// snapshot topic receive every camera once.
func NewSimulator(fleet *Fleet, config SimulatorConfig) *Simulator {
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	if config.DropCode == 0 {
		config.DropCode = transport.CloseAbnormal
	}
	if config.Server.Logger == nil {
		config.Server.Logger = slog.Default()
	}

	s := &Simulator{
		config: config,
		fleet:  fleet,
		logger: config.Server.Logger,
	}
	config.Server.OnSubscribe = s.replay
	s.server = pushserver.New(config.Server)
	return s
}

// Server returns the underlying push server.
func (s *Simulator) Server() *pushserver.Server {
	return s.server
}

// Run publishes changes until ctx is done.
func (s *Simulator) Run(ctx context.Context) {
	ticker := s.config.Clock.NewTicker(s.config.Interval)
	defer ticker.Stop()

	var drops <-chan time.Time
	if s.config.DropEvery > 0 {
		dropTicker := s.config.Clock.NewTicker(s.config.DropEvery)
		defer dropTicker.Stop()
		drops = dropTicker.Chan()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.tick()
		case <-drops:
			n := s.server.DropAll(s.config.DropCode, "simulated fault")
			s.logger.Warn("injected drop", "sessions", n, "close_code", s.config.DropCode)
		}
	}
}

// tick advances one camera and publishes the change followed by the new
// snapshot.
func (s *Simulator) tick() {
	n, snap := s.fleet.Step()

	changes, err := s.server.PublishStatusChange(n)
	if err != nil {
		s.logger.Error("publish status change", "error", err)
		return
	}
	snapshots, err := s.server.PublishSnapshot(snap)
	if err != nil {
		s.logger.Error("publish snapshot", "error", err)
		return
	}
	s.logger.Info("status change",
		"camera", n.CameraID,
		"transition", n.Transition(),
		"change_receivers", changes,
		"snapshot_receivers", snapshots)
}

func (s *Simulator) replay(sessionID, topic string) {
	if topic != wire.TopicCameraStatus {
		return
	}
	for _, snap := range s.fleet.Snapshots() {
		if err := s.server.SendTo(sessionID, topic, snap); err != nil {
			s.logger.Debug("replay failed", "session", sessionID, "error", err)
			return
		}
	}
}
