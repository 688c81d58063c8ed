// Package pushserver is a websocket endpoint speaking the live status wire
// protocol. It backs the simulator and the end-to-end tests.
package pushserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/courtside/camstatus-go/pkg/transport"
	"github.com/courtside/camstatus-go/pkg/wire"
)

// DefaultPath is where the websocket endpoint is mounted.
const DefaultPath = "/ws/camera-status"

var (
	ErrAlreadyRunning = errors.New("server already running")
	ErrUnknownSession = errors.New("unknown session")
	ErrNotSubscribed  = errors.New("session not subscribed to destination")
)

// Config configures a Server.
type Config struct {
	// Address to listen on (e.g. ":8080" or "127.0.0.1:0").
	Address string

	// Path is the websocket path (default: DefaultPath).
	Path string

	// Token is the credential a client must present. Empty accepts any client.
	Token string

	// KeepAlive enables server-side pings.
	KeepAlive transport.KeepAliveConfig

	// Logger for operational logging (default: slog.Default()).
	Logger *slog.Logger

	// OnSubscribe is called after a session subscribes to a topic.
	OnSubscribe func(sessionID, topic string)

	// OnMessage is called for every frame that is not a SUBSCRIBE.
	OnMessage func(sessionID string, data []byte)
}

// Server accepts status clients and fans out notifications to the sessions
// subscribed to each topic.
type Server struct {
	config   Config
	logger   *slog.Logger
	upgrader *transport.Upgrader
	mux      *http.ServeMux

	mu       sync.Mutex
	sessions map[string]*session
	changed  chan struct{}

	httpSrv  *http.Server
	listener net.Listener
	running  atomic.Bool
	wg       sync.WaitGroup
}

type session struct {
	id     string
	conn   transport.Conn
	topics map[string]bool
}

// New creates a Server. Call Start to listen, or mount Handler yourself.
func New(config Config) *Server {
	if config.Path == "" {
		config.Path = DefaultPath
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:   config,
		logger:   logger,
		upgrader: transport.NewUpgrader(transport.ServerConfig{KeepAlive: config.KeepAlive}),
		mux:      http.NewServeMux(),
		sessions: make(map[string]*session),
		changed:  make(chan struct{}),
	}
	s.mux.HandleFunc(config.Path, s.serveWS)
	return s
}

// Handler returns the HTTP handler serving the websocket path.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return ErrAlreadyRunning
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.httpSrv = &http.Server{Handler: s.mux}
	s.running.Store(true)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve failed", "error", err)
		}
	}()

	s.logger.Info("push server listening", "addr", listener.Addr().String(), "path", s.config.Path)
	return nil
}

// Stop closes the listener and every session with going-away.
func (s *Server) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}
	err := s.httpSrv.Close()
	s.DropAll(transport.CloseGoingAway, "server shutdown")
	s.wg.Wait()
	return err
}

// Addr returns the listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// URL returns the ws:// URL of the endpoint, or "" before Start.
func (s *Server) URL() string {
	addr := s.Addr()
	if addr == nil {
		return ""
	}
	return "ws://" + addr.String() + s.config.Path
}

// SessionCount returns the number of connected sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Subscribers returns how many sessions are subscribed to topic.
func (s *Server) Subscribers(topic string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribersLocked(topic)
}

func (s *Server) subscribersLocked(topic string) int {
	n := 0
	for _, sess := range s.sessions {
		if sess.topics[topic] {
			n++
		}
	}
	return n
}

// WaitSubscribers blocks until at least n sessions are subscribed to topic.
func (s *Server) WaitSubscribers(ctx context.Context, topic string, n int) error {
	for {
		s.mu.Lock()
		count := s.subscribersLocked(topic)
		ch := s.changed
		s.mu.Unlock()

		if count >= n {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// PublishSnapshot sends snap to every session subscribed to the snapshot topic.
// It returns the number of sessions that received it.
func (s *Server) PublishSnapshot(snap wire.CameraSnapshot) (int, error) {
	frame, err := wire.EncodeSnapshot(snap)
	if err != nil {
		return 0, err
	}
	return s.broadcast(wire.TopicCameraStatus, frame), nil
}

// PublishStatusChange sends n to every session subscribed to the change topic.
func (s *Server) PublishStatusChange(n wire.StatusNotification) (int, error) {
	frame, err := wire.EncodeStatusNotification(n)
	if err != nil {
		return 0, err
	}
	return s.broadcast(wire.TopicStatusChange, frame), nil
}

// PublishRaw sends frame verbatim to the subscribers of destination.
func (s *Server) PublishRaw(destination string, frame []byte) int {
	return s.broadcast(destination, frame)
}

// SendTo delivers payload to one session on destination.
func (s *Server) SendTo(sessionID, destination string, payload any) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	subscribed := ok && sess.topics[destination]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	if !subscribed {
		return fmt.Errorf("%w: %s", ErrNotSubscribed, destination)
	}

	frame, err := wire.EncodeMessage(destination, payload)
	if err != nil {
		return err
	}
	return sess.conn.WriteMessage(frame)
}

// DropAll closes every session with code. CloseAbnormal drops the sockets
// without a close frame. It returns the number of sessions closed.
func (s *Server) DropAll(code int, reason string) int {
	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.conn.Close(code, reason)
	}
	if len(sessions) > 0 {
		s.logger.Info("dropped sessions", "count", len(sessions), "close_code", code)
	}
	return len(sessions)
}

func (s *Server) broadcast(destination string, frame []byte) int {
	s.mu.Lock()
	targets := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.topics[destination] {
			targets = append(targets, sess)
		}
	}
	s.mu.Unlock()

	delivered := 0
	for _, sess := range targets {
		if err := sess.conn.WriteMessage(frame); err != nil {
			s.logger.Debug("write failed", "session", sess.id, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	if s.config.Token != "" && transport.TokenFromRequest(r) != s.config.Token {
		s.logger.Warn("rejected client", "remote", r.RemoteAddr, "reason", "bad credential")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r)
	if err != nil {
		s.logger.Debug("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	sess := &session{
		id:     uuid.NewString(),
		conn:   conn,
		topics: make(map[string]bool),
	}
	s.register(sess)
	s.logger.Info("session opened", "session", sess.id, "remote", r.RemoteAddr)

	err = s.readLoop(sess)

	s.unregister(sess)
	conn.Close(transport.CloseNormal, "")
	s.logger.Info("session closed", "session", sess.id,
		"close_code", transport.CloseCode(err), "reason", transport.CloseReason(err))
}

func (s *Server) readLoop(sess *session) error {
	for {
		data, err := sess.conn.ReadMessage()
		if err != nil {
			return err
		}

		if env, err := wire.DecodeEnvelope(data); err == nil && env.Type == wire.FrameSubscribe {
			s.subscribe(sess, env.Destination)
			continue
		}
		if s.config.OnMessage != nil {
			s.config.OnMessage(sess.id, data)
		}
	}
}

func (s *Server) subscribe(sess *session, topic string) {
	s.mu.Lock()
	sess.topics[topic] = true
	s.notifyLocked()
	s.mu.Unlock()

	s.logger.Debug("subscribed", "session", sess.id, "topic", topic)
	if s.config.OnSubscribe != nil {
		s.config.OnSubscribe(sess.id, topic)
	}
}

func (s *Server) register(sess *session) {
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.notifyLocked()
	s.mu.Unlock()
}

func (s *Server) unregister(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.notifyLocked()
	s.mu.Unlock()
}

// notifyLocked wakes WaitSubscribers callers.
func (s *Server) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}
