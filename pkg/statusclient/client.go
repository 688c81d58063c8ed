package statusclient

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/courtside/camstatus-go/pkg/connection"
	"github.com/courtside/camstatus-go/pkg/credential"
	"github.com/courtside/camstatus-go/pkg/log"
	"github.com/courtside/camstatus-go/pkg/transport"
	"github.com/courtside/camstatus-go/pkg/wire"
)

// DisconnectReason is the close reason sent by Disconnect.
const DisconnectReason = "intentional"

// ErrNotConnected is logged when an outbound message is dropped.
var ErrNotConnected = errors.New("not connected")

// Config configures a Client.
type Config struct {
	// URL is the push endpoint, e.g. ws://host:8080/ws/camera-status.
	URL string

	// Credentials supplies the bearer token under credential.TokenKey.
	// It is read on every connect attempt.
	Credentials credential.Store

	// Dialer opens connections (default: transport.WebSocketDialer).
	Dialer transport.Dialer

	// Clock drives the retry timers (default: real clock).
	Clock clockwork.Clock

	// Backoff configures retry delays (default: 1s doubling to 30s).
	Backoff connection.BackoffConfig

	// MaxAttempts bounds consecutive retries (default: 5).
	MaxAttempts int

	// Topics are subscribed after every open (default: wire.Topics()).
	Topics []string

	// Logger for operational output (default: slog.Default()).
	Logger *slog.Logger

	// ProtocolLogger receives structured protocol events (optional).
	ProtocolLogger log.Logger
}

// Callbacks are the owner hooks. Any of them may be nil.
type Callbacks struct {
	// OnCameraStatusUpdate receives each decoded camera snapshot.
	OnCameraStatusUpdate func(wire.CameraSnapshot)

	// OnStatusChange receives each decoded status change.
	OnStatusChange func(wire.StatusNotification)

	// OnConnectionChange reports connectivity. true fires once per open;
	// false fires once per close of an open connection, and on every
	// failed open attempt.
	OnConnectionChange func(connected bool)
}

// Client is a reconnecting status push client.
type Client struct {
	config    Config
	callbacks Callbacks
	machine   *connection.Machine
	dialer    transport.Dialer
	clock     clockwork.Clock
	topics    []string

	logger         *slog.Logger
	protocolLogger log.Logger

	// Connection and timer handles. gen identifies the current connection
	// attempt; timerGen the current retry timer. Events carrying an older
	// generation are stale and ignored. A generation check and the machine
	// transition it guards happen under one hold of mu; the lock order is
	// mu, then the machine's lock.
	mu         sync.Mutex
	conn       transport.Conn
	gen        uint64
	dialCancel context.CancelFunc
	timer      clockwork.Timer
	timerGen   uint64
	closed     bool

	// connID is read by the transition hook, which may run while mu is held.
	connID atomic.Pointer[string]

	queue  *eventQueue
	ctx    context.Context
	cancel context.CancelFunc
	loopWg sync.WaitGroup
	ioWg   sync.WaitGroup
}

// New creates a client and starts its event loop. The client is idle until
// Connect is called.
func New(config Config, callbacks Callbacks) *Client {
	if config.Dialer == nil {
		config.Dialer = transport.NewWebSocketDialer(transport.DialerConfig{})
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	if config.Backoff.Initial == 0 {
		config.Backoff = connection.DefaultBackoffConfig()
	}
	if len(config.Topics) == 0 {
		config.Topics = wire.Topics()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		config:    config,
		callbacks: callbacks,
		machine: connection.NewMachine(connection.Config{
			Backoff:     config.Backoff,
			MaxAttempts: config.MaxAttempts,
		}),
		dialer:         config.Dialer,
		clock:          config.Clock,
		topics:         append([]string(nil), config.Topics...),
		logger:         config.Logger,
		protocolLogger: log.OrNoop(config.ProtocolLogger),
		queue:          newEventQueue(),
		ctx:            ctx,
		cancel:         cancel,
	}
	c.machine.OnTransition(c.logTransition)

	c.loopWg.Add(1)
	go c.run()

	return c
}

// Connect opens a connection using the current stored credential. It
// returns immediately; the outcome is reported through OnConnectionChange.
// Connect is a no-op while connecting or connected. It resets the attempt
// counter, so it also resumes after the client gave up.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Warn("connect on closed client ignored")
		return
	}
	if err := c.machine.Connect(); err != nil {
		c.mu.Unlock()
		c.logger.Debug("connect ignored", "state", c.machine.State(), "error", err)
		return
	}
	gen, connID := c.beginAttemptLocked()
	c.mu.Unlock()

	c.startOpen(gen, connID)
}

// Disconnect cancels any pending retry and closes the active connection
// with normal closure. No automatic reconnect follows.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.stopTimerLocked()
	c.gen++
	if c.dialCancel != nil {
		c.dialCancel()
		c.dialCancel = nil
	}
	conn, connID := c.conn, c.ConnectionID()
	c.conn = nil
	// Events of the old generation are now stale, so the loop can no
	// longer arm a retry or report a close for it.
	from := c.machine.Disconnect()
	if from == connection.StateConnected {
		c.queue.push(event{kind: evDisconnected})
	}
	c.mu.Unlock()

	if conn != nil {
		c.logClose(connID, log.DirectionOut, transport.CloseNormal, DisconnectReason)
		if err := conn.Close(transport.CloseNormal, DisconnectReason); err != nil {
			c.logger.Debug("close after disconnect", "error", err)
		}
	}
	if from != connection.StateDisconnected {
		c.logger.Info("disconnected", "from", from)
	}
}

// SendMessage JSON-encodes payload and sends it if the connection is open.
// Otherwise the message is dropped with a warning.
func (c *Client) SendMessage(payload any) {
	c.mu.Lock()
	conn, connID := c.conn, c.ConnectionID()
	c.mu.Unlock()

	if conn == nil || c.machine.State() != connection.StateConnected {
		c.logger.Warn("dropping outbound message", "error", ErrNotConnected, "state", c.machine.State())
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("dropping outbound message: encode failed", "error", err)
		c.logError(connID, log.LayerWire, err, "encode outbound")
		return
	}

	if err := conn.WriteMessage(data); err != nil {
		c.logger.Warn("send failed", "error", err)
		c.logError(connID, log.LayerTransport, err, "send")
		return
	}
	c.logFrame(connID, log.DirectionOut, data)
	c.logMessage(connID, log.DirectionOut, &log.MessageEvent{Type: log.MessageTypeOutbound}, "")
}

// IsConnected reports whether a connection is open.
func (c *Client) IsConnected() bool {
	return c.machine.State() == connection.StateConnected
}

// State returns the reconnection state.
func (c *Client) State() connection.State {
	return c.machine.State()
}

// Attempts returns the consecutive retry counter. It is 0 while connected.
func (c *Client) Attempts() int {
	return c.machine.Attempts()
}

// ConnectionID returns the id of the current or last connection attempt.
func (c *Client) ConnectionID() string {
	if id := c.connID.Load(); id != nil {
		return *id
	}
	return ""
}

// Close disconnects and stops the event loop. Events already queued before
// Close are delivered first. Close must not be called from a callback.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.Disconnect()
	c.queue.push(event{kind: evStop})
	c.loopWg.Wait()

	c.cancel()
	c.ioWg.Wait()
	return nil
}

// beginAttemptLocked claims a new connection generation for an attempt the
// machine just entered StateConnecting for. Any retry timer is cancelled.
// Caller holds c.mu.
func (c *Client) beginAttemptLocked() (uint64, string) {
	c.stopTimerLocked()
	if c.dialCancel != nil {
		c.dialCancel()
		c.dialCancel = nil
	}
	c.gen++
	connID := uuid.New().String()
	c.connID.Store(&connID)
	return c.gen, connID
}

// startOpen reads the credential and dials attempt gen on a helper
// goroutine.
func (c *Client) startOpen(gen uint64, connID string) {
	if c.config.Credentials == nil {
		c.openFailed(gen, connID, "credential unavailable", credential.ErrNotFound)
		return
	}
	token, err := c.config.Credentials.Get(credential.TokenKey)
	if err != nil {
		c.openFailed(gen, connID, "credential unavailable", err)
		return
	}

	url, err := transport.BuildURL(c.config.URL, token)
	if err != nil {
		c.openFailed(gen, connID, "invalid endpoint", err)
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		// A Disconnect or newer attempt superseded this one.
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.dialCancel = cancel
	c.ioWg.Add(1)
	c.mu.Unlock()

	endpoint := transport.RedactURL(url)
	c.logger.Info("connecting", "endpoint", endpoint, "conn_id", connID)

	go func() {
		defer c.ioWg.Done()
		defer cancel()

		conn, err := c.dialer.Dial(ctx, url, transport.BearerHeader(token))
		if err != nil {
			c.queue.push(event{kind: evClosed, gen: gen, connID: connID,
				code: transport.CloseCode(err), reason: transport.CloseReason(err), err: err})
			return
		}

		// Adopt the connection only if no Disconnect or newer attempt
		// superseded this one; otherwise nobody would close it.
		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			conn.Close(transport.CloseNormal, DisconnectReason)
			return
		}
		c.conn = conn
		c.dialCancel = nil
		c.mu.Unlock()

		c.queue.push(event{kind: evOpened, gen: gen, connID: connID, conn: conn, reason: endpoint})
	}()
}

// openFailed handles failures before any dial happened. These are not
// retried: a missing credential or bad URL will not fix itself.
func (c *Client) openFailed(gen uint64, connID, msg string, err error) {
	c.logger.Error("connect failed: "+msg, "error", err)
	c.logError(connID, log.LayerClient, err, msg)

	c.mu.Lock()
	failed := gen == c.gen && c.machine.OpenFailed() == nil
	c.mu.Unlock()
	if failed {
		c.queue.push(event{kind: evOpenFailed, err: err})
	}
}

// stopTimerLocked cancels the pending retry. Caller holds c.mu.
func (c *Client) stopTimerLocked() {
	c.timerGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// current reports whether gen is the live connection generation.
func (c *Client) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

func (c *Client) run() {
	defer c.loopWg.Done()

	for range c.queue.signal {
		for _, ev := range c.queue.drain() {
			if ev.kind == evStop {
				return
			}
			c.handle(ev)
		}
	}
}

func (c *Client) handle(ev event) {
	switch ev.kind {
	case evOpened:
		c.handleOpened(ev)
	case evOpenFailed:
		c.notifyConnection(false)
	case evMessage:
		if c.current(ev.gen) {
			c.handleFrame(ev.connID, ev.data)
		}
	case evClosed:
		c.handleClosed(ev)
	case evRetry:
		c.handleRetry(ev)
	case evDisconnected:
		c.notifyConnection(false)
	}
}

func (c *Client) handleOpened(ev event) {
	c.mu.Lock()
	if ev.gen != c.gen {
		c.mu.Unlock()
		return
	}
	err := c.machine.Opened()
	if err != nil {
		c.conn = nil
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Debug("stale open ignored", "state", c.machine.State())
		ev.conn.Close(transport.CloseNormal, DisconnectReason)
		return
	}

	c.logger.Info("connected", "conn_id", ev.connID)
	c.protocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: ev.connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryControl,
		Endpoint:     ev.reason,
		ControlMsg:   &log.ControlMsgEvent{Type: log.ControlMsgOpen},
	})

	// Subscriptions go out before the reader starts, so no inbound frame
	// is processed ahead of them.
	c.subscribe(ev.connID, ev.conn)

	c.ioWg.Add(1)
	go c.readLoop(ev.gen, ev.connID, ev.conn)

	c.notifyConnection(true)
}

func (c *Client) subscribe(connID string, conn transport.Conn) {
	for _, topic := range c.topics {
		frame, err := wire.EncodeSubscribe(topic)
		if err != nil {
			c.logger.Error("encode subscribe", "topic", topic, "error", err)
			continue
		}
		if err := conn.WriteMessage(frame); err != nil {
			// The reader will observe the broken connection.
			c.logger.Warn("subscribe failed", "topic", topic, "error", err)
			c.logError(connID, log.LayerTransport, err, "subscribe "+topic)
			return
		}
		c.logFrame(connID, log.DirectionOut, frame)
		c.logMessage(connID, log.DirectionOut, &log.MessageEvent{
			Type:        log.MessageTypeSubscribe,
			Destination: topic,
		}, "")
	}
}

func (c *Client) readLoop(gen uint64, connID string, conn transport.Conn) {
	defer c.ioWg.Done()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.queue.push(event{kind: evClosed, gen: gen, connID: connID, conn: conn,
				code: transport.CloseCode(err), reason: transport.CloseReason(err), err: err})
			return
		}
		c.queue.push(event{kind: evMessage, gen: gen, connID: connID, data: data})
	}
}

func (c *Client) handleFrame(connID string, data []byte) {
	c.logFrame(connID, log.DirectionIn, data)

	env, err := wire.DecodeEnvelope(data)
	if err != nil {
		c.logger.Warn("dropping malformed frame", "error", err, "size", len(data))
		c.logError(connID, log.LayerWire, err, "decode envelope")
		return
	}

	switch wire.Route(env.Destination) {
	case wire.KindSnapshot:
		snap, err := wire.DecodeSnapshot(env.Body)
		if err != nil {
			c.logger.Warn("dropping malformed snapshot", "error", err)
			c.logError(connID, log.LayerWire, err, "decode snapshot")
			return
		}
		c.logMessage(connID, log.DirectionIn, &log.MessageEvent{
			Type:        log.MessageTypeSnapshot,
			Destination: env.Destination,
			Status:      string(snap.Status),
		}, snap.ID.String())
		if fn := c.callbacks.OnCameraStatusUpdate; fn != nil {
			fn(snap)
		}

	case wire.KindStatusChange:
		n, err := wire.DecodeStatusNotification(env.Body)
		if err != nil {
			c.logger.Warn("dropping malformed status change", "error", err)
			c.logError(connID, log.LayerWire, err, "decode status change")
			return
		}
		c.logMessage(connID, log.DirectionIn, &log.MessageEvent{
			Type:        log.MessageTypeStatusChange,
			Destination: env.Destination,
			Status:      string(n.NewStatus),
			OldStatus:   string(n.OldStatus),
		}, n.CameraID.String())
		if fn := c.callbacks.OnStatusChange; fn != nil {
			fn(n)
		}

	default:
		c.logger.Debug("ignoring frame for unknown destination", "destination", env.Destination)
		c.logMessage(connID, log.DirectionIn, &log.MessageEvent{
			Type:        log.MessageTypeIgnored,
			Destination: env.Destination,
		}, "")
	}
}

func (c *Client) handleClosed(ev event) {
	c.mu.Lock()
	if ev.gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.dialCancel = nil
	d, err := c.machine.Closed(ev.code)
	if err == nil && d.Retry {
		c.stopTimerLocked()
		tgen := c.timerGen
		c.timer = c.clock.AfterFunc(d.Delay, func() {
			c.queue.push(event{kind: evRetry, gen: tgen})
		})
	}
	c.mu.Unlock()

	if ev.conn != nil {
		ev.conn.Close(transport.CloseNormal, "")
	}
	if err != nil {
		return
	}

	c.logClose(ev.connID, log.DirectionIn, ev.code, ev.reason)
	switch {
	case d.From == connection.StateConnecting:
		c.logger.Warn("connect attempt failed", "code", ev.code, "error", ev.err)
	case ev.code == transport.CloseNormal:
		c.logger.Info("connection closed by peer", "reason", ev.reason)
	default:
		c.logger.Warn("connection lost", "code", ev.code, "reason", ev.reason)
	}
	if d.Retry {
		c.logger.Info("reconnect scheduled", "delay", d.Delay, "attempt", d.Attempt+1, "max", c.machine.MaxAttempts())
	}
	if d.To == connection.StateGivenUp {
		c.logger.Error("giving up reconnecting", "attempts", d.Attempt)
	}

	c.notifyConnection(false)
}

func (c *Client) handleRetry(ev event) {
	c.mu.Lock()
	if ev.gen != c.timerGen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	if !c.machine.RetryFired() {
		c.mu.Unlock()
		return
	}
	gen, connID := c.beginAttemptLocked()
	c.mu.Unlock()

	c.startOpen(gen, connID)
}

func (c *Client) notifyConnection(connected bool) {
	if fn := c.callbacks.OnConnectionChange; fn != nil {
		fn(connected)
	}
}

func (c *Client) logTransition(t connection.Transition) {
	c.logger.Debug("state change", "from", t.From, "to", t.To, "reason", t.Reason)

	sc := &log.StateChangeEvent{
		OldState: t.From.String(),
		NewState: t.To.String(),
		Reason:   t.Reason,
	}
	if t.To == connection.StateReconnectPending {
		attempt, delay := t.Attempt, t.Delay
		sc.Attempt = &attempt
		sc.RetryDelay = &delay
	}
	c.protocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.ConnectionID(),
		Direction:    log.DirectionNone,
		Layer:        log.LayerClient,
		Category:     log.CategoryState,
		StateChange:  sc,
	})
}

func (c *Client) logFrame(connID string, dir log.Direction, data []byte) {
	c.protocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame:        log.NewFrameEvent(data),
	})
}

func (c *Client) logMessage(connID string, dir log.Direction, msg *log.MessageEvent, cameraID string) {
	c.protocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		CameraID:     cameraID,
		Message:      msg,
	})
}

func (c *Client) logClose(connID string, dir log.Direction, code int, reason string) {
	c.protocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryControl,
		ControlMsg: &log.ControlMsgEvent{
			Type:        log.ControlMsgClose,
			CloseCode:   &code,
			CloseReason: reason,
		},
	})
}

func (c *Client) logError(connID string, layer log.Layer, err error, op string) {
	c.protocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    log.DirectionNone,
		Layer:        layer,
		Category:     log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: op,
		},
	})
}
