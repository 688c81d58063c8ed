package connection

import (
	"errors"
	"sync"
	"time"
)

// NormalClosure is the RFC 6455 close code for an intentional, clean close.
const NormalClosure = 1000

// Connection errors.
var (
	ErrAlreadyConnected  = errors.New("already connected")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// State represents the connection state.
type State uint8

const (
	// StateDisconnected indicates no connection and no pending retry.
	StateDisconnected State = iota

	// StateConnecting indicates an open is in progress.
	StateConnecting

	// StateConnected indicates an open connection.
	StateConnected

	// StateReconnectPending indicates a retry timer is armed.
	StateReconnectPending

	// StateGivenUp indicates the attempt cap was reached.
	StateGivenUp
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnectPending:
		return "RECONNECT_PENDING"
	case StateGivenUp:
		return "GIVEN_UP"
	default:
		return "UNKNOWN"
	}
}

// Config configures a Machine.
type Config struct {
	Backoff BackoffConfig

	// MaxAttempts bounds consecutive retries. Defaults to DefaultMaxAttempts.
	MaxAttempts int
}

// Decision is the outcome of a close event.
type Decision struct {
	// From is the state the close was observed in.
	From State

	// To is the state after the close.
	To State

	// Retry is true when the caller must arm a timer for Delay.
	Retry bool

	// Delay is the wait before the retry.
	Delay time.Duration

	// Attempt is the counter value the delay was computed from.
	Attempt int
}

// WasConnected reports whether the close ended an open connection.
func (d Decision) WasConnected() bool {
	return d.From == StateConnected
}

// Transition is one recorded state change.
type Transition struct {
	From   State
	To     State
	Reason string

	// Attempt is the counter value after the change. For transitions into
	// StateReconnectPending it is the value the delay was computed from.
	Attempt int

	// Delay is the scheduled wait for transitions into StateReconnectPending.
	Delay time.Duration
}

// Machine is the reconnection state machine. It is safe for concurrent use.
type Machine struct {
	mu sync.Mutex

	state       State
	backoff     *Backoff
	maxAttempts int

	onTransition func(Transition)
}

// NewMachine creates a machine in StateDisconnected.
func NewMachine(cfg Config) *Machine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Machine{
		state:       StateDisconnected,
		backoff:     NewBackoffWithConfig(cfg.Backoff),
		maxAttempts: cfg.MaxAttempts,
	}
}

// OnTransition sets a callback invoked after every state change.
// The callback runs without the machine lock held.
func (m *Machine) OnTransition(fn func(Transition)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTransition = fn
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the current attempt counter.
func (m *Machine) Attempts() int {
	return m.backoff.Attempts()
}

// MaxAttempts returns the configured cap.
func (m *Machine) MaxAttempts() int {
	return m.maxAttempts
}

// Connect handles an explicit connect request. It cancels any pending retry,
// resets the attempt counter and moves to StateConnecting.
func (m *Machine) Connect() error {
	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateConnected {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	m.backoff.Reset()
	t := m.setLocked(StateConnecting, "connect")
	fn := m.onTransition
	m.mu.Unlock()

	notify(fn, t)
	return nil
}

// RetryFired moves a pending retry to StateConnecting. It returns false if
// no retry is pending (the timer was superseded).
func (m *Machine) RetryFired() bool {
	m.mu.Lock()
	if m.state != StateReconnectPending {
		m.mu.Unlock()
		return false
	}
	t := m.setLocked(StateConnecting, "retry")
	fn := m.onTransition
	m.mu.Unlock()

	notify(fn, t)
	return true
}

// Opened records a successful open and resets the attempt counter.
func (m *Machine) Opened() error {
	m.mu.Lock()
	if m.state != StateConnecting {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	m.backoff.Reset()
	t := m.setLocked(StateConnected, "open")
	fn := m.onTransition
	m.mu.Unlock()

	notify(fn, t)
	return nil
}

// OpenFailed records that the open could not be started at all (missing
// credential, invalid URL). Such failures are not retried.
func (m *Machine) OpenFailed() error {
	m.mu.Lock()
	if m.state != StateConnecting {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	t := m.setLocked(StateDisconnected, "open failed")
	fn := m.onTransition
	m.mu.Unlock()

	notify(fn, t)
	return nil
}

// Closed records a close of the current connection (or of the open attempt)
// and decides whether to retry. Closes observed in any state other than
// StateConnecting or StateConnected are stale and return ErrInvalidTransition.
func (m *Machine) Closed(code int) (Decision, error) {
	m.mu.Lock()
	from := m.state
	if from != StateConnecting && from != StateConnected {
		m.mu.Unlock()
		return Decision{From: from, To: from}, ErrInvalidTransition
	}

	d := Decision{From: from, Attempt: m.backoff.Attempts()}
	var t Transition
	switch {
	case code == NormalClosure:
		d.To = StateDisconnected
		t = m.setLocked(StateDisconnected, "normal closure")
	case d.Attempt >= m.maxAttempts:
		d.To = StateGivenUp
		t = m.setLocked(StateGivenUp, "attempt cap reached")
	default:
		d.To = StateReconnectPending
		d.Retry = true
		d.Delay = m.backoff.Next()
		t = m.setLocked(StateReconnectPending, "abnormal closure")
		t.Attempt = d.Attempt
		t.Delay = d.Delay
	}
	fn := m.onTransition
	m.mu.Unlock()

	notify(fn, t)
	return d, nil
}

// Disconnect moves to StateDisconnected from any state and returns the
// previous state. Pending retries become stale.
func (m *Machine) Disconnect() State {
	m.mu.Lock()
	from := m.state
	if from == StateDisconnected {
		m.mu.Unlock()
		return from
	}
	t := m.setLocked(StateDisconnected, "disconnect")
	fn := m.onTransition
	m.mu.Unlock()

	notify(fn, t)
	return from
}

func (m *Machine) setLocked(to State, reason string) Transition {
	t := Transition{From: m.state, To: to, Reason: reason, Attempt: m.backoff.Attempts()}
	m.state = to
	return t
}

func notify(fn func(Transition), t Transition) {
	if fn != nil && t.From != t.To {
		fn(t)
	}
}
