// Package monitor aggregates the status client's event streams into a view
// the owner can render: the latest snapshot per camera, recent status
// changes and the connection indicator.
package monitor

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/courtside/camstatus-go/pkg/statusclient"
	"github.com/courtside/camstatus-go/pkg/wire"
)

// DefaultHistory is the number of status changes kept.
const DefaultHistory = 50

// Listener observes monitor updates. Methods are called after the monitor
// state is updated, without its lock held, in the order events arrive.
type Listener interface {
	OnSnapshot(wire.CameraSnapshot)
	OnStatusChange(wire.StatusNotification)
	OnConnectionChange(connected bool)
}

// Config configures a Monitor.
type Config struct {
	// History bounds the status change history (default: 50).
	History int

	// Clock stamps updates (default: real clock).
	Clock clockwork.Clock
}

// CameraState is the latest known state of one camera.
type CameraState struct {
	Snapshot wire.CameraSnapshot

	// UpdatedAt is when the last snapshot or status change was received.
	UpdatedAt time.Time

	// LastChange is the most recent status change, if any.
	LastChange *wire.StatusNotification
}

// Stats counts what the monitor has seen.
type Stats struct {
	Snapshots     int
	StatusChanges int
	Connects      int
	Disconnects   int

	LastConnected    time.Time
	LastDisconnected time.Time

	// ByStatus counts known cameras per current status.
	ByStatus map[wire.CameraStatus]int
}

// Monitor is safe for concurrent use.
type Monitor struct {
	clock   clockwork.Clock
	history int

	mu        sync.RWMutex
	cameras   map[wire.CameraID]*CameraState
	recent    []wire.StatusNotification
	connected bool
	stats     Stats
	listeners []Listener
}

// New creates a monitor.
func New(config Config) *Monitor {
	if config.History <= 0 {
		config.History = DefaultHistory
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	return &Monitor{
		clock:   config.Clock,
		history: config.History,
		cameras: make(map[wire.CameraID]*CameraState),
	}
}

// Callbacks returns client callbacks that feed the monitor.
func (m *Monitor) Callbacks() statusclient.Callbacks {
	return statusclient.Callbacks{
		OnCameraStatusUpdate: m.HandleSnapshot,
		OnStatusChange:       m.HandleStatusChange,
		OnConnectionChange:   m.HandleConnectionChange,
	}
}

// AddListener registers l for future updates.
func (m *Monitor) AddListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// HandleSnapshot records a camera snapshot.
func (m *Monitor) HandleSnapshot(snap wire.CameraSnapshot) {
	m.mu.Lock()
	cs, ok := m.cameras[snap.ID]
	if !ok {
		cs = &CameraState{}
		m.cameras[snap.ID] = cs
	}
	cs.Snapshot = snap
	cs.UpdatedAt = m.clock.Now()
	m.stats.Snapshots++
	listeners := m.listeners
	m.mu.Unlock()

	for _, l := range listeners {
		l.OnSnapshot(snap)
	}
}

// HandleStatusChange records a status change. A camera not seen before is
// added with the name and status from the notification.
func (m *Monitor) HandleStatusChange(n wire.StatusNotification) {
	m.mu.Lock()
	cs, ok := m.cameras[n.CameraID]
	if !ok {
		cs = &CameraState{Snapshot: wire.CameraSnapshot{ID: n.CameraID, Name: n.CameraName}}
		m.cameras[n.CameraID] = cs
	}
	cs.Snapshot.Status = n.NewStatus
	cs.UpdatedAt = m.clock.Now()
	change := n
	cs.LastChange = &change

	m.recent = append([]wire.StatusNotification{n}, m.recent...)
	if len(m.recent) > m.history {
		m.recent = m.recent[:m.history]
	}
	m.stats.StatusChanges++
	listeners := m.listeners
	m.mu.Unlock()

	for _, l := range listeners {
		l.OnStatusChange(n)
	}
}

// HandleConnectionChange records the connection indicator.
func (m *Monitor) HandleConnectionChange(connected bool) {
	m.mu.Lock()
	now := m.clock.Now()
	if connected {
		m.stats.Connects++
		m.stats.LastConnected = now
	} else if m.connected {
		m.stats.Disconnects++
		m.stats.LastDisconnected = now
	}
	m.connected = connected
	listeners := m.listeners
	m.mu.Unlock()

	for _, l := range listeners {
		l.OnConnectionChange(connected)
	}
}

// Connected reports the last connection indicator.
func (m *Monitor) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Cameras returns all known cameras ordered by id.
func (m *Monitor) Cameras() []CameraState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]CameraState, 0, len(m.cameras))
	for _, cs := range m.cameras {
		out = append(out, copyState(cs))
	}
	sort.Slice(out, func(i, j int) bool {
		return lessID(out[i].Snapshot.ID, out[j].Snapshot.ID)
	})
	return out
}

// Camera returns the state of one camera.
func (m *Monitor) Camera(id wire.CameraID) (CameraState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cs, ok := m.cameras[id]
	if !ok {
		return CameraState{}, false
	}
	return copyState(cs), true
}

// Recent returns up to n status changes, most recent first. n <= 0
// returns the whole history.
func (m *Monitor) Recent(n int) []wire.StatusNotification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n <= 0 || n > len(m.recent) {
		n = len(m.recent)
	}
	return append([]wire.StatusNotification(nil), m.recent[:n]...)
}

// Stats returns a copy of the counters.
func (m *Monitor) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.stats
	s.ByStatus = make(map[wire.CameraStatus]int)
	for _, cs := range m.cameras {
		s.ByStatus[cs.Snapshot.Status]++
	}
	return s
}

func copyState(cs *CameraState) CameraState {
	out := *cs
	if cs.LastChange != nil {
		c := *cs.LastChange
		out.LastChange = &c
	}
	return out
}

// lessID orders numeric ids numerically and everything else lexically.
func lessID(a, b wire.CameraID) bool {
	if len(a) != len(b) && isDigits(string(a)) && isDigits(string(b)) {
		return len(a) < len(b)
	}
	return a < b
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
