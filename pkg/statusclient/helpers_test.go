package statusclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/courtside/camstatus-go/pkg/connection"
	"github.com/courtside/camstatus-go/pkg/credential"
	"github.com/courtside/camstatus-go/pkg/log"
	"github.com/courtside/camstatus-go/pkg/transport"
	"github.com/courtside/camstatus-go/pkg/transport/mocks"
	"github.com/courtside/camstatus-go/pkg/wire"
)

const (
	testURL   = "ws://camera.test/ws/camera-status"
	testToken = "secret"
	waitFor   = 2 * time.Second
	tick      = 5 * time.Millisecond
)

// fakeConn is a scripted transport.Conn. Reads are served in order from
// inbound; Close unblocks a pending read.
type fakeConn struct {
	inbound chan readResult
	closeCh chan struct{}

	// Optional gates hold the first Close or WriteMessage call. Set them
	// before the conn is dialed.
	closeGate *gate
	writeGate *gate

	mu          sync.Mutex
	written     [][]byte
	closed      bool
	closeCode   int
	closeReason string
}

type readResult struct {
	data []byte
	err  error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan readResult, 64),
		closeCh: make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case r := <-f.inbound:
		return r.data, r.err
	case <-f.closeCh:
		return nil, net.ErrClosed
	}
}

func (f *fakeConn) WriteMessage(data []byte) error {
	f.writeGate.pass()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return transport.ErrConnectionClosed
	}
	f.written = append(f.written, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) Close(code int, reason string) error {
	f.closeGate.pass()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	f.closeCode = code
	f.closeReason = reason
	close(f.closeCh)
	return nil
}

// push delivers a frame to the client.
func (f *fakeConn) push(data []byte) {
	f.inbound <- readResult{data: data}
}

// remoteClose delivers a close frame from the peer.
func (f *fakeConn) remoteClose(code int, reason string) {
	f.inbound <- readResult{err: &websocket.CloseError{Code: code, Text: reason}}
}

// drop simulates a lost TCP connection (1006).
func (f *fakeConn) drop() {
	f.inbound <- readResult{err: io.ErrUnexpectedEOF}
}

func (f *fakeConn) Written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.written...)
}

func (f *fakeConn) Closed() (bool, int, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed, f.closeCode, f.closeReason
}

// gate parks the first caller until release is called. Later callers pass
// straight through.
type gate struct {
	once     sync.Once
	openOnce sync.Once
	entered  chan struct{}
	open     chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}), open: make(chan struct{})}
}

func (g *gate) pass() {
	if g == nil {
		return
	}
	first := false
	g.once.Do(func() {
		first = true
		close(g.entered)
	})
	if first {
		<-g.open
	}
}

// waitEntered blocks until the first caller is parked.
func (g *gate) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for gated call")
	}
}

func (g *gate) release() {
	g.openOnce.Do(func() { close(g.open) })
}

var errRefused = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

// fakeDialer hands out scripted results in order: a conn for accept, an
// error for refuse. Once the script is exhausted every dial is refused.
type fakeDialer struct {
	mu      sync.Mutex
	script  []*fakeConn
	conns   []*fakeConn
	urls    []string
	headers []http.Header
}

func (d *fakeDialer) accept(n int) []*fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	var conns []*fakeConn
	for i := 0; i < n; i++ {
		c := newFakeConn()
		conns = append(conns, c)
		d.script = append(d.script, c)
	}
	return conns
}

func (d *fakeDialer) refuse(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < n; i++ {
		d.script = append(d.script, nil)
	}
}

func (d *fakeDialer) dial(_ context.Context, url string, header http.Header) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.urls = append(d.urls, url)
	d.headers = append(d.headers, header)

	if len(d.script) == 0 {
		return nil, errRefused
	}
	conn := d.script[0]
	d.script = d.script[1:]
	if conn == nil {
		return nil, errRefused
	}
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

// Conn returns the i-th successfully dialed connection.
func (d *fakeDialer) Conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

// Last returns the most recent successfully dialed connection.
func (d *fakeDialer) Last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) URL(i int) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.urls[i]
}

func (d *fakeDialer) Header(i int) http.Header {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.headers[i]
}

// recorder captures owner callbacks and checks they never overlap.
type recorder struct {
	mu        sync.Mutex
	snapshots []wire.CameraSnapshot
	changes   []wire.StatusNotification
	conn      []bool

	inFlight   atomic.Int32
	overlapped atomic.Bool

	// onSnapshot runs inside OnCameraStatusUpdate when set.
	onSnapshot func(wire.CameraSnapshot)
}

func (r *recorder) enter() func() {
	if r.inFlight.Add(1) > 1 {
		r.overlapped.Store(true)
	}
	return func() { r.inFlight.Add(-1) }
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnCameraStatusUpdate: func(s wire.CameraSnapshot) {
			defer r.enter()()
			if r.onSnapshot != nil {
				r.onSnapshot(s)
			}
			r.mu.Lock()
			r.snapshots = append(r.snapshots, s)
			r.mu.Unlock()
		},
		OnStatusChange: func(n wire.StatusNotification) {
			defer r.enter()()
			r.mu.Lock()
			r.changes = append(r.changes, n)
			r.mu.Unlock()
		},
		OnConnectionChange: func(connected bool) {
			defer r.enter()()
			r.mu.Lock()
			r.conn = append(r.conn, connected)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) Snapshots() []wire.CameraSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]wire.CameraSnapshot(nil), r.snapshots...)
}

func (r *recorder) Changes() []wire.StatusNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]wire.StatusNotification(nil), r.changes...)
}

func (r *recorder) ConnChanges() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.conn...)
}

// eventLog captures protocol events.
type eventLog struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *eventLog) Log(e log.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

// RetryAttempts returns the attempt value of every scheduled retry.
func (l *eventLog) RetryAttempts() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []int
	for _, e := range l.events {
		if e.StateChange != nil && e.StateChange.Attempt != nil && e.StateChange.NewState == connection.StateReconnectPending.String() {
			out = append(out, *e.StateChange.Attempt)
		}
	}
	return out
}

// RetryDelays returns the delay of every scheduled retry.
func (l *eventLog) RetryDelays() []time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []time.Duration
	for _, e := range l.events {
		if e.StateChange != nil && e.StateChange.RetryDelay != nil {
			out = append(out, *e.StateChange.RetryDelay)
		}
	}
	return out
}

type harness struct {
	client *Client
	clock  clockwork.FakeClock
	dialer *fakeDialer
	mock   *mocks.MockDialer
	rec    *recorder
	events *eventLog
	store  *credential.MemoryStore
}

func newHarness(t *testing.T, modify ...func(*Config)) *harness {
	t.Helper()

	h := &harness{
		clock:  clockwork.NewFakeClock(),
		dialer: &fakeDialer{},
		mock:   mocks.NewMockDialer(t),
		rec:    &recorder{},
		events: &eventLog{},
		store:  credential.NewMemoryStore(map[string]string{credential.TokenKey: testToken}),
	}
	h.mock.EXPECT().Dial(mock.Anything, mock.Anything, mock.Anything).RunAndReturn(h.dialer.dial).Maybe()

	cfg := Config{
		URL:            testURL,
		Credentials:    h.store,
		Dialer:         h.mock,
		Clock:          h.clock,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		ProtocolLogger: h.events,
	}
	for _, m := range modify {
		m(&cfg)
	}

	h.client = New(cfg, h.rec.callbacks())
	t.Cleanup(func() {
		h.client.Close()
		require.False(t, h.rec.overlapped.Load(), "callbacks overlapped")
	})
	return h
}

func (h *harness) waitState(t *testing.T, want connection.State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.client.State() == want }, waitFor, tick,
		"state = %v, want %v", h.client.State(), want)
}

func (h *harness) waitDials(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.dialer.Count() == n }, waitFor, tick,
		"dials = %d, want %d", h.dialer.Count(), n)
}

// waitTimers blocks until exactly n retry timers are armed.
func (h *harness) waitTimers(t *testing.T, n int) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		h.clock.BlockUntil(n)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatalf("timed out waiting for %d armed timers", n)
	}
}

// timerArmed reports whether the client holds a pending retry timer.
func (h *harness) timerArmed() bool {
	h.client.mu.Lock()
	defer h.client.mu.Unlock()
	return h.client.timer != nil
}

func (h *harness) connect(t *testing.T) *fakeConn {
	t.Helper()
	before := h.dialer.Count()
	h.dialer.accept(1)
	h.client.Connect()
	h.waitDials(t, before+1)
	h.waitState(t, connection.StateConnected)
	return h.dialer.Last()
}

func snapshotFrame(t *testing.T, id string, status wire.CameraStatus) []byte {
	t.Helper()
	data, err := wire.EncodeSnapshot(wire.CameraSnapshot{
		ID:        wire.CameraID(id),
		Name:      "Court " + id,
		Status:    status,
		IPAddress: "10.0.0." + id,
		Location:  wire.Location{CourtID: 1, CourtName: "Centre", FacilityID: 9, FacilityName: "Arena"},
	})
	require.NoError(t, err)
	return data
}

func statusChangeFrame(t *testing.T, id string, from, to wire.CameraStatus, at time.Time) []byte {
	t.Helper()
	data, err := wire.EncodeStatusNotification(wire.StatusNotification{
		CameraID:   wire.CameraID(id),
		CameraName: "Court " + id,
		OldStatus:  from,
		NewStatus:  to,
		Timestamp:  at,
	})
	require.NoError(t, err)
	return data
}
