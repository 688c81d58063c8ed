package statusclient

import (
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/camstatus-go/pkg/connection"
	"github.com/courtside/camstatus-go/pkg/credential"
	"github.com/courtside/camstatus-go/pkg/transport"
	"github.com/courtside/camstatus-go/pkg/wire"
)

func TestConnectSubscribesBeforeProcessingMessages(t *testing.T) {
	h := newHarness(t)

	var writtenAtFirstSnapshot int
	h.rec.onSnapshot = func(wire.CameraSnapshot) {
		if writtenAtFirstSnapshot == 0 {
			writtenAtFirstSnapshot = len(h.dialer.Last().Written())
		}
	}

	// The frame is already waiting when the connection opens.
	conn := h.dialer.accept(1)[0]
	conn.push(snapshotFrame(t, "1", wire.CameraActive))
	h.client.Connect()

	require.Eventually(t, func() bool { return len(h.rec.Snapshots()) == 1 }, waitFor, tick)
	assert.Equal(t, 2, writtenAtFirstSnapshot, "both subscribe frames precede the first inbound message")

	written := conn.Written()
	require.Len(t, written, 2)
	for i, topic := range wire.Topics() {
		var env wire.Envelope
		require.NoError(t, json.Unmarshal(written[i], &env))
		assert.Equal(t, wire.FrameSubscribe, env.Type)
		assert.Equal(t, topic, env.Destination)
	}

	assert.True(t, h.client.IsConnected())
	assert.Equal(t, []bool{true}, h.rec.ConnChanges())
	assert.NotEmpty(t, h.client.ConnectionID())
}

func TestConnectSendsCredential(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	u, err := url.Parse(h.dialer.URL(0))
	require.NoError(t, err)
	assert.Equal(t, "/ws/camera-status", u.Path)
	assert.Equal(t, testToken, u.Query().Get(transport.TokenParam))
	assert.Equal(t, "Bearer "+testToken, h.dialer.Header(0).Get("Authorization"))
}

func TestCredentialReadOnEveryAttempt(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t)

	h.store.Set(credential.TokenKey, "rotated")
	h.dialer.accept(1)
	conn.drop()

	h.waitTimers(t, 1)
	h.clock.Advance(connection.InitialBackoff)
	h.waitDials(t, 2)
	h.waitState(t, connection.StateConnected)

	u, err := url.Parse(h.dialer.URL(1))
	require.NoError(t, err)
	assert.Equal(t, "rotated", u.Query().Get(transport.TokenParam))
}

func TestRouting(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t)

	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	conn.push(snapshotFrame(t, "7", wire.CameraMaintenance))
	conn.push([]byte(`{"destination":"/topic/unrelated","body":"{\"id\":1}"}`))
	conn.push(statusChangeFrame(t, "7", wire.CameraMaintenance, wire.CameraActive, at))

	require.Eventually(t, func() bool { return len(h.rec.Changes()) == 1 }, waitFor, tick)

	snaps := h.rec.Snapshots()
	require.Len(t, snaps, 1, "unknown destination must not invoke a callback")
	assert.Equal(t, wire.CameraSnapshot{
		ID:        "7",
		Name:      "Court 7",
		Status:    wire.CameraMaintenance,
		IPAddress: "10.0.0.7",
		Location:  wire.Location{CourtID: 1, CourtName: "Centre", FacilityID: 9, FacilityName: "Arena"},
	}, snaps[0])

	change := h.rec.Changes()[0]
	assert.Equal(t, wire.CameraID("7"), change.CameraID)
	assert.Equal(t, wire.CameraMaintenance, change.OldStatus)
	assert.Equal(t, wire.CameraActive, change.NewStatus)
	assert.True(t, at.Equal(change.Timestamp))
}

func TestMalformedFramesAreIsolated(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t)

	conn.push([]byte(`{not json`))
	conn.push([]byte(`{"body":"{}"}`))
	conn.push([]byte(`{"destination":"/topic/camera-status","body":"{\"id\":1,\"status\":\"EXPLODED\"}"}`))
	conn.push([]byte(`{"destination":"/topic/camera-status-change","body":"[1,2]"}`))
	conn.push(snapshotFrame(t, "3", wire.CameraOffline))

	require.Eventually(t, func() bool { return len(h.rec.Snapshots()) == 1 }, waitFor, tick)
	assert.Equal(t, wire.CameraID("3"), h.rec.Snapshots()[0].ID)
	assert.Empty(t, h.rec.Changes())
	assert.True(t, h.client.IsConnected())
	assert.Equal(t, []bool{true}, h.rec.ConnChanges())
	assert.Equal(t, 1, h.dialer.Count())
}

func TestNormalClosureNeverRetries(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t)

	conn.remoteClose(transport.CloseNormal, "server shutdown")

	h.waitState(t, connection.StateDisconnected)
	require.Eventually(t, func() bool { return len(h.rec.ConnChanges()) == 2 }, waitFor, tick)
	assert.Equal(t, []bool{true, false}, h.rec.ConnChanges())

	h.waitTimers(t, 0)
	h.clock.Advance(time.Hour)
	assert.Never(t, func() bool { return h.dialer.Count() > 1 }, 50*time.Millisecond, tick)
	assert.Empty(t, h.events.RetryAttempts())
}

func TestBackoffDelaysAndCap(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t)

	// Every retry is refused from here on.
	conn.drop()

	for i, delay := range connection.BackoffSequence() {
		h.waitTimers(t, 1)

		h.clock.Advance(delay - time.Millisecond)
		assert.Never(t, func() bool { return h.dialer.Count() > i+1 }, 30*time.Millisecond, tick,
			"retry %d fired before %v", i+1, delay)

		h.clock.Advance(time.Millisecond)
		h.waitDials(t, i+2)
	}

	h.waitState(t, connection.StateGivenUp)
	h.waitTimers(t, 0)
	h.clock.Advance(time.Hour)
	assert.Never(t, func() bool { return h.dialer.Count() > 6 }, 50*time.Millisecond, tick, "no 6th retry")

	assert.Equal(t, []int{0, 1, 2, 3, 4}, h.events.RetryAttempts())
	assert.Equal(t, connection.BackoffSequence(), h.events.RetryDelays())

	changes := h.rec.ConnChanges()
	require.NotEmpty(t, changes)
	assert.True(t, changes[0])
	for _, c := range changes[1:] {
		assert.False(t, c)
	}
}

func TestBackoffDelayIsCapped(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxAttempts = 8 })
	conn := h.connect(t)
	conn.drop()

	for i := 0; i < 7; i++ {
		h.waitTimers(t, 1)
		h.clock.Advance(connection.MaxBackoff)
		h.waitDials(t, i+2)
	}

	delays := h.events.RetryDelays()
	require.Len(t, delays, 7)
	assert.Equal(t, 16*time.Second, delays[4])
	assert.Equal(t, connection.MaxBackoff, delays[5])
	assert.Equal(t, connection.MaxBackoff, delays[6])
}

func TestAttemptCounter(t *testing.T) {
	t.Run("ConsecutiveFailuresThenOpen", func(t *testing.T) {
		h := newHarness(t)
		conn := h.connect(t)
		assert.Equal(t, 0, h.client.Attempts())

		h.dialer.refuse(2)
		h.dialer.accept(1)
		conn.drop()

		for i, delay := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
			h.waitTimers(t, 1)
			h.clock.Advance(delay)
			h.waitDials(t, i+2)
		}

		h.waitState(t, connection.StateConnected)
		assert.Equal(t, []int{0, 1, 2}, h.events.RetryAttempts())
		assert.Equal(t, 0, h.client.Attempts(), "counter resets on open")
	})

	t.Run("ResetsAfterEveryOpen", func(t *testing.T) {
		h := newHarness(t)
		conn := h.connect(t)

		for i := 0; i < 3; i++ {
			h.dialer.accept(1)
			conn.drop()

			h.waitTimers(t, 1)
			h.clock.Advance(connection.InitialBackoff)
			h.waitDials(t, i+2)
			h.waitState(t, connection.StateConnected)
			assert.Equal(t, 0, h.client.Attempts())
			conn = h.dialer.Last()
		}

		assert.Equal(t, []int{0, 0, 0}, h.events.RetryAttempts())
		assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, h.events.RetryDelays())
	})
}

func TestDisconnect(t *testing.T) {
	t.Run("CancelsPendingRetry", func(t *testing.T) {
		h := newHarness(t)
		conn := h.connect(t)

		conn.drop()
		h.waitTimers(t, 1)
		h.waitState(t, connection.StateReconnectPending)

		h.client.Disconnect()
		h.waitTimers(t, 0)
		h.clock.Advance(time.Hour)

		assert.Never(t, func() bool { return h.dialer.Count() > 1 }, 50*time.Millisecond, tick)
		assert.Equal(t, connection.StateDisconnected, h.client.State())
		assert.Equal(t, []bool{true, false}, h.rec.ConnChanges())
	})

	t.Run("ClosesWithNormalClosure", func(t *testing.T) {
		h := newHarness(t)
		conn := h.connect(t)

		h.client.Disconnect()

		closed, code, reason := conn.Closed()
		assert.True(t, closed)
		assert.Equal(t, transport.CloseNormal, code)
		assert.Equal(t, DisconnectReason, reason)
		assert.False(t, h.client.IsConnected())

		require.Eventually(t, func() bool { return len(h.rec.ConnChanges()) == 2 }, waitFor, tick)
		assert.Equal(t, []bool{true, false}, h.rec.ConnChanges())
	})

	t.Run("LateCloseEventIsIgnored", func(t *testing.T) {
		h := newHarness(t)
		conn := h.connect(t)

		h.client.Disconnect()
		// The old connection reports an abnormal close after Disconnect.
		conn.drop()

		h.clock.Advance(time.Hour)
		assert.Never(t, func() bool {
			return h.dialer.Count() > 1 || len(h.rec.ConnChanges()) > 2
		}, 50*time.Millisecond, tick)
		assert.Equal(t, connection.StateDisconnected, h.client.State())
	})

	t.Run("WhenIdle", func(t *testing.T) {
		h := newHarness(t)
		h.client.Disconnect()
		assert.Equal(t, connection.StateDisconnected, h.client.State())
		assert.Never(t, func() bool { return len(h.rec.ConnChanges()) > 0 }, 30*time.Millisecond, tick)
	})
}

func TestOpenFailures(t *testing.T) {
	t.Run("MissingCredential", func(t *testing.T) {
		h := newHarness(t)
		h.store.Delete(credential.TokenKey)

		h.client.Connect()

		require.Eventually(t, func() bool { return len(h.rec.ConnChanges()) == 1 }, waitFor, tick)
		assert.Equal(t, []bool{false}, h.rec.ConnChanges())
		assert.Equal(t, connection.StateDisconnected, h.client.State())

		h.clock.Advance(time.Hour)
		assert.Never(t, func() bool { return h.dialer.Count() > 0 }, 30*time.Millisecond, tick)
	})

	t.Run("NoStore", func(t *testing.T) {
		h := newHarness(t, func(c *Config) { c.Credentials = nil })
		h.client.Connect()
		require.Eventually(t, func() bool { return len(h.rec.ConnChanges()) == 1 }, waitFor, tick)
		assert.Equal(t, 0, h.dialer.Count())
	})

	t.Run("InvalidURL", func(t *testing.T) {
		h := newHarness(t, func(c *Config) { c.URL = "http://camera.test/ws" })
		h.client.Connect()

		require.Eventually(t, func() bool { return len(h.rec.ConnChanges()) == 1 }, waitFor, tick)
		assert.Equal(t, []bool{false}, h.rec.ConnChanges())
		assert.Equal(t, 0, h.dialer.Count())
	})

	t.Run("DialFailureIsRetried", func(t *testing.T) {
		h := newHarness(t)
		h.dialer.refuse(1)
		h.dialer.accept(1)

		h.client.Connect()
		h.waitDials(t, 1)
		h.waitTimers(t, 1)

		h.clock.Advance(connection.InitialBackoff)
		h.waitDials(t, 2)
		h.waitState(t, connection.StateConnected)
		assert.Equal(t, []bool{false, true}, h.rec.ConnChanges())
	})
}

func TestConnectIsNoopWhileConnected(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	h.client.Connect()
	h.client.Connect()

	assert.Never(t, func() bool { return h.dialer.Count() > 1 }, 50*time.Millisecond, tick)
	assert.Equal(t, []bool{true}, h.rec.ConnChanges())
}

func TestConnectAfterGivingUp(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxAttempts = 1 })
	conn := h.connect(t)

	conn.drop()
	h.waitTimers(t, 1)
	h.clock.Advance(connection.InitialBackoff)
	h.waitDials(t, 2)
	h.waitState(t, connection.StateGivenUp)

	h.connect(t)
	assert.Equal(t, 0, h.client.Attempts())
	assert.Equal(t, 3, h.dialer.Count())
}

func TestConnectCancelsPendingRetry(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t)

	conn.drop()
	h.waitTimers(t, 1)

	h.connect(t)
	h.waitTimers(t, 0)
	h.clock.Advance(time.Hour)
	assert.Never(t, func() bool { return h.dialer.Count() > 2 }, 50*time.Millisecond, tick)
}

func TestSendMessage(t *testing.T) {
	h := newHarness(t)

	// Dropped while disconnected.
	h.client.SendMessage(map[string]string{"ping": "early"})

	conn := h.connect(t)
	h.client.SendMessage(map[string]any{"type": "PING", "seq": 1})

	written := conn.Written()
	require.Len(t, written, 3)
	assert.JSONEq(t, `{"type":"PING","seq":1}`, string(written[2]))

	// Unencodable payloads are dropped, not panicked on.
	h.client.SendMessage(make(chan int))
	assert.Len(t, conn.Written(), 3)

	h.client.Disconnect()
	h.client.SendMessage("late")
	assert.Len(t, conn.Written(), 3)
}

func TestCallbackMayDisconnect(t *testing.T) {
	h := newHarness(t)
	h.rec.onSnapshot = func(wire.CameraSnapshot) {
		h.client.Disconnect()
	}
	conn := h.connect(t)

	conn.push(snapshotFrame(t, "1", wire.CameraError))
	conn.push(snapshotFrame(t, "2", wire.CameraError))

	h.waitState(t, connection.StateDisconnected)
	require.Eventually(t, func() bool { return len(h.rec.ConnChanges()) == 2 }, waitFor, tick)
	assert.Len(t, h.rec.Snapshots(), 1, "frames after Disconnect are discarded")
}

func TestClose(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t)
	conn.drop()
	h.waitTimers(t, 1)

	require.NoError(t, h.client.Close())
	require.NoError(t, h.client.Close())

	h.clock.Advance(time.Hour)
	h.client.Connect()
	assert.Never(t, func() bool { return h.dialer.Count() > 1 }, 50*time.Millisecond, tick)
}

func TestReconnectWhileCloseIsHandled(t *testing.T) {
	h := newHarness(t)
	first := h.dialer.accept(1)[0]
	first.closeGate = newGate()
	t.Cleanup(first.closeGate.release)
	h.client.Connect()
	h.waitState(t, connection.StateConnected)

	// The loop parks in the old connection's Close after handling the drop.
	first.drop()
	first.closeGate.waitEntered(t)

	h.client.Disconnect()
	second := h.dialer.accept(1)[0]
	h.client.Connect()
	h.waitDials(t, 2)
	assert.Equal(t, connection.StateConnecting, h.client.State())

	first.closeGate.release()

	h.waitState(t, connection.StateConnected)
	require.Eventually(t, func() bool { return len(h.rec.ConnChanges()) == 3 }, waitFor, tick)
	assert.Equal(t, []bool{true, false, true}, h.rec.ConnChanges())
	require.Eventually(t, func() bool { return len(second.Written()) == 2 }, waitFor, tick)
	assert.Equal(t, 0, h.client.Attempts())
	assert.False(t, h.timerArmed(), "the drop of the old connection must not arm a retry")

	h.clock.Advance(time.Hour)
	assert.Never(t, func() bool { return h.dialer.Count() > 2 }, 50*time.Millisecond, tick)
	assert.Equal(t, connection.StateConnected, h.client.State())
}

func TestReconnectWhileOpenIsHandled(t *testing.T) {
	h := newHarness(t)
	first := h.dialer.accept(1)[0]
	first.writeGate = newGate()
	t.Cleanup(first.writeGate.release)
	h.client.Connect()

	// The loop parks in the first subscribe write of the opened connection.
	first.writeGate.waitEntered(t)

	h.client.Disconnect()
	second := h.dialer.accept(1)[0]
	h.client.Connect()
	h.waitDials(t, 2)

	first.writeGate.release()

	require.Eventually(t, func() bool { return len(h.rec.ConnChanges()) == 3 }, waitFor, tick)
	assert.Equal(t, []bool{true, false, true}, h.rec.ConnChanges())
	h.waitState(t, connection.StateConnected)
	require.Eventually(t, func() bool { return len(second.Written()) == 2 }, waitFor, tick)
	assert.Empty(t, first.Written(), "no subscribe reaches a connection closed by Disconnect")

	closed, code, _ := first.Closed()
	assert.True(t, closed)
	assert.Equal(t, transport.CloseNormal, code)

	// The old reader's close report is stale.
	h.clock.Advance(time.Hour)
	assert.Never(t, func() bool {
		return h.dialer.Count() > 2 || len(h.rec.ConnChanges()) > 3
	}, 50*time.Millisecond, tick)
	assert.False(t, h.timerArmed())
}

func TestConnectWithoutCredentialCancelsPendingRetry(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t)

	conn.drop()
	h.waitTimers(t, 1)
	h.waitState(t, connection.StateReconnectPending)

	h.store.Delete(credential.TokenKey)
	h.client.Connect()

	h.waitState(t, connection.StateDisconnected)
	assert.False(t, h.timerArmed())
	require.Eventually(t, func() bool { return len(h.rec.ConnChanges()) == 3 }, waitFor, tick)
	assert.Equal(t, []bool{true, false, false}, h.rec.ConnChanges())

	h.clock.Advance(time.Hour)
	assert.Never(t, func() bool { return h.dialer.Count() > 1 }, 50*time.Millisecond, tick)
	assert.Equal(t, connection.StateDisconnected, h.client.State())
}
