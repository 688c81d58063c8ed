package relay_test

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/courtside/camstatus-go/pkg/monitor"
	"github.com/courtside/camstatus-go/pkg/relay"
	"github.com/courtside/camstatus-go/pkg/relay/mocks"
	"github.com/courtside/camstatus-go/pkg/wire"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTopics(t *testing.T) {
	r := relay.New(mocks.NewMockPublisher(t), "site/cams/", quietLogger())

	assert.Equal(t, "site/cams/7/status", r.StatusTopic("7"))
	assert.Equal(t, "site/cams/7/snapshot", r.SnapshotTopic("7"))
	assert.Equal(t, "site/cams/bridge/online", r.OnlineTopic())
	assert.Equal(t, "site/cams/a_b_c_/status", r.StatusTopic("a/b+c#"))
	assert.Equal(t, "site/cams/_/status", r.StatusTopic(""))
}

func TestPublishesStatusChange(t *testing.T) {
	pub := mocks.NewMockPublisher(t)
	r := relay.New(pub, "camstatus", quietLogger())

	at := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	pub.EXPECT().Publish("camstatus/12/status", mock.Anything, true).
		Run(func(topic string, payload []byte, retained bool) {
			var got map[string]any
			require.NoError(t, json.Unmarshal(payload, &got))
			assert.Equal(t, "OFFLINE", got["oldStatus"])
			assert.Equal(t, "ACTIVE", got["newStatus"])
			assert.Equal(t, "2025-06-01T08:00:00Z", got["timestamp"])
		}).
		Return(nil).Once()

	r.OnStatusChange(wire.StatusNotification{
		CameraID:   "12",
		CameraName: "Court 12",
		OldStatus:  wire.CameraOffline,
		NewStatus:  wire.CameraActive,
		Timestamp:  at,
	})

	assert.Equal(t, uint64(1), r.Published())
	assert.Equal(t, uint64(0), r.Failed())
}

func TestPublishesSnapshotAndOnline(t *testing.T) {
	pub := mocks.NewMockPublisher(t)
	r := relay.New(pub, "camstatus", quietLogger())

	pub.EXPECT().Publish("camstatus/bridge/online", []byte("true"), true).Return(nil).Once()
	pub.EXPECT().Publish("camstatus/3/snapshot", mock.Anything, true).Return(nil).Once()
	pub.EXPECT().Publish("camstatus/bridge/online", []byte("false"), true).Return(nil).Once()

	r.OnConnectionChange(true)
	r.OnSnapshot(wire.CameraSnapshot{ID: "3", Name: "Three", Status: wire.CameraActive})
	r.OnConnectionChange(false)

	assert.Equal(t, uint64(3), r.Published())
}

func TestPublishFailureIsCounted(t *testing.T) {
	pub := mocks.NewMockPublisher(t)
	r := relay.New(pub, "camstatus", quietLogger())

	pub.EXPECT().Publish(mock.Anything, mock.Anything, true).Return(errors.New("broker down")).Once()
	r.OnConnectionChange(true)

	assert.Equal(t, uint64(0), r.Published())
	assert.Equal(t, uint64(1), r.Failed())
}

func TestRelayAsMonitorListener(t *testing.T) {
	pub := mocks.NewMockPublisher(t)
	r := relay.New(pub, "camstatus", quietLogger())

	m := monitor.New(monitor.Config{})
	m.AddListener(r)

	pub.EXPECT().Publish("camstatus/5/status", mock.Anything, true).Return(nil).Once()
	m.HandleStatusChange(wire.StatusNotification{CameraID: "5", OldStatus: wire.CameraActive, NewStatus: wire.CameraError})

	pub.EXPECT().Close().Return(nil).Once()
	require.NoError(t, r.Close())
}

func TestNewPahoPublisherValidatesConfig(t *testing.T) {
	_, err := relay.NewPahoPublisher(relay.Config{ClientID: "x"})
	assert.Error(t, err)

	_, err = relay.NewPahoPublisher(relay.Config{BrokerURL: "tcp://localhost:1883"})
	assert.Error(t, err)
}
