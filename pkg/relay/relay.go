// Package relay republishes camera status to an MQTT broker so other
// systems can consume it without speaking the push protocol.
//
// Topics, with the default prefix "camstatus":
//
//	camstatus/<cameraId>/status     retained status change JSON
//	camstatus/<cameraId>/snapshot   retained snapshot JSON
//	camstatus/bridge/online         retained "true" / "false"
package relay

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/courtside/camstatus-go/pkg/monitor"
	"github.com/courtside/camstatus-go/pkg/wire"
)

// Publisher sends messages to a broker.
type Publisher interface {
	// Publish sends payload to topic.
	Publish(topic string, payload []byte, retained bool) error

	// Close disconnects from the broker.
	Close() error
}

// Relay is a monitor.Listener that forwards updates to a Publisher.
// Publish failures are logged and counted; they never affect the monitor.
type Relay struct {
	pub    Publisher
	prefix string
	logger *slog.Logger

	published atomic.Uint64
	failed    atomic.Uint64
}

// New creates a relay publishing under prefix.
func New(pub Publisher, prefix string, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		pub:    pub,
		prefix: strings.TrimSuffix(prefix, "/"),
		logger: logger,
	}
}

// StatusTopic returns the status topic for a camera.
func (r *Relay) StatusTopic(id wire.CameraID) string {
	return r.prefix + "/" + topicSegment(id.String()) + "/status"
}

// SnapshotTopic returns the snapshot topic for a camera.
func (r *Relay) SnapshotTopic(id wire.CameraID) string {
	return r.prefix + "/" + topicSegment(id.String()) + "/snapshot"
}

// OnlineTopic returns the bridge connectivity topic.
func (r *Relay) OnlineTopic() string {
	return OnlineTopic(r.prefix)
}

// OnlineTopic returns the bridge connectivity topic under prefix.
func OnlineTopic(prefix string) string {
	return strings.TrimSuffix(prefix, "/") + "/bridge/online"
}

// OnSnapshot publishes the snapshot.
func (r *Relay) OnSnapshot(snap wire.CameraSnapshot) {
	r.publishJSON(r.SnapshotTopic(snap.ID), snap)
}

// OnStatusChange publishes the status change.
func (r *Relay) OnStatusChange(n wire.StatusNotification) {
	r.publishJSON(r.StatusTopic(n.CameraID), n)
}

// OnConnectionChange publishes the connection indicator.
func (r *Relay) OnConnectionChange(connected bool) {
	payload := "false"
	if connected {
		payload = "true"
	}
	r.publish(r.OnlineTopic(), []byte(payload))
}

// Published returns the number of successful publishes.
func (r *Relay) Published() uint64 {
	return r.published.Load()
}

// Failed returns the number of failed publishes.
func (r *Relay) Failed() uint64 {
	return r.failed.Load()
}

// Close closes the publisher.
func (r *Relay) Close() error {
	return r.pub.Close()
}

func (r *Relay) publishJSON(topic string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		r.failed.Add(1)
		r.logger.Error("relay encode failed", "topic", topic, "error", err)
		return
	}
	r.publish(topic, data)
}

func (r *Relay) publish(topic string, payload []byte) {
	if err := r.pub.Publish(topic, payload, true); err != nil {
		r.failed.Add(1)
		r.logger.Warn("relay publish failed", "topic", topic, "error", err)
		return
	}
	r.published.Add(1)
}

// topicSegment makes id safe as a single MQTT topic level.
func topicSegment(id string) string {
	if id == "" {
		return "_"
	}
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(id)
}

var _ monitor.Listener = (*Relay)(nil)
