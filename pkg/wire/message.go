package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// Static topics the client subscribes to after every successful connect.
const (
	// TopicCameraStatus carries full camera snapshots.
	TopicCameraStatus = "/topic/camera-status"

	// TopicStatusChange carries status transitions.
	TopicStatusChange = "/topic/camera-status-change"
)

// Topics returns the subscription intent in the order subscribe frames are sent.
func Topics() []string {
	return []string{TopicCameraStatus, TopicStatusChange}
}

// Route maps a destination to the kind of body it carries.
func Route(destination string) Kind {
	switch destination {
	case TopicCameraStatus:
		return KindSnapshot
	case TopicStatusChange:
		return KindStatusChange
	default:
		return KindUnknown
	}
}

// Envelope is the outer JSON object of every frame.
type Envelope struct {
	// Type is set on client control frames only.
	Type FrameType `json:"type,omitempty"`

	// Destination names the topic.
	Destination string `json:"destination"`

	// Body is the JSON-encoded payload of a message envelope.
	Body string `json:"body,omitempty"`
}

// UnmarshalJSON accepts a body given either as a JSON string or inline.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type        FrameType       `json:"type"`
		Destination string          `json:"destination"`
		Body        json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Type = raw.Type
	e.Destination = raw.Destination
	e.Body = ""

	if len(raw.Body) == 0 || string(raw.Body) == "null" {
		return nil
	}
	if raw.Body[0] == '"' {
		return json.Unmarshal(raw.Body, &e.Body)
	}
	e.Body = string(raw.Body)
	return nil
}

// Location describes where a camera is mounted.
type Location struct {
	CourtID      int64  `json:"courtId,omitempty"`
	CourtName    string `json:"courtName,omitempty"`
	FacilityID   int64  `json:"facilityId,omitempty"`
	FacilityName string `json:"facilityName,omitempty"`
}

// CameraSnapshot is the raw state of one camera as pushed on TopicCameraStatus.
type CameraSnapshot struct {
	ID        CameraID     `json:"id"`
	Name      string       `json:"name"`
	Status    CameraStatus `json:"status"`
	IPAddress string       `json:"ipAddress,omitempty"`
	Location
}

// Validate checks the fields required to render a snapshot.
func (s *CameraSnapshot) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: snapshot without id", ErrInvalidPayload)
	}
	if !s.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, s.Status)
	}
	return nil
}

// StatusNotification reports that a camera moved from one status to another.
// Values are immutable once decoded.
type StatusNotification struct {
	CameraID   CameraID
	CameraName string
	OldStatus  CameraStatus
	NewStatus  CameraStatus
	Timestamp  time.Time
}

// statusNotificationJSON is the on-the-wire shape of StatusNotification.
type statusNotificationJSON struct {
	CameraID   CameraID     `json:"cameraId"`
	CameraName string       `json:"cameraName"`
	OldStatus  CameraStatus `json:"oldStatus"`
	NewStatus  CameraStatus `json:"newStatus"`
	Timestamp  string       `json:"timestamp"`
}

// MarshalJSON encodes the timestamp as RFC 3339 with nanoseconds.
func (n StatusNotification) MarshalJSON() ([]byte, error) {
	return json.Marshal(statusNotificationJSON{
		CameraID:   n.CameraID,
		CameraName: n.CameraName,
		OldStatus:  n.OldStatus,
		NewStatus:  n.NewStatus,
		Timestamp:  FormatTimestamp(n.Timestamp),
	})
}

// UnmarshalJSON decodes the wire shape and parses the timestamp.
func (n *StatusNotification) UnmarshalJSON(data []byte) error {
	var raw statusNotificationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := ParseTimestamp(raw.Timestamp)
	if err != nil {
		return err
	}
	*n = StatusNotification{
		CameraID:   raw.CameraID,
		CameraName: raw.CameraName,
		OldStatus:  raw.OldStatus,
		NewStatus:  raw.NewStatus,
		Timestamp:  ts,
	}
	return nil
}

// Transition renders the change for display, e.g. "OFFLINE -> ACTIVE".
func (n StatusNotification) Transition() string {
	return n.OldStatus.String() + " -> " + n.NewStatus.String()
}

// timestampLayouts are tried in order. The last two cover servers that
// serialize local date-times without an offset.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses an ISO-8601 timestamp. Strings without an offset
// are taken as UTC.
func ParseTimestamp(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidTimestamp)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, v)
}

// FormatTimestamp is the inverse of ParseTimestamp.
func FormatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}
