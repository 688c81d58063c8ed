package wire

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CameraStatus is the operational state reported for a camera.
type CameraStatus string

const (
	// CameraActive indicates the camera is streaming normally.
	CameraActive CameraStatus = "ACTIVE"

	// CameraOffline indicates the camera is unreachable.
	CameraOffline CameraStatus = "OFFLINE"

	// CameraMaintenance indicates the camera was taken out of service on purpose.
	CameraMaintenance CameraStatus = "MAINTENANCE"

	// CameraError indicates the camera reported a fault.
	CameraError CameraStatus = "ERROR"
)

// AllCameraStatuses lists every valid status in display order.
func AllCameraStatuses() []CameraStatus {
	return []CameraStatus{CameraActive, CameraOffline, CameraMaintenance, CameraError}
}

// Valid reports whether s is one of the known statuses.
func (s CameraStatus) Valid() bool {
	switch s {
	case CameraActive, CameraOffline, CameraMaintenance, CameraError:
		return true
	default:
		return false
	}
}

// String returns the status name.
func (s CameraStatus) String() string {
	if s == "" {
		return "UNKNOWN"
	}
	return string(s)
}

// ParseCameraStatus parses a status name, ignoring case.
func ParseCameraStatus(v string) (CameraStatus, error) {
	s := CameraStatus(strings.ToUpper(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, v)
	}
	return s, nil
}

// UnmarshalJSON rejects statuses outside the known set. A JSON null leaves
// the status empty.
func (s *CameraStatus) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("camera status: %w", err)
	}
	parsed, err := ParseCameraStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// CameraID identifies a camera. The backend emits numeric ids; string ids
// are accepted as well and kept verbatim.
type CameraID string

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *CameraID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = CameraID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("camera id: %w", err)
	}
	*id = CameraID(n.String())
	return nil
}

// MarshalJSON emits numeric ids as numbers and everything else as strings.
func (id CameraID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// String returns the id text.
func (id CameraID) String() string {
	return string(id)
}

// FrameType identifies a control envelope sent by the client.
type FrameType string

const (
	// FrameSubscribe asks the server to start pushing a topic.
	FrameSubscribe FrameType = "SUBSCRIBE"
)

// Kind classifies an inbound envelope by its destination.
type Kind uint8

const (
	// KindUnknown is any destination the client does not handle.
	KindUnknown Kind = iota

	// KindSnapshot carries a CameraSnapshot body.
	KindSnapshot

	// KindStatusChange carries a StatusNotification body.
	KindStatusChange
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSnapshot:
		return "SNAPSHOT"
	case KindStatusChange:
		return "STATUS_CHANGE"
	default:
		return "UNKNOWN"
	}
}
