package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the connection attempt (UUID). Every reconnect
	// gets a fresh id.
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Endpoint is the push endpoint URL without credentials.
	Endpoint string `cbor:"6,keyasint,omitempty"`

	// CameraID is set on events tied to one camera.
	CameraID string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Wire layer
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Client layer
	ControlMsg  *ControlMsgEvent  `cbor:"13,keyasint,omitempty"` // Open/close
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming frame.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing frame.
	DirectionOut Direction = 1
	// DirectionNone is used for local events such as state changes.
	DirectionNone Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionNone:
		return "-"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the websocket layer (raw frames, open/close).
	LayerTransport Layer = 0
	// LayerWire is the envelope layer (decoded JSON).
	LayerWire Layer = 1
	// LayerClient is the reconnecting client.
	LayerClient Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerClient:
		return "CLIENT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a data frame or envelope.
	CategoryMessage Category = 0
	// CategoryControl indicates an open or close.
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MaxFrameCapture is the number of frame bytes kept in a FrameEvent.
const MaxFrameCapture = 4096

// NewFrameEvent captures data, truncating it to MaxFrameCapture bytes.
func NewFrameEvent(data []byte) *FrameEvent {
	fe := &FrameEvent{Size: len(data)}
	if len(data) > MaxFrameCapture {
		fe.Data = append([]byte(nil), data[:MaxFrameCapture]...)
		fe.Truncated = true
	} else {
		fe.Data = append([]byte(nil), data...)
	}
	return fe
}

// MessageEvent captures a decoded envelope at the wire layer.
type MessageEvent struct {
	// Type classifies the envelope.
	Type MessageType `cbor:"1,keyasint"`

	// Destination is the envelope topic.
	Destination string `cbor:"2,keyasint"`

	// Status is the camera status carried by a snapshot, or the new status
	// of a status change.
	Status string `cbor:"3,keyasint,omitempty"`

	// OldStatus is the previous status of a status change.
	OldStatus string `cbor:"4,keyasint,omitempty"`
}

// MessageType classifies envelopes.
type MessageType uint8

const (
	// MessageTypeSubscribe is an outbound SUBSCRIBE control frame.
	MessageTypeSubscribe MessageType = 0
	// MessageTypeSnapshot is an inbound camera snapshot.
	MessageTypeSnapshot MessageType = 1
	// MessageTypeStatusChange is an inbound status change.
	MessageTypeStatusChange MessageType = 2
	// MessageTypeOutbound is an application payload sent by the owner.
	MessageTypeOutbound MessageType = 3
	// MessageTypeIgnored is an inbound envelope with an unknown destination.
	MessageTypeIgnored MessageType = 4
)

// String returns the message type name.
func (m MessageType) String() string {
	switch m {
	case MessageTypeSubscribe:
		return "SUBSCRIBE"
	case MessageTypeSnapshot:
		return "SNAPSHOT"
	case MessageTypeStatusChange:
		return "STATUS_CHANGE"
	case MessageTypeOutbound:
		return "OUTBOUND"
	case MessageTypeIgnored:
		return "IGNORED"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures transitions of the reconnection state machine.
type StateChangeEvent struct {
	// OldState is the previous state.
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`

	// Attempt is the backoff attempt the retry was computed from.
	Attempt *int `cbor:"4,keyasint,omitempty"`

	// RetryDelay is the scheduled wait, for transitions to RECONNECT_PENDING.
	RetryDelay *time.Duration `cbor:"5,keyasint,omitempty"`
}

// ControlMsgEvent captures connection opens and closes.
type ControlMsgEvent struct {
	// Type of control event.
	Type ControlMsgType `cbor:"1,keyasint"`

	// CloseCode is the websocket close code for close events.
	CloseCode *int `cbor:"2,keyasint,omitempty"`

	// CloseReason is the close reason text, if any.
	CloseReason string `cbor:"3,keyasint,omitempty"`
}

// ControlMsgType indicates the type of control event.
type ControlMsgType uint8

const (
	// ControlMsgOpen indicates the connection opened.
	ControlMsgOpen ControlMsgType = 0
	// ControlMsgClose indicates the connection closed.
	ControlMsgClose ControlMsgType = 1
)

// String returns the control event name.
func (c ControlMsgType) String() string {
	switch c {
	case ControlMsgOpen:
		return "OPEN"
	case ControlMsgClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
