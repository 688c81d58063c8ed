package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Codec errors.
var (
	ErrInvalidEnvelope  = errors.New("invalid envelope")
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrUnknownStatus    = errors.New("unknown camera status")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// EncodeSubscribe returns the control frame that subscribes to topic.
func EncodeSubscribe(topic string) ([]byte, error) {
	if topic == "" {
		return nil, fmt.Errorf("%w: empty destination", ErrInvalidEnvelope)
	}
	return json.Marshal(Envelope{Type: FrameSubscribe, Destination: topic})
}

// DecodeEnvelope parses the outer JSON object of a frame.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if env.Destination == "" {
		return Envelope{}, fmt.Errorf("%w: missing destination", ErrInvalidEnvelope)
	}
	return env, nil
}

// DecodeSnapshot parses the body of a TopicCameraStatus envelope.
func DecodeSnapshot(body string) (CameraSnapshot, error) {
	var snap CameraSnapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		return CameraSnapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return CameraSnapshot{}, err
	}
	return snap, nil
}

// DecodeStatusNotification parses the body of a TopicStatusChange envelope.
func DecodeStatusNotification(body string) (StatusNotification, error) {
	var n StatusNotification
	if err := json.Unmarshal([]byte(body), &n); err != nil {
		return StatusNotification{}, fmt.Errorf("failed to decode status change: %w", err)
	}
	if n.CameraID == "" {
		return StatusNotification{}, fmt.Errorf("%w: status change without camera id", ErrInvalidPayload)
	}
	return n, nil
}

// EncodeMessage wraps payload as a message envelope for destination.
// The payload is JSON-encoded and carried as a string body.
func EncodeMessage(destination string, payload any) ([]byte, error) {
	if destination == "" {
		return nil, fmt.Errorf("%w: empty destination", ErrInvalidEnvelope)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}
	return json.Marshal(Envelope{Destination: destination, Body: string(body)})
}

// EncodeSnapshot builds a TopicCameraStatus frame.
func EncodeSnapshot(snap CameraSnapshot) ([]byte, error) {
	return EncodeMessage(TopicCameraStatus, snap)
}

// EncodeStatusNotification builds a TopicStatusChange frame.
func EncodeStatusNotification(n StatusNotification) ([]byte, error) {
	return EncodeMessage(TopicStatusChange, n)
}
