package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func logOne(t *testing.T, event Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	NewSlogAdapter(slog.New(handler)).Log(event)

	if buf.Len() == 0 {
		t.Fatal("no output produced")
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	return entry
}

func TestSlogAdapterLogsFrameEvent(t *testing.T) {
	entry := logOne(t, Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Layer:        LayerTransport,
		Category:     CategoryMessage,
		Frame:        &FrameEvent{Size: 256, Data: []byte{0x7b}},
	})

	if entry["conn_id"] != "conn-123" {
		t.Errorf("conn_id: got %v", entry["conn_id"])
	}
	if entry["direction"] != "IN" {
		t.Errorf("direction: got %v", entry["direction"])
	}
	if entry["layer"] != "TRANSPORT" {
		t.Errorf("layer: got %v", entry["layer"])
	}
	if entry["frame_size"] != float64(256) {
		t.Errorf("frame_size: got %v", entry["frame_size"])
	}
	if entry["level"] != "DEBUG" {
		t.Errorf("level: got %v, want DEBUG", entry["level"])
	}
}

func TestSlogAdapterLogsMessageEvent(t *testing.T) {
	entry := logOne(t, Event{
		ConnectionID: "conn-456",
		Direction:    DirectionIn,
		Layer:        LayerWire,
		Category:     CategoryMessage,
		CameraID:     "7",
		Message: &MessageEvent{
			Type:        MessageTypeStatusChange,
			Destination: "/topic/camera-status-change",
			Status:      "ACTIVE",
			OldStatus:   "OFFLINE",
		},
	})

	if entry["msg_type"] != "STATUS_CHANGE" {
		t.Errorf("msg_type: got %v", entry["msg_type"])
	}
	if entry["camera_id"] != "7" {
		t.Errorf("camera_id: got %v", entry["camera_id"])
	}
	if entry["old_status"] != "OFFLINE" || entry["status"] != "ACTIVE" {
		t.Errorf("statuses: got %v -> %v", entry["old_status"], entry["status"])
	}
}

func TestSlogAdapterLogsStateAndClose(t *testing.T) {
	attempt := 1
	delay := 2 * time.Second
	entry := logOne(t, Event{
		Layer:    LayerClient,
		Category: CategoryState,
		StateChange: &StateChangeEvent{
			OldState: "CONNECTED", NewState: "RECONNECT_PENDING",
			Attempt: &attempt, RetryDelay: &delay,
		},
	})
	if entry["new_state"] != "RECONNECT_PENDING" {
		t.Errorf("new_state: got %v", entry["new_state"])
	}
	if entry["attempt"] != float64(1) {
		t.Errorf("attempt: got %v", entry["attempt"])
	}

	code := 1006
	entry = logOne(t, Event{
		Layer:      LayerTransport,
		Category:   CategoryControl,
		ControlMsg: &ControlMsgEvent{Type: ControlMsgClose, CloseCode: &code, CloseReason: "gone"},
	})
	if entry["ctrl_type"] != "CLOSE" || entry["close_code"] != float64(1006) {
		t.Errorf("control: got %v / %v", entry["ctrl_type"], entry["close_code"])
	}
}

func TestSlogAdapterLogsError(t *testing.T) {
	entry := logOne(t, Event{
		Layer:    LayerWire,
		Category: CategoryError,
		Error:    &ErrorEventData{Layer: LayerWire, Message: "bad json", Context: "decode"},
	})
	if entry["error_msg"] != "bad json" || entry["error_context"] != "decode" {
		t.Errorf("error attrs: %v", entry)
	}
}
