package transport

import (
	"errors"

	"github.com/gorilla/websocket"
)

// CloseCode classifies the error returned by Conn.ReadMessage. A close
// frame yields its code; anything else is an abnormal closure.
func CloseCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CloseAbnormal
}

// CloseReason returns the reason text of a close frame, or the error
// message for other failures.
func CloseReason(err error) string {
	if err == nil {
		return ""
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Text
	}
	return err.Error()
}

// IsNormalClosure reports whether code means the peer closed on purpose.
func IsNormalClosure(code int) bool {
	return code == CloseNormal
}
