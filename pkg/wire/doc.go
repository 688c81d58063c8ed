// Package wire defines the JSON wire format spoken on the camera status push
// endpoint.
//
// Every websocket text frame carries one JSON envelope. The client sends
// control envelopes and the server pushes message envelopes:
//
//	{"type":"SUBSCRIBE","destination":"/topic/camera-status"}
//	{"destination":"/topic/camera-status","body":"{\"id\":7,...}"}
//
// # Topics
//
// Two static topics exist:
//   - /topic/camera-status: full camera snapshots (CameraSnapshot)
//   - /topic/camera-status-change: discrete transitions (StatusNotification)
//
// The body of a message envelope is itself a JSON document encoded as a
// string. Servers that inline the object instead of quoting it are accepted.
//
// # Timestamps
//
// Status-change timestamps travel as ISO-8601 strings and are parsed into
// time.Time when the notification is decoded. Strings without a zone offset
// are interpreted as UTC.
package wire
