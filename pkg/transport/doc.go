// Package transport provides the websocket transport for the status push
// protocol.
//
// The transport layer handles:
//   - Dialing the push endpoint with a bearer credential
//   - Text frame I/O over a single websocket connection
//   - Close code classification (normal vs. abnormal closure)
//   - Keep-alive ping/pong for connection liveness
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│      JSON Envelopes            │
//	├────────────────────────────────┤
//	│   WebSocket text frames        │
//	├────────────────────────────────┤
//	│     TLS (wss) or plain (ws)    │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// # Close Codes
//
// A close frame from the peer carries its code. Any read error that is not
// a close frame (dropped TCP, failed handshake, missed pong) is reported as
// CloseAbnormal (1006). Only CloseNormal (1000) is treated as intentional.
//
// # Keep-Alive
//
// When enabled, a ping is sent every PingInterval and the read deadline is
// extended on every pong. A peer that stays silent for PongWait is treated
// as gone and the next read fails with CloseAbnormal.
package transport
