// Package connection provides the reconnection policy of the status client.
//
// This package handles:
//   - Exponential backoff for reconnection attempts
//   - The bounded attempt counter
//   - The explicit connection state machine
//
// # Reconnection Strategy
//
// When a connection closes abnormally the client waits before reopening it:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s
//  3. Maximum delay: 30 seconds
//  4. At most 5 attempts, then the machine gives up
//  5. The attempt counter resets to 0 on every successful open
//
// A close with the normal-closure code (1000) is intentional and never
// triggers a retry.
//
// # States
//
//	DISCONNECTED -> CONNECTING -> CONNECTED
//	CONNECTED -> DISCONNECTED        (normal closure, Disconnect)
//	CONNECTED -> RECONNECT_PENDING   (abnormal closure, attempts < cap)
//	CONNECTED -> GIVEN_UP            (abnormal closure, attempts == cap)
//	RECONNECT_PENDING -> CONNECTING  (retry timer fired)
//
// Machine contains no timers or goroutines. The caller owns scheduling and
// feeds events in; this keeps the retry, cap and reset rules testable on
// their own.
package connection
