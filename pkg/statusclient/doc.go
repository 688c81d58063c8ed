// Package statusclient maintains a live websocket connection to the camera
// status push endpoint and surfaces two event streams to its owner: raw
// camera snapshots and discrete status-change notifications.
//
// # Lifecycle
//
//	c := statusclient.New(cfg, statusclient.Callbacks{
//	    OnCameraStatusUpdate: func(s wire.CameraSnapshot) { ... },
//	    OnStatusChange:       func(n wire.StatusNotification) { ... },
//	    OnConnectionChange:   func(connected bool) { ... },
//	})
//	defer c.Close()
//	c.Connect()
//
// Connect reads the bearer token from the credential store, dials, and on
// open sends one SUBSCRIBE frame per topic before any inbound frame is
// processed. Abnormal closures are retried with capped exponential backoff
// (see package connection); Disconnect cancels any pending retry.
//
// # Concurrency
//
// All transport events and timer firings are handled on one event-loop
// goroutine, so callbacks are never invoked concurrently and always in
// arrival order. Callbacks must not block for long and must not call Close.
// They may call Connect, Disconnect and SendMessage.
//
// Failures never reach the owner as errors: they are logged, and
// connectivity changes are reported through OnConnectionChange.
package statusclient
