// Package discovery finds and announces live status endpoints over mDNS/DNS-SD.
//
// Endpoints advertise the _camstatus._tcp service type. The instance name is
// free-form (the simulator uses its configured name). TXT records carry:
//
//	path  websocket path on the host (default "/ws/camera-status")
//	tls   "1" when the endpoint expects wss
//	ver   protocol version (optional)
//
// A browser resolves the first matching instance to a ws:// or wss:// URL
// that can be handed straight to the status client.
package discovery
