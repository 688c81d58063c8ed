// Package credential provides read-only keyed lookup of secrets such as the
// bearer token presented to the push endpoint.
//
// Stores are consulted at connect time, so a token rotated in the backing
// file or environment is picked up on the next (re)connect without
// restarting the client.
package credential
