// Package room implements the per-room session manager: a directory of room
// handles, one command-channel actor per room that serializes all registry
// mutations and broadcasts, and the transport layer that keeps WebSocket
// connections (and their recoverable session metadata) alive across actor
// suspend/resume cycles.
package room
