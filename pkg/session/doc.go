// Package session manages one pinned WebTransport session and the
// bidirectional streams opened over it.
//
// A Session is created with Connect, which authenticates the server solely by
// comparing the SHA-256 digest of its leaf certificate with a trust.Descriptor.
// Streams are opened with CreateStream and expose a SendHalf and a
// ReceiveHalf that exchange length-prefixed messages (see package framing).
//
// # Lifecycle
//
//	Connecting ──► Active ──► Closed
//	     │            │
//	     └────────────┴─────► Failed(reason)
//
// Closed and Failed are terminal. Leaving Active closes every stream and
// resolves pending sends and receives with ErrSessionClosed.
//
// # Stream states
//
//	Open ──► HalfClosedSend ────┐
//	  │                         ├──► Closed
//	  └────► HalfClosedReceive ─┘
//
// Any state may move to Errored (stream-local failure) or Closed (session
// closed). A stream-local failure never affects sibling streams.
//
// # Arming
//
// Sends are rejected with ErrNotArmed until Stream.Arm is called. The client
// package arms all streams at once when the application starts them.
package session
