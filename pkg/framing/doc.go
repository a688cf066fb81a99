// Package framing implements the length-prefixed message format carried on
// bistream streams.
//
// Every application message is sent as one frame:
//
//	+----------------+---------------------+
//	| length (u32be) | payload (length B)  |
//	+----------------+---------------------+
//
// Frames carry no other header. A zero-length payload is a valid message.
// Peers agree on a maximum payload size; a prefix announcing more is a
// protocol violation and terminates decoding of that stream.
//
// Writer and Reader operate on blocking io streams. Decoder is a push-style
// state machine for callers that read arbitrary chunks themselves.
package framing
