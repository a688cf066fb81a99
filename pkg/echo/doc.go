// Package echo implements the WebTransport echo server used to exercise the
// client. It presents a short-lived self-signed identity whose SHA-256 hash
// clients pin, answers every framed message on a bidirectional stream with
// "Received: <message>", and logs messages arriving on unidirectional
// streams.
package echo
