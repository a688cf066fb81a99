// Package client is the application-facing handle of the bistream core.
//
// A Client owns at most one session at a time. The application drives it
// through four operations:
//
//	InitSession(ctx, endpoint, certHashes)  connect, replacing any session
//	SetupBistream(ctx, isFirst)             open one stream, in call order
//	StartBistreams(ctx)                     arm every stream set up so far
//	SendMessageToStream(ctx, index, msg)    send on the index-th stream
//
// Sends before StartBistreams fail with session.ErrNotArmed; nothing is
// buffered. Streams set up after StartBistreams are armed immediately. An
// index outside the streams set up so far fails with ErrIndexOutOfRange.
//
// Incoming messages and stream ends are delivered to the configured Handler,
// tagged with the session generation they belong to. Once InitSession or
// Close replaced a session, nothing from it reaches the Handler anymore.
package client
