// Package stream moves codec frames across byte-stream transports.
//
// Ownership boundary:
// - receive buffer ownership and read chunking for protocol.Codec
// - optional receive size limit and read/write deadlines
// - serialized frame writes shared by concurrent senders
// - websocket binary-message adapter
//
// Routing, connection tables and reconnects are left to callers.
package stream
