// Package protocol owns the tunnel wire contract and its codec.
//
// Ownership boundary:
// - message variants exchanged between controller and agent
// - integer and length-prefix encodings selected by Config
// - incremental decode over a caller-owned receive buffer
//
// The codec performs no I/O and keeps no state between calls. Socket
// handling, size limits and deadlines live in package stream.
//
// Frame layout (no outer length prefix, no magic, no version):
//
//	tag:u32 | field... (declaration order)
//	u16             -> integer encoding from Config
//	[]byte, string  -> u64 length (integer encoding) + raw bytes
package protocol
