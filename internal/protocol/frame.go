// Package protocol implements the binary framing, payload decoding, and
// command classification for the live-room chat protocol. Every frame
// carries a fixed 16-byte big-endian header followed by a body; depending
// on the frame's protocol version the body is used raw or inflated
// (zlib or brotli), and inflated bodies unwrap into further frames.
package protocol

// Protocol versions select the body codec of a frame.
const (
	VerRaw    uint16 = 0 // body used as-is
	VerZlib   uint16 = 2 // body is a zlib envelope of nested frames (legacy)
	VerBrotli uint16 = 3 // body is a brotli envelope of nested frames
)

// Operation codes.
const (
	OpHeartbeat      uint32 = 2 // client -> server keepalive
	OpHeartbeatReply uint32 = 3 // server -> client, body leads with the popularity counter
	OpMessage        uint32 = 5 // server -> client JSON command
	OpAuth           uint32 = 7 // client -> server join
	OpAuthReply      uint32 = 8 // server -> client join result
)

// HeaderSize is the fixed frame header length in bytes.
const HeaderSize = 16

// MaxNestingDepth bounds recursive envelope unwrapping so a hostile
// stream of compressed envelopes cannot recurse without limit.
const MaxNestingDepth = 16

// Frame is one protocol unit after header parsing and decompression.
type Frame struct {
	Version    uint16
	Op         uint32
	SequenceID uint32
	Body       []byte
}

// validOp reports whether op is one of the operation codes the protocol
// defines. Frames with any other op are dropped during decode.
func validOp(op uint32) bool {
	switch op {
	case OpHeartbeat, OpHeartbeatReply, OpMessage, OpAuth, OpAuthReply:
		return true
	}
	return false
}
