package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zlib"
	"github.com/rs/zerolog/log"
)

// ErrNestingTooDeep is returned when compressed envelopes recurse past
// MaxNestingDepth. Treated like stream corruption: the whole decode fails.
var ErrNestingTooDeep = errors.New("frame envelope nesting exceeds depth limit")

// Encode serializes one frame. The header is big-endian: total length (4),
// header length (2, always 16), protocol version (2), operation code (4),
// sequence id (4), followed by the body verbatim.
func Encode(version uint16, op uint32, seq uint32, body []byte) []byte {
	buf := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint32(buf[0:4], uint32(HeaderSize+len(body)))
	binary.BigEndian.PutUint16(buf[4:6], HeaderSize)
	binary.BigEndian.PutUint16(buf[6:8], version)
	binary.BigEndian.PutUint32(buf[8:12], op)
	binary.BigEndian.PutUint32(buf[12:16], seq)
	copy(buf[HeaderSize:], body)
	return buf
}

// Decode scans data from offset 0 and returns every complete frame it
// contains, in order. Compressed bodies (zlib/brotli) are inflated and
// re-fed through the decoder; the nested frames they contain are appended
// in place of the envelope. A declared length overrunning the buffer means
// the stream was cut mid-frame: scanning stops and the trailing bytes are
// dropped without error. Corrupt compressed data fails the whole call.
func Decode(data []byte) ([]Frame, error) {
	return decode(data, 0)
}

func decode(data []byte, depth int) ([]Frame, error) {
	if depth > MaxNestingDepth {
		return nil, ErrNestingTooDeep
	}

	var frames []Frame
	off := 0
	for len(data)-off >= HeaderSize {
		total := int(binary.BigEndian.Uint32(data[off : off+4]))
		headerLen := int(binary.BigEndian.Uint16(data[off+4 : off+6]))
		version := binary.BigEndian.Uint16(data[off+6 : off+8])
		op := binary.BigEndian.Uint32(data[off+8 : off+12])
		seq := binary.BigEndian.Uint32(data[off+12 : off+16])

		// Incomplete or nonsensical trailing frame: stop scanning.
		if headerLen < HeaderSize || total < headerLen || off+total > len(data) {
			break
		}

		body := data[off+headerLen : off+total]

		switch version {
		case VerZlib:
			inner, err := inflateZlib(body)
			if err != nil {
				return nil, fmt.Errorf("inflate zlib envelope: %w", err)
			}
			nested, err := decode(inner, depth+1)
			if err != nil {
				return nil, err
			}
			frames = append(frames, nested...)

		case VerBrotli:
			inner, err := inflateBrotli(body)
			if err != nil {
				return nil, fmt.Errorf("inflate brotli envelope: %w", err)
			}
			nested, err := decode(inner, depth+1)
			if err != nil {
				return nil, err
			}
			frames = append(frames, nested...)

		default:
			if !validOp(op) {
				log.Debug().
					Uint32("op", op).
					Int("body_len", len(body)).
					Msg("dropping frame with unknown operation code")
				break
			}
			frames = append(frames, Frame{
				Version:    version,
				Op:         op,
				SequenceID: seq,
				Body:       body,
			})
		}

		off += total
	}

	return frames, nil
}

func inflateZlib(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func inflateBrotli(data []byte) ([]byte, error) {
	return io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
}
