package protocol

import (
	"encoding/binary"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lantern-live/lantern/internal/events"
)

// MessageParser interprets decoded frames and classifies the JSON command
// stream into typed domain events.
type MessageParser struct {
	logger zerolog.Logger
}

// NewMessageParser creates a parser for the live-room message protocol.
func NewMessageParser() *MessageParser {
	return &MessageParser{
		logger: log.With().Str("component", "msg_parser").Logger(),
	}
}

// Interpret turns one decoded frame into at most one domain event based on
// its operation code. Frames that carry nothing actionable (short heartbeat
// replies, ops with no inbound meaning) yield nil, never an error: the
// upstream stream is heterogeneous and partially undocumented.
func (p *MessageParser) Interpret(f Frame) *events.Event {
	switch f.Op {
	case OpHeartbeatReply:
		// First 4 bytes, big-endian, is the room popularity counter.
		if len(f.Body) < 4 {
			return nil
		}
		return &events.Event{
			Type:    events.EventPopularity,
			Source:  "live",
			Payload: events.PopularityPayload{Count: binary.BigEndian.Uint32(f.Body[:4])},
		}

	case OpAuthReply:
		code := -1
		var reply struct {
			Code *int `json:"code"`
		}
		if err := json.Unmarshal(f.Body, &reply); err == nil && reply.Code != nil {
			code = *reply.Code
		}
		return &events.Event{
			Type:    events.EventAuthReply,
			Source:  "live",
			Payload: events.AuthReplyPayload{Code: code},
		}

	case OpMessage:
		// Lossy decode: invalid UTF-8 sequences are replaced, never fatal.
		return p.Classify(strings.ToValidUTF8(string(f.Body), "�"))
	}

	return nil
}
