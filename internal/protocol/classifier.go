package protocol

import (
	"encoding/json"
	"strings"

	"github.com/lantern-live/lantern/internal/events"
)

// Command names dispatched by the classifier. The danmaku family matches
// by prefix because the upstream service suffixes variants onto the name.
const (
	cmdDanmaku    = "DANMU_MSG"
	cmdInteract   = "INTERACT_WORD"
	cmdGift       = "SEND_GIFT"
	cmdOnlineRank = "ONLINE_RANK_V2"
)

// interactEnter is the msg_type value for a room entry; other values
// (follow, share) carry no event.
const interactEnter = 1

// defaultDanmakuColor is used when a chat message omits its color field.
const defaultDanmakuColor uint32 = 0xFFFFFF

// rawCommand mirrors the loose envelope of every JSON command:
// a textual name plus either a positional info array or a data object.
type rawCommand struct {
	Cmd  string          `json:"cmd"`
	Info json.RawMessage `json:"info"`
	Data json.RawMessage `json:"data"`
}

// Classify maps one JSON command onto a typed domain event. Commands the
// classifier recognizes but that fail their shape checks yield nil;
// commands it does not recognize yield an unknown-command event so callers
// can decide whether to act on them. Unparseable JSON yields nil.
func (p *MessageParser) Classify(text string) *events.Event {
	var cmd rawCommand
	if err := json.Unmarshal([]byte(text), &cmd); err != nil {
		p.logger.Trace().Err(err).Msg("unparseable command JSON")
		return nil
	}
	if cmd.Cmd == "" {
		return nil
	}

	switch {
	case strings.HasPrefix(cmd.Cmd, cmdDanmaku):
		return p.classifyDanmaku(cmd.Info)
	case cmd.Cmd == cmdInteract:
		return p.classifyInteract(cmd.Data)
	case cmd.Cmd == cmdGift:
		return p.classifyGift(cmd.Data)
	case cmd.Cmd == cmdOnlineRank:
		return p.classifyOnlineRank(cmd.Data)
	default:
		return &events.Event{
			Type:    events.EventUnknownCommand,
			Source:  "live",
			Payload: events.UnknownCommandPayload{Cmd: cmd.Cmd},
		}
	}
}

// classifyDanmaku parses the positional info array of a chat message:
// info[1] is the content, info[2] is [uid, username, ...], and info[0][3]
// is the decimal RGB color. Only the color has a default; a missing uid,
// username, or content drops the command.
func (p *MessageParser) classifyDanmaku(info json.RawMessage) *events.Event {
	var fields []json.RawMessage
	if err := json.Unmarshal(info, &fields); err != nil || len(fields) < 3 {
		return nil
	}

	var content string
	if err := json.Unmarshal(fields[1], &content); err != nil {
		return nil
	}

	var user []json.RawMessage
	if err := json.Unmarshal(fields[2], &user); err != nil || len(user) < 2 {
		return nil
	}
	var uid int64
	if err := json.Unmarshal(user[0], &uid); err != nil {
		return nil
	}
	var username string
	if err := json.Unmarshal(user[1], &username); err != nil {
		return nil
	}

	color := defaultDanmakuColor
	var meta []json.RawMessage
	if err := json.Unmarshal(fields[0], &meta); err == nil && len(meta) > 3 {
		var c uint32
		if err := json.Unmarshal(meta[3], &c); err == nil {
			color = c
		}
	}

	return &events.Event{
		Type:   events.EventDanmaku,
		Source: "live",
		Payload: events.DanmakuPayload{
			UID:      uid,
			Username: username,
			Content:  content,
			Color:    color,
		},
	}
}

// classifyInteract handles room interaction notices. Only entries
// (msg_type 1) become events; follows and shares are dropped.
func (p *MessageParser) classifyInteract(data json.RawMessage) *events.Event {
	var d struct {
		UID     int64  `json:"uid"`
		Uname   string `json:"uname"`
		MsgType int64  `json:"msg_type"`
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return nil
	}
	if d.MsgType != interactEnter {
		return nil
	}

	return &events.Event{
		Type:    events.EventEnter,
		Source:  "live",
		Payload: events.EnterPayload{UID: d.UID, Username: d.Uname},
	}
}

// classifyGift handles gift notices. Pointer fields distinguish an absent
// field from a zero value: uid, uname, giftName, and giftId are all
// required, while count defaults to 1 and price to 0.
func (p *MessageParser) classifyGift(data json.RawMessage) *events.Event {
	var d struct {
		UID      *int64  `json:"uid"`
		Uname    *string `json:"uname"`
		GiftName *string `json:"giftName"`
		GiftID   *int64  `json:"giftId"`
		Num      *int64  `json:"num"`
		Price    *int64  `json:"price"`
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return nil
	}
	if d.UID == nil || d.Uname == nil || d.GiftName == nil || d.GiftID == nil {
		return nil
	}

	count := int64(1)
	if d.Num != nil {
		count = *d.Num
	}
	var price int64
	if d.Price != nil {
		price = *d.Price
	}

	return &events.Event{
		Type:   events.EventGift,
		Source: "live",
		Payload: events.GiftPayload{
			UID:      *d.UID,
			Username: *d.Uname,
			GiftName: *d.GiftName,
			GiftID:   *d.GiftID,
			Count:    count,
			Price:    price,
		},
	}
}

// classifyOnlineRank handles the ranked-viewer list. Entries are
// deserialized individually; a malformed entry is dropped from the list
// without failing the whole command.
func (p *MessageParser) classifyOnlineRank(data json.RawMessage) *events.Event {
	var d struct {
		List []json.RawMessage `json:"list"`
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return nil
	}

	entries := make([]events.RankEntry, 0, len(d.List))
	for _, raw := range d.List {
		var e events.RankEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			p.logger.Trace().Err(err).Msg("dropping malformed rank entry")
			continue
		}
		entries = append(entries, e)
	}

	return &events.Event{
		Type:    events.EventOnlineRank,
		Source:  "live",
		Payload: events.OnlineRankPayload{Entries: entries},
	}
}
