// Package events defines event types and payloads for the Lantern event system.
package events

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Live-room domain events, produced by the protocol classifier
	EventDanmaku        EventType = "danmaku"
	EventEnter          EventType = "enter"
	EventGift           EventType = "gift"
	EventPopularity     EventType = "popularity"
	EventOnlineRank     EventType = "online_rank"
	EventAuthReply      EventType = "auth_reply"
	EventUnknownCommand EventType = "unknown_command"

	// Session lifecycle events
	EventSessionOpen   EventType = "session_open"
	EventSessionClosed EventType = "session_closed"

	// System events
	EventStatusSnapshot EventType = "status_snapshot"
	EventConfigChanged  EventType = "config_changed"
	EventShutdown       EventType = "shutdown"
)

// Event represents a single event in the system.
type Event struct {
	Type    EventType
	Source  string
	Payload interface{}
}

// DanmakuPayload is one chat message in the room.
type DanmakuPayload struct {
	UID      int64  `json:"uid"`
	Username string `json:"username"`
	Content  string `json:"content"`
	Color    uint32 `json:"color"` // decimal RGB
}

// EnterPayload is a viewer entering the room.
type EnterPayload struct {
	UID      int64  `json:"uid"`
	Username string `json:"username"`
}

// GiftPayload is a gift sent to the streamer.
type GiftPayload struct {
	UID      int64  `json:"uid"`
	Username string `json:"username"`
	GiftName string `json:"gift_name"`
	GiftID   int64  `json:"gift_id"`
	Count    int64  `json:"count"`
	Price    int64  `json:"price"`
}

// PopularityPayload is the room's viewer-activity counter, delivered
// with every heartbeat reply.
type PopularityPayload struct {
	Count uint32 `json:"count"`
}

// RankEntry is one viewer in the room's contribution ranking.
type RankEntry struct {
	UID   int64  `json:"uid"`
	Uname string `json:"uname"`
	Rank  int    `json:"rank"`
	Face  string `json:"face,omitempty"`
	Score string `json:"score,omitempty"`
}

// OnlineRankPayload is the ranked-viewer list for the room.
type OnlineRankPayload struct {
	Entries []RankEntry `json:"entries"`
}

// AuthReplyPayload is the result of the join handshake. Code 0 means
// the room accepted the session.
type AuthReplyPayload struct {
	Code int `json:"code"`
}

// UnknownCommandPayload carries the name of a command the classifier does
// not recognize. Subscribers decide whether to act on it.
type UnknownCommandPayload struct {
	Cmd string `json:"cmd"`
}

// SessionOpenPayload announces a newly opened live session.
type SessionOpenPayload struct {
	RoomID int64  `json:"room_id"`
	UID    int64  `json:"uid"`
	Host   string `json:"host"`
}

// SessionClosedPayload describes why a live session ended.
type SessionClosedPayload struct {
	RoomID int64  `json:"room_id"`
	Reason string `json:"reason"`
}

// StatusSnapshotPayload is the periodic health snapshot emitted by the
// scheduler and forwarded to telemetry and the status API.
type StatusSnapshotPayload struct {
	RoomID        int64   `json:"room_id"`
	SessionState  string  `json:"session_state"`
	Popularity    uint32  `json:"popularity"`
	EventsSeen    uint64  `json:"events_seen"`
	EventsDropped uint64  `json:"events_dropped"`
	UptimeSec     int64   `json:"uptime_sec"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryMB      uint64  `json:"memory_mb"`
}

// ConfigChangedPayload is emitted when configuration changes occur.
type ConfigChangedPayload struct {
	Section string
	Key     string
	Value   interface{}
}
