package protocol

import "encoding/json"

// HeartbeatBody is the fixed heartbeat payload the upstream service
// expects. It is a literal placeholder string, not JSON.
var HeartbeatBody = []byte("[object Object]")

// authBody is the JSON payload of the join frame.
type authBody struct {
	UID      int64  `json:"uid"`
	RoomID   int64  `json:"roomid"`
	ProtoVer int    `json:"protover"`
	Platform string `json:"platform"`
	Type     int    `json:"type"`
	Key      string `json:"key"`
}

// BuildAuthFrame returns the encoded join frame sent once after the
// transport is established. Protover 3 requests brotli envelopes.
func BuildAuthFrame(uid, roomID int64, token string) []byte {
	body, _ := json.Marshal(authBody{
		UID:      uid,
		RoomID:   roomID,
		ProtoVer: 3,
		Platform: "web",
		Type:     2,
		Key:      token,
	})
	return Encode(VerRaw, OpAuth, 1, body)
}

// BuildHeartbeatFrame returns an encoded keepalive frame.
func BuildHeartbeatFrame() []byte {
	return Encode(VerRaw, OpHeartbeat, 1, HeartbeatBody)
}
