package protocol

import (
	"testing"

	"github.com/lantern-live/lantern/internal/events"
)

func classify(t *testing.T, text string) *events.Event {
	t.Helper()
	return NewMessageParser().Classify(text)
}

func TestClassifyDanmaku(t *testing.T) {
	ev := classify(t, `{"cmd":"DANMU_MSG","info":[[0,0,0,16777215],"hello",[12345,"alice"]]}`)
	if ev == nil || ev.Type != events.EventDanmaku {
		t.Fatalf("event = %+v, want danmaku", ev)
	}
	d := ev.Payload.(events.DanmakuPayload)
	if d.UID != 12345 || d.Username != "alice" || d.Content != "hello" || d.Color != 16777215 {
		t.Errorf("payload = %+v", d)
	}
}

func TestClassifyDanmakuVariantSuffix(t *testing.T) {
	// The upstream service appends version suffixes to the command name.
	ev := classify(t, `{"cmd":"DANMU_MSG:4:0:2:2:2:0","info":[[0],"hi",[1,"bob"]]}`)
	if ev == nil || ev.Type != events.EventDanmaku {
		t.Fatalf("event = %+v, want danmaku", ev)
	}
	d := ev.Payload.(events.DanmakuPayload)
	if d.Username != "bob" || d.Color != defaultDanmakuColor {
		t.Errorf("payload = %+v, want default color", d)
	}
}

func TestClassifyDanmakuMissingFields(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"info not array", `{"cmd":"DANMU_MSG","info":{"x":1}}`},
		{"info too short", `{"cmd":"DANMU_MSG","info":[[0],"hi"]}`},
		{"user too short", `{"cmd":"DANMU_MSG","info":[[0],"hi",[1]]}`},
		{"uid not numeric", `{"cmd":"DANMU_MSG","info":[[0],"hi",["x","bob"]]}`},
		{"content not string", `{"cmd":"DANMU_MSG","info":[[0],42,[1,"bob"]]}`},
		{"info absent", `{"cmd":"DANMU_MSG"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if ev := classify(t, tt.text); ev != nil {
				t.Fatalf("event = %+v, want nil", ev)
			}
		})
	}
}

func TestClassifyInteractEnter(t *testing.T) {
	ev := classify(t, `{"cmd":"INTERACT_WORD","data":{"uid":1,"uname":"bob","msg_type":1}}`)
	if ev == nil || ev.Type != events.EventEnter {
		t.Fatalf("event = %+v, want enter", ev)
	}
	e := ev.Payload.(events.EnterPayload)
	if e.UID != 1 || e.Username != "bob" {
		t.Errorf("payload = %+v", e)
	}
}

func TestClassifyInteractNonEnterFiltered(t *testing.T) {
	for _, msgType := range []string{"0", "2", "3"} {
		text := `{"cmd":"INTERACT_WORD","data":{"uid":1,"uname":"bob","msg_type":` + msgType + `}}`
		if ev := classify(t, text); ev != nil {
			t.Fatalf("msg_type %s: event = %+v, want nil", msgType, ev)
		}
	}
}

func TestClassifyGift(t *testing.T) {
	ev := classify(t, `{"cmd":"SEND_GIFT","data":{"uid":9,"uname":"carol","giftName":"flower","giftId":31036,"num":3,"price":100}}`)
	if ev == nil || ev.Type != events.EventGift {
		t.Fatalf("event = %+v, want gift", ev)
	}
	g := ev.Payload.(events.GiftPayload)
	if g.UID != 9 || g.GiftName != "flower" || g.GiftID != 31036 || g.Count != 3 || g.Price != 100 {
		t.Errorf("payload = %+v", g)
	}
}

func TestClassifyGiftDefaults(t *testing.T) {
	ev := classify(t, `{"cmd":"SEND_GIFT","data":{"uid":9,"uname":"carol","giftName":"flower","giftId":31036}}`)
	if ev == nil {
		t.Fatal("event = nil, want gift with defaults")
	}
	g := ev.Payload.(events.GiftPayload)
	if g.Count != 1 || g.Price != 0 {
		t.Errorf("count = %d price = %d, want 1 and 0", g.Count, g.Price)
	}
}

func TestClassifyGiftMissingRequired(t *testing.T) {
	tests := []string{
		`{"cmd":"SEND_GIFT","data":{"uname":"carol","giftName":"flower","giftId":1}}`,
		`{"cmd":"SEND_GIFT","data":{"uid":9,"giftName":"flower","giftId":1}}`,
		`{"cmd":"SEND_GIFT","data":{"uid":9,"uname":"carol","giftId":1}}`,
		`{"cmd":"SEND_GIFT","data":{"uid":9,"uname":"carol","giftName":"flower"}}`,
	}
	for _, text := range tests {
		if ev := classify(t, text); ev != nil {
			t.Fatalf("event = %+v, want nil for %s", ev, text)
		}
	}
}

func TestClassifyOnlineRank(t *testing.T) {
	ev := classify(t, `{"cmd":"ONLINE_RANK_V2","data":{"list":[
		{"uid":1,"uname":"a","rank":1,"score":"120"},
		{"uid":"broken"},
		{"uid":2,"uname":"b","rank":2}
	]}}`)
	if ev == nil || ev.Type != events.EventOnlineRank {
		t.Fatalf("event = %+v, want online rank", ev)
	}
	entries := ev.Payload.(events.OnlineRankPayload).Entries
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 (malformed one dropped)", len(entries))
	}
	if entries[0].Uname != "a" || entries[0].Score != "120" || entries[1].Rank != 2 {
		t.Errorf("entries = %+v", entries)
	}
}

func TestClassifyUnknownPassthrough(t *testing.T) {
	ev := classify(t, `{"cmd":"SUPER_CHAT_MESSAGE","data":{}}`)
	if ev == nil || ev.Type != events.EventUnknownCommand {
		t.Fatalf("event = %+v, want unknown command", ev)
	}
	if got := ev.Payload.(events.UnknownCommandPayload).Cmd; got != "SUPER_CHAT_MESSAGE" {
		t.Errorf("cmd = %q", got)
	}
}

func TestClassifyGarbage(t *testing.T) {
	for _, text := range []string{"", "not json", `{"info":[]}`, `[1,2,3]`} {
		if ev := classify(t, text); ev != nil {
			t.Fatalf("event = %+v, want nil for %q", ev, text)
		}
	}
}
