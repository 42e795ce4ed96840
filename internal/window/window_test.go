package window

import (
	"fmt"
	"testing"

	"github.com/lantern-live/lantern/internal/events"
)

func danmaku(content string) events.Event {
	return events.Event{
		Type:    events.EventDanmaku,
		Payload: events.DanmakuPayload{UID: 1, Username: "u", Content: content},
	}
}

func TestWindowKeepsInsertionOrder(t *testing.T) {
	w := New(8)
	for i := 0; i < 3; i++ {
		w.Push(danmaku(fmt.Sprintf("msg-%d", i)))
	}

	snap := w.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Len = %d, want 3", len(snap))
	}
	for i, entry := range snap {
		p := entry.Event.Payload.(events.DanmakuPayload)
		if want := fmt.Sprintf("msg-%d", i); p.Content != want {
			t.Errorf("entry %d = %q, want %q", i, p.Content, want)
		}
	}
}

func TestWindowEvictsOldestWhenFull(t *testing.T) {
	w := New(4)
	for i := 0; i < 10; i++ {
		w.Push(danmaku(fmt.Sprintf("msg-%d", i)))
	}

	if w.Len() != 4 {
		t.Fatalf("Len = %d, want 4", w.Len())
	}
	snap := w.Snapshot()
	first := snap[0].Event.Payload.(events.DanmakuPayload)
	last := snap[3].Event.Payload.(events.DanmakuPayload)
	if first.Content != "msg-6" {
		t.Errorf("oldest surviving entry = %q, want msg-6", first.Content)
	}
	if last.Content != "msg-9" {
		t.Errorf("newest entry = %q, want msg-9", last.Content)
	}
}

func TestWindowClampsSize(t *testing.T) {
	w := New(0)
	if w.Cap() != 1 {
		t.Fatalf("Cap = %d, want 1", w.Cap())
	}
	w.Push(danmaku("a"))
	w.Push(danmaku("b"))
	if w.Len() != 1 {
		t.Errorf("Len = %d, want 1", w.Len())
	}
}

func TestWindowConcurrentPush(t *testing.T) {
	w := New(64)
	done := make(chan struct{})
	for g := 0; g < 4; g++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 100; i++ {
				w.Push(danmaku("x"))
				w.Snapshot()
			}
		}()
	}
	for g := 0; g < 4; g++ {
		<-done
	}
	if w.Len() != 64 {
		t.Errorf("Len = %d, want 64", w.Len())
	}
}
