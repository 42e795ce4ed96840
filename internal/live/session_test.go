package live

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/lantern-live/lantern/internal/events"
	"github.com/lantern-live/lantern/internal/protocol"
)

// fakeTransport is an in-memory Transport for session tests.
type fakeTransport struct {
	in        chan []byte
	sent      chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	sendErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan []byte, 64),
		sent:   make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (t *fakeTransport) Send(data []byte) error {
	t.mu.Lock()
	err := t.sendErr
	t.mu.Unlock()
	if err != nil {
		return err
	}
	select {
	case t.sent <- data:
	default:
	}
	return nil
}

func (t *fakeTransport) Receive() ([]byte, error) {
	select {
	case data := <-t.in:
		return data, nil
	case <-t.closed:
		return nil, io.EOF
	}
}

func (t *fakeTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

func (t *fakeTransport) failSends(err error) {
	t.mu.Lock()
	t.sendErr = err
	t.mu.Unlock()
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// receiveOne polls TryReceive until an event arrives.
func receiveOne(t *testing.T, s *Session) events.Event {
	t.Helper()
	var ev events.Event
	waitFor(t, "event", func() bool {
		got, ok := s.TryReceive()
		if ok {
			ev = got
		}
		return ok
	})
	return ev
}

func TestConnectEmptyHostList(t *testing.T) {
	_, err := Connect(context.Background(), 1, 2, DanmuInfo{Token: "k"})
	if !errors.Is(err, ErrNoHostAvailable) {
		t.Fatalf("err = %v, want ErrNoHostAvailable", err)
	}
}

func TestSessionSendsAuthFrame(t *testing.T) {
	ft := newFakeTransport()
	s := NewWithTransport(42, 7, "secret", ft)
	defer s.Disconnect()

	var raw []byte
	select {
	case raw = <-ft.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("no auth frame sent")
	}

	frames, err := protocol.Decode(raw)
	if err != nil || len(frames) != 1 {
		t.Fatalf("auth frame decode: %v (%d frames)", err, len(frames))
	}
	if frames[0].Op != protocol.OpAuth {
		t.Fatalf("op = %d, want auth", frames[0].Op)
	}

	var body struct {
		UID      int64  `json:"uid"`
		RoomID   int64  `json:"roomid"`
		ProtoVer int    `json:"protover"`
		Platform string `json:"platform"`
		Type     int    `json:"type"`
		Key      string `json:"key"`
	}
	if err := json.Unmarshal(frames[0].Body, &body); err != nil {
		t.Fatalf("auth body: %v", err)
	}
	if body.UID != 7 || body.RoomID != 42 || body.ProtoVer != 3 ||
		body.Platform != "web" || body.Type != 2 || body.Key != "secret" {
		t.Errorf("auth body = %+v", body)
	}

	waitFor(t, "open state", func() bool { return s.State() == StateOpen })
}

func TestSessionDeliversClassifiedEvents(t *testing.T) {
	ft := newFakeTransport()
	s := NewWithTransport(42, 7, "k", ft)
	defer s.Disconnect()

	msg := `{"cmd":"DANMU_MSG","info":[[0,0,0,255],"hey",[5,"eve"]]}`
	ft.in <- protocol.Encode(protocol.VerRaw, protocol.OpMessage, 1, []byte(msg))

	ev := receiveOne(t, s)
	if ev.Type != events.EventDanmaku {
		t.Fatalf("type = %s, want danmaku", ev.Type)
	}
	d := ev.Payload.(events.DanmakuPayload)
	if d.UID != 5 || d.Username != "eve" || d.Content != "hey" || d.Color != 255 {
		t.Errorf("payload = %+v", d)
	}
}

func TestSessionTracksPopularity(t *testing.T) {
	ft := newFakeTransport()
	s := NewWithTransport(42, 7, "k", ft)
	defer s.Disconnect()

	ft.in <- protocol.Encode(protocol.VerRaw, protocol.OpHeartbeatReply, 1, []byte{0x00, 0x00, 0x27, 0x10})

	ev := receiveOne(t, s)
	if ev.Type != events.EventPopularity {
		t.Fatalf("type = %s, want popularity", ev.Type)
	}
	if got := ev.Payload.(events.PopularityPayload).Count; got != 10000 {
		t.Errorf("count = %d, want 10000", got)
	}
	waitFor(t, "popularity stat", func() bool { return s.Stats().Popularity == 10000 })
}

func TestTryReceiveEmptyReturnsImmediately(t *testing.T) {
	ft := newFakeTransport()
	s := NewWithTransport(42, 7, "k", ft)
	defer s.Disconnect()

	if _, ok := s.TryReceive(); ok {
		t.Fatal("TryReceive on empty queue returned an event")
	}
}

func TestQueueDropsUnderBurstWithoutBlocking(t *testing.T) {
	ft := newFakeTransport()
	s := NewWithTransport(42, 7, "k", ft)
	defer s.Disconnect()

	waitFor(t, "open state", func() bool { return s.State() == StateOpen })

	msg := []byte(`{"cmd":"INTERACT_WORD","data":{"uid":1,"uname":"n","msg_type":1}}`)
	frame := protocol.Encode(protocol.VerRaw, protocol.OpMessage, 1, msg)

	total := uint64(queueCapacity + 100)
	for i := uint64(0); i < total; i++ {
		ft.in <- frame
	}

	// The producer never stalls: every event is either queued or counted
	// as dropped, and the session stays open.
	waitFor(t, "all events handled", func() bool { return s.Stats().EventsSeen == total })
	if s.Stats().EventsDropped == 0 {
		t.Error("expected dropped events under burst")
	}
	if s.State() != StateOpen {
		t.Errorf("state = %s, want open", s.State())
	}
}

func TestSessionEndsWhenTransportCloses(t *testing.T) {
	ft := newFakeTransport()
	s := NewWithTransport(42, 7, "k", ft)

	waitFor(t, "open state", func() bool { return s.State() == StateOpen })
	ft.Close()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate on transport close")
	}
	if s.State() != StateClosed {
		t.Errorf("state = %s, want closed", s.State())
	}
	if s.CloseReason() == "" {
		t.Error("expected a close reason after host-side close")
	}
}

func TestSessionHeartbeatAndSendFailure(t *testing.T) {
	old := heartbeatInterval
	heartbeatInterval = 20 * time.Millisecond
	defer func() { heartbeatInterval = old }()

	ft := newFakeTransport()
	s := NewWithTransport(42, 7, "k", ft)

	<-ft.sent // auth frame

	var hb []byte
	select {
	case hb = <-ft.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat sent")
	}
	frames, err := protocol.Decode(hb)
	if err != nil || len(frames) != 1 || frames[0].Op != protocol.OpHeartbeat {
		t.Fatalf("heartbeat frame: %v %+v", err, frames)
	}
	if string(frames[0].Body) != "[object Object]" {
		t.Errorf("heartbeat body = %q", frames[0].Body)
	}

	// A failing heartbeat send terminates the session, no retry.
	ft.failSends(errors.New("broken pipe"))
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate on heartbeat send failure")
	}
	if s.CloseReason() == "" {
		t.Error("expected close reason after heartbeat failure")
	}
}

func TestSessionEndsOnAuthSendFailure(t *testing.T) {
	ft := newFakeTransport()
	ft.failSends(errors.New("broken pipe"))
	s := NewWithTransport(43, 7, "k", ft)

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate on auth send failure")
	}
	if s.CloseReason() == "" {
		t.Error("expected close reason after send failure")
	}
}

func TestDroppedHandleShutsSessionDown(t *testing.T) {
	ft := newFakeTransport()

	// The handle goes out of scope without Disconnect; only the Done
	// channel survives.
	done := func() <-chan struct{} {
		s := NewWithTransport(42, 7, "k", ft)
		waitFor(t, "open state", func() bool { return s.State() == StateOpen })
		return s.Done()
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		runtime.GC()
		select {
		case <-done:
			select {
			case <-ft.closed:
			default:
				t.Error("transport left open after session terminated")
			}
			return
		case <-time.After(20 * time.Millisecond):
		}
		if time.Now().After(deadline) {
			t.Fatal("session kept running after its handle was dropped")
		}
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	ft := newFakeTransport()
	s := NewWithTransport(42, 7, "k", ft)

	s.Disconnect()
	s.Disconnect()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate after disconnect")
	}

	// Safe after self-termination as well.
	s.Disconnect()
	if s.State() != StateClosed {
		t.Errorf("state = %s, want closed", s.State())
	}
}
