package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/lantern-live/lantern/internal/events"
	"github.com/lantern-live/lantern/internal/protocol"
	"github.com/lantern-live/lantern/internal/util"
)

const queueCapacity = 512

// heartbeatInterval is a variable so tests can shorten it.
var heartbeatInterval = 30 * time.Second

// ErrNoHostAvailable is returned by Connect when the danmu info carries an
// empty host list.
var ErrNoHostAvailable = errors.New("no danmu host available")

// State is the session lifecycle state. Transitions only move forward:
// Connecting -> Open -> Closing -> Closed.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// Host is one danmu endpoint candidate.
type Host struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	WSSPort int    `json:"wss_port"`
	WSPort  int    `json:"ws_port"`
}

// DanmuInfo is the externally issued connection target for a room:
// a short-lived token plus candidate hosts. The session always uses the
// first host; failover policy belongs to the caller.
type DanmuInfo struct {
	Token string `json:"token"`
	Hosts []Host `json:"host_list"`
}

// Stats is a snapshot of session counters.
type Stats struct {
	EventsSeen    uint64
	EventsDropped uint64
	Popularity    uint32
}

// session is the runtime state shared between the dispatch goroutine and
// the caller's handle. It is deliberately separate from Session: the
// dispatch goroutine holds only this inner state, so a Session handle
// dropped without Disconnect becomes unreachable while the loop is still
// running, and the handle's finalizer can post the shutdown signal.
type session struct {
	roomID int64
	userID int64

	parser     *protocol.MessageParser
	logger     zerolog.Logger
	hbInterval time.Duration

	state    atomic.Int32
	queue    chan events.Event
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	doneOnce sync.Once

	eventsSeen    atomic.Uint64
	eventsDropped atomic.Uint64
	popularity    atomic.Uint32

	mu          sync.Mutex
	closeReason string
}

// Session is one live-room connection. A single background goroutine owns
// the transport and races three event sources: the shutdown signal, the
// heartbeat ticker, and inbound socket frames. The caller only ever polls
// TryReceive or posts Disconnect, both of which return immediately.
type Session struct {
	*session
}

// Connect starts a session against the first host in info. It fails fast
// only when the host list is empty; the dial itself happens in the
// background, so socket errors surface as session termination rather than
// a synchronous error.
func Connect(ctx context.Context, roomID, userID int64, info DanmuInfo) (*Session, error) {
	if len(info.Hosts) == 0 {
		return nil, ErrNoHostAvailable
	}

	h := info.Hosts[0]
	url := fmt.Sprintf("wss://%s:%d/sub", h.Host, h.WSSPort)

	s := newSession(roomID, userID)
	s.logger.Info().Str("url", url).Msg("connecting to danmu host")

	// The goroutine captures only the inner state, never the handle.
	c := s.session
	go func() {
		transport, err := DialWS(ctx, url)
		if err != nil {
			c.logger.Error().Err(err).Str("url", url).Msg("danmu dial failed")
			c.finish(fmt.Sprintf("connection failed: %v", err))
			return
		}
		c.run(transport, info.Token)
	}()

	return s, nil
}

// NewWithTransport starts a session over an already established transport.
func NewWithTransport(roomID, userID int64, token string, t Transport) *Session {
	s := newSession(roomID, userID)
	go s.session.run(t, token)
	return s
}

func newSession(roomID, userID int64) *Session {
	c := &session{
		roomID:     roomID,
		userID:     userID,
		parser:     protocol.NewMessageParser(),
		logger:     util.ComponentLogger("live_session").With().Int64("room_id", roomID).Logger(),
		hbInterval: heartbeatInterval,
		queue:      make(chan events.Event, queueCapacity),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	c.state.Store(int32(StateConnecting))

	h := &Session{session: c}

	// A handle dropped without Disconnect still gets a best-effort
	// shutdown signal once the collector finds it.
	runtime.SetFinalizer(h, func(h *Session) { h.Disconnect() })

	return h
}

// run is the session's single dispatch loop. It authenticates, then races
// shutdown, heartbeat tick, and inbound frames until one of them ends the
// session.
func (s *session) run(t Transport, token string) {
	defer s.finish("")

	if err := t.Send(protocol.BuildAuthFrame(s.userID, s.roomID, token)); err != nil {
		s.logger.Error().Err(err).Msg("failed to send auth frame")
		s.setReason(fmt.Sprintf("connection failed: %v", err))
		t.Close()
		return
	}
	s.state.Store(int32(StateOpen))
	s.logger.Info().Msg("live session open")

	defer t.Close()

	// Socket reads become a channel so the dispatch loop can select over
	// them alongside the ticker and the shutdown signal.
	readCh := make(chan []byte, 8)
	readErr := make(chan error, 1)
	go func() {
		for {
			data, err := t.Receive()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case readCh <- data:
			case <-s.stopCh:
				return
			}
		}
	}()

	// The ticker's first fire comes a full interval after connect; no
	// heartbeat is sent immediately.
	ticker := time.NewTicker(s.hbInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			s.state.Store(int32(StateClosing))
			s.logger.Info().Msg("shutdown requested")
			return

		case <-ticker.C:
			if err := t.Send(protocol.BuildHeartbeatFrame()); err != nil {
				s.logger.Warn().Err(err).Msg("heartbeat send failed, closing session")
				s.state.Store(int32(StateClosing))
				s.setReason(fmt.Sprintf("heartbeat failed: %v", err))
				return
			}
			s.logger.Trace().Msg("heartbeat sent")

		case err := <-readErr:
			s.state.Store(int32(StateClosing))
			if errors.Is(err, io.EOF) {
				s.logger.Info().Msg("danmu host closed the connection")
				s.setReason("connection closed by host")
			} else {
				s.logger.Warn().Err(err).Msg("socket read failed")
				s.setReason(fmt.Sprintf("connection failed: %v", err))
			}
			return

		case data := <-readCh:
			s.handleSocketFrame(data)
		}
	}
}

// handleSocketFrame decodes one socket read into frames and queues the
// events they classify into. The queue push never blocks: under burst
// load events are counted and dropped rather than stalling the read path.
func (s *session) handleSocketFrame(data []byte) {
	frames, err := protocol.Decode(data)
	if err != nil {
		// Corrupt envelope loses this batch, not the session.
		s.logger.Warn().Err(err).Int("len", len(data)).Msg("dropping undecodable frame batch")
		return
	}

	for _, f := range frames {
		ev := s.parser.Interpret(f)
		if ev == nil {
			continue
		}
		if pop, ok := ev.Payload.(events.PopularityPayload); ok {
			s.popularity.Store(pop.Count)
		}
		s.eventsSeen.Add(1)

		select {
		case s.queue <- *ev:
		default:
			s.eventsDropped.Add(1)
		}
	}
}

// TryReceive is a non-blocking poll of the inbound event queue.
func (s *session) TryReceive() (events.Event, bool) {
	select {
	case ev := <-s.queue:
		return ev, true
	default:
		return events.Event{}, false
	}
}

// Disconnect requests a best-effort shutdown. It is idempotent, never
// blocks, and is safe after the session has already self-terminated.
func (s *session) Disconnect() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Done is closed when the session has fully terminated and released its
// transport.
func (s *session) Done() <-chan struct{} {
	return s.done
}

// State returns the current lifecycle state.
func (s *session) State() State {
	return State(s.state.Load())
}

// RoomID returns the room this session is attached to.
func (s *session) RoomID() int64 {
	return s.roomID
}

// Stats returns a snapshot of the session counters.
func (s *session) Stats() Stats {
	return Stats{
		EventsSeen:    s.eventsSeen.Load(),
		EventsDropped: s.eventsDropped.Load(),
		Popularity:    s.popularity.Load(),
	}
}

// CloseReason returns a display string describing why the session ended,
// or empty while it is still running / after a clean shutdown.
func (s *session) CloseReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeReason
}

func (s *session) setReason(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeReason == "" {
		s.closeReason = reason
	}
}

// finish marks the terminal state exactly once and releases Done waiters.
func (s *session) finish(reason string) {
	if reason != "" {
		s.setReason(reason)
	}
	s.state.Store(int32(StateClosed))
	s.doneOnce.Do(func() { close(s.done) })
}
