package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lantern-live/lantern/internal/events"
	"github.com/lantern-live/lantern/internal/util"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsSendBuffer   = 64
)

// streamHub fans live-room events out to connected WebSocket overlays.
// Slow clients get frames dropped rather than stalling the bus.
type streamHub struct {
	eventBus *events.EventBus
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu      sync.Mutex
	clients map[*streamClient]struct{}
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// wsMessage is the wire format pushed to overlay clients.
type wsMessage struct {
	Type    string      `json:"type"`
	Time    string      `json:"time"`
	Payload interface{} `json:"payload"`
}

func newStreamHub(eventBus *events.EventBus) *streamHub {
	return &streamHub{
		eventBus: eventBus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The REST layer already enforces CORS; overlays connect
			// from file:// and OBS browser sources with no Origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  util.ComponentLogger("api_stream"),
		clients: make(map[*streamClient]struct{}),
	}
}

// start subscribes the hub to the event types overlays consume.
func (h *streamHub) start() {
	for _, t := range []events.EventType{
		events.EventDanmaku,
		events.EventEnter,
		events.EventGift,
		events.EventPopularity,
		events.EventOnlineRank,
		events.EventStatusSnapshot,
		events.EventSessionOpen,
		events.EventSessionClosed,
	} {
		h.eventBus.Subscribe(t, "api.stream."+string(t), h.onEvent)
	}
}

// stop closes all connected clients.
func (h *streamHub) stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

func (h *streamHub) onEvent(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(wsMessage{
		Type:    string(event.Type),
		Time:    time.Now().Format(time.RFC3339),
		Payload: event.Payload,
	})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// Client can't keep up; drop this frame for it.
		}
	}
	return nil
}

// handleWS upgrades the request and streams events until the client leaves.
func (h *streamHub) handleWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &streamClient{
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", count).Msg("overlay client connected")

	go h.writeLoop(client)
	h.readLoop(client)
}

// writeLoop pushes queued frames to the client.
func (h *streamHub) writeLoop(client *streamClient) {
	defer client.conn.Close()

	for data := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}

	// Hub shut down; tell the client before closing.
	client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	client.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
}

// readLoop consumes (and discards) client frames so pings are answered,
// and unregisters the client when the connection drops.
func (h *streamHub) readLoop(client *streamClient) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[client]; ok {
			close(client.send)
			delete(h.clients, client)
		}
		count := len(h.clients)
		h.mu.Unlock()

		client.conn.Close()
		h.logger.Debug().Int("clients", count).Msg("overlay client disconnected")
	}()

	client.conn.SetReadLimit(1024)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
