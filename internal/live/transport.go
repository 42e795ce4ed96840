// Package live owns the lifecycle of one live-room chat connection: it
// authenticates the session, keeps the heartbeat running, and multiplexes
// inbound socket frames through the protocol codec into a bounded event
// queue the caller polls.
package live

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

const dialTimeout = 30 * time.Second

// Transport is a bidirectional byte-stream carrying whole binary frames.
// The session owns its transport exclusively; callers never touch it.
type Transport interface {
	// Send writes one outbound frame.
	Send(data []byte) error
	// Receive blocks until the next inbound frame, the peer closes, or
	// the transport errors.
	Receive() ([]byte, error)
	// Close tears the stream down. Safe to call concurrently with Receive.
	Close() error
}

// WSTransport implements Transport over a secure WebSocket.
type WSTransport struct {
	conn *websocket.Conn
}

// DialWS connects to a danmu endpoint URL (wss://host:port/sub).
func DialWS(ctx context.Context, url string) (*WSTransport, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return &WSTransport{conn: conn}, nil
}

// Send writes one binary WebSocket message.
func (t *WSTransport) Send(data []byte) error {
	return t.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Receive reads the next WebSocket message.
func (t *WSTransport) Receive() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

// Close closes the underlying connection, unblocking any pending Receive.
func (t *WSTransport) Close() error {
	return t.conn.Close()
}
