// Package connector implements outbound connectors: the REST gateway
// client used to resolve rooms and fetch danmu tokens, and the webhook
// notifier for session lifecycle events.
package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lantern-live/lantern/internal/live"
	"github.com/lantern-live/lantern/internal/util"
	"github.com/rs/zerolog"
)

const (
	roomInitPath  = "/room/v1/Room/room_init"
	danmuInfoPath = "/xlive/web-room/v1/index/getDanmuInfo"
	gatewayUA     = "Mozilla/5.0 (X11; Linux x86_64) lantern/1.0"
)

// RoomInfo is the resolved room record. RoomID is the canonical long id,
// which may differ from the short id the user typed.
type RoomInfo struct {
	RoomID     int64 `json:"room_id"`
	ShortID    int64 `json:"short_id"`
	UID        int64 `json:"uid"`
	LiveStatus int   `json:"live_status"`
}

// apiEnvelope is the common response wrapper of the gateway REST API.
type apiEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// GatewayClient talks to the upstream REST gateway over HTTPS.
type GatewayClient struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewGatewayClient creates a gateway client for the given base URL.
func NewGatewayClient(baseURL string) *GatewayClient {
	return &GatewayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		logger: util.ComponentLogger("gateway"),
	}
}

// GetRoomInfo resolves a room id (short or long) to the canonical room record.
func (g *GatewayClient) GetRoomInfo(ctx context.Context, roomID int64) (*RoomInfo, error) {
	var info RoomInfo
	url := fmt.Sprintf("%s%s?id=%d", g.baseURL, roomInitPath, roomID)
	if err := g.get(ctx, url, &info); err != nil {
		return nil, fmt.Errorf("failed to resolve room %d: %w", roomID, err)
	}

	g.logger.Debug().
		Int64("requested", roomID).
		Int64("room_id", info.RoomID).
		Int("live_status", info.LiveStatus).
		Msg("room resolved")

	return &info, nil
}

// GetDanmuInfo fetches the danmu token and host list for a room. The
// room id must be the canonical long id from GetRoomInfo.
func (g *GatewayClient) GetDanmuInfo(ctx context.Context, roomID int64) (*live.DanmuInfo, error) {
	var info live.DanmuInfo
	url := fmt.Sprintf("%s%s?id=%d&type=0", g.baseURL, danmuInfoPath, roomID)
	if err := g.get(ctx, url, &info); err != nil {
		return nil, fmt.Errorf("failed to fetch danmu info for room %d: %w", roomID, err)
	}

	g.logger.Debug().
		Int64("room_id", roomID).
		Int("hosts", len(info.Hosts)).
		Msg("danmu info fetched")

	return &info, nil
}

// get performs a GET request and unmarshals the envelope's data field into out.
func (g *GatewayClient) get(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", gatewayUA)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(body))
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to parse gateway response: %w", err)
	}
	if envelope.Code != 0 {
		return fmt.Errorf("gateway error %d: %s", envelope.Code, envelope.Message)
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to parse gateway data: %w", err)
	}

	return nil
}
