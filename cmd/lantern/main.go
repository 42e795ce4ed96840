// Lantern - live-room chat monitor for the terminal.
//
// Lantern joins a live room over WebSocket, decodes the binary danmu
// protocol into typed events, and fans them out to the terminal feed,
// a local overlay API, and optional MQTT telemetry.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lantern-live/lantern/internal/api"
	"github.com/lantern-live/lantern/internal/cli"
	"github.com/lantern-live/lantern/internal/config"
	"github.com/lantern-live/lantern/internal/connector"
	"github.com/lantern-live/lantern/internal/db"
	"github.com/lantern-live/lantern/internal/events"
	"github.com/lantern-live/lantern/internal/live"
	"github.com/lantern-live/lantern/internal/scheduler"
	"github.com/lantern-live/lantern/internal/telemetry"
	"github.com/lantern-live/lantern/internal/util"
	"github.com/lantern-live/lantern/internal/window"
)

const (
	AppName    = "Lantern"
	AppVersion = "1.0.0"
	Banner     = `
  _                _
 | |    __ _ _ __ | |_ ___ _ __ _ __
 | |   / _' | '_ \| __/ _ \ '__| '_ \
 | |__| (_| | | | | ||  __/ |  | | | |
 |_____\__,_|_| |_|\__\___|_|  |_| |_|  v%s
 Live-room chat monitor
`
)

// sessionHolder tracks the active live session across reconnects.
type sessionHolder struct {
	mu sync.RWMutex
	s  *live.Session
}

func (h *sessionHolder) Current() *live.Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.s
}

func (h *sessionHolder) set(s *live.Session) {
	h.mu.Lock()
	h.s = s
	h.mu.Unlock()
}

func main() {
	fmt.Printf(Banner, AppVersion)
	fmt.Println()

	// Defaults first; reconfigured once the config file is loaded.
	if err := util.InitLogger(util.DefaultLogConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info().
		Str("version", AppVersion).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Msg("starting Lantern")

	cfg, err := config.Load(config.DefaultConfigDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appData := cfg.GetApplicationData()
	logCfg := util.LogConfig{
		Level:      appData.Logging.Level,
		Directory:  appData.Logging.Directory,
		MaxBackups: appData.Logging.MaxBackups,
		Console:    true,
	}
	if err := util.InitLogger(logCfg); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}

	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}

		if cfg.IsFirstRun() {
			log.Info().Msg("first run detected, launching setup wizard")
			if err := config.RunSetupWizard(cfg); err != nil {
				log.Fatal().Err(err).Msg("setup wizard failed")
			}
			appData = cfg.GetApplicationData()
		} else {
			log.Fatal().Msg("configuration validation failed, please fix the errors above")
		}
	}

	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Str("cpu", sysInfo.CPUModel).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("system information")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core components
	eventBus := events.NewEventBus()
	holder := &sessionHolder{}
	recent := window.New(appData.Window.Size)

	rooms, err := db.NewRoomStore(appData.Bookmarks.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open bookmarks store")
	}
	defer rooms.Close()

	gateway := connector.NewGatewayClient(cfg.GetLiveData().GatewayURL)
	connector.NewWebhookNotifier(cfg, eventBus)

	apiServer := api.NewServer(cfg, eventBus, holder, recent, rooms)

	var mqttHandler *telemetry.MQTTHandler
	if appData.MQTT.Enabled {
		mqttHandler, err = telemetry.NewMQTTHandler(cfg, eventBus)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		}
	}

	sched := scheduler.NewScheduler(cfg, eventBus, holder, rooms)
	cliHandler := cli.NewCLI(cfg, eventBus, holder, rooms, recent)

	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	// Task 1: live session loop (connect, pump, reconnect)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runLiveLoop(ctx, cfg, gateway, holder, eventBus, recent); err != nil {
			errCh <- fmt.Errorf("live session: %w", err)
		}
	}()

	// Task 2: local API server
	if appData.API.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Int("port", appData.API.Port).Msg("starting local API server")
			if err := apiServer.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("API server failed (non-fatal)")
			}
		}()
	}

	// Task 3: MQTT telemetry
	if mqttHandler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Msg("starting MQTT telemetry")
			if err := mqttHandler.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT telemetry failed")
			}
		}()
	}

	// Task 4: scheduler (status snapshots)
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting task scheduler")
		sched.Start(ctx)
	}()

	// Task 5: interactive CLI
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting interactive CLI")
		cliHandler.Start(ctx)
	}()

	// The CLI's quit command emits a shutdown event; translate it into
	// the same path as a signal.
	shutdownCh := make(chan struct{}, 1)
	eventBus.Subscribe(events.EventShutdown, "main.shutdown", func(ctx context.Context, ev events.Event) error {
		select {
		case shutdownCh <- struct{}{}:
		default:
		}
		return nil
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-shutdownCh:
		log.Info().Msg("shutdown requested")
	case err := <-errCh:
		log.Error().Err(err).Msg("critical error, initiating shutdown")
	}

	log.Info().Msg("initiating graceful shutdown...")
	cancel()

	if sess := holder.Current(); sess != nil {
		sess.Disconnect()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(30 * time.Second):
		log.Warn().Msg("shutdown timed out after 30 seconds, forcing exit")
	}

	eventBus.Stop()

	if mqttHandler != nil {
		mqttHandler.PublishShutdown()
	}

	log.Info().Msg("Lantern stopped")
}

// runLiveLoop resolves the configured room, connects, and pumps session
// events onto the bus. Sessions never reconnect themselves; when one
// ends and auto reconnect is on, this loop opens a fresh one.
func runLiveLoop(ctx context.Context, cfg *config.Config, gateway *connector.GatewayClient,
	holder *sessionHolder, eventBus *events.EventBus, recent *window.RecentWindow) error {

	for {
		liveData := cfg.GetLiveData()

		sess, host, err := openSession(ctx, gateway, liveData)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !liveData.AutoReconnect {
				return err
			}
			log.Warn().Err(err).Msg("session setup failed, will retry")
		} else {
			holder.set(sess)
			eventBus.Emit(ctx, events.Event{
				Type:   events.EventSessionOpen,
				Source: "live",
				Payload: events.SessionOpenPayload{
					RoomID: sess.RoomID(),
					UID:    liveData.UID,
					Host:   host,
				},
			})

			pumpSession(ctx, sess, eventBus, recent)

			reason := sess.CloseReason()
			eventBus.Emit(ctx, events.Event{
				Type:   events.EventSessionClosed,
				Source: "live",
				Payload: events.SessionClosedPayload{
					RoomID: sess.RoomID(),
					Reason: reason,
				},
			})

			if ctx.Err() != nil {
				return nil
			}
			if !liveData.AutoReconnect {
				log.Info().Str("reason", reason).Msg("session ended, auto reconnect disabled")
				return nil
			}
			log.Info().Str("reason", reason).Msg("session ended, reconnecting")
		}

		delay := time.Duration(liveData.ReconnectDelaySec) * time.Second
		if delay < time.Second {
			delay = time.Second
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// openSession resolves the room and dials the first danmu host.
func openSession(ctx context.Context, gateway *connector.GatewayClient,
	liveData config.LiveData) (*live.Session, string, error) {

	roomInfo, err := gateway.GetRoomInfo(ctx, liveData.RoomID)
	if err != nil {
		return nil, "", err
	}
	if roomInfo.LiveStatus != 1 {
		log.Warn().Int64("room_id", roomInfo.RoomID).Msg("room is not live; joining anyway")
	}

	danmuInfo, err := gateway.GetDanmuInfo(ctx, roomInfo.RoomID)
	if err != nil {
		return nil, "", err
	}

	sess, err := live.Connect(ctx, roomInfo.RoomID, liveData.UID, *danmuInfo)
	if err != nil {
		return nil, "", err
	}

	host := ""
	if len(danmuInfo.Hosts) > 0 {
		host = danmuInfo.Hosts[0].Host
	}
	return sess, host, nil
}

// pumpSession drains the session queue onto the event bus and the
// recent-event window until the session terminates.
func pumpSession(ctx context.Context, sess *live.Session, eventBus *events.EventBus,
	recent *window.RecentWindow) {

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	drain := func() {
		for {
			ev, ok := sess.TryReceive()
			if !ok {
				return
			}
			if reply, ok := ev.Payload.(events.AuthReplyPayload); ok && reply.Code != 0 {
				log.Warn().Int("code", reply.Code).Msg("room rejected the join handshake")
			}
			recent.Push(ev)
			eventBus.Emit(ctx, ev)
		}
	}

	for {
		select {
		case <-ctx.Done():
			sess.Disconnect()
			<-sess.Done()
			drain()
			return
		case <-sess.Done():
			drain()
			return
		case <-ticker.C:
			drain()
		}
	}
}
