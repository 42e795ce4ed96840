package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/lantern-live/lantern/internal/config"
	"github.com/lantern-live/lantern/internal/db"
	"github.com/lantern-live/lantern/internal/events"
	"github.com/lantern-live/lantern/internal/live"
	intnet "github.com/lantern-live/lantern/internal/network"
	"github.com/lantern-live/lantern/internal/util"
	"github.com/lantern-live/lantern/internal/window"
)

// SessionProvider exposes the currently active live session. The app
// replaces sessions across reconnects, so the server always asks.
type SessionProvider interface {
	Current() *live.Session
}

// Server is the local HTTP API for overlays and status consumers.
type Server struct {
	cfg      *config.Config
	eventBus *events.EventBus
	sessions SessionProvider
	recent   *window.RecentWindow
	rooms    *db.RoomStore

	httpServer *http.Server
	router     *gin.Engine
	stream     *streamHub
	startTime  time.Time
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, eventBus *events.EventBus, sessions SessionProvider,
	recent *window.RecentWindow, rooms *db.RoomStore) *Server {

	if cfg.GetApplicationData().Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Server{
		cfg:       cfg,
		eventBus:  eventBus,
		sessions:  sessions,
		recent:    recent,
		rooms:     rooms,
		stream:    newStreamHub(eventBus),
		startTime: time.Now(),
	}
}

// Start runs the API server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.router = s.buildRouter()
	s.stream.start()
	defer s.stream.stop()

	addr := fmt.Sprintf(":%d", s.cfg.GetApplicationData().API.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// SO_REUSEADDR allows immediate rebinding after a restart.
	lc := intnet.ReuseAddrListenConfig()
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("API server error: %w", err)
	}

	log.Info().Str("addr", addr).Msg("local API server starting")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server error: %w", err)
	}

	return nil
}

// buildRouter creates the Gin router with all routes and middleware.
func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(SecurityHeaders())

	allowedOrigins := s.cfg.GetApplicationData().API.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Must be false when AllowOrigins is "*"
		MaxAge:           12 * time.Hour,
	}))

	router.Use(NewRateLimiter(50).Middleware())

	api := router.Group("/api")
	{
		api.GET("/healthz", s.handleHealthz)
		api.GET("/status", s.handleStatus)
		api.GET("/recent", s.handleRecent)

		api.GET("/rooms", s.handleListRooms)
		api.POST("/rooms", s.handleBookmarkRoom)
		api.DELETE("/rooms/:room_id", s.handleRemoveRoom)

		api.GET("/config", s.handleGetConfig)
	}

	// WebSocket event stream for overlays.
	router.GET("/ws", s.stream.handleWS)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	return router
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	status := gin.H{
		"uptime_sec": int64(time.Since(s.startTime).Seconds()),
		"system":     util.GetSystemInfo(),
		"process":    util.GetProcessStats(),
		"session":    nil,
	}

	if sess := s.sessions.Current(); sess != nil {
		stats := sess.Stats()
		status["session"] = gin.H{
			"room_id":        sess.RoomID(),
			"state":          sess.State().String(),
			"popularity":     stats.Popularity,
			"events_seen":    stats.EventsSeen,
			"events_dropped": stats.EventsDropped,
		}
	}

	c.JSON(http.StatusOK, status)
}

func (s *Server) handleRecent(c *gin.Context) {
	entries := s.recent.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"count":   len(entries),
		"entries": entries,
	})
}

func (s *Server) handleListRooms(c *gin.Context) {
	rooms, err := s.rooms.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (s *Server) handleBookmarkRoom(c *gin.Context) {
	var req struct {
		RoomID int64  `json:"room_id" binding:"required"`
		Alias  string `json:"alias"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room_id is required"})
		return
	}

	if err := s.rooms.Bookmark(req.RoomID, req.Alias); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "bookmarked"})
}

func (s *Server) handleRemoveRoom(c *gin.Context) {
	var roomID int64
	if _, err := fmt.Sscanf(c.Param("room_id"), "%d", &roomID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	if err := s.rooms.Remove(roomID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (s *Server) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"live_data": s.cfg.GetLiveData(),
		"window":    s.cfg.GetApplicationData().Window,
	})
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
