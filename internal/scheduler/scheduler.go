// Package scheduler implements background tasks for Lantern: periodic
// status snapshots and bookmark last-seen updates.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lantern-live/lantern/internal/config"
	"github.com/lantern-live/lantern/internal/db"
	"github.com/lantern-live/lantern/internal/events"
	"github.com/lantern-live/lantern/internal/live"
	"github.com/lantern-live/lantern/internal/util"
)

// SessionProvider exposes the currently active live session.
type SessionProvider interface {
	Current() *live.Session
}

// Scheduler manages periodic background tasks.
type Scheduler struct {
	cfg      *config.Config
	eventBus *events.EventBus
	sessions SessionProvider
	rooms    *db.RoomStore

	startTime time.Time
}

// NewScheduler creates a new task scheduler. The room store may be nil
// when bookmarks are unavailable.
func NewScheduler(cfg *config.Config, eventBus *events.EventBus, sessions SessionProvider, rooms *db.RoomStore) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		eventBus:  eventBus,
		sessions:  sessions,
		rooms:     rooms,
		startTime: time.Now(),
	}
}

// Start begins running scheduled tasks and blocks until the context is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	log.Info().Msg("scheduler started")

	go s.runSnapshotLoop(ctx)

	<-ctx.Done()
	log.Info().Msg("scheduler stopped")
}

// runSnapshotLoop emits a status snapshot at the configured interval.
func (s *Scheduler) runSnapshotLoop(ctx context.Context) {
	interval := time.Duration(s.cfg.GetApplicationData().Timers.SnapshotInterval) * time.Second
	if interval < time.Second {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.emitSnapshot(ctx)
		}
	}
}

// emitSnapshot gathers session and process state into one snapshot event.
func (s *Scheduler) emitSnapshot(ctx context.Context) {
	procStats := util.GetProcessStats()

	snapshot := events.StatusSnapshotPayload{
		UptimeSec:  int64(time.Since(s.startTime).Seconds()),
		CPUPercent: procStats.CPUPercent,
		MemoryMB:   procStats.MemoryMB,
	}

	if sess := s.sessions.Current(); sess != nil {
		stats := sess.Stats()
		snapshot.RoomID = sess.RoomID()
		snapshot.SessionState = sess.State().String()
		snapshot.Popularity = stats.Popularity
		snapshot.EventsSeen = stats.EventsSeen
		snapshot.EventsDropped = stats.EventsDropped

		// Keep the bookmark's last-seen state fresh while we're in the room.
		if s.rooms != nil && sess.State() == live.StateOpen {
			if err := s.rooms.TouchSeen(sess.RoomID(), stats.Popularity); err != nil {
				log.Debug().Err(err).Int64("room_id", sess.RoomID()).Msg("bookmark touch failed")
			}
		}
	}

	log.Debug().
		Int64("room_id", snapshot.RoomID).
		Str("state", snapshot.SessionState).
		Uint32("popularity", snapshot.Popularity).
		Msg("status snapshot")

	s.eventBus.Emit(ctx, events.Event{
		Type:    events.EventStatusSnapshot,
		Source:  "scheduler",
		Payload: snapshot,
	})
}
