package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// RoomStore manages bookmarked rooms in SQLite. Bookmarks survive
// restarts so the CLI can offer a quick room switch list.
type RoomStore struct {
	db *Database
}

// Room is a bookmarked live room with the last state observed there.
type Room struct {
	RoomID         int64     `json:"room_id"`
	Alias          string    `json:"alias"`
	LastPopularity uint32    `json:"last_popularity"`
	LastSeen       time.Time `json:"last_seen"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewRoomStore opens the room store at the given path and runs migrations.
func NewRoomStore(dbPath string) (*RoomStore, error) {
	database, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}

	store := &RoomStore{db: database}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate room store: %w", err)
	}

	return store, nil
}

func (s *RoomStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS rooms (
			room_id INTEGER PRIMARY KEY,
			alias TEXT NOT NULL DEFAULT '',
			last_popularity INTEGER NOT NULL DEFAULT 0,
			last_seen DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_rooms_last_seen ON rooms(last_seen);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	log.Debug().Msg("room store schema migrated")
	return nil
}

// Bookmark adds a room, or updates its alias if it is already bookmarked.
func (s *RoomStore) Bookmark(roomID int64, alias string) error {
	_, err := s.db.Exec(`
		INSERT INTO rooms (room_id, alias) VALUES (?, ?)
		ON CONFLICT(room_id) DO UPDATE SET alias = excluded.alias
	`, roomID, alias)
	if err != nil {
		return fmt.Errorf("failed to bookmark room %d: %w", roomID, err)
	}

	log.Info().Int64("room_id", roomID).Str("alias", alias).Msg("room bookmarked")
	return nil
}

// Remove deletes a bookmarked room.
func (s *RoomStore) Remove(roomID int64) error {
	res, err := s.db.Exec("DELETE FROM rooms WHERE room_id = ?", roomID)
	if err != nil {
		return fmt.Errorf("failed to remove room %d: %w", roomID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("room %d is not bookmarked", roomID)
	}
	return nil
}

// TouchSeen records that a room was visited, with the popularity last
// observed there. The room must already be bookmarked; otherwise this
// is a no-op.
func (s *RoomStore) TouchSeen(roomID int64, popularity uint32) error {
	_, err := s.db.Exec(`
		UPDATE rooms SET last_popularity = ?, last_seen = CURRENT_TIMESTAMP
		WHERE room_id = ?
	`, popularity, roomID)
	return err
}

// List returns all bookmarked rooms, most recently seen first.
func (s *RoomStore) List() ([]Room, error) {
	rows, err := s.db.Query(`
		SELECT room_id, alias, last_popularity, last_seen, created_at
		FROM rooms
		ORDER BY last_seen DESC NULLS LAST, created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var r Room
		var lastSeen sql.NullTime
		if err := rows.Scan(&r.RoomID, &r.Alias, &r.LastPopularity, &lastSeen, &r.CreatedAt); err != nil {
			continue
		}
		if lastSeen.Valid {
			r.LastSeen = lastSeen.Time
		}
		rooms = append(rooms, r)
	}

	return rooms, rows.Err()
}

// Get returns a single bookmarked room, or sql.ErrNoRows if absent.
func (s *RoomStore) Get(roomID int64) (*Room, error) {
	var r Room
	var lastSeen sql.NullTime
	err := s.db.QueryRow(`
		SELECT room_id, alias, last_popularity, last_seen, created_at
		FROM rooms WHERE room_id = ?
	`, roomID).Scan(&r.RoomID, &r.Alias, &r.LastPopularity, &lastSeen, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		r.LastSeen = lastSeen.Time
	}
	return &r, nil
}

// Close closes the underlying database.
func (s *RoomStore) Close() error {
	return s.db.Close()
}
