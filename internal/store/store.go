// Package store persists rooms and their append-ordered event logs in
// SQLite through GORM.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a room lookup misses.
var ErrNotFound = errors.New("room not found")

// Room is a named drawing surface. The slug is the human-facing handle;
// the id is what the relay and the event log key on.
type Room struct {
	ID        string    `gorm:"primarykey;size:36" json:"id"`
	Slug      string    `gorm:"uniqueIndex;size:100;not null" json:"slug"`
	AdminID   string    `gorm:"size:36" json:"adminId"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName returns the table name for the Room model.
func (Room) TableName() string {
	return "rooms"
}

// Event is one accepted drawing message. The autoincrement id is the
// room-log position: replaying events ordered by id reproduces the board.
type Event struct {
	ID        int64     `gorm:"primarykey;autoIncrement" json:"id"`
	RoomID    string    `gorm:"index;size:36;not null" json:"roomId"`
	UserID    string    `gorm:"size:36;not null" json:"userId"`
	Payload   string    `gorm:"not null" json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName returns the table name for the Event model.
func (Event) TableName() string {
	return "events"
}

// Store wraps the database handle. Safe for concurrent use; GORM
// serializes access to the underlying SQLite connection.
type Store struct {
	db *gorm.DB
}

// Open connects to the SQLite database at path and runs migrations.
// Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&Room{}, &Event{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// EnsureRoom returns the room with the given slug, creating it first if it
// does not exist. The adminID is recorded only on creation.
func (s *Store) EnsureRoom(ctx context.Context, slug, adminID string) (*Room, error) {
	var room Room
	err := s.db.WithContext(ctx).First(&room, "slug = ?", slug).Error
	if err == nil {
		return &room, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to find room: %w", err)
	}
	room = Room{ID: uuid.NewString(), Slug: slug, AdminID: adminID}
	if err := s.db.WithContext(ctx).Create(&room).Error; err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	return &room, nil
}

// RoomBySlug retrieves a room by its slug.
func (s *Store) RoomBySlug(ctx context.Context, slug string) (*Room, error) {
	var room Room
	if err := s.db.WithContext(ctx).First(&room, "slug = ?", slug).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}
	return &room, nil
}

// RoomByID retrieves a room by its id.
func (s *Store) RoomByID(ctx context.Context, id string) (*Room, error) {
	var room Room
	if err := s.db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}
	return &room, nil
}

// DeleteRoom removes a room and every event logged against it.
func (s *Store) DeleteRoom(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&Event{}, "room_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete events: %w", err)
		}
		result := tx.Delete(&Room{}, "id = ?", id)
		if err := result.Error; err != nil {
			return fmt.Errorf("failed to delete room: %w", err)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ClearRoom deletes every event logged against a room but keeps the room
// itself, so collaborators can start over on a blank board.
func (s *Store) ClearRoom(ctx context.Context, roomID string) error {
	if err := s.db.WithContext(ctx).Delete(&Event{}, "room_id = ?", roomID).Error; err != nil {
		return fmt.Errorf("failed to clear room: %w", err)
	}
	return nil
}

// Append logs one accepted event against a room and returns its position.
// The room id is not validated here; an unknown room simply grows a log
// nobody replays.
func (s *Store) Append(ctx context.Context, roomID, userID string, payload []byte) (int64, error) {
	event := Event{RoomID: roomID, UserID: userID, Payload: string(payload)}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return 0, fmt.Errorf("failed to append event: %w", err)
	}
	return event.ID, nil
}

// History returns a room's events oldest first, ready for sequential
// replay. A positive limit returns only the most recent events, still
// ordered oldest first.
func (s *Store) History(ctx context.Context, roomID string, limit int) ([]Event, error) {
	var events []Event
	q := s.db.WithContext(ctx).Where("room_id = ?", roomID).Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}
