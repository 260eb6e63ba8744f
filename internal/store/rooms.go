package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Watch/internal/domain"
	"github.com/google/uuid"
)

// CreateRoom inserts a new room document and returns it.
func (s *Store) CreateRoom(ctx context.Context, name domain.RoomName, createdBy domain.UserID, allowChat bool) (*domain.Room, error) {
	room := &domain.Room{
		ID:       domain.RoomID(uuid.NewString()),
		Name:     name,
		Settings: domain.RoomSettings{AllowChat: allowChat},
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (id, name, allow_chat, created_by, created_at) VALUES (?, ?, ?, ?, ?)`,
		string(room.ID), string(name), boolToInt(allowChat), string(createdBy), time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	return room, nil
}

func (s *Store) GetRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	var (
		room      domain.Room
		allowChat int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, allow_chat FROM rooms WHERE id = ?`, string(id),
	).Scan(&room.ID, &room.Name, &allowChat)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	room.Settings.AllowChat = allowChat != 0
	return &room, nil
}

// RoomListing is one row of the active-rooms API.
type RoomListing struct {
	ID         domain.RoomID   `json:"id"`
	Name       domain.RoomName `json:"name"`
	Active     bool            `json:"active"`
	LastActive *time.Time      `json:"lastActive,omitempty"`
}

func (s *Store) ListActiveRooms(ctx context.Context) ([]RoomListing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, active, last_active FROM rooms WHERE active = 1 ORDER BY last_active DESC`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	out := []RoomListing{}
	for rows.Next() {
		var (
			r      RoomListing
			active int
			last   sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.Name, &active, &last); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		r.Active = active != 0
		if last.Valid {
			t := last.Time
			r.LastActive = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) SetRoomActive(ctx context.Context, id domain.RoomID, active bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rooms SET active = ?, last_active = ? WHERE id = ?`,
		boolToInt(active), time.Now().UTC(), string(id),
	)
	if err != nil {
		return fmt.Errorf("set room active: %w", err)
	}
	return nil
}

func (s *Store) AddParticipant(ctx context.Context, id domain.RoomID, user domain.UserID) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO participants (room_id, user_id, joined_at) VALUES (?, ?, ?)`,
		string(id), string(user), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("add participant: %w", err)
	}
	return nil
}

// LoadSource returns the room's last persisted media source, or nil when
// the room has never played anything.
func (s *Store) LoadSource(ctx context.Context, id domain.RoomID) (*domain.MediaSource, error) {
	var src domain.MediaSource
	err := s.db.QueryRowContext(ctx,
		`SELECT source_url, source_title, source_duration, source_thumbnail FROM rooms WHERE id = ?`,
		string(id),
	).Scan(&src.URL, &src.Metadata.Title, &src.Metadata.Duration, &src.Metadata.ThumbnailURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load source: %w", err)
	}
	if src.URL == "" {
		return nil, nil
	}
	return &src, nil
}

// AddHistory records a source change: the room's current source is updated
// and a history row is appended, in one transaction.
func (s *Store) AddHistory(ctx context.Context, id domain.RoomID, src domain.MediaSource, ts time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("add history: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE rooms SET source_url = ?, source_title = ?, source_duration = ?, source_thumbnail = ? WHERE id = ?`,
		src.URL, src.Metadata.Title, src.Metadata.Duration, src.Metadata.ThumbnailURL, string(id),
	); err != nil {
		return fmt.Errorf("add history: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO history (room_id, url, title, played_at) VALUES (?, ?, ?, ?)`,
		string(id), src.URL, src.Metadata.Title, ts.UTC(),
	); err != nil {
		return fmt.Errorf("add history: %w", err)
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
