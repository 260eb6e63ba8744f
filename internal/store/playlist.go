package store

import (
	"context"
	"fmt"

	"github.com/dkeye/Watch/internal/domain"
)

// SavePlaylist replaces the room's persisted playlist with the given
// ordering. The realtime layer owns the live queue; this is its durable
// mirror, written after every mutation.
func (s *Store) SavePlaylist(ctx context.Context, id domain.RoomID, items []domain.PlaylistItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save playlist: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_items WHERE room_id = ?`, string(id)); err != nil {
		return fmt.Errorf("save playlist: %w", err)
	}
	for pos, item := range items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO playlist_items (room_id, position, title, url, duration, thumbnail, added_by, added_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			string(id), pos, item.Title, item.URL, item.Duration, item.ThumbnailURL,
			string(item.AddedBy), item.AddedAt.UTC(),
		); err != nil {
			return fmt.Errorf("save playlist: %w", err)
		}
	}
	return tx.Commit()
}

// LoadPlaylist returns the persisted playlist in queue order.
func (s *Store) LoadPlaylist(ctx context.Context, id domain.RoomID) ([]domain.PlaylistItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT title, url, duration, thumbnail, added_by, added_at
		 FROM playlist_items WHERE room_id = ? ORDER BY position ASC`,
		string(id),
	)
	if err != nil {
		return nil, fmt.Errorf("load playlist: %w", err)
	}
	defer rows.Close()

	out := []domain.PlaylistItem{}
	for rows.Next() {
		var item domain.PlaylistItem
		if err := rows.Scan(&item.Title, &item.URL, &item.Duration, &item.ThumbnailURL, &item.AddedBy, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("scan playlist item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
