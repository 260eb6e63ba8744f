package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/Watch/internal/domain"
)

func (s *Store) AppendMessage(ctx context.Context, id domain.RoomID, user domain.UserID, text string, ts time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (room_id, user_id, text, sent_at) VALUES (?, ?, ?, ?)`,
		string(id), string(user), text, ts.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// StoredMessage is one chat-history row served by the REST API.
type StoredMessage struct {
	UserID domain.UserID `json:"userId"`
	Text   string        `json:"text"`
	SentAt time.Time     `json:"timestamp"`
}

// RecentMessages returns up to limit messages, oldest first.
func (s *Store) RecentMessages(ctx context.Context, id domain.RoomID, limit int) ([]StoredMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, text, sent_at FROM (
			SELECT id, user_id, text, sent_at FROM messages
			WHERE room_id = ? ORDER BY sent_at DESC, id DESC LIMIT ?
		) ORDER BY sent_at ASC, id ASC`,
		string(id), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	out := []StoredMessage{}
	for rows.Next() {
		var m StoredMessage
		if err := rows.Scan(&m.UserID, &m.Text, &m.SentAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
