package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dkeye/Watch/internal/core"
	"github.com/dkeye/Watch/internal/domain"
)

// SendMessage validates and fans a chat message out to the whole room,
// sender included, with a server-assigned timestamp. Durability is
// independent of delivery: the append happens after the broadcast and a
// store failure is only logged.
func (c *Coordinator) SendMessage(sid core.SessionID, roomID domain.RoomID, text string) error {
	sess, err := c.roomOf(sid, roomID)
	if err != nil {
		return err
	}
	user, ok := c.Registry.UserOf(sid)
	if !ok {
		return fmt.Errorf("chat: %w", domain.ErrNotAuthorized)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("chat: %w", domain.ErrEmptyMessage)
	}
	if !sess.Room().Settings.AllowChat {
		return fmt.Errorf("chat: %w", domain.ErrChatDisabled)
	}

	ts := time.Now()
	c.broadcast(sess, "", NewChatMessageEvent(user, text, ts))
	c.persist("chat", func(ctx context.Context) error {
		return c.Store.AppendMessage(ctx, roomID, user.ID, text, ts)
	})
	return nil
}

// AddPlaylistItem appends to the room's queue and broadcasts the new
// playlist. Any member may add; the submitter is recorded for removal
// authorization later.
func (c *Coordinator) AddPlaylistItem(sid core.SessionID, roomID domain.RoomID, item domain.PlaylistItem) error {
	sess, err := c.roomOf(sid, roomID)
	if err != nil {
		return err
	}
	user, ok := c.Registry.UserOf(sid)
	if !ok {
		return fmt.Errorf("playlist add: %w", domain.ErrNotAuthorized)
	}
	if !item.Valid() {
		return fmt.Errorf("playlist add: %w", domain.ErrInvalidItem)
	}

	item.AddedBy = user.ID
	item.AddedAt = time.Now()
	items := sess.AppendPlaylist(item)

	c.broadcast(sess, "", NewPlaylistUpdateEvent(items))
	c.persist("playlist-add", func(ctx context.Context) error {
		return c.Store.SavePlaylist(ctx, roomID, items)
	})
	return nil
}

// RemovePlaylistItem removes one entry by index. Only the room host or the
// entry's original submitter may remove it; an out-of-range index fails
// without mutating anything.
func (c *Coordinator) RemovePlaylistItem(sid core.SessionID, roomID domain.RoomID, index int) error {
	sess, err := c.roomOf(sid, roomID)
	if err != nil {
		return err
	}
	user, ok := c.Registry.UserOf(sid)
	if !ok {
		return fmt.Errorf("playlist remove: %w", domain.ErrNotAuthorized)
	}

	isHost := sess.IsHost(sid)
	items, err := sess.RemovePlaylistAt(index, func(item domain.PlaylistItem) bool {
		return isHost || item.AddedBy == user.ID
	})
	if err != nil {
		return fmt.Errorf("playlist remove: %w", err)
	}

	c.broadcast(sess, "", NewPlaylistUpdateEvent(items))
	c.persist("playlist-remove", func(ctx context.Context) error {
		return c.Store.SavePlaylist(ctx, roomID, items)
	})
	return nil
}
