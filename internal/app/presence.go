package app

import (
	"context"
	"fmt"

	"github.com/dkeye/Watch/internal/core"
	"github.com/dkeye/Watch/internal/domain"
	"github.com/rs/zerolog/log"
)

// Join registers the connection in a room and returns the full state
// snapshot the client needs to synchronize. The room must exist in the
// store; the live session is rebuilt from the persisted document on the
// first join after eviction. A connection belongs to at most one room, so
// any previous membership is torn down first (with its own notifications).
func (c *Coordinator) Join(ctx context.Context, sid core.SessionID, roomID domain.RoomID, asHost bool) (core.RoomSnapshot, error) {
	user, ok := c.Registry.UserOf(sid)
	if !ok {
		return core.RoomSnapshot{}, fmt.Errorf("join: %w", domain.ErrNotAuthorized)
	}
	ms, ok := c.Registry.GetSession(sid)
	if !ok {
		return core.RoomSnapshot{}, fmt.Errorf("join: %w", domain.ErrNotAuthorized)
	}

	room, err := c.Store.GetRoom(ctx, roomID)
	if err != nil {
		return core.RoomSnapshot{}, fmt.Errorf("join %q: %w", roomID, err)
	}

	rejoin := false
	if cur, _, inRoom := c.Registry.RoomOf(sid); inRoom {
		if cur == roomID {
			rejoin = true
		} else {
			c.Leave(sid)
		}
	}

	// Loaded up front so the seed closure stays I/O-free inside the
	// session manager's critical section.
	src, err := c.Store.LoadSource(ctx, roomID)
	if err != nil {
		log.Error().Err(err).Str("module", "app.presence").Str("room", string(roomID)).Msg("load source")
	}
	items, err := c.Store.LoadPlaylist(ctx, roomID)
	if err != nil {
		log.Error().Err(err).Str("module", "app.presence").Str("room", string(roomID)).Msg("load playlist")
	}

	sess := c.Sessions.Enter(room, func(s *core.RoomSession) {
		s.Seed(src, items)
	}, sid, ms)
	c.Registry.UpdateRoom(sid, roomID)

	if asHost {
		if demoted := sess.SetHost(sid); demoted != "" {
			c.sendTo(demoted, NewHostChangedEvent(sid, false))
			log.Info().Str("module", "app.presence").Str("room", string(roomID)).
				Str("old", string(demoted)).Str("new", string(sid)).Msg("host demoted")
		}
	}

	log.Info().Str("module", "app.presence").Str("sid", string(sid)).
		Str("room", string(roomID)).Bool("host", asHost).Bool("rejoin", rejoin).Msg("joined room")

	// A rejoin changes nothing about membership; the room keeps its
	// count and the others saw this user join already.
	if !rejoin {
		c.broadcast(sess, sid, NewUserJoinedEvent(sid, user.Username))
		c.broadcast(sess, "", NewUserCountEvent(sess.MemberCount()))

		c.persist("join", func(ctx context.Context) error {
			if err := c.Store.AddParticipant(ctx, roomID, user.ID); err != nil {
				return err
			}
			return c.Store.SetRoomActive(ctx, roomID, true)
		})
	}

	snap := core.RoomSnapshot{
		RoomID:   roomID,
		Members:  sess.MembersSnapshot(),
		Count:    sess.MemberCount(),
		Source:   sess.Source(),
		Sample:   sess.Sample(),
		Playlist: sess.Playlist(),
		Callers:  sess.CallersSnapshot(sid),

		SyncIntervalMS: c.Sync.TickInterval.Milliseconds(),
		DriftThreshold: c.Sync.DriftThreshold,
	}
	return snap, nil
}

// Leave removes the connection from its current room, notifies the
// remaining members and evicts the session once the room is empty. It is
// best-effort cleanup and never fails outward.
func (c *Coordinator) Leave(sid core.SessionID) {
	roomID, _, ok := c.Registry.RoomOf(sid)
	if !ok {
		return
	}
	c.Registry.RemoveRoom(sid)

	sess, wasInCall, empty, ok := c.Sessions.Depart(roomID, sid)
	if !ok {
		return
	}
	log.Info().Str("module", "app.presence").Str("sid", string(sid)).Str("room", string(roomID)).Msg("left room")

	if empty {
		// Ephemeral state is gone with the session; the persisted
		// document stays authoritative for the next join.
		c.persist("room-idle", func(ctx context.Context) error {
			return c.Store.SetRoomActive(ctx, roomID, false)
		})
		return
	}

	if wasInCall {
		c.broadcast(sess, sid, PeerCallEvent{Type: "peer-ended-call", SID: sid})
	}
	c.broadcast(sess, sid, NewUserLeftEvent(sid))
	c.broadcast(sess, "", NewUserCountEvent(sess.MemberCount()))
}

// OnDisconnect is the transport-level teardown: equivalent to Leave plus
// stopping the connection's pumps and dropping the registry entry.
// Disconnect is terminal for a session id.
func (c *Coordinator) OnDisconnect(sid core.SessionID) {
	c.Leave(sid)
	c.Registry.Cancel(sid)
	c.Registry.Unbind(sid)
}
