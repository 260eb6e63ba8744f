package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/Watch/internal/core"
	"github.com/dkeye/Watch/internal/domain"
	"github.com/rs/zerolog/log"
)

// ReportState records a host playback sample. Only the flagged host of the
// room may report; anyone else gets ErrNotAuthorized and nothing is
// broadcast. The sample reaches guests on the next tick.
func (c *Coordinator) ReportState(sid core.SessionID, roomID domain.RoomID, position float64, playing bool) error {
	sess, err := c.roomOf(sid, roomID)
	if err != nil {
		return err
	}
	if !sess.IsHost(sid) {
		return fmt.Errorf("report state: %w", domain.ErrNotAuthorized)
	}
	sess.SetSample(domain.PlaybackSample{
		Position:  position,
		Playing:   playing,
		SampledAt: time.Now(),
	})
	return nil
}

// PauseAll freezes the room at the host's last reported position and
// broadcasts immediately, out of band from the periodic tick.
func (c *Coordinator) PauseAll(sid core.SessionID, roomID domain.RoomID) error {
	sess, err := c.roomOf(sid, roomID)
	if err != nil {
		return err
	}
	if !sess.IsHost(sid) {
		return fmt.Errorf("pause all: %w", domain.ErrNotAuthorized)
	}
	sample := sess.Pause()
	c.broadcast(sess, "", NewPauseAllEvent(sample.Position))
	return nil
}

// ChangeSource swaps what the room is watching and restarts playback from
// zero. Host only. The change lands in the room's watch history.
func (c *Coordinator) ChangeSource(sid core.SessionID, roomID domain.RoomID, src domain.MediaSource) error {
	sess, err := c.roomOf(sid, roomID)
	if err != nil {
		return err
	}
	if !sess.IsHost(sid) {
		return fmt.Errorf("change source: %w", domain.ErrNotAuthorized)
	}
	if src.URL == "" {
		return fmt.Errorf("change source: %w", domain.ErrInvalidItem)
	}

	now := time.Now()
	sess.SetSource(src, domain.PlaybackSample{Position: 0, Playing: true, SampledAt: now})
	log.Info().Str("module", "app.playback").Str("room", string(roomID)).Str("source", src.URL).Msg("source changed")

	c.broadcast(sess, "", NewVideoSourceChangedEvent(src))
	c.persist("history", func(ctx context.Context) error {
		return c.Store.AddHistory(ctx, roomID, src, now)
	})
	return nil
}

// PlayNext dequeues the playlist head and makes it the current source in
// one atomic room operation. Host only; an empty playlist is reported to
// the caller and changes nothing.
func (c *Coordinator) PlayNext(sid core.SessionID, roomID domain.RoomID) error {
	sess, err := c.roomOf(sid, roomID)
	if err != nil {
		return err
	}
	if !sess.IsHost(sid) {
		return fmt.Errorf("play next: %w", domain.ErrNotAuthorized)
	}

	now := time.Now()
	head, rest, err := sess.PopPlaylistHead(domain.PlaybackSample{Position: 0, Playing: true, SampledAt: now})
	if err != nil {
		return fmt.Errorf("play next: %w", err)
	}
	src := head.Source()
	log.Info().Str("module", "app.playback").Str("room", string(roomID)).Str("source", src.URL).Msg("playing next")

	c.broadcast(sess, "", NewVideoSourceChangedEvent(src))
	c.broadcast(sess, "", NewPlaylistUpdateEvent(rest))
	c.persist("play-next", func(ctx context.Context) error {
		if err := c.Store.SavePlaylist(ctx, roomID, rest); err != nil {
			return err
		}
		return c.Store.AddHistory(ctx, roomID, src, now)
	})
	return nil
}

// Run drives the playback broadcast loop until ctx is cancelled. Each tick
// re-emits the latest host sample of every room that has one to that
// room's guests. Rooms are independent; a slow member in one room only
// troubles that room's policy, and emptied rooms left the session set at
// leave time so they cost nothing here.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.Sync.TickInterval)
	defer ticker.Stop()
	log.Info().Str("module", "app.playback").Dur("interval", c.Sync.TickInterval).Msg("broadcast loop started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.playback").Msg("broadcast loop stopped")
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *Coordinator) tick() {
	for _, sess := range c.Sessions.Snapshot() {
		if sess.Host() == "" {
			continue
		}
		sample := sess.Sample()
		if sample == nil {
			continue
		}
		frame, ok := encode(NewLiveStateEvent(*sample))
		if !ok {
			continue
		}
		c.applyPolicy(sess, sess.BroadcastExceptHost(frame))
	}
}
