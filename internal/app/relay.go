package app

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dkeye/Watch/internal/core"
	"github.com/dkeye/Watch/internal/domain"
	"github.com/rs/zerolog/log"
)

// Forward ships a signaling envelope (offer, answer or ice-candidate) to
// exactly one target connection, payload untouched. Delivery order between
// a fixed source and target is the source connection's own send order; the
// relay adds no queueing of its own. An unknown target is dropped and
// reported back to the source as a non-fatal warning.
func (c *Coordinator) Forward(kind string, from core.SessionID, target core.SessionID, payload json.RawMessage) error {
	ms, ok := c.Registry.GetSession(target)
	if !ok {
		log.Debug().Str("module", "app.relay").Str("kind", kind).
			Str("from", string(from)).Str("target", string(target)).Msg("target unreachable")
		return fmt.Errorf("forward %s: %w", kind, domain.ErrTargetUnreachable)
	}
	frame, ok := encode(NewSignalEvent(kind, from, payload))
	if !ok {
		return nil
	}
	if err := ms.Signal().TrySend(frame); err != nil {
		return fmt.Errorf("forward %s: %w", kind, domain.ErrTargetUnreachable)
	}
	return nil
}

// StartCall records the connection as an active call participant and tells
// the rest of the room to expect an offer from it. The participant starts
// in Negotiating; if it has not reported Connected before the negotiation
// deadline it is pushed to Reconnecting, and a second deadline closes it.
func (c *Coordinator) StartCall(sid core.SessionID, roomID domain.RoomID, screenSharing bool) error {
	sess, err := c.roomOf(sid, roomID)
	if err != nil {
		return err
	}
	user, ok := c.Registry.UserOf(sid)
	if !ok {
		return fmt.Errorf("start call: %w", domain.ErrNotAuthorized)
	}

	p := sess.StartCall(sid, user.Username, screenSharing, time.Now())
	log.Info().Str("module", "app.relay").Str("sid", string(sid)).Str("room", string(roomID)).
		Bool("screen", screenSharing).Msg("call started")

	c.broadcast(sess, sid, PeerCallEvent{
		Type:          "peer-started-call",
		SID:           sid,
		Username:      p.Username,
		ScreenSharing: p.ScreenSharing,
	})
	c.scheduleCallDeadlines(sess, sid)
	return nil
}

// scheduleCallDeadlines arms the timeout transitions of the call state
// machine. Each timer fires a conditional transition, so a participant
// that already moved on (reported Connected, ended the call, left the
// room) neutralizes the timer without any bookkeeping.
func (c *Coordinator) scheduleCallDeadlines(sess *core.RoomSession, sid core.SessionID) {
	d := c.Sync.NegotiationDeadline
	if d <= 0 {
		return
	}
	time.AfterFunc(d, func() {
		if !sess.SetCallState(sid, core.CallNegotiating, core.CallReconnecting) {
			return
		}
		log.Warn().Str("module", "app.relay").Str("sid", string(sid)).Msg("negotiation deadline, asking peers to re-offer")
		c.broadcast(sess, "", NewPeerStateEvent(sid, core.CallReconnecting))

		time.AfterFunc(d, func() {
			if !sess.SetCallState(sid, core.CallReconnecting, core.CallClosed) {
				return
			}
			sess.EndCall(sid)
			log.Warn().Str("module", "app.relay").Str("sid", string(sid)).Msg("reconnect deadline, closing call")
			c.broadcast(sess, sid, PeerCallEvent{Type: "peer-ended-call", SID: sid})
		})
	})
}

// ReportPeerState applies a client-reported lifecycle transition and lets
// the room know, so peers can degrade or renegotiate their media paths.
func (c *Coordinator) ReportPeerState(sid core.SessionID, roomID domain.RoomID, state core.CallState) error {
	switch state {
	case core.CallConnected, core.CallDegraded, core.CallReconnecting:
	default:
		return fmt.Errorf("peer state %q: %w", state, domain.ErrInvalidItem)
	}
	sess, err := c.roomOf(sid, roomID)
	if err != nil {
		return err
	}
	if !sess.SetCallState(sid, "", state) {
		return fmt.Errorf("peer state: %w", domain.ErrNotInRoom)
	}
	c.broadcast(sess, sid, NewPeerStateEvent(sid, state))
	return nil
}

// EndCall removes the participant record and notifies the room.
func (c *Coordinator) EndCall(sid core.SessionID, roomID domain.RoomID) error {
	sess, err := c.roomOf(sid, roomID)
	if err != nil {
		return err
	}
	if !sess.EndCall(sid) {
		return nil
	}
	log.Info().Str("module", "app.relay").Str("sid", string(sid)).Str("room", string(roomID)).Msg("call ended")
	c.broadcast(sess, sid, PeerCallEvent{Type: "peer-ended-call", SID: sid})
	return nil
}

// ToggleScreenShare flips the participant's screen-sharing flag. Receivers
// are expected to renegotiate on this event, which is why no dedicated
// signaling primitive exists for it.
func (c *Coordinator) ToggleScreenShare(sid core.SessionID, roomID domain.RoomID, on bool) error {
	sess, err := c.roomOf(sid, roomID)
	if err != nil {
		return err
	}
	if !sess.SetScreenSharing(sid, on) {
		return fmt.Errorf("toggle screen share: %w", domain.ErrNotInRoom)
	}
	user, _ := c.Registry.UserOf(sid)
	username := ""
	if user != nil {
		username = user.Username
	}
	c.broadcast(sess, sid, PeerCallEvent{
		Type:          "peer-toggle-screen-share",
		SID:           sid,
		Username:      username,
		ScreenSharing: on,
	})
	return nil
}

// ToggleMedia announces the sender's camera/mic flags to the whole room,
// sender included so its own UI can confirm.
func (c *Coordinator) ToggleMedia(sid core.SessionID, roomID domain.RoomID, cameraOn, micOn bool) error {
	sess, err := c.roomOf(sid, roomID)
	if err != nil {
		return err
	}
	c.broadcast(sess, "", NewMediaStatusEvent(sid, cameraOn, micOn))
	return nil
}
