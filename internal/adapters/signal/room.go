package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/Watch/internal/app"
	"github.com/dkeye/Watch/internal/core"
	"github.com/dkeye/Watch/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *Controller) handleJoinRoom(ctx context.Context, sid core.SessionID, c *WsConn, data []byte) {
	var p struct {
		Type   string `json:"type"`
		RoomID string `json:"roomId"`
		AsHost bool   `json:"asHost"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("bad join payload")
		ctl.sendError(c, domain.ErrInvalidItem)
		return
	}

	snap, err := ctl.Coord.Join(ctx, sid, domain.RoomID(p.RoomID), p.AsHost)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomID).Msg("join failed")
		ctl.sendError(c, err)
		return
	}

	// Full state in one frame, then the peer bootstrap list so the client
	// can dial everyone already in the call.
	ctl.sendJSON(c, app.NewRoomStateEvent(snap))
	ctl.sendJSON(c, app.NewExistingPeersEvent(snap.Callers))
}

func (ctl *Controller) handleLeaveRoom(sid core.SessionID, c *WsConn) {
	ctl.Coord.Leave(sid)
	ctl.sendJSON(c, map[string]string{"type": "left"})
}
