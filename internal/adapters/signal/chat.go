package signal

import (
	"encoding/json"

	"github.com/dkeye/Watch/internal/core"
	"github.com/dkeye/Watch/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *Controller) handleChatMessage(sid core.SessionID, c *WsConn, data []byte) {
	var p struct {
		Type    string `json:"type"`
		RoomID  string `json:"roomId"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad chat payload")
		return
	}
	if !ctl.ChatLimit.Allow(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("chat rate limit")
		ctl.sendError(c, domain.ErrRateLimited)
		return
	}
	if err := ctl.Coord.SendMessage(sid, domain.RoomID(p.RoomID), p.Message); err != nil {
		ctl.sendError(c, err)
	}
}
