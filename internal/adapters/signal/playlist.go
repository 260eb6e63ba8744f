package signal

import (
	"encoding/json"

	"github.com/dkeye/Watch/internal/core"
	"github.com/dkeye/Watch/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *Controller) handleAddToPlaylist(sid core.SessionID, c *WsConn, data []byte) {
	var p struct {
		Type         string  `json:"type"`
		RoomID       string  `json:"roomId"`
		Title        string  `json:"title"`
		URL          string  `json:"url"`
		Duration     float64 `json:"duration"`
		ThumbnailURL string  `json:"thumbnailUrl"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad add-to-playlist payload")
		return
	}
	item := domain.PlaylistItem{
		Title:        p.Title,
		URL:          p.URL,
		Duration:     p.Duration,
		ThumbnailURL: p.ThumbnailURL,
	}
	if err := ctl.Coord.AddPlaylistItem(sid, domain.RoomID(p.RoomID), item); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleRemoveFromPlaylist(sid core.SessionID, c *WsConn, data []byte) {
	var p struct {
		Type   string `json:"type"`
		RoomID string `json:"roomId"`
		Index  int    `json:"index"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad remove-from-playlist payload")
		return
	}
	if err := ctl.Coord.RemovePlaylistItem(sid, domain.RoomID(p.RoomID), p.Index); err != nil {
		ctl.sendError(c, err)
	}
}
