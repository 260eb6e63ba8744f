package signal

import (
	"encoding/json"

	"github.com/dkeye/Watch/internal/core"
	"github.com/dkeye/Watch/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *Controller) handleHostState(sid core.SessionID, c *WsConn, data []byte) {
	var p struct {
		Type     string  `json:"type"`
		RoomID   string  `json:"roomId"`
		Position float64 `json:"time"`
		Playing  bool    `json:"playing"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad host-state payload")
		return
	}
	if err := ctl.Coord.ReportState(sid, domain.RoomID(p.RoomID), p.Position, p.Playing); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handlePauseAll(sid core.SessionID, c *WsConn, data []byte) {
	var p struct {
		Type   string `json:"type"`
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad pause-all payload")
		return
	}
	if err := ctl.Coord.PauseAll(sid, domain.RoomID(p.RoomID)); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleChangeSource(sid core.SessionID, c *WsConn, data []byte) {
	var p struct {
		Type     string               `json:"type"`
		RoomID   string               `json:"roomId"`
		Source   string               `json:"source"`
		Metadata domain.MovieMetadata `json:"metadata"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad change-source payload")
		return
	}
	src := domain.MediaSource{URL: p.Source, Metadata: p.Metadata}
	if err := ctl.Coord.ChangeSource(sid, domain.RoomID(p.RoomID), src); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handlePlayNext(sid core.SessionID, c *WsConn, data []byte) {
	var p struct {
		Type   string `json:"type"`
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad play-next payload")
		return
	}
	if err := ctl.Coord.PlayNext(sid, domain.RoomID(p.RoomID)); err != nil {
		ctl.sendError(c, err)
	}
}
