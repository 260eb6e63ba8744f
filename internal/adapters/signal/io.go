package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/Watch/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *Controller) writePump(ctx context.Context, c *WsConn) {
	pinger := time.NewTicker(ctl.PingPeriod)
	defer pinger.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pinger.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump is the connection's worker: every inbound command of this
// connection is handled here, in arrival order. Its exit is the one
// teardown path for the session.
func (ctl *Controller) readPump(ctx context.Context, sid core.SessionID, c *WsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Coord.OnDisconnect(sid)
		ctl.ChatLimit.Forget(sid)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				return
			}
			ctl.dispatch(ctx, sid, c, data)
		}
	}
}

func (ctl *Controller) dispatch(ctx context.Context, sid core.SessionID, c *WsConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "join-room":
		ctl.handleJoinRoom(ctx, sid, c, data)
	case "leave-room":
		ctl.handleLeaveRoom(sid, c)
	case "host-state":
		ctl.handleHostState(sid, c, data)
	case "pause-all":
		ctl.handlePauseAll(sid, c, data)
	case "change-video-source":
		ctl.handleChangeSource(sid, c, data)
	case "add-to-playlist":
		ctl.handleAddToPlaylist(sid, c, data)
	case "remove-from-playlist":
		ctl.handleRemoveFromPlaylist(sid, c, data)
	case "play-next-in-playlist":
		ctl.handlePlayNext(sid, c, data)
	case "chat-message":
		ctl.handleChatMessage(sid, c, data)
	case "offer", "answer", "ice-candidate":
		ctl.handleRelay(env.Type, sid, c, data)
	case "toggle-media":
		ctl.handleToggleMedia(sid, c, data)
	case "start-call":
		ctl.handleStartCall(sid, c, data)
	case "end-call":
		ctl.handleEndCall(sid, c, data)
	case "toggle-screen-share":
		ctl.handleToggleScreenShare(sid, c, data)
	case "peer-state":
		ctl.handlePeerState(sid, c, data)
	case "ping":
		ctl.sendJSON(c, map[string]string{"type": "pong"})
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown command")
	}
}
