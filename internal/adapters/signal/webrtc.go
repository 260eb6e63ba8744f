package signal

import (
	"encoding/json"

	"github.com/dkeye/Watch/internal/core"
	"github.com/dkeye/Watch/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// iceServers is what joining peers are told to dial through. STUN only;
// rooms are small enough that peers connect directly.
var iceServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302"}},
	{URLs: []string{"stun:stun1.l.google.com:19302"}},
}

type iceServersPayload struct {
	Type    string             `json:"type"`
	Servers []webrtc.ICEServer `json:"iceServers"`
}

func iceServersEvent() iceServersPayload {
	return iceServersPayload{Type: "ice-servers", Servers: iceServers}
}

// handleRelay ships an offer, answer or ice-candidate to its target. The
// payload is checked for shape with pion's types but forwarded verbatim:
// what the target receives is byte-for-byte what the source sent.
func (ctl *Controller) handleRelay(kind string, sid core.SessionID, c *WsConn, data []byte) {
	var p struct {
		Type    string          `json:"type"`
		Target  string          `json:"target"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Target == "" {
		log.Warn().Str("module", "signal").Str("kind", kind).Msg("bad relay payload")
		ctl.sendError(c, domain.ErrInvalidItem)
		return
	}

	if !validSignalPayload(kind, p.Payload) {
		log.Warn().Str("module", "signal").Str("kind", kind).Str("sid", string(sid)).Msg("malformed signal payload")
		ctl.sendError(c, domain.ErrInvalidItem)
		return
	}

	if err := ctl.Coord.Forward(kind, sid, core.SessionID(p.Target), p.Payload); err != nil {
		// Unreachable targets are a warning, not a failure: the peer
		// probably just left and the client will notice via user-left.
		ctl.sendJSON(c, map[string]any{
			"type":   "relay-warning",
			"target": p.Target,
			"reason": "unreachable",
		})
	}
}

// validSignalPayload rejects payloads that cannot possibly be what they
// claim, without touching their bytes.
func validSignalPayload(kind string, payload json.RawMessage) bool {
	if len(payload) == 0 {
		return false
	}
	switch kind {
	case "offer", "answer":
		var sd webrtc.SessionDescription
		return json.Unmarshal(payload, &sd) == nil && sd.SDP != ""
	case "ice-candidate":
		var ci webrtc.ICECandidateInit
		return json.Unmarshal(payload, &ci) == nil && ci.Candidate != ""
	default:
		return false
	}
}

func (ctl *Controller) handleToggleMedia(sid core.SessionID, c *WsConn, data []byte) {
	var p struct {
		Type     string `json:"type"`
		RoomID   string `json:"roomId"`
		CameraOn bool   `json:"cameraOn"`
		MicOn    bool   `json:"micOn"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad toggle-media payload")
		return
	}
	if err := ctl.Coord.ToggleMedia(sid, domain.RoomID(p.RoomID), p.CameraOn, p.MicOn); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleStartCall(sid core.SessionID, c *WsConn, data []byte) {
	var p struct {
		Type          string `json:"type"`
		RoomID        string `json:"roomId"`
		ScreenSharing bool   `json:"isScreenSharing"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad start-call payload")
		return
	}
	if err := ctl.Coord.StartCall(sid, domain.RoomID(p.RoomID), p.ScreenSharing); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleEndCall(sid core.SessionID, c *WsConn, data []byte) {
	var p struct {
		Type   string `json:"type"`
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad end-call payload")
		return
	}
	if err := ctl.Coord.EndCall(sid, domain.RoomID(p.RoomID)); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleToggleScreenShare(sid core.SessionID, c *WsConn, data []byte) {
	var p struct {
		Type   string `json:"type"`
		RoomID string `json:"roomId"`
		Enable bool   `json:"enable"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad toggle-screen-share payload")
		return
	}
	if err := ctl.Coord.ToggleScreenShare(sid, domain.RoomID(p.RoomID), p.Enable); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handlePeerState(sid core.SessionID, c *WsConn, data []byte) {
	var p struct {
		Type   string `json:"type"`
		RoomID string `json:"roomId"`
		State  string `json:"state"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad peer-state payload")
		return
	}
	if err := ctl.Coord.ReportPeerState(sid, domain.RoomID(p.RoomID), core.CallState(p.State)); err != nil {
		ctl.sendError(c, err)
	}
}
