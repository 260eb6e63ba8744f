package app

import (
	"encoding/json"
	"time"

	"github.com/dkeye/Watch/internal/core"
	"github.com/dkeye/Watch/internal/domain"
	"github.com/rs/zerolog/log"
)

// Outbound events. Each is a named, typed payload; the wire format is one
// JSON object per frame with a "type" discriminator. Event names mirror the
// web client's listeners.

type UserCountEvent struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

func NewUserCountEvent(count int) UserCountEvent {
	return UserCountEvent{Type: "user-count", Count: count}
}

type UserJoinedEvent struct {
	Type     string         `json:"type"`
	SID      core.SessionID `json:"userId"`
	Username string         `json:"username"`
}

func NewUserJoinedEvent(sid core.SessionID, username string) UserJoinedEvent {
	return UserJoinedEvent{Type: "user-joined", SID: sid, Username: username}
}

type UserLeftEvent struct {
	Type string         `json:"type"`
	SID  core.SessionID `json:"userId"`
}

func NewUserLeftEvent(sid core.SessionID) UserLeftEvent {
	return UserLeftEvent{Type: "user-left", SID: sid}
}

type HostChangedEvent struct {
	Type   string         `json:"type"`
	NewSID core.SessionID `json:"hostId"`
	IsYou  bool           `json:"isYou"`
}

func NewHostChangedEvent(sid core.SessionID, isYou bool) HostChangedEvent {
	return HostChangedEvent{Type: "host-changed", NewSID: sid, IsYou: isYou}
}

type RoomStateEvent struct {
	Type string `json:"type"`
	core.RoomSnapshot
}

func NewRoomStateEvent(snap core.RoomSnapshot) RoomStateEvent {
	return RoomStateEvent{Type: "room-state", RoomSnapshot: snap}
}

type LiveStateEvent struct {
	Type string `json:"type"`
	domain.PlaybackSample
}

func NewLiveStateEvent(sample domain.PlaybackSample) LiveStateEvent {
	return LiveStateEvent{Type: "live-state", PlaybackSample: sample}
}

type PauseAllEvent struct {
	Type     string  `json:"type"`
	Position float64 `json:"time"`
}

func NewPauseAllEvent(position float64) PauseAllEvent {
	return PauseAllEvent{Type: "pause-all-streams", Position: position}
}

type VideoSourceChangedEvent struct {
	Type     string               `json:"type"`
	Source   string               `json:"source"`
	Metadata domain.MovieMetadata `json:"metadata"`
}

func NewVideoSourceChangedEvent(src domain.MediaSource) VideoSourceChangedEvent {
	return VideoSourceChangedEvent{Type: "video-source-changed", Source: src.URL, Metadata: src.Metadata}
}

type PlaylistUpdateEvent struct {
	Type     string                `json:"type"`
	Playlist []domain.PlaylistItem `json:"playlist"`
}

func NewPlaylistUpdateEvent(items []domain.PlaylistItem) PlaylistUpdateEvent {
	if items == nil {
		items = []domain.PlaylistItem{}
	}
	return PlaylistUpdateEvent{Type: "playlist-update", Playlist: items}
}

type ChatMessageEvent struct {
	Type      string        `json:"type"`
	UserID    domain.UserID `json:"userId"`
	Username  string        `json:"username"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
}

func NewChatMessageEvent(user *domain.User, text string, ts time.Time) ChatMessageEvent {
	return ChatMessageEvent{
		Type:      "chat-message",
		UserID:    user.ID,
		Username:  user.Username,
		Message:   text,
		Timestamp: ts,
	}
}

type MediaStatusEvent struct {
	Type     string         `json:"type"`
	SID      core.SessionID `json:"userId"`
	CameraOn bool           `json:"cameraOn"`
	MicOn    bool           `json:"micOn"`
}

func NewMediaStatusEvent(sid core.SessionID, cameraOn, micOn bool) MediaStatusEvent {
	return MediaStatusEvent{Type: "media-status", SID: sid, CameraOn: cameraOn, MicOn: micOn}
}

// SignalEvent is a forwarded signaling envelope: one hop, payload untouched.
type SignalEvent struct {
	Type    string          `json:"type"`
	From    core.SessionID  `json:"from"`
	Payload json.RawMessage `json:"payload"`
}

func NewSignalEvent(kind string, from core.SessionID, payload json.RawMessage) SignalEvent {
	return SignalEvent{Type: kind, From: from, Payload: payload}
}

type PeerCallEvent struct {
	Type          string         `json:"type"`
	SID           core.SessionID `json:"peerId"`
	Username      string         `json:"username"`
	ScreenSharing bool           `json:"isScreenSharing,omitempty"`
}

type ExistingPeersEvent struct {
	Type  string                 `json:"type"`
	Peers []core.CallParticipant `json:"peers"`
}

func NewExistingPeersEvent(peers []core.CallParticipant) ExistingPeersEvent {
	if peers == nil {
		peers = []core.CallParticipant{}
	}
	return ExistingPeersEvent{Type: "existing-peers", Peers: peers}
}

type PeerStateEvent struct {
	Type  string         `json:"type"`
	SID   core.SessionID `json:"peerId"`
	State core.CallState `json:"state"`
}

func NewPeerStateEvent(sid core.SessionID, state core.CallState) PeerStateEvent {
	return PeerStateEvent{Type: "peer-state", SID: sid, State: state}
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewErrorEvent(message string) ErrorEvent {
	return ErrorEvent{Type: "error", Message: message}
}

// encode marshals an event into a wire frame. Marshal failures are bugs in
// event definitions, so they are logged and the frame dropped.
func encode(v any) (core.Frame, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.events").Msg("event marshal")
		return nil, false
	}
	return core.Frame(b), true
}
