package core

import (
	"time"

	"github.com/dkeye/Watch/internal/domain"
)

// Frame is an encoded JSON event ready for the wire.
type Frame []byte

type SessionID string

// SignalConnection abstracts the per-connection messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// MemberSession binds domain identity and its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	User() *domain.User
	Signal() SignalConnection
}

// PublishResult reports delivery stats/backpressure to the coordinator.
type PublishResult struct {
	SentTo  int
	Dropped []SessionID
}

// MemberDTO is a read-only member view for snapshots and APIs.
type MemberDTO struct {
	SessionID SessionID     `json:"socketId"`
	UserID    domain.UserID `json:"userId"`
	Username  string        `json:"username"`
	IsHost    bool          `json:"isHost"`
}

// CallState tracks where a call participant is in its negotiation
// lifecycle. Transitions are driven by peer-state reports and by the
// negotiation deadline.
type CallState string

const (
	CallNegotiating  CallState = "negotiating"
	CallConnected    CallState = "connected"
	CallDegraded     CallState = "degraded"
	CallReconnecting CallState = "reconnecting"
	CallClosed       CallState = "closed"
)

// CallParticipant records one connection actively exchanging media.
type CallParticipant struct {
	SessionID     SessionID `json:"peerId"`
	Username      string    `json:"username"`
	ScreenSharing bool      `json:"isScreenSharing"`
	State         CallState `json:"state"`
	StartedAt     time.Time `json:"-"`
}

// RoomSnapshot is everything a freshly joined connection needs to
// synchronize without racing the broadcast loop.
type RoomSnapshot struct {
	RoomID   domain.RoomID          `json:"roomId"`
	Members  []MemberDTO            `json:"members"`
	Count    int                    `json:"count"`
	Source   *domain.MediaSource    `json:"source,omitempty"`
	Sample   *domain.PlaybackSample `json:"sample,omitempty"`
	Playlist []domain.PlaylistItem  `json:"playlist"`
	Callers  []CallParticipant      `json:"callers"`

	// Sync tunables for the client: how often the server publishes
	// live-state and how far a player may drift before seeking.
	SyncIntervalMS int64   `json:"syncIntervalMs"`
	DriftThreshold float64 `json:"driftThreshold"`
}
