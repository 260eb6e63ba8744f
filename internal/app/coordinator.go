package app

import (
	"context"
	"time"

	"github.com/dkeye/Watch/internal/core"
	"github.com/dkeye/Watch/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomStore is the persistence collaborator. Implementations must treat
// every write as best-effort from the coordinator's point of view: the
// realtime session keeps working when durability is degraded.
type RoomStore interface {
	GetRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	LoadSource(ctx context.Context, id domain.RoomID) (*domain.MediaSource, error)
	LoadPlaylist(ctx context.Context, id domain.RoomID) ([]domain.PlaylistItem, error)
	AddParticipant(ctx context.Context, id domain.RoomID, user domain.UserID) error
	SetRoomActive(ctx context.Context, id domain.RoomID, active bool) error
	AppendMessage(ctx context.Context, id domain.RoomID, user domain.UserID, text string, ts time.Time) error
	SavePlaylist(ctx context.Context, id domain.RoomID, items []domain.PlaylistItem) error
	AddHistory(ctx context.Context, id domain.RoomID, src domain.MediaSource, ts time.Time) error
}

// SyncOptions carries the tunables of the playback broadcast loop and the
// call lifecycle. DriftThreshold is advertised to clients in the join
// snapshot; the server itself never seeks anyone.
type SyncOptions struct {
	TickInterval        time.Duration
	DriftThreshold      float64
	NegotiationDeadline time.Duration
}

func DefaultSyncOptions() SyncOptions {
	return SyncOptions{
		TickInterval:        500 * time.Millisecond,
		DriftThreshold:      2.0,
		NegotiationDeadline: 15 * time.Second,
	}
}

// Coordinator wires the registry, the live room sessions and the store into
// the realtime contract: presence, playback sync, signaling relay and
// chat/playlist fan-out. One instance serves all rooms.
type Coordinator struct {
	Registry *Registry
	Sessions *core.SessionManager
	Store    RoomStore
	Policy   Policy
	Sync     SyncOptions
}

func NewCoordinator(store RoomStore, opts SyncOptions) *Coordinator {
	return &Coordinator{
		Registry: NewRegistry(),
		Sessions: core.NewSessionManager(),
		Store:    store,
		Policy:   SimplePolicy{},
		Sync:     opts,
	}
}

// roomOf resolves the session the connection currently belongs to and
// checks it against the room id the client named in its request.
func (c *Coordinator) roomOf(sid core.SessionID, roomID domain.RoomID) (*core.RoomSession, error) {
	curID, _, ok := c.Registry.RoomOf(sid)
	if !ok || curID != roomID {
		return nil, domain.ErrNotInRoom
	}
	sess, ok := c.Sessions.Get(roomID)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return sess, nil
}

// broadcast encodes once and fans out, then lets the policy deal with any
// member that could not keep up. Pass from="" to include everyone.
func (c *Coordinator) broadcast(sess *core.RoomSession, from core.SessionID, v any) {
	frame, ok := encode(v)
	if !ok {
		return
	}
	c.applyPolicy(sess, sess.Broadcast(from, frame))
}

func (c *Coordinator) applyPolicy(sess *core.RoomSession, res core.PublishResult) {
	if c.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch c.Policy.OnBackPressure(sess, slow) {
		case KickMember:
			log.Warn().Str("module", "app").Str("sid", string(slow)).Msg("kicking slow member")
			c.Leave(slow)
			c.Registry.Cancel(slow)
		case MarkSlow, DropFrame, NoAction:
		}
	}
}

// sendTo unicasts an event to one connection; scoped errors and snapshots
// travel this path, never the broadcast one.
func (c *Coordinator) sendTo(sid core.SessionID, v any) {
	ms, ok := c.Registry.GetSession(sid)
	if !ok {
		return
	}
	frame, ok := encode(v)
	if !ok {
		return
	}
	_ = ms.Signal().TrySend(frame)
}

// persist runs a store write after the corresponding broadcast has already
// been decided. Failures are logged, never surfaced to the realtime path.
func (c *Coordinator) persist(op string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Error().Err(err).Str("module", "app.persist").Str("op", op).Msg("persistence failure")
	}
}
