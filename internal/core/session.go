package core

import (
	"sync"
	"time"

	"github.com/dkeye/Watch/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomSession is the in-memory runtime state of one room: membership, the
// host-authoritative playback sample, the current media source, the pending
// playlist and the active call participants. It is threadsafe; one mutex
// makes every mutation atomic with respect to concurrent joins, leaves and
// host reports for the same room. It never closes adapter-owned transports
// and never performs I/O.
type RoomSession struct {
	room *domain.Room

	mu       sync.RWMutex
	bySID    map[SessionID]MemberSession
	host     SessionID
	sample   *domain.PlaybackSample
	source   *domain.MediaSource
	playlist []domain.PlaylistItem
	callers  map[SessionID]*CallParticipant
}

func NewRoomSession(room *domain.Room) *RoomSession {
	return &RoomSession{
		room:    room,
		bySID:   make(map[SessionID]MemberSession),
		callers: make(map[SessionID]*CallParticipant),
	}
}

func (r *RoomSession) Room() *domain.Room { return r.room }

// Seed loads persisted ephemera into a freshly created session. Called once,
// before the first member is added, so it takes the lock only for symmetry.
func (r *RoomSession) Seed(source *domain.MediaSource, playlist []domain.PlaylistItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.source = source
	r.playlist = playlist
}

func (r *RoomSession) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *RoomSession) AddMember(sid SessionID, ms MemberSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySID[sid] = ms
	log.Debug().Str("module", "core.session").Str("sid", string(sid)).Str("room", string(r.room.ID)).Msg("member added")
}

// RemoveMember drops the connection from the room along with its host flag
// and call participation, and reports whether the room is now empty.
func (r *RoomSession) RemoveMember(sid SessionID) (empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bySID, sid)
	delete(r.callers, sid)
	if r.host == sid {
		r.host = ""
	}
	log.Debug().Str("module", "core.session").Str("sid", string(sid)).Str("room", string(r.room.ID)).Msg("member removed")
	return len(r.bySID) == 0
}

func (r *RoomSession) Has(sid SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bySID[sid]
	return ok
}

// SetHost makes sid the room's playback authority. Last host wins: the
// previous host, if different, is demoted and returned so the caller can
// notify it.
func (r *RoomSession) SetHost(sid SessionID) (demoted SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.host == sid {
		return ""
	}
	demoted = r.host
	r.host = sid
	if r.sample == nil {
		r.sample = &domain.PlaybackSample{}
	}
	return demoted
}

func (r *RoomSession) Host() SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.host
}

func (r *RoomSession) IsHost(sid SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sid != "" && r.host == sid
}

func (r *RoomSession) Sample() *domain.PlaybackSample {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.sample == nil {
		return nil
	}
	s := *r.sample
	return &s
}

func (r *RoomSession) SetSample(s domain.PlaybackSample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sample = &s
}

// Pause freezes playback at the host's last reported position and returns
// the resulting sample.
func (r *RoomSession) Pause() domain.PlaybackSample {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sample == nil {
		r.sample = &domain.PlaybackSample{}
	}
	r.sample.Playing = false
	return *r.sample
}

func (r *RoomSession) Source() *domain.MediaSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.source == nil {
		return nil
	}
	s := *r.source
	return &s
}

// SetSource swaps the media source and resets the sample to the start,
// playing. One critical section so a tick never observes a new source with
// a stale position.
func (r *RoomSession) SetSource(src domain.MediaSource, sample domain.PlaybackSample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.source = &src
	r.sample = &sample
}

func (r *RoomSession) Playlist() []domain.PlaylistItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.PlaylistItem, len(r.playlist))
	copy(out, r.playlist)
	return out
}

func (r *RoomSession) AppendPlaylist(item domain.PlaylistItem) []domain.PlaylistItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playlist = append(r.playlist, item)
	out := make([]domain.PlaylistItem, len(r.playlist))
	copy(out, r.playlist)
	return out
}

// RemovePlaylistAt removes the entry at index. The removed item is returned
// so the caller can authorize against its submitter before committing; the
// check callback runs under the lock to keep index and item consistent.
func (r *RoomSession) RemovePlaylistAt(index int, allowed func(domain.PlaylistItem) bool) ([]domain.PlaylistItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.playlist) {
		return nil, domain.ErrInvalidIndex
	}
	if allowed != nil && !allowed(r.playlist[index]) {
		return nil, domain.ErrNotAuthorized
	}
	r.playlist = append(r.playlist[:index], r.playlist[index+1:]...)
	out := make([]domain.PlaylistItem, len(r.playlist))
	copy(out, r.playlist)
	return out, nil
}

// PopPlaylistHead dequeues index 0 and atomically makes it the current
// source. The remaining playlist is returned for broadcast.
func (r *RoomSession) PopPlaylistHead(sample domain.PlaybackSample) (domain.PlaylistItem, []domain.PlaylistItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.playlist) == 0 {
		return domain.PlaylistItem{}, nil, domain.ErrPlaylistEmpty
	}
	head := r.playlist[0]
	r.playlist = r.playlist[1:]
	src := head.Source()
	r.source = &src
	r.sample = &sample
	out := make([]domain.PlaylistItem, len(r.playlist))
	copy(out, r.playlist)
	return head, out, nil
}

func (r *RoomSession) StartCall(sid SessionID, username string, screenSharing bool, startedAt time.Time) *CallParticipant {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := &CallParticipant{
		SessionID:     sid,
		Username:      username,
		ScreenSharing: screenSharing,
		State:         CallNegotiating,
		StartedAt:     startedAt,
	}
	r.callers[sid] = p
	return p
}

func (r *RoomSession) EndCall(sid SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.callers[sid]; !ok {
		return false
	}
	delete(r.callers, sid)
	return true
}

func (r *RoomSession) SetScreenSharing(sid SessionID, on bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.callers[sid]
	if !ok {
		return false
	}
	p.ScreenSharing = on
	return true
}

// SetCallState applies a lifecycle transition and reports whether the
// participant was still present in the given prior state (used by the
// negotiation deadline to avoid racing a legitimate report).
func (r *RoomSession) SetCallState(sid SessionID, from, to CallState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.callers[sid]
	if !ok {
		return false
	}
	if from != "" && p.State != from {
		return false
	}
	p.State = to
	return true
}

func (r *RoomSession) CallersSnapshot(except SessionID) []CallParticipant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CallParticipant, 0, len(r.callers))
	for sid, p := range r.callers {
		if sid == except {
			continue
		}
		out = append(out, *p)
	}
	return out
}

func (r *RoomSession) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberDTO, 0, len(r.bySID))
	for sid, ms := range r.bySID {
		u := ms.User()
		out = append(out, MemberDTO{
			SessionID: sid,
			UserID:    u.ID,
			Username:  u.Username,
			IsHost:    sid == r.host,
		})
	}
	return out
}

// Broadcast fans a frame out to every member except from (pass "" to reach
// everyone). Sends never block; members whose buffers are full are reported
// as dropped for the policy layer to deal with.
func (r *RoomSession) Broadcast(from SessionID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for sid, m := range r.bySID {
		if sid == from {
			continue
		}
		if err := m.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, sid)
			continue
		}
		res.SentTo++
	}
	return res
}

// BroadcastExceptHost is the tick path: the host does not need its own
// sample echoed back.
func (r *RoomSession) BroadcastExceptHost(data Frame) PublishResult {
	r.mu.RLock()
	host := r.host
	r.mu.RUnlock()
	return r.Broadcast(host, data)
}
