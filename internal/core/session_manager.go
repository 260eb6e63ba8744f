package core

import (
	"sync"

	"github.com/dkeye/Watch/internal/domain"
)

// SessionManager owns the set of live RoomSessions, keyed by room id.
// Sessions are created lazily on first join and removed when the last
// member leaves; the persisted room document survives in the store.
type SessionManager struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*RoomSession
}

func NewSessionManager() *SessionManager {
	return &SessionManager{rooms: make(map[domain.RoomID]*RoomSession)}
}

func (m *SessionManager) Get(id domain.RoomID) (*RoomSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.rooms[id]
	return s, ok
}

// Enter returns the room's live session with the member already added,
// creating and seeding the session first when absent. Creation and
// membership share one critical section, so an Enter can never land on a
// session a concurrent Depart is evicting. seed runs only on the session
// that wins creation, before it is published; it must not perform I/O.
func (m *SessionManager) Enter(room *domain.Room, seed func(*RoomSession), sid SessionID, ms MemberSession) *RoomSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rooms[room.ID]
	if !ok {
		s = NewRoomSession(room)
		if seed != nil {
			seed(s)
		}
		m.rooms[room.ID] = s
	}
	s.AddMember(sid, ms)
	return s
}

// Depart removes the member from the room's live session and evicts the
// session once it empties, under the same lock Enter takes. The emptiness
// check and the eviction are atomic with respect to concurrent Enters.
func (m *SessionManager) Depart(id domain.RoomID, sid SessionID) (sess *RoomSession, wasInCall, empty, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok = m.rooms[id]
	if !ok {
		return nil, false, false, false
	}
	wasInCall = sess.EndCall(sid)
	empty = sess.RemoveMember(sid)
	if empty {
		delete(m.rooms, id)
	}
	return sess, wasInCall, empty, true
}

// Snapshot returns the current live sessions. The tick loop iterates this
// without holding the manager lock during broadcasts.
func (m *SessionManager) Snapshot() []*RoomSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*RoomSession, 0, len(m.rooms))
	for _, s := range m.rooms {
		out = append(out, s)
	}
	return out
}

// Count reports how many rooms currently have live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}
