package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Watch/internal/core"
	"github.com/dkeye/Watch/internal/domain"
)

// fakeStore is an in-memory RoomStore that records what was persisted and
// can be told to fail specific writes.
type fakeStore struct {
	mu           sync.Mutex
	rooms        map[domain.RoomID]*domain.Room
	sources      map[domain.RoomID]*domain.MediaSource
	playlists    map[domain.RoomID][]domain.PlaylistItem
	participants map[domain.RoomID][]domain.UserID
	messages     []string
	history      []domain.MediaSource
	active       map[domain.RoomID]bool

	failAppendMessage bool
	failParticipant   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:        make(map[domain.RoomID]*domain.Room),
		sources:      make(map[domain.RoomID]*domain.MediaSource),
		playlists:    make(map[domain.RoomID][]domain.PlaylistItem),
		participants: make(map[domain.RoomID][]domain.UserID),
		active:       make(map[domain.RoomID]bool),
	}
}

func (s *fakeStore) addRoom(id domain.RoomID, allowChat bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[id] = &domain.Room{ID: id, Name: domain.RoomName(id), Settings: domain.RoomSettings{AllowChat: allowChat}}
}

func (s *fakeStore) GetRoom(_ context.Context, id domain.RoomID) (*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	cp := *room
	return &cp, nil
}

func (s *fakeStore) LoadSource(_ context.Context, id domain.RoomID) (*domain.MediaSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sources[id], nil
}

func (s *fakeStore) LoadPlaylist(_ context.Context, id domain.RoomID) ([]domain.PlaylistItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playlists[id], nil
}

func (s *fakeStore) AddParticipant(_ context.Context, id domain.RoomID, user domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failParticipant {
		return errors.New("store down")
	}
	s.participants[id] = append(s.participants[id], user)
	return nil
}

func (s *fakeStore) SetRoomActive(_ context.Context, id domain.RoomID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[id] = active
	return nil
}

func (s *fakeStore) AppendMessage(_ context.Context, id domain.RoomID, user domain.UserID, text string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppendMessage {
		return errors.New("store down")
	}
	s.messages = append(s.messages, text)
	return nil
}

func (s *fakeStore) SavePlaylist(_ context.Context, id domain.RoomID, items []domain.PlaylistItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playlists[id] = items
	return nil
}

func (s *fakeStore) AddHistory(_ context.Context, id domain.RoomID, src domain.MediaSource, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, src)
	return nil
}

func (s *fakeStore) messageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *fakeStore) historyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// fakeConn captures outbound frames for assertions.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {}

// events decodes every captured frame of the given type.
func (c *fakeConn) events(t *testing.T, typ string) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []map[string]any{}
	for _, f := range c.frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("bad frame %q: %v", f, err)
		}
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeStore) {
	t.Helper()
	st := newFakeStore()
	coord := NewCoordinator(st, SyncOptions{
		TickInterval:        time.Hour, // ticks are driven manually in tests
		DriftThreshold:      2.0,
		NegotiationDeadline: 0, // armed explicitly where a test needs it
	})
	return coord, st
}

// connect binds an authenticated connection the way the signal adapter does.
func connect(t *testing.T, c *Coordinator, sid core.SessionID) *fakeConn {
	t.Helper()
	conn := &fakeConn{}
	user := &domain.User{ID: domain.UserID("acct-" + sid), Username: "user-" + string(sid)}
	c.Registry.BindUser(sid, user)
	c.Registry.BindSignal(sid, core.NewMemberSession(user, conn), nil)
	return conn
}

func join(t *testing.T, c *Coordinator, sid core.SessionID, roomID domain.RoomID, asHost bool) core.RoomSnapshot {
	t.Helper()
	snap, err := c.Join(context.Background(), sid, roomID, asHost)
	if err != nil {
		t.Fatalf("join %s to %s: %v", sid, roomID, err)
	}
	return snap
}
