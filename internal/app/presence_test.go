package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dkeye/Watch/internal/core"
	"github.com/dkeye/Watch/internal/domain"
)

func TestJoinUnknownRoom(t *testing.T) {
	coord, _ := newTestCoordinator(t)
	connect(t, coord, "s1")

	_, err := coord.Join(context.Background(), "s1", "nowhere", false)
	if !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestJoinWithoutIdentity(t *testing.T) {
	coord, st := newTestCoordinator(t)
	st.addRoom("movies", true)

	_, err := coord.Join(context.Background(), "ghost", "movies", false)
	if !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestJoinSnapshotAndNotifications(t *testing.T) {
	coord, st := newTestCoordinator(t)
	st.addRoom("movies", true)

	first := connect(t, coord, "s1")
	join(t, coord, "s1", "movies", true)
	first.reset()

	connect(t, coord, "s2")
	snap := join(t, coord, "s2", "movies", false)
	if snap.Count != 2 || len(snap.Members) != 2 {
		t.Fatalf("snapshot count = %d, members = %d", snap.Count, len(snap.Members))
	}
	if snap.Sample == nil || snap.Sample.Position != 0 || snap.Sample.Playing {
		t.Fatalf("expected idle sample in snapshot, got %+v", snap.Sample)
	}

	joined := first.events(t, "user-joined")
	if len(joined) != 1 || joined[0]["userId"] != "s2" || joined[0]["username"] != "user-s2" {
		t.Fatalf("existing member saw %v", joined)
	}
	counts := first.events(t, "user-count")
	if len(counts) != 1 || counts[0]["count"] != float64(2) {
		t.Fatalf("user-count = %v", counts)
	}
	if got := len(st.participants["movies"]); got != 2 {
		t.Fatalf("persisted participants = %d", got)
	}
	if !st.active["movies"] {
		t.Fatal("room not marked active")
	}
}

func TestJoinerDoesNotSeeOwnUserJoined(t *testing.T) {
	coord, st := newTestCoordinator(t)
	st.addRoom("movies", true)

	connect(t, coord, "s1")
	join(t, coord, "s1", "movies", true)
	second := connect(t, coord, "s2")
	join(t, coord, "s2", "movies", false)

	if got := second.events(t, "user-joined"); len(got) != 0 {
		t.Fatalf("joiner saw its own user-joined: %v", got)
	}
	if got := second.events(t, "user-count"); len(got) != 1 {
		t.Fatalf("joiner user-count events = %v", got)
	}
}

func TestSingleRoomMembership(t *testing.T) {
	coord, st := newTestCoordinator(t)
	st.addRoom("room-a", true)
	st.addRoom("room-b", true)

	stayer := connect(t, coord, "stayer")
	join(t, coord, "stayer", "room-a", true)
	connect(t, coord, "mover")
	join(t, coord, "mover", "room-a", false)
	stayer.reset()

	join(t, coord, "mover", "room-b", false)

	left := stayer.events(t, "user-left")
	if len(left) != 1 || left[0]["userId"] != "mover" {
		t.Fatalf("expected exactly one user-left for mover, got %v", left)
	}
	counts := stayer.events(t, "user-count")
	if len(counts) != 1 || counts[0]["count"] != float64(1) {
		t.Fatalf("user-count after move = %v", counts)
	}

	roomID, _, ok := coord.Registry.RoomOf("mover")
	if !ok || roomID != "room-b" {
		t.Fatalf("mover registered in %q", roomID)
	}
	sessA, _ := coord.Sessions.Get("room-a")
	if sessA.Has("mover") {
		t.Fatal("mover still member of room-a")
	}
}

func TestRejoinSameRoomKeepsMembership(t *testing.T) {
	coord, st := newTestCoordinator(t)
	st.addRoom("movies", true)

	connect(t, coord, "s1")
	join(t, coord, "s1", "movies", true)
	other := connect(t, coord, "s2")
	join(t, coord, "s2", "movies", false)
	other.reset()

	snap := join(t, coord, "s1", "movies", true)

	if snap.Count != 2 {
		t.Fatalf("count after rejoin = %d", snap.Count)
	}
	sess, _ := coord.Sessions.Get("movies")
	if !sess.IsHost("s1") {
		t.Fatal("host flag lost on rejoin")
	}

	// The others saw s1 join already; a rejoin must stay silent.
	if got := other.events(t, "user-joined"); len(got) != 0 {
		t.Fatalf("rejoin re-broadcast user-joined: %v", got)
	}
	if got := other.events(t, "user-count"); len(got) != 0 {
		t.Fatalf("rejoin re-broadcast user-count: %v", got)
	}
	if got := len(st.participants["movies"]); got != 2 {
		t.Fatalf("participants persisted = %d", got)
	}
}

func TestHostDemotionNotifiesOldHost(t *testing.T) {
	coord, st := newTestCoordinator(t)
	st.addRoom("movies", true)

	old := connect(t, coord, "old-host")
	join(t, coord, "old-host", "movies", true)
	connect(t, coord, "new-host")
	join(t, coord, "new-host", "movies", true)

	changed := old.events(t, "host-changed")
	if len(changed) != 1 || changed[0]["hostId"] != "new-host" || changed[0]["isYou"] != false {
		t.Fatalf("demoted host saw %v", changed)
	}
	sess, _ := coord.Sessions.Get("movies")
	if sess.Host() != "new-host" {
		t.Fatalf("host = %q", sess.Host())
	}
}

func TestLeaveLastMemberEvictsSession(t *testing.T) {
	coord, st := newTestCoordinator(t)
	st.addRoom("movies", true)

	connect(t, coord, "s1")
	join(t, coord, "s1", "movies", true)
	sess, _ := coord.Sessions.Get("movies")
	sess.SetSample(domain.PlaybackSample{Position: 42, Playing: true})

	coord.Leave("s1")

	if _, ok := coord.Sessions.Get("movies"); ok {
		t.Fatal("empty room session not evicted")
	}
	if st.active["movies"] {
		t.Fatal("room still marked active")
	}

	// The ephemeral sample is gone; a fresh join rebuilds from the store.
	connect(t, coord, "s2")
	snap := join(t, coord, "s2", "movies", false)
	if snap.Sample != nil {
		t.Fatalf("ephemeral sample survived eviction: %+v", snap.Sample)
	}
}

func TestLeaveWhileInCallNotifiesPeers(t *testing.T) {
	coord, st := newTestCoordinator(t)
	st.addRoom("movies", true)

	peer := connect(t, coord, "peer")
	join(t, coord, "peer", "movies", true)
	connect(t, coord, "caller")
	join(t, coord, "caller", "movies", false)
	if err := coord.StartCall("caller", "movies", false); err != nil {
		t.Fatalf("start call: %v", err)
	}
	peer.reset()

	coord.Leave("caller")

	ended := peer.events(t, "peer-ended-call")
	if len(ended) != 1 || ended[0]["peerId"] != "caller" {
		t.Fatalf("expected peer-ended-call for caller, got %v", ended)
	}
	if got := peer.events(t, "user-left"); len(got) != 1 {
		t.Fatalf("user-left events = %v", got)
	}
}

func TestOnDisconnectUnbinds(t *testing.T) {
	coord, st := newTestCoordinator(t)
	st.addRoom("movies", true)

	var cancelled atomic.Bool
	user := &domain.User{ID: "acct-s1", Username: "user-s1"}
	coord.Registry.BindUser("s1", user)
	coord.Registry.BindSignal("s1", core.NewMemberSession(user, &fakeConn{}), func() { cancelled.Store(true) })
	join(t, coord, "s1", "movies", false)

	coord.OnDisconnect("s1")

	if !cancelled.Load() {
		t.Fatal("connection pumps not cancelled on disconnect")
	}
	if _, ok := coord.Registry.UserOf("s1"); ok {
		t.Fatal("user binding survived disconnect")
	}
	if _, ok := coord.Registry.GetSession("s1"); ok {
		t.Fatal("signal binding survived disconnect")
	}
}

func TestSnapshotRestoredFromStore(t *testing.T) {
	coord, st := newTestCoordinator(t)
	st.addRoom("movies", true)
	st.sources["movies"] = &domain.MediaSource{URL: "https://cdn.example/one.mp4"}
	st.playlists["movies"] = []domain.PlaylistItem{
		{Title: "Two", URL: "https://cdn.example/two.mp4"},
	}

	connect(t, coord, "s1")
	snap := join(t, coord, "s1", "movies", false)

	if snap.Source == nil || snap.Source.URL != "https://cdn.example/one.mp4" {
		t.Fatalf("source = %+v", snap.Source)
	}
	if len(snap.Playlist) != 1 || snap.Playlist[0].Title != "Two" {
		t.Fatalf("playlist = %+v", snap.Playlist)
	}
}

func TestJoinSnapshotCarriesSyncTunables(t *testing.T) {
	coord, st := newTestCoordinator(t)
	st.addRoom("movies", true)

	connect(t, coord, "s1")
	snap := join(t, coord, "s1", "movies", false)

	if want := coord.Sync.TickInterval.Milliseconds(); snap.SyncIntervalMS != want {
		t.Fatalf("syncIntervalMs = %d, want %d", snap.SyncIntervalMS, want)
	}
	if snap.DriftThreshold != coord.Sync.DriftThreshold {
		t.Fatalf("driftThreshold = %v, want %v", snap.DriftThreshold, coord.Sync.DriftThreshold)
	}
}

// A join racing the last member's leave must never land on a session that
// is being evicted: either order leaves the joiner in a live, reachable
// room.
func TestJoinSurvivesConcurrentLastLeave(t *testing.T) {
	coord, st := newTestCoordinator(t)
	st.addRoom("movies", true)
	connect(t, coord, "joiner")

	for i := 0; i < 500; i++ {
		connect(t, coord, "leaver")
		join(t, coord, "leaver", "movies", false)

		var joinErr error
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, joinErr = coord.Join(context.Background(), "joiner", "movies", false)
		}()
		go func() {
			defer wg.Done()
			coord.Leave("leaver")
		}()
		wg.Wait()

		if joinErr != nil {
			t.Fatalf("iteration %d: join: %v", i, joinErr)
		}
		sess, ok := coord.Sessions.Get("movies")
		if !ok {
			t.Fatalf("iteration %d: session evicted out from under the joiner", i)
		}
		if !sess.Has("joiner") {
			t.Fatalf("iteration %d: joiner missing from session", i)
		}
		if err := coord.SendMessage("joiner", "movies", "ping"); err != nil {
			t.Fatalf("iteration %d: message after join: %v", i, err)
		}
		coord.Leave("joiner")
	}
}
