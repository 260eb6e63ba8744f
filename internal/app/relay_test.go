package app

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/Watch/internal/core"
	"github.com/dkeye/Watch/internal/domain"
)

func TestForwardIsDirected(t *testing.T) {
	coord, st := newTestCoordinator(t)
	st.addRoom("movies", true)

	connect(t, coord, "alice")
	join(t, coord, "alice", "movies", true)
	bob := connect(t, coord, "bob")
	join(t, coord, "bob", "movies", false)
	carol := connect(t, coord, "carol")
	join(t, coord, "carol", "movies", false)
	bob.reset()
	carol.reset()

	payload := json.RawMessage(`{"sdp":"v=0...","type":"offer"}`)
	if err := coord.Forward("offer", "alice", "bob", payload); err != nil {
		t.Fatalf("forward: %v", err)
	}

	got := bob.events(t, "offer")
	if len(got) != 1 || got[0]["from"] != "alice" {
		t.Fatalf("bob received %v", got)
	}
	// The payload crosses the relay untouched.
	have, ok := got[0]["payload"].(map[string]any)
	if !ok {
		t.Fatalf("payload shape = %T", got[0]["payload"])
	}
	if have["sdp"] != "v=0..." || have["type"] != "offer" {
		t.Fatalf("payload mangled: %v", have)
	}
	if other := carol.events(t, "offer"); len(other) != 0 {
		t.Fatalf("carol received a directed envelope: %v", other)
	}
}

func TestForwardUnknownTarget(t *testing.T) {
	coord, st := newTestCoordinator(t)
	st.addRoom("movies", true)

	connect(t, coord, "alice")
	join(t, coord, "alice", "movies", true)

	err := coord.Forward("ice-candidate", "alice", "nobody", json.RawMessage(`{}`))
	if !errors.Is(err, domain.ErrTargetUnreachable) {
		t.Fatalf("expected ErrTargetUnreachable, got %v", err)
	}
}

func TestStartCallAnnouncesAndSnapshots(t *testing.T) {
	coord, st := newTestCoordinator(t)
	st.addRoom("movies", true)

	peer := connect(t, coord, "peer")
	join(t, coord, "peer", "movies", true)
	caller := connect(t, coord, "caller")
	join(t, coord, "caller", "movies", false)
	peer.reset()

	if err := coord.StartCall("caller", "movies", true); err != nil {
		t.Fatalf("start call: %v", err)
	}

	started := peer.events(t, "peer-started-call")
	if len(started) != 1 || started[0]["peerId"] != "caller" || started[0]["isScreenSharing"] != true {
		t.Fatalf("peer saw %v", started)
	}
	if own := caller.events(t, "peer-started-call"); len(own) != 0 {
		t.Fatalf("caller saw its own announcement: %v", own)
	}

	// A later joiner finds the caller in existing-peers material.
	connect(t, coord, "late")
	snap := join(t, coord, "late", "movies", false)
	if len(snap.Callers) != 1 || snap.Callers[0].SessionID != "caller" {
		t.Fatalf("callers in snapshot = %+v", snap.Callers)
	}
	if snap.Callers[0].State != core.CallNegotiating {
		t.Fatalf("caller state = %q", snap.Callers[0].State)
	}
}

func TestPeerStateTransitions(t *testing.T) {
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

	if err := coord.ReportPeerState("caller", "movies", core.CallConnected); err != nil {
		t.Fatalf("report connected: %v", err)
	}
	states := peer.events(t, "peer-state")
	if len(states) != 1 || states[0]["state"] != string(core.CallConnected) {
		t.Fatalf("peer-state events = %v", states)
	}

	if err := coord.ReportPeerState("caller", "movies", core.CallClosed); !errors.Is(err, domain.ErrInvalidItem) {
		t.Fatalf("closed is not client-reportable, got %v", err)
	}
	if err := coord.ReportPeerState("peer", "movies", core.CallDegraded); !errors.Is(err, domain.ErrNotInRoom) {
		t.Fatalf("non-caller report: expected ErrNotInRoom, got %v", err)
	}
}

func TestNegotiationDeadlineClosesStalledCall(t *testing.T) {
	coord, st := newTestCoordinator(t)
	coord.Sync.NegotiationDeadline = 20 * time.Millisecond
	st.addRoom("movies", true)

	peer := connect(t, coord, "peer")
	join(t, coord, "peer", "movies", true)
	connect(t, coord, "caller")
	join(t, coord, "caller", "movies", false)
	if err := coord.StartCall("caller", "movies", false); err != nil {
		t.Fatalf("start call: %v", err)
	}
	peer.reset()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(peer.events(t, "peer-ended-call")) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	reconnecting := peer.events(t, "peer-state")
	if len(reconnecting) != 1 || reconnecting[0]["state"] != string(core.CallReconnecting) {
		t.Fatalf("expected a reconnecting notice first, got %v", reconnecting)
	}
	ended := peer.events(t, "peer-ended-call")
	if len(ended) != 1 || ended[0]["peerId"] != "caller" {
		t.Fatalf("expected forced close, got %v", ended)
	}
	sess, _ := coord.Sessions.Get("movies")
	if callers := sess.CallersSnapshot(""); len(callers) != 0 {
		t.Fatalf("caller record survived forced close: %+v", callers)
	}
}

func TestNegotiationDeadlineNeutralizedByConnect(t *testing.T) {
	coord, st := newTestCoordinator(t)
	coord.Sync.NegotiationDeadline = 20 * time.Millisecond
	st.addRoom("movies", true)

	peer := connect(t, coord, "peer")
	join(t, coord, "peer", "movies", true)
	connect(t, coord, "caller")
	join(t, coord, "caller", "movies", false)
	if err := coord.StartCall("caller", "movies", false); err != nil {
		t.Fatalf("start call: %v", err)
	}
	if err := coord.ReportPeerState("caller", "movies", core.CallConnected); err != nil {
		t.Fatalf("report connected: %v", err)
	}
	peer.reset()

	time.Sleep(100 * time.Millisecond)

	if got := peer.events(t, "peer-ended-call"); len(got) != 0 {
		t.Fatalf("connected call was force-closed: %v", got)
	}
	sess, _ := coord.Sessions.Get("movies")
	callers := sess.CallersSnapshot("")
	if len(callers) != 1 || callers[0].State != core.CallConnected {
		t.Fatalf("callers = %+v", callers)
	}
}

func TestEndCallNotifies(t *testing.T) {
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

	if err := coord.EndCall("caller", "movies"); err != nil {
		t.Fatalf("end call: %v", err)
	}
	ended := peer.events(t, "peer-ended-call")
	if len(ended) != 1 || ended[0]["peerId"] != "caller" {
		t.Fatalf("peer saw %v", ended)
	}

	// Ending twice is a quiet no-op.
	peer.reset()
	if err := coord.EndCall("caller", "movies"); err != nil {
		t.Fatalf("double end: %v", err)
	}
	if got := peer.events(t, "peer-ended-call"); len(got) != 0 {
		t.Fatalf("double end broadcast: %v", got)
	}
}

func TestToggleScreenShare(t *testing.T) {
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

	if err := coord.ToggleScreenShare("caller", "movies", true); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	got := peer.events(t, "peer-toggle-screen-share")
	if len(got) != 1 || got[0]["peerId"] != "caller" || got[0]["isScreenSharing"] != true {
		t.Fatalf("peer saw %v", got)
	}

	if err := coord.ToggleScreenShare("peer", "movies", true); !errors.Is(err, domain.ErrNotInRoom) {
		t.Fatalf("non-caller toggle: expected ErrNotInRoom, got %v", err)
	}
}

func TestToggleMediaIncludesSender(t *testing.T) {
	coord, st := newTestCoordinator(t)
	st.addRoom("movies", true)

	sender := connect(t, coord, "sender")
	join(t, coord, "sender", "movies", true)
	other := connect(t, coord, "other")
	join(t, coord, "other", "movies", false)
	sender.reset()
	other.reset()

	if err := coord.ToggleMedia("sender", "movies", false, true); err != nil {
		t.Fatalf("toggle media: %v", err)
	}
	for name, conn := range map[string]*fakeConn{"sender": sender, "other": other} {
		got := conn.events(t, "media-status")
		if len(got) != 1 || got[0]["userId"] != "sender" || got[0]["cameraOn"] != false || got[0]["micOn"] != true {
			t.Fatalf("%s saw %v", name, got)
		}
	}
}
