package server

import (
	"encoding/json"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"
)

type fakeConn struct {
	ch     chan []byte
	closed atomic.Bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{ch: make(chan []byte, 256)}
}

func (f *fakeConn) Enqueue(b []byte) bool {
	cp := append([]byte(nil), b...)
	select {
	case f.ch <- cp:
		return true
	default:
		return false
	}
}

func (f *fakeConn) Close() { f.closed.Store(true) }

// waitFor drains the fake connection until an envelope with the wanted
// event arrives, failing the test on timeout.
func waitFor(t *testing.T, fc *fakeConn, event string) Envelope {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case b := <-fc.ch:
			env, err := decodeEnvelope(b)
			if err != nil {
				t.Fatalf("decode envelope: %v", err)
			}
			if env.Event == event {
				return env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", event)
		}
	}
}

// expectNo asserts that no envelope with the given event arrives within
// the window.
func expectNo(t *testing.T, fc *fakeConn, event string, window time.Duration) {
	t.Helper()
	deadline := time.After(window)
	for {
		select {
		case b := <-fc.ch:
			env, err := decodeEnvelope(b)
			if err != nil {
				continue
			}
			if env.Event == event {
				t.Fatalf("unexpected %q event: %s", event, env.Data)
			}
		case <-deadline:
			return
		}
	}
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.TickRate = 50 // fast snapshots keep the tests snappy
	return cfg
}

func startRoom(t *testing.T, cfg *Config) *Room {
	t.Helper()
	auth := NicknameAuth{DanielName: cfg.DanielName, AdminName: cfg.AdminName}
	r := newRoom(cfg.DefaultRoom, cfg, auth, newNicknameRegistry())
	go r.Run()
	t.Cleanup(r.Stop)
	return r
}

func admit(t *testing.T, r *Room, connID, nickname string) *fakeConn {
	t.Helper()
	fc := newFakeConn()
	r.postWait(joinCmd{ConnID: connID, Nickname: nickname, Conn: fc})
	waitFor(t, fc, evtInitialPlayers)
	return fc
}

func decodeInto(t *testing.T, env Envelope, out any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode %q payload: %v", env.Event, err)
	}
}

func TestJoinSendsInitialPlayersAndNotifiesRoom(t *testing.T) {
	r := startRoom(t, testConfig())
	alice := admit(t, r, "c1", "alice")

	bobConn := newFakeConn()
	r.postWait(joinCmd{ConnID: "c2", Nickname: "bob", Conn: bobConn})

	env := waitFor(t, bobConn, evtInitialPlayers)
	var initial map[string]PlayerState
	decodeInto(t, env, &initial)
	if len(initial) != 2 {
		t.Fatalf("initialPlayers has %d entries, want 2", len(initial))
	}
	if st := initial["c2"]; st.X != 0 || st.Y != 3 || st.Z != 0 || st.Rotation != 0 {
		t.Fatalf("spawn pose wrong: %+v", st)
	}

	joined := waitFor(t, alice, evtPlayerJoined)
	var record PlayerState
	decodeInto(t, joined, &record)
	if record.ID != "c2" || record.Nickname != "bob" {
		t.Fatalf("playerJoined record = %+v", record)
	}
}

func TestDuplicateNicknameIsRejectedTerminally(t *testing.T) {
	r := startRoom(t, testConfig())
	admit(t, r, "c1", "alice")

	dup := newFakeConn()
	r.postWait(joinCmd{ConnID: "c2", Nickname: "alice", Conn: dup})
	waitFor(t, dup, evtNicknameError)
	if !dup.closed.Load() {
		t.Fatalf("rejected connection should be closed")
	}

	// No PlayerState was created for the loser.
	env := waitFor(t, admit(t, r, "c3", "carol"), evtGameState)
	var state map[string]PlayerState
	decodeInto(t, env, &state)
	if _, ok := state["c2"]; ok {
		t.Fatalf("rejected connection has a player record")
	}
}

func TestEmptyNicknameIsRejected(t *testing.T) {
	r := startRoom(t, testConfig())
	fc := newFakeConn()
	r.postWait(joinCmd{ConnID: "c1", Nickname: "   ", Conn: fc})
	waitFor(t, fc, evtNicknameError)
	if !fc.closed.Load() {
		t.Fatalf("rejected connection should be closed")
	}
}

func TestLeaveReleasesNicknameAndNotifiesRoom(t *testing.T) {
	r := startRoom(t, testConfig())
	alice := admit(t, r, "c1", "alice")
	admit(t, r, "c2", "bob")

	r.postWait(leaveCmd{ConnID: "c2"})
	env := waitFor(t, alice, evtPlayerLeft)
	var gone string
	decodeInto(t, env, &gone)
	if gone != "c2" {
		t.Fatalf("playerLeft = %q, want c2", gone)
	}

	// Nickname is free again.
	again := newFakeConn()
	r.postWait(joinCmd{ConnID: "c3", Nickname: "bob", Conn: again})
	waitFor(t, again, evtInitialPlayers)
}

func TestMoveIsClampedIntoWorldBounds(t *testing.T) {
	cfg := testConfig()
	r := startRoom(t, cfg)
	alice := admit(t, r, "c1", "alice")

	r.post(moveCmd{ConnID: "c1", Msg: moveMessage{
		X:        float64(999),
		Y:        float64(-5),
		Z:        float64(0),
		Rotation: float64(10),
		IsMoving: true,
	}})

	deadline := time.After(2 * time.Second)
	for {
		env := waitFor(t, alice, evtGameState)
		var state map[string]PlayerState
		decodeInto(t, env, &state)
		st, ok := state["c1"]
		if !ok {
			t.Fatalf("snapshot missing player")
		}
		if st.X == 0 && st.Y == 3 {
			// Move not applied yet; keep waiting.
			select {
			case <-deadline:
				t.Fatalf("move never applied")
			default:
				continue
			}
		}
		if st.X != cfg.WorldExtent {
			t.Fatalf("x = %v, want %v", st.X, cfg.WorldExtent)
		}
		if st.Y != 0 {
			t.Fatalf("y = %v, want 0", st.Y)
		}
		if st.Rotation <= -math.Pi || st.Rotation > math.Pi {
			t.Fatalf("rotation = %v, outside (-pi, pi]", st.Rotation)
		}
		if !st.IsMoving {
			t.Fatalf("isMoving not stored")
		}
		return
	}
}

func TestMoveRateLimitDropsExcessPackets(t *testing.T) {
	cfg := testConfig()
	cfg.MoveRate = 1 // one accepted move per second makes the drop deterministic
	r := startRoom(t, cfg)
	alice := admit(t, r, "c1", "alice")

	r.post(moveCmd{ConnID: "c1", Msg: moveMessage{X: float64(10)}})
	r.post(moveCmd{ConnID: "c1", Msg: moveMessage{X: float64(20)}})

	deadline := time.After(2 * time.Second)
	for {
		env := waitFor(t, alice, evtGameState)
		var state map[string]PlayerState
		decodeInto(t, env, &state)
		st := state["c1"]
		if st.X == 20 {
			t.Fatalf("second move applied despite rate limit")
		}
		if st.X == 10 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("first move never applied")
		default:
		}
	}
}

func TestChatReachesWholeRoomIncludingSender(t *testing.T) {
	r := startRoom(t, testConfig())
	alice := admit(t, r, "c1", "alice")
	bob := admit(t, r, "c2", "bob")

	r.post(chatCmd{ConnID: "c1", Message: "hello"})

	for _, fc := range []*fakeConn{alice, bob} {
		env := waitFor(t, fc, evtChat)
		var msg chatBroadcast
		decodeInto(t, env, &msg)
		if msg.PlayerID != "c1" || msg.Nickname != "alice" || msg.Message != "hello" {
			t.Fatalf("chat payload = %+v", msg)
		}
	}
}

func TestRoomsAreIsolated(t *testing.T) {
	cfg := testConfig()
	auth := NicknameAuth{DanielName: cfg.DanielName, AdminName: cfg.AdminName}
	m := NewRoomManager(cfg, auth)
	t.Cleanup(m.StopAll)
	arena := m.GetOrCreateRoom("arena")
	lobby := m.GetOrCreateRoom("lobby")

	alice := admit(t, arena, "c1", "alice")
	carol := admit(t, lobby, "c2", "carol")

	arena.post(chatCmd{ConnID: "c1", Message: "arena only"})
	waitFor(t, alice, evtChat)
	expectNo(t, carol, evtChat, 200*time.Millisecond)

	// Snapshots are partitioned by room too.
	env := waitFor(t, carol, evtGameState)
	var state map[string]PlayerState
	decodeInto(t, env, &state)
	if _, ok := state["c1"]; ok {
		t.Fatalf("lobby snapshot contains arena player")
	}
	if _, ok := state["c2"]; !ok {
		t.Fatalf("lobby snapshot missing own player")
	}
}

func TestToolEquipExcludesSenderAndSticksToState(t *testing.T) {
	r := startRoom(t, testConfig())
	alice := admit(t, r, "c1", "alice")
	bob := admit(t, r, "c2", "bob")

	r.post(toolCmd{ConnID: "c1", Tool: "rocketLauncher", Equip: true})

	env := waitFor(t, bob, evtRemoteEquip)
	var msg toolBroadcast
	decodeInto(t, env, &msg)
	if msg.PlayerID != "c1" || msg.Tool != "rocketLauncher" {
		t.Fatalf("remoteEquip payload = %+v", msg)
	}
	expectNo(t, alice, evtRemoteEquip, 200*time.Millisecond)

	state := waitFor(t, alice, evtGameState)
	var snap map[string]PlayerState
	decodeInto(t, state, &snap)
	if snap["c1"].ToolID != "rocketLauncher" {
		t.Fatalf("toolId not recorded: %+v", snap["c1"])
	}
}

func TestHatChangeMutatesStateAndEchoesToSender(t *testing.T) {
	r := startRoom(t, testConfig())
	alice := admit(t, r, "c1", "alice")

	r.post(hatCmd{ConnID: "c1", HatID: "tophat"})
	env := waitFor(t, alice, evtHatChanged)
	var msg hatBroadcast
	decodeInto(t, env, &msg)
	if msg.PlayerID != "c1" || msg.HatID != "tophat" {
		t.Fatalf("playerHatChanged payload = %+v", msg)
	}
}

func TestCustomizeOverwritesColors(t *testing.T) {
	r := startRoom(t, testConfig())
	alice := admit(t, r, "c1", "alice")

	want := PlayerColors{Head: "#111", Torso: "#222", Arms: "#333", Legs: "#444"}
	r.post(customizeCmd{ConnID: "c1", Colors: want})

	deadline := time.After(2 * time.Second)
	for {
		env := waitFor(t, alice, evtGameState)
		var snap map[string]PlayerState
		decodeInto(t, env, &snap)
		if snap["c1"].Colors == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("colors never applied, got %+v", snap["c1"].Colors)
		default:
		}
	}
}

func TestPlayerHitBecomesPlayerDied(t *testing.T) {
	r := startRoom(t, testConfig())
	alice := admit(t, r, "c1", "alice")
	admit(t, r, "c2", "bob")

	r.post(hitCmd{ConnID: "c2", Killer: "bob", Victim: "alice"})
	env := waitFor(t, alice, evtPlayerDied)
	var msg diedBroadcast
	decodeInto(t, env, &msg)
	if msg.Killer != "bob" || msg.Victim != "alice" {
		t.Fatalf("playerDied payload = %+v", msg)
	}
}

func TestAdminCommandDeniedForOrdinaryPlayers(t *testing.T) {
	r := startRoom(t, testConfig())
	alice := admit(t, r, "c1", "alice")
	bob := admit(t, r, "c2", "bob")

	r.post(adminCmd{ConnID: "c1", Event: evtAdminExplode, Target: "bob"})
	expectNo(t, alice, evtAdminExplode, 200*time.Millisecond)
	expectNo(t, bob, evtAdminExplode, 50*time.Millisecond)
}

func TestAdminCommandRelayedForAdminWithInRoomTarget(t *testing.T) {
	cfg := testConfig()
	r := startRoom(t, cfg)
	admin := admit(t, r, "c1", cfg.AdminName)
	bob := admit(t, r, "c2", "bob")

	// Target not in room: silently ignored.
	r.post(adminCmd{ConnID: "c1", Event: evtAdminFly, Target: "ghost"})
	expectNo(t, bob, evtAdminFly, 200*time.Millisecond)

	r.post(adminCmd{ConnID: "c1", Event: evtAdminFly, Target: "bob"})
	env := waitFor(t, bob, evtAdminFly)
	var msg adminTargetMessage
	decodeInto(t, env, &msg)
	if msg.Target != "bob" {
		t.Fatalf("adminFly target = %q, want bob", msg.Target)
	}
	waitFor(t, admin, evtAdminFly) // sender included
}

func TestDanielCommandGatedByNameAndCooldown(t *testing.T) {
	cfg := testConfig()
	r := startRoom(t, cfg)
	daniel := admit(t, r, "c1", cfg.DanielName)
	bob := admit(t, r, "c2", "bob")

	r.post(danielCmd{ConnID: "c2"})
	expectNo(t, bob, evtDanielEvent, 200*time.Millisecond)

	r.post(danielCmd{ConnID: "c1"})
	waitFor(t, daniel, evtDanielEvent)
	waitFor(t, bob, evtDanielEvent)

	// Second use inside the cooldown window is ignored.
	r.post(danielCmd{ConnID: "c1"})
	expectNo(t, bob, evtDanielEvent, 200*time.Millisecond)
}

func TestReRegisterIsIgnoredAndLeaksNoNicknames(t *testing.T) {
	r := startRoom(t, testConfig())
	alice := admit(t, r, "c1", "alice")

	// An admitted connection registering again is a no-op: no rejection,
	// no second nickname bound to the connection.
	r.postWait(joinCmd{ConnID: "c1", Nickname: "alice2", Conn: alice})
	expectNo(t, alice, evtNicknameError, 200*time.Millisecond)

	r.postWait(leaveCmd{ConnID: "c1"})

	// Both names must be claimable after the disconnect.
	for i, nick := range []string{"alice", "alice2"} {
		fc := newFakeConn()
		r.postWait(joinCmd{ConnID: fmt.Sprintf("c%d", i+2), Nickname: nick, Conn: fc})
		waitFor(t, fc, evtInitialPlayers)
	}
}

func TestPostWaitReturnsWhenRoomStopped(t *testing.T) {
	cfg := testConfig()
	r := newRoom(cfg.DefaultRoom, cfg, NicknameAuth{}, newNicknameRegistry())
	for i := 0; i < cap(r.Inbox); i++ {
		r.Inbox <- leaveCmd{ConnID: "filler"}
	}
	r.Stop()

	done := make(chan struct{})
	go func() {
		r.postWait(leaveCmd{ConnID: "late"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("postWait blocked on a stopped room with a full inbox")
	}
}

func TestEventsBeforeRegistrationAreIgnored(t *testing.T) {
	r := startRoom(t, testConfig())
	alice := admit(t, r, "c1", "alice")

	r.post(chatCmd{ConnID: "ghost", Message: "boo"})
	r.post(moveCmd{ConnID: "ghost", Msg: moveMessage{X: float64(5)}})
	expectNo(t, alice, evtChat, 200*time.Millisecond)
}
