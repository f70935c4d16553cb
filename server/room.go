package server

import (
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"golang.org/x/time/rate"
)

// Conn is the outbound half of a client connection as the room sees it.
// Enqueue is best-effort: false means the frame was dropped instead of
// queued, which is acceptable for snapshots because a fresh one arrives on
// the next tick.
type Conn interface {
	Enqueue(b []byte) bool
	Close()
}

// Commands posted to the room inbox. Every mutation of room state flows
// through these, so the single Run goroutine is the only writer.
type joinCmd struct {
	ConnID   string
	Nickname string
	Conn     Conn
}

type leaveCmd struct {
	ConnID string
}

type moveCmd struct {
	ConnID string
	Msg    moveMessage
}

type customizeCmd struct {
	ConnID string
	Colors PlayerColors
}

type chatCmd struct {
	ConnID  string
	Message string
}

type toolCmd struct {
	ConnID string
	Tool   string
	Equip  bool
}

type danceCmd struct {
	ConnID string
	Stop   bool
}

type hatCmd struct {
	ConnID string
	HatID  string
}

// relayCmd carries fire-and-forget payloads (rockets, explosions,
// ragdolls) the server fans out verbatim without inspecting.
type relayCmd struct {
	ConnID string
	Event  string
	Data   json.RawMessage
}

type hitCmd struct {
	ConnID string
	Killer string
	Victim string
}

type danielCmd struct {
	ConnID string
}

type adminCmd struct {
	ConnID string
	Event  string
	Target string
}

// playerSlot bundles one admitted player's state with its connection and
// rate limiters.
type playerSlot struct {
	state         *PlayerState
	conn          Conn
	moveLimiter   *rate.Limiter
	danielLimiter *rate.Limiter
}

// Room owns the authoritative player state for one logical partition of
// the world. All state lives behind a single goroutine (Run) that drains
// the Inbox and fires the broadcast tick, so no locks guard the maps.
type Room struct {
	Name  string
	Inbox chan any

	cfg      *Config
	auth     AuthPolicy
	registry *nicknameRegistry
	players  map[string]*playerSlot
	metrics  *RoomMetrics

	population atomic.Int64
	quit       chan struct{}
	quitOnce   sync.Once
}

func newRoom(name string, cfg *Config, auth AuthPolicy, registry *nicknameRegistry) *Room {
	return &Room{
		Name:     name,
		Inbox:    make(chan any, 256),
		cfg:      cfg,
		auth:     auth,
		registry: registry,
		players:  make(map[string]*playerSlot),
		metrics:  &RoomMetrics{},
		quit:     make(chan struct{}),
	}
}

// Stop terminates the Run loop. Idempotent.
func (r *Room) Stop() {
	r.quitOnce.Do(func() { close(r.quit) })
}

// NumPlayers reports the admitted player count without touching the
// goroutine-owned map.
func (r *Room) NumPlayers() int {
	return int(r.population.Load())
}

// post delivers a command without blocking; congestion drops the command
// rather than stalling the network reader.
func (r *Room) post(cmd any) {
	select {
	case r.Inbox <- cmd:
	default:
		r.metrics.IncInboxDiscarded()
	}
}

// postWait delivers a command that must not be lost (join, leave). A
// stopped room accepts nothing, so the send also yields on quit rather
// than blocking a reader goroutine forever during shutdown.
func (r *Room) postWait(cmd any) {
	select {
	case r.Inbox <- cmd:
	case <-r.quit:
	}
}

func (r *Room) dispatch(cmd any) {
	switch c := cmd.(type) {
	case joinCmd:
		r.handleJoin(c)
	case leaveCmd:
		r.handleLeave(c)
	case moveCmd:
		r.handleMove(c)
	case customizeCmd:
		r.handleCustomize(c)
	case chatCmd:
		r.handleChat(c)
	case toolCmd:
		r.handleTool(c)
	case danceCmd:
		r.handleDance(c)
	case hatCmd:
		r.handleHat(c)
	case relayCmd:
		r.handleRelay(c)
	case hitCmd:
		r.handleHit(c)
	case danielCmd:
		r.handleDaniel(c)
	case adminCmd:
		r.handleAdmin(c)
	}
}

// handleJoin admits a registering connection or rejects it terminally.
// Duplicate nicknames (server-wide), empty names, and oversized names all
// take the same path: nicknameError, then close.
func (r *Room) handleJoin(c joinCmd) {
	// Registration requires no existing PlayerState; an admitted
	// connection sending register again is ignored so it cannot stack a
	// second nickname onto the same connection.
	if _, admitted := r.players[c.ConnID]; admitted {
		return
	}
	nick := strings.TrimSpace(c.Nickname)
	admissible := nick != "" && utf8.RuneCountInString(nick) <= r.cfg.MaxNickname
	if !admissible || !r.registry.claim(c.ConnID, nick) {
		r.metrics.IncNicknameRejected()
		if b, err := encodeEvent(evtNicknameError, "nickname unavailable"); err == nil {
			c.Conn.Enqueue(b)
		}
		c.Conn.Close()
		Log.Infow("registration rejected", "room", r.Name, "nickname", nick)
		return
	}

	slot := &playerSlot{
		state:         newPlayerState(c.ConnID, nick, r.Name),
		conn:          c.Conn,
		moveLimiter:   rate.NewLimiter(rate.Limit(r.cfg.MoveRate), 1),
		danielLimiter: rate.NewLimiter(rate.Every(r.cfg.DanielCooldown), 1),
	}
	r.players[c.ConnID] = slot
	r.population.Store(int64(len(r.players)))

	if b, err := encodeEvent(evtInitialPlayers, r.snapshot()); err == nil {
		slot.conn.Enqueue(b)
	}
	r.fanOut(evtPlayerJoined, slot.state, c.ConnID)
	Log.Infow("player joined", "room", r.Name, "id", c.ConnID, "nickname", nick)
}

// handleLeave runs unconditionally on transport disconnect so a
// half-registered connection cannot leak a registry entry.
func (r *Room) handleLeave(c leaveCmd) {
	r.registry.release(c.ConnID)
	slot, ok := r.players[c.ConnID]
	if !ok {
		return
	}
	delete(r.players, c.ConnID)
	r.population.Store(int64(len(r.players)))
	slot.conn.Close()
	r.fanOut(evtPlayerLeft, c.ConnID, "")
	Log.Infow("player left", "room", r.Name, "id", c.ConnID, "nickname", slot.state.Nickname)
}

// handleMove applies sanitized movement to the sender's state. Position,
// rotation and the two animation flags are the only fields this path may
// touch. Packets above the per-connection rate are dropped without reply.
func (r *Room) handleMove(c moveCmd) {
	slot, ok := r.players[c.ConnID]
	if !ok {
		return
	}
	if !slot.moveLimiter.Allow() {
		r.metrics.IncMoveRateLimited()
		return
	}
	u := sanitizeMove(r.cfg, c.Msg)
	st := slot.state
	st.X, st.Y, st.Z = u.X, u.Y, u.Z
	st.Rotation = u.Rotation
	st.IsMoving = u.IsMoving
	st.IsInAir = u.IsInAir
	r.metrics.IncMoveAccepted()
}

// handleCustomize overwrites the cosmetic colors verbatim.
func (r *Room) handleCustomize(c customizeCmd) {
	slot, ok := r.players[c.ConnID]
	if !ok {
		return
	}
	slot.state.Colors = c.Colors
}

// snapshot copies every player record in the room, keyed by connection id.
func (r *Room) snapshot() map[string]PlayerState {
	out := make(map[string]PlayerState, len(r.players))
	for id, slot := range r.players {
		out[id] = *slot.state
	}
	return out
}

// fanOut encodes once and enqueues to every room member except `exclude`
// (empty string excludes nobody).
func (r *Room) fanOut(event string, payload any, exclude string) {
	b, err := encodeEvent(event, payload)
	if err != nil {
		Log.Errorw("encode failed", "event", event, "err", err)
		return
	}
	for id, slot := range r.players {
		if id == exclude {
			continue
		}
		if !slot.conn.Enqueue(b) {
			r.metrics.IncSendDropped()
		}
	}
}
