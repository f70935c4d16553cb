package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// RoomMetrics tracks per-room runtime counters for monitoring and tests.
// Counters are atomics because /metrics reads them off the HTTP goroutine
// while the room loop writes.
type RoomMetrics struct {
	TickCount        int64
	MovesAccepted    int64
	MovesRateLimited int64
	EventsRouted     int64
	SendsDropped     int64
	InboxDiscarded   int64
	NicknameRejected int64
	AdminDenied      int64
	TotalTickNs      int64
}

func (m *RoomMetrics) IncMoveAccepted()    { atomic.AddInt64(&m.MovesAccepted, 1) }
func (m *RoomMetrics) IncMoveRateLimited() { atomic.AddInt64(&m.MovesRateLimited, 1) }
func (m *RoomMetrics) IncEventRouted()     { atomic.AddInt64(&m.EventsRouted, 1) }
func (m *RoomMetrics) IncSendDropped()     { atomic.AddInt64(&m.SendsDropped, 1) }
func (m *RoomMetrics) IncInboxDiscarded()  { atomic.AddInt64(&m.InboxDiscarded, 1) }
func (m *RoomMetrics) IncNicknameRejected() {
	atomic.AddInt64(&m.NicknameRejected, 1)
}
func (m *RoomMetrics) IncAdminDenied() { atomic.AddInt64(&m.AdminDenied, 1) }

func (m *RoomMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot returns a read-only copy for HTTP output.
func (m *RoomMetrics) Snapshot() map[string]any {
	ticks := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if ticks > 0 {
		avgMs = float64(total) / float64(ticks) / 1e6
	}
	return map[string]any{
		"tick_count":         ticks,
		"moves_accepted":     atomic.LoadInt64(&m.MovesAccepted),
		"moves_rate_limited": atomic.LoadInt64(&m.MovesRateLimited),
		"events_routed":      atomic.LoadInt64(&m.EventsRouted),
		"sends_dropped":      atomic.LoadInt64(&m.SendsDropped),
		"inbox_discarded":    atomic.LoadInt64(&m.InboxDiscarded),
		"nickname_rejected":  atomic.LoadInt64(&m.NicknameRejected),
		"admin_denied":       atomic.LoadInt64(&m.AdminDenied),
		"avg_tick_ms":        avgMs,
	}
}

// HandleMetrics reports one room's counters.
// GET /metrics?room=main
func (m *RoomManager) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	room := m.GetOrCreateRoom(r.URL.Query().Get("room"))
	payload := map[string]any{
		"room":    room.Name,
		"players": room.NumPlayers(),
		"metrics": room.metrics.Snapshot(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
