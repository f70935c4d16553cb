package server

import "time"

// Run is the room's single-writer loop: commands and broadcast ticks
// interleave here and nowhere else touches room state. The tick fires at
// the configured rate regardless of input volume, which decouples inbound
// message rate from outbound snapshot rate.
func (r *Room) Run() {
	ticker := time.NewTicker(r.cfg.TickInterval())
	defer ticker.Stop()
	for {
		select {
		case <-r.quit:
			return
		case cmd := <-r.Inbox:
			r.dispatch(cmd)
		case <-ticker.C:
			start := time.Now()
			r.broadcastState()
			r.metrics.AddTick(time.Since(start).Nanoseconds())
		}
	}
}

// broadcastState pushes the full room snapshot to every member. Delivery
// is volatile: a member whose send queue is full misses this tick and
// catches up on the next one.
func (r *Room) broadcastState() {
	if len(r.players) == 0 {
		return
	}
	b, err := encodeEvent(evtGameState, r.snapshot())
	if err != nil {
		Log.Errorw("snapshot encode failed", "room", r.Name, "err", err)
		return
	}
	for _, slot := range r.players {
		if !slot.conn.Enqueue(b) {
			r.metrics.IncSendDropped()
		}
	}
}
