package server

// Transient event fan-out. None of these handlers retain state beyond the
// two cosmetic fields noted below; a sender without a PlayerState (event
// raced past registration or disconnect) is ignored.

func (r *Room) handleChat(c chatCmd) {
	slot, ok := r.players[c.ConnID]
	if !ok {
		return
	}
	r.fanOut(evtChat, chatBroadcast{
		PlayerID: c.ConnID,
		Nickname: slot.state.Nickname,
		Message:  c.Message,
	}, "")
	r.metrics.IncEventRouted()
}

// handleTool relays equip/unequip to everyone else and records the tool on
// the player record so late joiners see it in their first snapshot.
func (r *Room) handleTool(c toolCmd) {
	slot, ok := r.players[c.ConnID]
	if !ok {
		return
	}
	event := evtRemoteUnequip
	if c.Equip {
		event = evtRemoteEquip
		slot.state.ToolID = c.Tool
	} else {
		slot.state.ToolID = ""
	}
	r.fanOut(event, toolBroadcast{PlayerID: c.ConnID, Tool: c.Tool}, c.ConnID)
	r.metrics.IncEventRouted()
}

func (r *Room) handleDance(c danceCmd) {
	if _, ok := r.players[c.ConnID]; !ok {
		return
	}
	event := evtDance
	if c.Stop {
		event = evtStopDance
	}
	r.fanOut(event, c.ConnID, c.ConnID)
	r.metrics.IncEventRouted()
}

// handleHat is the one event that both mutates state and echoes back to
// the sender, so every client (sender included) applies the hat the same
// way.
func (r *Room) handleHat(c hatCmd) {
	slot, ok := r.players[c.ConnID]
	if !ok {
		return
	}
	slot.state.HatID = c.HatID
	r.fanOut(evtHatChanged, hatBroadcast{PlayerID: c.ConnID, HatID: c.HatID}, "")
	r.metrics.IncEventRouted()
}

// handleRelay fans the payload out verbatim: rockets, explosions and
// ragdolls are client-simulated effects the server only distributes.
func (r *Room) handleRelay(c relayCmd) {
	if _, ok := r.players[c.ConnID]; !ok {
		return
	}
	r.fanOut(c.Event, c.Data, "")
	r.metrics.IncEventRouted()
}

func (r *Room) handleHit(c hitCmd) {
	if _, ok := r.players[c.ConnID]; !ok {
		return
	}
	r.fanOut(evtPlayerDied, diedBroadcast{Killer: c.Killer, Victim: c.Victim}, "")
	r.metrics.IncEventRouted()
}

// handleDaniel fires the celebration event, gated on the privileged
// nickname and a per-sender cooldown. Denials are silent.
func (r *Room) handleDaniel(c danielCmd) {
	slot, ok := r.players[c.ConnID]
	if !ok {
		return
	}
	if !r.auth.AllowDaniel(slot.state.Nickname) {
		r.metrics.IncAdminDenied()
		return
	}
	if !slot.danielLimiter.Allow() {
		return
	}
	r.fanOut(evtDanielEvent, nil, "")
	r.metrics.IncEventRouted()
}

// handleAdmin relays adminExplode/adminFly when the sender holds the admin
// nickname and the target nickname is present in this room. Anything else
// is silently ignored, so probing reveals nothing.
func (r *Room) handleAdmin(c adminCmd) {
	slot, ok := r.players[c.ConnID]
	if !ok {
		return
	}
	if !r.auth.AllowAdmin(slot.state.Nickname) {
		r.metrics.IncAdminDenied()
		return
	}
	found := false
	for _, s := range r.players {
		if s.state.Nickname == c.Target {
			found = true
			break
		}
	}
	if !found {
		return
	}
	r.fanOut(c.Event, adminTargetMessage{Target: c.Target}, "")
	r.metrics.IncEventRouted()
}
