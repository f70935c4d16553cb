package server

import "sync"

// nicknameRegistry enforces server-wide nickname uniqueness. It is the one
// piece of state shared across room goroutines, so it carries its own
// mutex; claims are atomic, two racing claims for the same name resolve to
// exactly one winner.
type nicknameRegistry struct {
	mu     sync.Mutex
	byConn map[string]string // connection id -> nickname
	active map[string]string // nickname -> connection id
}

func newNicknameRegistry() *nicknameRegistry {
	return &nicknameRegistry{
		byConn: make(map[string]string),
		active: make(map[string]string),
	}
}

// claim records nickname as held by connID. Returns false if the nickname
// is already active anywhere on the server, or if connID already holds a
// nickname; a connection never holds two, so release always frees
// everything the connection claimed.
func (r *nicknameRegistry) claim(connID, nickname string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.active[nickname]; taken {
		return false
	}
	if _, holding := r.byConn[connID]; holding {
		return false
	}
	r.active[nickname] = connID
	r.byConn[connID] = nickname
	return true
}

// release drops whatever nickname connID holds. Safe to call for
// connections that never completed registration.
func (r *nicknameRegistry) release(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nick, ok := r.byConn[connID]
	if !ok {
		return
	}
	delete(r.byConn, connID)
	if r.active[nick] == connID {
		delete(r.active, nick)
	}
}

// count reports the number of admitted players server-wide.
func (r *nicknameRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byConn)
}
