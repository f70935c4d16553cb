package server

import (
	"encoding/json"
	"net/http"
	"sync"
)

// RoomManager owns the room map and the server-wide nickname registry.
// One instance per server; handlers receive it explicitly so independent
// instances (tests, embedded servers) never share state.
type RoomManager struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	cfg      *Config
	auth     AuthPolicy
	registry *nicknameRegistry
}

func NewRoomManager(cfg *Config, auth AuthPolicy) *RoomManager {
	return &RoomManager{
		rooms:    make(map[string]*Room),
		cfg:      cfg,
		auth:     auth,
		registry: newNicknameRegistry(),
	}
}

// GetOrCreateRoom returns the named room, creating and starting it on
// first use. An empty name maps to the configured default room.
func (m *RoomManager) GetOrCreateRoom(name string) *Room {
	if name == "" {
		name = m.cfg.DefaultRoom
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[name]
	if !ok {
		r = newRoom(name, m.cfg, m.auth, m.registry)
		m.rooms[name] = r
		go r.Run()
	}
	return r
}

// PlayerCount reports admitted players across all rooms.
func (m *RoomManager) PlayerCount() int {
	return m.registry.count()
}

// StopAll terminates every room loop. Used on shutdown.
func (m *RoomManager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rooms {
		r.Stop()
	}
}

// RoomInfo is one entry in the room listing API.
type RoomInfo struct {
	Name    string `json:"name"`
	Players int    `json:"players"`
}

// ListRooms returns every active room with its player count.
func (m *RoomManager) ListRooms() []RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RoomInfo, 0, len(m.rooms))
	for name, r := range m.rooms {
		out = append(out, RoomInfo{Name: name, Players: r.NumPlayers()})
	}
	return out
}

// HandleHealthz reports liveness plus the connected-player count.
// GET /healthz
func (m *RoomManager) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"players": m.PlayerCount(),
	})
}

// HandleRooms lists active rooms.
// GET /api/rooms
func (m *RoomManager) HandleRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m.ListRooms())
}
