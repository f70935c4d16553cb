package server

import (
	"os"
	"strconv"
	"time"
)

// Config is the static server configuration. Defaults are compiled in and
// overridden by environment variables at startup; nothing here is
// renegotiated at runtime.
type Config struct {
	Addr        string  // HTTP listen address, e.g. ":3000"
	TickRate    int     // gameState broadcasts per second
	MoveRate    float64 // accepted playerMove packets per second per connection
	WorldExtent float64 // horizontal clamp bound: -WorldExtent <= x,z <= WorldExtent
	WorldHeight float64 // vertical clamp bound: 0 <= y <= WorldHeight
	DefaultRoom string  // room used when the handshake omits one
	MaxNickname int     // longest accepted nickname, in runes

	// Privileged nicknames. Authorization by plain nickname match is a
	// deliberately small trust model for a hobby deployment; see AuthPolicy.
	DanielName     string
	AdminName      string
	DanielCooldown time.Duration

	MapsDir string // directory for /api/maps JSON files
	WebDir  string // static assets served at /
	LogFile string
}

// DefaultConfig returns the stock configuration: 20 TPS broadcast, 30
// accepted moves per second, a 500x500 world footprint.
func DefaultConfig() *Config {
	return &Config{
		Addr:           ":3000",
		TickRate:       20,
		MoveRate:       30,
		WorldExtent:    250,
		WorldHeight:    500,
		DefaultRoom:    "main",
		MaxNickname:    24,
		DanielName:     "Daniel",
		AdminName:      "Lucas",
		DanielCooldown: 20 * time.Second,
		MapsDir:        "data/maps",
		WebDir:         "web",
		LogFile:        "app.log",
	}
}

// LoadConfig overlays environment variables onto the defaults.
func LoadConfig() *Config {
	cfg := DefaultConfig()
	if v := os.Getenv("ADDR"); v != "" {
		cfg.Addr = v
	} else if v := os.Getenv("PORT"); v != "" {
		cfg.Addr = ":" + v
	}
	if v, ok := envInt("TICK_RATE"); ok && v > 0 {
		cfg.TickRate = v
	}
	if v, ok := envFloat("MOVE_RATE"); ok && v > 0 {
		cfg.MoveRate = v
	}
	if v, ok := envFloat("WORLD_EXTENT"); ok && v > 0 {
		cfg.WorldExtent = v
	}
	if v, ok := envFloat("WORLD_HEIGHT"); ok && v > 0 {
		cfg.WorldHeight = v
	}
	if v := os.Getenv("DEFAULT_ROOM"); v != "" {
		cfg.DefaultRoom = v
	}
	if v := os.Getenv("DANIEL_NAME"); v != "" {
		cfg.DanielName = v
	}
	if v := os.Getenv("ADMIN_NAME"); v != "" {
		cfg.AdminName = v
	}
	if v := os.Getenv("MAPS_DIR"); v != "" {
		cfg.MapsDir = v
	}
	if v := os.Getenv("WEB_DIR"); v != "" {
		cfg.WebDir = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	return cfg
}

// TickInterval converts the tick rate into the broadcast timer period.
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

func envInt(key string) (int, bool) {
	v, err := strconv.Atoi(os.Getenv(key))
	return v, err == nil
}

func envFloat(key string) (float64, bool) {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	return v, err == nil
}
