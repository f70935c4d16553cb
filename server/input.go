package server

import "math"

// moveUpdate is a sanitized playerMove, safe to write into a PlayerState.
type moveUpdate struct {
	X, Y, Z  float64
	Rotation float64
	IsMoving bool
	IsInAir  bool
}

// sanitizeMove bounds untrusted movement input to a plausible envelope.
// The server trusts the position values themselves (no physics
// re-simulation) but clamps them into the world and normalizes the yaw, so
// a buggy or hostile client cannot park a player outside the map. Junk
// fields coerce to zero values rather than rejecting the packet.
func sanitizeMove(cfg *Config, in moveMessage) moveUpdate {
	return moveUpdate{
		X:        clamp(coerceFloat(in.X), -cfg.WorldExtent, cfg.WorldExtent),
		Y:        clamp(coerceFloat(in.Y), 0, cfg.WorldHeight),
		Z:        clamp(coerceFloat(in.Z), -cfg.WorldExtent, cfg.WorldExtent),
		Rotation: normalizeYaw(coerceFloat(in.Rotation)),
		IsMoving: coerceBool(in.IsMoving),
		IsInAir:  coerceBool(in.IsInAir),
	}
}

// normalizeYaw maps any angle into (-pi, pi].
func normalizeYaw(r float64) float64 {
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	r = math.Mod(r, 2*math.Pi)
	for r > math.Pi {
		r -= 2 * math.Pi
	}
	for r <= -math.Pi {
		r += 2 * math.Pi
	}
	return r
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// coerceFloat accepts what JSON decoded into an `any` slot; anything that
// is not a finite number becomes 0.
func coerceFloat(v any) float64 {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func coerceBool(v any) bool {
	b, ok := v.(bool)
	return ok && b
}
