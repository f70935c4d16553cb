package server

// PlayerColors is the cosmetic color set, one opaque value per body part.
// Accepted verbatim from the client.
type PlayerColors struct {
	Head  string `json:"head"`
	Torso string `json:"torso"`
	Arms  string `json:"arms"`
	Legs  string `json:"legs"`
}

func defaultColors() PlayerColors {
	return PlayerColors{
		Head:  "#f5c542",
		Torso: "#2e6ddf",
		Arms:  "#f5c542",
		Legs:  "#3cb043",
	}
}

// PlayerState is the authoritative record for one admitted connection.
// It is owned by the room goroutine and mutated only there.
type PlayerState struct {
	ID       string       `json:"id"`
	Nickname string       `json:"nickname"`
	Room     string       `json:"room"`
	X        float64      `json:"x"`
	Y        float64      `json:"y"`
	Z        float64      `json:"z"`
	Rotation float64      `json:"rotation"`
	IsMoving bool         `json:"isMoving"`
	IsInAir  bool         `json:"isInAir"`
	Colors   PlayerColors `json:"colors"`
	ToolID   string       `json:"toolId,omitempty"`
	HatID    string       `json:"hatId,omitempty"`
}

// newPlayerState builds the default spawn pose: standing at (0, 3, 0)
// facing rotation 0, stock colors, empty hands, no hat.
func newPlayerState(id, nickname, room string) *PlayerState {
	return &PlayerState{
		ID:       id,
		Nickname: nickname,
		Room:     room,
		X:        0,
		Y:        3,
		Z:        0,
		Colors:   defaultColors(),
	}
}
