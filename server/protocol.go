package server

import (
	"encoding/json"
	"fmt"
)

// Envelope is the wire frame for every message in both directions:
// a named event plus a JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client -> server event names.
const (
	evtRegister      = "register"
	evtChat          = "chat"
	evtPlayerMove    = "playerMove"
	evtCustomize     = "playerCustomize"
	evtEquipHat      = "equipHat"
	evtEquipTool     = "equipTool"
	evtUnequipTool   = "unequipTool"
	evtDance         = "dance"
	evtStopDance     = "stopDance"
	evtLaunchRocket  = "launchRocket"
	evtExplosion     = "explosion"
	evtPlayerHit     = "playerHit"
	evtPlayerRagdoll = "playerRagdoll"
	evtDaniel        = "danielCommand"
	evtAdminExplode  = "adminExplode"
	evtAdminFly      = "adminFly"
)

// Server -> client event names.
const (
	evtInitialPlayers = "initialPlayers"
	evtPlayerJoined   = "playerJoined"
	evtPlayerLeft     = "playerLeft"
	evtGameState      = "gameState"
	evtRemoteEquip    = "remoteEquip"
	evtRemoteUnequip  = "remoteUnequip"
	evtHatChanged     = "playerHatChanged"
	evtSpawnRocket    = "spawnRocket"
	evtPlayerDied     = "playerDied"
	evtDanielEvent    = "danielEvent"
	evtNicknameError  = "nicknameError"
)

type registerMessage struct {
	Nickname string `json:"nickname"`
}

// moveMessage carries untrusted client input. Numeric and boolean fields
// are decoded as `any` so that junk values coerce to safe defaults in the
// sanitizer instead of failing the whole unmarshal.
type moveMessage struct {
	X        any `json:"x"`
	Y        any `json:"y"`
	Z        any `json:"z"`
	Rotation any `json:"rotation"`
	IsMoving any `json:"isMoving"`
	IsInAir  any `json:"isInAir"`
}

type hatMessage struct {
	HatID string `json:"hatId"`
}

type hitMessage struct {
	Killer string `json:"killer"`
	Victim string `json:"victim"`
}

type adminTargetMessage struct {
	Target string `json:"target"`
}

type chatBroadcast struct {
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
	Message  string `json:"message"`
}

type toolBroadcast struct {
	PlayerID string `json:"playerId"`
	Tool     string `json:"tool"`
}

type hatBroadcast struct {
	PlayerID string `json:"playerId"`
	HatID    string `json:"hatId"`
}

type diedBroadcast struct {
	Killer string `json:"killer"`
	Victim string `json:"victim"`
}

func encodeEvent(event string, payload any) ([]byte, error) {
	if event == "" {
		return nil, fmt.Errorf("encode: empty event name")
	}
	env := Envelope{Event: event}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Data = b
	}
	return json.Marshal(env)
}

func decodeEnvelope(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, err
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("decode: missing event name")
	}
	return env, nil
}
