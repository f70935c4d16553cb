package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// ClientConn wraps a websocket with a buffered outbound queue so the room
// loop never blocks on a slow client.
type ClientConn struct {
	ws   *websocket.Conn
	send chan []byte
	once sync.Once
}

func NewClientConn(ws *websocket.Conn) *ClientConn {
	return &ClientConn{
		ws:   ws,
		send: make(chan []byte, 64),
	}
}

// Enqueue queues a frame for delivery; a full queue drops the frame and
// returns false.
func (c *ClientConn) Enqueue(b []byte) bool {
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// Close stops the write pump, which drains the queue (so a final frame
// like nicknameError still goes out) and then closes the socket.
// Idempotent.
func (c *ClientConn) Close() {
	c.once.Do(func() { close(c.send) })
}

func (c *ClientConn) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump parses inbound envelopes into room commands. On any read error
// it posts the leave command, which must reach the room, so that send
// blocks if it has to.
func (c *ClientConn) readPump(room *Room, connID string) {
	defer func() {
		c.Close()
		room.postWait(leaveCmd{ConnID: connID})
	}()
	c.ws.SetReadLimit(1 << 16)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		env, err := decodeEnvelope(payload)
		if err != nil {
			continue
		}
		c.route(room, connID, env)
	}
}

// route converts one envelope into a typed command. Unknown events and
// undecodable payloads are dropped here, before they reach the room loop.
func (c *ClientConn) route(room *Room, connID string, env Envelope) {
	switch env.Event {
	case evtRegister:
		var msg registerMessage
		if json.Unmarshal(env.Data, &msg) != nil {
			return
		}
		room.postWait(joinCmd{ConnID: connID, Nickname: msg.Nickname, Conn: c})
	case evtPlayerMove:
		var msg moveMessage
		if json.Unmarshal(env.Data, &msg) != nil {
			return
		}
		room.post(moveCmd{ConnID: connID, Msg: msg})
	case evtCustomize:
		var colors PlayerColors
		if json.Unmarshal(env.Data, &colors) != nil {
			return
		}
		room.post(customizeCmd{ConnID: connID, Colors: colors})
	case evtChat:
		var text string
		if json.Unmarshal(env.Data, &text) != nil {
			return
		}
		room.post(chatCmd{ConnID: connID, Message: text})
	case evtEquipTool, evtUnequipTool:
		var tool string
		if json.Unmarshal(env.Data, &tool) != nil {
			return
		}
		room.post(toolCmd{ConnID: connID, Tool: tool, Equip: env.Event == evtEquipTool})
	case evtDance, evtStopDance:
		room.post(danceCmd{ConnID: connID, Stop: env.Event == evtStopDance})
	case evtEquipHat:
		var msg hatMessage
		if json.Unmarshal(env.Data, &msg) != nil {
			return
		}
		room.post(hatCmd{ConnID: connID, HatID: msg.HatID})
	case evtLaunchRocket:
		room.post(relayCmd{ConnID: connID, Event: evtSpawnRocket, Data: env.Data})
	case evtExplosion:
		room.post(relayCmd{ConnID: connID, Event: evtExplosion, Data: env.Data})
	case evtPlayerRagdoll:
		room.post(relayCmd{ConnID: connID, Event: evtPlayerRagdoll, Data: env.Data})
	case evtPlayerHit:
		var msg hitMessage
		if json.Unmarshal(env.Data, &msg) != nil {
			return
		}
		room.post(hitCmd{ConnID: connID, Killer: msg.Killer, Victim: msg.Victim})
	case evtDaniel:
		room.post(danielCmd{ConnID: connID})
	case evtAdminExplode, evtAdminFly:
		var msg adminTargetMessage
		if json.Unmarshal(env.Data, &msg) != nil {
			return
		}
		room.post(adminCmd{ConnID: connID, Event: env.Event, Target: msg.Target})
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients are served from arbitrary hosts during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS upgrades the connection and binds it to the room named in the
// handshake query (?room=, default room otherwise). Registration happens
// later, over the socket.
func (m *RoomManager) HandleWS(w http.ResponseWriter, req *http.Request) {
	ws, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		Log.Warnw("ws upgrade failed", "err", err)
		return
	}
	room := m.GetOrCreateRoom(req.URL.Query().Get("room"))
	client := NewClientConn(ws)
	connID := uuid.NewString()
	go client.writePump()
	go client.readPump(room, connID)
}
