package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 90 * time.Second
	pingPeriod = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin policy is enforced by the HTTP CORS layer.
	},
}

// ServeConnection upgrades the request and runs the connection's read and
// write pumps. initialGeohash (from the ?geohash= query parameter) seeds the
// first subscription; further cells come via subscribe frames.
func ServeConnection(hub *Hub, w http.ResponseWriter, r *http.Request, playerID int64, initialGeohash string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Hub] Failed to upgrade websocket: %v", err)
		return
	}

	sub := NewSubscriber(playerID)
	if initialGeohash != "" {
		hub.Subscribe(initialGeohash, sub)
	}
	log.Printf("[Hub] Client connected (player %d). Total connections: %d",
		playerID, hub.TotalConnections())

	go writePump(conn, sub)
	go readPump(hub, conn, sub)
}

// writePump drains the subscriber queue onto the socket. The pump owns all
// writes to the connection.
func writePump(conn *websocket.Conn, sub *Subscriber) {
	pinger := time.NewTicker(pingPeriod)
	defer func() {
		pinger.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-sub.Out():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-pinger.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes inbound frames (subscribe/unsubscribe/ping) and tears
// the subscriber down on disconnect.
func readPump(hub *Hub, conn *websocket.Conn, sub *Subscriber) {
	defer func() {
		hub.Remove(sub)
		conn.Close()
		log.Printf("[Hub] Client disconnected (player %d). Total connections: %d",
			sub.PlayerID(), hub.TotalConnections())
	}()

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		sub.Touch()
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Hub] Read error: %v", err)
			}
			return
		}
		sub.Touch()
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			sub.send(Marshal(TypeError, ErrorPayload{Message: "malformed frame"}))
			continue
		}

		switch frame.Type {
		case TypePing:
			sub.send(Marshal(TypePong, struct{}{}))
		case TypeSubscribe, TypeUnsubscribe:
			var p subscribePayload
			if err := json.Unmarshal(frame.Data, &p); err != nil || p.Geohash == "" {
				sub.send(Marshal(TypeError, ErrorPayload{Message: "missing geohash"}))
				continue
			}
			if frame.Type == TypeSubscribe {
				hub.Subscribe(p.Geohash, sub)
			} else {
				hub.Unsubscribe(p.Geohash, sub)
			}
		default:
			sub.send(Marshal(TypeError, ErrorPayload{Message: "unknown frame type"}))
		}
	}
}
