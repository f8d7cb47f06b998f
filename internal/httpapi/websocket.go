package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/TheRemyyy/nyro-db/internal/broadcast"
	"github.com/TheRemyyy/nyro-db/internal/logging"
)

// writeWait bounds how long a write to a slow client may block before the
// connection is dropped, the same defensive bound the teacher's
// pkg/core/eventbus_ws.go applies to its write pump.
const writeWait = 10 * time.Second

// pingInterval keeps idle connections alive through intermediaries.
const pingInterval = 30 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The realtime surface is a read-only push stream; any origin may
	// subscribe (the API key, when enabled, already gates the upgrade).
	CheckOrigin: func(r *http.Request) bool { return true },
}

// serveWebSocket upgrades the connection and pumps every broadcast event
// to it as a text frame until a write to the connection fails (events
// that overflow the subscription's ring are dropped, the connection is
// kept), bridging internal/broadcast.Broadcaster to
// gorilla/websocket (grounded on the teacher's
// WebSocketEventBusBridge, pkg/core/eventbus_ws.go).
func serveWebSocket(bcast *broadcast.Broadcaster, log logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warnf("httpapi: websocket upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		sub := bcast.Subscribe()
		defer sub.Close()

		// Drain client frames so the close handshake is serviced; this
		// surface is publish-only, so anything the client sends is
		// ignored. A read error (including a client-initiated close)
		// closes the connection, so the write loop below exits on its
		// next write (an event or the next ping).
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					conn.Close()
					return
				}
			}
		}()

		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-sub.Events():
				if !ok {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, []byte(event)); err != nil {
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
