package broadcaster

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const writeWait = 10 * time.Second
const pingPeriod = 30 * time.Second

// ServeWS upgrades an HTTP request to a WebSocket connection and streams
// every envelope published for timeframe until the connection closes or
// ctx-equivalent (conn error) ends the pump. Grounded on the teacher's
// Client.writePump: a ticker-driven ping plus one text frame written per
// envelope; envelopes are not coalesced.
func (b *Broadcaster) ServeWS(w http.ResponseWriter, r *http.Request, timeframe string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if b.Logger != nil {
			b.Logger.Warn("websocket upgrade failed", "error", err)
		}
		return
	}

	id, ch := b.Register(timeframe)
	defer b.Unregister(timeframe, id)

	writePump(conn, ch, b.Logger)
}

func writePump(conn *websocket.Conn, ch <-chan Envelope, logger *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case env, ok := <-ch:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, env.JSON()); err != nil {
				if logger != nil {
					logger.Warn("websocket write failed, closing", "error", err)
				}
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
