package session

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ndrandal/marketsim/internal/wire"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// controlMessage represents a client → server control message.
type controlMessage struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols,omitempty"`
	Symbol  string   `json:"symbol,omitempty"`
}

// Handler creates the HTTP handler for WebSocket upgrades.
func Handler(mgr *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			mgr.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
			return
		}

		client := mgr.Register(conn)

		go writePump(client)
		go readPump(client, mgr)
	}
}

// readPump processes incoming control messages from the client.
func readPump(c *Client, mgr *Manager) {
	defer mgr.Unregister(c)

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				mgr.log.Warn().Err(err).Uint64("client", c.ID).Msg("read error")
			}
			return
		}

		var ctrl controlMessage
		if err := json.Unmarshal(message, &ctrl); err != nil {
			mgr.log.Debug().Err(err).Uint64("client", c.ID).Msg("invalid control message")
			continue
		}

		handleControl(c, mgr, &ctrl)
	}
}

// handleControl processes a parsed control message.
func handleControl(c *Client, mgr *Manager, ctrl *controlMessage) {
	switch ctrl.Action {
	case "subscribe":
		symbols, all := mgr.ResolveSymbols(ctrl.Symbols)
		if all {
			c.SubscribeAll()
			mgr.log.Info().Uint64("client", c.ID).Msg("subscribed to all symbols")
			mgr.SendToClient(c, mgr.Directory(nil, true))
		} else if len(symbols) > 0 {
			c.Subscribe(symbols)
			mgr.log.Info().Uint64("client", c.ID).Strs("symbols", symbols).Msg("subscribed")
			mgr.SendToClient(c, mgr.Directory(symbols, false))
		}

	case "unsubscribe":
		c.Unsubscribe(ctrl.Symbols)
		mgr.log.Info().Uint64("client", c.ID).Strs("symbols", ctrl.Symbols).Msg("unsubscribed")

	case "select":
		if ctrl.Symbol == "" {
			return
		}
		mgr.market.SetSelected(ctrl.Symbol)
		mgr.log.Info().Uint64("client", c.ID).Str("symbol", ctrl.Symbol).Msg("selection changed")
		mgr.BroadcastStatus(wire.StatusSelected, ctrl.Symbol)

	default:
		mgr.log.Debug().Uint64("client", c.ID).Str("action", ctrl.Action).Msg("unknown action")
	}
}

// writePump sends messages from the send channel to the WebSocket.
func writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data, ok := <-c.SendCh():
			if !ok {
				return
			}
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.Done():
			return
		}
	}
}
