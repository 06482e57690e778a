package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gorilla/websocket"

	"github.com/crowngambit/api/internal/service"
	"github.com/crowngambit/api/pkg/gambit"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = 54 * time.Second // Must be less than pongWait
	maxMsgSize  = 4096
	sendBufSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS handled by middleware; tighten in production
	},
}

// WSHandler handles WebSocket connections.
type WSHandler struct {
	hub      *Hub
	matchSvc *service.MatchService
}

// NewWSHandler creates a WSHandler.
func NewWSHandler(hub *Hub, matchSvc *service.MatchService) *WSHandler {
	return &WSHandler{hub: hub, matchSvc: matchSvc}
}

// ServeWS handles GET /api/v1/ws — upgrades to WebSocket.
// Identity via ?viewer= query parameter; the server decides the viewer's
// role per match at subscribe time, never the client.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	viewerID := r.URL.Query().Get("viewer")
	if viewerID == "" {
		http.Error(w, `{"error":"missing viewer parameter"}`, http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSConn{
		conn:     conn,
		viewerID: viewerID,
		send:     make(chan []byte, sendBufSize),
		roles:    make(map[string]gambit.Role),
	}
	h.hub.Register(client)

	// Send a welcome message so the client can confirm the connection is live.
	welcome, _ := json.Marshal(WSEvent{Type: "connected", Data: map[string]any{}})
	client.send <- welcome

	go h.writePump(client)
	go h.readPump(client)

	log.Info().Str("viewerId", viewerID).Int("total", h.hub.ConnectionCount()).Msg("WebSocket client connected")
}

// readPump reads messages from the WebSocket connection.
func (h *WSHandler) readPump(c *WSConn) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
		log.Info().Str("viewerId", c.viewerID).Msg("WebSocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("viewerId", c.viewerID).Msg("WebSocket unexpected close")
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.MatchID == "" {
			continue
		}

		switch msg.Action {
		case "subscribe":
			h.subscribe(c, msg.MatchID)
		case "unsubscribe":
			h.hub.Unsubscribe(c, msg.MatchID)
		case "resync":
			h.sendSnapshot(c, msg.MatchID)
		}
	}
}

// subscribe resolves the viewer's role, joins the match channel and
// sends a full snapshot so the client starts from a known sequence.
func (h *WSHandler) subscribe(c *WSConn, matchID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	role, err := h.matchSvc.RoleOf(ctx, matchID, c.viewerID)
	if err != nil {
		h.sendError(c, matchID, err)
		return
	}
	h.hub.Subscribe(c, matchID, role)
	h.sendSnapshot(c, matchID)
}

// sendSnapshot pushes the viewer's full filtered state for one match.
// Clients use this as the recovery path whenever they detect a sequence
// gap.
func (h *WSHandler) sendSnapshot(c *WSConn, matchID string) {
	role, ok := h.hub.RoleOf(c, matchID)
	if !ok {
		h.sendError(c, matchID, service.ErrMatchNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fs, err := h.matchSvc.StateFor(ctx, matchID, role)
	if err != nil {
		h.sendError(c, matchID, err)
		return
	}
	data, err := json.Marshal(WSEvent{Type: service.EventState, MatchID: matchID, Data: fs})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (h *WSHandler) sendError(c *WSConn, matchID string, err error) {
	data, merr := json.Marshal(WSEvent{Type: "error", MatchID: matchID, Data: map[string]string{"error": err.Error()}})
	if merr != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// writePump writes messages to the WebSocket connection.
func (h *WSHandler) writePump(c *WSConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Drain queued messages into the same write
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte("\n"))
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
