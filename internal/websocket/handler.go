package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	gw "github.com/gorilla/websocket"

	"github.com/Abiet55/testtestbot/internal/order"
)

type Conn = gw.Conn

var upgrader = gw.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Handler struct {
	hub    *Hub
	store  order.Store
	logger *slog.Logger
}

func NewHandler(hub *Hub, store order.Store) *Handler {
	return &Handler{hub: hub, store: store, logger: slog.Default()}
}

// ServeWS subscribes the calling user to live status updates for one of
// their own orders. The current status is sent immediately on connect.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	orderID, err := strconv.ParseInt(r.PathValue("orderID"), 10, 64)
	if err != nil {
		_ = conn.Close()
		return
	}

	userID, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	if err != nil {
		_ = conn.Close()
		return
	}

	o, err := h.store.Get(r.Context(), orderID)
	if err != nil || o.UserID != userID {
		_ = conn.Close()
		return
	}

	client := &Client{
		hub:     h.hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		orderID: orderID,
	}

	select {
	case client.hub.register <- client:
	case <-client.hub.done:
		_ = conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()

	upd := StatusUpdate{OrderID: orderID, Status: string(o.Status)}
	if b, err := json.Marshal(upd); err == nil {
		select {
		case client.send <- b:
		case <-time.After(1 * time.Second):
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	defer func() { _ = c.conn.Close() }()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(gw.TextMessage, msg); err != nil {
			return
		}
	}
}
