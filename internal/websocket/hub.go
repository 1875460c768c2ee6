package websocket

import (
	"context"
	"encoding/json"

	"github.com/Abiet55/testtestbot/internal/order"
)

type StatusUpdate struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
}

type Client struct {
	hub     *Hub
	conn    *Conn
	send    chan []byte
	orderID int64
}

// Hub fans committed order transitions out to the websocket clients
// watching each order. All client bookkeeping happens on the Run goroutine.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan StatusUpdate
	done       chan struct{}
	clients    map[int64]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan StatusUpdate),
		done:       make(chan struct{}),
		clients:    make(map[int64]map[*Client]bool),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			set, ok := h.clients[c.orderID]
			if !ok {
				set = make(map[*Client]bool)
				h.clients[c.orderID] = set
			}
			set[c] = true
		case c := <-h.unregister:
			if set, ok := h.clients[c.orderID]; ok {
				if _, exists := set[c]; exists {
					delete(set, c)
					close(c.send)
				}
				if len(set) == 0 {
					delete(h.clients, c.orderID)
				}
			}
		case upd := <-h.broadcast:
			msg, _ := json.Marshal(upd)
			if set, ok := h.clients[upd.OrderID]; ok {
				for c := range set {
					select {
					case c.send <- msg:
					default:
						delete(set, c)
						close(c.send)
					}
				}
			}
		case <-ctx.Done():
			close(h.done)
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			return
		}
	}
}

// Broadcast hands the update to the Run goroutine without blocking the
// caller. Updates arriving after shutdown are dropped.
func (h *Hub) Broadcast(u StatusUpdate) {
	go func() {
		select {
		case h.broadcast <- u:
		case <-h.done:
		}
	}()
}

// OrderStatusChanged satisfies order.StatusListener, so the workflow can
// push every committed transition to watchers without blocking.
func (h *Hub) OrderStatusChanged(o *order.Order) {
	h.Broadcast(StatusUpdate{OrderID: o.ID, Status: string(o.Status)})
}
