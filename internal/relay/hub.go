// Package relay is the realtime chat bridge. A Hub groups WebSocket
// clients into rooms keyed by exchange id and fans frames out to every
// member of a room. Delivery is fire-and-forget: a client that cannot keep
// up is disconnected rather than waited for.
package relay

import (
	"context"
	"errors"
)

const (
	clientBuffer    = 64
	broadcastBuffer = 256
)

// ErrHubStopped is returned by Publish after Run has returned.
var ErrHubStopped = errors.New("relay hub stopped")

// ErrHubBusy is returned by Publish when the broadcast queue is full.
var ErrHubBusy = errors.New("relay hub busy")

type membership struct {
	client *Client
	room   string
}

type roomFrame struct {
	room  string
	frame []byte
}

type sizeQuery struct {
	room  string
	reply chan int
}

// Hub owns room membership. All maps are touched only by the Run goroutine.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	join       chan membership
	leave      chan membership
	broadcast  chan roomFrame
	sizes      chan sizeQuery
	done       chan struct{}

	clients map[*Client]map[string]struct{}
	rooms   map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan membership),
		leave:      make(chan membership),
		broadcast:  make(chan roomFrame, broadcastBuffer),
		sizes:      make(chan sizeQuery),
		done:       make(chan struct{}),
		clients:    make(map[*Client]map[string]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
	}
}

// Run processes hub events until ctx is cancelled, then disconnects every
// client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = make(map[string]struct{})
		case c := <-h.unregister:
			h.drop(c)
		case m := <-h.join:
			rooms, ok := h.clients[m.client]
			if !ok {
				continue
			}
			rooms[m.room] = struct{}{}
			if h.rooms[m.room] == nil {
				h.rooms[m.room] = make(map[*Client]struct{})
			}
			h.rooms[m.room][m.client] = struct{}{}
		case m := <-h.leave:
			h.removeFromRoom(m.client, m.room)
			if rooms, ok := h.clients[m.client]; ok {
				delete(rooms, m.room)
			}
		case rf := <-h.broadcast:
			for c := range h.rooms[rf.room] {
				select {
				case c.send <- rf.frame:
				default:
					h.drop(c)
				}
			}
		case q := <-h.sizes:
			q.reply <- len(h.rooms[q.room])
		}
	}
}

// Publish sends an event to every client in room.
func (h *Hub) Publish(room, event string, data interface{}) error {
	frame, err := Encode(event, data)
	if err != nil {
		return err
	}
	return h.publishFrame(room, frame)
}

func (h *Hub) publishFrame(room string, frame []byte) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	select {
	case h.broadcast <- roomFrame{room: room, frame: frame}:
		return nil
	case <-h.done:
		return ErrHubStopped
	default:
		return ErrHubBusy
	}
}

// RoomSize returns the number of clients currently in room.
func (h *Hub) RoomSize(room string) int {
	q := sizeQuery{room: room, reply: make(chan int, 1)}
	select {
	case h.sizes <- q:
		return <-q.reply
	case <-h.done:
		return 0
	}
}

func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) Join(c *Client, room string) {
	select {
	case h.join <- membership{client: c, room: room}:
	case <-h.done:
	}
}

func (h *Hub) Leave(c *Client, room string) {
	select {
	case h.leave <- membership{client: c, room: room}:
	case <-h.done:
	}
}

func (h *Hub) drop(c *Client) {
	rooms, ok := h.clients[c]
	if !ok {
		return
	}
	for room := range rooms {
		h.removeFromRoom(c, room)
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) removeFromRoom(c *Client, room string) {
	members := h.rooms[room]
	if members == nil {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}
