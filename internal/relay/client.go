package relay

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bookiez/backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameBytes  = 8 << 10
	maxMessageRune = 2000
)

// Client is one WebSocket connection. send carries room frames and is
// closed by the hub on disconnect; direct carries replies to this client
// alone and is never closed.
type Client struct {
	ID     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	direct chan []byte
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:     uuid.NewString(),
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, clientBuffer),
		direct: make(chan []byte, clientBuffer),
	}
}

// readPump turns inbound frames into hub operations. It owns the read side
// of the connection and unregisters the client when the peer goes away.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("relay %s: read: %v", c.ID, err)
			}
			return
		}
		c.handle(frame)
	}
}

func (c *Client) handle(frame []byte) {
	env, err := Decode(frame)
	if err != nil {
		c.reply(EventError, map[string]string{"message": "malformed frame"})
		return
	}

	switch env.Event {
	case EventJoin:
		room := roomID(env.Data)
		if room == "" {
			c.reply(EventError, map[string]string{"message": "join_exchange requires a room id"})
			return
		}
		c.hub.Join(c, room)
	case EventLeave:
		if room := roomID(env.Data); room != "" {
			c.hub.Leave(c, room)
		}
	case EventSend:
		var msg models.ChatMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil || msg.ExchangeID == "" {
			c.reply(EventError, map[string]string{"message": "send_message requires exchangeId"})
			return
		}
		if len([]rune(msg.Message)) > maxMessageRune {
			c.reply(EventError, map[string]string{"message": "message too long"})
			return
		}
		if msg.Timestamp == "" {
			msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
		}
		if err := c.hub.Publish(msg.ExchangeID, EventReceive, msg); err != nil {
			log.Printf("relay %s: publish: %v", c.ID, err)
		}
	default:
		c.reply(EventError, map[string]string{"message": "unknown event " + env.Event})
	}
}

// reply queues a frame for this client only. It never blocks.
func (c *Client) reply(event string, data interface{}) {
	frame, err := Encode(event, data)
	if err != nil {
		return
	}
	select {
	case c.direct <- frame:
	default:
	}
}

// writePump drains the send queue and keeps the connection alive with
// pings. It owns the write side of the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case frame := <-c.direct:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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
