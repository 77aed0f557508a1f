package relay

import (
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP requests to relay connections.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler accepts connections whose Origin is one of allowedOrigins.
// An empty list accepts any origin.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("relay upgrade: %v", err)
		return
	}

	c := newClient(h.hub, conn)
	if !h.hub.Register(c) {
		conn.Close()
		return
	}
	log.Printf("relay %s: connected", c.ID)

	go c.writePump()
	go c.readPump()
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if len(allowed) == 0 || origin == "" {
			return true
		}
		for _, a := range allowed {
			if strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}
