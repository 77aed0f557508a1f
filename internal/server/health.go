package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bookiez/backend/internal/httpx"
)

// Pinger is anything whose connection state can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports liveness and the state of each backing connection. Only
// the document store decides the status code; the others are informative.
type Health struct {
	Mongo    Pinger
	Postgres Pinger
	Redis    Pinger
}

func (h Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	mongoState := state(ctx, h.Mongo)
	body := map[string]string{
		"status":   "ok",
		"database": mongoState,
		"postgres": state(ctx, h.Postgres),
		"redis":    state(ctx, h.Redis),
	}
	status := http.StatusOK
	if mongoState != "connected" {
		body["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, body)
}

func state(ctx context.Context, p Pinger) string {
	if p == nil {
		return "disconnected"
	}
	if err := p.Ping(ctx); err != nil {
		return "disconnected"
	}
	return "connected"
}
