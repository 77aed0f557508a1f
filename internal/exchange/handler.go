package exchange

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bookiez/backend/internal/auth"
	"github.com/bookiez/backend/internal/httpx"
	"github.com/bookiez/backend/internal/models"
)

// Handler holds exchange HTTP handlers.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Create requests an exchange for a book.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.ExchangeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	ex, err := h.svc.Request(r.Context(), auth.AccountID(r.Context()), req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message":  "Exchange request sent successfully",
		"exchange": ex,
	})
}

// List returns sent or received requests (?type=sent|received).
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, err := httpx.ParsePage(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	page, err := h.svc.List(r.Context(), auth.AccountID(r.Context()), r.URL.Query().Get("type"), p)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, page)
}

// Get returns one exchange; participants only.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ex, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"), auth.AccountID(r.Context()))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ex)
}

// History returns the status history of one exchange; participants only.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.History(r.Context(), chi.URLParam(r, "id"), auth.AccountID(r.Context()))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// UpdateStatus accepts, rejects or completes a request; book owner only.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req models.StatusUpdate
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	ex, err := h.svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), auth.AccountID(r.Context()), req.Status)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Exchange status updated successfully",
		"exchange": ex,
	})
}

// Delete withdraws a request; requester only.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), auth.AccountID(r.Context())); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteMessage(w, http.StatusOK, "Exchange request deleted successfully")
}
