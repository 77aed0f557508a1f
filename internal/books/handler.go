package books

import (
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bookiez/backend/internal/apperr"
	"github.com/bookiez/backend/internal/auth"
	"github.com/bookiez/backend/internal/httpx"
	"github.com/bookiez/backend/internal/models"
)

// Handler holds listing HTTP handlers.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List returns available books filtered by genre, condition and search.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, err := httpx.ParsePage(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	q := Query{
		Genre:     r.URL.Query().Get("genre"),
		Condition: r.URL.Query().Get("condition"),
		Search:    r.URL.Query().Get("search"),
	}
	if q.Genre != "" && !httpx.IsOneOf(q.Genre, models.Genres) {
		httpx.WriteError(w, r, apperr.Invalid("genre", "genre is not a known genre"))
		return
	}
	if q.Condition != "" && !httpx.IsOneOf(q.Condition, models.Conditions) {
		httpx.WriteError(w, r, apperr.Invalid("condition", "condition is not a known condition"))
		return
	}

	page, err := h.svc.List(r.Context(), q, p)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, page)
}

// Mine returns the authenticated account's books.
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	p, err := httpx.ParsePage(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	page, err := h.svc.ListByOwner(r.Context(), auth.AccountID(r.Context()), p)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, page)
}

// Get returns a single book.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

// Create adds a book owned by the authenticated account.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.BookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	b, err := h.svc.Create(r.Context(), auth.AccountID(r.Context()), req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Book created successfully",
		"book":    b,
	})
}

// Update edits a book; owner only.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.BookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	b, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), auth.AccountID(r.Context()), req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Book updated successfully",
		"book":    b,
	})
}

// Delete removes a book; owner only.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), auth.AccountID(r.Context())); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteMessage(w, http.StatusOK, "Book deleted successfully")
}

// UploadImage accepts a multipart "image" field; owner only.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxImageBytes+1<<20)
	file, header, err := r.FormFile("image")
	if err != nil {
		httpx.WriteError(w, r, apperr.Invalid("image", "image file is required"))
		return
	}
	defer file.Close()

	b, err := h.svc.UploadImage(r.Context(),
		chi.URLParam(r, "id"), auth.AccountID(r.Context()),
		file, header.Size, header.Header.Get("Content-Type"), header.Filename,
	)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Image uploaded successfully",
		"book":    b,
	})
}

// DownloadImage streams the stored cover image.
func (h *Handler) DownloadImage(w http.ResponseWriter, r *http.Request) {
	rc, contentType, size, err := h.svc.OpenImage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if _, err := io.Copy(w, rc); err != nil {
		log.Printf("stream image: %v", err)
	}
}
