// Package server assembles the HTTP router.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bookiez/backend/internal/auth"
	"github.com/bookiez/backend/internal/books"
	"github.com/bookiez/backend/internal/exchange"
	"github.com/bookiez/backend/internal/httpx"
	"github.com/bookiez/backend/internal/middleware"
)

// Deps are the handlers the router mounts.
type Deps struct {
	Auth           *auth.Handler
	Books          *books.Handler
	Exchanges      *exchange.Handler
	Relay          http.Handler
	Health         http.Handler
	Authenticator  middleware.Authenticator
	AllowedOrigins []string
}

func NewRouter(d Deps) http.Handler {
	requireAuth := middleware.RequireAuth(d.Authenticator)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteMessage(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Book Platform ready for Exchanges"))
	})
	if d.Health != nil {
		r.Method(http.MethodGet, "/api/health", d.Health)
	}
	if d.Relay != nil {
		r.Method(http.MethodGet, "/ws", d.Relay)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", d.Auth.Register)
		r.Post("/login", d.Auth.Login)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/logout", d.Auth.Logout)
			r.Get("/profile", d.Auth.Profile)
			r.Put("/profile", d.Auth.UpdateProfile)
		})
	})

	r.Route("/api/books", func(r chi.Router) {
		r.Get("/", d.Books.List)
		r.With(requireAuth).Get("/my-books", d.Books.Mine)
		r.Get("/{id}", d.Books.Get)
		r.Get("/{id}/image", d.Books.DownloadImage)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", d.Books.Create)
			r.Put("/{id}", d.Books.Update)
			r.Delete("/{id}", d.Books.Delete)
			r.Post("/{id}/image", d.Books.UploadImage)
		})
	})

	r.Route("/api/exchanges", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/", d.Exchanges.List)
		r.Post("/", d.Exchanges.Create)
		r.Get("/{id}", d.Exchanges.Get)
		r.Get("/{id}/history", d.Exchanges.History)
		r.Put("/{id}/status", d.Exchanges.UpdateStatus)
		r.Delete("/{id}", d.Exchanges.Delete)
	})

	return r
}
