// Package httpapi is the HTTP surface of the server: auth and account
// routes, health and metrics.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/peny/internal/logging"
)

// Deps are the collaborators the router dispatches to. Metrics and
// Observer may be nil.
type Deps struct {
	Sessions SessionManager
	Accounts AccountAdmin
	Photos   PhotoPresigner
	DB       ConnectionState
	Metrics  http.Handler
	Observer HTTPObserver
	Logger   logging.Logger
}

func NewRouter(d Deps) http.Handler {
	log := d.Logger.With("module", "http")
	h := &handlers{
		sessions: d.Sessions,
		accounts: d.Accounts,
		photos:   d.Photos,
		db:       d.DB,
		log:      log,
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(instrument(log, d.Observer))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{
			StatusCode: http.StatusNotFound,
			Message:    "Cannot " + r.Method + " " + r.URL.Path,
			Error:      http.StatusText(http.StatusNotFound),
		})
	})

	r.Get("/healthz", h.healthz)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	bearer := requireAuth(d.Sessions)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/refresh", h.refresh)
		r.Post("/logout", h.logout)
		r.With(bearer).Get("/me", h.me)
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(bearer)
		r.Post("/", h.createAccount)
		r.Get("/", h.listAccounts)
		r.Post("/me/photo-upload", h.photoUpload)
		r.Get("/{id}", h.getAccount)
		r.Patch("/{id}", h.updateAccount)
		r.Delete("/{id}", h.deleteAccount)
	})

	return r
}
