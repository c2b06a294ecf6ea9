// Package httpapi exposes the simulator's REST surface: schedule CRUD for
// operator consoles and the current-content endpoint viewers poll.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/marqueehq/marquee/api/types/v1alpha1"
	"github.com/marqueehq/marquee/internal/mrqsim/store"
)

// Broadcaster pushes schedule-change signals to connected viewers
type Broadcaster interface {
	BroadcastRefresh(message string)
	BroadcastCurrent(current v1alpha1.CurrentContent)
	BroadcastScheduleCreated(s v1alpha1.Schedule)
}

// CurrentProvider resolves the content to render right now
type CurrentProvider interface {
	Current(ctx context.Context) (v1alpha1.CurrentContent, error)
}

// Handler serves the authority REST API
type Handler struct {
	repo     store.Repository
	resolver CurrentProvider
	hub      Broadcaster
	limiter  func(http.Handler) http.Handler
	serveWs  http.HandlerFunc
	logger   zerolog.Logger
}

// NewHandler assembles the API handler. limiter may be nil to serve
// without rate limiting; serveWs may be nil when the hub is disabled.
func NewHandler(repo store.Repository, resolver CurrentProvider, hub Broadcaster,
	limiter func(http.Handler) http.Handler, serveWs http.HandlerFunc, logger zerolog.Logger) *Handler {
	return &Handler{
		repo:     repo,
		resolver: resolver,
		hub:      hub,
		limiter:  limiter,
		serveWs:  serveWs,
		logger:   logger.With().Str("component", "httpapi").Logger(),
	}
}

// Router returns a router pre-configured with all endpoints mounted at the API root
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts all API endpoints on the provided router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Get("/readyz", h.handleHealth)

	r.Route("/api/v1alpha1", func(r chi.Router) {
		r.Route("/schedules", func(r chi.Router) {
			// The viewer-facing poll endpoint carries the rate limit
			r.Group(func(r chi.Router) {
				if h.limiter != nil {
					r.Use(h.limiter)
				}
				r.Get("/current", h.handleCurrent)
			})

			r.Post("/", h.handleCreateSchedule)
			r.Get("/", h.handleListSchedules)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.handleGetSchedule)
				r.Put("/", h.handleUpdateSchedule)
				r.Delete("/", h.handleDeleteSchedule)
			})
		})

		r.Route("/content", func(r chi.Router) {
			r.Post("/", h.handlePutContent)
			r.Get("/", h.handleListContent)
			r.Get("/{id}", h.handleGetContent)
		})

		if h.serveWs != nil {
			r.Get("/signal/ws", h.serveWs)
		}
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			h.logger.Error().Err(err).Msg("failed to encode response")
		}
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	msg := "internal server error"

	var he HTTPError
	if errors.As(err, &he) {
		code = he.StatusCode()
		msg = he.Error()
	} else if errors.Is(err, store.ErrNotFound) {
		code = http.StatusNotFound
		msg = "not found"
	} else if errors.Is(err, store.ErrConflict) {
		code = http.StatusConflict
		msg = "already exists"
	}

	h.respondJSON(w, code, map[string]string{"error": msg})
}
