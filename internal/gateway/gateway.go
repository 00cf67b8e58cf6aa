// Package gateway implements the HTTP surface of the gateway: URL-path
// commands, webdis-style JSON responses, a health endpoint and an optional
// WebSocket endpoint for pub/sub.
package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/mkarls/redisgw/internal/pool"
)

// Handler serves the gateway's HTTP routes.
type Handler struct {
	cfg Config
}

// NewHandler builds the gateway handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{cfg: cfg}
}

// Router assembles the chi route tree.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Get("/healthz", h.health)
	if h.cfg.WebSockets {
		r.Get("/.ws", h.serveWS)
	}

	// Everything else is a backend command.
	r.Get("/*", h.commandFromPath)
	r.Post("/*", h.commandFromBody)
	r.Put("/*", h.commandFromBody)

	return r
}

// requestLogger tags every request with an ID and emits one access line.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		h.cfg.Logger.Debug("request",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

func (h *Handler) commandFromPath(w http.ResponseWriter, r *http.Request) {
	args, err := parseCommand(r.URL.EscapedPath())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.execute(w, r, args)
}

// commandFromBody accepts the same slash-separated command form in the
// request body, for commands whose arguments exceed URL length limits.
func (h *Handler) commandFromBody(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxRequestSize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}

	args, err := parseCommand("/" + string(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.execute(w, r, args)
}

func (h *Handler) execute(w http.ResponseWriter, r *http.Request, args []string) {
	reply, err := h.cfg.Executor.Execute(r.Context(), args)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, pool.ErrNoConnections) || errors.Is(err, pool.ErrStopped) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err)
		return
	}

	body, err := renderReply(args[0], reply)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	health := struct {
		Status  string       `json:"status"`
		Workers []pool.Stats `json:"workers"`
	}{Status: "healthy"}

	stats, err := h.cfg.Stats(ctx)
	if err != nil {
		health.Status = "unhealthy"
	} else {
		health.Workers = stats
		ready := 0
		for _, s := range stats {
			ready += s.Ready
		}
		if ready == 0 {
			health.Status = "unhealthy"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if health.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(health)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
