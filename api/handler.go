// Package api provides the admin HTTP API for the engine: bot, scope,
// schedule, and webhook setting management, the generated webhook schema
// document, and the request batching gateway.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	engine "github.com/langboard/engine"
	"github.com/langboard/engine/batch"
)

// Handler is the root HTTP handler for the admin API.
type Handler struct {
	engine  *engine.Engine
	gateway *batch.Gateway
	logger  *slog.Logger
	mux     *http.ServeMux
}

// NewHandler creates the admin API handler. app is the board application
// handler the batch gateway replays against; pass nil to disable /batch.
func NewHandler(eng *engine.Engine, app http.Handler, routes batch.RouteResolver, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		engine: eng,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	if app != nil {
		h.gateway = batch.NewGateway(app, routes, logger)
	}

	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	// Bots
	h.mux.HandleFunc("POST /bots", h.createBot)
	h.mux.HandleFunc("GET /bots", h.listBots)
	h.mux.HandleFunc("GET /bots/{id}", h.getBot)
	h.mux.HandleFunc("PUT /bots/{id}", h.updateBot)
	h.mux.HandleFunc("DELETE /bots/{id}", h.deleteBot)
	h.mux.HandleFunc("PATCH /bots/{id}/enable", h.enableBot)
	h.mux.HandleFunc("PATCH /bots/{id}/disable", h.disableBot)
	h.mux.HandleFunc("GET /bots/{id}/logs", h.listBotLogs)

	// Scopes
	h.mux.HandleFunc("POST /scopes", h.createScope)
	h.mux.HandleFunc("GET /scopes", h.listScopes)
	h.mux.HandleFunc("GET /scopes/{id}", h.getScope)
	h.mux.HandleFunc("PUT /scopes/{id}/conditions", h.toggleScopeConditions)
	h.mux.HandleFunc("DELETE /scopes/{id}", h.deleteScope)

	// Schedules
	h.mux.HandleFunc("POST /schedules", h.createSchedule)
	h.mux.HandleFunc("GET /schedules", h.listSchedules)
	h.mux.HandleFunc("GET /schedules/{id}", h.getSchedule)
	h.mux.HandleFunc("PUT /schedules/{id}", h.updateSchedule)
	h.mux.HandleFunc("DELETE /schedules/{id}", h.deleteSchedule)

	// Webhook settings
	h.mux.HandleFunc("POST /webhook-settings", h.createWebhookSetting)
	h.mux.HandleFunc("GET /webhook-settings", h.listWebhookSettings)
	h.mux.HandleFunc("PUT /webhook-settings/{id}", h.updateWebhookSetting)
	h.mux.HandleFunc("POST /webhook-settings/{id}/rotate-secret", h.rotateWebhookSecret)
	h.mux.HandleFunc("DELETE /webhook-settings/{id}", h.deleteWebhookSetting)

	// Docs
	h.mux.HandleFunc("GET /schema/webhook.json", h.webhookSchema)

	// Batch gateway
	if h.gateway != nil {
		h.mux.Handle("POST /batch", h.gateway)
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.withMiddleware(h.mux).ServeHTTP(w, r)
}

func (h *Handler) withMiddleware(next http.Handler) http.Handler {
	return h.panicRecovery(h.logging(next))
}

func (h *Handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		h.logger.Info("api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (h *Handler) panicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// JSON helpers.

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best effort
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// queryParam returns a query parameter value, or empty string if not present.
func queryParam(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// queryInt returns a query parameter as int or a default value.
func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	var n int
	for _, c := range v {
		if c < '0' || c > '9' {
			return defaultVal
		}
		n = n*10 + int(c-'0')
	}
	return n
}
