// Package server implements the orderset HTTP API: ordered collections,
// singleton documents and health checks.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/kilupskalvis/orderset/internal/collection"
	"github.com/kilupskalvis/orderset/internal/content"
)

// Config holds configurable limits for the server.
type Config struct {
	MaxRequestBody    int64  // bytes
	RequestsPerMinute int    // per client address; 0 disables limiting
	AdminKey          string // required for every mutation; empty denies them all
	Webhooks          *WebhookNotifier
}

// DefaultConfig returns reasonable defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxRequestBody:    1 << 20, // 1MB
		RequestsPerMinute: 600,
	}
}

// Handler creates the HTTP handler with all routes and middleware.
// The returned cleanup function stops background goroutines and should be
// called on server shutdown.
func Handler(catalog *content.Catalog, cfg *Config, logger *slog.Logger) (http.Handler, func()) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	rl := newRateLimiter(cfg.RequestsPerMinute)
	admin := adminKeyMiddleware(cfg.AdminKey, logger)

	// applyMiddleware runs the first item outermost.
	// Execution order: rl -> handler
	public := func(h http.HandlerFunc) http.Handler {
		return applyMiddleware(h, rl.middleware)
	}
	// Execution order: rl -> admin -> handler
	guarded := func(h http.HandlerFunc) http.Handler {
		return applyMiddleware(h, rl.middleware, admin)
	}

	h := &handlers{catalog: catalog, cfg: cfg, logger: logger}
	mux := http.NewServeMux()

	// Health endpoints (no auth, no limit)
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := catalog.Ping(r.Context()); err != nil {
			logger.Warn("readiness check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("not ready: storage unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Collections
	mux.Handle("GET /api/v1/collections", public(h.listCollections))
	mux.Handle("GET /api/v1/collections/{collection}", public(h.withCollection(h.list)))
	mux.Handle("GET /api/v1/collections/{collection}/{id}", public(h.withCollection(h.get)))
	mux.Handle("POST /api/v1/collections/{collection}", guarded(h.withCollection(h.create)))
	mux.Handle("PUT /api/v1/collections/{collection}/{id}", guarded(h.withCollection(h.update)))
	mux.Handle("DELETE /api/v1/collections/{collection}/{id}", guarded(h.withCollection(h.delete)))
	mux.Handle("POST /api/v1/collections/{collection}/reorder", guarded(h.withCollection(h.reorder)))
	mux.Handle("POST /api/v1/collections/{collection}/normalize", guarded(h.withCollection(h.normalize)))

	// Documents
	mux.Handle("GET /api/v1/documents/{key}", public(h.getDocument))
	mux.Handle("PUT /api/v1/documents/{key}", guarded(h.putDocument))

	// Apply global middleware
	// Execution order: request id -> recovery -> logging -> mux
	handler := applyMiddleware(mux,
		requestIDMiddleware,
		recoveryMiddleware(logger),
		loggingMiddleware(logger),
	)

	cleanup := func() {
		rl.Stop()
	}

	return handler, cleanup
}

// applyMiddleware applies middleware in reverse order so the first in the list runs first.
func applyMiddleware(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorBody(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

// writeError maps store errors to status codes.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, collection.ErrNotFound):
		writeErrorBody(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, collection.ErrInvalidArgument):
		writeErrorBody(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.As(err, &tooLarge):
		writeErrorBody(w, http.StatusRequestEntityTooLarge, "request_too_large",
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
	case errors.Is(err, collection.ErrStorageUnavailable):
		logger.Error("storage unavailable", "error", err, "path", r.URL.Path, "request_id", requestID(r))
		writeErrorBody(w, http.StatusServiceUnavailable, "storage_unavailable", "storage is temporarily unavailable")
	default:
		logger.Error("request failed", "error", err, "path", r.URL.Path, "request_id", requestID(r))
		writeErrorBody(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// readBody reads at most maxSize bytes of the request body.
func readBody(w http.ResponseWriter, r *http.Request, maxSize int64) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxSize))
}

func readJSON(w http.ResponseWriter, r *http.Request, maxSize int64, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: invalid JSON: %v", collection.ErrInvalidArgument, err)
	}
	return nil
}
