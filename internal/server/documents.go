package server

import (
	"errors"
	"net/http"

	"github.com/kilupskalvis/orderset/internal/collection"
)

// getDocument answers a missing document with a null body rather than 404, so
// pages render their defaults before anything has been saved.
func (h *handlers) getDocument(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	doc, err := h.catalog.Documents().Get(r.Context(), key)
	if errors.Is(err, collection.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{"key": key, "body": nil})
		return
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *handlers) putDocument(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	body, err := readBody(w, r, h.cfg.MaxRequestBody)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	doc, err := h.catalog.Documents().Put(r.Context(), key, body)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.cfg.Webhooks.Notify(WebhookEvent{Event: EventDocument, Key: key})
	writeJSON(w, http.StatusOK, doc)
}
