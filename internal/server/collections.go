package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kilupskalvis/orderset/internal/client"
	"github.com/kilupskalvis/orderset/internal/content"
	"github.com/kilupskalvis/orderset/internal/models"
)

type handlers struct {
	catalog *content.Catalog
	cfg     *Config
	logger  *slog.Logger
}

type collectionHandlerFunc func(w http.ResponseWriter, r *http.Request, col content.Collection)

// withCollection resolves the {collection} path segment.
func (h *handlers) withCollection(fn collectionHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("collection")
		col, ok := h.catalog.Lookup(name)
		if !ok {
			writeErrorBody(w, http.StatusNotFound, "not_found", fmt.Sprintf("collection '%s' not found", name))
			return
		}
		fn(w, r, col)
	}
}

func (h *handlers) listCollections(w http.ResponseWriter, r *http.Request) {
	infos := make([]client.CollectionInfo, 0, len(h.catalog.Names()))
	for _, name := range h.catalog.Names() {
		col, _ := h.catalog.Lookup(name)
		total, err := col.Count(r.Context(), models.Filter{})
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		active, err := col.Count(r.Context(), models.ActiveOnly())
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		infos = append(infos, client.CollectionInfo{Name: name, Count: total, Active: active})
	}
	writeJSON(w, http.StatusOK, infos)
}

// list serves active records only unless ?all=true.
func (h *handlers) list(w http.ResponseWriter, r *http.Request, col content.Collection) {
	filter := models.ActiveOnly()
	if all := r.URL.Query().Get("all"); all != "" {
		showAll, err := strconv.ParseBool(all)
		if err != nil {
			writeErrorBody(w, http.StatusBadRequest, "bad_request", "all must be a boolean")
			return
		}
		if showAll {
			filter = models.Filter{}
		}
	}

	entries, err := col.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handlers) get(w http.ResponseWriter, r *http.Request, col content.Collection) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	entry, err := col.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request, col content.Collection) {
	body, err := readBody(w, r, h.cfg.MaxRequestBody)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	entry, err := col.Create(r.Context(), body)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.cfg.Webhooks.Notify(WebhookEvent{Event: EventCreate, Collection: col.Name(), ID: entry.ID})
	writeJSON(w, http.StatusCreated, entry)
}

func (h *handlers) update(w http.ResponseWriter, r *http.Request, col content.Collection) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	body, err := readBody(w, r, h.cfg.MaxRequestBody)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	entry, err := col.Update(r.Context(), id, body)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.cfg.Webhooks.Notify(WebhookEvent{Event: EventUpdate, Collection: col.Name(), ID: id})
	writeJSON(w, http.StatusOK, entry)
}

func (h *handlers) delete(w http.ResponseWriter, r *http.Request, col content.Collection) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := col.Delete(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.cfg.Webhooks.Notify(WebhookEvent{Event: EventDelete, Collection: col.Name(), ID: id})
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) reorder(w http.ResponseWriter, r *http.Request, col content.Collection) {
	var req client.ReorderRequest
	if err := readJSON(w, r, h.cfg.MaxRequestBody, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.IDs == nil {
		writeErrorBody(w, http.StatusBadRequest, "bad_request", "ids is required")
		return
	}
	if err := col.Reorder(r.Context(), req.IDs); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.Debug("collection reordered", "collection", col.Name(), "count", len(req.IDs), "request_id", requestID(r))
	h.cfg.Webhooks.Notify(WebhookEvent{Event: EventReorder, Collection: col.Name()})
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) normalize(w http.ResponseWriter, r *http.Request, col content.Collection) {
	if err := col.Normalize(r.Context()); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.cfg.Webhooks.Notify(WebhookEvent{Event: EventNormalize, Collection: col.Name()})
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeErrorBody(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid record id '%s'", raw))
		return 0, false
	}
	return id, true
}
