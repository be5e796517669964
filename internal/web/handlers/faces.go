package handlers

import (
	"context"
	"net/http"

	"cdr.dev/slog/v3"
)

// RosterReloader reloads the known faces and returns their names.
type RosterReloader interface {
	Reload(ctx context.Context) ([]string, error)
}

// FacesHandler handles roster endpoints
type FacesHandler struct {
	reloader RosterReloader
	logger   slog.Logger
}

// NewFacesHandler creates a new faces handler
func NewFacesHandler(reloader RosterReloader, logger slog.Logger) *FacesHandler {
	return &FacesHandler{reloader: reloader, logger: logger}
}

// ReloadResponse is the answer to a roster reload.
type ReloadResponse struct {
	OK    bool     `json:"ok"`
	Users []string `json:"users"`
}

// Reload re-reads the roster. The previous roster stays active on failure.
func (h *FacesHandler) Reload(w http.ResponseWriter, r *http.Request) {
	names, err := h.reloader.Reload(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "roster reload failed", slog.Error(err))
		respondJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "roster reload failed"})
		return
	}
	if names == nil {
		names = []string{}
	}
	respondJSON(w, http.StatusOK, ReloadResponse{OK: true, Users: names})
}
