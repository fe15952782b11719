package httpapi

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"wasco/mapcore/internal/scene"
	"wasco/mapcore/internal/session"
	"wasco/mapcore/internal/store"
)

const maxActionBytes = 64 << 10

type sessionCreate struct {
	Width float64      `json:"width,omitempty"`
	State *store.State `json:"state,omitempty"`
}

type patchList struct {
	Version uint64        `json:"version"`
	Patches []scene.Patch `json:"patches"`
}

func (h *Handler) ensureSessions(w http.ResponseWriter) bool {
	if h.sessions == nil {
		h.writeError(w, http.StatusServiceUnavailable, "sessions_unavailable", "map sessions not configured", nil)
		return false
	}
	return true
}

// lookupSession writes the error response itself when it returns false.
func (h *Handler) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	if !h.ensureSessions(w) {
		return nil, false
	}
	id := chi.URLParam(r, "id")
	s, err := h.sessions.Get(id)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "not_found", "session not found", map[string]any{"id": id})
		return nil, false
	}
	return s, true
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if !h.ensureSessions(w) {
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"ids": h.sessions.IDs()})
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionCreate
	if r.ContentLength != 0 {
		if err := decodeJSONStrict(r, &req); err != nil && !errors.Is(err, io.EOF) {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
			return
		}
	}
	if !h.ensureSessions(w) {
		return
	}

	s, err := h.sessions.Open(r.Context(), session.OpenOptions{Width: req.Width, State: req.State})
	switch {
	case errors.Is(err, session.ErrInvalidWidth):
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid width", map[string]any{"width": req.Width})
		return
	case errors.Is(err, session.ErrTooManySessions):
		h.writeError(w, http.StatusServiceUnavailable, "too_many_sessions", "session limit reached", nil)
		return
	case err != nil:
		h.log.Error().Err(err).Msg("open session failed")
		h.writeError(w, http.StatusInternalServerError, "internal_error", "failed to open session", nil)
		return
	}

	w.Header().Set("Location", "/api/v1/sessions/"+s.ID())
	h.writeJSON(w, http.StatusCreated, s.View())
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookupSession(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, s.View())
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.ensureSessions(w) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.sessions.Close(id); err != nil {
		h.writeError(w, http.StatusNotFound, "not_found", "session not found", map[string]any{"id": id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSessionSVG(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookupSession(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := s.SVG(&buf); err != nil {
		h.log.Error().Err(err).Str("session_id", s.ID()).Msg("render svg failed")
		h.writeError(w, http.StatusInternalServerError, "internal_error", "failed to render map", nil)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) handleSessionPatches(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookupSession(w, r)
	if !ok {
		return
	}
	patches := s.Patches()
	if patches == nil {
		patches = []scene.Patch{}
	}
	h.writeJSON(w, http.StatusOK, patchList{Version: s.View().Map.Version, Patches: patches})
}

func (h *Handler) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookupSession(w, r)
	if !ok {
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxActionBytes+1))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "failed to read body", map[string]any{"error": err.Error()})
		return
	}
	if len(raw) > maxActionBytes {
		h.writeError(w, http.StatusRequestEntityTooLarge, "validation_failed", "action too large", nil)
		return
	}
	if err := s.Do(raw); err != nil {
		if errors.Is(err, session.ErrBadAction) || errors.Is(err, session.ErrInvalidWidth) {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid action", map[string]any{"error": err.Error()})
			return
		}
		h.log.Error().Err(err).Str("session_id", s.ID()).Msg("apply action failed")
		h.writeError(w, http.StatusInternalServerError, "internal_error", "failed to apply action", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, s.View())
}
