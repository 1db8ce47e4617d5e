package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-timeline/internal/export"
	"github.com/heimdex/heimdex-timeline/internal/project"
	"github.com/heimdex/heimdex-timeline/internal/session"
	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

// writeDomainError maps engine and service errors to status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var de *export.DecodeError
	switch {
	case errors.Is(err, timeline.ErrLocked):
		WriteError(w, http.StatusLocked, err.Error(), "LOCKED")
	case errors.Is(err, timeline.ErrTrackNotFound),
		errors.Is(err, timeline.ErrClipNotFound),
		errors.Is(err, timeline.ErrKeyframeNotFound),
		errors.Is(err, timeline.ErrEffectNotFound),
		errors.Is(err, timeline.ErrMarkerNotFound),
		errors.Is(err, project.ErrProjectNotFound),
		errors.Is(err, project.ErrRenderJobNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.As(err, &de):
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: de.Error(), Code: "BAD_REQUEST", Path: de.Path})
	case errors.Is(err, timeline.ErrInvalidValue),
		errors.Is(err, timeline.ErrInvalidKind):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	case errors.Is(err, project.ErrRevisionConflict):
		WriteError(w, http.StatusConflict, err.Error(), "CONFLICT")
	default:
		WriteError(w, http.StatusInternalServerError, "internal error", "INTERNAL_ERROR")
	}
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return false
	}
	return true
}

// sessionFor returns the open session for the projectID URL parameter,
// opening it from storage on first use.
func sessionFor(cfg ServerConfig, w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "projectID")
	if s, ok := cfg.Sessions.Get(id); ok {
		return s, true
	}
	p, imp, err := cfg.Projects.OpenProject(r.Context(), id)
	if err != nil {
		if !errors.Is(err, project.ErrProjectNotFound) {
			cfg.Logger.Error("failed to open project", "project_id", id, "error", err)
		}
		writeDomainError(w, err)
		return nil, false
	}
	s, _ := cfg.Sessions.Open(id, imp, p.Revision)
	return s, true
}
