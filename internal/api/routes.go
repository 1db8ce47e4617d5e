package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-timeline/internal/export"
	"github.com/heimdex/heimdex-timeline/internal/project"
	"github.com/heimdex/heimdex-timeline/internal/session"
	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

// maxImportBytes bounds project documents posted for import or load.
const maxImportBytes = 32 << 20

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Projects.Repository(), cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Get("/projects", listProjectsHandler(cfg))
		r.Post("/projects", createProjectHandler(cfg))
		r.Post("/projects/import", importProjectHandler(cfg))
		r.Get("/renders/{jobID}", getRenderJobHandler(cfg))
		r.Get("/assets", listAssetsHandler(cfg))
		r.Post("/assets", importAssetHandler(cfg))

		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Get("/", getProjectHandler(cfg))
			r.Delete("/", deleteProjectHandler(cfg))
			r.Post("/save", saveProjectHandler(cfg))
			r.Post("/close", closeProjectHandler(cfg))
			r.Post("/load", loadProjectHandler(cfg))
			r.Put("/render-settings", renderSettingsHandler(cfg))

			r.Get("/state", stateHandler(cfg))
			r.Get("/lanes", lanesHandler(cfg))
			r.Get("/events", eventsHandler(cfg))

			r.Post("/tracks", addTrackHandler(cfg))
			r.Patch("/tracks/{trackID}", updateTrackHandler(cfg))
			r.Delete("/tracks/{trackID}", removeTrackHandler(cfg))
			r.Post("/tracks/{trackID}/move", moveTrackHandler(cfg))

			r.Post("/tracks/{trackID}/clips", addClipHandler(cfg))
			r.Patch("/tracks/{trackID}/clips/{clipID}", updateClipHandler(cfg))
			r.Delete("/tracks/{trackID}/clips/{clipID}", removeClipHandler(cfg))
			r.Post("/tracks/{trackID}/clips/{clipID}/split", splitClipHandler(cfg))

			r.Post("/selection", selectHandler(cfg))
			r.Delete("/selection", clearSelectionHandler(cfg))
			r.Post("/selection/duplicate", duplicateSelectionHandler(cfg))
			r.Post("/selection/delete", deleteSelectionHandler(cfg))

			r.Post("/clips/{clipID}/keyframes", addKeyframeHandler(cfg))
			r.Patch("/clips/{clipID}/keyframes/{keyframeID}", updateKeyframeHandler(cfg))
			r.Delete("/clips/{clipID}/keyframes/{keyframeID}", removeKeyframeHandler(cfg))
			r.Get("/clips/{clipID}/properties", propertiesHandler(cfg))
			r.Post("/clips/{clipID}/effects", addEffectHandler(cfg))
			r.Patch("/clips/{clipID}/effects/{effectID}", updateEffectHandler(cfg))
			r.Delete("/clips/{clipID}/effects/{effectID}", removeEffectHandler(cfg))

			r.Get("/markers", listMarkersHandler(cfg))
			r.Post("/markers", addMarkerHandler(cfg))
			r.Delete("/markers/{markerID}", removeMarkerHandler(cfg))
			r.Get("/markers/next", adjacentMarkerHandler(cfg, true))
			r.Get("/markers/prev", adjacentMarkerHandler(cfg, false))

			r.Get("/viewport", getViewportHandler(cfg))
			r.Put("/viewport", viewportHandler(cfg))

			r.Post("/undo", undoHandler(cfg, true))
			r.Post("/redo", undoHandler(cfg, false))
			r.Get("/history", historyHandler(cfg))

			r.Get("/playback", playbackStatusHandler(cfg))
			r.Post("/playback/play", playbackActionHandler(cfg, (*timeline.Engine).Play))
			r.Post("/playback/pause", playbackActionHandler(cfg, (*timeline.Engine).Pause))
			r.Post("/playback/stop", playbackActionHandler(cfg, (*timeline.Engine).Stop))
			r.Post("/playback/toggle", playbackActionHandler(cfg, func(e *timeline.Engine) { e.TogglePlay() }))
			r.Post("/playback/seek", seekHandler(cfg))
			r.Put("/playback/settings", playbackSettingsHandler(cfg))

			r.Put("/gestures/viewport", gestureViewportHandler(cfg))
			r.Post("/gestures/down", pointerDownHandler(cfg))
			r.Post("/gestures/move", pointerMoveHandler(cfg))
			r.Post("/gestures/up", pointerUpHandler(cfg))
			r.Post("/gestures/cancel", pointerCancelHandler(cfg))

			r.Get("/export", exportHandler(cfg))
			r.With(LoopbackGuard()).Post("/export", exportToDiskHandler(cfg))

			r.Get("/renders", listRenderJobsHandler(cfg))
			r.Post("/renders", submitRenderHandler(cfg))
			r.Get("/assets", listAssetsHandler(cfg))
			r.Post("/assets", importAssetHandler(cfg))
		})
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: Version,
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		projects, _ := cfg.Projects.ListProjects(ctx)
		jobs, _ := cfg.Projects.ListRenderJobs(ctx, "", 10)

		state := "idle"
		active := 0
		lastError := ""
		for _, j := range jobs {
			if j.Active() {
				state = "rendering"
				active++
			}
			if j.Status == project.JobStatusFailed && lastError == "" {
				lastError = j.Error
			}
		}
		if lastError != "" && state == "idle" {
			state = "error"
		}

		resp := StatusResponse{
			State:           state,
			ProjectsCount:   len(projects),
			OpenSessions:    cfg.Sessions.IDs(),
			RendersActive:   active,
			LastRenderError: lastError,
		}
		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			resp.RunnerPaused = true
			resp.State = "paused"
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func projectResponse(cfg ServerConfig, p *project.Project) ProjectResponse {
	resp := ProjectToResponse(p)
	if s, ok := cfg.Sessions.Get(p.ID); ok {
		resp.Open = true
		resp.Dirty = s.Dirty()
	}
	return resp
}

func listProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := cfg.Projects.ListProjects(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list projects", "INTERNAL_ERROR")
			return
		}

		resp := ProjectsResponse{Projects: make([]ProjectResponse, len(projects))}
		for i, p := range projects {
			resp.Projects[i] = projectResponse(cfg, p)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func createProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateProjectRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Duration < 0 {
			WriteError(w, http.StatusBadRequest, "duration must be positive", "BAD_REQUEST")
			return
		}

		st := timeline.State{}
		st.Duration = req.Duration
		p, err := cfg.Projects.CreateProject(r.Context(), req.Name, st)
		if err != nil {
			cfg.Logger.Error("failed to create project", "error", err)
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, projectResponse(cfg, p))
	}
}

// importProjectHandler stores a posted export document as a new project.
// The format query parameter selects json (default) or yaml.
func importProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := documentFormat(w, r)
		if !ok {
			return
		}
		data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "failed to read body", "BAD_REQUEST")
			return
		}

		p, imp, err := cfg.Projects.ImportProject(r.Context(), data, f, r.URL.Query().Get("name"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		cfg.Sessions.Open(p.ID, imp, p.Revision)
		WriteJSON(w, http.StatusCreated, projectResponse(cfg, p))
	}
}

func documentFormat(w http.ResponseWriter, r *http.Request) (export.Format, bool) {
	f, ok := export.ParseFormat(r.URL.Query().Get("format"))
	if !ok || f == export.FormatEDL {
		WriteError(w, http.StatusBadRequest, "format must be json or yaml", "BAD_REQUEST")
		return "", false
	}
	return f, true
}

func getProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := cfg.Projects.GetProject(r.Context(), chi.URLParam(r, "projectID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, projectResponse(cfg, p))
	}
}

func deleteProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "projectID")
		if err := cfg.Projects.DeleteProject(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}
		cfg.Sessions.Close(id)
		w.WriteHeader(http.StatusNoContent)
	}
}

// saveProjectHandler persists the open session. A revision in the body must
// match the stored one.
func saveProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SaveProjectRequest
		if !decodeBody(w, r, &req) {
			return
		}
		s, ok := sessionFor(cfg, w, r)
		if !ok {
			return
		}

		st, meta, _ := s.Snapshot()
		if req.Name != "" {
			meta.Name = req.Name
		}
		p, err := cfg.Projects.SaveProject(r.Context(), s.ID(), req.Revision, st, meta)
		if err != nil {
			if !errors.Is(err, project.ErrRevisionConflict) {
				cfg.Logger.Error("failed to save project", "project_id", s.ID(), "error", err)
			}
			writeDomainError(w, err)
			return
		}
		meta.Name = p.Name
		s.SetMeta(meta)
		s.MarkSaved(p.Revision)
		WriteJSON(w, http.StatusOK, projectResponse(cfg, p))
	}
}

// closeProjectHandler drops the in-memory session. Unsaved changes are
// refused unless discard=true.
func closeProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "projectID")
		s, ok := cfg.Sessions.Get(id)
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		discard, _ := strconv.ParseBool(r.URL.Query().Get("discard"))
		if s.Dirty() && !discard {
			WriteError(w, http.StatusConflict, "project has unsaved changes", "CONFLICT")
			return
		}
		cfg.Sessions.Close(id)
		w.WriteHeader(http.StatusNoContent)
	}
}

// loadProjectHandler replaces the open session with a posted document. The
// stored project is untouched until the next save.
func loadProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := documentFormat(w, r)
		if !ok {
			return
		}
		data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "failed to read body", "BAD_REQUEST")
			return
		}
		imp, err := export.Decode(data, f)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		s, ok := sessionFor(cfg, w, r)
		if !ok {
			return
		}

		_, meta, revision := s.Snapshot()
		if imp.Project.Name == "" {
			imp.Project.Name = meta.Name
		}
		s.Load(imp, revision)
		s.SetMeta(imp.Project)
		writeState(w, s)
	}
}

func renderSettingsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rs export.RenderSettings
		if !decodeBody(w, r, &rs) {
			return
		}
		if rs.FPS <= 0 || rs.Resolution.Width <= 0 || rs.Resolution.Height <= 0 {
			WriteError(w, http.StatusBadRequest, "fps and resolution must be positive", "BAD_REQUEST")
			return
		}
		s, ok := sessionFor(cfg, w, r)
		if !ok {
			return
		}
		meta := s.Meta()
		meta.RenderSettings = rs
		s.SetMeta(meta)
		WriteJSON(w, http.StatusOK, rs)
	}
}

func stateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFor(cfg, w, r)
		if !ok {
			return
		}
		writeState(w, s)
	}
}

func writeState(w http.ResponseWriter, s *session.Session) {
	var resp StateResponse
	s.Do(func(e *timeline.Engine) error {
		resp.Selection = selectionResponse(e)
		resp.History = historyResponse(e)
		resp.Playback = e.Playback()
		return nil
	})
	st, meta, revision := s.Snapshot()
	resp.ProjectID = s.ID()
	resp.Revision = revision
	resp.Dirty = s.Dirty()
	resp.Document = export.Encode(st, meta)
	WriteJSON(w, http.StatusOK, resp)
}

func selectionResponse(e *timeline.Engine) SelectionResponse {
	resp := SelectionResponse{
		ClipIDs:     e.SelectedClipIDs(),
		KeyframeIDs: e.SelectedKeyframeIDs(),
	}
	if resp.ClipIDs == nil {
		resp.ClipIDs = []string{}
	}
	if resp.KeyframeIDs == nil {
		resp.KeyframeIDs = []string{}
	}
	return resp
}

func historyResponse(e *timeline.Engine) HistoryResponse {
	return HistoryResponse{
		Entries: e.History(),
		CanUndo: e.CanUndo(),
		CanRedo: e.CanRedo(),
	}
}

func lanesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFor(cfg, w, r)
		if !ok {
			return
		}
		var resp LanesResponse
		s.Do(func(e *timeline.Engine) error {
			layout := e.Layout()
			lanes := e.Lanes()
			tracks := e.Tracks()
			resp.HeaderHeight = layout.HeaderHeight
			resp.Lanes = make([]LaneResponse, len(tracks))
			for i, tr := range tracks {
				top := layout.LaneTop(i, lanes)
				resp.Lanes[i] = LaneResponse{
					TrackID:   tr.ID,
					Top:       top,
					Height:    layout.LaneTop(i+1, lanes) - top,
					Collapsed: tr.Collapsed,
				}
			}
			return nil
		})
		WriteJSON(w, http.StatusOK, resp)
	}
}
