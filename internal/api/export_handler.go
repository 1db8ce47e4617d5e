package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/heimdex/heimdex-timeline/internal/export"
	"github.com/heimdex/heimdex-timeline/internal/session"
)

// renderDocument serializes the open session in format f.
func renderDocument(s *session.Session, f export.Format) ([]byte, string, error) {
	st, meta, _ := s.Snapshot()
	if f == export.FormatEDL {
		fps := meta.RenderSettings.FPS
		if fps <= 0 {
			fps = 30.0
		}
		title := export.SanitizeName(meta.Name, 120)
		if title == "" {
			title = "timeline"
		}
		return []byte(export.GenerateEDL(export.Events(st), title, fps)), meta.Name, nil
	}
	data, err := export.Marshal(export.Encode(st, meta), f)
	return data, meta.Name, err
}

// exportHandler streams the open project as an attachment. The format query
// parameter is json (default), yaml or edl.
func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := export.ParseFormat(strings.ToLower(r.URL.Query().Get("format")))
		if !ok {
			WriteError(w, http.StatusBadRequest, "format must be json, yaml or edl", "BAD_REQUEST")
			return
		}
		s, ok := sessionFor(cfg, w, r)
		if !ok {
			return
		}

		data, name, err := renderDocument(s, f)
		if err != nil {
			cfg.Logger.Error("failed to export project", "project_id", s.ID(), "format", f, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to export project", "INTERNAL_ERROR")
			return
		}
		w.Header().Set("Content-Type", f.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(name, f)))
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

// exportToDiskHandler writes the open project into a local directory. It is
// only reachable from loopback clients.
func exportToDiskHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportRequest
		if !decodeBody(w, r, &req) {
			return
		}
		f, ok := export.ParseFormat(strings.ToLower(req.Format))
		if !ok {
			WriteError(w, http.StatusBadRequest, "format must be json, yaml or edl", "BAD_REQUEST")
			return
		}
		dir := req.OutputDir
		if dir == "" {
			dir = cfg.ExportsDir
		}
		if err := export.ValidateOutputDir(dir); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		s, ok := sessionFor(cfg, w, r)
		if !ok {
			return
		}

		data, name, err := renderDocument(s, f)
		if err != nil {
			cfg.Logger.Error("failed to export project", "project_id", s.ID(), "format", f, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to export project", "INTERNAL_ERROR")
			return
		}
		path, err := export.WriteFile(dir, name, f, data)
		if err != nil {
			cfg.Logger.Error("failed to write export file", "project_id", s.ID(), "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to write export file", "INTERNAL_ERROR")
			return
		}

		cfg.Logger.Info("project exported", "project_id", s.ID(), "format", f, "bytes", len(data))
		WriteJSON(w, http.StatusOK, ExportResponse{
			Status:     "ok",
			Format:     string(f),
			OutputPath: path,
			Bytes:      len(data),
		})
	}
}
