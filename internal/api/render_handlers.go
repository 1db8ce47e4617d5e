package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-timeline/internal/project"
)

// submitRenderHandler renders the last saved revision of the project.
// Settings in the body override the stored render settings.
func submitRenderHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SubmitRenderRequest
		if !decodeBody(w, r, &req) {
			return
		}
		id := chi.URLParam(r, "projectID")

		job, err := cfg.Projects.SubmitRender(r.Context(), id, req.Settings)
		if err != nil {
			if job != nil {
				WriteJSON(w, http.StatusBadGateway, RenderJobToResponse(job))
				return
			}
			if !errors.Is(err, project.ErrProjectNotFound) {
				cfg.Logger.Error("failed to submit render", "project_id", id, "error", err)
			}
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, RenderJobToResponse(job))
	}
}

func listRenderJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "projectID")
		if _, err := cfg.Projects.GetProject(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
				return
			}
			limit = n
		}

		jobs, err := cfg.Projects.ListRenderJobs(r.Context(), id, limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list render jobs", "INTERNAL_ERROR")
			return
		}
		resp := RenderJobsResponse{Jobs: make([]RenderJobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = RenderJobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getRenderJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Projects.GetRenderJob(r.Context(), chi.URLParam(r, "jobID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, RenderJobToResponse(job))
	}
}

// assetProjectID reads the project from the route, falling back to the
// project_id query parameter on the top-level asset routes.
func assetProjectID(r *http.Request) string {
	if id := chi.URLParam(r, "projectID"); id != "" {
		return id
	}
	return r.URL.Query().Get("project_id")
}

// importAssetHandler streams the "file" part of a multipart upload to the
// render service without buffering it.
func importAssetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mr, err := r.MultipartReader()
		if err != nil {
			WriteError(w, http.StatusBadRequest, "expected multipart/form-data body", "BAD_REQUEST")
			return
		}
		projectID := assetProjectID(r)

		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				WriteError(w, http.StatusBadRequest, "invalid multipart body", "BAD_REQUEST")
				return
			}
			if part.FormName() != "file" {
				part.Close()
				continue
			}

			asset, err := cfg.Projects.ImportAsset(r.Context(), projectID, part.FileName(), part)
			part.Close()
			if err != nil {
				if errors.Is(err, project.ErrProjectNotFound) {
					writeDomainError(w, err)
					return
				}
				cfg.Logger.Error("failed to import asset", "project_id", projectID, "error", err)
				WriteError(w, http.StatusBadGateway, err.Error(), "UPSTREAM_ERROR")
				return
			}
			WriteJSON(w, http.StatusCreated, AssetToResponse(asset))
			return
		}
		WriteError(w, http.StatusBadRequest, "file part is required", "BAD_REQUEST")
	}
}

func listAssetsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assets, err := cfg.Projects.ListAssets(r.Context(), assetProjectID(r))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list assets", "INTERNAL_ERROR")
			return
		}
		resp := AssetsResponse{Assets: make([]AssetResponse, len(assets))}
		for i, a := range assets {
			resp.Assets[i] = AssetToResponse(a)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
