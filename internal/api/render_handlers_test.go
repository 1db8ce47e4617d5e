package api

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/heimdex/heimdex-timeline/internal/export"
	"github.com/heimdex/heimdex-timeline/internal/project"
)

func TestRenders_SubmitAndPoll(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, 0, 2)
	env.mustDo(t, http.MethodPost, f.path("/save"), nil, http.StatusOK, nil)

	rs := export.DefaultRenderSettings()
	rs.Format = "webm"
	var job RenderJobResponse
	env.mustDo(t, http.MethodPost, f.path("/renders"), SubmitRenderRequest{Settings: &rs}, http.StatusAccepted, &job)
	if job.Status != project.JobStatusQueued || job.RemoteJobID == "" || job.Settings.Format != "webm" {
		t.Fatalf("job = %+v", job)
	}

	n, err := env.cfg.Runner.PollOnce(context.Background())
	if err != nil {
		t.Fatalf("PollOnce() error = %v", err)
	}
	if n != 1 {
		t.Errorf("PollOnce() updated %d jobs, want 1", n)
	}

	env.mustDo(t, http.MethodGet, "/renders/"+job.ID, nil, http.StatusOK, &job)
	if job.Status != project.JobStatusCompleted || job.Progress != 100 {
		t.Errorf("polled job = %+v", job)
	}
	if !strings.HasSuffix(job.OutputURL, ".webm") {
		t.Errorf("output url = %q", job.OutputURL)
	}

	var list RenderJobsResponse
	env.mustDo(t, http.MethodGet, f.path("/renders"), nil, http.StatusOK, &list)
	if len(list.Jobs) != 1 || list.Jobs[0].ID != job.ID {
		t.Errorf("jobs = %+v", list.Jobs)
	}
	env.mustDo(t, http.MethodGet, f.path("/renders?limit=0"), nil, http.StatusBadRequest, nil)
}

func TestRenders_NotFound(t *testing.T) {
	env := newTestEnv(t)

	env.mustDo(t, http.MethodGet, "/renders/missing", nil, http.StatusNotFound, nil)
	env.mustDo(t, http.MethodPost, "/projects/missing/renders", nil, http.StatusNotFound, nil)
	env.mustDo(t, http.MethodGet, "/projects/missing/renders", nil, http.StatusNotFound, nil)
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("note", "ignored")
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	part.Write([]byte(content))
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) upload(t *testing.T, path, field, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, field, filename, content)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Authorization", "Bearer "+e.token)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func TestAssets_Import(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, 0, 2)

	rr := env.upload(t, f.path("/assets"), "file", "intro clip.mp4", "not really a video")
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	if ref, _ := body["content_ref"].(string); !strings.HasPrefix(ref, "asset://") {
		t.Errorf("content_ref = %v", body["content_ref"])
	}
	if body["size"] != float64(len("not really a video")) || body["project_id"] != f.projectID {
		t.Errorf("asset = %v", body)
	}

	rr = env.upload(t, "/assets", "file", "logo.png", "png")
	if rr.Code != http.StatusCreated {
		t.Fatalf("unscoped upload: status = %d", rr.Code)
	}

	var scoped, all AssetsResponse
	env.mustDo(t, http.MethodGet, f.path("/assets"), nil, http.StatusOK, &scoped)
	env.mustDo(t, http.MethodGet, "/assets", nil, http.StatusOK, &all)
	if len(scoped.Assets) != 1 || len(all.Assets) != 2 {
		t.Errorf("assets scoped/all = %d/%d, want 1/2", len(scoped.Assets), len(all.Assets))
	}
}

func TestAssets_Validation(t *testing.T) {
	env := newTestEnv(t)

	rr := env.upload(t, "/assets", "attachment", "a.mp4", "x")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing file part: status = %d, want 400", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/assets", map[string]string{"file": "x"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("json body: status = %d, want 400", rr.Code)
	}
	rr = env.upload(t, "/projects/missing/assets", "file", "a.mp4", "x")
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown project: status = %d, want 404", rr.Code)
	}
}
