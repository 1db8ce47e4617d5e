package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/heimdex/heimdex-timeline/internal/export"
)

func TestExport_Download(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, 0, 2)

	cases := []struct {
		format      string
		contentType string
		fileName    string
		contains    string
	}{
		{"", "application/json", "Demo.json", `"renderSettings"`},
		{"yaml", "application/yaml", "Demo.yaml", "renderSettings:"},
		{"edl", "text/plain; charset=utf-8", "Demo.edl", "TITLE: Demo"},
	}
	for _, tc := range cases {
		t.Run("format="+tc.format, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, f.path("/export?format="+tc.format), nil)
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
			}
			if got := rr.Header().Get("Content-Type"); got != tc.contentType {
				t.Errorf("Content-Type = %q, want %q", got, tc.contentType)
			}
			if got := rr.Header().Get("Content-Disposition"); !strings.Contains(got, tc.fileName) {
				t.Errorf("Content-Disposition = %q, want %s", got, tc.fileName)
			}
			if !strings.Contains(rr.Body.String(), tc.contains) {
				t.Errorf("body missing %q", tc.contains)
			}
		})
	}

	rr := env.do(t, http.MethodGet, f.path("/export?format=xml"), nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown format: status = %d, want 400", rr.Code)
	}
}

func TestExport_DownloadRoundTripsThroughImport(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, 1, 3)

	rr := env.do(t, http.MethodGet, f.path("/export?format=yaml"), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("export status = %d", rr.Code)
	}

	var imported ProjectResponse
	env.mustDo(t, http.MethodPost, "/projects/import?format=yaml&name=Copy", rr.Body.Bytes(), http.StatusCreated, &imported)
	if imported.ID == f.projectID || imported.Name != "Copy" || !imported.Open {
		t.Fatalf("imported = %+v", imported)
	}

	var st StateResponse
	env.mustDo(t, http.MethodGet, "/projects/"+imported.ID+"/state", nil, http.StatusOK, &st)
	if len(st.Document.Tracks) != 1 || st.Document.Tracks[0].Items[0].Start != 1 {
		t.Errorf("imported tracks = %+v", st.Document.Tracks)
	}
	if st.Dirty {
		t.Error("freshly imported project should be clean")
	}
}

func TestImport_InvalidDocument(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/projects/import", []byte(`{"version":"2.0"}`))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	var resp ErrorResponse
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Path != "version" {
		t.Errorf("error path = %q, want version", resp.Path)
	}

	rr = env.do(t, http.MethodPost, "/projects/import?format=edl", []byte(`{}`))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("edl import: status = %d, want 400", rr.Code)
	}

	var list ProjectsResponse
	env.mustDo(t, http.MethodGet, "/projects", nil, http.StatusOK, &list)
	if len(list.Projects) != 0 {
		t.Errorf("failed imports created %d projects", len(list.Projects))
	}
}

func TestLoad_ReplacesOpenSession(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, 0, 2)
	env.mustDo(t, http.MethodPost, f.path("/save"), nil, http.StatusOK, nil)

	other := env.newFixture(t, 7, 1)
	rr := env.do(t, http.MethodGet, other.path("/export"), nil)

	var st StateResponse
	env.mustDo(t, http.MethodPost, f.path("/load"), rr.Body.Bytes(), http.StatusOK, &st)
	if !st.Dirty || st.Revision != 2 {
		t.Errorf("dirty/revision = %v/%d, want true/2", st.Dirty, st.Revision)
	}
	if st.Document.Tracks[0].Items[0].Start != 7 {
		t.Errorf("loaded clip start = %v, want 7", st.Document.Tracks[0].Items[0].Start)
	}
	if st.History.CanUndo {
		t.Error("load should reset history")
	}

	rr = env.do(t, http.MethodPost, f.path("/load"), []byte("tracks: [oops"))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad document: status = %d, want 400", rr.Code)
	}
}

func TestRenderSettings(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, 0, 2)

	rs := export.DefaultRenderSettings()
	rs.FPS = 24
	rs.Format = "webm"
	env.mustDo(t, http.MethodPut, f.path("/render-settings"), rs, http.StatusOK, nil)

	var st StateResponse
	env.mustDo(t, http.MethodGet, f.path("/state"), nil, http.StatusOK, &st)
	if st.Document.RenderSettings != rs {
		t.Errorf("render settings = %+v, want %+v", st.Document.RenderSettings, rs)
	}

	rs.FPS = 0
	env.mustDo(t, http.MethodPut, f.path("/render-settings"), rs, http.StatusBadRequest, nil)
}

func TestExportToDisk(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, 0, 2)
	dir := t.TempDir()

	var resp ExportResponse
	env.mustDo(t, http.MethodPost, f.path("/export"), ExportRequest{Format: "edl", OutputDir: dir}, http.StatusOK, &resp)
	if resp.OutputPath != filepath.Join(dir, "Demo.edl") {
		t.Errorf("output path = %q", resp.OutputPath)
	}
	data, err := os.ReadFile(resp.OutputPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if len(data) != resp.Bytes || !strings.Contains(string(data), "asset://intro") {
		t.Errorf("export file = %q", data)
	}

	env.mustDo(t, http.MethodPost, f.path("/export"), ExportRequest{Format: "json"}, http.StatusOK, &resp)
	if filepath.Dir(resp.OutputPath) != env.cfg.ExportsDir {
		t.Errorf("default export dir = %q, want %q", filepath.Dir(resp.OutputPath), env.cfg.ExportsDir)
	}
}

func TestExportToDisk_Validation(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, 0, 2)

	cases := []struct {
		name string
		req  ExportRequest
	}{
		{"unknown format", ExportRequest{Format: "mov", OutputDir: t.TempDir()}},
		{"traversal", ExportRequest{Format: "json", OutputDir: "/tmp/../etc"}},
		{"missing dir", ExportRequest{Format: "json", OutputDir: "/nonexistent/exports"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, f.path("/export"), tc.req)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
		})
	}
}

func TestExportToDisk_RejectsRemoteClients(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, 0, 2)

	body := strings.NewReader(`{"format":"json"}`)
	req := httptest.NewRequest(http.MethodPost, f.path("/export"), body)
	req.RemoteAddr = "203.0.113.9:5000"
	req.Header.Set("Authorization", "Bearer "+env.token)
	rr := httptest.NewRecorder()

	env.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}
