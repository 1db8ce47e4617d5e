package render

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/heimdex/heimdex-timeline/internal/export"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestHTTPClient_SubmitRender_Success(t *testing.T) {
	var received map[string]any
	var receivedAuth, receivedRequestID string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/renders" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		receivedAuth = r.Header.Get("Authorization")
		receivedRequestID = r.Header.Get("X-Request-ID")

		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)

		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"jobId":"remote-1"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL+"/", "test-token", testLogger())

	id, err := client.SubmitRender(context.Background(), Request{
		ProjectID:      "p1",
		RenderSettings: export.DefaultRenderSettings(),
		Document:       []byte(`{"version":"1.0"}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "remote-1" {
		t.Errorf("job id = %q, want remote-1", id)
	}
	if receivedAuth != "Bearer test-token" {
		t.Errorf("auth = %q", receivedAuth)
	}
	if receivedRequestID == "" {
		t.Error("missing X-Request-ID header")
	}
	if received["projectId"] != "p1" {
		t.Errorf("projectId = %v", received["projectId"])
	}
	doc, _ := received["document"].(map[string]any)
	if doc["version"] != "1.0" {
		t.Errorf("document not embedded: %v", received["document"])
	}
	settings, _ := received["renderSettings"].(map[string]any)
	if settings["format"] != "mp4" {
		t.Errorf("renderSettings.format = %v", settings["format"])
	}
}

func TestHTTPClient_SubmitRender_MissingJobID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "", testLogger())
	if _, err := client.SubmitRender(context.Background(), Request{ProjectID: "p1"}); err == nil {
		t.Fatal("expected error for response without job id")
	}
}

func TestHTTPClient_RenderStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/renders/job-1":
			w.Write([]byte(`{"status":"running","progress":42.5}`))
		case "/api/renders/job-2":
			w.Write([]byte(`{"status":"completed","progress":100,"outputUrl":"https://cdn.example.com/out.mp4"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"unknown job"}`))
		}
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-token", testLogger())

	st, err := client.RenderStatus(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Status != StatusRunning || st.Progress != 42.5 {
		t.Errorf("status = %+v", st)
	}

	st, err = client.RenderStatus(context.Background(), "job-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Status != StatusCompleted || st.OutputURL != "https://cdn.example.com/out.mp4" {
		t.Errorf("status = %+v", st)
	}

	_, err = client.RenderStatus(context.Background(), "missing")
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("error = %v, want ErrJobNotFound", err)
	}
	if IsRetryable(err) {
		t.Error("missing job should not be retryable")
	}
}

func TestHTTPClient_ReturnsRequestError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"detail":"upstream down"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-token", testLogger())

	_, err := client.SubmitRender(context.Background(), Request{ProjectID: "p1"})
	var re *RequestError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RequestError, got %T: %v", err, err)
	}
	if re.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d", re.StatusCode)
	}
	if !strings.Contains(re.Body, "upstream down") {
		t.Errorf("body = %q", re.Body)
	}
	if !IsRetryable(err) {
		t.Error("502 should be retryable")
	}
}

func TestRequestError_IsRetryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusTooManyRequests, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusNotFound, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			if got := (&RequestError{StatusCode: tt.status}).IsRetryable(); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHTTPClient_ImportAsset(t *testing.T) {
	var gotName, gotContent string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/assets" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile() error = %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		gotName = hdr.Filename
		gotContent = string(data)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"contentRef":"asset://abc"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-token", testLogger())

	ref, err := client.ImportAsset(context.Background(), "intro.mp4", strings.NewReader("frames"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref != "asset://abc" {
		t.Errorf("ref = %q", ref)
	}
	if gotName != "intro.mp4" || gotContent != "frames" {
		t.Errorf("server got %q/%q", gotName, gotContent)
	}
}
