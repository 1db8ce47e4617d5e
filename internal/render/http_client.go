package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-timeline/internal/logging"
)

// RequestError is a non-2xx response from the render service.
type RequestError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s failed: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx) and rate limiting.
// Other client errors are permanent.
func (e *RequestError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsRetryable reports whether err is worth retrying on the next poll.
// Transport errors are retryable; permanent RequestErrors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re *RequestError
	if errors.As(err, &re) {
		return re.IsRetryable()
	}
	return !errors.Is(err, ErrJobNotFound) && !errors.Is(err, context.Canceled)
}

type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL, token string, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = logging.Discard()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

type submitBody struct {
	ProjectID      string          `json:"projectId"`
	RenderSettings any             `json:"renderSettings"`
	Document       json.RawMessage `json:"document,omitempty"`
}

type submitResponse struct {
	JobID string `json:"jobId"`
}

type assetResponse struct {
	ContentRef string `json:"contentRef"`
}

func (c *HTTPClient) SubmitRender(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(submitBody{
		ProjectID:      req.ProjectID,
		RenderSettings: req.RenderSettings,
		Document:       json.RawMessage(req.Document),
	})
	if err != nil {
		return "", fmt.Errorf("marshal render request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/renders", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Info("submitting render",
		"project_id", req.ProjectID,
		"format", req.RenderSettings.Format,
		"body_bytes", len(body),
	)

	var out submitResponse
	if err := c.do(httpReq, "submit render", &out); err != nil {
		return "", err
	}
	if out.JobID == "" {
		return "", fmt.Errorf("submit render: response has no job id")
	}
	return out.JobID, nil
}

func (c *HTTPClient) RenderStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	httpReq, err := c.newRequest(ctx, http.MethodGet, "/api/renders/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}

	var out JobStatus
	if err := c.do(httpReq, "render status", &out); err != nil {
		var re *RequestError
		if errors.As(err, &re) && re.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ImportAsset(ctx context.Context, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	n, err := io.Copy(part, r)
	if err != nil {
		return "", fmt.Errorf("read asset: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/assets", &buf)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	c.logger.Info("uploading asset", "filename", filename, "bytes", n)

	var out assetResponse
	if err := c.do(httpReq, "import asset", &out); err != nil {
		return "", err
	}
	if out.ContentRef == "" {
		return "", fmt.Errorf("import asset: response has no content ref")
	}
	return out.ContentRef, nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

func (c *HTTPClient) do(req *http.Request, op string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: http request failed: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
