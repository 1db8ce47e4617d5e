package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-timeline/internal/export"
	"github.com/heimdex/heimdex-timeline/internal/logging"
)

// StubClient is used when no render service is configured. Jobs complete on
// their first status poll and assets are copied into a local directory.
type StubClient struct {
	assetsDir string
	logger    *slog.Logger

	mu   sync.Mutex
	jobs map[string]*stubJob
}

type stubJob struct {
	req    Request
	status JobStatus
}

func NewStubClient(assetsDir string, logger *slog.Logger) *StubClient {
	if logger == nil {
		logger = logging.Discard()
	}
	return &StubClient{
		assetsDir: assetsDir,
		logger:    logger,
		jobs:      make(map[string]*stubJob),
	}
}

func (c *StubClient) SubmitRender(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()

	c.mu.Lock()
	c.jobs[id] = &stubJob{req: req, status: JobStatus{Status: StatusQueued}}
	c.mu.Unlock()

	c.logger.Info("render stub: job accepted", "job_id", id, "project_id", req.ProjectID)
	return id, nil
}

func (c *StubClient) RenderStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if !job.status.Status.Terminal() {
		format := job.req.RenderSettings.Format
		if format == "" {
			format = export.DefaultRenderSettings().Format
		}
		job.status = JobStatus{
			Status:    StatusCompleted,
			Progress:  100,
			OutputURL: fmt.Sprintf("stub://renders/%s.%s", jobID, format),
		}
	}
	st := job.status
	return &st, nil
}

func (c *StubClient) ImportAsset(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(c.assetsDir, 0o755); err != nil {
		return "", fmt.Errorf("create assets dir: %w", err)
	}

	base := export.SanitizeName(filepath.Base(filename), 120)
	if base == "" || base == "." || base == ".." {
		base = "asset"
	}
	name := uuid.NewString()[:8] + "-" + base
	dst := filepath.Join(c.assetsDir, name)

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create asset file: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("write asset: %w", err)
	}

	c.logger.Info("render stub: asset stored", "path", logging.SanitizePath(dst), "bytes", n)
	return "asset://" + name, nil
}
