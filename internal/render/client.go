// Package render talks to the service that turns saved timelines into media
// files and stores imported assets.
package render

import (
	"context"
	"errors"
	"io"

	"github.com/heimdex/heimdex-timeline/internal/export"
)

var ErrJobNotFound = errors.New("render job not found")

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether a job in this status will not change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Request asks the render service to render one exported document.
type Request struct {
	ProjectID      string                `json:"projectId"`
	RenderSettings export.RenderSettings `json:"renderSettings"`
	Document       []byte                `json:"-"`
}

type JobStatus struct {
	Status    Status  `json:"status"`
	Progress  float64 `json:"progress"`
	OutputURL string  `json:"outputUrl,omitempty"`
	Error     string  `json:"error,omitempty"`
}

type Client interface {
	SubmitRender(ctx context.Context, req Request) (string, error)
	RenderStatus(ctx context.Context, jobID string) (*JobStatus, error)
	ImportAsset(ctx context.Context, filename string, r io.Reader) (string, error)
}
