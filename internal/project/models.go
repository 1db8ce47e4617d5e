// Package project persists timeline documents, render jobs and imported
// assets in sqlite, and polls the render service for job progress.
package project

import (
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-timeline/internal/export"
)

// Project is a saved timeline. Document holds the JSON export document.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Revision  int       `json:"revision"`
	Document  []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	JobStatusPending   = "pending"
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

type RenderJob struct {
	ID          string                `json:"id"`
	ProjectID   string                `json:"project_id"`
	RemoteJobID string                `json:"remote_job_id,omitempty"`
	Status      string                `json:"status"`
	Progress    float64               `json:"progress"`
	OutputURL   string                `json:"output_url,omitempty"`
	Error       string                `json:"error,omitempty"`
	Settings    export.RenderSettings `json:"settings"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// Active reports whether the runner should keep polling the job.
func (j *RenderJob) Active() bool {
	return j.RemoteJobID != "" && (j.Status == JobStatusQueued || j.Status == JobStatusRunning)
}

type Asset struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id,omitempty"`
	Filename   string    `json:"filename"`
	ContentRef string    `json:"content_ref"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewID() string {
	return uuid.NewString()
}
