package project

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/heimdex/heimdex-timeline/internal/export"
	"github.com/heimdex/heimdex-timeline/internal/logging"
	"github.com/heimdex/heimdex-timeline/internal/render"
	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

var (
	ErrProjectNotFound   = errors.New("project not found")
	ErrRenderJobNotFound = errors.New("render job not found")
	ErrRevisionConflict  = errors.New("project was saved by someone else")
)

// AuthTokenKey is the config key holding the API bearer token.
const AuthTokenKey = "auth_token"

const DefaultProjectName = "Untitled"

type Service struct {
	repo   Repository
	client render.Client
	logger *slog.Logger
}

func NewService(repo Repository, client render.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{repo: repo, client: client, logger: logger}
}

func (s *Service) Repository() Repository {
	return s.repo
}

// CreateProject stores st as a new project with default render settings.
func (s *Service) CreateProject(ctx context.Context, name string, st timeline.State) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultProjectName
	}
	doc, err := encodeDocument(st, export.Project{Name: name, RenderSettings: export.DefaultRenderSettings()})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	p := &Project{
		ID:        NewID(),
		Name:      name,
		Revision:  1,
		Document:  doc,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	s.logger.Info("project created", "project_id", p.ID, "name", name)
	return p, nil
}

// ImportProject validates an exported document and stores it as a new
// project. An empty name keeps the document's own name.
func (s *Service) ImportProject(ctx context.Context, data []byte, f export.Format, name string) (*Project, *export.Imported, error) {
	imp, err := export.Decode(data, f)
	if err != nil {
		return nil, nil, err
	}
	if name = strings.TrimSpace(name); name != "" {
		imp.Project.Name = name
	}
	if imp.Project.Name == "" {
		imp.Project.Name = DefaultProjectName
	}

	doc, err := encodeDocument(imp.State, imp.Project)
	if err != nil {
		return nil, nil, err
	}
	now := time.Now()
	p := &Project{
		ID:        NewID(),
		Name:      imp.Project.Name,
		Revision:  1,
		Document:  doc,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateProject(ctx, p); err != nil {
		return nil, nil, fmt.Errorf("create project: %w", err)
	}

	s.logger.Info("project imported", "project_id", p.ID, "format", f, "tracks", len(imp.State.Tracks))
	return p, imp, nil
}

// SaveProject replaces the stored document. A non-zero revision must match
// the stored one.
func (s *Service) SaveProject(ctx context.Context, id string, revision int, st timeline.State, meta export.Project) (*Project, error) {
	p, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if revision != 0 && revision != p.Revision {
		return nil, fmt.Errorf("%w: have revision %d, stored %d", ErrRevisionConflict, revision, p.Revision)
	}
	if meta.Name = strings.TrimSpace(meta.Name); meta.Name == "" {
		meta.Name = p.Name
	}

	doc, err := encodeDocument(st, meta)
	if err != nil {
		return nil, err
	}
	p.Name = meta.Name
	p.Document = doc
	p.Revision++
	p.UpdatedAt = time.Now()
	if err := s.repo.UpdateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("save project: %w", err)
	}

	s.logger.Info("project saved", "project_id", id, "revision", p.Revision, "bytes", len(doc))
	return p, nil
}

func (s *Service) GetProject(ctx context.Context, id string) (*Project, error) {
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	return p, nil
}

// OpenProject loads and validates the stored document.
func (s *Service) OpenProject(ctx context.Context, id string) (*Project, *export.Imported, error) {
	p, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	imp, err := export.Decode(p.Document, export.FormatJSON)
	if err != nil {
		return nil, nil, fmt.Errorf("stored document for %s: %w", id, err)
	}
	return p, imp, nil
}

func (s *Service) ListProjects(ctx context.Context) ([]*Project, error) {
	return s.repo.ListProjects(ctx)
}

func (s *Service) DeleteProject(ctx context.Context, id string) error {
	if _, err := s.GetProject(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteProject(ctx, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	s.logger.Info("project deleted", "project_id", id)
	return nil
}

// SubmitRender sends the stored document to the render service. settings
// overrides the document's render settings when non-nil. A job that the
// service rejects is kept with status failed and the error is returned.
func (s *Service) SubmitRender(ctx context.Context, projectID string, settings *export.RenderSettings) (*RenderJob, error) {
	p, imp, err := s.OpenProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	rs := imp.Project.RenderSettings
	if settings != nil {
		rs = *settings
	}

	now := time.Now()
	job := &RenderJob{
		ID:        NewID(),
		ProjectID: projectID,
		Status:    JobStatusPending,
		Settings:  rs,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateRenderJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create render job: %w", err)
	}

	log := logging.WithJobID(logging.WithProjectID(s.logger, projectID), job.ID)

	remoteID, err := s.client.SubmitRender(ctx, render.Request{
		ProjectID:      projectID,
		RenderSettings: rs,
		Document:       p.Document,
	})
	job.UpdatedAt = time.Now()
	if err != nil {
		job.Status = JobStatusFailed
		job.Error = err.Error()
		if uerr := s.repo.UpdateRenderJob(context.WithoutCancel(ctx), job); uerr != nil {
			log.Error("failed to record render submission failure", "error", uerr)
		}
		log.Warn("render submission failed", "error", err, "retryable", render.IsRetryable(err))
		return job, fmt.Errorf("submit render: %w", err)
	}

	job.RemoteJobID = remoteID
	job.Status = JobStatusQueued
	if err := s.repo.UpdateRenderJob(ctx, job); err != nil {
		return nil, fmt.Errorf("update render job: %w", err)
	}

	log.Info("render submitted", "remote_job_id", remoteID, "format", rs.Format)
	return job, nil
}

func (s *Service) GetRenderJob(ctx context.Context, id string) (*RenderJob, error) {
	job, err := s.repo.GetRenderJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: %s", ErrRenderJobNotFound, id)
	}
	return job, nil
}

func (s *Service) ListRenderJobs(ctx context.Context, projectID string, limit int) ([]*RenderJob, error) {
	return s.repo.ListRenderJobs(ctx, projectID, limit)
}

// ImportAsset hands the file to the render service and records the returned
// content reference. projectID may be empty.
func (s *Service) ImportAsset(ctx context.Context, projectID, filename string, r io.Reader) (*Asset, error) {
	if projectID != "" {
		if _, err := s.GetProject(ctx, projectID); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("asset filename is required")
	}

	cr := &countingReader{r: r}
	ref, err := s.client.ImportAsset(ctx, filename, cr)
	if err != nil {
		return nil, fmt.Errorf("import asset: %w", err)
	}

	a := &Asset{
		ID:         NewID(),
		ProjectID:  projectID,
		Filename:   filename,
		ContentRef: ref,
		Size:       cr.n,
		CreatedAt:  time.Now(),
	}
	if err := s.repo.CreateAsset(ctx, a); err != nil {
		return nil, fmt.Errorf("record asset: %w", err)
	}

	s.logger.Info("asset imported", "asset_id", a.ID, "content_ref", ref, "bytes", cr.n)
	return a, nil
}

func (s *Service) ListAssets(ctx context.Context, projectID string) ([]*Asset, error) {
	return s.repo.ListAssets(ctx, projectID)
}

// EnsureAuthToken returns the stored API token, generating one on first use.
func (s *Service) EnsureAuthToken(ctx context.Context) (string, error) {
	token, err := s.repo.GetConfig(ctx, AuthTokenKey)
	if err != nil {
		return "", err
	}
	if token != "" {
		return token, nil
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate auth token: %w", err)
	}
	token = hex.EncodeToString(b)
	if err := s.repo.SetConfig(ctx, AuthTokenKey, token); err != nil {
		return "", fmt.Errorf("store auth token: %w", err)
	}
	s.logger.Info("generated API auth token", "token", logging.SanitizeToken(token))
	return token, nil
}

func encodeDocument(st timeline.State, meta export.Project) ([]byte, error) {
	if st.Duration <= 0 {
		st.Duration = timeline.DefaultDuration
	}
	data, err := export.Marshal(export.Encode(st, meta), export.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
