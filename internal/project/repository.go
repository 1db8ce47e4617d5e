package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Repository is the sqlite-backed store. Getters return (nil, nil) when the
// row does not exist.
type Repository interface {
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)
	UpdateProject(ctx context.Context, p *Project) error
	DeleteProject(ctx context.Context, id string) error

	CreateRenderJob(ctx context.Context, job *RenderJob) error
	GetRenderJob(ctx context.Context, id string) (*RenderJob, error)
	ListRenderJobs(ctx context.Context, projectID string, limit int) ([]*RenderJob, error)
	ListActiveRenderJobs(ctx context.Context) ([]*RenderJob, error)
	UpdateRenderJob(ctx context.Context, job *RenderJob) error

	CreateAsset(ctx context.Context, a *Asset) error
	ListAssets(ctx context.Context, projectID string) ([]*Asset, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateProject(ctx context.Context, p *Project) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, document, revision, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, string(p.Document), p.Revision, formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	return err
}

func (r *SQLiteRepository) GetProject(ctx context.Context, id string) (*Project, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, document, revision, created_at, updated_at
		FROM projects WHERE id = ?
	`, id)

	var p Project
	var document, createdAt, updatedAt string
	err := row.Scan(&p.ID, &p.Name, &document, &p.Revision, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Document = []byte(document)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// ListProjects omits documents.
func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, revision, created_at, updated_at
		FROM projects ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		var p Project
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.Revision, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = parseTime(createdAt)
		p.UpdatedAt = parseTime(updatedAt)
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

func (r *SQLiteRepository) UpdateProject(ctx context.Context, p *Project) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE projects SET name = ?, document = ?, revision = ?, updated_at = ? WHERE id = ?
	`, p.Name, string(p.Document), p.Revision, formatTime(p.UpdatedAt), p.ID)
	return err
}

func (r *SQLiteRepository) DeleteProject(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	return err
}

const renderJobColumns = `id, project_id, remote_job_id, status, progress, output_url, error, settings, created_at, updated_at`

func (r *SQLiteRepository) CreateRenderJob(ctx context.Context, j *RenderJob) error {
	settings, err := json.Marshal(j.Settings)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO render_jobs (`+renderJobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.ProjectID, nullString(j.RemoteJobID), j.Status, j.Progress,
		nullString(j.OutputURL), nullString(j.Error), string(settings),
		formatTime(j.CreatedAt), formatTime(j.UpdatedAt))
	return err
}

func (r *SQLiteRepository) GetRenderJob(ctx context.Context, id string) (*RenderJob, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+renderJobColumns+` FROM render_jobs WHERE id = ?`, id)
	j, err := scanRenderJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return j, err
}

func (r *SQLiteRepository) ListRenderJobs(ctx context.Context, projectID string, limit int) ([]*RenderJob, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows *sql.Rows
	var err error
	if projectID == "" {
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+renderJobColumns+` FROM render_jobs ORDER BY created_at DESC LIMIT ?
		`, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+renderJobColumns+` FROM render_jobs WHERE project_id = ? ORDER BY created_at DESC LIMIT ?
		`, projectID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRenderJobs(rows)
}

func (r *SQLiteRepository) ListActiveRenderJobs(ctx context.Context) ([]*RenderJob, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+renderJobColumns+` FROM render_jobs
		WHERE status IN ('queued', 'running') AND remote_job_id IS NOT NULL AND remote_job_id != ''
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRenderJobs(rows)
}

func (r *SQLiteRepository) UpdateRenderJob(ctx context.Context, j *RenderJob) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE render_jobs
		SET remote_job_id = ?, status = ?, progress = ?, output_url = ?, error = ?, updated_at = ?
		WHERE id = ?
	`, nullString(j.RemoteJobID), j.Status, j.Progress, nullString(j.OutputURL),
		nullString(j.Error), formatTime(j.UpdatedAt), j.ID)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRenderJob(row scanner) (*RenderJob, error) {
	var j RenderJob
	var remoteID, outputURL, errMsg sql.NullString
	var settings, createdAt, updatedAt string

	err := row.Scan(&j.ID, &j.ProjectID, &remoteID, &j.Status, &j.Progress, &outputURL, &errMsg, &settings, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	j.RemoteJobID = remoteID.String
	j.OutputURL = outputURL.String
	j.Error = errMsg.String
	json.Unmarshal([]byte(settings), &j.Settings)
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)
	return &j, nil
}

func scanRenderJobs(rows *sql.Rows) ([]*RenderJob, error) {
	var jobs []*RenderJob
	for rows.Next() {
		j, err := scanRenderJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *SQLiteRepository) CreateAsset(ctx context.Context, a *Asset) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO assets (id, project_id, filename, content_ref, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID, nullString(a.ProjectID), a.Filename, a.ContentRef, a.Size, formatTime(a.CreatedAt))
	return err
}

// ListAssets returns the assets of projectID, or every asset when it is
// empty.
func (r *SQLiteRepository) ListAssets(ctx context.Context, projectID string) ([]*Asset, error) {
	query := `SELECT id, project_id, filename, content_ref, size_bytes, created_at FROM assets`
	var args []any
	if projectID != "" {
		query += ` WHERE project_id = ?`
		args = append(args, projectID)
	}
	rows, err := r.db.QueryContext(ctx, query+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		var a Asset
		var pid sql.NullString
		var createdAt string
		if err := rows.Scan(&a.ID, &pid, &a.Filename, &a.ContentRef, &a.Size, &createdAt); err != nil {
			return nil, err
		}
		a.ProjectID = pid.String
		a.CreatedAt = parseTime(createdAt)
		assets = append(assets, &a)
	}
	return assets, rows.Err()
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = datetime('now')
	`, key, value)
	return err
}

// timeLayout has fixed-width fractions so stored values sort as text.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime accepts both Go timestamps and sqlite datetime('now') values.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.DateTime, s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
