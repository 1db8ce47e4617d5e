package api

import (
	"time"

	"github.com/heimdex/heimdex-timeline/internal/export"
	"github.com/heimdex/heimdex-timeline/internal/history"
	"github.com/heimdex/heimdex-timeline/internal/playback"
	"github.com/heimdex/heimdex-timeline/internal/project"
	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State           string   `json:"state"`
	ProjectsCount   int      `json:"projects_count"`
	OpenSessions    []string `json:"open_sessions"`
	RendersActive   int      `json:"renders_active"`
	RunnerPaused    bool     `json:"runner_paused"`
	LastRenderError string   `json:"last_render_error,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Path  string `json:"path,omitempty"`
}

type CreateProjectRequest struct {
	Name     string  `json:"name"`
	Duration float64 `json:"duration,omitempty"`
}

type SaveProjectRequest struct {
	Revision int    `json:"revision,omitempty"`
	Name     string `json:"name,omitempty"`
}

type ProjectResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Revision  int    `json:"revision"`
	Open      bool   `json:"open"`
	Dirty     bool   `json:"dirty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type ProjectsResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

// StateResponse is the full view of an open project. Document uses the
// export wire format.
type StateResponse struct {
	ProjectID string            `json:"project_id"`
	Revision  int               `json:"revision"`
	Dirty     bool              `json:"dirty"`
	Document  *export.Document  `json:"document"`
	Selection SelectionResponse `json:"selection"`
	History   HistoryResponse   `json:"history"`
	Playback  playback.Status   `json:"playback"`
}

type SelectionResponse struct {
	ClipIDs     []string `json:"clip_ids"`
	KeyframeIDs []string `json:"keyframe_ids"`
}

type HistoryResponse struct {
	Entries []history.Info `json:"entries"`
	CanUndo bool           `json:"can_undo"`
	CanRedo bool           `json:"can_redo"`
}

type AddTrackRequest struct {
	Kind string `json:"kind"`
	Name string `json:"name,omitempty"`
}

type UpdateTrackRequest struct {
	Name      *string  `json:"name,omitempty"`
	Color     *string  `json:"color,omitempty"`
	Visible   *bool    `json:"visible,omitempty"`
	Locked    *bool    `json:"locked,omitempty"`
	Volume    *float64 `json:"volume,omitempty"`
	Height    *float64 `json:"height,omitempty"`
	Collapsed *bool    `json:"collapsed,omitempty"`
}

func (r UpdateTrackRequest) patch() timeline.TrackPatch {
	return timeline.TrackPatch{
		Name:      r.Name,
		Color:     r.Color,
		Visible:   r.Visible,
		Locked:    r.Locked,
		Volume:    r.Volume,
		Height:    r.Height,
		Collapsed: r.Collapsed,
	}
}

type MoveTrackRequest struct {
	Index int `json:"index"`
}

type AddClipRequest struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Content  string  `json:"content,omitempty"`
	Locked   bool    `json:"locked,omitempty"`
}

// UpdateClipRequest applies every set field as one history entry. TrackID
// moves the clip to another track.
type UpdateClipRequest struct {
	TrackID  *string  `json:"track_id,omitempty"`
	Start    *float64 `json:"start,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
	Content  *string  `json:"content,omitempty"`
	Locked   *bool    `json:"locked,omitempty"`
}

type SplitClipRequest struct {
	At float64 `json:"at"`
}

type SplitClipResponse struct {
	Left  export.ItemDoc `json:"left"`
	Right export.ItemDoc `json:"right"`
}

type SelectRequest struct {
	ClipID     string `json:"clip_id,omitempty"`
	KeyframeID string `json:"keyframe_id,omitempty"`
	Additive   bool   `json:"additive,omitempty"`
}

type DuplicateResponse struct {
	Clips []export.ItemDoc `json:"clips"`
}

type DeleteSelectionResponse struct {
	Deleted int `json:"deleted"`
}

type AddKeyframeRequest struct {
	Time       float64        `json:"time"`
	Properties map[string]any `json:"properties,omitempty"`
}

type UpdateKeyframeRequest struct {
	Time              *float64       `json:"time,omitempty"`
	Properties        map[string]any `json:"properties,omitempty"`
	ReplaceProperties bool           `json:"replace_properties,omitempty"`
	Easing            *string        `json:"easing,omitempty"`
	Interpolation     *string        `json:"interpolation,omitempty"`
}

type PropertiesResponse struct {
	ClipID     string         `json:"clip_id"`
	Time       float64        `json:"time"`
	Properties map[string]any `json:"properties"`
}

type AddEffectRequest struct {
	Name     string         `json:"name,omitempty"`
	Type     string         `json:"type"`
	Params   map[string]any `json:"params,omitempty"`
	Start    float64        `json:"start,omitempty"`
	Duration float64        `json:"duration,omitempty"`
	Enabled  *bool          `json:"enabled,omitempty"`
}

type UpdateEffectRequest struct {
	Name     *string        `json:"name,omitempty"`
	Enabled  *bool          `json:"enabled,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
	Start    *float64       `json:"start,omitempty"`
	Duration *float64       `json:"duration,omitempty"`
}

type AddMarkerRequest struct {
	Time     float64 `json:"time"`
	Category string  `json:"category,omitempty"`
	Label    string  `json:"label,omitempty"`
}

type MarkersResponse struct {
	Markers []export.MarkerDoc `json:"markers"`
}

type ViewportRequest struct {
	Zoom       *float64 `json:"zoom,omitempty"`
	SnapToGrid *bool    `json:"snap_to_grid,omitempty"`
	GridSize   *float64 `json:"grid_size,omitempty"`
	Duration   *float64 `json:"duration,omitempty"`
}

type ViewportResponse struct {
	Zoom         float64 `json:"zoom"`
	SnapToGrid   bool    `json:"snap_to_grid"`
	GridSize     float64 `json:"grid_size"`
	Duration     float64 `json:"duration"`
	PixelsPerSec float64 `json:"pixels_per_second"`
}

type LaneResponse struct {
	TrackID   string  `json:"track_id"`
	Top       float64 `json:"top"`
	Height    float64 `json:"height"`
	Collapsed bool    `json:"collapsed"`
}

type LanesResponse struct {
	HeaderHeight float64        `json:"header_height"`
	Lanes        []LaneResponse `json:"lanes"`
}

type UndoResponse struct {
	Applied bool `json:"applied"`
	HistoryResponse
}

type SeekRequest struct {
	Time float64 `json:"time"`
}

type PlaybackSettingsRequest struct {
	Rate *float64 `json:"rate,omitempty"`
	Loop *bool    `json:"loop,omitempty"`
}

type PointerRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type GestureViewportRequest struct {
	HeaderHeight float64 `json:"header_height"`
	ScrollX      float64 `json:"scroll_x"`
	ScrollY      float64 `json:"scroll_y"`
}

type GestureResponse struct {
	Mode     string `json:"mode"`
	Edge     string `json:"edge,omitempty"`
	TrackID  string `json:"track_id,omitempty"`
	ClipID   string `json:"clip_id,omitempty"`
	Recorded bool   `json:"recorded,omitempty"`
}

type ExportRequest struct {
	Format    string `json:"format"`
	OutputDir string `json:"output_dir,omitempty"`
}

type ExportResponse struct {
	Status     string `json:"status"`
	Format     string `json:"format"`
	OutputPath string `json:"output_path"`
	Bytes      int    `json:"bytes"`
}

type SubmitRenderRequest struct {
	Settings *export.RenderSettings `json:"settings,omitempty"`
}

type RenderJobResponse struct {
	ID          string                `json:"id"`
	ProjectID   string                `json:"project_id"`
	RemoteJobID string                `json:"remote_job_id,omitempty"`
	Status      string                `json:"status"`
	Progress    float64               `json:"progress"`
	OutputURL   string                `json:"output_url,omitempty"`
	Error       string                `json:"error,omitempty"`
	Settings    export.RenderSettings `json:"settings"`
	CreatedAt   string                `json:"created_at"`
	UpdatedAt   string                `json:"updated_at"`
}

type RenderJobsResponse struct {
	Jobs []RenderJobResponse `json:"jobs"`
}

type AssetResponse struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id,omitempty"`
	Filename   string `json:"filename"`
	ContentRef string `json:"content_ref"`
	Size       int64  `json:"size"`
	CreatedAt  string `json:"created_at"`
}

type AssetsResponse struct {
	Assets []AssetResponse `json:"assets"`
}

// EventMessage is one frame on the project event stream.
type EventMessage struct {
	ProjectID string `json:"project_id"`
	timeline.Event
}

func ProjectToResponse(p *project.Project) ProjectResponse {
	return ProjectResponse{
		ID:        p.ID,
		Name:      p.Name,
		Revision:  p.Revision,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
		UpdatedAt: p.UpdatedAt.Format(time.RFC3339),
	}
}

func RenderJobToResponse(j *project.RenderJob) RenderJobResponse {
	return RenderJobResponse{
		ID:          j.ID,
		ProjectID:   j.ProjectID,
		RemoteJobID: j.RemoteJobID,
		Status:      j.Status,
		Progress:    j.Progress,
		OutputURL:   j.OutputURL,
		Error:       j.Error,
		Settings:    j.Settings,
		CreatedAt:   j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   j.UpdatedAt.Format(time.RFC3339),
	}
}

func AssetToResponse(a *project.Asset) AssetResponse {
	return AssetResponse{
		ID:         a.ID,
		ProjectID:  a.ProjectID,
		Filename:   a.Filename,
		ContentRef: a.ContentRef,
		Size:       a.Size,
		CreatedAt:  a.CreatedAt.Format(time.RFC3339),
	}
}
