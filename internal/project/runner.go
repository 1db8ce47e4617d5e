package project

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/heimdex/heimdex-timeline/internal/logging"
	"github.com/heimdex/heimdex-timeline/internal/render"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultConcurrency  = 4
)

// Runner polls the render service for every active render job.
type Runner struct {
	repo         Repository
	client       render.Client
	logger       *slog.Logger
	pollInterval time.Duration
	concurrency  int
	running      atomic.Bool
	paused       atomic.Bool

	mu       sync.Mutex
	onUpdate func(*RenderJob)
}

func NewRunner(repo Repository, client render.Client, logger *slog.Logger, pollInterval time.Duration, concurrency int) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Runner{
		repo:         repo,
		client:       client,
		logger:       logging.WithComponent(logger, "render-runner"),
		pollInterval: pollInterval,
		concurrency:  concurrency,
	}
}

// OnUpdate registers fn to be called after a job's stored state changes.
func (r *Runner) OnUpdate(fn func(*RenderJob)) {
	r.mu.Lock()
	r.onUpdate = fn
	r.mu.Unlock()
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("render runner started", "interval", r.pollInterval, "concurrency", r.concurrency)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("render runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			if r.paused.Load() {
				continue
			}
			if _, err := r.PollOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("render poll failed", "error", err)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("render runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("render runner resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// PollOnce checks every active job and returns how many changed.
func (r *Runner) PollOnce(ctx context.Context) (int, error) {
	jobs, err := r.repo.ListActiveRenderJobs(ctx)
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	var updated atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, job := range jobs {
		g.Go(func() error {
			changed, err := r.pollJob(gctx, job)
			if changed {
				updated.Add(1)
			}
			return err
		})
	}
	err = g.Wait()
	return int(updated.Load()), err
}

func (r *Runner) pollJob(ctx context.Context, job *RenderJob) (bool, error) {
	log := logging.WithJobID(r.logger, job.ID)

	st, err := r.client.RenderStatus(ctx, job.RemoteJobID)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, nil
		}
		if render.IsRetryable(err) {
			log.Warn("render status unavailable, will retry", "error", err)
			return false, nil
		}
		job.Status = JobStatusFailed
		job.Error = err.Error()
		return true, r.save(ctx, job, log)
	}

	next := *job
	next.Status = string(st.Status)
	next.Progress = st.Progress
	next.OutputURL = st.OutputURL
	next.Error = st.Error
	if next.Status == JobStatusCompleted {
		next.Progress = 100
	}
	if next.Status == job.Status && next.Progress == job.Progress &&
		next.OutputURL == job.OutputURL && next.Error == job.Error {
		return false, nil
	}

	*job = next
	return true, r.save(ctx, job, log)
}

func (r *Runner) save(ctx context.Context, job *RenderJob, log *slog.Logger) error {
	job.UpdatedAt = time.Now()
	if err := r.repo.UpdateRenderJob(ctx, job); err != nil {
		return err
	}
	log.Info("render job updated", "status", job.Status, "progress", job.Progress)

	r.mu.Lock()
	fn := r.onUpdate
	r.mu.Unlock()
	if fn != nil {
		fn(job)
	}
	return nil
}
