// Package jobs contains the download job orchestrator: the manager
// that accepts submissions, the per-job runner that drives the external
// pipeline, the progress broadcaster, and the retention sweeper.
package jobs

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"videofetch/internal/domain"
	"videofetch/internal/pipeline"
	"videofetch/internal/storage"
)

// ManagerConfig bounds the orchestrator's resource usage.
type ManagerConfig struct {
	// MaxConcurrent caps simultaneously active jobs, which bounds the
	// external subprocess fan-out.
	MaxConcurrent int
	// StallTimeout forces a job to error when the pipeline produces no
	// output for this long.
	StallTimeout time.Duration
	// JobTimeout bounds a job's total runtime.
	JobTimeout time.Duration
}

// Manager is the public entry point for download jobs. It creates
// jobs, enforces the concurrency ceiling, dispatches runners, answers
// status and stream queries, and routes cancellation requests.
type Manager struct {
	cfg   ManagerConfig
	store Store
	bcast *Broadcaster
	files *storage.FileStore
	pipe  pipeline.Pipeline
	log   zerolog.Logger

	sem     *semaphore.Weighted
	metrics Metrics

	ctx      context.Context
	stopJobs context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// Store is the job record table the manager operates on.
type Store interface {
	Create(id, sourceURL string) domain.Snapshot
	Snapshot(id string) (domain.Snapshot, bool)
	Update(id string, fn func(*domain.Job)) (domain.Snapshot, bool)
	Transition(id string, to domain.Status, extra func(*domain.Job)) (domain.Snapshot, bool)
	Delete(id string)
	Snapshots() []domain.Snapshot
	ActiveCount() int
}

// NewManager wires the orchestrator. Runners inherit ctx; cancelling it
// (process shutdown) aborts every in-flight job.
func NewManager(ctx context.Context, cfg ManagerConfig, st Store, bcast *Broadcaster, files *storage.FileStore, pipe pipeline.Pipeline, log zerolog.Logger) *Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.StallTimeout <= 0 {
		cfg.StallTimeout = 60 * time.Second
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Minute
	}
	runCtx, stop := context.WithCancel(ctx)
	return &Manager{
		cfg:      cfg,
		store:    st,
		bcast:    bcast,
		files:    files,
		pipe:     pipe,
		log:      log,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		ctx:      runCtx,
		stopJobs: stop,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Submit validates the URL, reserves a concurrency slot, creates the
// job record, and hands it to a runner. It returns the job id without
// waiting for the pipeline to start.
func (m *Manager) Submit(rawURL string) (string, error) {
	normalized, err := domain.NormalizeURL(rawURL)
	if err != nil {
		return "", err
	}

	// The slot is reserved here, not in the runner, so the ceiling is
	// enforced at submission time with no hidden queueing behind it.
	if !m.sem.TryAcquire(1) {
		m.metrics.rejections.Add(1)
		return "", fmt.Errorf("%d active downloads: %w", m.cfg.MaxConcurrent, domain.ErrOverloaded)
	}

	id := uuid.NewString()
	m.store.Create(id, normalized)
	m.log.Info().Str("job_id", id).Str("url", normalized).Msg("job: submitted")

	r := &runner{m: m, jobID: id, url: normalized}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		r.run(m.ctx)
	}()
	return id, nil
}

// Status returns a consistent snapshot of one job.
func (m *Manager) Status(id string) (domain.Snapshot, error) {
	snap, ok := m.store.Snapshot(id)
	if !ok {
		return domain.Snapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

// Subscribe attaches a listener to a job's progress stream. The first
// event is the job's current snapshot; the stream ends after a
// terminal status event.
func (m *Manager) Subscribe(id string) (<-chan domain.ProgressEvent, func(), error) {
	snap, ok := m.store.Snapshot(id)
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	ch, unsub := m.bcast.Subscribe(id, snap.Event(), snap.Status.IsTerminal())

	// The runner may have closed the job's channels between the snapshot
	// read and the registration, leaving this subscriber attached to a
	// set nothing will close. Re-read and fall back to the terminal
	// snapshot if so.
	if !snap.Status.IsTerminal() {
		if cur, ok := m.store.Snapshot(id); ok && cur.Status.IsTerminal() {
			unsub()
			ch, unsub = m.bcast.Subscribe(id, cur.Event(), true)
		}
	}
	return ch, unsub, nil
}

// Cancel requests cooperative termination of a job. Repeat calls and
// calls on already-terminal jobs are no-ops returning success.
func (m *Manager) Cancel(id string) error {
	snap, ok := m.store.Update(id, func(j *domain.Job) {
		if !j.Status.IsTerminal() {
			j.CancelRequested = true
		}
	})
	if !ok {
		return domain.ErrNotFound
	}
	if snap.Status.IsTerminal() {
		return nil
	}

	m.mu.Lock()
	cancel := m.cancels[id]
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.log.Info().Str("job_id", id).Msg("job: cancel requested")
	return nil
}

// Artifact resolves the completed job's file. ErrNotReady while the
// job is still active, ErrGone once the artifact (or a failed job's
// record of it) has been reclaimed.
func (m *Manager) Artifact(id string) (string, error) {
	snap, ok := m.store.Snapshot(id)
	if !ok {
		return "", domain.ErrNotFound
	}
	switch {
	case snap.Status == domain.StatusCompleted:
	case snap.Status.IsTerminal():
		return "", domain.ErrGone
	default:
		return "", domain.ErrNotReady
	}

	// The record's artifact path is the source of truth; a missing or
	// emptied file means the sweeper (or an operator) got there first.
	if snap.ArtifactPath == "" {
		return "", domain.ErrGone
	}
	info, err := os.Stat(snap.ArtifactPath)
	if err != nil || info.Size() == 0 {
		return "", domain.ErrGone
	}
	return snap.ArtifactPath, nil
}

// Metrics reports orchestrator counters plus the live active count.
func (m *Manager) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		ActiveJobs:      m.store.ActiveCount(),
		QueueRejections: m.metrics.rejections.Load(),
		Completed:       m.metrics.completed.Load(),
		Errored:         m.metrics.errored.Load(),
		Cancelled:       m.metrics.cancelled.Load(),
	}
}

// Shutdown aborts in-flight jobs and waits for their runners, bounded
// by ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stopJobs()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) registerCancel(id string, cancel context.CancelFunc) {
	m.mu.Lock()
	m.cancels[id] = cancel
	m.mu.Unlock()
}

func (m *Manager) unregisterCancel(id string) {
	m.mu.Lock()
	delete(m.cancels, id)
	m.mu.Unlock()
}
