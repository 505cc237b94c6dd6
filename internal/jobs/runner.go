package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"videofetch/internal/domain"
	"videofetch/internal/pipeline"
)

// runner owns the lifecycle of exactly one job: it drives the external
// pipeline, feeds its output through the progress parser, updates the
// job record, and finalizes or discards the artifact.
type runner struct {
	m     *Manager
	jobID string
	url   string

	mu sync.Mutex // serializes record updates from the two pipe readers

	started atomic.Bool // initializing -> downloading happened
	stalled atomic.Bool
}

func (r *runner) run(ctx context.Context) {
	defer r.m.sem.Release(1)

	log := r.m.log.With().Str("job_id", r.jobID).Logger()

	jobCtx, cancel := context.WithTimeout(ctx, r.m.cfg.JobTimeout)
	defer cancel()
	r.m.registerCancel(r.jobID, cancel)
	defer r.m.unregisterCancel(r.jobID)

	if snap, ok := r.m.store.Snapshot(r.jobID); !ok || snap.CancelRequested {
		// Cancelled before the slot was even used.
		r.finalize(domain.StatusCancelled, "")
		return
	}
	if !r.transition(domain.StatusInitializing, nil) {
		r.finalize(domain.StatusCancelled, "")
		return
	}

	dir, err := r.m.files.JobDir(r.jobID)
	if err != nil {
		log.Error().Err(err).Msg("job: storage unavailable")
		r.finalize(domain.StatusError, "storage unavailable")
		return
	}

	// Stall watchdog: any output line pushes the deadline out.
	stall := time.AfterFunc(r.m.cfg.StallTimeout, func() {
		r.stalled.Store(true)
		cancel()
	})
	defer stall.Stop()

	log.Info().Str("url", r.url).Msg("job: pipeline starting")
	err = r.m.pipe.Fetch(jobCtx, pipeline.Request{
		URL:       r.url,
		OutputDir: dir,
		OnLine: func(stream pipeline.Stream, line string) {
			stall.Reset(r.m.cfg.StallTimeout)
			r.handleLine(stream, line)
		},
	})
	stall.Stop()

	if err != nil {
		r.failOrCancel(log, err)
		return
	}

	artifact, size, err := r.m.files.FindArtifact(r.jobID)
	if err != nil || size == 0 {
		log.Error().Err(err).Msg("job: pipeline exited clean but produced no artifact")
		r.finalize(domain.StatusError, "download produced no output file")
		return
	}

	// A pipeline can exit clean without printing a single line; the job
	// must still pass through downloading before it can complete.
	if r.started.CompareAndSwap(false, true) {
		r.transition(domain.StatusDownloading, nil)
	}

	snap, ok := r.transitionSnap(domain.StatusCompleted, func(j *domain.Job) {
		j.ProgressPercent = 100
		j.ArtifactPath = artifact
		j.CompletedAt = time.Now().UTC()
		j.ETASeconds = nil
	})
	if !ok {
		cur, _ := r.m.store.Snapshot(r.jobID)
		if cur.CancelRequested {
			// A cancel raced the finish line; the artifact is discarded.
			r.finalize(domain.StatusCancelled, "")
		} else {
			r.finalize(domain.StatusError, "download finished in an unexpected state")
		}
		return
	}
	r.m.metrics.completed.Add(1)
	r.m.bcast.Close(r.jobID, snap.Event())
	log.Info().Str("artifact", artifact).Int64("size", size).Msg("job: completed")
}

// handleLine advances the state machine and publishes one update for a
// raw pipeline output line. Called from the pipe reader goroutines.
func (r *runner) handleLine(stream pipeline.Stream, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// First byte of output advances initializing -> downloading even
	// when the line carries no recognizable progress.
	if r.started.CompareAndSwap(false, true) {
		if snap, ok := r.transitionSnapLocked(domain.StatusDownloading, nil); ok {
			r.m.bcast.Publish(r.jobID, snap.Event())
		}
	}

	ev, ok := pipeline.Parse(stream, line)
	if !ok {
		return
	}

	to := domain.StatusDownloading
	if ev.Stage == pipeline.StageTranscoding {
		to = domain.StatusTranscoding
	}
	snap, applied := r.m.store.Transition(r.jobID, to, func(j *domain.Job) {
		// Clamp: externally visible progress never decreases, even when
		// the tool restarts counting during multi-part merges.
		if ev.HasPercent && ev.Percent > j.ProgressPercent {
			j.ProgressPercent = ev.Percent
		}
		if ev.ETASeconds != nil {
			j.ETASeconds = ev.ETASeconds
		}
	})
	if applied {
		r.m.bcast.Publish(r.jobID, snap.Event())
	}
}

// failOrCancel maps a pipeline error to the job's terminal state.
func (r *runner) failOrCancel(log zerolog.Logger, err error) {
	snap, _ := r.m.store.Snapshot(r.jobID)

	switch {
	case snap.CancelRequested:
		log.Info().Msg("job: cancelled")
		r.finalize(domain.StatusCancelled, "")
	case r.stalled.Load():
		log.Warn().Dur("stall_timeout", r.m.cfg.StallTimeout).Msg("job: stalled")
		r.finalize(domain.StatusError, fmt.Sprintf("no progress for %s, download aborted", r.m.cfg.StallTimeout))
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn().Dur("job_timeout", r.m.cfg.JobTimeout).Msg("job: timed out")
		r.finalize(domain.StatusError, fmt.Sprintf("download exceeded the %s limit", r.m.cfg.JobTimeout))
	default:
		msg := "download failed"
		var fe *pipeline.FetchError
		if errors.As(err, &fe) && fe.Diagnostic != "" {
			msg = fe.Diagnostic
		}
		log.Error().Err(err).Msg("job: pipeline failed")
		r.finalize(domain.StatusError, msg)
	}
}

// finalize moves the job to a non-completed terminal state, discards
// any partial artifact, and closes the job's subscriber channels.
func (r *runner) finalize(status domain.Status, errMsg string) {
	snap, ok := r.transitionSnap(status, func(j *domain.Job) {
		j.ErrorMessage = errMsg
		j.CompletedAt = time.Now().UTC()
		j.ETASeconds = nil
	})
	if !ok {
		snap, _ = r.m.store.Snapshot(r.jobID)
	}

	if err := r.m.files.RemoveJob(r.jobID); err != nil {
		r.m.log.Error().Err(err).Str("job_id", r.jobID).Msg("job: failed to discard partial artifact")
	}

	switch status {
	case domain.StatusCancelled:
		r.m.metrics.cancelled.Add(1)
	case domain.StatusError:
		r.m.metrics.errored.Add(1)
	}
	r.m.bcast.Close(r.jobID, snap.Event())
}

func (r *runner) transition(to domain.Status, extra func(*domain.Job)) bool {
	_, ok := r.transitionSnap(to, extra)
	return ok
}

func (r *runner) transitionSnap(to domain.Status, extra func(*domain.Job)) (domain.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transitionSnapLocked(to, extra)
}

func (r *runner) transitionSnapLocked(to domain.Status, extra func(*domain.Job)) (domain.Snapshot, bool) {
	return r.m.store.Transition(r.jobID, to, extra)
}
