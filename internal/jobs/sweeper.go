package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"videofetch/internal/domain"
	"videofetch/internal/storage"
)

// SweeperConfig sets the retention policy. Failed and cancelled jobs
// are reclaimed sooner than completed ones since there is nothing left
// to serve.
type SweeperConfig struct {
	Interval       time.Duration
	Retention      time.Duration
	ErrorRetention time.Duration
}

// Sweeper reclaims terminal jobs' artifacts and record entries after
// their retention window, bounding storage growth without relying on
// clients to clean up.
type Sweeper struct {
	cfg   SweeperConfig
	store Store
	files *storage.FileStore
	log   zerolog.Logger
}

// NewSweeper applies defaults mirroring the service's historical
// policy: artifacts kept one day, failures half an hour.
func NewSweeper(cfg SweeperConfig, st Store, files *storage.FileStore, log zerolog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if cfg.ErrorRetention <= 0 {
		cfg.ErrorRetention = 30 * time.Minute
	}
	return &Sweeper{cfg: cfg, store: st, files: files, log: log}
}

// Run sweeps on a fixed interval until ctx is cancelled. Meant to be
// launched as its own goroutine from main.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info().
		Dur("interval", s.cfg.Interval).
		Dur("retention", s.cfg.Retention).
		Dur("error_retention", s.cfg.ErrorRetention).
		Msg("sweeper: started")

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("sweeper: stopped")
			return
		case <-ticker.C:
			s.Sweep(time.Now().UTC())
		}
	}
}

// Sweep reclaims every terminal job older than its retention window.
// Deletion failures are logged and retried on the next sweep; the
// record stays until its artifact is gone.
func (s *Sweeper) Sweep(now time.Time) {
	for _, snap := range s.store.Snapshots() {
		if !snap.Status.IsTerminal() {
			continue
		}
		window := s.cfg.Retention
		if snap.Status != domain.StatusCompleted {
			window = s.cfg.ErrorRetention
		}
		ref := snap.CompletedAt
		if ref.IsZero() {
			ref = snap.CreatedAt
		}
		if now.Sub(ref) < window {
			continue
		}

		if err := s.files.RemoveJob(snap.ID); err != nil {
			s.log.Error().Err(err).Str("job_id", snap.ID).Msg("sweeper: artifact removal failed, will retry")
			continue
		}
		s.store.Delete(snap.ID)
		s.log.Info().Str("job_id", snap.ID).Str("status", string(snap.Status)).Msg("sweeper: reclaimed job")
	}
}
