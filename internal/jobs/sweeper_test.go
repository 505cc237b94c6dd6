package jobs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"videofetch/internal/domain"
	"videofetch/internal/storage"
	"videofetch/internal/store"
)

func TestSweepReclaimsExpiredTerminalJobs(t *testing.T) {
	st := store.New()
	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	sw := NewSweeper(SweeperConfig{
		Retention:      24 * time.Hour,
		ErrorRetention: 30 * time.Minute,
	}, st, files, zerolog.Nop())

	now := time.Now().UTC()
	seed := func(id string, status domain.Status, completedAgo time.Duration, withArtifact bool) {
		t.Helper()
		st.Create(id, "u")
		st.Update(id, func(j *domain.Job) {
			j.Status = status
			j.CompletedAt = now.Add(-completedAgo)
		})
		if withArtifact {
			dir, err := files.JobDir(id)
			if err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(dir, "clip.mp4"), []byte("x"), 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}

	seed("old-completed", domain.StatusCompleted, 25*time.Hour, true)
	seed("fresh-completed", domain.StatusCompleted, 1*time.Hour, true)
	seed("old-error", domain.StatusError, 31*time.Minute, false)
	seed("fresh-error", domain.StatusError, 5*time.Minute, false)
	seed("old-cancelled", domain.StatusCancelled, 2*time.Hour, false)
	st.Create("running", "u")
	st.Update("running", func(j *domain.Job) { j.Status = domain.StatusDownloading })

	sw.Sweep(now)

	gone := []string{"old-completed", "old-error", "old-cancelled"}
	for _, id := range gone {
		if _, ok := st.Snapshot(id); ok {
			t.Errorf("%s still in store after sweep", id)
		}
	}
	kept := []string{"fresh-completed", "fresh-error", "running"}
	for _, id := range kept {
		if _, ok := st.Snapshot(id); !ok {
			t.Errorf("%s was reclaimed, want kept", id)
		}
	}

	if _, err := os.Stat(filepath.Join(files.BasePath(), "old-completed")); !os.IsNotExist(err) {
		t.Error("old-completed artifact directory still present")
	}
	if _, err := os.Stat(filepath.Join(files.BasePath(), "fresh-completed")); err != nil {
		t.Errorf("fresh-completed artifact directory missing: %v", err)
	}
}

func TestSweepFallsBackToCreatedAt(t *testing.T) {
	st := store.New()
	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	sw := NewSweeper(SweeperConfig{}, st, files, zerolog.Nop())

	st.Create("no-completed-at", "u")
	st.Update("no-completed-at", func(j *domain.Job) {
		j.Status = domain.StatusError
		j.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	})

	sw.Sweep(time.Now().UTC())

	if _, ok := st.Snapshot("no-completed-at"); ok {
		t.Error("job with zero CompletedAt was not reclaimed via CreatedAt")
	}
}

func TestNewSweeperDefaults(t *testing.T) {
	sw := NewSweeper(SweeperConfig{}, store.New(), nil, zerolog.Nop())
	if sw.cfg.Interval != 10*time.Minute {
		t.Errorf("interval = %s", sw.cfg.Interval)
	}
	if sw.cfg.Retention != 24*time.Hour {
		t.Errorf("retention = %s", sw.cfg.Retention)
	}
	if sw.cfg.ErrorRetention != 30*time.Minute {
		t.Errorf("error retention = %s", sw.cfg.ErrorRetention)
	}
}
