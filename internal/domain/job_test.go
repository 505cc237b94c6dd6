package domain

import "testing"

func TestValidTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"queued to initializing", StatusQueued, StatusInitializing, true},
		{"queued to cancelled", StatusQueued, StatusCancelled, true},
		{"queued to downloading skips initializing", StatusQueued, StatusDownloading, false},
		{"initializing to downloading", StatusInitializing, StatusDownloading, true},
		{"initializing to completed skips download", StatusInitializing, StatusCompleted, false},
		{"downloading to transcoding", StatusDownloading, StatusTranscoding, true},
		{"transcoding back to downloading", StatusTranscoding, StatusDownloading, true},
		{"downloading to completed", StatusDownloading, StatusCompleted, true},
		{"transcoding to completed", StatusTranscoding, StatusCompleted, true},
		{"downloading to error", StatusDownloading, StatusError, true},
		{"transcoding to cancelled", StatusTranscoding, StatusCancelled, true},
		{"completed is terminal", StatusCompleted, StatusDownloading, false},
		{"error is terminal", StatusError, StatusQueued, false},
		{"cancelled is terminal", StatusCancelled, StatusInitializing, false},
		{"no re-entry into queued", StatusDownloading, StatusQueued, false},
		{"self transition allowed", StatusDownloading, StatusDownloading, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidTransition(tc.from, tc.to); got != tc.want {
				t.Fatalf("ValidTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestStatusClassification(t *testing.T) {
	active := []Status{StatusQueued, StatusInitializing, StatusDownloading, StatusTranscoding}
	terminal := []Status{StatusCompleted, StatusError, StatusCancelled}

	for _, s := range active {
		if !s.IsActive() || s.IsTerminal() {
			t.Errorf("%s: want active, non-terminal", s)
		}
	}
	for _, s := range terminal {
		if s.IsActive() || !s.IsTerminal() {
			t.Errorf("%s: want terminal, non-active", s)
		}
	}
}

func TestSnapshotCopiesETA(t *testing.T) {
	eta := 42
	j := Job{ID: "a", Status: StatusDownloading, ETASeconds: &eta}

	snap := j.Snapshot()
	if snap.ETASeconds == nil || *snap.ETASeconds != 42 {
		t.Fatalf("snapshot eta = %v, want 42", snap.ETASeconds)
	}

	*j.ETASeconds = 7
	if *snap.ETASeconds != 42 {
		t.Fatal("snapshot eta aliases the job's pointer")
	}
}

func TestSnapshotEvent(t *testing.T) {
	j := Job{ID: "a", Status: StatusDownloading, ProgressPercent: 55.5}
	ev := j.Snapshot().Event()
	if ev.Status != StatusDownloading {
		t.Fatalf("event status = %s", ev.Status)
	}
	if ev.ProgressPercent == nil || *ev.ProgressPercent != 55.5 {
		t.Fatalf("event progress = %v, want 55.5", ev.ProgressPercent)
	}
	if ev.ETASeconds != nil {
		t.Fatalf("event eta = %v, want nil", ev.ETASeconds)
	}
}
