package domain

import "time"

// Status enumerates download job lifecycle states.
type Status string

const (
	StatusQueued       Status = "queued"
	StatusInitializing Status = "initializing"
	StatusDownloading  Status = "downloading"
	StatusTranscoding  Status = "transcoding"
	StatusCompleted    Status = "completed"
	StatusError        Status = "error"
	StatusCancelled    Status = "cancelled"
)

// IsTerminal reports whether a status ends the job lifecycle.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether a job in this status holds a concurrency slot.
func (s Status) IsActive() bool {
	switch s {
	case StatusQueued, StatusInitializing, StatusDownloading, StatusTranscoding:
		return true
	default:
		return false
	}
}

// ValidTransition enforces the allowed job state machine edges.
// downloading and transcoding may alternate because multi-format
// pipelines return to the download phase between merges.
func ValidTransition(from, to Status) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusQueued:
		return to == StatusInitializing || to == StatusError || to == StatusCancelled
	case StatusInitializing:
		return to == StatusDownloading || to == StatusError || to == StatusCancelled
	case StatusDownloading:
		return to == StatusTranscoding || to == StatusCompleted || to == StatusError || to == StatusCancelled
	case StatusTranscoding:
		return to == StatusDownloading || to == StatusCompleted || to == StatusError || to == StatusCancelled
	default:
		return false
	}
}

// Job encapsulates the lifecycle of one requested download. Mutation
// goes through the store so per-job serialization holds.
type Job struct {
	ID              string
	SourceURL       string
	Status          Status
	ProgressPercent float64
	ETASeconds      *int
	ErrorMessage    string
	ArtifactPath    string
	CreatedAt       time.Time
	CompletedAt     time.Time
	CancelRequested bool
}

// Snapshot is a consistent read-only view of a job handed to callers.
type Snapshot struct {
	ID              string
	SourceURL       string
	Status          Status
	ProgressPercent float64
	ETASeconds      *int
	ErrorMessage    string
	ArtifactPath    string
	CreatedAt       time.Time
	CompletedAt     time.Time
	CancelRequested bool
}

// Snapshot copies the job into an immutable view. The ETA pointer is
// duplicated so later runner updates cannot race the reader.
func (j *Job) Snapshot() Snapshot {
	s := Snapshot{
		ID:              j.ID,
		SourceURL:       j.SourceURL,
		Status:          j.Status,
		ProgressPercent: j.ProgressPercent,
		ErrorMessage:    j.ErrorMessage,
		ArtifactPath:    j.ArtifactPath,
		CreatedAt:       j.CreatedAt,
		CompletedAt:     j.CompletedAt,
		CancelRequested: j.CancelRequested,
	}
	if j.ETASeconds != nil {
		eta := *j.ETASeconds
		s.ETASeconds = &eta
	}
	return s
}

// ProgressEvent is one normalized update delivered to subscribers.
type ProgressEvent struct {
	Status          Status   `json:"status,omitempty"`
	ProgressPercent *float64 `json:"progress,omitempty"`
	ETASeconds      *int     `json:"eta,omitempty"`
	ErrorMessage    string   `json:"error,omitempty"`
	Ping            bool     `json:"ping,omitempty"`
}

// Event converts a snapshot into the wire event shape.
func (s Snapshot) Event() ProgressEvent {
	progress := s.ProgressPercent
	ev := ProgressEvent{
		Status:          s.Status,
		ProgressPercent: &progress,
		ErrorMessage:    s.ErrorMessage,
	}
	if s.ETASeconds != nil {
		eta := *s.ETASeconds
		ev.ETASeconds = &eta
	}
	return ev
}
