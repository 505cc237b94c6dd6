package domain

import "errors"

var (
	// ErrNotFound covers unknown job ids, including ids whose record
	// was already reclaimed by the retention sweeper.
	ErrNotFound = errors.New("download not found")
	// ErrInvalidURL is returned synchronously for malformed or
	// unsupported submission URLs.
	ErrInvalidURL = errors.New("invalid url")
	// ErrOverloaded signals the concurrency ceiling is reached and the
	// client should retry later.
	ErrOverloaded = errors.New("too many active downloads")
	// ErrNotReady is returned when the artifact is requested before the
	// job reached completed.
	ErrNotReady = errors.New("download not completed")
	// ErrGone is returned when the artifact file was already reclaimed.
	ErrGone = errors.New("artifact reclaimed")
)
