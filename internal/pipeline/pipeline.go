// Package pipeline runs the external fetch pipeline and normalizes its
// textual progress output. The concrete tool (yt-dlp driving ffmpeg) is
// isolated behind the Pipeline interface so the job runner never sees
// tool-specific arguments or output formats.
package pipeline

import (
	"context"
	"fmt"
)

// Stream identifies which pipe a pipeline output line arrived on.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Request describes one fetch run. OnLine is invoked for every output
// line, on the reader goroutines, before the run returns.
type Request struct {
	URL       string
	OutputDir string
	OnLine    func(stream Stream, line string)
}

// Pipeline resolves a URL to a media stream, downloads it into
// Request.OutputDir, and optionally re-encodes or remuxes it.
type Pipeline interface {
	Fetch(ctx context.Context, req Request) error
}

// FetchError carries the last useful diagnostic line captured from the
// pipeline so callers can surface a normalized message instead of a
// raw subprocess dump.
type FetchError struct {
	Err        error
	Diagnostic string
}

func (e *FetchError) Error() string {
	if e.Diagnostic != "" {
		return fmt.Sprintf("pipeline failed: %v: %s", e.Err, e.Diagnostic)
	}
	return fmt.Sprintf("pipeline failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
