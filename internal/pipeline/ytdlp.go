package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// YTDLPConfig tunes the yt-dlp adapter. ProxyURL selects the proxied
// deployment variant; everything else is shared between variants.
type YTDLPConfig struct {
	Binary         string
	FFmpegLocation string
	CookiesFile    string
	ProxyURL       string
	RateLimitMBps  float64
	// CancelGrace bounds how long the process may run after a context
	// cancellation before it is forcibly killed.
	CancelGrace time.Duration
}

// YTDLP fetches media by shelling out to yt-dlp, which in turn drives
// ffmpeg for merges and remuxes.
type YTDLP struct {
	cfg YTDLPConfig
}

// NewYTDLP constructs the adapter with defaults applied.
func NewYTDLP(cfg YTDLPConfig) *YTDLP {
	if cfg.Binary == "" {
		cfg.Binary = "yt-dlp"
	}
	if cfg.CancelGrace <= 0 {
		cfg.CancelGrace = 5 * time.Second
	}
	return &YTDLP{cfg: cfg}
}

func (y *YTDLP) args(req Request) []string {
	args := []string{
		"--newline",
		"--no-playlist",
		"--restrict-filenames",
		"-f", "best[ext=mp4]/best",
		"-P", req.OutputDir,
		"-o", "%(title).200B.%(ext)s",
		"--retries", "10",
		"--fragment-retries", "10",
		"--socket-timeout", "30",
	}
	if y.cfg.FFmpegLocation != "" {
		args = append(args, "--ffmpeg-location", y.cfg.FFmpegLocation)
	}
	if y.cfg.CookiesFile != "" {
		args = append(args, "--cookies", y.cfg.CookiesFile)
	}
	if y.cfg.ProxyURL != "" {
		args = append(args, "--proxy", y.cfg.ProxyURL)
	}
	if y.cfg.RateLimitMBps > 0 {
		args = append(args, "--limit-rate", fmt.Sprintf("%gM", y.cfg.RateLimitMBps))
	}
	return append(args, req.URL)
}

// Fetch runs yt-dlp until it exits or ctx is cancelled. Every output
// line is forwarded to req.OnLine. On failure the returned error is a
// *FetchError carrying the last diagnostic line.
func (y *YTDLP) Fetch(ctx context.Context, req Request) error {
	if strings.TrimSpace(req.URL) == "" {
		return fmt.Errorf("ytdlp: url is required")
	}
	if strings.TrimSpace(req.OutputDir) == "" {
		return fmt.Errorf("ytdlp: output directory is required")
	}

	cmd := exec.CommandContext(ctx, y.cfg.Binary, y.args(req)...)
	// Advisory-then-forceful termination: TERM on cancel, KILL once the
	// grace period elapses.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = y.cfg.CancelGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ytdlp: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("ytdlp: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ytdlp: start: %w", err)
	}

	var (
		mu   sync.Mutex
		diag string
	)
	read := func(stream Stream, r io.Reader) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		scanner.Split(splitNewlineOrCR)
		for scanner.Scan() {
			line := scanner.Text()
			if d := diagnosticLine(line); d != "" {
				mu.Lock()
				diag = d
				mu.Unlock()
			}
			if req.OnLine != nil {
				req.OnLine(stream, line)
			}
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); read(StreamStdout, stdout) }()
	go func() { defer wg.Done(); read(StreamStderr, stderr) }()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		mu.Lock()
		defer mu.Unlock()
		return &FetchError{Err: err, Diagnostic: diag}
	}
	return nil
}

// diagnosticLine extracts a human-relevant message from tool output,
// keeping only the most recent one for error reporting.
func diagnosticLine(line string) string {
	l := strings.TrimSpace(line)
	for _, prefix := range []string{"ERROR:", "ERROR ", "[error]"} {
		if strings.HasPrefix(l, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(l, prefix))
		}
	}
	return ""
}

// splitNewlineOrCR tokenizes on both \n and \r so in-place progress
// updates written with carriage returns arrive as separate lines.
func splitNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
