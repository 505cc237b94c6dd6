package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"videofetch/internal/domain"
	"videofetch/internal/jobs"
	"videofetch/internal/middleware"
	"videofetch/internal/pipeline"
	"videofetch/internal/storage"
	"videofetch/internal/store"
)

// fakePipeline stands in for yt-dlp: it emits scripted lines, writes
// an artifact on success, and optionally blocks until released.
type fakePipeline struct {
	lines    []string
	artifact string
	block    bool
	release  chan struct{}
}

func (f *fakePipeline) Fetch(ctx context.Context, req pipeline.Request) error {
	for _, l := range f.lines {
		if req.OnLine != nil {
			req.OnLine(pipeline.StreamStdout, l)
		}
	}
	if f.block {
		select {
		case <-f.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if f.artifact != "" {
		return os.WriteFile(filepath.Join(req.OutputDir, f.artifact), []byte("media"), 0o644)
	}
	return nil
}

func newTestApp(t *testing.T, pipe pipeline.Pipeline) (*App, http.Handler) {
	t.Helper()
	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	mgr := jobs.NewManager(context.Background(), jobs.ManagerConfig{}, store.New(), jobs.NewBroadcaster(), files, pipe, zerolog.Nop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mgr.Shutdown(ctx)
	})

	app := NewApp(mgr, zerolog.Nop(), 50*time.Millisecond)
	r := chi.NewRouter()
	r.Use(middleware.Locale("en"))
	r.Get("/healthz", app.Health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/metrics", app.Metrics)
		r.Post("/download", app.Submit)
		r.Get("/download/{id}/status", app.Status)
		r.Get("/download/{id}", app.Artifact)
		r.Get("/progress_stream/{id}", app.Stream)
		r.Post("/cancel/{id}", app.Cancel)
	})
	return app, r
}

func doJSON(t *testing.T, h http.Handler, method, target, body string, header map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if ct := rec.Header().Get("Content-Type"); strings.HasPrefix(ct, "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, decoded
}

func submitJob(t *testing.T, h http.Handler, url string) string {
	t.Helper()
	rec, body := doJSON(t, h, http.MethodPost, "/api/download", `{"url":"`+url+`"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, body %s", rec.Code, rec.Body.String())
	}
	id, _ := body["download_id"].(string)
	if id == "" {
		t.Fatal("submit response missing download_id")
	}
	return id
}

func awaitStatus(t *testing.T, h http.Handler, id string, want domain.Status) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, body := doJSON(t, h, http.MethodGet, "/api/download/"+id+"/status", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status code = %d", rec.Code)
		}
		if body["status"] == string(want) {
			return body
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for status %s", want)
	return nil
}

func TestSubmitAndStatus(t *testing.T) {
	fake := &fakePipeline{
		lines:    []string{"[download]  60.0% of 10.00MiB at 2.00MiB/s ETA 00:02"},
		artifact: "clip.mp4",
	}
	_, h := newTestApp(t, fake)

	id := submitJob(t, h, "https://youtube.com/watch?v=dQw4w9WgXcQ")
	body := awaitStatus(t, h, id, domain.StatusCompleted)
	if body["progress"] != float64(100) {
		t.Errorf("progress = %v, want 100", body["progress"])
	}
	if _, present := body["error"]; present {
		t.Errorf("error field present on success: %v", body["error"])
	}
}

func TestSubmitRejectsBadInput(t *testing.T) {
	_, h := newTestApp(t, &fakePipeline{})

	t.Run("malformed body", func(t *testing.T) {
		rec, body := doJSON(t, h, http.MethodPost, "/api/download", `{"url":`, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
		if body["error"] == "" {
			t.Error("missing error message")
		}
	})

	t.Run("unsupported url", func(t *testing.T) {
		rec, _ := doJSON(t, h, http.MethodPost, "/api/download", `{"url":"https://example.com/page"}`, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("russian locale message", func(t *testing.T) {
		rec, body := doJSON(t, h, http.MethodPost, "/api/download", `{"url":"nope"}`,
			map[string]string{"Accept-Language": "ru-RU,ru;q=0.9"})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
		if body["error"] != messages["ru"][msgInvalidURL] {
			t.Errorf("error = %q, want russian message", body["error"])
		}
	})
}

func TestStatusUnknownJob(t *testing.T) {
	_, h := newTestApp(t, &fakePipeline{})
	rec, body := doJSON(t, h, http.MethodGet, "/api/download/ghost/status", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["error"] != messages["en"][msgNotFound] {
		t.Errorf("error = %q", body["error"])
	}
}

func TestCancelEndpoint(t *testing.T) {
	fake := &fakePipeline{
		lines:   []string{"[download]  10.0% of 10.00MiB at 1.00MiB/s ETA 00:09"},
		block:   true,
		release: make(chan struct{}),
	}
	_, h := newTestApp(t, fake)

	id := submitJob(t, h, "https://example.com/a.mp4")
	awaitStatus(t, h, id, domain.StatusDownloading)

	rec, body := doJSON(t, h, http.MethodPost, "/api/cancel/"+id, "", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("cancel status = %d", rec.Code)
	}
	if body["status"] != "cancel_requested" {
		t.Errorf("body = %v", body)
	}
	awaitStatus(t, h, id, domain.StatusCancelled)

	rec, _ = doJSON(t, h, http.MethodPost, "/api/cancel/ghost", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown cancel status = %d", rec.Code)
	}
}

func TestArtifactEndpoint(t *testing.T) {
	fake := &fakePipeline{
		artifact: "My_Video.mp4",
		block:    true,
		release:  make(chan struct{}),
	}
	_, h := newTestApp(t, fake)
	id := submitJob(t, h, "https://example.com/a.mp4")

	rec, _ := doJSON(t, h, http.MethodGet, "/api/download/"+id, "", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("in-flight artifact status = %d, want 409", rec.Code)
	}

	close(fake.release)
	awaitStatus(t, h, id, domain.StatusCompleted)

	rec, _ = doJSON(t, h, http.MethodGet, "/api/download/"+id, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("artifact status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "My_Video.mp4") {
		t.Errorf("content disposition = %q", cd)
	}
	if rec.Body.String() != "media" {
		t.Errorf("artifact body = %q", rec.Body.String())
	}

	rec, _ = doJSON(t, h, http.MethodGet, "/api/download/ghost", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown artifact status = %d", rec.Code)
	}
}

func TestStreamDeliversEventsUntilTerminal(t *testing.T) {
	fake := &fakePipeline{
		lines: []string{
			"[download]  30.0% of 10.00MiB at 1.00MiB/s ETA 00:07",
			"[download]  80.0% of 10.00MiB at 1.00MiB/s ETA 00:02",
		},
		artifact: "clip.mp4",
		block:    true,
		release:  make(chan struct{}),
	}
	_, h := newTestApp(t, fake)
	srv := httptest.NewServer(h)
	defer srv.Close()

	id := submitJob(t, h, "https://example.com/a.mp4")
	awaitStatus(t, h, id, domain.StatusDownloading)

	resp, err := http.Get(srv.URL + "/api/progress_stream/" + id)
	if err != nil {
		t.Fatalf("stream request error: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	close(fake.release)

	var events []domain.ProgressEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev domain.ProgressEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("decode event %q: %v", line, err)
		}
		if ev.Ping {
			continue
		}
		events = append(events, ev)
	}
	if len(events) == 0 {
		t.Fatal("no progress events received")
	}
	first, last := events[0], events[len(events)-1]
	if first.Status != domain.StatusDownloading {
		t.Errorf("first event status = %s, want downloading snapshot", first.Status)
	}
	if last.Status != domain.StatusCompleted {
		t.Errorf("last event status = %s, want completed", last.Status)
	}
	if last.ProgressPercent == nil || *last.ProgressPercent != 100 {
		t.Errorf("last event progress = %v, want 100", last.ProgressPercent)
	}
}

func TestStreamTerminalJobEndsImmediately(t *testing.T) {
	fake := &fakePipeline{artifact: "clip.mp4"}
	_, h := newTestApp(t, fake)
	srv := httptest.NewServer(h)
	defer srv.Close()

	id := submitJob(t, h, "https://example.com/a.mp4")
	awaitStatus(t, h, id, domain.StatusCompleted)

	resp, err := http.Get(srv.URL + "/api/progress_stream/" + id)
	if err != nil {
		t.Fatalf("stream request error: %v", err)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	var dataLines int
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "data: ") {
			dataLines++
		}
	}
	if dataLines != 1 {
		t.Fatalf("data lines = %d, want exactly the terminal snapshot", dataLines)
	}
}

func TestStreamUnknownJob(t *testing.T) {
	_, h := newTestApp(t, &fakePipeline{})
	rec, _ := doJSON(t, h, http.MethodGet, "/api/progress_stream/ghost", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	fake := &fakePipeline{artifact: "clip.mp4"}
	_, h := newTestApp(t, fake)

	rec, body := doJSON(t, h, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", rec.Code, body)
	}

	id := submitJob(t, h, "https://example.com/a.mp4")
	awaitStatus(t, h, id, domain.StatusCompleted)

	rec, body = doJSON(t, h, http.MethodGet, "/api/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if body["completed"] != float64(1) {
		t.Errorf("completed = %v, want 1", body["completed"])
	}
}
