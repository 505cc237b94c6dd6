package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"videofetch/internal/domain"
)

type submitRequest struct {
	URL string `json:"url"`
}

// Submit accepts a media URL and returns the new job id immediately.
func (a *App) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.jsonError(w, r, fmt.Errorf("decode body: %w", domain.ErrInvalidURL))
		return
	}
	id, err := a.Manager.Submit(req.URL)
	if err != nil {
		a.jsonError(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]string{"download_id": id})
}

type statusResponse struct {
	Status   domain.Status `json:"status"`
	Progress float64       `json:"progress"`
	ETA      *int          `json:"eta,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Status returns a consistent snapshot of one job.
func (a *App) Status(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Manager.Status(chi.URLParam(r, "id"))
	if err != nil {
		a.jsonError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, statusResponse{
		Status:   snap.Status,
		Progress: snap.ProgressPercent,
		ETA:      snap.ETASeconds,
		Error:    snap.ErrorMessage,
	})
}

// Stream serves the live progress stream over server-sent events. The
// first event is the job's current snapshot; idle periods are bridged
// with ping events; the stream ends after a terminal status event.
func (a *App) Stream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ch, unsubscribe, err := a.Manager.Subscribe(id)
	if err != nil {
		a.jsonError(w, r, err)
		return
	}
	defer unsubscribe()

	flusher, ok := w.(http.Flusher)
	if !ok {
		a.json(w, http.StatusInternalServerError, map[string]string{"error": localize(r.Context(), msgInternal)})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ping := time.NewTicker(a.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			writeSSE(w, domain.ProgressEvent{Ping: true})
			flusher.Flush()
		case ev, open := <-ch:
			if !open {
				return
			}
			writeSSE(w, ev)
			flusher.Flush()
			if ev.Status.IsTerminal() {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, ev domain.ProgressEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

// Cancel requests termination of a running job. Fire-and-forget from
// the page, so it only acknowledges.
func (a *App) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := a.Manager.Cancel(chi.URLParam(r, "id")); err != nil {
		a.jsonError(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, map[string]string{"status": "cancel_requested"})
}

// Artifact streams the completed job's file to the client.
func (a *App) Artifact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	path, err := a.Manager.Artifact(id)
	if err != nil {
		a.jsonError(w, r, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		a.jsonError(w, r, domain.ErrGone)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		a.jsonError(w, r, domain.ErrGone)
		return
	}

	name := filepath.Base(path)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}
