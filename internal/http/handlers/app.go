package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"videofetch/internal/domain"
	"videofetch/internal/infra"
	"videofetch/internal/jobs"
)

// App carries the handler dependencies.
type App struct {
	Manager      *jobs.Manager
	Log          infra.Logger
	PingInterval time.Duration
}

// NewApp builds the handler container.
func NewApp(manager *jobs.Manager, log infra.Logger, pingInterval time.Duration) *App {
	if pingInterval <= 0 {
		pingInterval = 2 * time.Second
	}
	return &App{Manager: manager, Log: log, PingInterval: pingInterval}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// jsonError maps a domain error to its HTTP status and localized
// message. Unknown errors become an opaque 500 so no internal detail
// leaks to the page.
func (a *App) jsonError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		code int
		key  string
	)
	switch {
	case errors.Is(err, domain.ErrInvalidURL):
		code, key = http.StatusBadRequest, msgInvalidURL
	case errors.Is(err, domain.ErrOverloaded):
		code, key = http.StatusServiceUnavailable, msgOverloaded
	case errors.Is(err, domain.ErrNotFound):
		code, key = http.StatusNotFound, msgNotFound
	case errors.Is(err, domain.ErrNotReady):
		code, key = http.StatusConflict, msgNotReady
	case errors.Is(err, domain.ErrGone):
		code, key = http.StatusGone, msgGone
	default:
		a.Log.Error().Err(err).Str("path", r.URL.Path).Msg("handler: internal error")
		code, key = http.StatusInternalServerError, msgInternal
	}
	a.json(w, code, map[string]string{"error": localize(r.Context(), key)})
}
