package handlers

import (
	"net/http"
)

// Health is the liveness probe: 200 while the process accepts jobs.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
