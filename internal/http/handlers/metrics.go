package handlers

import (
	"net/http"
)

// Metrics exposes orchestrator counters: active jobs, queue
// rejections, and terminal outcome totals.
func (a *App) Metrics(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Manager.Metrics())
}
