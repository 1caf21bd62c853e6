package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/longform/internal/common"
	"github.com/ternarybob/longform/internal/services/scheduler"
)

// JobLister reports maintenance jobs
type JobLister interface {
	Jobs() []scheduler.JobStatus
}

// StatusHandler serves health and version
type StatusHandler struct {
	startedAt time.Time
	jobs      JobLister
}

func NewStatusHandler(jobs JobLister) *StatusHandler {
	return &StatusHandler{startedAt: time.Now(), jobs: jobs}
}

// HealthHandler: GET /api/health
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
	}
	if h.jobs != nil {
		body["maintenance"] = h.jobs.Jobs()
	}
	WriteJSON(w, http.StatusOK, body)
}

// VersionHandler: GET /api/version
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"version":    common.GetVersion(),
		"build":      common.Build,
		"git_commit": common.GitCommit,
	})
}
