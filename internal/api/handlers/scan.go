// Package handlers implements the HTTP endpoints.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/wonny/sepa/internal/scheduler"
	"github.com/wonny/sepa/internal/screen"
	"github.com/wonny/sepa/pkg/logger"
)

// ScanHandler serves the manual trigger and the status endpoints. The trigger
// starts a run asynchronously and answers immediately with a human-readable
// acknowledgement.
type ScanHandler struct {
	engine    *screen.Engine
	scheduler *scheduler.Scheduler
	logger    *logger.Logger
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(engine *screen.Engine, sched *scheduler.Scheduler, log *logger.Logger) *ScanHandler {
	return &ScanHandler{
		engine:    engine,
		scheduler: sched,
		logger:    log,
	}
}

// Trigger starts a scan in the background. A request landing during an
// active run is acknowledged with a notice instead of starting a second run.
func (h *ScanHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if h.engine.Running() {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintln(w, "A scan is already running; this trigger was ignored.")
		return
	}

	if err := h.scheduler.RunJob("daily_screen"); err != nil {
		h.logger.WithError(err).Error("Manual scan trigger failed")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintln(w, "Could not start the scan.")
		return
	}

	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintln(w, "Scan started. The report will be delivered when it completes.")
}

// Status returns the engine state and the last run summary.
func (h *ScanHandler) Status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.engine.Status())
}

// Jobs returns scheduler statistics.
func (h *ScanHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.scheduler.GetJobStats())
}
