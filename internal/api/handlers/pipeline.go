package handlers

import (
	"errors"
	"net/http"

	"github.com/courtside/midmajor/internal/external/kenpom"
	"github.com/courtside/midmajor/internal/reconcile"
	"github.com/courtside/midmajor/internal/scheduler"
	"github.com/courtside/midmajor/pkg/logger"
)

// PipelineHandler handles pipeline admin API endpoints
type PipelineHandler struct {
	reconciler *reconcile.Reconciler
	scheduler  *scheduler.Scheduler
	logger     *logger.Logger
}

// NewPipelineHandler creates a new pipeline handler
func NewPipelineHandler(r *reconcile.Reconciler, sched *scheduler.Scheduler, log *logger.Logger) *PipelineHandler {
	return &PipelineHandler{
		reconciler: r,
		scheduler:  sched,
		logger:     log,
	}
}

// TriggerUpdate runs the pricing pipeline once and returns the run report
// POST /api/admin/update
func (h *PipelineHandler) TriggerUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	h.logger.Info("Manual price update triggered")

	report, err := h.reconciler.Run(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Manual price update failed")
		if errors.Is(err, kenpom.ErrSourceUnavailable) {
			respondError(w, http.StatusBadGateway, "Ranking source unavailable")
			return
		}
		if errors.Is(err, kenpom.ErrFormatChanged) {
			respondError(w, http.StatusBadGateway, "Ranking source format changed")
			return
		}
		respondError(w, http.StatusInternalServerError, "Price update failed")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// GetJobStats returns execution statistics for all scheduled jobs
// GET /api/admin/jobs
func (h *PipelineHandler) GetJobStats(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		respondError(w, http.StatusServiceUnavailable, "Scheduler is not running")
		return
	}

	respondJSON(w, http.StatusOK, h.scheduler.GetJobStats())
}
