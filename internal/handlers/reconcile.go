package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/aster/pkg/reconcile"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// ReconcileHandler triggers reconciliation passes on demand
type ReconcileHandler struct {
	job    *reconcile.Job
	logger ectologger.Logger
}

// NewReconcileHandler creates a new reconcile handler
func NewReconcileHandler(job *reconcile.Job, logger ectologger.Logger) *ReconcileHandler {
	return &ReconcileHandler{job: job, logger: logger}
}

// Register registers reconciliation routes
func (h *ReconcileHandler) Register(g *echo.Group) {
	g.POST("/run", h.Run)
}

// Run executes a single reconciliation pass and returns its summary
func (h *ReconcileHandler) Run(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ReconcileHandler.Run")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	summary, err := h.job.RunOnce(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, summary)
}
