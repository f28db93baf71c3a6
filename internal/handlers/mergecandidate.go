package handlers

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/aster/internal/repositories/mergecandidate"
	"github.com/Ramsey-B/aster/internal/repositories/sourcemapping"
	"github.com/Ramsey-B/aster/pkg/cache"
	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// MergeCandidateEvents publishes mapping events. May be nil.
type MergeCandidateEvents interface {
	EmitMappingLinked(ctx context.Context, mapping *models.SourceMapping) error
}

// MergeCandidateHandler handles merge candidate review endpoints
type MergeCandidateHandler struct {
	candidates *mergecandidate.Repository
	mappings   *sourcemapping.Repository
	cache      *cache.MatchCache
	events     MergeCandidateEvents
	logger     ectologger.Logger
}

// NewMergeCandidateHandler creates a new merge candidate handler
func NewMergeCandidateHandler(
	candidates *mergecandidate.Repository,
	mappings *sourcemapping.Repository,
	matchCache *cache.MatchCache,
	events MergeCandidateEvents,
	logger ectologger.Logger,
) *MergeCandidateHandler {
	return &MergeCandidateHandler{
		candidates: candidates,
		mappings:   mappings,
		cache:      matchCache,
		events:     events,
		logger:     logger,
	}
}

// Register registers merge candidate routes
func (h *MergeCandidateHandler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("/:id/approve", h.Approve)
	g.POST("/:id/reject", h.Reject)
	g.POST("/:id/defer", h.Defer)
}

// List returns merge candidates for the tenant, optionally filtered by status
func (h *MergeCandidateHandler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "MergeCandidateHandler.List")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	var status *string
	if s := c.QueryParam("status"); s != "" {
		switch s {
		case models.MergeCandidateStatusPending, models.MergeCandidateStatusApproved, models.MergeCandidateStatusRejected, models.MergeCandidateStatusDeferred:
			status = &s
		default:
			return BadRequest("invalid status filter")
		}
	}

	page, pageSize := Pagination(c)
	resp, err := h.candidates.List(ctx, tenantID, status, page, pageSize)
	if err != nil {
		return err
	}

	return SuccessResponse(c, resp)
}

// Get returns a single merge candidate
func (h *MergeCandidateHandler) Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "MergeCandidateHandler.Get")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	candidate, err := h.candidates.Get(ctx, tenantID, c.Param("id"))
	if err != nil {
		return err
	}

	return SuccessResponse(c, candidate)
}

// Approve accepts a merge candidate and re-points its source mapping at the
// proposed unified entity
func (h *MergeCandidateHandler) Approve(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "MergeCandidateHandler.Approve")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	candidate, err := h.candidates.Get(ctx, tenantID, c.Param("id"))
	if err != nil {
		return err
	}
	if candidate.Status == models.MergeCandidateStatusApproved {
		return httperror.NewHTTPError(http.StatusConflict, "merge candidate is already approved")
	}

	mapping := &models.SourceMapping{
		TenantID:        candidate.TenantID,
		EntityType:      candidate.EntityType,
		SourceSystem:    candidate.SourceSystem,
		SourceID:        candidate.SourceID,
		UnifiedID:       candidate.ProposedUnifiedID,
		ConfidenceScore: candidate.Confidence,
		Metadata:        database.NewJSONB(candidate.Detail.Data.RawMetadata),
	}
	if err := h.mappings.Upsert(ctx, mapping); err != nil {
		return err
	}
	h.cache.PutMapping(mapping.TenantID, mapping.EntityType, mapping.SourceSystem, mapping.SourceID, mapping.UnifiedID)

	if h.events != nil {
		if err := h.events.EmitMappingLinked(ctx, mapping); err != nil {
			h.logger.WithContext(ctx).WithError(err).Warn("Failed to emit mapping.linked event")
		}
	}

	updated, err := h.candidates.UpdateStatus(ctx, tenantID, candidate.ID, models.MergeCandidateStatusApproved)
	if err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":           tenantID,
		"candidate_id":        candidate.ID,
		"proposed_unified_id": candidate.ProposedUnifiedID,
	}).Info("Approved merge candidate")

	return SuccessResponse(c, updated)
}

// Reject declines a merge candidate, leaving the mapping untouched
func (h *MergeCandidateHandler) Reject(c echo.Context) error {
	return h.updateStatus(c, "MergeCandidateHandler.Reject", models.MergeCandidateStatusRejected)
}

// Defer postpones a merge candidate for a later review pass
func (h *MergeCandidateHandler) Defer(c echo.Context) error {
	return h.updateStatus(c, "MergeCandidateHandler.Defer", models.MergeCandidateStatusDeferred)
}

func (h *MergeCandidateHandler) updateStatus(c echo.Context, spanName, status string) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), spanName)
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	updated, err := h.candidates.UpdateStatus(ctx, tenantID, c.Param("id"), status)
	if err != nil {
		return err
	}

	return SuccessResponse(c, updated)
}
