package mergecandidate

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// Repository persists merge candidates awaiting human review
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Record upserts a merge candidate for the divergent source record. A repeat
// detection for the same proposed target refreshes confidence and detail but
// keeps the review status.
func (r *Repository) Record(ctx context.Context, candidate *models.MergeCandidate) error {
	ctx, span := tracing.StartSpan(ctx, "mergecandidate.Repository.Record")
	defer span.End()

	now := time.Now().UTC()
	if candidate.ID == "" {
		candidate.ID = uuid.New().String()
	}
	if candidate.Status == "" {
		candidate.Status = models.MergeCandidateStatusPending
	}

	query := `
		INSERT INTO merge_candidates (
			id, tenant_id, entity_type, source_system, source_id,
			current_unified_id, proposed_unified_id, confidence, status, detail,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (tenant_id, entity_type, source_system, source_id, proposed_unified_id)
		DO UPDATE SET
			current_unified_id = EXCLUDED.current_unified_id,
			confidence = EXCLUDED.confidence,
			detail = EXCLUDED.detail,
			updated_at = EXCLUDED.updated_at
		RETURNING id, status, created_at
	`

	var result struct {
		ID        string    `db:"id"`
		Status    string    `db:"status"`
		CreatedAt time.Time `db:"created_at"`
	}
	err := r.db.GetContext(ctx, &result, query,
		candidate.ID, candidate.TenantID, candidate.EntityType, candidate.SourceSystem, candidate.SourceID,
		candidate.CurrentUnifiedID, candidate.ProposedUnifiedID, candidate.Confidence, candidate.Status, candidate.Detail,
		now, now,
	)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": candidate.TenantID, "source_system": candidate.SourceSystem, "source_id": candidate.SourceID}).Error("Failed to record merge candidate")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to record merge candidate")
	}

	candidate.ID = result.ID
	candidate.Status = result.Status
	candidate.CreatedAt = result.CreatedAt
	candidate.UpdatedAt = now
	return nil
}

// Get retrieves a merge candidate by ID
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.MergeCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "mergecandidate.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "entity_type", "source_system", "source_id", "current_unified_id", "proposed_unified_id", "confidence", "status", "detail", "created_at", "updated_at")
	sb.From("merge_candidates")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var candidate models.MergeCandidate
	if err := r.db.GetContext(ctx, &candidate, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "merge candidate %s not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id, "tenant_id": tenantID}).Error("Failed to get merge candidate")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get merge candidate")
	}
	return &candidate, nil
}

// List retrieves merge candidates with status filtering and pagination
func (r *Repository) List(ctx context.Context, tenantID string, status *string, page, pageSize int) (*models.MergeCandidateListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "mergecandidate.Repository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	countSb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countSb.Select("COUNT(*)")
	countSb.From("merge_candidates")
	countWhere := []string{countSb.Equal("tenant_id", tenantID)}
	if status != nil {
		countWhere = append(countWhere, countSb.Equal("status", *status))
	}
	countSb.Where(countWhere...)

	countQuery, countArgs := countSb.Build()
	var totalCount int
	if err := r.db.GetContext(ctx, &totalCount, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "status": status}).Error("Failed to count merge candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count merge candidates")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "entity_type", "source_system", "source_id", "current_unified_id", "proposed_unified_id", "confidence", "status", "detail", "created_at", "updated_at")
	sb.From("merge_candidates")
	where := []string{sb.Equal("tenant_id", tenantID)}
	if status != nil {
		where = append(where, sb.Equal("status", *status))
	}
	sb.Where(where...)
	sb.OrderBy("created_at DESC")
	sb.Limit(pageSize).Offset(offset)

	query, args := sb.Build()
	var candidates []models.MergeCandidate
	if err := r.db.SelectContext(ctx, &candidates, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "status": status, "page": page}).Error("Failed to list merge candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list merge candidates")
	}

	return &models.MergeCandidateListResponse{
		Items:      candidates,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// UpdateStatus moves a candidate through the review workflow.
func (r *Repository) UpdateStatus(ctx context.Context, tenantID, id, status string) (*models.MergeCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "mergecandidate.Repository.UpdateStatus")
	defer span.End()

	now := time.Now().UTC()
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("merge_candidates")
	ub.Set(
		ub.Assign("status", status),
		ub.Assign("updated_at", now),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("tenant_id", tenantID),
	)

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id, "tenant_id": tenantID, "status": status}).Error("Failed to update merge candidate status")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update merge candidate")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "merge candidate %s not found", id)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"id": id, "status": status}).Info("Updated merge candidate status")
	return r.Get(ctx, tenantID, id)
}
