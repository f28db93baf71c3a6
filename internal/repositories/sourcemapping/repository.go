package sourcemapping

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

const columns = "tenant_id, entity_type, source_system, source_id, unified_id, confidence_score, metadata, created_at, updated_at"

// Repository handles source mapping persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new source mapping repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get returns the mapping for a source record, or nil when none exists.
func (r *Repository) Get(ctx context.Context, tenantID, entityType, sourceSystem, sourceID string) (*models.SourceMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "sourcemapping.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("tenant_id", "entity_type", "source_system", "source_id", "unified_id", "confidence_score", "metadata", "created_at", "updated_at")
	sb.From("source_mappings")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("entity_type", entityType),
		sb.Equal("source_system", sourceSystem),
		sb.Equal("source_id", sourceID),
	)

	query, args := sb.Build()
	var mapping models.SourceMapping
	if err := r.db.GetContext(ctx, &mapping, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "entity_type": entityType, "source_system": sourceSystem, "source_id": sourceID}).Error("Failed to get source mapping")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get source mapping")
	}
	return &mapping, nil
}

// Upsert creates or re-points a mapping. Re-pointing happens when
// reconciliation approves a re-link or an exact identity supersedes an old
// fuzzy link.
func (r *Repository) Upsert(ctx context.Context, mapping *models.SourceMapping) error {
	ctx, span := tracing.StartSpan(ctx, "sourcemapping.Repository.Upsert")
	defer span.End()

	now := time.Now().UTC()
	query := `
		INSERT INTO source_mappings (` + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tenant_id, entity_type, source_system, source_id)
		DO UPDATE SET
			unified_id = EXCLUDED.unified_id,
			confidence_score = EXCLUDED.confidence_score,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, (xmax = 0) AS inserted
	`

	var result struct {
		CreatedAt time.Time `db:"created_at"`
		Inserted  bool      `db:"inserted"`
	}
	err := r.db.GetContext(ctx, &result, query,
		mapping.TenantID, mapping.EntityType, mapping.SourceSystem, mapping.SourceID,
		mapping.UnifiedID, mapping.ConfidenceScore, mapping.Metadata, now, now,
	)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": mapping.TenantID, "entity_type": mapping.EntityType, "source_system": mapping.SourceSystem, "source_id": mapping.SourceID}).Error("Failed to upsert source mapping")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert source mapping")
	}

	mapping.CreatedAt = result.CreatedAt
	mapping.UpdatedAt = now

	if result.Inserted {
		r.logger.WithContext(ctx).WithFields(map[string]any{"tenant_id": mapping.TenantID, "source_system": mapping.SourceSystem, "source_id": mapping.SourceID, "unified_id": mapping.UnifiedID}).Info("Created source mapping")
	} else {
		r.logger.WithContext(ctx).WithFields(map[string]any{"tenant_id": mapping.TenantID, "source_system": mapping.SourceSystem, "source_id": mapping.SourceID, "unified_id": mapping.UnifiedID}).Debug("Updated source mapping")
	}
	return nil
}

// ListByUnifiedID returns all mappings pointing at a unified entity.
func (r *Repository) ListByUnifiedID(ctx context.Context, tenantID, unifiedID string) ([]models.SourceMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "sourcemapping.Repository.ListByUnifiedID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("tenant_id", "entity_type", "source_system", "source_id", "unified_id", "confidence_score", "metadata", "created_at", "updated_at")
	sb.From("source_mappings")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("unified_id", unifiedID),
	)
	sb.OrderBy("created_at")

	query, args := sb.Build()
	var mappings []models.SourceMapping
	if err := r.db.SelectContext(ctx, &mappings, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "unified_id": unifiedID}).Error("Failed to list mappings by unified id")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list source mappings")
	}
	return mappings, nil
}

// ListMappingsPage pages mappings across all tenants for cache warmup.
func (r *Repository) ListMappingsPage(ctx context.Context, limit, offset int) ([]models.SourceMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "sourcemapping.Repository.ListMappingsPage")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("tenant_id", "entity_type", "source_system", "source_id", "unified_id", "confidence_score", "metadata", "created_at", "updated_at")
	sb.From("source_mappings")
	sb.OrderBy("tenant_id", "entity_type", "source_system", "source_id")
	sb.Limit(limit).Offset(offset)

	query, args := sb.Build()
	var mappings []models.SourceMapping
	if err := r.db.SelectContext(ctx, &mappings, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"limit": limit, "offset": offset}).Error("Failed to page source mappings")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to page source mappings")
	}
	return mappings, nil
}

// ListNewestFirst pages mappings across all tenants ordered newest first,
// the scan order reconciliation uses.
func (r *Repository) ListNewestFirst(ctx context.Context, limit, offset int) ([]models.SourceMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "sourcemapping.Repository.ListNewestFirst")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("tenant_id", "entity_type", "source_system", "source_id", "unified_id", "confidence_score", "metadata", "created_at", "updated_at")
	sb.From("source_mappings")
	sb.OrderBy("created_at DESC")
	sb.Limit(limit).Offset(offset)

	query, args := sb.Build()
	var mappings []models.SourceMapping
	if err := r.db.SelectContext(ctx, &mappings, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"limit": limit, "offset": offset}).Error("Failed to list source mappings newest first")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list source mappings")
	}
	return mappings, nil
}
