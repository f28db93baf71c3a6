package unifiedentity

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/matching"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// Repository handles unified entity persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new unified entity repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new unified entity. Unique violations on the identity
// indexes (email, domain) are returned unwrapped so callers can detect the
// creation race and fall back to a lookup.
func (r *Repository) Create(ctx context.Context, entity *models.UnifiedEntity) error {
	ctx, span := tracing.StartSpan(ctx, "unifiedentity.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	entity.CreatedAt = now
	entity.UpdatedAt = now

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("unified_entities")
	ib.Cols("id", "tenant_id", "entity_type", "metadata", "created_at", "updated_at")
	ib.Values(entity.ID, entity.TenantID, entity.EntityType, entity.Metadata, entity.CreatedAt, entity.UpdatedAt)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if database.IsUniqueViolation(err) {
			return err
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": entity.ID, "tenant_id": entity.TenantID, "entity_type": entity.EntityType}).Error("Failed to create unified entity")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create unified entity")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"id": entity.ID, "entity_type": entity.EntityType}).Info("Created unified entity")
	return nil
}

// Get retrieves a unified entity by ID
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.UnifiedEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "unifiedentity.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "entity_type", "metadata", "created_at", "updated_at")
	sb.From("unified_entities")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var entity models.UnifiedEntity
	if err := r.db.GetContext(ctx, &entity, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "entity %s not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id, "tenant_id": tenantID}).Error("Failed to get unified entity")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get unified entity")
	}

	return &entity, nil
}

// UpdateMetadata replaces an entity's metadata payload.
func (r *Repository) UpdateMetadata(ctx context.Context, tenantID, id string, metadata models.EntityMetadata) error {
	ctx, span := tracing.StartSpan(ctx, "unifiedentity.Repository.UpdateMetadata")
	defer span.End()

	now := time.Now().UTC()
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("unified_entities")
	ub.Set(
		ub.Assign("metadata", database.NewJSONB(metadata)),
		ub.Assign("updated_at", now),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("tenant_id", tenantID),
	)

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id, "tenant_id": tenantID}).Error("Failed to update entity metadata")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update entity metadata")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "entity %s not found", id)
	}
	return nil
}

// FindByEmail returns the entity owning a normalized email, or nil.
func (r *Repository) FindByEmail(ctx context.Context, tenantID, email string) (*models.UnifiedEntity, error) {
	return r.findByIdentity(ctx, tenantID, models.EntityTypePerson, "email", email)
}

// FindByDomain returns the company owning a normalized domain, or nil.
func (r *Repository) FindByDomain(ctx context.Context, tenantID, domain string) (*models.UnifiedEntity, error) {
	return r.findByIdentity(ctx, tenantID, models.EntityTypeCompany, "domain", domain)
}

// findByIdentity looks an entity up by a metadata identity field. The field
// name is fixed by the callers above so the expression index is usable.
func (r *Repository) findByIdentity(ctx context.Context, tenantID, entityType, field, value string) (*models.UnifiedEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "unifiedentity.Repository.findByIdentity")
	defer span.End()

	query := `
		SELECT id, tenant_id, entity_type, metadata, created_at, updated_at
		FROM unified_entities
		WHERE tenant_id = $1
		  AND entity_type = $2
		  AND (metadata ->> '` + field + `') = $3
		LIMIT 1
	`

	var entity models.UnifiedEntity
	if err := r.db.GetContext(ctx, &entity, query, tenantID, entityType, value); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "entity_type": entityType, "field": field}).Error("Failed to find entity by identity field")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find entity")
	}
	return &entity, nil
}

// ListPersonPool returns the tenant's person candidates for fuzzy matching.
// Candidates linked to companyContext sort first so they win score ties.
func (r *Repository) ListPersonPool(ctx context.Context, tenantID, companyContext string) ([]matching.Candidate, error) {
	ctx, span := tracing.StartSpan(ctx, "unifiedentity.Repository.ListPersonPool")
	defer span.End()

	query := `
		SELECT u.id, COALESCE(u.metadata ->> 'normalized_name', '') AS normalized_name
		FROM unified_entities u
		WHERE u.tenant_id = $1
		  AND u.entity_type = 'person'
		  AND u.metadata ? 'normalized_name'
		ORDER BY
			CASE WHEN $2 <> '' AND EXISTS (
				SELECT 1 FROM company_links cl
				WHERE cl.tenant_id = u.tenant_id
				  AND cl.person_unified_id = u.id
				  AND cl.company_name = $2
			) THEN 0 ELSE 1 END,
			u.created_at
	`

	return r.selectPool(ctx, tenantID, query, tenantID, companyContext)
}

// ListCompanyPool returns the tenant's company candidates for fuzzy matching.
func (r *Repository) ListCompanyPool(ctx context.Context, tenantID string) ([]matching.Candidate, error) {
	ctx, span := tracing.StartSpan(ctx, "unifiedentity.Repository.ListCompanyPool")
	defer span.End()

	query := `
		SELECT id, COALESCE(metadata ->> 'normalized_name', '') AS normalized_name
		FROM unified_entities
		WHERE tenant_id = $1
		  AND entity_type = 'company'
		  AND metadata ? 'normalized_name'
		ORDER BY created_at
	`

	return r.selectPool(ctx, tenantID, query, tenantID)
}

func (r *Repository) selectPool(ctx context.Context, tenantID, query string, args ...any) ([]matching.Candidate, error) {
	var rows []struct {
		ID             string `db:"id"`
		NormalizedName string `db:"normalized_name"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID}).Error("Failed to list fuzzy match pool")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list match candidates")
	}

	candidates := make([]matching.Candidate, 0, len(rows))
	for _, row := range rows {
		candidates = append(candidates, matching.Candidate{
			UnifiedID:      row.ID,
			NormalizedName: row.NormalizedName,
		})
	}
	return candidates, nil
}
