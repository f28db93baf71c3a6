package companylink

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// Repository persists person-to-company affiliation links. Links are keyed by
// normalized company name so resolution context can be checked without first
// resolving the company.
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

// Link records a person-company affiliation. Idempotent.
func (r *Repository) Link(ctx context.Context, tenantID, personUnifiedID, companyName string) error {
	ctx, span := tracing.StartSpan(ctx, "companylink.Repository.Link")
	defer span.End()

	query := `
		INSERT INTO company_links (tenant_id, person_unified_id, company_name, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, person_unified_id, company_name) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query, tenantID, personUnifiedID, companyName, time.Now().UTC()); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "person_unified_id": personUnifiedID, "company_name": companyName}).Error("Failed to link person to company")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to link person to company")
	}
	return nil
}

// PersonLinkedToCompany reports whether a person is affiliated with the
// normalized company name.
func (r *Repository) PersonLinkedToCompany(ctx context.Context, tenantID, unifiedID, companyName string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "companylink.Repository.PersonLinkedToCompany")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("company_links")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("person_unified_id", unifiedID),
		sb.Equal("company_name", companyName),
	)

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "person_unified_id": unifiedID, "company_name": companyName}).Error("Failed to check company link")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to check company link")
	}
	return count > 0, nil
}
