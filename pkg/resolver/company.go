package resolver

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"

	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/metrics"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/normalize"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// ResolveCompany resolves a company record to a unified entity, creating one
// when nothing matches.
func (r *Resolver) ResolveCompany(ctx context.Context, tenantID string, req models.ResolveCompanyRequest) (*models.ResolveResult, error) {
	return r.ResolveCompanyWithOptions(ctx, tenantID, req, ResolveOptions{})
}

// ResolveCompanyWithOptions resolves a company with pipeline tuning.
func (r *Resolver) ResolveCompanyWithOptions(ctx context.Context, tenantID string, req models.ResolveCompanyRequest, opts ResolveOptions) (*models.ResolveResult, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Resolver.ResolveCompany")
	defer span.End()

	start := time.Now()

	name := normalize.CompanyName(req.Name)
	domain := normalize.Domain(req.Domain)
	if name == "" && domain == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "a usable name or domain is required to resolve a company")
	}

	raw := models.MappingMetadata{Name: req.Name, Domain: domain, Context: req.Context}

	// Stage 1: previously resolved source record.
	if req.SourceSystem != "" && req.SourceID != "" && !opts.IgnoreExistingMapping {
		if result, err := r.knownMapping(ctx, tenantID, models.EntityTypeCompany, req.SourceSystem, req.SourceID); err != nil {
			return nil, err
		} else if result != nil {
			metrics.RecordResolution(models.EntityTypeCompany, result.Outcome, time.Since(start).Seconds())
			return result, nil
		}
	}

	// Stage 2: exact identity by domain.
	if domain != "" {
		unifiedID, err := r.findByDomain(ctx, tenantID, domain)
		if err != nil {
			return nil, err
		}
		if unifiedID != "" {
			result := &models.ResolveResult{
				UnifiedID:  unifiedID,
				EntityType: models.EntityTypeCompany,
				Outcome:    models.OutcomeExact,
				Confidence: 1.0,
			}
			if opts.DryRun {
				return result, nil
			}
			return r.completeCompany(ctx, tenantID, req, raw, result, start)
		}
	}

	// Stage 3: fuzzy name match.
	if name != "" {
		match, err := r.matcher.MatchCompany(ctx, tenantID, name)
		if err != nil {
			return nil, err
		}
		if match != nil {
			metrics.RecordFuzzyScore(models.EntityTypeCompany, match.Score)
			result := &models.ResolveResult{
				UnifiedID:  match.UnifiedID,
				EntityType: models.EntityTypeCompany,
				Outcome:    models.OutcomeFuzzy,
				Confidence: match.Confidence,
				Score:      match.Score,
			}
			if opts.DryRun {
				return result, nil
			}
			return r.completeCompany(ctx, tenantID, req, raw, result, start)
		}
	}

	if opts.DryRun {
		return nil, nil
	}

	// Stage 4: nothing matched, create.
	entity := &models.UnifiedEntity{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		EntityType: models.EntityTypeCompany,
		Metadata: database.NewJSONB(models.EntityMetadata{
			Name:           req.Name,
			NormalizedName: name,
			Domain:         domain,
			InitialContext: req.Context,
		}),
	}
	if req.SourceSystem != "" {
		entity.Metadata.Data.SourceSystems = []string{req.SourceSystem}
	}

	if err := r.entities.Create(ctx, entity); err != nil {
		if !database.IsUniqueViolation(err) {
			return nil, err
		}
		r.logger.WithContext(ctx).WithFields(map[string]any{"tenant_id": tenantID, "domain": domain}).Info("Lost company creation race, linking to existing entity")
		unifiedID, lookupErr := r.findByDomain(ctx, tenantID, domain)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if unifiedID == "" {
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to resolve company after creation conflict")
		}
		result := &models.ResolveResult{
			UnifiedID:  unifiedID,
			EntityType: models.EntityTypeCompany,
			Outcome:    models.OutcomeExact,
			Confidence: 1.0,
		}
		return r.completeCompany(ctx, tenantID, req, raw, result, start)
	}

	if domain != "" {
		r.cache.PutDomain(tenantID, domain, entity.ID)
	}
	if r.events != nil {
		if err := r.events.EmitEntityCreated(ctx, entity, req.SourceSystem); err != nil {
			r.logger.WithContext(ctx).WithError(err).Warn("Failed to emit entity.created event")
		}
	}

	result := &models.ResolveResult{
		UnifiedID:  entity.ID,
		EntityType: models.EntityTypeCompany,
		Outcome:    models.OutcomeCreated,
		Confidence: 1.0,
	}
	return r.completeCompany(ctx, tenantID, req, raw, result, start)
}

func (r *Resolver) completeCompany(ctx context.Context, tenantID string, req models.ResolveCompanyRequest, raw models.MappingMetadata, result *models.ResolveResult, start time.Time) (*models.ResolveResult, error) {
	if req.SourceSystem != "" && req.SourceID != "" {
		if err := r.recordMapping(ctx, tenantID, models.EntityTypeCompany, result.UnifiedID, req.SourceSystem, req.SourceID, raw, result.Confidence); err != nil {
			return nil, err
		}
	}

	metrics.RecordResolution(models.EntityTypeCompany, result.Outcome, time.Since(start).Seconds())
	return result, nil
}

// findByDomain consults the domain index cache before the store.
func (r *Resolver) findByDomain(ctx context.Context, tenantID, domain string) (string, error) {
	if id, ok := r.cache.GetDomain(tenantID, domain); ok {
		metrics.RecordCacheHit("domain")
		return id, nil
	}

	entity, err := r.entities.FindByDomain(ctx, tenantID, domain)
	if err != nil {
		return "", err
	}
	if entity == nil {
		return "", nil
	}

	r.cache.PutDomain(tenantID, domain, entity.ID)
	return entity.ID, nil
}
