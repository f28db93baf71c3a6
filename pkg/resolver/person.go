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

// ResolvePerson resolves a person record to a unified entity, creating one
// when nothing matches.
func (r *Resolver) ResolvePerson(ctx context.Context, tenantID string, req models.ResolvePersonRequest) (*models.ResolveResult, error) {
	return r.ResolvePersonWithOptions(ctx, tenantID, req, ResolveOptions{})
}

// ResolvePersonWithOptions resolves a person with pipeline tuning.
func (r *Resolver) ResolvePersonWithOptions(ctx context.Context, tenantID string, req models.ResolvePersonRequest, opts ResolveOptions) (*models.ResolveResult, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Resolver.ResolvePerson")
	defer span.End()

	start := time.Now()

	name := normalize.PersonName(req.Name)
	email, hasEmail := normalize.Email(req.Email)
	if req.Email != "" && !hasEmail {
		r.logger.WithContext(ctx).WithFields(map[string]any{"tenant_id": tenantID, "source_system": req.SourceSystem}).Warn("Ignoring malformed email on person resolution")
	}
	if name == "" && !hasEmail {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "a usable name or email is required to resolve a person")
	}

	company := companyContextFrom(req.Context)
	raw := models.MappingMetadata{Name: req.Name, Email: email, Context: req.Context}

	// Stage 1: previously resolved source record.
	if req.SourceSystem != "" && req.SourceID != "" && !opts.IgnoreExistingMapping {
		if result, err := r.knownMapping(ctx, tenantID, models.EntityTypePerson, req.SourceSystem, req.SourceID); err != nil {
			return nil, err
		} else if result != nil {
			metrics.RecordResolution(models.EntityTypePerson, result.Outcome, time.Since(start).Seconds())
			return result, nil
		}
	}

	// Stage 2: exact identity by email.
	if hasEmail {
		unifiedID, err := r.findByEmail(ctx, tenantID, email)
		if err != nil {
			return nil, err
		}
		if unifiedID != "" {
			result := &models.ResolveResult{
				UnifiedID:  unifiedID,
				EntityType: models.EntityTypePerson,
				Outcome:    models.OutcomeExact,
				Confidence: 1.0,
			}
			if opts.DryRun {
				return result, nil
			}
			return r.completePerson(ctx, tenantID, req, raw, company, result, start)
		}
	}

	// Stage 3: fuzzy name match.
	if name != "" {
		match, err := r.matcher.MatchPerson(ctx, tenantID, name, company)
		if err != nil {
			return nil, err
		}
		if match != nil {
			metrics.RecordFuzzyScore(models.EntityTypePerson, match.Score)
			result := &models.ResolveResult{
				UnifiedID:  match.UnifiedID,
				EntityType: models.EntityTypePerson,
				Outcome:    models.OutcomeFuzzy,
				Confidence: match.Confidence,
				Score:      match.Score,
			}
			if opts.DryRun {
				return result, nil
			}
			return r.completePerson(ctx, tenantID, req, raw, company, result, start)
		}
	}

	if opts.DryRun {
		return nil, nil
	}

	// Stage 4: nothing matched, create.
	entity := &models.UnifiedEntity{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		EntityType: models.EntityTypePerson,
		Metadata: database.NewJSONB(models.EntityMetadata{
			Name:           req.Name,
			NormalizedName: name,
			Email:          email,
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
		// Lost a creation race on the email identity index. The winner's
		// entity is the answer; re-resolve as an exact lookup.
		r.logger.WithContext(ctx).WithFields(map[string]any{"tenant_id": tenantID, "email": email}).Info("Lost person creation race, linking to existing entity")
		unifiedID, lookupErr := r.findByEmail(ctx, tenantID, email)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if unifiedID == "" {
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to resolve person after creation conflict")
		}
		result := &models.ResolveResult{
			UnifiedID:  unifiedID,
			EntityType: models.EntityTypePerson,
			Outcome:    models.OutcomeExact,
			Confidence: 1.0,
		}
		return r.completePerson(ctx, tenantID, req, raw, company, result, start)
	}

	if hasEmail {
		r.cache.PutEmail(tenantID, email, entity.ID)
	}
	if r.events != nil {
		if err := r.events.EmitEntityCreated(ctx, entity, req.SourceSystem); err != nil {
			r.logger.WithContext(ctx).WithError(err).Warn("Failed to emit entity.created event")
		}
	}

	result := &models.ResolveResult{
		UnifiedID:  entity.ID,
		EntityType: models.EntityTypePerson,
		Outcome:    models.OutcomeCreated,
		Confidence: 1.0,
	}
	return r.completePerson(ctx, tenantID, req, raw, company, result, start)
}

// completePerson finishes a person resolution: records the source mapping,
// the company affiliation from context, and the resolution metrics.
func (r *Resolver) completePerson(ctx context.Context, tenantID string, req models.ResolvePersonRequest, raw models.MappingMetadata, company string, result *models.ResolveResult, start time.Time) (*models.ResolveResult, error) {
	if req.SourceSystem != "" && req.SourceID != "" {
		if err := r.recordMapping(ctx, tenantID, models.EntityTypePerson, result.UnifiedID, req.SourceSystem, req.SourceID, raw, result.Confidence); err != nil {
			return nil, err
		}
	}

	if company != "" {
		if err := r.links.Link(ctx, tenantID, result.UnifiedID, company); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "unified_id": result.UnifiedID}).Warn("Failed to record company affiliation")
		}
	}

	metrics.RecordResolution(models.EntityTypePerson, result.Outcome, time.Since(start).Seconds())
	return result, nil
}

// findByEmail consults the email index cache before the store.
func (r *Resolver) findByEmail(ctx context.Context, tenantID, email string) (string, error) {
	if id, ok := r.cache.GetEmail(tenantID, email); ok {
		metrics.RecordCacheHit("email")
		return id, nil
	}

	entity, err := r.entities.FindByEmail(ctx, tenantID, email)
	if err != nil {
		return "", err
	}
	if entity == nil {
		return "", nil
	}

	r.cache.PutEmail(tenantID, email, entity.ID)
	return entity.ID, nil
}
