// Package resolver implements the resolution pipeline: cached mapping, exact
// identity, fuzzy name match, then entity creation. Earlier stages always win.
package resolver

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/aster/pkg/cache"
	"github.com/Ramsey-B/aster/pkg/matching"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/normalize"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// EntityStore persists unified entities.
type EntityStore interface {
	Create(ctx context.Context, entity *models.UnifiedEntity) error
	Get(ctx context.Context, tenantID, id string) (*models.UnifiedEntity, error)
	UpdateMetadata(ctx context.Context, tenantID, id string, metadata models.EntityMetadata) error
	FindByEmail(ctx context.Context, tenantID, email string) (*models.UnifiedEntity, error)
	FindByDomain(ctx context.Context, tenantID, domain string) (*models.UnifiedEntity, error)
}

// MappingStore persists source mappings.
type MappingStore interface {
	Get(ctx context.Context, tenantID, entityType, sourceSystem, sourceID string) (*models.SourceMapping, error)
	Upsert(ctx context.Context, mapping *models.SourceMapping) error
	ListByUnifiedID(ctx context.Context, tenantID, unifiedID string) ([]models.SourceMapping, error)
}

// LinkStore persists person-to-company affiliations.
type LinkStore interface {
	Link(ctx context.Context, tenantID, personUnifiedID, companyName string) error
}

// EntityMatcher finds fuzzy matches above threshold.
type EntityMatcher interface {
	MatchPerson(ctx context.Context, tenantID, name, companyContext string) (*matching.Match, error)
	MatchCompany(ctx context.Context, tenantID, name string) (*matching.Match, error)
}

// EventSink receives resolution lifecycle events. Emission failures are
// logged, never propagated; resolution results do not depend on the broker.
type EventSink interface {
	EmitEntityCreated(ctx context.Context, entity *models.UnifiedEntity, sourceSystem string) error
	EmitMappingLinked(ctx context.Context, mapping *models.SourceMapping) error
}

// ResolveOptions tunes a single resolution.
type ResolveOptions struct {
	// IgnoreExistingMapping skips the cached-mapping stage. Reconciliation
	// sets this so a record's own mapping cannot answer its re-resolution.
	IgnoreExistingMapping bool

	// DryRun answers from the existing stages without writing anything: no
	// mapping upsert, no affiliation link, no entity creation, no events.
	// A dry run that would have created an entity returns a nil result.
	DryRun bool
}

// Resolver runs the resolution pipeline.
type Resolver struct {
	entities EntityStore
	mappings MappingStore
	links    LinkStore
	matcher  EntityMatcher
	cache    *cache.MatchCache
	events   EventSink // optional
	logger   ectologger.Logger
}

func NewResolver(
	entities EntityStore,
	mappings MappingStore,
	links LinkStore,
	matcher EntityMatcher,
	matchCache *cache.MatchCache,
	events EventSink,
	logger ectologger.Logger,
) *Resolver {
	return &Resolver{
		entities: entities,
		mappings: mappings,
		links:    links,
		matcher:  matcher,
		cache:    matchCache,
		events:   events,
		logger:   logger,
	}
}

// GetEntityDetails returns a unified entity together with every source
// mapping that points at it.
func (r *Resolver) GetEntityDetails(ctx context.Context, tenantID, id string) (*models.EntityDetails, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Resolver.GetEntityDetails")
	defer span.End()

	entity, err := r.entities.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	mappings, err := r.mappings.ListByUnifiedID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	return &models.EntityDetails{
		Entity:   *entity,
		Mappings: mappings,
	}, nil
}

// companyContextFrom extracts and normalizes the company hint from a
// resolution request's context, if present.
func companyContextFrom(reqContext map[string]any) string {
	if reqContext == nil {
		return ""
	}
	raw, ok := reqContext["company"].(string)
	if !ok {
		return ""
	}
	return normalize.CompanyName(raw)
}
