package resolver

import (
	"context"

	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/metrics"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// knownMapping answers a resolution from the mapping cache, falling back to
// the store when another instance linked the record since our warmup. Returns
// nil when the source record has never been resolved.
func (r *Resolver) knownMapping(ctx context.Context, tenantID, entityType, sourceSystem, sourceID string) (*models.ResolveResult, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Resolver.knownMapping")
	defer span.End()

	if unifiedID, ok := r.cache.GetMapping(tenantID, entityType, sourceSystem, sourceID); ok {
		metrics.RecordCacheHit("mapping")
		return &models.ResolveResult{
			UnifiedID:  unifiedID,
			EntityType: entityType,
			Outcome:    models.OutcomeCacheHit,
			Confidence: 1.0,
		}, nil
	}

	mapping, err := r.mappings.Get(ctx, tenantID, entityType, sourceSystem, sourceID)
	if err != nil {
		return nil, err
	}
	if mapping == nil {
		return nil, nil
	}

	r.cache.PutMapping(tenantID, entityType, sourceSystem, sourceID, mapping.UnifiedID)
	return &models.ResolveResult{
		UnifiedID:  mapping.UnifiedID,
		EntityType: entityType,
		Outcome:    models.OutcomeCacheHit,
		Confidence: 1.0,
	}, nil
}

// recordMapping links a source record to its resolved entity: upserts the
// mapping row, mirrors it into the cache, tracks the source system on the
// entity, and emits mapping.linked.
func (r *Resolver) recordMapping(ctx context.Context, tenantID, entityType, unifiedID, sourceSystem, sourceID string, raw models.MappingMetadata, confidence float64) error {
	ctx, span := tracing.StartSpan(ctx, "resolver.Resolver.recordMapping")
	defer span.End()

	// Already linked to the same entity; nothing to record.
	if cached, ok := r.cache.GetMapping(tenantID, entityType, sourceSystem, sourceID); ok && cached == unifiedID {
		return nil
	}

	mapping := &models.SourceMapping{
		TenantID:        tenantID,
		EntityType:      entityType,
		SourceSystem:    sourceSystem,
		SourceID:        sourceID,
		UnifiedID:       unifiedID,
		ConfidenceScore: confidence,
		Metadata:        database.NewJSONB(raw),
	}
	if err := r.mappings.Upsert(ctx, mapping); err != nil {
		return err
	}

	r.cache.PutMapping(tenantID, entityType, sourceSystem, sourceID, unifiedID)

	if err := r.trackSourceSystem(ctx, tenantID, unifiedID, sourceSystem); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "unified_id": unifiedID, "source_system": sourceSystem}).Warn("Failed to track source system on entity")
	}

	// TODO: fold new source attributes (phone, title) into the entity
	// metadata once a conflict policy for differing values is settled.

	if r.events != nil {
		if err := r.events.EmitMappingLinked(ctx, mapping); err != nil {
			r.logger.WithContext(ctx).WithError(err).Warn("Failed to emit mapping.linked event")
		}
	}
	return nil
}

// trackSourceSystem appends the source system to the entity's metadata when
// not already present.
func (r *Resolver) trackSourceSystem(ctx context.Context, tenantID, unifiedID, sourceSystem string) error {
	entity, err := r.entities.Get(ctx, tenantID, unifiedID)
	if err != nil {
		return err
	}

	meta := entity.Metadata.GetValue()
	if meta.HasSourceSystem(sourceSystem) {
		return nil
	}

	meta.SourceSystems = append(meta.SourceSystems, sourceSystem)
	return r.entities.UpdateMetadata(ctx, tenantID, unifiedID, meta)
}
