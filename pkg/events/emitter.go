// Package events handles event emission for resolution lifecycle changes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/aster/pkg/kafka"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter publishes resolution lifecycle events. Emission failures are
// logged and surfaced but never fail the resolution that triggered them.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitEntityCreated emits an entity.created event
func (e *Emitter) EmitEntityCreated(ctx context.Context, entity *models.UnifiedEntity, sourceSystem string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitEntityCreated")
	defer span.End()

	data, _ := json.Marshal(map[string]any{
		"schema_version": SchemaVersion,
		"metadata":       entity.Metadata.GetValue(),
		"source_system":  sourceSystem,
	})

	event := &kafka.ResolutionEvent{
		EventType:  "entity.created",
		TenantID:   entity.TenantID,
		EntityID:   entity.ID,
		EntityType: entity.EntityType,
		Data:       data,
	}

	if err := e.producer.PublishResolutionEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit entity.created event")
		return err
	}
	return nil
}

// EmitMappingLinked emits a mapping.linked event
func (e *Emitter) EmitMappingLinked(ctx context.Context, mapping *models.SourceMapping) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitMappingLinked")
	defer span.End()

	data, _ := json.Marshal(map[string]any{
		"schema_version":   SchemaVersion,
		"source_system":    mapping.SourceSystem,
		"source_id":        mapping.SourceID,
		"confidence_score": mapping.ConfidenceScore,
	})

	event := &kafka.ResolutionEvent{
		EventType:  "mapping.linked",
		TenantID:   mapping.TenantID,
		EntityID:   mapping.UnifiedID,
		EntityType: mapping.EntityType,
		Data:       data,
	}

	if err := e.producer.PublishResolutionEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit mapping.linked event")
		return err
	}
	return nil
}

// EmitMergeCandidate emits a merge.candidate event when reconciliation finds
// a divergent mapping.
func (e *Emitter) EmitMergeCandidate(ctx context.Context, candidate *models.MergeCandidate) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitMergeCandidate")
	defer span.End()

	data, _ := json.Marshal(map[string]any{
		"schema_version":      SchemaVersion,
		"candidate_id":        candidate.ID,
		"source_system":       candidate.SourceSystem,
		"source_id":           candidate.SourceID,
		"current_unified_id":  candidate.CurrentUnifiedID,
		"proposed_unified_id": candidate.ProposedUnifiedID,
		"confidence":          candidate.Confidence,
	})

	event := &kafka.ResolutionEvent{
		EventType:  "merge.candidate",
		TenantID:   candidate.TenantID,
		EntityID:   candidate.ProposedUnifiedID,
		EntityType: candidate.EntityType,
		Data:       data,
	}

	if err := e.producer.PublishResolutionEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit merge.candidate event")
		return err
	}
	return nil
}
