package models

import (
	"time"

	"github.com/Ramsey-B/aster/pkg/database"
)

// MappingMetadata is the raw source payload captured alongside a mapping.
// Kept verbatim so reconciliation can replay the original record later.
type MappingMetadata struct {
	Name    string         `json:"name,omitempty"`
	Email   string         `json:"email,omitempty"`
	Domain  string         `json:"domain,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// SourceMapping links a source-system record to a unified entity.
// Natural key is (tenant_id, entity_type, source_system, source_id).
type SourceMapping struct {
	TenantID        string                          `json:"tenant_id" db:"tenant_id"`
	EntityType      string                          `json:"entity_type" db:"entity_type"`
	SourceSystem    string                          `json:"source_system" db:"source_system"`
	SourceID        string                          `json:"source_id" db:"source_id"`
	UnifiedID       string                          `json:"unified_id" db:"unified_id"`
	ConfidenceScore float64                         `json:"confidence_score" db:"confidence_score"`
	Metadata        database.JSONB[MappingMetadata] `json:"metadata" db:"metadata"`
	CreatedAt       time.Time                       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time                       `json:"updated_at" db:"updated_at"`
}
