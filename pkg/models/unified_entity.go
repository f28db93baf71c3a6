package models

import (
	"time"

	"github.com/Ramsey-B/aster/pkg/database"
)

// Entity types supported by the resolution pipeline.
const (
	EntityTypePerson  = "person"
	EntityTypeCompany = "company"
)

// EntityMetadata is the jsonb payload stored on a unified entity.
// normalized_name is persisted so fuzzy candidate pools never re-normalize on read.
type EntityMetadata struct {
	Name           string         `json:"name,omitempty"`
	NormalizedName string         `json:"normalized_name,omitempty"`
	Email          string         `json:"email,omitempty"`
	Domain         string         `json:"domain,omitempty"`
	SourceSystems  []string       `json:"source_systems,omitempty"`
	InitialContext map[string]any `json:"initial_context,omitempty"`
}

// HasSourceSystem reports whether the given source system is already recorded.
func (m *EntityMetadata) HasSourceSystem(sourceSystem string) bool {
	for _, s := range m.SourceSystems {
		if s == sourceSystem {
			return true
		}
	}
	return false
}

// UnifiedEntity is the canonical record a resolution collapses source records into.
type UnifiedEntity struct {
	ID         string                        `json:"id" db:"id"`
	TenantID   string                        `json:"tenant_id" db:"tenant_id"`
	EntityType string                        `json:"entity_type" db:"entity_type"`
	Metadata   database.JSONB[EntityMetadata] `json:"metadata" db:"metadata"`
	CreatedAt  time.Time                     `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time                     `json:"updated_at" db:"updated_at"`
}

// EntityDetails is the read model returned by the entity detail endpoint.
type EntityDetails struct {
	Entity   UnifiedEntity   `json:"entity"`
	Mappings []SourceMapping `json:"mappings"`
}
