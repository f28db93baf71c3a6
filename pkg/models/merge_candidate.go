package models

import (
	"time"

	"github.com/Ramsey-B/aster/pkg/database"
)

// Merge candidate review statuses.
const (
	MergeCandidateStatusPending  = "pending"
	MergeCandidateStatusApproved = "approved"
	MergeCandidateStatusRejected = "rejected"
	MergeCandidateStatusDeferred = "deferred"
)

// MergeCandidateDetail captures the evidence behind a proposed re-link.
type MergeCandidateDetail struct {
	Score       float64         `json:"score,omitempty"`
	Outcome     string          `json:"outcome,omitempty"`
	RawMetadata MappingMetadata `json:"raw_metadata,omitempty"`
}

// MergeCandidate is a divergence found by reconciliation: the source record
// currently maps to CurrentUnifiedID but would resolve to ProposedUnifiedID today.
type MergeCandidate struct {
	ID                string                               `json:"id" db:"id"`
	TenantID          string                               `json:"tenant_id" db:"tenant_id"`
	EntityType        string                               `json:"entity_type" db:"entity_type"`
	SourceSystem      string                               `json:"source_system" db:"source_system"`
	SourceID          string                               `json:"source_id" db:"source_id"`
	CurrentUnifiedID  string                               `json:"current_unified_id" db:"current_unified_id"`
	ProposedUnifiedID string                               `json:"proposed_unified_id" db:"proposed_unified_id"`
	Confidence        float64                              `json:"confidence" db:"confidence"`
	Status            string                               `json:"status" db:"status"`
	Detail            database.JSONB[MergeCandidateDetail] `json:"detail" db:"detail"`
	CreatedAt         time.Time                            `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time                            `json:"updated_at" db:"updated_at"`
}

// MergeCandidateListResponse is the paged response for the review queue.
type MergeCandidateListResponse struct {
	Items      []MergeCandidate `json:"items"`
	TotalCount int              `json:"total_count"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
}
