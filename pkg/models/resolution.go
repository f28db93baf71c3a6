package models

// Outcome values describe which pipeline stage produced a resolution.
const (
	OutcomeCacheHit = "cache_hit"
	OutcomeExact    = "exact"
	OutcomeFuzzy    = "fuzzy"
	OutcomeCreated  = "created"
)

// ResolvePersonRequest is the payload for person resolution. All fields are
// optional at the transport layer; the resolver rejects requests carrying
// neither a usable name nor a usable email. SourceSystem and SourceID are
// optional; without them the resolution is answered but no mapping is
// recorded.
type ResolvePersonRequest struct {
	Name         string         `json:"name,omitempty"`
	Email        string         `json:"email,omitempty"`
	SourceSystem string         `json:"source_system,omitempty"`
	SourceID     string         `json:"source_id,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
}

// ResolveCompanyRequest is the payload for company resolution. Name is
// optional; the resolver rejects requests carrying neither a usable name
// nor a usable domain.
type ResolveCompanyRequest struct {
	Name         string         `json:"name,omitempty"`
	Domain       string         `json:"domain,omitempty"`
	SourceSystem string         `json:"source_system,omitempty"`
	SourceID     string         `json:"source_id,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
}

// ResolveResult is the terminal answer of the resolution pipeline.
type ResolveResult struct {
	UnifiedID  string  `json:"unified_id"`
	EntityType string  `json:"entity_type"`
	Outcome    string  `json:"outcome"`
	Confidence float64 `json:"confidence"`
	Score      float64 `json:"score,omitempty"`
}
