package matching

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/aster/pkg/tracing"
)

// Default thresholds and boost factor for fuzzy matching.
const (
	DefaultPersonThreshold  = 85.0
	DefaultCompanyThreshold = 80.0
	DefaultContextBoost     = 1.2
)

// Candidate is a pool entry a query name is scored against.
type Candidate struct {
	UnifiedID      string
	NormalizedName string
}

// PoolSource supplies candidate pools for fuzzy matching.
// Person pools are ordered so candidates linked to the given company context
// come first; ties on score then prefer context-linked candidates.
type PoolSource interface {
	ListPersonPool(ctx context.Context, tenantID, companyContext string) ([]Candidate, error)
	ListCompanyPool(ctx context.Context, tenantID string) ([]Candidate, error)
}

// LinkSource answers whether a person is already linked to a company, which
// drives the context boost.
type LinkSource interface {
	PersonLinkedToCompany(ctx context.Context, tenantID, unifiedID, companyName string) (bool, error)
}

// Config holds threshold tuning for the matcher.
type Config struct {
	PersonThreshold  float64
	CompanyThreshold float64
	ContextBoost     float64
}

// Match is a fuzzy match above threshold. Score is the raw 0-100 similarity;
// Confidence is 0-1 with any context boost applied.
type Match struct {
	UnifiedID  string
	Score      float64
	Confidence float64
	Boosted    bool
}

// Matcher finds the best-scoring entity for a normalized name.
type Matcher struct {
	pool   PoolSource
	links  LinkSource
	config Config
	logger ectologger.Logger
}

func NewMatcher(pool PoolSource, links LinkSource, config Config, logger ectologger.Logger) *Matcher {
	if config.PersonThreshold <= 0 {
		config.PersonThreshold = DefaultPersonThreshold
	}
	if config.CompanyThreshold <= 0 {
		config.CompanyThreshold = DefaultCompanyThreshold
	}
	if config.ContextBoost <= 0 {
		config.ContextBoost = DefaultContextBoost
	}
	return &Matcher{
		pool:   pool,
		links:  links,
		config: config,
		logger: logger,
	}
}

// MatchPerson scores name against the tenant's person pool. Returns nil when
// no candidate reaches the person threshold. When the best candidate is
// linked to the company named in the request context, its confidence is
// boosted by the configured factor, capped at 1.0.
func (m *Matcher) MatchPerson(ctx context.Context, tenantID, name, companyContext string) (*Match, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Matcher.MatchPerson")
	defer span.End()

	candidates, err := m.pool.ListPersonPool(ctx, tenantID, companyContext)
	if err != nil {
		return nil, err
	}

	match := bestMatch(name, candidates, m.config.PersonThreshold)
	if match == nil {
		return nil, nil
	}

	if companyContext != "" && m.links != nil {
		linked, err := m.links.PersonLinkedToCompany(ctx, tenantID, match.UnifiedID, companyContext)
		if err != nil {
			m.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "unified_id": match.UnifiedID}).Warn("Failed to check company link for context boost")
		} else if linked {
			match.Confidence = boost(match.Confidence, m.config.ContextBoost)
			match.Boosted = true
		}
	}

	m.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":  tenantID,
		"unified_id": match.UnifiedID,
		"score":      match.Score,
		"confidence": match.Confidence,
		"boosted":    match.Boosted,
	}).Debug("Fuzzy matched person")

	return match, nil
}

// MatchCompany scores name against the tenant's company pool. Returns nil
// when no candidate reaches the company threshold.
func (m *Matcher) MatchCompany(ctx context.Context, tenantID, name string) (*Match, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Matcher.MatchCompany")
	defer span.End()

	candidates, err := m.pool.ListCompanyPool(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	match := bestMatch(name, candidates, m.config.CompanyThreshold)
	if match == nil {
		return nil, nil
	}

	m.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":  tenantID,
		"unified_id": match.UnifiedID,
		"score":      match.Score,
	}).Debug("Fuzzy matched company")

	return match, nil
}

// bestMatch keeps the first candidate with the highest score, so pool
// ordering decides ties.
func bestMatch(name string, candidates []Candidate, threshold float64) *Match {
	var best *Match
	for _, candidate := range candidates {
		if candidate.NormalizedName == "" {
			continue
		}
		score := TokenSortRatio(name, candidate.NormalizedName)
		if score < threshold {
			continue
		}
		if best == nil || score > best.Score {
			best = &Match{
				UnifiedID:  candidate.UnifiedID,
				Score:      score,
				Confidence: score / 100,
			}
		}
	}
	return best
}

func boost(confidence, factor float64) float64 {
	boosted := confidence * factor
	if boosted > 1.0 {
		return 1.0
	}
	return boosted
}
