package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/aster/pkg/metrics"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/redis"
	"github.com/Ramsey-B/aster/pkg/resolver"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// ErrAlreadyRunning is returned when trying to start a running job.
var ErrAlreadyRunning = errors.New("reconciliation job already running")

const (
	// DefaultInterval is the default time between reconciliation runs.
	DefaultInterval = time.Hour

	// DefaultBatchSize is the number of mappings fetched per page.
	DefaultBatchSize = 500

	// DefaultLockTTL is the default TTL on the run lock.
	DefaultLockTTL = 10 * time.Minute

	// lockKey guards a run so only one instance reconciles at a time.
	lockKey = "reconcile:run"
)

// MappingSource lists source mappings across tenants, newest first.
type MappingSource interface {
	ListNewestFirst(ctx context.Context, limit, offset int) ([]models.SourceMapping, error)
}

// CandidateStore records merge candidates raised by divergent re-resolutions.
type CandidateStore interface {
	Record(ctx context.Context, candidate *models.MergeCandidate) error
}

// ResolutionService re-resolves source records through the full pipeline.
type ResolutionService interface {
	ResolvePersonWithOptions(ctx context.Context, tenantID string, req models.ResolvePersonRequest, opts resolver.ResolveOptions) (*models.ResolveResult, error)
	ResolveCompanyWithOptions(ctx context.Context, tenantID string, req models.ResolveCompanyRequest, opts resolver.ResolveOptions) (*models.ResolveResult, error)
}

// EventSink publishes merge candidate events. May be nil.
type EventSink interface {
	EmitMergeCandidate(ctx context.Context, candidate *models.MergeCandidate) error
}

// Config holds configuration for the reconciliation job.
type Config struct {
	// Interval is how often a full reconciliation pass runs.
	Interval time.Duration

	// BatchSize is the number of mappings scanned per page.
	BatchSize int

	// LockTTL is how long the run lock is held.
	LockTTL time.Duration
}

// Job periodically rescans source mappings through the resolution pipeline
// and records a merge candidate whenever a mapping would resolve to a
// different unified entity than the one it currently points at. Mappings
// are never re-pointed here; candidates wait for review.
type Job struct {
	resolutions ResolutionService
	mappings    MappingSource
	candidates  CandidateStore
	locker      *redis.Locker
	events      EventSink
	config      Config
	logger      ectologger.Logger

	stopCh   chan struct{}
	stoppedC chan struct{}
	running  bool
	mu       sync.RWMutex
}

// RunSummary describes a single reconciliation pass.
type RunSummary struct {
	Scanned  int `json:"scanned"`
	Diverged int `json:"diverged"`
	Failed   int `json:"failed"`
}

// NewJob creates a reconciliation job. locker and events may be nil; without
// a locker runs are not coordinated across instances.
func NewJob(
	resolutions ResolutionService,
	mappings MappingSource,
	candidates CandidateStore,
	locker *redis.Locker,
	events EventSink,
	config Config,
	logger ectologger.Logger,
) *Job {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultLockTTL
	}

	return &Job{
		resolutions: resolutions,
		mappings:    mappings,
		candidates:  candidates,
		locker:      locker,
		events:      events,
		config:      config,
		logger:      logger,
		stopCh:      make(chan struct{}),
		stoppedC:    make(chan struct{}),
	}
}

// Start starts the periodic reconciliation loop.
func (j *Job) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return ErrAlreadyRunning
	}
	j.running = true
	j.mu.Unlock()

	j.logger.WithContext(ctx).Infof("Starting reconciliation job: interval=%s batch_size=%d",
		j.config.Interval, j.config.BatchSize)

	go j.loop(ctx)

	return nil
}

// Stop stops the loop gracefully.
func (j *Job) Stop(ctx context.Context) error {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return nil
	}
	j.running = false
	j.mu.Unlock()

	close(j.stopCh)

	select {
	case <-j.stoppedC:
		j.logger.WithContext(ctx).Info("Reconciliation job stopped")
	case <-ctx.Done():
		j.logger.WithContext(ctx).Warn("Reconciliation job shutdown timed out")
		return ctx.Err()
	}

	return nil
}

// IsRunning returns whether the loop is active.
func (j *Job) IsRunning() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.running
}

func (j *Job) loop(ctx context.Context) {
	defer close(j.stoppedC)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopCh:
			j.logger.WithContext(ctx).Debug("Reconciliation loop stopping")
			return
		case <-ticker.C:
			j.run(ctx)
		}
	}
}

// run executes one pass, holding the distributed lock when configured.
func (j *Job) run(ctx context.Context) {
	work := func() error {
		summary, err := j.RunOnce(ctx)
		if err != nil {
			return err
		}
		j.logger.WithContext(ctx).Infof("Reconciliation pass complete: scanned=%d diverged=%d failed=%d",
			summary.Scanned, summary.Diverged, summary.Failed)
		return nil
	}

	var err error
	if j.locker != nil {
		err = j.locker.WithLock(ctx, lockKey, j.config.LockTTL, work)
		if errors.Is(err, redis.ErrLockNotAcquired) {
			j.logger.WithContext(ctx).Debug("Reconciliation lock held elsewhere, skipping run")
			return
		}
	} else {
		err = work()
	}
	if err != nil {
		j.logger.WithContext(ctx).WithError(err).Error("Reconciliation pass failed")
	}
}

// RunOnce scans every source mapping newest first, re-resolves each record
// as if it were arriving fresh, and records a merge candidate for every
// mapping whose re-resolution lands on a different unified entity.
func (j *Job) RunOnce(ctx context.Context) (*RunSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Job.RunOnce")
	defer span.End()

	metrics.ReconcileRunsTotal.Inc()

	summary := &RunSummary{}
	offset := 0
	for {
		select {
		case <-j.stopCh:
			return summary, nil
		default:
		}

		page, err := j.mappings.ListNewestFirst(ctx, j.config.BatchSize, offset)
		if err != nil {
			return summary, err
		}
		if len(page) == 0 {
			return summary, nil
		}

		for i := range page {
			summary.Scanned++
			if err := j.reconcileMapping(ctx, &page[i], summary); err != nil {
				summary.Failed++
				metrics.ReconcileMappingsTotal.WithLabelValues("failed").Inc()
				j.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
					"tenant_id":     page[i].TenantID,
					"source_system": page[i].SourceSystem,
					"source_id":     page[i].SourceID,
				}).Warn("Failed to reconcile mapping")
			}
		}

		if len(page) < j.config.BatchSize {
			return summary, nil
		}
		offset += len(page)
	}
}

// reconcileMapping re-resolves a single mapping. The mapping's own entry is
// excluded from the pipeline and no writes happen during re-resolution, so
// divergence only ever produces a pending candidate.
func (j *Job) reconcileMapping(ctx context.Context, mapping *models.SourceMapping, summary *RunSummary) error {
	opts := resolver.ResolveOptions{IgnoreExistingMapping: true, DryRun: true}
	raw := mapping.Metadata.Data

	var result *models.ResolveResult
	var err error
	switch mapping.EntityType {
	case models.EntityTypePerson:
		result, err = j.resolutions.ResolvePersonWithOptions(ctx, mapping.TenantID, models.ResolvePersonRequest{
			Name:    raw.Name,
			Email:   raw.Email,
			Context: raw.Context,
		}, opts)
	case models.EntityTypeCompany:
		result, err = j.resolutions.ResolveCompanyWithOptions(ctx, mapping.TenantID, models.ResolveCompanyRequest{
			Name:    raw.Name,
			Domain:  raw.Domain,
			Context: raw.Context,
		}, opts)
	default:
		j.logger.WithContext(ctx).WithFields(map[string]any{"entity_type": mapping.EntityType}).Warn("Skipping mapping with unknown entity type")
		return nil
	}
	if err != nil {
		return err
	}

	if result == nil || result.UnifiedID == mapping.UnifiedID {
		metrics.ReconcileMappingsTotal.WithLabelValues("unchanged").Inc()
		return nil
	}

	candidate := &models.MergeCandidate{
		TenantID:          mapping.TenantID,
		EntityType:        mapping.EntityType,
		SourceSystem:      mapping.SourceSystem,
		SourceID:          mapping.SourceID,
		CurrentUnifiedID:  mapping.UnifiedID,
		ProposedUnifiedID: result.UnifiedID,
		Confidence:        result.Confidence,
	}
	candidate.Detail.Data = models.MergeCandidateDetail{
		Score:       result.Score,
		Outcome:     result.Outcome,
		RawMetadata: raw,
	}

	if err := j.candidates.Record(ctx, candidate); err != nil {
		return err
	}

	summary.Diverged++
	metrics.ReconcileMappingsTotal.WithLabelValues("diverged").Inc()
	metrics.MergeCandidatesTotal.WithLabelValues(mapping.EntityType).Inc()

	j.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":           mapping.TenantID,
		"entity_type":         mapping.EntityType,
		"source_system":       mapping.SourceSystem,
		"source_id":           mapping.SourceID,
		"current_unified_id":  mapping.UnifiedID,
		"proposed_unified_id": result.UnifiedID,
		"outcome":             result.Outcome,
	}).Info("Recorded merge candidate for divergent mapping")

	if j.events != nil {
		if err := j.events.EmitMergeCandidate(ctx, candidate); err != nil {
			j.logger.WithContext(ctx).WithError(err).Warn("Failed to emit merge.candidate event")
		}
	}

	return nil
}
