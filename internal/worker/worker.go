// Package worker provides async resolution processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/ubo"
)

// Worker processes resolution requests asynchronously from the EventBus.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	cache    domain.Cache
	resolver *ubo.Resolver

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// WorkerCount is the number of concurrent workers per tenant
	WorkerCount int

	// ResolutionTTL bounds how long completed resolutions stay cached.
	ResolutionTTL time.Duration
}

// NewWorker creates a new async worker. repo and cache may be nil; the
// worker then only publishes results.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, resolver *ubo.Resolver) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		cache:    cache,
		resolver: resolver,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing resolution requests for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if cfg.ResolutionTTL <= 0 {
		cfg.ResolutionTTL = 5 * time.Minute
	}

	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker(cfg)
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID, cfg); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker(cfg Config) error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicResolutionRequested, func(ctx context.Context, msg *domain.Message) error {
		return w.processResolution(ctx, msg.TenantID, msg, cfg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string, cfg Config) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicResolutionRequested, func(ctx context.Context, msg *domain.Message) error {
		return w.processResolution(ctx, tenantID, msg, cfg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicResolutionRequested,
	)

	return nil
}

// ResolutionMessage is the message payload for a resolution request.
type ResolutionMessage struct {
	RootID          string `json:"rootId"`
	TenantID        string `json:"tenantId"`
	TraceID         string `json:"traceId"`
	SeniorManagerID string `json:"seniorManagerId,omitempty"`
}

// processResolution runs the resolution pipeline for a requested root.
func (w *Worker) processResolution(ctx context.Context, tenantID string, msg *domain.Message, cfg Config) error {
	start := time.Now()

	var req ResolutionMessage
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse resolution message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if req.TenantID != "" {
		tenantID = req.TenantID
	}

	traceID := req.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing resolution",
		"root_id", req.RootID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	// 1. Run the resolution pipeline
	result, snap, err := w.resolver.Resolve(ctx, tenantID, req.RootID, req.SeniorManagerID)
	if err != nil {
		slog.Error("resolution failed",
			"root_id", req.RootID,
			"error", err,
		)
		return err
	}

	resolution := &domain.Resolution{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		RootID:    req.RootID,
		Result:    *result,
		Timestamp: time.Now().UTC(),
		Metadata: domain.ResolutionMetadata{
			TraceID:       traceID,
			PartiesLoaded: len(snap.Parties),
			EdgesLoaded:   len(snap.Edges),
			ResolveMs:     time.Since(start).Milliseconds(),
			EngineVersion: ubo.EngineVersion,
		},
	}

	// 2. Persist the snapshot
	if w.repo != nil {
		if err := w.repo.SaveResolution(ctx, tenantID, resolution); err != nil {
			slog.Error("failed to save resolution",
				"root_id", req.RootID,
				"error", err,
			)
		}
	}

	// 3. Refresh the cache so synchronous readers see the new result
	if w.cache != nil {
		if err := w.cache.SetResolution(ctx, tenantID, req.RootID, result, cfg.ResolutionTTL); err != nil {
			slog.Warn("failed to cache resolution",
				"root_id", req.RootID,
				"error", err,
			)
		}
	}

	// 4. Publish result to the completed topic
	resultPayload, _ := json.Marshal(resolution)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicResolutionCompleted, resultPayload); err != nil {
		slog.Error("failed to publish resolution",
			"root_id", req.RootID,
			"error", err,
		)
	}

	slog.Info("resolution processed",
		"root_id", req.RootID,
		"tenant_id", tenantID,
		"ubo_count", len(result.UBOs),
		"warning_count", len(result.Warnings),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
