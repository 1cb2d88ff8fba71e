package ubo

import (
	"context"
	"fmt"
	"sync"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Tolerance for the direct-ownership completeness check.
const sumTolerance = 0.01

// EngineVersion is stamped into resolution metadata for audit trails.
const EngineVersion = "harrier-1.0"

// Resolver wires the loader, cycle detector, path aggregator and
// classifier into one UBO resolution pipeline. Safe for concurrent use:
// the threshold is the only mutable field and is swapped under a lock
// on profile reload, so in-flight resolutions read a consistent value.
// Consistency for concurrent calls on the same root is the edge store's
// read-snapshot concern.
type Resolver struct {
	store    Store
	maxDepth int

	mu        sync.RWMutex
	threshold float64
}

// NewResolver creates a resolver over the given store. Zero values for
// maxDepth and threshold select the defaults (20, 25%).
func NewResolver(store Store, maxDepth int, threshold float64) *Resolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if threshold <= 0 {
		threshold = DefaultUBOThreshold
	}
	return &Resolver{store: store, maxDepth: maxDepth, threshold: threshold}
}

// SetThreshold adjusts the UBO percentage threshold, typically from a
// reloaded risk profile. Resolutions already past classification keep
// the threshold they started with.
func (r *Resolver) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	r.mu.Lock()
	r.threshold = threshold
	r.mu.Unlock()
}

// Threshold returns the active UBO percentage threshold.
func (r *Resolver) Threshold() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.threshold
}

// Resolve runs the full pipeline for rootID and returns the result plus
// the snapshot it was computed from (for metadata and register reuse).
// A root absent from scope degrades to an empty result with a warning;
// data-quality findings (cycles, sum mismatch) are warnings, never errors.
func (r *Resolver) Resolve(ctx context.Context, tenantID, rootID, seniorManagerID string) (*domain.ResolutionResult, *Snapshot, error) {
	snap, err := LoadSubgraph(ctx, r.store, tenantID, rootID, r.maxDepth)
	if err != nil {
		return nil, nil, err
	}
	result := r.ResolveSnapshot(snap, seniorManagerID)
	return result, snap, nil
}

// ResolveSnapshot runs the pipeline over an already-loaded snapshot.
// Pure: identical snapshots produce identical results.
func (r *Resolver) ResolveSnapshot(snap *Snapshot, seniorManagerID string) *domain.ResolutionResult {
	result := &domain.ResolutionResult{
		RootID:             snap.RootID,
		EffectiveOwnership: map[string]float64{},
		Cycles:             [][]string{},
	}

	root := snap.Root()
	if root == nil {
		result.Warnings = append(result.Warnings, "Entity not found")
		return result
	}

	result.Cycles = FindCycles(snap.Edges, snap.PartyIDs())

	pathMap := AggregatePaths(snap, r.maxDepth)
	aggregated := EffectiveOwnership(pathMap)
	for personID, pct := range aggregated {
		result.EffectiveOwnership[personID] = roundPct(pct)
	}

	result.UBOs = Classify(ClassifyInput{
		Aggregated:      aggregated,
		ControlHolders:  ControlHolders(snap),
		Parties:         snap.Parties,
		SeniorManagerID: seniorManagerID,
		Root:            root,
		Threshold:       r.Threshold(),
	})

	if len(result.Cycles) > 0 {
		result.Warnings = append(result.Warnings, "Cycle(s) detected in ownership structure")
	}

	total := DirectOwnershipSum(snap)
	if !withinSumTolerance(total) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Total ownership sums to %.1f%%, not 100%%", total))
	}

	return result
}

// DirectOwnershipSum totals the declared percentages of ownership edges
// terminating at the snapshot root.
func DirectOwnershipSum(snap *Snapshot) float64 {
	var total float64
	for _, e := range snap.Edges {
		if e.OwnedID != snap.RootID || e.Kind != domain.EdgeOwnership {
			continue
		}
		if e.Percentage != nil {
			total += *e.Percentage
		}
	}
	return total
}

func withinSumTolerance(total float64) bool {
	diff := total - 100.0
	if diff < 0 {
		diff = -diff
	}
	return diff <= sumTolerance
}

func roundPct(v float64) float64 {
	return round2(v)
}
