// Package validate checks the structural soundness of an ownership graph
// around a root entity: completeness of declared ownership, cycles, and
// corporate shareholders whose own chains never resolve to a person.
package validate

import (
	"context"
	"fmt"
	"math"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/ubo"
)

// sumTolerance is the accepted deviation from 100% for the direct
// ownership completeness check.
const sumTolerance = 0.01

// Validator runs structure checks over the same subgraph the resolver
// operates on. The dead-end check re-resolves each corporate shareholder
// through the full pipeline, so the validator needs the store, not just
// a snapshot.
type Validator struct {
	store    ubo.Store
	resolver *ubo.Resolver
	maxDepth int
}

// New creates a validator sharing the resolver's store and depth bound.
func New(store ubo.Store, resolver *ubo.Resolver, maxDepth int) *Validator {
	if maxDepth <= 0 {
		maxDepth = ubo.DefaultMaxDepth
	}
	return &Validator{store: store, resolver: resolver, maxDepth: maxDepth}
}

// Validate loads the subgraph around rootID and reports ownership-sum
// completeness, cycles, and dead-end corporate shareholders. Data
// problems become warnings and structured fields; the only error path is
// the store itself failing.
func (v *Validator) Validate(ctx context.Context, tenantID, rootID string) (*domain.ValidationResult, error) {
	snap, err := ubo.LoadSubgraph(ctx, v.store, tenantID, rootID, v.maxDepth)
	if err != nil {
		return nil, err
	}

	result := &domain.ValidationResult{
		RootID:   rootID,
		DeadEnds: []domain.DeadEnd{},
		Cycles:   [][]string{},
	}

	if snap.Root() == nil {
		result.Warnings = append(result.Warnings, "Entity not found")
		return result, nil
	}

	total := ubo.DirectOwnershipSum(snap)
	result.TotalPercentage = round2(total)
	result.OwnershipSumValid = math.Abs(total-100.0) < sumTolerance
	if !result.OwnershipSumValid {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Total ownership is %.1f%%, not 100%%", total))
	}

	result.Cycles = ubo.FindCycles(snap.Edges, snap.PartyIDs())
	if len(result.Cycles) > 0 {
		result.Warnings = append(result.Warnings, "Cycle(s) detected in ownership structure")
	}

	deadEnds, err := v.findDeadEnds(ctx, tenantID, snap)
	if err != nil {
		return nil, err
	}
	result.DeadEnds = deadEnds

	return result, nil
}

// findDeadEnds re-resolves every corporate shareholder in the subgraph.
// A company holding shares in something whose own resolution yields no
// UBOs is a dead end: the chain above it terminates without reaching a
// natural person.
func (v *Validator) findDeadEnds(ctx context.Context, tenantID string, snap *ubo.Snapshot) ([]domain.DeadEnd, error) {
	shareholders := make(map[string]bool)
	for _, e := range snap.Edges {
		if e.Kind == domain.EdgeOwnership {
			shareholders[e.OwnerID] = true
		}
	}

	deadEnds := []domain.DeadEnd{}
	for _, id := range snap.PartyIDs() {
		p := snap.Parties[id]
		if p == nil || p.IsIndividual() || id == snap.RootID {
			continue
		}
		if !shareholders[id] {
			continue
		}
		res, _, err := v.resolver.Resolve(ctx, tenantID, id, "")
		if err != nil {
			return nil, err
		}
		if len(res.UBOs) == 0 {
			deadEnds = append(deadEnds, domain.DeadEnd{PartyID: id, Name: p.Name})
		}
	}
	return deadEnds, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
