package risk

import (
	"context"

	"github.com/opensource-finance/harrier/internal/domain"
)

// DefaultComplexityDepth bounds the complexity traversal when no bound
// is configured. Intentionally tighter than the resolution loader's
// bound: past this depth the score is saturated anyway.
const DefaultComplexityDepth = 15

// EdgeSource provides the per-party edge lookup the complexity
// traversal needs. domain.Repository satisfies it.
type EdgeSource interface {
	// EdgesFor returns all edges where the party is either endpoint.
	EdgesFor(ctx context.Context, tenantID, partyID string) ([]*domain.OwnershipEdge, error)
}

// ComplexityScore measures the depth and breadth of the ownership
// structure around a party. It walks outward in both directions with an
// explicit stack and a seen set, counting the maximum depth reached and
// the total edges touched, then maps the two counters onto 0-100:
//
//	min(95, 20 + 15*maxDepth + min(40, 2*totalEdges))
//
// An isolated party scores the floor of 20. The traversal is iterative,
// so cyclic structures terminate through the seen set and depth bound.
// A non-positive depthBound selects DefaultComplexityDepth.
func ComplexityScore(ctx context.Context, src EdgeSource, tenantID, partyID string, depthBound int) (float64, error) {
	if depthBound <= 0 {
		depthBound = DefaultComplexityDepth
	}

	type frame struct {
		id    string
		depth int
	}

	stack := []frame{{id: partyID}}
	seen := map[string]bool{partyID: true}
	maxDepth := 0
	totalEdges := 0

	for rounds := 0; len(stack) > 0 && rounds < depthBound; rounds++ {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.depth > maxDepth {
			maxDepth = f.depth
		}

		edges, err := src.EdgesFor(ctx, tenantID, f.id)
		if err != nil {
			return 0, err
		}
		totalEdges += len(edges)

		for _, e := range edges {
			next := e.OwnedID
			if next == f.id {
				next = e.OwnerID
			}
			if seen[next] {
				continue
			}
			seen[next] = true
			stack = append(stack, frame{id: next, depth: f.depth + 1})
		}
	}

	score := 20.0 + 15.0*float64(maxDepth) + minF(40.0, 2.0*float64(totalEdges))
	return minF(95.0, score), nil
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
