package ubo

import (
	"context"
	"sort"

	"github.com/opensource-finance/harrier/internal/domain"
)

// LoadSubgraph expands the subgraph reachable from rootID by following
// relationship edges in either direction (an owner is reachable from its
// owned entity and vice versa), bounded by maxDepth rounds and by a
// fixed point on the party-ID set. Employee and family edges never enter
// the snapshot. A root with no edges yields a snapshot containing just
// the root party; a root absent from scope yields an empty party map,
// which callers surface as a warning rather than an error.
func LoadSubgraph(ctx context.Context, store Store, tenantID, rootID string, maxDepth int) (*Snapshot, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	ids := map[string]bool{rootID: true}

	for depth := 0; depth < maxDepth; depth++ {
		edges, err := store.EdgesTouching(ctx, tenantID, sortedKeys(ids))
		if err != nil {
			return nil, err
		}

		prev := len(ids)
		for _, e := range edges {
			if !e.Kind.ParticipatesInOwnership() {
				continue
			}
			ids[e.OwnerID] = true
			ids[e.OwnedID] = true
		}

		// Fixed point: stop once a round adds nothing new.
		if len(ids) == prev {
			break
		}
	}

	idList := sortedKeys(ids)

	edges, err := store.EdgesWithin(ctx, tenantID, idList)
	if err != nil {
		return nil, err
	}

	kept := make([]*domain.OwnershipEdge, 0, len(edges))
	for _, e := range edges {
		if e.Kind.ParticipatesInOwnership() {
			kept = append(kept, e)
		}
	}

	parties, err := store.PartiesByID(ctx, tenantID, idList)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		RootID:  rootID,
		Edges:   kept,
		Parties: parties,
	}, nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
