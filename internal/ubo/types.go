// Package ubo implements beneficial-ownership resolution: subgraph
// loading, cycle detection, ownership path aggregation and UBO
// classification. All components are pure functions over an in-memory
// snapshot; the package holds no state between calls.
package ubo

import (
	"context"
	"sort"

	"github.com/opensource-finance/harrier/internal/domain"
)

// DefaultMaxDepth bounds the loader expansion and the ownership walk.
// The depth cap doubles as the termination guarantee on cyclic or very
// deep graphs; traversal silently stops expanding past it.
const DefaultMaxDepth = 20

// DefaultUBOThreshold is the effective-ownership percentage at or above
// which an individual is classified as a UBO. Tunable per jurisdiction
// through the risk profile.
const DefaultUBOThreshold = 25.0

// Store is the narrow read contract the resolution core requires from
// the relationship/party repository. domain.Repository satisfies it.
type Store interface {
	// EdgesTouching returns edges with either endpoint in the given set.
	EdgesTouching(ctx context.Context, tenantID string, partyIDs []string) ([]*domain.OwnershipEdge, error)

	// EdgesWithin returns edges with both endpoints in the given set.
	EdgesWithin(ctx context.Context, tenantID string, partyIDs []string) ([]*domain.OwnershipEdge, error)

	// PartiesByID returns the party records for the given identifiers.
	PartiesByID(ctx context.Context, tenantID string, partyIDs []string) (map[string]*domain.Party, error)
}

// Snapshot is the in-memory subgraph one resolution request operates on.
// It is constructed by the loader, consumed read-only by every other
// component, and discarded when the request completes.
type Snapshot struct {
	RootID  string
	Edges   []*domain.OwnershipEdge
	Parties map[string]*domain.Party
}

// PartyIDs returns the snapshot's party identifiers in sorted order, so
// traversals that iterate parties produce stable output.
func (s *Snapshot) PartyIDs() []string {
	ids := make([]string, 0, len(s.Parties))
	for id := range s.Parties {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Root returns the root party record, or nil when the root does not
// exist in the loaded scope.
func (s *Snapshot) Root() *domain.Party {
	return s.Parties[s.RootID]
}
