package ubo

import (
	"sort"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
)

// weightedOwner is one reverse-adjacency entry: who owns a node, with
// the percentage weight the edge contributes to a backward walk.
type weightedOwner struct {
	ownerID string
	pct     float64
}

// AggregatePaths computes, for every individual reachable as an
// ultimate upstream owner of the snapshot root, the distinct paths from
// that individual to the root and the compounded effective percentage of
// each path. The walk goes backward from the root through ownership and
// control edges (control without a voting percentage counts as 100%),
// multiplying fractional weights along the way. A branch is abandoned
// once its compounded weight reaches zero or it revisits a node already
// on the path; this local cycle guard only stops the walk and is
// independent of FindCycles' reporting. Reaching an individual records
// the path and keeps expanding, so persons owned further upstream by
// other persons are captured at every level. Identical paths reachable
// via different traversal orders are deduplicated on the full ordered
// node sequence.
func AggregatePaths(snap *Snapshot, maxDepth int) map[string][]domain.OwnershipPath {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	incoming := make(map[string][]weightedOwner)
	for _, e := range snap.Edges {
		pct, ok := e.TraversalWeight()
		if !ok {
			continue
		}
		incoming[e.OwnedID] = append(incoming[e.OwnedID], weightedOwner{ownerID: e.OwnerID, pct: pct})
	}
	for _, owners := range incoming {
		sort.Slice(owners, func(i, j int) bool { return owners[i].ownerID < owners[j].ownerID })
	}

	result := make(map[string][]domain.OwnershipPath)
	visitedPaths := make(map[string]bool)

	var walk func(nodeID string, path []string, product float64, depth int)
	walk = func(nodeID string, path []string, product float64, depth int) {
		if depth > maxDepth || product <= 0 {
			return
		}

		full := append(append([]string(nil), path...), nodeID)
		key := strings.Join(full, "\x00")
		if visitedPaths[key] {
			return
		}
		visitedPaths[key] = true

		if p := snap.Parties[nodeID]; p != nil && p.IsIndividual() {
			result[nodeID] = append(result[nodeID], domain.OwnershipPath{
				Nodes: full,
				Pct:   product,
			})
		}

		for _, owner := range incoming[nodeID] {
			if containsID(full, owner.ownerID) {
				continue // cycle, skip this branch
			}
			walk(owner.ownerID, full, product*(owner.pct/100.0), depth+1)
		}
	}

	walk(snap.RootID, nil, 100.0, 0)
	return result
}

// EffectiveOwnership aggregates the path map per individual: the sum of
// the compounded percentages of all distinct paths to that person.
func EffectiveOwnership(pathMap map[string][]domain.OwnershipPath) map[string]float64 {
	agg := make(map[string]float64, len(pathMap))
	for personID, paths := range pathMap {
		for _, p := range paths {
			agg[personID] += p.Pct
		}
	}
	return agg
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
