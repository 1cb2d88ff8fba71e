package ubo

import (
	"sort"

	"github.com/opensource-finance/harrier/internal/domain"
)

// FindCycles returns every ownership cycle in the edge set as an ordered
// party-ID list closing back to its start. The walk runs a DFS from
// every party, maintaining the current path as an explicit stack plus a
// position map; an edge into a node already on the path records the
// sub-path from that node's position to the current node as one cycle.
// Nodes leave the path-membership set on backtrack, so a node reachable
// via two distinct non-cyclic paths never produces a false report, and
// disjoint cycles are all found. Output order is stable for a fixed edge
// set because both the party iteration and the adjacency lists are
// sorted.
func FindCycles(edges []*domain.OwnershipEdge, partyIDs []string) [][]string {
	out := make(map[string][]string)
	for _, e := range edges {
		out[e.OwnerID] = append(out[e.OwnerID], e.OwnedID)
	}
	for _, targets := range out {
		sort.Strings(targets)
	}

	starts := append([]string(nil), partyIDs...)
	sort.Strings(starts)

	var cycles [][]string
	var path []string
	inPath := make(map[string]int)
	onPath := make(map[string]bool)

	var dfs func(id string)
	dfs = func(id string) {
		if pos, ok := inPath[id]; ok {
			cycle := append([]string(nil), path[pos:]...)
			cycle = append(cycle, id)
			if len(cycle) > 1 {
				cycles = append(cycles, cycle)
			}
			return
		}
		if onPath[id] {
			return
		}
		onPath[id] = true
		inPath[id] = len(path)
		path = append(path, id)
		for _, to := range out[id] {
			dfs(to)
		}
		path = path[:len(path)-1]
		delete(inPath, id)
		delete(onPath, id)
	}

	for _, id := range starts {
		if !onPath[id] {
			dfs(id)
		}
	}
	return cycles
}
