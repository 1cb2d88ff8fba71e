package ubo

import (
	"context"
	"reflect"
	"sync"
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
)

// memStore is an in-memory Store for resolver tests.
type memStore struct {
	parties map[string]*domain.Party
	edges   []*domain.OwnershipEdge
}

func newMemStore() *memStore {
	return &memStore{parties: make(map[string]*domain.Party)}
}

func (m *memStore) company(id string) *memStore {
	m.parties[id] = &domain.Party{ID: id, Kind: domain.PartyCompany, Name: id}
	return m
}

func (m *memStore) individual(id string) *memStore {
	m.parties[id] = &domain.Party{ID: id, Kind: domain.PartyIndividual, Name: id}
	return m
}

func (m *memStore) owns(owner, owned string, percentage float64) *memStore {
	m.edges = append(m.edges, &domain.OwnershipEdge{
		ID: owner + "->" + owned, Kind: domain.EdgeOwnership,
		OwnerID: owner, OwnedID: owned, Percentage: &percentage,
	})
	return m
}

func (m *memStore) controls(owner, owned string, nominee bool) *memStore {
	m.edges = append(m.edges, &domain.OwnershipEdge{
		ID: owner + "=>" + owned, Kind: domain.EdgeControl,
		OwnerID: owner, OwnedID: owned, IsNominee: nominee,
	})
	return m
}

func (m *memStore) edge(e *domain.OwnershipEdge) *memStore {
	m.edges = append(m.edges, e)
	return m
}

func (m *memStore) EdgesTouching(_ context.Context, _ string, partyIDs []string) ([]*domain.OwnershipEdge, error) {
	set := toSet(partyIDs)
	var out []*domain.OwnershipEdge
	for _, e := range m.edges {
		if set[e.OwnerID] || set[e.OwnedID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) EdgesWithin(_ context.Context, _ string, partyIDs []string) ([]*domain.OwnershipEdge, error) {
	set := toSet(partyIDs)
	var out []*domain.OwnershipEdge
	for _, e := range m.edges {
		if set[e.OwnerID] && set[e.OwnedID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) PartiesByID(_ context.Context, _ string, partyIDs []string) (map[string]*domain.Party, error) {
	out := make(map[string]*domain.Party)
	for _, id := range partyIDs {
		if p, ok := m.parties[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func TestLoadSubgraph(t *testing.T) {
	ctx := context.Background()

	t.Run("expands both directions to a fixed point", func(t *testing.T) {
		// person -> holdco -> root, plus a sibling owned by holdco that is
		// only reachable by walking forward from holdco.
		store := newMemStore().
			company("root").company("holdco").company("sibling").individual("person").
			owns("holdco", "root", 100).
			owns("person", "holdco", 100).
			owns("holdco", "sibling", 100)

		snap, err := LoadSubgraph(ctx, store, "t1", "root", 0)
		if err != nil {
			t.Fatalf("LoadSubgraph: %v", err)
		}
		want := []string{"holdco", "person", "root", "sibling"}
		if got := snap.PartyIDs(); !reflect.DeepEqual(got, want) {
			t.Errorf("party ids = %v, want %v", got, want)
		}
		if len(snap.Edges) != 3 {
			t.Errorf("edges = %d, want 3", len(snap.Edges))
		}
	})

	t.Run("excludes employee and family edges", func(t *testing.T) {
		store := newMemStore().
			company("root").individual("owner").individual("staff").
			owns("owner", "root", 100).
			edge(&domain.OwnershipEdge{ID: "e1", Kind: domain.EdgeEmployee, OwnerID: "staff", OwnedID: "root"})

		snap, err := LoadSubgraph(ctx, store, "t1", "root", 0)
		if err != nil {
			t.Fatalf("LoadSubgraph: %v", err)
		}
		if _, ok := snap.Parties["staff"]; ok {
			t.Error("employee edge pulled its holder into the snapshot")
		}
		if len(snap.Edges) != 1 {
			t.Errorf("edges = %d, want 1", len(snap.Edges))
		}
	})

	t.Run("missing root yields empty snapshot", func(t *testing.T) {
		snap, err := LoadSubgraph(ctx, newMemStore(), "t1", "ghost", 0)
		if err != nil {
			t.Fatalf("LoadSubgraph: %v", err)
		}
		if snap.Root() != nil {
			t.Error("expected nil root party")
		}
	})

	t.Run("depth bound terminates on long chains", func(t *testing.T) {
		store := newMemStore().company(nodeName(0))
		for i := 0; i < 30; i++ {
			from := nodeName(i + 1)
			to := nodeName(i)
			store.company(from).owns(from, to, 100)
		}
		snap, err := LoadSubgraph(ctx, store, "t1", nodeName(0), 5)
		if err != nil {
			t.Fatalf("LoadSubgraph: %v", err)
		}
		if got := len(snap.Parties); got > 7 {
			t.Errorf("depth 5 expansion loaded %d parties", got)
		}
	})
}

func nodeName(i int) string {
	return string(rune('a'+i/26)) + string(rune('a'+i%26))
}

func TestFindCycles(t *testing.T) {
	t.Run("reports a two-node cycle", func(t *testing.T) {
		store := newMemStore().
			company("a").company("b").
			owns("a", "b", 50).
			owns("b", "a", 50)

		cycles := FindCycles(store.edges, []string{"a", "b"})
		if len(cycles) == 0 {
			t.Fatal("expected at least one cycle")
		}
		if got := cycles[0]; !reflect.DeepEqual(got, []string{"a", "b", "a"}) {
			t.Errorf("first cycle = %v, want [a b a]", got)
		}
	})

	t.Run("diamond is not a cycle", func(t *testing.T) {
		store := newMemStore().
			owns("top", "left", 50).
			owns("top", "right", 50).
			owns("left", "bottom", 50).
			owns("right", "bottom", 50)

		cycles := FindCycles(store.edges, []string{"top", "left", "right", "bottom"})
		if len(cycles) != 0 {
			t.Errorf("diamond reported cycles: %v", cycles)
		}
	})

	t.Run("deterministic across runs", func(t *testing.T) {
		store := newMemStore().
			owns("a", "b", 10).owns("b", "c", 10).owns("c", "a", 10).
			owns("x", "y", 10).owns("y", "x", 10)
		ids := []string{"a", "b", "c", "x", "y"}

		first := FindCycles(store.edges, ids)
		for i := 0; i < 5; i++ {
			if got := FindCycles(store.edges, ids); !reflect.DeepEqual(got, first) {
				t.Fatalf("run %d differs: %v vs %v", i, got, first)
			}
		}
	})
}

func TestAggregatePaths(t *testing.T) {
	t.Run("chain compounds percentages", func(t *testing.T) {
		// person owns 60% of holdco, holdco owns 50% of root: 30% effective.
		store := newMemStore().
			company("root").company("holdco").individual("person").
			owns("holdco", "root", 50).
			owns("person", "holdco", 60)

		snap := mustSnapshot(t, store, "root")
		agg := EffectiveOwnership(AggregatePaths(snap, 0))
		if got := agg["person"]; got != 30.0 {
			t.Errorf("effective ownership = %v, want 30", got)
		}
	})

	t.Run("parallel paths sum and totals are conserved", func(t *testing.T) {
		// person holds 100% through two 50% intermediaries.
		store := newMemStore().
			company("root").company("h1").company("h2").individual("person").
			owns("h1", "root", 50).
			owns("h2", "root", 50).
			owns("person", "h1", 100).
			owns("person", "h2", 100)

		snap := mustSnapshot(t, store, "root")
		paths := AggregatePaths(snap, 0)
		if got := len(paths["person"]); got != 2 {
			t.Errorf("paths = %d, want 2", got)
		}
		if got := EffectiveOwnership(paths)["person"]; got != 100.0 {
			t.Errorf("effective ownership = %v, want 100", got)
		}
	})

	t.Run("control edge without voting percentage counts as 100", func(t *testing.T) {
		store := newMemStore().
			company("root").company("holdco").individual("person").
			controls("holdco", "root", false).
			owns("person", "holdco", 40)

		snap := mustSnapshot(t, store, "root")
		agg := EffectiveOwnership(AggregatePaths(snap, 0))
		if got := agg["person"]; got != 40.0 {
			t.Errorf("effective ownership = %v, want 40", got)
		}
	})

	t.Run("intermediate individuals recorded at every level", func(t *testing.T) {
		// mid is an individual who in turn is 50% owned upstream by top.
		store := newMemStore().
			company("root").individual("mid").individual("top").
			owns("mid", "root", 80).
			owns("top", "mid", 50)

		snap := mustSnapshot(t, store, "root")
		agg := EffectiveOwnership(AggregatePaths(snap, 0))
		if got := agg["mid"]; got != 80.0 {
			t.Errorf("mid = %v, want 80", got)
		}
		if got := agg["top"]; got != 40.0 {
			t.Errorf("top = %v, want 40", got)
		}
	})

	t.Run("cycle stops the walk without inflating totals", func(t *testing.T) {
		store := newMemStore().
			company("root").company("loop").individual("person").
			owns("loop", "root", 100).
			owns("root", "loop", 100). // back edge
			owns("person", "loop", 100)

		snap := mustSnapshot(t, store, "root")
		agg := EffectiveOwnership(AggregatePaths(snap, 0))
		if got := agg["person"]; got != 100.0 {
			t.Errorf("effective ownership = %v, want 100", got)
		}
	})
}

func mustSnapshot(t *testing.T, store *memStore, rootID string) *Snapshot {
	t.Helper()
	snap, err := LoadSubgraph(context.Background(), store, "t1", rootID, 0)
	if err != nil {
		t.Fatalf("LoadSubgraph: %v", err)
	}
	return snap
}

func TestClassify(t *testing.T) {
	root := &domain.Party{ID: "root", Kind: domain.PartyCompany, Name: "Root Ltd"}
	people := map[string]*domain.Party{
		"root":  root,
		"alice": {ID: "alice", Kind: domain.PartyIndividual, Name: "Alice"},
		"bob":   {ID: "bob", Kind: domain.PartyIndividual, Name: "Bob"},
	}

	t.Run("threshold boundary is inclusive", func(t *testing.T) {
		ubos := Classify(ClassifyInput{
			Aggregated: map[string]float64{"alice": 25.00, "bob": 24.99},
			Parties:    people, Root: root,
		})
		if len(ubos) != 1 || ubos[0].PartyID != "alice" {
			t.Fatalf("ubos = %+v, want exactly alice", ubos)
		}
		if !ubos[0].ByOwnership || ubos[0].ByControl {
			t.Errorf("alice flags = %+v, want ownership only", ubos[0])
		}
	})

	t.Run("control qualifies below threshold", func(t *testing.T) {
		ubos := Classify(ClassifyInput{
			Aggregated:     map[string]float64{"bob": 5.0},
			ControlHolders: map[string]bool{"bob": true},
			Parties:        people, Root: root,
		})
		if len(ubos) != 1 || !ubos[0].ByControl || ubos[0].ByOwnership {
			t.Fatalf("ubos = %+v, want bob by control only", ubos)
		}
		if ubos[0].EffectivePct != 5.0 {
			t.Errorf("pct = %v, want 5", ubos[0].EffectivePct)
		}
	})

	t.Run("nominee control edges are excluded", func(t *testing.T) {
		store := newMemStore().
			company("root").individual("bob").
			controls("bob", "root", true)
		snap := mustSnapshot(t, store, "root")
		if holders := ControlHolders(snap); len(holders) != 0 {
			t.Errorf("nominee holder classified: %v", holders)
		}
	})

	t.Run("senior manager fallback produces exactly one entry", func(t *testing.T) {
		ubos := Classify(ClassifyInput{
			Aggregated:      map[string]float64{"alice": 10, "bob": 10},
			Parties:         people,
			SeniorManagerID: "bob",
			Root:            root,
		})
		if len(ubos) != 1 {
			t.Fatalf("ubos = %+v, want exactly one fallback entry", ubos)
		}
		got := ubos[0]
		if got.PartyID != "bob" || !got.SeniorManagerFallback || got.EffectivePct != 0 {
			t.Errorf("fallback = %+v", got)
		}
	})

	t.Run("explicit senior manager wins over stored field", func(t *testing.T) {
		rootWithSM := &domain.Party{ID: "root", Kind: domain.PartyCompany, SeniorManagerID: "alice"}
		ubos := Classify(ClassifyInput{
			Parties:         people,
			SeniorManagerID: "bob",
			Root:            rootWithSM,
		})
		if len(ubos) != 1 || ubos[0].PartyID != "bob" {
			t.Fatalf("ubos = %+v, want bob", ubos)
		}
	})

	t.Run("corporate senior manager is rejected", func(t *testing.T) {
		parties := map[string]*domain.Party{
			"corp": {ID: "corp", Kind: domain.PartyCompany},
		}
		ubos := Classify(ClassifyInput{Parties: parties, SeniorManagerID: "corp", Root: root})
		if len(ubos) != 0 {
			t.Errorf("ubos = %+v, want none", ubos)
		}
	})
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("layered structure resolves through intermediaries", func(t *testing.T) {
		store := newMemStore().
			company("root").company("holdco").individual("alice").individual("bob").
			owns("holdco", "root", 50).
			owns("bob", "root", 50).
			owns("alice", "holdco", 60)

		res, snap, err := NewResolver(store, 0, 0).Resolve(ctx, "t1", "root", "")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got := res.EffectiveOwnership["alice"]; got != 30.0 {
			t.Errorf("alice = %v, want 30", got)
		}
		if got := res.EffectiveOwnership["bob"]; got != 50.0 {
			t.Errorf("bob = %v, want 50", got)
		}
		// alice's 30% is above threshold; bob's 50% direct likewise.
		if len(res.UBOs) != 2 {
			t.Fatalf("ubos = %+v, want 2", res.UBOs)
		}
		if len(res.Warnings) != 0 {
			t.Errorf("warnings = %v, want none", res.Warnings)
		}
		if snap == nil || len(snap.Parties) != 4 {
			t.Errorf("snapshot parties = %v", snap)
		}
	})

	t.Run("cycle and sum mismatch surface as warnings", func(t *testing.T) {
		store := newMemStore().
			company("root").company("loop").individual("alice").
			owns("loop", "root", 60). // only 60% declared at root
			owns("root", "loop", 100).
			owns("alice", "loop", 100)

		res, _, err := NewResolver(store, 0, 0).Resolve(ctx, "t1", "root", "")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if len(res.Cycles) == 0 {
			t.Error("expected cycles in result")
		}
		if !hasWarning(res.Warnings, "Cycle(s) detected in ownership structure") {
			t.Errorf("warnings = %v, missing cycle warning", res.Warnings)
		}
		if !hasWarning(res.Warnings, "Total ownership sums to 60.0%, not 100%") {
			t.Errorf("warnings = %v, missing sum warning", res.Warnings)
		}
	})

	t.Run("missing root degrades to a warning", func(t *testing.T) {
		res, _, err := NewResolver(newMemStore(), 0, 0).Resolve(ctx, "t1", "ghost", "")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if len(res.UBOs) != 0 || len(res.Warnings) != 1 {
			t.Errorf("result = %+v, want empty with one warning", res)
		}
	})

	t.Run("idempotent for identical data", func(t *testing.T) {
		store := newMemStore().
			company("root").company("h1").company("h2").
			individual("alice").individual("bob").
			owns("h1", "root", 40).
			owns("h2", "root", 60).
			owns("alice", "h1", 100).
			owns("alice", "h2", 50).
			owns("bob", "h2", 50)

		r := NewResolver(store, 0, 0)
		first, _, err := r.Resolve(ctx, "t1", "root", "")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		for i := 0; i < 3; i++ {
			again, _, err := r.Resolve(ctx, "t1", "root", "")
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if !reflect.DeepEqual(again, first) {
				t.Fatalf("run %d differs:\n%+v\n%+v", i, again, first)
			}
		}
	})
}

func TestSetThreshold(t *testing.T) {
	store := newMemStore().
		company("root").individual("alice").individual("bob").
		owns("alice", "root", 90).
		owns("bob", "root", 10)

	t.Run("lowered threshold reclassifies", func(t *testing.T) {
		r := NewResolver(store, 0, 0)
		snap := mustSnapshot(t, store, "root")

		if got := len(r.ResolveSnapshot(snap, "").UBOs); got != 1 {
			t.Fatalf("ubos at default threshold = %d, want 1", got)
		}
		r.SetThreshold(10)
		if got := len(r.ResolveSnapshot(snap, "").UBOs); got != 2 {
			t.Errorf("ubos at threshold 10 = %d, want 2", got)
		}
	})

	t.Run("non-positive values are ignored", func(t *testing.T) {
		r := NewResolver(store, 0, 40)
		r.SetThreshold(0)
		r.SetThreshold(-5)
		if got := r.Threshold(); got != 40 {
			t.Errorf("threshold = %v, want 40", got)
		}
	})

	// Profile reloads land on a live server while resolutions are in
	// flight; run both sides hard so the race detector can see an
	// unguarded threshold.
	t.Run("safe under concurrent reload", func(t *testing.T) {
		r := NewResolver(store, 0, 0)
		snap := mustSnapshot(t, store, "root")

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					r.SetThreshold(float64(5 + i%50))
				}
			}()
			go func() {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					res := r.ResolveSnapshot(snap, "")
					if n := len(res.UBOs); n < 1 || n > 2 {
						t.Errorf("ubos = %d, want 1 or 2", n)
						return
					}
				}
			}()
		}
		wg.Wait()
	})
}

func hasWarning(warnings []string, want string) bool {
	for _, w := range warnings {
		if w == want {
			return true
		}
	}
	return false
}
