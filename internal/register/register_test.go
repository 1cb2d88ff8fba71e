package register

import (
	"context"
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/ubo"
)

type graphStore struct {
	parties map[string]*domain.Party
	edges   []*domain.OwnershipEdge
}

func (g *graphStore) EdgesTouching(_ context.Context, _ string, ids []string) ([]*domain.OwnershipEdge, error) {
	set := idSet(ids)
	var out []*domain.OwnershipEdge
	for _, e := range g.edges {
		if set[e.OwnerID] || set[e.OwnedID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (g *graphStore) EdgesWithin(_ context.Context, _ string, ids []string) ([]*domain.OwnershipEdge, error) {
	set := idSet(ids)
	var out []*domain.OwnershipEdge
	for _, e := range g.edges {
		if set[e.OwnerID] && set[e.OwnedID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (g *graphStore) PartiesByID(_ context.Context, _ string, ids []string) (map[string]*domain.Party, error) {
	out := make(map[string]*domain.Party)
	for _, id := range ids {
		if p, ok := g.parties[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func buildStore() *graphStore {
	pct60, pct40 := 60.0, 40.0
	return &graphStore{
		parties: map[string]*domain.Party{
			"root":  {ID: "root", Kind: domain.PartyCompany, Name: "Root Trading LLC"},
			"hold":  {ID: "hold", Kind: domain.PartyCompany, Name: "Hold Co", Country: "AE"},
			"alice": {ID: "alice", Kind: domain.PartyIndividual, Name: "Alice", Country: "GB"},
			"dara":  {ID: "dara", Kind: domain.PartyIndividual, Name: "Dara", Country: "IE"},
		},
		edges: []*domain.OwnershipEdge{
			{ID: "e1", Kind: domain.EdgeOwnership, OwnerID: "hold", OwnedID: "root", Percentage: &pct60},
			{ID: "e2", Kind: domain.EdgeOwnership, OwnerID: "alice", OwnedID: "root", Percentage: &pct40},
			{ID: "e3", Kind: domain.EdgeOwnership, OwnerID: "alice", OwnedID: "hold", Percentage: &pct60},
			{ID: "e4", Kind: domain.EdgeDirector, OwnerID: "dara", OwnedID: "root", IsNominee: true},
		},
	}
}

func TestBuild(t *testing.T) {
	ctx := context.Background()
	store := buildStore()
	builder := NewBuilder(ubo.NewResolver(store, 0, 0))

	reg, err := builder.Build(ctx, "t1", "root")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	t.Run("ubo rows carry nationality and basis", func(t *testing.T) {
		if len(reg.UBOs) != 1 {
			t.Fatalf("ubos = %+v, want alice only", reg.UBOs)
		}
		row := reg.UBOs[0]
		// 40% direct + 60% of 60% = 76%
		if row.PartyID != "alice" || row.EffectivePct != 76.0 || row.Nationality != "GB" {
			t.Errorf("ubo row = %+v", row)
		}
		if !row.ByOwnership || row.ByControl || row.SeniorManagerFallback {
			t.Errorf("basis flags = %+v", row)
		}
	})

	t.Run("partners are direct shareholders sorted by id", func(t *testing.T) {
		if len(reg.Partners) != 2 {
			t.Fatalf("partners = %+v", reg.Partners)
		}
		if reg.Partners[0].PartyID != "alice" || reg.Partners[1].PartyID != "hold" {
			t.Errorf("partner order = %+v", reg.Partners)
		}
		if reg.Partners[1].Kind != domain.PartyCompany || reg.Partners[1].Percentage != 60.0 {
			t.Errorf("hold row = %+v", reg.Partners[1])
		}
	})

	t.Run("director rows keep the nominee flag", func(t *testing.T) {
		if len(reg.Directors) != 1 || reg.Directors[0].PartyID != "dara" || !reg.Directors[0].IsNominee {
			t.Errorf("directors = %+v", reg.Directors)
		}
	})

	t.Run("root name resolved", func(t *testing.T) {
		if reg.RootName != "Root Trading LLC" {
			t.Errorf("root name = %q", reg.RootName)
		}
	})
}

func TestVersionHash(t *testing.T) {
	ctx := context.Background()

	t.Run("stable across identical snapshots", func(t *testing.T) {
		builder := NewBuilder(ubo.NewResolver(buildStore(), 0, 0))
		first, err := builder.Build(ctx, "t1", "root")
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		again, err := builder.Build(ctx, "t1", "root")
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if first.VersionHash != again.VersionHash {
			t.Errorf("hash changed without data change: %s vs %s", first.VersionHash, again.VersionHash)
		}
		if len(first.VersionHash) != 16 {
			t.Errorf("hash length = %d, want 16", len(first.VersionHash))
		}
	})

	t.Run("changes when a row changes", func(t *testing.T) {
		store := buildStore()
		builder := NewBuilder(ubo.NewResolver(store, 0, 0))
		before, err := builder.Build(ctx, "t1", "root")
		if err != nil {
			t.Fatalf("Build: %v", err)
		}

		store.parties["alice"].Name = "Alice B"
		after, err := builder.Build(ctx, "t1", "root")
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if before.VersionHash == after.VersionHash {
			t.Error("hash did not change after row change")
		}
	})
}
