package validate

import (
	"context"
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/ubo"
)

type fakeStore struct {
	parties map[string]*domain.Party
	edges   []*domain.OwnershipEdge
}

func (f *fakeStore) EdgesTouching(_ context.Context, _ string, ids []string) ([]*domain.OwnershipEdge, error) {
	set := makeSet(ids)
	var out []*domain.OwnershipEdge
	for _, e := range f.edges {
		if set[e.OwnerID] || set[e.OwnedID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) EdgesWithin(_ context.Context, _ string, ids []string) ([]*domain.OwnershipEdge, error) {
	set := makeSet(ids)
	var out []*domain.OwnershipEdge
	for _, e := range f.edges {
		if set[e.OwnerID] && set[e.OwnedID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) PartiesByID(_ context.Context, _ string, ids []string) (map[string]*domain.Party, error) {
	out := make(map[string]*domain.Party)
	for _, id := range ids {
		if p, ok := f.parties[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func makeSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func company(id, name string) *domain.Party {
	return &domain.Party{ID: id, Kind: domain.PartyCompany, Name: name}
}

func individual(id, name string) *domain.Party {
	return &domain.Party{ID: id, Kind: domain.PartyIndividual, Name: name}
}

func ownership(owner, owned string, percentage float64) *domain.OwnershipEdge {
	return &domain.OwnershipEdge{
		ID: owner + "->" + owned, Kind: domain.EdgeOwnership,
		OwnerID: owner, OwnedID: owned, Percentage: &percentage,
	}
}

func newValidator(store *fakeStore) *Validator {
	resolver := ubo.NewResolver(store, 0, 0)
	return New(store, resolver, 0)
}

func TestValidate(t *testing.T) {
	ctx := context.Background()

	t.Run("dead-end corporate shareholder", func(t *testing.T) {
		// A owns 100% of B; nothing owns A. Validating B flags A.
		store := &fakeStore{
			parties: map[string]*domain.Party{
				"a": company("a", "Alpha Holdings"),
				"b": company("b", "Beta Ltd"),
			},
			edges: []*domain.OwnershipEdge{ownership("a", "b", 100)},
		}

		res, err := newValidator(store).Validate(ctx, "t1", "b")
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if !res.OwnershipSumValid || res.TotalPercentage != 100.0 {
			t.Errorf("sum valid=%v total=%v, want valid 100", res.OwnershipSumValid, res.TotalPercentage)
		}
		if len(res.Cycles) != 0 {
			t.Errorf("cycles = %v, want none", res.Cycles)
		}
		if len(res.DeadEnds) != 1 || res.DeadEnds[0].PartyID != "a" || res.DeadEnds[0].Name != "Alpha Holdings" {
			t.Errorf("dead ends = %+v, want Alpha Holdings", res.DeadEnds)
		}
	})

	t.Run("resolved chain has no dead ends", func(t *testing.T) {
		store := &fakeStore{
			parties: map[string]*domain.Party{
				"a": company("a", "Alpha Holdings"),
				"b": company("b", "Beta Ltd"),
				"p": individual("p", "Paula"),
			},
			edges: []*domain.OwnershipEdge{
				ownership("a", "b", 100),
				ownership("p", "a", 100),
			},
		}

		res, err := newValidator(store).Validate(ctx, "t1", "b")
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if len(res.DeadEnds) != 0 {
			t.Errorf("dead ends = %+v, want none", res.DeadEnds)
		}
		if len(res.Warnings) != 0 {
			t.Errorf("warnings = %v, want none", res.Warnings)
		}
	})

	t.Run("sum mismatch and cycle produce warnings", func(t *testing.T) {
		store := &fakeStore{
			parties: map[string]*domain.Party{
				"a": company("a", "Alpha"),
				"b": company("b", "Beta"),
				"p": individual("p", "Paula"),
			},
			edges: []*domain.OwnershipEdge{
				ownership("a", "b", 60),
				ownership("b", "a", 100),
				ownership("p", "a", 100),
			},
		}

		res, err := newValidator(store).Validate(ctx, "t1", "b")
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if res.OwnershipSumValid {
			t.Error("expected sum to be flagged invalid")
		}
		wantSum := "Total ownership is 60.0%, not 100%"
		wantCycle := "Cycle(s) detected in ownership structure"
		if !containsWarning(res.Warnings, wantSum) || !containsWarning(res.Warnings, wantCycle) {
			t.Errorf("warnings = %v, want both %q and %q", res.Warnings, wantSum, wantCycle)
		}
	})

	t.Run("missing entity", func(t *testing.T) {
		store := &fakeStore{parties: map[string]*domain.Party{}}
		res, err := newValidator(store).Validate(ctx, "t1", "ghost")
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if res.OwnershipSumValid {
			t.Error("missing entity must not report a valid sum")
		}
		if !containsWarning(res.Warnings, "Entity not found") {
			t.Errorf("warnings = %v", res.Warnings)
		}
	})
}

func containsWarning(warnings []string, want string) bool {
	for _, w := range warnings {
		if w == want {
			return true
		}
	}
	return false
}
