package ubo

import (
	"math"
	"sort"

	"github.com/opensource-finance/harrier/internal/domain"
)

// ControlHolders returns the individuals holding a direct, non-nominee
// control or director edge into the snapshot root. Nominee-held edges
// are excluded: the holder is presumed to act for an undisclosed
// principal and is surfaced through validation, not classified as a UBO.
func ControlHolders(snap *Snapshot) map[string]bool {
	holders := make(map[string]bool)
	for _, e := range snap.Edges {
		if e.OwnedID != snap.RootID {
			continue
		}
		if e.Kind != domain.EdgeControl && e.Kind != domain.EdgeDirector {
			continue
		}
		if e.IsNominee {
			continue
		}
		if p := snap.Parties[e.OwnerID]; p != nil && p.IsIndividual() {
			holders[e.OwnerID] = true
		}
	}
	return holders
}

// ClassifyInput carries the aggregated data the regulatory decision rule
// operates on.
type ClassifyInput struct {
	// Aggregated is the effective ownership per individual.
	Aggregated map[string]float64

	// ControlHolders are individuals with direct non-nominee control or
	// directorship over the root.
	ControlHolders map[string]bool

	Parties map[string]*domain.Party

	// SeniorManagerID is the explicit fallback candidate. It takes
	// precedence over the root party's stored senior manager; the two
	// sources are never both consulted.
	SeniorManagerID string

	Root *domain.Party

	// Threshold is the UBO ownership percentage; zero means the default.
	Threshold float64
}

// Classify applies the regulatory decision rule: an individual is a UBO
// when effective ownership meets the threshold or when they hold direct
// non-nominee control over the root. When neither rule identifies
// anyone, a supplied senior manager (explicit argument first, else the
// root's stored reference) produces exactly one fallback entry with
// effective percentage 0. Output is ordered by party ID within each
// rule group, so repeated runs over the same data are identical.
func Classify(in ClassifyInput) []domain.BeneficialOwner {
	threshold := in.Threshold
	if threshold <= 0 {
		threshold = DefaultUBOThreshold
	}

	var ubos []domain.BeneficialOwner
	seen := make(map[string]bool)

	for _, personID := range sortedIDs(in.Aggregated) {
		pct := in.Aggregated[personID]
		byOwnership := pct >= threshold
		byControl := in.ControlHolders[personID]
		if !byOwnership && !byControl {
			continue
		}
		seen[personID] = true
		ubos = append(ubos, domain.BeneficialOwner{
			PartyID:      personID,
			Name:         partyName(in.Parties, personID),
			EffectivePct: round2(pct),
			ByOwnership:  byOwnership,
			ByControl:    byControl,
		})
	}

	// Control holders with no ownership path at all.
	for _, personID := range sortedSet(in.ControlHolders) {
		if seen[personID] {
			continue
		}
		seen[personID] = true
		ubos = append(ubos, domain.BeneficialOwner{
			PartyID:      personID,
			Name:         partyName(in.Parties, personID),
			EffectivePct: round2(in.Aggregated[personID]),
			ByControl:    true,
		})
	}

	if len(ubos) > 0 {
		return ubos
	}

	// Last-resort rule: ownership/control too diffuse or entirely
	// corporate-nominee. Explicit argument wins over the stored field.
	fallbackID := in.SeniorManagerID
	if fallbackID == "" && in.Root != nil {
		fallbackID = in.Root.SeniorManagerID
	}
	if fallbackID == "" {
		return nil
	}
	p := in.Parties[fallbackID]
	if p == nil || !p.IsIndividual() {
		return nil
	}
	return []domain.BeneficialOwner{{
		PartyID:               fallbackID,
		Name:                  p.Name,
		EffectivePct:          0,
		SeniorManagerFallback: true,
	}}
}

func partyName(parties map[string]*domain.Party, id string) string {
	if p := parties[id]; p != nil {
		return p.Name
	}
	return id
}

func sortedIDs(m map[string]float64) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedSet(m map[string]bool) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
