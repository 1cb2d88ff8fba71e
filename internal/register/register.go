// Package register builds statutory register data (UBO, partners,
// directors) from a resolved ownership snapshot. Output is plain data
// with a deterministic version hash; rendering and storage belong to
// downstream consumers.
package register

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/ubo"
)

// Kind names one of the three statutory registers.
type Kind string

const (
	KindUBO       Kind = "ubo"
	KindPartners  Kind = "partners"
	KindDirectors Kind = "directors"
)

// UBORow is one line of the UBO register.
type UBORow struct {
	PartyID               string  `json:"partyId"`
	Name                  string  `json:"name"`
	Nationality           string  `json:"nationality"`
	EffectivePct          float64 `json:"effectivePct"`
	ByOwnership           bool    `json:"byOwnership"`
	ByControl             bool    `json:"byControl"`
	SeniorManagerFallback bool    `json:"seniorManagerFallback"`
}

// PartnerRow is one line of the partners register: a direct shareholder
// of the root, corporate or individual.
type PartnerRow struct {
	PartyID     string           `json:"partyId"`
	Name        string           `json:"name"`
	Kind        domain.PartyKind `json:"kind"`
	Nationality string           `json:"nationality"`
	Percentage  float64          `json:"percentage"`
}

// DirectorRow is one line of the directors register.
type DirectorRow struct {
	PartyID     string `json:"partyId"`
	Name        string `json:"name"`
	Nationality string `json:"nationality"`
	IsNominee   bool   `json:"isNominee"`
}

// Register is the full register payload for one entity.
type Register struct {
	RootID   string `json:"rootId"`
	RootName string `json:"rootName"`

	UBOs      []UBORow      `json:"ubos"`
	Partners  []PartnerRow  `json:"partners"`
	Directors []DirectorRow `json:"directors"`

	// VersionHash changes iff the register content changes, so callers
	// can detect stale stored copies without diffing rows.
	VersionHash string    `json:"versionHash"`
	GeneratedAt time.Time `json:"generatedAt"`

	Warnings []string `json:"warnings,omitempty"`
}

// Builder assembles registers from a resolution run.
type Builder struct {
	resolver *ubo.Resolver
}

// NewBuilder creates a register builder over the given resolver.
func NewBuilder(resolver *ubo.Resolver) *Builder {
	return &Builder{resolver: resolver}
}

// Build resolves rootID and assembles all three registers from the same
// snapshot, so the rows are mutually consistent.
func (b *Builder) Build(ctx context.Context, tenantID, rootID string) (*Register, error) {
	result, snap, err := b.resolver.Resolve(ctx, tenantID, rootID, "")
	if err != nil {
		return nil, err
	}

	reg := &Register{
		RootID:      rootID,
		UBOs:        []UBORow{},
		Partners:    []PartnerRow{},
		Directors:   []DirectorRow{},
		GeneratedAt: time.Now().UTC(),
		Warnings:    result.Warnings,
	}
	if root := snap.Root(); root != nil {
		reg.RootName = root.Name
	}

	for _, u := range result.UBOs {
		row := UBORow{
			PartyID:               u.PartyID,
			Name:                  u.Name,
			EffectivePct:          u.EffectivePct,
			ByOwnership:           u.ByOwnership,
			ByControl:             u.ByControl,
			SeniorManagerFallback: u.SeniorManagerFallback,
		}
		if p := snap.Parties[u.PartyID]; p != nil {
			row.Nationality = p.Country
		}
		reg.UBOs = append(reg.UBOs, row)
	}

	for _, e := range edgesInto(snap, rootID, domain.EdgeOwnership) {
		p := snap.Parties[e.OwnerID]
		if p == nil {
			continue
		}
		pct := 0.0
		if e.Percentage != nil {
			pct = *e.Percentage
		}
		reg.Partners = append(reg.Partners, PartnerRow{
			PartyID:     e.OwnerID,
			Name:        p.Name,
			Kind:        p.Kind,
			Nationality: p.Country,
			Percentage:  pct,
		})
	}

	for _, e := range edgesInto(snap, rootID, domain.EdgeDirector, domain.EdgeManages) {
		p := snap.Parties[e.OwnerID]
		if p == nil {
			continue
		}
		reg.Directors = append(reg.Directors, DirectorRow{
			PartyID:     e.OwnerID,
			Name:        p.Name,
			Nationality: p.Country,
			IsNominee:   e.IsNominee,
		})
	}

	reg.VersionHash = versionHash(rootID, reg)
	return reg, nil
}

// edgesInto returns the direct edges of the given kinds terminating at
// rootID, ordered by owner ID for stable register rows.
func edgesInto(snap *ubo.Snapshot, rootID string, kinds ...domain.EdgeKind) []*domain.OwnershipEdge {
	want := make(map[domain.EdgeKind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var out []*domain.OwnershipEdge
	for _, e := range snap.Edges {
		if e.OwnedID == rootID && want[e.Kind] {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OwnerID < out[j].OwnerID })
	return out
}

// versionHash derives a short content hash over the root and the sorted
// row data. Timestamps are excluded so regenerating an unchanged
// register yields the same hash.
func versionHash(rootID string, reg *Register) string {
	rows := make([]string, 0, len(reg.UBOs)+len(reg.Partners)+len(reg.Directors))
	for _, r := range reg.UBOs {
		rows = append(rows, fmt.Sprintf("ubo|%s|%s|%.2f|%t|%t|%t",
			r.PartyID, r.Name, r.EffectivePct, r.ByOwnership, r.ByControl, r.SeniorManagerFallback))
	}
	for _, r := range reg.Partners {
		rows = append(rows, fmt.Sprintf("partner|%s|%s|%s|%.2f", r.PartyID, r.Name, r.Kind, r.Percentage))
	}
	for _, r := range reg.Directors {
		rows = append(rows, fmt.Sprintf("director|%s|%s|%t", r.PartyID, r.Name, r.IsNominee))
	}
	sort.Strings(rows)

	h := sha256.New()
	h.Write([]byte(rootID))
	for _, row := range rows {
		h.Write([]byte("|"))
		h.Write([]byte(row))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
